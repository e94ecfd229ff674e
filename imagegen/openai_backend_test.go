package imagegen

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestSnapSize(t *testing.T) {
	tests := []struct {
		model string
		w, h  int
		want  string
	}{
		{"dall-e-3", 1024, 1024, "1024x1024"},
		{"dall-e-3", 1024, 512, "1792x1024"},
		{"dall-e-3", 512, 1024, "1024x1792"},
		{"dall-e-3", 1024, 896, "1024x1024"},
		{"dall-e-2", 512, 512, "512x512"},
		{"dall-e-2", 1024, 512, "1024x1024"},
		{"gpt-image-1", 1024, 640, "1536x1024"},
		{"gpt-image-1", 640, 1024, "1024x1536"},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("%s_%dx%d", tt.model, tt.w, tt.h), func(t *testing.T) {
			if got := snapSize(tt.model, tt.w, tt.h); got != tt.want {
				t.Errorf("snapSize() = %q, want %q", got, tt.want)
			}
		})
	}
}

func newOpenAITest(t *testing.T, key string, handler http.HandlerFunc) *OpenAIBackend {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewOpenAIBackendWithConfig(OpenAIConfig{
		APIKey:     key,
		BaseURL:    srv.URL + "/v1",
		Model:      "dall-e-3",
		Downloader: NewDownloader(srv.Client()),
	})
}

func TestOpenAIBackend_B64(t *testing.T) {
	png := testPNG(t, 8, 8)
	var got map[string]interface{}

	b := newOpenAITest(t, "sk-test", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/images/generations" {
			t.Errorf("path = %s", r.URL.Path)
		}
		body, _ := io.ReadAll(r.Body)
		json.Unmarshal(body, &got)
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"created":1,"data":[{"b64_json":%q}]}`, base64.StdEncoding.EncodeToString(png))
	})

	res, err := b.Generate(context.Background(), BackendRequest{Prompt: "fotosíntesis", Width: 1024, Height: 512, Seed: 9})
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if !bytes.Equal(res.Image, png) {
		t.Error("image differs")
	}
	if res.Seed != 9 {
		t.Errorf("Seed = %d, want 9", res.Seed)
	}
	if got["prompt"] != "fotosíntesis" || got["size"] != "1792x1024" || got["response_format"] != "b64_json" {
		t.Errorf("request = %v", got)
	}
}

func TestOpenAIBackend_URLResponse(t *testing.T) {
	png := testPNG(t, 8, 8)
	var srvURL string
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/images/generations", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"created":1,"data":[{"url":%q}]}`, srvURL+"/files/out.png")
	})
	mux.HandleFunc("/files/out.png", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		w.Write(png)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()
	srvURL = srv.URL

	b := NewOpenAIBackendWithConfig(OpenAIConfig{APIKey: "sk-test", BaseURL: srv.URL + "/v1", Downloader: NewDownloader(srv.Client())})
	res, err := b.Generate(context.Background(), BackendRequest{Prompt: "x", Width: 1024, Height: 1024})
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if !bytes.Equal(res.Image, png) {
		t.Error("downloaded image differs")
	}
}

func TestOpenAIBackend_Errors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   ErrorCategory
	}{
		{"rate limit", 429, `{"error":{"message":"Rate limit reached","type":"requests","code":"rate_limit_exceeded"}}`, CategoryRateLimited},
		{"quota", 429, `{"error":{"message":"You exceeded your current quota","type":"insufficient_quota","code":"insufficient_quota"}}`, CategoryBilling},
		{"bad key", 401, `{"error":{"message":"Incorrect API key provided","type":"invalid_request_error","code":"invalid_api_key"}}`, CategoryAuth},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := newOpenAITest(t, "sk-test", func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(tt.status)
				io.WriteString(w, tt.body)
			})
			_, err := b.Generate(context.Background(), BackendRequest{Prompt: "x", Width: 1024, Height: 1024})
			if err == nil {
				t.Fatal("expected error")
			}
			if got := Classify(err); got != tt.want {
				t.Errorf("Classify(%v) = %q, want %q", err, got, tt.want)
			}
		})
	}
}

func TestOpenAIBackend_MissingKey(t *testing.T) {
	b := NewOpenAIBackendWithConfig(OpenAIConfig{BaseURL: "http://127.0.0.1:1/v1"})
	_, err := b.Generate(context.Background(), BackendRequest{Prompt: "x"})
	if Classify(err) != CategoryConfig {
		t.Errorf("Classify(%v) = %q, want config", err, Classify(err))
	}
	if b.Model() != "dall-e-3" {
		t.Errorf("Model() = %q", b.Model())
	}
	if b.Name() != "openai" {
		t.Errorf("Name() = %q", b.Name())
	}
}
