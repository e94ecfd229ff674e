package webui

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"image/png"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"testing"

	"edudiff/params"
)

const cellPrompt = "Diagrama de célula animal con núcleo y mitocondrias"

func postMultipart(t *testing.T, target string, fields map[string]string, guide []byte) *http.Response {
	t.Helper()

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			t.Fatalf("WriteField: %v", err)
		}
	}
	if guide != nil {
		fw, err := mw.CreateFormFile("guide_image", "guide.png")
		if err != nil {
			t.Fatalf("CreateFormFile: %v", err)
		}
		fw.Write(guide)
	}
	mw.Close()

	resp, err := http.Post(target, mw.FormDataContentType(), &body)
	if err != nil {
		t.Fatalf("POST %s: %v", target, err)
	}
	return resp
}

func postJSON(t *testing.T, target, body string) *http.Response {
	t.Helper()
	resp, err := http.Post(target, "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatalf("POST %s: %v", target, err)
	}
	return resp
}

func decodeBody[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	defer resp.Body.Close()
	var out T
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return out
}

func TestHandleGenerate_MultipartSuccess(t *testing.T) {
	env := newTestEnv(t)

	resp := postMultipart(t, env.url("/api/generate"), map[string]string{
		"prompt":  cellPrompt,
		"style":   "Científico",
		"quality": "⭐ Estándar",
		"seed":    "1234",
	}, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	got := decodeBody[GenerateResponse](t, resp)

	if got.Image == nil {
		t.Fatalf("image = null, status %q", got.Status)
	}
	raw, err := base64.StdEncoding.DecodeString(*got.Image)
	if err != nil {
		t.Fatalf("image is not base64: %v", err)
	}
	if _, err := png.Decode(bytes.NewReader(raw)); err != nil {
		t.Errorf("image is not a PNG: %v", err)
	}
	if got.Category != "" {
		t.Errorf("category = %q, want empty", got.Category)
	}
	if !strings.Contains(got.Status, "1234") {
		t.Errorf("status %q does not report the seed", got.Status)
	}
	if got.Metadata == nil || got.Metadata.Style != "🔬 Científico Detallado" {
		t.Errorf("metadata = %+v, want style 🔬 Científico Detallado", got.Metadata)
	}
	if !strings.HasPrefix(got.ImageURL, "/images/") {
		t.Fatalf("image_url = %q", got.ImageURL)
	}

	img, err := http.Get(env.url(got.ImageURL))
	if err != nil {
		t.Fatalf("GET image: %v", err)
	}
	defer img.Body.Close()
	if img.StatusCode != http.StatusOK {
		t.Errorf("GET %s status = %d", got.ImageURL, img.StatusCode)
	}
	if ct := img.Header.Get("Content-Type"); ct != "image/png" {
		t.Errorf("Content-Type = %q, want image/png", ct)
	}
}

func TestHandleGenerate_JSONAcceptsNumbers(t *testing.T) {
	env := newTestEnv(t)

	resp := postJSON(t, env.url("/api/generate"),
		`{"prompt": "`+cellPrompt+`", "steps": 30, "guidance": 8.5, "width": "768", "seed": 42}`)
	got := decodeBody[GenerateResponse](t, resp)
	if got.Image == nil {
		t.Fatalf("image = null, status %q", got.Status)
	}

	if env.backend.callCount() != 1 {
		t.Fatalf("backend calls = %d, want 1", env.backend.callCount())
	}
	call := env.backend.calls[0]
	if call.Steps != 30 || call.Guidance != 8.5 || call.Width != 768 || call.Seed != 42 {
		t.Errorf("backend request = %+v, want steps 30 guidance 8.5 width 768 seed 42", call)
	}
}

func TestHandleGenerate_GuideImageWithoutSupportWarns(t *testing.T) {
	env := newTestEnv(t)
	guide := base64.StdEncoding.EncodeToString(testPNG(t, 32, 32))

	resp := postJSON(t, env.url("/api/generate"),
		`{"prompt": "`+cellPrompt+`", "conditioning": "canny", "guide_image": "data:image/png;base64,`+guide+`"}`)
	got := decodeBody[GenerateResponse](t, resp)

	if got.Image == nil {
		t.Fatalf("image = null, status %q", got.Status)
	}
	if len(got.Warnings) == 0 {
		t.Error("expected a conditioning warning")
	}
}

func TestHandleGenerate_FailuresAreStatusesNot5xx(t *testing.T) {
	tests := []struct {
		name         string
		backend      *stubBackend
		body         string
		wantCategory string
		wantStatus   string
		wantCalls    int
	}{
		{
			name:         "empty prompt",
			backend:      &stubBackend{},
			body:         `{"prompt": "   "}`,
			wantCategory: "invalid_input",
			wantStatus:   params.EmptyPromptWarning,
			wantCalls:    0,
		},
		{
			name:         "rate limited",
			backend:      &stubBackend{err: errRateLimited},
			body:         `{"prompt": "` + cellPrompt + `"}`,
			wantCategory: "rate_limited",
			wantCalls:    1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnvWithBackend(t, tt.backend)

			resp := postJSON(t, env.url("/api/generate"), tt.body)
			if resp.StatusCode != http.StatusOK {
				t.Fatalf("status = %d, want 200", resp.StatusCode)
			}
			got := decodeBody[GenerateResponse](t, resp)

			if got.Image != nil {
				t.Error("image should be null")
			}
			if got.Category != tt.wantCategory {
				t.Errorf("category = %q, want %q", got.Category, tt.wantCategory)
			}
			if tt.wantStatus != "" && got.Status != tt.wantStatus {
				t.Errorf("status = %q, want %q", got.Status, tt.wantStatus)
			}
			if got.Status == "" {
				t.Error("status should never be empty")
			}
			if tt.backend.callCount() != tt.wantCalls {
				t.Errorf("backend calls = %d, want %d", tt.backend.callCount(), tt.wantCalls)
			}
		})
	}
}

func TestHandleGenerate_MalformedRequests(t *testing.T) {
	env := newTestEnv(t)

	tests := []struct {
		name        string
		contentType string
		body        string
		wantStatus  int
	}{
		{"broken json", "application/json", `{"prompt": `, http.StatusBadRequest},
		{"bad guide image", "application/json", `{"prompt": "x", "guide_image": "%%%"}`, http.StatusBadRequest},
		{"plain text", "text/plain", "hola", http.StatusUnsupportedMediaType},
		{"no content type", "", "hola", http.StatusUnsupportedMediaType},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, _ := http.NewRequest(http.MethodPost, env.url("/api/generate"), strings.NewReader(tt.body))
			if tt.contentType != "" {
				req.Header.Set("Content-Type", tt.contentType)
			}
			resp, err := http.DefaultClient.Do(req)
			if err != nil {
				t.Fatalf("request: %v", err)
			}
			resp.Body.Close()
			if resp.StatusCode != tt.wantStatus {
				t.Errorf("status = %d, want %d", resp.StatusCode, tt.wantStatus)
			}
		})
	}

	if env.backend.callCount() != 0 {
		t.Errorf("backend calls = %d, want 0", env.backend.callCount())
	}
}

func TestHandleGenerate_RateLimitedPerClient(t *testing.T) {
	env := newTestEnv(t, withGenerateLimit(2))

	for i := 0; i < 2; i++ {
		resp := postJSON(t, env.url("/api/generate"), `{"prompt": "`+cellPrompt+`"}`)
		resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("request %d status = %d, want 200", i, resp.StatusCode)
		}
	}

	resp := postJSON(t, env.url("/api/generate"), `{"prompt": "`+cellPrompt+`"}`)
	resp.Body.Close()
	if resp.StatusCode != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want 429", resp.StatusCode)
	}
	if resp.Header.Get("Retry-After") == "" {
		t.Error("missing Retry-After header")
	}
}

func TestHandleStyles(t *testing.T) {
	env := newTestEnv(t)

	resp, err := http.Get(env.url("/api/styles"))
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	got := decodeBody[StylesResponse](t, resp)

	if len(got.Styles) != 6 {
		t.Errorf("styles = %d, want 6", len(got.Styles))
	}
	if got.DefaultStyle != got.Styles[0].Label {
		t.Errorf("default_style = %q, want first style %q", got.DefaultStyle, got.Styles[0].Label)
	}
	if len(got.Presets) != 3 {
		t.Errorf("quality_presets = %d, want 3", len(got.Presets))
	}
	if got.Defaults.Steps != 25 || got.Defaults.Guidance != 7.5 || got.Defaults.Seed != -1 {
		t.Errorf("defaults = %+v", got.Defaults)
	}
	if len(got.Conditioning) != 1 || got.Conditioning[0] != "none" {
		t.Errorf("conditioning = %v, want [none]", got.Conditioning)
	}
	if got.Backend != "stub" {
		t.Errorf("backend = %q, want stub", got.Backend)
	}
}

func TestHandleHistoryAndStats(t *testing.T) {
	env := newTestEnv(t)

	for _, style := range []string{"Científico", "Científico", "Mapa Conceptual"} {
		resp := postJSON(t, env.url("/api/generate"), `{"prompt": "`+cellPrompt+`", "style": "`+style+`"}`)
		resp.Body.Close()
	}

	t.Run("limit", func(t *testing.T) {
		resp, err := http.Get(env.url("/api/history?limit=2"))
		if err != nil {
			t.Fatalf("GET: %v", err)
		}
		got := decodeBody[HistoryResponse](t, resp)
		if got.Count != 2 || len(got.Records) != 2 {
			t.Errorf("count = %d records = %d, want 2", got.Count, len(got.Records))
		}
		if got.Total != 3 {
			t.Errorf("total = %d, want 3", got.Total)
		}
		if got.Records[0].Style != "🌈 Mapa Conceptual" {
			t.Errorf("newest record style = %q, want 🌈 Mapa Conceptual", got.Records[0].Style)
		}
	})

	t.Run("invalid limit", func(t *testing.T) {
		resp, err := http.Get(env.url("/api/history?limit=abc"))
		if err != nil {
			t.Fatalf("GET: %v", err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusBadRequest {
			t.Errorf("status = %d, want 400", resp.StatusCode)
		}
	})

	t.Run("stats", func(t *testing.T) {
		resp, err := http.Get(env.url("/api/stats"))
		if err != nil {
			t.Fatalf("GET: %v", err)
		}
		got := decodeBody[StatsResponse](t, resp)
		if got.Summary.Total != 3 || got.Summary.Successes != 3 {
			t.Errorf("summary = %+v", got.Summary)
		}
		if got.StyleCounts["🔬 Científico Detallado"] != 2 {
			t.Errorf("style_counts = %v", got.StyleCounts)
		}
		if got.AvgDuration == "" || got.Uptime == "" {
			t.Errorf("durations not rendered: %+v", got)
		}
	})
}

func TestHandleSuggestions(t *testing.T) {
	env := newTestEnv(t)

	resp, err := http.Get(env.url("/api/suggestions?topic=" + url.QueryEscape("la célula")))
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	got := decodeBody[SuggestionsResponse](t, resp)
	if got.Category != "biologia" {
		t.Errorf("category = %q, want biologia", got.Category)
	}
	if len(got.Suggestions) != 3 {
		t.Errorf("suggestions = %d, want 3", len(got.Suggestions))
	}

	resp, err = http.Get(env.url("/api/suggestions"))
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("missing topic status = %d, want 400", resp.StatusCode)
	}
}

func TestHandleValidate(t *testing.T) {
	env := newTestEnv(t)

	tests := []struct {
		name        string
		contentType string
		body        string
		wantValid   bool
		wantMessage string
	}{
		{"json valid", "application/json", `{"prompt": "` + cellPrompt + `"}`, true, params.MsgPromptValid},
		{"json empty", "application/json", `{"prompt": ""}`, false, params.MsgPromptEmpty},
		{"form too short", "application/x-www-form-urlencoded", "prompt=corto", false, params.MsgPromptTooShort},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := http.Post(env.url("/api/validate"), tt.contentType, strings.NewReader(tt.body))
			if err != nil {
				t.Fatalf("POST: %v", err)
			}
			got := decodeBody[ValidateResponse](t, resp)
			if got.Valid != tt.wantValid || got.Message != tt.wantMessage {
				t.Errorf("got %+v, want valid=%v message=%q", got, tt.wantValid, tt.wantMessage)
			}
		})
	}
}

func TestHandleGrid(t *testing.T) {
	env := newTestEnv(t)

	resp, err := http.Get(env.url("/api/grid"))
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("empty grid status = %d, want 404", resp.StatusCode)
	}

	gen := postJSON(t, env.url("/api/generate"), `{"prompt": "`+cellPrompt+`"}`)
	gen.Body.Close()

	resp, err = http.Get(env.url("/api/grid"))
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	data, _ := io.ReadAll(resp.Body)
	img, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("grid is not a PNG: %v", err)
	}
	// 3 cols x 2 rows of 64px cells with 10px padding
	if b := img.Bounds(); b.Dx() != 3*64+4*10 || b.Dy() != 2*64+3*10 {
		t.Errorf("grid size = %v, want 232x158", b.Size())
	}
}

func TestHandleImage_RejectsBadNames(t *testing.T) {
	env := newTestEnv(t)

	tests := []struct {
		path       string
		wantStatus int
	}{
		{"/images/.hidden.png", http.StatusBadRequest},
		{"/images/notes.txt", http.StatusBadRequest},
		{"/images/edudiff_20240101_000000_deadbeef_metadata.json", http.StatusBadRequest},
		{"/images/missing.png", http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			resp, err := http.Get(env.url(tt.path))
			if err != nil {
				t.Fatalf("GET: %v", err)
			}
			resp.Body.Close()
			if resp.StatusCode != tt.wantStatus {
				t.Errorf("status = %d, want %d", resp.StatusCode, tt.wantStatus)
			}
		})
	}
}
