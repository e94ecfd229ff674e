package webui

import (
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"edudiff/core"
)

func getBody(t *testing.T, target string) (*http.Response, string) {
	t.Helper()
	resp, err := http.Get(target)
	if err != nil {
		t.Fatalf("GET %s: %v", target, err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return resp, string(body)
}

func TestServer_Health(t *testing.T) {
	env := newTestEnv(t)

	resp, body := getBody(t, env.url("/health"))
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want 200", resp.StatusCode)
	}
	if body != `{"status":"ok"}` {
		t.Errorf("body = %q", body)
	}
}

func TestServer_IndexRendersForm(t *testing.T) {
	env := newTestEnv(t)

	resp, body := getBody(t, env.url("/"))
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); !strings.HasPrefix(ct, "text/html") {
		t.Errorf("Content-Type = %q", ct)
	}

	for _, want := range []string{
		`name="prompt"`,
		`name="guide_image"`,
		"📊 Infografía Profesional",
		"⭐ Estándar",
		`value="none"`,
	} {
		if !strings.Contains(body, want) {
			t.Errorf("index does not contain %q", want)
		}
	}
}

func TestServer_Routing(t *testing.T) {
	env := newTestEnv(t)

	tests := []struct {
		path       string
		wantStatus int
	}{
		{"/nope", http.StatusNotFound},
		{"/static/css/app.css", http.StatusOK},
		{"/static/js/app.js", http.StatusOK},
		{"/static/index.html", http.StatusNotFound},
		{"/static/missing.css", http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			resp, _ := getBody(t, env.url(tt.path))
			if resp.StatusCode != tt.wantStatus {
				t.Errorf("status = %d, want %d", resp.StatusCode, tt.wantStatus)
			}
		})
	}
}

func TestServer_MetricsEndpoint(t *testing.T) {
	env := newTestEnv(t)

	// one observed request before scraping
	getBody(t, env.url("/health"))

	resp, body := getBody(t, env.url("/metrics"))
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	if !strings.Contains(body, "edudiff_api_call_duration_seconds") {
		t.Error("metrics output is missing edudiff_api_call_duration_seconds")
	}
	if !strings.Contains(body, `path="GET /health"`) {
		t.Error("metrics output is missing the /health route label")
	}
}

// fakeAuth rejects every request without the X-Test-Auth header.
type fakeAuth struct{}

func (fakeAuth) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-Test-Auth") == "" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (fakeAuth) LoginHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, "login page")
	}
}

func (fakeAuth) LogoutHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}
}

func TestServer_AuthGate(t *testing.T) {
	env := newTestEnv(t, withAuth(fakeAuth{}))

	tests := []struct {
		name       string
		path       string
		authed     bool
		wantStatus int
	}{
		{"health is public", "/health", false, http.StatusOK},
		{"login is public", "/login", false, http.StatusOK},
		{"index protected", "/", false, http.StatusUnauthorized},
		{"api protected", "/api/styles", false, http.StatusUnauthorized},
		{"logout protected", "/logout", false, http.StatusUnauthorized},
		{"index with auth", "/", true, http.StatusOK},
		{"api with auth", "/api/styles", true, http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, _ := http.NewRequest(http.MethodGet, env.url(tt.path), nil)
			if tt.authed {
				req.Header.Set("X-Test-Auth", "1")
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
}

func TestNewServer_RequiresGeneratorAndHistory(t *testing.T) {
	if _, err := NewServer(DefaultServerConfig(), Deps{}, nil); err == nil {
		t.Error("NewServer(empty deps) error = nil")
	}
}

func TestServerConfigFromCore(t *testing.T) {
	cfg := &core.Config{
		Port:              8080,
		GenerationTimeout: 90 * time.Second,
		SDControlNets: map[string]string{
			"depth": "/models/depth.safetensors",
			"canny": "/models/canny.safetensors",
		},
	}

	sc := ServerConfigFromCore(cfg)
	if sc.Port != 8080 {
		t.Errorf("Port = %d, want 8080", sc.Port)
	}
	if sc.WriteTimeout != 120*time.Second {
		t.Errorf("WriteTimeout = %v, want 2m0s", sc.WriteTimeout)
	}
	want := []string{"none", "canny", "depth"}
	if strings.Join(sc.API.Conditioning, ",") != strings.Join(want, ",") {
		t.Errorf("Conditioning = %v, want %v", sc.API.Conditioning, want)
	}
}
