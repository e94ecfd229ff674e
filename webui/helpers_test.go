package webui

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"edudiff/imagegen"
	"edudiff/logging"
	"edudiff/metrics"
)

func testPNG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x), G: uint8(y), B: 200, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return buf.Bytes()
}

// stubBackend returns image or err for every call.
type stubBackend struct {
	image []byte
	err   error

	mu    sync.Mutex
	calls []imagegen.BackendRequest
}

func (s *stubBackend) Name() string { return "stub" }

func (s *stubBackend) Generate(ctx context.Context, req imagegen.BackendRequest) (*imagegen.BackendResult, error) {
	s.mu.Lock()
	s.calls = append(s.calls, req)
	s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	return &imagegen.BackendResult{Image: s.image, Seed: req.Seed}, nil
}

func (s *stubBackend) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.calls)
}

type testEnv struct {
	server   *Server
	backend  *stubBackend
	history  *metrics.History
	store    *imagegen.ImageStore
	hub      *StatusHub
	metrics  *metrics.Collectors
	http     *httptest.Server
	cancelFn context.CancelFunc
}

type envOption func(*ServerConfig, *Deps)

func withAuth(a AuthProvider) envOption {
	return func(_ *ServerConfig, d *Deps) { d.Auth = a }
}

func withGenerateLimit(n int) envOption {
	return func(c *ServerConfig, _ *Deps) { c.GenerateLimit = n }
}

// newTestEnv builds a real generator against stubBackend and serves the
// full middleware chain from an httptest server.
func newTestEnv(t *testing.T, opts ...envOption) *testEnv {
	t.Helper()
	return newTestEnvWithBackend(t, &stubBackend{image: testPNG(t, 64, 64)}, opts...)
}

func newTestEnvWithBackend(t *testing.T, backend *stubBackend, opts ...envOption) *testEnv {
	t.Helper()

	history := metrics.NewHistory(50)
	store, err := imagegen.NewImageStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewImageStore() error = %v", err)
	}
	collectors := metrics.NewCollectors()
	hub := NewStatusHub(DefaultHubConfig(), logging.NewNop())

	gen, err := imagegen.NewGenerator(backend, nil, imagegen.DefaultGeneratorConfig(),
		imagegen.WithHistory(history),
		imagegen.WithStore(store),
		imagegen.WithEvents(hub),
		imagegen.WithMetrics(collectors),
	)
	if err != nil {
		t.Fatalf("NewGenerator() error = %v", err)
	}

	cfg := DefaultServerConfig()
	deps := Deps{
		Generator: gen,
		History:   history,
		Store:     store,
		Hub:       hub,
		Metrics:   collectors,
	}
	for _, opt := range opts {
		opt(&cfg, &deps)
	}

	srv, err := NewServer(cfg, deps, logging.NewNop())
	if err != nil {
		t.Fatalf("NewServer() error = %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	go hub.Start(ctx)

	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(func() {
		ts.Close()
		cancel()
	})

	return &testEnv{
		server:   srv,
		backend:  backend,
		history:  history,
		store:    store,
		hub:      hub,
		metrics:  collectors,
		http:     ts,
		cancelFn: cancel,
	}
}

func (e *testEnv) url(path string) string {
	return e.http.URL + path
}

// noRedirectClient returns redirects to the caller instead of following them.
func noRedirectClient() *http.Client {
	return &http.Client{
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
}

var errRateLimited = errors.New("rate limit reached for this model")
