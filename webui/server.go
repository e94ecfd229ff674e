// Package webui serves the EduDiff web interface: the generation form,
// a JSON API, the websocket status feed, saved images and /metrics.
package webui

import (
	"context"
	"errors"
	"fmt"
	"html/template"
	"net"
	"net/http"
	"sort"
	"time"

	"go.uber.org/zap"

	"edudiff/core"
	"edudiff/imagegen"
	"edudiff/logging"
	"edudiff/styles"
	"edudiff/webui/static"
)

// AuthProvider gates the UI behind a login. auth.AuthMiddleware implements
// it; the interface keeps webui free of an import cycle.
type AuthProvider interface {
	Middleware(next http.Handler) http.Handler
	LoginHandler() http.HandlerFunc
	LogoutHandler() http.HandlerFunc
}

// ServerConfig configures the Server.
type ServerConfig struct {
	Port int
	// Host is empty to listen on every interface.
	Host            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration

	StaticConfig StaticAssetConfig
	API          APIConfig
	// LogSkipPaths are observed but not logged.
	LogSkipPaths []string

	// GenerateLimit requests per GenerateWindow per client IP.
	GenerateLimit  int
	GenerateWindow time.Duration
}

// DefaultServerConfig listens on :7860 and allows 30 generations per
// minute per client.
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Port:            7860,
		ReadTimeout:     30 * time.Second,
		WriteTimeout:    150 * time.Second,
		IdleTimeout:     120 * time.Second,
		ShutdownTimeout: 30 * time.Second,
		StaticConfig:    DefaultStaticAssetConfig(),
		API:             DefaultAPIConfig(),
		LogSkipPaths:    []string{"/health", "/metrics", "/ws"},
		GenerateLimit:   30,
		GenerateWindow:  time.Minute,
	}
}

// ServerConfigFromCore derives the server settings from cfg. The write
// timeout has to outlast a full generation.
func ServerConfigFromCore(cfg *core.Config) ServerConfig {
	sc := DefaultServerConfig()
	sc.Port = cfg.Port
	sc.WriteTimeout = cfg.GenerationTimeout + 30*time.Second

	keys := cfg.ConditioningKeys()
	sort.Strings(keys)
	sc.API.Conditioning = append([]string{imagegen.ConditioningNone}, keys...)
	return sc
}

// Deps are the collaborators the server renders and serves.
type Deps struct {
	Generator ImageGenerator
	History   HistoryReader
	// Store is nil when images are not saved.
	Store *imagegen.ImageStore
	// Hub is created by the caller so the generator can publish into it.
	Hub *StatusHub
	// Metrics serves /metrics and observes every request; optional.
	Metrics interface {
		APIObserver
		Handler() http.Handler
	}
	// Auth is nil when WEBUI_PASSWORD is unset.
	Auth AuthProvider
}

// Server is the HTTP front end.
type Server struct {
	httpServer    *http.Server
	mux           *http.ServeMux
	config        ServerConfig
	deps          Deps
	logger        *logging.Logger
	loggingMw     *LoggingMiddleware
	api           *API
	staticHandler *StaticAssetHandler
	generateLimit *RateLimiter
	index         *template.Template
}

// NewServer wires routes and middleware.
func NewServer(config ServerConfig, deps Deps, logger *logging.Logger) (*Server, error) {
	if deps.Generator == nil || deps.History == nil {
		return nil, errors.New("webui: generator and history are required")
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	if deps.Hub == nil {
		deps.Hub = NewStatusHub(DefaultHubConfig(), logger)
	}
	if config.GenerateLimit <= 0 {
		config.GenerateLimit = DefaultServerConfig().GenerateLimit
	}
	if config.GenerateWindow <= 0 {
		config.GenerateWindow = DefaultServerConfig().GenerateWindow
	}

	index, err := template.ParseFS(static.GetFS(), "index.html")
	if err != nil {
		return nil, fmt.Errorf("webui: parse index template: %w", err)
	}

	logger = logger.Named("webui")

	loggingCfg := LoggingMiddlewareConfig{
		Logger:    logger,
		SkipPaths: config.LogSkipPaths,
	}
	if deps.Metrics != nil {
		loggingCfg.Observer = deps.Metrics
	}

	s := &Server{
		mux:           http.NewServeMux(),
		config:        config,
		deps:          deps,
		logger:        logger,
		loggingMw:     NewLoggingMiddleware(loggingCfg),
		api:           NewAPI(deps.Generator, deps.History, deps.Store, deps.Hub, config.API, logger),
		staticHandler: NewStaticAssetHandler(config.StaticConfig),
		// Block for one window once the limit is hit.
		generateLimit: NewRateLimiter(config.GenerateLimit, config.GenerateWindow, config.GenerateWindow),
		index:         index,
	}
	s.setupRoutes()

	addr := net.JoinHostPort(config.Host, fmt.Sprint(config.Port))
	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.Handler(),
		ReadTimeout:  config.ReadTimeout,
		WriteTimeout: config.WriteTimeout,
		IdleTimeout:  config.IdleTimeout,
	}

	logger.Info("WebUI server created",
		zap.String("addr", addr),
		zap.Bool("auth_enabled", deps.Auth != nil),
		zap.Bool("metrics_enabled", deps.Metrics != nil),
	)
	return s, nil
}

func (s *Server) setupRoutes() {
	s.mux.HandleFunc("GET /health", s.handleHealth)
	s.mux.HandleFunc("GET /{$}", s.handleIndex)
	s.staticHandler.RegisterRoutes(s.mux)
	s.api.RegisterRoutes(s.mux, s.generateLimit.Middleware)
	s.mux.HandleFunc("GET /ws", s.deps.Hub.HandleConnection)

	if s.deps.Metrics != nil {
		s.mux.Handle("GET /metrics", s.deps.Metrics.Handler())
	}
	if s.deps.Auth != nil {
		s.mux.HandleFunc("/login", s.deps.Auth.LoginHandler())
		s.mux.HandleFunc("/logout", s.deps.Auth.LogoutHandler())
	}
}

// Handler returns the full middleware chain: logging, then auth, then
// the mux.
func (s *Server) Handler() http.Handler {
	var handler http.Handler = s.mux
	if s.deps.Auth != nil {
		handler = s.authGate(handler)
	}
	return s.loggingMw.Handler(handler)
}

// authGate protects everything except the health check and login page.
func (s *Server) authGate(next http.Handler) http.Handler {
	protected := s.deps.Auth.Middleware(next)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/health", "/login":
			next.ServeHTTP(w, r)
		default:
			protected.ServeHTTP(w, r)
		}
	})
}

type indexData struct {
	Title         string
	Backend       string
	Styles        []styles.StyleEntry
	DefaultStyle  string
	Presets       []styles.QualityPreset
	DefaultPreset string
	Limits        ParamLimitsView
	Conditioning  []string
	AuthEnabled   bool
}

// ParamLimitsView feeds the slider attributes in the form template.
type ParamLimitsView struct {
	MinSteps        int
	MaxSteps        int
	DefaultSteps    int
	MinGuidance     float64
	MaxGuidance     float64
	DefaultGuidance float64
	MinSide         int
	MaxSide         int
	DefaultSide     int
	MaxPromptChars  int
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	table := s.deps.Generator.Styles()
	limits := s.deps.Generator.Limits()
	data := indexData{
		Title:         "EduDiff",
		Backend:       s.deps.Generator.Backend().Name(),
		Styles:        table.Entries(),
		DefaultStyle:  table.First().Label,
		Presets:       styles.Presets(),
		DefaultPreset: styles.DefaultPresetLabel,
		Limits: ParamLimitsView{
			MinSteps:        limits.MinSteps,
			MaxSteps:        limits.MaxSteps,
			DefaultSteps:    limits.DefaultSteps,
			MinGuidance:     limits.MinGuidance,
			MaxGuidance:     limits.MaxGuidance,
			DefaultGuidance: limits.DefaultGuidance,
			MinSide:         limits.MinSide,
			MaxSide:         limits.MaxSide,
			DefaultSide:     limits.DefaultSide,
			MaxPromptChars:  limits.MaxPromptChars,
		},
		Conditioning: s.api.config.Conditioning,
		AuthEnabled:  s.deps.Auth != nil,
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache")
	if err := s.index.Execute(w, data); err != nil {
		s.logger.Error("Failed to render index", zap.Error(err))
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}

// Start runs the status hub and serves until Shutdown. It returns nil on
// a clean shutdown.
func (s *Server) Start(ctx context.Context) error {
	go s.deps.Hub.Start(ctx)
	s.generateLimit.StartCleanupTicker(ctx, 5*time.Minute)

	s.logger.Info("WebUI server starting", zap.String("addr", s.httpServer.Addr))

	err := s.httpServer.ListenAndServe()
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http server error: %w", err)
	}
	return nil
}

// Shutdown stops accepting requests and waits for in-flight ones, bounded
// by ShutdownTimeout.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("Shutting down WebUI server")

	timeout := s.config.ShutdownTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	shutdownCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http shutdown error: %w", err)
	}
	s.logger.Info("WebUI server stopped")
	return nil
}

// Hub returns the status hub.
func (s *Server) Hub() *StatusHub { return s.deps.Hub }

// Addr returns the listen address.
func (s *Server) Addr() string { return s.httpServer.Addr }
