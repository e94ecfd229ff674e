package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"edudiff/core"
	"edudiff/db"
	"edudiff/imagegen"
	"edudiff/logging"
	"edudiff/metrics"
	"edudiff/sdruntime"
	"edudiff/shutdown"
	"edudiff/styles"
	"edudiff/webui"
	"edudiff/webui/auth"
)

// Shutdown priorities, lowest first.
const (
	priorityHTTP    = 10
	priorityWorkers = 20
	priorityStorage = 30
	priorityFiles   = 40
	priorityLogger  = 90
)

const (
	recordQueueCapacity = 256
	retentionInterval   = 24 * time.Hour
	authCleanupInterval = 5 * time.Minute
)

// serve builds every component from cfg, registers their cleanup with m and
// serves the web UI until m's context is cancelled or the listener fails.
func serve(m *shutdown.Manager, cfg *core.Config, logger *logging.Logger) error {
	ctx := m.Context()

	table, err := loadStyles(cfg.StylesFile, logger)
	if err != nil {
		return err
	}

	history := metrics.NewHistory(cfg.HistoryMax)
	collectors := metrics.NewCollectors()

	store, err := imagegen.NewImageStore(cfg.OutputDir)
	if err != nil {
		return fmt.Errorf("output directory: %w", err)
	}
	m.Register("partial-writes", priorityFiles, shutdown.CleanupPartialWrites(logger, store.Dir()))

	genOpts := []imagegen.Option{
		imagegen.WithLogger(logger),
		imagegen.WithHistory(history),
		imagegen.WithStore(store),
		imagegen.WithMetrics(collectors),
		imagegen.WithGate(m),
	}

	if cfg.DatabasePath != "" {
		repo, err := openDatabase(ctx, m, cfg, logger)
		if err != nil {
			return err
		}
		genOpts = append(genOpts, imagegen.WithRecordSink(repo))
	}

	var cache *sdruntime.ModelCache
	if cfg.Backend == core.BackendLocal {
		lib, err := sdruntime.OpenLibrary(cfg.SDLibraryPath)
		if err != nil {
			return fmt.Errorf("load stable-diffusion library: %w", err)
		}
		cache = sdruntime.NewModelCache(
			sdruntime.NewLocalLoader(lib, sdruntime.LocalConfigFromCore(cfg)),
			sdruntime.WithCacheLogger(logger),
			sdruntime.WithLoadObserver(collectors.ObserveModelLoad),
		)
		m.Register("model-cache", priorityStorage, shutdown.Closer(cache))
	}

	backend, err := imagegen.NewBackendFromConfig(cfg, cache, logger)
	if err != nil {
		return fmt.Errorf("create backend: %w", err)
	}

	hub := webui.NewStatusHub(webui.DefaultHubConfig(), logger)
	genOpts = append(genOpts, imagegen.WithEvents(hub))

	gen, err := imagegen.NewGenerator(backend, table, imagegen.GeneratorConfigFromCore(cfg), genOpts...)
	if err != nil {
		return fmt.Errorf("create generator: %w", err)
	}

	deps := webui.Deps{
		Generator: gen,
		History:   history,
		Store:     store,
		Hub:       hub,
		Metrics:   collectors,
	}
	if cfg.WebUIPassword != "" {
		mw, err := auth.NewAuthMiddlewareWithConfig(cfg.WebUIPassword, logger, auth.DefaultConfig())
		if err != nil {
			return fmt.Errorf("create auth middleware: %w", err)
		}
		mw.SessionStore().StartCleanupTicker(ctx, authCleanupInterval)
		mw.RateLimiter().StartCleanupTicker(ctx, authCleanupInterval)
		deps.Auth = mw
	} else {
		logger.Warn("WEBUI_PASSWORD is not set, the web UI is open to anyone who can reach it")
	}

	srv, err := webui.NewServer(webui.ServerConfigFromCore(cfg), deps, logger)
	if err != nil {
		return fmt.Errorf("create server: %w", err)
	}
	m.Register("http-server", priorityHTTP, srv.Shutdown)
	m.Register("logger", priorityLogger, func(context.Context) error {
		_ = logger.Sync()
		return nil
	})

	logger.Info("EduDiff ready",
		zap.String("backend", backend.Name()),
		zap.String("addr", srv.Addr()),
		zap.Int("styles", len(table.Entries())),
		zap.Bool("database", cfg.DatabasePath != ""),
		zap.Bool("auth", deps.Auth != nil),
	)

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start(ctx) }()

	var serveErr error
	select {
	case <-ctx.Done():
	case serveErr = <-errCh:
	}

	if err := m.Shutdown(); err != nil {
		return errors.Join(serveErr, err)
	}
	return serveErr
}

// loadStyles reads STYLES_FILE, falling back to the built-in table.
func loadStyles(path string, logger *logging.Logger) (*styles.Table, error) {
	if path == "" {
		return styles.Default(), nil
	}
	table, err := styles.LoadTable(path)
	if err != nil {
		return nil, fmt.Errorf("load styles from %s: %w", path, err)
	}
	logger.Info("Loaded style table", zap.String("path", path), zap.Int("entries", len(table.Entries())))
	return table, nil
}

// openDatabase opens the history database, starts the async writer and the
// retention scheduler, and registers both for shutdown.
func openDatabase(ctx context.Context, m *shutdown.Manager, cfg *core.Config, logger *logging.Logger) (*db.Repository, error) {
	database, err := db.Open(cfg.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	repo, writer := db.NewAsyncRepository(database, recordQueueCapacity, logger)
	m.Register("record-writer", priorityWorkers, func(context.Context) error {
		if !writer.Stop(10 * time.Second) {
			return errors.New("record writer did not drain in time")
		}
		return nil
	})
	m.Register("database", priorityStorage, shutdown.Closer(database))

	if cfg.DBRetentionDays > 0 {
		database.StartCleanupScheduler(ctx, cfg.DBRetentionDays, retentionInterval, func(res db.CleanupResult, err error) {
			if err != nil {
				logger.Warn("Generation history cleanup failed", zap.Error(err))
				return
			}
			if res.Deleted > 0 {
				logger.Info("Pruned generation history",
					zap.Int64("deleted", res.Deleted),
					zap.Duration("duration", res.Duration),
				)
			}
		})
	}

	logger.Info("Generation database opened",
		zap.String("path", cfg.DatabasePath),
		zap.Int("retention_days", cfg.DBRetentionDays),
	)
	return repo, nil
}
