package sdruntime

import (
	"context"
	"fmt"
	"runtime"
	"runtime/debug"
	"sync"
	"time"

	"go.uber.org/zap"

	"edudiff/logging"
)

// CacheStats counts cache transitions since creation.
type CacheStats struct {
	Key          string `json:"key"`
	Loaded       bool   `json:"loaded"`
	Loads        int    `json:"loads"`
	Hits         int    `json:"hits"`
	Releases     int    `json:"releases"`
	LoadFailures int    `json:"load_failures"`
}

// LoadObserver is told about every load attempt.
type LoadObserver func(key string, elapsed time.Duration, err error)

// ModelCache keeps at most one Pipeline alive, keyed by conditioning mode.
//
// States: EMPTY, LOADED(k). Acquire(k) on LOADED(k) is a hit. Acquire(k2)
// on LOADED(k) releases to EMPTY before loading k2. A failed load leaves
// the cache EMPTY.
type ModelCache struct {
	mu     sync.Mutex
	loader Loader
	logger *logging.Logger
	onLoad LoadObserver

	key    string
	handle Pipeline
	closed bool
	stats  CacheStats
}

// CacheOption configures a ModelCache.
type CacheOption func(*ModelCache)

// WithCacheLogger sets the logger for cache transitions.
func WithCacheLogger(logger *logging.Logger) CacheOption {
	return func(c *ModelCache) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithLoadObserver registers fn to be called after each load attempt.
func WithLoadObserver(fn LoadObserver) CacheOption {
	return func(c *ModelCache) {
		c.onLoad = fn
	}
}

// freeMemory returns freed native and Go memory to the OS.
var freeMemory = func() {
	runtime.GC()
	debug.FreeOSMemory()
}

// NewModelCache returns an empty cache that loads pipelines with loader.
func NewModelCache(loader Loader, opts ...CacheOption) *ModelCache {
	c := &ModelCache{
		loader: loader,
		logger: logging.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Acquire returns the pipeline for key, loading it if another key (or
// nothing) is cached. The returned pipeline may be released by a later
// Acquire with a different key; use WithPipeline to hold it safely.
func (c *ModelCache) Acquire(ctx context.Context, key string) (Pipeline, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.acquireLocked(ctx, key)
}

// WithPipeline acquires the pipeline for key and runs fn while holding the
// cache lock, so no other caller can release it mid-generation. If fn
// fails the pipeline is force-released before the error is returned.
func (c *ModelCache) WithPipeline(ctx context.Context, key string, fn func(Pipeline) error) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	p, err := c.acquireLocked(ctx, key)
	if err != nil {
		return err
	}
	if err := fn(p); err != nil {
		c.logger.Warn("Generation failed, releasing model",
			zap.String("key", key),
			zap.Error(err))
		c.releaseLocked()
		return err
	}
	return nil
}

// Release frees the cached pipeline, if any. The entry is cleared even if
// closing fails; the close error is returned.
func (c *ModelCache) Release() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.releaseLocked()
}

// Close releases the pipeline and makes later acquisitions fail with
// ErrCacheClosed. Close is safe to call multiple times.
func (c *ModelCache) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	return c.releaseLocked()
}

// Key returns the cached key and whether a pipeline is loaded.
func (c *ModelCache) Key() (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.key, c.handle != nil
}

// Stats returns a snapshot of the cache counters.
func (c *ModelCache) Stats() CacheStats {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := c.stats
	s.Key = c.key
	s.Loaded = c.handle != nil
	return s
}

func (c *ModelCache) acquireLocked(ctx context.Context, key string) (Pipeline, error) {
	if c.closed {
		return nil, ErrCacheClosed
	}
	if c.handle != nil && c.key == key {
		c.stats.Hits++
		return c.handle, nil
	}

	// Errors from the previous pipeline must not block the next load.
	_ = c.releaseLocked()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	start := time.Now()
	c.logger.Info("Loading model", zap.String("key", key))
	p, err := c.loader.Load(ctx, key)
	elapsed := time.Since(start)
	if c.onLoad != nil {
		c.onLoad(key, elapsed, err)
	}
	if err == nil && p == nil {
		err = fmt.Errorf("%w: loader returned no pipeline", ErrModelLoadFailed)
	}
	if err != nil {
		c.stats.LoadFailures++
		c.logger.Error("Model load failed",
			zap.String("key", key),
			zap.Duration("elapsed", elapsed),
			zap.Error(err))
		return nil, err
	}

	c.key = key
	c.handle = p
	c.stats.Loads++
	c.logger.Info("Model loaded",
		zap.String("key", key),
		zap.Duration("elapsed", elapsed))
	return p, nil
}

func (c *ModelCache) releaseLocked() error {
	if c.handle == nil {
		c.key = ""
		return nil
	}

	key := c.key
	err := c.handle.Close()
	c.handle = nil
	c.key = ""
	c.stats.Releases++
	freeMemory()

	if err != nil {
		c.logger.Warn("Model release reported an error",
			zap.String("key", key),
			zap.Error(err))
		return fmt.Errorf("release %q: %w", key, err)
	}
	c.logger.Info("Model released", zap.String("key", key))
	return nil
}
