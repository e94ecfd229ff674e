package sdruntime

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"
)

// LocalLoader loads pipelines from a Library. The conditioning key selects
// the ControlNet file loaded next to the base model.
type LocalLoader struct {
	lib *Library
	cfg LocalConfig
}

// NewLocalLoader returns a Loader backed by lib.
func NewLocalLoader(lib *Library, cfg LocalConfig) *LocalLoader {
	return &LocalLoader{lib: lib, cfg: cfg}
}

// Load implements Loader.
func (l *LocalLoader) Load(ctx context.Context, key string) (Pipeline, error) {
	if l.lib == nil {
		return nil, ErrLibraryUnavailable
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	controlNet, err := l.cfg.ControlNetPath(key)
	if err != nil {
		return nil, err
	}
	if err := checkModelFile(l.cfg.ModelPath); err != nil {
		return nil, err
	}
	if controlNet != "" {
		if err := checkModelFile(controlNet); err != nil {
			return nil, err
		}
	}

	if err := l.lib.load(l.cfg.ModelPath, controlNet, l.cfg.EffectiveThreads()); err != nil {
		return nil, err
	}
	return &localPipeline{lib: l.lib, key: key, tempDir: l.cfg.TempDir}, nil
}

type localPipeline struct {
	lib     *Library
	key     string
	tempDir string

	mu       sync.Mutex
	closed   bool
	inFlight int
	freed    bool
}

func (p *localPipeline) Generate(ctx context.Context, params GenerateParams) ([]byte, error) {
	if err := ValidateParams(params); err != nil {
		return nil, err
	}
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil, fmt.Errorf("%w: pipeline %q already released", ErrGenerationFailed, p.key)
	}
	p.inFlight++
	p.mu.Unlock()
	if params.ControlImage != "" && params.ControlStrength == 0 {
		params.ControlStrength = DefaultControlStrength
	}

	dir := p.tempDir
	if dir == "" {
		dir = os.TempDir()
	}
	dst := filepath.Join(dir, "edudiff-"+uuid.New().String()+".png")

	// The native call cannot be interrupted; run it aside so a cancelled
	// request returns promptly. A Close that arrives meanwhile leaves
	// freeing the model to finished, which runs under the library lock.
	type outcome struct {
		data []byte
		err  error
	}
	done := make(chan outcome, 1)
	go func() {
		defer os.Remove(dst)
		if err := p.lib.generate(params, dst, p.finished); err != nil {
			done <- outcome{err: err}
			return
		}
		data, err := os.ReadFile(dst)
		if err != nil {
			err = fmt.Errorf("%w: reading output: %v", ErrGenerationFailed, err)
		}
		done <- outcome{data: data, err: err}
	}()

	var out outcome
	select {
	case out = <-done:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	if out.err != nil {
		return nil, out.err
	}
	if err := ValidateImageData(out.data); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrGenerationFailed, err)
	}
	return out.data, nil
}

// finished runs with the library lock held once gen_image returns.
func (p *localPipeline) finished() {
	p.mu.Lock()
	p.inFlight--
	release := p.closed && p.inFlight == 0 && !p.freed
	if release {
		p.freed = true
	}
	p.mu.Unlock()
	if release {
		p.lib.freeLocked()
	}
}

// Close frees the model. It does not wait for an abandoned native call:
// that call frees the model itself when it returns.
func (p *localPipeline) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	release := p.inFlight == 0 && !p.freed
	if release {
		p.freed = true
	}
	p.mu.Unlock()

	if release {
		p.lib.free()
	}
	return nil
}
