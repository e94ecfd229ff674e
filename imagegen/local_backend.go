package imagegen

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"edudiff/core"
	"edudiff/sdruntime"
	"edudiff/vision"
)

// LocalBackend runs the stable-diffusion library through the model cache.
// The conditioning key selects which ControlNet is loaded with the model.
type LocalBackend struct {
	cache *sdruntime.ModelCache
	cfg   sdruntime.LocalConfig
}

// NewLocalBackend creates a backend over cache.
func NewLocalBackend(cache *sdruntime.ModelCache, cfg sdruntime.LocalConfig) *LocalBackend {
	return &LocalBackend{cache: cache, cfg: cfg}
}

// Name returns "local".
func (b *LocalBackend) Name() string { return core.BackendLocal }

// SupportsConditioning reports whether a ControlNet is configured for key.
func (b *LocalBackend) SupportsConditioning(key string) bool {
	_, err := b.cfg.ControlNetPath(key)
	return err == nil
}

// Generate acquires the pipeline for req.Conditioning and runs it. Any
// failure after acquisition releases the cached model.
func (b *LocalBackend) Generate(ctx context.Context, req BackendRequest) (*BackendResult, error) {
	key := ""
	if req.Conditioning != "" && len(req.GuideImage) > 0 {
		key = req.Conditioning
	}

	params := sdruntime.GenerateParams{
		Prompt:         req.Prompt,
		NegativePrompt: req.NegativePrompt,
		Width:          req.Width,
		Height:         req.Height,
		Steps:          req.Steps,
		CFGScale:       req.Guidance,
		Seed:           req.Seed,
	}

	if key != "" {
		path, cleanup, err := b.writeControlImage(req.GuideImage, req.Width, req.Height)
		if err != nil {
			return nil, err
		}
		defer cleanup()
		params.ControlImage = path
		params.ControlStrength = sdruntime.DefaultControlStrength
	}

	var img []byte
	err := b.cache.WithPipeline(ctx, key, func(p sdruntime.Pipeline) error {
		var genErr error
		img, genErr = p.Generate(ctx, params)
		return genErr
	})
	if err != nil {
		return nil, err
	}
	return &BackendResult{Image: img, Seed: req.Seed}, nil
}

// writeControlImage resizes the guide to the output size, as ControlNet
// expects, and writes it to a temp PNG.
func (b *LocalBackend) writeControlImage(guide []byte, width, height int) (string, func(), error) {
	img, err := vision.DecodeImage(guide)
	if err != nil {
		return "", nil, err
	}
	resized, err := vision.ResizeExact(img, width, height)
	if err != nil {
		return "", nil, err
	}
	data, err := vision.EncodePNG(resized)
	if err != nil {
		return "", nil, err
	}

	dir := b.cfg.TempDir
	if dir == "" {
		dir = os.TempDir()
	}
	path := filepath.Join(dir, "edudiff_control_"+uuid.New().String()+".png")
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return "", nil, fmt.Errorf("imagegen: failed to write control image: %w", err)
	}
	return path, func() { os.Remove(path) }, nil
}
