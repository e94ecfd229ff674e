// Package imagegen turns a sanitized request into an educational image:
// it composes the styled prompt, calls a diffusion backend, classifies
// failures into user-facing statuses and records the outcome.
package imagegen

import (
	"context"
	"errors"
	"fmt"

	"edudiff/core"
	"edudiff/logging"
	"edudiff/sdruntime"

	"go.uber.org/zap"
)

// ErrEmptyImage is returned when a backend reports success without an image.
var ErrEmptyImage = errors.New("imagegen: backend returned no image")

// BackendRequest is what a backend receives: composed prompts and
// in-range, resolved parameters.
type BackendRequest struct {
	Prompt         string
	NegativePrompt string
	Steps          int
	Guidance       float64
	Width          int
	Height         int
	Seed           int64 // already resolved, never negative
	// GuideImage is a normalized PNG, set only together with Conditioning.
	GuideImage   []byte
	Conditioning string
}

// BackendResult holds the first generated image and the seed used.
type BackendResult struct {
	Image []byte
	Seed  int64
}

// Backend is a diffusion service. Implementations must be safe for
// concurrent use.
type Backend interface {
	Name() string
	Generate(ctx context.Context, req BackendRequest) (*BackendResult, error)
}

// Conditioner is implemented by backends that can use guide images.
type Conditioner interface {
	SupportsConditioning(key string) bool
}

// NewBackendFromConfig builds the backend selected by BACKEND. For the
// local backend cache must be non-nil.
func NewBackendFromConfig(cfg *core.Config, cache *sdruntime.ModelCache, logger *logging.Logger) (Backend, error) {
	if cfg == nil {
		return nil, fmt.Errorf("imagegen: config cannot be nil")
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	switch cfg.Backend {
	case core.BackendHosted, "":
		logger.Info("Using hosted inference backend",
			zap.String("url", cfg.HFAPIURL),
			zap.String("model", cfg.HFModel))
		return NewHostedBackend(cfg), nil
	case core.BackendOpenAI:
		logger.Info("Using OpenAI image backend",
			zap.String("model", cfg.OpenAIImageModel))
		return NewOpenAIBackend(cfg), nil
	case core.BackendLocal:
		if cache == nil {
			return nil, fmt.Errorf("imagegen: local backend requires a model cache")
		}
		logger.Info("Using local stable diffusion backend",
			zap.String("model", cfg.SDModelPath))
		return NewLocalBackend(cache, sdruntime.LocalConfigFromCore(cfg)), nil
	default:
		return nil, fmt.Errorf("imagegen: unknown backend %q", cfg.Backend)
	}
}
