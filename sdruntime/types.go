package sdruntime

import (
	"context"
	"fmt"
	"strings"
)

// Parameter bounds accepted by the native library.
const (
	MinImageSize = 64
	MaxImageSize = 2048
	MinSteps     = 1
	MaxSteps     = 150
	MinCFGScale  = 1.0
	MaxCFGScale  = 30.0
)

// DefaultControlStrength is how strongly a guide image steers the layout.
const DefaultControlStrength = 0.9

// GenerateParams holds the parameters for one local generation.
type GenerateParams struct {
	Prompt         string
	NegativePrompt string
	Width          int
	Height         int
	Steps          int
	CFGScale       float64
	Seed           int64 // must be resolved (non-negative)
	// ControlImage is a PNG path used as ControlNet input; empty for none.
	ControlImage    string
	ControlStrength float64
}

// ValidateParams checks params against the library's limits.
func ValidateParams(params GenerateParams) error {
	if strings.TrimSpace(params.Prompt) == "" {
		return fmt.Errorf("%w: %w", ErrInvalidParams, ErrInvalidPrompt)
	}
	if params.Width < MinImageSize || params.Width > MaxImageSize || params.Width%8 != 0 {
		return fmt.Errorf("%w: width %d", ErrInvalidParams, params.Width)
	}
	if params.Height < MinImageSize || params.Height > MaxImageSize || params.Height%8 != 0 {
		return fmt.Errorf("%w: height %d", ErrInvalidParams, params.Height)
	}
	if params.Steps < MinSteps || params.Steps > MaxSteps {
		return fmt.Errorf("%w: steps %d", ErrInvalidParams, params.Steps)
	}
	if params.CFGScale < MinCFGScale || params.CFGScale > MaxCFGScale {
		return fmt.Errorf("%w: cfg scale %.2f", ErrInvalidParams, params.CFGScale)
	}
	if params.Seed < 0 {
		return fmt.Errorf("%w: unresolved seed %d", ErrInvalidParams, params.Seed)
	}
	return nil
}

// Pipeline is a loaded diffusion model. Implementations are not safe for
// concurrent use; ModelCache serializes access.
type Pipeline interface {
	// Generate returns PNG bytes.
	Generate(ctx context.Context, params GenerateParams) ([]byte, error)
	// Close frees the native model.
	Close() error
}

// Loader creates a Pipeline for a conditioning key.
type Loader interface {
	Load(ctx context.Context, key string) (Pipeline, error)
}

// LoaderFunc adapts a function to Loader.
type LoaderFunc func(ctx context.Context, key string) (Pipeline, error)

// Load calls f.
func (f LoaderFunc) Load(ctx context.Context, key string) (Pipeline, error) {
	return f(ctx, key)
}
