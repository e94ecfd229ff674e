// Package params turns raw form input into a safe, in-range parameter set
// for a diffusion backend.
package params

import (
	"edudiff/core"
)

// Empty prompt handling.
const (
	PolicyReject   = core.EmptyPromptReject
	PolicyFallback = core.EmptyPromptFallback
)

// EmptyPromptWarning is the status shown when an empty prompt is rejected.
const EmptyPromptWarning = "⚠️ Por favor, ingresa una descripción del contenido educativo."

// SideMultiple is the granularity diffusion models accept for width/height.
const SideMultiple = 8

// Limits holds the bounds and defaults the sanitizer applies.
type Limits struct {
	MinSteps        int
	MaxSteps        int
	MinGuidance     float64
	MaxGuidance     float64
	MinSide         int
	MaxSide         int
	MaxPromptChars  int
	EmptyPolicy     string
	FallbackPrompt  string
	DefaultSteps    int
	DefaultGuidance float64
	DefaultSide     int
}

// DefaultLimits returns steps 10-50 (25), guidance 1-20 (7.5), sides
// 512-1024 (1024), prompts up to 2000 characters, and rejects empty prompts.
func DefaultLimits() Limits {
	return Limits{
		MinSteps:        10,
		MaxSteps:        50,
		MinGuidance:     1.0,
		MaxGuidance:     20.0,
		MinSide:         512,
		MaxSide:         1024,
		MaxPromptChars:  2000,
		EmptyPolicy:     PolicyReject,
		DefaultSteps:    25,
		DefaultGuidance: 7.5,
		DefaultSide:     1024,
	}
}

// LimitsFromConfig copies the sanitizer settings out of cfg.
func LimitsFromConfig(cfg *core.Config) Limits {
	return Limits{
		MinSteps:        cfg.MinSteps,
		MaxSteps:        cfg.MaxSteps,
		MinGuidance:     cfg.MinGuidance,
		MaxGuidance:     cfg.MaxGuidance,
		MinSide:         cfg.MinSide,
		MaxSide:         cfg.MaxSide,
		MaxPromptChars:  cfg.MaxPromptChars,
		EmptyPolicy:     cfg.EmptyPromptPolicy,
		FallbackPrompt:  cfg.FallbackPrompt,
		DefaultSteps:    cfg.DefaultSteps,
		DefaultGuidance: cfg.DefaultGuidance,
		DefaultSide:     cfg.DefaultSide,
	}
}
