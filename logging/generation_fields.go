package logging

import (
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// GenerationFields describes one image generation for structured logs.
type GenerationFields struct {
	Backend      string
	Style        string
	Conditioning string
	Steps        int
	Guidance     float64
	Width        int
	Height       int
	Seed         int64
	Duration     time.Duration
}

// MarshalLogObject implements zapcore.ObjectMarshaler.
func (g GenerationFields) MarshalLogObject(enc zapcore.ObjectEncoder) error {
	enc.AddString("backend", g.Backend)
	enc.AddString("style", g.Style)
	if g.Conditioning != "" {
		enc.AddString("conditioning", g.Conditioning)
	}
	enc.AddInt("steps", g.Steps)
	enc.AddFloat64("guidance", g.Guidance)
	enc.AddInt("width", g.Width)
	enc.AddInt("height", g.Height)
	enc.AddInt64("seed", g.Seed)
	if g.Duration > 0 {
		enc.AddDuration("duration", g.Duration)
	}
	return nil
}

// Generation wraps g as a single nested "generation" field.
//
//	logger.Info("image generated", logging.Generation(fields))
func Generation(g GenerationFields) zap.Field {
	return zap.Object("generation", g)
}

// PromptField logs a prompt truncated to max runes so multi-kilobyte
// prompts don't flood the log.
func PromptField(key, prompt string, max int) zap.Field {
	r := []rune(prompt)
	if max > 0 && len(r) > max {
		return zap.String(key, string(r[:max])+"…")
	}
	return zap.String(key, prompt)
}
