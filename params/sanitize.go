package params

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"unicode/utf8"

	"edudiff/styles"
)

// RawParams is user input as it arrives from a form: every field is text
// and any of them may be empty or garbage.
type RawParams struct {
	Prompt       string
	Style        string
	Quality      string
	Steps        string
	Guidance     string
	Width        string
	Height       string
	Seed         string
	Conditioning string
}

// Params is a sanitized parameter set. Every numeric field is within the
// Limits it was sanitized against.
type Params struct {
	Prompt       string  `json:"prompt"`
	Style        string  `json:"style"`
	Quality      string  `json:"quality,omitempty"`
	Steps        int     `json:"steps"`
	Guidance     float64 `json:"guidance"`
	Width        int     `json:"width"`
	Height       int     `json:"height"`
	Seed         int64   `json:"seed"` // -1 means random
	Conditioning string  `json:"conditioning,omitempty"`
}

// Warning records one adjustment the sanitizer made.
type Warning struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Result is the outcome of Sanitize. Params is always usable; Valid is
// false only when the prompt was empty under the reject policy, in which
// case Message carries the user-facing warning.
type Result struct {
	Params   Params
	Valid    bool
	Message  string
	Warnings []Warning
}

// Sanitize clamps every field of raw into limits. It never fails.
func Sanitize(raw RawParams, limits Limits) Result {
	res := Result{Valid: true}
	warn := func(field, format string, args ...interface{}) {
		res.Warnings = append(res.Warnings, Warning{Field: field, Message: fmt.Sprintf(format, args...)})
	}

	p := Params{
		Style:        strings.TrimSpace(raw.Style),
		Conditioning: strings.ToLower(strings.TrimSpace(raw.Conditioning)),
	}

	// prompt
	prompt, truncated := TruncatePrompt(raw.Prompt, limits.MaxPromptChars)
	if truncated {
		warn("prompt", "truncated to %d characters", limits.MaxPromptChars)
	}
	if prompt == "" {
		if limits.EmptyPolicy == PolicyFallback && strings.TrimSpace(limits.FallbackPrompt) != "" {
			prompt, _ = TruncatePrompt(limits.FallbackPrompt, limits.MaxPromptChars)
			warn("prompt", "empty prompt replaced by fallback")
		} else {
			res.Valid = false
			res.Message = EmptyPromptWarning
		}
	}
	p.Prompt = prompt

	// steps, with the quality preset taking precedence
	steps, ok := parseInt(raw.Steps)
	if !ok {
		if strings.TrimSpace(raw.Steps) != "" {
			warn("steps", "invalid value %q, using %d", raw.Steps, limits.DefaultSteps)
		}
		steps = limits.DefaultSteps
	}
	if q := strings.TrimSpace(raw.Quality); q != "" {
		if preset, found := styles.LookupPreset(q); found {
			p.Quality = preset.Label
			steps = preset.Steps
		} else {
			warn("quality", "unknown preset %q ignored", q)
		}
	}
	p.Steps = ClampSteps(steps, limits)
	if p.Steps != steps {
		warn("steps", "%d clamped to %d", steps, p.Steps)
	}

	// guidance
	guidance, ok := parseFloat(raw.Guidance)
	if !ok {
		if strings.TrimSpace(raw.Guidance) != "" {
			warn("guidance", "invalid value %q, using %.1f", raw.Guidance, limits.DefaultGuidance)
		}
		guidance = limits.DefaultGuidance
	}
	p.Guidance = ClampGuidance(guidance, limits)
	if p.Guidance != guidance {
		warn("guidance", "%.2f clamped to %.2f", guidance, p.Guidance)
	}

	// width / height
	p.Width = sanitizeSide("width", raw.Width, limits, warn)
	p.Height = sanitizeSide("height", raw.Height, limits, warn)

	// seed
	p.Seed = -1
	if s := strings.TrimSpace(raw.Seed); s != "" {
		seed, err := strconv.ParseInt(s, 10, 64)
		switch {
		case err != nil:
			warn("seed", "invalid value %q, using random", raw.Seed)
		case seed >= 0:
			p.Seed = seed
		}
	}

	res.Params = p
	return res
}

func sanitizeSide(field, raw string, limits Limits, warn func(string, string, ...interface{})) int {
	side, ok := parseInt(raw)
	if !ok {
		if strings.TrimSpace(raw) != "" {
			warn(field, "invalid value %q, using %d", raw, limits.DefaultSide)
		}
		side = limits.DefaultSide
	}
	clamped := ClampSide(side, limits)
	if clamped != side {
		warn(field, "%d adjusted to %d", side, clamped)
	}
	return clamped
}

// ClampSteps bounds steps to [MinSteps, MaxSteps].
func ClampSteps(steps int, limits Limits) int {
	return clampInt(steps, limits.MinSteps, limits.MaxSteps)
}

// ClampGuidance bounds guidance to [MinGuidance, MaxGuidance]. NaN maps to
// the default; infinities map to the nearest bound.
func ClampGuidance(g float64, limits Limits) float64 {
	if math.IsNaN(g) {
		g = limits.DefaultGuidance
	}
	return math.Max(limits.MinGuidance, math.Min(limits.MaxGuidance, g))
}

// ClampSide bounds a side length to [MinSide, MaxSide] and rounds it down
// to a multiple of SideMultiple.
func ClampSide(side int, limits Limits) int {
	side = clampInt(side, limits.MinSide, limits.MaxSide)
	side -= side % SideMultiple
	if side < limits.MinSide {
		side = limits.MinSide
	}
	return side
}

// TruncatePrompt trims surrounding whitespace and cuts the prompt to at
// most max runes. It reports whether anything was cut.
func TruncatePrompt(prompt string, max int) (string, bool) {
	prompt = strings.TrimSpace(prompt)
	if max <= 0 || utf8.RuneCountInString(prompt) <= max {
		return prompt, false
	}
	r := []rune(prompt)
	return strings.TrimSpace(string(r[:max])), true
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// parseInt accepts integers and decimal numbers (rounded), as sliders may
// post "25.0".
func parseInt(s string) (int, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	if v, err := strconv.Atoi(s); err == nil {
		return v, true
	}
	f, ok := parseFloat(s)
	if !ok || math.IsInf(f, 0) || math.Abs(f) > math.MaxInt32 {
		return 0, false
	}
	return int(math.Round(f)), true
}

func parseFloat(s string) (float64, bool) {
	s = strings.TrimSpace(strings.Replace(s, ",", ".", 1))
	if s == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) {
		return 0, false
	}
	return f, true
}
