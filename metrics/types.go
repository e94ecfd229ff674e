// Package metrics provides the session history and Prometheus collectors.
package metrics

import (
	"time"

	"edudiff/vision"
)

// Outcome values for a Record. Failures use the error category name
// (rate_limited, auth, ...), so OutcomeSuccess is the only fixed value.
const (
	OutcomeSuccess = "success"
)

// Record is one finished generation in the session history.
type Record struct {
	ID             string          `json:"id"`
	Timestamp      time.Time       `json:"timestamp"`
	Style          string          `json:"style"`
	Prompt         string          `json:"prompt"`
	ComposedPrompt string          `json:"composed_prompt,omitempty"`
	NegativePrompt string          `json:"negative_prompt,omitempty"`
	Backend        string          `json:"backend"`
	Conditioning   string          `json:"conditioning,omitempty"`
	Steps          int             `json:"steps"`
	Guidance       float64         `json:"guidance"`
	Width          int             `json:"width"`
	Height         int             `json:"height"`
	Seed           int64           `json:"seed"`
	Duration       time.Duration   `json:"duration"`
	Outcome        string          `json:"outcome"`
	Status         string          `json:"status"`
	ImagePath      string          `json:"image_path,omitempty"`
	Quality        *vision.Quality `json:"quality,omitempty"`
}

// Succeeded reports whether the record is a successful generation.
func (r Record) Succeeded() bool {
	return r.Outcome == OutcomeSuccess
}

// Summary aggregates the whole session, including records that have been
// evicted from the bounded history.
type Summary struct {
	Total       int64         `json:"total"`
	Successes   int64         `json:"successes"`
	Failures    int64         `json:"failures"`
	AvgDuration time.Duration `json:"avg_duration"`
	// AvgDurationMs mirrors AvgDuration for JSON consumers.
	AvgDurationMs int64            `json:"avg_duration_ms"`
	ByOutcome     map[string]int64 `json:"by_outcome"`
}
