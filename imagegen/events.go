package imagegen

import (
	"time"

	"edudiff/metrics"
)

// EventType names a generation lifecycle event.
type EventType string

const (
	EventStarted   EventType = "generation_started"
	EventCompleted EventType = "generation_completed"
	EventFailed    EventType = "generation_failed"
)

// Event is broadcast to status subscribers such as the web UI feed.
type Event struct {
	Type      EventType     `json:"type"`
	ID        string        `json:"id"`
	Timestamp time.Time     `json:"timestamp"`
	Style     string        `json:"style,omitempty"`
	Prompt    string        `json:"prompt,omitempty"`
	Status    string        `json:"status,omitempty"`
	Category  ErrorCategory `json:"category,omitempty"`
	ImageName string        `json:"image_name,omitempty"`
	Metadata  *Metadata     `json:"metadata,omitempty"`
}

// EventSink receives lifecycle events. Publish must not block.
type EventSink interface {
	Publish(Event)
}

// RecordSink persists finished generations, e.g. to the SQLite log.
// Record must not block for long; failures are the sink's to log.
type RecordSink interface {
	Record(metrics.Record)
}

// MetricsObserver receives generation counters. *metrics.Collectors
// satisfies it.
type MetricsObserver interface {
	ObserveGeneration(backend, style, outcome string, elapsed time.Duration)
	GenerationStarted() func()
}

var _ MetricsObserver = (*metrics.Collectors)(nil)
