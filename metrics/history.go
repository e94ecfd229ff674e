package metrics

import (
	"sync"
	"time"
)

// DefaultHistoryCapacity bounds the history when no capacity is given.
const DefaultHistoryCapacity = 500

// History is an append-only, bounded, in-memory log of generations. When
// full the oldest records are dropped; style counts and totals keep
// counting. Nothing is persisted.
//
//	history := NewHistory(500)
//	history.Append(rec)
//	recent := history.Recent(10)
type History struct {
	mu sync.RWMutex

	records []Record // ring buffer
	cap     int
	head    int // next write index
	size    int

	styleCounts   map[string]int
	byOutcome     map[string]int64
	total         int64
	successes     int64
	totalDuration time.Duration
}

// NewHistory returns an empty history holding at most capacity records.
func NewHistory(capacity int) *History {
	if capacity < 1 {
		capacity = DefaultHistoryCapacity
	}
	return &History{
		records:     make([]Record, capacity),
		cap:         capacity,
		styleCounts: make(map[string]int),
		byOutcome:   make(map[string]int64),
	}
}

// Append adds rec, evicting the oldest record when full.
func (h *History) Append(rec Record) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.records[h.head] = rec
	h.head = (h.head + 1) % h.cap
	if h.size < h.cap {
		h.size++
	}

	h.total++
	if rec.Succeeded() {
		h.successes++
	}
	h.totalDuration += rec.Duration
	h.styleCounts[rec.Style]++
	h.byOutcome[rec.Outcome]++
}

// Len returns the number of retained records.
func (h *History) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.size
}

// Cap returns the capacity.
func (h *History) Cap() int {
	return h.cap
}

// Recent returns up to limit records, newest first. A non-positive limit
// returns every retained record.
func (h *History) Recent(limit int) []Record {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if limit <= 0 || limit > h.size {
		limit = h.size
	}
	out := make([]Record, limit)
	for i := 0; i < limit; i++ {
		idx := (h.head - 1 - i + h.cap) % h.cap
		out[i] = h.records[idx]
	}
	return out
}

// RecentSuccessful returns up to limit successful records that have an
// image on disk, newest first.
func (h *History) RecentSuccessful(limit int) []Record {
	h.mu.RLock()
	defer h.mu.RUnlock()

	out := make([]Record, 0, limit)
	for i := 0; i < h.size && len(out) < limit; i++ {
		rec := h.records[(h.head-1-i+h.cap)%h.cap]
		if rec.Succeeded() && rec.ImagePath != "" {
			out = append(out, rec)
		}
	}
	return out
}

// StyleCounts returns a copy of the per-style generation counts.
func (h *History) StyleCounts() map[string]int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	out := make(map[string]int, len(h.styleCounts))
	for k, v := range h.styleCounts {
		out[k] = v
	}
	return out
}

// Summary returns session totals.
func (h *History) Summary() Summary {
	h.mu.RLock()
	defer h.mu.RUnlock()

	s := Summary{
		Total:     h.total,
		Successes: h.successes,
		Failures:  h.total - h.successes,
		ByOutcome: make(map[string]int64, len(h.byOutcome)),
	}
	for k, v := range h.byOutcome {
		s.ByOutcome[k] = v
	}
	if h.total > 0 {
		s.AvgDuration = h.totalDuration / time.Duration(h.total)
		s.AvgDurationMs = s.AvgDuration.Milliseconds()
	}
	return s
}
