package metrics

// HistoryRecorder is the view of the session history used by the
// generator and the web UI. Implementations must be safe for concurrent use.
type HistoryRecorder interface {
	// Append adds a finished generation.
	Append(rec Record)

	// Recent returns up to limit records, newest first.
	Recent(limit int) []Record

	// StyleCounts returns how many generations used each style label.
	StyleCounts() map[string]int

	// Summary returns session totals.
	Summary() Summary
}

var _ HistoryRecorder = (*History)(nil)
