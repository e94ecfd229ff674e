package webui

import (
	"testing"
	"time"
)

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		name     string
		duration time.Duration
		expected string
	}{
		{"zero", 0, "0s"},
		{"milliseconds", 850 * time.Millisecond, "850ms"},
		{"one second", time.Second, "1s"},
		{"fractional seconds", 12*time.Second + 400*time.Millisecond, "12.4s"},
		{"rounds to tenths", 12*time.Second + 449*time.Millisecond, "12.4s"},
		{"whole seconds", 45 * time.Second, "45s"},
		{"one minute", time.Minute, "1m 0s"},
		{"minutes and seconds", 2*time.Minute + 30*time.Second, "2m 30s"},
		{"hours", 2*time.Hour + 34*time.Minute, "2h 34m"},
		{"days", 3*24*time.Hour + 5*time.Hour, "3d 5h"},
		{"negative", -5 * time.Minute, "-5m 0s"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := FormatDuration(tt.duration)
			if result != tt.expected {
				t.Errorf("FormatDuration(%v) = %q, want %q", tt.duration, result, tt.expected)
			}
		})
	}
}
