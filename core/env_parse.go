package core

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// GetEnvOrDefault returns the trimmed value of key, or fallback when it is
// unset or blank.
func GetEnvOrDefault(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

// ParseIntEnv reads key as an int. Unset or unparsable values give fallback.
func ParseIntEnv(key string, fallback int) int {
	n, err := strconv.Atoi(GetEnvOrDefault(key, ""))
	if err != nil {
		return fallback
	}
	return n
}

// ParseFloat64Env reads key as a float64 ("7.5").
func ParseFloat64Env(key string, fallback float64) float64 {
	f, err := strconv.ParseFloat(GetEnvOrDefault(key, ""), 64)
	if err != nil {
		return fallback
	}
	return f
}

// ParseBoolEnv accepts true/1/yes/on and false/0/no/off, case-insensitively.
func ParseBoolEnv(key string, fallback bool) bool {
	switch strings.ToLower(GetEnvOrDefault(key, "")) {
	case "true", "1", "yes", "on":
		return true
	case "false", "0", "no", "off":
		return false
	}
	return fallback
}

// ParseDurationEnv reads key as seconds ("90") or a Go duration ("2m30s").
// Non-positive durations give the fallback.
func ParseDurationEnv(key string, fallbackSeconds int) time.Duration {
	fallback := time.Duration(fallbackSeconds) * time.Second
	value := GetEnvOrDefault(key, "")
	if value == "" {
		return fallback
	}
	if secs, err := strconv.Atoi(value); err == nil {
		return time.Duration(secs) * time.Second
	}
	if d, err := time.ParseDuration(value); err == nil && d > 0 {
		return d
	}
	return fallback
}
