package webui

import (
	"context"
	"net/http"
	"strconv"
	"sync"
	"time"
)

// attemptRecord counts hits from one client inside a window.
type attemptRecord struct {
	Count   int
	ResetAt time.Time
}

func (a attemptRecord) expired(now time.Time) bool {
	return !now.Before(a.ResetAt)
}

// RateLimiter tracks attempts per client IP. After maxAttempts inside the
// window the client is blocked until the block duration elapses.
//
// The same type guards two things: failed logins (counted explicitly via
// RecordAttempt) and generation requests (counted by Middleware).
type RateLimiter struct {
	mu          sync.RWMutex
	attempts    map[string]attemptRecord
	maxAttempts int
	window      time.Duration
	block       time.Duration
	now         func() time.Time
}

// NewRateLimiter creates a limiter allowing maxAttempts per window and
// blocking for block once the limit is hit.
func NewRateLimiter(maxAttempts int, window, block time.Duration) *RateLimiter {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	return &RateLimiter{
		attempts:    make(map[string]attemptRecord),
		maxAttempts: maxAttempts,
		window:      window,
		block:       block,
		now:         time.Now,
	}
}

// Allow reports whether ip may make another attempt, and if not, how long
// until it may.
func (r *RateLimiter) Allow(ip string) (bool, time.Duration) {
	r.mu.RLock()
	record, exists := r.attempts[ip]
	r.mu.RUnlock()

	now := r.now()
	if !exists || record.expired(now) {
		return true, 0
	}
	if record.Count >= r.maxAttempts {
		return false, record.ResetAt.Sub(now)
	}
	return true, 0
}

// RecordAttempt counts one attempt for ip.
func (r *RateLimiter) RecordAttempt(ip string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	record, exists := r.attempts[ip]
	if !exists || record.expired(now) {
		record = attemptRecord{ResetAt: now.Add(r.window)}
	}

	record.Count++
	// Reaching the limit turns the window into a block.
	if record.Count == r.maxAttempts {
		record.ResetAt = now.Add(r.block)
	}
	r.attempts[ip] = record
}

// Reset forgets ip, e.g. after a successful login.
func (r *RateLimiter) Reset(ip string) {
	r.mu.Lock()
	delete(r.attempts, ip)
	r.mu.Unlock()
}

// AttemptCount returns the live attempt count for ip.
func (r *RateLimiter) AttemptCount(ip string) int {
	r.mu.RLock()
	record, exists := r.attempts[ip]
	r.mu.RUnlock()

	if !exists || record.expired(r.now()) {
		return 0
	}
	return record.Count
}

// Cleanup drops expired records and returns how many were removed.
func (r *RateLimiter) Cleanup() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	removed := 0
	for ip, record := range r.attempts {
		if record.expired(now) {
			delete(r.attempts, ip)
			removed++
		}
	}
	return removed
}

// StartCleanupTicker runs Cleanup every interval until ctx is done.
func (r *RateLimiter) StartCleanupTicker(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				r.Cleanup()
			}
		}
	}()
}

// Count returns the number of tracked clients.
func (r *RateLimiter) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.attempts)
}

// Middleware counts every request and answers 429 with Retry-After once
// the client is over the limit.
func (r *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		ip := ClientIP(req)
		if ok, remaining := r.Allow(ip); !ok {
			w.Header().Set("Retry-After", FormatRetryAfter(remaining))
			writeError(w, http.StatusTooManyRequests, "Demasiadas solicitudes, intenta de nuevo más tarde")
			return
		}
		r.RecordAttempt(ip)
		next.ServeHTTP(w, req)
	})
}

// FormatRetryAfter renders d as whole seconds, rounded up, minimum 1.
func FormatRetryAfter(d time.Duration) string {
	secs := int((d + time.Second - 1) / time.Second)
	if secs < 1 {
		secs = 1
	}
	return strconv.Itoa(secs)
}
