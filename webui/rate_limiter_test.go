package webui

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

// fakeClock lets tests move the limiter's notion of time.
type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time          { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestLimiter(max int, window, block time.Duration) (*RateLimiter, *fakeClock) {
	clock := &fakeClock{t: time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)}
	rl := NewRateLimiter(max, window, block)
	rl.now = clock.now
	return rl, clock
}

func TestRateLimiter_BlocksAfterMaxAttempts(t *testing.T) {
	rl, clock := newTestLimiter(3, time.Minute, 5*time.Minute)
	ip := "192.0.2.1"

	for i := 0; i < 3; i++ {
		if ok, _ := rl.Allow(ip); !ok {
			t.Fatalf("attempt %d blocked early", i+1)
		}
		rl.RecordAttempt(ip)
	}

	ok, remaining := rl.Allow(ip)
	if ok {
		t.Fatal("Allow() = true after max attempts")
	}
	if remaining != 5*time.Minute {
		t.Errorf("remaining = %v, want 5m0s", remaining)
	}

	clock.advance(5 * time.Minute)
	if ok, _ := rl.Allow(ip); !ok {
		t.Error("Allow() = false after the block elapsed")
	}
	if got := rl.AttemptCount(ip); got != 0 {
		t.Errorf("AttemptCount() = %d after expiry, want 0", got)
	}
}

func TestRateLimiter_WindowExpiryResetsCount(t *testing.T) {
	rl, clock := newTestLimiter(3, time.Minute, 5*time.Minute)
	ip := "192.0.2.1"

	rl.RecordAttempt(ip)
	rl.RecordAttempt(ip)
	clock.advance(time.Minute)
	rl.RecordAttempt(ip)

	if got := rl.AttemptCount(ip); got != 1 {
		t.Errorf("AttemptCount() = %d, want 1", got)
	}
	if ok, _ := rl.Allow(ip); !ok {
		t.Error("Allow() = false inside a fresh window")
	}
}

func TestRateLimiter_ResetAndCleanup(t *testing.T) {
	rl, clock := newTestLimiter(2, time.Minute, time.Minute)

	rl.RecordAttempt("a")
	rl.RecordAttempt("b")
	rl.Reset("a")
	if rl.Count() != 1 {
		t.Fatalf("Count() = %d after Reset, want 1", rl.Count())
	}

	clock.advance(2 * time.Minute)
	if removed := rl.Cleanup(); removed != 1 {
		t.Errorf("Cleanup() = %d, want 1", removed)
	}
	if rl.Count() != 0 {
		t.Errorf("Count() = %d, want 0", rl.Count())
	}
}

func TestRateLimiter_IPsAreIndependent(t *testing.T) {
	rl, _ := newTestLimiter(1, time.Minute, time.Minute)

	rl.RecordAttempt("a")
	if ok, _ := rl.Allow("a"); ok {
		t.Error("a should be blocked")
	}
	if ok, _ := rl.Allow("b"); !ok {
		t.Error("b should not be blocked")
	}
}

func TestRateLimiter_Middleware(t *testing.T) {
	rl, _ := newTestLimiter(2, time.Minute, 90*time.Second)
	handler := rl.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	codes := make([]int, 0, 3)
	var last *httptest.ResponseRecorder
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodPost, "/api/generate", nil)
		req.RemoteAddr = "198.51.100.7:5000"
		last = httptest.NewRecorder()
		handler.ServeHTTP(last, req)
		codes = append(codes, last.Code)
	}

	want := []int{http.StatusNoContent, http.StatusNoContent, http.StatusTooManyRequests}
	for i := range want {
		if codes[i] != want[i] {
			t.Errorf("request %d status = %d, want %d", i, codes[i], want[i])
		}
	}
	if got := last.Header().Get("Retry-After"); got != "90" {
		t.Errorf("Retry-After = %q, want 90", got)
	}
}

func TestFormatRetryAfter(t *testing.T) {
	tests := []struct {
		in   time.Duration
		want string
	}{
		{0, "1"},
		{-time.Second, "1"},
		{300 * time.Millisecond, "1"},
		{time.Second, "1"},
		{1500 * time.Millisecond, "2"},
		{5 * time.Minute, "300"},
	}
	for _, tt := range tests {
		t.Run(tt.in.String(), func(t *testing.T) {
			if got := FormatRetryAfter(tt.in); got != tt.want {
				t.Errorf("FormatRetryAfter(%v) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}
