package imagegen

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/sashabaranov/go-openai"

	"edudiff/core"
	"edudiff/sdruntime"
	"edudiff/vision"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want ErrorCategory
	}{
		{"nil", nil, CategoryNone},
		{"rate limit text", errors.New("Rate limit reached for requests"), CategoryRateLimited},
		{"queue text", errors.New("request is in queue"), CategoryRateLimited},
		{"loading text", errors.New("Model black-forest-labs/FLUX.1-schnell is currently loading"), CategoryLoading},
		{"cold start text", errors.New("cold start in progress"), CategoryLoading},
		{"auth text", errors.New("Unauthorized"), CategoryAuth},
		{"forbidden text", errors.New("403 Forbidden"), CategoryAuth},
		{"billing text", errors.New("insufficient balance"), CategoryBilling},
		{"quota text", errors.New("monthly quota used up"), CategoryBilling},
		{"unknown text", errors.New("connection reset by peer"), CategoryUnknown},

		{"http 429", &HTTPError{StatusCode: 429, Message: "slow down"}, CategoryRateLimited},
		{"http 503 estimated time", &HTTPError{StatusCode: 503, Message: "busy", EstimatedTime: 20}, CategoryLoading},
		{"http 503 loading message", &HTTPError{StatusCode: 503, Message: "Model is loading"}, CategoryLoading},
		{"http 503 plain", &HTTPError{StatusCode: 503, Message: "service down"}, CategoryUnknown},
		{"http 401", &HTTPError{StatusCode: 401, Message: "nope"}, CategoryAuth},
		{"http 403", &HTTPError{StatusCode: 403}, CategoryAuth},
		{"http 402", &HTTPError{StatusCode: 402}, CategoryBilling},
		{"http 500 with keyword", &HTTPError{StatusCode: 500, Message: "credit card declined"}, CategoryBilling},
		{"wrapped http", fmt.Errorf("call: %w", &HTTPError{StatusCode: 429}), CategoryRateLimited},

		{"openai 429", &openai.APIError{HTTPStatusCode: 429, Message: "Too many"}, CategoryRateLimited},
		{"openai insufficient quota", &openai.APIError{HTTPStatusCode: 429, Code: "insufficient_quota", Message: "You exceeded your current quota"}, CategoryBilling},
		{"openai 401", &openai.APIError{HTTPStatusCode: 401, Message: "Incorrect API key"}, CategoryAuth},
		{"openai request error", &openai.RequestError{HTTPStatusCode: 402, Err: errors.New("payment")}, CategoryBilling},

		{"deadline", context.DeadlineExceeded, CategoryTimeout},
		{"canceled", fmt.Errorf("x: %w", context.Canceled), CategoryCanceled},
		{"deadline wrapping cancel", fmt.Errorf("%w: %w", context.DeadlineExceeded, context.Canceled), CategoryTimeout},
		{"config error", core.ErrMissingAuth(core.BackendHosted), CategoryConfig},
		{"library unavailable", fmt.Errorf("%w: dlopen", sdruntime.ErrLibraryUnavailable), CategoryConfig},
		{"model not found", sdruntime.ErrModelNotFound, CategoryConfig},
		{"invalid params", fmt.Errorf("%w: steps", sdruntime.ErrInvalidParams), CategoryInvalidInput},
		{"bad guide image", fmt.Errorf("%w: gif", vision.ErrUnsupportedFormat), CategoryInvalidInput},
		{"out of vram", sdruntime.ErrOutOfVRAM, CategoryUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Classify(tt.err); got != tt.want {
				t.Errorf("Classify(%v) = %q, want %q", tt.err, got, tt.want)
			}
		})
	}
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		category ErrorCategory
		err      error
		want     string
	}{
		{CategoryRateLimited, nil, StatusRateLimited},
		{CategoryLoading, nil, StatusLoading},
		{CategoryAuth, nil, StatusAuth},
		{CategoryBilling, nil, StatusBilling},
		{CategoryTimeout, nil, StatusTimeout},
		{CategoryCanceled, nil, StatusCanceled},
		{CategoryUnknown, nil, StatusNoImage},
		{CategoryUnknown, ErrEmptyImage, StatusNoImage},
		{CategoryUnknown, errors.New("boom"), "❌ Error: boom"},
	}
	for _, tt := range tests {
		t.Run(string(tt.category), func(t *testing.T) {
			if got := StatusFor(tt.category, tt.err); got != tt.want {
				t.Errorf("StatusFor() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestStatusFor_ConfigIncludesAction(t *testing.T) {
	got := StatusFor(CategoryConfig, core.ErrMissingAuth(core.BackendHosted))
	if !strings.HasPrefix(got, "⚙️ Configuración incompleta: ") {
		t.Fatalf("status = %q", got)
	}
	if !strings.Contains(got, "HF_TOKEN") {
		t.Errorf("status should name HF_TOKEN: %q", got)
	}
}

func TestStatusFor_UnknownTruncatesAndRedacts(t *testing.T) {
	long := strings.Repeat("é", 400)
	got := StatusFor(CategoryUnknown, errors.New(long))
	detail := strings.TrimPrefix(got, "❌ Error: ")
	if n := utf8.RuneCountInString(detail); n != maxErrorRunes {
		t.Errorf("detail has %d runes, want %d", n, maxErrorRunes)
	}

	got = StatusFor(CategoryUnknown, errors.New("bad key sk-abcdefghijklmnopqrstuvwxyz123456"))
	if strings.Contains(got, "sk-abc") {
		t.Errorf("status leaks key: %q", got)
	}
}

func TestHTTPError(t *testing.T) {
	err := &HTTPError{StatusCode: http.StatusServiceUnavailable, Message: "Model is loading", EstimatedTime: 12.5}
	if !strings.Contains(err.Error(), "503") || !strings.Contains(err.Error(), "Model is loading") {
		t.Errorf("Error() = %q", err.Error())
	}
	if !err.IsLoading() {
		t.Error("IsLoading() = false")
	}
	if (&HTTPError{StatusCode: 500}).IsLoading() {
		t.Error("plain 500 should not be loading")
	}
}
