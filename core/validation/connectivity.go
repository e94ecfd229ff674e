package validation

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"edudiff/core"
)

// DefaultOpenAIBaseURL is probed when OPENAI_API_BASE_URL is unset.
const DefaultOpenAIBaseURL = "https://api.openai.com/v1"

// ConnectivityResult represents the result of a connectivity check.
type ConnectivityResult struct {
	Reachable  bool
	StatusCode int
	Message    string
	Latency    time.Duration
	Error      error
}

// ConnectivityChecker verifies the generation backend answers HTTP at all.
type ConnectivityChecker struct {
	timeout       time.Duration
	allowInsecure bool
}

// NewConnectivityChecker creates a new ConnectivityChecker with a 10 second timeout.
func NewConnectivityChecker() *ConnectivityChecker {
	return &ConnectivityChecker{timeout: 10 * time.Second}
}

// WithTimeout sets the timeout for connectivity checks.
func (c *ConnectivityChecker) WithTimeout(timeout time.Duration) *ConnectivityChecker {
	c.timeout = timeout
	return c
}

// WithAllowInsecure disables TLS verification for self-hosted endpoints.
func (c *ConnectivityChecker) WithAllowInsecure(allow bool) *ConnectivityChecker {
	c.allowInsecure = allow
	return c
}

// CheckServerConnectivity sends a HEAD request to serverURL. Any HTTP
// response, including 4xx/5xx, counts as reachable.
func (c *ConnectivityChecker) CheckServerConnectivity(ctx context.Context, serverURL string) ConnectivityResult {
	u, err := url.Parse(serverURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return ConnectivityResult{
			Message: "Invalid URL format",
			Error:   fmt.Errorf("invalid endpoint URL %q", serverURL),
		}
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodHead, serverURL, nil)
	if err != nil {
		return ConnectivityResult{Message: "Failed to create request", Error: err}
	}

	client := &http.Client{Timeout: c.timeout}
	if c.allowInsecure {
		client.Transport = &http.Transport{
			TLSClientConfig: &tls.Config{InsecureSkipVerify: true},
		}
	}

	startTime := time.Now()
	resp, err := client.Do(req)
	latency := time.Since(startTime)
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return ConnectivityResult{
				Message: "Connection timed out",
				Latency: latency,
				Error:   fmt.Errorf("%s: connection timed out after %v", serverURL, c.timeout),
			}
		}
		return ConnectivityResult{Message: "Connection failed", Latency: latency, Error: err}
	}
	defer resp.Body.Close()

	return ConnectivityResult{
		Reachable:  true,
		StatusCode: resp.StatusCode,
		Message:    fmt.Sprintf("Server reachable (status: %d)", resp.StatusCode),
		Latency:    latency,
	}
}

// CheckBackend probes the endpoint of the configured hosted backend.
// Unreachable endpoints are a warning: the service can start offline.
func (c *ConnectivityChecker) CheckBackend(cfg *core.Config) CheckResult {
	endpoint := cfg.HFAPIURL
	if cfg.Backend == core.BackendOpenAI {
		endpoint = cfg.OpenAIBaseURL
		if endpoint == "" {
			endpoint = DefaultOpenAIBaseURL
		}
	}

	res := c.CheckServerConnectivity(context.Background(), endpoint)
	if !res.Reachable {
		return warned(res.Message, res.Error)
	}
	return passed(fmt.Sprintf("%s (latency: %v)", res.Message, res.Latency.Round(time.Millisecond)))
}
