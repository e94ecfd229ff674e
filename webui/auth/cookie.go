package auth

import (
	"errors"
	"net/http"
	"time"
)

// SessionCookieName is the name of the login cookie.
const SessionCookieName = "edudiff_session"

var (
	// ErrNoCookie is returned when the request carries no session cookie.
	ErrNoCookie = errors.New("auth: cookie not found")
	// ErrEmptySessionID is returned when building a cookie without a token.
	ErrEmptySessionID = errors.New("auth: session ID cannot be empty")
)

// CookieConfig holds the session cookie attributes.
type CookieConfig struct {
	Name     string
	MaxAge   int // seconds; -1 deletes
	Secure   bool
	HTTPOnly bool
	SameSite http.SameSite
	Path     string
}

// DefaultCookieConfig returns an HttpOnly, SameSite=Lax, site-wide cookie
// valid for a day. Secure is off because the UI usually runs on plain
// HTTP inside a school network.
func DefaultCookieConfig() CookieConfig {
	return CookieConfig{
		Name:     SessionCookieName,
		MaxAge:   DurationToSeconds(24 * time.Hour),
		HTTPOnly: true,
		SameSite: http.SameSiteLaxMode,
		Path:     "/",
	}
}

// NewSessionCookie builds the cookie carrying sessionID.
func NewSessionCookie(sessionID string, cfg CookieConfig) (*http.Cookie, error) {
	if sessionID == "" {
		return nil, ErrEmptySessionID
	}
	name := cfg.Name
	if name == "" {
		name = SessionCookieName
	}
	return &http.Cookie{
		Name:     name,
		Value:    sessionID,
		Path:     cfg.Path,
		MaxAge:   cfg.MaxAge,
		HttpOnly: cfg.HTTPOnly,
		Secure:   cfg.Secure,
		SameSite: cfg.SameSite,
	}, nil
}

// ParseSessionCookie returns the session token from r.
func ParseSessionCookie(r *http.Request, name string) (string, error) {
	cookie, err := r.Cookie(name)
	if err != nil || cookie.Value == "" {
		return "", ErrNoCookie
	}
	return cookie.Value, nil
}

// ClearSessionCookie returns a cookie that deletes the session cookie.
func ClearSessionCookie(cfg CookieConfig) *http.Cookie {
	name := cfg.Name
	if name == "" {
		name = SessionCookieName
	}
	return &http.Cookie{
		Name:     name,
		Value:    "",
		Path:     cfg.Path,
		MaxAge:   -1,
		HttpOnly: cfg.HTTPOnly,
		Secure:   cfg.Secure,
		SameSite: cfg.SameSite,
	}
}

// DurationToSeconds converts d to a cookie MaxAge.
func DurationToSeconds(d time.Duration) int {
	return int(d / time.Second)
}
