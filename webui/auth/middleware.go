// Package auth gates the web UI behind WEBUI_PASSWORD: a bcrypt hash of
// the password, an in-memory session store keyed by uuid tokens, and a
// per-IP limiter on failed logins.
package auth

import (
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"edudiff/logging"
	"edudiff/webui"
)

// Login limiter defaults: five failures per minute, then a five minute block.
const (
	DefaultRateLimitAttempts = 5
	DefaultRateLimitWindow   = time.Minute
	DefaultRateLimitBlock    = 5 * time.Minute
)

// Config tunes the AuthMiddleware.
type Config struct {
	SessionTTL        time.Duration
	RateLimitAttempts int
	RateLimitWindow   time.Duration
	RateLimitBlock    time.Duration
	SecureCookies     bool
	// BcryptCost defaults to DefaultCost. Tests lower it.
	BcryptCost int
	// FailedLoginDelay slows down guessing; defaults to one second.
	FailedLoginDelay time.Duration
}

// DefaultConfig returns the production settings.
func DefaultConfig() Config {
	return Config{
		SessionTTL:        webui.DefaultSessionTTL,
		RateLimitAttempts: DefaultRateLimitAttempts,
		RateLimitWindow:   DefaultRateLimitWindow,
		RateLimitBlock:    DefaultRateLimitBlock,
		BcryptCost:        DefaultCost,
		FailedLoginDelay:  time.Second,
	}
}

// AuthMiddleware implements webui.AuthProvider.
type AuthMiddleware struct {
	passwordHash string
	sessions     *webui.SessionStore
	rateLimiter  *webui.RateLimiter
	logger       *logging.Logger
	cookieConfig CookieConfig
	loginDelay   time.Duration
}

var _ webui.AuthProvider = (*AuthMiddleware)(nil)

// NewAuthMiddleware hashes password with the default settings.
func NewAuthMiddleware(password string, logger *logging.Logger) (*AuthMiddleware, error) {
	return NewAuthMiddlewareWithConfig(password, logger, DefaultConfig())
}

// NewAuthMiddlewareWithConfig hashes password and builds the session store
// and limiter from cfg. The plaintext password is not retained.
func NewAuthMiddlewareWithConfig(password string, logger *logging.Logger, cfg Config) (*AuthMiddleware, error) {
	def := DefaultConfig()
	if cfg.BcryptCost == 0 {
		cfg.BcryptCost = def.BcryptCost
	}
	if cfg.SessionTTL <= 0 {
		cfg.SessionTTL = def.SessionTTL
	}
	if cfg.RateLimitAttempts <= 0 {
		cfg.RateLimitAttempts = def.RateLimitAttempts
	}
	if cfg.RateLimitWindow <= 0 {
		cfg.RateLimitWindow = def.RateLimitWindow
	}
	if cfg.RateLimitBlock <= 0 {
		cfg.RateLimitBlock = def.RateLimitBlock
	}
	if cfg.FailedLoginDelay < 0 {
		cfg.FailedLoginDelay = 0
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	hash, err := HashPasswordWithCost(password, cfg.BcryptCost)
	if err != nil {
		return nil, err
	}

	cookieConfig := DefaultCookieConfig()
	cookieConfig.Secure = cfg.SecureCookies
	cookieConfig.MaxAge = DurationToSeconds(cfg.SessionTTL)

	return &AuthMiddleware{
		passwordHash: hash,
		sessions:     webui.NewSessionStore(cfg.SessionTTL),
		rateLimiter:  webui.NewRateLimiter(cfg.RateLimitAttempts, cfg.RateLimitWindow, cfg.RateLimitBlock),
		logger:       logger.Named("auth"),
		cookieConfig: cookieConfig,
		loginDelay:   cfg.FailedLoginDelay,
	}, nil
}

// Middleware lets requests with a valid session through. Browsers asking
// for a page are redirected to the login form; API calls get 401.
func (m *AuthMiddleware) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sessionID, err := ParseSessionCookie(r, m.cookieConfig.Name)
		if err == nil {
			_, err = m.sessions.Get(sessionID)
		}
		if err != nil {
			m.logger.Debug("Unauthenticated request",
				zap.String("path", r.URL.Path),
				zap.String("ip", webui.ClientIP(r)),
				zap.Error(err),
			)
			if wantsHTML(r) {
				http.Redirect(w, r, LoginPath, http.StatusFound)
				return
			}
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func wantsHTML(r *http.Request) bool {
	if r.Method != http.MethodGet {
		return false
	}
	return r.URL.Path == "/" || strings.Contains(r.Header.Get("Accept"), "text/html")
}

// CheckRateLimit answers 429 and returns false when ip is blocked.
func (m *AuthMiddleware) CheckRateLimit(w http.ResponseWriter, ip string) bool {
	allowed, remaining := m.rateLimiter.Allow(ip)
	if !allowed {
		m.logger.Warn("Login rate limit exceeded",
			zap.String("ip", ip),
			zap.Duration("remaining", remaining),
		)
		w.Header().Set("Retry-After", webui.FormatRetryAfter(remaining))
		http.Error(w, "Too Many Requests", http.StatusTooManyRequests)
		return false
	}
	return true
}

// RecordFailedAttempt counts a failed login for ip.
func (m *AuthMiddleware) RecordFailedAttempt(ip string) {
	m.rateLimiter.RecordAttempt(ip)
	m.logger.Info("Failed login attempt",
		zap.String("ip", ip),
		zap.Int("attempts", m.rateLimiter.AttemptCount(ip)),
	)
}

// VerifyPassword checks password against the stored hash.
func (m *AuthMiddleware) VerifyPassword(password string) error {
	return VerifyPassword(password, m.passwordHash)
}

// CreateSession stores a new session and returns the cookie to set.
func (m *AuthMiddleware) CreateSession() (webui.Session, *http.Cookie, error) {
	session, err := m.sessions.Create()
	if err != nil {
		return webui.Session{}, nil, err
	}
	cookie, err := NewSessionCookie(session.ID, m.cookieConfig)
	if err != nil {
		return webui.Session{}, nil, err
	}
	m.logger.Info("Session created",
		zap.String("session_id", truncateSessionID(session.ID)),
		zap.Time("expires_at", session.ExpiresAt),
	)
	return session, cookie, nil
}

// DestroySession removes sessionID and returns the clearing cookie.
func (m *AuthMiddleware) DestroySession(sessionID string) *http.Cookie {
	m.sessions.Delete(sessionID)
	return ClearSessionCookie(m.cookieConfig)
}

// LoginHandler implements webui.AuthProvider.
func (m *AuthMiddleware) LoginHandler() http.HandlerFunc {
	return LoginHandler(m)
}

// LogoutHandler implements webui.AuthProvider.
func (m *AuthMiddleware) LogoutHandler() http.HandlerFunc {
	return LogoutHandler(m)
}

// SessionStore exposes the store for the cleanup ticker.
func (m *AuthMiddleware) SessionStore() *webui.SessionStore {
	return m.sessions
}

// RateLimiter exposes the login limiter for the cleanup ticker.
func (m *AuthMiddleware) RateLimiter() *webui.RateLimiter {
	return m.rateLimiter
}

func truncateSessionID(sessionID string) string {
	if len(sessionID) <= 8 {
		return sessionID + "..."
	}
	return sessionID[:8] + "..."
}
