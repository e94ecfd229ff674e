package auth

import (
	"net/http"

	"go.uber.org/zap"

	"edudiff/webui"
)

// LogoutHandler destroys the current session, clears the cookie and
// redirects to the login page. It is idempotent.
func LogoutHandler(m *AuthMiddleware) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet && r.Method != http.MethodPost {
			http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
			return
		}

		if sessionID, err := ParseSessionCookie(r, m.cookieConfig.Name); err == nil {
			m.DestroySession(sessionID)
			m.logger.Info("Session destroyed",
				zap.String("session_id", truncateSessionID(sessionID)),
				zap.String("ip", webui.ClientIP(r)),
			)
		}

		http.SetCookie(w, ClearSessionCookie(m.cookieConfig))

		code := http.StatusFound
		if r.Method == http.MethodPost {
			code = http.StatusSeeOther
		}
		http.Redirect(w, r, LoginPath, code)
	}
}
