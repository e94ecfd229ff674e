package auth

import (
	"net/http"
	"net/url"
	"time"

	"go.uber.org/zap"

	"edudiff/webui"
)

// Login routes.
const (
	LoginPath       = "/login"
	SuccessRedirect = "/"
)

// LoginHandler serves GET (form) and POST (authenticate) on /login.
func LoginHandler(m *AuthMiddleware) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet, http.MethodHead:
			handleLoginGET(w, r, m)
		case http.MethodPost:
			handleLoginPOST(w, r, m)
		default:
			http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
		}
	}
}

func handleLoginGET(w http.ResponseWriter, r *http.Request, m *AuthMiddleware) {
	if sessionID, err := ParseSessionCookie(r, m.cookieConfig.Name); err == nil {
		if _, err := m.sessions.Get(sessionID); err == nil {
			http.Redirect(w, r, SuccessRedirect, http.StatusFound)
			return
		}
	}
	webui.HandleLoginPage(w, r)
}

func handleLoginPOST(w http.ResponseWriter, r *http.Request, m *AuthMiddleware) {
	clientIP := webui.ClientIP(r)

	if !m.CheckRateLimit(w, clientIP) {
		return
	}

	if err := r.ParseForm(); err != nil {
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return
	}

	password := r.PostFormValue("password")
	if password == "" {
		sleep(r, m.loginDelay)
		redirectWithError(w, r, webui.LoginErrorRequired)
		return
	}

	if err := m.VerifyPassword(password); err != nil {
		m.RecordFailedAttempt(clientIP)
		sleep(r, m.loginDelay)
		redirectWithError(w, r, webui.LoginErrorInvalid)
		return
	}

	_, cookie, err := m.CreateSession()
	if err != nil {
		m.logger.Error("Failed to create session", zap.String("ip", clientIP), zap.Error(err))
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	m.rateLimiter.Reset(clientIP)
	http.SetCookie(w, cookie)
	m.logger.Info("Login successful", zap.String("ip", clientIP))

	// 303 so a refresh does not resubmit the form
	http.Redirect(w, r, SuccessRedirect, http.StatusSeeOther)
}

// sleep waits for d unless the client goes away first.
func sleep(r *http.Request, d time.Duration) {
	if d <= 0 {
		return
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
	case <-r.Context().Done():
	}
}

func redirectWithError(w http.ResponseWriter, r *http.Request, code string) {
	http.Redirect(w, r, LoginPath+"?error="+url.QueryEscape(code), http.StatusSeeOther)
}
