package handlers

import (
	"errors"
	"net/http"

	"github.com/gorilla/csrf"
	"go.uber.org/zap"

	"github.com/good-yellow-bee/pondview/internal/auth"
	"github.com/good-yellow-bee/pondview/internal/metrics"
	"github.com/good-yellow-bee/pondview/internal/web/middleware"
	"github.com/good-yellow-bee/pondview/internal/web/templates/pages"
)

// Login messages.
const (
	LoginRequiredText    = "請輸入帳號與密碼"
	LoginInvalidText     = "帳號或密碼錯誤"
	LoginLockedText      = "登入失敗次數過多，請稍後再試"
	LoginFormInvalidText = "表單格式錯誤"
	LoginFailedText      = "無法建立登入狀態，請稍後再試"
)

// loggedIn returns the operator of the request's session cookie, if any.
func (h *Handler) loggedIn(r *http.Request) (string, bool) {
	if h.sessions == nil {
		return "", false
	}
	cookie, err := r.Cookie(middleware.CookieName)
	if err != nil {
		return "", false
	}
	sess, ok := h.sessions.Get(cookie.Value)
	if !ok || !h.accounts.Has(sess.User()) {
		return "", false
	}
	return sess.User(), true
}

// ShowLogin renders the login page. Operators already logged in, and
// everyone while no account is declared, go straight to the dashboard.
func (h *Handler) ShowLogin(w http.ResponseWriter, r *http.Request) {
	if !h.accounts.Enabled() {
		http.Redirect(w, r, "/dashboard", http.StatusFound)
		return
	}
	if _, ok := h.loggedIn(r); ok {
		http.Redirect(w, r, "/dashboard", http.StatusFound)
		return
	}
	h.renderLogin(w, r, http.StatusOK, "", "")
}

// HandleLogin checks the submitted credentials and starts an operator
// session.
func (h *Handler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	if !h.accounts.Enabled() {
		http.Redirect(w, r, "/dashboard", http.StatusFound)
		return
	}
	if err := r.ParseForm(); err != nil {
		h.renderLogin(w, r, http.StatusBadRequest, "", LoginFormInvalidText)
		return
	}

	username := r.PostForm.Get("username")
	password := r.PostForm.Get("password")
	if username == "" || password == "" {
		h.renderLogin(w, r, http.StatusBadRequest, username, LoginRequiredText)
		return
	}

	if err := h.accounts.Authenticate(username, password); err != nil {
		status, text, outcome := http.StatusUnauthorized, LoginInvalidText, "invalid"
		if errors.Is(err, auth.ErrLocked) {
			status, text, outcome = http.StatusTooManyRequests, LoginLockedText, "locked"
		}
		metrics.LoginsTotal.WithLabelValues(outcome).Inc()
		h.logger.Warn("login failed", zap.String("username", username), zap.Error(err))
		h.renderLogin(w, r, status, username, text)
		return
	}

	// A fresh session ID on every login; the pre-login one is dropped.
	if cookie, err := r.Cookie(middleware.CookieName); err == nil {
		h.sessions.Delete(cookie.Value)
	}
	sess, err := h.sessions.Create()
	if err != nil {
		h.logger.Error("failed to create session", zap.Error(err))
		h.renderLogin(w, r, http.StatusInternalServerError, username, LoginFailedText)
		return
	}
	sess.SetUser(username)
	middleware.SetSessionCookie(w, r, sess.ID, h.secureCookies)

	metrics.LoginsTotal.WithLabelValues("ok").Inc()
	h.logger.Info("operator logged in",
		zap.String("username", username),
		zap.String("session", sess.ID[:min(8, len(sess.ID))]),
	)

	if r.Header.Get("HX-Request") == "true" {
		w.Header().Set("HX-Redirect", "/dashboard")
		w.WriteHeader(http.StatusOK)
		return
	}
	http.Redirect(w, r, "/dashboard", http.StatusFound)
}

// HandleLogout ends the session.
func (h *Handler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	if sess := GetSession(r); sess != nil && h.sessions != nil {
		h.sessions.Delete(sess.ID)
		h.logger.Info("operator logged out", zap.String("username", sess.User()))
	}
	middleware.ClearSessionCookie(w)
	http.Redirect(w, r, middleware.LoginPath, http.StatusFound)
}

func (h *Handler) renderLogin(w http.ResponseWriter, r *http.Request, status int, username, message string) {
	h.render(w, r, status, pages.Login(pages.LoginData{
		CSRFToken: csrf.Token(r),
		Username:  username,
		Error:     message,
	}))
}
