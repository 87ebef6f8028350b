package middleware

import (
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/good-yellow-bee/pondview/internal/auth"
	"github.com/good-yellow-bee/pondview/internal/web/session"
)

// CookieName is the cookie carrying the viewer session ID.
const CookieName = "pondview_session"

// LoginPath is where visitors without a session are sent.
const LoginPath = "/login"

// SetSessionCookie hands the session ID to the browser.
func SetSessionCookie(w http.ResponseWriter, r *http.Request, id string, secure bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    id,
		Path:     "/",
		HttpOnly: true,
		Secure:   secure || IsRequestSecure(r),
		SameSite: http.SameSiteLaxMode,
	})
}

// ClearSessionCookie removes the session cookie.
func ClearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		MaxAge:   -1,
	})
}

// Viewer attaches the viewer's session to the request, starting a new one
// when the cookie is missing or stale. Viewers are anonymous.
func Viewer(store *session.Store, secure bool, logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if cookie, err := r.Cookie(CookieName); err == nil {
				if sess, ok := store.Get(cookie.Value); ok {
					next.ServeHTTP(w, r.WithContext(session.WithSession(r.Context(), sess)))
					return
				}
			}

			sess, err := store.Create()
			if err != nil {
				logger.Error("failed to create session", zap.Error(err))
				http.Error(w, "Internal Server Error", http.StatusInternalServerError)
				return
			}
			SetSessionCookie(w, r, sess.ID, secure)
			next.ServeHTTP(w, r.WithContext(session.WithSession(r.Context(), sess)))
		})
	}
}

// RequireSession lets through only requests whose session belongs to a
// declared operator account; everyone else is sent to the login page. While
// no account is declared it behaves like Viewer.
func RequireSession(store *session.Store, accounts *auth.Accounts, secure bool, logger *zap.Logger) func(http.Handler) http.Handler {
	viewer := Viewer(store, secure, logger)
	return func(next http.Handler) http.Handler {
		open := viewer(next)
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !accounts.Enabled() {
				open.ServeHTTP(w, r)
				return
			}

			if cookie, err := r.Cookie(CookieName); err == nil {
				sess, ok := store.Get(cookie.Value)
				if ok && accounts.Has(sess.User()) {
					next.ServeHTTP(w, r.WithContext(session.WithSession(r.Context(), sess)))
					return
				}
				if ok {
					// the account was removed since login
					store.Delete(sess.ID)
				}
				ClearSessionCookie(w)
			}
			redirectToLogin(w, r)
		})
	}
}

// redirectToLogin sends browsers to the login page. htmx gets a client-side
// redirect; scripts and event streams get a bare 401.
func redirectToLogin(w http.ResponseWriter, r *http.Request) {
	switch {
	case r.Header.Get("HX-Request") == "true":
		w.Header().Set("HX-Redirect", LoginPath)
		w.WriteHeader(http.StatusUnauthorized)
	case strings.Contains(r.Header.Get("Accept"), "application/json"),
		strings.Contains(r.Header.Get("Accept"), "text/event-stream"):
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
	default:
		http.Redirect(w, r, LoginPath, http.StatusFound)
	}
}
