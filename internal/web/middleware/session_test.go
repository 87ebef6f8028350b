package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/good-yellow-bee/pondview/internal/auth"
	"github.com/good-yellow-bee/pondview/internal/web/session"
)

func TestViewer_StartsSession(t *testing.T) {
	store := session.NewStore(time.Hour, nil)
	defer store.Close()

	var got *session.Session
	handler := Viewer(store, false, zap.NewNop())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = session.FromContext(r.Context())
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest("GET", "/dashboard", nil))

	if got == nil {
		t.Fatal("session missing from context")
	}
	cookies := rec.Result().Cookies()
	if len(cookies) != 1 || cookies[0].Name != CookieName || cookies[0].Value != got.ID {
		t.Fatalf("cookies = %v", cookies)
	}
	if !cookies[0].HttpOnly {
		t.Error("session cookie must be HttpOnly")
	}
}

func TestViewer_ReusesSession(t *testing.T) {
	store := session.NewStore(time.Hour, nil)
	defer store.Close()
	sess, _ := store.Create()

	var got *session.Session
	handler := Viewer(store, false, zap.NewNop())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = session.FromContext(r.Context())
	}))

	req := httptest.NewRequest("GET", "/alerts", nil)
	req.AddCookie(&http.Cookie{Name: CookieName, Value: sess.ID})
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if got != sess {
		t.Error("existing session not reused")
	}
	if len(rec.Result().Cookies()) != 0 {
		t.Error("no cookie should be set for a live session")
	}
}

func TestViewer_ReplacesStaleCookie(t *testing.T) {
	store := session.NewStore(time.Hour, nil)
	defer store.Close()

	handler := Viewer(store, true, zap.NewNop())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	req := httptest.NewRequest("GET", "/alerts", nil)
	req.AddCookie(&http.Cookie{Name: CookieName, Value: "gone"})
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	cookies := rec.Result().Cookies()
	if len(cookies) != 1 || cookies[0].Value == "gone" {
		t.Fatalf("cookies = %v", cookies)
	}
	if !cookies[0].Secure {
		t.Error("cookie should be Secure when configured")
	}
	if store.Len() != 1 {
		t.Errorf("store has %d sessions, want 1", store.Len())
	}
}

func newAccounts(t *testing.T, usernames ...string) *auth.Accounts {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte("pw"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	list := make([]auth.Account, 0, len(usernames))
	for _, u := range usernames {
		list = append(list, auth.Account{Username: u, PasswordHash: string(hash)})
	}
	accounts, err := auth.NewAccounts(list, nil)
	if err != nil {
		t.Fatalf("NewAccounts: %v", err)
	}
	return accounts
}

func TestRequireSession(t *testing.T) {
	store := session.NewStore(time.Hour, nil)
	defer store.Close()
	accounts := newAccounts(t, "keeper")

	loggedIn, _ := store.Create()
	loggedIn.SetUser("keeper")
	anonymous, _ := store.Create()
	removed, _ := store.Create()
	removed.SetUser("former")

	tests := []struct {
		name         string
		cookie       string
		header       map[string]string
		wantStatus   int
		wantLocation string
		wantSession  *session.Session
	}{
		{name: "logged in", cookie: loggedIn.ID, wantStatus: http.StatusOK, wantSession: loggedIn},
		{name: "no cookie", wantStatus: http.StatusFound, wantLocation: LoginPath},
		{name: "anonymous session", cookie: anonymous.ID, wantStatus: http.StatusFound, wantLocation: LoginPath},
		{name: "account removed", cookie: removed.ID, wantStatus: http.StatusFound, wantLocation: LoginPath},
		{name: "stale cookie", cookie: "gone", wantStatus: http.StatusFound, wantLocation: LoginPath},
		{name: "htmx", header: map[string]string{"HX-Request": "true"}, wantStatus: http.StatusUnauthorized},
		{name: "event stream", header: map[string]string{"Accept": "text/event-stream"}, wantStatus: http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got *session.Session
			handler := RequireSession(store, accounts, false, zap.NewNop())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				got = session.FromContext(r.Context())
			}))

			req := httptest.NewRequest("GET", "/dashboard", nil)
			if tt.cookie != "" {
				req.AddCookie(&http.Cookie{Name: CookieName, Value: tt.cookie})
			}
			for k, v := range tt.header {
				req.Header.Set(k, v)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			if loc := rec.Header().Get("Location"); loc != tt.wantLocation {
				t.Errorf("Location = %q, want %q", loc, tt.wantLocation)
			}
			if got != tt.wantSession {
				t.Errorf("session = %v, want %v", got, tt.wantSession)
			}
		})
	}

	if _, ok := store.Get(removed.ID); ok {
		t.Error("session of a removed account should be dropped")
	}
}

func TestRequireSession_WithoutAccountsActsAsViewer(t *testing.T) {
	store := session.NewStore(time.Hour, nil)
	defer store.Close()
	accounts := newAccounts(t)

	var got *session.Session
	handler := RequireSession(store, accounts, false, zap.NewNop())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = session.FromContext(r.Context())
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest("GET", "/dashboard", nil))
	if rec.Code != http.StatusOK || got == nil {
		t.Errorf("status = %d, session = %v", rec.Code, got)
	}
}
