// Package web serves the PondView browser UI.
package web

import (
	"embed"
	"fmt"
	"io/fs"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/good-yellow-bee/pondview/internal/auth"
	"github.com/good-yellow-bee/pondview/internal/web/handlers"
	"github.com/good-yellow-bee/pondview/internal/web/session"
)

//go:embed static
var staticFS embed.FS

// Options configures the web server.
type Options struct {
	Handlers         handlers.Config
	CSRFKey          string        // 32 bytes
	SessionTTL       time.Duration // idle lifetime of a viewer session (default: 24h)
	UseSecureCookies bool
	Verbose          bool // log every request, not only failures
	Logger           *zap.Logger
}

// Server wires the handlers, viewer sessions and middleware together.
type Server struct {
	handler          *handlers.Handler
	accounts         *auth.Accounts
	sessions         *session.Store
	csrfKey          []byte
	useSecureCookies bool
	verbose          bool
	logger           *zap.Logger
}

// NewServer creates the web server.
func NewServer(api handlers.PondAPI, opts Options) (*Server, error) {
	if len(opts.CSRFKey) != 32 {
		return nil, fmt.Errorf("csrf key must be 32 bytes, got %d", len(opts.CSRFKey))
	}
	if opts.SessionTTL <= 0 {
		opts.SessionTTL = 24 * time.Hour
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}

	opts.Handlers.SecureCookies = opts.UseSecureCookies
	h := handlers.NewHandler(api, opts.Handlers, opts.Logger)
	sessions := session.NewStore(opts.SessionTTL, h.InitSession)
	h.SetSessionStore(sessions)
	return &Server{
		handler:          h,
		accounts:         opts.Handlers.Accounts,
		sessions:         sessions,
		csrfKey:          []byte(opts.CSRFKey),
		useSecureCookies: opts.UseSecureCookies,
		verbose:          opts.Verbose,
		logger:           opts.Logger,
	}, nil
}

// StaticFS serves the embedded assets.
func (s *Server) StaticFS() http.Handler {
	sub, err := fs.Sub(staticFS, "static")
	if err != nil {
		// Unrecoverable init error - server cannot function without static assets
		panic(fmt.Sprintf("failed to create static FS: %v", err))
	}
	return http.FileServer(http.FS(sub))
}

// Sessions returns the viewer session store.
func (s *Server) Sessions() *session.Store {
	return s.sessions
}

// Handler returns the handlers, e.g. to push configuration reloads.
func (s *Server) Handler() *handlers.Handler {
	return s.handler
}

// Close releases the session store.
func (s *Server) Close() {
	s.sessions.Close()
}
