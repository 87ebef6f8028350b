// Package handlers implements the HTTP handlers of the web UI.
package handlers

import (
	"encoding/json"
	"net/http"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/a-h/templ"
	"github.com/gorilla/csrf"
	"go.uber.org/zap"

	"github.com/good-yellow-bee/pondview/internal/alerts"
	"github.com/good-yellow-bee/pondview/internal/auth"
	"github.com/good-yellow-bee/pondview/internal/dashboard"
	"github.com/good-yellow-bee/pondview/internal/history"
	"github.com/good-yellow-bee/pondview/internal/models"
	"github.com/good-yellow-bee/pondview/internal/settings"
	"github.com/good-yellow-bee/pondview/internal/thresholds"
	"github.com/good-yellow-bee/pondview/internal/web/middleware"
	"github.com/good-yellow-bee/pondview/internal/web/session"
	"github.com/good-yellow-bee/pondview/internal/web/templates/pages"
)

// PondAPI is the pond server surface the web UI uses. *pondapi.Client
// implements it.
type PondAPI interface {
	dashboard.Source
	alerts.Source
	settings.Store
	thresholds.Saver
	history.RangeSource
	history.LatestSource
}

// Config configures the handlers.
type Config struct {
	Pools         []string                            // selectable ponds, in menu order
	PollInterval  time.Duration                       // live dashboard period (default: 5s)
	PageSize      int                                 // alerts per page (default: 8)
	Limits        map[models.Sensor]thresholds.Limits // threshold slider tracks
	HistorySpan   time.Duration                       // default trend range (default: 24h)
	Heartbeat     time.Duration                       // event stream keepalive (default: 15s)
	MaxStream     time.Duration                       // event stream lifetime (default: 30m)
	Accounts      *auth.Accounts                      // operator logins; nil or empty leaves the UI open
	SecureCookies bool
}

// Handler serves the web UI.
type Handler struct {
	api    PondAPI
	logger *zap.Logger

	pageSize    int
	limits      map[models.Sensor]thresholds.Limits
	historySpan time.Duration
	heartbeat   time.Duration
	maxStream   time.Duration
	now         func() time.Time

	accounts      *auth.Accounts
	secureCookies bool
	sessions      *session.Store

	mu       sync.RWMutex
	pools    []string
	interval time.Duration
	streams  map[*dashboard.Poller]struct{}
}

// NewHandler creates the handlers.
func NewHandler(api PondAPI, cfg Config, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = dashboard.DefaultInterval
	}
	if cfg.HistorySpan <= 0 {
		cfg.HistorySpan = 24 * time.Hour
	}
	if cfg.Heartbeat <= 0 {
		cfg.Heartbeat = 15 * time.Second
	}
	if cfg.MaxStream <= 0 {
		cfg.MaxStream = 30 * time.Minute
	}
	return &Handler{
		api:           api,
		logger:        logger,
		pageSize:      cfg.PageSize,
		limits:        cfg.Limits,
		historySpan:   cfg.HistorySpan,
		heartbeat:     cfg.Heartbeat,
		maxStream:     cfg.MaxStream,
		now:           time.Now,
		accounts:      cfg.Accounts,
		secureCookies: cfg.SecureCookies,
		pools:         slices.Clone(cfg.Pools),
		interval:      cfg.PollInterval,
		streams:       make(map[*dashboard.Poller]struct{}),
	}
}

// InitSession creates the components of a new viewer session.
func (h *Handler) InitSession(s *session.Session) {
	pool := h.defaultPool()
	logger := h.logger.With(zap.String("session", s.ID[:min(8, len(s.ID))]))
	s.SetPool(pool)
	s.Alerts = alerts.NewTable(h.api, alerts.Options{PageSize: h.pageSize, Logger: logger})
	s.Settings = settings.NewModal(h.api, pool, logger)
	s.Thresholds = thresholds.NewForm(h.api, models.DefaultThresholds(), thresholds.Options{Limits: h.limits, Logger: logger})
	s.Trend = history.NewTrend(nil)
}

// SetSessionStore gives the login handlers the store sessions are created
// in. The store is built after the handler because it calls InitSession.
func (h *Handler) SetSessionStore(store *session.Store) {
	h.sessions = store
}

// Pools returns the selectable ponds.
func (h *Handler) Pools() []string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return slices.Clone(h.pools)
}

// SetPools replaces the selectable ponds.
func (h *Handler) SetPools(pools []string) {
	h.mu.Lock()
	h.pools = slices.Clone(pools)
	h.mu.Unlock()
}

// PollInterval returns the live dashboard period.
func (h *Handler) PollInterval() time.Duration {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.interval
}

// SetPollInterval changes the live dashboard period, including for streams
// that are already open.
func (h *Handler) SetPollInterval(d time.Duration) {
	if d <= 0 {
		return
	}
	h.mu.Lock()
	h.interval = d
	open := make([]*dashboard.Poller, 0, len(h.streams))
	for p := range h.streams {
		open = append(open, p)
	}
	h.mu.Unlock()

	for _, p := range open {
		p.SetInterval(d)
	}
}

func (h *Handler) defaultPool() string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if len(h.pools) == 0 {
		return ""
	}
	return h.pools[0]
}

func (h *Handler) knownPool(pool string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return slices.Contains(h.pools, pool)
}

// resolvePool picks the pond a request is about: the "pool" parameter when
// it names a known pond, else the viewer's last pond, else the first one.
func (h *Handler) resolvePool(r *http.Request, sess *session.Session) string {
	if pool := strings.TrimSpace(r.FormValue("pool")); pool != "" && h.knownPool(pool) {
		return pool
	}
	if pool := sess.Pool(); pool != "" && h.knownPool(pool) {
		return pool
	}
	return h.defaultPool()
}

// GetSession returns the viewer session of the request.
func GetSession(r *http.Request) *session.Session {
	return session.FromContext(r.Context())
}

func (h *Handler) session(w http.ResponseWriter, r *http.Request) (*session.Session, bool) {
	sess := GetSession(r)
	if sess == nil {
		h.logger.Error("request without viewer session", zap.String("path", r.URL.Path))
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return nil, false
	}
	return sess, true
}

func (h *Handler) page(r *http.Request, title, active string) pages.Page {
	var user string
	if sess := GetSession(r); sess != nil {
		user = sess.User()
	}
	return pages.Page{
		Title:     title,
		Active:    active,
		User:      user,
		CSRFToken: csrf.Token(r),
		Nonce:     middleware.GetCSPNonce(r.Context()),
	}
}

func (h *Handler) render(w http.ResponseWriter, r *http.Request, status int, c templ.Component) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := c.Render(r.Context(), w); err != nil {
		h.logger.Warn("render failed", zap.String("path", r.URL.Path), zap.Error(err))
	}
}

// wantsJSON reports whether the client asked for JSON instead of HTML.
func wantsJSON(r *http.Request) bool {
	return strings.Contains(r.Header.Get("Accept"), "application/json")
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeJSONError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
