// Package session keeps the per-viewer state of the web UI: the alerts
// table, the settings modal, the thresholds form and the trend modal each
// browser is looking at.
package session

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"sync"
	"time"

	"github.com/good-yellow-bee/pondview/internal/alerts"
	"github.com/good-yellow-bee/pondview/internal/dashboard"
	"github.com/good-yellow-bee/pondview/internal/history"
	"github.com/good-yellow-bee/pondview/internal/settings"
	"github.com/good-yellow-bee/pondview/internal/thresholds"
)

// Session is one viewer. Component fields are set once by the store's init
// function and are themselves safe for concurrent use.
type Session struct {
	ID        string
	CreatedAt time.Time

	Alerts     *alerts.Table
	Settings   *settings.Modal
	Thresholds *thresholds.Form
	Trend      *history.Trend

	mu        sync.Mutex
	expiresAt time.Time
	user      string
	pool      string
	stream    *stream
}

// stream is the viewer's open live dashboard connection.
type stream struct {
	ctx    context.Context
	poller *dashboard.Poller
}

// User returns the operator logged in on this session, or "" for an
// anonymous viewer.
func (s *Session) User() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.user
}

// SetUser records the operator who logged in.
func (s *Session) SetUser(username string) {
	s.mu.Lock()
	s.user = username
	s.mu.Unlock()
}

// Pool returns the pond the viewer selected last.
func (s *Session) Pool() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pool
}

// SetPool records the pond the viewer selected.
func (s *Session) SetPool(pool string) {
	s.mu.Lock()
	s.pool = pool
	s.mu.Unlock()
}

// Stream returns the poller feeding the viewer's open live stream and the
// stream's context, if a stream is open.
func (s *Session) Stream() (*dashboard.Poller, context.Context, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stream == nil {
		return nil, nil, false
	}
	return s.stream.poller, s.stream.ctx, true
}

// AttachStream makes p, running under ctx, the viewer's live poller. The
// returned function detaches it again, unless a newer stream replaced it
// meanwhile.
func (s *Session) AttachStream(ctx context.Context, p *dashboard.Poller) (detach func()) {
	st := &stream{ctx: ctx, poller: p}
	s.mu.Lock()
	s.stream = st
	s.mu.Unlock()
	return func() {
		s.mu.Lock()
		if s.stream == st {
			s.stream = nil
		}
		s.mu.Unlock()
	}
}

// ExpiresAt returns when the session expires unless it is used again.
func (s *Session) ExpiresAt() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.expiresAt
}

func (s *Session) expired(now time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return now.After(s.expiresAt)
}

func (s *Session) touch(until time.Time) {
	s.mu.Lock()
	s.expiresAt = until
	s.mu.Unlock()
}

type contextKey struct{}

// WithSession returns ctx carrying s.
func WithSession(ctx context.Context, s *Session) context.Context {
	return context.WithValue(ctx, contextKey{}, s)
}

// FromContext returns the session carried by ctx, or nil.
func FromContext(ctx context.Context) *Session {
	s, _ := ctx.Value(contextKey{}).(*Session)
	return s
}

// Store holds sessions in memory. Every Get extends the session's lifetime.
type Store struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	ttl      time.Duration
	init     func(*Session)

	stop     chan struct{}
	stopOnce sync.Once
}

// NewStore creates a store whose sessions live for ttl after last use.
// init populates the components of every new session.
func NewStore(ttl time.Duration, init func(*Session)) *Store {
	s := &Store{
		sessions: make(map[string]*Session),
		ttl:      ttl,
		init:     init,
		stop:     make(chan struct{}),
	}
	go s.cleanup()
	return s
}

// Create starts a new session.
func (s *Store) Create() (*Session, error) {
	id, err := generateSessionID()
	if err != nil {
		return nil, err
	}

	now := time.Now()
	session := &Session{
		ID:        id,
		CreatedAt: now,
		expiresAt: now.Add(s.ttl),
	}
	if s.init != nil {
		s.init(session)
	}

	s.mu.Lock()
	s.sessions[id] = session
	s.mu.Unlock()

	return session, nil
}

// Get returns a live session and extends its lifetime.
func (s *Store) Get(id string) (*Session, bool) {
	s.mu.RLock()
	session, ok := s.sessions[id]
	s.mu.RUnlock()

	now := time.Now()
	if !ok || session.expired(now) {
		return nil, false
	}
	session.touch(now.Add(s.ttl))
	return session, true
}

// Delete removes a session.
func (s *Store) Delete(id string) {
	s.mu.Lock()
	delete(s.sessions, id)
	s.mu.Unlock()
}

// Len returns the number of stored sessions, expired ones included until
// the next sweep.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// Close stops the expiry sweep.
func (s *Store) Close() {
	s.stopOnce.Do(func() { close(s.stop) })
}

func (s *Store) cleanup() {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			s.sweep(time.Now())
		}
	}
}

func (s *Store) sweep(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, session := range s.sessions {
		if session.expired(now) {
			delete(s.sessions, id)
		}
	}
}

func generateSessionID() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.URLEncoding.EncodeToString(b), nil
}
