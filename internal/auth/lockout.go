package auth

import (
	"sync"
	"time"
)

type lockoutEntry struct {
	failures  int
	expiresAt time.Time // zero while not locked
}

// Lockout locks a user out for a while after too many failed logins.
type Lockout struct {
	threshold int
	duration  time.Duration
	now       func() time.Time

	mu      sync.Mutex
	entries map[string]*lockoutEntry
}

// NewLockout locks a user for duration after threshold consecutive failures.
func NewLockout(threshold int, duration time.Duration) *Lockout {
	return &Lockout{
		threshold: threshold,
		duration:  duration,
		now:       time.Now,
		entries:   make(map[string]*lockoutEntry),
	}
}

// RecordFailure counts a failed login and reports whether the user is now
// locked.
func (l *Lockout) RecordFailure(username string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	l.sweepLocked(now)

	e, ok := l.entries[username]
	if !ok {
		e = &lockoutEntry{}
		l.entries[username] = e
	}
	if !e.expiresAt.IsZero() {
		return true
	}
	e.failures++
	if e.failures >= l.threshold {
		e.expiresAt = now.Add(l.duration)
		return true
	}
	return false
}

// IsLocked reports whether username is locked out.
func (l *Lockout) IsLocked(username string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	e, ok := l.entries[username]
	return ok && !e.expiresAt.IsZero() && l.now().Before(e.expiresAt)
}

// Clear forgets the failures of username after a successful login.
func (l *Lockout) Clear(username string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.entries, username)
}

// sweepLocked drops expired locks so the map does not grow without bound.
func (l *Lockout) sweepLocked(now time.Time) {
	for name, e := range l.entries {
		if !e.expiresAt.IsZero() && !now.Before(e.expiresAt) {
			delete(l.entries, name)
		}
	}
}
