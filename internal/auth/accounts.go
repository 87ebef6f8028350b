// Package auth checks operator credentials against the accounts declared in
// configuration.
package auth

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"golang.org/x/crypto/bcrypt"
)

var (
	// ErrInvalidCredentials is returned for an unknown user or a wrong password.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrLocked is returned while a user is locked out after repeated failures.
	ErrLocked = errors.New("account temporarily locked")
)

// Account is one operator login. PasswordHash is a bcrypt hash.
type Account struct {
	Username     string `yaml:"username"`
	PasswordHash string `yaml:"password_hash"`
}

// Validate checks the username and that the hash is a bcrypt hash.
func (a Account) Validate() error {
	if strings.TrimSpace(a.Username) == "" {
		return fmt.Errorf("username is required")
	}
	if _, err := bcrypt.Cost([]byte(a.PasswordHash)); err != nil {
		return fmt.Errorf("account %q: password_hash is not a bcrypt hash: %w", a.Username, err)
	}
	return nil
}

// HashPassword returns the bcrypt hash of password for use in configuration.
func HashPassword(password string) (string, error) {
	if password == "" {
		return "", fmt.Errorf("password is required")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}

// dummyHash is compared against when the user is unknown so that unknown
// and known users take the same time to reject.
var dummyHash = sync.OnceValue(func() []byte {
	hash, _ := bcrypt.GenerateFromPassword([]byte("pondview"), bcrypt.DefaultCost)
	return hash
})

// Accounts is the set of operators allowed to log in. It is safe for
// concurrent use and can be replaced on configuration reload.
type Accounts struct {
	lockout *Lockout

	mu     sync.RWMutex
	hashes map[string][]byte
}

// NewAccounts creates the account set. lockout may be nil.
func NewAccounts(accounts []Account, lockout *Lockout) (*Accounts, error) {
	a := &Accounts{lockout: lockout}
	if err := a.Replace(accounts); err != nil {
		return nil, err
	}
	return a, nil
}

// Replace swaps in a new account list. The old list stays in force when the
// new one is invalid.
func (a *Accounts) Replace(accounts []Account) error {
	hashes := make(map[string][]byte, len(accounts))
	for _, acc := range accounts {
		if err := acc.Validate(); err != nil {
			return err
		}
		name := strings.TrimSpace(acc.Username)
		if _, dup := hashes[name]; dup {
			return fmt.Errorf("duplicate account %q", name)
		}
		hashes[name] = []byte(acc.PasswordHash)
	}

	a.mu.Lock()
	a.hashes = hashes
	a.mu.Unlock()
	return nil
}

// Enabled reports whether any account is declared. Without accounts the UI
// is open to every viewer.
func (a *Accounts) Enabled() bool {
	if a == nil {
		return false
	}
	a.mu.RLock()
	defer a.mu.RUnlock()
	return len(a.hashes) > 0
}

// Has reports whether username is a declared account.
func (a *Accounts) Has(username string) bool {
	if a == nil {
		return false
	}
	a.mu.RLock()
	defer a.mu.RUnlock()
	_, ok := a.hashes[username]
	return ok
}

// Authenticate checks username and password.
func (a *Accounts) Authenticate(username, password string) error {
	if a.lockout != nil && a.lockout.IsLocked(username) {
		return ErrLocked
	}

	a.mu.RLock()
	hash, ok := a.hashes[username]
	a.mu.RUnlock()
	if !ok {
		hash = dummyHash()
	}

	err := bcrypt.CompareHashAndPassword(hash, []byte(password))
	if !ok || err != nil {
		if a.lockout != nil && a.lockout.RecordFailure(username) {
			return ErrLocked
		}
		return ErrInvalidCredentials
	}

	if a.lockout != nil {
		a.lockout.Clear(username)
	}
	return nil
}
