package auth

import (
	"errors"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"
)

func hashFor(t *testing.T, password string) string {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	return string(hash)
}

func TestAuthenticate(t *testing.T) {
	accounts, err := NewAccounts([]Account{{Username: "keeper", PasswordHash: hashFor(t, "s3cret")}}, nil)
	if err != nil {
		t.Fatalf("NewAccounts: %v", err)
	}

	tests := []struct {
		name     string
		username string
		password string
		wantErr  error
	}{
		{name: "valid", username: "keeper", password: "s3cret"},
		{name: "wrong password", username: "keeper", password: "nope", wantErr: ErrInvalidCredentials},
		{name: "unknown user", username: "ghost", password: "s3cret", wantErr: ErrInvalidCredentials},
		{name: "empty password", username: "keeper", password: "", wantErr: ErrInvalidCredentials},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := accounts.Authenticate(tt.username, tt.password)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Authenticate() = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestAccountsValidation(t *testing.T) {
	tests := []struct {
		name     string
		accounts []Account
	}{
		{name: "plain text password", accounts: []Account{{Username: "keeper", PasswordHash: "s3cret"}}},
		{name: "missing username", accounts: []Account{{PasswordHash: hashFor(t, "x")}}},
		{name: "duplicate", accounts: []Account{
			{Username: "keeper", PasswordHash: hashFor(t, "a")},
			{Username: "keeper", PasswordHash: hashFor(t, "b")},
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewAccounts(tt.accounts, nil); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestAccountsReplace(t *testing.T) {
	accounts, err := NewAccounts(nil, nil)
	if err != nil {
		t.Fatalf("NewAccounts: %v", err)
	}
	if accounts.Enabled() {
		t.Fatal("no accounts should mean login is disabled")
	}

	if err := accounts.Replace([]Account{{Username: "keeper", PasswordHash: hashFor(t, "pw")}}); err != nil {
		t.Fatalf("Replace: %v", err)
	}
	if !accounts.Enabled() || !accounts.Has("keeper") {
		t.Error("replaced account missing")
	}

	if err := accounts.Replace([]Account{{Username: "other", PasswordHash: "bad"}}); err == nil {
		t.Fatal("expected error for invalid list")
	}
	if !accounts.Has("keeper") {
		t.Error("invalid replacement dropped the previous accounts")
	}
}

func TestHashPassword(t *testing.T) {
	hash, err := HashPassword("pond")
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	if err := (Account{Username: "keeper", PasswordHash: hash}).Validate(); err != nil {
		t.Errorf("generated hash rejected: %v", err)
	}
	if _, err := HashPassword(""); err == nil {
		t.Error("expected error for empty password")
	}
}

func TestLockout(t *testing.T) {
	now := time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)
	lockout := NewLockout(3, time.Minute)
	lockout.now = func() time.Time { return now }

	accounts, err := NewAccounts([]Account{{Username: "keeper", PasswordHash: hashFor(t, "pw")}}, lockout)
	if err != nil {
		t.Fatalf("NewAccounts: %v", err)
	}

	for i := 0; i < 2; i++ {
		if err := accounts.Authenticate("keeper", "wrong"); !errors.Is(err, ErrInvalidCredentials) {
			t.Fatalf("attempt %d = %v, want ErrInvalidCredentials", i+1, err)
		}
	}
	if err := accounts.Authenticate("keeper", "wrong"); !errors.Is(err, ErrLocked) {
		t.Fatalf("third failure = %v, want ErrLocked", err)
	}
	if err := accounts.Authenticate("keeper", "pw"); !errors.Is(err, ErrLocked) {
		t.Errorf("correct password while locked = %v, want ErrLocked", err)
	}

	now = now.Add(2 * time.Minute)
	if err := accounts.Authenticate("keeper", "pw"); err != nil {
		t.Errorf("after lock expiry = %v, want nil", err)
	}
	if lockout.IsLocked("keeper") {
		t.Error("successful login should clear the lock")
	}
}
