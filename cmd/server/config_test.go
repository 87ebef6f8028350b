package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/good-yellow-bee/pondview/internal/auth"
	"github.com/good-yellow-bee/pondview/internal/models"
)

func testHash(t *testing.T) string {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte("feedtime"), bcrypt.MinCost)
	if err != nil {
		t.Fatal(err)
	}
	return string(hash)
}

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "pondview.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestDefaultConfig(t *testing.T) {
	t.Setenv("PONDVIEW_CSRF_KEY", "")
	cfg := DefaultConfig()

	if err := cfg.Validate(); err != nil {
		t.Fatalf("validate default config: %v", err)
	}
	if duration(cfg.Dashboard.PollInterval) != 5*time.Second {
		t.Errorf("poll interval = %s, want 5s", cfg.Dashboard.PollInterval)
	}
	if cfg.Alerts.PageSize != 8 {
		t.Errorf("page size = %d, want 8", cfg.Alerts.PageSize)
	}
	if strings.Join(cfg.Dashboard.Pools, ",") != "1,2,3,4" {
		t.Errorf("pools = %v", cfg.Dashboard.Pools)
	}
}

func TestLoadConfig(t *testing.T) {
	t.Setenv("PONDVIEW_CSRF_KEY", "")
	path := writeConfig(t, `
server:
  http_address: ":9090"
upstream:
  base_url: "http://pond.local:1000"
  rate_limit: 5
dashboard:
  poll_interval: 2s
  pools: ["A", "B"]
thresholds:
  limits:
    orp:
      min: 100
      max: 400
      step: 5
`)

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Server.HTTPAddress != ":9090" || cfg.Upstream.RateLimit != 5 {
		t.Errorf("config = %+v", cfg)
	}
	limits, err := cfg.limits()
	if err != nil {
		t.Fatalf("limits: %v", err)
	}
	if got := limits[models.SensorORP]; got.Min != 100 || got.Max != 400 || got.Step != 5 {
		t.Errorf("orp limits = %+v", got)
	}
	if got := limits[models.SensorTemp]; got.Max != 40 {
		t.Errorf("temp limits should keep the default, got %+v", got)
	}
}

func TestLoadConfig_Auth(t *testing.T) {
	t.Setenv("PONDVIEW_CSRF_KEY", "")
	path := writeConfig(t, `
auth:
  lockout_threshold: 3
  users:
    - username: operator
      password_hash: "`+testHash(t)+`"
`)

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if len(cfg.Auth.Users) != 1 || cfg.Auth.Users[0].Username != "operator" {
		t.Fatalf("users = %+v", cfg.Auth.Users)
	}
	if cfg.Auth.LockoutThreshold != 3 {
		t.Errorf("lockout threshold = %d, want 3", cfg.Auth.LockoutThreshold)
	}
	if duration(cfg.Auth.LockoutDuration) != 15*time.Minute {
		t.Errorf("lockout duration = %s, want default 15m", cfg.Auth.LockoutDuration)
	}

	accounts, err := auth.NewAccounts(cfg.Auth.Users, nil)
	if err != nil {
		t.Fatalf("NewAccounts: %v", err)
	}
	if err := accounts.Authenticate("operator", "feedtime"); err != nil {
		t.Errorf("Authenticate: %v", err)
	}
}

func TestConfigCSRFKeyFromEnv(t *testing.T) {
	t.Setenv("PONDVIEW_CSRF_KEY", strings.Repeat("k", 32))
	cfg := DefaultConfig()
	if cfg.Web.CSRFKey != strings.Repeat("k", 32) {
		t.Errorf("csrf key not taken from environment")
	}
}

func TestConfigValidate_Rejects(t *testing.T) {
	t.Setenv("PONDVIEW_CSRF_KEY", "")
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{name: "bad base url", mutate: func(c *Config) { c.Upstream.BaseURL = "pond.local" }},
		{name: "bad poll interval", mutate: func(c *Config) { c.Dashboard.PollInterval = "soon" }},
		{name: "zero poll interval", mutate: func(c *Config) { c.Dashboard.PollInterval = "0s" }},
		{name: "empty pool", mutate: func(c *Config) { c.Dashboard.Pools = []string{"1", " "} }},
		{name: "short csrf key", mutate: func(c *Config) { c.Web.CSRFKey = "short" }},
		{name: "unknown sensor", mutate: func(c *Config) {
			c.Thresholds.Limits = map[string]LimitsConfig{"turbidity": {Min: 0, Max: 1, Step: 1}}
		}},
		{name: "empty track", mutate: func(c *Config) {
			c.Thresholds.Limits = map[string]LimitsConfig{"ph": {Min: 5, Max: 5, Step: 1}}
		}},
		{name: "plaintext password", mutate: func(c *Config) {
			c.Auth.Users = []auth.Account{{Username: "op", PasswordHash: "secret"}}
		}},
		{name: "missing username", mutate: func(c *Config) {
			c.Auth.Users = []auth.Account{{PasswordHash: testHash(t)}}
		}},
		{name: "duplicate username", mutate: func(c *Config) {
			h := testHash(t)
			c.Auth.Users = []auth.Account{{Username: "op", PasswordHash: h}, {Username: "op", PasswordHash: h}}
		}},
		{name: "bad lockout duration", mutate: func(c *Config) { c.Auth.LockoutDuration = "a while" }},
		{name: "negative lockout threshold", mutate: func(c *Config) { c.Auth.LockoutThreshold = -1 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Fatal("expected validation error")
			}
		})
	}
}
