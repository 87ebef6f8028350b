// Package main provides the PondView server CLI.
package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/good-yellow-bee/pondview/internal/auth"
	"github.com/good-yellow-bee/pondview/internal/models"
	"github.com/good-yellow-bee/pondview/internal/thresholds"
)

// Config represents the server configuration.
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Upstream   UpstreamConfig   `yaml:"upstream"`
	Dashboard  DashboardConfig  `yaml:"dashboard"`
	Alerts     AlertsConfig     `yaml:"alerts"`
	Thresholds ThresholdsConfig `yaml:"thresholds"`
	Web        WebConfig        `yaml:"web"`
	Auth       AuthConfig       `yaml:"auth"`
	Log        LogConfig        `yaml:"log"`
	Verbose    bool             `yaml:"-"` // set via CLI flag
}

// ServerConfig contains listener settings.
type ServerConfig struct {
	HTTPAddress     string `yaml:"http_address"`     // web UI listen address (default: :8080)
	MetricsAddress  string `yaml:"metrics_address"`  // Prometheus listen address, empty disables it
	ShutdownTimeout string `yaml:"shutdown_timeout"` // grace period for open requests (default: 10s)
}

// UpstreamConfig points at the pond server.
type UpstreamConfig struct {
	BaseURL   string  `yaml:"base_url"`   // e.g. http://localhost:1000
	Timeout   string  `yaml:"timeout"`    // per request (default: 10s)
	RateLimit float64 `yaml:"rate_limit"` // requests per second, 0 disables limiting
	Burst     int     `yaml:"burst"`      // limiter burst (default: 10)
}

// DashboardConfig contains live dashboard settings. Both fields are
// reloaded while the server runs.
type DashboardConfig struct {
	PollInterval string   `yaml:"poll_interval"` // refresh period (default: 5s)
	Pools        []string `yaml:"pools"`         // selectable ponds (default: 1-4)
}

// AlertsConfig contains alerts table settings.
type AlertsConfig struct {
	PageSize int `yaml:"page_size"` // rows per page (default: 8)
}

// LimitsConfig is the slider track of one sensor.
type LimitsConfig struct {
	Min  float64 `yaml:"min"`
	Max  float64 `yaml:"max"`
	Step float64 `yaml:"step"`
}

// ThresholdsConfig overrides slider tracks per sensor.
type ThresholdsConfig struct {
	Limits map[string]LimitsConfig `yaml:"limits"`
}

// WebConfig contains browser session settings.
type WebConfig struct {
	CSRFKey       string `yaml:"csrf_key"`       // 32 bytes; PONDVIEW_CSRF_KEY overrides it
	SessionTTL    string `yaml:"session_ttl"`    // idle viewer session lifetime (default: 24h)
	SecureCookies bool   `yaml:"secure_cookies"` // mark cookies Secure behind a TLS proxy
}

// AuthConfig declares the operator accounts. Without users the UI is open
// to anyone who can reach it. Users are reloaded while the server runs.
type AuthConfig struct {
	Users            []auth.Account `yaml:"users"`             // bcrypt hashes, see "pondctl hash-password"
	LockoutThreshold int            `yaml:"lockout_threshold"` // failed logins before a lockout (default: 5)
	LockoutDuration  string         `yaml:"lockout_duration"`  // lockout length (default: 15m)
}

// LogConfig contains logging settings.
type LogConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error (default: info)
	Format string `yaml:"format"` // json or console (default: json)
}

// LoadConfig loads configuration from a YAML file.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	cfg.setDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &cfg, nil
}

// DefaultConfig returns a configuration with default values.
func DefaultConfig() *Config {
	cfg := &Config{}
	cfg.setDefaults()
	return cfg
}

// setDefaults sets default values for missing config fields.
func (c *Config) setDefaults() {
	if c.Server.HTTPAddress == "" {
		c.Server.HTTPAddress = ":8080"
	}
	if c.Server.ShutdownTimeout == "" {
		c.Server.ShutdownTimeout = "10s"
	}
	if c.Upstream.BaseURL == "" {
		c.Upstream.BaseURL = "http://localhost:1000"
	}
	if c.Upstream.Timeout == "" {
		c.Upstream.Timeout = "10s"
	}
	if c.Upstream.Burst == 0 {
		c.Upstream.Burst = 10
	}
	if c.Dashboard.PollInterval == "" {
		c.Dashboard.PollInterval = "5s"
	}
	if len(c.Dashboard.Pools) == 0 {
		c.Dashboard.Pools = []string{"1", "2", "3", "4"}
	}
	if c.Alerts.PageSize == 0 {
		c.Alerts.PageSize = 8
	}
	if c.Web.SessionTTL == "" {
		c.Web.SessionTTL = "24h"
	}
	if c.Auth.LockoutThreshold == 0 {
		c.Auth.LockoutThreshold = 5
	}
	if c.Auth.LockoutDuration == "" {
		c.Auth.LockoutDuration = "15m"
	}
	if key := os.Getenv("PONDVIEW_CSRF_KEY"); key != "" {
		c.Web.CSRFKey = key
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "json"
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if c.Server.HTTPAddress == "" {
		return fmt.Errorf("server.http_address is required")
	}
	if !strings.HasPrefix(c.Upstream.BaseURL, "http://") && !strings.HasPrefix(c.Upstream.BaseURL, "https://") {
		return fmt.Errorf("upstream.base_url must start with http:// or https://")
	}
	if c.Upstream.RateLimit < 0 {
		return fmt.Errorf("upstream.rate_limit must not be negative")
	}
	for name, value := range map[string]string{
		"server.shutdown_timeout": c.Server.ShutdownTimeout,
		"upstream.timeout":        c.Upstream.Timeout,
		"dashboard.poll_interval": c.Dashboard.PollInterval,
		"web.session_ttl":         c.Web.SessionTTL,
		"auth.lockout_duration":   c.Auth.LockoutDuration,
	} {
		d, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("%s: invalid duration %q: %w", name, value, err)
		}
		if d <= 0 {
			return fmt.Errorf("%s must be positive", name)
		}
	}
	for _, pool := range c.Dashboard.Pools {
		if strings.TrimSpace(pool) == "" {
			return fmt.Errorf("dashboard.pools must not contain empty names")
		}
	}
	if c.Alerts.PageSize < 0 {
		return fmt.Errorf("alerts.page_size must not be negative")
	}
	if _, err := c.limits(); err != nil {
		return err
	}
	if c.Auth.LockoutThreshold < 0 {
		return fmt.Errorf("auth.lockout_threshold must not be negative")
	}
	seen := make(map[string]bool, len(c.Auth.Users))
	for i, u := range c.Auth.Users {
		if err := u.Validate(); err != nil {
			return fmt.Errorf("auth.users[%d]: %w", i, err)
		}
		if seen[u.Username] {
			return fmt.Errorf("auth.users: duplicate username %q", u.Username)
		}
		seen[u.Username] = true
	}
	if c.Web.CSRFKey != "" && len(c.Web.CSRFKey) != 32 {
		return fmt.Errorf("web.csrf_key must be 32 bytes, got %d", len(c.Web.CSRFKey))
	}
	return nil
}

// duration parses a value Validate already accepted.
func duration(s string) time.Duration {
	d, _ := time.ParseDuration(s)
	return d
}

// limits merges the configured slider tracks over the defaults.
func (c *Config) limits() (map[models.Sensor]thresholds.Limits, error) {
	out := thresholds.DefaultLimits()
	for name, l := range c.Thresholds.Limits {
		sensor, ok := models.ParseSensor(name)
		if !ok {
			return nil, fmt.Errorf("thresholds.limits: unknown sensor %q", name)
		}
		limits := thresholds.Limits{Min: l.Min, Max: l.Max, Step: l.Step}
		if err := limits.Validate(); err != nil {
			return nil, fmt.Errorf("thresholds.limits.%s: %w", name, err)
		}
		out[sensor] = limits
	}
	return out, nil
}
