// Package pondapi is the HTTP client for the external pond server.
//
// Every call classifies failures the same way: transport errors, non-2xx
// statuses, non-JSON bodies and business rejections (success != true) all
// surface as *Error. The client never retries.
package pondapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/good-yellow-bee/pondview/internal/metrics"
	"github.com/good-yellow-bee/pondview/pkg/config"
)

// Config holds pond server connection settings.
type Config struct {
	BaseURL   string        // e.g. http://localhost:1000
	Timeout   time.Duration // per request (default: 10s)
	RateLimit float64       // max requests per second, 0 disables limiting
	Burst     int           // limiter burst (default: 10)
}

// Validate validates the client configuration.
func (c *Config) Validate() error {
	if c.BaseURL == "" {
		return fmt.Errorf("base URL is required")
	}
	if !strings.HasPrefix(c.BaseURL, "http://") && !strings.HasPrefix(c.BaseURL, "https://") {
		return fmt.Errorf("base URL must start with http:// or https://")
	}
	if c.RateLimit < 0 {
		return fmt.Errorf("rate limit must not be negative")
	}
	return nil
}

// Client talks to the pond server.
type Client struct {
	http    *resty.Client
	limiter *rate.Limiter
	logger  *zap.Logger
}

// New creates a new pond server client.
func New(cfg Config, logger *zap.Logger) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid pond api config: %w", err)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	httpClient := resty.New().
		SetBaseURL(strings.TrimRight(cfg.BaseURL, "/")).
		SetTimeout(cfg.Timeout).
		SetRetryCount(0).
		SetHeader("Accept", "application/json").
		SetHeader("User-Agent", "pondview/"+config.Version)

	c := &Client{
		http:   httpClient,
		logger: logger,
	}
	if cfg.RateLimit > 0 {
		burst := cfg.Burst
		if burst <= 0 {
			burst = 10
		}
		c.limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), burst)
	}
	return c, nil
}

// call describes one request to the pond server.
type call struct {
	endpoint   string // metric and error label
	method     string
	path       string
	pathParams map[string]string
	query      map[string]string
	body       any
}

// envelope is the common shape of action responses.
type envelope struct {
	Success *bool  `json:"success"`
	Message string `json:"message"`
	Error   string `json:"error"`
}

func (e envelope) text() string {
	if e.Message != "" {
		return e.Message
	}
	return e.Error
}

// do executes c and decodes a 2xx JSON body into out.
// When requireSuccess is set, the body must carry success: true.
func (c *Client) do(ctx context.Context, req call, out any, requireSuccess bool) error {
	start := time.Now()
	err := c.execute(ctx, req, out, requireSuccess)
	metrics.UpstreamRequestDuration.WithLabelValues(req.endpoint).Observe(time.Since(start).Seconds())

	outcome := "ok"
	var apiErr *Error
	if errors.As(err, &apiErr) {
		outcome = apiErr.Kind.String()
	}
	metrics.UpstreamRequestsTotal.WithLabelValues(req.endpoint, outcome).Inc()

	if err != nil {
		c.logger.Debug("pond server call failed",
			zap.String("endpoint", req.endpoint),
			zap.String("path", req.path),
			zap.Error(err),
		)
	}
	return err
}

func (c *Client) execute(ctx context.Context, req call, out any, requireSuccess bool) error {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return &Error{Kind: KindTransport, Endpoint: req.endpoint, Err: err}
		}
	}

	r := c.http.R().SetContext(ctx)
	if len(req.pathParams) > 0 {
		r.SetPathParams(req.pathParams)
	}
	if len(req.query) > 0 {
		r.SetQueryParams(req.query)
	}
	if req.body != nil {
		r.SetHeader("Content-Type", "application/json").SetBody(req.body)
	} else if req.method == http.MethodPost {
		r.SetHeader("Content-Type", "application/json")
	}

	resp, err := r.Execute(req.method, req.path)
	if err != nil {
		return &Error{Kind: KindTransport, Endpoint: req.endpoint, Err: err}
	}

	status := resp.StatusCode()
	raw := bytes.TrimSpace(resp.Body())
	if len(raw) == 0 {
		raw = []byte("{}")
	}
	if !json.Valid(raw) {
		return &Error{Kind: KindDecode, Endpoint: req.endpoint, Status: status, Snippet: snippet(resp.Body())}
	}

	var env envelope
	_ = json.Unmarshal(raw, &env) // arrays and scalars simply leave env empty

	if !resp.IsSuccess() {
		return &Error{Kind: KindStatus, Endpoint: req.endpoint, Status: status, Message: env.text()}
	}
	if requireSuccess && (env.Success == nil || !*env.Success) {
		return &Error{Kind: KindBusiness, Endpoint: req.endpoint, Status: status, Message: env.text()}
	}

	if out != nil {
		if err := json.Unmarshal(raw, out); err != nil {
			return &Error{Kind: KindDecode, Endpoint: req.endpoint, Status: status, Snippet: snippet(resp.Body()), Err: err}
		}
	}
	return nil
}
