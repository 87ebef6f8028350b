// Package server runs the PondView HTTP listeners until shutdown.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/good-yellow-bee/pondview/internal/metrics"
)

// Config holds server configuration.
type Config struct {
	HTTPAddress     string        // web UI listen address
	MetricsAddress  string        // Prometheus listen address, empty disables it
	ShutdownTimeout time.Duration // grace period for open requests (default: 10s)
}

// Server is the PondView web server.
type Server struct {
	config  *Config
	http    *http.Server
	metrics *metrics.Server
	logger  *zap.Logger
}

// New creates a server serving handler.
func New(cfg *Config, handler http.Handler, logger *zap.Logger) (*Server, error) {
	if cfg.HTTPAddress == "" {
		return nil, errors.New("http address is required")
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = 10 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	s := &Server{
		config: cfg,
		logger: logger,
		http: &http.Server{
			Addr:              cfg.HTTPAddress,
			Handler:           handler,
			ReadHeaderTimeout: 10 * time.Second,
			IdleTimeout:       120 * time.Second,
			// No WriteTimeout: the dashboard event stream stays open.
		},
	}
	if cfg.MetricsAddress != "" {
		s.metrics = metrics.NewServer(cfg.MetricsAddress, logger)
	}
	return s, nil
}

// Run starts the listeners and blocks until ctx is cancelled or a listener
// fails. Open requests get the shutdown timeout to finish.
func (s *Server) Run(ctx context.Context) error {
	listener, err := net.Listen("tcp", s.config.HTTPAddress)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.config.HTTPAddress, err)
	}
	return s.Serve(ctx, listener)
}

// Serve is Run on an existing listener.
func (s *Server) Serve(ctx context.Context, listener net.Listener) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		s.logger.Info("http server listening", zap.String("addr", listener.Addr().String()))
		if err := s.http.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serve http: %w", err)
		}
		return nil
	})
	if s.metrics != nil {
		g.Go(s.metrics.Start)
	}

	g.Go(func() error {
		<-gctx.Done()
		s.logger.Info("shutting down http server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.config.ShutdownTimeout)
		defer cancel()

		var errs []error
		if err := s.http.Shutdown(shutdownCtx); err != nil {
			errs = append(errs, fmt.Errorf("shutdown http: %w", err))
		}
		if s.metrics != nil {
			if err := s.metrics.Shutdown(shutdownCtx); err != nil {
				errs = append(errs, fmt.Errorf("shutdown metrics: %w", err))
			}
		}
		return errors.Join(errs...)
	})

	return g.Wait()
}
