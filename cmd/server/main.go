package main

import (
	"context"
	"crypto/rand"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/good-yellow-bee/pondview/internal/auth"
	"github.com/good-yellow-bee/pondview/internal/logging"
	"github.com/good-yellow-bee/pondview/internal/metrics"
	"github.com/good-yellow-bee/pondview/internal/pondapi"
	"github.com/good-yellow-bee/pondview/internal/server"
	"github.com/good-yellow-bee/pondview/internal/watch"
	"github.com/good-yellow-bee/pondview/internal/web"
	"github.com/good-yellow-bee/pondview/internal/web/handlers"
	"github.com/good-yellow-bee/pondview/pkg/config"
)

var (
	configFile string
	httpAddr   string
	verbose    bool
)

var rootCmd = &cobra.Command{
	Use:   "pondview-server",
	Short: "PondView Server - aquaculture pond monitoring dashboard",
	Long: `PondView Server serves the browser dashboard for the pond server:
live readings per pond, the alerts table, settings, thresholds and history.`,
	RunE: runServer,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("pondview-server %s\n", config.Version)
		fmt.Printf("  commit: %s\n", config.Commit)
		fmt.Printf("  built:  %s\n", config.BuildTime)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "config file path (optional)")
	rootCmd.PersistentFlags().StringVarP(&httpAddr, "address", "a", "", "HTTP listen address (overrides config)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log every request")

	rootCmd.AddCommand(versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runServer(cmd *cobra.Command, args []string) error {
	var cfg *Config

	// Load configuration from file if provided
	if configFile != "" {
		var err error
		cfg, err = LoadConfig(configFile)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
	} else {
		cfg = DefaultConfig()
		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("validate config: %w", err)
		}
	}

	// Override with CLI flags
	if httpAddr != "" {
		cfg.Server.HTTPAddress = httpAddr
	}
	cfg.Verbose = verbose

	logger, err := logging.New(cfg.Log.Level, cfg.Log.Format, "pondview-server")
	if err != nil {
		return fmt.Errorf("create logger: %w", err)
	}
	defer logger.Sync()

	metrics.SetBuildInfo(config.Version, config.Commit, config.BuildTime)

	api, err := pondapi.New(pondapi.Config{
		BaseURL:   cfg.Upstream.BaseURL,
		Timeout:   duration(cfg.Upstream.Timeout),
		RateLimit: cfg.Upstream.RateLimit,
		Burst:     cfg.Upstream.Burst,
	}, logger.Named("pondapi"))
	if err != nil {
		return fmt.Errorf("create pond api client: %w", err)
	}

	csrfKey := cfg.Web.CSRFKey
	if csrfKey == "" {
		csrfKey, err = randomKey()
		if err != nil {
			return fmt.Errorf("generate csrf key: %w", err)
		}
		logger.Warn("no csrf key configured, using a random key; forms break across restarts")
	}

	accounts, err := auth.NewAccounts(cfg.Auth.Users,
		auth.NewLockout(cfg.Auth.LockoutThreshold, duration(cfg.Auth.LockoutDuration)))
	if err != nil {
		return fmt.Errorf("load accounts: %w", err)
	}
	if !accounts.Enabled() {
		logger.Warn("no operator accounts configured, the dashboard is open to every visitor")
	}

	limits, _ := cfg.limits()
	webSrv, err := web.NewServer(api, web.Options{
		Handlers: handlers.Config{
			Pools:        cfg.Dashboard.Pools,
			PollInterval: duration(cfg.Dashboard.PollInterval),
			PageSize:     cfg.Alerts.PageSize,
			Limits:       limits,
			Accounts:     accounts,
		},
		CSRFKey:          csrfKey,
		SessionTTL:       duration(cfg.Web.SessionTTL),
		UseSecureCookies: cfg.Web.SecureCookies,
		Verbose:          cfg.Verbose,
		Logger:           logger.Named("web"),
	})
	if err != nil {
		return fmt.Errorf("create web server: %w", err)
	}
	defer webSrv.Close()

	srv, err := server.New(&server.Config{
		HTTPAddress:     cfg.Server.HTTPAddress,
		MetricsAddress:  cfg.Server.MetricsAddress,
		ShutdownTimeout: duration(cfg.Server.ShutdownTimeout),
	}, webSrv.Routes(), logger)
	if err != nil {
		return fmt.Errorf("create server: %w", err)
	}

	// Setup signal handling
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if configFile != "" {
		w, err := watch.New(configFile, func() { reloadConfig(webSrv.Handler(), accounts, logger) }, watch.Options{Logger: logger})
		if err != nil {
			return fmt.Errorf("watch config: %w", err)
		}
		if err := w.Start(ctx); err != nil {
			return fmt.Errorf("watch config: %w", err)
		}
		defer w.Stop()
	}

	logger.Info("starting pondview-server",
		zap.String("version", config.Version),
		zap.String("http_address", cfg.Server.HTTPAddress),
		zap.String("upstream", cfg.Upstream.BaseURL),
		zap.Strings("pools", cfg.Dashboard.Pools),
	)

	if err := srv.Run(ctx); err != nil {
		return fmt.Errorf("run server: %w", err)
	}

	logger.Info("server stopped")
	return nil
}

// reloadConfig applies the settings that can change while the server runs.
// A config that fails to load leaves the running settings untouched.
func reloadConfig(h *handlers.Handler, accounts *auth.Accounts, logger *zap.Logger) {
	cfg, err := LoadConfig(configFile)
	if err != nil {
		logger.Warn("config reload failed", zap.String("path", configFile), zap.Error(err))
		return
	}
	h.SetPools(cfg.Dashboard.Pools)
	h.SetPollInterval(duration(cfg.Dashboard.PollInterval))
	if err := accounts.Replace(cfg.Auth.Users); err != nil {
		logger.Warn("accounts not reloaded", zap.Error(err))
	}
	logger.Info("config reloaded",
		zap.String("poll_interval", cfg.Dashboard.PollInterval),
		zap.Strings("pools", cfg.Dashboard.Pools),
		zap.Int("accounts", len(cfg.Auth.Users)),
	)
}

func randomKey() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return string(b), nil
}
