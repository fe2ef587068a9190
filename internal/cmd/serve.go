package cmd

import (
	"context"
	"net/http"
	"time"

	"github.com/fulmenhq/gofulmen/foundry"
	"github.com/fulmenhq/gofulmen/signals"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/tilerelay/tilerelay/internal/config"
	errwrap "github.com/tilerelay/tilerelay/internal/errors"
	"github.com/tilerelay/tilerelay/internal/iiif"
	"github.com/tilerelay/tilerelay/internal/metrics"
	"github.com/tilerelay/tilerelay/internal/observability"
	"github.com/tilerelay/tilerelay/internal/relay"
	"github.com/tilerelay/tilerelay/internal/server"
	"github.com/tilerelay/tilerelay/internal/server/handlers"
)

var (
	serverPort int
	serverHost string
)

// telemetryHealthChecker ensures telemetry system and exporter are available
func telemetryHealthChecker(ctx context.Context) error {
	if observability.TelemetrySystem == nil || observability.PrometheusExporter == nil {
		return errwrap.NewInternalError("telemetry system not initialized")
	}
	return nil
}

// registryHealthChecker fails when no dezoomer can serve resolutions.
func registryHealthChecker(registry *iiif.Registry) handlers.CheckerFunc {
	return func(ctx context.Context) error {
		if registry == nil || len(registry.List()) == 0 {
			return errwrap.NewServiceUnavailableError("no dezoomers registered")
		}
		return nil
	}
}

// newHealthManager registers the checks that gate readiness.
func newHealthManager(cfg *config.Config, registry *iiif.Registry) *handlers.HealthManager {
	hm := handlers.NewHealthManager(versionInfo.Version)
	hm.RegisterChecker("dezoomers", registryHealthChecker(registry))
	if cfg.Metrics.Enabled {
		hm.RegisterChecker("telemetry", handlers.CheckerFunc(telemetryHealthChecker))
	}
	return hm
}

// newServer assembles the HTTP server from configuration.
func newServer(cfg *config.Config, registry *iiif.Registry) (*server.Server, error) {
	opts := []server.Option{
		server.WithRelay(relay.New(cfg.Relay.Options(), observability.ServerLogger)),
		server.WithResolver(registry, cfg.IIIF.ResolveTimeout),
		server.WithCORSOrigins(cfg.Relay.CORSOrigins...),
		server.WithBuildInfo(handlers.BuildInfo{
			Name:      config.AppName,
			Version:   versionInfo.Version,
			Commit:    versionInfo.Commit,
			BuildDate: versionInfo.BuildDate,
		}),
		server.WithTimeouts(server.Timeouts{
			Read:  cfg.Server.ReadTimeout,
			Write: cfg.Server.WriteTimeout,
			Idle:  cfg.Server.IdleTimeout,
		}),
	}
	if cfg.Health.Enabled {
		opts = append(opts, server.WithHealthManager(newHealthManager(cfg, registry)))
	}
	return server.New(cfg.Server.Host, cfg.Server.Port, opts...)
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the relay and resolution server",
	Long: `Start the HTTP server: the CORS relay at / and /proxy, the resolution API
under /api/v1, health probes and metrics.

Signal Handling:
  • Ctrl+C (SIGINT) or SIGTERM: Graceful shutdown
  • Ctrl+C twice within 2s: Force quit
  • SIGHUP: Config file re-read (restart to apply relay and fetch changes)

The server will cleanly shut down the HTTP server and flush logs on shutdown.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			ExitWithCode(observability.CLILogger, foundry.ExitConfigInvalid, "Invalid configuration", err)
			return err
		}

		if err := observability.InitServerLogger(config.AppName, cfg.Logging.Level); err != nil {
			return errwrap.Wrap(cmd.Context(), errwrap.CodeInternal, err, "logger initialization failed", nil)
		}
		logger := observability.ServerLogger

		if cfg.Metrics.Enabled {
			if err := observability.InitMetrics(config.AppName, cfg.Metrics.Port); err != nil {
				logger.Error("Failed to initialize metrics", zap.Error(err))
				return errwrap.Wrap(cmd.Context(), errwrap.CodeInternal, err, "metrics initialization failed", nil)
			}
		}

		registry, err := buildRegistry(cfg, logger, true)
		if err != nil {
			return err
		}

		logger.Info("Initializing server",
			zap.String("service", config.AppName),
			zap.String("version", versionInfo.Version),
			zap.String("host", cfg.Server.Host),
			zap.Int("port", cfg.Server.Port),
			zap.Bool("metrics_enabled", cfg.Metrics.Enabled),
			zap.Int("metrics_port", cfg.Metrics.Port),
			zap.Int("max_hops", cfg.Relay.MaxHops),
			zap.Strings("dezoomers", registry.List()))

		srv, err := newServer(cfg, registry)
		if err != nil {
			return errwrap.Wrap(cmd.Context(), errwrap.CodeConfigInvalid, err, "server setup failed", nil)
		}

		shutdownTimeout := cfg.Server.ShutdownTimeout
		if shutdownTimeout == 0 {
			shutdownTimeout = 10 * time.Second
		}

		// Shutdown handlers run LIFO: the server stops before the logger flushes.
		signals.OnShutdown(func(ctx context.Context) error {
			logger.Info("Flushing logger...")
			if err := logger.Sync(); err != nil {
				// Sync errors are often benign (stdout/stderr already closed)
				logger.Warn("Logger sync returned error (may be benign)", zap.Error(err))
			}
			return nil
		})

		signals.OnShutdown(func(ctx context.Context) error {
			logger.Info("Shutting down HTTP server...")
			shutdownCtx, cancel := context.WithTimeout(ctx, shutdownTimeout)
			defer cancel()

			if err := srv.Shutdown(shutdownCtx); err != nil {
				return errwrap.Wrap(ctx, errwrap.CodeInternal, err, "server shutdown failed", nil)
			}

			logger.Info("HTTP server stopped gracefully")
			return nil
		})

		signals.OnReload(func(ctx context.Context) error {
			logger.Info("Received SIGHUP: attempting config reload")

			used, err := config.ReadFile(viper.GetViper())
			if err != nil {
				logger.Error("Failed to reload config file", zap.Error(err))
				return errwrap.Wrap(ctx, errwrap.CodeConfigInvalid, err, "config reload failed", nil)
			}
			if used == "" {
				logger.Info("No config file found - using defaults and environment variables")
				return nil
			}
			if _, err := config.Load(viper.GetViper()); err != nil {
				logger.Error("Reloaded config is invalid", zap.String("file", used), zap.Error(err))
				return errwrap.Wrap(ctx, errwrap.CodeConfigInvalid, err, "config reload failed", nil)
			}

			logger.Info("Configuration reloaded successfully", zap.String("file", used))
			return nil
		})

		if err := signals.EnableDoubleTap(signals.DoubleTapConfig{
			Window:  2 * time.Second,
			Message: "Press Ctrl+C again within 2 seconds to force quit",
		}); err != nil {
			logger.Warn("Failed to enable double-tap force quit", zap.Error(err))
		}

		errChan := make(chan error, 1)
		go func() {
			logger.Info("Starting HTTP server...",
				zap.String("host", cfg.Server.Host),
				zap.Int("port", cfg.Server.Port))
			metrics.SetServerStartTime(time.Now())
			if err := srv.Start(); err != nil && err != http.ErrServerClosed {
				errChan <- err
			}
		}()

		go func() {
			if err := signals.Listen(cmd.Context()); err != nil {
				logger.Error("Signal handler error", zap.Error(err))
				errChan <- err
			}
		}()

		if err := <-errChan; err != nil {
			return errwrap.Wrap(cmd.Context(), errwrap.CodeInternal, err, "server error", nil)
		}

		return nil
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVar(&serverHost, "host", "localhost", "server host")
	serveCmd.Flags().IntVarP(&serverPort, "port", "p", 8080, "server port")

	_ = viper.BindPFlag("server.host", serveCmd.Flags().Lookup("host"))
	_ = viper.BindPFlag("server.port", serveCmd.Flags().Lookup("port"))
}
