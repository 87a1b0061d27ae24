package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/marmos91/boltkit/internal/logger"
	"github.com/marmos91/boltkit/pkg/backend/memory"
	"github.com/marmos91/boltkit/pkg/bolt/server"
	"github.com/marmos91/boltkit/pkg/config"
	"github.com/marmos91/boltkit/pkg/metrics/prometheus"
)

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the Bolt server",
	Long: `Start the Bolt server with the specified configuration.

Use --config to specify a custom configuration file, or it will use the
default location at $XDG_CONFIG_HOME/boltkit/config.yaml.

Examples:
  # Start with default config location
  boltkitd start

  # Start with custom config file
  boltkitd start --config /etc/boltkit/config.yaml

  # Start with environment variable overrides
  BOLTKIT_LOGGING_LEVEL=DEBUG boltkitd start`,
	RunE: runStart,
}

func runStart(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(GetConfigFile())
	if err != nil {
		return err
	}

	if err := InitLogger(cfg); err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	logger.Info("Log level", "level", cfg.Logging.Level, "format", cfg.Logging.Format)
	logger.Info("Configuration loaded", "source", getConfigSource(GetConfigFile()))

	validator, err := config.NewAuthValidator(cfg.Auth)
	if err != nil {
		return err
	}

	opts := []server.Option{}
	if validator != nil {
		opts = append(opts, server.WithAuth(validator))
	}
	if cfg.Server.MaxSessions > 0 {
		opts = append(opts, server.WithMaxSessions(cfg.Server.MaxSessions))
	}
	if cfg.Server.IdleTimeout > 0 {
		opts = append(opts, server.WithIdleTimeout(cfg.Server.IdleTimeout))
	}
	if cfg.Server.MaxMessageSize > 0 {
		opts = append(opts, server.WithMaxMessageSize(int(cfg.Server.MaxMessageSize)))
	}

	var metricsSrv *prometheus.HTTPServer
	if cfg.Metrics.Enabled {
		recorder := prometheus.NewRecorder()
		opts = append(opts, server.WithMetrics(recorder))
		metricsSrv = prometheus.NewHTTPServer(cfg.Metrics.Listen, recorder)
		logger.Info("Metrics enabled", "address", cfg.Metrics.Listen)
	} else {
		logger.Info("Metrics collection disabled")
	}

	backend := memory.New()
	srv := server.New(cfg.Server.Listen, backend, opts...)

	serverDone := make(chan error, 1)
	go func() {
		serverDone <- srv.Serve(ctx)
	}()

	if metricsSrv != nil {
		go func() {
			if err := metricsSrv.Serve(); err != nil {
				logger.Error("Metrics server error", "error", err)
			}
		}()
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	logger.Info("Server is running. Press Ctrl+C to stop.", "address", cfg.Server.Listen)

	var serveErr error
	select {
	case <-sigChan:
		signal.Stop(sigChan)
		logger.Info("Shutdown signal received, initiating graceful shutdown")
		srv.Stop()
		cancel()
		serveErr = <-serverDone

	case serveErr = <-serverDone:
		signal.Stop(sigChan)
	}

	if metricsSrv != nil {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer shutdownCancel()
		if err := metricsSrv.Shutdown(shutdownCtx); err != nil {
			logger.Error("Metrics server shutdown error", "error", err)
		}
	}

	if serveErr != nil {
		logger.Error("Server error", "error", serveErr)
		return fmt.Errorf("server error: %w", serveErr)
	}
	logger.Info("Server stopped gracefully")
	return nil
}
