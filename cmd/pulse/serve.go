package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	nats "github.com/nats-io/nats.go"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/digiy/pulse/internal/api"
	"github.com/digiy/pulse/internal/audit"
	"github.com/digiy/pulse/internal/auth"
	"github.com/digiy/pulse/internal/bridge"
	"github.com/digiy/pulse/internal/config"
	"github.com/digiy/pulse/internal/history"
	"github.com/digiy/pulse/internal/logging"
	"github.com/digiy/pulse/internal/stream"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP, SSE and WebSocket server",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cfgFile)
		},
	}
}

func runServe(configPath string) error {
	// Step 1: Load configuration and build the logger from it
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	log, logCloser, err := logging.New(cfg.Log)
	if err != nil {
		return err
	}
	defer func() { _ = logCloser.Close() }()

	log.WithField("version", Version).Info("Starting DIGIY Pulse")

	// Step 2: Watch the config file for log level changes
	watcher, err := config.NewWatcher(configPath, log)
	if err != nil {
		return fmt.Errorf("failed to create config watcher: %w", err)
	}
	watcher.OnChange(func(c *config.Config) {
		if err := logging.Apply(log, c.Log); err != nil {
			log.WithError(err).Warn("Ignoring log level change")
			return
		}
		log.WithField("level", c.Log.Level).Info("Log level updated")
	})
	stopWatch, err := watcher.Watch()
	if err != nil {
		return err
	}
	defer stopWatch()

	// Step 3: History and broadcast engine
	engine := stream.NewEngine(history.NewStore(cfg.Stream.HistorySize), stream.Options{
		QueueSize:         cfg.Stream.SubscriberQueue,
		HeartbeatInterval: cfg.Stream.HeartbeatInterval,
		Logger:            log,
	})
	log.WithFields(logrus.Fields{
		"historySize":     cfg.Stream.HistorySize,
		"subscriberQueue": cfg.Stream.SubscriberQueue,
	}).Info("Broadcast engine initialized")

	// Step 4: Credentials
	verifier, err := auth.NewVerifier(auth.VerifierConfig{
		SecretKey: cfg.Auth.JWTSecret,
		TokenTTL:  cfg.Auth.TokenTTL,
	})
	if err != nil {
		return fmt.Errorf("failed to create verifier: %w", err)
	}
	if cfg.Auth.AdminSecret == "" {
		log.Warn("ADMIN_SECRET is not set, /mint will reject every request")
	}

	// Step 5: Audit trail
	var auditLog *audit.Logger
	if cfg.Audit.File != "" {
		auditLog, err = audit.NewLogger(cfg.Audit.File, cfg.Log.MaxSizeMB, cfg.Log.MaxBackups)
		if err != nil {
			return fmt.Errorf("failed to initialize audit logger: %w", err)
		}
		log.WithField("file", cfg.Audit.File).Info("Audit logger initialized")
	}

	// Step 6: API server
	server := api.NewServer(engine, verifier, auth.NewMiddleware(verifier, cfg.Auth.AdminSecret), auditLog, log, api.Options{
		Addr:            cfg.Server.Addr,
		ReadTimeout:     cfg.Server.ReadTimeout,
		WriteTimeout:    cfg.Server.WriteTimeout,
		IdleTimeout:     cfg.Server.IdleTimeout,
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
		DefaultMerchant: cfg.Auth.DefaultMerchant,
		MetricsEnabled:  cfg.Metrics.Enabled,
		MetricsPath:     cfg.Metrics.Path,
	})

	// Step 7: Optional NATS ingestion
	var (
		nc *nats.Conn
		br *bridge.Bridge
	)
	if cfg.NATS.URL != "" {
		nc, err = bridge.Connect(cfg.NATS.URL, log)
		if err != nil {
			return err
		}
		br = bridge.New(nc, engine, cfg.NATS.Subject, auditLog, log)
		if err := br.Start(); err != nil {
			nc.Close()
			return err
		}
	}

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- server.Start()
	}()
	log.WithField("addr", cfg.Server.Addr).Info("DIGIY Pulse listening")

	// Set up graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var runErr error
	select {
	case <-ctx.Done():
		log.Info("Received shutdown signal, initiating graceful shutdown")
	case runErr = <-serverErr:
		if runErr != nil {
			log.WithError(runErr).Error("HTTP server failed")
		}
	}

	if br != nil {
		if err := br.Stop(); err != nil {
			log.WithError(err).Warn("Error stopping bridge")
		}
		if err := nc.Drain(); err != nil {
			log.WithError(err).Warn("Error draining nats connection")
		}
	}

	// Streams must end before Shutdown, which waits for active handlers.
	engine.Close()
	log.Info("Broadcast engine stopped")

	if err := server.Stop(context.Background()); err != nil {
		log.WithError(err).Error("Error stopping HTTP server")
	} else {
		log.Info("HTTP server stopped gracefully")
	}

	if err := auditLog.Close(); err != nil {
		log.WithError(err).Warn("Error closing audit logger")
	}

	log.Info("DIGIY Pulse shutdown complete")
	return runErr
}
