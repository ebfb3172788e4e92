package config

import (
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/digiy/pulse/internal/history"
)

// Validate enforces configuration rules.
func Validate(config *Config) error {
	if config == nil {
		return fmt.Errorf("config cannot be nil")
	}

	if err := validateServer(&config.Server); err != nil {
		return fmt.Errorf("server validation failed: %w", err)
	}
	if err := validateAuth(&config.Auth); err != nil {
		return fmt.Errorf("auth validation failed: %w", err)
	}
	if err := validateStream(&config.Stream); err != nil {
		return fmt.Errorf("stream validation failed: %w", err)
	}
	if err := validateLog(&config.Log); err != nil {
		return fmt.Errorf("log validation failed: %w", err)
	}
	if config.NATS.URL != "" && config.NATS.Subject == "" {
		return fmt.Errorf("nats validation failed: subject is required when url is set")
	}
	if config.Metrics.Enabled && !strings.HasPrefix(config.Metrics.Path, "/") {
		return fmt.Errorf("metrics validation failed: path must start with '/', got %q", config.Metrics.Path)
	}

	return nil
}

func validateServer(s *ServerConfig) error {
	if s.Addr == "" {
		return fmt.Errorf("addr is required")
	}
	if s.ReadTimeout < 0 || s.WriteTimeout < 0 || s.IdleTimeout < 0 {
		return fmt.Errorf("timeouts must be non-negative")
	}
	if s.ShutdownTimeout <= 0 {
		return fmt.Errorf("shutdown timeout must be positive, got %v", s.ShutdownTimeout)
	}
	return nil
}

func validateAuth(a *AuthConfig) error {
	if a.JWTSecret == "" {
		return fmt.Errorf("jwt secret is required (set JWT_SECRET)")
	}
	if a.TokenTTL <= 0 {
		return fmt.Errorf("token TTL must be positive, got %v", a.TokenTTL)
	}
	if a.DefaultMerchant == "" {
		return fmt.Errorf("default merchant cannot be empty")
	}
	return nil
}

func validateStream(s *StreamConfig) error {
	if s.HistorySize <= 0 {
		return fmt.Errorf("history size must be positive, got %d", s.HistorySize)
	}
	if s.HistorySize > history.DefaultCapacity {
		return fmt.Errorf("history size cannot exceed %d, got %d", history.DefaultCapacity, s.HistorySize)
	}
	if s.SubscriberQueue <= 0 {
		return fmt.Errorf("subscriber queue must be positive, got %d", s.SubscriberQueue)
	}
	if s.HeartbeatInterval <= 0 {
		return fmt.Errorf("heartbeat interval must be positive, got %v", s.HeartbeatInterval)
	}
	return nil
}

func validateLog(l *LogConfig) error {
	if _, err := logrus.ParseLevel(l.Level); err != nil {
		return err
	}
	switch l.Format {
	case "text", "json":
	default:
		return fmt.Errorf("format must be text or json, got %q", l.Format)
	}
	if l.File != "" && l.MaxSizeMB <= 0 {
		return fmt.Errorf("maxSizeMB must be positive when logging to a file")
	}
	return nil
}
