package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v2"
)

// Load merges defaults + optional YAML file + environment overrides and
// validates the result. An empty path skips the file.
func Load(path string) (*Config, error) {
	config := Default()

	if path != "" {
		if err := loadFromFile(path, config); err != nil {
			return nil, fmt.Errorf("failed to load %s: %w", path, err)
		}
	}

	applyEnvOverrides(config)

	if err := Validate(config); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return config, nil
}

// loadFromFile decodes the YAML file over config. Keys missing from the
// file keep their current values.
func loadFromFile(path string, config *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := yaml.Unmarshal(data, config); err != nil {
		return fmt.Errorf("failed to parse YAML: %w", err)
	}
	return nil
}

// applyEnvOverrides applies PORT, JWT_SECRET, ADMIN_SECRET and PULSE_*
// environment variables to the config.
func applyEnvOverrides(config *Config) {
	if port := os.Getenv("PORT"); port != "" {
		config.Server.Addr = ":" + port
	}
	config.Server.Addr = GetEnvVar("PULSE_ADDR", config.Server.Addr)
	config.Server.ReadTimeout = GetEnvDuration("PULSE_READ_TIMEOUT", config.Server.ReadTimeout)
	config.Server.WriteTimeout = GetEnvDuration("PULSE_WRITE_TIMEOUT", config.Server.WriteTimeout)
	config.Server.IdleTimeout = GetEnvDuration("PULSE_IDLE_TIMEOUT", config.Server.IdleTimeout)
	config.Server.ShutdownTimeout = GetEnvDuration("PULSE_SHUTDOWN_TIMEOUT", config.Server.ShutdownTimeout)

	config.Auth.JWTSecret = GetEnvVar("JWT_SECRET", config.Auth.JWTSecret)
	config.Auth.AdminSecret = GetEnvVar("ADMIN_SECRET", config.Auth.AdminSecret)
	config.Auth.TokenTTL = GetEnvDuration("PULSE_TOKEN_TTL", config.Auth.TokenTTL)
	config.Auth.DefaultMerchant = GetEnvVar("PULSE_DEFAULT_MERCHANT", config.Auth.DefaultMerchant)

	config.Stream.HistorySize = GetEnvInt("PULSE_HISTORY_SIZE", config.Stream.HistorySize)
	config.Stream.SubscriberQueue = GetEnvInt("PULSE_SUBSCRIBER_QUEUE", config.Stream.SubscriberQueue)
	config.Stream.HeartbeatInterval = GetEnvDuration("PULSE_HEARTBEAT_INTERVAL", config.Stream.HeartbeatInterval)

	config.Log.Level = GetEnvVar("PULSE_LOG_LEVEL", config.Log.Level)
	config.Log.Format = GetEnvVar("PULSE_LOG_FORMAT", config.Log.Format)
	config.Log.File = GetEnvVar("PULSE_LOG_FILE", config.Log.File)

	config.Audit.File = GetEnvVar("PULSE_AUDIT_FILE", config.Audit.File)

	config.NATS.URL = GetEnvVar("PULSE_NATS_URL", config.NATS.URL)
	config.NATS.Subject = GetEnvVar("PULSE_NATS_SUBJECT", config.NATS.Subject)

	config.Metrics.Enabled = GetEnvBool("PULSE_METRICS_ENABLED", config.Metrics.Enabled)
	config.Metrics.Path = GetEnvVar("PULSE_METRICS_PATH", config.Metrics.Path)
}

// GetEnvVar returns the value of an environment variable with a default.
func GetEnvVar(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// GetEnvDuration returns the value of an environment variable as a duration with a default.
func GetEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

// GetEnvInt returns the value of an environment variable as an int with a default.
func GetEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// GetEnvBool returns the value of an environment variable as a bool with a default.
func GetEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}
