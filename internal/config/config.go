package config

import "time"

// Config is the root configuration of the service.
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Auth    AuthConfig    `yaml:"auth"`
	Stream  StreamConfig  `yaml:"stream"`
	Log     LogConfig     `yaml:"log"`
	Audit   AuditConfig   `yaml:"audit"`
	NATS    NATSConfig    `yaml:"nats"`
	Metrics MetricsConfig `yaml:"metrics"`
}

// ServerConfig holds HTTP listener settings.
type ServerConfig struct {
	Addr            string        `yaml:"addr"`
	ReadTimeout     time.Duration `yaml:"readTimeout"`
	WriteTimeout    time.Duration `yaml:"writeTimeout"`
	IdleTimeout     time.Duration `yaml:"idleTimeout"`
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout"`
}

// AuthConfig holds credential settings.
type AuthConfig struct {
	JWTSecret       string        `yaml:"jwtSecret"`
	AdminSecret     string        `yaml:"adminSecret"`
	TokenTTL        time.Duration `yaml:"tokenTTL"`
	DefaultMerchant string        `yaml:"defaultMerchant"`
}

// StreamConfig sizes the history ring and subscriber queues.
type StreamConfig struct {
	HistorySize       int           `yaml:"historySize"`
	SubscriberQueue   int           `yaml:"subscriberQueue"`
	HeartbeatInterval time.Duration `yaml:"heartbeatInterval"`
}

// LogConfig controls the process logger. An empty File logs to stdout.
type LogConfig struct {
	Level      string `yaml:"level"`
	Format     string `yaml:"format"`
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"maxSizeMB"`
	MaxBackups int    `yaml:"maxBackups"`
	MaxAgeDays int    `yaml:"maxAgeDays"`
}

// AuditConfig locates the audit trail. An empty File disables auditing.
type AuditConfig struct {
	File string `yaml:"file"`
}

// NATSConfig enables the NATS ingestion bridge when URL is set.
type NATSConfig struct {
	URL     string `yaml:"url"`
	Subject string `yaml:"subject"`
}

// MetricsConfig controls the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// Default returns the baseline configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:            ":3000",
			ReadTimeout:     10 * time.Second,
			WriteTimeout:    30 * time.Second,
			IdleTimeout:     120 * time.Second,
			ShutdownTimeout: 10 * time.Second,
		},
		Auth: AuthConfig{
			TokenTTL:        720 * time.Hour,
			DefaultMerchant: "default-merchant",
		},
		Stream: StreamConfig{
			HistorySize:       200,
			SubscriberQueue:   100,
			HeartbeatInterval: 15 * time.Second,
		},
		Log: LogConfig{
			Level:      "info",
			Format:     "text",
			MaxSizeMB:  100,
			MaxBackups: 3,
			MaxAgeDays: 28,
		},
		NATS: NATSConfig{
			Subject: "pulse.ingest.*",
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Path:    "/metrics",
		},
	}
}
