package logging

import (
	"fmt"
	"io"
	"os"

	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/digiy/pulse/internal/config"
)

// New creates a logger writing to stdout, or to a rotated file when
// cfg.File is set. The returned closer releases the file.
func New(cfg config.LogConfig) (*logrus.Logger, io.Closer, error) {
	log := logrus.New()

	if err := Apply(log, cfg); err != nil {
		return nil, nil, err
	}

	switch cfg.Format {
	case "json":
		log.SetFormatter(&logrus.JSONFormatter{})
	default:
		log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}

	if cfg.File == "" {
		log.SetOutput(os.Stdout)
		return log, nopCloser{}, nil
	}

	rotator := &lumberjack.Logger{
		Filename:   cfg.File,
		MaxSize:    cfg.MaxSizeMB,
		MaxBackups: cfg.MaxBackups,
		MaxAge:     cfg.MaxAgeDays,
	}
	log.SetOutput(rotator)
	return log, rotator, nil
}

// Apply updates the level of an existing logger. It is used on config reload.
func Apply(log *logrus.Logger, cfg config.LogConfig) error {
	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		return fmt.Errorf("invalid log level %q: %w", cfg.Level, err)
	}
	log.SetLevel(level)
	return nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
