package config

import (
	"fmt"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/sirupsen/logrus"
)

// Watcher holds the current configuration and reloads it when the file
// changes on disk.
type Watcher struct {
	path     string
	log      logrus.FieldLogger
	mu       sync.RWMutex
	current  *Config
	onChange []func(*Config)
}

// NewWatcher creates a Watcher and performs the initial load.
func NewWatcher(path string, log logrus.FieldLogger) (*Watcher, error) {
	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}
	return &Watcher{path: path, log: log, current: cfg}, nil
}

// Config returns the latest configuration.
func (w *Watcher) Config() *Config {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.current
}

// OnChange registers a callback invoked after every successful reload.
func (w *Watcher) OnChange(fn func(*Config)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.onChange = append(w.onChange, fn)
}

// Reload re-reads the file. On failure the previous configuration stays
// in effect.
func (w *Watcher) Reload() error {
	cfg, err := Load(w.path)
	if err != nil {
		return err
	}

	w.mu.Lock()
	w.current = cfg
	callbacks := make([]func(*Config), len(w.onChange))
	copy(callbacks, w.onChange)
	w.mu.Unlock()

	for _, fn := range callbacks {
		fn(cfg)
	}
	return nil
}

// Watch starts a background goroutine that reloads the config on file
// changes. The parent directory is watched so editors that replace the
// file are handled. Call stop to clean up.
func (w *Watcher) Watch() (stop func(), err error) {
	if w.path == "" {
		return func() {}, nil
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("config watcher: %w", err)
	}
	dir := filepath.Dir(w.path)
	if err := fw.Add(dir); err != nil {
		_ = fw.Close()
		return nil, fmt.Errorf("config watcher add %s: %w", dir, err)
	}

	target := filepath.Clean(w.path)
	done := make(chan struct{})
	go func() {
		defer func() { _ = fw.Close() }()
		for {
			select {
			case ev, ok := <-fw.Events:
				if !ok {
					return
				}
				if filepath.Clean(ev.Name) != target {
					continue
				}
				if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) {
					continue
				}
				if err := w.Reload(); err != nil {
					w.log.WithError(err).Warn("Config reload failed, keeping previous configuration")
					continue
				}
				w.log.WithField("path", w.path).Info("Configuration reloaded")
			case err, ok := <-fw.Errors:
				if !ok {
					return
				}
				w.log.WithError(err).Warn("Config watcher error")
			case <-done:
				return
			}
		}
	}()

	var once sync.Once
	return func() { once.Do(func() { close(done) }) }, nil
}
