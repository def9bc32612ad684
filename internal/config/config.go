// Package config loads the mobwrited configuration from YAML, applies
// defaults, and optionally watches the file for changes so a running
// daemon can pick up new limits without a restart.
package config

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"
)

// Config is the recognized set of mobwrited settings.
type Config struct {
	MaxChars         int      `yaml:"max_chars"`
	MaxViews         int      `yaml:"max_views"`
	TimeoutView      string   `yaml:"timeout_view"`
	TimeoutText      string   `yaml:"timeout_text"`
	TimeoutBuffer    string   `yaml:"timeout_buffer"`
	TimeoutTelnet    string   `yaml:"timeout_telnet"`
	ListenPort       int      `yaml:"listen_port"`
	HTTPAddr         string   `yaml:"http_addr"`
	ConnectionOrigin []string `yaml:"connection_origin,omitempty"`
	DataDir          string   `yaml:"data_dir,omitempty"`
	SqliteDSN        string   `yaml:"sqlite_dsn,omitempty"`
	LogLevel         string   `yaml:"log_level,omitempty"`
	LogFile          string   `yaml:"log_file,omitempty"`
}

// Defaults returns the recommended configuration: TIMEOUT_TEXT is twice
// TIMEOUT_VIEW so a text always outlives any view still referencing it.
func Defaults() *Config {
	return &Config{
		MaxChars:      0,
		MaxViews:      1000,
		TimeoutView:   "30m",
		TimeoutText:   "60m",
		TimeoutBuffer: "15m",
		TimeoutTelnet: "2s",
		ListenPort:    3017,
		HTTPAddr:      ":8080",
		SqliteDSN:     "mobwrite.db",
		LogLevel:      "info",
	}
}

// ViewTimeout parses TimeoutView, falling back to the default on a bad or
// empty value.
func (c *Config) ViewTimeout() time.Duration { return parseDurationOr(c.TimeoutView, 30*time.Minute) }

// TextTimeout parses TimeoutText, falling back to the default on a bad or
// empty value.
func (c *Config) TextTimeout() time.Duration { return parseDurationOr(c.TimeoutText, 60*time.Minute) }

// BufferTimeout parses TimeoutBuffer, falling back to the default on a bad
// or empty value.
func (c *Config) BufferTimeout() time.Duration {
	return parseDurationOr(c.TimeoutBuffer, 15*time.Minute)
}

// TelnetTimeout parses TimeoutTelnet, falling back to the default on a bad
// or empty value.
func (c *Config) TelnetTimeout() time.Duration {
	return parseDurationOr(c.TimeoutTelnet, 2*time.Second)
}

func parseDurationOr(s string, def time.Duration) time.Duration {
	if s == "" {
		return def
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return def
	}
	return d
}

// Load reads path and merges it over Defaults(). A missing file is not an
// error: the defaults are returned as-is.
func Load(path string) (*Config, error) {
	cfg := Defaults()
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	return cfg, nil
}

// Save writes cfg to path as YAML, creating parent directories as needed.
func Save(path string, cfg *Config) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("config: mkdir %s: %w", dir, err)
		}
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("config: marshal: %w", err)
	}
	return os.WriteFile(path, data, 0644)
}

// Watcher reloads the config file on change and hands the new value to
// onChange. A failed reload is logged and the previous config is kept.
type Watcher struct {
	path     string
	log      *slog.Logger
	mu       sync.Mutex
	current  *Config
	onChange func(*Config)
}

// NewWatcher loads path once and prepares a Watcher to track further edits.
func NewWatcher(path string, log *slog.Logger, onChange func(*Config)) (*Watcher, error) {
	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}
	return &Watcher{path: path, log: log, current: cfg, onChange: onChange}, nil
}

// Current returns the most recently loaded configuration.
func (w *Watcher) Current() *Config {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.current
}

// Run watches the config file for writes until ctx is canceled, reloading
// and invoking onChange on every change event. A config file in a
// not-yet-existing directory disables watching but is not an error.
func (w *Watcher) Run(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("config: new watcher: %w", err)
	}
	defer watcher.Close()

	dir := filepath.Dir(w.path)
	if err := watcher.Add(dir); err != nil {
		w.log.Warn("config: not watching for changes", slog.String("dir", dir), slog.Any("err", err))
		<-ctx.Done()
		return nil
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != filepath.Clean(w.path) {
				continue
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			cfg, err := Load(w.path)
			if err != nil {
				w.log.Warn("config: reload failed, keeping previous config", slog.Any("err", err))
				continue
			}
			w.mu.Lock()
			w.current = cfg
			w.mu.Unlock()
			w.log.Info("config: reloaded", slog.String("path", w.path))
			if w.onChange != nil {
				w.onChange(cfg)
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			w.log.Warn("config: watcher error", slog.Any("err", err))
		}
	}
}
