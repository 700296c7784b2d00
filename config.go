package dbal

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"

	"github.com/crudkit/dbal/dialect"
)

// Duration is a time.Duration that decodes from YAML strings like "5s".
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("dbal: invalid duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

// MarshalYAML implements yaml.Marshaler.
func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}

// CacheConfig configures the optional query-result cache.
type CacheConfig struct {
	Enabled bool     `yaml:"enabled"`
	Size    int      `yaml:"size"`
	TTL     Duration `yaml:"ttl"`
}

// Config holds the connection settings for one Database.
type Config struct {
	// Dialect is one of the names in the dialect package.
	Dialect string `yaml:"dialect"`
	// DSN is passed verbatim to the native driver.
	DSN string `yaml:"dsn"`
	// CommandTimeout bounds each statement. Zero means no timeout.
	CommandTimeout Duration `yaml:"command_timeout"`
	// Debug enables statement logging through the debug hook.
	Debug bool `yaml:"debug"`
	// SlowQueryThreshold marks statements as slow for the stats layer.
	// Zero keeps the stats layer's default.
	SlowQueryThreshold Duration `yaml:"slow_query_threshold"`
	// Cache configures the optional query-result cache.
	Cache CacheConfig `yaml:"cache"`
}

// Validate checks the config for configuration errors.
func (c Config) Validate() error {
	if !dialect.Valid(c.Dialect) {
		return NewUnknownDialectError(c.Dialect)
	}
	if c.DSN == "" {
		return fmt.Errorf("dbal: config: dsn is required")
	}
	return nil
}

// LoadConfig reads and validates a YAML config file.
func LoadConfig(path string) (Config, error) {
	var cfg Config
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("dbal: config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("dbal: config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// WatchConfig watches a config file and invokes fn with the re-read config
// on every change. Reload failures are logged and skipped; the previous
// config stays in effect. The returned stop function ends the watch.
func WatchConfig(path string, fn func(Config)) (stop func() error, err error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("dbal: config watch: %w", err)
	}
	// Watch the directory: editors replace files on save, which drops
	// a watch placed on the file itself.
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		_ = watcher.Close()
		return nil, fmt.Errorf("dbal: config watch: %w", err)
	}
	abs, _ := filepath.Abs(path)
	go func() {
		for {
			select {
			case ev, ok := <-watcher.Events:
				if !ok {
					return
				}
				evAbs, _ := filepath.Abs(ev.Name)
				if evAbs != abs || !ev.Op.Has(fsnotify.Write) && !ev.Op.Has(fsnotify.Create) {
					continue
				}
				cfg, err := LoadConfig(path)
				if err != nil {
					slog.Warn("config reload failed", "path", path, "err", err)
					continue
				}
				fn(cfg)
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				slog.Warn("config watch error", "path", path, "err", err)
			}
		}
	}()
	return watcher.Close, nil
}
