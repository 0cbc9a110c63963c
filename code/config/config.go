// Package config loads the ledger configuration: defaults, then the YAML (or
// JSON) file, then environment overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all GameLedger configuration.
type Config struct {
	Database DatabaseConfig `yaml:"database"`
	Network  NetworkConfig  `yaml:"network"`
	Editor   EditorConfig   `yaml:"editor"`
	Notify   NotifyConfig   `yaml:"notify"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// DatabaseConfig selects the relational store.
type DatabaseConfig struct {
	Driver           string        `yaml:"driver"` // sqlite3, duckdb, pgx
	Path             string        `yaml:"path"`   // file path, or DSN for pgx
	LogBatchSize     int           `yaml:"log_batch_size"`
	LogFlushInterval time.Duration `yaml:"log_flush_interval"`
}

// NetworkConfig is where the HTTP API listens.
type NetworkConfig struct {
	Address string `yaml:"address"`
	Port    int    `yaml:"port"`
}

// EditorConfig tunes the debounced edit path.
type EditorConfig struct {
	DebounceWindow time.Duration `yaml:"debounce_window"`
	WriteTimeout   time.Duration `yaml:"write_timeout"`
}

// NotifyConfig enables cross-process change fan-out through Redis.
type NotifyConfig struct {
	RedisAddr string `yaml:"redis_addr"` // empty disables Redis
	Channel   string `yaml:"channel"`
}

// LoggingConfig configures logging.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json, console
}

// Addr returns host:port for the HTTP listener.
func (n NetworkConfig) Addr() string {
	return fmt.Sprintf("%s:%d", n.Address, n.Port)
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Database: DatabaseConfig{
			Driver:           "sqlite3",
			Path:             "ledger.db",
			LogBatchSize:     100,
			LogFlushInterval: 500 * time.Millisecond,
		},
		Network: NetworkConfig{
			Address: "127.0.0.1",
			Port:    8086,
		},
		Editor: EditorConfig{
			DebounceWindow: 250 * time.Millisecond,
			WriteTimeout:   10 * time.Second,
		},
		Notify: NotifyConfig{
			Channel: "ledger:changes",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Load reads path over the defaults. An empty path or a missing file yields
// the defaults. Environment overrides are applied last.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("failed to read config file: %w", err)
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("failed to parse config file: %w", err)
			}
		}
	}

	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv("LEDGER_DB_DRIVER"); v != "" {
		c.Database.Driver = v
	}
	if v := os.Getenv("LEDGER_DB_PATH"); v != "" {
		c.Database.Path = v
	}
	if v := os.Getenv("LEDGER_ADDR"); v != "" {
		c.Network.Address = v
	}
	if v := os.Getenv("LEDGER_REDIS_ADDR"); v != "" {
		c.Notify.RedisAddr = v
	}
	if v := os.Getenv("LEDGER_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
}

// Validate rejects configurations the service cannot start with.
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case "sqlite3", "duckdb", "pgx":
	default:
		return fmt.Errorf("config: unsupported database.driver %q", c.Database.Driver)
	}
	if c.Database.Path == "" {
		return errors.New("config: database.path is required")
	}
	if c.Database.LogBatchSize <= 0 {
		return errors.New("config: database.log_batch_size must be positive")
	}
	if c.Database.LogFlushInterval <= 0 {
		return errors.New("config: database.log_flush_interval must be positive")
	}
	if c.Network.Port <= 0 || c.Network.Port > 65535 {
		return fmt.Errorf("config: network.port %d out of range", c.Network.Port)
	}
	if c.Editor.DebounceWindow <= 0 {
		return errors.New("config: editor.debounce_window must be positive")
	}
	if c.Editor.WriteTimeout < 0 {
		return errors.New("config: editor.write_timeout cannot be negative")
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("config: unsupported logging.level %q", c.Logging.Level)
	}
	return nil
}
