// ABOUTME: Configuration loading and parsing for authstore
// ABOUTME: Supports YAML or TOML files with ${VAR} expansion, env overrides and duration parsing

package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

// Config represents the complete authstore configuration
type Config struct {
	Database DatabaseConfig `yaml:"database" toml:"database"`
	Session  SessionConfig  `yaml:"session" toml:"session"`
	Logging  LoggingConfig  `yaml:"logging" toml:"logging"`
	Metrics  MetricsConfig  `yaml:"metrics" toml:"metrics"`
	Janitor  JanitorConfig  `yaml:"janitor" toml:"janitor"`
}

// DatabaseConfig selects the document store backend
type DatabaseConfig struct {
	Driver string      `yaml:"driver" toml:"driver" env:"AUTHSTORE_DB_DRIVER"`
	Path   string      `yaml:"path" toml:"path" env:"AUTHSTORE_DB_PATH"` // sqlite and bolt
	Redis  RedisConfig `yaml:"redis" toml:"redis"`
}

// RedisConfig holds connection settings for the redis driver
type RedisConfig struct {
	Addr      string `yaml:"addr" toml:"addr" env:"AUTHSTORE_REDIS_ADDR"`
	Password  string `yaml:"password" toml:"password" env:"AUTHSTORE_REDIS_PASSWORD"`
	DB        int    `yaml:"db" toml:"db" env:"AUTHSTORE_REDIS_DB"`
	KeyPrefix string `yaml:"key_prefix" toml:"key_prefix" env:"AUTHSTORE_REDIS_KEY_PREFIX"`
}

// SessionConfig holds session lifetime configuration
type SessionConfig struct {
	MaxAge time.Duration `yaml:"-" toml:"-"`

	// Raw string value for file and env unmarshaling
	MaxAgeRaw string `yaml:"max_age" toml:"max_age" env:"AUTHSTORE_SESSION_MAX_AGE"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level" toml:"level" env:"AUTHSTORE_LOG_LEVEL"`
	Format string `yaml:"format" toml:"format" env:"AUTHSTORE_LOG_FORMAT"`
}

// MetricsConfig holds metrics endpoint configuration
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled" toml:"enabled" env:"AUTHSTORE_METRICS_ENABLED"`
	Addr    string `yaml:"addr" toml:"addr" env:"AUTHSTORE_METRICS_ADDR"`
	Path    string `yaml:"path" toml:"path" env:"AUTHSTORE_METRICS_PATH"`
}

// JanitorConfig holds expired-document sweep configuration
type JanitorConfig struct {
	Interval time.Duration `yaml:"-" toml:"-"`

	IntervalRaw string `yaml:"interval" toml:"interval" env:"AUTHSTORE_JANITOR_INTERVAL"`
}

// Default returns a configuration that works without a config file.
func Default() *Config {
	return &Config{
		Database: DatabaseConfig{
			Driver: "sqlite",
			Path:   filepath.Join(DataDir(), "authstore.db"),
			Redis: RedisConfig{
				Addr:      "localhost:6379",
				KeyPrefix: "authstore:",
			},
		},
		Session: SessionConfig{MaxAge: 720 * time.Hour, MaxAgeRaw: "720h"},
		Logging: LoggingConfig{Level: "info", Format: "text"},
		Metrics: MetricsConfig{Addr: "127.0.0.1:9464", Path: "/metrics"},
		Janitor: JanitorConfig{Interval: time.Minute, IntervalRaw: "1m"},
	}
}

// Load reads a configuration file from the given path and returns a parsed Config.
// Files ending in .toml are parsed as TOML, everything else as YAML.
// Environment variables in the format ${VAR_NAME} are expanded, then
// AUTHSTORE_* variables override file values.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	// Expand environment variables in the raw content
	expanded := expandEnvVars(string(data))

	cfg := Default()
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		if _, err := toml.Decode(expanded, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	} else {
		if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	return finish(cfg)
}

// LoadOrDefault behaves like Load but falls back to Default plus
// environment overrides when the file does not exist.
func LoadOrDefault(path string) (*Config, error) {
	cfg, err := Load(path)
	if errors.Is(err, fs.ErrNotExist) {
		return finish(Default())
	}
	return cfg, err
}

func finish(cfg *Config) (*Config, error) {
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parsing environment: %w", err)
	}

	if err := parseDurations(cfg); err != nil {
		return nil, fmt.Errorf("parsing durations: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// envVarPattern matches ${VAR_NAME}
var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// expandEnvVars replaces ${VAR_NAME} patterns with the corresponding environment variable values.
// If the environment variable is not set, it is replaced with an empty string.
func expandEnvVars(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		varName := envVarPattern.FindStringSubmatch(match)[1]
		return os.Getenv(varName)
	})
}

// Validate checks that all required configuration fields are present and valid.
// Returns an error describing the first validation failure encountered.
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case "memory":
	case "sqlite", "bolt":
		if c.Database.Path == "" {
			return fmt.Errorf("database.path is required for the %s driver", c.Database.Driver)
		}
	case "redis":
		if c.Database.Redis.Addr == "" {
			return fmt.Errorf("database.redis.addr is required for the redis driver")
		}
	case "":
		return fmt.Errorf("database.driver is required")
	default:
		return fmt.Errorf("database.driver %q is not one of memory, sqlite, bolt, redis", c.Database.Driver)
	}

	if c.Session.MaxAge < 0 {
		return fmt.Errorf("session.max_age must not be negative")
	}

	switch c.Logging.Level {
	case "", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level %q is not one of debug, info, warn, error", c.Logging.Level)
	}

	switch c.Logging.Format {
	case "", "text", "json":
	default:
		return fmt.Errorf("logging.format %q is not one of text, json", c.Logging.Format)
	}

	if c.Metrics.Enabled && c.Metrics.Addr == "" {
		return fmt.Errorf("metrics.addr is required when metrics are enabled")
	}

	if c.Janitor.Interval <= 0 {
		return fmt.Errorf("janitor.interval must be positive")
	}

	return nil
}

// parseDurations converts the raw duration strings into time.Duration values
func parseDurations(cfg *Config) error {
	var err error

	if cfg.Session.MaxAgeRaw != "" {
		cfg.Session.MaxAge, err = time.ParseDuration(cfg.Session.MaxAgeRaw)
		if err != nil {
			return fmt.Errorf("parsing max_age %q: %w", cfg.Session.MaxAgeRaw, err)
		}
	}

	if cfg.Janitor.IntervalRaw != "" {
		cfg.Janitor.Interval, err = time.ParseDuration(cfg.Janitor.IntervalRaw)
		if err != nil {
			return fmt.Errorf("parsing interval %q: %w", cfg.Janitor.IntervalRaw, err)
		}
	}

	return nil
}

// DefaultPath returns the path to the config file.
// Priority: AUTHSTORE_CONFIG env var > XDG_CONFIG_HOME/authstore/config.yaml > ~/.config/authstore/config.yaml
func DefaultPath() string {
	if envPath := os.Getenv("AUTHSTORE_CONFIG"); envPath != "" {
		return envPath
	}

	configDir := os.Getenv("XDG_CONFIG_HOME")
	if configDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "config.yaml" // fallback
		}
		configDir = filepath.Join(homeDir, ".config")
	}

	return filepath.Join(configDir, "authstore", "config.yaml")
}

// DataDir returns the authstore data directory.
// Priority: XDG_DATA_HOME/authstore > ~/.local/share/authstore
func DataDir() string {
	dataDir := os.Getenv("XDG_DATA_HOME")
	if dataDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "data" // fallback
		}
		dataDir = filepath.Join(homeDir, ".local", "share")
	}

	return filepath.Join(dataDir, "authstore")
}
