// ABOUTME: Tests for configuration loading and parsing
// ABOUTME: Covers YAML and TOML loading, env var expansion, env overrides and validation

package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}
	return path
}

func TestLoad_ValidConfig(t *testing.T) {
	configPath := writeConfig(t, "config.yaml", `
database:
  driver: "bolt"
  path: "./test.bolt"

session:
  max_age: "24h"

logging:
  level: "debug"
  format: "json"

metrics:
  enabled: true
  addr: ":9100"
  path: "/internal/metrics"

janitor:
  interval: "30s"
`)

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Database.Driver != "bolt" {
		t.Errorf("Database.Driver = %q, want %q", cfg.Database.Driver, "bolt")
	}
	if cfg.Database.Path != "./test.bolt" {
		t.Errorf("Database.Path = %q, want %q", cfg.Database.Path, "./test.bolt")
	}
	if cfg.Session.MaxAge != 24*time.Hour {
		t.Errorf("Session.MaxAge = %v, want %v", cfg.Session.MaxAge, 24*time.Hour)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("Logging.Level = %q, want %q", cfg.Logging.Level, "debug")
	}
	if cfg.Logging.Format != "json" {
		t.Errorf("Logging.Format = %q, want %q", cfg.Logging.Format, "json")
	}
	if !cfg.Metrics.Enabled {
		t.Error("Metrics.Enabled = false, want true")
	}
	if cfg.Metrics.Addr != ":9100" {
		t.Errorf("Metrics.Addr = %q, want %q", cfg.Metrics.Addr, ":9100")
	}
	if cfg.Metrics.Path != "/internal/metrics" {
		t.Errorf("Metrics.Path = %q, want %q", cfg.Metrics.Path, "/internal/metrics")
	}
	if cfg.Janitor.Interval != 30*time.Second {
		t.Errorf("Janitor.Interval = %v, want %v", cfg.Janitor.Interval, 30*time.Second)
	}

	// Unset sections keep their defaults
	if cfg.Database.Redis.KeyPrefix != "authstore:" {
		t.Errorf("Database.Redis.KeyPrefix = %q, want default %q", cfg.Database.Redis.KeyPrefix, "authstore:")
	}
}

func TestLoad_TOML(t *testing.T) {
	configPath := writeConfig(t, "config.toml", `
[database]
driver = "redis"

[database.redis]
addr = "redis.internal:6379"
db = 2
key_prefix = "app:"

[session]
max_age = "1h"
`)

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Database.Driver != "redis" {
		t.Errorf("Database.Driver = %q, want %q", cfg.Database.Driver, "redis")
	}
	if cfg.Database.Redis.Addr != "redis.internal:6379" {
		t.Errorf("Database.Redis.Addr = %q, want %q", cfg.Database.Redis.Addr, "redis.internal:6379")
	}
	if cfg.Database.Redis.DB != 2 {
		t.Errorf("Database.Redis.DB = %d, want 2", cfg.Database.Redis.DB)
	}
	if cfg.Database.Redis.KeyPrefix != "app:" {
		t.Errorf("Database.Redis.KeyPrefix = %q, want %q", cfg.Database.Redis.KeyPrefix, "app:")
	}
	if cfg.Session.MaxAge != time.Hour {
		t.Errorf("Session.MaxAge = %v, want %v", cfg.Session.MaxAge, time.Hour)
	}
}

func TestLoad_EnvVarExpansion(t *testing.T) {
	t.Setenv("TEST_REDIS_PASSWORD", "secret-from-env")

	configPath := writeConfig(t, "config.yaml", `
database:
  driver: "redis"
  redis:
    addr: "localhost:6379"
    password: "${TEST_REDIS_PASSWORD}"
`)

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Database.Redis.Password != "secret-from-env" {
		t.Errorf("Database.Redis.Password = %q, want %q", cfg.Database.Redis.Password, "secret-from-env")
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("AUTHSTORE_DB_DRIVER", "memory")
	t.Setenv("AUTHSTORE_SESSION_MAX_AGE", "90m")
	t.Setenv("AUTHSTORE_LOG_LEVEL", "warn")
	t.Setenv("AUTHSTORE_METRICS_ENABLED", "true")
	t.Setenv("AUTHSTORE_REDIS_DB", "5")

	configPath := writeConfig(t, "config.yaml", `
database:
  driver: "sqlite"
  path: "./file.db"
session:
  max_age: "24h"
logging:
  level: "debug"
`)

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Database.Driver != "memory" {
		t.Errorf("Database.Driver = %q, want %q", cfg.Database.Driver, "memory")
	}
	if cfg.Session.MaxAge != 90*time.Minute {
		t.Errorf("Session.MaxAge = %v, want %v", cfg.Session.MaxAge, 90*time.Minute)
	}
	if cfg.Logging.Level != "warn" {
		t.Errorf("Logging.Level = %q, want %q", cfg.Logging.Level, "warn")
	}
	if !cfg.Metrics.Enabled {
		t.Error("Metrics.Enabled = false, want true")
	}
	if cfg.Database.Redis.DB != 5 {
		t.Errorf("Database.Redis.DB = %d, want 5", cfg.Database.Redis.DB)
	}
	// Values without an override survive
	if cfg.Database.Path != "./file.db" {
		t.Errorf("Database.Path = %q, want %q", cfg.Database.Path, "./file.db")
	}
}

func TestLoad_EnvVarExpansion_UnsetVar(t *testing.T) {
	os.Unsetenv("UNSET_VAR_FOR_TEST")

	configPath := writeConfig(t, "config.yaml", `
database:
  driver: "sqlite"
  path: "${UNSET_VAR_FOR_TEST}"
`)

	_, err := Load(configPath)
	if err == nil {
		t.Fatal("Load() expected error for empty database path, got nil")
	}
	if !strings.Contains(err.Error(), "database.path") {
		t.Errorf("error = %q, want mention of database.path", err.Error())
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load("/nonexistent/path/config.yaml")
	if err == nil {
		t.Fatal("Load() expected error for missing file, got nil")
	}
}

func TestLoadOrDefault_MissingFile(t *testing.T) {
	t.Setenv("XDG_DATA_HOME", "/tmp/authstore-data")

	cfg, err := LoadOrDefault(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("LoadOrDefault() error = %v", err)
	}

	if cfg.Database.Driver != "sqlite" {
		t.Errorf("Database.Driver = %q, want %q", cfg.Database.Driver, "sqlite")
	}
	want := filepath.Join("/tmp/authstore-data", "authstore", "authstore.db")
	if cfg.Database.Path != want {
		t.Errorf("Database.Path = %q, want %q", cfg.Database.Path, want)
	}
	if cfg.Session.MaxAge != 720*time.Hour {
		t.Errorf("Session.MaxAge = %v, want %v", cfg.Session.MaxAge, 720*time.Hour)
	}
	if cfg.Janitor.Interval != time.Minute {
		t.Errorf("Janitor.Interval = %v, want %v", cfg.Janitor.Interval, time.Minute)
	}
	if cfg.Metrics.Enabled {
		t.Error("Metrics.Enabled = true, want false")
	}
}

func TestLoadOrDefault_InvalidFileStillFails(t *testing.T) {
	configPath := writeConfig(t, "config.yaml", "database: [not a map")

	if _, err := LoadOrDefault(configPath); err == nil {
		t.Fatal("LoadOrDefault() expected error for invalid YAML, got nil")
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	configPath := writeConfig(t, "config.yaml", `
database:
  driver: "sqlite
  path: broken
`)

	_, err := Load(configPath)
	if err == nil {
		t.Fatal("Load() expected error for invalid YAML, got nil")
	}
	if !strings.Contains(err.Error(), "parsing config file") {
		t.Errorf("error = %q, want parsing config file error", err.Error())
	}
}

func TestLoad_InvalidDuration(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{
			name:    "invalid max_age",
			content: "session:\n  max_age: \"forever\"\n",
		},
		{
			name:    "invalid interval",
			content: "janitor:\n  interval: \"often\"\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, "config.yaml", tt.content))
			if err == nil {
				t.Fatal("Load() expected error for invalid duration, got nil")
			}
			if !strings.Contains(err.Error(), "parsing durations") {
				t.Errorf("error = %q, want parsing durations error", err.Error())
			}
		})
	}
}

func TestValidate(t *testing.T) {

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "defaults", mutate: func(*Config) {}},
		{name: "memory needs no path", mutate: func(c *Config) { c.Database.Driver = "memory"; c.Database.Path = "" }},
		{name: "zero max age", mutate: func(c *Config) { c.Session.MaxAge = 0 }},
		{name: "empty driver", mutate: func(c *Config) { c.Database.Driver = "" }, wantErr: "database.driver is required"},
		{name: "unknown driver", mutate: func(c *Config) { c.Database.Driver = "dynamo" }, wantErr: "not one of"},
		{name: "bolt without path", mutate: func(c *Config) { c.Database.Driver = "bolt"; c.Database.Path = "" }, wantErr: "database.path"},
		{name: "redis without addr", mutate: func(c *Config) { c.Database.Driver = "redis"; c.Database.Redis.Addr = "" }, wantErr: "database.redis.addr"},
		{name: "negative max age", mutate: func(c *Config) { c.Session.MaxAge = -time.Second }, wantErr: "session.max_age"},
		{name: "bad level", mutate: func(c *Config) { c.Logging.Level = "trace" }, wantErr: "logging.level"},
		{name: "bad format", mutate: func(c *Config) { c.Logging.Format = "xml" }, wantErr: "logging.format"},
		{name: "metrics without addr", mutate: func(c *Config) { c.Metrics.Enabled = true; c.Metrics.Addr = "" }, wantErr: "metrics.addr"},
		{name: "zero interval", mutate: func(c *Config) { c.Janitor.Interval = 0 }, wantErr: "janitor.interval"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() error = %v, want nil", err)
				}
				return
			}
			if err == nil {
				t.Fatalf("Validate() expected error containing %q, got nil", tt.wantErr)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() error = %q, want containing %q", err.Error(), tt.wantErr)
			}
		})
	}
}

func TestDefault_IsUsable(t *testing.T) {
	cfg := Default()

	if cfg.Session.MaxAge != 720*time.Hour {
		t.Errorf("Session.MaxAge = %v, want %v", cfg.Session.MaxAge, 720*time.Hour)
	}
	if cfg.Janitor.Interval != time.Minute {
		t.Errorf("Janitor.Interval = %v, want %v", cfg.Janitor.Interval, time.Minute)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Default().Validate() error = %v, want nil", err)
	}
}

func TestExpandEnvVars(t *testing.T) {
	t.Setenv("FOO", "bar")
	t.Setenv("BAZ", "qux")

	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "single env var",
			input:    "${FOO}",
			expected: "bar",
		},
		{
			name:     "env var with surrounding text",
			input:    "prefix-${FOO}-suffix",
			expected: "prefix-bar-suffix",
		},
		{
			name:     "multiple env vars",
			input:    "${FOO}/${BAZ}",
			expected: "bar/qux",
		},
		{
			name:     "no env vars",
			input:    "no-vars-here",
			expected: "no-vars-here",
		},
		{
			name:     "unset env var",
			input:    "${UNSET_VAR}",
			expected: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := expandEnvVars(tt.input)
			if result != tt.expected {
				t.Errorf("expandEnvVars(%q) = %q, want %q", tt.input, result, tt.expected)
			}
		})
	}
}

func TestDefaultPath(t *testing.T) {
	t.Setenv("AUTHSTORE_CONFIG", "/etc/authstore.toml")
	if got := DefaultPath(); got != "/etc/authstore.toml" {
		t.Errorf("DefaultPath() = %q, want %q", got, "/etc/authstore.toml")
	}

	t.Setenv("AUTHSTORE_CONFIG", "")
	t.Setenv("XDG_CONFIG_HOME", "/xdg")
	want := filepath.Join("/xdg", "authstore", "config.yaml")
	if got := DefaultPath(); got != want {
		t.Errorf("DefaultPath() = %q, want %q", got, want)
	}
}
