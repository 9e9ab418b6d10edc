// Package config handles configuration loading for authstore.
//
// # Overview
//
// Configuration is loaded from a YAML or TOML file with environment variable
// expansion, then AUTHSTORE_* environment variables override file values.
// Default() provides a configuration that works with no file at all.
//
// # Configuration File
//
// Default locations (in order):
//
//  1. Path from AUTHSTORE_CONFIG environment variable
//  2. $XDG_CONFIG_HOME/authstore/config.yaml
//  3. ~/.config/authstore/config.yaml
//
// A path ending in .toml is decoded as TOML.
//
// # Environment Variable Expansion
//
// Configuration values can reference environment variables:
//
//	database:
//	  redis:
//	    password: "${REDIS_PASSWORD}"
//
// # Configuration Sections
//
//	database:
//	  driver: "sqlite"            # memory, sqlite, bolt, redis
//	  path: "/var/lib/authstore/authstore.db"
//	  redis:
//	    addr: "localhost:6379"
//	    key_prefix: "authstore:"
//
//	session:
//	  max_age: "720h"
//
//	logging:
//	  level: "info"   # debug, info, warn, error
//	  format: "text"  # text, json
//
//	metrics:
//	  enabled: false
//	  addr: "127.0.0.1:9464"
//	  path: "/metrics"
//
//	janitor:
//	  interval: "1m"
//
// # Usage
//
//	cfg, err := config.LoadOrDefault(config.DefaultPath())
//	if err != nil {
//	    log.Fatal(err)
//	}
package config
