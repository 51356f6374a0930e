// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Emberveil Contributors

// Package config loads server configuration from a YAML file overlaid
// with command-line flags. Flags win over the file; flag defaults fill
// anything neither source sets.
package config

import (
	"os"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/samber/oops"
	"github.com/spf13/pflag"
)

// Server holds the UDP world server settings.
type Server struct {
	Addr          string        `koanf:"addr"`
	ReadTimeout   time.Duration `koanf:"read_timeout"`
	SweepInterval time.Duration `koanf:"sweep_interval"`
	FlushInterval time.Duration `koanf:"flush_interval"`
	SaveThreshold time.Duration `koanf:"save_threshold"`
}

// Database holds connection settings.
type Database struct {
	URL string `koanf:"url"`
}

// Auth holds token issuing settings.
type Auth struct {
	TokenSecret string        `koanf:"token_secret"`
	TokenTTL    time.Duration `koanf:"token_ttl"`
}

// Observability holds the metrics/health endpoint settings.
type Observability struct {
	Addr    string `koanf:"addr"`
	Enabled bool   `koanf:"enabled"`
}

// Log holds logging settings.
type Log struct {
	Level  string `koanf:"level"`  // debug, info, warn, error
	Format string `koanf:"format"` // text or json
}

// Config is the full server configuration.
type Config struct {
	Server        Server        `koanf:"server"`
	Database      Database      `koanf:"database"`
	Auth          Auth          `koanf:"auth"`
	Observability Observability `koanf:"observability"`
	Log           Log           `koanf:"log"`
}

// RegisterFlags declares every setting as a flag with its default value.
// The defaults flow into Load through the posflag provider, so they
// apply even when the flag is not passed.
func RegisterFlags(flags *pflag.FlagSet) {
	flags.String("server.addr", ":7777", "UDP listen address")
	flags.Duration("server.read_timeout", 100*time.Millisecond, "socket read deadline per loop pass")
	flags.Duration("server.sweep_interval", time.Minute, "expired-session sweep cadence")
	flags.Duration("server.flush_interval", 10*time.Second, "dirty-position flush check cadence")
	flags.Duration("server.save_threshold", 5*time.Minute, "minimum age before a dirty position persists")
	flags.String("database.url", "postgres://localhost:5432/emberveil?sslmode=disable", "PostgreSQL connection string")
	flags.String("auth.token_secret", "", "HMAC secret for session tokens (required)")
	flags.Duration("auth.token_ttl", 24*time.Hour, "session token lifetime")
	flags.String("observability.addr", ":9100", "metrics/health listen address")
	flags.Bool("observability.enabled", true, "serve metrics and health endpoints")
	flags.String("log.level", "info", "log level (debug, info, warn, error)")
	flags.String("log.format", "text", "log format (text or json)")
}

// Load builds a Config from the optional YAML file at path overlaid with
// the given flag set. An empty path, or a missing file at the default
// path, is not an error; a malformed file is.
func Load(path string, flags *pflag.FlagSet) (*Config, error) {
	k := koanf.New(".")

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
				return nil, oops.Code("CONFIG_FILE_INVALID").With("path", path).Wrap(err)
			}
		} else if !os.IsNotExist(err) {
			return nil, oops.Code("CONFIG_FILE_UNREADABLE").With("path", path).Wrap(err)
		}
	}

	if err := k.Load(posflag.Provider(flags, ".", k), nil); err != nil {
		return nil, oops.Code("CONFIG_FLAGS_INVALID").Wrap(err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, oops.Code("CONFIG_UNMARSHAL_FAILED").Wrap(err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.Server.Addr == "" {
		return oops.Code("CONFIG_INVALID").Errorf("server.addr must not be empty")
	}
	if c.Database.URL == "" {
		return oops.Code("CONFIG_INVALID").Errorf("database.url must not be empty")
	}
	if c.Auth.TokenSecret == "" {
		return oops.Code("CONFIG_INVALID").Errorf("auth.token_secret must be set")
	}
	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return oops.Code("CONFIG_INVALID").Errorf("log.level must be one of debug, info, warn, error")
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		return oops.Code("CONFIG_INVALID").Errorf("log.format must be text or json")
	}
	return nil
}
