// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Passgate Contributors

// Package config loads and validates passgate configuration.
//
// Values are layered, later sources overriding earlier ones:
// built-in defaults, a YAML file, PASSGATE_* environment variables and
// command-line flags.
package config

import (
	"errors"
	"net/url"
	"slices"
	"time"

	"github.com/samber/oops"

	"github.com/passgate/passgate/internal/auth"
	"github.com/passgate/passgate/internal/logging"
)

// Store drivers.
const (
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

// Config is the root passgate configuration.
type Config struct {
	Server   ServerConfig   `koanf:"server" json:"server,omitempty"`
	Metrics  MetricsConfig  `koanf:"metrics" json:"metrics,omitempty"`
	Log      LogConfig      `koanf:"log" json:"log,omitempty"`
	Database DatabaseConfig `koanf:"database" json:"database,omitempty"`
	Store    StoreConfig    `koanf:"store" json:"store,omitempty"`
	JWT      JWTConfig      `koanf:"jwt" json:"jwt,omitempty"`
	Bcrypt   BcryptConfig   `koanf:"bcrypt" json:"bcrypt,omitempty"`
	Reset    ResetConfig    `koanf:"reset" json:"reset,omitempty"`
	SMTP     SMTPConfig     `koanf:"smtp" json:"smtp,omitempty"`
}

// ServerConfig configures the public HTTP API.
type ServerConfig struct {
	Addr    string   `koanf:"addr" json:"addr,omitempty" jsonschema:"description=HTTP listen address,default=:8000"`
	Prefix  string   `koanf:"prefix" json:"prefix,omitempty" jsonschema:"description=Path prefix for all API routes,default=/api"`
	Origins []string `koanf:"origins" json:"origins,omitempty" jsonschema:"description=Allowed CORS origins as glob patterns"`
}

// MetricsConfig configures the observability listener.
type MetricsConfig struct {
	Addr string `koanf:"addr" json:"addr,omitempty" jsonschema:"description=Metrics and health probe listen address; empty disables it,default=127.0.0.1:9100"`
}

// LogConfig configures structured logging.
type LogConfig struct {
	Format string `koanf:"format" json:"format,omitempty" jsonschema:"enum=json,enum=text,default=json"`
	Level  string `koanf:"level" json:"level,omitempty" jsonschema:"enum=debug,enum=info,enum=warn,enum=error,default=info"`
}

// DatabaseConfig configures the PostgreSQL connection.
type DatabaseConfig struct {
	URL     string `koanf:"url" json:"url,omitempty" jsonschema:"description=PostgreSQL connection URL"`
	Retries uint64 `koanf:"retries" json:"retries,omitempty" jsonschema:"description=Ping retries on startup,default=5"`
}

// StoreConfig selects the repository implementation.
type StoreConfig struct {
	Driver string `koanf:"driver" json:"driver,omitempty" jsonschema:"enum=postgres,enum=memory,default=postgres"`
}

// JWTConfig configures bearer tokens.
type JWTConfig struct {
	Secret    string        `koanf:"secret" json:"secret,omitempty" jsonschema:"description=HMAC signing secret of at least 32 bytes"`
	Algorithm string        `koanf:"algorithm" json:"algorithm,omitempty" jsonschema:"enum=HS256,enum=HS384,enum=HS512,default=HS256"`
	TTL       time.Duration `koanf:"ttl" json:"ttl,omitempty" jsonschema:"description=Bearer token lifetime,default=1h"`
	Issuer    string        `koanf:"issuer" json:"issuer,omitempty" jsonschema:"default=passgate"`
}

// BcryptConfig configures password hashing.
type BcryptConfig struct {
	Cost int `koanf:"cost" json:"cost,omitempty" jsonschema:"minimum=4,maximum=31,default=12"`
}

// ResetConfig configures password reset.
type ResetConfig struct {
	TTL     time.Duration `koanf:"ttl" json:"ttl,omitempty" jsonschema:"description=Reset token lifetime,default=1h"`
	URL     string        `koanf:"url" json:"url,omitempty" jsonschema:"description=Public base URL used to build reset links"`
	Conceal bool          `koanf:"conceal" json:"conceal,omitempty" jsonschema:"description=Answer reset requests for unknown emails like known ones,default=true"`

	PurgeInterval time.Duration `koanf:"purge_interval" json:"purge_interval,omitempty" jsonschema:"description=How often serve deletes expired reset tokens; 0 disables,default=15m"`
}

// SMTPConfig configures reset mail delivery. An empty host logs mail instead of sending it.
type SMTPConfig struct {
	Host     string `koanf:"host" json:"host,omitempty"`
	Port     int    `koanf:"port" json:"port,omitempty" jsonschema:"minimum=1,maximum=65535,default=587"`
	Username string `koanf:"username" json:"username,omitempty"`
	Password string `koanf:"password" json:"password,omitempty"`
	From     string `koanf:"from" json:"from,omitempty" jsonschema:"description=Sender address; also the login user when username is empty,default=noreply@localhost"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Server:   ServerConfig{Addr: ":8000", Prefix: "/api"},
		Metrics:  MetricsConfig{Addr: "127.0.0.1:9100"},
		Log:      LogConfig{Format: "json", Level: "info"},
		Database: DatabaseConfig{Retries: 5},
		Store:    StoreConfig{Driver: DriverPostgres},
		JWT: JWTConfig{
			Algorithm: auth.DefaultTokenAlgorithm,
			TTL:       auth.DefaultTokenTTL,
			Issuer:    "passgate",
		},
		Bcrypt: BcryptConfig{Cost: auth.DefaultBcryptCost},
		Reset: ResetConfig{
			TTL:     auth.ResetTokenExpiry,
			URL:     "http://localhost:8000",
			Conceal: true,

			PurgeInterval: 15 * time.Minute,
		},
		SMTP: SMTPConfig{Port: 587, From: "noreply@localhost"},
	}
}

// Validate reports every invalid setting.
func (c *Config) Validate() error {
	var problems []error
	add := func(key, format string, args ...any) {
		problems = append(problems, oops.With("key", key).Errorf(key+": "+format, args...))
	}

	if c.Server.Addr == "" {
		add("server.addr", "must not be empty")
	}
	if !slices.Contains(logging.Formats, c.Log.Format) {
		add("log.format", "must be one of %v, got %q", logging.Formats, c.Log.Format)
	}
	if !slices.Contains(logging.Levels, c.Log.Level) {
		add("log.level", "must be one of %v, got %q", logging.Levels, c.Log.Level)
	}

	switch c.Store.Driver {
	case DriverPostgres:
		if c.Database.URL == "" {
			add("database.url", "is required for the postgres store")
		}
	case DriverMemory:
	default:
		add("store.driver", "must be %q or %q, got %q", DriverPostgres, DriverMemory, c.Store.Driver)
	}

	if len(c.JWT.Secret) < auth.MinSecretLength {
		add("jwt.secret", "must be at least %d bytes", auth.MinSecretLength)
	}
	if !slices.Contains(auth.SupportedAlgorithms, c.JWT.Algorithm) {
		add("jwt.algorithm", "must be one of %v, got %q", auth.SupportedAlgorithms, c.JWT.Algorithm)
	}
	if c.JWT.TTL <= 0 {
		add("jwt.ttl", "must be positive")
	}
	if c.Reset.TTL <= 0 {
		add("reset.ttl", "must be positive")
	}
	if c.Reset.PurgeInterval < 0 {
		add("reset.purge_interval", "must not be negative")
	}
	if u, err := url.Parse(c.Reset.URL); err != nil || u.Scheme == "" || u.Host == "" {
		add("reset.url", "must be an absolute URL, got %q", c.Reset.URL)
	}
	if c.Bcrypt.Cost < 4 || c.Bcrypt.Cost > 31 {
		add("bcrypt.cost", "must be between 4 and 31, got %d", c.Bcrypt.Cost)
	}
	if c.SMTP.Host != "" {
		if c.SMTP.From == "" {
			add("smtp.from", "is required when smtp.host is set")
		}
		if c.SMTP.Port < 1 || c.SMTP.Port > 65535 {
			add("smtp.port", "must be a valid port, got %d", c.SMTP.Port)
		}
	}

	if len(problems) > 0 {
		return oops.Code("CONFIG_INVALID").Wrap(errors.Join(problems...))
	}
	return nil
}
