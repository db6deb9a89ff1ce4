// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Passgate Contributors

package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/passgate/passgate/pkg/errutil"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func validConfig() Config {
	cfg := Default()
	cfg.JWT.Secret = testSecret
	cfg.Database.URL = "postgres://passgate@localhost/passgate"
	return cfg
}

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "passgate.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestDefault(t *testing.T) {
	cfg := Default()
	assert.Equal(t, ":8000", cfg.Server.Addr)
	assert.Equal(t, "/api", cfg.Server.Prefix)
	assert.Equal(t, "HS256", cfg.JWT.Algorithm)
	assert.Equal(t, time.Hour, cfg.JWT.TTL)
	assert.Equal(t, time.Hour, cfg.Reset.TTL)
	assert.True(t, cfg.Reset.Conceal)
	assert.Equal(t, 12, cfg.Bcrypt.Cost)
	assert.Equal(t, DriverPostgres, cfg.Store.Driver)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		key    string
	}{
		{"short secret", func(c *Config) { c.JWT.Secret = "short" }, "jwt.secret"},
		{"unknown algorithm", func(c *Config) { c.JWT.Algorithm = "RS256" }, "jwt.algorithm"},
		{"zero jwt ttl", func(c *Config) { c.JWT.TTL = 0 }, "jwt.ttl"},
		{"negative reset ttl", func(c *Config) { c.Reset.TTL = -time.Minute }, "reset.ttl"},
		{"relative reset url", func(c *Config) { c.Reset.URL = "/reset" }, "reset.url"},
		{"low bcrypt cost", func(c *Config) { c.Bcrypt.Cost = 2 }, "bcrypt.cost"},
		{"unknown driver", func(c *Config) { c.Store.Driver = "sqlite" }, "store.driver"},
		{"postgres without url", func(c *Config) { c.Database.URL = "" }, "database.url"},
		{"unknown log level", func(c *Config) { c.Log.Level = "trace" }, "log.level"},
		{"unknown log format", func(c *Config) { c.Log.Format = "xml" }, "log.format"},
		{"empty server addr", func(c *Config) { c.Server.Addr = "" }, "server.addr"},
		{"smtp without sender", func(c *Config) {
			c.SMTP.Host = "mail.example.com"
			c.SMTP.From = ""
		}, "smtp.from"},
		{"negative purge interval", func(c *Config) { c.Reset.PurgeInterval = -time.Second }, "reset.purge_interval"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			require.Error(t, err)
			errutil.AssertErrorCode(t, err, "CONFIG_INVALID")
			assert.Contains(t, err.Error(), tt.key)
		})
	}
}

func TestValidateAcceptsValidConfig(t *testing.T) {
	cfg := validConfig()
	assert.NoError(t, cfg.Validate())

	cfg.Store.Driver = DriverMemory
	cfg.Database.URL = ""
	assert.NoError(t, cfg.Validate(), "memory store needs no database")
}

func TestValidateReportsEveryProblem(t *testing.T) {
	cfg := Default()
	cfg.Bcrypt.Cost = 40

	err := cfg.Validate()
	require.Error(t, err)
	for _, key := range []string{"jwt.secret", "database.url", "bcrypt.cost"} {
		assert.Contains(t, err.Error(), key)
	}
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv(FallbackDatabaseURLEnv, "")

	cfg, err := Load("", nil)
	require.NoError(t, err)
	assert.Equal(t, Default(), *cfg)
}

func TestLoadFile(t *testing.T) {
	path := writeConfig(t, `
server:
  addr: ":9000"
  origins: ["https://*.example.com"]
jwt:
  secret: "`+testSecret+`"
  ttl: 15m
reset:
  conceal: false
`)

	cfg, err := Load(path, nil)
	require.NoError(t, err)
	assert.Equal(t, ":9000", cfg.Server.Addr)
	assert.Equal(t, "/api", cfg.Server.Prefix, "unset keys keep defaults")
	assert.Equal(t, []string{"https://*.example.com"}, cfg.Server.Origins)
	assert.Equal(t, testSecret, cfg.JWT.Secret)
	assert.Equal(t, 15*time.Minute, cfg.JWT.TTL)
	assert.False(t, cfg.Reset.Conceal)
}

func TestLoadRejectsSchemaViolations(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"unknown key", "server:\n  listen: \":80\"\n"},
		{"bad duration", "jwt:\n  ttl: one hour\n"},
		{"bad enum", "log:\n  format: xml\n"},
		{"cost out of range", "bcrypt:\n  cost: 99\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.body), nil)
			require.Error(t, err)
			errutil.AssertErrorCode(t, err, "CONFIG_SCHEMA_VIOLATION")
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"), nil)
	require.Error(t, err)
	errutil.AssertErrorCode(t, err, "CONFIG_LOAD_FAILED")
	errutil.AssertErrorContext(t, err, "source", "file")
}

func TestLoadEnvOverridesFile(t *testing.T) {
	path := writeConfig(t, "log:\n  level: warn\nreset:\n  ttl: 30m\n")
	t.Setenv("PASSGATE_LOG_LEVEL", "debug")
	t.Setenv("PASSGATE_RESET_CONCEAL", "false")
	t.Setenv("PASSGATE_SERVER_ORIGINS", "https://a.example,https://b.example")
	t.Setenv("PASSGATE_BCRYPT_COST", "10")
	t.Setenv("PASSGATE_RESET_PURGE_INTERVAL", "5m")

	cfg, err := Load(path, nil)
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, 30*time.Minute, cfg.Reset.TTL)
	assert.False(t, cfg.Reset.Conceal)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.Server.Origins)
	assert.Equal(t, 10, cfg.Bcrypt.Cost)
	assert.Equal(t, 5*time.Minute, cfg.Reset.PurgeInterval)
}

func TestLoadEnvListValues(t *testing.T) {
	tests := []struct {
		name  string
		value string
		want  []string
	}{
		{"single", "https://a.example", []string{"https://a.example"}},
		{"trims spaces", " https://a.example , http://localhost:* ", []string{"https://a.example", "http://localhost:*"}},
		{"drops empties", "https://a.example,,", []string{"https://a.example"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("PASSGATE_SERVER_ORIGINS", tt.value)
			cfg, err := Load("", nil)
			require.NoError(t, err)
			assert.Equal(t, tt.want, cfg.Server.Origins)
		})
	}
}

func TestLoadDatabaseURLFallback(t *testing.T) {
	t.Setenv(FallbackDatabaseURLEnv, "postgres://fallback/db")

	cfg, err := Load("", nil)
	require.NoError(t, err)
	assert.Equal(t, "postgres://fallback/db", cfg.Database.URL)

	t.Setenv("PASSGATE_DATABASE_URL", "postgres://primary/db")
	cfg, err = Load("", nil)
	require.NoError(t, err)
	assert.Equal(t, "postgres://primary/db", cfg.Database.URL)
}

func TestLoadFlagsOverrideEnv(t *testing.T) {
	t.Setenv("PASSGATE_SERVER_ADDR", ":7000")
	t.Setenv("PASSGATE_LOG_FORMAT", "text")

	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	RegisterFlags(fs)
	fs.String("config", "", "unrelated flag")
	require.NoError(t, fs.Parse([]string{"--server-addr", ":6000", "--config", "ignored.yaml"}))

	cfg, err := Load("", fs)
	require.NoError(t, err)
	assert.Equal(t, ":6000", cfg.Server.Addr)
	assert.Equal(t, "text", cfg.Log.Format, "unchanged flags do not override")
	assert.Equal(t, "info", cfg.Log.Level)
}

func TestFlagKeysMatchRegisteredFlags(t *testing.T) {
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	RegisterFlags(fs)

	var names []string
	fs.VisitAll(func(f *pflag.Flag) {
		names = append(names, f.Name)
		key, ok := flagKeys[f.Name]
		if assert.True(t, ok, "flag %s has no config key", f.Name) {
			assert.Equal(t, strings.ReplaceAll(f.Name, "-", "."), key)
		}
	})
	assert.Len(t, names, len(flagKeys))
}
