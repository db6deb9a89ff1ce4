// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Passgate Contributors

package config

import (
	"errors"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/samber/oops"
	"github.com/spf13/pflag"
)

// EnvPrefix prefixes environment overrides: PASSGATE_JWT_SECRET sets jwt.secret.
const EnvPrefix = "PASSGATE_"

// FallbackDatabaseURLEnv is consulted when database.url is set nowhere else.
const FallbackDatabaseURLEnv = "DATABASE_URL"

var errReadBytesNotSupported = errors.New("config: ReadBytes not supported by map provider")

// mapProvider feeds a nested map into koanf.
type mapProvider map[string]any

func (m mapProvider) ReadBytes() ([]byte, error) {
	return nil, errReadBytesNotSupported
}

func (m mapProvider) Read() (map[string]any, error) {
	return m, nil
}

// flagKeys maps the flags registered by RegisterFlags to config keys.
var flagKeys = map[string]string{
	"server-addr":  "server.addr",
	"metrics-addr": "metrics.addr",
	"log-format":   "log.format",
	"log-level":    "log.level",
	"database-url": "database.url",
	"store-driver": "store.driver",
	"reset-url":    "reset.url",
}

// listKeys are the []string settings that environment values split on commas.
var listKeys = map[string]struct{}{
	"server.origins": {},
}

func splitList(value string) []string {
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// RegisterFlags adds the command-line overrides understood by Load.
func RegisterFlags(fs *pflag.FlagSet) {
	fs.String("server-addr", "", "HTTP listen address")
	fs.String("metrics-addr", "", "metrics listen address, empty to use the configured value")
	fs.String("log-format", "", "log format (json, text)")
	fs.String("log-level", "", "log level (debug, info, warn, error)")
	fs.String("database-url", "", "PostgreSQL connection URL")
	fs.String("store-driver", "", "repository driver (postgres, memory)")
	fs.String("reset-url", "", "public base URL for reset links")
}

// Load builds a Config from defaults, the YAML file at path (optional),
// the environment and changed flags in fs (optional). The result is not
// validated; call Validate.
func Load(path string, fs *pflag.FlagSet) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(mapProvider(defaultsMap()), nil); err != nil {
		return nil, oops.Code("CONFIG_LOAD_FAILED").With("source", "defaults").Wrap(err)
	}

	if path != "" {
		data, err := os.ReadFile(path) //nolint:gosec // path is operator supplied
		if err != nil {
			return nil, oops.Code("CONFIG_LOAD_FAILED").With("source", "file").With("path", path).Wrap(err)
		}
		if err := ValidateSchema(data); err != nil {
			return nil, oops.With("path", path).Wrap(err)
		}
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, oops.Code("CONFIG_LOAD_FAILED").With("source", "file").With("path", path).Wrap(err)
		}
	}

	// PASSGATE_RESET_PURGE_INTERVAL -> reset.purge_interval: only the first
	// underscore separates the section from the key. List keys take
	// comma-separated values.
	envValue := func(name, value string) (string, any) {
		name = strings.ToLower(strings.TrimPrefix(name, EnvPrefix))
		key := name
		if section, rest, found := strings.Cut(name, "_"); found {
			key = section + "." + rest
		}
		if _, ok := listKeys[key]; ok {
			return key, splitList(value)
		}
		return key, value
	}
	if err := k.Load(env.ProviderWithValue(EnvPrefix, ".", envValue), nil); err != nil {
		return nil, oops.Code("CONFIG_LOAD_FAILED").With("source", "env").Wrap(err)
	}

	if k.String("database.url") == "" {
		if u := os.Getenv(FallbackDatabaseURLEnv); u != "" {
			if err := k.Set("database.url", u); err != nil {
				return nil, oops.Code("CONFIG_LOAD_FAILED").With("source", "env").Wrap(err)
			}
		}
	}

	if fs != nil {
		// Only changed flags override; unchanged ones never mask file or env values.
		cb := func(f *pflag.Flag) (string, any) {
			key, ok := flagKeys[f.Name]
			if !ok || !f.Changed {
				return "", nil
			}
			return key, posflag.FlagVal(fs, f)
		}
		if err := k.Load(posflag.ProviderWithFlag(fs, ".", k, cb), nil); err != nil {
			return nil, oops.Code("CONFIG_LOAD_FAILED").With("source", "flags").Wrap(err)
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, oops.Code("CONFIG_DECODE_FAILED").Wrap(err)
	}
	return &cfg, nil
}

// defaultsMap renders Default as the nested map koanf merges.
func defaultsMap() map[string]any {
	d := Default()
	return map[string]any{
		"server": map[string]any{
			"addr":   d.Server.Addr,
			"prefix": d.Server.Prefix,
		},
		"metrics":  map[string]any{"addr": d.Metrics.Addr},
		"log":      map[string]any{"format": d.Log.Format, "level": d.Log.Level},
		"database": map[string]any{"retries": d.Database.Retries},
		"store":    map[string]any{"driver": d.Store.Driver},
		"jwt": map[string]any{
			"algorithm": d.JWT.Algorithm,
			"ttl":       d.JWT.TTL,
			"issuer":    d.JWT.Issuer,
		},
		"bcrypt": map[string]any{"cost": d.Bcrypt.Cost},
		"reset": map[string]any{
			"ttl":     d.Reset.TTL,
			"url":     d.Reset.URL,
			"conceal": d.Reset.Conceal,

			"purge_interval": d.Reset.PurgeInterval,
		},
		"smtp": map[string]any{"port": d.SMTP.Port, "from": d.SMTP.From},
	}
}
