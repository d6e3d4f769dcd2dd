// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Helpdesk Contributors

// Package config loads and validates the helpdesk service configuration.
//
// Values are layered: built-in defaults, then the YAML file, then
// command-line flags, then DATABASE_URL and REDIS_DATABASE_URL for URLs
// still empty.
package config

import (
	"encoding/base64"
	"os"
	"slices"
	"time"

	"github.com/gobwas/glob"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/samber/oops"
	"github.com/spf13/pflag"

	"github.com/helpdesk/helpdesk/internal/logging"
)

// Backend kinds.
const (
	StoreMemory   = "memory"
	StoreRedis    = "redis"
	StorePostgres = "postgres"
)

// Environment variables consulted for URLs left empty by file and flags.
const (
	EnvDatabaseURL = "DATABASE_URL"
	EnvRedisURL    = "REDIS_DATABASE_URL"
)

// Paths always guarded regardless of auth.protected_paths.
var alwaysProtected = []string{"/login", "/logout"}

// Config is the complete service configuration.
type Config struct {
	LogFormat string   `koanf:"log_format" yaml:"log_format,omitempty" json:"log_format,omitempty" jsonschema:"enum=json,enum=text,description=Log output format"`
	HTTP      HTTP     `koanf:"http" yaml:"http,omitempty" json:"http,omitempty"`
	Database  Database `koanf:"database" yaml:"database,omitempty" json:"database,omitempty"`
	Session   Session  `koanf:"session" yaml:"session,omitempty" json:"session,omitempty"`
	Cookie    Cookie   `koanf:"cookie" yaml:"cookie,omitempty" json:"cookie,omitempty"`
	Auth      Auth     `koanf:"auth" yaml:"auth,omitempty" json:"auth,omitempty"`
	Accounts  Accounts `koanf:"accounts" yaml:"accounts,omitempty" json:"accounts,omitempty"`
}

// HTTP configures the listeners.
type HTTP struct {
	Addr        string `koanf:"addr" yaml:"addr,omitempty" json:"addr,omitempty" jsonschema:"description=Listen address for the API"`
	MetricsAddr string `koanf:"metrics_addr" yaml:"metrics_addr,omitempty" json:"metrics_addr,omitempty" jsonschema:"description=Listen address for metrics and health probes (empty disables)"`
}

// Database configures the PostgreSQL connection.
type Database struct {
	URL string `koanf:"url" yaml:"url,omitempty" json:"url,omitempty" jsonschema:"description=PostgreSQL connection URL"`
}

// Session selects and configures the session store.
type Session struct {
	Store string       `koanf:"store" yaml:"store,omitempty" json:"store,omitempty" jsonschema:"enum=memory,enum=redis"`
	TTL   string       `koanf:"ttl" yaml:"ttl,omitempty" json:"ttl,omitempty" jsonschema:"description=Session lifetime in the remote store (Go duration; 0 disables expiry)"`
	Redis SessionRedis `koanf:"redis" yaml:"redis,omitempty" json:"redis,omitempty"`
}

// SessionRedis configures the Redis session store.
type SessionRedis struct {
	URL       string `koanf:"url" yaml:"url,omitempty" json:"url,omitempty" jsonschema:"description=Redis connection URL"`
	KeyPrefix string `koanf:"key_prefix" yaml:"key_prefix,omitempty" json:"key_prefix,omitempty"`
}

// Cookie configures the session cookie. Keys are standard base64.
type Cookie struct {
	Name     string `koanf:"name" yaml:"name,omitempty" json:"name,omitempty" jsonschema:"minLength=1"`
	HashKey  string `koanf:"hash_key" yaml:"hash_key,omitempty" json:"hash_key,omitempty" jsonschema:"description=HMAC key (base64; 32 or 64 bytes). Generated at startup when empty"`
	BlockKey string `koanf:"block_key" yaml:"block_key,omitempty" json:"block_key,omitempty" jsonschema:"description=AES key (base64; 16/24/32 bytes). Empty disables encryption"`
	Secure   bool   `koanf:"secure" yaml:"secure,omitempty" json:"secure,omitempty"`
}

// Auth tunes authentication.
type Auth struct {
	MaxConcurrentHashes int      `koanf:"max_concurrent_hashes" yaml:"max_concurrent_hashes,omitempty" json:"max_concurrent_hashes,omitempty" jsonschema:"minimum=1"`
	ProtectedPaths      []string `koanf:"protected_paths" yaml:"protected_paths,omitempty" json:"protected_paths,omitempty" jsonschema:"description=Glob patterns of request paths that require authentication"`
}

// Accounts selects the account store.
type Accounts struct {
	Store string `koanf:"store" yaml:"store,omitempty" json:"store,omitempty" jsonschema:"enum=memory,enum=postgres"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		LogFormat: logging.FormatJSON,
		HTTP: HTTP{
			Addr:        "127.0.0.1:8080",
			MetricsAddr: "127.0.0.1:9100",
		},
		Session: Session{
			Store: StoreMemory,
			TTL:   "24h",
			Redis: SessionRedis{KeyPrefix: "helpdesk:session:"},
		},
		Cookie: Cookie{Name: "session-id"},
		Auth: Auth{
			MaxConcurrentHashes: 4,
			ProtectedPaths:      slices.Clone(alwaysProtected),
		},
		Accounts: Accounts{Store: StoreMemory},
	}
}

// flagKeys maps command-line flag names to configuration keys.
var flagKeys = map[string]string{
	"log-format":            "log_format",
	"http-addr":             "http.addr",
	"metrics-addr":          "http.metrics_addr",
	"database-url":          "database.url",
	"session-store":         "session.store",
	"session-ttl":           "session.ttl",
	"redis-url":             "session.redis.url",
	"redis-key-prefix":      "session.redis.key_prefix",
	"cookie-secure":         "cookie.secure",
	"max-concurrent-hashes": "auth.max_concurrent_hashes",
	"protect":               "auth.protected_paths",
	"accounts-store":        "accounts.store",
}

// RegisterFlags adds the configuration flags to fs with the built-in defaults.
func RegisterFlags(fs *pflag.FlagSet) {
	d := Default()
	fs.String("log-format", d.LogFormat, "log format (json or text)")
	fs.String("http-addr", d.HTTP.Addr, "HTTP listen address")
	fs.String("metrics-addr", d.HTTP.MetricsAddr, "metrics/health HTTP address (empty = disabled)")
	fs.String("database-url", "", "PostgreSQL URL (default: $"+EnvDatabaseURL+")")
	fs.String("session-store", d.Session.Store, "session store (memory or redis)")
	fs.String("session-ttl", d.Session.TTL, "session lifetime in the redis store (0 = no expiry)")
	fs.String("redis-url", "", "Redis URL (default: $"+EnvRedisURL+")")
	fs.String("redis-key-prefix", d.Session.Redis.KeyPrefix, "Redis key prefix for sessions")
	fs.Bool("cookie-secure", d.Cookie.Secure, "mark the session cookie Secure")
	fs.Int("max-concurrent-hashes", d.Auth.MaxConcurrentHashes, "maximum concurrent password hash operations")
	fs.StringSlice("protect", d.Auth.ProtectedPaths, "glob pattern of paths that require authentication (repeatable)")
	fs.String("accounts-store", d.Accounts.Store, "account store (memory or postgres)")
}

// Load builds a Config from the optional YAML file at path and the optional
// flag set. The file is validated against the configuration schema first.
func Load(path string, flags *pflag.FlagSet) (*Config, error) {
	k := koanf.New(".")

	if path != "" {
		data, err := os.ReadFile(path) //nolint:gosec // operator-supplied config path
		if err != nil {
			return nil, oops.Code("CONFIG_READ_FAILED").With("path", path).Wrap(err)
		}
		if err := ValidateSchema(data); err != nil {
			return nil, oops.Code("CONFIG_INVALID").With("path", path).Wrap(err)
		}
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, oops.Code("CONFIG_READ_FAILED").With("path", path).Wrap(err)
		}
	}

	if flags != nil {
		provider := posflag.ProviderWithFlag(flags, ".", k, func(f *pflag.Flag) (string, any) {
			key, ok := flagKeys[f.Name]
			if !ok {
				return "", nil
			}
			return key, posflag.FlagVal(flags, f)
		})
		if err := k.Load(provider, nil); err != nil {
			return nil, oops.Code("CONFIG_FLAGS_FAILED").Wrap(err)
		}
	}

	cfg := Default()
	// Slices decode element-wise over existing values; start empty so a
	// shorter list from the file or flags is not padded with defaults.
	cfg.Auth.ProtectedPaths = nil
	if err := k.UnmarshalWithConf("", cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, oops.Code("CONFIG_INVALID").Wrap(err)
	}

	if cfg.Database.URL == "" {
		cfg.Database.URL = os.Getenv(EnvDatabaseURL)
	}
	if cfg.Session.Redis.URL == "" {
		cfg.Session.Redis.URL = os.Getenv(EnvRedisURL)
	}
	cfg.Auth.ProtectedPaths = withAlwaysProtected(cfg.Auth.ProtectedPaths)

	return cfg, nil
}

// Validate checks the configuration for values the service cannot run with.
func (c *Config) Validate() error {
	if err := logging.ValidateFormat(c.LogFormat); err != nil {
		return invalid("log_format", err)
	}
	if c.HTTP.Addr == "" {
		return invalidf("http.addr", "http.addr is required")
	}

	switch c.Session.Store {
	case StoreMemory:
	case StoreRedis:
		if c.Session.Redis.URL == "" {
			return invalidf("session.redis.url", "session.redis.url (or %s) is required for the redis session store", EnvRedisURL)
		}
	default:
		return invalidf("session.store", "session.store must be %q or %q, got %q", StoreMemory, StoreRedis, c.Session.Store)
	}
	if _, err := c.SessionTTL(); err != nil {
		return err
	}

	switch c.Accounts.Store {
	case StoreMemory:
	case StorePostgres:
		if c.Database.URL == "" {
			return invalidf("database.url", "database.url (or %s) is required for the postgres account store", EnvDatabaseURL)
		}
	default:
		return invalidf("accounts.store", "accounts.store must be %q or %q, got %q", StoreMemory, StorePostgres, c.Accounts.Store)
	}

	if c.Cookie.Name == "" {
		return invalidf("cookie.name", "cookie.name is required")
	}
	if _, _, err := c.CookieKeys(); err != nil {
		return err
	}

	if c.Auth.MaxConcurrentHashes < 1 {
		return invalidf("auth.max_concurrent_hashes", "auth.max_concurrent_hashes must be at least 1, got %d", c.Auth.MaxConcurrentHashes)
	}
	for _, pattern := range c.Auth.ProtectedPaths {
		if _, err := glob.Compile(pattern, '/'); err != nil {
			return invalid("auth.protected_paths", oops.With("pattern", pattern).Wrap(err))
		}
	}
	return nil
}

// SessionTTL parses session.ttl. Zero means no expiry.
func (c *Config) SessionTTL() (time.Duration, error) {
	if c.Session.TTL == "" {
		return 0, nil
	}
	ttl, err := time.ParseDuration(c.Session.TTL)
	if err != nil {
		return 0, invalid("session.ttl", err)
	}
	if ttl < 0 {
		return 0, invalidf("session.ttl", "session.ttl must not be negative, got %s", c.Session.TTL)
	}
	return ttl, nil
}

// CookieKeys decodes the cookie keys. A nil hash key means one must be generated.
func (c *Config) CookieKeys() (hashKey, blockKey []byte, err error) {
	if c.Cookie.HashKey != "" {
		hashKey, err = base64.StdEncoding.DecodeString(c.Cookie.HashKey)
		if err != nil {
			return nil, nil, invalid("cookie.hash_key", err)
		}
		if len(hashKey) != 32 && len(hashKey) != 64 {
			return nil, nil, invalidf("cookie.hash_key", "cookie.hash_key must decode to 32 or 64 bytes, got %d", len(hashKey))
		}
	}
	if c.Cookie.BlockKey != "" {
		blockKey, err = base64.StdEncoding.DecodeString(c.Cookie.BlockKey)
		if err != nil {
			return nil, nil, invalid("cookie.block_key", err)
		}
		switch len(blockKey) {
		case 16, 24, 32:
		default:
			return nil, nil, invalidf("cookie.block_key", "cookie.block_key must decode to 16, 24 or 32 bytes, got %d", len(blockKey))
		}
	}
	return hashKey, blockKey, nil
}

// Redacted returns a copy safe to print: URLs and keys are masked.
func (c *Config) Redacted() *Config {
	out := *c
	out.Auth.ProtectedPaths = slices.Clone(c.Auth.ProtectedPaths)
	mask := func(s string) string {
		if s == "" {
			return ""
		}
		return "********"
	}
	out.Database.URL = mask(c.Database.URL)
	out.Session.Redis.URL = mask(c.Session.Redis.URL)
	out.Cookie.HashKey = mask(c.Cookie.HashKey)
	out.Cookie.BlockKey = mask(c.Cookie.BlockKey)
	return &out
}

func withAlwaysProtected(paths []string) []string {
	out := slices.Clone(paths)
	for _, p := range alwaysProtected {
		if !slices.Contains(out, p) {
			out = append(out, p)
		}
	}
	return out
}

func invalid(field string, err error) error {
	return oops.Code("CONFIG_INVALID").With("field", field).Wrap(err)
}

func invalidf(field, format string, args ...any) error {
	return oops.Code("CONFIG_INVALID").With("field", field).Errorf(format, args...)
}
