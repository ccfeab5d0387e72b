// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 AuthCore Contributors

// Package config loads authcore settings. Sources in increasing precedence:
// built-in defaults, a YAML file, AUTHCORE_* environment variables and
// command-line flags.
package config

import (
	"os"
	"runtime"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/samber/oops"
	"github.com/spf13/pflag"
)

// EnvPrefix prefixes environment overrides. Nested keys use a double
// underscore: AUTHCORE_SESSION__IDLE_TTL=1h sets session.idle_ttl.
const EnvPrefix = "AUTHCORE_"

// Store drivers.
const (
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

// Session backends.
const (
	SessionBackendStore = "store"
	SessionBackendRedis = "redis"
)

// Mail drivers.
const (
	MailDriverLog  = "log"
	MailDriverSMTP = "smtp"
)

// Config is the full authcore configuration.
type Config struct {
	Log      LogConfig      `koanf:"log"`
	Store    StoreConfig    `koanf:"store"`
	Database DatabaseConfig `koanf:"database"`
	HTTP     HTTPConfig     `koanf:"http"`
	Metrics  MetricsConfig  `koanf:"metrics"`
	Lockout  LockoutConfig  `koanf:"lockout"`
	Session  SessionConfig  `koanf:"session"`
	Redis    RedisConfig    `koanf:"redis"`
	Reset    ResetConfig    `koanf:"reset"`
	Hashing  HashingConfig  `koanf:"hashing"`
	Mail     MailConfig     `koanf:"mail"`
}

// LogConfig selects the slog handler.
type LogConfig struct {
	Format string `koanf:"format"`
	Level  string `koanf:"level"`
}

// StoreConfig selects the repository implementation.
type StoreConfig struct {
	Driver string `koanf:"driver"`
}

type DatabaseConfig struct {
	URL             string        `koanf:"url"`
	ConnectAttempts int           `koanf:"connect_attempts"`
	ConnectBackoff  time.Duration `koanf:"connect_backoff"`
}

type HTTPConfig struct {
	Addr         string `koanf:"addr"`
	BaseURL      string `koanf:"base_url"`
	CookieName   string `koanf:"cookie_name"`
	CookieSecure bool   `koanf:"cookie_secure"`
	TrustProxy   bool   `koanf:"trust_proxy"`
}

// MetricsConfig configures the observability listener. An empty Addr
// disables it.
type MetricsConfig struct {
	Addr string `koanf:"addr"`
}

type LockoutConfig struct {
	Window          time.Duration `koanf:"window"`
	MaxAttempts     int           `koanf:"max_attempts"`
	CleanupInterval time.Duration `koanf:"cleanup_interval"`
}

// SessionConfig sets session lifetimes. Backend "store" keeps sessions in
// the configured store; "redis" keeps them in Redis.
type SessionConfig struct {
	Backend       string        `koanf:"backend"`
	AbsoluteTTL   time.Duration `koanf:"absolute_ttl"`
	IdleTTL       time.Duration `koanf:"idle_ttl"`
	SweepInterval time.Duration `koanf:"sweep_interval"`
}

type RedisConfig struct {
	Addr     string `koanf:"addr"`
	Password string `koanf:"password"`
	DB       int    `koanf:"db"`
}

type ResetConfig struct {
	TTL             time.Duration `koanf:"ttl"`
	SweepInterval   time.Duration `koanf:"sweep_interval"`
	InvalidatePrior bool          `koanf:"invalidate_prior"`
}

type HashingConfig struct {
	MaxConcurrent int           `koanf:"max_concurrent"`
	Timeout       time.Duration `koanf:"timeout"`
}

type MailConfig struct {
	Driver   string `koanf:"driver"`
	Host     string `koanf:"host"`
	Port     int    `koanf:"port"`
	Username string `koanf:"username"`
	Password string `koanf:"password"`
	From     string `koanf:"from"`
}

// Defaults returns the built-in values keyed by koanf path.
func Defaults() map[string]any {
	return map[string]any{
		"log.format":                "json",
		"log.level":                 "info",
		"store.driver":              DriverPostgres,
		"database.url":              "",
		"database.connect_attempts": 5,
		"database.connect_backoff":  500 * time.Millisecond,
		"http.addr":                 "127.0.0.1:8080",
		"http.base_url":             "http://localhost:8080",
		"http.cookie_name":          "sid",
		"http.cookie_secure":        false,
		"http.trust_proxy":          false,
		"metrics.addr":              "127.0.0.1:9100",
		"lockout.window":            15 * time.Minute,
		"lockout.max_attempts":      5,
		"lockout.cleanup_interval":  time.Hour,
		"session.backend":           SessionBackendStore,
		"session.absolute_ttl":      24 * time.Hour,
		"session.idle_ttl":          2 * time.Hour,
		"session.sweep_interval":    30 * time.Minute,
		"redis.addr":                "127.0.0.1:6379",
		"redis.password":            "",
		"redis.db":                  0,
		"reset.ttl":                 time.Hour,
		"reset.sweep_interval":      30 * time.Minute,
		"reset.invalidate_prior":    false,
		"hashing.max_concurrent":    runtime.NumCPU(),
		"hashing.timeout":           10 * time.Second,
		"mail.driver":               MailDriverLog,
		"mail.host":                 "",
		"mail.port":                 587,
		"mail.username":             "",
		"mail.password":             "",
		"mail.from":                 "",
	}
}

// FlagKeys maps command-line flag names to config keys. Flags not listed
// here are ignored by Load.
var FlagKeys = map[string]string{
	"log-format":    "log.format",
	"log-level":     "log.level",
	"store":         "store.driver",
	"database-url":  "database.url",
	"http-addr":     "http.addr",
	"base-url":      "http.base_url",
	"metrics-addr":  "metrics.addr",
	"session-store": "session.backend",
	"redis-addr":    "redis.addr",
	"mail-driver":   "mail.driver",
}

func envKey(name string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(name, EnvPrefix)), "__", ".")
}

// Load reads configuration from path (optional), the environment and the
// changed flags in flags (optional). DATABASE_URL fills database.url when
// no other source set it.
func Load(path string, flags *pflag.FlagSet) (*Config, error) {
	k := koanf.New(".")

	for key, value := range Defaults() {
		if err := k.Set(key, value); err != nil {
			return nil, oops.Code("CONFIG_DEFAULTS_FAILED").With("key", key).Wrap(err)
		}
	}

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, oops.Code("CONFIG_FILE_INVALID").With("path", path).Wrap(err)
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, oops.Code("CONFIG_ENV_INVALID").Wrap(err)
	}

	if flags != nil {
		provider := posflag.ProviderWithFlag(flags, ".", k, func(f *pflag.Flag) (string, any) {
			key, ok := FlagKeys[f.Name]
			if !ok {
				return "", nil
			}
			return key, posflag.FlagVal(flags, f)
		})
		if err := k.Load(provider, nil); err != nil {
			return nil, oops.Code("CONFIG_FLAGS_INVALID").Wrap(err)
		}
	}

	var cfg Config
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, oops.Code("CONFIG_DECODE_FAILED").Wrap(err)
	}
	if cfg.Database.URL == "" {
		cfg.Database.URL = os.Getenv("DATABASE_URL")
	}
	return &cfg, nil
}
