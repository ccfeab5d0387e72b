// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 AuthCore Contributors

package config

import (
	"errors"
	"net/url"
	"slices"

	"github.com/samber/oops"

	"github.com/forumcore/authcore/internal/logging"
)

func invalid(key string, value any, msg string) error {
	return oops.Code("CONFIG_INVALID").With("key", key).With("value", value).Errorf("%s: %s", key, msg)
}

// Validate reports every invalid setting.
func (c *Config) Validate() error {
	var errs []error
	check := func(ok bool, key string, value any, msg string) {
		if !ok {
			errs = append(errs, invalid(key, value, msg))
		}
	}

	check(c.Log.Format == "json" || c.Log.Format == "text", "log.format", c.Log.Format, "must be json or text")
	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		errs = append(errs, invalid("log.level", c.Log.Level, "must be debug, info, warn or error"))
	}

	check(slices.Contains([]string{DriverPostgres, DriverMemory}, c.Store.Driver),
		"store.driver", c.Store.Driver, "must be postgres or memory")
	if c.Store.Driver == DriverPostgres {
		check(c.Database.URL != "", "database.url", "", "required for the postgres driver")
	}
	check(c.Database.ConnectAttempts > 0, "database.connect_attempts", c.Database.ConnectAttempts, "must be positive")

	check(c.HTTP.Addr != "", "http.addr", c.HTTP.Addr, "required")
	if c.HTTP.BaseURL == "" {
		errs = append(errs, invalid("http.base_url", "", "required"))
	} else if u, err := url.Parse(c.HTTP.BaseURL); err != nil || u.Scheme == "" || u.Host == "" {
		errs = append(errs, invalid("http.base_url", c.HTTP.BaseURL, "must be an absolute url"))
	}
	check(c.HTTP.CookieName != "", "http.cookie_name", c.HTTP.CookieName, "required")

	check(c.Lockout.Window > 0, "lockout.window", c.Lockout.Window, "must be positive")
	check(c.Lockout.MaxAttempts > 0, "lockout.max_attempts", c.Lockout.MaxAttempts, "must be positive")
	check(c.Lockout.CleanupInterval > 0, "lockout.cleanup_interval", c.Lockout.CleanupInterval, "must be positive")

	check(slices.Contains([]string{SessionBackendStore, SessionBackendRedis}, c.Session.Backend),
		"session.backend", c.Session.Backend, "must be store or redis")
	check(c.Session.AbsoluteTTL > 0, "session.absolute_ttl", c.Session.AbsoluteTTL, "must be positive")
	check(c.Session.IdleTTL > 0, "session.idle_ttl", c.Session.IdleTTL, "must be positive")
	check(c.Session.SweepInterval > 0, "session.sweep_interval", c.Session.SweepInterval, "must be positive")
	if c.Session.Backend == SessionBackendRedis {
		check(c.Redis.Addr != "", "redis.addr", "", "required for the redis session backend")
	}

	check(c.Reset.TTL > 0, "reset.ttl", c.Reset.TTL, "must be positive")
	check(c.Reset.SweepInterval > 0, "reset.sweep_interval", c.Reset.SweepInterval, "must be positive")
	check(c.Hashing.Timeout > 0, "hashing.timeout", c.Hashing.Timeout, "must be positive")

	check(slices.Contains([]string{MailDriverLog, MailDriverSMTP}, c.Mail.Driver),
		"mail.driver", c.Mail.Driver, "must be log or smtp")
	if c.Mail.Driver == MailDriverSMTP {
		check(c.Mail.Host != "", "mail.host", "", "required for the smtp driver")
		check(c.Mail.From != "", "mail.from", "", "required for the smtp driver")
	}

	if len(errs) > 0 {
		return oops.Code("CONFIG_INVALID").Wrap(errors.Join(errs...))
	}
	return nil
}
