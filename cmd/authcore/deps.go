// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 AuthCore Contributors

package main

import (
	"context"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/samber/oops"

	"github.com/forumcore/authcore/internal/auth"
	"github.com/forumcore/authcore/internal/auth/memstore"
	"github.com/forumcore/authcore/internal/auth/postgres"
	"github.com/forumcore/authcore/internal/auth/redisstore"
	"github.com/forumcore/authcore/internal/config"
	"github.com/forumcore/authcore/internal/mail"
	"github.com/forumcore/authcore/internal/observability"
	"github.com/forumcore/authcore/internal/store"
	"github.com/forumcore/authcore/internal/web"
)

// ServeDeps contains injectable dependencies for the serve and sweep
// commands. All fields with nil values will use their default
// implementations.
type ServeDeps struct {
	// PoolFactory opens the PostgreSQL pool.
	// Default: store.Connect
	PoolFactory func(ctx context.Context, url string, opts store.ConnectOptions) (*pgxpool.Pool, error)

	// RedisFactory opens the Redis client for the redis session backend.
	// Default: redisstore.Connect
	RedisFactory func(ctx context.Context, addr, password string, db int) (*redis.Client, error)

	// MailerFactory builds the outbound mailer.
	// Default: newMailer
	MailerFactory func(cfg config.MailConfig, logger *slog.Logger) (mail.Mailer, error)
}

func (d ServeDeps) withDefaults() ServeDeps {
	if d.PoolFactory == nil {
		d.PoolFactory = store.Connect
	}
	if d.RedisFactory == nil {
		d.RedisFactory = redisstore.Connect
	}
	if d.MailerFactory == nil {
		d.MailerFactory = newMailer
	}
	return d
}

func newMailer(cfg config.MailConfig, logger *slog.Logger) (mail.Mailer, error) {
	if cfg.Driver == config.MailDriverSMTP {
		return mail.NewSMTPMailer(mail.SMTPConfig{
			Host:     cfg.Host,
			Port:     cfg.Port,
			Username: cfg.Username,
			Password: cfg.Password,
			From:     cfg.From,
		})
	}
	return mail.NewLogMailer(logger), nil
}

// components is the wired service graph for one process.
type components struct {
	pool  *pgxpool.Pool
	redis *redis.Client

	tracker  *auth.LoginTracker
	sessions *auth.SessionManager
	auth     *auth.Service
	accounts *auth.AccountService
	resets   *auth.ResetService
}

type repositories struct {
	users    auth.UserRepository
	attempts auth.AttemptRepository
	sessions auth.SessionRepository
	resets   auth.ResetTokenRepository
}

// buildComponents opens the configured backends and wires the auth
// services over them. A nil metrics disables instrumentation.
func buildComponents(ctx context.Context, cfg *config.Config, logger *slog.Logger, metrics *observability.Metrics, deps ServeDeps) (_ *components, err error) {
	deps = deps.withDefaults()
	c := &components{}
	defer func() {
		if err != nil {
			c.Close()
		}
	}()

	var repos repositories
	switch cfg.Store.Driver {
	case config.DriverMemory:
		mem := memstore.New()
		repos = repositories{users: mem.Users(), attempts: mem.Attempts(), sessions: mem.Sessions(), resets: mem.Resets()}
		logger.Warn("using in-memory store, data is lost on exit")
	default:
		c.pool, err = deps.PoolFactory(ctx, cfg.Database.URL, store.ConnectOptions{
			Attempts: cfg.Database.ConnectAttempts,
			Backoff:  cfg.Database.ConnectBackoff,
			Logger:   logger,
		})
		if err != nil {
			return nil, oops.Code("DB_CONNECT_FAILED").With("operation", "connect to database").Wrap(err)
		}
		repos = repositories{
			users:    postgres.NewUserRepository(c.pool),
			attempts: postgres.NewAttemptRepository(c.pool),
			sessions: postgres.NewSessionRepository(c.pool),
			resets:   postgres.NewResetTokenRepository(c.pool),
		}
	}

	if cfg.Session.Backend == config.SessionBackendRedis {
		c.redis, err = deps.RedisFactory(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			return nil, oops.Code("REDIS_CONNECT_FAILED").With("operation", "connect to redis").Wrap(err)
		}
		repos.sessions = redisstore.NewSessionRepository(c.redis, redisstore.DefaultPrefix, cfg.Session.AbsoluteTTL)
	}

	opts := []auth.Option{auth.WithLogger(logger)}
	var observeHash auth.HashObserver
	if metrics != nil {
		opts = append(opts, auth.WithRecorder(metrics))
		observeHash = metrics.ObserveHash
	}
	hasher := auth.NewBoundedHasher(auth.NewArgon2idHasher(), cfg.Hashing.MaxConcurrent, cfg.Hashing.Timeout, observeHash)

	mailer, err := deps.MailerFactory(cfg.Mail, logger)
	if err != nil {
		return nil, oops.Code("MAILER_INIT_FAILED").Wrap(err)
	}
	notifier, err := mail.NewResetNotifier(mailer, cfg.HTTP.BaseURL, logger)
	if err != nil {
		return nil, err
	}

	policy := auth.LockoutPolicy{Window: cfg.Lockout.Window, MaxAttempts: cfg.Lockout.MaxAttempts}
	if c.tracker, err = auth.NewLoginTracker(repos.attempts, policy, opts...); err != nil {
		return nil, err
	}
	if c.sessions, err = auth.NewSessionManager(repos.sessions, cfg.Session.AbsoluteTTL, cfg.Session.IdleTTL, opts...); err != nil {
		return nil, err
	}
	if c.auth, err = auth.NewAuthService(repos.users, hasher, c.tracker, c.sessions, opts...); err != nil {
		return nil, err
	}
	if c.accounts, err = auth.NewAccountService(repos.users, repos.resets, hasher, c.sessions, opts...); err != nil {
		return nil, err
	}
	resetCfg := auth.ResetConfig{TTL: cfg.Reset.TTL, InvalidatePrior: cfg.Reset.InvalidatePrior}
	if c.resets, err = auth.NewResetService(repos.users, repos.resets, hasher, notifier, resetCfg, opts...); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *components) services() web.Services {
	return web.Services{
		Auth:     c.auth,
		Accounts: c.accounts,
		Resets:   c.resets,
		Sessions: c.sessions,
		Tracker:  c.tracker,
	}
}

// readinessChecks probes the backends this process depends on.
func (c *components) readinessChecks() []observability.Check {
	var checks []observability.Check
	if c.pool != nil {
		checks = append(checks, observability.Check{Name: "postgres", Probe: c.pool.Ping})
	}
	if c.redis != nil {
		checks = append(checks, observability.Check{Name: "redis", Probe: func(ctx context.Context) error {
			return c.redis.Ping(ctx).Err()
		}})
	}
	return checks
}

// Close releases the backend connections.
func (c *components) Close() {
	if c.redis != nil {
		_ = c.redis.Close() //nolint:errcheck // best-effort on shutdown
	}
	if c.pool != nil {
		c.pool.Close()
	}
}
