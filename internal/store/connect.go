// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 AuthCore Contributors

// Package store owns the Postgres connection and the auth schema.
package store

import (
	"context"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/samber/oops"
	"github.com/sethvargo/go-retry"
)

// Connection defaults.
const (
	DefaultConnectAttempts = 5
	DefaultConnectBackoff  = 500 * time.Millisecond
)

// ConnectOptions tunes Connect. Zero values select the defaults.
type ConnectOptions struct {
	Attempts int
	Backoff  time.Duration
	Logger   *slog.Logger
}

// Connect opens a pool for databaseURL and pings it, retrying with
// exponential backoff while the database comes up.
func Connect(ctx context.Context, databaseURL string, opts ConnectOptions) (*pgxpool.Pool, error) {
	if databaseURL == "" {
		return nil, oops.Code("DB_URL_MISSING").Errorf("database url is required")
	}
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, oops.Code("DB_URL_INVALID").With("operation", "parse database url").Wrap(err)
	}

	attempts := opts.Attempts
	if attempts <= 0 {
		attempts = DefaultConnectAttempts
	}
	backoff := opts.Backoff
	if backoff <= 0 {
		backoff = DefaultConnectBackoff
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	var pool *pgxpool.Pool
	try := 0
	b := retry.WithMaxRetries(uint64(attempts-1), retry.NewExponential(backoff)) //nolint:gosec // attempts > 0
	err = retry.Do(ctx, b, func(ctx context.Context) error {
		try++
		p, err := pgxpool.NewWithConfig(ctx, cfg)
		if err != nil {
			return retry.RetryableError(err)
		}
		if err := p.Ping(ctx); err != nil {
			p.Close()
			logger.WarnContext(ctx, "database not ready",
				slog.Int("attempt", try),
				slog.Int("max_attempts", attempts),
				slog.Any("error", err))
			return retry.RetryableError(err)
		}
		pool = p
		return nil
	})
	if err != nil {
		return nil, oops.Code("DB_CONNECT_FAILED").
			With("operation", "connect to database").
			With("attempts", try).
			Wrap(err)
	}
	return pool, nil
}
