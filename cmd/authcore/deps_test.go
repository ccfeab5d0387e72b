// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 AuthCore Contributors

package main

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/forumcore/authcore/internal/auth"
	"github.com/forumcore/authcore/internal/config"
	"github.com/forumcore/authcore/internal/mail"
	"github.com/forumcore/authcore/internal/observability"
	"github.com/forumcore/authcore/internal/store"
	"github.com/forumcore/authcore/pkg/errutil"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	isolateEnv(t)
	cfg, err := config.Load("", nil)
	require.NoError(t, err)
	cfg.Store.Driver = config.DriverMemory
	return cfg
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestBuildComponents_MemoryStore(t *testing.T) {
	cfg := testConfig(t)
	ctx := context.Background()
	metrics := observability.NewMetrics(prometheus.NewRegistry())

	comps, err := buildComponents(ctx, cfg, discardLogger(), metrics, ServeDeps{})
	require.NoError(t, err)
	t.Cleanup(comps.Close)

	assert.Nil(t, comps.pool)
	assert.Nil(t, comps.redis)
	assert.Empty(t, comps.readinessChecks())

	svc := comps.services()
	assert.NotNil(t, svc.Auth)
	assert.NotNil(t, svc.Accounts)
	assert.NotNil(t, svc.Resets)
	assert.NotNil(t, svc.Sessions)
	assert.NotNil(t, svc.Tracker)
	assert.Equal(t, cfg.Session.AbsoluteTTL, comps.sessions.AbsoluteTTL())
}

func TestBuildComponents_RedisSessions(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := testConfig(t)
	cfg.Session.Backend = config.SessionBackendRedis
	cfg.Redis.Addr = mr.Addr()
	ctx := context.Background()

	comps, err := buildComponents(ctx, cfg, discardLogger(), nil, ServeDeps{})
	require.NoError(t, err)
	t.Cleanup(comps.Close)
	require.NotNil(t, comps.redis)
	checks := comps.readinessChecks()
	require.Len(t, checks, 1)
	assert.Equal(t, "redis", checks[0].Name)
	require.NoError(t, checks[0].Probe(ctx))

	sid, err := auth.GenerateSessionID()
	require.NoError(t, err)
	_, err = comps.sessions.Issue(ctx, sid, "alice")
	require.NoError(t, err)
	assert.NotEmpty(t, mr.Keys())

	mr.Close()
	assert.Error(t, checks[0].Probe(ctx))
}

func TestBuildComponents_PostgresConnectFailure(t *testing.T) {
	cfg := testConfig(t)
	cfg.Store.Driver = config.DriverPostgres
	cfg.Database.URL = "postgres://localhost/authcore"

	var gotURL string
	var gotOpts store.ConnectOptions
	deps := ServeDeps{
		PoolFactory: func(_ context.Context, url string, opts store.ConnectOptions) (*pgxpool.Pool, error) {
			gotURL, gotOpts = url, opts
			return nil, errors.New("connection refused")
		},
	}

	_, err := buildComponents(context.Background(), cfg, discardLogger(), nil, deps)
	require.Error(t, err)
	errutil.AssertErrorCode(t, err, "DB_CONNECT_FAILED")
	assert.Equal(t, cfg.Database.URL, gotURL)
	assert.Equal(t, cfg.Database.ConnectAttempts, gotOpts.Attempts)
	assert.Equal(t, cfg.Database.ConnectBackoff, gotOpts.Backoff)
}

func TestBuildComponents_MailerFailure(t *testing.T) {
	cfg := testConfig(t)
	deps := ServeDeps{
		MailerFactory: func(config.MailConfig, *slog.Logger) (mail.Mailer, error) {
			return nil, errors.New("no relay")
		},
	}

	_, err := buildComponents(context.Background(), cfg, discardLogger(), nil, deps)
	require.Error(t, err)
	errutil.AssertErrorCode(t, err, "MAILER_INIT_FAILED")
}

func TestNewMailer(t *testing.T) {
	logMailer, err := newMailer(config.MailConfig{Driver: config.MailDriverLog}, discardLogger())
	require.NoError(t, err)
	assert.IsType(t, &mail.LogMailer{}, logMailer)

	smtpMailer, err := newMailer(config.MailConfig{
		Driver: config.MailDriverSMTP,
		Host:   "smtp.example.com",
		Port:   587,
		From:   "noreply@example.com",
	}, discardLogger())
	require.NoError(t, err)
	assert.IsType(t, &mail.SMTPMailer{}, smtpMailer)

	_, err = newMailer(config.MailConfig{Driver: config.MailDriverSMTP}, discardLogger())
	require.Error(t, err)
}
