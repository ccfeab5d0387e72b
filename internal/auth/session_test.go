// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 AuthCore Contributors

package auth_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/forumcore/authcore/internal/auth"
	"github.com/forumcore/authcore/internal/auth/memstore"
	"github.com/forumcore/authcore/pkg/errutil"
)

// brokenSessions fails selected session operations.
type brokenSessions struct {
	*memstore.SessionRepository
	upsertErr error
	touchErr  error
	renameErr error
	renames   int
}

func (b *brokenSessions) Upsert(ctx context.Context, s *auth.Session) error {
	if b.upsertErr != nil {
		return b.upsertErr
	}
	return b.SessionRepository.Upsert(ctx, s)
}

func (b *brokenSessions) Touch(ctx context.Context, key string, at time.Time) error {
	if b.touchErr != nil {
		return b.touchErr
	}
	return b.SessionRepository.Touch(ctx, key, at)
}

func (b *brokenSessions) UpdateUsername(ctx context.Context, key, username string) error {
	b.renames++
	if b.renameErr != nil {
		return b.renameErr
	}
	return b.SessionRepository.UpdateUsername(ctx, key, username)
}

func TestGenerateSessionID(t *testing.T) {
	a, err := auth.GenerateSessionID()
	require.NoError(t, err)
	b, err := auth.GenerateSessionID()
	require.NoError(t, err)

	assert.Len(t, a, auth.SessionIDBytes*2)
	assert.NotEqual(t, a, b)
}

func TestSessionKey(t *testing.T) {
	key := auth.SessionKey("browser-1")
	assert.Len(t, key, 64)
	assert.Equal(t, key, auth.SessionKey("browser-1"))
	assert.NotEqual(t, key, auth.SessionKey("browser-2"))
	assert.NotContains(t, key, "browser")
}

func TestSessionManager_IssueIsUpsert(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	first, err := f.manager.Issue(ctx, "browser-1", "alice")
	require.NoError(t, err)
	f.clock.Advance(time.Minute)
	second, err := f.manager.Issue(ctx, "browser-1", "bob")
	require.NoError(t, err)
	assert.Equal(t, first.Key, second.Key)

	session, err := f.manager.Resolve(ctx, "browser-1")
	require.NoError(t, err)
	assert.Equal(t, "bob", session.Username)
	assert.True(t, session.CreatedAt.Equal(second.CreatedAt))
}

func TestSessionManager_IssueValidation(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	tests := []struct {
		name string
		id   string
		code string
	}{
		{"empty", "", "SESSION_ID_EMPTY"},
		{"too long", strings.Repeat("x", 513), "SESSION_ID_INVALID"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.manager.Issue(ctx, tt.id, "alice")
			require.Error(t, err)
			assert.True(t, auth.IsValidation(err))
			errutil.AssertErrorCode(t, err, tt.code)
		})
	}
}

func TestSessionManager_IssueStoreFailure(t *testing.T) {
	store := memstore.New()
	f := newFixture(t, withSessions(&brokenSessions{
		SessionRepository: store.Sessions(),
		upsertErr:         errors.New("connection refused"),
	}))

	_, err := f.manager.Issue(context.Background(), "browser-1", "alice")
	require.Error(t, err)
	assert.True(t, auth.IsStore(err))
	errutil.AssertErrorCode(t, err, "SESSION_ISSUE_FAILED")
}

func TestSessionManager_RevokeAbsentIsNoop(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	require.NoError(t, f.manager.Revoke(ctx, "never-issued"))
	require.NoError(t, f.manager.Revoke(ctx, ""))

	_, err := f.manager.Issue(ctx, "browser-1", "alice")
	require.NoError(t, err)
	require.NoError(t, f.manager.Revoke(ctx, "browser-1"))
	require.NoError(t, f.manager.Revoke(ctx, "browser-1"))

	_, err = f.manager.Resolve(ctx, "browser-1")
	require.Error(t, err)
	errutil.AssertErrorCode(t, err, "SESSION_INVALID")
}

func TestSessionManager_RenameOwner(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	_, err := f.manager.Issue(ctx, "browser-1", "alice")
	require.NoError(t, err)
	_, err = f.manager.Issue(ctx, "browser-2", "alice")
	require.NoError(t, err)

	require.NoError(t, f.manager.RenameOwner(ctx, "browser-1", "alicia"))
	// Idempotent.
	require.NoError(t, f.manager.RenameOwner(ctx, "browser-1", "alicia"))

	renamed, err := f.manager.Resolve(ctx, "browser-1")
	require.NoError(t, err)
	assert.Equal(t, "alicia", renamed.Username)

	// Only the named session is rewritten.
	other, err := f.manager.Resolve(ctx, "browser-2")
	require.NoError(t, err)
	assert.Equal(t, "alice", other.Username)

	require.NoError(t, f.manager.RenameOwner(ctx, "never-issued", "alicia"))
}

func TestSessionManager_ResolveUnknown(t *testing.T) {
	f := newFixture(t)
	for _, id := range []string{"", "never-issued"} {
		_, err := f.manager.Resolve(context.Background(), id)
		require.Error(t, err)
		assert.True(t, auth.IsRejected(err))
		errutil.AssertErrorCode(t, err, "SESSION_INVALID")
	}
}

func TestSessionManager_IdleTimeout(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	_, err := f.manager.Issue(ctx, "browser-1", "alice")
	require.NoError(t, err)

	// Activity keeps the session alive past the idle timeout.
	for range 3 {
		f.clock.Advance(auth.DefaultSessionIdleTTL - time.Minute)
		_, err := f.manager.Resolve(ctx, "browser-1")
		require.NoError(t, err)
	}

	f.clock.Advance(auth.DefaultSessionIdleTTL + time.Second)
	_, err = f.manager.Resolve(ctx, "browser-1")
	require.Error(t, err)
	errutil.AssertErrorCode(t, err, "SESSION_EXPIRED")

	// Expired sessions are removed on resolve.
	_, err = f.sessions.Get(ctx, auth.SessionKey("browser-1"))
	assert.ErrorIs(t, err, auth.ErrNotFound)
}

func TestSessionManager_AbsoluteTimeout(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	_, err := f.manager.Issue(ctx, "browser-1", "alice")
	require.NoError(t, err)

	// Hourly activity never trips the idle timeout.
	for hour := 1; hour <= 24; hour++ {
		f.clock.Advance(time.Hour)
		_, err = f.manager.Resolve(ctx, "browser-1")
		require.NoError(t, err, "hour %d", hour)
	}

	f.clock.Advance(time.Second)
	_, err = f.manager.Resolve(ctx, "browser-1")
	require.Error(t, err)
	errutil.AssertErrorCode(t, err, "SESSION_EXPIRED")
}

func TestSessionManager_TouchFailureIsBestEffort(t *testing.T) {
	ctx := context.Background()
	store := memstore.New()
	sessions := &brokenSessions{SessionRepository: store.Sessions()}
	f := newFixture(t, withSessions(sessions))

	_, err := f.manager.Issue(ctx, "browser-1", "alice")
	require.NoError(t, err)
	sessions.touchErr = errors.New("timeout")

	session, err := f.manager.Resolve(ctx, "browser-1")
	require.NoError(t, err)
	assert.Equal(t, "alice", session.Username)
	assert.NotNil(t, f.logs.find(t, "WARN", "best-effort session touch failed"))
}

func TestSessionManager_SweepExpired(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	_, err := f.manager.Issue(ctx, "stale", "alice")
	require.NoError(t, err)
	f.clock.Advance(auth.DefaultSessionIdleTTL)
	_, err = f.manager.Issue(ctx, "fresh", "bob")
	require.NoError(t, err)
	f.clock.Advance(time.Minute)

	n, err := f.manager.SweepExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	_, err = f.manager.Resolve(ctx, "fresh")
	require.NoError(t, err)
	_, err = f.sessions.Get(ctx, auth.SessionKey("stale"))
	assert.ErrorIs(t, err, auth.ErrNotFound)
}

func TestNewSessionManager_Defaults(t *testing.T) {
	_, err := auth.NewSessionManager(nil, 0, 0)
	require.Error(t, err)

	m, err := auth.NewSessionManager(memstore.New().Sessions(), 0, 0)
	require.NoError(t, err)
	assert.Equal(t, auth.DefaultSessionAbsoluteTTL, m.AbsoluteTTL())
}
