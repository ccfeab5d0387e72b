// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 AuthCore Contributors

//go:build integration

package postgres_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/forumcore/authcore/internal/auth"
	"github.com/forumcore/authcore/internal/auth/postgres"
	"github.com/forumcore/authcore/pkg/errutil"
)

func truncate(t *testing.T) {
	t.Helper()
	_, err := testPool.Exec(context.Background(),
		`TRUNCATE users, login_attempts, sessions, password_resets`)
	require.NoError(t, err)
}

func TestUserRepository_Integration(t *testing.T) {
	truncate(t)
	ctx := context.Background()
	repo := postgres.NewUserRepository(testPool)
	now := time.Now().UTC().Truncate(time.Microsecond)

	alice, err := auth.NewUser("alice", "alice@example.com", "Alice L", "hash-a", now)
	require.NoError(t, err)
	require.NoError(t, repo.Create(ctx, alice))

	t.Run("lookups", func(t *testing.T) {
		byID, err := repo.GetByID(ctx, alice.ID)
		require.NoError(t, err)
		assert.Equal(t, "alice", byID.Username)

		byEmail, err := repo.GetByEmail(ctx, "alice@example.com")
		require.NoError(t, err)
		assert.Equal(t, alice.ID, byEmail.ID)
		assert.Nil(t, byEmail.LastLogin)

		taken, err := repo.DisplayNameExists(ctx, "Alice L")
		require.NoError(t, err)
		assert.True(t, taken)
	})

	t.Run("each unique field conflicts", func(t *testing.T) {
		tests := []struct {
			field string
			user  func() *auth.User
		}{
			{"username", func() *auth.User {
				u, _ := auth.NewUser("alice", "other@example.com", "Other", "h", now)
				return u
			}},
			{"email", func() *auth.User {
				u, _ := auth.NewUser("bob", "alice@example.com", "Bob B", "h", now)
				return u
			}},
			{"display_name", func() *auth.User {
				u, _ := auth.NewUser("carol", "carol@example.com", "Alice L", "h", now)
				return u
			}},
		}
		for _, tt := range tests {
			t.Run(tt.field, func(t *testing.T) {
				err := repo.Create(ctx, tt.user())
				var conflict *auth.ConflictError
				require.ErrorAs(t, err, &conflict)
				assert.Equal(t, tt.field, conflict.Field)
			})
		}
	})

	t.Run("updates", func(t *testing.T) {
		require.NoError(t, repo.UpdateUsername(ctx, alice.ID, "alicia"))
		require.NoError(t, repo.UpdateNameColor(ctx, alice.ID, "#123456"))
		require.NoError(t, repo.UpdateLastLogin(ctx, alice.ID, now))

		got, err := repo.GetByUsername(ctx, "alicia")
		require.NoError(t, err)
		assert.Equal(t, "#123456", got.NameColor)
		require.NotNil(t, got.LastLogin)
		assert.True(t, got.LastLogin.Equal(now))

		_, err = repo.GetByUsername(ctx, "alice")
		assert.ErrorIs(t, err, auth.ErrNotFound)
	})
}

func TestAttemptRepository_Integration(t *testing.T) {
	truncate(t)
	ctx := context.Background()
	repo := postgres.NewAttemptRepository(testPool)
	base := time.Now().UTC().Truncate(time.Microsecond)

	record := func(ip, user string, success bool, at time.Time) {
		require.NoError(t, repo.Append(ctx, &auth.LoginAttempt{IP: ip, Username: user, Success: success, AttemptedAt: at}))
	}
	record("10.0.0.1", "alice", false, base)
	record("10.0.0.1", "alice", false, base.Add(time.Minute))
	record("10.0.0.1", "alice", true, base.Add(2*time.Minute))
	record("10.0.0.2", "alice", false, base.Add(time.Minute))
	record("10.0.0.1", "bob", false, base.Add(time.Minute))

	agg, err := repo.CountFailures(ctx, "10.0.0.1", "alice", base, base.Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 2, agg.Failures)
	assert.True(t, agg.LastFailure.Equal(base.Add(time.Minute)))

	agg, err = repo.CountFailures(ctx, "10.0.0.9", "alice", base, base.Add(time.Hour))
	require.NoError(t, err)
	assert.Zero(t, agg.Failures)
	assert.True(t, agg.LastFailure.IsZero())

	n, err := repo.DeleteBefore(ctx, base.Add(30*time.Second))
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestServices_Integration(t *testing.T) {
	truncate(t)
	ctx := context.Background()

	users := postgres.NewUserRepository(testPool)
	hasher := auth.NewArgon2idHasherWithParams(auth.Argon2Params{Memory: 1024, Time: 1, Threads: 1, SaltLen: 16, KeyLen: 32})
	manager, err := auth.NewSessionManager(postgres.NewSessionRepository(testPool), 0, 0)
	require.NoError(t, err)
	tracker, err := auth.NewLoginTracker(postgres.NewAttemptRepository(testPool), auth.DefaultLockoutPolicy())
	require.NoError(t, err)
	service, err := auth.NewAuthService(users, hasher, tracker, manager)
	require.NoError(t, err)
	accounts, err := auth.NewAccountService(users, postgres.NewResetTokenRepository(testPool), hasher, manager)
	require.NoError(t, err)

	_, err = accounts.Register(ctx, auth.Registration{
		Username: "alice", Password: "Correct#Horse1", Email: "alice@example.com", DisplayName: "Alice L",
	})
	require.NoError(t, err)

	for range auth.DefaultMaxAttempts {
		_, err := service.Login(ctx, auth.LoginRequest{
			IP: "10.0.0.1", SessionID: "browser-1", Username: "alice", Password: "nope",
		})
		errutil.AssertErrorCode(t, err, "AUTH_INVALID_CREDENTIALS")
	}
	_, err = service.Login(ctx, auth.LoginRequest{
		IP: "10.0.0.1", SessionID: "browser-1", Username: "alice", Password: "Correct#Horse1",
	})
	errutil.AssertErrorCode(t, err, "AUTH_LOCKED_OUT")

	result, err := service.Login(ctx, auth.LoginRequest{
		IP: "10.0.0.2", SessionID: "browser-2", Username: "alice", Password: "Correct#Horse1",
	})
	require.NoError(t, err)
	assert.Equal(t, "alice", result.Session.Username)

	require.NoError(t, accounts.RenameUsername(ctx, "browser-2", "alice", "alicia"))
	session, err := manager.Resolve(ctx, "browser-2")
	require.NoError(t, err)
	assert.Equal(t, "alicia", session.Username)

	require.NoError(t, service.Logout(ctx, "browser-2"))
	require.NoError(t, service.Logout(ctx, "browser-2"))
}

func TestResetTokenRepository_Integration(t *testing.T) {
	truncate(t)
	ctx := context.Background()
	repo := postgres.NewResetTokenRepository(testPool)
	now := time.Now().UTC().Truncate(time.Microsecond)

	_, live, err := auth.GenerateResetToken()
	require.NoError(t, err)
	_, stale, err := auth.GenerateResetToken()
	require.NoError(t, err)

	require.NoError(t, repo.Create(ctx, &auth.ResetToken{TokenHash: live, Email: "a@example.com", ExpiresAt: now.Add(time.Hour), CreatedAt: now}))
	require.NoError(t, repo.Create(ctx, &auth.ResetToken{TokenHash: stale, Email: "a@example.com", ExpiresAt: now.Add(-time.Minute), CreatedAt: now}))

	n, err := repo.DeleteExpired(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	got, err := repo.GetByHash(ctx, live)
	require.NoError(t, err)
	assert.Equal(t, "a@example.com", got.Email)

	require.NoError(t, repo.Delete(ctx, live))
	assert.ErrorIs(t, repo.Delete(ctx, live), auth.ErrNotFound)
}
