// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 AuthCore Contributors

package auth_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/forumcore/authcore/internal/auth"
	"github.com/forumcore/authcore/internal/auth/memstore"
	"github.com/forumcore/authcore/pkg/errutil"
)

// racingUsers reports every field as free so that Create hits the
// repository's own uniqueness check.
type racingUsers struct {
	*memstore.UserRepository
}

func (racingUsers) UsernameExists(context.Context, string) (bool, error)    { return false, nil }
func (racingUsers) EmailExists(context.Context, string) (bool, error)       { return false, nil }
func (racingUsers) DisplayNameExists(context.Context, string) (bool, error) { return false, nil }

func TestRegister(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	user := f.register(t, "alice", "alice@example.com")
	assert.NotEqual(t, goodPassword, user.PasswordHash)

	ok, err := f.hasher.Verify(ctx, goodPassword, user.PasswordHash)
	require.NoError(t, err)
	assert.True(t, ok)

	stored, err := f.users.GetByUsername(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, user.ID, stored.ID)
	assert.Equal(t, auth.DefaultNameColor, stored.NameColor)
}

func TestRegister_Validation(t *testing.T) {
	f := newFixture(t)
	valid := auth.Registration{
		Username: "alice", Password: goodPassword, Email: "alice@example.com", DisplayName: "Alice L",
	}
	tests := []struct {
		name   string
		mutate func(*auth.Registration)
		code   string
	}{
		{"username", func(r *auth.Registration) { r.Username = "a!" }, "AUTH_INVALID_USERNAME"},
		{"password", func(r *auth.Registration) { r.Password = "short" }, "AUTH_WEAK_PASSWORD"},
		{"email", func(r *auth.Registration) { r.Email = "nope" }, "AUTH_INVALID_EMAIL"},
		{"display name", func(r *auth.Registration) { r.DisplayName = "alice" }, "AUTH_INVALID_DISPLAY_NAME"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reg := valid
			tt.mutate(&reg)
			_, err := f.accounts.Register(context.Background(), reg)
			require.Error(t, err)
			assert.True(t, auth.IsValidation(err))
			errutil.AssertErrorCode(t, err, tt.code)
		})
	}
}

func TestRegister_Taken(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.register(t, "alice", "alice@example.com")

	tests := []struct {
		name string
		reg  auth.Registration
		code string
	}{
		{"username", auth.Registration{Username: "alice", Email: "other@example.com", DisplayName: "Other"}, "ACCOUNT_USERNAME_TAKEN"},
		{"email", auth.Registration{Username: "bob", Email: "alice@example.com", DisplayName: "Bob B"}, "ACCOUNT_EMAIL_TAKEN"},
		{"display name", auth.Registration{Username: "bob", Email: "bob@example.com", DisplayName: "The alice"}, "ACCOUNT_DISPLAY_NAME_TAKEN"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.reg.Password = goodPassword
			_, err := f.accounts.Register(ctx, tt.reg)
			require.Error(t, err)
			assert.True(t, auth.IsValidation(err))
			errutil.AssertErrorCode(t, err, tt.code)
		})
	}
}

func TestRegister_RacedConflict(t *testing.T) {
	ctx := context.Background()
	store := memstore.New()
	f := newFixture(t, withUsers(racingUsers{store.Users()}))
	f.register(t, "alice", "alice@example.com")

	_, err := f.accounts.Register(ctx, auth.Registration{
		Username: "bob", Password: goodPassword, Email: "alice@example.com", DisplayName: "Bob B",
	})
	require.Error(t, err)
	errutil.AssertErrorCode(t, err, "ACCOUNT_EMAIL_TAKEN")
}

func TestRenameUsername_PropagatesToSession(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.register(t, "alice", "alice@example.com")

	_, err := f.manager.Issue(ctx, "browser-1", "alice")
	require.NoError(t, err)

	require.NoError(t, f.accounts.RenameUsername(ctx, "browser-1", "alice", "alicia"))

	session, err := f.manager.Resolve(ctx, "browser-1")
	require.NoError(t, err)
	assert.Equal(t, "alicia", session.Username)

	_, err = f.users.GetByUsername(ctx, "alice")
	assert.ErrorIs(t, err, auth.ErrNotFound)
	_, err = f.service.Authenticate(ctx, "10.0.0.1", "alicia", goodPassword)
	require.NoError(t, err)
}

func TestRenameUsername_Unchanged(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.accounts.RenameUsername(context.Background(), "browser-1", "ghost", "ghost"))
}

func TestRenameUsername_Rejections(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.register(t, "alice", "alice@example.com")
	f.register(t, "bob", "bob@example.com")
	_, err := f.accounts.Register(ctx, auth.Registration{
		Username: "carol", Password: goodPassword, Email: "carol@example.com", DisplayName: "carol_x",
	})
	require.NoError(t, err)

	tests := []struct {
		name    string
		current string
		next    string
		code    string
	}{
		{"taken", "alice", "bob", "ACCOUNT_USERNAME_TAKEN"},
		{"invalid", "alice", "no spaces", "AUTH_INVALID_USERNAME"},
		{"unknown account", "ghost", "ghost2", "ACCOUNT_NOT_FOUND"},
		{"collides with display name", "carol", "carol_x", "AUTH_INVALID_DISPLAY_NAME"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := f.accounts.RenameUsername(ctx, "browser-1", tt.current, tt.next)
			require.Error(t, err)
			errutil.AssertErrorCode(t, err, tt.code)
		})
	}
}

func TestRenameUsername_SessionStaleAfterRetries(t *testing.T) {
	ctx := context.Background()
	store := memstore.New()
	sessions := &brokenSessions{SessionRepository: store.Sessions()}
	f := newFixture(t, withSessions(sessions))
	f.register(t, "alice", "alice@example.com")

	_, err := f.manager.Issue(ctx, "browser-1", "alice")
	require.NoError(t, err)
	sessions.renameErr = errors.New("connection reset")

	err = f.accounts.RenameUsername(ctx, "browser-1", "alice", "alicia")
	require.Error(t, err)
	assert.True(t, auth.IsStore(err))
	errutil.AssertErrorCode(t, err, "ACCOUNT_RENAME_SESSION_STALE")
	assert.Equal(t, 4, sessions.renames)

	// The user row already moved; the caller can repair the session.
	_, err = f.users.GetByUsername(ctx, "alicia")
	require.NoError(t, err)

	sessions.renameErr = nil
	require.NoError(t, f.manager.RenameOwner(ctx, "browser-1", "alicia"))
	session, err := f.manager.Resolve(ctx, "browser-1")
	require.NoError(t, err)
	assert.Equal(t, "alicia", session.Username)
}

func TestUpdateProfile(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.register(t, "alice", "alice@example.com")
	f.register(t, "bob", "bob@example.com")

	t.Run("email", func(t *testing.T) {
		require.NoError(t, f.accounts.UpdateEmail(ctx, "alice", "alice@example.com"))
		require.NoError(t, f.accounts.UpdateEmail(ctx, "alice", "alice@new.example.com"))
		errutil.AssertErrorCode(t, f.accounts.UpdateEmail(ctx, "alice", "bob@example.com"), "ACCOUNT_EMAIL_TAKEN")
		errutil.AssertErrorCode(t, f.accounts.UpdateEmail(ctx, "alice", "bad"), "AUTH_INVALID_EMAIL")
	})

	t.Run("display name", func(t *testing.T) {
		require.NoError(t, f.accounts.UpdateDisplayName(ctx, "alice", "The alice"))
		require.NoError(t, f.accounts.UpdateDisplayName(ctx, "alice", "Alice L"))
		errutil.AssertErrorCode(t, f.accounts.UpdateDisplayName(ctx, "alice", "The bob"), "ACCOUNT_DISPLAY_NAME_TAKEN")
		errutil.AssertErrorCode(t, f.accounts.UpdateDisplayName(ctx, "alice", "alice"), "AUTH_INVALID_DISPLAY_NAME")
	})

	t.Run("name color", func(t *testing.T) {
		require.NoError(t, f.accounts.UpdateNameColor(ctx, "alice", "#ff8800"))
		errutil.AssertErrorCode(t, f.accounts.UpdateNameColor(ctx, "alice", "orange"), "AUTH_INVALID_NAME_COLOR")
	})

	t.Run("unknown account", func(t *testing.T) {
		err := f.accounts.UpdateNameColor(ctx, "ghost", "#ff8800")
		assert.True(t, auth.IsRejected(err))
		errutil.AssertErrorCode(t, err, "ACCOUNT_NOT_FOUND")
	})

	user, err := f.accounts.Lookup(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, "alice@new.example.com", user.Email)
	assert.Equal(t, "Alice L", user.DisplayName)
	assert.Equal(t, "#ff8800", user.NameColor)
}

func TestUpdateEmail_RevokesResetTokensForOldAddress(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.register(t, "alice", "alice@example.com")
	token := f.requestToken(t, "alice@example.com")

	require.NoError(t, f.accounts.UpdateEmail(ctx, "alice", "alice@new.example.com"))

	_, err := f.reset.Validate(ctx, "alice@example.com", token)
	errutil.AssertErrorCode(t, err, "RESET_TOKEN_NOT_FOUND")
	_, err = f.reset.Validate(ctx, "alice@new.example.com", token)
	errutil.AssertErrorCode(t, err, "RESET_TOKEN_NOT_FOUND")

	t.Run("fresh token for the new address works", func(t *testing.T) {
		token := f.requestToken(t, "alice@new.example.com")
		email, err := f.reset.Validate(ctx, "alice@new.example.com", token)
		require.NoError(t, err)
		assert.Equal(t, "alice@new.example.com", email)
	})
}

func TestUpdateEmail_TokenCleanupFailureIsTolerated(t *testing.T) {
	ctx := context.Background()
	store := memstore.New()
	resets := &brokenResets{ResetTokenRepository: store.Resets(), deleteByEmailErr: errors.New("connection reset")}
	f := newFixture(t, withResets(resets))
	f.register(t, "alice", "alice@example.com")

	require.NoError(t, f.accounts.UpdateEmail(ctx, "alice", "alice@new.example.com"))

	user, err := f.accounts.Lookup(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, "alice@new.example.com", user.Email)
	assert.NotNil(t, f.logs.find(t, "WARN", "best-effort reset token cleanup failed"))
}
