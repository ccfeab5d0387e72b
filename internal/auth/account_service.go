// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 AuthCore Contributors

package auth

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/samber/oops"
	"github.com/sethvargo/go-retry"

	"github.com/forumcore/authcore/pkg/errutil"
)

// Session rename retry schedule.
const (
	renameSessionRetries = 3
	renameSessionBackoff = 50 * time.Millisecond
)

// Registration is the input to AccountService.Register.
type Registration struct {
	Username    string
	Password    string
	Email       string
	DisplayName string
}

// AccountService handles registration and profile changes. Each field is
// re-checked for uniqueness independently.
type AccountService struct {
	users    UserRepository
	resets   ResetTokenRepository
	hasher   PasswordHasher
	sessions *SessionManager
	opts     options
}

// NewAccountService creates an AccountService.
func NewAccountService(users UserRepository, resets ResetTokenRepository, hasher PasswordHasher, sessions *SessionManager, opts ...Option) (*AccountService, error) {
	if users == nil {
		return nil, oops.Errorf("users repository is required")
	}
	if resets == nil {
		return nil, oops.Errorf("reset token repository is required")
	}
	if hasher == nil {
		return nil, oops.Errorf("password hasher is required")
	}
	if sessions == nil {
		return nil, oops.Errorf("session manager is required")
	}
	return &AccountService{users: users, resets: resets, hasher: hasher, sessions: sessions, opts: buildOptions(opts)}, nil
}

func errTaken(field string) error {
	switch field {
	case "username":
		return validation().Code("ACCOUNT_USERNAME_TAKEN").With("field", field).Errorf("username is already taken")
	case "email":
		return validation().Code("ACCOUNT_EMAIL_TAKEN").With("field", field).Errorf("email is already registered")
	case "display_name":
		return validation().Code("ACCOUNT_DISPLAY_NAME_TAKEN").With("field", field).Errorf("display name is already taken")
	default:
		return validation().Code("ACCOUNT_CONFLICT").With("field", field).Errorf("%s is already taken", field)
	}
}

// conflictOr maps a raced uniqueness violation to the taken error.
func conflictOr(err error, code, operation string) error {
	var conflict *ConflictError
	if errors.As(err, &conflict) {
		return errTaken(conflict.Field)
	}
	return wrapStore(err, code, operation)
}

func (a *AccountService) ensureFree(ctx context.Context, field, value string, exists func(context.Context, string) (bool, error)) error {
	taken, err := exists(ctx, value)
	if err != nil {
		return wrapStore(err, "ACCOUNT_LOOKUP_FAILED", "check "+field)
	}
	if taken {
		return errTaken(field)
	}
	return nil
}

// Register validates, hashes and stores a new account.
func (a *AccountService) Register(ctx context.Context, reg Registration) (*User, error) {
	if err := ValidateUsername(reg.Username); err != nil {
		return nil, err
	}
	if err := ValidatePassword(reg.Password); err != nil {
		return nil, err
	}
	if err := ValidateEmail(reg.Email); err != nil {
		return nil, err
	}
	if err := ValidateDisplayName(reg.DisplayName, reg.Username); err != nil {
		return nil, err
	}

	if err := a.ensureFree(ctx, "username", reg.Username, a.users.UsernameExists); err != nil {
		return nil, err
	}
	if err := a.ensureFree(ctx, "email", reg.Email, a.users.EmailExists); err != nil {
		return nil, err
	}
	if err := a.ensureFree(ctx, "display_name", reg.DisplayName, a.users.DisplayNameExists); err != nil {
		return nil, err
	}

	digest, err := a.hasher.Hash(ctx, reg.Password)
	if err != nil {
		return nil, oops.Code("ACCOUNT_REGISTER_FAILED").With("operation", "hash password").Wrap(err)
	}

	user, err := NewUser(reg.Username, reg.Email, reg.DisplayName, digest, a.opts.now())
	if err != nil {
		return nil, err
	}
	if err := a.users.Create(ctx, user); err != nil {
		return nil, conflictOr(err, "ACCOUNT_REGISTER_FAILED", "create user")
	}

	a.opts.logger.InfoContext(ctx, "user registered",
		slog.String("user_id", user.ID.String()),
		slog.String("username", user.Username))
	return user, nil
}

func (a *AccountService) userByName(ctx context.Context, username string) (*User, error) {
	user, err := a.users.GetByUsername(ctx, username)
	if errors.Is(err, ErrNotFound) {
		return nil, rejected().Code("ACCOUNT_NOT_FOUND").With("username", username).Errorf("account not found")
	}
	if err != nil {
		return nil, wrapStore(err, "ACCOUNT_LOOKUP_FAILED", "get user by username")
	}
	return user, nil
}

// RenameUsername changes the username and then the owner of sessionID.
//
// The two steps are not atomic. If the user row is updated but the session
// rename still fails after retries, the returned error carries code
// ACCOUNT_RENAME_SESSION_STALE and the caller may repeat
// SessionManager.RenameOwner, which is idempotent.
func (a *AccountService) RenameUsername(ctx context.Context, sessionID, currentUsername, newUsername string) error {
	if newUsername == currentUsername {
		return nil
	}
	if err := ValidateUsername(newUsername); err != nil {
		return err
	}

	user, err := a.userByName(ctx, currentUsername)
	if err != nil {
		return err
	}
	if err := ValidateDisplayName(user.DisplayName, newUsername); err != nil {
		return err
	}
	if err := a.ensureFree(ctx, "username", newUsername, a.users.UsernameExists); err != nil {
		return err
	}
	if err := a.users.UpdateUsername(ctx, user.ID, newUsername); err != nil {
		return conflictOr(err, "ACCOUNT_RENAME_FAILED", "update username")
	}

	backoff := retry.WithMaxRetries(renameSessionRetries, retry.NewExponential(renameSessionBackoff))
	err = retry.Do(ctx, backoff, func(ctx context.Context) error {
		renameErr := a.sessions.RenameOwner(ctx, sessionID, newUsername)
		if IsStore(renameErr) {
			return retry.RetryableError(renameErr)
		}
		return renameErr
	})
	if err != nil {
		return storeErr().Code("ACCOUNT_RENAME_SESSION_STALE").
			With("user_id", user.ID.String()).
			With("username", newUsername).
			Errorf("username changed but session rename failed: %v", err)
	}

	a.opts.logger.InfoContext(ctx, "username changed",
		slog.String("user_id", user.ID.String()),
		slog.String("from", currentUsername),
		slog.String("to", newUsername))
	return nil
}

// UpdateEmail changes the email of username and revokes any reset tokens
// issued to the previous address.
func (a *AccountService) UpdateEmail(ctx context.Context, username, email string) error {
	if err := ValidateEmail(email); err != nil {
		return err
	}
	user, err := a.userByName(ctx, username)
	if err != nil {
		return err
	}
	if user.Email == email {
		return nil
	}
	if err := a.ensureFree(ctx, "email", email, a.users.EmailExists); err != nil {
		return err
	}
	if err := a.users.UpdateEmail(ctx, user.ID, email); err != nil {
		return conflictOr(err, "ACCOUNT_UPDATE_FAILED", "update email")
	}
	// Tokens mailed to the old address must not outlive it.
	if n, err := a.resets.DeleteByEmail(ctx, user.Email); err != nil {
		errutil.LogWarn(ctx, a.opts.logger, "best-effort reset token cleanup failed",
			oops.With("operation", "delete reset tokens").Wrap(err))
	} else if n > 0 {
		a.opts.logger.DebugContext(ctx, "revoked reset tokens for old email", slog.Int64("deleted", n))
	}
	return nil
}

// UpdateDisplayName changes the display name of username.
func (a *AccountService) UpdateDisplayName(ctx context.Context, username, displayName string) error {
	if err := ValidateDisplayName(displayName, username); err != nil {
		return err
	}
	user, err := a.userByName(ctx, username)
	if err != nil {
		return err
	}
	if user.DisplayName == displayName {
		return nil
	}
	if err := a.ensureFree(ctx, "display_name", displayName, a.users.DisplayNameExists); err != nil {
		return err
	}
	if err := a.users.UpdateDisplayName(ctx, user.ID, displayName); err != nil {
		return conflictOr(err, "ACCOUNT_UPDATE_FAILED", "update display name")
	}
	return nil
}

// UpdateNameColor changes the name colour of username.
func (a *AccountService) UpdateNameColor(ctx context.Context, username, color string) error {
	if err := ValidateNameColor(color); err != nil {
		return err
	}
	user, err := a.userByName(ctx, username)
	if err != nil {
		return err
	}
	if err := a.users.UpdateNameColor(ctx, user.ID, color); err != nil {
		return wrapStore(err, "ACCOUNT_UPDATE_FAILED", "update name color")
	}
	return nil
}

// Lookup returns the account for username.
func (a *AccountService) Lookup(ctx context.Context, username string) (*User, error) {
	return a.userByName(ctx, username)
}
