// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 AuthCore Contributors

package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/forumcore/authcore/internal/auth"
)

const userColumns = `id, username, password_hash, email, display_name, name_color, last_login, created_at, updated_at`

// UserRepository implements auth.UserRepository.
type UserRepository struct {
	db Querier
}

// NewUserRepository creates a UserRepository.
func NewUserRepository(db Querier) *UserRepository {
	return &UserRepository{db: db}
}

// Create inserts a user. Unique violations return *auth.ConflictError.
func (r *UserRepository) Create(ctx context.Context, user *auth.User) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO users (`+userColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`,
		user.ID.String(),
		user.Username,
		user.PasswordHash,
		user.Email,
		user.DisplayName,
		user.NameColor,
		user.LastLogin,
		user.CreatedAt,
		user.UpdatedAt,
	)
	if conflict := asConflict(err); conflict != nil {
		return oops.Code("USER_CONFLICT").
			With("username", user.Username).
			Wrap(conflict)
	}
	if err != nil {
		return oops.Code("USER_CREATE_FAILED").
			With("operation", "insert user").
			With("username", user.Username).
			Wrap(err)
	}
	return nil
}

func (r *UserRepository) getBy(ctx context.Context, column, value string) (*auth.User, error) {
	row := r.db.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE `+column+` = $1`, value)
	user, err := scanUser(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("USER_NOT_FOUND").With(column, value).Wrap(auth.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("USER_GET_FAILED").
			With("operation", "get user by "+column).
			Wrap(err)
	}
	return user, nil
}

// GetByID retrieves a user by ID.
func (r *UserRepository) GetByID(ctx context.Context, id ulid.ULID) (*auth.User, error) {
	return r.getBy(ctx, "id", id.String())
}

// GetByUsername retrieves a user by exact username.
func (r *UserRepository) GetByUsername(ctx context.Context, username string) (*auth.User, error) {
	return r.getBy(ctx, "username", username)
}

// GetByEmail retrieves a user by exact email.
func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*auth.User, error) {
	return r.getBy(ctx, "email", email)
}

func (r *UserRepository) exists(ctx context.Context, column, value string) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM users WHERE `+column+` = $1)`, value).Scan(&exists)
	if err != nil {
		return false, oops.Code("USER_EXISTS_FAILED").
			With("operation", "check "+column).
			Wrap(err)
	}
	return exists, nil
}

// UsernameExists reports whether username is taken.
func (r *UserRepository) UsernameExists(ctx context.Context, username string) (bool, error) {
	return r.exists(ctx, "username", username)
}

// EmailExists reports whether email is registered.
func (r *UserRepository) EmailExists(ctx context.Context, email string) (bool, error) {
	return r.exists(ctx, "email", email)
}

// DisplayNameExists reports whether displayName is taken.
func (r *UserRepository) DisplayNameExists(ctx context.Context, displayName string) (bool, error) {
	return r.exists(ctx, "display_name", displayName)
}

// update sets one column and bumps updated_at. column is never user input.
func (r *UserRepository) update(ctx context.Context, id ulid.ULID, column string, value any) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE users SET `+column+` = $2, updated_at = now() WHERE id = $1`,
		id.String(), value)
	if conflict := asConflict(err); conflict != nil {
		return oops.Code("USER_CONFLICT").With("id", id.String()).Wrap(conflict)
	}
	if err != nil {
		return oops.Code("USER_UPDATE_FAILED").
			With("operation", "update "+column).
			With("id", id.String()).
			Wrap(err)
	}
	if tag.RowsAffected() == 0 {
		return oops.Code("USER_NOT_FOUND").With("id", id.String()).Wrap(auth.ErrNotFound)
	}
	return nil
}

// UpdateUsername changes the username.
func (r *UserRepository) UpdateUsername(ctx context.Context, id ulid.ULID, username string) error {
	return r.update(ctx, id, "username", username)
}

// UpdateEmail changes the email.
func (r *UserRepository) UpdateEmail(ctx context.Context, id ulid.ULID, email string) error {
	return r.update(ctx, id, "email", email)
}

// UpdateDisplayName changes the display name.
func (r *UserRepository) UpdateDisplayName(ctx context.Context, id ulid.ULID, displayName string) error {
	return r.update(ctx, id, "display_name", displayName)
}

// UpdateNameColor changes the name colour.
func (r *UserRepository) UpdateNameColor(ctx context.Context, id ulid.ULID, color string) error {
	return r.update(ctx, id, "name_color", color)
}

// UpdatePassword replaces the password hash.
func (r *UserRepository) UpdatePassword(ctx context.Context, id ulid.ULID, passwordHash string) error {
	return r.update(ctx, id, "password_hash", passwordHash)
}

// UpdateLastLogin records the last successful login.
func (r *UserRepository) UpdateLastLogin(ctx context.Context, id ulid.ULID, at time.Time) error {
	return r.update(ctx, id, "last_login", at)
}

// scanUser scans one row. pgx.ErrNoRows is returned unwrapped.
func scanUser(row pgx.Row) (*auth.User, error) {
	var (
		idStr string
		u     auth.User
	)
	err := row.Scan(
		&idStr,
		&u.Username,
		&u.PasswordHash,
		&u.Email,
		&u.DisplayName,
		&u.NameColor,
		&u.LastLogin,
		&u.CreatedAt,
		&u.UpdatedAt,
	)
	if err != nil {
		return nil, err //nolint:wrapcheck // callers wrap with lookup context
	}

	u.ID, err = ulid.Parse(idStr)
	if err != nil {
		return nil, oops.Code("USER_INVALID_ID").
			With("operation", "parse user id").
			With("id", idStr).
			Wrap(err)
	}
	return &u, nil
}

var _ auth.UserRepository = (*UserRepository)(nil)
