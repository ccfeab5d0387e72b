// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 AuthCore Contributors

package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/samber/oops"

	"github.com/forumcore/authcore/internal/auth"
)

// ResetTokenRepository implements auth.ResetTokenRepository over password_resets.
type ResetTokenRepository struct {
	db Querier
}

// NewResetTokenRepository creates a ResetTokenRepository.
func NewResetTokenRepository(db Querier) *ResetTokenRepository {
	return &ResetTokenRepository{db: db}
}

// Create stores a token record.
func (r *ResetTokenRepository) Create(ctx context.Context, token *auth.ResetToken) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO password_resets (token_hash, email, expires_at, created_at)
		VALUES ($1, $2, $3, $4)
	`, token.TokenHash, token.Email, token.ExpiresAt, token.CreatedAt)
	if err != nil {
		return oops.Code("RESET_CREATE_FAILED").
			With("operation", "insert password reset").
			Wrap(err)
	}
	return nil
}

// GetByHash retrieves a token record by the hash of its plaintext.
func (r *ResetTokenRepository) GetByHash(ctx context.Context, tokenHash string) (*auth.ResetToken, error) {
	t := auth.ResetToken{TokenHash: tokenHash}
	err := r.db.QueryRow(ctx, `
		SELECT email, expires_at, created_at
		FROM password_resets
		WHERE token_hash = $1
	`, tokenHash).Scan(&t.Email, &t.ExpiresAt, &t.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("RESET_NOT_FOUND").Wrap(auth.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("RESET_GET_FAILED").
			With("operation", "get password reset").
			Wrap(err)
	}
	return &t, nil
}

// Delete removes the record for tokenHash. Returns auth.ErrNotFound when
// no row matched so consumption is observed at most once.
func (r *ResetTokenRepository) Delete(ctx context.Context, tokenHash string) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM password_resets WHERE token_hash = $1`, tokenHash)
	if err != nil {
		return oops.Code("RESET_DELETE_FAILED").
			With("operation", "delete password reset").
			Wrap(err)
	}
	if tag.RowsAffected() == 0 {
		return oops.Code("RESET_NOT_FOUND").Wrap(auth.ErrNotFound)
	}
	return nil
}

// DeleteByEmail removes every record for email.
func (r *ResetTokenRepository) DeleteByEmail(ctx context.Context, email string) (int64, error) {
	tag, err := r.db.Exec(ctx, `DELETE FROM password_resets WHERE email = $1`, email)
	if err != nil {
		return 0, oops.Code("RESET_DELETE_FAILED").
			With("operation", "delete password resets by email").
			Wrap(err)
	}
	return tag.RowsAffected(), nil
}

// DeleteExpired removes records with expires_at < now.
func (r *ResetTokenRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	tag, err := r.db.Exec(ctx, `DELETE FROM password_resets WHERE expires_at < $1`, now)
	if err != nil {
		return 0, oops.Code("RESET_SWEEP_FAILED").
			With("operation", "delete expired password resets").
			Wrap(err)
	}
	return tag.RowsAffected(), nil
}

var _ auth.ResetTokenRepository = (*ResetTokenRepository)(nil)
