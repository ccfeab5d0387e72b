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

// SessionRepository implements auth.SessionRepository over the sessions table.
type SessionRepository struct {
	db Querier
}

// NewSessionRepository creates a SessionRepository.
func NewSessionRepository(db Querier) *SessionRepository {
	return &SessionRepository{db: db}
}

// Upsert inserts the session or replaces the row with the same key.
func (r *SessionRepository) Upsert(ctx context.Context, session *auth.Session) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO sessions (session_key, username, created_at, last_seen_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (session_key) DO UPDATE SET
			username = EXCLUDED.username,
			created_at = EXCLUDED.created_at,
			last_seen_at = EXCLUDED.last_seen_at
	`, session.Key, session.Username, session.CreatedAt, session.LastSeenAt)
	if err != nil {
		return oops.Code("SESSION_UPSERT_FAILED").
			With("operation", "upsert session").
			Wrap(err)
	}
	return nil
}

// Get returns the session for key.
func (r *SessionRepository) Get(ctx context.Context, key string) (*auth.Session, error) {
	s := auth.Session{Key: key}
	err := r.db.QueryRow(ctx, `
		SELECT username, created_at, last_seen_at
		FROM sessions
		WHERE session_key = $1
	`, key).Scan(&s.Username, &s.CreatedAt, &s.LastSeenAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("SESSION_NOT_FOUND").Wrap(auth.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("SESSION_GET_FAILED").
			With("operation", "get session").
			Wrap(err)
	}
	return &s, nil
}

func (r *SessionRepository) exec(ctx context.Context, code, operation, sql string, args ...any) error {
	tag, err := r.db.Exec(ctx, sql, args...)
	if err != nil {
		return oops.Code(code).With("operation", operation).Wrap(err)
	}
	if tag.RowsAffected() == 0 {
		return oops.Code("SESSION_NOT_FOUND").Wrap(auth.ErrNotFound)
	}
	return nil
}

// Touch sets last_seen_at.
func (r *SessionRepository) Touch(ctx context.Context, key string, at time.Time) error {
	return r.exec(ctx, "SESSION_TOUCH_FAILED", "touch session",
		`UPDATE sessions SET last_seen_at = $2 WHERE session_key = $1`, key, at)
}

// UpdateUsername rewrites the owner in place.
func (r *SessionRepository) UpdateUsername(ctx context.Context, key, username string) error {
	return r.exec(ctx, "SESSION_RENAME_FAILED", "update session username",
		`UPDATE sessions SET username = $2 WHERE session_key = $1`, key, username)
}

// Delete removes the session. Absent keys are not an error.
func (r *SessionRepository) Delete(ctx context.Context, key string) error {
	if _, err := r.db.Exec(ctx, `DELETE FROM sessions WHERE session_key = $1`, key); err != nil {
		return oops.Code("SESSION_DELETE_FAILED").
			With("operation", "delete session").
			Wrap(err)
	}
	return nil
}

// DeleteExpired removes sessions past either cutoff.
func (r *SessionRepository) DeleteExpired(ctx context.Context, idleCutoff, absoluteCutoff time.Time) (int64, error) {
	tag, err := r.db.Exec(ctx, `
		DELETE FROM sessions
		WHERE last_seen_at < $1 OR created_at < $2
	`, idleCutoff, absoluteCutoff)
	if err != nil {
		return 0, oops.Code("SESSION_SWEEP_FAILED").
			With("operation", "delete expired sessions").
			Wrap(err)
	}
	return tag.RowsAffected(), nil
}

var _ auth.SessionRepository = (*SessionRepository)(nil)
