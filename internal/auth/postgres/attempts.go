// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 AuthCore Contributors

package postgres

import (
	"context"
	"time"

	"github.com/samber/oops"

	"github.com/forumcore/authcore/internal/auth"
)

// AttemptRepository implements auth.AttemptRepository over login_attempts.
type AttemptRepository struct {
	db Querier
}

// NewAttemptRepository creates an AttemptRepository.
func NewAttemptRepository(db Querier) *AttemptRepository {
	return &AttemptRepository{db: db}
}

// Append inserts one ledger row.
func (r *AttemptRepository) Append(ctx context.Context, attempt *auth.LoginAttempt) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO login_attempts (ip_address, username, success, attempted_at)
		VALUES ($1, $2, $3, $4)
	`, attempt.IP, attempt.Username, attempt.Success, attempt.AttemptedAt)
	if err != nil {
		return oops.Code("ATTEMPT_INSERT_FAILED").
			With("operation", "insert login attempt").
			With("ip", attempt.IP).
			Wrap(err)
	}
	return nil
}

// CountFailures aggregates failures of the exact pair within [from, to].
func (r *AttemptRepository) CountFailures(ctx context.Context, ip, username string, from, to time.Time) (auth.AttemptAggregate, error) {
	var (
		count int64
		last  *time.Time
	)
	err := r.db.QueryRow(ctx, `
		SELECT COUNT(*), MAX(attempted_at)
		FROM login_attempts
		WHERE ip_address = $1
		  AND username = $2
		  AND success = false
		  AND attempted_at >= $3
		  AND attempted_at <= $4
	`, ip, username, from, to).Scan(&count, &last)
	if err != nil {
		return auth.AttemptAggregate{}, oops.Code("ATTEMPT_COUNT_FAILED").
			With("operation", "count failed attempts").
			With("ip", ip).
			Wrap(err)
	}

	agg := auth.AttemptAggregate{Failures: int(count)}
	if last != nil {
		agg.LastFailure = *last
	}
	return agg, nil
}

// DeleteBefore prunes rows older than cutoff.
func (r *AttemptRepository) DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := r.db.Exec(ctx, `DELETE FROM login_attempts WHERE attempted_at < $1`, cutoff)
	if err != nil {
		return 0, oops.Code("ATTEMPT_DELETE_FAILED").
			With("operation", "delete old attempts").
			Wrap(err)
	}
	return tag.RowsAffected(), nil
}

var _ auth.AttemptRepository = (*AttemptRepository)(nil)
