// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 AuthCore Contributors

package auth

import (
	"context"
	"log/slog"
	"time"

	"github.com/samber/oops"

	"github.com/forumcore/authcore/pkg/errutil"
)

// LoginAttempt is one ledger row. Rows are append-only.
type LoginAttempt struct {
	IP          string
	Username    string
	Success     bool
	AttemptedAt time.Time
}

// AttemptRepository is the attempt ledger.
type AttemptRepository interface {
	// Append records an attempt.
	Append(ctx context.Context, attempt *LoginAttempt) error

	// CountFailures aggregates failed attempts for the exact (ip, username)
	// pair with from <= attempted_at <= to.
	CountFailures(ctx context.Context, ip, username string, from, to time.Time) (AttemptAggregate, error)

	// DeleteBefore removes all rows with attempted_at < cutoff.
	DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// LoginTracker owns the attempt ledger and evaluates the lockout policy
// against it. Lockout is scoped to the exact (ip, username) pair.
type LoginTracker struct {
	attempts AttemptRepository
	policy   LockoutPolicy
	opts     options
}

// NewLoginTracker creates a tracker using policy.
func NewLoginTracker(attempts AttemptRepository, policy LockoutPolicy, opts ...Option) (*LoginTracker, error) {
	if attempts == nil {
		return nil, oops.Errorf("attempts repository is required")
	}
	if err := policy.Validate(); err != nil {
		return nil, err
	}
	return &LoginTracker{attempts: attempts, policy: policy, opts: buildOptions(opts)}, nil
}

// Policy returns the tracker's lockout policy.
func (t *LoginTracker) Policy() LockoutPolicy {
	return t.policy
}

// RecordAttempt appends an attempt at the current instant. Store failures
// are returned to the caller.
func (t *LoginTracker) RecordAttempt(ctx context.Context, ip, username string, success bool) error {
	attempt := &LoginAttempt{
		IP:          ip,
		Username:    username,
		Success:     success,
		AttemptedAt: t.opts.now(),
	}
	if err := t.attempts.Append(ctx, attempt); err != nil {
		return wrapStore(err, "ATTEMPT_RECORD_FAILED", "append login attempt")
	}
	return nil
}

// CheckLockout prunes the ledger and then decides. A pruning failure is only
// logged since the decision is scoped to the window either way. A failure to
// read the ledger is returned: callers must treat it as locked.
func (t *LoginTracker) CheckLockout(ctx context.Context, ip, username string) (LockoutDecision, error) {
	if _, err := t.CleanupOldAttempts(ctx); err != nil {
		errutil.LogWarn(ctx, t.opts.logger, "best-effort attempt cleanup failed", err)
	}
	return t.Status(ctx, ip, username)
}

// Status decides without pruning.
func (t *LoginTracker) Status(ctx context.Context, ip, username string) (LockoutDecision, error) {
	now := t.opts.now()
	agg, err := t.attempts.CountFailures(ctx, ip, username, t.policy.WindowStart(now), now)
	if err != nil {
		return LockoutDecision{Locked: true}, wrapStore(err, "LOCKOUT_CHECK_FAILED", "count failed attempts")
	}
	return t.policy.Decide(agg, now), nil
}

// CleanupOldAttempts deletes ledger rows older than the window.
func (t *LoginTracker) CleanupOldAttempts(ctx context.Context) (int64, error) {
	n, err := t.attempts.DeleteBefore(ctx, t.policy.WindowStart(t.opts.now()))
	if err != nil {
		return 0, wrapStore(err, "ATTEMPT_CLEANUP_FAILED", "delete old attempts")
	}
	if n > 0 {
		t.opts.logger.DebugContext(ctx, "pruned login attempts", slog.Int64("deleted", n))
	}
	return n, nil
}
