// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 AuthCore Contributors

package auth

import (
	"time"

	"github.com/samber/oops"
)

// Lockout defaults.
const (
	// DefaultLockoutWindow is the sliding window over which failures count.
	DefaultLockoutWindow = 15 * time.Minute

	// DefaultMaxAttempts is the number of failures that triggers a lockout.
	DefaultMaxAttempts = 5
)

// LockoutPolicy turns a failure aggregate into a lockout decision.
// It holds no state and reads no clock of its own.
type LockoutPolicy struct {
	Window      time.Duration
	MaxAttempts int
}

// DefaultLockoutPolicy returns the 15 minute / 5 failure policy.
func DefaultLockoutPolicy() LockoutPolicy {
	return LockoutPolicy{Window: DefaultLockoutWindow, MaxAttempts: DefaultMaxAttempts}
}

// Validate rejects non-positive parameters.
func (p LockoutPolicy) Validate() error {
	if p.Window <= 0 {
		return oops.Code("LOCKOUT_POLICY_INVALID").With("window", p.Window).Errorf("lockout window must be positive")
	}
	if p.MaxAttempts <= 0 {
		return oops.Code("LOCKOUT_POLICY_INVALID").With("max_attempts", p.MaxAttempts).Errorf("max attempts must be positive")
	}
	return nil
}

// AttemptAggregate summarises the failed attempts of one (ip, username)
// pair inside a window.
type AttemptAggregate struct {
	Failures    int
	LastFailure time.Time // zero when Failures == 0
}

// LockoutDecision is derived on every check and never persisted.
type LockoutDecision struct {
	Locked            bool
	Attempts          int
	RemainingAttempts int
	RemainingTime     time.Duration
}

// Decide applies the policy at instant now.
//
// The lockout slides: RemainingTime is measured from the latest failure, so
// every failure recorded while locked pushes the unlock time forward.
func (p LockoutPolicy) Decide(agg AttemptAggregate, now time.Time) LockoutDecision {
	d := LockoutDecision{
		Attempts:          agg.Failures,
		RemainingAttempts: max(0, p.MaxAttempts-agg.Failures),
	}
	if agg.Failures >= p.MaxAttempts {
		d.Locked = true
		d.RemainingTime = max(0, agg.LastFailure.Add(p.Window).Sub(now))
	}
	return d
}

// WindowStart returns the earliest attempt time still inside the window.
func (p LockoutPolicy) WindowStart(now time.Time) time.Time {
	return now.Add(-p.Window)
}

// RetryAfterMinutes rounds RemainingTime up to whole minutes.
func (d LockoutDecision) RetryAfterMinutes() int {
	if d.RemainingTime <= 0 {
		return 0
	}
	return int((d.RemainingTime + time.Minute - 1) / time.Minute)
}
