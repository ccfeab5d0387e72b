// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 AuthCore Contributors

package memstore

import (
	"context"
	"time"

	"github.com/forumcore/authcore/internal/auth"
)

// AttemptRepository implements auth.AttemptRepository.
type AttemptRepository struct {
	s *Store
}

// Append records an attempt.
func (r *AttemptRepository) Append(_ context.Context, attempt *auth.LoginAttempt) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.attempts = append(r.s.attempts, *attempt)
	return nil
}

// CountFailures aggregates failures of the exact pair within [from, to].
func (r *AttemptRepository) CountFailures(_ context.Context, ip, username string, from, to time.Time) (auth.AttemptAggregate, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var agg auth.AttemptAggregate
	for _, a := range r.s.attempts {
		if a.Success || a.IP != ip || a.Username != username {
			continue
		}
		if a.AttemptedAt.Before(from) || a.AttemptedAt.After(to) {
			continue
		}
		agg.Failures++
		if a.AttemptedAt.After(agg.LastFailure) {
			agg.LastFailure = a.AttemptedAt
		}
	}
	return agg, nil
}

// DeleteBefore removes attempts older than cutoff.
func (r *AttemptRepository) DeleteBefore(_ context.Context, cutoff time.Time) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	kept := r.s.attempts[:0]
	var deleted int64
	for _, a := range r.s.attempts {
		if a.AttemptedAt.Before(cutoff) {
			deleted++
			continue
		}
		kept = append(kept, a)
	}
	r.s.attempts = kept
	return deleted, nil
}

// Len returns the number of stored attempts.
func (r *AttemptRepository) Len() int {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return len(r.s.attempts)
}

var _ auth.AttemptRepository = (*AttemptRepository)(nil)
