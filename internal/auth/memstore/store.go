// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 AuthCore Contributors

// Package memstore provides in-memory implementations of the auth
// repositories. All repositories obtained from one Store share a single
// lock, so writes are serialised the way a single store connection would
// serialise them.
package memstore

import (
	"sync"

	"github.com/oklog/ulid/v2"

	"github.com/forumcore/authcore/internal/auth"
)

// Store holds every table in memory.
type Store struct {
	mu       sync.Mutex
	users    map[ulid.ULID]*auth.User
	attempts []auth.LoginAttempt
	sessions map[string]*auth.Session
	resets   map[string]*auth.ResetToken
}

// New creates an empty Store.
func New() *Store {
	return &Store{
		users:    make(map[ulid.ULID]*auth.User),
		sessions: make(map[string]*auth.Session),
		resets:   make(map[string]*auth.ResetToken),
	}
}

// Users returns the credential store view.
func (s *Store) Users() *UserRepository { return &UserRepository{s: s} }

// Attempts returns the attempt ledger view.
func (s *Store) Attempts() *AttemptRepository { return &AttemptRepository{s: s} }

// Sessions returns the session store view.
func (s *Store) Sessions() *SessionRepository { return &SessionRepository{s: s} }

// Resets returns the reset token view.
func (s *Store) Resets() *ResetTokenRepository { return &ResetTokenRepository{s: s} }
