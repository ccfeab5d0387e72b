// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 AuthCore Contributors

package memstore

import (
	"context"
	"time"

	"github.com/forumcore/authcore/internal/auth"
)

// SessionRepository implements auth.SessionRepository.
type SessionRepository struct {
	s *Store
}

// Upsert inserts or replaces a session.
func (r *SessionRepository) Upsert(_ context.Context, session *auth.Session) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c := *session
	r.s.sessions[session.Key] = &c
	return nil
}

// Get returns a session by key.
func (r *SessionRepository) Get(_ context.Context, key string) (*auth.Session, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	session, ok := r.s.sessions[key]
	if !ok {
		return nil, auth.ErrNotFound
	}
	c := *session
	return &c, nil
}

// Touch sets LastSeenAt.
func (r *SessionRepository) Touch(_ context.Context, key string, at time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	session, ok := r.s.sessions[key]
	if !ok {
		return auth.ErrNotFound
	}
	session.LastSeenAt = at
	return nil
}

// UpdateUsername rewrites the owner in place.
func (r *SessionRepository) UpdateUsername(_ context.Context, key, username string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	session, ok := r.s.sessions[key]
	if !ok {
		return auth.ErrNotFound
	}
	session.Username = username
	return nil
}

// Delete removes a session if present.
func (r *SessionRepository) Delete(_ context.Context, key string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	delete(r.s.sessions, key)
	return nil
}

// DeleteExpired removes sessions past either cutoff.
func (r *SessionRepository) DeleteExpired(_ context.Context, idleCutoff, absoluteCutoff time.Time) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var n int64
	for key, session := range r.s.sessions {
		if session.LastSeenAt.Before(idleCutoff) || session.CreatedAt.Before(absoluteCutoff) {
			delete(r.s.sessions, key)
			n++
		}
	}
	return n, nil
}

var _ auth.SessionRepository = (*SessionRepository)(nil)
