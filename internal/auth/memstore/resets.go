// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 AuthCore Contributors

package memstore

import (
	"context"
	"time"

	"github.com/forumcore/authcore/internal/auth"
)

// ResetTokenRepository implements auth.ResetTokenRepository.
type ResetTokenRepository struct {
	s *Store
}

// Create stores a token.
func (r *ResetTokenRepository) Create(_ context.Context, token *auth.ResetToken) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.resets[token.TokenHash]; ok {
		return &auth.ConflictError{Field: "token_hash"}
	}
	c := *token
	r.s.resets[token.TokenHash] = &c
	return nil
}

// GetByHash returns a token by hash.
func (r *ResetTokenRepository) GetByHash(_ context.Context, tokenHash string) (*auth.ResetToken, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	token, ok := r.s.resets[tokenHash]
	if !ok {
		return nil, auth.ErrNotFound
	}
	c := *token
	return &c, nil
}

// Delete removes a token by hash.
func (r *ResetTokenRepository) Delete(_ context.Context, tokenHash string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.resets[tokenHash]; !ok {
		return auth.ErrNotFound
	}
	delete(r.s.resets, tokenHash)
	return nil
}

// DeleteByEmail removes every token for email.
func (r *ResetTokenRepository) DeleteByEmail(_ context.Context, email string) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var n int64
	for hash, token := range r.s.resets {
		if token.Email == email {
			delete(r.s.resets, hash)
			n++
		}
	}
	return n, nil
}

// DeleteExpired removes tokens with expires_at < now.
func (r *ResetTokenRepository) DeleteExpired(_ context.Context, now time.Time) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var n int64
	for hash, token := range r.s.resets {
		if token.ExpiresAt.Before(now) {
			delete(r.s.resets, hash)
			n++
		}
	}
	return n, nil
}

var _ auth.ResetTokenRepository = (*ResetTokenRepository)(nil)
