// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 AuthCore Contributors

package auth

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/samber/oops"
)

const (
	// ResetTokenBytes of randomness, mailed as 64 hex characters.
	ResetTokenBytes = 32
	// ResetTokenExpiry is the default token lifetime.
	ResetTokenExpiry = time.Hour
)

// ResetToken is a stored password reset grant. Only the SHA-256 of the
// token is persisted; the plaintext exists in the mailed link alone.
type ResetToken struct {
	TokenHash string
	Email     string
	ExpiresAt time.Time
	CreatedAt time.Time
}

// ExpiredAt reports whether the token is past its expiry at instant now.
func (r *ResetToken) ExpiredAt(now time.Time) bool {
	return now.After(r.ExpiresAt)
}

// ResetTokenRepository stores reset tokens by hash. Multiple tokens per
// email may coexist.
type ResetTokenRepository interface {
	Create(ctx context.Context, token *ResetToken) error

	// GetByHash returns ErrNotFound when absent.
	GetByHash(ctx context.Context, tokenHash string) (*ResetToken, error)

	// Delete returns ErrNotFound when absent.
	Delete(ctx context.Context, tokenHash string) error

	DeleteByEmail(ctx context.Context, email string) (int64, error)

	// DeleteExpired removes tokens with expires_at < now.
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

// ResetSender delivers a reset token to its owner.
type ResetSender interface {
	SendReset(ctx context.Context, email, token string) error
}

// GenerateResetToken returns a fresh plaintext token and the digest to
// store for it.
func GenerateResetToken() (token, digest string, err error) {
	raw := make([]byte, ResetTokenBytes)
	if _, err = rand.Read(raw); err != nil {
		return "", "", oops.In(KindHashing).Code("RESET_TOKEN_GENERATE_FAILED").Wrap(err)
	}
	token = hex.EncodeToString(raw)
	return token, HashResetToken(token), nil
}

// HashResetToken computes the storage hash of a plaintext token.
func HashResetToken(token string) string {
	h := sha256.Sum256([]byte(token))
	return hex.EncodeToString(h[:])
}
