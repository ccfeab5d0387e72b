// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 AuthCore Contributors

package auth

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"log/slog"
	"time"

	"github.com/samber/oops"

	"github.com/forumcore/authcore/pkg/errutil"
)

// Session configuration.
const (
	SessionIDBytes = 32 // 64 hex chars

	// DefaultSessionAbsoluteTTL matches the session cookie max age.
	DefaultSessionAbsoluteTTL = 24 * time.Hour

	// DefaultSessionIdleTTL ends sessions that go unused.
	DefaultSessionIdleTTL = 2 * time.Hour

	maxSessionIDLength = 512
)

// Session binds a transport-level session identifier to a username.
// The username is a back-reference: renaming the user does not cascade,
// SessionManager.RenameOwner must be called.
type Session struct {
	// Key is the SHA-256 of the transport identifier; the raw id is never stored.
	Key        string
	Username   string
	CreatedAt  time.Time
	LastSeenAt time.Time
}

// SessionRepository stores sessions by key.
type SessionRepository interface {
	// Upsert inserts or replaces the session with the same key.
	Upsert(ctx context.Context, session *Session) error

	// Get returns ErrNotFound when absent.
	Get(ctx context.Context, key string) (*Session, error)

	// Touch sets LastSeenAt. Returns ErrNotFound when absent.
	Touch(ctx context.Context, key string, at time.Time) error

	// UpdateUsername rewrites the owner in place. Returns ErrNotFound when absent.
	UpdateUsername(ctx context.Context, key, username string) error

	// Delete removes the session; absent keys are not an error.
	Delete(ctx context.Context, key string) error

	// DeleteExpired removes sessions idle since before idleCutoff or
	// created before absoluteCutoff.
	DeleteExpired(ctx context.Context, idleCutoff, absoluteCutoff time.Time) (int64, error)
}

// GenerateSessionID returns a fresh random transport identifier for clients
// that did not present one.
func GenerateSessionID() (string, error) {
	b := make([]byte, SessionIDBytes)
	if _, err := rand.Read(b); err != nil {
		return "", oops.Code("SESSION_ID_GENERATE_FAILED").
			With("operation", "crypto/rand.Read").
			With("requested_bytes", SessionIDBytes).
			Wrap(err)
	}
	return hex.EncodeToString(b), nil
}

// SessionKey derives the storage key from a transport identifier.
func SessionKey(sessionID string) string {
	h := sha256.Sum256([]byte(sessionID))
	return hex.EncodeToString(h[:])
}

func validateSessionID(sessionID string) error {
	if sessionID == "" {
		return validation().Code("SESSION_ID_EMPTY").Errorf("session id cannot be empty")
	}
	if len(sessionID) > maxSessionIDLength {
		return validation().Code("SESSION_ID_INVALID").
			With("max", maxSessionIDLength).
			Errorf("session id too long")
	}
	return nil
}

// SessionManager implements the session lifecycle absent -> active -> absent
// and enforces server-side idle and absolute timeouts.
type SessionManager struct {
	repo        SessionRepository
	absoluteTTL time.Duration
	idleTTL     time.Duration
	opts        options
}

// NewSessionManager creates a manager. Zero TTLs select the defaults.
func NewSessionManager(repo SessionRepository, absoluteTTL, idleTTL time.Duration, opts ...Option) (*SessionManager, error) {
	if repo == nil {
		return nil, oops.Errorf("sessions repository is required")
	}
	if absoluteTTL <= 0 {
		absoluteTTL = DefaultSessionAbsoluteTTL
	}
	if idleTTL <= 0 {
		idleTTL = DefaultSessionIdleTTL
	}
	return &SessionManager{
		repo:        repo,
		absoluteTTL: absoluteTTL,
		idleTTL:     idleTTL,
		opts:        buildOptions(opts),
	}, nil
}

// AbsoluteTTL is the maximum lifetime of a session.
func (m *SessionManager) AbsoluteTTL() time.Duration {
	return m.absoluteTTL
}

// Issue upserts the session for sessionID, replacing any previous owner.
func (m *SessionManager) Issue(ctx context.Context, sessionID, username string) (*Session, error) {
	if err := validateSessionID(sessionID); err != nil {
		return nil, err
	}
	now := m.opts.now()
	session := &Session{
		Key:        SessionKey(sessionID),
		Username:   username,
		CreatedAt:  now,
		LastSeenAt: now,
	}
	if err := m.repo.Upsert(ctx, session); err != nil {
		return nil, wrapStore(err, "SESSION_ISSUE_FAILED", "upsert session")
	}
	return session, nil
}

// Revoke deletes the session. Revoking an absent session is a no-op.
func (m *SessionManager) Revoke(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return nil
	}
	if err := m.repo.Delete(ctx, SessionKey(sessionID)); err != nil {
		return wrapStore(err, "SESSION_REVOKE_FAILED", "delete session")
	}
	return nil
}

// RenameOwner rewrites the session's username in place. It is idempotent,
// so callers may retry it. An absent session is a no-op.
func (m *SessionManager) RenameOwner(ctx context.Context, sessionID, newUsername string) error {
	if err := validateSessionID(sessionID); err != nil {
		return err
	}
	err := m.repo.UpdateUsername(ctx, SessionKey(sessionID), newUsername)
	if errors.Is(err, ErrNotFound) {
		m.opts.logger.DebugContext(ctx, "rename skipped for absent session")
		return nil
	}
	if err != nil {
		return wrapStore(err, "SESSION_RENAME_FAILED", "update session username")
	}
	return nil
}

// Resolve returns the live session for sessionID. Sessions past either
// timeout are deleted and rejected.
func (m *SessionManager) Resolve(ctx context.Context, sessionID string) (*Session, error) {
	if sessionID == "" {
		return nil, rejected().Code("SESSION_INVALID").Errorf("invalid session")
	}
	key := SessionKey(sessionID)

	session, err := m.repo.Get(ctx, key)
	if errors.Is(err, ErrNotFound) {
		return nil, rejected().Code("SESSION_INVALID").Errorf("invalid session")
	}
	if err != nil {
		return nil, wrapStore(err, "SESSION_RESOLVE_FAILED", "get session")
	}

	now := m.opts.now()
	if m.expired(session, now) {
		if delErr := m.repo.Delete(ctx, key); delErr != nil {
			errutil.LogWarn(ctx, m.opts.logger, "best-effort expired session delete failed", delErr)
		}
		return nil, rejected().Code("SESSION_EXPIRED").Errorf("session has expired")
	}

	if err := m.repo.Touch(ctx, key, now); err != nil {
		m.opts.logger.WarnContext(ctx, "best-effort session touch failed",
			slog.String("operation", "touch session"),
			slog.Any("error", err))
	} else {
		session.LastSeenAt = now
	}
	return session, nil
}

func (m *SessionManager) expired(s *Session, now time.Time) bool {
	return now.Sub(s.CreatedAt) > m.absoluteTTL || now.Sub(s.LastSeenAt) > m.idleTTL
}

// SweepExpired deletes every session past either timeout.
func (m *SessionManager) SweepExpired(ctx context.Context) (int64, error) {
	now := m.opts.now()
	n, err := m.repo.DeleteExpired(ctx, now.Add(-m.idleTTL), now.Add(-m.absoluteTTL))
	if err != nil {
		return 0, wrapStore(err, "SESSION_SWEEP_FAILED", "delete expired sessions")
	}
	return n, nil
}
