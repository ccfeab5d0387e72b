// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 AuthCore Contributors

package auth

import (
	"context"
	"errors"
	"log/slog"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/forumcore/authcore/pkg/errutil"
)

// dummyPasswordHash is verified when the user does not exist so that the
// response time does not reveal whether a username is registered. It uses
// the default cost parameters and matches no password.
//
//nolint:gosec // G101: not a credential
const dummyPasswordHash = "$argon2id$v=19$m=65536,t=3,p=4$AAAAAAAAAAAAAAAAAAAAAA$AAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA"

// Identity is the authenticated principal.
type Identity struct {
	UserID      ulid.ULID
	Username    string
	DisplayName string
	Email       string
}

// LoginRequest carries what the transport supplies for a login.
type LoginRequest struct {
	IP        string
	SessionID string
	Username  string
	Password  string
}

// LoginResult is returned alongside both success and rejection. On
// rejection Lockout reflects the ledger after the attempt was recorded.
type LoginResult struct {
	Identity *Identity
	Session  *Session
	Lockout  LockoutDecision
}

// errInvalidCredentials is the single rejection for unknown usernames and
// wrong passwords.
func errInvalidCredentials() error {
	return rejected().Code("AUTH_INVALID_CREDENTIALS").Errorf("invalid username or password")
}

// Service verifies credentials and runs the login flow.
type Service struct {
	users    UserRepository
	hasher   PasswordHasher
	tracker  *LoginTracker
	sessions *SessionManager
	opts     options
}

// NewAuthService creates a Service.
func NewAuthService(users UserRepository, hasher PasswordHasher, tracker *LoginTracker, sessions *SessionManager, opts ...Option) (*Service, error) {
	if users == nil {
		return nil, oops.Errorf("users repository is required")
	}
	if hasher == nil {
		return nil, oops.Errorf("password hasher is required")
	}
	if tracker == nil {
		return nil, oops.Errorf("login tracker is required")
	}
	if sessions == nil {
		return nil, oops.Errorf("session manager is required")
	}
	return &Service{
		users:    users,
		hasher:   hasher,
		tracker:  tracker,
		sessions: sessions,
		opts:     buildOptions(opts),
	}, nil
}

// Authenticate verifies username and password and records the outcome in
// the attempt ledger. Unknown usernames and wrong passwords produce the same
// AUTH_INVALID_CREDENTIALS rejection.
func (s *Service) Authenticate(ctx context.Context, ip, username, password string) (*Identity, error) {
	user, lookupErr := s.users.GetByUsername(ctx, username)

	var targetHash string
	switch {
	case lookupErr == nil:
		targetHash = user.PasswordHash
	case errors.Is(lookupErr, ErrNotFound):
		targetHash = dummyPasswordHash
		user = nil
	default:
		s.recordFailureAfterError(ctx, ip, username)
		return nil, wrapStore(lookupErr, "AUTH_LOGIN_FAILED", "get user by username")
	}

	valid, verifyErr := s.hasher.Verify(ctx, password, targetHash)
	if CodeOf(verifyErr) == "AUTH_HASH_TIMEOUT" {
		// Nothing was checked, so the pair is not charged an attempt.
		s.opts.recorder.LoginAttempt(OutcomeError)
		return nil, oops.Code("AUTH_LOGIN_FAILED").
			With("operation", "verify password").
			Wrap(verifyErr)
	}
	if verifyErr != nil && user != nil {
		s.recordFailureAfterError(ctx, ip, username)
		return nil, oops.Code("AUTH_LOGIN_FAILED").
			With("operation", "verify password").
			Wrap(verifyErr)
	}

	if user == nil || !valid {
		if err := s.tracker.RecordAttempt(ctx, ip, username, false); err != nil {
			return nil, err
		}
		s.opts.recorder.LoginAttempt(OutcomeFailure)
		return nil, errInvalidCredentials()
	}

	if err := s.tracker.RecordAttempt(ctx, ip, username, true); err != nil {
		return nil, err
	}
	s.opts.recorder.LoginAttempt(OutcomeSuccess)

	if err := s.users.UpdateLastLogin(ctx, user.ID, s.opts.now()); err != nil {
		s.opts.logger.WarnContext(ctx, "best-effort last login update failed",
			slog.String("operation", "update last login"),
			slog.String("user_id", user.ID.String()),
			slog.Any("error", err))
	}
	s.upgradeHash(ctx, user, password)

	return &Identity{
		UserID:      user.ID,
		Username:    user.Username,
		DisplayName: user.DisplayName,
		Email:       user.Email,
	}, nil
}

// recordFailureAfterError counts an internal failure against the pair so
// that errors cannot be used to bypass the lockout.
func (s *Service) recordFailureAfterError(ctx context.Context, ip, username string) {
	s.opts.recorder.LoginAttempt(OutcomeError)
	if err := s.tracker.RecordAttempt(ctx, ip, username, false); err != nil {
		errutil.LogError(ctx, s.opts.logger, "failed to record attempt after error", err)
	}
}

func (s *Service) upgradeHash(ctx context.Context, user *User, password string) {
	if !s.hasher.NeedsUpgrade(user.PasswordHash) {
		return
	}
	digest, err := s.hasher.Hash(ctx, password)
	if err == nil {
		err = s.users.UpdatePassword(ctx, user.ID, digest)
	}
	if err != nil {
		s.opts.logger.WarnContext(ctx, "best-effort password rehash failed",
			slog.String("operation", "rehash password"),
			slog.String("user_id", user.ID.String()),
			slog.Any("error", err))
	}
}

// Login checks the lockout, authenticates and issues a session.
func (s *Service) Login(ctx context.Context, req LoginRequest) (*LoginResult, error) {
	ctx, span := s.opts.tracer.Start(ctx, "auth.Login")
	defer span.End()
	span.SetAttributes(attribute.String("auth.ip", req.IP))

	decision, err := s.tracker.CheckLockout(ctx, req.IP, req.Username)
	if err != nil {
		s.opts.recorder.LoginAttempt(OutcomeError)
		span.SetStatus(codes.Error, "lockout check failed")
		return &LoginResult{Lockout: decision}, err
	}
	if decision.Locked {
		s.opts.recorder.LoginAttempt(OutcomeLocked)
		s.opts.recorder.LockedOut()
		s.opts.logger.InfoContext(ctx, "login refused while locked out",
			slog.String("ip", req.IP),
			slog.String("username", req.Username),
			slog.Duration("remaining", decision.RemainingTime))
		return &LoginResult{Lockout: decision}, rejected().Code("AUTH_LOCKED_OUT").
			With("remaining_time", decision.RemainingTime.String()).
			With("retry_after_minutes", decision.RetryAfterMinutes()).
			Errorf("too many failed login attempts")
	}

	identity, err := s.Authenticate(ctx, req.IP, req.Username, req.Password)
	if err != nil {
		result := &LoginResult{Lockout: decision}
		if IsRejected(err) {
			if after, statusErr := s.tracker.Status(ctx, req.IP, req.Username); statusErr == nil {
				result.Lockout = after
			}
		} else {
			span.SetStatus(codes.Error, "authenticate failed")
		}
		return result, err
	}

	session, err := s.sessions.Issue(ctx, req.SessionID, identity.Username)
	if err != nil {
		span.SetStatus(codes.Error, "session issue failed")
		return &LoginResult{Lockout: decision}, err
	}

	return &LoginResult{Identity: identity, Session: session, Lockout: decision}, nil
}

// Logout revokes the session. Unknown sessions are not an error.
func (s *Service) Logout(ctx context.Context, sessionID string) error {
	return s.sessions.Revoke(ctx, sessionID)
}
