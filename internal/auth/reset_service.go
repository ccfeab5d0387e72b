// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 AuthCore Contributors

package auth

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/samber/oops"
	"go.opentelemetry.io/otel/codes"

	"github.com/forumcore/authcore/pkg/errutil"
)

// ResetConfig tunes the reset token service.
type ResetConfig struct {
	// TTL is the token lifetime. Zero selects ResetTokenExpiry.
	TTL time.Duration

	// InvalidatePrior deletes a user's outstanding tokens when a new one is
	// issued. When false every unexpired token stays usable until consumed.
	InvalidatePrior bool
}

// ResetService issues, validates and consumes password reset tokens.
// Token state machine: issued -> consumed | expired | invalid.
type ResetService struct {
	users  UserRepository
	tokens ResetTokenRepository
	hasher PasswordHasher
	sender ResetSender
	cfg    ResetConfig
	opts   options
}

// NewResetService creates a ResetService.
func NewResetService(
	users UserRepository,
	tokens ResetTokenRepository,
	hasher PasswordHasher,
	sender ResetSender,
	cfg ResetConfig,
	opts ...Option,
) (*ResetService, error) {
	if users == nil {
		return nil, oops.Errorf("users repository is required")
	}
	if tokens == nil {
		return nil, oops.Errorf("reset token repository is required")
	}
	if hasher == nil {
		return nil, oops.Errorf("password hasher is required")
	}
	if sender == nil {
		return nil, oops.Errorf("reset sender is required")
	}
	if cfg.TTL <= 0 {
		cfg.TTL = ResetTokenExpiry
	}
	return &ResetService{
		users:  users,
		tokens: tokens,
		hasher: hasher,
		sender: sender,
		cfg:    cfg,
		opts:   buildOptions(opts),
	}, nil
}

// Issue stores a new token for email and returns its plaintext.
func (s *ResetService) Issue(ctx context.Context, email string) (string, error) {
	if s.cfg.InvalidatePrior {
		if _, err := s.tokens.DeleteByEmail(ctx, email); err != nil {
			return "", wrapStore(err, "RESET_ISSUE_FAILED", "invalidate prior tokens")
		}
	}

	token, hash, err := GenerateResetToken()
	if err != nil {
		return "", err
	}

	now := s.opts.now()
	record := &ResetToken{
		TokenHash: hash,
		Email:     email,
		ExpiresAt: now.Add(s.cfg.TTL),
		CreatedAt: now,
	}
	if err := s.tokens.Create(ctx, record); err != nil {
		return "", wrapStore(err, "RESET_ISSUE_FAILED", "create reset token")
	}

	s.opts.recorder.ResetToken(ResetIssued)
	return token, nil
}

// Validate checks token against email and returns the email on success.
// Expired tokens are swept first, so an expired token is rejected as either
// not found or expired; it never validates.
func (s *ResetService) Validate(ctx context.Context, email, token string) (string, error) {
	if token == "" || email == "" {
		return "", validation().Code("RESET_TOKEN_EMPTY").Errorf("email and token are required")
	}

	if _, err := s.Sweep(ctx); err != nil {
		errutil.LogWarn(ctx, s.opts.logger, "best-effort reset token sweep failed", err)
	}

	hash := HashResetToken(token)
	record, err := s.tokens.GetByHash(ctx, hash)
	if errors.Is(err, ErrNotFound) {
		s.opts.recorder.ResetToken(ResetRejected)
		return "", rejected().Code("RESET_TOKEN_NOT_FOUND").Errorf("invalid token")
	}
	if err != nil {
		return "", wrapStore(err, "RESET_VALIDATE_FAILED", "get reset token")
	}

	if record.Email != email {
		s.opts.recorder.ResetToken(ResetRejected)
		return "", rejected().Code("RESET_TOKEN_EMAIL_MISMATCH").Errorf("token does not match email")
	}

	if record.ExpiredAt(s.opts.now()) {
		if delErr := s.tokens.Delete(ctx, hash); delErr != nil && !errors.Is(delErr, ErrNotFound) {
			errutil.LogWarn(ctx, s.opts.logger, "best-effort expired token delete failed", delErr)
		}
		s.opts.recorder.ResetToken(ResetRejected)
		return "", rejected().Code("RESET_TOKEN_EXPIRED").Errorf("token has expired")
	}

	return record.Email, nil
}

// Consume deletes the token. Call it once, after the new password hash has
// been written.
func (s *ResetService) Consume(ctx context.Context, token string) error {
	err := s.tokens.Delete(ctx, HashResetToken(token))
	if errors.Is(err, ErrNotFound) {
		return rejected().Code("RESET_TOKEN_NOT_FOUND").Errorf("invalid token")
	}
	if err != nil {
		return wrapStore(err, "RESET_CONSUME_FAILED", "delete reset token")
	}
	s.opts.recorder.ResetToken(ResetConsumed)
	return nil
}

// Sweep deletes every expired token.
func (s *ResetService) Sweep(ctx context.Context) (int64, error) {
	n, err := s.tokens.DeleteExpired(ctx, s.opts.now())
	if err != nil {
		return 0, wrapStore(err, "RESET_SWEEP_FAILED", "delete expired tokens")
	}
	return n, nil
}

// RequestReset issues a token for the account registered to email and
// delivers it. Unknown addresses succeed silently so the response does not
// reveal which emails are registered.
func (s *ResetService) RequestReset(ctx context.Context, email string) error {
	ctx, span := s.opts.tracer.Start(ctx, "auth.RequestReset")
	defer span.End()

	if err := ValidateEmail(email); err != nil {
		return err
	}

	if _, err := s.Sweep(ctx); err != nil {
		errutil.LogWarn(ctx, s.opts.logger, "best-effort reset token sweep failed", err)
	}

	if _, err := s.users.GetByEmail(ctx, email); err != nil {
		if errors.Is(err, ErrNotFound) {
			s.opts.logger.InfoContext(ctx, "reset requested for unknown email")
			return nil
		}
		span.SetStatus(codes.Error, "lookup failed")
		return wrapStore(err, "RESET_REQUEST_FAILED", "get user by email")
	}

	token, err := s.Issue(ctx, email)
	if err != nil {
		span.SetStatus(codes.Error, "issue failed")
		return err
	}

	if err := s.sender.SendReset(ctx, email, token); err != nil {
		span.SetStatus(codes.Error, "delivery failed")
		return oops.Code("RESET_DELIVERY_FAILED").
			With("operation", "send reset email").
			Wrap(err)
	}

	s.opts.logger.InfoContext(ctx, "reset token sent", slog.String("email", email))
	return nil
}

// ResetPassword replaces the password of the account bound to token.
// The token is consumed only after the new hash is stored; any earlier
// failure leaves it usable for a retry.
func (s *ResetService) ResetPassword(ctx context.Context, email, token, newPassword string) error {
	ctx, span := s.opts.tracer.Start(ctx, "auth.ResetPassword")
	defer span.End()

	if err := ValidatePassword(newPassword); err != nil {
		return err
	}

	if _, err := s.Validate(ctx, email, token); err != nil {
		return err
	}

	user, err := s.users.GetByEmail(ctx, email)
	if errors.Is(err, ErrNotFound) {
		return rejected().Code("RESET_ACCOUNT_NOT_FOUND").Errorf("invalid token")
	}
	if err != nil {
		return wrapStore(err, "RESET_PASSWORD_FAILED", "get user by email")
	}

	digest, err := s.hasher.Hash(ctx, newPassword)
	if err != nil {
		span.SetStatus(codes.Error, "hash failed")
		return oops.Code("RESET_PASSWORD_FAILED").With("operation", "hash password").Wrap(err)
	}

	if err := s.users.UpdatePassword(ctx, user.ID, digest); err != nil {
		span.SetStatus(codes.Error, "update failed")
		return wrapStore(err, "RESET_PASSWORD_FAILED", "update password")
	}

	if err := s.Consume(ctx, token); err != nil {
		// The password is already changed. A retry with the same token
		// rewrites the hash and consumes again.
		span.SetStatus(codes.Error, "consume failed")
		return err
	}

	if n, err := s.tokens.DeleteByEmail(ctx, email); err != nil {
		errutil.LogWarn(ctx, s.opts.logger, "best-effort reset token cleanup failed", err)
	} else if n > 0 {
		s.opts.logger.DebugContext(ctx, "deleted remaining reset tokens", slog.Int64("deleted", n))
	}

	s.opts.logger.InfoContext(ctx, "password reset", slog.String("user_id", user.ID.String()))
	return nil
}
