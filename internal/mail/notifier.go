// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 AuthCore Contributors

package mail

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/samber/oops"

	"github.com/forumcore/authcore/internal/auth"
)

// ResetSubject is the subject line of reset emails.
const ResetSubject = "Password Reset Request"

const resetBodyFormat = "You requested a password reset. Click the link below to reset your password:\n\n%s\n\nIf you did not request this, please ignore this email."

// ResetNotifier mails reset links. It implements auth.ResetSender.
type ResetNotifier struct {
	mailer  Mailer
	baseURL string
	logger  *slog.Logger
}

// NewResetNotifier creates a notifier linking to baseURL.
func NewResetNotifier(mailer Mailer, baseURL string, logger *slog.Logger) (*ResetNotifier, error) {
	if mailer == nil {
		return nil, oops.Errorf("mailer is required")
	}
	if _, err := url.Parse(baseURL); err != nil || baseURL == "" {
		return nil, oops.Code("MAIL_BASE_URL_INVALID").With("base_url", baseURL).Errorf("invalid base url")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &ResetNotifier{mailer: mailer, baseURL: strings.TrimRight(baseURL, "/"), logger: logger}, nil
}

// ResetLink builds the link a user follows to choose a new password.
func (n *ResetNotifier) ResetLink(email, token string) string {
	q := url.Values{}
	q.Set("email", email)
	q.Set("token", token)
	return n.baseURL + "/reset-password?" + q.Encode()
}

// ResetBody renders the email body for link.
func ResetBody(link string) string {
	return fmt.Sprintf(resetBodyFormat, link)
}

// SendReset mails the reset link for token to email.
func (n *ResetNotifier) SendReset(ctx context.Context, email, token string) error {
	receipt, err := n.mailer.Send(ctx, email, ResetSubject, ResetBody(n.ResetLink(email, token)))
	if err != nil {
		return oops.Code("RESET_MAIL_FAILED").Wrap(err)
	}
	n.logger.DebugContext(ctx, "reset email sent", "message_id", receipt.MessageID)
	return nil
}

var _ auth.ResetSender = (*ResetNotifier)(nil)
