// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 AuthCore Contributors

// Package mail delivers outbound email.
package mail

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"log/slog"
	"time"

	"github.com/samber/oops"
	gomail "github.com/wneessen/go-mail"
)

// Receipt identifies a delivered message.
type Receipt struct {
	MessageID string
	SentAt    time.Time
}

// Mailer sends a plain-text message.
type Mailer interface {
	Send(ctx context.Context, to, subject, text string) (Receipt, error)
}

// SMTPConfig holds SMTP connection settings.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

type smtpClient interface {
	DialAndSendWithContext(ctx context.Context, messages ...*gomail.Msg) error
}

// SMTPMailer sends mail through an SMTP relay.
type SMTPMailer struct {
	from   string
	client smtpClient
	now    func() time.Time
}

// NewSMTPMailer creates an SMTPMailer. Credentials enable PLAIN auth;
// STARTTLS is used when the server offers it.
func NewSMTPMailer(cfg SMTPConfig) (*SMTPMailer, error) {
	if cfg.Host == "" {
		return nil, oops.Code("MAIL_HOST_MISSING").Errorf("smtp host is required")
	}
	if cfg.From == "" {
		return nil, oops.Code("MAIL_FROM_MISSING").Errorf("sender address is required")
	}

	opts := []gomail.Option{gomail.WithTLSPolicy(gomail.TLSOpportunistic)}
	if cfg.Port > 0 {
		opts = append(opts, gomail.WithPort(cfg.Port))
	}
	if cfg.Username != "" {
		opts = append(opts,
			gomail.WithSMTPAuth(gomail.SMTPAuthPlain),
			gomail.WithUsername(cfg.Username),
			gomail.WithPassword(cfg.Password))
	}

	client, err := gomail.NewClient(cfg.Host, opts...)
	if err != nil {
		return nil, oops.Code("MAIL_CLIENT_INVALID").With("host", cfg.Host).Wrap(err)
	}
	return &SMTPMailer{from: cfg.From, client: client, now: time.Now}, nil
}

func (m *SMTPMailer) message(to, subject, text string) (*gomail.Msg, error) {
	msg := gomail.NewMsg()
	if err := msg.From(m.from); err != nil {
		return nil, oops.Code("MAIL_FROM_INVALID").Wrap(err)
	}
	if err := msg.To(to); err != nil {
		return nil, oops.Code("MAIL_RECIPIENT_INVALID").Wrap(err)
	}
	msg.Subject(subject)
	msg.SetMessageID()
	msg.SetDate()
	msg.SetBodyString(gomail.TypeTextPlain, text)
	return msg, nil
}

// Send delivers one message.
func (m *SMTPMailer) Send(ctx context.Context, to, subject, text string) (Receipt, error) {
	msg, err := m.message(to, subject, text)
	if err != nil {
		return Receipt{}, err
	}
	if err := m.client.DialAndSendWithContext(ctx, msg); err != nil {
		return Receipt{}, oops.Code("MAIL_SEND_FAILED").
			With("subject", subject).
			Wrap(err)
	}
	receipt := Receipt{SentAt: m.now()}
	if ids := msg.GetGenHeader(gomail.HeaderMessageID); len(ids) > 0 {
		receipt.MessageID = ids[0]
	}
	return receipt, nil
}

// LogMailer writes messages to the log instead of sending them. The body
// carries the reset link and is logged at DEBUG only.
type LogMailer struct {
	logger *slog.Logger
	now    func() time.Time
}

// NewLogMailer creates a LogMailer. A nil logger uses slog.Default.
func NewLogMailer(logger *slog.Logger) *LogMailer {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogMailer{logger: logger, now: time.Now}
}

// Send logs the message.
func (m *LogMailer) Send(ctx context.Context, to, subject, text string) (Receipt, error) {
	b := make([]byte, 8)
	if _, err := rand.Read(b); err != nil {
		return Receipt{}, oops.Code("MAIL_ID_GENERATE_FAILED").Wrap(err)
	}
	receipt := Receipt{MessageID: hex.EncodeToString(b), SentAt: m.now()}
	m.logger.InfoContext(ctx, "mail queued to log",
		"message_id", receipt.MessageID,
		"to", to,
		"subject", subject)
	m.logger.DebugContext(ctx, "mail body",
		"message_id", receipt.MessageID,
		"body", text)
	return receipt, nil
}

var (
	_ Mailer = (*SMTPMailer)(nil)
	_ Mailer = (*LogMailer)(nil)
)
