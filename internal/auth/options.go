// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 AuthCore Contributors

package auth

import (
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/forumcore/authcore/internal/auth"

// Clock returns the current time. Services read time only through it.
type Clock func() time.Time

// Recorder receives security-relevant counters. Implemented by the
// observability package; nil-safe through noopRecorder.
type Recorder interface {
	LoginAttempt(outcome string)
	LockedOut()
	ResetToken(event string)
}

// Login attempt outcomes reported to the Recorder.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
	OutcomeLocked  = "locked"
	OutcomeError   = "error"
)

// Reset token events reported to the Recorder.
const (
	ResetIssued   = "issued"
	ResetConsumed = "consumed"
	ResetRejected = "rejected"
)

type noopRecorder struct{}

func (noopRecorder) LoginAttempt(string) {}
func (noopRecorder) LockedOut()          {}
func (noopRecorder) ResetToken(string)   {}

// Option configures the ambient collaborators shared by every service.
type Option func(*options)

type options struct {
	logger   *slog.Logger
	now      Clock
	recorder Recorder
	tracer   trace.Tracer
}

func buildOptions(opts []Option) options {
	o := options{
		logger:   slog.Default(),
		now:      time.Now,
		recorder: noopRecorder{},
		tracer:   otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// WithLogger sets the service logger. A nil logger is ignored.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithClock overrides the time source.
func WithClock(now Clock) Option {
	return func(o *options) {
		if now != nil {
			o.now = now
		}
	}
}

// WithRecorder sets the metrics sink.
func WithRecorder(r Recorder) Option {
	return func(o *options) {
		if r != nil {
			o.recorder = r
		}
	}
}
