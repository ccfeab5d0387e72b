// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 AuthCore Contributors

package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/forumcore/authcore/internal/auth"
)

// Metrics contains the authcore Prometheus metrics. It implements
// auth.Recorder.
type Metrics struct {
	LoginAttempts *prometheus.CounterVec
	Lockouts      prometheus.Counter
	ResetTokens   *prometheus.CounterVec
	SweepDeleted  *prometheus.CounterVec
	HashDuration  *prometheus.HistogramVec
}

// NewMetrics creates and registers the authcore metrics.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		LoginAttempts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "authcore_login_attempts_total",
				Help: "Total number of login attempts by outcome",
			},
			[]string{"outcome"},
		),
		Lockouts: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "authcore_lockouts_total",
				Help: "Total number of logins refused by the lockout policy",
			},
		),
		ResetTokens: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "authcore_reset_tokens_total",
				Help: "Total number of password reset token events",
			},
			[]string{"event"},
		),
		SweepDeleted: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "authcore_sweep_deleted_total",
				Help: "Total number of rows removed by cleanup tasks",
			},
			[]string{"task"},
		),
		HashDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "authcore_hash_duration_seconds",
				Help:    "Password hashing latency by operation",
				Buckets: []float64{.01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"op"},
		),
	}

	reg.MustRegister(m.LoginAttempts, m.Lockouts, m.ResetTokens, m.SweepDeleted, m.HashDuration)
	return m
}

// LoginAttempt counts one login outcome.
func (m *Metrics) LoginAttempt(outcome string) { m.LoginAttempts.WithLabelValues(outcome).Inc() }

// LockedOut counts one refused login.
func (m *Metrics) LockedOut() { m.Lockouts.Inc() }

// ResetToken counts one reset token event.
func (m *Metrics) ResetToken(event string) { m.ResetTokens.WithLabelValues(event).Inc() }

// RecordSweep adds the rows a cleanup task removed. Matches sweeper.Observer.
func (m *Metrics) RecordSweep(task string, deleted int64) {
	m.SweepDeleted.WithLabelValues(task).Add(float64(deleted))
}

// ObserveHash records hashing latency. Matches auth.HashObserver.
func (m *Metrics) ObserveHash(op string, elapsed time.Duration) {
	m.HashDuration.WithLabelValues(op).Observe(elapsed.Seconds())
}

var _ auth.Recorder = (*Metrics)(nil)
