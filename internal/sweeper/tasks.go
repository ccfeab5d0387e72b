// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 AuthCore Contributors

package sweeper

import (
	"time"

	"github.com/forumcore/authcore/internal/auth"
)

// Task names, also used as metric labels.
const (
	TaskAttempts = "login_attempts"
	TaskResets   = "reset_tokens"
	TaskSessions = "sessions"
)

// Intervals for AuthTasks.
type Intervals struct {
	Attempts time.Duration
	Resets   time.Duration
	Sessions time.Duration
}

// AuthTasks builds the standard cleanup tasks over the auth services.
func AuthTasks(tracker *auth.LoginTracker, resets *auth.ResetService, sessions *auth.SessionManager, iv Intervals) []Task {
	return []Task{
		{Name: TaskAttempts, Interval: iv.Attempts, Run: tracker.CleanupOldAttempts},
		{Name: TaskResets, Interval: iv.Resets, Run: resets.Sweep},
		{Name: TaskSessions, Interval: iv.Sessions, Run: sessions.SweepExpired},
	}
}
