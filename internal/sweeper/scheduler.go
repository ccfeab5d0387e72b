// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 AuthCore Contributors

// Package sweeper runs the periodic cleanup tasks: attempt ledger pruning,
// expired reset tokens and expired sessions.
package sweeper

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/samber/oops"

	"github.com/forumcore/authcore/pkg/errutil"
)

// Task is one named cleanup job. Run returns the number of rows removed.
type Task struct {
	Name     string
	Interval time.Duration
	Run      func(ctx context.Context) (int64, error)
}

// Observer receives the removed count of each successful run.
type Observer func(task string, deleted int64)

// Scheduler runs each task once at start, then on its own interval.
type Scheduler struct {
	tasks   []Task
	logger  *slog.Logger
	observe Observer

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a scheduler. A nil logger uses slog.Default.
func New(tasks []Task, logger *slog.Logger, observe Observer) (*Scheduler, error) {
	for _, task := range tasks {
		if task.Name == "" || task.Run == nil {
			return nil, oops.Code("SWEEP_TASK_INVALID").Errorf("task needs a name and a run function")
		}
		if task.Interval <= 0 {
			return nil, oops.Code("SWEEP_INTERVAL_INVALID").
				With("task", task.Name).
				Errorf("interval must be positive")
		}
	}
	if logger == nil {
		logger = slog.Default()
	}
	if observe == nil {
		observe = func(string, int64) {}
	}
	return &Scheduler{tasks: tasks, logger: logger, observe: observe}, nil
}

func (s *Scheduler) runTask(ctx context.Context, task Task) error {
	n, err := task.Run(ctx)
	if err != nil {
		errutil.LogWarn(ctx, s.logger, "best-effort sweep failed", oops.With("task", task.Name).Wrap(err))
		return err
	}
	s.observe(task.Name, n)
	if n > 0 {
		s.logger.InfoContext(ctx, "sweep removed rows", "task", task.Name, "count", n)
	}
	return nil
}

// RunOnce executes every task once. All tasks are attempted even if earlier
// ones fail; errors are combined.
func (s *Scheduler) RunOnce(ctx context.Context) error {
	var errs []error
	for _, task := range s.tasks {
		if err := s.runTask(ctx, task); err != nil {
			errs = append(errs, oops.With("task", task.Name).Wrap(err))
		}
	}
	return errors.Join(errs...)
}

// Start launches one goroutine per task.
func (s *Scheduler) Start(ctx context.Context) {
	ctx, s.cancel = context.WithCancel(ctx)
	for _, task := range s.tasks {
		s.wg.Add(1)
		go s.loop(ctx, task)
	}
}

// Stop cancels the tasks and waits for running ones to return.
func (s *Scheduler) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
}

func (s *Scheduler) loop(ctx context.Context, task Task) {
	defer s.wg.Done()

	ticker := time.NewTicker(task.Interval)
	defer ticker.Stop()

	_ = s.runTask(ctx, task)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			_ = s.runTask(ctx, task)
		}
	}
}
