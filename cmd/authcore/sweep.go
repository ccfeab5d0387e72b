// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 AuthCore Contributors

package main

import (
	"github.com/spf13/cobra"

	"github.com/forumcore/authcore/internal/sweeper"
)

// NewSweepCmd creates the sweep subcommand.
func NewSweepCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sweep",
		Short: "Delete expired attempts, sessions and reset tokens once",
		Long:  `Run every cleanup task a single time and exit.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSweepWithDeps(cmd, args, ServeDeps{})
		},
	}
}

func runSweepWithDeps(cmd *cobra.Command, _ []string, deps ServeDeps) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	logger, err := newLogger(cfg, cmd.ErrOrStderr())
	if err != nil {
		return err
	}

	comps, err := buildComponents(cmd.Context(), cfg, logger, nil, deps)
	if err != nil {
		return err
	}
	defer comps.Close()

	var total int64
	sched, err := sweeper.New(sweeper.AuthTasks(comps.tracker, comps.resets, comps.sessions, sweeper.Intervals{
		Attempts: cfg.Lockout.CleanupInterval,
		Resets:   cfg.Reset.SweepInterval,
		Sessions: cfg.Session.SweepInterval,
	}), logger, func(task string, deleted int64) {
		total += deleted
		cmd.Printf("%s: %d deleted\n", task, deleted)
	})
	if err != nil {
		return err
	}
	if err := sched.RunOnce(cmd.Context()); err != nil {
		return err
	}
	cmd.Printf("Sweep complete: %d rows deleted\n", total)
	return nil
}
