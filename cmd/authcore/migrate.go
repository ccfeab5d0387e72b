// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 AuthCore Contributors

package main

import (
	"fmt"
	"strings"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/forumcore/authcore/internal/store"
)

// migrator is the subset of store.Migrator the migrate commands use.
type migrator interface {
	Up() error
	Down() error
	Steps(n int) error
	Version() (uint, bool, error)
	Force(version int) error
	Close() error
	PendingMigrations() ([]uint, error)
	AppliedMigrations() ([]uint, error)
}

var newMigrator = func(databaseURL string) (migrator, error) {
	return store.NewMigrator(databaseURL)
}

// NewMigrateCmd creates the migrate subcommand.
func NewMigrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage database migrations",
		Long:  `Apply, revert and inspect the PostgreSQL schema migrations.`,
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		Args:  cobra.NoArgs,
		RunE: withMigrator(func(cmd *cobra.Command, m migrator, _ []string) error {
			cmd.Println("Running migrations...")
			if err := m.Up(); err != nil {
				return oops.Code("MIGRATION_FAILED").With("operation", "run migrations").Wrap(err)
			}
			cmd.Println("Migrations completed successfully")
			return nil
		}),
	})

	var all bool
	down := &cobra.Command{
		Use:   "down",
		Short: "Revert the latest migration",
		Args:  cobra.NoArgs,
		RunE: withMigrator(func(cmd *cobra.Command, m migrator, _ []string) error {
			if all {
				cmd.Println("Reverting all migrations...")
				if err := m.Down(); err != nil {
					return oops.Code("MIGRATION_FAILED").With("operation", "revert migrations").Wrap(err)
				}
			} else {
				cmd.Println("Reverting latest migration...")
				if err := m.Steps(-1); err != nil {
					return oops.Code("MIGRATION_FAILED").With("operation", "revert migration").Wrap(err)
				}
			}
			cmd.Println("Rollback completed successfully")
			return nil
		}),
	}
	down.Flags().BoolVar(&all, "all", false, "revert every migration, dropping all auth data")
	cmd.AddCommand(down)

	cmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Show applied and pending migrations",
		Args:  cobra.NoArgs,
		RunE:  withMigrator(runMigrateStatus),
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "force VERSION",
		Short: "Mark VERSION as applied without running it",
		Long: `Record VERSION as the applied migration and clear the dirty flag.
Use only to recover from a migration that failed halfway.`,
		Args: cobra.ExactArgs(1),
		RunE: withMigrator(func(cmd *cobra.Command, m migrator, args []string) error {
			v, err := parseForceVersion(args[0])
			if err != nil {
				return err
			}
			if err := m.Force(v); err != nil {
				return err
			}
			cmd.Printf("Forced version %d\n", v)
			return nil
		}),
	})

	return cmd
}

func withMigrator(fn func(cmd *cobra.Command, m migrator, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		databaseURL, err := migrateDatabaseURL(cmd)
		if err != nil {
			return err
		}
		m, err := newMigrator(databaseURL)
		if err != nil {
			return oops.Code("DB_CONNECT_FAILED").With("operation", "open migrator").Wrap(err)
		}
		defer func() {
			_ = m.Close() //nolint:errcheck // command result takes precedence
		}()
		return fn(cmd, m, args)
	}
}

// migrateDatabaseURL resolves the database URL from flags, environment
// and config file, ignoring the store driver.
func migrateDatabaseURL(cmd *cobra.Command) (string, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return "", err
	}
	if cfg.Database.URL == "" {
		return "", oops.Code("CONFIG_INVALID").Errorf("database url is required: set --database-url, AUTHCORE_DATABASE__URL or DATABASE_URL")
	}
	return cfg.Database.URL, nil
}

func runMigrateStatus(cmd *cobra.Command, m migrator, _ []string) error {
	version, dirty, err := m.Version()
	if err != nil {
		return err
	}
	applied, err := m.AppliedMigrations()
	if err != nil {
		return err
	}
	pending, err := m.PendingMigrations()
	if err != nil {
		return err
	}

	state := "clean"
	if dirty {
		state = "dirty"
	}
	cmd.Printf("Current version: %d (%s)\n", version, state)
	cmd.Printf("Applied: %d\n", len(applied))
	cmd.Printf("Pending: %d\n", len(pending))
	for _, v := range pending {
		name, err := store.MigrationName(v)
		if err != nil {
			return err
		}
		if name == "" {
			name = fmt.Sprintf("%06d", v)
		}
		cmd.Printf("  %s\n", name)
	}
	return nil
}

// parseForceVersion reads a leading integer from arg.
func parseForceVersion(arg string) (int, error) {
	trimmed := strings.TrimSpace(arg)
	if trimmed == "" {
		return 0, oops.Code("INVALID_VERSION").Errorf("version is required")
	}
	var v int
	if _, err := fmt.Sscanf(trimmed, "%d", &v); err != nil {
		return 0, oops.Code("INVALID_VERSION").With("version", arg).Wrap(err)
	}
	return v, nil
}
