// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 AuthCore Contributors

package main

import (
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/forumcore/authcore/internal/config"
	"github.com/forumcore/authcore/internal/logging"
)

const serviceName = "authcore"

// Global flags available to all subcommands.
var configFile string

// NewRootCmd creates the root command for the AuthCore CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "authcore",
		Short: "AuthCore - forum authentication service",
		Long: `AuthCore serves account registration, login with brute-force
lockout, sessions and password resets for a forum.`,
		SilenceUsage: true,
	}

	flags := cmd.PersistentFlags()
	flags.StringVar(&configFile, "config", "", "config file path")
	flags.String("log-format", "json", "log format (json or text)")
	flags.String("log-level", "info", "log level (debug, info, warn, error)")
	flags.String("store", config.DriverPostgres, "credential store driver (postgres or memory)")
	flags.String("database-url", "", "PostgreSQL connection URL")

	cmd.AddCommand(NewServeCmd())
	cmd.AddCommand(NewMigrateCmd())
	cmd.AddCommand(NewSweepCmd())

	return cmd
}

// loadConfig layers defaults, the config file, the environment and the
// command's flags, then validates the result.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load(configFile, cmd.Flags())
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func newLogger(cfg *config.Config, w io.Writer) (*slog.Logger, error) {
	level, err := logging.ParseLevel(cfg.Log.Level)
	if err != nil {
		return nil, err
	}
	return logging.Setup(serviceName, version, cfg.Log.Format, level, w), nil
}
