// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 AuthCore Contributors

package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/forumcore/authcore/internal/config"
	"github.com/forumcore/authcore/internal/observability"
	"github.com/forumcore/authcore/internal/sweeper"
	"github.com/forumcore/authcore/internal/web"
)

const shutdownTimeout = 5 * time.Second

// NewServeCmd creates the serve subcommand.
func NewServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the auth API server",
		Long: `Start the HTTP API along with the observability endpoints and the
background cleanup of expired attempts, sessions and reset tokens.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServeWithDeps(cmd, args, ServeDeps{})
		},
	}

	flags := cmd.Flags()
	flags.String("http-addr", "127.0.0.1:8080", "API listen address")
	flags.String("base-url", "http://localhost:8080", "public base URL used in reset links")
	flags.String("metrics-addr", "127.0.0.1:9100", "observability listen address (empty to disable)")
	flags.String("session-store", config.SessionBackendStore, "session backend (store or redis)")
	flags.String("redis-addr", "127.0.0.1:6379", "Redis address for the redis session backend")
	flags.String("mail-driver", config.MailDriverLog, "reset mail delivery (log or smtp)")

	return cmd
}

func runServeWithDeps(cmd *cobra.Command, _ []string, deps ServeDeps) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	logger, err := newLogger(cfg, cmd.ErrOrStderr())
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	var (
		obsServer *observability.Server
		metrics   *observability.Metrics
	)
	if cfg.Metrics.Addr != "" {
		obsServer = observability.NewServer(cfg.Metrics.Addr, nil, logger)
		metrics = obsServer.Metrics()
	}

	comps, err := buildComponents(ctx, cfg, logger, metrics, deps)
	if err != nil {
		return err
	}
	defer comps.Close()
	if obsServer != nil {
		obsServer.AddCheck(comps.readinessChecks()...)
	}

	var observe sweeper.Observer
	if metrics != nil {
		observe = metrics.RecordSweep
	}
	sched, err := sweeper.New(sweeper.AuthTasks(comps.tracker, comps.resets, comps.sessions, sweeper.Intervals{
		Attempts: cfg.Lockout.CleanupInterval,
		Resets:   cfg.Reset.SweepInterval,
		Sessions: cfg.Session.SweepInterval,
	}), logger, observe)
	if err != nil {
		return err
	}

	handler, err := web.NewHandler(comps.services(), web.Config{
		CookieName:   cfg.HTTP.CookieName,
		CookieSecure: cfg.HTTP.CookieSecure,
		CookieMaxAge: cfg.Session.AbsoluteTTL,
		TrustProxy:   cfg.HTTP.TrustProxy,
	}, logger)
	if err != nil {
		return err
	}

	listener, err := net.Listen("tcp", cfg.HTTP.Addr)
	if err != nil {
		return oops.Code("HTTP_LISTEN_FAILED").With("addr", cfg.HTTP.Addr).Wrap(err)
	}
	httpServer := &http.Server{
		Handler:           web.NewRouter(handler),
		ReadHeaderTimeout: 10 * time.Second,
	}
	httpErr := make(chan error, 1)
	go func() {
		if serveErr := httpServer.Serve(listener); serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
			httpErr <- serveErr
		}
	}()

	var obsErr <-chan error
	if obsServer != nil {
		if obsErr, err = obsServer.Start(); err != nil {
			_ = httpServer.Close() //nolint:errcheck // startup error takes precedence
			return oops.Code("OBSERVABILITY_START_FAILED").Wrap(err)
		}
	}

	sched.Start(ctx)

	logger.Info("authcore started",
		"http_addr", listener.Addr().String(),
		"store", cfg.Store.Driver,
		"session_backend", cfg.Session.Backend,
		"mail_driver", cfg.Mail.Driver)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	var runErr error
	select {
	case sig := <-sigChan:
		logger.Info("received shutdown signal", "signal", sig.String())
	case err := <-httpErr:
		runErr = oops.Code("HTTP_SERVE_FAILED").Wrap(err)
	case err, ok := <-obsErr:
		if ok && err != nil {
			runErr = oops.Code("OBSERVABILITY_SERVE_FAILED").Wrap(err)
		}
	case <-ctx.Done():
		logger.Info("context cancelled, shutting down")
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	sched.Stop()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("error stopping API server", "error", err)
	}
	if obsServer != nil {
		if err := obsServer.Stop(shutdownCtx); err != nil {
			logger.Warn("error stopping observability server", "error", err)
		}
	}

	logger.Info("authcore stopped")
	return runErr
}
