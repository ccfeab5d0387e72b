// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 AuthCore Contributors

// Package observability serves Prometheus metrics and health probes for
// the auth service on a listener separate from the API.
package observability

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"slices"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/samber/oops"
)

const probeTimeout = 2 * time.Second

// Check is one named dependency probe reported by /healthz/readiness.
type Check struct {
	Name  string
	Probe func(ctx context.Context) error
}

// Server exposes /metrics, /healthz/liveness and /healthz/readiness.
type Server struct {
	addr     string
	checks   []Check
	registry *prometheus.Registry
	metrics  *Metrics
	logger   *slog.Logger

	mu       sync.Mutex
	listener net.Listener
	http     *http.Server
}

// NewServer creates a server for addr ("127.0.0.1:9100", or ":0" for an
// ephemeral port). Readiness passes only when every check passes. A nil
// logger uses slog.Default.
func NewServer(addr string, checks []Check, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return &Server{
		addr:     addr,
		checks:   checks,
		registry: registry,
		metrics:  NewMetrics(registry),
		logger:   logger,
	}
}

// AddCheck appends readiness probes.
func (s *Server) AddCheck(checks ...Check) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.checks = append(s.checks, checks...)
}

// Metrics returns the auth metrics registered on this server.
func (s *Server) Metrics() *Metrics {
	return s.metrics
}

func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("GET /metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{EnableOpenMetrics: true}))
	mux.HandleFunc("GET /healthz/liveness", s.handleLiveness)
	mux.HandleFunc("GET /healthz/readiness", s.handleReadiness)
	return mux
}

// Start listens and serves in the background. The returned channel
// receives a serve error, if any, and is closed once serving ends.
func (s *Server) Start() (<-chan error, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.http != nil {
		return nil, oops.Code("OBSERVABILITY_RUNNING").Errorf("observability server already running")
	}

	listener, err := net.Listen("tcp", s.addr)
	if err != nil {
		return nil, oops.Code("OBSERVABILITY_LISTEN_FAILED").With("addr", s.addr).Wrap(err)
	}
	srv := &http.Server{Handler: s.routes(), ReadHeaderTimeout: 10 * time.Second}
	s.listener, s.http = listener, srv

	errCh := make(chan error, 1)
	go func() {
		defer close(errCh)
		if err := srv.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("observability server failed", "error", err)
			errCh <- err
		}
	}()

	s.logger.Info("observability server started", "addr", listener.Addr().String())
	return errCh, nil
}

// Stop shuts the server down. Stopping a server that is not running is a
// no-op.
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	srv := s.http
	s.http, s.listener = nil, nil
	s.mu.Unlock()

	if srv == nil {
		return nil
	}
	if err := srv.Shutdown(ctx); err != nil {
		return oops.Code("OBSERVABILITY_SHUTDOWN_FAILED").Wrap(err)
	}
	s.logger.Info("observability server stopped")
	return nil
}

// Addr returns the bound address, or "" when not running.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

type healthReport struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

func writeReport(w http.ResponseWriter, status int, report healthReport) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(report) //nolint:errcheck // client may have gone
}

func (s *Server) handleLiveness(w http.ResponseWriter, _ *http.Request) {
	writeReport(w, http.StatusOK, healthReport{Status: "alive"})
}

func (s *Server) handleReadiness(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), probeTimeout)
	defer cancel()

	s.mu.Lock()
	checks := slices.Clone(s.checks)
	s.mu.Unlock()

	report := healthReport{Status: "ready", Checks: make(map[string]string, len(checks))}
	status := http.StatusOK
	for _, check := range checks {
		if err := check.Probe(ctx); err != nil {
			s.logger.WarnContext(r.Context(), "readiness probe failed", "check", check.Name, "error", err)
			report.Checks[check.Name] = "unavailable"
			report.Status = "not_ready"
			status = http.StatusServiceUnavailable
			continue
		}
		report.Checks[check.Name] = "ok"
	}
	writeReport(w, status, report)
}
