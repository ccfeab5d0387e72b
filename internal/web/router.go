// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 AuthCore Contributors

// Package web exposes the auth services as a JSON API.
package web

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/samber/oops"

	"github.com/forumcore/authcore/internal/auth"
)

// DefaultCookieName is the session cookie name.
const DefaultCookieName = "sid"

// Config controls cookies and client address resolution.
type Config struct {
	CookieName   string
	CookieSecure bool
	// CookieMaxAge defaults to auth.DefaultSessionAbsoluteTTL.
	CookieMaxAge time.Duration
	// TrustProxy takes the client address from X-Forwarded-For or X-Real-IP.
	TrustProxy bool
}

// Services are the auth operations the API exposes.
type Services struct {
	Auth     *auth.Service
	Accounts *auth.AccountService
	Resets   *auth.ResetService
	Sessions *auth.SessionManager
	Tracker  *auth.LoginTracker
}

// Handler serves the API.
type Handler struct {
	svc    Services
	cfg    Config
	logger *slog.Logger
}

// NewHandler creates a Handler. A nil logger uses slog.Default.
func NewHandler(svc Services, cfg Config, logger *slog.Logger) (*Handler, error) {
	if svc.Auth == nil || svc.Accounts == nil || svc.Resets == nil || svc.Sessions == nil || svc.Tracker == nil {
		return nil, oops.Errorf("all auth services are required")
	}
	if cfg.CookieName == "" {
		cfg.CookieName = DefaultCookieName
	}
	if cfg.CookieMaxAge <= 0 {
		cfg.CookieMaxAge = svc.Sessions.AbsoluteTTL()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{svc: svc, cfg: cfg, logger: logger}, nil
}

// NewRouter registers the API routes.
func NewRouter(h *Handler) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(h.logRequests)
	r.Use(middleware.Recoverer)
	r.Use(h.sessionCookie)

	r.Post("/register", h.register)
	r.Post("/login", h.login)
	r.Get("/login/status", h.loginStatus)
	r.Post("/logout", h.logout)
	r.Post("/reset-password-email", h.requestReset)
	r.Get("/reset-password", h.validateReset)
	r.Post("/reset-password", h.resetPassword)

	r.Group(func(r chi.Router) {
		r.Use(h.requireSession)
		r.Get("/session", h.session)
		r.Route("/profile", func(r chi.Router) {
			r.Post("/username", h.updateUsername)
			r.Post("/email", h.updateEmail)
			r.Post("/display-name", h.updateDisplayName)
			r.Post("/name-color", h.updateNameColor)
		})
	})

	return r
}
