// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 AuthCore Contributors

package web

import (
	"net/http"
	"time"

	"github.com/forumcore/authcore/internal/auth"
	"github.com/forumcore/authcore/pkg/errutil"
)

type userView struct {
	ID          string     `json:"id"`
	Username    string     `json:"username"`
	Email       string     `json:"email"`
	DisplayName string     `json:"display_name"`
	NameColor   string     `json:"name_color"`
	LastLogin   *time.Time `json:"last_login,omitempty"`
}

func viewOf(u *auth.User) userView {
	return userView{
		ID:          u.ID.String(),
		Username:    u.Username,
		Email:       u.Email,
		DisplayName: u.DisplayName,
		NameColor:   u.NameColor,
		LastLogin:   u.LastLogin,
	}
}

type lockoutView struct {
	Locked            bool `json:"locked"`
	Attempts          int  `json:"attempts"`
	RemainingAttempts int  `json:"remaining_attempts"`
	RetryAfterMinutes int  `json:"retry_after_minutes"`
}

func lockoutOf(d auth.LockoutDecision) lockoutView {
	return lockoutView{
		Locked:            d.Locked,
		Attempts:          d.Attempts,
		RemainingAttempts: d.RemainingAttempts,
		RetryAfterMinutes: d.RetryAfterMinutes(),
	}
}

type registerRequest struct {
	Username    string `json:"username"`
	Password    string `json:"password"`
	Email       string `json:"email"`
	DisplayName string `json:"display_name"`
}

func (h *Handler) register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if !h.decodeBody(w, r, &req) {
		return
	}
	user, err := h.svc.Accounts.Register(r.Context(), auth.Registration{
		Username:    req.Username,
		Password:    req.Password,
		Email:       req.Email,
		DisplayName: req.DisplayName,
	})
	if err != nil {
		h.writeServiceError(w, r, "register", err)
		return
	}
	writeSuccess(w, http.StatusCreated, viewOf(user))
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (h *Handler) login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !h.decodeBody(w, r, &req) {
		return
	}

	// A successful login always moves to a fresh id so an id planted
	// before authentication never becomes a live session.
	previous := sessionIDFrom(r.Context())
	next, err := auth.GenerateSessionID()
	if err != nil {
		h.writeServiceError(w, r, "login", err)
		return
	}

	result, err := h.svc.Auth.Login(r.Context(), auth.LoginRequest{
		IP:        h.clientIP(r),
		SessionID: next,
		Username:  req.Username,
		Password:  req.Password,
	})
	if err != nil {
		switch {
		case auth.CodeOf(err) == "AUTH_LOCKED_OUT":
			h.writeLockout(w, err, result.Lockout)
		case auth.IsRejected(err):
			writeJSON(w, http.StatusUnauthorized, map[string]any{
				"status":             "error",
				"code":               auth.CodeOf(err),
				"message":            err.Error(),
				"remaining_attempts": result.Lockout.RemainingAttempts,
			})
		default:
			h.writeServiceError(w, r, "login", err)
		}
		return
	}

	if previous != "" && previous != next {
		if err := h.svc.Sessions.Revoke(r.Context(), previous); err != nil {
			errutil.LogWarn(r.Context(), h.logger, "best-effort pre-login session revoke failed", err)
		}
	}
	h.setSessionCookie(w, next)
	writeSuccess(w, http.StatusOK, map[string]any{
		"username":     result.Identity.Username,
		"display_name": result.Identity.DisplayName,
	})
}

func (h *Handler) loginStatus(w http.ResponseWriter, r *http.Request) {
	username := r.URL.Query().Get("username")
	if username == "" {
		writeError(w, http.StatusBadRequest, "USERNAME_REQUIRED", "username is required")
		return
	}
	decision, err := h.svc.Tracker.Status(r.Context(), h.clientIP(r), username)
	if err != nil {
		h.writeServiceError(w, r, "login status", err)
		return
	}
	writeSuccess(w, http.StatusOK, lockoutOf(decision))
}

func (h *Handler) logout(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Auth.Logout(r.Context(), sessionIDFrom(r.Context())); err != nil {
		h.writeServiceError(w, r, "logout", err)
		return
	}
	h.clearSessionCookie(w)
	writeMessage(w, http.StatusOK, "logged out")
}

func (h *Handler) session(w http.ResponseWriter, r *http.Request) {
	user, err := h.svc.Accounts.Lookup(r.Context(), sessionFrom(r.Context()).Username)
	if err != nil {
		h.writeServiceError(w, r, "load session user", err)
		return
	}
	writeSuccess(w, http.StatusOK, viewOf(user))
}
