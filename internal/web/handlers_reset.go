// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 AuthCore Contributors

package web

import "net/http"

type resetEmailRequest struct {
	Email string `json:"email"`
}

// requestReset answers the same way whether or not the email is registered.
func (h *Handler) requestReset(w http.ResponseWriter, r *http.Request) {
	var req resetEmailRequest
	if !h.decodeBody(w, r, &req) {
		return
	}
	if err := h.svc.Resets.RequestReset(r.Context(), req.Email); err != nil {
		h.writeServiceError(w, r, "request reset", err)
		return
	}
	writeMessage(w, http.StatusOK, "if the email is registered, a reset link has been sent")
}

func (h *Handler) validateReset(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	email, err := h.svc.Resets.Validate(r.Context(), q.Get("email"), q.Get("token"))
	if err != nil {
		h.writeServiceError(w, r, "validate reset token", err)
		return
	}
	writeSuccess(w, http.StatusOK, map[string]any{"valid": true, "email": email})
}

type resetPasswordRequest struct {
	Email    string `json:"email"`
	Token    string `json:"token"`
	Password string `json:"password"`
}

func (h *Handler) resetPassword(w http.ResponseWriter, r *http.Request) {
	var req resetPasswordRequest
	if !h.decodeBody(w, r, &req) {
		return
	}
	if err := h.svc.Resets.ResetPassword(r.Context(), req.Email, req.Token, req.Password); err != nil {
		h.writeServiceError(w, r, "reset password", err)
		return
	}
	writeMessage(w, http.StatusOK, "password updated")
}
