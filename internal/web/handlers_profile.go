// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 AuthCore Contributors

package web

import (
	"context"
	"net/http"
)

type profileRequest struct {
	Value string `json:"value"`
}

// profileUpdate applies fn to the session owner with the requested value.
func (h *Handler) profileUpdate(operation string, fn func(ctx context.Context, username, value string) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req profileRequest
		if !h.decodeBody(w, r, &req) {
			return
		}
		if err := fn(r.Context(), sessionFrom(r.Context()).Username, req.Value); err != nil {
			h.writeServiceError(w, r, operation, err)
			return
		}
		writeMessage(w, http.StatusOK, "profile updated")
	}
}

func (h *Handler) updateUsername(w http.ResponseWriter, r *http.Request) {
	h.profileUpdate("update username", func(ctx context.Context, username, value string) error {
		return h.svc.Accounts.RenameUsername(ctx, sessionIDFrom(ctx), username, value)
	})(w, r)
}

func (h *Handler) updateEmail(w http.ResponseWriter, r *http.Request) {
	h.profileUpdate("update email", h.svc.Accounts.UpdateEmail)(w, r)
}

func (h *Handler) updateDisplayName(w http.ResponseWriter, r *http.Request) {
	h.profileUpdate("update display name", h.svc.Accounts.UpdateDisplayName)(w, r)
}

func (h *Handler) updateNameColor(w http.ResponseWriter, r *http.Request) {
	h.profileUpdate("update name color", h.svc.Accounts.UpdateNameColor)(w, r)
}
