// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 AuthCore Contributors

package web

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/samber/oops"

	"github.com/forumcore/authcore/internal/auth"
	"github.com/forumcore/authcore/pkg/errutil"
)

const maxBodyBytes = 1 << 20

type apiError struct {
	Status  string `json:"status"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeSuccess(w http.ResponseWriter, status int, data any) {
	writeJSON(w, status, map[string]any{
		"status": "success",
		"data":   data,
	})
}

func writeMessage(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]any{
		"status":  "success",
		"message": message,
	})
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, apiError{Status: "error", Code: code, Message: message})
}

func (h *Handler) decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	err := dec.Decode(dst)
	if err == nil {
		if extra := dec.Decode(&struct{}{}); !errors.Is(extra, io.EOF) {
			err = errors.New("request body must contain a single JSON value")
		}
	}
	if err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error())
		return false
	}
	return true
}

// statusFor maps an error kind to an HTTP status.
func statusFor(err error) int {
	switch {
	case auth.IsValidation(err):
		return http.StatusBadRequest
	case auth.CodeOf(err) == "AUTH_LOCKED_OUT":
		return http.StatusTooManyRequests
	case auth.IsRejected(err):
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}

// writeServiceError writes err with its code for validation and rejection
// errors. Store, hashing and unclassified errors are logged and answered
// with a generic message.
func (h *Handler) writeServiceError(w http.ResponseWriter, r *http.Request, operation string, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		errutil.LogError(r.Context(), h.logger, "request failed", oops.With("operation", operation).Wrap(err))
		writeError(w, status, "INTERNAL_ERROR", "internal server error")
		return
	}
	writeError(w, status, auth.CodeOf(err), err.Error())
}

func (h *Handler) writeLockout(w http.ResponseWriter, err error, d auth.LockoutDecision) {
	seconds := int((d.RemainingTime + time.Second - 1) / time.Second)
	w.Header().Set("Retry-After", strconv.Itoa(seconds))
	writeJSON(w, http.StatusTooManyRequests, map[string]any{
		"status":              "error",
		"code":                auth.CodeOf(err),
		"message":             err.Error(),
		"retry_after_minutes": d.RetryAfterMinutes(),
	})
}
