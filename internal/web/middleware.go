// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 AuthCore Contributors

package web

import (
	"context"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/forumcore/authcore/internal/auth"
)

type ctxKey string

const (
	ctxKeySessionID ctxKey = "session_id"
	ctxKeySession   ctxKey = "session"
)

func (h *Handler) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		fields := []any{
			"method", r.Method,
			"path", r.URL.Path,
			"status_code", status,
			"bytes", ww.BytesWritten(),
			"duration_ms", time.Since(start).Milliseconds(),
			"request_id", middleware.GetReqID(r.Context()),
		}
		switch {
		case status >= 500:
			h.logger.ErrorContext(r.Context(), "http request completed", fields...)
		case status >= 400:
			h.logger.WarnContext(r.Context(), "http request completed", fields...)
		default:
			h.logger.DebugContext(r.Context(), "http request completed", fields...)
		}
	})
}

func (h *Handler) setSessionCookie(w http.ResponseWriter, sessionID string) {
	http.SetCookie(w, &http.Cookie{
		Name:     h.cfg.CookieName,
		Value:    sessionID,
		Path:     "/",
		MaxAge:   int(h.cfg.CookieMaxAge / time.Second),
		HttpOnly: true,
		Secure:   h.cfg.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
}

func (h *Handler) clearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     h.cfg.CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.cfg.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
}

// sessionCookie gives every client a transport session id, minting one
// when the request carries none.
func (h *Handler) sessionCookie(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var sessionID string
		if c, err := r.Cookie(h.cfg.CookieName); err == nil && c.Value != "" {
			sessionID = c.Value
		} else {
			id, genErr := auth.GenerateSessionID()
			if genErr != nil {
				h.writeServiceError(w, r, "generate session id", genErr)
				return
			}
			sessionID = id
			h.setSessionCookie(w, sessionID)
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), ctxKeySessionID, sessionID)))
	})
}

func sessionIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(ctxKeySessionID).(string)
	return id
}

func (h *Handler) requireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		session, err := h.svc.Sessions.Resolve(r.Context(), sessionIDFrom(r.Context()))
		if err != nil {
			h.writeServiceError(w, r, "resolve session", err)
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), ctxKeySession, session)))
	})
}

func sessionFrom(ctx context.Context) *auth.Session {
	s, _ := ctx.Value(ctxKeySession).(*auth.Session)
	return s
}

// clientIP returns the first X-Forwarded-For hop or X-Real-IP when proxies
// are trusted, otherwise the socket peer.
func (h *Handler) clientIP(r *http.Request) string {
	if h.cfg.TrustProxy {
		if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
			first, _, _ := strings.Cut(xff, ",")
			if ip := strings.TrimSpace(first); ip != "" {
				return ip
			}
		}
		if ip := strings.TrimSpace(r.Header.Get("X-Real-IP")); ip != "" {
			return ip
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
