package handlers

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"net/http"
	"strconv"

	"github.com/kanband/kanband/internal/authz"
)

type contextKey string

const principalKey contextKey = "principal"

// CurrentPrincipal returns the authenticated caller, or nil on routes
// that did not pass through RequireAuth.
func CurrentPrincipal(r *http.Request) *authz.Principal {
	p, _ := r.Context().Value(principalKey).(*authz.Principal)
	return p
}

// CSRF cookie/header pair for the double-submit check.
const (
	CSRFCookie = "csrf-token"
	CSRFHeader = "X-CSRF-Token"
)

// CSRFMiddleware enforces the double-submit contract on state-changing
// requests: the header must equal the cookie. It runs before the auth
// gate in the pipeline.
func (h *Handler) CSRFMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet, http.MethodHead, http.MethodOptions:
			next.ServeHTTP(w, r)
			return
		}
		cookie, err := r.Cookie(CSRFCookie)
		if err != nil || cookie.Value == "" {
			h.respondError(w, http.StatusForbidden, "missing CSRF token")
			return
		}
		header := r.Header.Get(CSRFHeader)
		if subtle.ConstantTimeCompare([]byte(cookie.Value), []byte(header)) != 1 {
			h.respondError(w, http.StatusForbidden, "CSRF token mismatch")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// setCSRFCookie issues a fresh double-submit token. Not HttpOnly: the
// client must read it back into the request header.
func (h *Handler) setCSRFCookie(w http.ResponseWriter) string {
	b := make([]byte, 32)
	_, _ = rand.Read(b)
	token := hex.EncodeToString(b)
	http.SetCookie(w, &http.Cookie{
		Name:     CSRFCookie,
		Value:    token,
		Path:     "/",
		Secure:   h.Cfg.Production,
		SameSite: http.SameSiteStrictMode,
	})
	return token
}

// HandleCSRF hands a fresh CSRF token to clients before their first
// state-changing request.
func (h *Handler) HandleCSRF(w http.ResponseWriter, r *http.Request) {
	token := h.setCSRFCookie(w)
	h.respond(w, http.StatusOK, map[string]string{"csrf_token": token})
}

// RequireAuth resolves the caller through the auth gate and stores the
// principal in the request context. Every guarded route is part of the
// JSON API, so failures always answer 401 JSON; fail also clears stale
// session cookies for token errors.
func (h *Handler) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		principal, err := h.Gate.Authenticate(r.Context(), r)
		if err != nil {
			if h.Metrics != nil {
				h.Metrics.AuthFailures.WithLabelValues(err.Error()).Inc()
			}
			h.fail(w, r, err)
			return
		}
		ctx := context.WithValue(r.Context(), principalKey, principal)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireAdmin guards the admin-only route group. Runs after
// RequireAuth.
func (h *Handler) RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !authz.IsAdmin(CurrentPrincipal(r)) {
			h.fail(w, r, authz.ErrForbidden)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// MetricsMiddleware counts every request by method and status code.
func (h *Handler) MetricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if h.Metrics == nil {
			next.ServeHTTP(w, r)
			return
		}
		sw := &statusWriter{ResponseWriter: w, code: http.StatusOK}
		next.ServeHTTP(sw, r)
		h.Metrics.RequestsTotal.WithLabelValues(r.Method, strconv.Itoa(sw.code)).Inc()
	})
}

type statusWriter struct {
	http.ResponseWriter
	code int
}

func (w *statusWriter) WriteHeader(code int) {
	w.code = code
	w.ResponseWriter.WriteHeader(code)
}
