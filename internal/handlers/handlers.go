// Package handlers wires the HTTP surface: one thin handler per
// resource and verb, all resolving the caller through the auth gate and
// the per-resource checks in internal/authz.
package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/kanband/kanband/internal/auth"
	"github.com/kanband/kanband/internal/authz"
	"github.com/kanband/kanband/internal/config"
	"github.com/kanband/kanband/internal/db"
	"github.com/kanband/kanband/internal/metrics"
)

type Handler struct {
	Cfg         *config.Config
	Log         *slog.Logger
	Codec       *auth.Codec
	Gate        *authz.Gate
	UserRepo    db.UserRepositoryInterface
	SessionRepo db.SessionRepositoryInterface
	ProjectRepo db.ProjectRepositoryInterface
	BoardRepo   db.BoardRepositoryInterface
	ColumnRepo  db.ColumnRepositoryInterface
	TaskRepo    db.TaskRepositoryInterface
	RateLimiter *RateLimiter
	Hub         *Hub
	Metrics     *metrics.Metrics
	HealthCheck func(r *http.Request) error
}

// envelope is the one response shape every route uses.
type envelope struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}

func (h *Handler) respond(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(envelope{Success: true, Data: data}); err != nil {
		h.Log.Error("encode response", "error", err)
	}
}

func (h *Handler) respondError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(envelope{Success: false, Error: message})
}

// validationError carries a field-level message to the client as a 400.
type validationError struct {
	msg string
}

func (e *validationError) Error() string { return e.msg }

func invalid(msg string) error { return &validationError{msg: msg} }

// fail maps a typed failure to its HTTP status. Anything unrecognized
// is an internal error: logged in full, generic message to the client.
func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	var vErr *validationError
	switch {
	case errors.As(err, &vErr):
		h.respondError(w, http.StatusBadRequest, vErr.msg)
	case errors.Is(err, authz.ErrUnauthenticated):
		h.respondError(w, http.StatusUnauthorized, "authentication required")
	case errors.Is(err, authz.ErrInvalidToken), errors.Is(err, authz.ErrSessionRevoked):
		h.clearSessionCookies(w)
		h.respondError(w, http.StatusUnauthorized, "invalid or expired session")
	case errors.Is(err, authz.ErrNotApproved):
		h.respondError(w, http.StatusUnauthorized, "account pending approval")
	case errors.Is(err, authz.ErrForbidden):
		h.respondError(w, http.StatusForbidden, "forbidden")
	case errors.Is(err, db.ErrNotFound):
		h.respondError(w, http.StatusNotFound, "not found")
	case errors.Is(err, db.ErrDuplicate):
		h.respondError(w, http.StatusConflict, "already exists")
	case errors.Is(err, db.ErrWIPLimit):
		h.respondError(w, http.StatusConflict, "column WIP limit reached")
	default:
		h.Log.Error("internal error", "method", r.Method, "path", r.URL.Path, "error", err)
		h.respondError(w, http.StatusInternalServerError, "internal error")
	}
}

// notFound hides resources the principal has no visibility into; the
// response is indistinguishable from a genuinely absent resource.
func (h *Handler) notFound(w http.ResponseWriter) {
	h.respondError(w, http.StatusNotFound, "not found")
}

func (h *Handler) decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	ct := r.Header.Get("Content-Type")
	if !strings.HasPrefix(strings.ToLower(ct), "application/json") {
		return invalid("Content-Type must be application/json")
	}
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20) // 1MB
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return invalid("invalid JSON body")
	}
	return nil
}

func parseID(raw string) (uuid.UUID, error) {
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, invalid("id must be a valid uuid")
	}
	return id, nil
}

// clientIP prefers the first X-Forwarded-For hop, falling back to the
// connection address.
func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		parts := strings.Split(fwd, ",")
		return strings.TrimSpace(parts[0])
	}
	host := r.RemoteAddr
	if i := strings.LastIndex(host, ":"); i > 0 {
		host = host[:i]
	}
	return host
}

func (h *Handler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	if h.HealthCheck != nil {
		if err := h.HealthCheck(r); err != nil {
			h.Log.Error("health check failed", "error", err)
			h.respondError(w, http.StatusServiceUnavailable, "database unavailable")
			return
		}
	}
	h.respond(w, http.StatusOK, map[string]string{"status": "ok"})
}
