package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/kanband/kanband/internal/authz"
	"github.com/kanband/kanband/internal/models"
)

// Admin-only user management. The whole group sits behind RequireAdmin.

func (h *Handler) ListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.UserRepo.List(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.respond(w, http.StatusOK, users)
}

// ApproveUser flips a pending account to approved so it can log in.
func (h *Handler) ApproveUser(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if err := h.UserRepo.UpdateApproval(r.Context(), id, models.ApprovalApproved); err != nil {
		h.fail(w, r, err)
		return
	}
	h.Log.Info("user approved", "user_id", id)
	h.respond(w, http.StatusOK, map[string]string{"status": "approved"})
}

func (h *Handler) UpdateUserRole(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	var input struct {
		Role string `json:"role"`
	}
	if err := h.decodeJSON(w, r, &input); err != nil {
		h.fail(w, r, err)
		return
	}
	if !models.ValidRole(input.Role) {
		h.fail(w, r, invalid("role must be admin, manager or user"))
		return
	}
	if err := h.UserRepo.UpdateRole(r.Context(), id, models.Role(input.Role)); err != nil {
		h.fail(w, r, err)
		return
	}
	h.respond(w, http.StatusOK, map[string]string{"status": "updated"})
}

// DeleteUser removes an account. Self-delete is refused so an admin
// cannot cut off their own access mid-session.
func (h *Handler) DeleteUser(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if !authz.CanDeleteUser(id, CurrentPrincipal(r)) {
		h.fail(w, r, authz.ErrForbidden)
		return
	}
	if err := h.UserRepo.Delete(r.Context(), id); err != nil {
		h.fail(w, r, err)
		return
	}
	h.Log.Info("user deleted", "user_id", id)
	w.WriteHeader(http.StatusNoContent)
}

// RevokeUserSessions is the admin-forced revoke: every session of the
// target user dies immediately, regardless of token expiry.
func (h *Handler) RevokeUserSessions(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	n, err := h.SessionRepo.DeleteByUserID(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.Log.Info("sessions revoked", "user_id", id, "count", n)
	h.respond(w, http.StatusOK, map[string]any{"revoked": n})
}
