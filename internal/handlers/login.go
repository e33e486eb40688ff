package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/kanband/kanband/internal/authz"
	"github.com/kanband/kanband/internal/db"
	"github.com/kanband/kanband/internal/models"
	"golang.org/x/crypto/bcrypt"
)

// Login verifies credentials, creates a session row, and sets the
// session cookies. Wrong email and wrong password are reported with the
// same message so the response does not reveal which accounts exist.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	if h.RateLimiter != nil && !h.RateLimiter.Allow(clientIP(r)) {
		h.respondError(w, http.StatusTooManyRequests, "too many login attempts, try again later")
		return
	}

	var input struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := h.decodeJSON(w, r, &input); err != nil {
		h.fail(w, r, err)
		return
	}

	user, err := h.UserRepo.GetByEmail(r.Context(), input.Email)
	if errors.Is(err, db.ErrNotFound) {
		h.respondError(w, http.StatusUnauthorized, "invalid email or password")
		return
	}
	if err != nil {
		// only an unknown email is a credential failure; a broken store
		// must not masquerade as one
		h.fail(w, r, err)
		return
	}
	if err := bcrypt.CompareHashAndPassword(
		[]byte(user.PasswordHash), []byte(input.Password)); err != nil {
		h.respondError(w, http.StatusUnauthorized, "invalid email or password")
		return
	}

	// Approval is checked before any session exists; a pending account
	// never gets a token.
	if h.Cfg.RequireApproval && user.Approval != models.ApprovalApproved {
		h.respondError(w, http.StatusUnauthorized, "account pending approval")
		return
	}

	token, err := h.Codec.Issue(user.ID.String(), user.Email, h.Cfg.SessionTTL)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	now := time.Now().UTC()
	session := &models.Session{
		ID:        uuid.New(),
		UserID:    user.ID,
		Token:     token,
		ExpiresAt: now.Add(h.Cfg.SessionTTL),
		CreatedAt: now,
		IP:        clientIP(r),
		UserAgent: r.UserAgent(),
	}
	if err := h.SessionRepo.Create(r.Context(), session); err != nil {
		h.fail(w, r, err)
		return
	}

	h.setSessionCookies(w, token)
	h.setCSRFCookie(w)

	h.Log.Info("user logged in", "email", user.Email)
	h.respond(w, http.StatusOK, map[string]any{
		"user":  user,
		"token": token,
	})
}

// Logout deletes the session backing the presented token and clears the
// cookies. Calling it without a live session is still a success; the
// second logout is a no-op, not an error.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	if token := authz.ExtractToken(r); token != "" {
		if _, err := h.SessionRepo.DeleteByToken(r.Context(), token); err != nil {
			h.fail(w, r, err)
			return
		}
	}
	h.clearSessionCookies(w)
	h.respond(w, http.StatusOK, map[string]string{"status": "logged out"})
}

// Me returns the resolved principal for the current session.
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	p := CurrentPrincipal(r)
	user, err := h.UserRepo.GetByID(r.Context(), p.UserID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.respond(w, http.StatusOK, user)
}

// setSessionCookies sets the HttpOnly session cookie plus the
// client-readable duplicate. Max-age matches the token TTL.
func (h *Handler) setSessionCookies(w http.ResponseWriter, token string) {
	maxAge := int(h.Cfg.SessionTTL / time.Second)
	http.SetCookie(w, &http.Cookie{
		Name:     authz.CookieToken,
		Value:    token,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   h.Cfg.Production,
		SameSite: http.SameSiteStrictMode,
	})
	http.SetCookie(w, &http.Cookie{
		Name:     authz.CookieTokenClient,
		Value:    token,
		Path:     "/",
		MaxAge:   maxAge,
		Secure:   h.Cfg.Production,
		SameSite: http.SameSiteStrictMode,
	})
}

func (h *Handler) clearSessionCookies(w http.ResponseWriter) {
	for _, name := range []string{authz.CookieToken, authz.CookieTokenClient} {
		http.SetCookie(w, &http.Cookie{
			Name:     name,
			Value:    "",
			Path:     "/",
			MaxAge:   -1,
			HttpOnly: name == authz.CookieToken,
			Secure:   h.Cfg.Production,
			SameSite: http.SameSiteStrictMode,
		})
	}
}
