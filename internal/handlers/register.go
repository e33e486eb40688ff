package handlers

import (
	"net/http"
	"regexp"
	"time"

	"github.com/google/uuid"
	"github.com/kanband/kanband/internal/models"
	"golang.org/x/crypto/bcrypt"
)

var emailRegex = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)

// Register creates an account in the pending approval state. The user
// cannot log in until an admin approves them.
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	if h.RateLimiter != nil && !h.RateLimiter.Allow(clientIP(r)) {
		h.respondError(w, http.StatusTooManyRequests, "too many attempts, try again later")
		return
	}

	var input struct {
		Email    string `json:"email"`
		Name     string `json:"name"`
		Password string `json:"password"`
	}
	if err := h.decodeJSON(w, r, &input); err != nil {
		h.fail(w, r, err)
		return
	}
	if !emailRegex.MatchString(input.Email) {
		h.fail(w, r, invalid("invalid email"))
		return
	}
	if len(input.Password) < 8 {
		h.fail(w, r, invalid("password must be at least 8 characters long"))
		return
	}
	if len(input.Name) > 100 {
		h.fail(w, r, invalid("name too long (max 100 chars)"))
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(input.Password), bcrypt.DefaultCost)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	now := time.Now().UTC()
	user := &models.User{
		ID:           uuid.New(),
		Email:        input.Email,
		Name:         input.Name,
		PasswordHash: string(hash),
		Role:         models.RoleUser,
		Approval:     models.ApprovalPending,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := h.UserRepo.Create(r.Context(), user); err != nil {
		h.fail(w, r, err)
		return
	}

	h.Log.Info("user registered", "email", user.Email)
	h.respond(w, http.StatusCreated, user)
}
