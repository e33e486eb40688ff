package authz

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/kanband/kanband/internal/auth"
	"github.com/kanband/kanband/internal/db"
	"github.com/kanband/kanband/internal/models"
)

// Cookie names used for the session token. CookieToken is HttpOnly;
// CookieTokenClient duplicates the value for client-side reads.
const (
	CookieToken       = "auth-token"
	CookieTokenClient = "auth-token-client"
)

// SessionStore is the slice of the session repository the gate needs.
type SessionStore interface {
	FindLiveByToken(ctx context.Context, token string) (*models.Session, error)
}

// UserStore is the slice of the user repository the gate needs.
type UserStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.User, error)
}

// Gate is the single choke point every protected route resolves the
// caller through. Token precedence is fixed: the auth-token cookie
// wins, the Authorization header is the fallback for cookie-less API
// clients. There is deliberately no other order.
type Gate struct {
	codec    *auth.Codec
	sessions SessionStore
	users    UserStore
	// requireApproval gates login and authentication on the account's
	// approval state. One policy switch instead of per-route decisions.
	requireApproval bool
}

func NewGate(codec *auth.Codec, sessions SessionStore, users UserStore, requireApproval bool) *Gate {
	return &Gate{
		codec:           codec,
		sessions:        sessions,
		users:           users,
		requireApproval: requireApproval,
	}
}

// ExtractToken pulls the credential off the request: cookie first,
// then "Authorization: Bearer". Empty string when neither is present.
func ExtractToken(r *http.Request) string {
	if c, err := r.Cookie(CookieToken); err == nil && c.Value != "" {
		return c.Value
	}
	header := r.Header.Get("Authorization")
	if strings.HasPrefix(header, "Bearer ") {
		return strings.TrimPrefix(header, "Bearer ")
	}
	return ""
}

// Authenticate resolves the caller to a Principal or one of the typed
// failures: ErrUnauthenticated, ErrInvalidToken, ErrSessionRevoked,
// ErrNotApproved. No side effects on success; on failure the caller is
// responsible for the 401 and for clearing stale cookies.
func (g *Gate) Authenticate(ctx context.Context, r *http.Request) (*Principal, error) {
	tokenString := ExtractToken(r)
	if tokenString == "" {
		return nil, ErrUnauthenticated
	}

	claims, err := g.codec.Verify(tokenString)
	if err != nil {
		return nil, ErrInvalidToken
	}
	userID, err := uuid.Parse(claims.Subject)
	if err != nil {
		return nil, ErrInvalidToken
	}

	// The token alone is not enough: logout and forced revoke must
	// take effect before the token expires.
	session, err := g.sessions.FindLiveByToken(ctx, tokenString)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return nil, ErrSessionRevoked
		}
		return nil, fmt.Errorf("session lookup: %w", err)
	}
	if session.UserID != userID {
		return nil, ErrInvalidToken
	}

	user, err := g.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return nil, ErrSessionRevoked
		}
		return nil, fmt.Errorf("user lookup: %w", err)
	}
	if g.requireApproval && user.Approval != models.ApprovalApproved {
		return nil, ErrNotApproved
	}

	return &Principal{
		UserID:   user.ID,
		Email:    user.Email,
		Role:     user.Role,
		Approval: user.Approval,
	}, nil
}
