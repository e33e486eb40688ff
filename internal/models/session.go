package models

import (
	"time"

	"github.com/google/uuid"
)

// Session binds a signed token to a user. Expiry is enforced at read
// time against the database clock; rows for expired sessions may linger
// until the next logout or forced revoke.
type Session struct {
	ID        uuid.UUID `json:"id"`
	UserID    uuid.UUID `json:"user_id"`
	Token     string    `json:"-"`
	ExpiresAt time.Time `json:"expires_at"`
	CreatedAt time.Time `json:"created_at"`
	IP        string    `json:"ip,omitempty"`
	UserAgent string    `json:"user_agent,omitempty"`
}
