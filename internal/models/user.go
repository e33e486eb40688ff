package models

import (
	"time"

	"github.com/google/uuid"
)

type Role string

const (
	RoleAdmin   Role = "admin"
	RoleManager Role = "manager"
	RoleUser    Role = "user"
)

// ApprovalState gates login: freshly registered accounts stay pending
// until an admin approves them.
type ApprovalState string

const (
	ApprovalPending  ApprovalState = "pending"
	ApprovalApproved ApprovalState = "approved"
)

type User struct {
	ID           uuid.UUID     `json:"id"`
	Email        string        `json:"email"`
	Name         string        `json:"name"`
	PasswordHash string        `json:"-"`
	Role         Role          `json:"role"`
	Approval     ApprovalState `json:"approval"`
	CreatedAt    time.Time     `json:"created_at"`
	UpdatedAt    time.Time     `json:"updated_at"`
}

func ValidRole(r string) bool {
	switch Role(r) {
	case RoleAdmin, RoleManager, RoleUser:
		return true
	}
	return false
}
