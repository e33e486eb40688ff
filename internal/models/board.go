package models

import (
	"time"

	"github.com/google/uuid"
)

type Board struct {
	ID         uuid.UUID  `json:"id"`
	ProjectID  uuid.UUID  `json:"project_id"`
	Name       string     `json:"name"`
	Position   int        `json:"position"`
	Visibility Visibility `json:"visibility"`
	// AllowMemberTasks controls whether plain members may create tasks,
	// or only project admins and the owner.
	AllowMemberTasks bool      `json:"allow_member_tasks"`
	WIPEnforced      bool      `json:"wip_enforced"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}
