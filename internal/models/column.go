package models

import (
	"time"

	"github.com/google/uuid"
)

type Column struct {
	ID       uuid.UUID `json:"id"`
	BoardID  uuid.UUID `json:"board_id"`
	Name     string    `json:"name"`
	Position int       `json:"position"`
	Color    string    `json:"color"`
	// WIPLimit caps tasks in the column when the board enforces WIP;
	// nil means unlimited.
	WIPLimit  *int      `json:"wip_limit"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
