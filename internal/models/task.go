package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

type TaskStatus string

const (
	TaskStatusTodo       TaskStatus = "todo"
	TaskStatusInProgress TaskStatus = "in_progress"
	TaskStatusReview     TaskStatus = "review"
	TaskStatusDone       TaskStatus = "done"
	TaskStatusBlocked    TaskStatus = "blocked"
)

type TaskPriority string

const (
	TaskPriorityLow    TaskPriority = "low"
	TaskPriorityMedium TaskPriority = "medium"
	TaskPriorityHigh   TaskPriority = "high"
	TaskPriorityUrgent TaskPriority = "urgent"
)

// Task keeps denormalized BoardID/ProjectID alongside ColumnID. The
// repository derives them from the column on create and move so they can
// never disagree with the column's actual board and project.
type Task struct {
	ID          uuid.UUID    `json:"id"`
	ColumnID    uuid.UUID    `json:"column_id"`
	BoardID     uuid.UUID    `json:"board_id"`
	ProjectID   uuid.UUID    `json:"project_id"`
	Title       string       `json:"title"`
	Description string       `json:"description"`
	Status      TaskStatus   `json:"status"`
	Priority    TaskPriority `json:"priority"`
	AssigneeID  *uuid.UUID   `json:"assignee_id"`
	ReporterID  uuid.UUID    `json:"reporter_id"`
	Position    int          `json:"position"`
	Deadline    *time.Time   `json:"deadline"`
	Tags        []string     `json:"tags"`
	CreatedAt   time.Time    `json:"created_at"`
	UpdatedAt   time.Time    `json:"updated_at"`
}

// NormalizeStatus converts common user spellings to a canonical status.
// Returns "" for values that are not a status at all.
func NormalizeStatus(s string) TaskStatus {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "todo", "to_do", "to-do":
		return TaskStatusTodo
	case "in-progress", "in_progress", "inprogress", "in progress":
		return TaskStatusInProgress
	case "review", "in_review", "in-review":
		return TaskStatusReview
	case "done":
		return TaskStatusDone
	case "blocked":
		return TaskStatusBlocked
	default:
		return ""
	}
}

// NormalizePriority maps user input to a canonical priority, defaulting
// to medium for the empty string.
func NormalizePriority(s string) TaskPriority {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "medium", "normal":
		return TaskPriorityMedium
	case "low":
		return TaskPriorityLow
	case "high":
		return TaskPriorityHigh
	case "urgent", "critical":
		return TaskPriorityUrgent
	default:
		return ""
	}
}
