package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/kanband/kanband/internal/authz"
	"github.com/kanband/kanband/internal/models"
)

func (h *Handler) ListTasks(w http.ResponseWriter, r *http.Request) {
	board, _, ok := h.loadVisibleBoard(w, r, chi.URLParam(r, "id"))
	if !ok {
		return
	}
	tasks, err := h.TaskRepo.ListByBoardID(r.Context(), board.ID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.respond(w, http.StatusOK, tasks)
}

func (h *Handler) CreateTask(w http.ResponseWriter, r *http.Request) {
	board, project, ok := h.loadVisibleBoard(w, r, chi.URLParam(r, "id"))
	if !ok {
		return
	}
	principal := CurrentPrincipal(r)

	// Board policy: when member task creation is off, only project
	// managers may add tasks.
	var allowed bool
	var err error
	if board.AllowMemberTasks {
		allowed, err = authz.CanEditInProject(r.Context(), h.ProjectRepo, project.ID, principal)
	} else {
		allowed, err = authz.CanManageProject(r.Context(), h.ProjectRepo, project, principal)
	}
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if !allowed {
		h.fail(w, r, authz.ErrForbidden)
		return
	}

	var input struct {
		ColumnID    string     `json:"column_id"`
		Title       string     `json:"title"`
		Description string     `json:"description"`
		Status      string     `json:"status"`
		Priority    string     `json:"priority"`
		AssigneeID  *string    `json:"assignee_id"`
		Deadline    *time.Time `json:"deadline"`
		Tags        []string   `json:"tags"`
	}
	if err := h.decodeJSON(w, r, &input); err != nil {
		h.fail(w, r, err)
		return
	}
	input.Title = strings.TrimSpace(input.Title)
	if input.Title == "" || len(input.Title) > 200 {
		h.fail(w, r, invalid("title is required and must be <= 200 characters"))
		return
	}
	if len(input.Description) > 2000 {
		h.fail(w, r, invalid("description too long (max 2000 chars)"))
		return
	}
	columnID, err := parseID(input.ColumnID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	column, err := h.ColumnRepo.GetByID(r.Context(), columnID)
	if err != nil || column.BoardID != board.ID {
		h.notFound(w)
		return
	}
	status := models.NormalizeStatus(input.Status)
	if status == "" {
		h.fail(w, r, invalid("invalid status value"))
		return
	}
	priority := models.NormalizePriority(input.Priority)
	if priority == "" {
		h.fail(w, r, invalid("invalid priority value"))
		return
	}
	var assigneeID *uuid.UUID
	if input.AssigneeID != nil {
		id, err := parseID(*input.AssigneeID)
		if err != nil {
			h.fail(w, r, err)
			return
		}
		assigneeID = &id
	}

	now := time.Now().UTC()
	task := &models.Task{
		ID:          uuid.New(),
		ColumnID:    columnID,
		Title:       input.Title,
		Description: input.Description,
		Status:      status,
		Priority:    priority,
		AssigneeID:  assigneeID,
		ReporterID:  principal.UserID,
		Deadline:    input.Deadline,
		Tags:        input.Tags,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	// BoardID/ProjectID are derived from the column inside Create.
	if err := h.TaskRepo.Create(r.Context(), task); err != nil {
		h.fail(w, r, err)
		return
	}
	h.Hub.BroadcastTaskEvent(task.BoardID, "task_created", task)
	w.Header().Set("Location", "/api/tasks/"+task.ID.String())
	h.respond(w, http.StatusCreated, task)
}

// loadVisibleTask resolves the task and checks project visibility.
func (h *Handler) loadVisibleTask(w http.ResponseWriter, r *http.Request) (*models.Task, bool) {
	id, err := parseID(chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, err)
		return nil, false
	}
	task, err := h.TaskRepo.GetByID(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return nil, false
	}
	project, err := h.ProjectRepo.GetByID(r.Context(), task.ProjectID)
	if err != nil {
		h.fail(w, r, err)
		return nil, false
	}
	ok, err := authz.CanViewProject(r.Context(), h.ProjectRepo, project, CurrentPrincipal(r))
	if err != nil {
		h.fail(w, r, err)
		return nil, false
	}
	if !ok {
		h.notFound(w)
		return nil, false
	}
	return task, true
}

func (h *Handler) GetTask(w http.ResponseWriter, r *http.Request) {
	task, ok := h.loadVisibleTask(w, r)
	if !ok {
		return
	}
	h.respond(w, http.StatusOK, task)
}

func (h *Handler) UpdateTask(w http.ResponseWriter, r *http.Request) {
	task, ok := h.loadVisibleTask(w, r)
	if !ok {
		return
	}
	allowed, err := authz.CanEditTask(r.Context(), h.ProjectRepo, task, CurrentPrincipal(r))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if !allowed {
		h.fail(w, r, authz.ErrForbidden)
		return
	}

	var input struct {
		Title       *string    `json:"title"`
		Description *string    `json:"description"`
		Status      *string    `json:"status"`
		Priority    *string    `json:"priority"`
		AssigneeID  *string    `json:"assignee_id"`
		Deadline    *time.Time `json:"deadline"`
		Tags        []string   `json:"tags"`
	}
	if err := h.decodeJSON(w, r, &input); err != nil {
		h.fail(w, r, err)
		return
	}
	if input.Title != nil {
		title := strings.TrimSpace(*input.Title)
		if title == "" || len(title) > 200 {
			h.fail(w, r, invalid("title is required and must be <= 200 characters"))
			return
		}
		task.Title = title
	}
	if input.Description != nil {
		if len(*input.Description) > 2000 {
			h.fail(w, r, invalid("description too long (max 2000 chars)"))
			return
		}
		task.Description = *input.Description
	}
	if input.Status != nil {
		status := models.NormalizeStatus(*input.Status)
		if status == "" {
			h.fail(w, r, invalid("invalid status value"))
			return
		}
		task.Status = status
	}
	if input.Priority != nil {
		priority := models.NormalizePriority(*input.Priority)
		if priority == "" {
			h.fail(w, r, invalid("invalid priority value"))
			return
		}
		task.Priority = priority
	}
	if input.AssigneeID != nil {
		if *input.AssigneeID == "" {
			task.AssigneeID = nil
		} else {
			id, err := parseID(*input.AssigneeID)
			if err != nil {
				h.fail(w, r, err)
				return
			}
			task.AssigneeID = &id
		}
	}
	if input.Deadline != nil {
		task.Deadline = input.Deadline
	}
	if input.Tags != nil {
		task.Tags = input.Tags
	}
	task.UpdatedAt = time.Now().UTC()

	if err := h.TaskRepo.Update(r.Context(), task); err != nil {
		h.fail(w, r, err)
		return
	}
	h.Hub.BroadcastTaskEvent(task.BoardID, "task_updated", task)
	h.respond(w, http.StatusOK, task)
}

func (h *Handler) DeleteTask(w http.ResponseWriter, r *http.Request) {
	task, ok := h.loadVisibleTask(w, r)
	if !ok {
		return
	}
	allowed, err := authz.CanEditTask(r.Context(), h.ProjectRepo, task, CurrentPrincipal(r))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if !allowed {
		h.fail(w, r, authz.ErrForbidden)
		return
	}
	if err := h.TaskRepo.Delete(r.Context(), task.ID); err != nil {
		h.fail(w, r, err)
		return
	}
	h.Hub.BroadcastTaskEvent(task.BoardID, "task_deleted", task)
	w.WriteHeader(http.StatusNoContent)
}

// MoveTask relocates a task to a column/position. The rewrite of both
// columns' positions happens in one transaction in the repository, so
// two concurrent moves cannot leave holes or duplicates.
func (h *Handler) MoveTask(w http.ResponseWriter, r *http.Request) {
	task, ok := h.loadVisibleTask(w, r)
	if !ok {
		return
	}
	allowed, err := authz.CanEditTask(r.Context(), h.ProjectRepo, task, CurrentPrincipal(r))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if !allowed {
		h.fail(w, r, authz.ErrForbidden)
		return
	}

	var input struct {
		ColumnID string `json:"column_id"`
		Position int    `json:"position"`
	}
	if err := h.decodeJSON(w, r, &input); err != nil {
		h.fail(w, r, err)
		return
	}
	columnID, err := parseID(input.ColumnID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if input.Position < 0 {
		h.fail(w, r, invalid("position must be >= 0"))
		return
	}

	moved, err := h.TaskRepo.Move(r.Context(), task.ID, columnID, input.Position)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.Hub.BroadcastTaskEvent(moved.BoardID, "task_moved", moved)
	h.respond(w, http.StatusOK, moved)
}
