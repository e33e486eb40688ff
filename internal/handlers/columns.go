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

func (h *Handler) CreateColumn(w http.ResponseWriter, r *http.Request) {
	board, project, ok := h.loadVisibleBoard(w, r, chi.URLParam(r, "id"))
	if !ok {
		return
	}
	allowed, err := authz.CanEditInProject(r.Context(), h.ProjectRepo, project.ID, CurrentPrincipal(r))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if !allowed {
		h.fail(w, r, authz.ErrForbidden)
		return
	}

	var input struct {
		Name     string `json:"name"`
		Color    string `json:"color"`
		WIPLimit *int   `json:"wip_limit"`
	}
	if err := h.decodeJSON(w, r, &input); err != nil {
		h.fail(w, r, err)
		return
	}
	input.Name = strings.TrimSpace(input.Name)
	if input.Name == "" || len(input.Name) > 100 {
		h.fail(w, r, invalid("name is required and must be <= 100 characters"))
		return
	}
	if input.WIPLimit != nil && *input.WIPLimit < 1 {
		h.fail(w, r, invalid("wip_limit must be positive"))
		return
	}

	now := time.Now().UTC()
	column := &models.Column{
		ID:        uuid.New(),
		BoardID:   board.ID,
		Name:      input.Name,
		Color:     input.Color,
		WIPLimit:  input.WIPLimit,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := h.ColumnRepo.Create(r.Context(), column); err != nil {
		h.fail(w, r, err)
		return
	}
	h.respond(w, http.StatusCreated, column)
}

// loadEditableColumn resolves a column through its board and project
// and requires an editing membership.
func (h *Handler) loadEditableColumn(w http.ResponseWriter, r *http.Request) (*models.Column, bool) {
	id, err := parseID(chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, err)
		return nil, false
	}
	column, err := h.ColumnRepo.GetByID(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return nil, false
	}
	_, project, ok := h.loadVisibleBoard(w, r, column.BoardID.String())
	if !ok {
		return nil, false
	}
	allowed, err := authz.CanEditInProject(r.Context(), h.ProjectRepo, project.ID, CurrentPrincipal(r))
	if err != nil {
		h.fail(w, r, err)
		return nil, false
	}
	if !allowed {
		h.fail(w, r, authz.ErrForbidden)
		return nil, false
	}
	return column, true
}

func (h *Handler) UpdateColumn(w http.ResponseWriter, r *http.Request) {
	column, ok := h.loadEditableColumn(w, r)
	if !ok {
		return
	}

	var input struct {
		Name     *string `json:"name"`
		Color    *string `json:"color"`
		WIPLimit *int    `json:"wip_limit"`
	}
	if err := h.decodeJSON(w, r, &input); err != nil {
		h.fail(w, r, err)
		return
	}
	if input.Name != nil {
		name := strings.TrimSpace(*input.Name)
		if name == "" || len(name) > 100 {
			h.fail(w, r, invalid("name is required and must be <= 100 characters"))
			return
		}
		column.Name = name
	}
	if input.Color != nil {
		column.Color = *input.Color
	}
	if input.WIPLimit != nil {
		if *input.WIPLimit < 1 {
			h.fail(w, r, invalid("wip_limit must be positive"))
			return
		}
		column.WIPLimit = input.WIPLimit
	}
	column.UpdatedAt = time.Now().UTC()

	if err := h.ColumnRepo.Update(r.Context(), column); err != nil {
		h.fail(w, r, err)
		return
	}
	h.respond(w, http.StatusOK, column)
}

func (h *Handler) DeleteColumn(w http.ResponseWriter, r *http.Request) {
	column, ok := h.loadEditableColumn(w, r)
	if !ok {
		return
	}
	if err := h.ColumnRepo.Delete(r.Context(), column.ID); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ReorderColumns rewrites the positions of all the board's columns in
// one transaction; partial orders are refused.
func (h *Handler) ReorderColumns(w http.ResponseWriter, r *http.Request) {
	board, project, ok := h.loadVisibleBoard(w, r, chi.URLParam(r, "id"))
	if !ok {
		return
	}
	allowed, err := authz.CanEditInProject(r.Context(), h.ProjectRepo, project.ID, CurrentPrincipal(r))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if !allowed {
		h.fail(w, r, authz.ErrForbidden)
		return
	}

	var input struct {
		ColumnIDs []string `json:"column_ids"`
	}
	if err := h.decodeJSON(w, r, &input); err != nil {
		h.fail(w, r, err)
		return
	}
	if len(input.ColumnIDs) == 0 {
		h.fail(w, r, invalid("column_ids is required"))
		return
	}
	ids := make([]uuid.UUID, 0, len(input.ColumnIDs))
	seen := make(map[uuid.UUID]bool, len(input.ColumnIDs))
	for _, raw := range input.ColumnIDs {
		id, err := parseID(raw)
		if err != nil {
			h.fail(w, r, err)
			return
		}
		if seen[id] {
			h.fail(w, r, invalid("column_ids contains duplicates"))
			return
		}
		seen[id] = true
		ids = append(ids, id)
	}

	if err := h.ColumnRepo.Reorder(r.Context(), board.ID, ids); err != nil {
		h.fail(w, r, err)
		return
	}
	columns, err := h.ColumnRepo.ListByBoardID(r.Context(), board.ID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.respond(w, http.StatusOK, columns)
}
