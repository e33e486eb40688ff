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

func (h *Handler) ListBoards(w http.ResponseWriter, r *http.Request) {
	project, ok := h.loadVisibleProject(w, r)
	if !ok {
		return
	}
	boards, err := h.BoardRepo.ListByProjectID(r.Context(), project.ID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.respond(w, http.StatusOK, boards)
}

// CreateBoard requires an editing membership in the project; viewers
// and outsiders are refused.
func (h *Handler) CreateBoard(w http.ResponseWriter, r *http.Request) {
	project, ok := h.loadVisibleProject(w, r)
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
		Name             string `json:"name"`
		Visibility       string `json:"visibility"`
		AllowMemberTasks *bool  `json:"allow_member_tasks"`
		WIPEnforced      bool   `json:"wip_enforced"`
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
	visibility := models.VisibilityPrivate
	if input.Visibility == string(models.VisibilityPublic) {
		visibility = models.VisibilityPublic
	}
	allowMemberTasks := true
	if input.AllowMemberTasks != nil {
		allowMemberTasks = *input.AllowMemberTasks
	}

	now := time.Now().UTC()
	board := &models.Board{
		ID:               uuid.New(),
		ProjectID:        project.ID,
		Name:             input.Name,
		Visibility:       visibility,
		AllowMemberTasks: allowMemberTasks,
		WIPEnforced:      input.WIPEnforced,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if err := h.BoardRepo.Create(r.Context(), board); err != nil {
		h.fail(w, r, err)
		return
	}
	w.Header().Set("Location", "/api/boards/"+board.ID.String())
	h.respond(w, http.StatusCreated, board)
}

// loadVisibleBoard resolves the board and its project, enforcing
// project visibility. Invisible boards read as absent.
func (h *Handler) loadVisibleBoard(w http.ResponseWriter, r *http.Request, raw string) (*models.Board, *models.Project, bool) {
	id, err := parseID(raw)
	if err != nil {
		h.fail(w, r, err)
		return nil, nil, false
	}
	board, err := h.BoardRepo.GetByID(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return nil, nil, false
	}
	project, err := h.ProjectRepo.GetByID(r.Context(), board.ProjectID)
	if err != nil {
		h.fail(w, r, err)
		return nil, nil, false
	}
	ok, err := authz.CanViewProject(r.Context(), h.ProjectRepo, project, CurrentPrincipal(r))
	if err != nil {
		h.fail(w, r, err)
		return nil, nil, false
	}
	if !ok {
		h.notFound(w)
		return nil, nil, false
	}
	return board, project, true
}

func (h *Handler) GetBoard(w http.ResponseWriter, r *http.Request) {
	board, _, ok := h.loadVisibleBoard(w, r, chi.URLParam(r, "id"))
	if !ok {
		return
	}
	columns, err := h.ColumnRepo.ListByBoardID(r.Context(), board.ID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.respond(w, http.StatusOK, map[string]any{
		"board":   board,
		"columns": columns,
	})
}

func (h *Handler) UpdateBoard(w http.ResponseWriter, r *http.Request) {
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
		Name             *string `json:"name"`
		Visibility       *string `json:"visibility"`
		AllowMemberTasks *bool   `json:"allow_member_tasks"`
		WIPEnforced      *bool   `json:"wip_enforced"`
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
		board.Name = name
	}
	if input.Visibility != nil {
		v := models.Visibility(*input.Visibility)
		if v != models.VisibilityPrivate && v != models.VisibilityPublic {
			h.fail(w, r, invalid("visibility must be private or public"))
			return
		}
		board.Visibility = v
	}
	if input.AllowMemberTasks != nil {
		board.AllowMemberTasks = *input.AllowMemberTasks
	}
	if input.WIPEnforced != nil {
		board.WIPEnforced = *input.WIPEnforced
	}
	board.UpdatedAt = time.Now().UTC()

	if err := h.BoardRepo.Update(r.Context(), board); err != nil {
		h.fail(w, r, err)
		return
	}
	h.respond(w, http.StatusOK, board)
}

func (h *Handler) DeleteBoard(w http.ResponseWriter, r *http.Request) {
	board, project, ok := h.loadVisibleBoard(w, r, chi.URLParam(r, "id"))
	if !ok {
		return
	}
	allowed, err := authz.CanManageProject(r.Context(), h.ProjectRepo, project, CurrentPrincipal(r))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if !allowed {
		h.fail(w, r, authz.ErrForbidden)
		return
	}
	if err := h.BoardRepo.Delete(r.Context(), board.ID); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
