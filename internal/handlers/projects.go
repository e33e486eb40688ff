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

func (h *Handler) ListProjects(w http.ResponseWriter, r *http.Request) {
	p := CurrentPrincipal(r)
	projects, err := h.ProjectRepo.ListForUser(r.Context(), p.UserID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.respond(w, http.StatusOK, projects)
}

func (h *Handler) CreateProject(w http.ResponseWriter, r *http.Request) {
	p := CurrentPrincipal(r)

	var input struct {
		Name        string `json:"name"`
		Description string `json:"description"`
		Color       string `json:"color"`
		Visibility  string `json:"visibility"`
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
	if len(input.Description) > 500 {
		h.fail(w, r, invalid("description must be <= 500 characters"))
		return
	}
	visibility := models.VisibilityPrivate
	if input.Visibility == string(models.VisibilityPublic) {
		visibility = models.VisibilityPublic
	}

	now := time.Now().UTC()
	project := &models.Project{
		ID:          uuid.New(),
		Name:        input.Name,
		Description: input.Description,
		Color:       input.Color,
		OwnerID:     p.UserID,
		Visibility:  visibility,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := h.ProjectRepo.Create(r.Context(), project); err != nil {
		h.fail(w, r, err)
		return
	}
	w.Header().Set("Location", "/api/projects/"+project.ID.String())
	h.respond(w, http.StatusCreated, project)
}

// loadVisibleProject fetches the project and enforces visibility. An
// invisible project is reported as absent, never as forbidden.
func (h *Handler) loadVisibleProject(w http.ResponseWriter, r *http.Request) (*models.Project, bool) {
	id, err := parseID(chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, err)
		return nil, false
	}
	project, err := h.ProjectRepo.GetByID(r.Context(), id)
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
	return project, true
}

func (h *Handler) GetProject(w http.ResponseWriter, r *http.Request) {
	project, ok := h.loadVisibleProject(w, r)
	if !ok {
		return
	}
	h.respond(w, http.StatusOK, project)
}

func (h *Handler) UpdateProject(w http.ResponseWriter, r *http.Request) {
	project, ok := h.loadVisibleProject(w, r)
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

	var input struct {
		Name        *string `json:"name"`
		Description *string `json:"description"`
		Color       *string `json:"color"`
		Visibility  *string `json:"visibility"`
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
		project.Name = name
	}
	if input.Description != nil {
		if len(*input.Description) > 500 {
			h.fail(w, r, invalid("description must be <= 500 characters"))
			return
		}
		project.Description = *input.Description
	}
	if input.Color != nil {
		project.Color = *input.Color
	}
	if input.Visibility != nil {
		v := models.Visibility(*input.Visibility)
		if v != models.VisibilityPrivate && v != models.VisibilityPublic {
			h.fail(w, r, invalid("visibility must be private or public"))
			return
		}
		project.Visibility = v
	}
	project.UpdatedAt = time.Now().UTC()

	if err := h.ProjectRepo.Update(r.Context(), project); err != nil {
		h.fail(w, r, err)
		return
	}
	h.respond(w, http.StatusOK, project)
}

// DeleteProject is restricted to the owner and admins; project-level
// admins can manage but not destroy.
func (h *Handler) DeleteProject(w http.ResponseWriter, r *http.Request) {
	project, ok := h.loadVisibleProject(w, r)
	if !ok {
		return
	}
	if !authz.CanDeleteProject(project, CurrentPrincipal(r)) {
		h.fail(w, r, authz.ErrForbidden)
		return
	}
	if err := h.ProjectRepo.Delete(r.Context(), project.ID); err != nil {
		h.fail(w, r, err)
		return
	}
	h.Log.Info("project deleted", "project_id", project.ID)
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) ListProjectMembers(w http.ResponseWriter, r *http.Request) {
	project, ok := h.loadVisibleProject(w, r)
	if !ok {
		return
	}
	members, err := h.ProjectRepo.ListMembers(r.Context(), project.ID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.respond(w, http.StatusOK, members)
}

func (h *Handler) AddProjectMember(w http.ResponseWriter, r *http.Request) {
	project, ok := h.loadVisibleProject(w, r)
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

	var input struct {
		UserID string `json:"user_id"`
		Role   string `json:"role"`
	}
	if err := h.decodeJSON(w, r, &input); err != nil {
		h.fail(w, r, err)
		return
	}
	userID, err := parseID(input.UserID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if input.Role == "" {
		input.Role = string(models.MemberRoleMember)
	}
	if !models.ValidMemberRole(input.Role) || input.Role == string(models.MemberRoleOwner) {
		h.fail(w, r, invalid("role must be admin, member or viewer"))
		return
	}
	if _, err := h.UserRepo.GetByID(r.Context(), userID); err != nil {
		h.fail(w, r, err)
		return
	}

	member := &models.ProjectMember{
		ProjectID: project.ID,
		UserID:    userID,
		Role:      models.MemberRole(input.Role),
		JoinedAt:  time.Now().UTC(),
	}
	if err := h.ProjectRepo.AddMember(r.Context(), member); err != nil {
		h.fail(w, r, err)
		return
	}
	h.respond(w, http.StatusCreated, member)
}

func (h *Handler) RemoveProjectMember(w http.ResponseWriter, r *http.Request) {
	project, ok := h.loadVisibleProject(w, r)
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
	userID, err := parseID(chi.URLParam(r, "userID"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	// the owner's membership row is structural, it cannot be removed
	if userID == project.OwnerID {
		h.fail(w, r, invalid("cannot remove the project owner"))
		return
	}
	if err := h.ProjectRepo.RemoveMember(r.Context(), project.ID, userID); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
