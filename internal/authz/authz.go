// Package authz holds the typed authentication failures and the
// per-resource predicates route handlers consult after the auth gate.
package authz

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/kanband/kanband/internal/db"
	"github.com/kanband/kanband/internal/models"
)

var (
	// ErrUnauthenticated: no credential presented.
	ErrUnauthenticated = errors.New("unauthenticated")
	// ErrInvalidToken: signature or decoding failure, or expired token.
	ErrInvalidToken = errors.New("invalid token")
	// ErrSessionRevoked: token verified but no live session backs it.
	ErrSessionRevoked = errors.New("session revoked")
	// ErrNotApproved: valid session, account still pending approval.
	ErrNotApproved = errors.New("account not approved")
	// ErrForbidden: authenticated but not allowed to do this.
	ErrForbidden = errors.New("forbidden")
)

// Principal is the resolved identity of the caller.
type Principal struct {
	UserID   uuid.UUID
	Email    string
	Role     models.Role
	Approval models.ApprovalState
}

// MembershipResolver answers "what is this user's role in this
// project". Implemented by db.ProjectRepository.
type MembershipResolver interface {
	GetMemberRole(ctx context.Context, projectID, userID uuid.UUID) (models.MemberRole, error)
}

func IsAdmin(p *Principal) bool {
	return p != nil && p.Role == models.RoleAdmin
}

func IsResourceOwner(ownerID uuid.UUID, p *Principal) bool {
	return p != nil && p.UserID == ownerID
}

// ProjectRole resolves the principal's membership role. Admins get
// owner-equivalent access without a membership row. The bool is false
// when the user has no relationship to the project at all.
func ProjectRole(ctx context.Context, resolver MembershipResolver, projectID uuid.UUID, p *Principal) (models.MemberRole, bool, error) {
	if IsAdmin(p) {
		return models.MemberRoleOwner, true, nil
	}
	role, err := resolver.GetMemberRole(ctx, projectID, p.UserID)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return "", false, nil
		}
		return "", false, err
	}
	return role, true, nil
}

// CanViewProject: admin, any member, or anyone for public projects.
func CanViewProject(ctx context.Context, resolver MembershipResolver, project *models.Project, p *Principal) (bool, error) {
	if IsAdmin(p) || IsResourceOwner(project.OwnerID, p) {
		return true, nil
	}
	if project.Visibility == models.VisibilityPublic {
		return true, nil
	}
	_, member, err := ProjectRole(ctx, resolver, project.ID, p)
	return member, err
}

// CanManageProject: admin, owner, or a project admin. Covers update and
// membership changes.
func CanManageProject(ctx context.Context, resolver MembershipResolver, project *models.Project, p *Principal) (bool, error) {
	if IsAdmin(p) || IsResourceOwner(project.OwnerID, p) {
		return true, nil
	}
	role, member, err := ProjectRole(ctx, resolver, project.ID, p)
	if err != nil || !member {
		return false, err
	}
	return role.CanManage(), nil
}

// CanDeleteProject: owner or admin only, never project admins.
func CanDeleteProject(project *models.Project, p *Principal) bool {
	return IsAdmin(p) || IsResourceOwner(project.OwnerID, p)
}

// CanEditInProject: admin or a membership role that is not viewer.
// Gates board/column/task creation and edits.
func CanEditInProject(ctx context.Context, resolver MembershipResolver, projectID uuid.UUID, p *Principal) (bool, error) {
	if IsAdmin(p) {
		return true, nil
	}
	role, member, err := ProjectRole(ctx, resolver, projectID, p)
	if err != nil || !member {
		return false, err
	}
	return role.CanEdit(), nil
}

// CanEditTask: project editors, plus the task's reporter and assignee
// regardless of member role.
func CanEditTask(ctx context.Context, resolver MembershipResolver, task *models.Task, p *Principal) (bool, error) {
	if IsResourceOwner(task.ReporterID, p) {
		return true, nil
	}
	if task.AssigneeID != nil && *task.AssigneeID == p.UserID {
		return true, nil
	}
	return CanEditInProject(ctx, resolver, task.ProjectID, p)
}

// CanDeleteUser: admins only, and self-delete is refused so the last
// admin cannot lock everyone out by accident.
func CanDeleteUser(targetID uuid.UUID, p *Principal) bool {
	return IsAdmin(p) && p.UserID != targetID
}
