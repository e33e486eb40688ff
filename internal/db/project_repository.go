package db

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"
	"github.com/kanband/kanband/internal/models"
)

// defines methods for project db operations
type ProjectRepositoryInterface interface {
	Create(ctx context.Context, project *models.Project) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Project, error)
	ListForUser(ctx context.Context, userID uuid.UUID) ([]*models.Project, error)
	Update(ctx context.Context, project *models.Project) error
	Delete(ctx context.Context, id uuid.UUID) error
	AddMember(ctx context.Context, member *models.ProjectMember) error
	RemoveMember(ctx context.Context, projectID, userID uuid.UUID) error
	GetMemberRole(ctx context.Context, projectID, userID uuid.UUID) (models.MemberRole, error)
	ListMembers(ctx context.Context, projectID uuid.UUID) ([]*models.ProjectMember, error)
}

type ProjectRepository struct {
	db *sql.DB
}

func NewProjectRepository(db *sql.DB) *ProjectRepository {
	return &ProjectRepository{db: db}
}

const projectColumns = `id, name, description, color, owner_id, visibility, created_at, updated_at`

func scanProject(row interface{ Scan(...any) error }) (*models.Project, error) {
	p := &models.Project{}
	err := row.Scan(
		&p.ID, &p.Name, &p.Description, &p.Color,
		&p.OwnerID, &p.Visibility, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return p, nil
}

// Create inserts the project and the owner's membership row in one
// transaction so a project can never exist without its owner listed.
func (r *ProjectRepository) Create(ctx context.Context, project *models.Project) error {
	return WithTx(ctx, r.db, nil, func(ctx context.Context, tx DBTX) error {
		query := `INSERT INTO projects (id, name, description, color, owner_id, visibility, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
		if _, err := tx.ExecContext(
			ctx, query, project.ID, project.Name, project.Description, project.Color,
			project.OwnerID, project.Visibility, project.CreatedAt, project.UpdatedAt); err != nil {
			return err
		}
		memberQuery := `INSERT INTO project_members (project_id, user_id, role, joined_at)
		 VALUES ($1, $2, $3, $4)`
		_, err := tx.ExecContext(ctx, memberQuery,
			project.ID, project.OwnerID, models.MemberRoleOwner, project.CreatedAt)
		return err
	})
}

func (r *ProjectRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Project, error) {
	query := `SELECT ` + projectColumns + ` FROM projects WHERE id = $1`
	return scanProject(r.db.QueryRowContext(ctx, query, id))
}

// ListForUser returns projects the user owns, is a member of, or that
// are public.
func (r *ProjectRepository) ListForUser(ctx context.Context, userID uuid.UUID) ([]*models.Project, error) {
	query := `SELECT DISTINCT p.id, p.name, p.description, p.color, p.owner_id, p.visibility, p.created_at, p.updated_at
	 FROM projects p
	 LEFT JOIN project_members m ON m.project_id = p.id AND m.user_id = $1
	 WHERE p.owner_id = $1 OR m.user_id IS NOT NULL OR p.visibility = 'public'
	 ORDER BY p.created_at DESC`
	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var projects []*models.Project
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, err
		}
		projects = append(projects, p)
	}
	return projects, rows.Err()
}

func (r *ProjectRepository) Update(ctx context.Context, project *models.Project) error {
	query := `UPDATE projects SET name = $1, description = $2, color = $3, visibility = $4, updated_at = $5
	 WHERE id = $6`
	return execExpectingRow(ctx, r.db, query,
		project.Name, project.Description, project.Color, project.Visibility,
		project.UpdatedAt, project.ID)
}

func (r *ProjectRepository) Delete(ctx context.Context, id uuid.UUID) error {
	return execExpectingRow(ctx, r.db, `DELETE FROM projects WHERE id = $1`, id)
}

func (r *ProjectRepository) AddMember(ctx context.Context, member *models.ProjectMember) error {
	query := `INSERT INTO project_members (project_id, user_id, role, joined_at)
	 VALUES ($1, $2, $3, $4)`
	_, err := r.db.ExecContext(ctx, query,
		member.ProjectID, member.UserID, member.Role, member.JoinedAt)
	if isDuplicate(err) {
		return ErrDuplicate
	}
	return err
}

func (r *ProjectRepository) RemoveMember(ctx context.Context, projectID, userID uuid.UUID) error {
	query := `DELETE FROM project_members WHERE project_id = $1 AND user_id = $2`
	return execExpectingRow(ctx, r.db, query, projectID, userID)
}

// GetMemberRole resolves the user's role in the project. The owner is
// always reported as owner even if the membership row has drifted.
func (r *ProjectRepository) GetMemberRole(ctx context.Context, projectID, userID uuid.UUID) (models.MemberRole, error) {
	var ownerID uuid.UUID
	err := r.db.QueryRowContext(ctx,
		`SELECT owner_id FROM projects WHERE id = $1`, projectID).Scan(&ownerID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", ErrNotFound
		}
		return "", err
	}
	if ownerID == userID {
		return models.MemberRoleOwner, nil
	}

	var role models.MemberRole
	err = r.db.QueryRowContext(ctx,
		`SELECT role FROM project_members WHERE project_id = $1 AND user_id = $2`,
		projectID, userID).Scan(&role)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", ErrNotFound
		}
		return "", err
	}
	return role, nil
}

func (r *ProjectRepository) ListMembers(ctx context.Context, projectID uuid.UUID) ([]*models.ProjectMember, error) {
	query := `SELECT project_id, user_id, role, joined_at FROM project_members
	 WHERE project_id = $1 ORDER BY joined_at`
	rows, err := r.db.QueryContext(ctx, query, projectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var members []*models.ProjectMember
	for rows.Next() {
		m := &models.ProjectMember{}
		if err := rows.Scan(&m.ProjectID, &m.UserID, &m.Role, &m.JoinedAt); err != nil {
			return nil, err
		}
		members = append(members, m)
	}
	return members, rows.Err()
}
