package db

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"
	"github.com/kanband/kanband/internal/models"
)

// defines methods for board db operations
type BoardRepositoryInterface interface {
	Create(ctx context.Context, board *models.Board) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Board, error)
	ListByProjectID(ctx context.Context, projectID uuid.UUID) ([]*models.Board, error)
	Update(ctx context.Context, board *models.Board) error
	Delete(ctx context.Context, id uuid.UUID) error
}

type BoardRepository struct {
	db *sql.DB
}

func NewBoardRepository(db *sql.DB) *BoardRepository {
	return &BoardRepository{db: db}
}

const boardColumns = `id, project_id, name, position, visibility, allow_member_tasks, wip_enforced, created_at, updated_at`

func scanBoard(row interface{ Scan(...any) error }) (*models.Board, error) {
	b := &models.Board{}
	err := row.Scan(
		&b.ID, &b.ProjectID, &b.Name, &b.Position, &b.Visibility,
		&b.AllowMemberTasks, &b.WIPEnforced, &b.CreatedAt, &b.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return b, nil
}

// Create appends the board at the end of the project's board list.
func (r *BoardRepository) Create(ctx context.Context, board *models.Board) error {
	return WithTx(ctx, r.db, nil, func(ctx context.Context, tx DBTX) error {
		var next int
		err := tx.QueryRowContext(ctx,
			`SELECT COALESCE(MAX(position), -1) + 1 FROM boards WHERE project_id = $1`,
			board.ProjectID).Scan(&next)
		if err != nil {
			return err
		}
		board.Position = next

		query := `INSERT INTO boards (id, project_id, name, position, visibility, allow_member_tasks, wip_enforced, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`
		_, err = tx.ExecContext(ctx, query,
			board.ID, board.ProjectID, board.Name, board.Position, board.Visibility,
			board.AllowMemberTasks, board.WIPEnforced, board.CreatedAt, board.UpdatedAt)
		return err
	})
}

func (r *BoardRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Board, error) {
	query := `SELECT ` + boardColumns + ` FROM boards WHERE id = $1`
	return scanBoard(r.db.QueryRowContext(ctx, query, id))
}

func (r *BoardRepository) ListByProjectID(ctx context.Context, projectID uuid.UUID) ([]*models.Board, error) {
	query := `SELECT ` + boardColumns + ` FROM boards WHERE project_id = $1 ORDER BY position`
	rows, err := r.db.QueryContext(ctx, query, projectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var boards []*models.Board
	for rows.Next() {
		b, err := scanBoard(rows)
		if err != nil {
			return nil, err
		}
		boards = append(boards, b)
	}
	return boards, rows.Err()
}

func (r *BoardRepository) Update(ctx context.Context, board *models.Board) error {
	query := `UPDATE boards SET name = $1, visibility = $2, allow_member_tasks = $3, wip_enforced = $4, updated_at = $5
	 WHERE id = $6`
	return execExpectingRow(ctx, r.db, query,
		board.Name, board.Visibility, board.AllowMemberTasks, board.WIPEnforced,
		board.UpdatedAt, board.ID)
}

func (r *BoardRepository) Delete(ctx context.Context, id uuid.UUID) error {
	return execExpectingRow(ctx, r.db, `DELETE FROM boards WHERE id = $1`, id)
}
