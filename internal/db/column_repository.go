package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/kanband/kanband/internal/models"
)

// defines methods for column db operations
type ColumnRepositoryInterface interface {
	Create(ctx context.Context, column *models.Column) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Column, error)
	ListByBoardID(ctx context.Context, boardID uuid.UUID) ([]*models.Column, error)
	Update(ctx context.Context, column *models.Column) error
	Delete(ctx context.Context, id uuid.UUID) error
	Reorder(ctx context.Context, boardID uuid.UUID, orderedIDs []uuid.UUID) error
	CountTasks(ctx context.Context, columnID uuid.UUID) (int, error)
}

type ColumnRepository struct {
	db *sql.DB
}

func NewColumnRepository(db *sql.DB) *ColumnRepository {
	return &ColumnRepository{db: db}
}

const columnColumns = `id, board_id, name, position, color, wip_limit, created_at, updated_at`

func scanColumn(row interface{ Scan(...any) error }) (*models.Column, error) {
	c := &models.Column{}
	err := row.Scan(
		&c.ID, &c.BoardID, &c.Name, &c.Position, &c.Color,
		&c.WIPLimit, &c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return c, nil
}

func (r *ColumnRepository) Create(ctx context.Context, column *models.Column) error {
	return WithTx(ctx, r.db, nil, func(ctx context.Context, tx DBTX) error {
		var next int
		err := tx.QueryRowContext(ctx,
			`SELECT COALESCE(MAX(position), -1) + 1 FROM columns WHERE board_id = $1`,
			column.BoardID).Scan(&next)
		if err != nil {
			return err
		}
		column.Position = next

		query := `INSERT INTO columns (id, board_id, name, position, color, wip_limit, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
		_, err = tx.ExecContext(ctx, query,
			column.ID, column.BoardID, column.Name, column.Position, column.Color,
			column.WIPLimit, column.CreatedAt, column.UpdatedAt)
		return err
	})
}

func (r *ColumnRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Column, error) {
	query := `SELECT ` + columnColumns + ` FROM columns WHERE id = $1`
	return scanColumn(r.db.QueryRowContext(ctx, query, id))
}

func (r *ColumnRepository) ListByBoardID(ctx context.Context, boardID uuid.UUID) ([]*models.Column, error) {
	query := `SELECT ` + columnColumns + ` FROM columns WHERE board_id = $1 ORDER BY position`
	rows, err := r.db.QueryContext(ctx, query, boardID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var columns []*models.Column
	for rows.Next() {
		c, err := scanColumn(rows)
		if err != nil {
			return nil, err
		}
		columns = append(columns, c)
	}
	return columns, rows.Err()
}

func (r *ColumnRepository) Update(ctx context.Context, column *models.Column) error {
	query := `UPDATE columns SET name = $1, color = $2, wip_limit = $3, updated_at = $4 WHERE id = $5`
	return execExpectingRow(ctx, r.db, query,
		column.Name, column.Color, column.WIPLimit, column.UpdatedAt, column.ID)
}

func (r *ColumnRepository) Delete(ctx context.Context, id uuid.UUID) error {
	return execExpectingRow(ctx, r.db, `DELETE FROM columns WHERE id = $1`, id)
}

// Reorder rewrites positions for the whole board in one transaction.
// orderedIDs must name every column of the board exactly once;
// concurrent reorders serialize on the board row.
func (r *ColumnRepository) Reorder(ctx context.Context, boardID uuid.UUID, orderedIDs []uuid.UUID) error {
	return WithTx(ctx, r.db, nil, func(ctx context.Context, tx DBTX) error {
		if err := lockRow(ctx, tx, "boards", boardID); err != nil {
			return err
		}

		var count int
		err := tx.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM columns WHERE board_id = $1`, boardID).Scan(&count)
		if err != nil {
			return err
		}
		if count != len(orderedIDs) {
			return fmt.Errorf("reorder: got %d ids, board has %d columns: %w",
				len(orderedIDs), count, ErrNotFound)
		}

		for pos, id := range orderedIDs {
			res, err := tx.ExecContext(ctx,
				`UPDATE columns SET position = $1, updated_at = CURRENT_TIMESTAMP
				 WHERE id = $2 AND board_id = $3`, pos, id, boardID)
			if err != nil {
				return err
			}
			n, err := res.RowsAffected()
			if err != nil {
				return err
			}
			if n == 0 {
				return fmt.Errorf("reorder: column %s not on board: %w", id, ErrNotFound)
			}
		}
		return nil
	})
}

func (r *ColumnRepository) CountTasks(ctx context.Context, columnID uuid.UUID) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM tasks WHERE column_id = $1`, columnID).Scan(&count)
	return count, err
}

// lockRow serializes writers on a parent row. A no-op UPDATE takes a row
// lock on PostgreSQL and the write lock on SQLite, so concurrent
// position rewrites cannot interleave on either driver.
func lockRow(ctx context.Context, tx DBTX, table string, id uuid.UUID) error {
	_, err := tx.ExecContext(ctx,
		`UPDATE `+table+` SET updated_at = updated_at WHERE id = $1`, id)
	return err
}
