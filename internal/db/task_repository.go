package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/kanband/kanband/internal/models"
)

// ErrWIPLimit is returned when adding a task would push a column past
// its WIP limit on a board that enforces limits.
var ErrWIPLimit = errors.New("column WIP limit reached")

// defines methods for task db operations
type TaskRepositoryInterface interface {
	Create(ctx context.Context, task *models.Task) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Task, error)
	ListByBoardID(ctx context.Context, boardID uuid.UUID) ([]*models.Task, error)
	Update(ctx context.Context, task *models.Task) error
	Delete(ctx context.Context, id uuid.UUID) error
	Move(ctx context.Context, taskID, targetColumnID uuid.UUID, position int) (*models.Task, error)
}

type TaskRepository struct {
	db *sql.DB
}

func NewTaskRepository(db *sql.DB) *TaskRepository {
	return &TaskRepository{db: db}
}

const taskColumns = `id, column_id, board_id, project_id, title, description, status, priority,
 assignee_id, reporter_id, position, deadline, tags, created_at, updated_at`

func scanTask(row interface{ Scan(...any) error }) (*models.Task, error) {
	t := &models.Task{}
	var tags string
	err := row.Scan(
		&t.ID, &t.ColumnID, &t.BoardID, &t.ProjectID, &t.Title, &t.Description,
		&t.Status, &t.Priority, &t.AssigneeID, &t.ReporterID, &t.Position,
		&t.Deadline, &tags, &t.CreatedAt, &t.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if err := json.Unmarshal([]byte(tags), &t.Tags); err != nil {
		return nil, fmt.Errorf("decode tags: %w", err)
	}
	return t, nil
}

func encodeTags(tags []string) (string, error) {
	if tags == nil {
		tags = []string{}
	}
	raw, err := json.Marshal(tags)
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

// columnScope resolves a column's board and project plus WIP settings.
type columnScope struct {
	BoardID     uuid.UUID
	ProjectID   uuid.UUID
	WIPEnforced bool
	WIPLimit    *int
}

func getColumnScope(ctx context.Context, tx DBTX, columnID uuid.UUID) (*columnScope, error) {
	query := `SELECT c.board_id, b.project_id, b.wip_enforced, c.wip_limit
	 FROM columns c JOIN boards b ON b.id = c.board_id
	 WHERE c.id = $1`
	s := &columnScope{}
	err := tx.QueryRowContext(ctx, query, columnID).Scan(
		&s.BoardID, &s.ProjectID, &s.WIPEnforced, &s.WIPLimit)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return s, nil
}

// Create inserts the task at the end of its column. BoardID and
// ProjectID are always taken from the column, never from the caller, so
// the denormalized keys cannot disagree with the column's board.
func (r *TaskRepository) Create(ctx context.Context, task *models.Task) error {
	tags, err := encodeTags(task.Tags)
	if err != nil {
		return err
	}
	return WithTx(ctx, r.db, nil, func(ctx context.Context, tx DBTX) error {
		if err := lockRow(ctx, tx, "columns", task.ColumnID); err != nil {
			return err
		}
		scope, err := getColumnScope(ctx, tx, task.ColumnID)
		if err != nil {
			return err
		}
		task.BoardID = scope.BoardID
		task.ProjectID = scope.ProjectID

		var count int
		if err := tx.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM tasks WHERE column_id = $1`, task.ColumnID).Scan(&count); err != nil {
			return err
		}
		if scope.WIPEnforced && scope.WIPLimit != nil && count >= *scope.WIPLimit {
			return ErrWIPLimit
		}
		task.Position = count

		query := `INSERT INTO tasks (` + taskColumns + `)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`
		_, err = tx.ExecContext(ctx, query,
			task.ID, task.ColumnID, task.BoardID, task.ProjectID, task.Title,
			task.Description, task.Status, task.Priority, task.AssigneeID,
			task.ReporterID, task.Position, task.Deadline, tags,
			task.CreatedAt, task.UpdatedAt)
		return err
	})
}

func (r *TaskRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Task, error) {
	query := `SELECT ` + taskColumns + ` FROM tasks WHERE id = $1`
	return scanTask(r.db.QueryRowContext(ctx, query, id))
}

func (r *TaskRepository) ListByBoardID(ctx context.Context, boardID uuid.UUID) ([]*models.Task, error) {
	query := `SELECT ` + taskColumns + ` FROM tasks WHERE board_id = $1 ORDER BY column_id, position`
	rows, err := r.db.QueryContext(ctx, query, boardID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tasks []*models.Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, t)
	}
	return tasks, rows.Err()
}

// Update writes mutable fields. Column moves go through Move, which is
// the only path allowed to change column_id and position.
func (r *TaskRepository) Update(ctx context.Context, task *models.Task) error {
	tags, err := encodeTags(task.Tags)
	if err != nil {
		return err
	}
	query := `UPDATE tasks SET title = $1, description = $2, status = $3, priority = $4,
	 assignee_id = $5, deadline = $6, tags = $7, updated_at = $8 WHERE id = $9`
	return execExpectingRow(ctx, r.db, query,
		task.Title, task.Description, task.Status, task.Priority,
		task.AssigneeID, task.Deadline, tags, task.UpdatedAt, task.ID)
}

func (r *TaskRepository) Delete(ctx context.Context, id uuid.UUID) error {
	return execExpectingRow(ctx, r.db, `DELETE FROM tasks WHERE id = $1`, id)
}

// Move relocates the task into targetColumnID at the given position and
// renumbers both affected columns inside one transaction. Both column
// rows are locked first (in a fixed order) so two concurrent moves
// cannot interleave their position rewrites.
func (r *TaskRepository) Move(ctx context.Context, taskID, targetColumnID uuid.UUID, position int) (*models.Task, error) {
	var moved *models.Task
	err := WithTx(ctx, r.db, nil, func(ctx context.Context, tx DBTX) error {
		task, err := scanTask(tx.QueryRowContext(ctx,
			`SELECT `+taskColumns+` FROM tasks WHERE id = $1`, taskID))
		if err != nil {
			return err
		}

		first, second := task.ColumnID, targetColumnID
		if second.String() < first.String() {
			first, second = second, first
		}
		if err := lockRow(ctx, tx, "columns", first); err != nil {
			return err
		}
		if first != second {
			if err := lockRow(ctx, tx, "columns", second); err != nil {
				return err
			}
		}

		scope, err := getColumnScope(ctx, tx, targetColumnID)
		if err != nil {
			return err
		}
		// Moves are confined to one board; cross-board moves would
		// silently reparent the task under another project.
		if scope.BoardID != task.BoardID {
			return fmt.Errorf("move: target column on another board: %w", ErrNotFound)
		}

		if task.ColumnID != targetColumnID {
			var count int
			if err := tx.QueryRowContext(ctx,
				`SELECT COUNT(*) FROM tasks WHERE column_id = $1`, targetColumnID).Scan(&count); err != nil {
				return err
			}
			if scope.WIPEnforced && scope.WIPLimit != nil && count >= *scope.WIPLimit {
				return ErrWIPLimit
			}
		}

		sourceColumnID := task.ColumnID
		_, err = tx.ExecContext(ctx,
			`UPDATE tasks SET column_id = $1, board_id = $2, project_id = $3, updated_at = CURRENT_TIMESTAMP
			 WHERE id = $4`, targetColumnID, scope.BoardID, scope.ProjectID, taskID)
		if err != nil {
			return err
		}

		if err := renumberColumn(ctx, tx, sourceColumnID, taskID, -1); err != nil {
			return err
		}
		if err := renumberColumn(ctx, tx, targetColumnID, taskID, position); err != nil {
			return err
		}

		moved, err = scanTask(tx.QueryRowContext(ctx,
			`SELECT `+taskColumns+` FROM tasks WHERE id = $1`, taskID))
		return err
	})
	if err != nil {
		return nil, err
	}
	return moved, nil
}

// renumberColumn re-reads the column's tasks and rewrites positions
// 0..n-1, slotting movedID at wantPos (-1 keeps its relative order).
func renumberColumn(ctx context.Context, tx DBTX, columnID, movedID uuid.UUID, wantPos int) error {
	rows, err := tx.QueryContext(ctx,
		`SELECT id FROM tasks WHERE column_id = $1 ORDER BY position, updated_at`, columnID)
	if err != nil {
		return err
	}
	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return err
		}
		ids = append(ids, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}

	if wantPos >= 0 {
		without := make([]uuid.UUID, 0, len(ids))
		for _, id := range ids {
			if id != movedID {
				without = append(without, id)
			}
		}
		if wantPos > len(without) {
			wantPos = len(without)
		}
		ids = append(without[:wantPos:wantPos], append([]uuid.UUID{movedID}, without[wantPos:]...)...)
	}

	for pos, id := range ids {
		if _, err := tx.ExecContext(ctx,
			`UPDATE tasks SET position = $1 WHERE id = $2`, pos, id); err != nil {
			return err
		}
	}
	return nil
}
