package db

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/kanband/kanband/internal/models"
	_ "github.com/mattn/go-sqlite3"
)

// setupTestDB opens an in-memory database with the full schema. The
// pool is pinned to one connection: every :memory: connection is its
// own database.
func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	dbConn, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}
	dbConn.SetMaxOpenConns(1)
	t.Cleanup(func() { dbConn.Close() })

	schema := []string{
		`CREATE TABLE users (
			id TEXT PRIMARY KEY,
			email TEXT NOT NULL UNIQUE,
			name TEXT NOT NULL DEFAULT '',
			password_hash TEXT NOT NULL,
			role TEXT NOT NULL DEFAULT 'user',
			approval TEXT NOT NULL DEFAULT 'pending',
			created_at TIMESTAMP NOT NULL,
			updated_at TIMESTAMP NOT NULL
		)`,
		`CREATE TABLE sessions (
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			token TEXT NOT NULL UNIQUE,
			expires_at TIMESTAMP NOT NULL,
			created_at TIMESTAMP NOT NULL,
			ip TEXT NOT NULL DEFAULT '',
			user_agent TEXT NOT NULL DEFAULT ''
		)`,
		`CREATE TABLE projects (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			color TEXT NOT NULL DEFAULT '',
			owner_id TEXT NOT NULL REFERENCES users(id),
			visibility TEXT NOT NULL DEFAULT 'private',
			created_at TIMESTAMP NOT NULL,
			updated_at TIMESTAMP NOT NULL
		)`,
		`CREATE TABLE project_members (
			project_id TEXT NOT NULL REFERENCES projects(id) ON DELETE CASCADE,
			user_id TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			role TEXT NOT NULL DEFAULT 'member',
			joined_at TIMESTAMP NOT NULL,
			PRIMARY KEY (project_id, user_id)
		)`,
		`CREATE TABLE boards (
			id TEXT PRIMARY KEY,
			project_id TEXT NOT NULL REFERENCES projects(id) ON DELETE CASCADE,
			name TEXT NOT NULL,
			position INTEGER NOT NULL DEFAULT 0,
			visibility TEXT NOT NULL DEFAULT 'private',
			allow_member_tasks BOOLEAN NOT NULL DEFAULT TRUE,
			wip_enforced BOOLEAN NOT NULL DEFAULT FALSE,
			created_at TIMESTAMP NOT NULL,
			updated_at TIMESTAMP NOT NULL
		)`,
		`CREATE TABLE columns (
			id TEXT PRIMARY KEY,
			board_id TEXT NOT NULL REFERENCES boards(id) ON DELETE CASCADE,
			name TEXT NOT NULL,
			position INTEGER NOT NULL DEFAULT 0,
			color TEXT NOT NULL DEFAULT '',
			wip_limit INTEGER,
			created_at TIMESTAMP NOT NULL,
			updated_at TIMESTAMP NOT NULL
		)`,
		`CREATE TABLE tasks (
			id TEXT PRIMARY KEY,
			column_id TEXT NOT NULL REFERENCES columns(id) ON DELETE CASCADE,
			board_id TEXT NOT NULL REFERENCES boards(id) ON DELETE CASCADE,
			project_id TEXT NOT NULL REFERENCES projects(id) ON DELETE CASCADE,
			title TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			status TEXT NOT NULL DEFAULT 'todo',
			priority TEXT NOT NULL DEFAULT 'medium',
			assignee_id TEXT REFERENCES users(id) ON DELETE SET NULL,
			reporter_id TEXT NOT NULL REFERENCES users(id),
			position INTEGER NOT NULL DEFAULT 0,
			deadline TIMESTAMP,
			tags TEXT NOT NULL DEFAULT '[]',
			created_at TIMESTAMP NOT NULL,
			updated_at TIMESTAMP NOT NULL
		)`,
	}
	for _, stmt := range schema {
		if _, err := dbConn.Exec(stmt); err != nil {
			t.Fatalf("Failed to create schema: %v", err)
		}
	}
	return dbConn
}

func seedUser(t *testing.T, dbConn *sql.DB, email string) *models.User {
	t.Helper()
	now := time.Now().UTC()
	user := &models.User{
		ID:           uuid.New(),
		Email:        email,
		PasswordHash: "hash",
		Role:         models.RoleUser,
		Approval:     models.ApprovalApproved,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := NewUserRepository(dbConn).Create(context.Background(), user); err != nil {
		t.Fatalf("Failed to seed user: %v", err)
	}
	return user
}

func seedProject(t *testing.T, dbConn *sql.DB, owner *models.User, visibility models.Visibility) *models.Project {
	t.Helper()
	now := time.Now().UTC()
	project := &models.Project{
		ID:         uuid.New(),
		Name:       "test project",
		OwnerID:    owner.ID,
		Visibility: visibility,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := NewProjectRepository(dbConn).Create(context.Background(), project); err != nil {
		t.Fatalf("Failed to seed project: %v", err)
	}
	return project
}

func seedBoard(t *testing.T, dbConn *sql.DB, project *models.Project) *models.Board {
	t.Helper()
	now := time.Now().UTC()
	board := &models.Board{
		ID:               uuid.New(),
		ProjectID:        project.ID,
		Name:             "test board",
		Visibility:       models.VisibilityPrivate,
		AllowMemberTasks: true,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if err := NewBoardRepository(dbConn).Create(context.Background(), board); err != nil {
		t.Fatalf("Failed to seed board: %v", err)
	}
	return board
}

func seedColumn(t *testing.T, dbConn *sql.DB, board *models.Board, name string) *models.Column {
	t.Helper()
	now := time.Now().UTC()
	column := &models.Column{
		ID:        uuid.New(),
		BoardID:   board.ID,
		Name:      name,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := NewColumnRepository(dbConn).Create(context.Background(), column); err != nil {
		t.Fatalf("Failed to seed column: %v", err)
	}
	return column
}

func seedTask(t *testing.T, dbConn *sql.DB, column *models.Column, reporter *models.User, title string) *models.Task {
	t.Helper()
	now := time.Now().UTC()
	task := &models.Task{
		ID:         uuid.New(),
		ColumnID:   column.ID,
		Title:      title,
		Status:     models.TaskStatusTodo,
		Priority:   models.TaskPriorityMedium,
		ReporterID: reporter.ID,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := NewTaskRepository(dbConn).Create(context.Background(), task); err != nil {
		t.Fatalf("Failed to seed task: %v", err)
	}
	return task
}
