package db

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/kanband/kanband/internal/models"
)

func TestColumnRepository_Create_AppendsPosition(t *testing.T) {
	dbConn := setupTestDB(t)

	owner := seedUser(t, dbConn, "owner@example.com")
	project := seedProject(t, dbConn, owner, models.VisibilityPrivate)
	board := seedBoard(t, dbConn, project)

	first := seedColumn(t, dbConn, board, "Todo")
	second := seedColumn(t, dbConn, board, "Doing")

	if first.Position != 0 || second.Position != 1 {
		t.Errorf("Expected positions 0 and 1, got %d and %d", first.Position, second.Position)
	}
}

func TestColumnRepository_Reorder(t *testing.T) {
	dbConn := setupTestDB(t)
	repo := NewColumnRepository(dbConn)

	owner := seedUser(t, dbConn, "owner@example.com")
	project := seedProject(t, dbConn, owner, models.VisibilityPrivate)
	board := seedBoard(t, dbConn, project)

	a := seedColumn(t, dbConn, board, "A")
	b := seedColumn(t, dbConn, board, "B")
	c := seedColumn(t, dbConn, board, "C")

	if err := repo.Reorder(context.Background(), board.ID,
		[]uuid.UUID{c.ID, a.ID, b.ID}); err != nil {
		t.Fatalf("Reorder failed: %v", err)
	}

	columns, err := repo.ListByBoardID(context.Background(), board.ID)
	if err != nil {
		t.Fatalf("ListByBoardID failed: %v", err)
	}
	want := []uuid.UUID{c.ID, a.ID, b.ID}
	for i, column := range columns {
		if column.ID != want[i] {
			t.Errorf("Position %d: expected %v, got %v", i, want[i], column.ID)
		}
		if column.Position != i {
			t.Errorf("Expected position %d, got %d", i, column.Position)
		}
	}
}

// A partial id list must not reorder anything.
func TestColumnRepository_Reorder_PartialRefused(t *testing.T) {
	dbConn := setupTestDB(t)
	repo := NewColumnRepository(dbConn)

	owner := seedUser(t, dbConn, "owner@example.com")
	project := seedProject(t, dbConn, owner, models.VisibilityPrivate)
	board := seedBoard(t, dbConn, project)

	a := seedColumn(t, dbConn, board, "A")
	seedColumn(t, dbConn, board, "B")

	err := repo.Reorder(context.Background(), board.ID, []uuid.UUID{a.ID})
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("Expected ErrNotFound for partial reorder, got %v", err)
	}
}

// An id from another board must roll the whole reorder back.
func TestColumnRepository_Reorder_ForeignColumnRollsBack(t *testing.T) {
	dbConn := setupTestDB(t)
	repo := NewColumnRepository(dbConn)

	owner := seedUser(t, dbConn, "owner@example.com")
	project := seedProject(t, dbConn, owner, models.VisibilityPrivate)
	board := seedBoard(t, dbConn, project)
	otherBoard := seedBoard(t, dbConn, project)

	a := seedColumn(t, dbConn, board, "A")
	b := seedColumn(t, dbConn, board, "B")
	foreign := seedColumn(t, dbConn, otherBoard, "X")

	err := repo.Reorder(context.Background(), board.ID,
		[]uuid.UUID{b.ID, foreign.ID})
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("Expected ErrNotFound for foreign column, got %v", err)
	}

	// original order survived the rollback
	columns, err := repo.ListByBoardID(context.Background(), board.ID)
	if err != nil {
		t.Fatalf("ListByBoardID failed: %v", err)
	}
	if columns[0].ID != a.ID || columns[1].ID != b.ID {
		t.Errorf("Expected original order after rollback, got %v then %v",
			columns[0].ID, columns[1].ID)
	}
}

func TestColumnRepository_CountTasks(t *testing.T) {
	dbConn := setupTestDB(t)
	repo := NewColumnRepository(dbConn)

	owner := seedUser(t, dbConn, "owner@example.com")
	project := seedProject(t, dbConn, owner, models.VisibilityPrivate)
	board := seedBoard(t, dbConn, project)
	column := seedColumn(t, dbConn, board, "Todo")

	seedTask(t, dbConn, column, owner, "one")
	seedTask(t, dbConn, column, owner, "two")

	count, err := repo.CountTasks(context.Background(), column.ID)
	if err != nil {
		t.Fatalf("CountTasks failed: %v", err)
	}
	if count != 2 {
		t.Errorf("Expected 2 tasks, got %d", count)
	}
}
