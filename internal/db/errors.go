package db

import "errors"

var (
	// ErrNotFound is returned when a row is absent. Repositories
	// translate sql.ErrNoRows so callers never import database/sql.
	ErrNotFound = errors.New("not found")

	// ErrDuplicate is returned on unique-constraint violations
	// (email, session token, project membership).
	ErrDuplicate = errors.New("already exists")
)
