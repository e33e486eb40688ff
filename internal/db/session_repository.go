package db

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"
	"github.com/kanband/kanband/internal/models"
)

// defines methods for session db operations
type SessionRepositoryInterface interface {
	Create(ctx context.Context, session *models.Session) error
	FindLiveByToken(ctx context.Context, token string) (*models.Session, error)
	DeleteByToken(ctx context.Context, token string) (bool, error)
	DeleteByUserID(ctx context.Context, userID uuid.UUID) (int64, error)
	DeleteExpired(ctx context.Context) (int64, error)
}

type SessionRepository struct {
	db *sql.DB
}

func NewSessionRepository(db *sql.DB) *SessionRepository {
	return &SessionRepository{db: db}
}

func (r *SessionRepository) Create(ctx context.Context, session *models.Session) error {
	query := `INSERT INTO sessions (id, user_id, token, expires_at, created_at, ip, user_agent)
	 VALUES ($1, $2, $3, $4, $5, $6, $7)`

	_, err := r.db.ExecContext(
		ctx, query, session.ID, session.UserID, session.Token,
		session.ExpiresAt, session.CreatedAt, session.IP, session.UserAgent)
	if isDuplicate(err) {
		return ErrDuplicate
	}
	return err
}

// FindLiveByToken returns the session only while it is unexpired.
// Expiry is compared against the database clock, not the server's, so a
// skewed application host cannot resurrect a dead session.
func (r *SessionRepository) FindLiveByToken(ctx context.Context, token string) (*models.Session, error) {
	query := `SELECT id, user_id, token, expires_at, created_at, ip, user_agent
	 FROM sessions WHERE token = $1 AND expires_at > CURRENT_TIMESTAMP`

	session := &models.Session{}
	err := r.db.QueryRowContext(ctx, query, token).Scan(
		&session.ID, &session.UserID, &session.Token,
		&session.ExpiresAt, &session.CreatedAt, &session.IP, &session.UserAgent,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return session, nil
}

// DeleteByToken removes the session and reports whether a row existed.
// Deleting an already-deleted token is a no-op, so logout is idempotent.
func (r *SessionRepository) DeleteByToken(ctx context.Context, token string) (bool, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM sessions WHERE token = $1`, token)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// DeleteByUserID drops every session the user has: the admin-forced
// revoke. Returns the number of sessions removed.
func (r *SessionRepository) DeleteByUserID(ctx context.Context, userID uuid.UUID) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM sessions WHERE user_id = $1`, userID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// DeleteExpired sweeps rows whose expiry has passed. Correctness does
// not depend on it; FindLiveByToken filters lazily.
func (r *SessionRepository) DeleteExpired(ctx context.Context) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM sessions WHERE expires_at <= CURRENT_TIMESTAMP`)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
