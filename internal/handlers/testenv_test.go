package handlers

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/kanband/kanband/internal/auth"
	"github.com/kanband/kanband/internal/authz"
	"github.com/kanband/kanband/internal/config"
	"github.com/kanband/kanband/internal/db"
	"github.com/kanband/kanband/internal/models"
	_ "github.com/mattn/go-sqlite3"
	"golang.org/x/crypto/bcrypt"
)

const testSecret = "0123456789abcdef0123456789abcdef"

// testEnv runs the full stack against an in-memory database: real
// repositories, real gate, real router.
type testEnv struct {
	t       *testing.T
	db      *sql.DB
	handler *Handler
	router  http.Handler
	cookies map[string]string
}

func newTestEnv(t *testing.T) *testEnv {
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

	cfg := &config.Config{
		ServerPort:      "0",
		SigningSecret:   testSecret,
		SessionTTL:      time.Hour,
		RequireApproval: true,
	}
	codec := auth.NewCodec([]byte(cfg.SigningSecret))
	userRepo := db.NewUserRepository(dbConn)
	sessionRepo := db.NewSessionRepository(dbConn)
	log := slog.New(slog.NewTextHandler(io.Discard, nil))

	handler := &Handler{
		Cfg:         cfg,
		Log:         log,
		Codec:       codec,
		Gate:        authz.NewGate(codec, sessionRepo, userRepo, cfg.RequireApproval),
		UserRepo:    userRepo,
		SessionRepo: sessionRepo,
		ProjectRepo: db.NewProjectRepository(dbConn),
		BoardRepo:   db.NewBoardRepository(dbConn),
		ColumnRepo:  db.NewColumnRepository(dbConn),
		TaskRepo:    db.NewTaskRepository(dbConn),
		RateLimiter: NewRateLimiter(1000, time.Minute),
		Hub:         NewHub(log),
	}

	return &testEnv{
		t:       t,
		db:      dbConn,
		handler: handler,
		router:  handler.Router(),
		cookies: make(map[string]string),
	}
}

// do sends a request through the router, replaying stored cookies and
// satisfying the CSRF double-submit on state-changing methods.
func (e *testEnv) do(method, path string, body any) *httptest.ResponseRecorder {
	e.t.Helper()

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			e.t.Fatalf("Failed to marshal request body: %v", err)
		}
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for name, value := range e.cookies {
		req.AddCookie(&http.Cookie{Name: name, Value: value})
	}
	if method != http.MethodGet && method != http.MethodHead {
		if token, ok := e.cookies[CSRFCookie]; ok {
			req.Header.Set(CSRFHeader, token)
		}
	}

	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)

	for _, cookie := range rec.Result().Cookies() {
		if cookie.MaxAge < 0 {
			delete(e.cookies, cookie.Name)
		} else {
			e.cookies[cookie.Name] = cookie.Value
		}
	}
	return rec
}

// decodeData unmarshals the envelope's data field into dst.
func (e *testEnv) decodeData(rec *httptest.ResponseRecorder, dst any) {
	e.t.Helper()
	var env struct {
		Success bool            `json:"success"`
		Data    json.RawMessage `json:"data"`
		Error   string          `json:"error"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		e.t.Fatalf("Failed to decode envelope: %v (body %q)", err, rec.Body.String())
	}
	if !env.Success {
		e.t.Fatalf("Expected success envelope, got error %q", env.Error)
	}
	if dst != nil {
		if err := json.Unmarshal(env.Data, dst); err != nil {
			e.t.Fatalf("Failed to decode data: %v", err)
		}
	}
}

// createUser inserts an approved account directly.
func (e *testEnv) createUser(email, password string, role models.Role) *models.User {
	e.t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		e.t.Fatalf("Failed to hash password: %v", err)
	}
	now := time.Now().UTC()
	user := &models.User{
		ID:           uuid.New(),
		Email:        email,
		PasswordHash: string(hash),
		Role:         role,
		Approval:     models.ApprovalApproved,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := e.handler.UserRepo.Create(context.Background(), user); err != nil {
		e.t.Fatalf("Failed to create user: %v", err)
	}
	return user
}

// login authenticates through the real endpoint, capturing cookies.
func (e *testEnv) login(email, password string) {
	e.t.Helper()
	e.fetchCSRF()
	rec := e.do(http.MethodPost, "/api/login", map[string]string{
		"email":    email,
		"password": password,
	})
	if rec.Code != http.StatusOK {
		e.t.Fatalf("Login failed with status %d: %s", rec.Code, rec.Body.String())
	}
}

func (e *testEnv) fetchCSRF() {
	e.t.Helper()
	rec := e.do(http.MethodGet, "/api/csrf", nil)
	if rec.Code != http.StatusOK {
		e.t.Fatalf("CSRF fetch failed with status %d", rec.Code)
	}
}

func (e *testEnv) logoutAll() {
	e.cookies = make(map[string]string)
}

// newJSONRequest builds a raw request for tests that need to control
// cookies and headers themselves.
func newJSONRequest(t *testing.T, method, path string, body any) *http.Request {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("Failed to marshal request body: %v", err)
		}
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return req
}

func recordRequest(e *testEnv, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}
