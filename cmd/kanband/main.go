package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"

	"github.com/kanband/kanband/internal/auth"
	"github.com/kanband/kanband/internal/authz"
	"github.com/kanband/kanband/internal/config"
	"github.com/kanband/kanband/internal/db"
	"github.com/kanband/kanband/internal/handlers"
	"github.com/kanband/kanband/internal/metrics"
)

func main() {
	log := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	cfg, err := config.Load()
	if err != nil {
		log.Error("load config", "error", err)
		os.Exit(1)
	}

	dbConn, err := db.Connect("postgres", cfg.DatabaseDSN)
	if err != nil {
		log.Error("connect database", "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbConn.Close(); err != nil {
			log.Error("close database", "error", err)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := db.RunMigrations(ctx, dbConn, "postgres"); err != nil {
		log.Error("run migrations", "error", err)
		os.Exit(1)
	}

	sessionRepo := db.NewSessionRepository(dbConn)
	userRepo := db.NewUserRepository(dbConn)
	codec := auth.NewCodec([]byte(cfg.SigningSecret))

	handler := &handlers.Handler{
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
		// max 5 auth attempts per 15 minutes from the same IP
		RateLimiter: handlers.NewRateLimiter(5, 15*time.Minute),
		Hub:         handlers.NewHub(log),
		Metrics:     metrics.New(),
		HealthCheck: func(r *http.Request) error {
			return db.Health(r.Context(), dbConn)
		},
	}

	go sweepSessions(ctx, log, sessionRepo)

	server := &http.Server{
		Addr:    ":" + cfg.ServerPort,
		Handler: handler.Router(),
	}

	go func() {
		log.Info("server starting", "port", cfg.ServerPort)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server failed", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("shutdown failed", "error", err)
		os.Exit(1)
	}
	log.Info("server stopped")
}

// sweepSessions deletes expired session rows hourly so the table does
// not accumulate dead tokens between logins.
func sweepSessions(ctx context.Context, log *slog.Logger, sessions *db.SessionRepository) {
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := sessions.DeleteExpired(ctx)
			if err != nil {
				log.Error("session sweep", "error", err)
				continue
			}
			if n > 0 {
				log.Info("expired sessions removed", "count", n)
			}
		}
	}
}
