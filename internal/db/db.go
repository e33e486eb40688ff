package db

import (
	"context"
	"database/sql"
	"time"
)

func Connect(driverName, dsn string) (*sql.DB, error) {
	dbConn, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, err
	}
	if err = dbConn.Ping(); err != nil {
		return nil, err
	}
	dbConn.SetMaxOpenConns(10)
	dbConn.SetMaxIdleConns(5)
	return dbConn, nil
}

// Health reports connection health as a value instead of a shared flag.
// Handlers ask for it per request; nothing caches the answer.
func Health(ctx context.Context, dbConn *sql.DB) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	return dbConn.PingContext(ctx)
}
