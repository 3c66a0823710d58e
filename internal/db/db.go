package db

import (
	"context"
	"fmt"
	"log/slog"

	_ "github.com/glebarez/go-sqlite"
	"github.com/jmoiron/sqlx"
)

const schema = `
CREATE TABLE IF NOT EXISTS users (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	username TEXT NOT NULL UNIQUE,
	password_hash TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS game_results (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	session_id TEXT NOT NULL,
	generation INTEGER NOT NULL DEFAULT 0,
	mode TEXT NOT NULL,
	owner TEXT NOT NULL DEFAULT '',
	outcome TEXT NOT NULL,
	winner TEXT NOT NULL DEFAULT '',
	moves TEXT NOT NULL,
	finished_at DATETIME NOT NULL,
	UNIQUE (session_id, generation)
);

CREATE INDEX IF NOT EXISTS idx_game_results_owner ON game_results(owner);`

// Connect opens the SQLite database at dbPath. ":memory:" gives a private
// in-memory database.
func Connect(ctx context.Context, dbPath string) (*sqlx.DB, error) {
	pool, err := sqlx.ConnectContext(ctx, "sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database connection: %w", err)
	}
	// SQLite serialises writers; every in-memory connection would be its own database.
	pool.SetMaxOpenConns(1)
	slog.InfoContext(ctx, "Connected to database", "db.path", dbPath)
	return pool, nil
}

// InitializeDB enables foreign keys and creates the schema if it does not exist.
func InitializeDB(ctx context.Context, db *sqlx.DB) error {
	if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys = ON"); err != nil {
		return fmt.Errorf("failed to enable foreign keys: %w", err)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}

	slog.InfoContext(ctx, "DB connection initialized and schema verified.")
	return nil
}
