package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq" // Import postgres driver
)

func Connect(dsn string, timeout time.Duration) (*sql.DB, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to create database handle: %w", err)
	}

	// Configure connection pool
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(5 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err = db.PingContext(ctx); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			return nil, fmt.Errorf("failed to ping database within %v: %w (close: %v)", timeout, err, closeErr)
		}
		return nil, fmt.Errorf("failed to ping database within %v: %w", timeout, err)
	}

	return db, nil
}

// schema is idempotent. match_opponents.user_id has no foreign key: a
// dangling participant link degrades to an id-only stand-in on read.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id    INTEGER PRIMARY KEY,
		name  TEXT NOT NULL,
		email TEXT NOT NULL,
		role  TEXT NOT NULL CHECK (role IN ('player', 'observer')),
		style TEXT NOT NULL DEFAULT 'casual' CHECK (style IN ('meta', 'casual')),
		CONSTRAINT users_email_key UNIQUE (email)
	)`,
	`CREATE TABLE IF NOT EXISTS matches (
		id       INTEGER PRIMARY KEY,
		round    INTEGER NOT NULL CHECK (round > 0),
		finished BOOLEAN NOT NULL DEFAULT FALSE
	)`,
	`CREATE INDEX IF NOT EXISTS matches_round_idx ON matches (round)`,
	`CREATE TABLE IF NOT EXISTS match_opponents (
		match_id INTEGER NOT NULL REFERENCES matches (id) ON DELETE CASCADE,
		user_id  INTEGER NOT NULL,
		slot     SMALLINT NOT NULL,
		PRIMARY KEY (match_id, slot)
	)`,
	`CREATE INDEX IF NOT EXISTS match_opponents_user_idx ON match_opponents (user_id)`,
	`CREATE TABLE IF NOT EXISTS match_results (
		match_id       INTEGER PRIMARY KEY REFERENCES matches (id) ON DELETE CASCADE,
		winner_user_id INTEGER NOT NULL,
		finished       BOOLEAN NOT NULL DEFAULT TRUE
	)`,
}

// EnsureSchema creates the tables used by the postgres repositories.
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	for _, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to apply schema: %w", err)
		}
	}
	return nil
}
