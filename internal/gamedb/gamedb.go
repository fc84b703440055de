package gamedb

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/lib/pq"
	"github.com/rs/zerolog/log"

	"github.com/blankparty/hackbox/internal/config"
)

// Open connects to Postgres and verifies the connection.
func Open(cfg config.Database) (*sql.DB, error) {
	db, err := sql.Open("postgres", cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	log.Info().
		Str("host", cfg.Host).
		Int("port", cfg.Port).
		Str("database", cfg.Database).
		Msg("connected to database")

	return db, nil
}

// Migrate creates the game tables if they do not exist yet.
func Migrate(ctx context.Context, db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS game_questions (
			id BIGSERIAL PRIMARY KEY,
			question TEXT NOT NULL,
			category TEXT NOT NULL DEFAULT 'wedding'
		)`,
		`CREATE TABLE IF NOT EXISTS game_sessions (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE TABLE IF NOT EXISTS game_players (
			id TEXT PRIMARY KEY,
			session_id TEXT NOT NULL REFERENCES game_sessions (id),
			nickname TEXT NOT NULL,
			score INTEGER NOT NULL DEFAULT 0
		)`,
		`CREATE TABLE IF NOT EXISTS game_answers (
			id BIGSERIAL PRIMARY KEY,
			session_id TEXT NOT NULL,
			player_id TEXT NOT NULL,
			question_id BIGINT NOT NULL REFERENCES game_questions (id),
			answer TEXT NOT NULL,
			votes INTEGER NOT NULL DEFAULT 0
		)`,
		`CREATE TABLE IF NOT EXISTS game_events (
			id UUID PRIMARY KEY,
			session_id TEXT NOT NULL,
			event_type TEXT NOT NULL,
			payload JSONB,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
	}

	for _, stmt := range stmts {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}
