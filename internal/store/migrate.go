package store

import (
	"context"
	"fmt"
)

// CurrentSchemaVersion is the current database schema version.
const CurrentSchemaVersion = 1

// migrate runs database migrations.
func (s *Store) migrate(ctx context.Context) error {
	if err := s.createSessionsTable(ctx); err != nil {
		return err
	}
	if err := s.createProcessedLogsTable(ctx); err != nil {
		return err
	}
	return nil
}

func (s *Store) createSessionsTable(ctx context.Context) error {
	const schema = `
	CREATE TABLE IF NOT EXISTS sessions (
		id               INTEGER PRIMARY KEY AUTOINCREMENT,
		player_id        TEXT NOT NULL,
		connection_token TEXT NOT NULL,
		display_name     TEXT NOT NULL,
		enriched_name    TEXT,
		date             TEXT NOT NULL,
		connect_time     TEXT NOT NULL,
		disconnect_time  TEXT,
		playtime         INTEGER NOT NULL DEFAULT 0,
		UNIQUE(connection_token, date, connect_time)
	);

	CREATE UNIQUE INDEX IF NOT EXISTS idx_open_session
	ON sessions(connection_token, date)
	WHERE disconnect_time IS NULL;

	CREATE INDEX IF NOT EXISTS idx_sessions_player_date
	ON sessions(player_id, date);
	`

	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("create sessions table: %w", err)
	}
	return nil
}

func (s *Store) createProcessedLogsTable(ctx context.Context) error {
	const schema = `
	CREATE TABLE IF NOT EXISTS processed_logs (
		log_id           TEXT PRIMARY KEY,
		processed_at     TEXT NOT NULL,
		player_id        TEXT,
		connection_token TEXT,
		action           TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_processed_logs_time
	ON processed_logs(processed_at);
	`

	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("create processed_logs table: %w", err)
	}
	return nil
}
