package store

import (
	"context"
	"fmt"
	"time"
)

// Ledger actions recorded alongside session mutations.
const (
	ActionConnected    = "connected"
	ActionDisconnected = "disconnected"
)

// IsProcessed reports whether a log line with the given id has already been
// applied. Must run inside the same transaction as the mutation it guards.
func (t *Tx) IsProcessed(ctx context.Context, logID string) (bool, error) {
	return isProcessed(ctx, t.tx, logID)
}

// RecordProcessed appends a ledger entry for a log line. Inserted in the
// same transaction as the session mutation it brackets, so re-delivery of
// the line is caught by IsProcessed and never reapplied.
func (t *Tx) RecordProcessed(ctx context.Context, logID, playerID, token, action string, processedAt time.Time) error {
	const query = `
	INSERT INTO processed_logs (log_id, processed_at, player_id, connection_token, action)
	VALUES (?, ?, ?, ?, ?)
	`
	_, err := t.tx.ExecContext(ctx, query,
		logID,
		processedAt.UTC().Format(TimeFormat),
		nullIfEmpty(playerID),
		nullIfEmpty(token),
		action,
	)
	if err != nil {
		return fmt.Errorf("record processed log %q: %w", logID, err)
	}
	return nil
}

// IsProcessed is the read-only variant for pre-checks outside a transaction.
// The transactional check in Tx.IsProcessed remains authoritative.
func (s *Store) IsProcessed(ctx context.Context, logID string) (bool, error) {
	return isProcessed(ctx, s.db, logID)
}

func isProcessed(ctx context.Context, q dbtx, logID string) (bool, error) {
	var n int
	err := q.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM processed_logs WHERE log_id = ?`, logID,
	).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("check processed log %q: %w", logID, err)
	}
	return n > 0, nil
}

// CountProcessed returns the number of ledger entries (for tests and health).
func (s *Store) CountProcessed(ctx context.Context) (int64, error) {
	var count int64
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM processed_logs`).Scan(&count); err != nil {
		return 0, fmt.Errorf("count processed logs: %w", err)
	}
	return count, nil
}
