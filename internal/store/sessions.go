package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// endOfDay is the disconnect time written when an interval is closed by the
// day-splitting pass rather than by a real disconnect.
const endOfDay = "23:59:59"

// startOfDay is the connect time for intervals opened by day-splitting.
const startOfDay = "00:00:00"

// fullDaySeconds is the playtime of a gap-day interval.
const fullDaySeconds = 86400

// Interval is one contiguous, single-calendar-day span of play time.
// Date, ConnectTime, and DisconnectTime are wall-clock strings in DateFormat
// and ClockFormat; DisconnectTime is empty while the interval is open.
type Interval struct {
	ID              int64
	PlayerID        string
	ConnectionToken string
	DisplayName     string
	EnrichedName    string
	Date            string
	ConnectTime     string
	DisconnectTime  string
	PlaytimeSeconds int64
}

// Open reports whether the interval has no disconnect time yet.
func (iv *Interval) Open() bool {
	return iv.DisconnectTime == ""
}

const intervalColumns = `id, player_id, connection_token, display_name, enriched_name, date, connect_time, disconnect_time, playtime`

func scanInterval(row interface{ Scan(...any) error }) (*Interval, error) {
	var (
		iv         Interval
		enriched   sql.NullString
		disconnect sql.NullString
	)
	err := row.Scan(
		&iv.ID, &iv.PlayerID, &iv.ConnectionToken, &iv.DisplayName,
		&enriched, &iv.Date, &iv.ConnectTime, &disconnect, &iv.PlaytimeSeconds,
	)
	if err != nil {
		return nil, err
	}
	iv.EnrichedName = enriched.String
	iv.DisconnectTime = disconnect.String
	return &iv, nil
}

// openInterval inserts a new open interval. A uniqueness conflict (an open
// interval already exists for the token and date) is benign: duplicate
// connect delivery drops the insert instead of erroring.
func openInterval(ctx context.Context, q dbtx, playerID, token, displayName, enrichedName, date, connectTime string) (id int64, inserted bool, err error) {
	const query = `
	INSERT INTO sessions
	(player_id, connection_token, display_name, enriched_name, date, connect_time, disconnect_time, playtime)
	VALUES (?, ?, ?, ?, ?, ?, NULL, 0)
	ON CONFLICT DO NOTHING
	`
	result, err := q.ExecContext(ctx, query,
		playerID, token, displayName, nullIfEmpty(enrichedName), date, connectTime,
	)
	if err != nil {
		return 0, false, fmt.Errorf("open interval: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return 0, false, fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return 0, false, nil
	}

	id, err = result.LastInsertId()
	if err != nil {
		return 0, false, fmt.Errorf("last insert id: %w", err)
	}
	return id, true, nil
}

// insertClosedInterval inserts an already-closed interval (used for the
// full-day rows written by day-splitting).
func insertClosedInterval(ctx context.Context, q dbtx, playerID, token, displayName, enrichedName, date, connectTime, disconnectTime string, playtime int64) error {
	const query = `
	INSERT INTO sessions
	(player_id, connection_token, display_name, enriched_name, date, connect_time, disconnect_time, playtime)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT DO NOTHING
	`
	if _, err := q.ExecContext(ctx, query,
		playerID, token, displayName, nullIfEmpty(enrichedName), date, connectTime, disconnectTime, playtime,
	); err != nil {
		return fmt.Errorf("insert closed interval: %w", err)
	}
	return nil
}

// closeInterval sets the disconnect time and computes the playtime as the
// non-negative delta from the connect time. No-op if the interval does not
// exist. The playtime is computed once here and never re-derived.
func closeInterval(ctx context.Context, q dbtx, id int64, disconnectTime string) error {
	var connectTime string
	err := q.QueryRowContext(ctx, `SELECT connect_time FROM sessions WHERE id = ?`, id).Scan(&connectTime)
	if errors.Is(err, sql.ErrNoRows) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("close interval %d: %w", id, err)
	}

	playtime := secondsBetween(connectTime, disconnectTime)
	if _, err := q.ExecContext(ctx,
		`UPDATE sessions SET disconnect_time = ?, playtime = ? WHERE id = ?`,
		disconnectTime, playtime, id,
	); err != nil {
		return fmt.Errorf("close interval %d: %w", id, err)
	}
	return nil
}

// findOpenInterval returns the most recent open interval for a token, or nil
// if none exists. There should be at most one by invariant; the ordering
// tolerates a momentarily-violated invariant gracefully.
func findOpenInterval(ctx context.Context, q dbtx, token string) (*Interval, error) {
	query := `
	SELECT ` + intervalColumns + `
	FROM sessions
	WHERE connection_token = ? AND disconnect_time IS NULL
	ORDER BY date DESC, connect_time DESC
	LIMIT 1
	`
	iv, err := scanInterval(q.QueryRowContext(ctx, query, token))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find open interval: %w", err)
	}
	return iv, nil
}

// getInterval returns the interval with the given id, or nil if missing.
func getInterval(ctx context.Context, q dbtx, id int64) (*Interval, error) {
	query := `SELECT ` + intervalColumns + ` FROM sessions WHERE id = ?`
	iv, err := scanInterval(q.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get interval %d: %w", id, err)
	}
	return iv, nil
}

// splitIfCrossedMidnight rewrites an open interval whose date is before
// now's calendar date into one closed interval per day: the open interval is
// closed at 23:59:59 of its own date, each gap day gets a full-day interval
// (playtime 86400), and a fresh interval is opened on today's date at
// 00:00:00. Called before every connect and disconnect mutation so that no
// interval ever spans more than one calendar date.
func splitIfCrossedMidnight(ctx context.Context, q dbtx, playerID, token, displayName, enrichedName string, now time.Time) error {
	open, err := findOpenInterval(ctx, q, token)
	if err != nil {
		return err
	}
	if open == nil {
		return nil
	}

	openDate, err := time.ParseInLocation(DateFormat, open.Date, now.Location())
	if err != nil {
		return fmt.Errorf("parse open interval date %q: %w", open.Date, err)
	}
	today := midnight(now)
	if !openDate.Before(today) {
		return nil
	}

	if err := closeInterval(ctx, q, open.ID, endOfDay); err != nil {
		return err
	}

	for d := openDate.AddDate(0, 0, 1); d.Before(today); d = d.AddDate(0, 0, 1) {
		err := insertClosedInterval(ctx, q,
			playerID, token, displayName, enrichedName,
			d.Format(DateFormat), startOfDay, endOfDay, fullDaySeconds,
		)
		if err != nil {
			return err
		}
	}

	_, _, err = openInterval(ctx, q,
		playerID, token, displayName, enrichedName,
		today.Format(DateFormat), startOfDay,
	)
	return err
}

// OpenInterval inserts a new open interval inside the transaction.
func (t *Tx) OpenInterval(ctx context.Context, playerID, token, displayName, enrichedName, date, connectTime string) (int64, bool, error) {
	return openInterval(ctx, t.tx, playerID, token, displayName, enrichedName, date, connectTime)
}

// CloseInterval closes the interval with the given id at disconnectTime.
func (t *Tx) CloseInterval(ctx context.Context, id int64, disconnectTime string) error {
	return closeInterval(ctx, t.tx, id, disconnectTime)
}

// FindOpenInterval returns the open interval for a token, or nil.
func (t *Tx) FindOpenInterval(ctx context.Context, token string) (*Interval, error) {
	return findOpenInterval(ctx, t.tx, token)
}

// GetInterval returns the interval with the given id, or nil.
func (t *Tx) GetInterval(ctx context.Context, id int64) (*Interval, error) {
	return getInterval(ctx, t.tx, id)
}

// SplitIfCrossedMidnight runs the day-splitting pass for a token.
func (t *Tx) SplitIfCrossedMidnight(ctx context.Context, playerID, token, displayName, enrichedName string, now time.Time) error {
	return splitIfCrossedMidnight(ctx, t.tx, playerID, token, displayName, enrichedName, now)
}

// FindOpenInterval returns the open interval for a token outside any
// transaction (read-only callers).
func (s *Store) FindOpenInterval(ctx context.Context, token string) (*Interval, error) {
	return findOpenInterval(ctx, s.db, token)
}

// GetInterval returns the interval with the given id outside any transaction.
func (s *Store) GetInterval(ctx context.Context, id int64) (*Interval, error) {
	return getInterval(ctx, s.db, id)
}

// IntervalsForToken returns all intervals for a connection token ordered by
// date then connect time (for tests and diagnostics).
func (s *Store) IntervalsForToken(ctx context.Context, token string) ([]Interval, error) {
	query := `
	SELECT ` + intervalColumns + `
	FROM sessions
	WHERE connection_token = ?
	ORDER BY date ASC, connect_time ASC
	`
	rows, err := s.db.QueryContext(ctx, query, token)
	if err != nil {
		return nil, fmt.Errorf("intervals for token: %w", err)
	}
	defer rows.Close()

	var out []Interval
	for rows.Next() {
		iv, err := scanInterval(rows)
		if err != nil {
			return nil, fmt.Errorf("scan interval: %w", err)
		}
		out = append(out, *iv)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return out, nil
}

// secondsBetween returns the non-negative number of seconds from a to b,
// both ClockFormat time-of-day strings on the same date. A disconnect that
// precedes its connect clamps to zero rather than going negative.
func secondsBetween(a, b string) int64 {
	ta, errA := time.Parse(ClockFormat, a)
	tb, errB := time.Parse(ClockFormat, b)
	if errA != nil || errB != nil {
		return 0
	}
	secs := int64(tb.Sub(ta) / time.Second)
	if secs < 0 {
		return 0
	}
	return secs
}

// midnight returns the start of now's calendar day in now's location.
func midnight(now time.Time) time.Time {
	y, m, d := now.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, now.Location())
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}
