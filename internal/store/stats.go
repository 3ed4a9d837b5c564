package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// PlayerPlaytime is an aggregate of a player's recorded play time.
type PlayerPlaytime struct {
	PlayerID    string  `json:"player_id"`
	DisplayName string  `json:"display_name"`
	Sessions    int     `json:"sessions"`
	TotalHours  float64 `json:"total_hours"`
}

// ActivePlayer is a currently-open interval, i.e. a player connected right now.
type ActivePlayer struct {
	PlayerID    string `json:"player_id"`
	DisplayName string `json:"display_name"`
	ConnectTime string `json:"connect_time"`
}

// TotalPlaytimeByPlayer returns cumulative playtime per player, most played
// first. A limit of 0 means no limit.
func (s *Store) TotalPlaytimeByPlayer(ctx context.Context, limit int) ([]PlayerPlaytime, error) {
	query := `
	SELECT
		player_id,
		MAX(display_name) AS display_name,
		COUNT(*) AS sessions,
		SUM(playtime) / 3600.0 AS total_hours
	FROM sessions
	GROUP BY player_id
	ORDER BY total_hours DESC
	`
	var args []any
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("total playtime: %w", err)
	}
	defer rows.Close()

	return scanPlaytimes(rows)
}

// PlaytimeForDate returns per-player playtime recorded on a single calendar
// date, most played first.
func (s *Store) PlaytimeForDate(ctx context.Context, date string) ([]PlayerPlaytime, error) {
	const query = `
	SELECT
		player_id,
		MAX(display_name) AS display_name,
		COUNT(*) AS sessions,
		SUM(playtime) / 3600.0 AS total_hours
	FROM sessions
	WHERE date = ?
	GROUP BY player_id
	ORDER BY total_hours DESC
	`
	rows, err := s.db.QueryContext(ctx, query, date)
	if err != nil {
		return nil, fmt.Errorf("playtime for date %s: %w", date, err)
	}
	defer rows.Close()

	return scanPlaytimes(rows)
}

// OpenIntervals returns the players with an open interval on the given date.
func (s *Store) OpenIntervals(ctx context.Context, date string) ([]ActivePlayer, error) {
	const query = `
	SELECT player_id, display_name, connect_time
	FROM sessions
	WHERE date = ? AND disconnect_time IS NULL
	ORDER BY connect_time ASC
	`
	rows, err := s.db.QueryContext(ctx, query, date)
	if err != nil {
		return nil, fmt.Errorf("open intervals: %w", err)
	}
	defer rows.Close()

	players := []ActivePlayer{}
	for rows.Next() {
		var p ActivePlayer
		if err := rows.Scan(&p.PlayerID, &p.DisplayName, &p.ConnectTime); err != nil {
			return nil, fmt.Errorf("scan active player: %w", err)
		}
		players = append(players, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return players, nil
}

func scanPlaytimes(rows *sql.Rows) ([]PlayerPlaytime, error) {
	out := []PlayerPlaytime{}
	for rows.Next() {
		var p PlayerPlaytime
		if err := rows.Scan(&p.PlayerID, &p.DisplayName, &p.Sessions, &p.TotalHours); err != nil {
			return nil, fmt.Errorf("scan playtime: %w", err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return out, nil
}

// Today returns the current calendar date as a DateFormat string.
func Today(now time.Time) string {
	return now.Format(DateFormat)
}

// Yesterday returns the previous calendar date as a DateFormat string.
func Yesterday(now time.Time) string {
	return now.AddDate(0, 0, -1).Format(DateFormat)
}
