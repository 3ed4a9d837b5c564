package api

import (
	"net/http"

	"github.com/logtrail/logtrail/internal/store"
)

// healthResponse is the response for GET /api/v1/health.
type healthResponse struct {
	Status         string `json:"status"`
	PendingTokens  int    `json:"pending_tokens"`
	ActivePlayers  int    `json:"active_players"`
	ProcessedLines int64  `json:"processed_lines"`
}

// statsResponse is the response for GET /api/v1/stats.
type statsResponse struct {
	TotalPlaytime []store.PlayerPlaytime `json:"total_playtime"`
	OnlineNow     []store.ActivePlayer   `json:"online_now"`
}

// handleHealth reports database reachability and correlation state counters.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if err := s.store.Ping(ctx); err != nil {
		writeError(w, http.StatusServiceUnavailable, "database unavailable", err)
		return
	}

	processed, err := s.store.CountProcessed(ctx)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal error", err)
		return
	}

	writeJSON(w, http.StatusOK, healthResponse{
		Status:         "ok",
		PendingTokens:  s.corr.PendingCount(),
		ActivePlayers:  s.corr.ActiveCount(),
		ProcessedLines: processed,
	})
}

// handleStats returns cumulative playtime per player and who is online now.
func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	total, err := s.store.TotalPlaytimeByPlayer(ctx, 0)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal error", err)
		return
	}

	online, err := s.store.OpenIntervals(ctx, store.Today(s.now()))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal error", err)
		return
	}

	writeJSON(w, http.StatusOK, statsResponse{
		TotalPlaytime: total,
		OnlineNow:     online,
	})
}

// handleDailyReport triggers an immediate daily summary send.
func (s *Server) handleDailyReport(w http.ResponseWriter, r *http.Request) {
	if err := s.reporter.SendDaily(r.Context()); err != nil {
		writeError(w, http.StatusBadGateway, "report delivery failed", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "sent"})
}
