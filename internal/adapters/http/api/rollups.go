package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

func (s *Server) handleTeamRollup(w http.ResponseWriter, r *http.Request) {
	p, err := s.queryPeriod(r)
	if err != nil {
		s.fail(w, r, "team rollup", err)
		return
	}
	out, err := s.deps.TeamRollup(r.Context(), chi.URLParam(r, "leaderID"), p)
	if err != nil {
		s.fail(w, r, "team rollup", err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleManagerRollup(w http.ResponseWriter, r *http.Request) {
	p, err := s.queryPeriod(r)
	if err != nil {
		s.fail(w, r, "manager rollup", err)
		return
	}
	out, err := s.deps.ManagerRollup(r.Context(), chi.URLParam(r, "managerID"), p)
	if err != nil {
		s.fail(w, r, "manager rollup", err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

// handleLeaderboard handles GET /api/v1/leaderboard?month=&year=&limit=.
func (s *Server) handleLeaderboard(w http.ResponseWriter, r *http.Request) {
	p, err := s.queryPeriod(r)
	if err != nil {
		s.fail(w, r, "leaderboard", err)
		return
	}
	limit, err := queryLimit(r, s.maxLeaderboardLimit)
	if err != nil {
		s.fail(w, r, "leaderboard", err)
		return
	}
	entries, err := s.deps.Leaderboard(r.Context(), p, limit)
	if err != nil {
		s.fail(w, r, "leaderboard", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"period":  p,
		"entries": entries,
		"count":   len(entries),
	})
}
