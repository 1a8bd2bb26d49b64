package server

import (
	"encoding/json"
	"net/http"
	"wager-leaderboard/internal/domain"
	"wager-leaderboard/internal/service"

	"github.com/rs/zerolog"
)

type LeaderboardServer struct {
	svc *service.LeaderboardService
}

func NewLeaderboardServer(svc *service.LeaderboardService) *LeaderboardServer {
	return &LeaderboardServer{svc: svc}
}

func (s *LeaderboardServer) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /{$}", s.Status)
	mux.HandleFunc("GET /leaderboard/upgrader", s.UpgraderCurrent)
	mux.HandleFunc("GET /leaderboard/prev-upgrade", s.UpgraderPrevious)
	mux.HandleFunc("GET /leaderboard/top14", s.RainbetCurrent)
	mux.HandleFunc("GET /leaderboard/prev", s.RainbetPrevious)
}

type statusResponse struct {
	Status         string            `json:"status"`
	Endpoints      map[string]string `json:"endpoints"`
	AffiliateCodes map[string]string `json:"affiliate_codes"`
	Refresh        service.Status    `json:"refresh"`
}

func (s *LeaderboardServer) Status(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, r, http.StatusOK, statusResponse{
		Status: "API Server Running",
		Endpoints: map[string]string{
			"upgrader_current":  "/leaderboard/upgrader",
			"upgrader_previous": "/leaderboard/prev-upgrade",
			"rainbet_current":   "/leaderboard/top14",
			"rainbet_previous":  "/leaderboard/prev",
		},
		AffiliateCodes: map[string]string{
			"upgrader": "JUAN",
			"rainbet":  "Active",
		},
		Refresh: s.svc.Status(),
	})
}

func (s *LeaderboardServer) UpgraderCurrent(w http.ResponseWriter, r *http.Request) {
	s.writeRows(w, r, s.svc.UpgraderCurrent())
}

func (s *LeaderboardServer) UpgraderPrevious(w http.ResponseWriter, r *http.Request) {
	s.writeRows(w, r, s.svc.UpgraderPrevious())
}

func (s *LeaderboardServer) RainbetCurrent(w http.ResponseWriter, r *http.Request) {
	s.writeRows(w, r, s.svc.Rainbet())
}

func (s *LeaderboardServer) RainbetPrevious(w http.ResponseWriter, r *http.Request) {
	rows, err := s.svc.RainbetPreviousMonth(r.Context())
	if err != nil {
		s.writeJSON(w, r, http.StatusInternalServerError, map[string]string{
			"error": "Failed to fetch previous leaderboard data.",
		})
		return
	}
	s.writeRows(w, r, rows)
}

func (s *LeaderboardServer) writeRows(w http.ResponseWriter, r *http.Request, rows []domain.LeaderboardRow) {
	if rows == nil {
		rows = []domain.LeaderboardRow{}
	}
	s.writeJSON(w, r, http.StatusOK, rows)
}

func (s *LeaderboardServer) writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zerolog.Ctx(r.Context()).Warn().Err(err).Str("path", r.URL.Path).Msg("failed to write response")
	}
}
