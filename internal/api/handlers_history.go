package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"github.com/zkrex/zkrex/internal/service"
	"github.com/zkrex/zkrex/internal/types"
)

type historyResponse struct {
	Address string                 `json:"address"`
	Network string                 `json:"network"`
	Days    int                    `json:"days"`
	Points  []types.PortfolioPoint `json:"points"`
}

// handleGetHistory returns a gap-filled portfolio series for an address.
func (s *Server) handleGetHistory(w http.ResponseWriter, r *http.Request) {
	address := mux.Vars(r)["address"]
	if !types.ValidAddress(address) {
		respondError(w, http.StatusBadRequest, ErrCodeInvalidInput, "Invalid address format", nil)
		return
	}

	days := service.DefaultWindowDays
	if raw := r.URL.Query().Get("days"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			respondError(w, http.StatusBadRequest, ErrCodeInvalidInput, "days must be a positive integer", nil)
			return
		}
		days = parsed
	}

	points, err := s.history.Series(r.Context(), types.NormalizeAddress(address), days, time.Now())
	if err != nil {
		s.logger.WithError(err).Error("Failed to load portfolio history")
		respondError(w, http.StatusInternalServerError, ErrCodeInternalError, "Failed to load portfolio history", nil)
		return
	}

	respondJSON(w, http.StatusOK, historyResponse{
		Address: types.NormalizeAddress(address),
		Network: string(s.network),
		Days:    days,
		Points:  points,
	})
}

// handleRecordHistory upserts today's portfolio point for an address.
func (s *Server) handleRecordHistory(w http.ResponseWriter, r *http.Request) {
	address := mux.Vars(r)["address"]
	if !types.ValidAddress(address) {
		respondError(w, http.StatusBadRequest, ErrCodeInvalidInput, "Invalid address format", nil)
		return
	}

	var point types.PortfolioPoint
	if err := parseJSONBody(r, &point); err != nil {
		respondError(w, http.StatusBadRequest, ErrCodeInvalidInput, "Invalid request body", nil)
		return
	}
	if point.Date == "" {
		point.Date = types.DateString(time.Now())
	}

	if err := s.history.Record(r.Context(), types.NormalizeAddress(address), point); err != nil {
		s.logger.WithError(err).Error("Failed to record portfolio point")
		respondError(w, http.StatusInternalServerError, ErrCodeInternalError, "Failed to record portfolio point", nil)
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{"status": "recorded", "date": point.Date})
}
