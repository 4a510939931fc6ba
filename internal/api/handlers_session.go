package api

import (
	"net/http"

	"github.com/zkrex/zkrex/internal/types"
)

type loginRequest struct {
	Address string `json:"address"`
}

type sessionResponse struct {
	Authenticated bool   `json:"authenticated"`
	Address       string `json:"address,omitempty"`
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	session := s.wallet.Current()
	respondJSON(w, http.StatusOK, sessionResponse{
		Authenticated: session.Authenticated,
		Address:       session.Address,
	})
}

// handleLogin records an authenticated wallet session. Address changes fan
// out to the balance and verification watchers.
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := parseJSONBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, ErrCodeInvalidInput, "Invalid request body", nil)
		return
	}
	if req.Address != "" && !types.ValidAddress(req.Address) {
		respondError(w, http.StatusBadRequest, ErrCodeInvalidInput, "Invalid address format", nil)
		return
	}

	s.wallet.Login(req.Address)
	session := s.wallet.Current()
	respondJSON(w, http.StatusOK, sessionResponse{
		Authenticated: session.Authenticated,
		Address:       session.Address,
	})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	s.wallet.Logout()
	respondJSON(w, http.StatusOK, sessionResponse{Authenticated: false})
}
