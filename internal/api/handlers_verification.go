package api

import (
	"errors"
	"net/http"

	"github.com/zkrex/zkrex/internal/types"
)

type startVerificationRequest struct {
	Address string `json:"address"`
}

type proofResultRequest struct {
	SessionID string `json:"sessionId"`
	Success   bool   `json:"success"`
	Reason    string `json:"reason,omitempty"`
}

// handleVerificationStatus returns the current gate state.
func (s *Server) handleVerificationStatus(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, s.verification.Status())
}

// handleStartVerification runs the gate for an address: checks the on-chain
// registry first and opens a proof session when that does not settle the
// question.
func (s *Server) handleStartVerification(w http.ResponseWriter, r *http.Request) {
	var req startVerificationRequest
	if err := parseJSONBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, ErrCodeInvalidInput, "Invalid request body", nil)
		return
	}

	if req.Address != "" && !types.ValidAddress(req.Address) {
		respondError(w, http.StatusBadRequest, ErrCodeInvalidInput, "Invalid address format", nil)
		return
	}

	respondJSON(w, http.StatusOK, s.verification.StartVerification(r.Context(), req.Address))
}

// handleProofResult relays a proof session outcome reported by the client
// back into the gate.
func (s *Server) handleProofResult(w http.ResponseWriter, r *http.Request) {
	var req proofResultRequest
	if err := parseJSONBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, ErrCodeInvalidInput, "Invalid request body", nil)
		return
	}
	if req.SessionID == "" {
		respondError(w, http.StatusBadRequest, ErrCodeInvalidInput, "sessionId is required", nil)
		return
	}

	var accepted bool
	if req.Success {
		accepted = s.verification.ProofSucceeded(req.SessionID)
	} else {
		reason := req.Reason
		if reason == "" {
			reason = "proof rejected"
		}
		accepted = s.verification.ProofFailed(req.SessionID, errors.New(reason))
	}

	if !accepted {
		respondError(w, http.StatusNotFound, ErrCodeNotFound, "Unknown or expired session", map[string]interface{}{
			"sessionId": req.SessionID,
		})
		return
	}

	respondJSON(w, http.StatusOK, s.verification.Status())
}
