package api

import (
	"net/http"

	"github.com/zkrex/zkrex/internal/identity"
)

// verifyResult is the body returned by the proof callback endpoint. The
// verifier relay that posts proofs here treats any non-200 response as a
// transport failure and retries, so outcomes are always reported in-band.
type verifyResult struct {
	Status string `json:"status"`
	Result bool   `json:"result"`
	Reason string `json:"reason,omitempty"`
}

func proofError(reason string) verifyResult {
	return verifyResult{Status: "error", Result: false, Reason: reason}
}

// handleVerifyProof receives a zero-knowledge proof from the verifier relay
// and checks it against the configured scope.
func (s *Server) handleVerifyProof(w http.ResponseWriter, r *http.Request) {
	var payload identity.ProofPayload
	if err := parseJSONBody(r, &payload); err != nil {
		respondJSON(w, http.StatusOK, proofError("Invalid request body"))
		return
	}

	if err := payload.Validate(); err != nil {
		respondJSON(w, http.StatusOK, proofError(err.Error()))
		return
	}

	result, err := s.verifier.Verify(r.Context(), &payload)
	if err != nil {
		s.logger.WithError(err).Error("Proof verification failed")
		respondJSON(w, http.StatusOK, proofError(err.Error()))
		return
	}

	// A cryptographically valid proof is still rejected when the
	// minimum-age disclosure inside it fails.
	if !result.IsValid || !result.IsMinimumAgeValid {
		reason := "Verification failed"
		if !result.IsMinimumAgeValid {
			reason = "Minimum age verification failed"
		}
		respondJSON(w, http.StatusOK, proofError(reason))
		return
	}

	respondJSON(w, http.StatusOK, verifyResult{Status: "success", Result: true})
}
