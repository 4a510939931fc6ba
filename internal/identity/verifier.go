package identity

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// ProofPayload is the proof bundle submitted for backend verification. The
// proof fields are opaque to the gateway.
type ProofPayload struct {
	AttestationID   json.RawMessage `json:"attestationId"`
	Proof           json.RawMessage `json:"proof"`
	PublicSignals   json.RawMessage `json:"publicSignals"`
	UserContextData json.RawMessage `json:"userContextData"`
}

// Validate checks that every required field is present.
func (p *ProofPayload) Validate() error {
	if len(p.Proof) == 0 || len(p.PublicSignals) == 0 || len(p.AttestationID) == 0 || len(p.UserContextData) == 0 {
		return fmt.Errorf("proof, publicSignals, attestationId and userContextData are required")
	}
	return nil
}

// Result is the outcome of a backend proof verification.
type Result struct {
	IsValid           bool `json:"isValid"`
	IsMinimumAgeValid bool `json:"isMinimumAgeValid"`
}

// Verifier checks a proof payload against the identity backend.
type Verifier interface {
	Verify(ctx context.Context, payload *ProofPayload) (*Result, error)
}

// HTTPVerifier implements Verifier over the identity backend's HTTP API.
type HTTPVerifier struct {
	endpoint   string
	scope      string
	minimumAge int
	client     *http.Client
}

// NewHTTPVerifier creates a backend verifier client.
func NewHTTPVerifier(endpoint, scope string, minimumAge int) (*HTTPVerifier, error) {
	if endpoint == "" {
		return nil, fmt.Errorf("verifier endpoint is required")
	}

	return &HTTPVerifier{
		endpoint:   endpoint,
		scope:      scope,
		minimumAge: minimumAge,
		client:     &http.Client{Timeout: 15 * time.Second},
	}, nil
}

type verifyRequest struct {
	Scope           string          `json:"scope"`
	MinimumAge      int             `json:"minimumAge"`
	AttestationID   json.RawMessage `json:"attestationId"`
	Proof           json.RawMessage `json:"proof"`
	PublicSignals   json.RawMessage `json:"publicSignals"`
	UserContextData json.RawMessage `json:"userContextData"`
}

type verifyResponse struct {
	IsValidDetails struct {
		IsValid           bool  `json:"isValid"`
		IsMinimumAgeValid *bool `json:"isMinimumAgeValid"`
	} `json:"isValidDetails"`
}

// Verify posts the payload to the backend and maps its validity details.
func (v *HTTPVerifier) Verify(ctx context.Context, payload *ProofPayload) (*Result, error) {
	body, err := json.Marshal(verifyRequest{
		Scope:           v.scope,
		MinimumAge:      v.minimumAge,
		AttestationID:   payload.AttestationID,
		Proof:           payload.Proof,
		PublicSignals:   payload.PublicSignals,
		UserContextData: payload.UserContextData,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode verify request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, v.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build verify request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := v.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("verifier request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("verifier returned status %d", resp.StatusCode)
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read verifier response: %w", err)
	}

	var parsed verifyResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, fmt.Errorf("failed to decode verifier response: %w", err)
	}

	result := &Result{
		IsValid:           parsed.IsValidDetails.IsValid,
		IsMinimumAgeValid: true,
	}
	if parsed.IsValidDetails.IsMinimumAgeValid != nil {
		result.IsMinimumAgeValid = *parsed.IsValidDetails.IsMinimumAgeValid
	}
	return result, nil
}
