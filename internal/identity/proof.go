// Package identity models the external zero-knowledge identity-proof
// collaborator at its interface boundary. The gateway never interprets proof
// content, only the boolean outcome of a proof session.
package identity

import (
	"fmt"
	"net/url"
	"sync"

	"github.com/google/uuid"
)

// Disclosures enumerates the attributes a proof request asks for without
// revealing the underlying raw data.
type Disclosures struct {
	MinimumAge  int  `json:"minimumAge,omitempty"`
	Nationality bool `json:"nationality,omitempty"`
}

// ProofRequest is the explicit configuration handed to the proof widget.
// Recognized fields only; unknown SDK options are not carried.
type ProofRequest struct {
	// Version of the proof protocol. Defaults to 2.
	Version int `json:"version"`
	// AppName is shown to the user in the proving app. Required.
	AppName string `json:"appName"`
	// Scope is the application scope seed. Required.
	Scope string `json:"scope"`
	// Endpoint receives the generated proof for verification. Required.
	Endpoint string `json:"endpoint"`
	// SubjectID is the wallet address being attested. May be empty when no
	// address is known yet; the proof subject is then filled in later.
	SubjectID string `json:"userId,omitempty"`
	// SubjectIDType describes the SubjectID encoding. Defaults to "hex".
	SubjectIDType string `json:"userIdType"`
	// Disclosures are the requested attributes.
	Disclosures Disclosures `json:"disclosures"`
}

// NewProofRequest validates the configuration and applies defaults.
func NewProofRequest(appName, scope, endpoint, subjectID string, disclosures Disclosures) (*ProofRequest, error) {
	if appName == "" {
		return nil, fmt.Errorf("app name is required")
	}
	if scope == "" {
		return nil, fmt.Errorf("scope is required")
	}
	if endpoint == "" {
		return nil, fmt.Errorf("endpoint is required")
	}
	if disclosures.MinimumAge < 0 {
		return nil, fmt.Errorf("minimum age cannot be negative")
	}

	return &ProofRequest{
		Version:       2,
		AppName:       appName,
		Scope:         scope,
		Endpoint:      endpoint,
		SubjectID:     subjectID,
		SubjectIDType: "hex",
		Disclosures:   disclosures,
	}, nil
}

// DeepLink derives the scannable universal link for the request, carrying the
// session id so the proving app can address its callback.
func (r *ProofRequest) DeepLink(sessionID string) string {
	q := url.Values{}
	q.Set("scope", r.Scope)
	q.Set("endpoint", r.Endpoint)
	q.Set("sessionId", sessionID)
	if r.SubjectID != "" {
		q.Set("userId", r.SubjectID)
	}
	return "https://redirect.self.xyz/?" + q.Encode()
}

// Session is one cancellable proof attempt. The external widget's success and
// error callbacks fire at an arbitrary later time, possibly after the session
// that requested them has been superseded; a disposed session drops them.
type Session struct {
	ID      string
	Request *ProofRequest

	mu       sync.Mutex
	disposed bool
	resolved bool

	onSuccess func()
	onError   func(err error)
}

// NewSession creates a proof session around a validated request.
func NewSession(request *ProofRequest, onSuccess func(), onError func(error)) *Session {
	return &Session{
		ID:        uuid.NewString(),
		Request:   request,
		onSuccess: onSuccess,
		onError:   onError,
	}
}

// Succeed delivers the widget's success callback. Late or duplicate
// callbacks after disposal or resolution are ignored.
func (s *Session) Succeed() {
	s.mu.Lock()
	if s.disposed || s.resolved {
		s.mu.Unlock()
		return
	}
	s.resolved = true
	cb := s.onSuccess
	s.mu.Unlock()

	if cb != nil {
		cb()
	}
}

// Fail delivers the widget's error callback. The session stays open for
// retry: a later Succeed is still accepted.
func (s *Session) Fail(err error) {
	s.mu.Lock()
	if s.disposed || s.resolved {
		s.mu.Unlock()
		return
	}
	cb := s.onError
	s.mu.Unlock()

	if cb != nil {
		cb(err)
	}
}

// Dispose marks the session superseded; subsequent callbacks are dropped.
func (s *Session) Dispose() {
	s.mu.Lock()
	s.disposed = true
	s.mu.Unlock()
}

// Disposed reports whether the session has been superseded.
func (s *Session) Disposed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.disposed
}
