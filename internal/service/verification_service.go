package service

import (
	"context"
	"sync"
	"time"

	"github.com/zkrex/zkrex/internal/adapter"
	"github.com/zkrex/zkrex/internal/config"
	"github.com/zkrex/zkrex/internal/identity"
	"github.com/zkrex/zkrex/internal/logging"
	"github.com/zkrex/zkrex/internal/types"
)

// RecordStore is the persistent verification cache consulted by the gate.
type RecordStore interface {
	Read(ctx context.Context, subjectID string) (*types.VerificationRecord, error)
	Write(ctx context.Context, subjectID string, record types.VerificationRecord) error
	Subscribe(ctx context.Context) (<-chan string, func(), error)
}

// Status is the gate's externally visible state.
type Status struct {
	State     types.VerificationState   `json:"state"`
	Record    *types.VerificationRecord `json:"record,omitempty"`
	SessionID string                    `json:"sessionId,omitempty"`
	DeepLink  string                    `json:"deepLink,omitempty"`
	// AutoCloseDelayMs is in milliseconds on the wire; a raw time.Duration
	// would serialize as nanoseconds.
	AutoCloseDelayMs int64 `json:"autoCloseDelayMs,omitempty"`
}

// VerificationService is the verification gate. It decides, with minimum
// friction and minimum redundant external calls, whether the current user is
// verified, and drives the external proof flow when not. Every external
// failure degrades to the proof flow; there is no hard failure state.
type VerificationService struct {
	store  RecordStore
	reader adapter.ChainReader
	cfg    config.VerificationConfig
	logger *logging.Logger

	mu         sync.Mutex
	state      types.VerificationState
	record     *types.VerificationRecord
	subjectID  string
	session    *identity.Session
	generation uint64
}

// NewVerificationService creates the gate in its initial Unknown state.
func NewVerificationService(store RecordStore, reader adapter.ChainReader, cfg config.VerificationConfig, logger *logging.Logger) *VerificationService {
	if logger == nil {
		logger = logging.GetGlobalLogger()
	}
	return &VerificationService{
		store:  store,
		reader: reader,
		cfg:    cfg,
		logger: logger.WithField("component", "verification_gate"),
		state:  types.StateUnknown,
	}
}

// Mount reads the cache for the subject and derives the initial state. A
// cached verified record short-circuits straight to Verified; the proof flow
// is never initialized in that case.
func (s *VerificationService) Mount(ctx context.Context, subjectID string) types.VerificationState {
	subjectID = types.NormalizeAddress(subjectID)

	record, err := s.store.Read(ctx, subjectID)
	s.mu.Lock()
	defer s.mu.Unlock()

	if subjectID != s.subjectID {
		// A subject switch supersedes any proof flow opened for the
		// previous subject; its late callbacks must not apply here.
		s.disposeSessionLocked()
		s.generation++
	}
	s.subjectID = subjectID
	switch {
	case err != nil:
		s.logger.WithError(err).Warn("verification cache read failed")
		s.state = types.StateCheckFailed
		s.record = nil
	case record != nil && record.Verified:
		s.state = types.StateVerified
		s.record = record
	default:
		s.state = types.StateNotVerified
		s.record = nil
	}
	return s.state
}

// Status returns the current gate status, including the open proof session
// when one exists.
func (s *VerificationService) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := Status{State: s.state, Record: s.record}
	if s.state == types.StateVerified {
		st.AutoCloseDelayMs = s.cfg.SuccessCloseDelay.Milliseconds()
	}
	if s.session != nil && s.state == types.StateAwaitingProof {
		st.SessionID = s.session.ID
		st.DeepLink = s.session.Request.DeepLink(s.session.ID)
	}
	return st
}

// StartVerification drives the user-initiated verification flow. Already
// verified sessions are a no-op. With a known address the on-chain registry
// is consulted first; any failure on that path falls through to opening a
// proof session, never to a user-facing error.
func (s *VerificationService) StartVerification(ctx context.Context, address string) Status {
	address = types.NormalizeAddress(address)

	s.mu.Lock()
	if s.state == types.StateVerified {
		defer s.mu.Unlock()
		return Status{State: s.state, Record: s.record, AutoCloseDelayMs: s.cfg.SuccessCloseDelay.Milliseconds()}
	}
	s.subjectID = address

	if address == "" {
		// No address yet: the proof subject id is filled in later.
		s.openSessionLocked("")
		defer s.mu.Unlock()
		return s.statusLocked()
	}

	s.state = types.StateCheckingOnChain
	s.mu.Unlock()

	if !types.ValidAddress(s.cfg.RegistryAddress) {
		// Non-fatal configuration gap; skip the optimization path.
		s.logger.Warn("verification registry address is not a contract address, opening proof flow")
		return s.openSession(address)
	}

	verified, err := s.reader.IsVerified(ctx, s.cfg.RegistryAddress, address)
	if err != nil {
		// The proof flow is the safe fallback; the transport error is
		// never surfaced to the user.
		s.logger.WithError(err).Warn("on-chain verification pre-check failed, opening proof flow")
		return s.openSession(address)
	}

	if !verified {
		return s.openSession(address)
	}

	// Already registered on-chain by some other means: cache it and skip
	// the proof flow entirely.
	record := types.VerificationRecord{Verified: true, At: time.Now(), SubjectID: address}
	if err := s.store.Write(ctx, address, record); err != nil {
		s.logger.WithError(err).Warn("failed to cache on-chain verification result")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.disposeSessionLocked()
	s.state = types.StateVerified
	s.record = &record
	return s.statusLocked()
}

// ProofSucceeded relays the widget's success callback for a session. Late
// callbacks from superseded sessions are ignored.
func (s *VerificationService) ProofSucceeded(sessionID string) bool {
	s.mu.Lock()
	session := s.session
	s.mu.Unlock()

	if session == nil || session.ID != sessionID {
		return false
	}
	session.Succeed()
	return true
}

// ProofFailed relays the widget's error callback for a session. The gate
// stays in AwaitingProof for retry.
func (s *VerificationService) ProofFailed(sessionID string, err error) bool {
	s.mu.Lock()
	session := s.session
	s.mu.Unlock()

	if session == nil || session.ID != sessionID {
		return false
	}
	session.Fail(err)
	return true
}

// WatchStore re-derives the gate's state when another session writes the
// shared cache, so a verification completed elsewhere hides the prompt here
// without a reload. Blocks until the context ends.
func (s *VerificationService) WatchStore(ctx context.Context) error {
	events, stop, err := s.store.Subscribe(ctx)
	if err != nil {
		return err
	}
	defer stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case subject, ok := <-events:
			if !ok {
				return nil
			}
			s.mu.Lock()
			current := s.subjectID
			s.mu.Unlock()
			if subject != subjectKeyFor(current) {
				continue
			}
			s.Mount(ctx, current)
		}
	}
}

func subjectKeyFor(subjectID string) string {
	if subjectID == "" {
		return "anonymous"
	}
	return subjectID
}

func (s *VerificationService) openSession(subjectID string) Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.openSessionLocked(subjectID)
	return s.statusLocked()
}

// openSessionLocked supersedes any previous proof session and opens a fresh
// one. A failure to build the request leaves the gate in AwaitingProof with
// no session; the user can retry.
func (s *VerificationService) openSessionLocked(subjectID string) {
	s.disposeSessionLocked()
	s.generation++
	gen := s.generation

	request, err := identity.NewProofRequest(
		s.cfg.AppName,
		s.cfg.ScopeSeed,
		s.cfg.ProofCallbackEndpoint,
		subjectID,
		identity.Disclosures{MinimumAge: s.cfg.MinimumAge, Nationality: s.cfg.RequireNationality},
	)
	if err != nil {
		s.logger.WithError(err).Warn("failed to initialize proof request")
		s.state = types.StateAwaitingProof
		s.session = nil
		return
	}

	s.session = identity.NewSession(request,
		func() { s.completeProof(gen, subjectID) },
		func(err error) { s.logger.WithError(err).Warn("proof verification reported an error") },
	)
	s.state = types.StateAwaitingProof
}

func (s *VerificationService) disposeSessionLocked() {
	if s.session != nil {
		s.session.Dispose()
		s.session = nil
	}
}

// completeProof handles a successful proof outcome for the given generation.
func (s *VerificationService) completeProof(gen uint64, subjectID string) {
	s.mu.Lock()
	if gen != s.generation {
		s.mu.Unlock()
		return
	}
	record := types.VerificationRecord{Verified: true, At: time.Now(), SubjectID: subjectID}
	s.state = types.StateVerified
	s.record = &record
	s.session = nil
	s.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.store.Write(ctx, subjectID, record); err != nil {
		// The in-memory state stays Verified for this session; only the
		// cross-session cache write was lost.
		s.logger.WithError(err).Warn("failed to persist verification record")
	}
}

func (s *VerificationService) statusLocked() Status {
	st := Status{State: s.state, Record: s.record}
	if s.state == types.StateVerified {
		st.AutoCloseDelayMs = s.cfg.SuccessCloseDelay.Milliseconds()
	}
	if s.session != nil && s.state == types.StateAwaitingProof {
		st.SessionID = s.session.ID
		st.DeepLink = s.session.Request.DeepLink(s.session.ID)
	}
	return st
}
