package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/zkrex/zkrex/internal/config"
	"github.com/zkrex/zkrex/internal/identity"
	"github.com/zkrex/zkrex/internal/logging"
	"github.com/zkrex/zkrex/internal/service"
	"github.com/zkrex/zkrex/internal/types"
	"github.com/zkrex/zkrex/internal/wallet"
)

// BalanceProvider exposes balance snapshots to the HTTP layer.
type BalanceProvider interface {
	Refresh(ctx context.Context, address string) service.Snapshot
	Current() service.Snapshot
}

// VerificationProvider exposes the verification gate to the HTTP layer.
type VerificationProvider interface {
	Mount(ctx context.Context, subjectID string) types.VerificationState
	Status() service.Status
	StartVerification(ctx context.Context, address string) service.Status
	ProofSucceeded(sessionID string) bool
	ProofFailed(sessionID string, err error) bool
}

// HistoryProvider exposes portfolio history to the HTTP layer.
type HistoryProvider interface {
	Record(ctx context.Context, address string, point types.PortfolioPoint) error
	Series(ctx context.Context, address string, windowDays int, reference time.Time) ([]types.PortfolioPoint, error)
}

// Server represents the HTTP API server
type Server struct {
	router       *mux.Router
	server       *http.Server
	logger       *logging.Logger
	network      types.NetworkID
	balances     BalanceProvider
	verification VerificationProvider
	history      HistoryProvider
	verifier     identity.Verifier
	wallet       *wallet.Source
}

// NewServer creates a new API server
func NewServer(cfg config.ServerConfig, rlCfg config.RateLimitConfig, network types.NetworkID, balances BalanceProvider, verification VerificationProvider, history HistoryProvider, verifier identity.Verifier, walletSource *wallet.Source, logger *logging.Logger) *Server {
	s := &Server{
		router:       mux.NewRouter(),
		logger:       logger,
		network:      network,
		balances:     balances,
		verification: verification,
		history:      history,
		verifier:     verifier,
		wallet:       walletSource,
	}

	s.setupMiddleware(rlCfg)
	s.setupRoutes()

	s.server = &http.Server{
		Addr:         fmt.Sprintf("%s:%s", cfg.Host, cfg.Port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

func (s *Server) setupMiddleware(rlCfg config.RateLimitConfig) {
	s.router.Use(RecoveryMiddleware)
	s.router.Use(LoggingMiddleware)
	s.router.Use(CORSMiddleware)
	s.router.Use(RateLimitMiddleware(NewRateLimiter(rlCfg.RequestsPerSecond, rlCfg.Burst)))
}

func (s *Server) setupRoutes() {
	s.router.HandleFunc("/health", s.handleHealth).Methods("GET")

	api := s.router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/verify", s.handleVerifyProof).Methods("POST", "OPTIONS")

	api.HandleFunc("/verification/status", s.handleVerificationStatus).Methods("GET")
	api.HandleFunc("/verification/start", s.handleStartVerification).Methods("POST", "OPTIONS")
	api.HandleFunc("/verification/proof-result", s.handleProofResult).Methods("POST", "OPTIONS")

	api.HandleFunc("/session", s.handleGetSession).Methods("GET")
	api.HandleFunc("/session", s.handleLogin).Methods("POST", "OPTIONS")
	api.HandleFunc("/session", s.handleLogout).Methods("DELETE")

	api.HandleFunc("/addresses/{address}/balances", s.handleGetBalances).Methods("GET")
	api.HandleFunc("/addresses/{address}/history", s.handleGetHistory).Methods("GET")
	api.HandleFunc("/addresses/{address}/history", s.handleRecordHistory).Methods("POST", "OPTIONS")
}

// Start starts the HTTP server
func (s *Server) Start() error {
	s.logger.WithField("addr", s.server.Addr).Info("Starting API server")
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server failed to start: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("Shutting down API server")
	return s.server.Shutdown(ctx)
}

// Router returns the underlying router, used by tests.
func (s *Server) Router() *mux.Router {
	return s.router
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"status": "healthy",
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}
