package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/zkrex/zkrex/internal/config"
	"github.com/zkrex/zkrex/internal/identity"
	"github.com/zkrex/zkrex/internal/logging"
	"github.com/zkrex/zkrex/internal/service"
	"github.com/zkrex/zkrex/internal/types"
	"github.com/zkrex/zkrex/internal/wallet"
)

const (
	testAddress   = "0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"
	testSessionID = "11111111-2222-3333-4444-555555555555"
)

type fakeBalances struct {
	snapshot service.Snapshot
}

func (f *fakeBalances) Refresh(_ context.Context, address string) service.Snapshot {
	f.snapshot.Address = address
	return f.snapshot
}

func (f *fakeBalances) Current() service.Snapshot {
	return f.snapshot
}

type fakeVerification struct {
	status service.Status
}

func (f *fakeVerification) Mount(context.Context, string) types.VerificationState {
	return f.status.State
}

func (f *fakeVerification) Status() service.Status {
	return f.status
}

func (f *fakeVerification) StartVerification(context.Context, string) service.Status {
	return f.status
}

func (f *fakeVerification) ProofSucceeded(sessionID string) bool {
	return sessionID == f.status.SessionID
}

func (f *fakeVerification) ProofFailed(sessionID string, _ error) bool {
	return sessionID == f.status.SessionID
}

type fakeHistory struct {
	recorded []types.PortfolioPoint
	series   []types.PortfolioPoint
	err      error
}

func (f *fakeHistory) Record(_ context.Context, _ string, point types.PortfolioPoint) error {
	if f.err != nil {
		return f.err
	}
	f.recorded = append(f.recorded, point)
	return nil
}

func (f *fakeHistory) Series(_ context.Context, _ string, _ int, _ time.Time) ([]types.PortfolioPoint, error) {
	return f.series, f.err
}

type fakeVerifier struct {
	result *identity.Result
	err    error
}

func (f *fakeVerifier) Verify(context.Context, *identity.ProofPayload) (*identity.Result, error) {
	return f.result, f.err
}

type testServerOptions struct {
	balances     *fakeBalances
	verification *fakeVerification
	history      *fakeHistory
	verifier     *fakeVerifier
	rateLimit    config.RateLimitConfig
}

func createTestServer(opts testServerOptions) *Server {
	if opts.balances == nil {
		opts.balances = &fakeBalances{}
	}
	if opts.verification == nil {
		opts.verification = &fakeVerification{}
	}
	if opts.history == nil {
		opts.history = &fakeHistory{}
	}
	if opts.verifier == nil {
		opts.verifier = &fakeVerifier{result: &identity.Result{IsValid: true, IsMinimumAgeValid: true}}
	}
	if opts.rateLimit.RequestsPerSecond == 0 {
		opts.rateLimit = config.RateLimitConfig{RequestsPerSecond: 1000, Burst: 1000}
	}

	return NewServer(
		config.ServerConfig{Host: "127.0.0.1", Port: "0"},
		opts.rateLimit,
		types.NetworkSapphireTestnet,
		opts.balances,
		opts.verification,
		opts.history,
		opts.verifier,
		wallet.NewSource(),
		logging.NewLogger(logging.LevelError, logging.FormatText),
	)
}

func doJSON(server *Server, method, path string, body interface{}) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	if body != nil {
		raw, _ := json.Marshal(body)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	server.router.ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	if err := json.Unmarshal(w.Body.Bytes(), v); err != nil {
		t.Fatalf("response does not decode: %v (%s)", err, w.Body.String())
	}
}

func TestHealth(t *testing.T) {
	server := createTestServer(testServerOptions{})

	w := doJSON(server, "GET", "/health", nil)
	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", w.Code)
	}
}

func TestVerifyProof_MissingFieldsReportedInBand(t *testing.T) {
	server := createTestServer(testServerOptions{})

	// userContextData missing; the relay still expects HTTP 200.
	w := doJSON(server, "POST", "/api/verify", map[string]interface{}{
		"attestationId": 1,
		"proof":         map[string]string{"a": "0x1"},
		"publicSignals": []string{"0x2"},
	})
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}

	var resp verifyResult
	decodeBody(t, w, &resp)
	if resp.Status != "error" || resp.Result {
		t.Errorf("resp = %+v, want in-band error", resp)
	}
	if resp.Reason != "proof, publicSignals, attestationId and userContextData are required" {
		t.Errorf("reason = %q", resp.Reason)
	}
}

func TestVerifyProof_MalformedBody(t *testing.T) {
	server := createTestServer(testServerOptions{})

	req := httptest.NewRequest("POST", "/api/verify", bytes.NewReader([]byte("not json")))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	server.router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}

	var resp verifyResult
	decodeBody(t, w, &resp)
	if resp.Status != "error" || resp.Reason != "Invalid request body" {
		t.Errorf("resp = %+v", resp)
	}
}

func fullProofBody() map[string]interface{} {
	return map[string]interface{}{
		"attestationId":   1,
		"proof":           map[string]string{"a": "0x1"},
		"publicSignals":   []string{"0x2"},
		"userContextData": "0x3",
	}
}

func TestVerifyProof_Outcomes(t *testing.T) {
	tests := []struct {
		name       string
		verifier   *fakeVerifier
		wantStatus string
		wantResult bool
		wantReason string
	}{
		{
			name:       "valid proof",
			verifier:   &fakeVerifier{result: &identity.Result{IsValid: true, IsMinimumAgeValid: true}},
			wantStatus: "success",
			wantResult: true,
		},
		{
			name:       "invalid proof",
			verifier:   &fakeVerifier{result: &identity.Result{IsValid: false, IsMinimumAgeValid: true}},
			wantStatus: "error",
			wantReason: "Verification failed",
		},
		{
			name:       "age requirement not met",
			verifier:   &fakeVerifier{result: &identity.Result{IsValid: false, IsMinimumAgeValid: false}},
			wantStatus: "error",
			wantReason: "Minimum age verification failed",
		},
		{
			name:       "valid proof with failed age disclosure",
			verifier:   &fakeVerifier{result: &identity.Result{IsValid: true, IsMinimumAgeValid: false}},
			wantStatus: "error",
			wantReason: "Minimum age verification failed",
		},
		{
			name:       "verifier backend error",
			verifier:   &fakeVerifier{err: fmt.Errorf("verifier returned status 502")},
			wantStatus: "error",
			wantReason: "verifier returned status 502",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := createTestServer(testServerOptions{verifier: tt.verifier})

			w := doJSON(server, "POST", "/api/verify", fullProofBody())
			if w.Code != http.StatusOK {
				t.Fatalf("status = %d, want 200", w.Code)
			}

			var resp verifyResult
			decodeBody(t, w, &resp)
			if resp.Status != tt.wantStatus || resp.Result != tt.wantResult || resp.Reason != tt.wantReason {
				t.Errorf("resp = %+v, want {%s %v %s}", resp, tt.wantStatus, tt.wantResult, tt.wantReason)
			}
		})
	}
}

func TestGetBalances_InvalidAddress(t *testing.T) {
	server := createTestServer(testServerOptions{})

	w := doJSON(server, "GET", "/api/addresses/0x1234/balances", nil)
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

func TestGetBalances(t *testing.T) {
	balances := &fakeBalances{
		snapshot: service.Snapshot{
			Address: testAddress,
			Items: []types.BalanceItem{
				{
					TokenDescriptor: types.TokenDescriptor{Name: "ROSE (Testnet)", Symbol: "ROSEt", Decimals: 18},
					RawAmount:       big.NewInt(1_500_000_000_000_000_000),
					DisplayAmount:   "1.5",
				},
				{
					TokenDescriptor: types.TokenDescriptor{Address: "0x1111111111111111111111111111111111111111", Name: "USD Coin", Symbol: "USDC", Decimals: 6},
					RawAmount:       big.NewInt(0),
					DisplayAmount:   "0",
				},
			},
			At: time.Now(),
		},
	}
	server := createTestServer(testServerOptions{balances: balances})

	w := doJSON(server, "GET", "/api/addresses/"+testAddress+"/balances", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}

	var resp balancesResponse
	decodeBody(t, w, &resp)
	if resp.Network != string(types.NetworkSapphireTestnet) {
		t.Errorf("network = %q", resp.Network)
	}
	if len(resp.Items) != 2 {
		t.Fatalf("got %d items, want 2", len(resp.Items))
	}
	if resp.Items[0].RawAmount != "1500000000000000000" {
		t.Errorf("raw amount = %q", resp.Items[0].RawAmount)
	}
}

func TestGetBalances_SpendableFilter(t *testing.T) {
	balances := &fakeBalances{
		snapshot: service.Snapshot{
			Address: testAddress,
			Items: []types.BalanceItem{
				{
					TokenDescriptor: types.TokenDescriptor{Symbol: "ROSEt", Decimals: 18},
					RawAmount:       big.NewInt(1_000_000_000_000_000_000),
					DisplayAmount:   "1",
				},
				{
					TokenDescriptor: types.TokenDescriptor{Address: "0x1111111111111111111111111111111111111111", Symbol: "ZERO"},
					RawAmount:       big.NewInt(0),
					DisplayAmount:   "0",
				},
			},
		},
	}
	server := createTestServer(testServerOptions{balances: balances})

	w := doJSON(server, "GET", "/api/addresses/"+testAddress+"/balances?spendable=true", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}

	var resp balancesResponse
	decodeBody(t, w, &resp)
	if len(resp.Items) != 1 || resp.Items[0].Symbol != "ROSEt" {
		t.Errorf("spendable items = %+v, want only ROSEt", resp.Items)
	}
}

func TestGetHistory(t *testing.T) {
	history := &fakeHistory{
		series: []types.PortfolioPoint{
			{Date: "2026-08-27", TotalValue: 10},
			{Date: "2026-08-28", TotalValue: 20},
		},
	}
	server := createTestServer(testServerOptions{history: history})

	w := doJSON(server, "GET", "/api/addresses/"+testAddress+"/history?days=2", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", w.Code, w.Body.String())
	}

	var resp historyResponse
	decodeBody(t, w, &resp)
	if resp.Days != 2 || len(resp.Points) != 2 {
		t.Errorf("resp = %+v", resp)
	}
}

func TestGetHistory_InvalidDays(t *testing.T) {
	server := createTestServer(testServerOptions{})

	for _, query := range []string{"?days=0", "?days=-3", "?days=abc"} {
		w := doJSON(server, "GET", "/api/addresses/"+testAddress+"/history"+query, nil)
		if w.Code != http.StatusBadRequest {
			t.Errorf("query %q: status = %d, want 400", query, w.Code)
		}
	}
}

func TestRecordHistory_DefaultsDate(t *testing.T) {
	history := &fakeHistory{}
	server := createTestServer(testServerOptions{history: history})

	w := doJSON(server, "POST", "/api/addresses/"+testAddress+"/history", map[string]interface{}{
		"totalValue": 42.5,
	})
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", w.Code, w.Body.String())
	}

	if len(history.recorded) != 1 {
		t.Fatalf("got %d recorded points, want 1", len(history.recorded))
	}
	if history.recorded[0].Date != types.DateString(time.Now()) {
		t.Errorf("date = %q, want today", history.recorded[0].Date)
	}
	if history.recorded[0].TotalValue != 42.5 {
		t.Errorf("totalValue = %v, want 42.5", history.recorded[0].TotalValue)
	}
}

func TestRecordHistory_StoreError(t *testing.T) {
	history := &fakeHistory{err: fmt.Errorf("connection reset")}
	server := createTestServer(testServerOptions{history: history})

	w := doJSON(server, "POST", "/api/addresses/"+testAddress+"/history", map[string]interface{}{
		"date":       "2026-08-28",
		"totalValue": 1.0,
	})
	if w.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", w.Code)
	}
}

func TestVerificationStatus_AutoCloseDelayInMilliseconds(t *testing.T) {
	verification := &fakeVerification{
		status: service.Status{State: types.StateVerified, AutoCloseDelayMs: 2000},
	}
	server := createTestServer(testServerOptions{verification: verification})

	w := doJSON(server, "GET", "/api/verification/status", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}

	var raw map[string]interface{}
	decodeBody(t, w, &raw)
	if got := raw["autoCloseDelayMs"]; got != float64(2000) {
		t.Errorf("autoCloseDelayMs = %v, want 2000", got)
	}
}

func TestStartVerification_InvalidAddress(t *testing.T) {
	server := createTestServer(testServerOptions{})

	w := doJSON(server, "POST", "/api/verification/start", map[string]string{"address": "nope"})
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

func TestStartVerification(t *testing.T) {
	verification := &fakeVerification{
		status: service.Status{
			State:     types.StateAwaitingProof,
			SessionID: testSessionID,
			DeepLink:  "https://redirect.self.xyz/?sessionId=" + testSessionID,
		},
	}
	server := createTestServer(testServerOptions{verification: verification})

	w := doJSON(server, "POST", "/api/verification/start", map[string]string{"address": testAddress})
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}

	var resp service.Status
	decodeBody(t, w, &resp)
	if resp.State != types.StateAwaitingProof || resp.SessionID != testSessionID {
		t.Errorf("resp = %+v", resp)
	}
}

func TestProofResult_UnknownSession(t *testing.T) {
	verification := &fakeVerification{status: service.Status{State: types.StateAwaitingProof, SessionID: testSessionID}}
	server := createTestServer(testServerOptions{verification: verification})

	w := doJSON(server, "POST", "/api/verification/proof-result", map[string]interface{}{
		"sessionId": "someone-else",
		"success":   true,
	})
	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", w.Code)
	}
}

func TestProofResult_MissingSessionID(t *testing.T) {
	server := createTestServer(testServerOptions{})

	w := doJSON(server, "POST", "/api/verification/proof-result", map[string]interface{}{
		"success": true,
	})
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

func TestProofResult_LiveSession(t *testing.T) {
	verification := &fakeVerification{status: service.Status{State: types.StateAwaitingProof, SessionID: testSessionID}}
	server := createTestServer(testServerOptions{verification: verification})

	w := doJSON(server, "POST", "/api/verification/proof-result", map[string]interface{}{
		"sessionId": testSessionID,
		"success":   false,
		"reason":    "user cancelled",
	})
	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", w.Code)
	}
}

func TestSessionLifecycle(t *testing.T) {
	server := createTestServer(testServerOptions{})

	w := doJSON(server, "POST", "/api/session", map[string]string{"address": testAddress})
	if w.Code != http.StatusOK {
		t.Fatalf("login status = %d, want 200", w.Code)
	}

	var resp sessionResponse
	decodeBody(t, w, &resp)
	if !resp.Authenticated || resp.Address != testAddress {
		t.Errorf("session after login = %+v", resp)
	}

	w = doJSON(server, "DELETE", "/api/session", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("logout status = %d, want 200", w.Code)
	}

	w = doJSON(server, "GET", "/api/session", nil)
	decodeBody(t, w, &resp)
	if resp.Authenticated {
		t.Errorf("session after logout = %+v", resp)
	}
}

func TestRateLimitMiddleware(t *testing.T) {
	server := createTestServer(testServerOptions{
		rateLimit: config.RateLimitConfig{RequestsPerSecond: 1, Burst: 1},
	})

	first := doJSON(server, "GET", "/health", nil)
	if first.Code != http.StatusOK {
		t.Fatalf("first request status = %d, want 200", first.Code)
	}

	second := doJSON(server, "GET", "/health", nil)
	if second.Code != http.StatusTooManyRequests {
		t.Errorf("second request status = %d, want 429", second.Code)
	}
}
