// Package types provides common type definitions for the wallet gateway.
package types

import (
	"math/big"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// NetworkID identifies the configured chain network.
type NetworkID string

const (
	// NetworkSapphireTestnet is the default target network.
	NetworkSapphireTestnet NetworkID = "sapphire-testnet"
)

// NativeDecimals is the fixed decimal count of the chain's native asset.
const NativeDecimals = 18

// VerificationState represents where the verification gate currently stands
// for one session.
type VerificationState string

const (
	// StateUnknown is the initial state before the cache has been read.
	StateUnknown VerificationState = "unknown"
	// StateNotVerified means no trusted record exists for the subject.
	StateNotVerified VerificationState = "not_verified"
	// StateCheckingOnChain means the registry pre-check is in flight.
	StateCheckingOnChain VerificationState = "checking_on_chain"
	// StateAwaitingProof means a proof session is open and pending.
	StateAwaitingProof VerificationState = "awaiting_proof"
	// StateVerified is terminal for the session.
	StateVerified VerificationState = "verified"
	// StateCheckFailed marks a failed cache read; recoverable by retry.
	StateCheckFailed VerificationState = "check_failed"
)

// VerificationRecord is the cached outcome of a successful verification.
// Records are only ever replaced wholesale, never mutated in place.
type VerificationRecord struct {
	Verified  bool      `json:"verified"`
	At        time.Time `json:"at"`
	SubjectID string    `json:"subjectId,omitempty"` // wallet address at verification time, may be empty
}

// TokenDescriptor describes one asset of the configured token universe.
// An empty Address denotes the chain's native asset.
type TokenDescriptor struct {
	Address  string `json:"address,omitempty"`
	Name     string `json:"name"`
	Symbol   string `json:"symbol"`
	Decimals uint8  `json:"decimals"`
}

// IsNative reports whether the descriptor refers to the native asset.
func (t TokenDescriptor) IsNative() bool {
	return t.Address == ""
}

// BalanceItem is one resolved holding of a snapshot run.
type BalanceItem struct {
	TokenDescriptor
	RawAmount     *big.Int `json:"rawAmount"`
	DisplayAmount string   `json:"displayAmount"`
}

// IsPositive reports whether the item holds a strictly positive balance.
// Both the raw integer and the parsed display amount must be positive, so a
// balance that rounds to zero is treated as not spendable.
func (b BalanceItem) IsPositive() bool {
	if b.RawAmount == nil || b.RawAmount.Sign() <= 0 {
		return false
	}
	v, err := strconv.ParseFloat(b.DisplayAmount, 64)
	if err != nil {
		return true
	}
	return v > 0
}

// PortfolioPoint is one daily value sample of a wallet's holdings.
type PortfolioPoint struct {
	Date       string                    `json:"date"` // YYYY-MM-DD, local time
	TotalValue float64                   `json:"totalValue"`
	ByAsset    map[string]AssetBreakdown `json:"byAsset,omitempty"`
}

// AssetBreakdown is the per-symbol contribution to a portfolio point.
type AssetBreakdown struct {
	Balance float64 `json:"balance"`
	Value   float64 `json:"value"`
}

// ServiceError represents a structured error response.
type ServiceError struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
}

func (e *ServiceError) Error() string {
	return e.Message
}

var addressPattern = regexp.MustCompile("^0x[a-fA-F0-9]{40}$")

// ValidAddress reports whether the string is a well-formed EVM address.
func ValidAddress(address string) bool {
	return addressPattern.MatchString(address)
}

// NormalizeAddress lower-cases an address for use as a map or storage key.
func NormalizeAddress(address string) string {
	return strings.ToLower(strings.TrimSpace(address))
}

// FormatUnits converts a raw base-unit amount into a human-readable decimal
// string by fixed-point division with 10^decimals. The raw value is never
// converted through floating point; trailing fractional zeros are trimmed.
func FormatUnits(raw *big.Int, decimals uint8) string {
	if raw == nil || raw.Sign() == 0 {
		return "0"
	}

	s := raw.String()
	neg := false
	if strings.HasPrefix(s, "-") {
		neg = true
		s = s[1:]
	}

	d := int(decimals)
	if len(s) <= d {
		s = strings.Repeat("0", d-len(s)+1) + s
	}

	intPart := s[:len(s)-d]
	fracPart := strings.TrimRight(s[len(s)-d:], "0")

	out := intPart
	if fracPart != "" {
		out += "." + fracPart
	}
	if neg {
		out = "-" + out
	}
	return out
}

// DateString formats a time as a YYYY-MM-DD calendar date in its location.
func DateString(t time.Time) string {
	return t.Format("2006-01-02")
}
