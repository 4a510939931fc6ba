package adapter

import (
	"context"
	"fmt"
	"math/big"

	"github.com/zkrex/zkrex/internal/types"
)

// ChainReader defines the read-only chain operations the gateway issues
// against its single configured network.
type ChainReader interface {
	// NativeBalance retrieves the native asset balance in base units.
	// Returns error if the endpoint request fails.
	NativeBalance(ctx context.Context, address string) (*big.Int, error)

	// TokenBalance retrieves the ERC-20 balanceOf(owner) for a token contract.
	// Returns error if the call fails or reverts.
	TokenBalance(ctx context.Context, token, owner string) (*big.Int, error)

	// TokenDecimals retrieves the ERC-20 decimals() value.
	// Nonstandard contracts may revert; callers fall back to static metadata.
	TokenDecimals(ctx context.Context, token string) (uint8, error)

	// TokenSymbol retrieves the ERC-20 symbol() value.
	TokenSymbol(ctx context.Context, token string) (string, error)

	// TokenName retrieves the ERC-20 name() value.
	TokenName(ctx context.Context, token string) (string, error)

	// IsVerified queries the identity registry's boolean verified mapping.
	// Returns error if the registry call fails.
	IsVerified(ctx context.Context, registry, address string) (bool, error)

	// ValidateAddress checks if address format is valid for this chain.
	ValidateAddress(address string) bool

	// NetworkID returns the configured network identifier.
	NetworkID() types.NetworkID
}

// Common error types for chain readers

var (
	// ErrInvalidAddress indicates the address format is invalid
	ErrInvalidAddress = fmt.Errorf("invalid address format")

	// ErrEndpointUnavailable indicates the read endpoint is unavailable
	ErrEndpointUnavailable = fmt.Errorf("read endpoint unavailable")

	// ErrEmptyResult indicates the call returned no data
	ErrEmptyResult = fmt.Errorf("empty call result")
)

// ReaderError wraps chain read errors with additional context
type ReaderError struct {
	Network types.NetworkID
	Op      string // Operation that failed (e.g., "TokenBalance")
	Err     error
	Details map[string]interface{}
}

func (e *ReaderError) Error() string {
	if len(e.Details) > 0 {
		return fmt.Sprintf("chain reader error [%s:%s]: %v (details: %+v)", e.Network, e.Op, e.Err, e.Details)
	}
	return fmt.Sprintf("chain reader error [%s:%s]: %v", e.Network, e.Op, e.Err)
}

func (e *ReaderError) Unwrap() error {
	return e.Err
}

// NewReaderError creates a new ReaderError
func NewReaderError(network types.NetworkID, op string, err error, details map[string]interface{}) *ReaderError {
	return &ReaderError{
		Network: network,
		Op:      op,
		Err:     err,
		Details: details,
	}
}
