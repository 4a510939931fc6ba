package adapter

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/zkrex/zkrex/internal/types"
)

// Minimal ERC-20 read ABI: balance plus the three metadata getters.
const erc20ABI = `[
	{"constant":true,"inputs":[{"name":"_owner","type":"address"}],"name":"balanceOf","outputs":[{"name":"balance","type":"uint256"}],"stateMutability":"view","type":"function"},
	{"constant":true,"inputs":[],"name":"decimals","outputs":[{"name":"","type":"uint8"}],"stateMutability":"view","type":"function"},
	{"constant":true,"inputs":[],"name":"symbol","outputs":[{"name":"","type":"string"}],"stateMutability":"view","type":"function"},
	{"constant":true,"inputs":[],"name":"name","outputs":[{"name":"","type":"string"}],"stateMutability":"view","type":"function"}
]`

// Identity registry read ABI: boolean verified mapping lookup.
const registryABI = `[
	{"constant":true,"inputs":[{"name":"","type":"address"}],"name":"isVerified","outputs":[{"name":"","type":"bool"}],"stateMutability":"view","type":"function"}
]`

// EthereumReader implements ChainReader over a go-ethereum client with
// primary/secondary endpoint failover.
type EthereumReader struct {
	network  types.NetworkID
	provider DataProvider
	erc20    abi.ABI
	registry abi.ABI

	mu     sync.RWMutex
	client *ethclient.Client
}

// NewEthereumReader creates a chain reader for the configured network.
func NewEthereumReader(network types.NetworkID, provider DataProvider) (*EthereumReader, error) {
	if provider == nil {
		return nil, fmt.Errorf("provider cannot be nil")
	}

	rpcURL, err := provider.GetCurrentURL()
	if err != nil {
		return nil, fmt.Errorf("failed to get RPC URL: %w", err)
	}

	client, err := ethclient.Dial(rpcURL)
	if err != nil {
		return nil, NewReaderError(network, "NewEthereumReader", err, map[string]interface{}{
			"rpcURL": rpcURL,
		})
	}

	erc20, err := abi.JSON(strings.NewReader(erc20ABI))
	if err != nil {
		return nil, fmt.Errorf("failed to parse ERC-20 ABI: %w", err)
	}

	registry, err := abi.JSON(strings.NewReader(registryABI))
	if err != nil {
		return nil, fmt.Errorf("failed to parse registry ABI: %w", err)
	}

	return &EthereumReader{
		network:  network,
		provider: provider,
		erc20:    erc20,
		registry: registry,
		client:   client,
	}, nil
}

// NativeBalance retrieves the native asset balance in base units.
func (r *EthereumReader) NativeBalance(ctx context.Context, address string) (*big.Int, error) {
	if !r.ValidateAddress(address) {
		return nil, NewReaderError(r.network, "NativeBalance", ErrInvalidAddress, map[string]interface{}{
			"address": address,
		})
	}

	addr := common.HexToAddress(address)
	start := time.Now()

	balance, err := r.currentClient().BalanceAt(ctx, addr, nil)
	if err != nil {
		r.provider.RecordFailure(err)
		if r.shouldFailover(err) && r.redial() {
			balance, err = r.currentClient().BalanceAt(ctx, addr, nil)
		}
		if err != nil {
			return nil, NewReaderError(r.network, "NativeBalance", err, map[string]interface{}{
				"address": address,
			})
		}
	}

	r.provider.RecordSuccess(time.Since(start))
	return balance, nil
}

// TokenBalance retrieves balanceOf(owner) for a token contract.
func (r *EthereumReader) TokenBalance(ctx context.Context, token, owner string) (*big.Int, error) {
	data, err := r.erc20.Pack("balanceOf", common.HexToAddress(owner))
	if err != nil {
		return nil, NewReaderError(r.network, "TokenBalance", err, nil)
	}

	result, err := r.call(ctx, "TokenBalance", token, data)
	if err != nil {
		return nil, err
	}
	if len(result) == 0 {
		return big.NewInt(0), nil
	}

	return new(big.Int).SetBytes(result), nil
}

// TokenDecimals retrieves decimals() for a token contract.
func (r *EthereumReader) TokenDecimals(ctx context.Context, token string) (uint8, error) {
	result, err := r.callPacked(ctx, "TokenDecimals", token, r.erc20, "decimals")
	if err != nil {
		return 0, err
	}

	out, err := r.erc20.Unpack("decimals", result)
	if err != nil || len(out) == 0 {
		return 0, NewReaderError(r.network, "TokenDecimals", ErrEmptyResult, map[string]interface{}{
			"token": token,
		})
	}

	dec, ok := out[0].(uint8)
	if !ok {
		return 0, NewReaderError(r.network, "TokenDecimals", ErrEmptyResult, map[string]interface{}{
			"token": token,
		})
	}
	return dec, nil
}

// TokenSymbol retrieves symbol() for a token contract.
func (r *EthereumReader) TokenSymbol(ctx context.Context, token string) (string, error) {
	return r.stringGetter(ctx, "TokenSymbol", token, "symbol")
}

// TokenName retrieves name() for a token contract.
func (r *EthereumReader) TokenName(ctx context.Context, token string) (string, error) {
	return r.stringGetter(ctx, "TokenName", token, "name")
}

// IsVerified queries the registry's verified mapping for an address.
func (r *EthereumReader) IsVerified(ctx context.Context, registry, address string) (bool, error) {
	if !r.ValidateAddress(registry) {
		return false, NewReaderError(r.network, "IsVerified", ErrInvalidAddress, map[string]interface{}{
			"registry": registry,
		})
	}

	data, err := r.registry.Pack("isVerified", common.HexToAddress(address))
	if err != nil {
		return false, NewReaderError(r.network, "IsVerified", err, nil)
	}

	result, err := r.call(ctx, "IsVerified", registry, data)
	if err != nil {
		return false, err
	}

	out, err := r.registry.Unpack("isVerified", result)
	if err != nil || len(out) == 0 {
		return false, NewReaderError(r.network, "IsVerified", ErrEmptyResult, map[string]interface{}{
			"registry": registry,
		})
	}

	verified, ok := out[0].(bool)
	if !ok {
		return false, NewReaderError(r.network, "IsVerified", ErrEmptyResult, nil)
	}
	return verified, nil
}

// ValidateAddress checks if address format is valid for EVM chains.
func (r *EthereumReader) ValidateAddress(address string) bool {
	return types.ValidAddress(address)
}

// NetworkID returns the configured network identifier.
func (r *EthereumReader) NetworkID() types.NetworkID {
	return r.network
}

// Close closes the underlying client connection.
func (r *EthereumReader) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.client != nil {
		r.client.Close()
	}
}

func (r *EthereumReader) stringGetter(ctx context.Context, op, token, method string) (string, error) {
	result, err := r.callPacked(ctx, op, token, r.erc20, method)
	if err != nil {
		return "", err
	}

	out, err := r.erc20.Unpack(method, result)
	if err != nil || len(out) == 0 {
		return "", NewReaderError(r.network, op, ErrEmptyResult, map[string]interface{}{
			"token": token,
		})
	}

	s, ok := out[0].(string)
	if !ok {
		return "", NewReaderError(r.network, op, ErrEmptyResult, nil)
	}
	return s, nil
}

func (r *EthereumReader) callPacked(ctx context.Context, op, to string, parsed abi.ABI, method string, args ...interface{}) ([]byte, error) {
	data, err := parsed.Pack(method, args...)
	if err != nil {
		return nil, NewReaderError(r.network, op, err, nil)
	}
	return r.call(ctx, op, to, data)
}

// call issues one eth_call with at most one failover retry.
func (r *EthereumReader) call(ctx context.Context, op, to string, data []byte) ([]byte, error) {
	if !r.ValidateAddress(to) {
		return nil, NewReaderError(r.network, op, ErrInvalidAddress, map[string]interface{}{
			"to": to,
		})
	}

	toAddr := common.HexToAddress(to)
	msg := ethereum.CallMsg{To: &toAddr, Data: data}
	start := time.Now()

	result, err := r.currentClient().CallContract(ctx, msg, nil)
	if err != nil {
		r.provider.RecordFailure(err)
		if r.shouldFailover(err) && r.redial() {
			result, err = r.currentClient().CallContract(ctx, msg, nil)
		}
		if err != nil {
			return nil, NewReaderError(r.network, op, err, map[string]interface{}{
				"to": to,
			})
		}
	}

	r.provider.RecordSuccess(time.Since(start))
	return result, nil
}

func (r *EthereumReader) currentClient() *ethclient.Client {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.client
}

// redial switches the provider to its alternate endpoint and reconnects.
func (r *EthereumReader) redial() bool {
	if err := r.provider.Failover(); err != nil {
		return false
	}

	rpcURL, err := r.provider.GetCurrentURL()
	if err != nil {
		return false
	}

	client, err := ethclient.Dial(rpcURL)
	if err != nil {
		return false
	}

	r.mu.Lock()
	old := r.client
	r.client = client
	r.mu.Unlock()
	if old != nil {
		old.Close()
	}
	return true
}

// shouldFailover reports whether an error looks like an endpoint problem
// rather than a contract revert.
func (r *EthereumReader) shouldFailover(err error) bool {
	if err == nil {
		return false
	}

	errStr := strings.ToLower(err.Error())

	if strings.Contains(errStr, "rate limit") ||
		strings.Contains(errStr, "too many requests") ||
		strings.Contains(errStr, "429") {
		return true
	}

	if strings.Contains(errStr, "timeout") ||
		strings.Contains(errStr, "deadline exceeded") {
		return true
	}

	if strings.Contains(errStr, "connection refused") ||
		strings.Contains(errStr, "connection reset") ||
		strings.Contains(errStr, "no such host") {
		return true
	}

	return false
}
