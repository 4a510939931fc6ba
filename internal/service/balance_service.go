// Package service implements the verification gate, the balance aggregation
// pipeline and the portfolio history logic of the wallet gateway.
package service

import (
	"context"
	"math/big"
	"sync"
	"time"

	"github.com/zkrex/zkrex/internal/adapter"
	"github.com/zkrex/zkrex/internal/logging"
	"github.com/zkrex/zkrex/internal/types"
)

// Snapshot is the committed result of one aggregation run.
type Snapshot struct {
	Address string              `json:"address"`
	Items   []types.BalanceItem `json:"items"`
	Loading bool                `json:"loading"`
	Error   string              `json:"error,omitempty"`
	At      time.Time           `json:"at"`
}

// BalanceService produces best-effort balance snapshots for the current
// wallet address: one native query plus a fetch group per curated token, all
// issued concurrently, with per-call fallbacks so a single failing read never
// aborts the run.
type BalanceService struct {
	reader  adapter.ChainReader
	native  types.TokenDescriptor
	curated []types.TokenDescriptor
	timeout time.Duration
	logger  *logging.Logger

	mu       sync.Mutex
	runSeq   uint64
	snapshot Snapshot
}

// NewBalanceService creates a balance aggregator over the configured token
// universe. Curated descriptors are deduplicated by lower-cased address with
// the first occurrence winning.
func NewBalanceService(reader adapter.ChainReader, native types.TokenDescriptor, curated []types.TokenDescriptor, timeout time.Duration, logger *logging.Logger) *BalanceService {
	if logger == nil {
		logger = logging.GetGlobalLogger()
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	seen := make(map[string]bool, len(curated))
	deduped := make([]types.TokenDescriptor, 0, len(curated))
	for _, t := range curated {
		if t.Address == "" {
			continue
		}
		key := types.NormalizeAddress(t.Address)
		if seen[key] {
			continue
		}
		seen[key] = true
		deduped = append(deduped, t)
	}

	return &BalanceService{
		reader:  reader,
		native:  native,
		curated: deduped,
		timeout: timeout,
		logger:  logger.WithField("component", "balance_service"),
	}
}

// Current returns the last committed snapshot.
func (s *BalanceService) Current() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshot
}

// Refresh begins a new aggregation run for the address and commits its
// result unless a newer run started in the meantime. An empty address idles
// the aggregator.
func (s *BalanceService) Refresh(ctx context.Context, address string) Snapshot {
	s.mu.Lock()
	s.runSeq++
	run := s.runSeq
	if address == "" {
		s.snapshot = Snapshot{}
		s.mu.Unlock()
		return Snapshot{}
	}
	s.snapshot = Snapshot{Address: address, Loading: true}
	s.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	items := s.fetch(ctx, address)

	result := Snapshot{Address: address, Items: items, At: time.Now()}
	if err := ctx.Err(); err != nil && len(items) == 0 {
		// The endpoint never answered anything; surface one message and
		// stay retryable.
		result.Error = "failed to load balances"
		result.Items = nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if run != s.runSeq {
		// Superseded by a newer run; discard silently.
		return s.snapshot
	}
	s.snapshot = result
	return result
}

// Watch re-runs aggregation whenever the address signal changes. It returns
// when the context ends.
func (s *BalanceService) Watch(ctx context.Context, addresses <-chan string) {
	for {
		select {
		case <-ctx.Done():
			return
		case address, ok := <-addresses:
			if !ok {
				return
			}
			go s.Refresh(ctx, address)
		}
	}
}

// Spendable filters a snapshot down to strictly positive balances, the
// source-asset universe of the trade view.
func Spendable(items []types.BalanceItem) []types.BalanceItem {
	out := make([]types.BalanceItem, 0, len(items))
	for _, item := range items {
		if item.IsPositive() {
			out = append(out, item)
		}
	}
	return out
}

// fetch gathers the native balance and every curated token concurrently.
// Slots keep the configured order: native first, curated after.
func (s *BalanceService) fetch(ctx context.Context, address string) []types.BalanceItem {
	slots := make([]*types.BalanceItem, len(s.curated)+1)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		slots[0] = s.fetchNative(ctx, address)
	}()

	for i, token := range s.curated {
		wg.Add(1)
		go func(i int, token types.TokenDescriptor) {
			defer wg.Done()
			slots[i+1] = s.fetchToken(ctx, address, token)
		}(i, token)
	}
	wg.Wait()

	items := make([]types.BalanceItem, 0, len(slots))
	for _, slot := range slots {
		if slot != nil {
			items = append(items, *slot)
		}
	}
	return items
}

// fetchNative returns nil when the native read fails; the entry is omitted
// rather than failing the run.
func (s *BalanceService) fetchNative(ctx context.Context, address string) *types.BalanceItem {
	raw, err := s.reader.NativeBalance(ctx, address)
	if err != nil {
		s.logger.WithError(err).Debug("native balance fetch failed, omitting entry")
		return nil
	}

	return &types.BalanceItem{
		TokenDescriptor: s.native,
		RawAmount:       raw,
		DisplayAmount:   types.FormatUnits(raw, s.native.Decimals),
	}
}

// fetchToken issues the balance and the three metadata reads in parallel.
// Metadata reads individually fall back to the curated descriptor's static
// values; only a failed balance read drops the token.
func (s *BalanceService) fetchToken(ctx context.Context, owner string, token types.TokenDescriptor) *types.BalanceItem {
	var (
		wg sync.WaitGroup

		raw    *big.Int
		rawErr error

		decimals = token.Decimals
		symbol   = token.Symbol
		name     = token.Name
	)

	wg.Add(4)
	go func() {
		defer wg.Done()
		raw, rawErr = s.reader.TokenBalance(ctx, token.Address, owner)
	}()
	go func() {
		defer wg.Done()
		if d, err := s.reader.TokenDecimals(ctx, token.Address); err == nil {
			decimals = d
		}
	}()
	go func() {
		defer wg.Done()
		if sym, err := s.reader.TokenSymbol(ctx, token.Address); err == nil {
			symbol = sym
		}
	}()
	go func() {
		defer wg.Done()
		if n, err := s.reader.TokenName(ctx, token.Address); err == nil {
			name = n
		}
	}()
	wg.Wait()

	if rawErr != nil {
		s.logger.WithError(rawErr).WithField("token", token.Address).Debug("token balance fetch failed, skipping token")
		return nil
	}

	return &types.BalanceItem{
		TokenDescriptor: types.TokenDescriptor{
			Address:  token.Address,
			Name:     name,
			Symbol:   symbol,
			Decimals: decimals,
		},
		RawAmount:     raw,
		DisplayAmount: types.FormatUnits(raw, decimals),
	}
}
