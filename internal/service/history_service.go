package service

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/zkrex/zkrex/internal/storage"
	"github.com/zkrex/zkrex/internal/types"
)

// DefaultWindowDays is the chart window used when a caller does not ask
// for a specific range.
const DefaultWindowDays = 7

// Upsert returns a copy of the series with the point's date replaced or
// appended, sorted ascending. The input slice is never mutated.
func Upsert(points []types.PortfolioPoint, point types.PortfolioPoint) []types.PortfolioPoint {
	out := make([]types.PortfolioPoint, 0, len(points)+1)
	replaced := false
	for _, p := range points {
		if p.Date == point.Date {
			out = append(out, point)
			replaced = true
			continue
		}
		out = append(out, p)
	}
	if !replaced {
		out = append(out, point)
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Date < out[j].Date })
	return out
}

// Prune drops points older than the window ending at the reference date.
func Prune(points []types.PortfolioPoint, windowDays int, reference time.Time) []types.PortfolioPoint {
	if len(points) == 0 || windowDays <= 0 {
		return points
	}

	start := types.DateString(reference.AddDate(0, 0, -(windowDays - 1)))
	out := make([]types.PortfolioPoint, 0, len(points))
	for _, p := range points {
		if p.Date >= start {
			out = append(out, p)
		}
	}
	return out
}

// FillMissingDays produces a contiguous daily series of exactly windowDays
// points ending at the reference date, carrying the last known value forward
// into gaps. The leading gap before any recorded point defaults to zero.
func FillMissingDays(points []types.PortfolioPoint, windowDays int, reference time.Time) []types.PortfolioPoint {
	if windowDays <= 0 {
		return nil
	}

	byDate := make(map[string]types.PortfolioPoint, len(points))
	for _, p := range points {
		byDate[p.Date] = p
	}

	filled := make([]types.PortfolioPoint, 0, windowDays)
	lastValue := 0.0
	for i := windowDays - 1; i >= 0; i-- {
		date := types.DateString(reference.AddDate(0, 0, -i))
		if hit, ok := byDate[date]; ok {
			lastValue = hit.TotalValue
			filled = append(filled, hit)
			continue
		}
		filled = append(filled, types.PortfolioPoint{Date: date, TotalValue: lastValue})
	}
	return filled
}

// HistoryService persists daily portfolio points per (network, address) key.
// Each mutation is a synchronous read-modify-write of an immutable snapshot.
type HistoryService struct {
	store   storage.HistoryStore
	network types.NetworkID
}

// NewHistoryService creates a history service over the given backend.
func NewHistoryService(store storage.HistoryStore, network types.NetworkID) *HistoryService {
	return &HistoryService{store: store, network: network}
}

// Record upserts a point into the wallet's series. The stored sequence stays
// sorted ascending with at most one point per date.
func (s *HistoryService) Record(ctx context.Context, address string, point types.PortfolioPoint) error {
	if point.Date == "" {
		return fmt.Errorf("point date is required")
	}

	points, err := s.store.Load(ctx, s.network, address)
	if err != nil {
		return err
	}
	return s.store.Save(ctx, s.network, address, Upsert(points, point))
}

// Series returns the contiguous daily chart series for the window.
func (s *HistoryService) Series(ctx context.Context, address string, windowDays int, reference time.Time) ([]types.PortfolioPoint, error) {
	points, err := s.store.Load(ctx, s.network, address)
	if err != nil {
		return nil, err
	}
	return FillMissingDays(Prune(points, windowDays, reference), windowDays, reference), nil
}
