package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/zkrex/zkrex/internal/types"
)

// historyNamespace prefixes the daily-history keys.
const historyNamespace = "zkrex:history"

// HistoryStore persists the daily portfolio series for one wallet. The
// series is read-modify-written synchronously by its single writer, so a
// whole-value replace is sufficient.
type HistoryStore interface {
	Load(ctx context.Context, network types.NetworkID, address string) ([]types.PortfolioPoint, error)
	Save(ctx context.Context, network types.NetworkID, address string, points []types.PortfolioPoint) error
}

// RedisHistoryStore keeps each series as one serialized JSON array, the
// direct analogue of a browser's local key-value store.
type RedisHistoryStore struct {
	cache *RedisCache
}

// NewRedisHistoryStore creates a Redis-backed history store.
func NewRedisHistoryStore(cache *RedisCache) *RedisHistoryStore {
	return &RedisHistoryStore{cache: cache}
}

func historyKey(network types.NetworkID, address string) string {
	return fmt.Sprintf("%s:%s:%s", historyNamespace, network, types.NormalizeAddress(address))
}

// Load returns the stored series, or an empty one when none exists or the
// stored value cannot be decoded.
func (s *RedisHistoryStore) Load(ctx context.Context, network types.NetworkID, address string) ([]types.PortfolioPoint, error) {
	raw, err := s.cache.Client().Get(ctx, historyKey(network, address)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load history: %w", err)
	}

	var points []types.PortfolioPoint
	if err := json.Unmarshal([]byte(raw), &points); err != nil {
		return nil, nil
	}
	return points, nil
}

// Save replaces the stored series wholesale.
func (s *RedisHistoryStore) Save(ctx context.Context, network types.NetworkID, address string, points []types.PortfolioPoint) error {
	raw, err := json.Marshal(points)
	if err != nil {
		return fmt.Errorf("failed to encode history: %w", err)
	}

	if err := s.cache.Client().Set(ctx, historyKey(network, address), raw, 0).Err(); err != nil {
		return fmt.Errorf("failed to save history: %w", err)
	}
	return nil
}
