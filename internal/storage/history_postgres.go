package storage

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/zkrex/zkrex/internal/types"
)

// PostgresHistoryStore is the durable history backend. The whole series for
// one (network, address) key is replaced in a single transaction so pruned
// dates do not linger.
type PostgresHistoryStore struct {
	db *PostgresDB
}

// NewPostgresHistoryStore creates a Postgres-backed history store.
func NewPostgresHistoryStore(db *PostgresDB) *PostgresHistoryStore {
	return &PostgresHistoryStore{db: db}
}

// Load returns the stored series sorted ascending by date.
func (s *PostgresHistoryStore) Load(ctx context.Context, network types.NetworkID, address string) ([]types.PortfolioPoint, error) {
	rows, err := s.db.Pool().Query(ctx, `
		SELECT date, total_value, by_asset
		FROM portfolio_points
		WHERE network = $1 AND address = $2
		ORDER BY date ASC`,
		string(network), types.NormalizeAddress(address),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query history: %w", err)
	}
	defer rows.Close()

	var points []types.PortfolioPoint
	for rows.Next() {
		var (
			point   types.PortfolioPoint
			byAsset []byte
		)
		if err := rows.Scan(&point.Date, &point.TotalValue, &byAsset); err != nil {
			return nil, fmt.Errorf("failed to scan history row: %w", err)
		}
		if len(byAsset) > 0 {
			if err := json.Unmarshal(byAsset, &point.ByAsset); err != nil {
				point.ByAsset = nil
			}
		}
		points = append(points, point)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read history rows: %w", err)
	}

	return points, nil
}

// Save replaces the stored series for the key wholesale.
func (s *PostgresHistoryStore) Save(ctx context.Context, network types.NetworkID, address string, points []types.PortfolioPoint) error {
	tx, err := s.db.Pool().Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx) // nolint:errcheck // no-op after commit

	addr := types.NormalizeAddress(address)

	if _, err := tx.Exec(ctx, `
		DELETE FROM portfolio_points WHERE network = $1 AND address = $2`,
		string(network), addr,
	); err != nil {
		return fmt.Errorf("failed to clear history: %w", err)
	}

	for _, point := range points {
		var byAsset []byte
		if point.ByAsset != nil {
			byAsset, err = json.Marshal(point.ByAsset)
			if err != nil {
				return fmt.Errorf("failed to encode breakdown: %w", err)
			}
		}

		if _, err := tx.Exec(ctx, `
			INSERT INTO portfolio_points (network, address, date, total_value, by_asset)
			VALUES ($1, $2, $3, $4, $5)
			ON CONFLICT (network, address, date)
			DO UPDATE SET total_value = EXCLUDED.total_value, by_asset = EXCLUDED.by_asset`,
			string(network), addr, point.Date, point.TotalValue, byAsset,
		); err != nil {
			return fmt.Errorf("failed to insert history point: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit history: %w", err)
	}
	return nil
}
