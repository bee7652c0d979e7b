package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alanyoungcy/copytracker/internal/domain"
)

// PositionStore implements domain.PositionStore using PostgreSQL.
type PositionStore struct {
	pool *pgxpool.Pool
}

// NewPositionStore creates a PositionStore backed by the given pool.
func NewPositionStore(pool *pgxpool.Pool) *PositionStore {
	return &PositionStore{pool: pool}
}

// Upsert inserts or replaces the position keyed by token ID.
func (s *PositionStore) Upsert(ctx context.Context, p domain.Position) error {
	const query = `
		INSERT INTO positions (
			token_id, market_id, outcome, size, entry_price, direction,
			opened_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (token_id) DO UPDATE SET
			market_id   = EXCLUDED.market_id,
			outcome     = EXCLUDED.outcome,
			size        = EXCLUDED.size,
			entry_price = EXCLUDED.entry_price,
			direction   = EXCLUDED.direction,
			opened_at   = EXCLUDED.opened_at,
			updated_at  = EXCLUDED.updated_at`

	_, err := s.pool.Exec(ctx, query,
		p.TokenID, p.MarketID, p.Outcome,
		p.Size, p.EntryPrice, int(p.Direction),
		p.OpenedAt, p.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: upsert position %s: %w", p.TokenID, err)
	}
	return nil
}

// Remove deletes the position for the token. Removing a token with no row is
// a no-op so mirror writes stay idempotent.
func (s *PositionStore) Remove(ctx context.Context, tokenID string) error {
	if _, err := s.pool.Exec(ctx, `DELETE FROM positions WHERE token_id = $1`, tokenID); err != nil {
		return fmt.Errorf("postgres: remove position %s: %w", tokenID, err)
	}
	return nil
}

// ListOpen returns all mirrored positions.
func (s *PositionStore) ListOpen(ctx context.Context) ([]domain.Position, error) {
	const query = `
		SELECT token_id, market_id, outcome, size, entry_price, direction,
		       opened_at, updated_at
		FROM positions
		ORDER BY opened_at`

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("postgres: list positions: %w", err)
	}
	defer rows.Close()

	var positions []domain.Position
	for rows.Next() {
		var p domain.Position
		var direction int
		if err := rows.Scan(
			&p.TokenID, &p.MarketID, &p.Outcome,
			&p.Size, &p.EntryPrice, &direction,
			&p.OpenedAt, &p.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("postgres: scan position: %w", err)
		}
		p.Direction = domain.Direction(direction)
		positions = append(positions, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: list positions: %w", err)
	}
	return positions, nil
}

var _ domain.PositionStore = (*PositionStore)(nil)
