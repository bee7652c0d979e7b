package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alanyoungcy/copytracker/internal/domain"
)

// ClosedTradeStore implements domain.ClosedTradeStore using PostgreSQL.
type ClosedTradeStore struct {
	pool *pgxpool.Pool
}

// NewClosedTradeStore creates a ClosedTradeStore backed by the given pool.
func NewClosedTradeStore(pool *pgxpool.Pool) *ClosedTradeStore {
	return &ClosedTradeStore{pool: pool}
}

// Append inserts a closed trade. Replayed IDs are ignored so the mirror
// tolerates restarts.
func (s *ClosedTradeStore) Append(ctx context.Context, ct domain.ClosedTrade) error {
	const query = `
		INSERT INTO closed_trades (
			id, market_id, token_id, outcome, kind,
			closing_size, entry_price, exit_price, realized_pnl, closed_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (id) DO NOTHING`

	_, err := s.pool.Exec(ctx, query,
		ct.ID, ct.MarketID, ct.TokenID, ct.Outcome, string(ct.Kind),
		ct.ClosingSize, ct.EntryPrice, ct.ExitPrice, ct.RealizedPnL, ct.ClosedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: append closed trade %s: %w", ct.ID, err)
	}
	return nil
}

// ListRecent returns up to limit closed trades, newest first.
func (s *ClosedTradeStore) ListRecent(ctx context.Context, limit int) ([]domain.ClosedTrade, error) {
	const query = `
		SELECT id, market_id, token_id, outcome, kind,
		       closing_size, entry_price, exit_price, realized_pnl, closed_at
		FROM closed_trades
		ORDER BY closed_at DESC
		LIMIT $1`

	rows, err := s.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("postgres: list closed trades: %w", err)
	}
	defer rows.Close()

	var trades []domain.ClosedTrade
	for rows.Next() {
		var ct domain.ClosedTrade
		var kind string
		if err := rows.Scan(
			&ct.ID, &ct.MarketID, &ct.TokenID, &ct.Outcome, &kind,
			&ct.ClosingSize, &ct.EntryPrice, &ct.ExitPrice, &ct.RealizedPnL, &ct.ClosedAt,
		); err != nil {
			return nil, fmt.Errorf("postgres: scan closed trade: %w", err)
		}
		ct.Kind = domain.Kind(kind)
		trades = append(trades, ct)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: list closed trades: %w", err)
	}
	return trades, nil
}

// SumPnL returns the cumulative realized PnL across all closed trades.
func (s *ClosedTradeStore) SumPnL(ctx context.Context) (float64, error) {
	var total float64
	err := s.pool.QueryRow(ctx,
		`SELECT COALESCE(SUM(realized_pnl), 0) FROM closed_trades`,
	).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("postgres: sum pnl: %w", err)
	}
	return total, nil
}

var _ domain.ClosedTradeStore = (*ClosedTradeStore)(nil)
