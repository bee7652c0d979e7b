// Package ledger provides the in-memory position ledger: open exposure per
// outcome token plus the append-only closed-trade history. All mutations go
// through Apply, which commits a full delta under one write lock so readers
// never observe a half-applied fill (e.g. a reverse with the old leg closed
// but the new leg not yet open).
package ledger

import (
	"fmt"
	"sync"
	"time"

	"github.com/alanyoungcy/copytracker/internal/domain"
)

// Ledger implements domain.Ledger. It is safe for concurrent use; fills for
// the same market must still be applied in chronological order by the caller.
type Ledger struct {
	mu        sync.RWMutex
	positions map[string]domain.Position // token ID -> open position
	byMarket  map[string][]string        // market ID -> token IDs with positions
	closed    []domain.ClosedTrade
	totalPnL  float64
	cursor    domain.FeedCursor
}

// New creates an empty ledger.
func New() *Ledger {
	return &Ledger{
		positions: make(map[string]domain.Position),
		byMarket:  make(map[string][]string),
	}
}

// GetPosition returns the open position for a token, if any.
func (l *Ledger) GetPosition(tokenID string) (domain.Position, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	pos, ok := l.positions[tokenID]
	return pos, ok
}

// GetOppositePosition returns the position held on the other outcome of the
// given market, if any.
func (l *Ledger) GetOppositePosition(marketID, tokenID string) (domain.Position, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	for _, tid := range l.byMarket[marketID] {
		if tid == tokenID {
			continue
		}
		if pos, ok := l.positions[tid]; ok {
			return pos, true
		}
	}
	return domain.Position{}, false
}

// Apply commits a delta atomically. Every upsert must carry a strictly
// positive size and every removal must reference an existing position;
// violations return domain.ErrInconsistentState with nothing applied.
func (l *Ledger) Apply(delta domain.LedgerDelta) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	for _, pos := range delta.Upserts {
		if pos.Size <= 0 {
			return fmt.Errorf("ledger: upsert of %s with size %v: %w",
				pos.TokenID, pos.Size, domain.ErrInconsistentState)
		}
	}
	for _, tokenID := range delta.Removals {
		if _, ok := l.positions[tokenID]; !ok {
			return fmt.Errorf("ledger: removal of %s with no open position: %w",
				tokenID, domain.ErrInconsistentState)
		}
	}

	for _, tokenID := range delta.Removals {
		pos := l.positions[tokenID]
		delete(l.positions, tokenID)
		l.unindex(pos.MarketID, tokenID)
	}
	for _, pos := range delta.Upserts {
		if _, ok := l.positions[pos.TokenID]; !ok {
			l.byMarket[pos.MarketID] = append(l.byMarket[pos.MarketID], pos.TokenID)
		}
		l.positions[pos.TokenID] = pos
	}
	for _, ct := range delta.Closed {
		l.closed = append(l.closed, ct)
		l.totalPnL += ct.RealizedPnL
	}
	return nil
}

func (l *Ledger) unindex(marketID, tokenID string) {
	ids := l.byMarket[marketID]
	for i, id := range ids {
		if id == tokenID {
			l.byMarket[marketID] = append(ids[:i], ids[i+1:]...)
			break
		}
	}
	if len(l.byMarket[marketID]) == 0 {
		delete(l.byMarket, marketID)
	}
}

// OpenPositions returns a copy of all open positions.
func (l *Ledger) OpenPositions() []domain.Position {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]domain.Position, 0, len(l.positions))
	for _, pos := range l.positions {
		out = append(out, pos)
	}
	return out
}

// ClosedTrades returns the most recent closed trades, newest first. A limit
// of zero or less returns the full history.
func (l *Ledger) ClosedTrades(limit int) []domain.ClosedTrade {
	l.mu.RLock()
	defer l.mu.RUnlock()
	n := len(l.closed)
	if limit <= 0 || limit > n {
		limit = n
	}
	out := make([]domain.ClosedTrade, 0, limit)
	for i := n - 1; i >= n-limit; i-- {
		out = append(out, l.closed[i])
	}
	return out
}

// CumulativePnL returns the sum of realized PnL over all closed trades.
func (l *Ledger) CumulativePnL() float64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.totalPnL
}

// Cursor returns the feed consumption cursor stored with the ledger.
func (l *Ledger) Cursor() domain.FeedCursor {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return domain.FeedCursor{
		LastSeenTimestamp: l.cursor.LastSeenTimestamp,
		SeenTxHashes:      append([]string(nil), l.cursor.SeenTxHashes...),
	}
}

// SetCursor records how far the feed has been consumed.
func (l *Ledger) SetCursor(cur domain.FeedCursor) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.cursor = domain.FeedCursor{
		LastSeenTimestamp: cur.LastSeenTimestamp,
		SeenTxHashes:      append([]string(nil), cur.SeenTxHashes...),
	}
}

// Snapshot returns a deep copy of the full ledger state.
func (l *Ledger) Snapshot() domain.LedgerSnapshot {
	l.mu.RLock()
	defer l.mu.RUnlock()

	snap := domain.LedgerSnapshot{
		Positions:    make([]domain.Position, 0, len(l.positions)),
		ClosedTrades: append([]domain.ClosedTrade(nil), l.closed...),
		Cursor: domain.FeedCursor{
			LastSeenTimestamp: l.cursor.LastSeenTimestamp,
			SeenTxHashes:      append([]string(nil), l.cursor.SeenTxHashes...),
		},
		TakenAt: time.Now().UTC(),
	}
	for _, pos := range l.positions {
		snap.Positions = append(snap.Positions, pos)
	}
	return snap
}

// Restore replaces the ledger contents with the snapshot. Positions with a
// non-positive size are dropped: the ledger never holds zero rows.
func (l *Ledger) Restore(snap domain.LedgerSnapshot) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.positions = make(map[string]domain.Position, len(snap.Positions))
	l.byMarket = make(map[string][]string)
	for _, pos := range snap.Positions {
		if pos.Size <= 0 {
			continue
		}
		l.positions[pos.TokenID] = pos
		l.byMarket[pos.MarketID] = append(l.byMarket[pos.MarketID], pos.TokenID)
	}

	l.closed = append([]domain.ClosedTrade(nil), snap.ClosedTrades...)
	l.totalPnL = 0
	for _, ct := range l.closed {
		l.totalPnL += ct.RealizedPnL
	}
	l.cursor = domain.FeedCursor{
		LastSeenTimestamp: snap.Cursor.LastSeenTimestamp,
		SeenTxHashes:      append([]string(nil), snap.Cursor.SeenTxHashes...),
	}
}
