package domain

import (
	"context"
	"io"
	"time"
)

// LedgerView is the read-only slice of ledger state the classification engine
// evaluates against. Reads never block and never perform I/O.
type LedgerView interface {
	// GetPosition returns the open position for a token, if any.
	GetPosition(tokenID string) (Position, bool)
	// GetOppositePosition returns the position, if any, held on the other
	// outcome of the same market.
	GetOppositePosition(marketID, tokenID string) (Position, bool)
}

// Ledger holds open positions and the append-only closed-trade history.
// Apply commits a delta atomically with respect to all readers.
type Ledger interface {
	LedgerView
	Apply(delta LedgerDelta) error
	OpenPositions() []Position
	ClosedTrades(limit int) []ClosedTrade
	CumulativePnL() float64
	Cursor() FeedCursor
	SetCursor(cur FeedCursor)
	Snapshot() LedgerSnapshot
	Restore(snap LedgerSnapshot)
}

// FeedCursor records how far the fill feed has been consumed so a restart
// resumes without reprocessing.
type FeedCursor struct {
	LastSeenTimestamp time.Time
	SeenTxHashes      []string
}

// LedgerSnapshot is a point-in-time copy of the full tracker state. Restoring
// a snapshot and replaying subsequent fills reproduces the same ledger.
type LedgerSnapshot struct {
	Positions    []Position
	ClosedTrades []ClosedTrade
	Cursor       FeedCursor
	TakenAt      time.Time
}

// StateStore persists ledger snapshots across restarts.
type StateStore interface {
	Save(ctx context.Context, snap LedgerSnapshot) error
	// Load returns the most recent snapshot; ok is false when none exists.
	Load(ctx context.Context) (snap LedgerSnapshot, ok bool, err error)
}

// ClosedTradeStore durably mirrors the append-only closed-trade history.
type ClosedTradeStore interface {
	Append(ctx context.Context, ct ClosedTrade) error
	ListRecent(ctx context.Context, limit int) ([]ClosedTrade, error)
	SumPnL(ctx context.Context) (float64, error)
}

// PositionStore durably mirrors the open-position table.
type PositionStore interface {
	Upsert(ctx context.Context, pos Position) error
	Remove(ctx context.Context, tokenID string) error
	ListOpen(ctx context.Context) ([]Position, error)
}

// SignalBus publishes classification events for downstream consumers.
type SignalBus interface {
	Publish(ctx context.Context, channel string, payload []byte) error
}

// BlobWriter uploads snapshot archives to object storage.
type BlobWriter interface {
	Put(ctx context.Context, path string, data io.Reader, contentType string) error
}
