package domain

import "time"

// Kind classifies what a fill means relative to the exposure already held.
// The set is closed: every valid fill maps to exactly one kind.
type Kind string

const (
	KindOpen         Kind = "OPEN"
	KindIncrease     Kind = "INCREASE"
	KindPartialClose Kind = "PARTIAL_CLOSE"
	KindFullClose    Kind = "FULL_CLOSE"
	KindReverse      Kind = "REVERSE"
	KindHedgeClose   Kind = "HEDGE_CLOSE"
	KindPartialHedge Kind = "PARTIAL_HEDGE"
)

// RealizesPnL reports whether this classification books realized PnL.
func (k Kind) RealizesPnL() bool {
	switch k {
	case KindPartialClose, KindFullClose, KindReverse, KindHedgeClose, KindPartialHedge:
		return true
	default:
		return false
	}
}

// ClosedTrade is the immutable record written whenever a classification
// realizes PnL. Records are append-only; cumulative realized PnL is the sum
// of their RealizedPnL values.
type ClosedTrade struct {
	ID          string
	MarketID    string
	TokenID     string
	Outcome     string
	Kind        Kind
	ClosingSize float64
	EntryPrice  float64
	ExitPrice   float64
	RealizedPnL float64
	ClosedAt    time.Time
}

// LedgerDelta is the complete mutation a single fill produces. The ledger
// applies a delta as one atomic unit: a concurrent reader sees either none
// of its effects or all of them. A reverse or hedge therefore closes the old
// leg and opens the new one in the same delta.
type LedgerDelta struct {
	Upserts  []Position    // positions to create or replace, keyed by TokenID
	Removals []string      // token IDs whose positions are deleted
	Closed   []ClosedTrade // records to append to the closed-trade history
}

// Classification is the engine's verdict on one fill: the kind, the ledger
// mutation to apply, and the position state on the fill's own token after
// the delta (nil when the fill leaves no position on that token).
type Classification struct {
	Kind      Kind
	Delta     LedgerDelta
	Resulting *Position
}

// RealizedPnL sums the PnL booked by this classification's closed trades.
func (c Classification) RealizedPnL() float64 {
	var total float64
	for _, ct := range c.Delta.Closed {
		total += ct.RealizedPnL
	}
	return total
}
