// Package engine implements the trade classification engine. Given the
// ledger's current view of a market and one fill, it decides what the fill
// means relative to the exposure already held (open, increase, partial or
// full close, reverse, or hedge of the opposite outcome), computes realized
// PnL at the moment of any close, and emits the ledger delta to apply.
//
// The engine is a pure function of (view, event): it performs no I/O, never
// blocks, and never mutates the ledger itself. The caller applies the
// returned delta atomically.
package engine

import (
	"fmt"
	"math"

	"github.com/google/uuid"

	"github.com/alanyoungcy/copytracker/internal/domain"
)

// SizeEpsilon is the tolerance band, in shares, inside which a remaining
// position counts as exactly unwound. Sizes accumulated through repeated
// volume-weighted averaging do not land on exact zero, so the comparison is
// on share size, never on PnL.
const SizeEpsilon = 1e-9

// Classifier evaluates fills against ledger state.
type Classifier struct {
	epsilon float64
}

// New creates a Classifier with the default size tolerance.
func New() *Classifier {
	return &Classifier{epsilon: SizeEpsilon}
}

// Classify evaluates one fill against the current ledger view and returns
// the classification and the delta to apply. It rejects events that violate
// the feed contract with domain.ErrInvalidEvent and never returns a partial
// result alongside an error.
func (c *Classifier) Classify(view domain.LedgerView, ev domain.TradeEvent) (domain.Classification, error) {
	if err := validate(ev); err != nil {
		return domain.Classification{}, err
	}

	// Hedge check: a BUY on one outcome unwinds exposure held on the other
	// outcome of the same market.
	if ev.Side == domain.SideBuy {
		if op, ok := view.GetOppositePosition(ev.MarketID, ev.TokenID); ok && op.Size > 0 {
			return c.classifyHedge(view, ev, op), nil
		}
	}

	return c.classifySameToken(view, ev)
}

func validate(ev domain.TradeEvent) error {
	if ev.Side != domain.SideBuy && ev.Side != domain.SideSell {
		return fmt.Errorf("engine: side %q: %w", ev.Side, domain.ErrInvalidEvent)
	}
	if ev.Size <= 0 {
		return fmt.Errorf("engine: size %v must be > 0: %w", ev.Size, domain.ErrInvalidEvent)
	}
	if ev.Price < 0 || ev.Price > 1 {
		return fmt.Errorf("engine: price %v outside [0,1]: %w", ev.Price, domain.ErrInvalidEvent)
	}
	return nil
}

// classifyHedge unwinds the opposite outcome's position and books the bought
// outcome at its full traded size.
//
// PnL prices the combined position against binary par: the two outcome
// prices sum to 1.0 at settlement, so unwinding one side while entering the
// other realizes closingSize * (1 - oppositeEntry - fillPrice).
//
// The accounting is deliberately asymmetric: realized PnL is capped at what
// was actually held on the opposite side, while the bought side is credited
// with the full traded size even when it exceeds what was needed to close.
// This reproduces the observed bookkeeping; do not "fix" it here.
func (c *Classifier) classifyHedge(view domain.LedgerView, ev domain.TradeEvent, op domain.Position) domain.Classification {
	closingSize := math.Min(ev.Size, op.Size)
	pnl := closingSize * (1.0 - op.EntryPrice - ev.Price)

	delta := domain.LedgerDelta{
		Closed: []domain.ClosedTrade{{
			ID:          uuid.NewString(),
			MarketID:    op.MarketID,
			TokenID:     op.TokenID,
			Outcome:     op.Outcome,
			ClosingSize: closingSize,
			EntryPrice:  op.EntryPrice,
			ExitPrice:   ev.Price,
			RealizedPnL: pnl,
			ClosedAt:    ev.Timestamp,
		}},
	}

	kind := domain.KindPartialHedge
	if closingSize >= op.Size-c.epsilon {
		kind = domain.KindHedgeClose
		delta.Removals = append(delta.Removals, op.TokenID)
	} else {
		reduced := op
		reduced.Size = op.Size - closingSize
		reduced.UpdatedAt = ev.Timestamp
		delta.Upserts = append(delta.Upserts, reduced)
	}
	delta.Closed[0].Kind = kind

	// The bought outcome's own position is opened or increased with the full
	// trade size, independent of the opposite-side accounting.
	var bought domain.Position
	if own, ok := view.GetPosition(ev.TokenID); ok {
		bought = increased(own, ev)
	} else {
		bought = opened(ev, domain.DirectionLong)
	}
	delta.Upserts = append(delta.Upserts, bought)

	return domain.Classification{Kind: kind, Delta: delta, Resulting: &bought}
}

// classifySameToken evaluates a fill against the position held on the fill's
// own token.
func (c *Classifier) classifySameToken(view domain.LedgerView, ev domain.TradeEvent) (domain.Classification, error) {
	pos, ok := view.GetPosition(ev.TokenID)

	if !ok {
		// SELL against a token we hold nothing of: the tracker does not model
		// native shorting, so this is a feed-contract violation, not a short
		// open.
		if ev.Side == domain.SideSell {
			return domain.Classification{}, fmt.Errorf(
				"engine: sell of %v %s with no open position: %w", ev.Size, ev.TokenID, domain.ErrInvalidEvent)
		}
		p := opened(ev, domain.DirectionLong)
		return domain.Classification{
			Kind:      domain.KindOpen,
			Delta:     domain.LedgerDelta{Upserts: []domain.Position{p}},
			Resulting: &p,
		}, nil
	}

	signedSize := ev.Size
	if ev.Side == domain.SideSell {
		signedSize = -ev.Size
	}
	currentSigned := pos.SignedSize()

	// Same direction as the held position: volume-weighted increase.
	if currentSigned*signedSize > 0 {
		p := increased(pos, ev)
		return domain.Classification{
			Kind:      domain.KindIncrease,
			Delta:     domain.LedgerDelta{Upserts: []domain.Position{p}},
			Resulting: &p,
		}, nil
	}

	// Opposing the held position: close some, all, or flip through zero.
	remainingSigned := currentSigned + signedSize
	closingSize := math.Min(ev.Size, pos.Size)
	pnl := closingSize * (ev.Price - pos.EntryPrice) * float64(pos.Direction)

	record := domain.ClosedTrade{
		ID:          uuid.NewString(),
		MarketID:    pos.MarketID,
		TokenID:     pos.TokenID,
		Outcome:     pos.Outcome,
		ClosingSize: closingSize,
		EntryPrice:  pos.EntryPrice,
		ExitPrice:   ev.Price,
		RealizedPnL: pnl,
		ClosedAt:    ev.Timestamp,
	}

	switch {
	case math.Abs(remainingSigned) <= c.epsilon:
		record.Kind = domain.KindFullClose
		return domain.Classification{
			Kind: domain.KindFullClose,
			Delta: domain.LedgerDelta{
				Removals: []string{pos.TokenID},
				Closed:   []domain.ClosedTrade{record},
			},
		}, nil

	case sameSign(remainingSigned, currentSigned):
		reduced := pos
		reduced.Size = math.Abs(remainingSigned)
		reduced.UpdatedAt = ev.Timestamp
		record.Kind = domain.KindPartialClose
		return domain.Classification{
			Kind: domain.KindPartialClose,
			Delta: domain.LedgerDelta{
				Upserts: []domain.Position{reduced},
				Closed:  []domain.ClosedTrade{record},
			},
			Resulting: &reduced,
		}, nil

	default:
		// Direction flips: the held position closes in full and a new one
		// opens on the other side of the book, both in one delta.
		record.Kind = domain.KindReverse
		record.ClosingSize = pos.Size
		record.RealizedPnL = pos.Size * (ev.Price - pos.EntryPrice) * float64(pos.Direction)

		flipped := domain.Position{
			TokenID:    ev.TokenID,
			MarketID:   ev.MarketID,
			Outcome:    ev.Outcome,
			Size:       math.Abs(remainingSigned),
			EntryPrice: ev.Price,
			Direction:  -pos.Direction,
			OpenedAt:   ev.Timestamp,
			UpdatedAt:  ev.Timestamp,
		}
		return domain.Classification{
			Kind: domain.KindReverse,
			Delta: domain.LedgerDelta{
				Upserts: []domain.Position{flipped},
				Closed:  []domain.ClosedTrade{record},
			},
			Resulting: &flipped,
		}, nil
	}
}

// opened builds a fresh position from a fill.
func opened(ev domain.TradeEvent, dir domain.Direction) domain.Position {
	return domain.Position{
		TokenID:    ev.TokenID,
		MarketID:   ev.MarketID,
		Outcome:    ev.Outcome,
		Size:       ev.Size,
		EntryPrice: ev.Price,
		Direction:  dir,
		OpenedAt:   ev.Timestamp,
		UpdatedAt:  ev.Timestamp,
	}
}

// increased folds a fill into an existing position, re-averaging the entry
// price by volume.
func increased(pos domain.Position, ev domain.TradeEvent) domain.Position {
	newSize := pos.Size + ev.Size
	pos.EntryPrice = (pos.Size*pos.EntryPrice + ev.Size*ev.Price) / newSize
	pos.Size = newSize
	pos.UpdatedAt = ev.Timestamp
	return pos
}

func sameSign(a, b float64) bool {
	return (a > 0) == (b > 0)
}
