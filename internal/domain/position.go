package domain

import "time"

// Direction is the sign of a position's exposure: +1 long, -1 short. It is
// fixed at open and never changes while the position has size.
type Direction int

const (
	DirectionLong  Direction = 1
	DirectionShort Direction = -1
)

// Position is the open exposure held on a single outcome token. A position
// only exists while Size > 0; fully closed positions are removed from the
// ledger rather than retained as zero rows.
type Position struct {
	TokenID    string
	MarketID   string
	Outcome    string
	Size       float64 // shares held, always > 0 while the position exists
	EntryPrice float64 // volume-weighted average entry price in [0,1]
	Direction  Direction
	OpenedAt   time.Time
	UpdatedAt  time.Time
}

// SignedSize returns size with the direction sign applied.
func (p Position) SignedSize() float64 {
	return p.Size * float64(p.Direction)
}
