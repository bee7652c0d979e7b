package domain

import "time"

// Side indicates whether a fill bought or sold outcome tokens.
type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

// TradeEvent is a single executed fill observed on the target wallet. The
// feed guarantees events are deduplicated by transaction hash and delivered
// in chronological order per market; the tracker does not re-check either.
type TradeEvent struct {
	TransactionHash string
	Timestamp       time.Time
	MarketID        string // condition ID of the owning market
	TokenID         string // outcome token (asset) ID
	Outcome         string // human-readable outcome label, e.g. "Up" / "Down"
	Side            Side
	Size            float64 // shares, must be > 0
	Price           float64 // per-share price in [0,1]
	Wallet          string  // proxy wallet that executed the fill
}

// USDCValue returns the notional value of the fill in USDC.
func (t TradeEvent) USDCValue() float64 {
	return t.Size * t.Price
}
