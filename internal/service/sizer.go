package service

import "github.com/alanyoungcy/copytracker/internal/domain"

// Sizer scales an incoming fill's size by the configured risk multiplier and
// caps its notional value at a maximum USDC amount. Sizing is pre-processing
// applied before the event reaches the classification engine; the engine
// itself never sizes or limits anything.
type Sizer struct {
	Multiplier   float64 // position sizing multiplier, 1.0 = exact copy
	MaxTradeUSDC float64 // maximum notional per fill; 0 disables the cap
}

// NewSizer creates a Sizer. A non-positive multiplier falls back to 1.0.
func NewSizer(multiplier, maxTradeUSDC float64) *Sizer {
	if multiplier <= 0 {
		multiplier = 1.0
	}
	return &Sizer{Multiplier: multiplier, MaxTradeUSDC: maxTradeUSDC}
}

// Apply returns a copy of the event with the adjusted size.
func (s *Sizer) Apply(ev domain.TradeEvent) domain.TradeEvent {
	desired := ev.Size * s.Multiplier

	if s.MaxTradeUSDC > 0 && ev.Price > 0 {
		if desired*ev.Price > s.MaxTradeUSDC {
			desired = s.MaxTradeUSDC / ev.Price
		}
	}

	ev.Size = desired
	return ev
}
