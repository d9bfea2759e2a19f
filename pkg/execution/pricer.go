package execution

import (
	"github.com/yourusername/quantlink-exec-engine/pkg/market"
)

// OrderOpts carries optional per-order pricing overrides for the
// strategy-facing entry points.
type OrderOpts struct {
	// LimitPrice, when > 0, is used as-is (aligned to tick size) and the
	// book is not consulted.
	LimitPrice float64
	// OffsetTicks overrides the engine default aggression offset. Only
	// honored when OffsetSet is true, so a genuine zero offset (join the
	// touch) is expressible.
	OffsetTicks int
	OffsetSet   bool
}

// resolveOrderPrice computes the limit price for an order. Buy-side orders
// cross from the ask upward, sell-side from the bid downward, by
// offsetTicks ticks. Falls back to the last price when the relevant book
// side is empty. The result is aligned to the tick size.
func resolveOrderPrice(instrument string, side Side, tick *market.Tick, tickSize float64, offsetTicks int) (float64, error) {
	if tick == nil {
		return 0, &NoMarketDataError{Instrument: instrument}
	}

	slip := float64(offsetTicks) * tickSize

	var base float64
	if side == SideBuy {
		base = tick.AskPrice
		if base <= 0 {
			base = tick.LastPrice
		}
		if base <= 0 {
			return 0, &NoMarketDataError{Instrument: instrument}
		}
		base += slip
	} else {
		base = tick.BidPrice
		if base <= 0 {
			base = tick.LastPrice
		}
		if base <= 0 {
			return 0, &NoMarketDataError{Instrument: instrument}
		}
		base -= slip
	}

	return market.RoundToTickSize(base, tickSize), nil
}
