package pricing

import "math"

// Offset bounds in percent. Anything outside is clamped, never rejected.
const (
	MinOffsetPercent = -5.0
	MaxOffsetPercent = 5.0
)

// OffsetMode selects how the buy/sell offset pair is pre-filled.
type OffsetMode string

const (
	OffsetModeBullish  OffsetMode = "bullish"
	OffsetModeSideways OffsetMode = "sideways"
	OffsetModeCustom   OffsetMode = "custom"
)

// OrderPrices is the buy/sell limit price pair derived from a reference price.
type OrderPrices struct {
	Buy  float64
	Sell float64
}

// ClampOffset bounds an offset percentage to [-5, 5]. Non-finite input maps
// to 0. Idempotent.
func ClampOffset(pct float64) float64 {
	if math.IsNaN(pct) || math.IsInf(pct, 0) {
		return 0
	}
	if pct < MinOffsetPercent {
		return MinOffsetPercent
	}
	if pct > MaxOffsetPercent {
		return MaxOffsetPercent
	}
	return pct
}

// ApplyOffset shifts a base price by a clamped percentage. The result is
// floored at zero: an offset can never produce a negative price.
func ApplyOffset(base, pct float64) float64 {
	price := base * (1 + ClampOffset(pct)/100)
	if price < 0 {
		return 0
	}
	return price
}

// CalculatePrices derives the paired limit prices from the reference price.
func CalculatePrices(base, buyOffsetPct, sellOffsetPct float64) OrderPrices {
	return OrderPrices{
		Buy:  ApplyOffset(base, buyOffsetPct),
		Sell: ApplyOffset(base, sellOffsetPct),
	}
}

// OffsetsForMode returns the preset buy/sell offset pair for a mode. Custom
// (and any unknown mode) reports ok=false: stored values stay untouched.
// Invoked on mode change only, never re-derived from storage.
func OffsetsForMode(mode OffsetMode) (buy, sell float64, ok bool) {
	switch mode {
	case OffsetModeBullish:
		// Ride the trend: buy slightly above mid, sell higher.
		return 0.05, 0.10, true
	case OffsetModeSideways:
		// Tight round-trip for volume in a flat market.
		return -0.01, 0.01, true
	default:
		return 0, 0, false
	}
}
