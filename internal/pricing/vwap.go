package pricing

import (
	"math"

	"github.com/tbencze/alpha-pilot/pkg/types"
)

// VWAP computes the volume-weighted average price over the given trade
// samples. Entries with a non-finite or non-positive price or quantity are
// filtered out rather than treated as errors. Returns ok=false when no valid
// sample remains or the summed quantity is zero.
func VWAP(trades []types.TradeSample) (price float64, ok bool) {
	var notional, quantity float64

	for _, t := range trades {
		if !validSample(t) {
			continue
		}
		notional += t.Price * t.Quantity
		quantity += t.Quantity
	}

	if quantity == 0 {
		return 0, false
	}

	return notional / quantity, true
}

func validSample(t types.TradeSample) bool {
	if math.IsNaN(t.Price) || math.IsInf(t.Price, 0) || t.Price <= 0 {
		return false
	}
	if math.IsNaN(t.Quantity) || math.IsInf(t.Quantity, 0) || t.Quantity <= 0 {
		return false
	}
	return true
}
