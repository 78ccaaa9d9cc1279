package scheduler

import (
	"fmt"
	"time"

	"github.com/tbencze/alpha-pilot/internal/pricing"
	"github.com/tbencze/alpha-pilot/internal/state"
)

// ensureAggregate returns today's aggregate on st, applying the day-rollover
// rule: a stored aggregate under a different date is reset before use, with
// FirstBalance re-seeded from the latest observed balance.
func ensureAggregate(st *state.SchedulerState, now time.Time, latestBalance *float64) *state.DailyAggregate {
	today := state.DateOf(now)

	agg := st.DailyBuyVolume
	if agg == nil || agg.Date != today {
		agg = &state.DailyAggregate{
			Date:         today,
			FirstBalance: latestBalance,
		}
		recomputePoints(agg)
		st.DailyBuyVolume = agg
	}

	return agg
}

// recomputePoints rederives AlphaPoints and NextThresholdDelta from Total.
// They are never mutated independently.
func recomputePoints(agg *state.DailyAggregate) {
	stats := pricing.CalculateAlphaPointStats(agg.Total)
	agg.AlphaPoints = stats.Points
	agg.NextThresholdDelta = stats.NextThresholdDelta
}

// addBuyVolume folds one placement's volume into the aggregate.
func addBuyVolume(agg *state.DailyAggregate, delta float64) {
	if delta <= 0 {
		return
	}
	agg.Total += delta
	agg.TradeCount++
	recomputePoints(agg)
}

// reconcileSnapshot merges an order-history snapshot into the aggregate. The
// exchange's own view may know about trades this process missed, so values
// may only be raised, never lowered: the aggregate stays authoritative.
func reconcileSnapshot(agg *state.DailyAggregate, snap *stateSnapshot) {
	if snap.TotalBuyVolume > agg.Total {
		agg.Total = snap.TotalBuyVolume
	}
	if snap.BuyOrderCount > agg.TradeCount {
		agg.TradeCount = snap.BuyOrderCount
	}
	recomputePoints(agg)
}

// stateSnapshot is the subset of an ORDER_HISTORY_SNAPSHOT the aggregate
// reconciliation reads.
type stateSnapshot struct {
	TotalBuyVolume float64
	BuyOrderCount  int
}

// autoStopReasons evaluates both stop conditions against the aggregate.
// The conditions are independent; both reasons are reported when both hold.
func autoStopReasons(agg *state.DailyAggregate, settings state.Settings) []string {
	var reasons []string
	if agg.AlphaPoints >= settings.PointsTarget {
		reasons = append(reasons, fmt.Sprintf("points target reached (%d/%d)", agg.AlphaPoints, settings.PointsTarget))
	}
	if agg.TradeCount >= settings.TradeCountCeiling() {
		reasons = append(reasons, fmt.Sprintf("daily trade limit reached (%d/%d)", agg.TradeCount, settings.TradeCountCeiling()))
	}
	return reasons
}
