package pricing

import "math"

// AlphaPointStats describes where a daily buy volume sits on the
// doubling-threshold reward curve.
type AlphaPointStats struct {
	Points             int
	NextThresholdDelta float64
}

// CalculateAlphaPointStats maps a daily buy volume onto the alpha-point
// curve: points = floor(log2(volume)) once volume reaches 2, with the next
// point at every doubling. The delta is the remaining volume to the next
// threshold, never negative.
func CalculateAlphaPointStats(volume float64) AlphaPointStats {
	if volume <= 0 || math.IsNaN(volume) {
		return AlphaPointStats{Points: 0, NextThresholdDelta: 2}
	}
	if volume < 2 {
		return AlphaPointStats{Points: 0, NextThresholdDelta: 2 - volume}
	}

	points := int(math.Floor(math.Log2(volume)))
	if points < 0 {
		points = 0
	}

	nextThreshold := math.Pow(2, float64(points+1))
	delta := nextThreshold - volume
	if delta < 0 {
		delta = 0
	}

	return AlphaPointStats{Points: points, NextThresholdDelta: delta}
}
