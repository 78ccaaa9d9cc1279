package pricing

import "testing"

func TestCalculateAlphaPointStats(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		volume    float64
		points    int
		delta     float64
	}{
		{name: "zero-volume", volume: 0, points: 0, delta: 2},
		{name: "negative-volume", volume: -10, points: 0, delta: 2},
		{name: "below-first-threshold", volume: 1, points: 0, delta: 1},
		{name: "first-threshold", volume: 2, points: 1, delta: 2},
		{name: "between-thresholds", volume: 3, points: 1, delta: 1},
		{name: "second-threshold", volume: 4, points: 2, delta: 4},
		{name: "large-volume", volume: 1024, points: 10, delta: 1024},
		{name: "just-under-threshold", volume: 1023.5, points: 9, delta: 0.5},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			stats := CalculateAlphaPointStats(tt.volume)
			if stats.Points != tt.points {
				t.Errorf("points = %d, want %d", stats.Points, tt.points)
			}
			if stats.NextThresholdDelta != tt.delta {
				t.Errorf("delta = %v, want %v", stats.NextThresholdDelta, tt.delta)
			}
		})
	}
}

func TestCalculateAlphaPointStats_Monotonic(t *testing.T) {
	t.Parallel()

	prev := CalculateAlphaPointStats(0).Points
	for v := 0.25; v < 5000; v += 0.25 {
		points := CalculateAlphaPointStats(v).Points
		if points < prev {
			t.Fatalf("points decreased at volume %v: %d -> %d", v, prev, points)
		}
		prev = points
	}
}

func TestCalculateAlphaPointStats_DeltaNeverNegative(t *testing.T) {
	t.Parallel()

	for _, v := range []float64{0, 1, 2, 2.0001, 1024, 1e9} {
		if d := CalculateAlphaPointStats(v).NextThresholdDelta; d < 0 {
			t.Errorf("delta negative at volume %v: %v", v, d)
		}
	}
}
