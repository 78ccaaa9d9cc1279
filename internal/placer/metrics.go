package placer

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// PlacementsTotal counts placement attempts by outcome.
	PlacementsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "alpha_pilot_placer_placements_total",
			Help: "Total order placement attempts",
		},
		[]string{"outcome"},
	)

	// PlacementDurationSeconds tracks end-to-end placement latency.
	PlacementDurationSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "alpha_pilot_placer_placement_duration_seconds",
		Help:    "Duration of order placement attempts",
		Buckets: prometheus.DefBuckets,
	})
)
