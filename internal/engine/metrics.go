package engine

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// CyclesTotal counts evaluation cycles by outcome.
	CyclesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "alpha_pilot_engine_cycles_total",
			Help: "Total evaluation cycles by outcome",
		},
		[]string{"outcome"},
	)

	// CycleDurationSeconds tracks evaluation cycle latency.
	CycleDurationSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "alpha_pilot_engine_cycle_duration_seconds",
		Help:    "Duration of evaluation cycles",
		Buckets: prometheus.DefBuckets,
	})

	// DispatchFailuresTotal counts failed outbound dispatches.
	DispatchFailuresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "alpha_pilot_engine_dispatch_failures_total",
		Help: "Total failed message dispatches to the scheduler",
	})
)
