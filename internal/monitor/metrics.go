package monitor

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// OrdersTrackedTotal counts orders that entered tracking.
	OrdersTrackedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "alpha_pilot_monitor_orders_tracked_total",
		Help: "Total open orders that entered monitoring",
	})

	// OrdersUntrackedTotal counts orders that left tracking (filled/cancelled).
	OrdersUntrackedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "alpha_pilot_monitor_orders_untracked_total",
		Help: "Total open orders that left monitoring",
	})

	// PendingWarningsTotal counts 5s pending warnings by side.
	PendingWarningsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "alpha_pilot_monitor_pending_warnings_total",
			Help: "Total pending-order warnings raised",
		},
		[]string{"side"},
	)

	// EmergencyStopsTotal counts sell-side escalations.
	EmergencyStopsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "alpha_pilot_monitor_emergency_stops_total",
		Help: "Total emergency stops triggered by stuck sell orders",
	})
)
