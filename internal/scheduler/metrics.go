package scheduler

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RunsTotal counts run cycles by result.
	RunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "alpha_pilot_scheduler_runs_total",
			Help: "Total run cycles by result",
		},
		[]string{"result"},
	)

	// MessagesTotal counts inbound messages by kind.
	MessagesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "alpha_pilot_scheduler_messages_total",
			Help: "Total inbound messages by kind",
		},
		[]string{"kind"},
	)

	// DeliveryAttemptsTotal counts run-command delivery attempts.
	DeliveryAttemptsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "alpha_pilot_scheduler_delivery_attempts_total",
		Help: "Total run-command delivery attempts to tabs",
	})

	// AutoStopsTotal counts auto-stop events.
	AutoStopsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "alpha_pilot_scheduler_auto_stops_total",
		Help: "Total automatic stops from points or trade ceilings",
	})
)
