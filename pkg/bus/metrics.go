package bus

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ConnectedTabs tracks the number of page agents connected to the hub.
	ConnectedTabs = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "alpha_pilot_bus_connected_tabs",
		Help: "Number of page agents currently connected to the hub",
	})

	// MessagesSentTotal counts envelopes delivered by kind.
	MessagesSentTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "alpha_pilot_bus_messages_sent_total",
			Help: "Total envelopes delivered over the bus",
		},
		[]string{"kind"},
	)

	// MessagesReceivedTotal counts envelopes handled by kind.
	MessagesReceivedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "alpha_pilot_bus_messages_received_total",
			Help: "Total envelopes received over the bus",
		},
		[]string{"kind"},
	)
)
