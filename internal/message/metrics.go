// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package message

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Drop reasons.
const (
	DropOffline      = "offline"
	DropBackpressure = "backpressure"
)

// MessagesDelivered counts messages placed on a subscriber channel.
var MessagesDelivered = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "buffd_messages_delivered_total",
		Help: "Total number of effect messages delivered to subscribers",
	},
	[]string{"kind"},
)

// MessagesDropped counts messages that could not be delivered.
var MessagesDropped = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "buffd_messages_dropped_total",
		Help: "Total number of effect messages dropped by reason",
	},
	[]string{"reason"},
)

// RegisterMetrics registers message metrics with reg.
// Panics if registration fails (following prometheus convention).
func RegisterMetrics(reg prometheus.Registerer) {
	reg.MustRegister(MessagesDelivered)
	reg.MustRegister(MessagesDropped)
}

// RecordDelivery increments the delivered counter.
func RecordDelivery(kind Kind) {
	MessagesDelivered.WithLabelValues(kind.String()).Inc()
}

// RecordDrop increments the dropped counter.
func RecordDrop(reason string) {
	MessagesDropped.WithLabelValues(reason).Inc()
}
