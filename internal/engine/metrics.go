// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package engine

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Rounds counts completed engine rounds.
var Rounds = prometheus.NewCounter(
	prometheus.CounterOpts{
		Name: "buffd_engine_rounds_total",
		Help: "Total number of engine rounds processed",
	},
)

// RoundDuration tracks how long a round takes to process.
var RoundDuration = prometheus.NewHistogram(
	prometheus.HistogramOpts{
		Name:    "buffd_engine_round_duration_seconds",
		Help:    "Time spent processing one engine round",
		Buckets: prometheus.ExponentialBuckets(0.0005, 2, 14),
	},
)

// ActiveInstances is the number of live buff instances after the last round.
var ActiveInstances = prometheus.NewGauge(
	prometheus.GaugeOpts{
		Name: "buffd_engine_active_instances",
		Help: "Buff instances attached after the last round",
	},
)

// TrackedActors is the number of actors with at least one live instance.
var TrackedActors = prometheus.NewGauge(
	prometheus.GaugeOpts{
		Name: "buffd_engine_tracked_actors",
		Help: "Actors carrying at least one buff after the last round",
	},
)

// QueueRequests counts queued requests by outcome.
var QueueRequests = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "buffd_engine_queue_requests_total",
		Help: "Queued engine requests by result",
	},
	[]string{"result"},
)

// Queue request results.
const (
	QueueAccepted = "accepted"
	QueueRejected = "rejected"
	QueueFailed   = "failed"
)

// RegisterMetrics registers the engine collectors with reg.
// Panics if registration fails (following prometheus convention).
func RegisterMetrics(reg prometheus.Registerer) {
	reg.MustRegister(Rounds)
	reg.MustRegister(RoundDuration)
	reg.MustRegister(ActiveInstances)
	reg.MustRegister(TrackedActors)
	reg.MustRegister(QueueRequests)
}
