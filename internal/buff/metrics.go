// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package buff

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Application results.
const (
	ResultStarted   = "started"
	ResultReplaced  = "replaced"
	ResultRefreshed = "refreshed"
	ResultExtended  = "extended"
	ResultRefused   = "refused"
)

// Applications counts Apply outcomes.
// Use RegisterMetrics to register this with a Prometheus registry.
var Applications = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "buffd_buff_applications_total",
		Help: "Total number of buff applications by effect and result",
	},
	[]string{"effect", "result"},
)

// Triggers counts onTrigger invocations.
var Triggers = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "buffd_buff_triggers_total",
		Help: "Total number of buff triggers by effect",
	},
	[]string{"effect"},
)

// Ended counts instances that reached the ended state.
var Ended = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "buffd_buff_ended_total",
		Help: "Total number of ended buff instances by effect and reason",
	},
	[]string{"effect", "reason"},
)

// CallbackFaults counts isolated callback faults.
var CallbackFaults = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "buffd_callback_faults_total",
		Help: "Total number of faults raised by buff callbacks",
	},
	[]string{"effect", "hook"},
)

// RegisterMetrics registers buff metrics with reg.
// Panics if registration fails (following prometheus convention).
func RegisterMetrics(reg prometheus.Registerer) {
	reg.MustRegister(Applications)
	reg.MustRegister(Triggers)
	reg.MustRegister(Ended)
	reg.MustRegister(CallbackFaults)
}

func recordApplication(effect, result string) {
	Applications.WithLabelValues(effect, result).Inc()
}

func recordTrigger(effect string) {
	Triggers.WithLabelValues(effect).Inc()
}

func recordEnded(effect string, reason EndReason) {
	Ended.WithLabelValues(effect, string(reason)).Inc()
}

func recordFault(effect string, hook Hook) {
	CallbackFaults.WithLabelValues(effect, hook.String()).Inc()
}
