// Package metrics exposes the service's Prometheus collectors.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// HTTP
	RequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"route", "method", "status"},
	)

	// State machine
	StateTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "escrow_state_transitions_total",
			Help: "Committed escrow state transitions",
		},
		[]string{"to"},
	)
	TransitionsRejected = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "escrow_transitions_rejected_total",
			Help: "Transition attempts rejected as illegal",
		},
	)
	TimeoutsExpired = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "escrow_timeouts_expired_total",
			Help: "Transactions failed by the timeout sweep",
		},
		[]string{"state"},
	)

	// Side channels
	NotificationFailures = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "escrow_notification_failures_total",
			Help: "Best-effort notification sends that failed",
		},
	)
)

// Handler serves the /metrics endpoint.
var Handler = promhttp.Handler

func Init() {
	prometheus.MustRegister(RequestsTotal)
	prometheus.MustRegister(StateTransitions)
	prometheus.MustRegister(TransitionsRejected)
	prometheus.MustRegister(TimeoutsExpired)
	prometheus.MustRegister(NotificationFailures)
}
