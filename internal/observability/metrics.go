// Package observability holds the Prometheus collectors exported on /metrics.
package observability

import "github.com/prometheus/client_golang/prometheus"

// GenerationBuckets covers model latencies from 100ms to 60s.
var GenerationBuckets = []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30, 60}

var (
	RequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "concierge_http_requests_total",
			Help: "HTTP requests by route, method and status class",
		},
		[]string{"route", "method", "status"},
	)

	DispatchesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "concierge_dispatches_total",
			Help: "Turns dispatched to a participant",
		},
		[]string{"participant", "status"},
	)

	DispatchDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "concierge_dispatch_duration_seconds",
			Help:    "Time spent waiting on the text generator",
			Buckets: GenerationBuckets,
		},
		[]string{"participant"},
	)

	// NormalizeOutcomes counts which normalization path handled model output.
	NormalizeOutcomes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "concierge_normalize_outcomes_total",
			Help: "Normalizer results by outcome",
		},
		[]string{"outcome"},
	)

	PaymentTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "concierge_payment_transitions_total",
			Help: "Payment status transitions by target status",
		},
		[]string{"status"},
	)

	// SuppressedMessages counts messages dropped for violating the payment
	// message pairing convention.
	SuppressedMessages = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "concierge_suppressed_messages_total",
			Help: "Messages dropped by the conversation controller",
		},
		[]string{"type"},
	)

	HandoffsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "concierge_handoffs_total",
			Help: "Handoffs from shopping to payment",
		},
	)

	ActiveSessions = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "concierge_sessions_active",
			Help: "Open conversation sessions",
		},
	)

	WebsocketConnections = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "concierge_websocket_connections_active",
			Help: "Connected websocket subscribers",
		},
	)
)

func init() {
	prometheus.MustRegister(
		RequestsTotal,
		DispatchesTotal,
		DispatchDuration,
		NormalizeOutcomes,
		PaymentTransitions,
		SuppressedMessages,
		HandoffsTotal,
		ActiveSessions,
		WebsocketConnections,
	)
}
