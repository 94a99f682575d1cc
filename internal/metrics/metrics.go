package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Backend HTTP metrics
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pelusa_http_requests_total",
			Help: "Total backend HTTP requests",
		},
		[]string{"method", "route", "outcome"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "pelusa_http_request_duration_seconds",
			Help:    "Backend HTTP request duration",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"method", "route"},
	)

	// Synchronizer metrics
	RoomReloads = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pelusa_room_reloads_total",
			Help: "Room reloads by outcome",
		},
		[]string{"outcome"}, // "applied", "stale", "failed"
	)

	// Realtime metrics
	RealtimeEvents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pelusa_realtime_events_total",
			Help: "Inbound realtime events",
		},
		[]string{"event"},
	)

	RealtimeState = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "pelusa_realtime_state",
			Help: "Realtime channel state (0 disconnected, 1 connecting, 2 joined)",
		},
	)

	// Message actions
	Actions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pelusa_actions_total",
			Help: "User-initiated message and group actions",
		},
		[]string{"action", "outcome"},
	)
)

// Outcome returns "ok" for a nil error and "error" otherwise.
func Outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
