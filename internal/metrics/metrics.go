// Package metrics provides Prometheus instrumentation for the moderation
// gateway. It exposes gauges for queue occupancy, counters for submission
// and moderator-action throughput, and a histogram for time-to-decision.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// QueueSize tracks the current number of submissions awaiting a
	// decision.
	QueueSize = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "gateway_queue_size",
		Help: "Current number of submissions in the moderation queue",
	})

	// SubmissionsTotal counts submission attempts, labeled by outcome:
	// "accepted", "rate_limited", "queue_full", or "banned".
	SubmissionsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "gateway_submissions_total",
		Help: "Total number of submission attempts",
	}, []string{"outcome"})

	// ActionsTotal counts moderator actions, labeled by action and result
	// ("applied", "not_found", "unauthorized", "bad_request", "error").
	ActionsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "gateway_moderator_actions_total",
		Help: "Total number of moderator actions",
	}, []string{"action", "result"})

	// DecisionDuration records the time from enqueue to approve/reject.
	DecisionDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "gateway_decision_duration_seconds",
		Help:    "Time from submission enqueue to moderator decision",
		Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600, 1800, 3600},
	})

	// ConnectionsTotal tracks active WebSocket connections on the gateway.
	ConnectionsTotal = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "gateway_connections_total",
		Help: "Current number of active WebSocket connections",
	})

	// PublishesTotal counts publish effects handed to the transport,
	// labeled by delivery result ("ok", "error").
	PublishesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "gateway_publishes_total",
		Help: "Total number of publish effects delivered",
	}, []string{"result"})
)

func init() {
	prometheus.MustRegister(
		QueueSize,
		SubmissionsTotal,
		ActionsTotal,
		DecisionDuration,
		ConnectionsTotal,
		PublishesTotal,
	)
}

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}
