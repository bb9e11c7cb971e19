// Package metrics provides Prometheus metrics for the cascade viewer.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// FeedEventsTotal counts events received by source and type.
	FeedEventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "scv",
			Subsystem: "feed",
			Name:      "events_total",
			Help:      "Total number of events received",
		},
		[]string{"source", "type"}, // source: ws, history, redis, replay
	)

	// FeedDecodeErrors counts frames dropped at the transport boundary.
	FeedDecodeErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "scv",
			Subsystem: "feed",
			Name:      "decode_errors_total",
			Help:      "Total number of malformed frames dropped",
		},
		[]string{"source"},
	)

	// FeedReconnects counts websocket reconnect attempts.
	FeedReconnects = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "scv",
			Subsystem: "feed",
			Name:      "reconnects_total",
			Help:      "Total number of websocket reconnect attempts",
		},
	)

	// FeedConnected is 1 while the websocket is connected.
	FeedConnected = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "scv",
			Subsystem: "feed",
			Name:      "connected",
			Help:      "Whether the event bus websocket is connected",
		},
	)

	// HTTPRequestsTotal counts calls to the bus and procurement services.
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "scv",
			Subsystem: "client",
			Name:      "requests_total",
			Help:      "Total number of outbound HTTP requests",
		},
		[]string{"operation", "result"}, // operation: history, intent, report; result: success, error
	)

	// APIRequestsTotal counts requests served by the headless API.
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "scv",
			Subsystem: "api",
			Name:      "requests_total",
			Help:      "Total number of headless API requests",
		},
		[]string{"route", "code"},
	)

	// SnapshotBuildDuration tracks reduce + risk analysis time.
	SnapshotBuildDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "scv",
			Subsystem: "snapshot",
			Name:      "build_duration_seconds",
			Help:      "Snapshot build duration in seconds",
			Buckets:   []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
		},
	)

	// SnapshotEvents is the number of events folded into the latest snapshot.
	SnapshotEvents = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "scv",
			Subsystem: "snapshot",
			Name:      "events",
			Help:      "Number of events in the latest snapshot",
		},
	)
)

// Result maps an error onto the result label.
func Result(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}
