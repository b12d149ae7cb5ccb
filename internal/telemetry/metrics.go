package telemetry

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// APIRequestsTotal counts HTTP requests by method, route, and status.
	APIRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "skald_audio_http_requests_total",
		Help: "Total HTTP requests served.",
	}, []string{"method", "endpoint", "status"})

	// APIRequestDuration observes HTTP request latency.
	APIRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "skald_audio_http_request_duration_seconds",
		Help:    "HTTP request duration in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "endpoint", "status"})

	// APIActiveConnections tracks requests currently in flight.
	APIActiveConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "skald_audio_http_active_connections",
		Help: "HTTP requests currently being served.",
	})

	// StreamsInFlight tracks audio streams currently being delivered.
	StreamsInFlight = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "skald_audio_streams_in_flight",
		Help: "Audio file streams currently open.",
	})

	// StreamRejections counts streaming gate rejections by reason.
	StreamRejections = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "skald_audio_stream_rejections_total",
		Help: "Requests rejected by the streaming gate.",
	}, []string{"reason"})

	// ActiveSchedules reflects the advisory active-schedule count.
	ActiveSchedules = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "skald_audio_active_schedules",
		Help: "Schedules currently inside their time windows.",
	})
)

// Handler exposes the metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}
