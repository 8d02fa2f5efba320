package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Registry holds the application collectors.
	Registry = prometheus.NewRegistry()

	HTTPInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "community_help",
			Subsystem: "http",
			Name:      "inflight_requests",
			Help:      "Current number of in-flight HTTP requests.",
		},
	)

	HTTPRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "community_help",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests handled.",
		},
		[]string{"method", "path", "status"},
	)

	HTTPDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "community_help",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10),
		},
		[]string{"method", "path"},
	)

	StatusTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "community_help",
			Subsystem: "reports",
			Name:      "status_transitions_total",
			Help:      "Report status changes that were committed.",
		},
		[]string{"from", "to"},
	)

	TransitionConflicts = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "community_help",
			Subsystem: "reports",
			Name:      "status_conflicts_total",
			Help:      "Status writes rejected because the report changed underneath.",
		},
	)

	ReportsCreated = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "community_help",
			Subsystem: "reports",
			Name:      "created_total",
			Help:      "Reports submitted by citizens.",
		},
	)

	ReportsAssigned = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "community_help",
			Subsystem: "reports",
			Name:      "assigned_total",
			Help:      "Accepted reports handed to a worker by an admin.",
		},
	)

	MarkerCache = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "community_help",
			Subsystem: "markers",
			Name:      "cache_lookups_total",
			Help:      "Map marker cache lookups by result (hit, miss, error).",
		},
		[]string{"result"},
	)
)

func init() {
	Registry.MustRegister(
		HTTPInFlight,
		HTTPRequests,
		HTTPDuration,
		StatusTransitions,
		TransitionConflicts,
		ReportsCreated,
		ReportsAssigned,
		MarkerCache,
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		collectors.NewGoCollector(),
	)
}

// Handler exposes Registry in the Prometheus text format.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}
