package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics are registered globally through promauto.

var (
	// HttpRequestsTotal counts requests by method, route pattern and status code.
	HttpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "digitgraph_http_requests_total",
			Help: "Total number of HTTP requests processed",
		},
		[]string{"method", "path", "status"},
	)

	// HttpRequestDuration measures server response time.
	HttpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "digitgraph_http_request_duration_seconds",
			Help: "Duration of HTTP requests in seconds",
			// From cached PNG renders up to slow remote data sources.
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"method", "path"},
	)

	// SelectionsTotal counts node selections by outcome:
	// ok, missing_vector, error, superseded.
	SelectionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "digitgraph_selections_total",
			Help: "Total number of node selections by result",
		},
		[]string{"result"},
	)

	// SelectionDuration measures a full fetch, sample, layout cycle.
	SelectionDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "digitgraph_selection_duration_seconds",
			Help:    "Duration of node selections in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	// NeighborFetchFailures counts displayed neighbors drawn as placeholders.
	NeighborFetchFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "digitgraph_neighbor_fetch_failures_total",
			Help: "Total number of neighbor vectors that could not be fetched",
		},
	)

	// PrimeFailures counts failed dataset loads.
	PrimeFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "digitgraph_dataset_prime_failures_total",
			Help: "Total number of failed dataset prime attempts",
		},
	)

	// DatasetNodes tracks how many nodes the data source holds.
	DatasetNodes = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "digitgraph_dataset_nodes",
			Help: "Number of nodes in the loaded dataset",
		},
	)

	// ActiveSessions tracks open viewer sessions.
	ActiveSessions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "digitgraph_active_sessions",
			Help: "Number of open viewer sessions",
		},
	)
)
