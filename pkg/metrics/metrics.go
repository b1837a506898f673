// Package metrics defines the Prometheus collectors used by the work queue,
// builder, crawler, query evaluators and HTTP surface, and exposes a handler
// for scraping.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus collectors for the engine.
type Metrics struct {
	HTTPRequestsTotal    *prometheus.CounterVec
	HTTPRequestDuration  *prometheus.HistogramVec
	HTTPRequestsInFlight prometheus.Gauge
	TasksSubmittedTotal  prometheus.Counter
	TasksCompletedTotal  *prometheus.CounterVec
	TasksPending         prometheus.Gauge
	DocsIndexedTotal     *prometheus.CounterVec
	PagesCrawledTotal    *prometheus.CounterVec
	FetchLatency         prometheus.Histogram
	QueriesTotal         *prometheus.CounterVec
	SearchLatency        *prometheus.HistogramVec
	CacheHitsTotal       prometheus.Counter
	CacheMissesTotal     prometheus.Counter
	IndexWords           prometheus.Gauge
	IndexLocations       prometheus.Gauge
}

// New creates all collectors and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests by method, path, and status.",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request latency in seconds.",
				Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
			},
			[]string{"method", "path"},
		),
		HTTPRequestsInFlight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "http_requests_in_flight",
				Help: "Number of HTTP requests currently being processed.",
			},
		),
		TasksSubmittedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "workqueue_tasks_submitted_total",
				Help: "Total tasks accepted by the work queue.",
			},
		),
		TasksCompletedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "workqueue_tasks_completed_total",
				Help: "Total tasks finished by status (ok, error, panic).",
			},
			[]string{"status"},
		),
		TasksPending: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "workqueue_tasks_pending",
				Help: "Tasks submitted but not yet finished.",
			},
		),
		DocsIndexedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "documents_indexed_total",
				Help: "Total documents processed by the builder by status.",
			},
			[]string{"status"},
		),
		PagesCrawledTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pages_crawled_total",
				Help: "Total pages handled by crawl tasks by status (indexed, failed).",
			},
			[]string{"status"},
		),
		FetchLatency: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "fetch_latency_seconds",
				Help:    "Page fetch latency in seconds, redirects included.",
				Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
			},
		),
		QueriesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "queries_evaluated_total",
				Help: "Query lines by outcome (searched, duplicate, empty).",
			},
			[]string{"outcome"},
		),
		SearchLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "search_latency_seconds",
				Help:    "Index search latency in seconds by mode.",
				Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
			},
			[]string{"mode"},
		),
		CacheHitsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "search_cache_hits_total",
				Help: "Total number of shared result cache hits.",
			},
		),
		CacheMissesTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "search_cache_misses_total",
				Help: "Total number of shared result cache misses.",
			},
		),
		IndexWords: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "index_words",
				Help: "Distinct stems in the index after the last build or crawl.",
			},
		),
		IndexLocations: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "index_locations",
				Help: "Locations with a word count after the last build or crawl.",
			},
		),
	}

	reg.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.HTTPRequestsInFlight,
		m.TasksSubmittedTotal,
		m.TasksCompletedTotal,
		m.TasksPending,
		m.DocsIndexedTotal,
		m.PagesCrawledTotal,
		m.FetchLatency,
		m.QueriesTotal,
		m.SearchLatency,
		m.CacheHitsTotal,
		m.CacheMissesTotal,
		m.IndexWords,
		m.IndexLocations,
	)

	return m
}

// Discard returns collectors registered on a private registry, for
// components constructed without metrics.
func Discard() *Metrics {
	return New(prometheus.NewRegistry())
}

// Handler returns the scrape handler for the given gatherer.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
