// Package metrics defines the Prometheus metric collectors used by the
// indexer and the search service and exposes an HTTP handler for scraping.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus collectors. A nil *Metrics is valid and
// records nothing, so library code can take one unconditionally.
type Metrics struct {
	HTTPRequestsTotal    *prometheus.CounterVec
	HTTPRequestDuration  *prometheus.HistogramVec
	HTTPRequestsInFlight prometheus.Gauge
	SearchQueriesTotal   *prometheus.CounterVec
	SearchLatency        *prometheus.HistogramVec
	SearchResultsCount   prometheus.Histogram
	QueryCorrections     prometheus.Counter
	CacheHitsTotal       prometheus.Counter
	CacheMissesTotal     prometheus.Counter
	DocsExtractedTotal   prometheus.Counter
	ExtractionFailures   prometheus.Counter
	IndexBuildDuration   prometheus.Histogram
	IndexBuildsTotal     *prometheus.CounterVec
	IndexTerms           prometheus.Gauge
	IndexDocuments       prometheus.Gauge
}

// New creates all metrics and registers them with reg. Passing nil uses the
// default Prometheus registerer.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
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
		SearchQueriesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "search_queries_total",
				Help: "Total search queries by outcome (hit, zero_result, empty_query, error).",
			},
			[]string{"outcome"},
		),
		SearchLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "search_latency_seconds",
				Help:    "Search query latency in seconds.",
				Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
			},
			[]string{"cache_status"},
		),
		SearchResultsCount: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "search_results_count",
				Help:    "Number of results returned per search query.",
				Buckets: []float64{0, 1, 5, 10, 25, 50, 100},
			},
		),
		QueryCorrections: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "search_query_corrections_total",
				Help: "Query tokens replaced by fuzzy correction.",
			},
		),
		CacheHitsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "cache_hits_total",
				Help: "Total number of cache hits.",
			},
		),
		CacheMissesTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "cache_misses_total",
				Help: "Total number of cache misses.",
			},
		),
		DocsExtractedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "docs_extracted_total",
				Help: "Documents successfully extracted from the corpus.",
			},
		),
		ExtractionFailures: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "extraction_failures_total",
				Help: "Documents skipped because extraction failed.",
			},
		),
		IndexBuildDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "index_build_duration_seconds",
				Help:    "Wall time of a full index build.",
				Buckets: prometheus.ExponentialBuckets(0.01, 2, 14),
			},
		),
		IndexBuildsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "index_builds_total",
				Help: "Index builds by status.",
			},
			[]string{"status"},
		),
		IndexTerms: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "index_terms",
				Help: "Terms in the current index snapshot.",
			},
		),
		IndexDocuments: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "index_documents",
				Help: "Documents in the current index snapshot.",
			},
		),
	}

	reg.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.HTTPRequestsInFlight,
		m.SearchQueriesTotal,
		m.SearchLatency,
		m.SearchResultsCount,
		m.QueryCorrections,
		m.CacheHitsTotal,
		m.CacheMissesTotal,
		m.DocsExtractedTotal,
		m.ExtractionFailures,
		m.IndexBuildDuration,
		m.IndexBuildsTotal,
		m.IndexTerms,
		m.IndexDocuments,
	)

	return m
}

// ObserveSearch records one query outcome.
func (m *Metrics) ObserveSearch(outcome string, cacheStatus string, seconds float64, results int, corrections int) {
	if m == nil {
		return
	}
	m.SearchQueriesTotal.WithLabelValues(outcome).Inc()
	m.SearchLatency.WithLabelValues(cacheStatus).Observe(seconds)
	m.SearchResultsCount.Observe(float64(results))
	m.QueryCorrections.Add(float64(corrections))
}

// ObserveCache records a cache lookup.
func (m *Metrics) ObserveCache(hit bool) {
	if m == nil {
		return
	}
	if hit {
		m.CacheHitsTotal.Inc()
	} else {
		m.CacheMissesTotal.Inc()
	}
}

// ObserveExtraction records extraction totals for one build.
func (m *Metrics) ObserveExtraction(extracted, failed int) {
	if m == nil {
		return
	}
	m.DocsExtractedTotal.Add(float64(extracted))
	m.ExtractionFailures.Add(float64(failed))
}

// ObserveBuild records a finished build.
func (m *Metrics) ObserveBuild(status string, seconds float64) {
	if m == nil {
		return
	}
	m.IndexBuildsTotal.WithLabelValues(status).Inc()
	if status == "success" {
		m.IndexBuildDuration.Observe(seconds)
	}
}

// SetSnapshotSize publishes the size of the loaded or built snapshot.
func (m *Metrics) SetSnapshotSize(terms, documents int) {
	if m == nil {
		return
	}
	m.IndexTerms.Set(float64(terms))
	m.IndexDocuments.Set(float64(documents))
}

// Handler returns the Prometheus scrape HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}
