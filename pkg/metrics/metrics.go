// Package metrics defines the Prometheus metric collectors used across the
// validator and exposes an HTTP handler for scraping.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus collectors for the validator.
type Metrics struct {
	HTTPRequestsTotal    *prometheus.CounterVec
	HTTPRequestDuration  *prometheus.HistogramVec
	HTTPRequestsInFlight prometheus.Gauge
	ClassificationsTotal *prometheus.CounterVec
	ResolutionsTotal     *prometheus.CounterVec
	ResolutionLatency    prometheus.Histogram
	PairCacheHitsTotal   prometheus.Counter
	PairCacheMissesTotal prometheus.Counter
	VerdictCacheHits     prometheus.Counter
	VerdictCacheMisses   prometheus.Counter
	TaxonomyNames        prometheus.Gauge
	TaxonomyLoadSeconds  prometheus.Gauge
}

// New creates and registers all Prometheus metrics.
func New() *Metrics {
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
		ClassificationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "classifications_total",
				Help: "Total name classifications by verdict outcome.",
			},
			[]string{"outcome"},
		),
		ResolutionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "name_resolutions_total",
				Help: "Total name resolutions by matching tier (exact, normalized, synonym, substring, none).",
			},
			[]string{"tier"},
		),
		ResolutionLatency: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "name_resolution_seconds",
				Help:    "Name resolution latency in seconds, including substring scans.",
				Buckets: []float64{0.00001, 0.0001, 0.001, 0.01, 0.1, 0.5, 1, 5},
			},
		),
		PairCacheHitsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "pair_cache_hits_total",
				Help: "Total hits on the in-process (reported, preferred) pair cache.",
			},
		),
		PairCacheMissesTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "pair_cache_misses_total",
				Help: "Total misses on the in-process (reported, preferred) pair cache.",
			},
		),
		VerdictCacheHits: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "verdict_cache_hits_total",
				Help: "Total hits on the Redis verdict cache.",
			},
		),
		VerdictCacheMisses: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "verdict_cache_misses_total",
				Help: "Total misses on the Redis verdict cache.",
			},
		),
		TaxonomyNames: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "taxonomy_names_loaded",
				Help: "Number of scientific names loaded from the taxonomy reference.",
			},
		),
		TaxonomyLoadSeconds: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "taxonomy_load_seconds",
				Help: "Time spent building the taxonomy graph at startup.",
			},
		),
	}

	prometheus.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.HTTPRequestsInFlight,
		m.ClassificationsTotal,
		m.ResolutionsTotal,
		m.ResolutionLatency,
		m.PairCacheHitsTotal,
		m.PairCacheMissesTotal,
		m.VerdictCacheHits,
		m.VerdictCacheMisses,
		m.TaxonomyNames,
		m.TaxonomyLoadSeconds,
	)

	return m
}

// Handler returns the Prometheus scrape HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}
