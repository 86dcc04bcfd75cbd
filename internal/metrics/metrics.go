// Package metrics exposes the Prometheus collectors shared by the HTTP layer,
// the TMDB client and the catalog feeds.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "flikz_http_requests_total",
			Help: "Total number of HTTP requests served",
		},
		[]string{"method", "route", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "flikz_http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	UpstreamRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "flikz_upstream_requests_total",
			Help: "Requests made to upstream APIs by outcome",
		},
		[]string{"upstream", "endpoint", "outcome"}, // outcome: ok, retry, error
	)

	UpstreamRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "flikz_upstream_request_duration_seconds",
			Help:    "Duration of upstream API requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"upstream"},
	)

	CacheLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "flikz_cache_lookups_total",
			Help: "Cache lookups by cache and result",
		},
		[]string{"cache", "result"}, // result: hit, miss
	)

	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "flikz_circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	CircuitBreakerRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "flikz_circuit_breaker_requests_total",
			Help: "Requests passing through a circuit breaker by result",
		},
		[]string{"name", "result"}, // result: success, failure, rejected
	)

	CatalogPagesLoaded = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "flikz_catalog_pages_loaded_total",
			Help: "Discover pages loaded into catalog feeds",
		},
		[]string{"media_type"},
	)

	CatalogDuplicatesDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "flikz_catalog_duplicates_dropped_total",
			Help: "Items dropped because the feed had already shown them",
		},
	)

	CatalogActiveFeeds = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "flikz_catalog_active_feeds",
			Help: "Number of catalog feeds held in memory",
		},
	)

	GeoLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "flikz_geo_lookups_total",
			Help: "Country detections by source",
		},
		[]string{"source"}, // ipinfo, nominatim, cache, default
	)
)

// RecordHTTPRequest records a served request.
func RecordHTTPRequest(method, route string, status int, duration time.Duration) {
	HTTPRequestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	HTTPRequestDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}

// RecordUpstream records one attempt against an upstream API.
func RecordUpstream(upstream, endpoint, outcome string, duration time.Duration) {
	UpstreamRequestsTotal.WithLabelValues(upstream, endpoint, outcome).Inc()
	UpstreamRequestDuration.WithLabelValues(upstream).Observe(duration.Seconds())
}

// RecordCacheLookup records a cache hit or miss.
func RecordCacheLookup(cache string, hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	CacheLookups.WithLabelValues(cache, result).Inc()
}

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
