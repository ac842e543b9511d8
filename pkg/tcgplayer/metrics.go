package tcgplayer

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// MetricsCollector exposes Prometheus metrics for the request lifecycle:
// attempts, retries, limiter waits, cache traffic, and token refreshes.
// A nil collector is valid and records nothing, so instrumentation calls
// need no guards at the call sites.
type MetricsCollector struct {
	requestsTotal    *prometheus.CounterVec
	requestDuration  *prometheus.HistogramVec
	requestsInFlight *prometheus.GaugeVec

	retriesTotal *prometheus.CounterVec

	rateLimitWait     *prometheus.HistogramVec
	rateLimiterInUse  prometheus.Gauge
	rateLimiterLimit  prometheus.Gauge
	cacheHits         *prometheus.CounterVec
	cacheMisses       *prometheus.CounterVec
	tokenRefreshes    *prometheus.CounterVec
	errorsTotal       *prometheus.CounterVec
	registerer        prometheus.Registerer
}

// NewMetricsCollector creates a collector on the default registerer.
func NewMetricsCollector() *MetricsCollector {
	return NewMetricsCollectorWithRegistry(prometheus.DefaultRegisterer)
}

// NewMetricsCollectorWithRegistry creates a collector using the supplied
// registerer, letting tests and embedders isolate their metric namespaces.
func NewMetricsCollectorWithRegistry(registerer prometheus.Registerer) *MetricsCollector {
	mc := &MetricsCollector{
		requestsTotal: promauto.With(registerer).NewCounterVec(
			prometheus.CounterOpts{
				Name: "tcgplayer_requests_total",
				Help: "Total number of HTTP requests made",
			},
			[]string{"method", "status_code", "path"},
		),
		requestDuration: promauto.With(registerer).NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "tcgplayer_request_duration_seconds",
				Help:    "Duration of HTTP requests in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "status_code", "path"},
		),
		requestsInFlight: promauto.With(registerer).NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "tcgplayer_requests_in_flight",
				Help: "Number of HTTP requests currently in flight",
			},
			[]string{"method"},
		),
		retriesTotal: promauto.With(registerer).NewCounterVec(
			prometheus.CounterOpts{
				Name: "tcgplayer_retries_total",
				Help: "Total number of retry attempts",
			},
			[]string{"method", "path", "attempt"},
		),
		rateLimitWait: promauto.With(registerer).NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "tcgplayer_rate_limit_wait_seconds",
				Help:    "Time spent waiting for a rate limiter slot",
				Buckets: []float64{.005, .01, .05, .1, .25, .5, 1, 2.5, 5},
			},
			[]string{"method"},
		),
		rateLimiterInUse: promauto.With(registerer).NewGauge(
			prometheus.GaugeOpts{
				Name: "tcgplayer_rate_limiter_in_window",
				Help: "Requests consumed in the current rate window",
			},
		),
		rateLimiterLimit: promauto.With(registerer).NewGauge(
			prometheus.GaugeOpts{
				Name: "tcgplayer_rate_limiter_limit",
				Help: "Effective per-window request limit after clamping",
			},
		),
		cacheHits: promauto.With(registerer).NewCounterVec(
			prometheus.CounterOpts{
				Name: "tcgplayer_cache_hits_total",
				Help: "Total number of cache hits",
			},
			[]string{"method", "path"},
		),
		cacheMisses: promauto.With(registerer).NewCounterVec(
			prometheus.CounterOpts{
				Name: "tcgplayer_cache_misses_total",
				Help: "Total number of cache misses",
			},
			[]string{"method", "path"},
		),
		tokenRefreshes: promauto.With(registerer).NewCounterVec(
			prometheus.CounterOpts{
				Name: "tcgplayer_token_refreshes_total",
				Help: "Total number of bearer token exchanges",
			},
			[]string{"outcome"},
		),
		errorsTotal: promauto.With(registerer).NewCounterVec(
			prometheus.CounterOpts{
				Name: "tcgplayer_errors_total",
				Help: "Total number of errors surfaced to callers",
			},
			[]string{"type", "method", "path"},
		),
		registerer: registerer,
	}

	return mc
}

// RecordRequest records one completed request with its status and duration.
func (mc *MetricsCollector) RecordRequest(method, path string, statusCode int, duration time.Duration) {
	if mc == nil {
		return
	}

	status := strconv.Itoa(statusCode)
	mc.requestsTotal.WithLabelValues(method, status, path).Inc()
	mc.requestDuration.WithLabelValues(method, status, path).Observe(duration.Seconds())
}

// RecordRequestStart increments the in-flight gauge.
func (mc *MetricsCollector) RecordRequestStart(method string) {
	if mc == nil {
		return
	}

	mc.requestsInFlight.WithLabelValues(method).Inc()
}

// RecordRequestEnd decrements the in-flight gauge.
func (mc *MetricsCollector) RecordRequestEnd(method string) {
	if mc == nil {
		return
	}

	mc.requestsInFlight.WithLabelValues(method).Dec()
}

// RecordRetry counts one retry of the given 1-based attempt number.
func (mc *MetricsCollector) RecordRetry(method, path string, attempt int) {
	if mc == nil {
		return
	}

	mc.retriesTotal.WithLabelValues(method, path, strconv.Itoa(attempt)).Inc()
}

// RecordRateLimitWait observes time spent blocked on the limiter.
func (mc *MetricsCollector) RecordRateLimitWait(method string, wait time.Duration) {
	if mc == nil {
		return
	}

	mc.rateLimitWait.WithLabelValues(method).Observe(wait.Seconds())
}

// RecordRateLimiterStats publishes the current window occupancy.
func (mc *MetricsCollector) RecordRateLimiterStats(stats RateLimiterStats) {
	if mc == nil {
		return
	}

	mc.rateLimiterInUse.Set(float64(stats.InWindow))
	mc.rateLimiterLimit.Set(float64(stats.Limit))
}

// RecordCacheHit counts a response served from cache.
func (mc *MetricsCollector) RecordCacheHit(method, path string) {
	if mc == nil {
		return
	}

	mc.cacheHits.WithLabelValues(method, path).Inc()
}

// RecordCacheMiss counts a cache miss.
func (mc *MetricsCollector) RecordCacheMiss(method, path string) {
	if mc == nil {
		return
	}

	mc.cacheMisses.WithLabelValues(method, path).Inc()
}

// RecordTokenRefresh counts one identity-endpoint exchange by outcome
// ("success" or "failure").
func (mc *MetricsCollector) RecordTokenRefresh(outcome string) {
	if mc == nil {
		return
	}

	mc.tokenRefreshes.WithLabelValues(outcome).Inc()
}

// RecordError counts one typed error surfaced to a caller.
func (mc *MetricsCollector) RecordError(errType ErrorType, method, path string) {
	if mc == nil {
		return
	}

	mc.errorsTotal.WithLabelValues(string(errType), method, path).Inc()
}
