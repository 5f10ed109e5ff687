// Package metrics holds the Prometheus collectors of the API.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route", "status"},
	)

	// Feed and thread assembly
	FeedPageSize = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "feed_page_size",
			Help:    "Number of items returned per feed page",
			Buckets: []float64{0, 1, 5, 10, 20, 50},
		},
	)

	ThreadNodes = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "thread_nodes",
			Help:    "Number of posts materialized per thread request",
			Buckets: prometheus.ExponentialBuckets(1, 4, 8),
		},
	)

	// Likes
	LikeToggles = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "like_toggles_total",
			Help: "Like toggles by outcome",
		},
		[]string{"result"}, // liked, unliked, conflict, error
	)

	// Author directory cache
	AuthorCacheLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "author_cache_lookups_total",
			Help: "Author cache lookups by outcome",
		},
		[]string{"result"}, // hit, miss, error
	)

	// Asset host
	AssetHostRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "asset_host_requests_total",
			Help: "Asset host calls by operation and outcome",
		},
		[]string{"operation", "result"}, // result: success, failure, rejected
	)

	AssetHostBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "asset_host_breaker_state",
			Help: "Asset host circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"breaker"},
	)
)

// ObserveHTTPRequest records one served request.
func ObserveHTTPRequest(method, route string, status int, elapsed time.Duration) {
	if route == "" {
		route = "unmatched"
	}
	HTTPRequestDuration.WithLabelValues(method, route, strconv.Itoa(status)).Observe(elapsed.Seconds())
}
