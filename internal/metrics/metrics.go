package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the application
type Metrics struct {
	// HTTP metrics
	HTTPRequestsTotal     *prometheus.CounterVec
	HTTPRequestDuration   *prometheus.HistogramVec
	HTTPResponseSize      *prometheus.HistogramVec
	HTTPActiveConnections *prometheus.GaugeVec

	// Cache metrics
	CacheHitsTotal         *prometheus.CounterVec
	CacheMissesTotal       *prometheus.CounterVec
	CacheOperationDuration *prometheus.HistogramVec

	// Rate limiting metrics
	RateLimitExceededTotal *prometheus.CounterVec

	// Feed/recommendation metrics
	FeedGenerationTime     *prometheus.HistogramVec
	RecommendationsServed  *prometheus.CounterVec
	StrategyResultsTotal   *prometheus.CounterVec
	FeedFallbacksTotal     *prometheus.CounterVec
	InteractionsRecorded   *prometheus.CounterVec
	RecommendationLogsLost prometheus.Counter

	// Collaborative filtering matrix
	CollaborativeRebuildsTotal   *prometheus.CounterVec
	CollaborativeRebuildDuration prometheus.Histogram
	CollaborativeMatrixUsers     prometheus.Gauge

	// Remote model scorer
	ScorerRequestsTotal   *prometheus.CounterVec
	ScorerRequestDuration prometheus.Histogram

	// Error metrics
	ErrorsTotal *prometheus.CounterVec
}

var (
	instance *Metrics
	once     sync.Once
)

// Initialize creates and registers all Prometheus metrics
func Initialize() *Metrics {
	once.Do(func() {
		instance = &Metrics{
			// HTTP metrics
			HTTPRequestsTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "http_requests_total",
					Help: "Total number of HTTP requests",
				},
				[]string{"method", "path", "status"},
			),
			HTTPRequestDuration: promauto.NewHistogramVec(
				prometheus.HistogramOpts{
					Name:    "http_request_duration_seconds",
					Help:    "HTTP request latency in seconds",
					Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
				},
				[]string{"method", "path", "status"},
			),
			HTTPResponseSize: promauto.NewHistogramVec(
				prometheus.HistogramOpts{
					Name:    "http_response_size_bytes",
					Help:    "HTTP response size in bytes",
					Buckets: prometheus.ExponentialBuckets(100, 10, 7),
				},
				[]string{"method", "path", "status"},
			),
			HTTPActiveConnections: promauto.NewGaugeVec(
				prometheus.GaugeOpts{
					Name: "http_active_connections",
					Help: "Number of currently active HTTP connections",
				},
				[]string{"method", "path"},
			),

			// Cache metrics
			CacheHitsTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "cache_hits_total",
					Help: "Total number of cache hits",
				},
				[]string{"cache_name"},
			),
			CacheMissesTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "cache_misses_total",
					Help: "Total number of cache misses",
				},
				[]string{"cache_name"},
			),
			CacheOperationDuration: promauto.NewHistogramVec(
				prometheus.HistogramOpts{
					Name:    "cache_operation_duration_seconds",
					Help:    "Cache operation latency in seconds",
					Buckets: []float64{.0001, .0005, .001, .005, .01, .05, .1},
				},
				[]string{"operation", "cache_name"},
			),

			// Rate limiting metrics
			RateLimitExceededTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "rate_limit_exceeded_total",
					Help: "Total number of rate limit violations",
				},
				[]string{"endpoint", "method"},
			),

			// Feed/recommendation metrics
			FeedGenerationTime: promauto.NewHistogramVec(
				prometheus.HistogramOpts{
					Name:    "feed_generation_duration_seconds",
					Help:    "Time to generate feed in seconds",
					Buckets: []float64{.01, .05, .1, .25, .5, 1, 2.5, 5},
				},
				[]string{"algorithm"},
			),
			RecommendationsServed: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "recommendations_served_total",
					Help: "Total number of posts returned in recommendation responses",
				},
				[]string{"algorithm"},
			),
			StrategyResultsTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "recommendation_strategy_results_total",
					Help: "Scoring strategy runs by availability",
				},
				[]string{"strategy", "available"},
			),
			FeedFallbacksTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "feed_fallbacks_total",
					Help: "Total number of feeds served from the trending fallback",
				},
				[]string{"reason"},
			),
			InteractionsRecorded: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "interactions_recorded_total",
					Help: "Total number of interaction writes",
				},
				[]string{"interaction_type", "status"},
			),
			RecommendationLogsLost: promauto.NewCounter(
				prometheus.CounterOpts{
					Name: "recommendation_logs_failed_total",
					Help: "Recommendation log writes that failed",
				},
			),

			CollaborativeRebuildsTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "collaborative_matrix_rebuilds_total",
					Help: "Collaborative filtering matrix rebuilds",
				},
				[]string{"status"},
			),
			CollaborativeRebuildDuration: promauto.NewHistogram(
				prometheus.HistogramOpts{
					Name:    "collaborative_matrix_rebuild_duration_seconds",
					Help:    "Time to rebuild the collaborative filtering matrix",
					Buckets: []float64{.01, .05, .1, .5, 1, 5, 10, 30},
				},
			),
			CollaborativeMatrixUsers: promauto.NewGauge(
				prometheus.GaugeOpts{
					Name: "collaborative_matrix_users",
					Help: "Users in the current collaborative filtering snapshot",
				},
			),

			ScorerRequestsTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "model_scorer_requests_total",
					Help: "Requests to the remote model scorer",
				},
				[]string{"status"},
			),
			ScorerRequestDuration: promauto.NewHistogram(
				prometheus.HistogramOpts{
					Name:    "model_scorer_request_duration_seconds",
					Help:    "Remote model scorer latency in seconds",
					Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1},
				},
			),

			// Error metrics
			ErrorsTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "errors_total",
					Help: "Total number of errors by type",
				},
				[]string{"error_type", "endpoint"},
			),
		}
	})
	return instance
}

// Get returns the global metrics instance
func Get() *Metrics {
	return Initialize()
}
