package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// SourceFetchesTotal tracks fetch outcomes per source
	SourceFetchesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "buildforge_source_fetches_total",
			Help: "Total number of source fetches by outcome",
		},
		[]string{"source", "outcome"}, // outcome: ok, error, cache_hit, coalesced
	)

	// SourceErrorsTotal tracks source errors by taxonomy kind
	SourceErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "buildforge_source_errors_total",
			Help: "Total number of source errors",
		},
		[]string{"source", "error_type"},
	)

	// SourceLatency tracks source fetch latency
	SourceLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "buildforge_source_latency_seconds",
			Help:    "Source fetch latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"source"},
	)

	// FallbacksTotal tracks fallback results by tier
	FallbacksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "buildforge_fallbacks_total",
			Help: "Total number of fallback results served",
		},
		[]string{"source", "tier"}, // tier: stale, snapshot, synthetic
	)

	// CircuitState tracks breaker state per source (0 closed, 1 half-open, 2 open)
	CircuitState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "buildforge_circuit_state",
			Help: "Circuit breaker state per source",
		},
		[]string{"source"},
	)

	// RateLimitRejectionsTotal tracks requests rejected by the local limiter
	RateLimitRejectionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "buildforge_rate_limit_rejections_total",
			Help: "Total number of requests rejected by the rate limiter",
		},
		[]string{"source"},
	)

	// DatasetsTotal tracks assembled datasets by status
	DatasetsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "buildforge_datasets_total",
			Help: "Total number of aggregated datasets by status",
		},
		[]string{"status"},
	)

	// RecommendationsTotal tracks recommendation responses by dataset status
	RecommendationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "buildforge_recommendations_total",
			Help: "Total number of recommendation responses",
		},
		[]string{"status"},
	)

	// CalculationLatency tracks build calculation time
	CalculationLatency = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "buildforge_calculation_latency_seconds",
			Help:    "Build calculation latency in seconds",
			Buckets: []float64{.0001, .0005, .001, .005, .01, .05, .1},
		},
	)

	// CacheEntries tracks the number of entries in the memory cache
	CacheEntries = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "buildforge_cache_entries",
			Help: "Number of entries held by the in-memory cache",
		},
	)

	// DBConnectionPoolUsage tracks snapshot database pool usage
	DBConnectionPoolUsage = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "buildforge_db_connection_pool_usage_percent",
			Help: "Database connection pool usage in percent",
		},
	)
)
