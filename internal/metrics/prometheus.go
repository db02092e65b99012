package metrics

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	QueryDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "gear_detector_query_duration_seconds",
			Help:    "Query processing duration in seconds",
			Buckets: []float64{0.01, 0.1, 0.5, 1, 2, 5, 10, 30},
		},
		[]string{"path"},
	)

	QueryTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gear_detector_query_total",
			Help: "Total number of queries processed",
		},
		[]string{"status"},
	)

	SourceOutcomes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gear_detector_source_outcomes_total",
			Help: "Source adapter calls by outcome",
		},
		[]string{"source", "status"},
	)

	SourceDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "gear_detector_source_duration_seconds",
			Help:    "Source adapter call duration in seconds",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 20, 30},
		},
		[]string{"source"},
	)

	SourceItems = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "gear_detector_source_items",
			Help:    "Evidence items returned per source call",
			Buckets: []float64{0, 1, 2, 5, 10, 20},
		},
		[]string{"source"},
	)

	AggregationDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "gear_detector_aggregation_duration_seconds",
			Help:    "Fan-out duration from first call to join",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 20, 30},
		},
	)

	EnrichmentTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gear_detector_enrichment_total",
			Help: "Context enrichment outcomes",
		},
		[]string{"status"},
	)

	ConfidenceScore = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "gear_detector_confidence_score",
			Help:    "Overall confidence of synthesized results",
			Buckets: []float64{10, 20, 30, 40, 50, 60, 70, 80, 90, 100},
		},
	)

	CacheHits = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gear_detector_cache_hits_total",
			Help: "Total cache hits",
		},
		[]string{"cache_type"},
	)

	CacheMisses = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gear_detector_cache_misses_total",
			Help: "Total cache misses",
		},
		[]string{"cache_type"},
	)

	CacheErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gear_detector_cache_errors_total",
			Help: "Cache backend errors by operation",
		},
		[]string{"cache_type", "op"},
	)

	RateLimited = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "gear_detector_rate_limited_total",
			Help: "Requests rejected by the API rate limiter",
		},
	)
)

// Init registers every collector with the default registry. Only the binary calls it, so
// packages can record into unregistered collectors in tests.
func Init() {
	prometheus.MustRegister(QueryDuration)
	prometheus.MustRegister(QueryTotal)
	prometheus.MustRegister(SourceOutcomes)
	prometheus.MustRegister(SourceDuration)
	prometheus.MustRegister(SourceItems)
	prometheus.MustRegister(AggregationDuration)
	prometheus.MustRegister(EnrichmentTotal)
	prometheus.MustRegister(ConfidenceScore)
	prometheus.MustRegister(CacheHits)
	prometheus.MustRegister(CacheMisses)
	prometheus.MustRegister(CacheErrors)
	prometheus.MustRegister(RateLimited)
}

func MetricsHandler() fiber.Handler {
	return adaptor.HTTPHandler(promhttp.Handler())
}
