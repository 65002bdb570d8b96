package metrics

import (
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "coachly_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{0.05, 0.1, 0.5, 1, 2, 5, 10, 30},
		},
		[]string{"route"},
	)

	RequestTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "coachly_requests_total",
			Help: "Total number of HTTP requests processed",
		},
		[]string{"route", "status"},
	)

	LLMCalls = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "coachly_llm_calls_total",
			Help: "Total LLM calls by task and outcome",
		},
		[]string{"task", "status"},
	)

	LLMFallbacks = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "coachly_llm_fallbacks_total",
			Help: "LLM calls that degraded to a fallback value",
		},
		[]string{"task"},
	)

	LLMTokensUsed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "coachly_llm_tokens_used",
			Help: "Total LLM tokens used",
		},
		[]string{"model", "type"},
	)

	CacheHits = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "coachly_cache_hits_total",
			Help: "Total cache hits",
		},
		[]string{"family"},
	)

	CacheMisses = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "coachly_cache_misses_total",
			Help: "Total cache misses",
		},
		[]string{"family"},
	)

	CacheErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "coachly_cache_errors_total",
			Help: "Cache backend failures treated as misses or dropped writes",
		},
		[]string{"family", "op"},
	)

	CacheEvictions = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "coachly_cache_evictions_total",
			Help: "Expired cache entries removed on read or by the sweeper",
		},
	)

	SummaryDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "coachly_summary_generation_seconds",
			Help:    "Time spent computing summaries on cache miss",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30},
		},
		[]string{"kind"},
	)

	ProfileUpdates = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "coachly_profile_updates_total",
			Help: "Profile updates by source",
		},
		[]string{"source"},
	)

	LLMBreakerState = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "coachly_llm_breaker_state",
			Help: "State of the LLM circuit breaker (0 closed, 1 half-open, 2 open)",
		},
	)

	DocumentsProcessed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "coachly_documents_processed_total",
			Help: "Total documents processed",
		},
		[]string{"file_type"},
	)
)

func Init() {
	prometheus.MustRegister(RequestDuration)
	prometheus.MustRegister(RequestTotal)
	prometheus.MustRegister(LLMCalls)
	prometheus.MustRegister(LLMFallbacks)
	prometheus.MustRegister(LLMTokensUsed)
	prometheus.MustRegister(LLMBreakerState)
	prometheus.MustRegister(CacheHits)
	prometheus.MustRegister(CacheMisses)
	prometheus.MustRegister(CacheErrors)
	prometheus.MustRegister(CacheEvictions)
	prometheus.MustRegister(SummaryDuration)
	prometheus.MustRegister(ProfileUpdates)
	prometheus.MustRegister(DocumentsProcessed)
}

var periodSuffixes = []string{"_week", "_month", "_3months", "_6months", "_all"}

// KeyFamily collapses a cache key to its family label so per-period or
// per-language keys do not explode metric cardinality.
func KeyFamily(key string) string {
	if strings.HasPrefix(key, "translations_") {
		return "translations"
	}
	for _, suffix := range periodSuffixes {
		if strings.HasSuffix(key, suffix) {
			return strings.TrimSuffix(key, suffix)
		}
	}
	return key
}

func MetricsHandler() fiber.Handler {
	return adaptor.HTTPHandler(promhttp.Handler())
}

// Middleware records request duration and status by route pattern.
func Middleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()

		route := c.Route().Path
		status := c.Response().StatusCode()
		if err != nil {
			if fe, ok := err.(*fiber.Error); ok {
				status = fe.Code
			} else {
				status = fiber.StatusInternalServerError
			}
		}

		RequestDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
		RequestTotal.WithLabelValues(route, strconv.Itoa(status)).Inc()
		return err
	}
}
