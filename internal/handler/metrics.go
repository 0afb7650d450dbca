package handler

import (
	"context"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/valyala/fasthttp/fasthttpadaptor"

	"github.com/chiefnavajo/aimoviez-sub010/internal/service"
)

// Metrics holds all Prometheus collectors for the vote pipeline.
var Metrics = struct {
	VotesAccepted    *prometheus.CounterVec
	VoteRejections   *prometheus.CounterVec
	RequestDuration  *prometheus.HistogramVec
	RequestsInFlight prometheus.Gauge
	CacheHits        prometheus.Counter
	CacheMisses      prometheus.Counter
	QueueDepth       prometheus.GaugeFunc
	DeadLetterDepth  prometheus.GaugeFunc
	BreakerOpen      prometheus.GaugeFunc
	DBPoolActive     prometheus.GaugeFunc
	DBPoolIdle       prometheus.GaugeFunc
}{}

// InitMetrics registers all Prometheus metrics. Call once at startup.
func InitMetrics(pool *pgxpool.Pool, queue *service.Queue, breaker *service.Breaker) {
	Metrics.VotesAccepted = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "aimoviez_votes_accepted_total",
			Help: "Total accepted votes, by path (fast/slow).",
		},
		[]string{"path"},
	)

	Metrics.VoteRejections = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "aimoviez_vote_rejections_total",
			Help: "Total rejected votes, by rejection code.",
		},
		[]string{"code"},
	)

	Metrics.RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "aimoviez_api_request_duration_seconds",
			Help:    "HTTP request duration in seconds, by endpoint and method.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"endpoint", "method", "status"},
	)

	Metrics.RequestsInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "aimoviez_requests_in_flight",
			Help: "Number of HTTP requests currently being served.",
		},
	)

	Metrics.CacheHits = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "aimoviez_counter_cache_hits_total",
			Help: "Total counter cache hits.",
		},
	)

	Metrics.CacheMisses = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "aimoviez_counter_cache_misses_total",
			Help: "Total counter cache misses.",
		},
	)

	// Queue depth gauges read live list lengths from Redis.
	if queue != nil {
		Metrics.QueueDepth = prometheus.NewGaugeFunc(
			prometheus.GaugeOpts{
				Name: "aimoviez_queue_pending",
				Help: "Vote events waiting in the pending queue.",
			},
			func() float64 {
				ctx, cancel := context.WithTimeout(context.Background(), time.Second)
				defer cancel()
				n, err := queue.Depth(ctx)
				if err != nil {
					return -1
				}
				return float64(n)
			},
		)

		Metrics.DeadLetterDepth = prometheus.NewGaugeFunc(
			prometheus.GaugeOpts{
				Name: "aimoviez_queue_dead_letter",
				Help: "Vote events parked on the dead-letter list.",
			},
			func() float64 {
				ctx, cancel := context.WithTimeout(context.Background(), time.Second)
				defer cancel()
				n, err := queue.DeadDepth(ctx)
				if err != nil {
					return -1
				}
				return float64(n)
			},
		)

		prometheus.MustRegister(Metrics.QueueDepth)
		prometheus.MustRegister(Metrics.DeadLetterDepth)
	}

	if breaker != nil {
		Metrics.BreakerOpen = prometheus.NewGaugeFunc(
			prometheus.GaugeOpts{
				Name: "aimoviez_breaker_open",
				Help: "1 when the fast-path circuit breaker is open.",
			},
			func() float64 {
				if breaker.IsOpen() {
					return 1
				}
				return 0
			},
		)
		prometheus.MustRegister(Metrics.BreakerOpen)
	}

	if pool != nil {
		Metrics.DBPoolActive = prometheus.NewGaugeFunc(
			prometheus.GaugeOpts{
				Name: "aimoviez_db_connection_pool_active",
				Help: "Number of active database connections.",
			},
			func() float64 {
				return float64(pool.Stat().AcquiredConns())
			},
		)

		Metrics.DBPoolIdle = prometheus.NewGaugeFunc(
			prometheus.GaugeOpts{
				Name: "aimoviez_db_connection_pool_idle",
				Help: "Number of idle database connections.",
			},
			func() float64 {
				return float64(pool.Stat().IdleConns())
			},
		)

		prometheus.MustRegister(Metrics.DBPoolActive)
		prometheus.MustRegister(Metrics.DBPoolIdle)
	}

	prometheus.MustRegister(
		Metrics.VotesAccepted,
		Metrics.VoteRejections,
		Metrics.RequestDuration,
		Metrics.RequestsInFlight,
		Metrics.CacheHits,
		Metrics.CacheMisses,
	)
}

// MetricsMiddleware records request duration and in-flight count for Prometheus.
func MetricsMiddleware() fiber.Handler {
	return func(c fiber.Ctx) error {
		// Don't instrument the /metrics endpoint itself
		if c.Path() == "/metrics" {
			return c.Next()
		}

		// Copy path and method into owned strings BEFORE c.Next() — Fiber
		// returns slices backed by the fasthttp buffer which can be reused
		// or overwritten by handlers (especially fasthttpadaptor).
		path := string([]byte(c.Path()))
		method := string([]byte(c.Method()))
		endpoint := sanitizeEndpoint(path)

		Metrics.RequestsInFlight.Inc()
		start := time.Now()

		err := c.Next()

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(c.Response().StatusCode())

		Metrics.RequestDuration.WithLabelValues(endpoint, method, status).Observe(duration)
		Metrics.RequestsInFlight.Dec()

		return err
	}
}

// sanitizeEndpoint normalizes paths to avoid cardinality explosion.
func sanitizeEndpoint(path string) string {
	switch {
	case len(path) > 10 && path[:10] == "/api/clips":
		return "/api/clips/:clipId/counters"
	default:
		return path
	}
}

// MetricsHandler serves the Prometheus /metrics endpoint via Fiber.
func MetricsHandler() fiber.Handler {
	httpHandler := fasthttpadaptor.NewFastHTTPHandler(promhttp.Handler())
	return func(c fiber.Ctx) error {
		httpHandler(c.RequestCtx())
		return nil
	}
}
