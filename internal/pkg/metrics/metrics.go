package metrics

import (
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/valyala/fasthttp/fasthttpadaptor"
)

var (
	// HTTP metrics
	httpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "miniguide",
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "Total HTTP requests processed",
	}, []string{"method", "path", "status"})

	httpRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "miniguide",
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "HTTP request latency in seconds",
		Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
	}, []string{"method", "path"})

	httpResponseSize = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "miniguide",
		Subsystem: "http",
		Name:      "response_size_bytes",
		Help:      "HTTP response size in bytes",
		Buckets:   prometheus.ExponentialBuckets(100, 10, 6),
	}, []string{"method", "path"})

	// Search metrics
	SearchLookups = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "miniguide",
		Subsystem: "search",
		Name:      "lookups_total",
		Help:      "Place result sets published, by source kind",
	}, []string{"source"})

	SearchFallbacks = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "miniguide",
		Subsystem: "search",
		Name:      "fallbacks_total",
		Help:      "Lookups answered by the local gazetteer after a primary source failure",
	})

	SearchStaleDiscards = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "miniguide",
		Subsystem: "search",
		Name:      "stale_discards_total",
		Help:      "Search responses dropped because a newer query was issued",
	})

	GeocoderErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "miniguide",
		Subsystem: "search",
		Name:      "upstream_errors_total",
		Help:      "Upstream geocoder failures",
	}, []string{"provider"})

	// Routing metrics
	RouteFetches = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "miniguide",
		Subsystem: "routing",
		Name:      "fetches_total",
		Help:      "Route fetches by outcome",
	}, []string{"outcome"})

	RouteFetchDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "miniguide",
		Subsystem: "routing",
		Name:      "fetch_duration_seconds",
		Help:      "Latency of routing backend requests",
		Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
	})

	RouteStaleDiscards = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "miniguide",
		Subsystem: "routing",
		Name:      "stale_discards_total",
		Help:      "Route results dropped because a newer fetch superseded them",
	})

	// Navigation metrics
	ActiveSessions = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "miniguide",
		Subsystem: "ws",
		Name:      "active_sessions",
		Help:      "Current number of navigation websocket sessions",
	})

	LivePrimitives = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "miniguide",
		Subsystem: "map",
		Name:      "live_primitives",
		Help:      "Map primitives currently held by live sync engines",
	}, []string{"kind"})

	CacheHits = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "miniguide",
		Subsystem: "cache",
		Name:      "hits_total",
		Help:      "Total cache hits",
	}, []string{"operation"})

	CacheMisses = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "miniguide",
		Subsystem: "cache",
		Name:      "misses_total",
		Help:      "Total cache misses",
	}, []string{"operation"})

	// Database pool metrics
	DBPoolConnsOpen = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "miniguide",
		Subsystem: "db",
		Name:      "pool_conns_open",
		Help:      "Total connections open in the database pool",
	})

	DBPoolConnsAcquired = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "miniguide",
		Subsystem: "db",
		Name:      "pool_conns_acquired",
		Help:      "Connections currently acquired from the database pool",
	})

	DBPoolConnsIdle = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "miniguide",
		Subsystem: "db",
		Name:      "pool_conns_idle",
		Help:      "Idle connections in the database pool",
	})
)

// Middleware records request metrics.
func Middleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()

		err := c.Next()

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(c.Response().StatusCode())
		// fiber resolves the registered pattern, which keeps label cardinality bounded
		path := c.Route().Path
		if path == "" {
			path = c.Path()
		}
		method := c.Method()

		httpRequestsTotal.WithLabelValues(method, path, status).Inc()
		httpRequestDuration.WithLabelValues(method, path).Observe(duration)
		httpResponseSize.WithLabelValues(method, path).Observe(float64(len(c.Response().Body())))

		return err
	}
}

// Handler returns a Fiber handler serving Prometheus /metrics endpoint.
func Handler() fiber.Handler {
	handler := promhttp.Handler()
	return func(c *fiber.Ctx) error {
		fasthttpadaptor.NewFastHTTPHandler(handler)(c.Context())
		return nil
	}
}

// UpdateDBPoolMetrics updates database pool metrics from pgx pool stats.
// It takes an interface so this package does not import pgxpool.
func UpdateDBPoolMetrics(stat interface{}) {
	type poolStat interface {
		AcquiredConns() int32
		IdleConns() int32
		TotalConns() int32
	}

	if s, ok := stat.(poolStat); ok {
		DBPoolConnsAcquired.Set(float64(s.AcquiredConns()))
		DBPoolConnsIdle.Set(float64(s.IdleConns()))
		DBPoolConnsOpen.Set(float64(s.TotalConns()))
	}
}
