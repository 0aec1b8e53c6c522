package http

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/compress"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/gofiber/fiber/v2/middleware/timeout"
	"github.com/gofiber/websocket/v2"

	"github.com/samirrijal/miniguide/internal/pkg/metrics"
)

// LegacyCitySearch is the original search endpoint, kept until its sunset.
var LegacyCitySearch = DeprecatedRoute{
	Path:        "/search-cities",
	SunsetDate:  time.Date(2027, time.June, 30, 0, 0, 0, 0, time.UTC),
	Alternative: "/v1/places/search",
}

// SetupRoutes registers all REST, GraphQL, and WebSocket routes.
func SetupRoutes(app *fiber.App, deps *Dependencies) {
	// Prometheus metrics
	app.Use(metrics.Middleware())
	app.Get("/metrics", metrics.Handler())

	// Response compression (gzip)
	app.Use(compress.New(compress.Config{
		Level: compress.LevelBestSpeed,
	}))

	// Request ID
	app.Use(requestid.New())

	// Propagate request ID into slog context
	app.Use(RequestIDLogMiddleware())

	// Access logs (structured HTTP request logging)
	app.Use(AccessLogMiddleware())

	// Rate limiting: 600 requests per minute per IP, keystroke search is chatty
	app.Use(limiter.New(limiter.Config{
		Max:        600,
		Expiration: 1 * time.Minute,
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.IP()
		},
		Next: func(c *fiber.Ctx) bool {
			return c.Path() == "/ws/location"
		},
		LimitReached: func(c *fiber.Ctx) error {
			return newError(c, 429, "rate_limited", "too many requests, please try again later")
		},
	}))

	// Security headers + API version
	app.Use(func(c *fiber.Ctx) error {
		c.Set("X-Content-Type-Options", "nosniff")
		c.Set("X-Frame-Options", "DENY")
		c.Set("Referrer-Policy", "strict-origin-when-cross-origin")
		c.Set("X-API-Version", "1.0.0")
		return c.Next()
	})

	deprecated := deps.Deprecated
	if deprecated == nil {
		deprecated = []DeprecatedRoute{LegacyCitySearch}
	}
	app.Use(DeprecationMiddleware(deprecated))

	// ETag for conditional caching
	app.Use(ETagMiddleware())

	// Default Cache-Control headers
	app.Use(CachingMiddleware())

	// Health & readiness (no timeout, fast internal checks)
	app.Get("/v1/health", HealthHandler(deps))
	app.Get("/v1/ready", ReadyHandler(deps))

	rt := deps.requestTimeout()

	// Contracts consumed by the client and the live sync engine
	app.Get("/search-places", timeout.NewWithContext(SearchPlacesHandler(deps), rt))
	app.Get("/search-cities", timeout.NewWithContext(SearchCitiesHandler(deps), rt))
	app.Get("/route", timeout.NewWithContext(RouteProxyHandler(deps), rt))

	// REST API v1
	v1 := app.Group("/v1")
	v1.Get("/places/search", timeout.NewWithContext(SearchPlacesHandler(deps), rt))
	v1.Get("/places/popular", PopularPlacesHandler(deps))
	v1.Get("/places/nearby", timeout.NewWithContext(NearbyPlacesHandler(deps), rt))
	v1.Get("/route", timeout.NewWithContext(PlanRouteHandler(deps), rt))

	// GraphQL
	app.Post("/graphql", GraphQLHandler(deps))

	// API documentation (Swagger UI)
	SetupDocs(app, deps.openAPIPath())

	// WebSocket navigation sessions
	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws/location", websocket.New(NavigationHandler(deps.Sessions)))
}
