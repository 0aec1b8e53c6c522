package http

import (
	"context"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/samirrijal/miniguide/internal/core/usecases"
)

// Pinger is a backend the readiness probe can check.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Dependencies holds all services needed by HTTP handlers.
type Dependencies struct {
	Places   *usecases.PlaceService
	Routes   *usecases.RouteService
	Sessions SessionConfig
	NATS     *nats.Conn
	DB       Pinger
	Cache    Pinger
	// RequestTimeout bounds each REST handler; zero means 15s.
	RequestTimeout time.Duration
	// Deprecated lists endpoints that carry Deprecation/Sunset headers.
	Deprecated []DeprecatedRoute
	// OpenAPIPath is served at /docs/openapi.yaml; empty means api/openapi.yaml.
	OpenAPIPath string
}

func (d *Dependencies) requestTimeout() time.Duration {
	if d.RequestTimeout > 0 {
		return d.RequestTimeout
	}
	return 15 * time.Second
}

func (d *Dependencies) openAPIPath() string {
	if d.OpenAPIPath != "" {
		return d.OpenAPIPath
	}
	return "api/openapi.yaml"
}
