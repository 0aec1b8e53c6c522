package ports

import (
	"context"
	"errors"

	"github.com/samirrijal/miniguide/internal/core/domain"
)

// GeoSource looks up place candidates from one ranked source.
// Implementations fail with domain.ErrNetwork or domain.ErrMalformedResponse.
type GeoSource interface {
	Search(ctx context.Context, text string, limit int) ([]domain.PlaceCandidate, error)
}

// GeoSourceFunc adapts a function to GeoSource.
type GeoSourceFunc func(ctx context.Context, text string, limit int) ([]domain.PlaceCandidate, error)

// Search calls f.
func (f GeoSourceFunc) Search(ctx context.Context, text string, limit int) ([]domain.PlaceCandidate, error) {
	return f(ctx, text, limit)
}

// RoutingService computes a route between two points.
// It fails with domain.ErrNoRoute, domain.ErrNetwork or domain.ErrMalformedResponse.
type RoutingService interface {
	Route(ctx context.Context, from, to domain.GeoPoint) (domain.RouteResult, error)
}

// MapCanvas is the drawing surface the live sync engine renders into.
// The engine only touches primitives it created through Create.
type MapCanvas interface {
	Create(spec domain.PrimitiveSpec) (domain.PrimitiveID, error)
	Move(id domain.PrimitiveID, to domain.GeoPoint) error
	Remove(id domain.PrimitiveID) error
	PanTo(center domain.GeoPoint) error
	FitBounds(b domain.Bounds) error
}

// PositionFeed pushes position fixes until the returned cancel func is called.
type PositionFeed interface {
	Subscribe(ctx context.Context, handler func(domain.Position)) (cancel func(), err error)
}

// EventPublisher publishes navigation events to a message broker.
type EventPublisher interface {
	PublishPosition(ctx context.Context, session string, pos domain.Position) error
	PublishRoute(ctx context.Context, session string, update domain.RouteUpdate) error
}

// ErrCacheMiss is returned by CacheService.Get for absent or expired keys.
var ErrCacheMiss = errors.New("cache miss")

// CacheService provides read-through caching.
type CacheService interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttlSeconds int) error
	Delete(ctx context.Context, key string) error
}
