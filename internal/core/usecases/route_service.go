package usecases

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/samirrijal/miniguide/internal/core/domain"
	"github.com/samirrijal/miniguide/internal/core/ports"
	"github.com/samirrijal/miniguide/internal/pkg/metrics"
)

const defaultRouteTTL = 60

// RouteService handles one-shot route requests with caching.
type RouteService struct {
	routing ports.RoutingService
	cache   ports.CacheService
	ttl     int
	now     func() time.Time
	group   singleflight.Group
}

// NewRouteService creates a new RouteService. ttlSeconds <= 0 uses one minute.
func NewRouteService(routing ports.RoutingService, cache ports.CacheService, ttlSeconds int) *RouteService {
	if ttlSeconds <= 0 {
		ttlSeconds = defaultRouteTTL
	}
	return &RouteService{routing: routing, cache: cache, ttl: ttlSeconds, now: time.Now}
}

// Route returns the route between two points.
func (s *RouteService) Route(ctx context.Context, from, to domain.GeoPoint) (domain.RouteResult, error) {
	if !from.Valid() || !to.Valid() {
		return domain.RouteResult{}, domain.ErrInvalidCoordinate
	}

	// ~1 m of rounding keeps repeated taps on the same spot in one entry
	cacheKey := fmt.Sprintf("route:%.5f,%.5f:%.5f,%.5f", from.Lat, from.Lng, to.Lat, to.Lng)
	if s.cache != nil {
		if data, err := s.cache.Get(ctx, cacheKey); err == nil {
			var route domain.RouteResult
			if err := json.Unmarshal(data, &route); err == nil {
				metrics.CacheHits.WithLabelValues("route").Inc()
				return route, nil
			}
		}
		metrics.CacheMisses.WithLabelValues("route").Inc()
	}

	v, err, _ := s.group.Do(cacheKey, func() (interface{}, error) {
		return s.routing.Route(ctx, from, to)
	})
	if err != nil {
		return domain.RouteResult{}, err
	}
	route := v.(domain.RouteResult)

	if s.cache != nil {
		if data, err := json.Marshal(route); err == nil {
			_ = s.cache.Set(ctx, cacheKey, data, s.ttl)
		}
	}
	return route, nil
}

// Plan returns the route together with its display summary.
func (s *RouteService) Plan(ctx context.Context, from, to domain.GeoPoint) (domain.RouteResult, domain.RouteSummary, error) {
	route, err := s.Route(ctx, from, to)
	if err != nil {
		return domain.RouteResult{}, domain.RouteSummary{}, err
	}
	return route, domain.Summarize(route, s.now()), nil
}
