package usecases_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/samirrijal/miniguide/internal/core/domain"
	"github.com/samirrijal/miniguide/internal/core/usecases"
)

func TestRouteService_PlanSummarizes(t *testing.T) {
	svc := usecases.NewRouteService(&mockRouting{}, nil, 0)

	route, summary, err := svc.Plan(context.Background(), pt(10, 10), pt(10.1, 10.1))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(route.Path) != 2 {
		t.Errorf("expected 2 path points, got %d", len(route.Path))
	}
	if summary.DistanceKm != 1.5 || summary.DurationMin != 4 {
		t.Errorf("expected 1.5 km / 4 min, got %v / %d", summary.DistanceKm, summary.DurationMin)
	}
}

func TestRouteService_CachesResults(t *testing.T) {
	routing := &mockRouting{}
	cache := newMockCache()
	svc := usecases.NewRouteService(routing, cache, 60)

	for i := 0; i < 3; i++ {
		if _, err := svc.Route(context.Background(), pt(10, 10), pt(10.1, 10.1)); err != nil {
			t.Fatal(err)
		}
	}
	if n := len(routing.Calls()); n != 1 {
		t.Errorf("expected one upstream call, got %d", n)
	}
	if ttl := cache.ttls["route:10.00000,10.00000:10.10000,10.10000"]; ttl != 60 {
		t.Errorf("expected 60 s ttl, got %d (keys %v)", ttl, cache.keys())
	}
}

func TestRouteService_DoesNotCacheFailures(t *testing.T) {
	routing := &mockRouting{
		routeFn: func(ctx context.Context, from, to domain.GeoPoint) (domain.RouteResult, error) {
			return domain.RouteResult{}, fmt.Errorf("osrm: %w", domain.ErrNoRoute)
		},
	}
	cache := newMockCache()
	svc := usecases.NewRouteService(routing, cache, 60)

	_, err := svc.Route(context.Background(), pt(10, 10), pt(10.1, 10.1))
	if !errors.Is(err, domain.ErrNoRoute) {
		t.Fatalf("expected ErrNoRoute, got %v", err)
	}
	if len(cache.keys()) != 0 {
		t.Errorf("failures must not be cached, got %v", cache.keys())
	}
}

func TestRouteService_RejectsInvalidCoordinates(t *testing.T) {
	routing := &mockRouting{}
	svc := usecases.NewRouteService(routing, nil, 0)

	_, err := svc.Route(context.Background(), pt(100, 0), pt(0, 0))
	if !errors.Is(err, domain.ErrInvalidCoordinate) {
		t.Errorf("expected ErrInvalidCoordinate, got %v", err)
	}
	if len(routing.Calls()) != 0 {
		t.Error("invalid request reached the routing backend")
	}
}
