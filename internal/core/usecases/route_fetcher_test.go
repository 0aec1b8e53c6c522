package usecases_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/samirrijal/miniguide/internal/core/domain"
	"github.com/samirrijal/miniguide/internal/core/usecases"
)

type delivered struct {
	gen   uint64
	route domain.RouteResult
	err   error
}

func TestRouteFetcher_SupersededResultIsDropped(t *testing.T) {
	queue := &spawnQueue{}
	f := usecases.NewRouteFetcher(&mockRouting{}, usecases.RouteFetcherOptions{Spawn: queue.Spawn})

	var got []delivered
	deliver := func(gen uint64, r domain.RouteResult, err error) {
		got = append(got, delivered{gen, r, err})
	}

	g1 := f.Fetch(pt(1, 1), pt(2, 2), deliver)
	g2 := f.Fetch(pt(1, 1), pt(3, 3), deliver)
	if g2 <= g1 {
		t.Fatalf("generations must increase: %d then %d", g1, g2)
	}
	if f.Current(g1) || !f.Current(g2) {
		t.Fatal("only the latest generation is current")
	}

	queue.RunOrder(1, 0)

	if len(got) != 1 || got[0].gen != g2 {
		t.Fatalf("expected only generation %d delivered, got %+v", g2, got)
	}
	if last := got[0].route.Path[len(got[0].route.Path)-1]; last != pt(3, 3) {
		t.Errorf("delivered the wrong route, ends at %+v", last)
	}
}

func TestRouteFetcher_CancelDropsInFlight(t *testing.T) {
	queue := &spawnQueue{}
	f := usecases.NewRouteFetcher(&mockRouting{}, usecases.RouteFetcherOptions{Spawn: queue.Spawn})

	called := false
	gen := f.Fetch(pt(1, 1), pt(2, 2), func(uint64, domain.RouteResult, error) { called = true })
	f.Cancel()
	queue.Run(0)

	if called {
		t.Error("cancelled fetch must not deliver")
	}
	if f.Current(gen) {
		t.Error("cancel must retire the generation")
	}
}

func TestRouteFetcher_CancelsPreviousContext(t *testing.T) {
	queue := &spawnQueue{}
	var seen []error
	routing := &mockRouting{
		routeFn: func(ctx context.Context, from, to domain.GeoPoint) (domain.RouteResult, error) {
			seen = append(seen, ctx.Err())
			return straightRoute(from, to, 1, 1), nil
		},
	}
	f := usecases.NewRouteFetcher(routing, usecases.RouteFetcherOptions{Spawn: queue.Spawn})

	f.Fetch(pt(1, 1), pt(2, 2), func(uint64, domain.RouteResult, error) {})
	f.Fetch(pt(1, 1), pt(3, 3), func(uint64, domain.RouteResult, error) {})
	queue.RunOrder(0, 1)

	if seen[0] == nil {
		t.Error("superseded request context should be cancelled")
	}
	if seen[1] != nil {
		t.Errorf("latest request context should be live, got %v", seen[1])
	}
}

func TestRouteFetcher_DeliversErrors(t *testing.T) {
	queue := &spawnQueue{}
	routing := &mockRouting{
		routeFn: func(ctx context.Context, from, to domain.GeoPoint) (domain.RouteResult, error) {
			return domain.RouteResult{}, fmt.Errorf("dial: %w", domain.ErrNetwork)
		},
	}
	f := usecases.NewRouteFetcher(routing, usecases.RouteFetcherOptions{Spawn: queue.Spawn})

	var gotErr error
	f.Fetch(pt(1, 1), pt(2, 2), func(_ uint64, _ domain.RouteResult, err error) { gotErr = err })
	queue.Run(0)

	if !errors.Is(gotErr, domain.ErrNetwork) {
		t.Errorf("expected ErrNetwork, got %v", gotErr)
	}
}
