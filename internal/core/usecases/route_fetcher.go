package usecases

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/samirrijal/miniguide/internal/core/domain"
	"github.com/samirrijal/miniguide/internal/core/ports"
	"github.com/samirrijal/miniguide/internal/pkg/metrics"
	"github.com/samirrijal/miniguide/internal/pkg/telemetry"
)

const defaultRouteTimeout = 10 * time.Second

// RouteFetcherOptions configures a RouteFetcher. Zero values pick defaults.
type RouteFetcherOptions struct {
	Timeout time.Duration
	// Spawn runs each request. Defaults to a new goroutine.
	Spawn  func(func())
	Logger *slog.Logger
}

// RouteDelivery receives the outcome of one fetch and its generation.
type RouteDelivery func(gen uint64, route domain.RouteResult, err error)

// RouteFetcher issues one routing request at a time. Every Fetch or Cancel
// bumps a generation counter; a completion whose generation is no longer
// current is dropped.
type RouteFetcher struct {
	routing ports.RoutingService
	opts    RouteFetcherOptions
	log     *slog.Logger
	tracer  trace.Tracer

	mu     sync.Mutex
	gen    uint64
	cancel context.CancelFunc
}

// NewRouteFetcher creates a fetcher over a routing service.
func NewRouteFetcher(routing ports.RoutingService, opts RouteFetcherOptions) *RouteFetcher {
	if opts.Timeout <= 0 {
		opts.Timeout = defaultRouteTimeout
	}
	if opts.Spawn == nil {
		opts.Spawn = goSpawn
	}
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	return &RouteFetcher{
		routing: routing,
		opts:    opts,
		log:     log.With("component", "route_fetcher"),
		tracer:  telemetry.Tracer(),
	}
}

// Fetch supersedes any in-flight request and starts a new one. deliver is
// called once, from the spawned task, unless the fetch was superseded first.
func (f *RouteFetcher) Fetch(from, to domain.GeoPoint, deliver RouteDelivery) uint64 {
	f.mu.Lock()
	f.gen++
	gen := f.gen
	if f.cancel != nil {
		f.cancel()
	}
	ctx, cancel := context.WithTimeout(context.Background(), f.opts.Timeout)
	f.cancel = cancel
	f.mu.Unlock()

	f.opts.Spawn(func() {
		defer cancel()
		route, err := f.do(ctx, from, to)
		if !f.Current(gen) {
			metrics.RouteStaleDiscards.Inc()
			f.log.Debug("dropping superseded route", "gen", gen, "error", domain.ErrStaleResult)
			return
		}
		deliver(gen, route, err)
	})
	return gen
}

// Cancel supersedes any in-flight request without starting a new one.
func (f *RouteFetcher) Cancel() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.gen++
	if f.cancel != nil {
		f.cancel()
		f.cancel = nil
	}
}

// Current reports whether gen is the latest issued generation.
func (f *RouteFetcher) Current(gen uint64) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return gen == f.gen
}

func (f *RouteFetcher) do(ctx context.Context, from, to domain.GeoPoint) (domain.RouteResult, error) {
	ctx, span := f.tracer.Start(ctx, telemetry.SpanRouteFetch, trace.WithAttributes(
		attribute.String(telemetry.AttrFrom, from.LngLat()),
		attribute.String(telemetry.AttrTo, to.LngLat()),
	))
	defer span.End()

	start := time.Now()
	route, err := f.routing.Route(ctx, from, to)
	metrics.RouteFetchDuration.Observe(time.Since(start).Seconds())

	switch {
	case err == nil:
		metrics.RouteFetches.WithLabelValues("ok").Inc()
	case errors.Is(err, domain.ErrNoRoute):
		metrics.RouteFetches.WithLabelValues("no_route").Inc()
	default:
		metrics.RouteFetches.WithLabelValues("error").Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return route, err
}
