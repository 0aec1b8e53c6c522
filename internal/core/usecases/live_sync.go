package usecases

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/samirrijal/miniguide/internal/core/domain"
	"github.com/samirrijal/miniguide/internal/core/ports"
	"github.com/samirrijal/miniguide/internal/pkg/geospatial"
)

// DefaultOffRouteMeters is how far from the current path a fix must be for
// the next route to be reported as an off-route reroute.
const DefaultOffRouteMeters = 50.0

// LiveSyncOptions configures a LiveSync engine. Zero values pick defaults.
type LiveSyncOptions struct {
	OffRouteMeters float64
	// Now stamps route summaries for the traffic-adjusted ETA.
	Now    func() time.Time
	Logger *slog.Logger
	// OnRoute receives every settled or cleared route. It is called with the
	// engine lock held and must not call back into the engine.
	OnRoute func(domain.RouteUpdate)
}

// LiveSyncState is a snapshot of the engine's state machine.
type LiveSyncState struct {
	Position    domain.Position                             `json:"position"`
	Destination *domain.Destination                         `json:"destination,omitempty"`
	RouteState  domain.RouteState                           `json:"route_state"`
	Route       *domain.RouteResult                         `json:"route,omitempty"`
	TornDown    bool                                        `json:"torn_down"`
	Primitives  map[domain.PrimitiveKind]domain.PrimitiveID `json:"primitives"`
}

// HasDestination reports the destination axis.
func (s LiveSyncState) HasDestination() bool { return s.Destination != nil }

// LiveSync keeps the primitives on a map canvas consistent with the current
// position, an optional destination and the latest route.
type LiveSync struct {
	canvas  ports.MapCanvas
	fetcher *RouteFetcher
	opts    LiveSyncOptions
	log     *slog.Logger

	mu       sync.Mutex
	prims    *primitiveSet
	pos      domain.Position
	dest     *domain.Destination
	route    *domain.RouteResult
	state    domain.RouteState
	torn     bool
	unfollow func()
}

// NewLiveSync creates the self marker, pulse halo and accuracy circle at the
// initial position and centres the view on it.
func NewLiveSync(canvas ports.MapCanvas, fetcher *RouteFetcher, initial domain.Position, opts LiveSyncOptions) (*LiveSync, error) {
	if !initial.Point().Valid() {
		return nil, fmt.Errorf("initial position %+v: %w", initial, domain.ErrInvalidCoordinate)
	}
	if opts.OffRouteMeters <= 0 {
		opts.OffRouteMeters = DefaultOffRouteMeters
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}

	e := &LiveSync{
		canvas:  canvas,
		fetcher: fetcher,
		opts:    opts,
		log:     log.With("component", "live_sync"),
		prims:   newPrimitiveSet(canvas),
		pos:     initial,
		state:   domain.RouteIdle,
	}

	for _, spec := range selfSpecs(initial) {
		if err := e.prims.replace(spec); err != nil {
			_ = e.prims.releaseAll()
			return nil, fmt.Errorf("init live sync: %w", err)
		}
	}
	if err := canvas.PanTo(initial.Point()); err != nil {
		e.log.Warn("initial pan failed", "error", err)
	}
	return e, nil
}

func selfSpecs(p domain.Position) []domain.PrimitiveSpec {
	at := p.Point()
	return []domain.PrimitiveSpec{
		{Kind: domain.PrimitiveSelfMarker, Center: at},
		{Kind: domain.PrimitivePulseHalo, Center: at},
		{Kind: domain.PrimitiveAccuracyCircle, Center: at, Radius: p.Accuracy},
	}
}

// UpdatePosition applies a position fix. Repeating the current fix is a no-op.
func (e *LiveSync) UpdatePosition(p domain.Position) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.torn {
		return domain.ErrTornDown
	}
	if !p.Point().Valid() {
		return fmt.Errorf("position %+v: %w", p, domain.ErrInvalidCoordinate)
	}
	if p == e.pos {
		return nil
	}
	prev := e.pos
	e.pos = p

	err := e.moveSelfLocked(prev, p)

	if e.dest == nil {
		if perr := e.canvas.PanTo(p.Point()); perr != nil {
			err = errors.Join(err, perr)
		}
		return err
	}

	reason := domain.ReasonPositionChanged
	if e.route != nil && geospatial.IsOffRoute(p.Point(), e.route.Path, e.opts.OffRouteMeters) {
		reason = domain.ReasonOffRoute
	}
	e.fetchLocked(reason)
	return err
}

func (e *LiveSync) moveSelfLocked(prev, p domain.Position) error {
	at := p.Point()
	errs := []error{
		e.prims.move(domain.PrimitiveSelfMarker, at),
		e.prims.move(domain.PrimitivePulseHalo, at),
	}
	if p.Accuracy != prev.Accuracy {
		// the radius is fixed at creation
		errs = append(errs, e.prims.replace(domain.PrimitiveSpec{
			Kind:   domain.PrimitiveAccuracyCircle,
			Center: at,
			Radius: p.Accuracy,
		}))
	} else {
		errs = append(errs, e.prims.move(domain.PrimitiveAccuracyCircle, at))
	}
	return errors.Join(errs...)
}

// SetDestination sets, changes or (with nil) clears the destination.
// Setting the current destination again is a no-op.
func (e *LiveSync) SetDestination(d *domain.Destination) error {
	if d == nil {
		return e.ClearDestination()
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.torn {
		return domain.ErrTornDown
	}
	if !d.Point.Valid() {
		return fmt.Errorf("destination %+v: %w", d.Point, domain.ErrInvalidCoordinate)
	}
	if d.Equal(e.dest) {
		return nil
	}

	dest := *d
	e.dest = &dest
	e.route = nil

	errs := []error{
		e.prims.release(domain.PrimitiveRouteLine),
		e.prims.replace(domain.PrimitiveSpec{
			Kind:   domain.PrimitiveDestinationMarker,
			Center: dest.Point,
			Label:  dest.Label,
		}),
	}
	if b, ok := domain.BoundsOf(e.pos.Point(), dest.Point); ok {
		errs = append(errs, e.canvas.FitBounds(b))
	}

	e.fetchLocked(domain.ReasonDestinationChanged)
	return errors.Join(errs...)
}

// ClearDestination removes the destination marker and route line, reports
// "no route" and returns to idle.
func (e *LiveSync) ClearDestination() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.torn {
		return domain.ErrTornDown
	}
	if e.dest == nil {
		return nil
	}

	e.fetcher.Cancel()
	e.dest = nil
	e.route = nil
	e.state = domain.RouteIdle

	err := errors.Join(
		e.prims.release(domain.PrimitiveRouteLine),
		e.prims.release(domain.PrimitiveDestinationMarker),
	)
	e.emitLocked(domain.RouteUpdate{State: domain.RouteIdle, Reason: domain.ReasonCleared})
	return err
}

func (e *LiveSync) fetchLocked(reason domain.RouteReason) {
	e.state = domain.RouteFetching
	from, to := e.pos.Point(), e.dest.Point
	e.fetcher.Fetch(from, to, func(gen uint64, route domain.RouteResult, err error) {
		e.complete(gen, reason, route, err)
	})
}

func (e *LiveSync) complete(gen uint64, reason domain.RouteReason, route domain.RouteResult, err error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.torn || !e.fetcher.Current(gen) {
		return
	}

	if err != nil {
		e.log.Warn("route fetch failed", "reason", reason, "error", err)
		e.route = nil
		e.state = domain.RouteFailed
		if rerr := e.prims.release(domain.PrimitiveRouteLine); rerr != nil {
			e.log.Warn("release route line", "error", rerr)
		}
		e.emitLocked(domain.RouteUpdate{State: domain.RouteFailed, Reason: reason})
		return
	}

	e.route = &route
	e.state = domain.RouteReady
	if cerr := e.prims.replace(domain.PrimitiveSpec{
		Kind: domain.PrimitiveRouteLine,
		Path: route.Path,
	}); cerr != nil {
		e.log.Warn("draw route line", "error", cerr)
	}
	if b, ok := domain.BoundsOf(route.Path...); ok {
		if ferr := e.canvas.FitBounds(b); ferr != nil {
			e.log.Warn("fit route bounds", "error", ferr)
		}
	}

	summary := domain.Summarize(route, e.opts.Now())
	e.log.Debug("route ready", "reason", reason,
		"distance_km", summary.DistanceKm, "duration_min", summary.DurationMin)
	e.emitLocked(domain.RouteUpdate{
		State:   domain.RouteReady,
		Reason:  reason,
		Summary: &summary,
		Route:   &route,
	})
}

// Follow binds a position feed to the engine, replacing any prior binding.
// The binding ends on Dispose.
func (e *LiveSync) Follow(ctx context.Context, feed ports.PositionFeed) error {
	e.mu.Lock()
	if e.torn {
		e.mu.Unlock()
		return domain.ErrTornDown
	}
	prev := e.unfollow
	e.unfollow = nil
	e.mu.Unlock()
	if prev != nil {
		prev()
	}

	cancel, err := feed.Subscribe(ctx, func(p domain.Position) {
		if err := e.UpdatePosition(p); err != nil && !errors.Is(err, domain.ErrTornDown) {
			e.log.Warn("position update", "error", err)
		}
	})
	if err != nil {
		return fmt.Errorf("follow position feed: %w", err)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.torn {
		cancel()
		return domain.ErrTornDown
	}
	e.unfollow = cancel
	return nil
}

// Dispose releases every primitive, supersedes any in-flight fetch and ends
// the feed binding. Later calls on the engine fail with domain.ErrTornDown.
func (e *LiveSync) Dispose() error {
	e.mu.Lock()
	if e.torn {
		e.mu.Unlock()
		return nil
	}
	e.torn = true
	e.fetcher.Cancel()
	unfollow := e.unfollow
	e.unfollow = nil
	err := e.prims.releaseAll()
	e.dest = nil
	e.route = nil
	e.state = domain.RouteIdle
	e.mu.Unlock()

	if unfollow != nil {
		unfollow()
	}
	return err
}

// State returns a snapshot of the engine.
func (e *LiveSync) State() LiveSyncState {
	e.mu.Lock()
	defer e.mu.Unlock()

	st := LiveSyncState{
		Position:   e.pos,
		RouteState: e.state,
		TornDown:   e.torn,
		Primitives: e.prims.ids(),
	}
	if e.dest != nil {
		d := *e.dest
		st.Destination = &d
	}
	if e.route != nil {
		r := *e.route
		st.Route = &r
	}
	return st
}

func (e *LiveSync) emitLocked(u domain.RouteUpdate) {
	if e.opts.OnRoute != nil {
		e.opts.OnRoute(u)
	}
}
