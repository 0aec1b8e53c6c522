package http

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/samirrijal/miniguide/internal/core/domain"
	"github.com/samirrijal/miniguide/internal/core/ports"
	"github.com/samirrijal/miniguide/internal/core/usecases"
	"github.com/samirrijal/miniguide/internal/pkg/metrics"
)

// recorder captures everything a session sends to its client.
type recorder struct {
	mu   sync.Mutex
	msgs []map[string]any
}

func (r *recorder) send(v any) {
	data, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	var m map[string]any
	_ = json.Unmarshal(data, &m)
	r.mu.Lock()
	r.msgs = append(r.msgs, m)
	r.mu.Unlock()
}

func (r *recorder) ofType(typ string) []map[string]any {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []map[string]any
	for _, m := range r.msgs {
		if m["type"] == typ {
			out = append(out, m)
		}
	}
	return out
}

func (r *recorder) primitives(op string) []map[string]any {
	var out []map[string]any
	for _, m := range r.ofType("primitive") {
		if m["op"] == op {
			out = append(out, m)
		}
	}
	return out
}

type taskQueue struct {
	mu    sync.Mutex
	tasks []func()
}

func (q *taskQueue) Spawn(f func()) {
	q.mu.Lock()
	q.tasks = append(q.tasks, f)
	q.mu.Unlock()
}

func (q *taskQueue) RunAll() {
	q.mu.Lock()
	tasks := q.tasks
	q.tasks = nil
	q.mu.Unlock()
	for _, f := range tasks {
		f()
	}
}

// manualClock fires timers only when told to.
type manualClock struct {
	mu      sync.Mutex
	pending []*manualTimer
}

type manualTimer struct {
	f       func()
	stopped bool
}

func (t *manualTimer) Stop() bool {
	was := !t.stopped
	t.stopped = true
	return was
}

func (c *manualClock) Now() time.Time { return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC) }

func (c *manualClock) AfterFunc(d time.Duration, f func()) usecases.Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &manualTimer{f: f}
	c.pending = append(c.pending, t)
	return t
}

func (c *manualClock) FireAll() {
	c.mu.Lock()
	due := c.pending
	c.pending = nil
	c.mu.Unlock()
	for _, t := range due {
		if !t.stopped {
			t.f()
		}
	}
}

type routeFunc func(ctx context.Context, from, to domain.GeoPoint) (domain.RouteResult, error)

func (f routeFunc) Route(ctx context.Context, from, to domain.GeoPoint) (domain.RouteResult, error) {
	return f(ctx, from, to)
}

type recordingPublisher struct {
	mu        sync.Mutex
	positions []domain.Position
	routes    []domain.RouteUpdate
}

func (p *recordingPublisher) PublishPosition(ctx context.Context, session string, pos domain.Position) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.positions = append(p.positions, pos)
	return nil
}

func (p *recordingPublisher) PublishRoute(ctx context.Context, session string, u domain.RouteUpdate) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.routes = append(p.routes, u)
	return nil
}

type sessionFixture struct {
	rec     *recorder
	tasks   *taskQueue
	clock   *manualClock
	pub     *recordingPublisher
	session *navSession
}

func newSessionFixture(t *testing.T, search ports.GeoSource) *sessionFixture {
	t.Helper()
	f := &sessionFixture{
		rec:   &recorder{},
		tasks: &taskQueue{},
		clock: &manualClock{},
		pub:   &recordingPublisher{},
	}
	cfg := SessionConfig{
		Search: search,
		Routing: routeFunc(func(ctx context.Context, from, to domain.GeoPoint) (domain.RouteResult, error) {
			return domain.RouteResult{Path: []domain.GeoPoint{from, to}, DistanceMeters: 2400, DurationSeconds: 300}, nil
		}),
		Publisher: f.pub,
		Clock:     f.clock,
		Spawn:     f.tasks.Spawn,
	}
	f.session = newNavSession("sess-1", cfg, f.rec.send)
	t.Cleanup(f.session.close)
	return f
}

func (f *sessionFixture) handle(t *testing.T, msg map[string]any) {
	t.Helper()
	raw, err := json.Marshal(msg)
	if err != nil {
		t.Fatal(err)
	}
	f.session.handle(raw)
}

func TestNavSession_AnnouncesID(t *testing.T) {
	f := newSessionFixture(t, nil)

	got := f.rec.ofType("session")
	if len(got) != 1 || got[0]["id"] != "sess-1" {
		t.Fatalf("expected session announcement, got %v", got)
	}
}

func TestNavSession_FirstLocationDrawsSelf(t *testing.T) {
	f := newSessionFixture(t, nil)

	f.handle(t, map[string]any{"type": "location", "lat": 15.49, "lng": 73.82, "accuracy": 12})

	kinds := map[string]bool{}
	for _, m := range f.rec.primitives("create") {
		kinds[m["kind"].(string)] = true
	}
	for _, k := range []domain.PrimitiveKind{domain.PrimitiveSelfMarker, domain.PrimitivePulseHalo} {
		if !kinds[string(k)] {
			t.Errorf("expected %s to be created, got %v", k, kinds)
		}
	}
	if pans := f.rec.ofType("viewport"); len(pans) == 0 || pans[0]["op"] != "pan" {
		t.Errorf("expected initial pan, got %v", pans)
	}

	// second fix moves, never recreates the marker
	before := len(f.rec.primitives("create"))
	f.handle(t, map[string]any{"type": "location", "lat": 15.491, "lng": 73.821, "accuracy": 12})
	if len(f.rec.primitives("move")) == 0 {
		t.Error("expected move ops on second fix")
	}
	if after := len(f.rec.primitives("create")); after != before {
		t.Errorf("expected no new primitives, got %d more", after-before)
	}
}

func TestNavSession_LivePrimitivesGauge(t *testing.T) {
	gauge := func(k domain.PrimitiveKind) float64 {
		return testutil.ToFloat64(metrics.LivePrimitives.WithLabelValues(string(k)))
	}
	base := gauge(domain.PrimitiveSelfMarker)
	f := newSessionFixture(t, nil)

	f.handle(t, map[string]any{"type": "location", "lat": 10, "lng": 10})
	if got := gauge(domain.PrimitiveSelfMarker) - base; got != 1 {
		t.Fatalf("expected one live self marker, gauge moved by %v", got)
	}
	f.handle(t, map[string]any{"type": "location", "lat": 10.001, "lng": 10.001})
	if got := gauge(domain.PrimitiveSelfMarker) - base; got != 1 {
		t.Errorf("expected moves to leave the gauge alone, moved by %v", got)
	}

	f.session.close()
	if got := gauge(domain.PrimitiveSelfMarker) - base; got != 0 {
		t.Errorf("expected gauge back to baseline after close, off by %v", got)
	}
}

func TestNavSession_NavigateEmitsRouteUpdate(t *testing.T) {
	f := newSessionFixture(t, nil)

	f.handle(t, map[string]any{"type": "location", "lat": 15.49, "lng": 73.82})
	f.handle(t, map[string]any{"type": "start_nav", "dest_lat": 15.55, "dest_lng": 73.75, "label": "Baga"})
	f.tasks.RunAll()

	updates := f.rec.ofType("route_update")
	if len(updates) != 1 {
		t.Fatalf("expected one route update, got %d", len(updates))
	}
	if updates[0]["state"] != string(domain.RouteReady) {
		t.Errorf("expected ready, got %v", updates[0]["state"])
	}
	if updates[0]["reason"] != string(domain.ReasonDestinationChanged) {
		t.Errorf("expected destination_changed, got %v", updates[0]["reason"])
	}
	summary, _ := updates[0]["summary"].(map[string]any)
	if summary["duration_label"] != "5 min" {
		t.Errorf("expected 5 min, got %v", summary["duration_label"])
	}

	f.handle(t, map[string]any{"type": "stop_nav"})
	if len(f.rec.ofType("nav_stopped")) != 1 {
		t.Error("expected nav_stopped")
	}

	f.session.close()
	f.pub.mu.Lock()
	defer f.pub.mu.Unlock()
	if len(f.pub.positions) != 1 {
		t.Errorf("expected 1 published position, got %d", len(f.pub.positions))
	}
	if len(f.pub.routes) == 0 {
		t.Error("expected published route updates")
	}
}

func TestNavSession_StartNavNeedsLocation(t *testing.T) {
	f := newSessionFixture(t, nil)

	f.handle(t, map[string]any{"type": "start_nav", "dest_lat": 15.55, "dest_lng": 73.75})

	if errs := f.rec.ofType("error"); len(errs) != 1 {
		t.Fatalf("expected one error, got %v", errs)
	}
	if len(f.tasks.tasks) != 0 {
		t.Error("expected no route request")
	}
}

func TestNavSession_CloseRemovesEverything(t *testing.T) {
	f := newSessionFixture(t, nil)

	f.handle(t, map[string]any{"type": "location", "lat": 15.49, "lng": 73.82, "accuracy": 20})
	f.handle(t, map[string]any{"type": "start_nav", "dest_lat": 15.55, "dest_lng": 73.75})
	f.tasks.RunAll()

	created := map[any]bool{}
	for _, m := range f.rec.primitives("create") {
		created[m["id"]] = true
	}
	for _, m := range f.rec.primitives("remove") {
		delete(created, m["id"])
	}

	f.session.close()
	f.session.close()

	for _, m := range f.rec.primitives("remove") {
		delete(created, m["id"])
	}
	if len(created) != 0 {
		t.Errorf("expected every primitive removed, %d left", len(created))
	}

	// messages after close are ignored
	n := len(f.rec.ofType("primitive"))
	f.handle(t, map[string]any{"type": "location", "lat": 15.5, "lng": 73.8})
	if len(f.rec.ofType("primitive")) != n {
		t.Error("expected no primitives after close")
	}
}

func TestNavSession_SearchAndSelect(t *testing.T) {
	search := ports.GeoSourceFunc(func(ctx context.Context, text string, limit int) ([]domain.PlaceCandidate, error) {
		return []domain.PlaceCandidate{{
			Name: "Calangute", Region: "Goa", DisplayLabel: "Calangute, Goa",
			Coordinate: domain.GeoPoint{Lat: 15.54, Lng: 73.76},
		}}, nil
	})
	f := newSessionFixture(t, search)

	f.handle(t, map[string]any{"type": "location", "lat": 15.49, "lng": 73.82})
	f.handle(t, map[string]any{"type": "focus", "focused": true})
	f.handle(t, map[string]any{"type": "query", "text": "cala"})
	f.clock.FireAll()

	var last map[string]any
	for _, m := range f.rec.ofType("suggestions") {
		last = m
	}
	if last == nil || last["text"] != "cala" || last["open"] != true {
		t.Fatalf("expected open suggestions for cala, got %v", last)
	}
	if results := last["results"].([]any); len(results) != 1 {
		t.Fatalf("expected 1 suggestion, got %d", len(results))
	}

	f.handle(t, map[string]any{"type": "select", "index": 0})

	var dest bool
	for _, m := range f.rec.primitives("create") {
		if m["kind"] == string(domain.PrimitiveDestinationMarker) && m["label"] == "Calangute, Goa" {
			dest = true
		}
	}
	if !dest {
		t.Error("expected destination marker for the selected place")
	}
}

func TestNavSession_BadMessages(t *testing.T) {
	f := newSessionFixture(t, nil)

	f.session.handle([]byte("{not json"))
	f.handle(t, map[string]any{"type": "teleport"})
	f.handle(t, map[string]any{"type": "location", "lat": 91, "lng": 0})
	f.handle(t, map[string]any{"type": "select", "index": 3})
	f.handle(t, map[string]any{"type": "follow", "device": "phone"})

	if errs := f.rec.ofType("error"); len(errs) != 5 {
		t.Errorf("expected 5 errors, got %d: %v", len(errs), errs)
	}
}
