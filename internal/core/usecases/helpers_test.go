package usecases_test

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/samirrijal/miniguide/internal/core/domain"
	"github.com/samirrijal/miniguide/internal/core/usecases"
)

// --- Fake clock ---

type fakeTimer struct {
	c       *fakeClock
	at      time.Time
	f       func()
	stopped bool
	fired   bool
}

func (t *fakeTimer) Stop() bool {
	t.c.mu.Lock()
	defer t.c.mu.Unlock()
	was := !t.stopped && !t.fired
	t.stopped = true
	return was
}

type fakeClock struct {
	mu     sync.Mutex
	now    time.Time
	timers []*fakeTimer
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) AfterFunc(d time.Duration, f func()) usecases.Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &fakeTimer{c: c, at: c.now.Add(d), f: f}
	c.timers = append(c.timers, t)
	return t
}

// Advance moves time forward and runs due timers inline, in deadline order.
func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	var due []*fakeTimer
	for _, t := range c.timers {
		if !t.stopped && !t.fired && !t.at.After(c.now) {
			t.fired = true
			due = append(due, t)
		}
	}
	c.mu.Unlock()
	for _, t := range due {
		t.f()
	}
}

func (c *fakeClock) pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, t := range c.timers {
		if !t.stopped && !t.fired {
			n++
		}
	}
	return n
}

// --- Spawn queue: captures async work so tests pick completion order ---

type spawnQueue struct {
	mu    sync.Mutex
	tasks []func()
}

func (q *spawnQueue) Spawn(f func()) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.tasks = append(q.tasks, f)
}

func (q *spawnQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.tasks)
}

// Run executes the i-th captured task (in capture order).
func (q *spawnQueue) Run(i int) {
	q.mu.Lock()
	f := q.tasks[i]
	q.mu.Unlock()
	f()
}

// RunOrder executes captured tasks in the given order.
func (q *spawnQueue) RunOrder(order ...int) {
	for _, i := range order {
		q.Run(i)
	}
}

// --- Mock GeoSource ---

type mockGeoSource struct {
	mu       sync.Mutex
	searchFn func(ctx context.Context, text string, limit int) ([]domain.PlaceCandidate, error)
	calls    []string
}

func (m *mockGeoSource) Search(ctx context.Context, text string, limit int) ([]domain.PlaceCandidate, error) {
	m.mu.Lock()
	m.calls = append(m.calls, text)
	m.mu.Unlock()
	if m.searchFn != nil {
		return m.searchFn(ctx, text, limit)
	}
	return nil, nil
}

func (m *mockGeoSource) Calls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.calls...)
}

func named(names ...string) []domain.PlaceCandidate {
	out := make([]domain.PlaceCandidate, len(names))
	for i, n := range names {
		out[i] = domain.PlaceCandidate{Name: n, Region: "Test", DisplayLabel: n + ", Test"}
	}
	return out
}

func names(cands []domain.PlaceCandidate) []string {
	out := make([]string, len(cands))
	for i, c := range cands {
		out[i] = c.Name
	}
	return out
}

// --- Fake map canvas ---

type canvasOp struct {
	Op   string
	ID   domain.PrimitiveID
	Kind domain.PrimitiveKind
}

type fakeCanvas struct {
	mu      sync.Mutex
	next    int
	live    map[domain.PrimitiveID]domain.PrimitiveSpec
	ops     []canvasOp
	pans    []domain.GeoPoint
	fits    []domain.Bounds
	foreign domain.PrimitiveID
	failOn  domain.PrimitiveKind
}

func newFakeCanvas() *fakeCanvas {
	c := &fakeCanvas{live: make(map[domain.PrimitiveID]domain.PrimitiveSpec)}
	// an overlay the engine does not own
	c.foreign = "foreign-overlay"
	c.live[c.foreign] = domain.PrimitiveSpec{Kind: "tile_overlay"}
	return c
}

func (c *fakeCanvas) Create(spec domain.PrimitiveSpec) (domain.PrimitiveID, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.failOn != "" && spec.Kind == c.failOn {
		return "", fmt.Errorf("canvas refused %s", spec.Kind)
	}
	c.next++
	id := domain.PrimitiveID(fmt.Sprintf("p%d", c.next))
	c.live[id] = spec
	c.ops = append(c.ops, canvasOp{Op: "create", ID: id, Kind: spec.Kind})
	return id, nil
}

func (c *fakeCanvas) Move(id domain.PrimitiveID, to domain.GeoPoint) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	spec, ok := c.live[id]
	if !ok {
		return fmt.Errorf("move of unknown primitive %s", id)
	}
	spec.Center = to
	c.live[id] = spec
	c.ops = append(c.ops, canvasOp{Op: "move", ID: id, Kind: spec.Kind})
	return nil
}

func (c *fakeCanvas) Remove(id domain.PrimitiveID) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	spec, ok := c.live[id]
	if !ok {
		return fmt.Errorf("remove of unknown primitive %s", id)
	}
	delete(c.live, id)
	c.ops = append(c.ops, canvasOp{Op: "remove", ID: id, Kind: spec.Kind})
	return nil
}

func (c *fakeCanvas) PanTo(center domain.GeoPoint) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pans = append(c.pans, center)
	return nil
}

func (c *fakeCanvas) FitBounds(b domain.Bounds) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.fits = append(c.fits, b)
	return nil
}

// countKind returns how many live primitives of kind exist.
func (c *fakeCanvas) countKind(kind domain.PrimitiveKind) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, s := range c.live {
		if s.Kind == kind {
			n++
		}
	}
	return n
}

func (c *fakeCanvas) specOf(kind domain.PrimitiveKind) (domain.PrimitiveSpec, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, s := range c.live {
		if s.Kind == kind {
			return s, true
		}
	}
	return domain.PrimitiveSpec{}, false
}

// owned returns the number of live primitives excluding the foreign overlay.
func (c *fakeCanvas) owned() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := len(c.live)
	if _, ok := c.live[c.foreign]; ok {
		n--
	}
	return n
}

func (c *fakeCanvas) opCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.ops) + len(c.pans) + len(c.fits)
}

func (c *fakeCanvas) panCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pans)
}

func (c *fakeCanvas) fitCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.fits)
}

// --- Mock RoutingService ---

type routeCall struct {
	From, To domain.GeoPoint
}

type mockRouting struct {
	mu      sync.Mutex
	routeFn func(ctx context.Context, from, to domain.GeoPoint) (domain.RouteResult, error)
	calls   []routeCall
}

func (m *mockRouting) Route(ctx context.Context, from, to domain.GeoPoint) (domain.RouteResult, error) {
	m.mu.Lock()
	m.calls = append(m.calls, routeCall{From: from, To: to})
	m.mu.Unlock()
	if m.routeFn != nil {
		return m.routeFn(ctx, from, to)
	}
	return straightRoute(from, to, 1500, 200), nil
}

func (m *mockRouting) Calls() []routeCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]routeCall(nil), m.calls...)
}

func straightRoute(from, to domain.GeoPoint, meters, seconds float64) domain.RouteResult {
	return domain.RouteResult{
		Path:            []domain.GeoPoint{from, to},
		DistanceMeters:  meters,
		DurationSeconds: seconds,
	}
}

// --- Route update recorder ---

type routeRecorder struct {
	mu      sync.Mutex
	updates []domain.RouteUpdate
}

func (r *routeRecorder) record(u domain.RouteUpdate) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.updates = append(r.updates, u)
}

func (r *routeRecorder) all() []domain.RouteUpdate {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]domain.RouteUpdate(nil), r.updates...)
}

func (r *routeRecorder) last() (domain.RouteUpdate, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.updates) == 0 {
		return domain.RouteUpdate{}, false
	}
	return r.updates[len(r.updates)-1], true
}
