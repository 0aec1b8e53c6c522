package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/samirrijal/miniguide/internal/adapters/places"
	"github.com/samirrijal/miniguide/internal/core/domain"
	"github.com/samirrijal/miniguide/internal/core/ports"
	"github.com/samirrijal/miniguide/internal/core/usecases"
	"github.com/samirrijal/miniguide/internal/pkg/metrics"
)

// SessionConfig wires the components each navigation session owns.
type SessionConfig struct {
	// Search is the primary keystroke source; Fallback answers when it fails.
	Search   ports.GeoSource
	Fallback ports.GeoSource
	Popular  []domain.PlaceCandidate
	Routing  ports.RoutingService

	Debounce       time.Duration
	MinQueryLength int
	Limit          int
	RouteTimeout   time.Duration
	OffRouteMeters float64

	// Feeds resolves a device id to a position feed; nil disables follow.
	Feeds func(device string) ports.PositionFeed
	// Publisher fans positions and route updates out; optional.
	Publisher ports.EventPublisher

	// Clock and Spawn override the orchestrator and fetcher scheduling.
	Clock  usecases.Clock
	Spawn  func(func())
	Logger *slog.Logger
}

// clientMessage is any client to server message; Type selects the fields.
type clientMessage struct {
	Type     string   `json:"type"`
	Lat      *float64 `json:"lat"`
	Lng      *float64 `json:"lng"`
	Accuracy float64  `json:"accuracy"`
	DestLat  *float64 `json:"dest_lat"`
	DestLng  *float64 `json:"dest_lng"`
	Label    string   `json:"label"`
	Device   string   `json:"device"`
	Text     string   `json:"text"`
	Focused  bool     `json:"focused"`
	Index    *int     `json:"index"`
}

type sessionMsg struct {
	Type string `json:"type"`
	ID   string `json:"id"`
}

type primitiveMsg struct {
	Type   string               `json:"type"`
	Op     string               `json:"op"`
	ID     domain.PrimitiveID   `json:"id"`
	Kind   domain.PrimitiveKind `json:"kind,omitempty"`
	Center *domain.GeoPoint     `json:"center,omitempty"`
	Radius float64              `json:"radius_m,omitempty"`
	Path   []domain.GeoPoint    `json:"path,omitempty"`
	Label  string               `json:"label,omitempty"`
}

type viewportMsg struct {
	Type   string           `json:"type"`
	Op     string           `json:"op"`
	Center *domain.GeoPoint `json:"center,omitempty"`
	Bounds *domain.Bounds   `json:"bounds,omitempty"`
}

type routeUpdateMsg struct {
	Type    string               `json:"type"`
	State   domain.RouteState    `json:"state"`
	Reason  domain.RouteReason   `json:"reason,omitempty"`
	Summary *domain.RouteSummary `json:"summary"`
}

type suggestionsMsg struct {
	Type    string            `json:"type"`
	Text    string            `json:"text"`
	Seq     uint64            `json:"seq"`
	Open    bool              `json:"open"`
	Source  domain.SourceKind `json:"source,omitempty"`
	Results []places.Result   `json:"results"`
}

type errorMsg struct {
	Type   string `json:"type"`
	Detail string `json:"detail"`
}

// wsCanvas renders engine primitives by streaming them to the client.
type wsCanvas struct {
	send func(any)
}

func (w *wsCanvas) Create(spec domain.PrimitiveSpec) (domain.PrimitiveID, error) {
	id := domain.PrimitiveID(uuid.NewString())
	msg := primitiveMsg{Type: "primitive", Op: "create", ID: id, Kind: spec.Kind, Radius: spec.Radius, Label: spec.Label}
	if len(spec.Path) > 0 {
		msg.Path = spec.Path
	} else {
		center := spec.Center
		msg.Center = &center
	}
	w.send(msg)
	return id, nil
}

func (w *wsCanvas) Move(id domain.PrimitiveID, to domain.GeoPoint) error {
	w.send(primitiveMsg{Type: "primitive", Op: "move", ID: id, Center: &to})
	return nil
}

func (w *wsCanvas) Remove(id domain.PrimitiveID) error {
	w.send(primitiveMsg{Type: "primitive", Op: "remove", ID: id})
	return nil
}

func (w *wsCanvas) PanTo(center domain.GeoPoint) error {
	w.send(viewportMsg{Type: "viewport", Op: "pan", Center: &center})
	return nil
}

func (w *wsCanvas) FitBounds(b domain.Bounds) error {
	w.send(viewportMsg{Type: "viewport", Op: "fit", Bounds: &b})
	return nil
}

// navSession is one connected client: a search orchestrator plus a live sync
// engine created on the first location.
type navSession struct {
	id   string
	cfg  SessionConfig
	send func(any)
	log  *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	evMu     sync.Mutex
	events   chan func()
	evClosed bool

	search *usecases.SearchOrchestrator
	canvas *wsCanvas

	mu     sync.Mutex
	engine *usecases.LiveSync
	closed bool
}

func newNavSession(id string, cfg SessionConfig, send func(any)) *navSession {
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())
	s := &navSession{
		id:     id,
		cfg:    cfg,
		send:   send,
		log:    log.With("session", id),
		ctx:    ctx,
		cancel: cancel,
		events: make(chan func(), 64),
		canvas: &wsCanvas{send: send},
	}
	fallback := cfg.Fallback
	if fallback == nil {
		fallback = ports.GeoSourceFunc(func(context.Context, string, int) ([]domain.PlaceCandidate, error) {
			return nil, nil
		})
	}
	primary := cfg.Search
	if primary == nil {
		primary = fallback
	}
	s.search = usecases.NewSearchOrchestrator(primary, fallback, usecases.SearchOptions{
		Debounce:       cfg.Debounce,
		MinQueryLength: cfg.MinQueryLength,
		Limit:          cfg.Limit,
		Popular:        cfg.Popular,
		Clock:          cfg.Clock,
		Logger:         s.log,
		OnResults:      s.onResults,
	})

	s.wg.Add(1)
	go s.drainEvents()

	metrics.ActiveSessions.Inc()
	send(sessionMsg{Type: "session", ID: id})
	return s
}

// drainEvents runs broker publishes in order, off the engine lock.
func (s *navSession) drainEvents() {
	defer s.wg.Done()
	for fn := range s.events {
		fn()
	}
}

func (s *navSession) enqueue(fn func()) {
	s.evMu.Lock()
	defer s.evMu.Unlock()
	if s.evClosed {
		return
	}
	select {
	case s.events <- fn:
	default:
		s.log.Warn("event queue full, dropping publish")
	}
}

func (s *navSession) onResults(r domain.SearchResults) {
	results := make([]places.Result, len(r.Candidates))
	for i, c := range r.Candidates {
		results[i] = places.FromCandidate(c)
	}
	s.send(suggestionsMsg{
		Type:    "suggestions",
		Text:    r.Query.Text,
		Seq:     r.Query.Seq,
		Open:    r.Open,
		Source:  r.Source,
		Results: results,
	})
}

func (s *navSession) onRoute(u domain.RouteUpdate) {
	s.send(routeUpdateMsg{Type: "route_update", State: u.State, Reason: u.Reason, Summary: u.Summary})
	if pub := s.cfg.Publisher; pub != nil {
		s.enqueue(func() {
			if err := pub.PublishRoute(s.ctx, s.id, u); err != nil {
				s.log.Warn("publish route update", "error", err)
			}
		})
	}
}

func (s *navSession) fail(detail string) {
	s.send(errorMsg{Type: "error", Detail: detail})
}

// handle processes one raw client message.
func (s *navSession) handle(raw []byte) {
	var m clientMessage
	if err := json.Unmarshal(raw, &m); err != nil {
		s.fail("invalid JSON")
		return
	}

	switch m.Type {
	case "location":
		if m.Lat == nil || m.Lng == nil {
			s.fail("lat and lng are required")
			return
		}
		s.location(domain.Position{Lat: *m.Lat, Lng: *m.Lng, Accuracy: m.Accuracy})
	case "start_nav":
		if m.DestLat == nil || m.DestLng == nil {
			s.fail("dest_lat and dest_lng are required")
			return
		}
		s.navigate(&domain.Destination{Point: domain.GeoPoint{Lat: *m.DestLat, Lng: *m.DestLng}, Label: m.Label})
	case "stop_nav":
		s.stop()
	case "follow":
		s.follow(m.Device)
	case "query":
		s.search.QueryChanged(m.Text)
	case "focus":
		s.search.SetFocus(m.Focused)
	case "select":
		s.selectCandidate(m.Index)
	default:
		s.fail(fmt.Sprintf("unknown message type %q", m.Type))
	}
}

func (s *navSession) location(p domain.Position) {
	if !p.Point().Valid() {
		s.fail(domain.ErrInvalidCoordinate.Error())
		return
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	engine := s.engine
	if engine == nil {
		var err error
		engine, err = s.newEngine(p)
		if err != nil {
			s.mu.Unlock()
			s.fail(err.Error())
			return
		}
		s.engine = engine
	}
	s.mu.Unlock()

	if err := engine.UpdatePosition(p); err != nil && !errors.Is(err, domain.ErrTornDown) {
		s.fail(err.Error())
		return
	}
	if pub := s.cfg.Publisher; pub != nil {
		s.enqueue(func() {
			if err := pub.PublishPosition(s.ctx, s.id, p); err != nil {
				s.log.Warn("publish position", "error", err)
			}
		})
	}
}

func (s *navSession) newEngine(initial domain.Position) (*usecases.LiveSync, error) {
	fetcher := usecases.NewRouteFetcher(s.cfg.Routing, usecases.RouteFetcherOptions{
		Timeout: s.cfg.RouteTimeout,
		Spawn:   s.cfg.Spawn,
		Logger:  s.log,
	})
	return usecases.NewLiveSync(s.canvas, fetcher, initial, usecases.LiveSyncOptions{
		OffRouteMeters: s.cfg.OffRouteMeters,
		Logger:         s.log,
		OnRoute:        s.onRoute,
	})
}

func (s *navSession) currentEngine() *usecases.LiveSync {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.engine
}

func (s *navSession) navigate(d *domain.Destination) {
	engine := s.currentEngine()
	if engine == nil {
		s.fail("send a location before starting navigation")
		return
	}
	if err := engine.SetDestination(d); err != nil {
		s.fail(err.Error())
	}
}

func (s *navSession) stop() {
	if engine := s.currentEngine(); engine != nil {
		if err := engine.ClearDestination(); err != nil && !errors.Is(err, domain.ErrTornDown) {
			s.log.Warn("clear destination", "error", err)
		}
	}
	s.send(sessionMsg{Type: "nav_stopped", ID: s.id})
}

func (s *navSession) follow(device string) {
	if s.cfg.Feeds == nil {
		s.fail("position feeds are not configured")
		return
	}
	if device == "" {
		s.fail("device is required")
		return
	}
	engine := s.currentEngine()
	if engine == nil {
		s.fail("send a location before following a device")
		return
	}
	if err := engine.Follow(s.ctx, s.cfg.Feeds(device)); err != nil {
		s.fail(err.Error())
	}
}

func (s *navSession) selectCandidate(index *int) {
	results := s.search.Results()
	if index == nil || *index < 0 || *index >= len(results.Candidates) {
		s.fail("select index out of range")
		return
	}
	c := results.Candidates[*index]
	s.search.Select(c)
	if s.currentEngine() != nil {
		s.navigate(&domain.Destination{Point: c.Coordinate, Label: c.DisplayLabel})
	}
}

// close disposes the engine and stops the orchestrator. It is idempotent.
func (s *navSession) close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	engine := s.engine
	s.mu.Unlock()

	s.search.Close()
	if engine != nil {
		if err := engine.Dispose(); err != nil {
			s.log.Warn("dispose live sync", "error", err)
		}
	}
	s.cancel()
	s.evMu.Lock()
	s.evClosed = true
	close(s.events)
	s.evMu.Unlock()
	s.wg.Wait()
	metrics.ActiveSessions.Dec()
}
