// Package geoclue reads device positions from GeoClue2 over the system D-Bus.
//
// GeoClue only serves clients whose DesktopId matches an installed .desktop
// file carrying X-Geoclue-2-Client=true; without it Start fails with
// AccessDenied or never produces a location.
package geoclue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/godbus/dbus/v5"

	"github.com/samirrijal/miniguide/internal/core/domain"
)

const (
	geoService    = "org.freedesktop.GeoClue2"
	managerPath   = dbus.ObjectPath("/org/freedesktop/GeoClue2/Manager")
	managerIface  = "org.freedesktop.GeoClue2.Manager"
	clientIface   = "org.freedesktop.GeoClue2.Client"
	locationIface = "org.freedesktop.GeoClue2.Location"
	propsIface    = "org.freedesktop.DBus.Properties"
)

const (
	maxInitialRetries = 5
	retryBaseDelay    = 2 * time.Second
	retryMaxDelay     = 30 * time.Second
)

// Accuracy levels from the GeoClue2 API.
const (
	AccuracyCity   uint32 = 4
	AccuracyStreet uint32 = 6
	AccuracyExact  uint32 = 8
)

// Options configure the GeoClue client.
type Options struct {
	DesktopID         string
	Accuracy          uint32
	DistanceThreshold uint32 // metres between updates
	TimeThreshold     uint32 // seconds between updates
	Logger            *slog.Logger
}

// Feed implements ports.PositionFeed.
type Feed struct {
	opts Options
	log  *slog.Logger
}

func NewFeed(opts Options) *Feed {
	if opts.Accuracy == 0 {
		opts.Accuracy = AccuracyExact
	}
	if opts.DistanceThreshold == 0 {
		opts.DistanceThreshold = 25
	}
	if opts.TimeThreshold == 0 {
		opts.TimeThreshold = 5
	}
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	return &Feed{opts: opts, log: log.With("feed", "geoclue")}
}

// Subscribe starts a background loop that keeps a GeoClue client running,
// reconnecting with backoff, until cancel is called or ctx is done.
func (f *Feed) Subscribe(ctx context.Context, handler func(domain.Position)) (func(), error) {
	if f.opts.DesktopID == "" {
		return nil, errors.New("geoclue: desktop id is required")
	}
	ctx, cancel := context.WithCancel(ctx)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		f.run(ctx, handler)
	}()
	return func() {
		cancel()
		wg.Wait()
	}, nil
}

func (f *Feed) run(ctx context.Context, handler func(domain.Position)) {
	var attempt int
	for {
		if ctx.Err() != nil {
			return
		}
		err := f.session(ctx, handler)
		if err == nil {
			return
		}
		attempt++
		delay := RetryDelay(attempt)
		f.log.Warn("geoclue session failed, retrying", "error", err, "attempt", attempt, "delay", delay)
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return
		}
	}
}

// RetryDelay grows linearly for the first attempts, then stays at 30s.
func RetryDelay(attempt int) time.Duration {
	if attempt <= maxInitialRetries {
		return retryBaseDelay * time.Duration(attempt)
	}
	return retryMaxDelay
}

// session runs one client until ctx is done (nil) or the bus fails.
func (f *Feed) session(ctx context.Context, handler func(domain.Position)) error {
	bus, err := dbus.ConnectSystemBus()
	if err != nil {
		return fmt.Errorf("connect system bus: %w", err)
	}
	defer func() {
		_ = bus.Close()
	}()

	cl, err := f.newClient(bus)
	if err != nil {
		return err
	}
	defer cl.stop()

	if call := cl.obj().Call(clientIface+".Start", 0); call.Err != nil {
		return fmt.Errorf("start client: %w", call.Err)
	}

	if path, err := cl.locationPath(); err == nil && path != "" {
		if pos, ok := cl.read(path); ok {
			handler(pos)
		}
	}
	return cl.listen(ctx, handler)
}

type client struct {
	bus  *dbus.Conn
	path dbus.ObjectPath
}

func (f *Feed) newClient(bus *dbus.Conn) (*client, error) {
	var path dbus.ObjectPath
	call := bus.Object(geoService, managerPath).Call(managerIface+".CreateClient", 0)
	if call.Err != nil {
		return nil, fmt.Errorf("create client: %w", call.Err)
	}
	if err := call.Store(&path); err != nil {
		return nil, fmt.Errorf("create client: %w", err)
	}
	cl := &client{bus: bus, path: path}

	if err := cl.set("DesktopId", f.opts.DesktopID); err != nil {
		return nil, fmt.Errorf("set DesktopId: %w", err)
	}
	if err := cl.set("RequestedAccuracyLevel", f.opts.Accuracy); err != nil {
		return nil, fmt.Errorf("set accuracy: %w", err)
	}
	_ = cl.set("DistanceThreshold", f.opts.DistanceThreshold)
	_ = cl.set("TimeThreshold", f.opts.TimeThreshold)
	return cl, nil
}

func (c *client) obj() dbus.BusObject {
	return c.bus.Object(geoService, c.path)
}

func (c *client) set(name string, val any) error {
	return c.obj().Call(propsIface+".Set", 0, clientIface, name, dbus.MakeVariant(val)).Err
}

func (c *client) stop() {
	_ = c.obj().Call(clientIface+".Stop", 0)
}

func (c *client) locationPath() (dbus.ObjectPath, error) {
	var v dbus.Variant
	call := c.obj().Call(propsIface+".Get", 0, clientIface, "Location")
	if call.Err != nil {
		return "", call.Err
	}
	if err := call.Store(&v); err != nil {
		return "", err
	}
	path, _ := v.Value().(dbus.ObjectPath)
	return path, nil
}

func (c *client) listen(ctx context.Context, handler func(domain.Position)) error {
	rule := fmt.Sprintf("type='signal',interface='%s',path='%s'", propsIface, c.path)
	if call := c.bus.BusObject().Call("org.freedesktop.DBus.AddMatch", 0, rule); call.Err != nil {
		return fmt.Errorf("add match: %w", call.Err)
	}
	sigCh := make(chan *dbus.Signal, 10)
	c.bus.Signal(sigCh)
	defer c.bus.RemoveSignal(sigCh)

	for {
		select {
		case <-ctx.Done():
			return nil
		case sig, ok := <-sigCh:
			if !ok || sig == nil {
				return errors.New("dbus signal channel closed")
			}
			path, ok := LocationFromSignal(sig, c.path)
			if !ok {
				continue
			}
			if pos, ok := c.read(path); ok {
				handler(pos)
			}
		}
	}
}

func (c *client) read(path dbus.ObjectPath) (domain.Position, bool) {
	var props map[string]dbus.Variant
	call := c.bus.Object(geoService, path).Call(propsIface+".GetAll", 0, locationIface)
	if call.Err != nil {
		return domain.Position{}, false
	}
	if err := call.Store(&props); err != nil {
		return domain.Position{}, false
	}
	return ParseFix(props)
}

// LocationFromSignal extracts the new Location object path from a
// PropertiesChanged signal emitted by the client at clientPath.
func LocationFromSignal(sig *dbus.Signal, clientPath dbus.ObjectPath) (dbus.ObjectPath, bool) {
	if sig.Name != propsIface+".PropertiesChanged" || sig.Path != clientPath || len(sig.Body) < 2 {
		return "", false
	}
	changed, ok := sig.Body[1].(map[string]dbus.Variant)
	if !ok {
		return "", false
	}
	v, ok := changed["Location"]
	if !ok {
		return "", false
	}
	path, ok := v.Value().(dbus.ObjectPath)
	return path, ok && path != "" && path != "/"
}

// ParseFix converts Location properties into a position. The 0,0 fix GeoClue
// reports before it has data is rejected.
func ParseFix(props map[string]dbus.Variant) (domain.Position, bool) {
	f64 := func(key string) float64 {
		if v, ok := props[key]; ok {
			if f, ok := v.Value().(float64); ok {
				return f
			}
		}
		return 0
	}
	pos := domain.Position{
		Lat:      f64("Latitude"),
		Lng:      f64("Longitude"),
		Accuracy: f64("Accuracy"),
	}
	if pos.Lat == 0 && pos.Lng == 0 {
		return domain.Position{}, false
	}
	if !pos.Point().Valid() {
		return domain.Position{}, false
	}
	return pos, true
}
