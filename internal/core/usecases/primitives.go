package usecases

import (
	"errors"
	"fmt"

	"github.com/samirrijal/miniguide/internal/core/domain"
	"github.com/samirrijal/miniguide/internal/core/ports"
	"github.com/samirrijal/miniguide/internal/pkg/metrics"
)

type heldPrimitive struct {
	id   domain.PrimitiveID
	spec domain.PrimitiveSpec
}

// primitiveSet holds at most one canvas primitive per kind. Every creation
// goes through replace, which removes the previous instance first.
type primitiveSet struct {
	canvas ports.MapCanvas
	held   map[domain.PrimitiveKind]heldPrimitive
}

func newPrimitiveSet(canvas ports.MapCanvas) *primitiveSet {
	return &primitiveSet{
		canvas: canvas,
		held:   make(map[domain.PrimitiveKind]heldPrimitive, len(domain.PrimitiveKinds)),
	}
}

func (s *primitiveSet) replace(spec domain.PrimitiveSpec) error {
	if err := s.release(spec.Kind); err != nil {
		return err
	}
	id, err := s.canvas.Create(spec)
	if err != nil {
		return fmt.Errorf("create %s: %w", spec.Kind, err)
	}
	s.held[spec.Kind] = heldPrimitive{id: id, spec: spec}
	metrics.LivePrimitives.WithLabelValues(string(spec.Kind)).Inc()
	return nil
}

// release forgets the primitive even if the canvas refuses the removal.
func (s *primitiveSet) release(kind domain.PrimitiveKind) error {
	p, ok := s.held[kind]
	if !ok {
		return nil
	}
	delete(s.held, kind)
	metrics.LivePrimitives.WithLabelValues(string(kind)).Dec()
	if err := s.canvas.Remove(p.id); err != nil {
		return fmt.Errorf("remove %s: %w", kind, err)
	}
	return nil
}

func (s *primitiveSet) move(kind domain.PrimitiveKind, to domain.GeoPoint) error {
	p, ok := s.held[kind]
	if !ok {
		return nil
	}
	if err := s.canvas.Move(p.id, to); err != nil {
		return fmt.Errorf("move %s: %w", kind, err)
	}
	p.spec.Center = to
	s.held[kind] = p
	return nil
}

func (s *primitiveSet) releaseAll() error {
	var errs []error
	for i := len(domain.PrimitiveKinds) - 1; i >= 0; i-- {
		if err := s.release(domain.PrimitiveKinds[i]); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (s *primitiveSet) ids() map[domain.PrimitiveKind]domain.PrimitiveID {
	out := make(map[domain.PrimitiveKind]domain.PrimitiveID, len(s.held))
	for k, p := range s.held {
		out[k] = p.id
	}
	return out
}
