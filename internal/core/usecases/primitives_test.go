package usecases

import (
	"errors"
	"testing"

	"github.com/samirrijal/miniguide/internal/core/domain"
)

type recordingCanvas struct {
	n         int
	ops       []string
	failMoves bool
}

func (c *recordingCanvas) Create(spec domain.PrimitiveSpec) (domain.PrimitiveID, error) {
	c.n++
	c.ops = append(c.ops, "create "+string(spec.Kind))
	return domain.PrimitiveID(string(spec.Kind) + string(rune('0'+c.n))), nil
}

func (c *recordingCanvas) Move(id domain.PrimitiveID, _ domain.GeoPoint) error {
	if c.failMoves {
		return errors.New("gone")
	}
	c.ops = append(c.ops, "move "+string(id))
	return nil
}

func (c *recordingCanvas) Remove(id domain.PrimitiveID) error {
	c.ops = append(c.ops, "remove "+string(id))
	return nil
}

func (c *recordingCanvas) PanTo(domain.GeoPoint) error   { return nil }
func (c *recordingCanvas) FitBounds(domain.Bounds) error { return nil }

func TestPrimitiveSet_ReplaceRemovesFirst(t *testing.T) {
	c := &recordingCanvas{}
	s := newPrimitiveSet(c)

	_ = s.replace(domain.PrimitiveSpec{Kind: domain.PrimitiveRouteLine})
	_ = s.replace(domain.PrimitiveSpec{Kind: domain.PrimitiveRouteLine})

	want := []string{"create route_line", "remove route_line1", "create route_line"}
	if len(c.ops) != len(want) {
		t.Fatalf("ops = %v, want %v", c.ops, want)
	}
	for i := range want {
		if c.ops[i] != want[i] {
			t.Errorf("op %d = %q, want %q", i, c.ops[i], want[i])
		}
	}
	if len(s.ids()) != 1 {
		t.Errorf("expected one held primitive, got %d", len(s.ids()))
	}
}

func TestPrimitiveSet_MoveUnknownKindIsNoop(t *testing.T) {
	c := &recordingCanvas{}
	s := newPrimitiveSet(c)
	if err := s.move(domain.PrimitiveSelfMarker, domain.GeoPoint{}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(c.ops) != 0 {
		t.Errorf("expected no canvas calls, got %v", c.ops)
	}
}

func TestPrimitiveSet_MoveErrorIsWrapped(t *testing.T) {
	c := &recordingCanvas{failMoves: true}
	s := newPrimitiveSet(c)
	_ = s.replace(domain.PrimitiveSpec{Kind: domain.PrimitiveSelfMarker})

	if err := s.move(domain.PrimitiveSelfMarker, domain.GeoPoint{Lat: 1}); err == nil {
		t.Fatal("expected move error")
	}
}

func TestPrimitiveSet_ReleaseAll(t *testing.T) {
	c := &recordingCanvas{}
	s := newPrimitiveSet(c)
	for _, k := range domain.PrimitiveKinds {
		_ = s.replace(domain.PrimitiveSpec{Kind: k})
	}
	if err := s.releaseAll(); err != nil {
		t.Fatal(err)
	}
	if len(s.ids()) != 0 {
		t.Errorf("expected nothing held, got %v", s.ids())
	}
	removes := 0
	for _, op := range c.ops {
		if len(op) > 6 && op[:6] == "remove" {
			removes++
		}
	}
	if removes != len(domain.PrimitiveKinds) {
		t.Errorf("expected %d removes, got %d", len(domain.PrimitiveKinds), removes)
	}
}
