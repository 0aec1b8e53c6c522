package natsadapter_test

import (
	"testing"

	natsadapter "github.com/samirrijal/miniguide/internal/adapters/nats"
	"github.com/samirrijal/miniguide/internal/core/domain"
)

func TestSubject(t *testing.T) {
	got, err := natsadapter.Subject(natsadapter.PositionSubjectPrefix, "phone-1")
	if err != nil || got != "navigation.position.phone-1" {
		t.Fatalf("got %q, %v", got, err)
	}
	for _, bad := range []string{"", "a.b", "*", ">", "has space"} {
		if _, err := natsadapter.Subject(natsadapter.RouteSubjectPrefix, bad); err == nil {
			t.Errorf("expected error for %q", bad)
		}
	}
}

func TestDecodePosition(t *testing.T) {
	pos, ok := natsadapter.DecodePosition([]byte(`{"session":"s","lat":15.49,"lng":73.82,"accuracy_m":12}`))
	if !ok {
		t.Fatal("expected valid position")
	}
	if pos != (domain.Position{Lat: 15.49, Lng: 73.82, Accuracy: 12}) {
		t.Errorf("unexpected position %+v", pos)
	}

	for _, bad := range []string{`nope`, `{"lat":91,"lng":0}`, `{"lat":0,"lng":-181}`} {
		if _, ok := natsadapter.DecodePosition([]byte(bad)); ok {
			t.Errorf("expected %s rejected", bad)
		}
	}
}
