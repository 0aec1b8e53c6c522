package nominatim_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/muesli/gominatim"

	"github.com/samirrijal/miniguide/internal/adapters/nominatim"
	"github.com/samirrijal/miniguide/internal/core/domain"
)

func newClient(fn func(q string, limit int) ([]gominatim.SearchResult, error)) *nominatim.Client {
	c := nominatim.NewClient(nominatim.Options{Rate: 1000, Country: "India"})
	nominatim.SetLookup(c, fn)
	return c
}

func TestClient_Search(t *testing.T) {
	var gotQ string
	var gotLimit int
	c := newClient(func(q string, limit int) ([]gominatim.SearchResult, error) {
		gotQ, gotLimit = q, limit
		return []gominatim.SearchResult{
			{Lat: "15.4909", Lon: "73.8278", DisplayName: "Panaji, Tiswadi, North Goa, Goa, 403001, India", Type: "city"},
			{Lat: "bad", Lon: "73.0", DisplayName: "Nowhere"},
			{Lat: "15.0", Lon: "74.0", DisplayName: ""},
		}, nil
	})

	got, err := c.Search(context.Background(), " panaji ", 8)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotQ != "panaji, India" {
		t.Errorf("expected country suffix, got %q", gotQ)
	}
	if gotLimit != nominatim.MaxResults {
		t.Errorf("expected limit capped at %d, got %d", nominatim.MaxResults, gotLimit)
	}
	if len(got) != 1 {
		t.Fatalf("expected 1 candidate, got %+v", got)
	}
	want := domain.PlaceCandidate{
		Name:         "Panaji",
		Region:       "Goa",
		DisplayLabel: "Panaji, Tiswadi, North Goa",
		Coordinate:   domain.GeoPoint{Lat: 15.4909, Lng: 73.8278},
		Type:         "city",
		Source:       domain.SourceLive,
	}
	if got[0] != want {
		t.Errorf("got %+v, want %+v", got[0], want)
	}
}

func TestClient_RetriesTransientErrors(t *testing.T) {
	var calls atomic.Int32
	c := newClient(func(string, int) ([]gominatim.SearchResult, error) {
		if calls.Add(1) == 1 {
			return nil, errors.New("unexpected EOF")
		}
		return []gominatim.SearchResult{{Lat: "26.9", Lon: "75.8", DisplayName: "Jaipur, Rajasthan, India"}}, nil
	})

	got, err := c.Search(context.Background(), "jaipur", 3)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls.Load() != 2 {
		t.Errorf("expected 2 attempts, got %d", calls.Load())
	}
	if len(got) != 1 || got[0].Region != "Rajasthan" {
		t.Errorf("unexpected result %+v", got)
	}
}

func TestClient_ErrorClassification(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want error
	}{
		{"transport", errors.New("dial tcp: connection refused"), domain.ErrNetwork},
		{"bad json", errors.New("invalid character '<' looking for beginning of value"), domain.ErrMalformedResponse},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c := newClient(func(string, int) ([]gominatim.SearchResult, error) { return nil, tc.err })
			_, err := c.Search(context.Background(), "x", 1)
			if !errors.Is(err, tc.want) {
				t.Errorf("expected %v, got %v", tc.want, err)
			}
		})
	}
}

func TestClient_ContextCancelAbandonsLookup(t *testing.T) {
	block := make(chan struct{})
	defer close(block)
	c := newClient(func(string, int) ([]gominatim.SearchResult, error) {
		<-block
		return nil, nil
	})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := c.Search(ctx, "slow", 1)
	if !errors.Is(err, domain.ErrNetwork) {
		t.Errorf("expected ErrNetwork after cancel, got %v", err)
	}
}
