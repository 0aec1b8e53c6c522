package photon_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/samirrijal/miniguide/internal/adapters/photon"
	"github.com/samirrijal/miniguide/internal/core/domain"
)

const sampleBody = `{"features":[
 {"geometry":{"coordinates":[73.8278,15.4909]},"properties":{"name":"Panaji","city":"Panaji","state":"Goa","country":"India","osm_value":"city"}},
 {"geometry":{"coordinates":[73.97,15.28]},"properties":{"name":"Margao Market","city":"Margao","state":"Goa","country":"India","type":"house"}},
 {"geometry":{"coordinates":[-9.1,38.7]},"properties":{"name":"Lisbon","state":"Lisboa","country":"Portugal"}},
 {"geometry":{"coordinates":[74.0]},"properties":{"name":"Broken","country":"India"}},
 {"geometry":{"coordinates":[74.1,15.1]},"properties":{"county":"South Goa","state":"Goa","country":"India"}}
]}`

func TestClient_Search(t *testing.T) {
	var gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.RawQuery
		if ua := r.Header.Get("User-Agent"); ua != "test-agent" {
			t.Errorf("unexpected user agent %q", ua)
		}
		_, _ = w.Write([]byte(sampleBody))
	}))
	defer srv.Close()

	c := photon.NewClient(srv.URL, photon.Options{
		BBox:      "68.0,6.0,98.0,36.0",
		Lang:      "en",
		Country:   "India",
		UserAgent: "test-agent",
	})
	got, err := c.Search(context.Background(), "goa", 8)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotQuery != "bbox=68.0%2C6.0%2C98.0%2C36.0&lang=en&limit=8&q=goa" {
		t.Errorf("unexpected query %q", gotQuery)
	}
	if len(got) != 3 {
		t.Fatalf("expected 3 candidates, got %d: %+v", len(got), got)
	}

	if got[0].Name != "Panaji" || got[0].DisplayLabel != "Panaji, Goa" || got[0].Type != "city" {
		t.Errorf("unexpected first candidate %+v", got[0])
	}
	if got[0].Coordinate != (domain.GeoPoint{Lat: 15.4909, Lng: 73.8278}) {
		t.Errorf("coordinates not swapped from lng,lat: %+v", got[0].Coordinate)
	}
	if got[1].DisplayLabel != "Margao Market, Margao, Goa" || got[1].Type != "house" {
		t.Errorf("unexpected second candidate %+v", got[1])
	}
	if got[2].Name != "South Goa" {
		t.Errorf("expected county fallback for name, got %q", got[2].Name)
	}
	for _, c := range got {
		if c.Source != domain.SourceLive {
			t.Errorf("expected live source, got %s", c.Source)
		}
	}
}

func TestClient_Limit(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(sampleBody))
	}))
	defer srv.Close()

	got, err := photon.NewClient(srv.URL, photon.Options{}).Search(context.Background(), "goa", 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 2 {
		t.Errorf("expected 2 candidates, got %d", len(got))
	}
}

func TestClient_Errors(t *testing.T) {
	cases := []struct {
		name   string
		status int
		body   string
		want   error
	}{
		{"rate limited", http.StatusTooManyRequests, ``, domain.ErrNetwork},
		{"garbage", http.StatusOK, `not json`, domain.ErrMalformedResponse},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
				_, _ = w.Write([]byte(tc.body))
			}))
			defer srv.Close()

			_, err := photon.NewClient(srv.URL, photon.Options{}).Search(context.Background(), "goa", 5)
			if !errors.Is(err, tc.want) {
				t.Errorf("expected %v, got %v", tc.want, err)
			}
		})
	}
}
