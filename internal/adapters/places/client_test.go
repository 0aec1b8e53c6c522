package places_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/samirrijal/miniguide/internal/adapters/places"
	"github.com/samirrijal/miniguide/internal/core/domain"
)

func TestClient_Search(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/search-places" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.URL.Query().Get("q") != "Del" || r.URL.Query().Get("limit") != "5" {
			t.Errorf("unexpected query %s", r.URL.RawQuery)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"results":[
			{"name":"Delhi","region":"Delhi","displayLabel":"Delhi, Delhi","lat":28.6139,"lng":77.209,"type":"city"},
			{"name":"","region":"x","lat":1,"lng":1},
			{"name":"Broken","lat":123,"lng":0}
		]}`))
	}))
	defer srv.Close()

	got, err := places.NewClient(srv.URL+"/", 0).Search(context.Background(), "Del", 5)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected invalid rows dropped, got %+v", got)
	}
	if got[0].Name != "Delhi" || got[0].Coordinate.Lng != 77.209 || got[0].Source != domain.SourceLive {
		t.Errorf("unexpected candidate %+v", got[0])
	}
}

func TestClient_Errors(t *testing.T) {
	cases := []struct {
		name   string
		status int
		body   string
		want   error
	}{
		{"server error", http.StatusServiceUnavailable, `{}`, domain.ErrNetwork},
		{"not json", http.StatusOK, `<html>`, domain.ErrMalformedResponse},
		{"missing results", http.StatusOK, `{"items":[]}`, domain.ErrMalformedResponse},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
				_, _ = w.Write([]byte(tc.body))
			}))
			defer srv.Close()

			_, err := places.NewClient(srv.URL, 0).Search(context.Background(), "Delhi", 5)
			if !errors.Is(err, tc.want) {
				t.Errorf("expected %v, got %v", tc.want, err)
			}
		})
	}
}

func TestClient_TransportFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	srv.Close()

	_, err := places.NewClient(srv.URL, 0).Search(context.Background(), "Delhi", 5)
	if !errors.Is(err, domain.ErrNetwork) {
		t.Errorf("expected ErrNetwork, got %v", err)
	}
}
