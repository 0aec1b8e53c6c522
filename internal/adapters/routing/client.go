// Package routing fetches driving routes from an OSRM compatible service.
package routing

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/samirrijal/miniguide/internal/core/domain"
)

// Path styles.
const (
	// StyleQuery calls <base>/route?from=lng,lat&to=lng,lat.
	StyleQuery = "query"
	// StyleOSRM calls <base>/route/v1/<profile>/lng,lat;lng,lat.
	StyleOSRM = "osrm"
)

// Response is the OSRM route body. The routing proxy serves the same shape.
type Response struct {
	Code   string  `json:"code"`
	Routes []Route `json:"routes"`
}

type Route struct {
	Distance float64  `json:"distance"`
	Duration float64  `json:"duration"`
	Geometry Geometry `json:"geometry"`
}

// Geometry is a GeoJSON LineString with [lng, lat] pairs.
type Geometry struct {
	Type        string      `json:"type,omitempty"`
	Coordinates [][]float64 `json:"coordinates"`
}

// FromResult converts a route back into the wire shape.
func FromResult(r domain.RouteResult) Response {
	coords := make([][]float64, len(r.Path))
	for i, p := range r.Path {
		coords[i] = []float64{p.Lng, p.Lat}
	}
	return Response{
		Code: "Ok",
		Routes: []Route{{
			Distance: r.DistanceMeters,
			Duration: r.DurationSeconds,
			Geometry: Geometry{Type: "LineString", Coordinates: coords},
		}},
	}
}

// Options configure the client.
type Options struct {
	Style     string
	Profile   string
	UserAgent string
	Timeout   time.Duration
}

// Client implements ports.RoutingService.
type Client struct {
	baseURL string
	opts    Options
	client  *http.Client
}

func NewClient(baseURL string, opts Options) *Client {
	if opts.Style == "" {
		opts.Style = StyleOSRM
	}
	if opts.Profile == "" {
		opts.Profile = "driving"
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		opts:    opts,
		client:  &http.Client{Timeout: opts.Timeout},
	}
}

func (c *Client) requestURL(from, to domain.GeoPoint) string {
	params := url.Values{}
	params.Set("overview", "full")
	if c.opts.Style == StyleQuery {
		params.Set("from", from.LngLat())
		params.Set("to", to.LngLat())
		params.Set("geometry", "geojson")
		return c.baseURL + "/route?" + params.Encode()
	}
	params.Set("geometries", "geojson")
	return fmt.Sprintf("%s/route/v1/%s/%s;%s?%s",
		c.baseURL, url.PathEscape(c.opts.Profile), from.LngLat(), to.LngLat(), params.Encode())
}

// Route returns the first route between two points.
func (c *Client) Route(ctx context.Context, from, to domain.GeoPoint) (domain.RouteResult, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.requestURL(from, to), nil)
	if err != nil {
		return domain.RouteResult{}, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.opts.UserAgent != "" {
		req.Header.Set("User-Agent", c.opts.UserAgent)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return domain.RouteResult{}, fmt.Errorf("routing: %v: %w", err, domain.ErrNetwork)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	// OSRM answers NoRoute with 400 and a JSON body.
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusBadRequest {
		_, _ = io.Copy(io.Discard, resp.Body)
		return domain.RouteResult{}, fmt.Errorf("routing: status %d: %w", resp.StatusCode, domain.ErrNetwork)
	}

	var body Response
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		if resp.StatusCode != http.StatusOK {
			return domain.RouteResult{}, fmt.Errorf("routing: status %d: %w", resp.StatusCode, domain.ErrNetwork)
		}
		return domain.RouteResult{}, fmt.Errorf("routing: decode: %v: %w", err, domain.ErrMalformedResponse)
	}
	return body.Result()
}

// Result extracts the first route.
func (r Response) Result() (domain.RouteResult, error) {
	if r.Code != "Ok" || len(r.Routes) == 0 {
		return domain.RouteResult{}, fmt.Errorf("routing: code %q: %w", r.Code, domain.ErrNoRoute)
	}
	first := r.Routes[0]
	if len(first.Geometry.Coordinates) == 0 {
		return domain.RouteResult{}, fmt.Errorf("routing: empty geometry: %w", domain.ErrMalformedResponse)
	}

	path := make([]domain.GeoPoint, 0, len(first.Geometry.Coordinates))
	for _, c := range first.Geometry.Coordinates {
		if len(c) != 2 {
			return domain.RouteResult{}, fmt.Errorf("routing: coordinate %v is not a [lng, lat] pair: %w", c, domain.ErrMalformedResponse)
		}
		p := domain.GeoPoint{Lat: c[1], Lng: c[0]}
		if !p.Valid() {
			return domain.RouteResult{}, fmt.Errorf("routing: coordinate %v out of range: %w", c, domain.ErrMalformedResponse)
		}
		path = append(path, p)
	}
	return domain.RouteResult{
		Path:            path,
		DistanceMeters:  first.Distance,
		DurationSeconds: first.Duration,
	}, nil
}
