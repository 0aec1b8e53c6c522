// Package photon queries a Photon geocoder (komoot) as the live place tier.
package photon

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/samirrijal/miniguide/internal/core/domain"
	"github.com/samirrijal/miniguide/internal/pkg/telemetry"
)

// Options tune the query sent to Photon.
type Options struct {
	BBox      string // "minLon,minLat,maxLon,maxLat", empty for none
	Lang      string
	Country   string // features from other countries are dropped, empty keeps all
	UserAgent string
	Timeout   time.Duration
}

// Client implements ports.GeoSource.
type Client struct {
	baseURL string
	opts    Options
	client  *http.Client
}

func NewClient(baseURL string, opts Options) *Client {
	if opts.Timeout <= 0 {
		opts.Timeout = 5 * time.Second
	}
	return &Client{
		baseURL: baseURL,
		opts:    opts,
		client:  &http.Client{Timeout: opts.Timeout},
	}
}

type featureCollection struct {
	Features []feature `json:"features"`
}

type feature struct {
	Geometry struct {
		Coordinates []float64 `json:"coordinates"`
	} `json:"geometry"`
	Properties struct {
		Name     string `json:"name"`
		City     string `json:"city"`
		County   string `json:"county"`
		State    string `json:"state"`
		Country  string `json:"country"`
		OSMValue string `json:"osm_value"`
		Type     string `json:"type"`
	} `json:"properties"`
}

// Search returns at most limit candidates tagged live.
func (c *Client) Search(ctx context.Context, text string, limit int) ([]domain.PlaceCandidate, error) {
	ctx, span := telemetry.Tracer().Start(ctx, telemetry.SpanGeocoderSearch)
	defer span.End()
	span.SetAttributes(
		attribute.String(telemetry.AttrProvider, "photon"),
		attribute.String(telemetry.AttrQuery, text),
	)

	out, err := c.search(ctx, text, limit)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	span.SetAttributes(attribute.Int(telemetry.AttrResults, len(out)))
	return out, nil
}

func (c *Client) search(ctx context.Context, text string, limit int) ([]domain.PlaceCandidate, error) {
	params := url.Values{}
	params.Set("q", text)
	if limit > 0 {
		params.Set("limit", strconv.Itoa(limit))
	}
	if c.opts.Lang != "" {
		params.Set("lang", c.opts.Lang)
	}
	if c.opts.BBox != "" {
		params.Set("bbox", c.opts.BBox)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	if c.opts.UserAgent != "" {
		req.Header.Set("User-Agent", c.opts.UserAgent)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("photon: %v: %w", err, domain.ErrNetwork)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, fmt.Errorf("photon: status %d: %w", resp.StatusCode, domain.ErrNetwork)
	}

	var fc featureCollection
	if err := json.NewDecoder(resp.Body).Decode(&fc); err != nil {
		return nil, fmt.Errorf("photon: decode: %v: %w", err, domain.ErrMalformedResponse)
	}

	out := make([]domain.PlaceCandidate, 0, len(fc.Features))
	for _, f := range fc.Features {
		cand, ok := c.toCandidate(f)
		if !ok {
			continue
		}
		out = append(out, cand)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

func (c *Client) toCandidate(f feature) (domain.PlaceCandidate, bool) {
	p := f.Properties
	if c.opts.Country != "" && p.Country != "" && !strings.EqualFold(p.Country, c.opts.Country) {
		return domain.PlaceCandidate{}, false
	}
	if len(f.Geometry.Coordinates) < 2 {
		return domain.PlaceCandidate{}, false
	}
	pt := domain.GeoPoint{Lat: f.Geometry.Coordinates[1], Lng: f.Geometry.Coordinates[0]}
	if !pt.Valid() {
		return domain.PlaceCandidate{}, false
	}

	name := firstNonEmpty(p.Name, p.City, p.County)
	if name == "" {
		return domain.PlaceCandidate{}, false
	}

	return domain.PlaceCandidate{
		Name:         name,
		Region:       p.State,
		DisplayLabel: buildLabel(name, p.City, p.State),
		Coordinate:   pt,
		Type:         firstNonEmpty(p.OSMValue, p.Type),
		Source:       domain.SourceLive,
	}, true
}

func buildLabel(name, city, state string) string {
	parts := []string{name}
	if city != "" && city != name {
		parts = append(parts, city)
	}
	if state != "" {
		parts = append(parts, state)
	}
	return strings.Join(parts, ", ")
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
