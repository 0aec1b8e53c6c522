// Package places is an HTTP client for a remote /search-places endpoint.
package places

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

	"github.com/samirrijal/miniguide/internal/core/domain"
)

// Response is the /search-places payload.
type Response struct {
	Results []Result `json:"results"`
}

// Result is one entry of a /search-places response.
type Result struct {
	Name         string  `json:"name"`
	Region       string  `json:"region"`
	DisplayLabel string  `json:"displayLabel"`
	Lat          float64 `json:"lat"`
	Lng          float64 `json:"lng"`
	Type         string  `json:"type,omitempty"`
}

// FromCandidate converts a candidate into its wire form.
func FromCandidate(c domain.PlaceCandidate) Result {
	return Result{
		Name:         c.Name,
		Region:       c.Region,
		DisplayLabel: c.DisplayLabel,
		Lat:          c.Coordinate.Lat,
		Lng:          c.Coordinate.Lng,
		Type:         c.Type,
	}
}

// Client implements ports.GeoSource over GET <base>/search-places.
type Client struct {
	baseURL string
	client  *http.Client
}

// NewClient creates a client for the service at baseURL.
func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
	}
}

// Search fails with domain.ErrNetwork on transport errors and non-2xx
// statuses, and with domain.ErrMalformedResponse on an undecodable body.
func (c *Client) Search(ctx context.Context, text string, limit int) ([]domain.PlaceCandidate, error) {
	params := url.Values{}
	params.Set("q", text)
	if limit > 0 {
		params.Set("limit", strconv.Itoa(limit))
	}
	reqURL := fmt.Sprintf("%s/search-places?%s", c.baseURL, params.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("search-places: %v: %w", err, domain.ErrNetwork)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, fmt.Errorf("search-places: status %d: %w", resp.StatusCode, domain.ErrNetwork)
	}

	var body struct {
		Results *[]Result `json:"results"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("search-places: decode: %v: %w", err, domain.ErrMalformedResponse)
	}
	if body.Results == nil {
		return nil, fmt.Errorf("search-places: missing results: %w", domain.ErrMalformedResponse)
	}

	out := make([]domain.PlaceCandidate, 0, len(*body.Results))
	for _, r := range *body.Results {
		p := domain.GeoPoint{Lat: r.Lat, Lng: r.Lng}
		if r.Name == "" || !p.Valid() {
			continue
		}
		label := r.DisplayLabel
		if label == "" {
			label = r.Name
		}
		out = append(out, domain.PlaceCandidate{
			Name:         r.Name,
			Region:       r.Region,
			DisplayLabel: label,
			Coordinate:   p,
			Type:         r.Type,
			Source:       domain.SourceLive,
		})
	}
	return out, nil
}
