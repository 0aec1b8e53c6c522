// Package nominatim is the fallback geocoder tier, backed by gominatim.
package nominatim

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/muesli/gominatim"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/time/rate"

	"github.com/samirrijal/miniguide/internal/core/domain"
	"github.com/samirrijal/miniguide/internal/pkg/telemetry"
)

// MaxResults caps every fallback lookup.
const MaxResults = 5

const retryDelay = 150 * time.Millisecond

// gominatim keeps its server address in a package global.
var serverOnce sync.Once

type lookupFunc func(q string, limit int) ([]gominatim.SearchResult, error)

// Options configure the client.
type Options struct {
	Server  string
	Rate    float64 // requests per second
	Retries int     // transient retries; 0 means 1, negative disables
	Country string  // appended to the query as ", <country>"
	Logger  *slog.Logger
}

// Client implements ports.GeoSource.
type Client struct {
	opts    Options
	limiter *rate.Limiter
	lookup  lookupFunc
	log     *slog.Logger
}

func NewClient(opts Options) *Client {
	if opts.Rate <= 0 {
		opts.Rate = 1
	}
	if opts.Retries < 0 {
		opts.Retries = 0
	} else if opts.Retries == 0 {
		opts.Retries = 1
	}
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	c := &Client{
		opts:    opts,
		limiter: rate.NewLimiter(rate.Limit(opts.Rate), 1),
		log:     log.With("provider", "nominatim"),
	}
	c.lookup = c.gominatimLookup
	return c
}

func (c *Client) gominatimLookup(q string, limit int) ([]gominatim.SearchResult, error) {
	serverOnce.Do(func() {
		gominatim.SetServer(c.opts.Server)
	})
	query := gominatim.SearchQuery{
		Q:     q,
		Limit: limit,
	}
	return query.Get()
}

// Search waits for the rate limiter, then queries Nominatim.
// The result count is capped at MaxResults.
func (c *Client) Search(ctx context.Context, text string, limit int) ([]domain.PlaceCandidate, error) {
	ctx, span := telemetry.Tracer().Start(ctx, telemetry.SpanGeocoderSearch)
	defer span.End()
	span.SetAttributes(
		attribute.String(telemetry.AttrProvider, "nominatim"),
		attribute.String(telemetry.AttrQuery, text),
	)

	if limit <= 0 || limit > MaxResults {
		limit = MaxResults
	}
	q := strings.TrimSpace(text)
	if c.opts.Country != "" {
		q = q + ", " + c.opts.Country
	}

	res, err := c.get(ctx, q, limit)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	out := make([]domain.PlaceCandidate, 0, len(res))
	for _, r := range res {
		cand, ok := toCandidate(r, c.opts.Country)
		if !ok {
			continue
		}
		out = append(out, cand)
		if len(out) == limit {
			break
		}
	}
	span.SetAttributes(attribute.Int(telemetry.AttrResults, len(out)))
	return out, nil
}

func (c *Client) get(ctx context.Context, q string, limit int) ([]gominatim.SearchResult, error) {
	attempts := c.opts.Retries + 1
	for attempt := 1; ; attempt++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("nominatim: %v: %w", err, domain.ErrNetwork)
		}
		res, err := c.call(ctx, q, limit)
		if err == nil {
			if attempt > 1 {
				c.log.Info("nominatim recovered", "attempt", attempt, "query", q)
			}
			return res, nil
		}
		if !isTransient(err) || attempt == attempts || ctx.Err() != nil {
			return nil, classify(err)
		}
		c.log.Warn("transient nominatim error, retrying", "attempt", attempt, "query", q, "error", err)
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("nominatim: %v: %w", ctx.Err(), domain.ErrNetwork)
		case <-time.After(retryDelay):
		}
	}
}

// call runs the blocking lookup so ctx can abandon it.
func (c *Client) call(ctx context.Context, q string, limit int) ([]gominatim.SearchResult, error) {
	type result struct {
		res []gominatim.SearchResult
		err error
	}
	done := make(chan result, 1)
	go func() {
		res, err := c.lookup(q, limit)
		done <- result{res, err}
	}()
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case r := <-done:
		return r.res, r.err
	}
}

func isTransient(err error) bool {
	s := err.Error()
	return strings.Contains(s, "unexpected end of JSON") || strings.Contains(s, "EOF")
}

func classify(err error) error {
	s := err.Error()
	if strings.Contains(s, "invalid character") || strings.Contains(s, "cannot unmarshal") ||
		strings.Contains(s, "unexpected end of JSON") {
		return fmt.Errorf("nominatim: %v: %w", err, domain.ErrMalformedResponse)
	}
	return fmt.Errorf("nominatim: %v: %w", err, domain.ErrNetwork)
}

// toCandidate derives name and region from the comma separated display name,
// e.g. "Panaji, Tiswadi, North Goa, Goa, 403001, India".
func toCandidate(r gominatim.SearchResult, country string) (domain.PlaceCandidate, bool) {
	lat, err := strconv.ParseFloat(r.Lat, 64)
	if err != nil {
		return domain.PlaceCandidate{}, false
	}
	lng, err := strconv.ParseFloat(r.Lon, 64)
	if err != nil {
		return domain.PlaceCandidate{}, false
	}
	pt := domain.GeoPoint{Lat: lat, Lng: lng}
	if !pt.Valid() {
		return domain.PlaceCandidate{}, false
	}

	parts := splitLabel(r.DisplayName)
	if len(parts) == 0 {
		return domain.PlaceCandidate{}, false
	}

	label := parts
	if len(label) > 3 {
		label = label[:3]
	}

	return domain.PlaceCandidate{
		Name:         parts[0],
		Region:       region(parts, country),
		DisplayLabel: strings.Join(label, ", "),
		Coordinate:   pt,
		Type:         r.Type,
		Source:       domain.SourceLive,
	}, true
}

func splitLabel(s string) []string {
	var parts []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}
	return parts
}

// region is the last component that is neither the country nor a postcode.
func region(parts []string, country string) string {
	for i := len(parts) - 1; i > 0; i-- {
		p := parts[i]
		if country != "" && strings.EqualFold(p, country) {
			continue
		}
		if _, err := strconv.Atoi(strings.ReplaceAll(p, " ", "")); err == nil {
			continue
		}
		return p
	}
	return ""
}
