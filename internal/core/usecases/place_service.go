package usecases

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"unicode/utf8"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/samirrijal/miniguide/internal/core/domain"
	"github.com/samirrijal/miniguide/internal/core/ports"
	"github.com/samirrijal/miniguide/internal/pkg/metrics"
	"github.com/samirrijal/miniguide/internal/pkg/telemetry"
)

// ErrNoPlaceDatabase is returned by Nearby when no place repository is configured.
var ErrNoPlaceDatabase = errors.New("place database not configured")

const (
	maxPlaceLimit       = 20
	maxNearbyRadius     = 50000
	defaultPlaceTTL     = 300
	fewLocalMatches     = 3
	databaseSearchLimit = 5
)

// PlaceSources are the upstream tiers behind PlaceService. Any may be nil.
type PlaceSources struct {
	// Live is the primary geocoder.
	Live ports.GeoSource
	// Fallback is asked only when Live found nothing and local matches are few.
	Fallback ports.GeoSource
	Places   ports.PlaceRepository
}

// PlaceService answers place searches by merging the gazetteer, live
// geocoders and the POI database.
type PlaceService struct {
	gazetteer *Gazetteer
	sources   PlaceSources
	cache     ports.CacheService
	ttl       int
	log       *slog.Logger
	tracer    trace.Tracer
	group     singleflight.Group
}

// NewPlaceService creates a new PlaceService. ttlSeconds <= 0 uses 5 minutes.
func NewPlaceService(gazetteer *Gazetteer, sources PlaceSources, cache ports.CacheService, ttlSeconds int, log *slog.Logger) *PlaceService {
	if ttlSeconds <= 0 {
		ttlSeconds = defaultPlaceTTL
	}
	if log == nil {
		log = slog.Default()
	}
	return &PlaceService{
		gazetteer: gazetteer,
		sources:   sources,
		cache:     cache,
		ttl:       ttlSeconds,
		log:       log.With("component", "places"),
		tracer:    telemetry.Tracer(),
	}
}

// Popular returns the curated popular list.
func (s *PlaceService) Popular() []domain.PlaceCandidate {
	return s.gazetteer.Popular()
}

// Nearby lists stored places within radiusMeters of near, closest first.
func (s *PlaceService) Nearby(ctx context.Context, near domain.GeoPoint, radiusMeters float64, limit int) ([]domain.PlaceCandidate, error) {
	if s.sources.Places == nil {
		return nil, ErrNoPlaceDatabase
	}
	if !near.Valid() {
		return nil, fmt.Errorf("nearby %+v: %w", near, domain.ErrInvalidCoordinate)
	}
	if radiusMeters <= 0 || radiusMeters > maxNearbyRadius {
		radiusMeters = maxNearbyRadius
	}
	if limit <= 0 || limit > maxPlaceLimit {
		limit = maxPlaceLimit
	}
	found, err := s.sources.Places.FindNearby(ctx, near, radiusMeters, limit)
	if err != nil {
		return nil, fmt.Errorf("find nearby places: %w", err)
	}
	if found == nil {
		found = []domain.PlaceCandidate{}
	}
	return found, nil
}

// Search returns up to limit ranked candidates. Upstream failures are
// logged and treated as empty; queries shorter than two characters match nothing.
func (s *PlaceService) Search(ctx context.Context, query string, limit int) ([]domain.PlaceCandidate, error) {
	text := strings.TrimSpace(query)
	q := strings.ToLower(text)
	if utf8.RuneCountInString(q) < 2 {
		return []domain.PlaceCandidate{}, nil
	}
	if limit <= 0 {
		limit = defaultSearchLimit
	}
	if limit > maxPlaceLimit {
		limit = maxPlaceLimit
	}

	// Try cache
	cacheKey := fmt.Sprintf("places:search:%s:%d", q, limit)
	if s.cache != nil {
		if data, err := s.cache.Get(ctx, cacheKey); err == nil {
			var cached []domain.PlaceCandidate
			if err := json.Unmarshal(data, &cached); err == nil {
				metrics.CacheHits.WithLabelValues("places").Inc()
				return cached, nil
			}
		}
		metrics.CacheMisses.WithLabelValues("places").Inc()
	}

	v, err, _ := s.group.Do(cacheKey, func() (interface{}, error) {
		return s.search(ctx, text, q, limit)
	})
	if err != nil {
		return nil, err
	}
	results := v.([]domain.PlaceCandidate)

	// Cache for 5 minutes by default
	if s.cache != nil {
		if data, err := json.Marshal(results); err == nil {
			_ = s.cache.Set(ctx, cacheKey, data, s.ttl)
		}
	}

	out := make([]domain.PlaceCandidate, len(results))
	copy(out, results)
	return out, nil
}

type rankedPlace struct {
	candidate domain.PlaceCandidate
	priority  int
}

func (s *PlaceService) search(ctx context.Context, text, q string, limit int) ([]domain.PlaceCandidate, error) {
	ctx, span := s.tracer.Start(ctx, telemetry.SpanPlaceSearch, trace.WithAttributes(
		attribute.String(telemetry.AttrQuery, q),
	))
	defer span.End()

	var local []rankedPlace
	for _, m := range s.gazetteer.match(q) {
		p := 1
		if m.prefix {
			p = 0
		}
		local = append(local, rankedPlace{candidate: m.candidate, priority: p})
	}

	var geocoded, stored []domain.PlaceCandidate
	g, gctx := errgroup.WithContext(ctx)
	if s.sources.Live != nil {
		g.Go(func() error {
			geocoded = s.lookup(gctx, "live", s.sources.Live, text, limit)
			return nil
		})
	}
	if s.sources.Places != nil {
		g.Go(func() error {
			found, err := s.sources.Places.Search(gctx, q, databaseSearchLimit)
			if err != nil {
				s.log.Warn("place repository search failed", "query", q, "error", err)
				metrics.GeocoderErrors.WithLabelValues("postgres").Inc()
				return nil
			}
			stored = found
			return nil
		})
	}
	_ = g.Wait()

	if len(geocoded) == 0 && len(local) < fewLocalMatches && s.sources.Fallback != nil {
		geocoded = s.lookup(ctx, "fallback", s.sources.Fallback, text, min(limit, 5))
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// geocoder > local > database, first occurrence wins
	merged := make([]rankedPlace, 0, len(geocoded)+len(local)+len(stored))
	for _, c := range geocoded {
		merged = append(merged, rankedPlace{candidate: c.WithSource(domain.SourceLive), priority: 0})
	}
	merged = append(merged, local...)
	for _, c := range stored {
		merged = append(merged, rankedPlace{candidate: c.WithSource(domain.SourceLive), priority: 2})
	}

	seen := make(map[string]bool, len(merged))
	unique := merged[:0]
	for _, r := range merged {
		key := strings.ToLower(strings.TrimSpace(r.candidate.Name + "|" + r.candidate.Region))
		if seen[key] {
			continue
		}
		seen[key] = true
		unique = append(unique, r)
	}

	sort.SliceStable(unique, func(i, j int) bool {
		a, b := unique[i], unique[j]
		if a.priority != b.priority {
			return a.priority < b.priority
		}
		ap, bp := strings.HasPrefix(strings.ToLower(a.candidate.Name), q), strings.HasPrefix(strings.ToLower(b.candidate.Name), q)
		if ap != bp {
			return ap
		}
		return utf8.RuneCountInString(a.candidate.Name) < utf8.RuneCountInString(b.candidate.Name)
	})

	if len(unique) > limit {
		unique = unique[:limit]
	}
	out := make([]domain.PlaceCandidate, len(unique))
	for i, r := range unique {
		out[i] = r.candidate
	}
	span.SetAttributes(attribute.Int(telemetry.AttrResults, len(out)))
	return out, nil
}

func (s *PlaceService) lookup(ctx context.Context, tier string, src ports.GeoSource, text string, limit int) []domain.PlaceCandidate {
	found, err := src.Search(ctx, text, limit)
	if err != nil {
		s.log.Warn("geocoder failed", "tier", tier, "query", text, "error", err)
		metrics.GeocoderErrors.WithLabelValues(tier).Inc()
		return nil
	}
	return found
}
