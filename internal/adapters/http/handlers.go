package http

import (
	"errors"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/gofiber/fiber/v2"

	"github.com/samirrijal/miniguide/internal/adapters/places"
	"github.com/samirrijal/miniguide/internal/adapters/routing"
	"github.com/samirrijal/miniguide/internal/core/domain"
	"github.com/samirrijal/miniguide/internal/core/usecases"
)

const (
	defaultPlaceLimit = 8
	maxPlaceLimit     = 20
	maxQueryLength    = 200
)

// PlaceSearchResponse is the body of /search-places and /v1/places/search.
type PlaceSearchResponse struct {
	Query   string          `json:"query"`
	Results []places.Result `json:"results"`
}

// parseSearch validates q and limit the same way for every search endpoint.
func parseSearch(c *fiber.Ctx) (string, int, error) {
	q := strings.TrimSpace(c.Query("q"))
	if q == "" {
		return "", 0, errors.New("q query parameter is required")
	}
	if utf8.RuneCountInString(q) > maxQueryLength {
		return "", 0, errors.New("query too long (max 200 characters)")
	}
	limit := c.QueryInt("limit", defaultPlaceLimit)
	if limit < 1 || limit > maxPlaceLimit {
		return "", 0, errors.New("limit must be between 1 and 20")
	}
	return q, limit, nil
}

// SearchPlacesHandler serves ranked place suggestions.
func SearchPlacesHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		q, limit, err := parseSearch(c)
		if err != nil {
			return errBadRequest(c, err.Error())
		}

		found, err := deps.Places.Search(c.UserContext(), q, limit)
		if err != nil {
			LoggerFromCtx(c.UserContext()).Error("place search failed", "query", q, "error", err)
			return errInternal(c, "place search failed")
		}

		results := make([]places.Result, len(found))
		for i, p := range found {
			results[i] = places.FromCandidate(p)
		}
		return c.JSON(PlaceSearchResponse{Query: q, Results: results})
	}
}

// cityResult is the shape of the deprecated /search-cities endpoint.
type cityResult struct {
	Name        string  `json:"name"`
	State       string  `json:"state"`
	DisplayName string  `json:"displayName"`
	Lat         float64 `json:"lat"`
	Lng         float64 `json:"lng"`
	Type        string  `json:"type,omitempty"`
}

// SearchCitiesHandler keeps the legacy response shape alive until sunset.
func SearchCitiesHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		q, limit, err := parseSearch(c)
		if err != nil {
			return errBadRequest(c, err.Error())
		}
		if utf8.RuneCountInString(q) < 2 {
			return errBadRequest(c, "q must be at least 2 characters")
		}

		found, err := deps.Places.Search(c.UserContext(), q, limit)
		if err != nil {
			return errInternal(c, "place search failed")
		}
		results := make([]cityResult, len(found))
		for i, p := range found {
			results[i] = cityResult{
				Name:        p.Name,
				State:       p.Region,
				DisplayName: p.DisplayLabel,
				Lat:         p.Coordinate.Lat,
				Lng:         p.Coordinate.Lng,
				Type:        p.Type,
			}
		}
		return c.JSON(fiber.Map{"query": q, "results": results})
	}
}

// PopularPlacesHandler returns the curated list with offset/limit pagination.
func PopularPlacesHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		offset, limit := parsePage(c)
		page, pg := Paginate(deps.Places.Popular(), offset, limit)

		results := make([]places.Result, len(page))
		for i, p := range page {
			results[i] = places.FromCandidate(p)
		}

		SetLinkHeaders(c, pg)
		c.Set("Cache-Control", "public, max-age=3600")
		return c.JSON(PaginatedResponse{Data: results, Pagination: pg})
	}
}

// NearbyPlacesHandler lists stored places around a point.
func NearbyPlacesHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		lat, errLat := strconv.ParseFloat(c.Query("lat"), 64)
		lng, errLng := strconv.ParseFloat(c.Query("lng"), 64)
		if errLat != nil || errLng != nil {
			return errBadRequest(c, "lat and lng are required")
		}
		radius := c.QueryFloat("radius", 5000)
		if radius <= 0 || radius > 50000 {
			return errBadRequest(c, "radius must be between 1 and 50000 meters")
		}
		limit := c.QueryInt("limit", maxPlaceLimit)
		if limit <= 0 || limit > maxPlaceLimit {
			limit = maxPlaceLimit
		}

		found, err := deps.Places.Nearby(c.UserContext(), domain.GeoPoint{Lat: lat, Lng: lng}, radius, limit)
		switch {
		case errors.Is(err, domain.ErrInvalidCoordinate):
			return errBadRequest(c, err.Error())
		case errors.Is(err, usecases.ErrNoPlaceDatabase):
			return errUnavailable(c, err.Error())
		case err != nil:
			LoggerFromCtx(c.UserContext()).Error("nearby places failed", "error", err)
			return errInternal(c, "nearby lookup failed")
		}

		results := make([]places.Result, len(found))
		for i, p := range found {
			results[i] = places.FromCandidate(p)
		}
		c.Set("Cache-Control", "public, max-age=300")
		return c.JSON(fiber.Map{"results": results})
	}
}

// parseLngLat reads a "lng,lat" pair.
func parseLngLat(s string) (domain.GeoPoint, error) {
	lngStr, latStr, ok := strings.Cut(s, ",")
	if !ok {
		return domain.GeoPoint{}, errors.New("expected lng,lat")
	}
	lng, err := strconv.ParseFloat(strings.TrimSpace(lngStr), 64)
	if err != nil {
		return domain.GeoPoint{}, errors.New("invalid longitude")
	}
	lat, err := strconv.ParseFloat(strings.TrimSpace(latStr), 64)
	if err != nil {
		return domain.GeoPoint{}, errors.New("invalid latitude")
	}
	p := domain.GeoPoint{Lat: lat, Lng: lng}
	if !p.Valid() {
		return domain.GeoPoint{}, domain.ErrInvalidCoordinate
	}
	return p, nil
}

// RouteProxyHandler serves the OSRM shaped /route contract consumed by the
// live sync engine. "No route" is a 200 with code NoRoute, like OSRM.
func RouteProxyHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		from, err := parseLngLat(c.Query("from"))
		if err != nil {
			return errBadRequest(c, "from: "+err.Error())
		}
		to, err := parseLngLat(c.Query("to"))
		if err != nil {
			return errBadRequest(c, "to: "+err.Error())
		}

		route, err := deps.Routes.Route(c.UserContext(), from, to)
		switch {
		case errors.Is(err, domain.ErrNoRoute):
			return c.JSON(routing.Response{Code: "NoRoute", Routes: []routing.Route{}})
		case err != nil:
			LoggerFromCtx(c.UserContext()).Warn("route proxy failed", "error", err)
			return errBadGateway(c, "routing service unavailable")
		}
		c.Set("Cache-Control", "private, max-age=60")
		return c.JSON(routing.FromResult(route))
	}
}

// RouteResponse is the body of /v1/route.
type RouteResponse struct {
	Route   domain.RouteResult  `json:"route"`
	Summary domain.RouteSummary `json:"summary"`
}

// PlanRouteHandler returns a route with its display summary.
func PlanRouteHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		from, err := parseLngLat(c.Query("from"))
		if err != nil {
			return errBadRequest(c, "from: "+err.Error())
		}
		to, err := parseLngLat(c.Query("to"))
		if err != nil {
			return errBadRequest(c, "to: "+err.Error())
		}

		route, summary, err := deps.Routes.Plan(c.UserContext(), from, to)
		switch {
		case errors.Is(err, domain.ErrNoRoute):
			return errNotFound(c, "no route available")
		case errors.Is(err, domain.ErrInvalidCoordinate):
			return errBadRequest(c, err.Error())
		case err != nil:
			LoggerFromCtx(c.UserContext()).Warn("route plan failed", "error", err)
			return errBadGateway(c, "routing service unavailable")
		}
		c.Set("Cache-Control", "private, max-age=60")
		return c.JSON(RouteResponse{Route: route, Summary: summary})
	}
}
