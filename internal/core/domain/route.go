package domain

import (
	"fmt"
	"math"
	"time"
)

// RouteResult is one computed route. It is replaced wholesale, never patched.
type RouteResult struct {
	Path            []GeoPoint `json:"path"`
	DistanceMeters  float64    `json:"distance_m"`
	DurationSeconds float64    `json:"duration_s"`
}

// RouteState is the route axis of the live sync state machine.
type RouteState string

const (
	RouteIdle     RouteState = "idle"
	RouteFetching RouteState = "fetching"
	RouteReady    RouteState = "ready"
	RouteFailed   RouteState = "failed"
)

// RouteReason says what triggered a route computation.
type RouteReason string

const (
	ReasonDestinationChanged RouteReason = "destination_changed"
	ReasonPositionChanged    RouteReason = "position_changed"
	ReasonOffRoute           RouteReason = "off_route"
	ReasonCleared            RouteReason = "cleared"
)

// RouteUpdate is emitted to the host whenever a route settles or is cleared.
// Summary is nil for "no route".
type RouteUpdate struct {
	State   RouteState    `json:"state"`
	Reason  RouteReason   `json:"reason,omitempty"`
	Summary *RouteSummary `json:"summary,omitempty"`
	Route   *RouteResult  `json:"route,omitempty"`
}

// RouteSummary is the display form of a route.
type RouteSummary struct {
	DistanceKm    float64 `json:"distance_km"`
	DurationMin   int     `json:"duration_min"`
	DistanceLabel string  `json:"distance_label"`
	DurationLabel string  `json:"duration_label"`

	TrafficMultiplier   float64 `json:"traffic_multiplier"`
	TrafficLabel        string  `json:"traffic_label"`
	AdjustedDurationMin int     `json:"adjusted_duration_min"`
}

// DistanceKm converts metres to kilometres with one decimal.
func DistanceKm(meters float64) float64 {
	return math.Round(meters/100) / 10
}

// DurationMinutes converts seconds to whole minutes, rounding up.
func DurationMinutes(seconds float64) int {
	if seconds <= 0 {
		return 0
	}
	return int(math.Ceil(seconds / 60))
}

// TrafficMultiplier returns the speed factor for the local hour of at.
// Values below 1 mean congestion.
func TrafficMultiplier(at time.Time) float64 {
	switch h := at.Hour(); {
	case h >= 8 && h < 10:
		return 0.6
	case h >= 17 && h < 20:
		return 0.5
	case h >= 22 || h < 5:
		return 1.2
	default:
		return 1.0
	}
}

func trafficLabel(mult float64) string {
	switch {
	case mult < 0.6:
		return "heavy"
	case mult < 1.0:
		return "moderate"
	case mult == 1.0:
		return "light"
	default:
		return "free-flow"
	}
}

// Summarize builds the display summary of r at the given wall-clock time.
func Summarize(r RouteResult, at time.Time) RouteSummary {
	km := DistanceKm(r.DistanceMeters)
	minutes := DurationMinutes(r.DurationSeconds)
	mult := TrafficMultiplier(at)

	return RouteSummary{
		DistanceKm:          km,
		DurationMin:         minutes,
		DistanceLabel:       fmt.Sprintf("%.1f km", km),
		DurationLabel:       fmt.Sprintf("%d min", minutes),
		TrafficMultiplier:   mult,
		TrafficLabel:        trafficLabel(mult),
		AdjustedDurationMin: DurationMinutes(r.DurationSeconds / mult),
	}
}
