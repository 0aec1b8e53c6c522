package geospatial

import (
	"math"

	"github.com/samirrijal/miniguide/internal/core/domain"
)

const earthRadiusKm = 6371.0

// Haversine calculates the great-circle distance in meters between two points.
func Haversine(lat1, lon1, lat2, lon2 float64) float64 {
	dLat := toRad(lat2 - lat1)
	dLon := toRad(lon2 - lon1)

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(toRad(lat1))*math.Cos(toRad(lat2))*
			math.Sin(dLon/2)*math.Sin(dLon/2)

	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return earthRadiusKm * c * 1000 // meters
}

// Distance is Haversine over two domain points.
func Distance(a, b domain.GeoPoint) float64 {
	return Haversine(a.Lat, a.Lng, b.Lat, b.Lng)
}

// BoundingBox returns a bounding box around a point with the given radius in meters.
func BoundingBox(lat, lon, radiusMeters float64) (minLat, minLon, maxLat, maxLon float64) {
	latDelta := radiusMeters / 111320.0
	lonDelta := radiusMeters / (111320.0 * math.Cos(toRad(lat)))

	return lat - latDelta, lon - lonDelta, lat + latDelta, lon + lonDelta
}

// DistanceToPath returns the distance in meters from p to the nearest point
// of the polyline. It returns +Inf for an empty path.
//
// Segments are projected onto a local equirectangular plane centred on p,
// which is accurate at the few-hundred-metre scale this is used for.
func DistanceToPath(p domain.GeoPoint, path []domain.GeoPoint) float64 {
	switch len(path) {
	case 0:
		return math.Inf(1)
	case 1:
		return Distance(p, path[0])
	}

	best := math.Inf(1)
	for i := 1; i < len(path); i++ {
		ax, ay := project(p, path[i-1])
		bx, by := project(p, path[i])
		if d := pointSegment(ax, ay, bx, by); d < best {
			best = d
		}
	}
	return best
}

// IsOffRoute reports whether p is farther than threshold meters from path.
func IsOffRoute(p domain.GeoPoint, path []domain.GeoPoint, threshold float64) bool {
	if len(path) == 0 {
		return false
	}
	return DistanceToPath(p, path) > threshold
}

// project maps q to metres east/north of origin.
func project(origin, q domain.GeoPoint) (x, y float64) {
	const r = earthRadiusKm * 1000
	x = toRad(q.Lng-origin.Lng) * math.Cos(toRad(origin.Lat)) * r
	y = toRad(q.Lat-origin.Lat) * r
	return x, y
}

// pointSegment is the distance from the origin to segment a-b.
func pointSegment(ax, ay, bx, by float64) float64 {
	dx, dy := bx-ax, by-ay
	lenSq := dx*dx + dy*dy
	if lenSq == 0 {
		return math.Hypot(ax, ay)
	}
	t := -(ax*dx + ay*dy) / lenSq
	t = math.Max(0, math.Min(1, t))
	return math.Hypot(ax+t*dx, ay+t*dy)
}

func toRad(deg float64) float64 {
	return deg * math.Pi / 180
}
