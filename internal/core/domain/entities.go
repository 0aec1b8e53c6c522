package domain

// SourceKind records which tier produced a place candidate.
type SourceKind string

const (
	SourceLive          SourceKind = "live"
	SourcePopular       SourceKind = "popular"
	SourceLocalFallback SourceKind = "local_fallback"
)

// PlaceCandidate is one ranked place suggestion. It is an immutable value.
type PlaceCandidate struct {
	Name         string     `json:"name"`
	Region       string     `json:"region"`
	DisplayLabel string     `json:"displayLabel"`
	Coordinate   GeoPoint   `json:"coordinate"`
	Type         string     `json:"type,omitempty"`
	Source       SourceKind `json:"source"`
}

// WithSource returns a copy of c tagged with the given source.
func (c PlaceCandidate) WithSource(s SourceKind) PlaceCandidate {
	c.Source = s
	return c
}

// SearchQuery is one edit of the search input. Seq increases on every edit.
type SearchQuery struct {
	Text string `json:"text"`
	Seq  uint64 `json:"seq"`
}

// SearchResults is what the orchestrator publishes to the UI.
// Open is false when the suggestion list should be hidden.
type SearchResults struct {
	Query      SearchQuery      `json:"query"`
	Candidates []PlaceCandidate `json:"candidates"`
	Source     SourceKind       `json:"source,omitempty"`
	Open       bool             `json:"open"`
}

// Position is a fix delivered by a position feed.
type Position struct {
	Lat      float64 `json:"lat"`
	Lng      float64 `json:"lng"`
	Accuracy float64 `json:"accuracy_m,omitempty"` // metres, 0 when unknown
}

// Point drops the accuracy.
func (p Position) Point() GeoPoint {
	return GeoPoint{Lat: p.Lat, Lng: p.Lng}
}

// Destination is the navigation target. A nil *Destination means none.
type Destination struct {
	Point GeoPoint `json:"point"`
	Label string   `json:"label,omitempty"`
}

// Equal compares two optional destinations.
func (d *Destination) Equal(o *Destination) bool {
	if d == nil || o == nil {
		return d == o
	}
	return *d == *o
}

// PrimitiveKind is the kind of a visual object the live sync engine owns.
type PrimitiveKind string

const (
	PrimitiveSelfMarker        PrimitiveKind = "self_marker"
	PrimitivePulseHalo         PrimitiveKind = "pulse_halo"
	PrimitiveAccuracyCircle    PrimitiveKind = "accuracy_circle"
	PrimitiveDestinationMarker PrimitiveKind = "destination_marker"
	PrimitiveRouteLine         PrimitiveKind = "route_line"
)

// PrimitiveKinds lists every kind in creation order.
var PrimitiveKinds = []PrimitiveKind{
	PrimitiveSelfMarker,
	PrimitivePulseHalo,
	PrimitiveAccuracyCircle,
	PrimitiveDestinationMarker,
	PrimitiveRouteLine,
}

// PrimitiveID is a handle returned by the map canvas.
type PrimitiveID string

// PrimitiveSpec describes a primitive to create.
// Markers and circles use Center; the route line uses Path.
type PrimitiveSpec struct {
	Kind   PrimitiveKind `json:"kind"`
	Center GeoPoint      `json:"center"`
	Radius float64       `json:"radius_m,omitempty"`
	Path   []GeoPoint    `json:"path,omitempty"`
	Label  string        `json:"label,omitempty"`
}
