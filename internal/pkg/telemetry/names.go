package telemetry

// Span and attribute names.
const (
	SpanRouteFetch     = "routing.fetch"
	SpanGeocoderSearch = "geocoder.search"
	SpanPlaceSearch    = "places.search"

	AttrProvider = "geocoder.provider"
	AttrQuery    = "search.query"
	AttrResults  = "search.results"
	AttrFrom     = "route.from"
	AttrTo       = "route.to"
)
