package domain

import "errors"

var (
	// ErrNetwork covers transport failures and non-success responses.
	ErrNetwork = errors.New("network error")
	// ErrMalformedResponse means the payload did not have the expected shape.
	ErrMalformedResponse = errors.New("malformed response")
	// ErrStaleResult marks a response superseded by a newer request.
	ErrStaleResult = errors.New("stale result discarded")
	// ErrNoRoute means the routing service found no route.
	ErrNoRoute = errors.New("no route available")
	// ErrTornDown is returned by a disposed engine.
	ErrTornDown = errors.New("engine torn down")
	// ErrInvalidCoordinate rejects points outside WGS 84.
	ErrInvalidCoordinate = errors.New("invalid coordinate")
)

// IsUpstreamFailure reports whether err should trigger a fallback path.
func IsUpstreamFailure(err error) bool {
	return errors.Is(err, ErrNetwork) || errors.Is(err, ErrMalformedResponse)
}
