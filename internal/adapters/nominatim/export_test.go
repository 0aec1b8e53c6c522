package nominatim

import "github.com/muesli/gominatim"

// SetLookup replaces the gominatim call.
func SetLookup(c *Client, fn func(q string, limit int) ([]gominatim.SearchResult, error)) {
	c.lookup = fn
}
