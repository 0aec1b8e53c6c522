package sqlite

import "time"

func SetNow(c *Cache, now func() time.Time) {
	c.now = now
}
