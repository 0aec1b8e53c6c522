// Package memory is the in-process cache backend.
package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/samirrijal/miniguide/internal/core/ports"
)

type entry struct {
	value   []byte
	expires time.Time // zero means no expiry
}

// Cache implements ports.CacheService with a size bounded LRU and per-key TTLs.
type Cache struct {
	lru *lru.Cache[string, entry]
	now func() time.Time

	stopOnce sync.Once
	stop     chan struct{}
}

// New returns a cache holding at most size entries. When cleanup is positive
// a background sweep drops expired entries at that interval.
func New(size int, cleanup time.Duration) (*Cache, error) {
	if size <= 0 {
		size = 1024
	}
	l, err := lru.New[string, entry](size)
	if err != nil {
		return nil, fmt.Errorf("create lru: %w", err)
	}
	c := &Cache{lru: l, now: time.Now, stop: make(chan struct{})}
	if cleanup > 0 {
		go c.sweep(cleanup)
	}
	return c, nil
}

func (c *Cache) Get(_ context.Context, key string) ([]byte, error) {
	e, ok := c.lru.Get(key)
	if !ok {
		return nil, ports.ErrCacheMiss
	}
	if !e.expires.IsZero() && !c.now().Before(e.expires) {
		c.lru.Remove(key)
		return nil, ports.ErrCacheMiss
	}
	out := make([]byte, len(e.value))
	copy(out, e.value)
	return out, nil
}

func (c *Cache) Set(_ context.Context, key string, value []byte, ttlSeconds int) error {
	e := entry{value: append([]byte(nil), value...)}
	if ttlSeconds > 0 {
		e.expires = c.now().Add(time.Duration(ttlSeconds) * time.Second)
	}
	c.lru.Add(key, e)
	return nil
}

func (c *Cache) Delete(_ context.Context, key string) error {
	c.lru.Remove(key)
	return nil
}

// Len reports the number of stored entries, expired ones included.
func (c *Cache) Len() int {
	return c.lru.Len()
}

// Purge drops expired entries.
func (c *Cache) Purge() {
	now := c.now()
	for _, k := range c.lru.Keys() {
		if e, ok := c.lru.Peek(k); ok && !e.expires.IsZero() && !now.Before(e.expires) {
			c.lru.Remove(k)
		}
	}
}

func (c *Cache) sweep(every time.Duration) {
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-c.stop:
			return
		case <-t.C:
			c.Purge()
		}
	}
}

// Close stops the background sweep.
// Ping always succeeds; the cache lives in process.
func (c *Cache) Ping(context.Context) error { return nil }

func (c *Cache) Close() {
	c.stopOnce.Do(func() { close(c.stop) })
}
