// Package sqlite is a persistent cache backend on an embedded SQLite file.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/samirrijal/miniguide/internal/core/ports"
)

const schema = `CREATE TABLE IF NOT EXISTS cache_entries (
	key        TEXT PRIMARY KEY,
	value      BLOB NOT NULL,
	expires_at INTEGER NOT NULL DEFAULT 0,
	stored_at  TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
)`

// Cache implements ports.CacheService. Expired rows are ignored on read and
// removed by Prune.
type Cache struct {
	db  *sql.DB
	now func() time.Time
}

// Open opens (or creates) the cache database at path.
func Open(ctx context.Context, path string) (*Cache, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite cache: %w", err)
	}
	// A single writer avoids SQLITE_BUSY under concurrent Set calls.
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite cache schema: %w", err)
	}
	_, _ = db.ExecContext(ctx, `CREATE INDEX IF NOT EXISTS idx_cache_entries_expires_at ON cache_entries(expires_at)`)

	return &Cache{db: db, now: time.Now}, nil
}

func (c *Cache) Get(ctx context.Context, key string) ([]byte, error) {
	var (
		value   []byte
		expires int64
	)
	err := c.db.QueryRowContext(ctx,
		`SELECT value, expires_at FROM cache_entries WHERE key = ?`, key,
	).Scan(&value, &expires)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ports.ErrCacheMiss
	}
	if err != nil {
		return nil, fmt.Errorf("sqlite cache get %s: %w", key, err)
	}
	if expires != 0 && c.now().Unix() >= expires {
		return nil, ports.ErrCacheMiss
	}
	return value, nil
}

func (c *Cache) Set(ctx context.Context, key string, value []byte, ttlSeconds int) error {
	var expires int64
	if ttlSeconds > 0 {
		expires = c.now().Add(time.Duration(ttlSeconds) * time.Second).Unix()
	}
	_, err := c.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO cache_entries(key, value, expires_at, stored_at) VALUES(?, ?, ?, CURRENT_TIMESTAMP)`,
		key, value, expires,
	)
	if err != nil {
		return fmt.Errorf("sqlite cache set %s: %w", key, err)
	}
	return nil
}

func (c *Cache) Delete(ctx context.Context, key string) error {
	_, err := c.db.ExecContext(ctx, `DELETE FROM cache_entries WHERE key = ?`, key)
	return err
}

// Prune deletes expired rows and reports how many were removed.
func (c *Cache) Prune(ctx context.Context) (int64, error) {
	res, err := c.db.ExecContext(ctx,
		`DELETE FROM cache_entries WHERE expires_at != 0 AND expires_at <= ?`, c.now().Unix(),
	)
	if err != nil {
		return 0, fmt.Errorf("sqlite cache prune: %w", err)
	}
	return res.RowsAffected()
}

// Ping is used by the readiness probe.
func (c *Cache) Ping(ctx context.Context) error {
	return c.db.PingContext(ctx)
}

func (c *Cache) Close() error {
	return c.db.Close()
}
