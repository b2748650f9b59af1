// Package fetchcache is a small sqlite backed byte cache with TTLs,
// used to keep slow exports from third party APIs between runs.
package fetchcache

import (
	"context"
	"database/sql"
	"time"

	_ "embed"

	_ "github.com/tursodatabase/libsql-client-go/libsql"
	_ "modernc.org/sqlite"
)

//go:embed schema.sql
var Schema string

type Cache struct {
	db *sql.DB
}

func New(db *sql.DB) Cache {
	return Cache{db: db}
}

// Get returns the cached value for key, or ok=false when the key is
// missing or expired.
func (c Cache) Get(ctx context.Context, key string) (value []byte, ok bool, err error) {
	row := c.db.QueryRowContext(
		ctx,
		`SELECT value FROM fetch_cache WHERE key = ? AND expires_at > ?`,
		key, time.Now().Unix(),
	)
	err = row.Scan(&value)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return value, true, nil
}

func (c Cache) Set(ctx context.Context, key string, value []byte, tag string, ttl time.Duration) error {
	_, err := c.db.ExecContext(
		ctx,
		`INSERT INTO fetch_cache (key, value, tag, expires_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT (key) DO UPDATE SET value = excluded.value, tag = excluded.tag, expires_at = excluded.expires_at`,
		key, value, tag, time.Now().Add(ttl).Unix(),
	)
	return err
}

// PurgeTag drops every entry carrying the given tag, regardless of
// expiry. Used by --clear-cache style flags.
func (c Cache) PurgeTag(ctx context.Context, tag string) error {
	_, err := c.db.ExecContext(ctx, `DELETE FROM fetch_cache WHERE tag = ?`, tag)
	return err
}

// Expire drops entries past their TTL.
func (c Cache) Expire(ctx context.Context) error {
	_, err := c.db.ExecContext(ctx, `DELETE FROM fetch_cache WHERE expires_at <= ?`, time.Now().Unix())
	return err
}
