// Cache backs the short-lived response caches used in front of C2
// clients: CatalogSimilarity's Similarity/Metadata lookups (a day TTL,
// since an artist's similarity graph and discography barely change run
// to run) and queue.Service's library-membership check (a 10-minute
// TTL, since library contents change far more often), so repeated
// lookups don't re-hit a rate-limit-sensitive third party (spec.md §5
// "no job saturates a third party").
package store

import (
	"context"
	"database/sql"
	"time"
)

// GetCache returns key's cached bytes, or nil if absent or expired.
// Reads bypass the write token (spec.md §4.1).
func (db *DB) GetCache(key string) ([]byte, error) {
	type cacheRow struct {
		ExpiresAt sql.NullTime `db:"expires_at"`
		Data      []byte       `db:"data"`
	}

	var row cacheRow
	err := db.Get(&row, "SELECT data, expires_at FROM cache WHERE key = ?", key)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	if row.ExpiresAt.Valid && time.Now().After(row.ExpiresAt.Time) {
		return nil, nil
	}

	return row.Data, nil
}

// SetCache upserts key with a ttl-bounded expiry; ttl <= 0 never expires.
func (db *DB) SetCache(ctx context.Context, key string, data []byte, ttl time.Duration) error {
	var expiresAt *time.Time
	if ttl > 0 {
		t := time.Now().Add(ttl)
		expiresAt = &t
	}

	return db.RunInTx(ctx, func(tx *DB) error {
		_, err := tx.Exec(`
			INSERT INTO cache (key, data, expires_at) VALUES (?, ?, ?)
			ON CONFLICT(key) DO UPDATE SET data = excluded.data, expires_at = excluded.expires_at
		`, key, data, expiresAt)
		return err
	})
}

// ClearCache removes every cached entry.
func (db *DB) ClearCache(ctx context.Context) error {
	return db.RunInTx(ctx, func(tx *DB) error {
		_, err := tx.Exec("DELETE FROM cache")
		return err
	})
}
