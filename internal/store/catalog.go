package store

import (
	"context"
	"strings"
	"time"

	"github.com/cesargomez89/crateflow/internal/apperr"
	"github.com/cesargomez89/crateflow/internal/domain"
)

// UpsertCatalogArtist mirrors one artist from the user's library, used
// by the CatalogSimilarity job to iterate the library without
// refetching it every run (spec.md §3, §4.7).
func (db *DB) UpsertCatalogArtist(ctx context.Context, name, externalID string) error {
	nameLower := strings.ToLower(name)
	return db.RunInTx(ctx, func(tx *DB) error {
		_, err := tx.Exec(`
			INSERT INTO catalog_artists (name_lower, name, external_id, last_synced_at)
			VALUES (?, ?, ?, ?)
			ON CONFLICT(name_lower) DO UPDATE SET
				name = excluded.name, external_id = excluded.external_id, last_synced_at = excluded.last_synced_at
		`, nameLower, name, externalID, time.Now())
		if err != nil {
			return classifyWriteErr(err)
		}
		return nil
	})
}

func (db *DB) ListCatalogArtists() ([]*domain.CatalogArtist, error) {
	var artists []*domain.CatalogArtist
	if err := db.Select(&artists, "SELECT * FROM catalog_artists ORDER BY last_synced_at DESC"); err != nil {
		return nil, apperr.Internalf(err, "list catalog artists")
	}
	return artists, nil
}

// WasDiscovered reports whether name has already been considered by
// the catalog-similarity job.
func (db *DB) WasDiscovered(name string) (bool, error) {
	var count int
	err := db.Get(&count, "SELECT COUNT(*) FROM discovered_artists WHERE name_lower = ?", strings.ToLower(name))
	if err != nil {
		return false, apperr.Internalf(err, "check discovered artists")
	}
	return count > 0, nil
}

func (db *DB) MarkDiscovered(ctx context.Context, name string) error {
	return db.RunInTx(ctx, func(tx *DB) error {
		_, err := tx.Exec(`INSERT OR IGNORE INTO discovered_artists (name_lower, discovered_at) VALUES (?, ?)`,
			strings.ToLower(name), time.Now())
		if err != nil {
			return classifyWriteErr(err)
		}
		return nil
	})
}
