package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	"github.com/cesargomez89/crateflow/internal/apperr"
	"github.com/cesargomez89/crateflow/internal/domain"
)

// upsertWishlistItem is called from inside an already-held write
// transaction (Approve). Keyed on (artist_lower, title_lower, type);
// when a record already exists the most informative non-null field
// wins, mirroring the teacher's MusicBrainz enrichment fill-if-empty
// rule (spec.md §4.4).
func (db *DB) upsertWishlistItem(item *domain.QueueItem) error {
	title := item.Artist
	if item.Album != nil && *item.Album != "" {
		title = *item.Album
	} else if item.Title != nil {
		title = *item.Title
	}

	var existing domain.WishlistItem
	err := db.Get(&existing, `
		SELECT * FROM wishlist_items
		WHERE LOWER(artist) = LOWER(?) AND LOWER(album) = LOWER(?) AND type = ?
	`, item.Artist, title, item.Type)

	if err != nil {
		// Not found: insert fresh.
		wi := &domain.WishlistItem{
			ID:          uuid.NewString(),
			Artist:      item.Artist,
			Album:       title,
			Type:        item.Type,
			Year:        item.Year,
			CanonicalID: &item.CanonicalID,
			Source:      &item.Source,
			CoverURL:    item.CoverURL,
			AddedAt:     time.Now(),
		}
		_, execErr := db.Exec(`
			INSERT INTO wishlist_items (id, artist, album, type, year, canonical_id, source, cover_url, added_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		`, wi.ID, wi.Artist, wi.Album, wi.Type, wi.Year, wi.CanonicalID, wi.Source, wi.CoverURL, wi.AddedAt)
		if execErr != nil {
			return classifyWriteErr(execErr)
		}
		return nil
	}

	if existing.Year == nil && item.Year != nil {
		existing.Year = item.Year
	}
	if existing.CoverURL == nil && item.CoverURL != nil {
		existing.CoverURL = item.CoverURL
	}
	if existing.CanonicalID == nil && item.CanonicalID != "" {
		existing.CanonicalID = &item.CanonicalID
	}
	if existing.Source == nil {
		existing.Source = &item.Source
	}

	_, execErr := db.Exec(`
		UPDATE wishlist_items SET year = ?, cover_url = ?, canonical_id = ?, source = ?
		WHERE id = ?
	`, existing.Year, existing.CoverURL, existing.CanonicalID, existing.Source, existing.ID)
	if execErr != nil {
		return classifyWriteErr(execErr)
	}
	return nil
}

// AddWishlistItem inserts a manually-added wishlist item (spec.md §6
// wishlist surface "add(item)"), generating an id/added_at when unset.
func (db *DB) AddWishlistItem(ctx context.Context, item *domain.WishlistItem) error {
	if item.ID == "" {
		item.ID = uuid.NewString()
	}
	if item.AddedAt.IsZero() {
		item.AddedAt = time.Now()
	}
	return db.RunInTx(ctx, func(tx *DB) error {
		_, err := tx.Exec(`
			INSERT INTO wishlist_items (id, artist, album, type, year, canonical_id, source, cover_url, added_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		`, item.ID, item.Artist, item.Album, item.Type, item.Year, item.CanonicalID, item.Source, item.CoverURL, item.AddedAt)
		if err != nil {
			return classifyWriteErr(err)
		}
		return nil
	})
}

// WishlistPatch is the set of fields update(id, patch) may change
// (spec.md §6 wishlist surface). A nil field leaves the column
// unchanged.
type WishlistPatch struct {
	Artist   *string
	Album    *string
	Year     *int
	CoverURL *string
}

// UpdateWishlistItem applies a partial update to id, touching only the
// fields patch sets.
func (db *DB) UpdateWishlistItem(ctx context.Context, id string, patch WishlistPatch) error {
	return db.RunInTx(ctx, func(tx *DB) error {
		existing := &domain.WishlistItem{}
		if err := tx.Get(existing, "SELECT * FROM wishlist_items WHERE id = ?", id); err != nil {
			if err == sql.ErrNoRows {
				return apperr.NotFoundf("wishlist item %s not found", id)
			}
			return apperr.Internalf(err, "get wishlist item")
		}

		if patch.Artist != nil {
			existing.Artist = *patch.Artist
		}
		if patch.Album != nil {
			existing.Album = *patch.Album
		}
		if patch.Year != nil {
			existing.Year = patch.Year
		}
		if patch.CoverURL != nil {
			existing.CoverURL = patch.CoverURL
		}

		_, err := tx.Exec(`
			UPDATE wishlist_items SET artist = ?, album = ?, year = ?, cover_url = ? WHERE id = ?
		`, existing.Artist, existing.Album, existing.Year, existing.CoverURL, id)
		if err != nil {
			return classifyWriteErr(err)
		}
		return nil
	})
}

// DeleteWishlistItem removes id (spec.md §6 "delete(id)").
func (db *DB) DeleteWishlistItem(ctx context.Context, id string) error {
	return db.RunInTx(ctx, func(tx *DB) error {
		res, err := tx.Exec("DELETE FROM wishlist_items WHERE id = ?", id)
		if err != nil {
			return classifyWriteErr(err)
		}
		rows, err := res.RowsAffected()
		if err != nil {
			return classifyWriteErr(err)
		}
		if rows == 0 {
			return apperr.NotFoundf("wishlist item %s not found", id)
		}
		return nil
	})
}

func (db *DB) GetWishlistItem(id string) (*domain.WishlistItem, error) {
	item := &domain.WishlistItem{}
	if err := db.Get(item, "SELECT * FROM wishlist_items WHERE id = ?", id); err != nil {
		return nil, apperr.NotFoundf("wishlist item %s not found", id)
	}
	return item, nil
}

func (db *DB) ListWishlistItems() ([]*domain.WishlistItem, error) {
	var items []*domain.WishlistItem
	if err := db.Select(&items, "SELECT * FROM wishlist_items ORDER BY added_at DESC"); err != nil {
		return nil, apperr.Internalf(err, "list wishlist items")
	}
	return items, nil
}

// ListUnprocessedWishlistItems returns wishlist items not yet marked
// processed, the candidate set the DownloadDriver job walks each tick
// to open a DownloadTask for any item missing one (spec.md §4.7).
func (db *DB) ListUnprocessedWishlistItems() ([]*domain.WishlistItem, error) {
	var items []*domain.WishlistItem
	if err := db.Select(&items, "SELECT * FROM wishlist_items WHERE processed_at IS NULL ORDER BY added_at ASC"); err != nil {
		return nil, apperr.Internalf(err, "list unprocessed wishlist items")
	}
	return items, nil
}

// Requeue clears processed_at so the item is eligible for a fresh
// DownloadTask (spec.md §4.4). The caller (C5) is responsible for
// actually creating the new task.
func (db *DB) Requeue(ctx context.Context, id string) error {
	return db.RunInTx(ctx, func(tx *DB) error {
		res, err := tx.Exec("UPDATE wishlist_items SET processed_at = NULL WHERE id = ?", id)
		if err != nil {
			return classifyWriteErr(err)
		}
		rows, err := res.RowsAffected()
		if err != nil {
			return classifyWriteErr(err)
		}
		if rows == 0 {
			return apperr.NotFoundf("wishlist item %s not found", id)
		}
		return nil
	})
}

func (db *DB) MarkWishlistProcessed(ctx context.Context, id string) error {
	return db.RunInTx(ctx, func(tx *DB) error {
		_, err := tx.Exec("UPDATE wishlist_items SET processed_at = ? WHERE id = ?", time.Now(), id)
		if err != nil {
			return classifyWriteErr(err)
		}
		return nil
	})
}

// ImportResult reports the outcome of one imported row (spec.md §4.4).
type ImportResult struct {
	Artist string `json:"artist"`
	Album  string `json:"album"`
	Status string `json:"status"` // added | skipped | error
	Error  string `json:"error,omitempty"`
}

// Import inserts each item, reporting added/skipped/error per row
// instead of failing the whole batch.
func (db *DB) Import(ctx context.Context, items []*domain.WishlistItem) ([]ImportResult, error) {
	results := make([]ImportResult, 0, len(items))
	err := db.RunInTx(ctx, func(tx *DB) error {
		for _, item := range items {
			var exists int
			_ = tx.Get(&exists, `
				SELECT COUNT(*) FROM wishlist_items WHERE LOWER(artist) = LOWER(?) AND LOWER(album) = LOWER(?) AND type = ?
			`, item.Artist, item.Album, item.Type)
			if exists > 0 {
				results = append(results, ImportResult{Artist: item.Artist, Album: item.Album, Status: "skipped"})
				continue
			}

			if item.ID == "" {
				item.ID = uuid.NewString()
			}
			if item.AddedAt.IsZero() {
				item.AddedAt = time.Now()
			}
			_, execErr := tx.Exec(`
				INSERT INTO wishlist_items (id, artist, album, type, year, canonical_id, source, cover_url, added_at)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
			`, item.ID, item.Artist, item.Album, item.Type, item.Year, item.CanonicalID, item.Source, item.CoverURL, item.AddedAt)
			if execErr != nil {
				results = append(results, ImportResult{Artist: item.Artist, Album: item.Album, Status: "error", Error: execErr.Error()})
				continue
			}
			results = append(results, ImportResult{Artist: item.Artist, Album: item.Album, Status: "added"})
		}
		return nil
	})
	return results, err
}
