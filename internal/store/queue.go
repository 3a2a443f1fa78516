package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/cesargomez89/crateflow/internal/apperr"
	"github.com/cesargomez89/crateflow/internal/domain"
)

// QueueListParams filters and paginates a pending-queue read
// (spec.md §4.3 getPending).
type QueueListParams struct {
	Source *domain.QueueSource
	Sort   string // one of: added_at, score, artist, year
	Order  string // asc | desc
	Limit  int
	Offset int

	// HideInLibrary, when true, excludes pending items whose artist
	// (case-insensitively) appears in InLibraryArtists — spec.md §4.3
	// "getPending(..., hide_in_library)". InLibraryArtists is supplied
	// by the queue service, which resolves it from a cached
	// library.Client.ListArtists() snapshot.
	HideInLibrary    bool
	InLibraryArtists []string
}

var allowedQueueSorts = map[string]string{
	"added_at": "added_at",
	"score":    "score",
	"artist":   "artist",
	"year":     "year",
}

// GetPending returns pending QueueItems matching params plus the total
// matching count (ignoring limit/offset).
func (db *DB) GetPending(params QueueListParams) ([]*domain.QueueItem, int, error) {
	sortCol, ok := allowedQueueSorts[params.Sort]
	if !ok {
		sortCol = "added_at"
	}
	order := "DESC"
	if strings.EqualFold(params.Order, "asc") {
		order = "ASC"
	}

	where := "WHERE status = 'pending'"
	args := []interface{}{}
	if params.Source != nil {
		where += " AND source = ?"
		args = append(args, *params.Source)
	}
	if params.HideInLibrary && len(params.InLibraryArtists) > 0 {
		placeholders := make([]string, len(params.InLibraryArtists))
		for i, name := range params.InLibraryArtists {
			placeholders[i] = "?"
			args = append(args, strings.ToLower(name))
		}
		where += " AND LOWER(artist) NOT IN (" + strings.Join(placeholders, ",") + ")"
	}

	var total int
	countQuery := "SELECT COUNT(*) FROM queue_items " + where
	if err := db.Get(&total, countQuery, args...); err != nil {
		return nil, 0, apperr.Internalf(err, "count pending queue items")
	}

	limit := params.Limit
	if limit <= 0 {
		limit = 50
	}

	query := fmt.Sprintf(
		"SELECT * FROM queue_items %s ORDER BY %s %s, id DESC LIMIT ? OFFSET ?",
		where, sortCol, order,
	)
	args = append(args, limit, params.Offset)

	var items []*domain.QueueItem
	if err := db.Select(&items, query, args...); err != nil {
		return nil, 0, apperr.Internalf(err, "list pending queue items")
	}
	return items, total, nil
}

// AddPending inserts a new candidate. Duplicate canonical_id is
// silently ignored (the discovery jobs dedup via ProcessedRecording
// ahead of this call).
func (db *DB) AddPending(ctx context.Context, item *domain.QueueItem) error {
	return db.RunInTx(ctx, func(tx *DB) error {
		_, err := tx.Exec(`
			INSERT OR IGNORE INTO queue_items
				(canonical_id, artist, album, title, type, status, score, source, similar_to, source_track, cover_url, year, added_at)
			VALUES (?, ?, ?, ?, ?, 'pending', ?, ?, ?, ?, ?, ?, ?)
		`, item.CanonicalID, item.Artist, item.Album, item.Title, item.Type, item.Score, item.Source,
			domain.StringSlice(item.SimilarTo), item.SourceTrack, item.CoverURL, item.Year, time.Now())
		if err != nil {
			return classifyWriteErr(err)
		}
		return nil
	})
}

// Approve flips every pending row whose id is in ids to approved, and
// upserts a WishlistItem for each, inside the same writer-held
// section (spec.md §4.3). Returns the number of rows approved.
func (db *DB) Approve(ctx context.Context, ids []int64) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}

	var affected int
	err := db.RunInTx(ctx, func(tx *DB) error {
		placeholders := make([]string, len(ids))
		args := make([]interface{}, len(ids))
		for i, id := range ids {
			placeholders[i] = "?"
			args[i] = id
		}

		var items []*domain.QueueItem
		selectQuery := fmt.Sprintf(
			"SELECT * FROM queue_items WHERE status = 'pending' AND id IN (%s)",
			strings.Join(placeholders, ","),
		)
		if err := tx.Select(&items, selectQuery, args...); err != nil {
			return classifyWriteErr(err)
		}
		if len(items) == 0 {
			return nil
		}

		now := time.Now()
		updateArgs := append([]interface{}{now}, args...)
		updateQuery := fmt.Sprintf(
			"UPDATE queue_items SET status = 'approved', processed_at = ? WHERE status = 'pending' AND id IN (%s)",
			strings.Join(placeholders, ","),
		)
		res, err := tx.Exec(updateQuery, updateArgs...)
		if err != nil {
			return classifyWriteErr(err)
		}
		rows, err := res.RowsAffected()
		if err != nil {
			return classifyWriteErr(err)
		}
		affected = int(rows)

		for _, item := range items {
			if err := tx.upsertWishlistItem(item); err != nil {
				return err
			}
		}
		return nil
	})
	return affected, err
}

// ApproveAll approves every currently pending row.
func (db *DB) ApproveAll(ctx context.Context) (int, error) {
	var ids []int64
	if err := db.Select(&ids, "SELECT id FROM queue_items WHERE status = 'pending'"); err != nil {
		return 0, apperr.Internalf(err, "list pending ids")
	}
	return db.Approve(ctx, ids)
}

// Reject flips rows to rejected without touching the wishlist.
func (db *DB) Reject(ctx context.Context, ids []int64) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	var affected int
	err := db.RunInTx(ctx, func(tx *DB) error {
		placeholders := make([]string, len(ids))
		args := make([]interface{}, len(ids)+1)
		args[0] = time.Now()
		for i, id := range ids {
			placeholders[i] = "?"
			args[i+1] = id
		}
		query := fmt.Sprintf(
			"UPDATE queue_items SET status = 'rejected', processed_at = ? WHERE status = 'pending' AND id IN (%s)",
			strings.Join(placeholders, ","),
		)
		res, err := tx.Exec(query, args...)
		if err != nil {
			return classifyWriteErr(err)
		}
		rows, err := res.RowsAffected()
		if err != nil {
			return classifyWriteErr(err)
		}
		affected = int(rows)
		return nil
	})
	return affected, err
}

// FindPendingID returns the row id of a pending item by canonical_id,
// used by RecommenderFetch/CatalogSimilarity to immediately approve a
// just-inserted candidate when discovery mode is "auto" (spec.md
// §4.7).
func (db *DB) FindPendingID(canonicalID string) (int64, bool, error) {
	var id int64
	err := db.Get(&id, "SELECT id FROM queue_items WHERE canonical_id = ? AND status = 'pending'", canonicalID)
	if err == sql.ErrNoRows {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, apperr.Internalf(err, "find pending queue item")
	}
	return id, true, nil
}

func (db *DB) IsPending(canonicalID string) (bool, error) {
	return db.queueItemHasStatus(canonicalID, domain.QueueStatusPending)
}

func (db *DB) IsRejected(canonicalID string) (bool, error) {
	return db.queueItemHasStatus(canonicalID, domain.QueueStatusRejected)
}

func (db *DB) queueItemHasStatus(canonicalID string, status domain.QueueStatus) (bool, error) {
	var count int
	err := db.Get(&count, "SELECT COUNT(*) FROM queue_items WHERE canonical_id = ? AND status = ?", canonicalID, status)
	if err != nil {
		return false, apperr.Internalf(err, "check queue item status")
	}
	return count > 0, nil
}

// WasProcessed reports whether canonicalID has already been emitted by
// a discovery source (the dedup set described in spec.md §3).
func (db *DB) WasProcessed(canonicalID string) (bool, error) {
	var count int
	err := db.Get(&count, "SELECT COUNT(*) FROM processed_recordings WHERE canonical_id = ?", canonicalID)
	if err != nil {
		return false, apperr.Internalf(err, "check processed recordings")
	}
	return count > 0, nil
}

// MarkProcessed records canonicalID in the dedup set.
func (db *DB) MarkProcessed(ctx context.Context, canonicalID string) error {
	return db.RunInTx(ctx, func(tx *DB) error {
		_, err := tx.Exec(`INSERT OR IGNORE INTO processed_recordings (canonical_id, created_at) VALUES (?, ?)`,
			canonicalID, time.Now())
		if err != nil {
			return classifyWriteErr(err)
		}
		return nil
	})
}

// QueueStats summarizes the queue for dashboards (spec.md §4.3 stats).
type QueueStats struct {
	Pending   int `db:"pending"`
	Approved  int `db:"approved"`
	Rejected  int `db:"rejected"`
	InLibrary int `db:"in_library"`
}

// Stats computes queue counts, plus how many pending items belong to
// an artist already in the library (spec.md §4.3 "stats() →
// {pending, approved, rejected, in_library}"). inLibraryArtists is the
// caller-resolved (and cached) library.Client.ListArtists() snapshot.
func (db *DB) Stats(inLibraryArtists []string) (*QueueStats, error) {
	stats := &QueueStats{}
	err := db.Get(stats, `
		SELECT
			SUM(CASE WHEN status = 'pending' THEN 1 ELSE 0 END) as pending,
			SUM(CASE WHEN status = 'approved' THEN 1 ELSE 0 END) as approved,
			SUM(CASE WHEN status = 'rejected' THEN 1 ELSE 0 END) as rejected
		FROM queue_items
	`)
	if err == sql.ErrNoRows {
		stats = &QueueStats{}
	} else if err != nil {
		return nil, apperr.Internalf(err, "compute queue stats")
	}

	if len(inLibraryArtists) == 0 {
		return stats, nil
	}

	placeholders := make([]string, len(inLibraryArtists))
	args := make([]interface{}, len(inLibraryArtists))
	for i, name := range inLibraryArtists {
		placeholders[i] = "?"
		args[i] = strings.ToLower(name)
	}
	query := fmt.Sprintf(
		"SELECT COUNT(*) FROM queue_items WHERE status = 'pending' AND LOWER(artist) IN (%s)",
		strings.Join(placeholders, ","),
	)
	if err := db.Get(&stats.InLibrary, query, args...); err != nil {
		return nil, apperr.Internalf(err, "compute in-library queue count")
	}
	return stats, nil
}
