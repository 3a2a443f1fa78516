package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/cesargomez89/crateflow/internal/apperr"
	"github.com/cesargomez89/crateflow/internal/domain"
)

// CreateDownloadTask creates a pending task for a wishlist item. The
// partial unique index on (wishlist_key) where status is non-terminal
// enforces "only one active task per wishlist key" (spec.md §3).
func (db *DB) CreateDownloadTask(ctx context.Context, wishlistItemID, wishlistKey string) (*domain.DownloadTask, error) {
	task := &domain.DownloadTask{
		ID:             uuid.NewString(),
		WishlistItemID: wishlistItemID,
		WishlistKey:    wishlistKey,
		Status:         domain.DownloadStatusPending,
		QueuedAt:       time.Now(),
	}
	err := db.RunInTx(ctx, func(tx *DB) error {
		_, err := tx.Exec(`
			INSERT INTO download_tasks (id, wishlist_item_id, wishlist_key, status, retry_count, queued_at)
			VALUES (?, ?, ?, ?, 0, ?)
		`, task.ID, task.WishlistItemID, task.WishlistKey, task.Status, task.QueuedAt)
		if err != nil {
			if isBusyErr(err) {
				return apperr.Busy(err)
			}
			if strings.Contains(strings.ToLower(err.Error()), "unique") {
				return apperr.Conflictf("an active download task already exists for %s", wishlistKey)
			}
			return apperr.Internalf(err, "create download task")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return task, nil
}

func (db *DB) GetDownloadTask(id string) (*domain.DownloadTask, error) {
	task := &domain.DownloadTask{}
	if err := db.Get(task, "SELECT * FROM download_tasks WHERE id = ?", id); err != nil {
		if err == sql.ErrNoRows {
			return nil, apperr.NotFoundf("download task %s not found", id)
		}
		return nil, apperr.Internalf(err, "get download task")
	}
	return task, nil
}

// ListDownloadTasksByStatus returns tasks in any of the given
// statuses, oldest-queued first — used by the Download Driver job's
// polling cycle (spec.md §4.7).
func (db *DB) ListDownloadTasksByStatus(statuses ...domain.DownloadStatus) ([]*domain.DownloadTask, error) {
	if len(statuses) == 0 {
		return nil, nil
	}
	placeholders := make([]string, len(statuses))
	args := make([]interface{}, len(statuses))
	for i, s := range statuses {
		placeholders[i] = "?"
		args[i] = s
	}
	query := fmt.Sprintf(
		"SELECT * FROM download_tasks WHERE status IN (%s) ORDER BY queued_at ASC",
		strings.Join(placeholders, ","),
	)
	var tasks []*domain.DownloadTask
	if err := db.Select(&tasks, query, args...); err != nil {
		return nil, apperr.Internalf(err, "list download tasks by status")
	}
	return tasks, nil
}

// ListActiveDownloadTasks returns every task not yet in a terminal
// state, used by the progress tracker to match peer transfers.
func (db *DB) ListActiveDownloadTasks() ([]*domain.DownloadTask, error) {
	var tasks []*domain.DownloadTask
	err := db.Select(&tasks, "SELECT * FROM download_tasks WHERE status NOT IN ('completed', 'failed')")
	if err != nil {
		return nil, apperr.Internalf(err, "list active download tasks")
	}
	return tasks, nil
}

// UpdateDownloadTask persists an in-place mutation of fields permitted
// by the FSM; callers (the C5 engine) own transition validity.
func (db *DB) UpdateDownloadTask(ctx context.Context, task *domain.DownloadTask) error {
	return db.RunInTx(ctx, func(tx *DB) error {
		_, err := tx.Exec(`
			UPDATE download_tasks SET
				status = ?,
				search_query = ?,
				search_results = ?,
				selection_expires_at = ?,
				skipped_usernames = ?,
				peer_username = ?,
				peer_directory = ?,
				file_count = ?,
				expected_track_count = ?,
				quality_tier = ?,
				quality_format = ?,
				quality_bit_rate = ?,
				quality_bit_depth = ?,
				quality_sample_rate = ?,
				download_path = ?,
				error_message = ?,
				retry_count = ?,
				started_at = ?,
				completed_at = ?,
				organized_at = ?
			WHERE id = ?
		`,
			task.Status, task.SearchQuery, []byte(task.SearchResults), task.SelectionExpiresAt,
			domain.StringSlice(task.SkippedUsernames), task.PeerUsername, task.PeerDirectory,
			task.FileCount, task.ExpectedTrackCount, task.QualityTier, task.QualityFormat,
			task.QualityBitRate, task.QualityBitDepth, task.QualitySampleRate, task.DownloadPath,
			task.ErrorMessage, task.RetryCount, task.StartedAt, task.CompletedAt, task.OrganizedAt,
			task.ID,
		)
		if err != nil {
			return classifyWriteErr(err)
		}
		return nil
	})
}

// FindDownloadTaskByPeer matches the (peer_username, peer_directory)
// pair used to attribute transfer telemetry back to a task
// (spec.md §4.5 "Progress tracking"). directory must already be
// normalized by the caller.
func (db *DB) FindDownloadTaskByPeer(username, directory string) (*domain.DownloadTask, error) {
	task := &domain.DownloadTask{}
	err := db.Get(task, `
		SELECT * FROM download_tasks
		WHERE peer_username = ? AND peer_directory = ? AND status IN ('queued', 'downloading')
		LIMIT 1
	`, username, directory)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, apperr.Internalf(err, "find download task by peer")
	}
	return task, nil
}

// ListDownloadTasksPage returns a page of tasks in any of statuses,
// newest-queued first, plus the total matching count, for the
// getActive/getCompleted/getFailed surface (spec.md §6).
func (db *DB) ListDownloadTasksPage(statuses []domain.DownloadStatus, limit, offset int) ([]*domain.DownloadTask, int, error) {
	if len(statuses) == 0 {
		return nil, 0, nil
	}
	placeholders := make([]string, len(statuses))
	args := make([]interface{}, len(statuses))
	for i, s := range statuses {
		placeholders[i] = "?"
		args[i] = s
	}
	inClause := strings.Join(placeholders, ",")

	var total int
	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM download_tasks WHERE status IN (%s)", inClause)
	if err := db.Get(&total, countQuery, args...); err != nil {
		return nil, 0, apperr.Internalf(err, "count download tasks")
	}

	if limit <= 0 {
		limit = 50
	}
	query := fmt.Sprintf(
		"SELECT * FROM download_tasks WHERE status IN (%s) ORDER BY queued_at DESC LIMIT ? OFFSET ?",
		inClause,
	)
	pageArgs := append(append([]interface{}{}, args...), limit, offset)

	var tasks []*domain.DownloadTask
	if err := db.Select(&tasks, query, pageArgs...); err != nil {
		return nil, 0, apperr.Internalf(err, "list download tasks page")
	}
	return tasks, total, nil
}

// DeleteDownloadTask removes a task outright (spec.md §6 "delete(ids[])").
func (db *DB) DeleteDownloadTask(ctx context.Context, id string) error {
	return db.RunInTx(ctx, func(tx *DB) error {
		res, err := tx.Exec("DELETE FROM download_tasks WHERE id = ?", id)
		if err != nil {
			return classifyWriteErr(err)
		}
		rows, err := res.RowsAffected()
		if err != nil {
			return classifyWriteErr(err)
		}
		if rows == 0 {
			return apperr.NotFoundf("download task %s not found", id)
		}
		return nil
	})
}

// DownloadCounts summarizes tasks by FSM bucket for the stats()
// surface (spec.md §6): active groups every non-terminal status other
// than queued, mirroring the "active/queued/completed/failed" split
// the spec names explicitly.
type DownloadCounts struct {
	Active    int `db:"active"`
	Queued    int `db:"queued"`
	Completed int `db:"completed"`
	Failed    int `db:"failed"`
}

func (db *DB) DownloadCounts() (*DownloadCounts, error) {
	counts := &DownloadCounts{}
	err := db.Get(counts, `
		SELECT
			SUM(CASE WHEN status IN ('pending','searching','pending_selection','downloading','deferred') THEN 1 ELSE 0 END) as active,
			SUM(CASE WHEN status = 'queued' THEN 1 ELSE 0 END) as queued,
			SUM(CASE WHEN status = 'completed' THEN 1 ELSE 0 END) as completed,
			SUM(CASE WHEN status = 'failed' THEN 1 ELSE 0 END) as failed
		FROM download_tasks
	`)
	if err == sql.ErrNoRows {
		return &DownloadCounts{}, nil
	}
	if err != nil {
		return nil, apperr.Internalf(err, "compute download counts")
	}
	return counts, nil
}
