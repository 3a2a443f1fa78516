package download

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/cesargomez89/crateflow/internal/apperr"
	"github.com/cesargomez89/crateflow/internal/config"
	"github.com/cesargomez89/crateflow/internal/constants"
	"github.com/cesargomez89/crateflow/internal/domain"
	"github.com/cesargomez89/crateflow/internal/logger"
	"github.com/cesargomez89/crateflow/internal/metrics"
	"github.com/cesargomez89/crateflow/internal/peersearch"
	"github.com/cesargomez89/crateflow/internal/storage"
	"github.com/cesargomez89/crateflow/internal/store"
)

// Engine drives one DownloadTask forward by a single FSM step per
// call, mirroring the teacher's prepare → execute → post-process →
// finalize pipeline (internal/downloader/worker.go processTrackJob),
// generalized from one linear download into the 8-state machine of
// spec.md §4.5.
type Engine struct {
	Repo    *store.DB
	Peers   *peersearch.Client
	Config  *config.Config
	Logger  *logger.Logger
	Metrics *metrics.Metrics
}

func NewEngine(repo *store.DB, peers *peersearch.Client, cfg *config.Config, log *logger.Logger) *Engine {
	e := &Engine{Repo: repo, Peers: peers, Config: cfg, Logger: log.WithComponent("download_engine")}
	if err := storage.EnsureDir(cfg.DownloadsDir); err != nil {
		e.Logger.Warn("ensure downloads dir failed", "path", cfg.DownloadsDir, "error", err)
	}
	return e
}

// WithMetrics attaches the process's metrics handle so Stats publishes
// download_tasks_by_status alongside its JSON response.
func (e *Engine) WithMetrics(m *metrics.Metrics) *Engine {
	e.Metrics = m
	return e
}

// Step advances task by exactly one FSM transition, persisting the
// result. It is safe to call repeatedly; terminal tasks are a no-op.
func (e *Engine) Step(ctx context.Context, task *domain.DownloadTask, wishlistItem *domain.WishlistItem) error {
	if task.Status.IsTerminal() {
		return nil
	}

	switch task.Status {
	case domain.DownloadStatusPending:
		return e.startSearch(ctx, task, wishlistItem)
	case domain.DownloadStatusSearching:
		return e.pollSearch(ctx, task)
	case domain.DownloadStatusPendingSelection:
		return e.checkSelectionExpiry(ctx, task)
	case domain.DownloadStatusQueued:
		return e.checkTransferStart(ctx, task)
	case domain.DownloadStatusDownloading:
		return e.reconcileProgress(ctx, task)
	case domain.DownloadStatusDeferred:
		return e.maybeResume(ctx, task)
	}
	return nil
}

// startSearch issues the peer search and moves pending → searching.
func (e *Engine) startSearch(ctx context.Context, task *domain.DownloadTask, item *domain.WishlistItem) error {
	simplify := task.RetryCount > 0 && e.Config.Slskd.SimplifyOnRetry
	query := BuildAlbumQuery(item.Artist, item.Album, simplify, e.Config.Slskd.ExcludeTerms)
	if item.Type == domain.ItemTypeTrack {
		query = BuildTrackQuery(item.Artist, item.Album, simplify, e.Config.Slskd.ExcludeTerms)
	}

	handle, err := e.Peers.Search(ctx, query, constants.PeerSearchTimeoutMs, 1)
	if err != nil {
		return e.fail(ctx, task, fmt.Sprintf("search failed: %v", err))
	}

	task.Status = domain.DownloadStatusSearching
	task.SearchQuery = &query
	task.StartedAt = timePtr(time.Now())
	handleJSON, _ := json.Marshal(searchHandleEnvelope{Handle: handle})
	task.SearchResults = domain.RawJSON(handleJSON)
	return e.Repo.UpdateDownloadTask(ctx, task)
}

type searchHandleEnvelope struct {
	Handle    string              `json:"handle"`
	Responses []peersearch.Response `json:"responses,omitempty"`
}

// pollSearch waits for the handle to complete, then scores and either
// auto-selects or parks the task for manual selection.
func (e *Engine) pollSearch(ctx context.Context, task *domain.DownloadTask) error {
	var envelope searchHandleEnvelope
	if err := json.Unmarshal(task.SearchResults, &envelope); err != nil || envelope.Handle == "" {
		return e.fail(ctx, task, "missing search handle")
	}

	state, err := e.Peers.PollState(ctx, envelope.Handle)
	if err != nil {
		return e.fail(ctx, task, fmt.Sprintf("poll failed: %v", err))
	}
	if state == peersearch.StateCancelled {
		return e.fail(ctx, task, "search cancelled")
	}
	if state == peersearch.StateInProgress {
		return nil
	}

	responses := e.Peers.Responses(ctx, envelope.Handle)
	_ = e.Peers.Delete(ctx, envelope.Handle)
	return e.applyResults(ctx, task, responses)
}

// applyResults scores responses and advances the task per spec.md
// §4.5: auto mode (or a single remaining candidate) selects
// immediately; manual mode with multiple candidates parks for
// interactive selection; no candidates defers or fails.
func (e *Engine) applyResults(ctx context.Context, task *domain.DownloadTask, responses []peersearch.Response) error {
	filtered := excludeSkipped(responses, task.SkippedUsernames)
	scored := FilterAndScore(filtered, expectedCount(task), e.Config.Slskd)

	if len(scored) == 0 {
		return e.deferOrFail(ctx, task, "no candidates passed filters")
	}

	if e.Config.Slskd.SelectionMode != "manual" || len(scored) == 1 {
		return e.commitSelection(ctx, task, scored[0])
	}

	resultsJSON, _ := json.Marshal(scored)
	task.SearchResults = domain.RawJSON(resultsJSON)
	task.Status = domain.DownloadStatusPendingSelection
	expires := time.Now().Add(e.Config.Slskd.SelectionTimeout)
	task.SelectionExpiresAt = &expires
	return e.Repo.UpdateDownloadTask(ctx, task)
}

// commitSelection moves a scored candidate into queued and enqueues
// its files with the peer-search daemon.
func (e *Engine) commitSelection(ctx context.Context, task *domain.DownloadTask, pick ScoredResponse) error {
	if err := e.Peers.Enqueue(ctx, pick.Response.Username, pick.MusicFiles); err != nil {
		return e.deferOrFail(ctx, task, fmt.Sprintf("enqueue failed: %v", err))
	}

	username := pick.Response.Username
	directory := ""
	if len(pick.MusicFiles) > 0 {
		directory = normalizeDirectory(dirOf(pick.MusicFiles[0].Filename))
	}

	task.PeerUsername = &username
	task.PeerDirectory = &directory
	count := len(pick.MusicFiles)
	task.FileCount = &count
	tier := pick.Quality.Tier
	task.QualityTier = &tier
	task.QualityFormat = &pick.Quality.Format
	task.QualityBitRate = &pick.Quality.BitRate
	task.QualityBitDepth = &pick.Quality.BitDepth
	task.QualitySampleRate = &pick.Quality.SampleRate
	task.Status = domain.DownloadStatusQueued
	task.SelectionExpiresAt = nil
	return e.Repo.UpdateDownloadTask(ctx, task)
}

// checkSelectionExpiry fails a pending_selection task whose deadline
// has passed (spec.md §4.5 "Interactive selection").
func (e *Engine) checkSelectionExpiry(ctx context.Context, task *domain.DownloadTask) error {
	if task.SelectionExpiresAt != nil && time.Now().After(*task.SelectionExpiresAt) {
		return e.fail(ctx, task, "Selection expired")
	}
	return nil
}

// checkTransferStart looks for matching transfer telemetry and
// advances queued → downloading once the peer has acknowledged.
func (e *Engine) checkTransferStart(ctx context.Context, task *domain.DownloadTask) error {
	transfers := e.Peers.Transfers(ctx)
	for _, t := range transfers {
		if matchesTask(task, t) {
			task.Status = domain.DownloadStatusDownloading
			return e.Repo.UpdateDownloadTask(ctx, task)
		}
	}
	return nil
}

// reconcileProgress aggregates transfer telemetry for a downloading
// task and applies the completion/failure transition rules of
// spec.md §4.5.
func (e *Engine) reconcileProgress(ctx context.Context, task *domain.DownloadTask) error {
	transfers := e.Peers.Transfers(ctx)
	result := Reconcile(task, transfers)

	switch {
	case result.Completed:
		return e.completeDownload(ctx, task)
	case result.Failed:
		return e.deferOrFail(ctx, task, "transfer failed: "+result.ErrorState)
	}
	return nil
}

// completeDownload resolves the local path and moves downloading →
// completed. The peer-sourced username/directory are sanitized only in
// these local copies used to compose the on-disk path — task.PeerUsername
// and task.PeerDirectory themselves must stay byte-for-byte as the peer
// reported them, since progress.go's matchesTask compares them against
// live, unsanitized transfer telemetry.
func (e *Engine) completeDownload(ctx context.Context, task *domain.DownloadTask) error {
	username := ""
	if task.PeerUsername != nil {
		username = storage.Sanitize(*task.PeerUsername)
	}
	directory := ""
	if task.PeerDirectory != nil {
		directory = sanitizeDirectory(*task.PeerDirectory)
	}
	if path, ok := ResolvePath(e.Config.DownloadsDir, "", username, directory, dirExists); ok {
		task.DownloadPath = &path
	}
	task.Status = domain.DownloadStatusCompleted
	task.CompletedAt = timePtr(time.Now())
	return e.Repo.UpdateDownloadTask(ctx, task)
}

// Delete removes a task's downloaded files and its now-empty
// directories, then deletes the task row itself. Grounded on the
// teacher's internal/app/downloads.go DeleteDownload: remove the file(s),
// tolerate an already-missing path, then prune the task directory and
// its parent peer-username directory if they were left empty.
func (e *Engine) Delete(ctx context.Context, taskID string) error {
	task, err := e.Repo.GetDownloadTask(taskID)
	if err != nil {
		return err
	}
	if task.DownloadPath != nil {
		full := filepath.Join(e.Config.DownloadsDir, *task.DownloadPath)
		entries, err := os.ReadDir(full)
		if err != nil && !storage.IsNotExist(err) {
			e.Logger.Warn("read download dir failed", "path", full, "error", err)
		}
		for _, entry := range entries {
			if entry.IsDir() {
				continue
			}
			if err := storage.RemoveFile(filepath.Join(full, entry.Name())); err != nil && !storage.IsNotExist(err) {
				e.Logger.Warn("remove download file failed", "path", full, "file", entry.Name(), "error", err)
			}
		}
		if err := storage.DeleteFolderIfEmpty(full); err != nil {
			e.Logger.Warn("delete task dir failed", "path", full, "error", err)
		}
		if err := storage.DeleteFolderIfEmpty(filepath.Dir(full)); err != nil {
			e.Logger.Warn("delete peer dir failed", "path", filepath.Dir(full), "error", err)
		}
	}
	return e.Repo.DeleteDownloadTask(ctx, task.ID)
}

// maybeResume re-enters searching once a deferred task's back-off
// window has elapsed.
func (e *Engine) maybeResume(ctx context.Context, task *domain.DownloadTask) error {
	if task.StartedAt == nil {
		task.Status = domain.DownloadStatusSearching
		return e.Repo.UpdateDownloadTask(ctx, task)
	}
	backoff := retryDelay(task.RetryCount, e.Config.Slskd.RetryDelay)
	if time.Since(*task.StartedAt) >= backoff {
		task.Status = domain.DownloadStatusSearching
		return e.Repo.UpdateDownloadTask(ctx, task)
	}
	return nil
}

// deferOrFail enters deferred (with back-off) when retries remain,
// else fails the task outright.
func (e *Engine) deferOrFail(ctx context.Context, task *domain.DownloadTask, reason string) error {
	if task.RetryCount < e.Config.Slskd.MaxRetries {
		task.RetryCount++
		task.Status = domain.DownloadStatusDeferred
		task.StartedAt = timePtr(time.Now())
		task.ErrorMessage = &reason
		return e.Repo.UpdateDownloadTask(ctx, task)
	}
	return e.fail(ctx, task, reason)
}

func (e *Engine) fail(ctx context.Context, task *domain.DownloadTask, reason string) error {
	task.Status = domain.DownloadStatusFailed
	task.ErrorMessage = &reason
	task.CompletedAt = timePtr(time.Now())
	return e.Repo.UpdateDownloadTask(ctx, task)
}

func retryDelay(retryCount int, base time.Duration) time.Duration {
	if retryCount <= 0 {
		return base
	}
	d := base
	for i := 0; i < retryCount && i < 5; i++ {
		d *= 2
	}
	return d
}

func expectedCount(task *domain.DownloadTask) int {
	if task.ExpectedTrackCount != nil {
		return *task.ExpectedTrackCount
	}
	return 0
}

func excludeSkipped(responses []peersearch.Response, skipped []string) []peersearch.Response {
	if len(skipped) == 0 {
		return responses
	}
	skip := map[string]bool{}
	for _, u := range skipped {
		skip[u] = true
	}
	out := make([]peersearch.Response, 0, len(responses))
	for _, r := range responses {
		if !skip[r.Username] {
			out = append(out, r)
		}
	}
	return out
}

func dirOf(filename string) string {
	for i := len(filename) - 1; i >= 0; i-- {
		if filename[i] == '/' || filename[i] == '\\' {
			return filename[:i]
		}
	}
	return ""
}

func dirExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func timePtr(t time.Time) *time.Time { return &t }

// ErrTaskNotFound is returned by selection operations referencing a
// task outside the engine's management.
var ErrTaskNotFound = apperr.NotFoundf("download task not found")
