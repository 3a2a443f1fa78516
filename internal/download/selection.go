package download

import (
	"context"
	"encoding/json"
	"time"

	"github.com/cesargomez89/crateflow/internal/apperr"
	"github.com/cesargomez89/crateflow/internal/domain"
)

// Select commits a specific candidate from a pending_selection task's
// cached results to queued (spec.md §4.5 "Interactive selection").
// When directory is empty the first file belonging to username is
// used to derive it.
func (e *Engine) Select(ctx context.Context, taskID, username, directory string) error {
	task, err := e.Repo.GetDownloadTask(taskID)
	if err != nil {
		return err
	}
	if task.Status != domain.DownloadStatusPendingSelection {
		return apperr.Conflictf("task %s is not awaiting selection", taskID)
	}

	scored, err := decodeCachedResults(task)
	if err != nil {
		return err
	}

	for _, candidate := range scored {
		if candidate.Response.Username != username {
			continue
		}
		if directory != "" && normalizeDirectory(candidateDirectory(candidate)) != normalizeDirectory(directory) {
			continue
		}
		return e.commitSelection(ctx, task, candidate)
	}
	return apperr.NotFoundf("no cached candidate for username %s", username)
}

// Skip removes username from future consideration on task and
// re-applies the ranking to the remaining cached candidates: a single
// survivor auto-selects, several remain pending, none triggers the
// normal defer/fail path (spec.md §4.5 "Interactive selection").
func (e *Engine) Skip(ctx context.Context, taskID, username string) error {
	task, err := e.Repo.GetDownloadTask(taskID)
	if err != nil {
		return err
	}
	if task.Status != domain.DownloadStatusPendingSelection {
		return apperr.Conflictf("task %s is not awaiting selection", taskID)
	}

	task.SkippedUsernames = append(task.SkippedUsernames, username)

	scored, err := decodeCachedResults(task)
	if err != nil {
		return err
	}

	kept := make([]ScoredResponse, 0, len(scored))
	for _, s := range scored {
		if s.Response.Username != username {
			kept = append(kept, s)
		}
	}

	if len(kept) == 0 {
		return e.deferOrFail(ctx, task, "all candidates skipped")
	}
	if len(kept) == 1 {
		return e.commitSelection(ctx, task, kept[0])
	}

	resultsJSON, _ := json.Marshal(kept)
	task.SearchResults = domain.RawJSON(resultsJSON)
	return e.Repo.UpdateDownloadTask(ctx, task)
}

// RetrySearch resets task to pending, discarding any cached
// candidates, so the next Step issues a fresh search and moves it to
// searching. A non-empty query is stored on the task, but startSearch
// builds the search text from the wishlist item and overwrites it.
func (e *Engine) RetrySearch(ctx context.Context, taskID string, query string) error {
	task, err := e.Repo.GetDownloadTask(taskID)
	if err != nil {
		return err
	}
	if task.Status.IsTerminal() {
		return apperr.Conflictf("task %s is terminal", taskID)
	}

	task.Status = domain.DownloadStatusPending
	task.SearchResults = nil
	task.SelectionExpiresAt = nil
	if query != "" {
		task.SearchQuery = &query
	}
	task.StartedAt = timePtr(time.Now())
	return e.Repo.UpdateDownloadTask(ctx, task)
}

// AutoSelect applies ranking to a pending_selection task's cached
// candidates immediately, bypassing the manual wait.
func (e *Engine) AutoSelect(ctx context.Context, taskID string) error {
	task, err := e.Repo.GetDownloadTask(taskID)
	if err != nil {
		return err
	}
	if task.Status != domain.DownloadStatusPendingSelection {
		return apperr.Conflictf("task %s is not awaiting selection", taskID)
	}

	scored, err := decodeCachedResults(task)
	if err != nil {
		return err
	}
	if len(scored) == 0 {
		return apperr.NotFoundf("no cached candidates for task %s", taskID)
	}
	return e.commitSelection(ctx, task, scored[0])
}

func decodeCachedResults(task *domain.DownloadTask) ([]ScoredResponse, error) {
	var scored []ScoredResponse
	if len(task.SearchResults) == 0 {
		return nil, apperr.NotFoundf("task %s has no cached search results", task.ID)
	}
	if err := json.Unmarshal(task.SearchResults, &scored); err != nil {
		return nil, apperr.Internalf(err, "failed to decode cached search results for task %s", task.ID)
	}
	return scored, nil
}

func candidateDirectory(c ScoredResponse) string {
	if len(c.MusicFiles) == 0 {
		return ""
	}
	return dirOf(c.MusicFiles[0].Filename)
}
