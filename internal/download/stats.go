package download

import (
	"context"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/cesargomez89/crateflow/internal/apperr"
	"github.com/cesargomez89/crateflow/internal/domain"
)

// Retry resets a failed task back to pending with a fresh retry
// budget (spec.md §6 "retry(ids[])"). Unlike RetrySearch, which only
// resumes a still-active task, Retry is the sole way out of the
// terminal failed state.
func (e *Engine) Retry(ctx context.Context, taskID string) error {
	task, err := e.Repo.GetDownloadTask(taskID)
	if err != nil {
		return err
	}
	if task.Status != domain.DownloadStatusFailed {
		return apperr.Conflictf("task %s is not failed", taskID)
	}

	task.Status = domain.DownloadStatusPending
	task.RetryCount = 0
	task.ErrorMessage = nil
	task.SearchResults = nil
	task.SelectionExpiresAt = nil
	task.StartedAt = timePtr(time.Now())
	return e.Repo.UpdateDownloadTask(ctx, task)
}

// Stats merges the FSM bucket counts with live transfer telemetry for
// currently-downloading tasks (spec.md §6 stats() ->
// {active, queued, completed, failed, totalBandwidth}).
type Stats struct {
	Active              int     `json:"active"`
	Queued              int     `json:"queued"`
	Completed           int     `json:"completed"`
	Failed              int     `json:"failed"`
	TotalBandwidth      float64 `json:"total_bandwidth"`
	TotalBandwidthHuman string  `json:"total_bandwidth_human"`
}

func (e *Engine) Stats(ctx context.Context) (*Stats, error) {
	counts, err := e.Repo.DownloadCounts()
	if err != nil {
		return nil, err
	}

	stats := &Stats{
		Active:    counts.Active,
		Queued:    counts.Queued,
		Completed: counts.Completed,
		Failed:    counts.Failed,
	}

	if e.Metrics != nil {
		e.Metrics.SetDownloadTaskCounts(map[string]int{
			"active":    counts.Active,
			"queued":    counts.Queued,
			"completed": counts.Completed,
			"failed":    counts.Failed,
		})
	}

	downloading, err := e.Repo.ListDownloadTasksByStatus(domain.DownloadStatusDownloading)
	if err != nil {
		return nil, err
	}
	if len(downloading) == 0 {
		return stats, nil
	}

	transfers := e.Peers.Transfers(ctx)
	for _, task := range downloading {
		result := Reconcile(task, transfers)
		stats.TotalBandwidth += result.Progress.AverageSpeed
	}
	stats.TotalBandwidthHuman = humanize.Bytes(uint64(stats.TotalBandwidth)) + "/s"
	return stats, nil
}
