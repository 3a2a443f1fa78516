package jobs

import (
	"context"

	"github.com/cesargomez89/crateflow/internal/apperr"
	"github.com/cesargomez89/crateflow/internal/domain"
	"github.com/cesargomez89/crateflow/internal/download"
	"github.com/cesargomez89/crateflow/internal/eventbus"
	"github.com/cesargomez89/crateflow/internal/logger"
	"github.com/cesargomez89/crateflow/internal/scheduler"
	"github.com/cesargomez89/crateflow/internal/store"
	"github.com/cesargomez89/crateflow/internal/wishlist"
)

// NewDownloadDriver returns the handler that opens a DownloadTask for
// every unprocessed WishlistItem still missing one, then advances
// every non-terminal task by a single FSM step (spec.md §4.7
// "DownloadDriver").
func NewDownloadDriver(
	repo *store.DB,
	wl *wishlist.Service,
	engine *download.Engine,
	bus *eventbus.Bus,
	log *logger.Logger,
) scheduler.Handler {
	log = log.WithComponent("download_driver")

	return func(ctx context.Context) error {
		opened, err := openPendingTasks(ctx, repo, wl, log)
		if err != nil {
			return err
		}

		advanced, err := advanceActiveTasks(ctx, repo, engine, bus, log)
		if err != nil {
			return err
		}

		log.Info("download driver tick complete", "opened", opened, "advanced", advanced)
		return nil
	}
}

func openPendingTasks(ctx context.Context, repo *store.DB, wl *wishlist.Service, log *logger.Logger) (int, error) {
	items, err := wl.Unprocessed()
	if err != nil {
		return 0, err
	}

	opened := 0
	for _, item := range items {
		if ctx.Err() != nil {
			return opened, ctx.Err()
		}
		key := item.Artist + " - " + item.Album
		_, err := repo.CreateDownloadTask(ctx, item.ID, key)
		if err != nil {
			if apperr.KindOf(err) == apperr.Conflict {
				continue
			}
			log.Warn("create download task failed", "wishlist_item_id", item.ID, "error", err)
			continue
		}
		opened++
	}
	return opened, nil
}

func advanceActiveTasks(ctx context.Context, repo *store.DB, engine *download.Engine, bus *eventbus.Bus, log *logger.Logger) (int, error) {
	tasks, err := repo.ListActiveDownloadTasks()
	if err != nil {
		return 0, err
	}

	advanced := 0
	for _, task := range tasks {
		if ctx.Err() != nil {
			return advanced, ctx.Err()
		}

		item, err := repo.GetWishlistItem(task.WishlistItemID)
		if err != nil {
			log.Warn("get wishlist item failed", "task_id", task.ID, "error", err)
			continue
		}

		prevStatus := task.Status
		if err := engine.Step(ctx, task, item); err != nil {
			log.Warn("engine step failed", "task_id", task.ID, "error", err)
			continue
		}
		advanced++

		if task.Status != prevStatus {
			emitTransition(bus, task)
		}
	}
	return advanced, nil
}

func emitTransition(bus *eventbus.Bus, task *domain.DownloadTask) {
	kind := string(task.Status)
	payload := map[string]any{"task_id": task.ID, "status": kind}
	if task.Status == domain.DownloadStatusFailed && task.ErrorMessage != nil {
		payload["error"] = *task.ErrorMessage
	}
	bus.Publish(eventbus.Event{Channel: eventbus.ChannelDownloads, Kind: kind, Payload: payload})
}
