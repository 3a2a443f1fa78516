// Package jobs is the Discovery Jobs component (C7): three
// scheduler.Handler functions — RecommenderFetch, CatalogSimilarity,
// DownloadDriver — composing the C2 external clients and the C3/C4/C5
// services per spec.md §4.7. Grounded on the teacher's
// DiscoveryService.runRecommendationCycle shape, generalized to the
// scheduler's async Handler signature.
package jobs

import (
	"context"

	"github.com/cesargomez89/crateflow/internal/config"
	"github.com/cesargomez89/crateflow/internal/domain"
	"github.com/cesargomez89/crateflow/internal/logger"
	"github.com/cesargomez89/crateflow/internal/metadata"
	"github.com/cesargomez89/crateflow/internal/queue"
	"github.com/cesargomez89/crateflow/internal/recommender"
	"github.com/cesargomez89/crateflow/internal/scheduler"
)

// NewRecommenderFetch returns the handler that pulls listening-history
// recommendations, resolves each to an album, and lands it in the
// queue (or straight onto the wishlist when queue_approval_mode is
// auto) — spec.md §4.7 "RecommenderFetch".
func NewRecommenderFetch(
	cfg *config.Config,
	rec *recommender.Client,
	meta *metadata.Client,
	q *queue.Service,
	log *logger.Logger,
) scheduler.Handler {
	log = log.WithComponent("recommender_fetch")

	return func(ctx context.Context) error {
		recs := rec.FetchRecommendations(ctx, cfg.Listenbrainz.User, cfg.Listenbrainz.Token, cfg.FetchCount)
		log.Info("fetched recommendations", "count", len(recs))

		added := 0
		for _, r := range recs {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if r.Score != nil && *r.Score < cfg.MinScore {
				continue
			}

			processed, err := q.WasProcessed(r.CanonicalID)
			if err != nil {
				log.Warn("check processed failed", "canonical_id", r.CanonicalID, "error", err)
				continue
			}
			if processed {
				continue
			}
			pending, err := q.IsPending(r.CanonicalID)
			if err != nil {
				log.Warn("check pending failed", "canonical_id", r.CanonicalID, "error", err)
				continue
			}
			rejected, err := q.IsRejected(r.CanonicalID)
			if err != nil {
				log.Warn("check rejected failed", "canonical_id", r.CanonicalID, "error", err)
				continue
			}
			if pending || rejected {
				continue
			}

			album := meta.ResolveRecordingToAlbum(ctx, r.CanonicalID)
			if album == nil {
				continue
			}

			item := &domain.QueueItem{
				CanonicalID: r.CanonicalID,
				Artist:      album.Artist,
				Album:       &album.AlbumTitle,
				Type:        domain.ItemTypeAlbum,
				Score:       r.Score,
				Source:      domain.QueueSourceRecommender,
				Year:        album.Year,
			}
			if cfg.Mode == "track" {
				item.Type = domain.ItemTypeTrack
				item.Title = &album.TrackTitle
			}

			if err := q.AddPending(ctx, item); err != nil {
				log.Warn("add pending failed", "canonical_id", r.CanonicalID, "error", err)
				continue
			}

			if cfg.QueueApprovalMode == "auto" {
				if id, ok, err := q.FindPendingID(r.CanonicalID); err != nil {
					log.Warn("find pending id failed", "canonical_id", r.CanonicalID, "error", err)
				} else if ok {
					if _, err := q.Approve(ctx, []int64{id}); err != nil {
						log.Warn("auto-approve failed", "canonical_id", r.CanonicalID, "error", err)
					}
				}
			}

			if err := q.MarkProcessed(ctx, r.CanonicalID); err != nil {
				log.Warn("mark processed failed", "canonical_id", r.CanonicalID, "error", err)
			}
			added++
		}

		log.Info("recommender fetch complete", "added", added)
		return nil
	}
}
