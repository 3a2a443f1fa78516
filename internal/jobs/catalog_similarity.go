package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/cesargomez89/crateflow/internal/config"
	"github.com/cesargomez89/crateflow/internal/coverart"
	"github.com/cesargomez89/crateflow/internal/domain"
	"github.com/cesargomez89/crateflow/internal/library"
	"github.com/cesargomez89/crateflow/internal/logger"
	"github.com/cesargomez89/crateflow/internal/metadata"
	"github.com/cesargomez89/crateflow/internal/queue"
	"github.com/cesargomez89/crateflow/internal/scheduler"
	"github.com/cesargomez89/crateflow/internal/similarity"
	"github.com/cesargomez89/crateflow/internal/store"
)

// Similarity/release-group lookups are cached for a day: artist
// similarity graphs and an artist's discography don't meaningfully
// change between consecutive CatalogSimilarity runs, and caching lets
// a retried run or a re-triggered job skip a third-party hit entirely
// (spec.md §5 "no job saturates a third party").
const (
	similarityCacheTTL   = 24 * time.Hour
	releaseGroupCacheTTL = 24 * time.Hour
)

func similarityCacheKey(artist string) string {
	return "similarity:" + strings.ToLower(artist)
}

func releaseGroupCacheKey(artist string) string {
	return "metadata:release_groups:" + strings.ToLower(artist)
}

// cachedSimilar returns sim.GetSimilar's result for artist, preferring
// a cache hit over consuming the shared rate limiter.
func cachedSimilar(ctx context.Context, repo *store.DB, sim *similarity.Client, limiter *rate.Limiter, artist string) ([]similarity.Match, error) {
	key := similarityCacheKey(artist)
	if cached, err := repo.GetCache(key); err == nil && cached != nil {
		var matches []similarity.Match
		if err := json.Unmarshal(cached, &matches); err == nil {
			return matches, nil
		}
	}

	if err := limiter.Wait(ctx); err != nil {
		return nil, err
	}
	matches := sim.GetSimilar(ctx, artist, 20)

	if data, err := json.Marshal(matches); err == nil {
		_ = repo.SetCache(ctx, key, data, similarityCacheTTL)
	}
	return matches, nil
}

// cachedReleaseGroups returns meta.SearchReleaseGroups' result for
// artist, preferring a cache hit over another metadata lookup.
func cachedReleaseGroups(ctx context.Context, repo *store.DB, meta *metadata.Client, artist string, limit int) []metadata.ReleaseGroup {
	key := releaseGroupCacheKey(artist)
	if cached, err := repo.GetCache(key); err == nil && cached != nil {
		var groups []metadata.ReleaseGroup
		if err := json.Unmarshal(cached, &groups); err == nil {
			return groups
		}
	}

	groups := meta.SearchReleaseGroups(ctx, artist, "Album", limit)

	if data, err := json.Marshal(groups); err == nil {
		_ = repo.SetCache(ctx, key, data, releaseGroupCacheTTL)
	}
	return groups
}

// candidateArtist aggregates similarity scores contributed by every
// library artist a candidate was surfaced from (spec.md §4.7
// "aggregate scores across all library artists").
type candidateArtist struct {
	name        string
	canonicalID *string
	score       float64
	sourceCount int
}

// NewCatalogSimilarity returns the handler that mirrors the library,
// fans out artist-similarity lookups with ≥1s pacing, aggregates and
// ranks newly discovered artists, and queues albums for the winners
// (spec.md §4.7 "CatalogSimilarity").
func NewCatalogSimilarity(
	cfg *config.Config,
	lib *library.Client,
	sim *similarity.Client,
	meta *metadata.Client,
	cover *coverart.Client,
	repo *store.DB,
	q *queue.Service,
	log *logger.Logger,
) scheduler.Handler {
	log = log.WithComponent("catalog_similarity")

	return func(ctx context.Context) error {
		if !cfg.CatalogDiscovery.Enabled {
			return nil
		}

		libraryArtists := lib.ListArtists(ctx)
		for name, ref := range libraryArtists {
			if err := repo.UpsertCatalogArtist(ctx, ref.Name, ref.ExternalID); err != nil {
				log.Warn("upsert catalog artist failed", "artist", name, "error", err)
			}
		}

		catalogArtists, err := repo.ListCatalogArtists()
		if err != nil {
			return err
		}

		aggregated, err := fetchSimilarArtists(ctx, repo, sim, catalogArtists, cfg.CatalogDiscovery.MinSimilarity)
		if err != nil {
			return err
		}

		winners := rankCandidates(aggregated, libraryArtists, repo, cfg.CatalogDiscovery.MaxArtistsPerRun, log)

		added := 0
		for _, w := range winners {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			added += queueAlbumsForArtist(ctx, repo, w, meta, cover, q, cfg, log)
			if err := repo.MarkDiscovered(ctx, w.name); err != nil {
				log.Warn("mark discovered failed", "artist", w.name, "error", err)
			}
			time.Sleep(time.Second)
		}

		log.Info("catalog similarity complete", "winners", len(winners), "queued", added)
		return nil
	}
}

// fetchSimilarArtists fans out GetSimilar calls across catalogArtists,
// paced to at least one request per second via a shared limiter while
// bounding concurrency with an errgroup (spec.md §4.7, §5).
func fetchSimilarArtists(
	ctx context.Context,
	repo *store.DB,
	sim *similarity.Client,
	catalogArtists []*domain.CatalogArtist,
	minSimilarity float64,
) (map[string]*candidateArtist, error) {
	limiter := rate.NewLimiter(rate.Every(time.Second), 1)
	var mu sync.Mutex
	aggregated := make(map[string]*candidateArtist)

	group, gctx := errgroup.WithContext(ctx)
	group.SetLimit(4)

	for _, artist := range catalogArtists {
		artist := artist
		group.Go(func() error {
			matches, err := cachedSimilar(gctx, repo, sim, limiter, artist.Name)
			if err != nil {
				return err
			}

			mu.Lock()
			defer mu.Unlock()
			for _, m := range matches {
				if m.MatchScore < minSimilarity {
					continue
				}
				key := strings.ToLower(m.Name)
				c, ok := aggregated[key]
				if !ok {
					c = &candidateArtist{name: m.Name, canonicalID: m.CanonicalID}
					aggregated[key] = c
				}
				c.score += m.MatchScore
				c.sourceCount++
				if c.canonicalID == nil {
					c.canonicalID = m.CanonicalID
				}
			}
			return nil
		})
	}

	if err := group.Wait(); err != nil {
		return nil, err
	}
	return aggregated, nil
}

// rankCandidates filters out library members and previously-discovered
// artists, sorts by (source_count desc, score desc), and returns the
// top maxArtists (spec.md §4.7).
func rankCandidates(
	aggregated map[string]*candidateArtist,
	libraryArtists map[string]library.ArtistRef,
	repo *store.DB,
	maxArtists int,
	log *logger.Logger,
) []*candidateArtist {
	filtered := make([]*candidateArtist, 0, len(aggregated))
	for key, c := range aggregated {
		if _, inLibrary := libraryArtists[key]; inLibrary {
			continue
		}
		discovered, err := repo.WasDiscovered(c.name)
		if err != nil {
			log.Warn("check discovered failed", "artist", c.name, "error", err)
			continue
		}
		if discovered {
			continue
		}
		filtered = append(filtered, c)
	}

	sort.Slice(filtered, func(i, j int) bool {
		if filtered[i].sourceCount != filtered[j].sourceCount {
			return filtered[i].sourceCount > filtered[j].sourceCount
		}
		return filtered[i].score > filtered[j].score
	})

	if len(filtered) > maxArtists {
		filtered = filtered[:maxArtists]
	}
	return filtered
}

// queueAlbumsForArtist resolves up to albumsPerArtist release-groups
// for a winning artist with one cached metadata lookup, waits 1s
// between successive groups, and queues each one not already pending
// or rejected. Cover URLs are built locally, without a request.
func queueAlbumsForArtist(
	ctx context.Context,
	repo *store.DB,
	w *candidateArtist,
	meta *metadata.Client,
	cover *coverart.Client,
	q *queue.Service,
	cfg *config.Config,
	log *logger.Logger,
) int {
	groups := cachedReleaseGroups(ctx, repo, meta, w.name, cfg.CatalogDiscovery.AlbumsPerArtist)
	added := 0
	for i, rg := range groups {
		if ctx.Err() != nil {
			return added
		}
		if i > 0 {
			time.Sleep(time.Second)
		}

		canonicalID := rg.ID
		pending, err := q.IsPending(canonicalID)
		if err != nil {
			log.Warn("check pending failed", "release_group", canonicalID, "error", err)
			continue
		}
		rejected, err := q.IsRejected(canonicalID)
		if err != nil {
			log.Warn("check rejected failed", "release_group", canonicalID, "error", err)
			continue
		}
		if pending || rejected {
			continue
		}

		score := math.Round(w.score*100) / 100
		coverURL := cover.CoverURL(rg.ID, 500)
		album := rg.Title
		var year *int
		if rg.FirstReleaseDate != nil && len(*rg.FirstReleaseDate) >= 4 {
			var y int
			if _, scanErr := fmt.Sscanf((*rg.FirstReleaseDate)[:4], "%d", &y); scanErr == nil {
				year = &y
			}
		}

		item := &domain.QueueItem{
			CanonicalID: canonicalID,
			Artist:      w.name,
			Album:       &album,
			Type:        domain.ItemTypeAlbum,
			Score:       &score,
			Source:      domain.QueueSourceCatalog,
			SimilarTo:   []string{w.name},
			CoverURL:    &coverURL,
			Year:        year,
		}
		if err := q.AddPending(ctx, item); err != nil {
			log.Warn("add pending failed", "release_group", canonicalID, "error", err)
			continue
		}

		if cfg.QueueApprovalMode == "auto" {
			if id, ok, err := q.FindPendingID(canonicalID); err != nil {
				log.Warn("find pending id failed", "release_group", canonicalID, "error", err)
			} else if ok {
				if _, err := q.Approve(ctx, []int64{id}); err != nil {
					log.Warn("auto-approve failed", "release_group", canonicalID, "error", err)
				}
			}
		}
		added++
	}
	return added
}
