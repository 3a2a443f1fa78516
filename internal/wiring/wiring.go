// Package wiring composes every component (C1-C8) into a ready-to-run
// Deps value, shared by cmd/server and cmd/jobctl so both processes
// register the exact same job table against the same store.
package wiring

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/cesargomez89/crateflow/internal/config"
	"github.com/cesargomez89/crateflow/internal/constants"
	"github.com/cesargomez89/crateflow/internal/coverart"
	"github.com/cesargomez89/crateflow/internal/download"
	"github.com/cesargomez89/crateflow/internal/eventbus"
	"github.com/cesargomez89/crateflow/internal/httpclient"
	"github.com/cesargomez89/crateflow/internal/jobs"
	"github.com/cesargomez89/crateflow/internal/library"
	"github.com/cesargomez89/crateflow/internal/logger"
	"github.com/cesargomez89/crateflow/internal/metadata"
	"github.com/cesargomez89/crateflow/internal/metrics"
	"github.com/cesargomez89/crateflow/internal/peersearch"
	"github.com/cesargomez89/crateflow/internal/queue"
	"github.com/cesargomez89/crateflow/internal/recommender"
	"github.com/cesargomez89/crateflow/internal/scheduler"
	"github.com/cesargomez89/crateflow/internal/similarity"
	"github.com/cesargomez89/crateflow/internal/store"
	"github.com/cesargomez89/crateflow/internal/wishlist"
)

// Deps holds every composed component. Callers that only need a subset
// (jobctl never serves HTTP, for instance) just ignore the rest.
type Deps struct {
	Config    *config.Config
	Logger    *logger.Logger
	DB        *store.DB
	Registry  *prometheus.Registry
	Metrics   *metrics.Metrics
	Bus       *eventbus.Bus
	Queue     *queue.Service
	Wishlist  *wishlist.Service
	Engine    *download.Engine
	Scheduler *scheduler.Scheduler
}

// Build opens the store, wires every C2 client, composes C3-C6, and
// registers C7's three jobs against the scheduler without starting
// its cron ticker: callers decide whether to Start (cmd/server) or
// only Trigger/Cancel one-off (cmd/jobctl).
func Build(ctx context.Context, cfg *config.Config, log *logger.Logger) (*Deps, error) {
	db, err := store.NewSQLiteDB(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	reg := prometheus.NewRegistry()
	mtr := metrics.New(reg)
	db.SetMetrics(mtr)

	bus := eventbus.New()

	// C2 external service clients, each over its own rate-limited
	// httpclient.Client, paced per spec.md §4.2 ("Similarity/Metadata
	// ≥1 req/s, CoverArt ≥500ms").
	rec := recommender.New(cfg.Listenbrainz.BaseURL, httpclient.NewClient(nil, 0), log)
	lib := library.New(cfg.Library.BaseURL, cfg.Library.Username, cfg.Library.Password, httpclient.NewClient(nil, 0), log)
	sim := similarity.New(cfg.Similarity.BaseURL, httpclient.NewClient(nil, constants.SimilarityMinInterval), log)
	meta := metadata.New(cfg.Metadata.BaseURL, httpclient.NewClient(nil, constants.MetadataMinInterval), log)
	cover := coverart.New(cfg.CoverArt.BaseURL)
	peers := peersearch.New(cfg.Slskd.Host, httpclient.NewClient(nil, 0), log)

	q := queue.NewService(db, lib, cfg.LibraryDuplicate.HideInLibrary, log)
	wl := wishlist.NewService(db, log)
	engine := download.NewEngine(db, peers, cfg, log).WithMetrics(mtr)
	sched := scheduler.New(db, bus, log).WithMetrics(mtr)

	recommenderFetch := jobs.NewRecommenderFetch(cfg, rec, meta, q, log)
	if err := sched.Register(ctx, "recommender_fetch", "0 */6 * * *", recommenderFetch); err != nil {
		db.Close()
		return nil, fmt.Errorf("register recommender_fetch: %w", err)
	}

	catalogSimilarity := jobs.NewCatalogSimilarity(cfg, lib, sim, meta, cover, db, q, log)
	if err := sched.Register(ctx, "catalog_similarity", "0 2 * * *", catalogSimilarity); err != nil {
		db.Close()
		return nil, fmt.Errorf("register catalog_similarity: %w", err)
	}

	downloadDriver := jobs.NewDownloadDriver(db, wl, engine, bus, log)
	if err := sched.Register(ctx, "download_driver", "*/1 * * * *", downloadDriver); err != nil {
		db.Close()
		return nil, fmt.Errorf("register download_driver: %w", err)
	}

	return &Deps{
		Config:    cfg,
		Logger:    log,
		DB:        db,
		Registry:  reg,
		Metrics:   mtr,
		Bus:       bus,
		Queue:     q,
		Wishlist:  wl,
		Engine:    engine,
		Scheduler: sched,
	}, nil
}

func (d *Deps) Close() {
	d.DB.Close()
}
