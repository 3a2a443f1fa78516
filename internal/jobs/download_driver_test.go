package jobs

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/cesargomez89/crateflow/internal/config"
	"github.com/cesargomez89/crateflow/internal/domain"
	"github.com/cesargomez89/crateflow/internal/download"
	"github.com/cesargomez89/crateflow/internal/eventbus"
	"github.com/cesargomez89/crateflow/internal/httpclient"
	"github.com/cesargomez89/crateflow/internal/peersearch"
	"github.com/cesargomez89/crateflow/internal/wishlist"
)

func testPeerClient(t *testing.T) *peersearch.Client {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	t.Cleanup(srv.Close)
	hc := httpclient.NewClient(nil, time.Millisecond)
	return peersearch.New(srv.URL, hc, testLogger())
}

func TestDownloadDriver_OpensPendingTaskForUnprocessedItem(t *testing.T) {
	db := setupTestDB(t)
	log := testLogger()
	bus := eventbus.New()

	cfg := &config.Config{
		DownloadsDir: t.TempDir(),
		Slskd: config.SlskdConfig{
			SelectionMode:        "auto",
			MaxFileSizeMB:        1024,
			FileCountScoreCap:    200,
			CompletenessWeight:   200,
			MinCompletenessRatio: 0.8,
			PenalizeExcess:       true,
			RetryDelay:           time.Millisecond,
			MaxRetries:           2,
		},
	}
	peers := testPeerClient(t)
	engine := download.NewEngine(db, peers, cfg, log)
	wl := wishlist.NewService(db, log)

	items, err := db.Import(context.Background(), []*domain.WishlistItem{
		{Artist: "Radiohead", Album: "In Rainbows", Type: domain.ItemTypeAlbum},
	})
	if err != nil {
		t.Fatalf("Import failed: %v", err)
	}
	if items[0].Status != "added" {
		t.Fatalf("expected item to be added, got %s", items[0].Status)
	}

	handler := NewDownloadDriver(db, wl, engine, bus, log)
	if err := handler(context.Background()); err != nil {
		t.Fatalf("handler failed: %v", err)
	}

	tasks, err := db.ListActiveDownloadTasks()
	if err != nil {
		t.Fatalf("ListActiveDownloadTasks failed: %v", err)
	}
	if len(tasks) != 1 {
		t.Fatalf("expected one active task, got %d", len(tasks))
	}
	if tasks[0].Status == domain.DownloadStatusPending {
		t.Error("expected the engine to have advanced the task past pending in the same tick")
	}
}

func TestDownloadDriver_DoesNotDuplicateActiveTask(t *testing.T) {
	db := setupTestDB(t)
	log := testLogger()
	bus := eventbus.New()
	cfg := &config.Config{DownloadsDir: t.TempDir(), Slskd: config.SlskdConfig{SelectionMode: "auto", MaxFileSizeMB: 1024, RetryDelay: time.Millisecond, MaxRetries: 2}}
	peers := testPeerClient(t)
	engine := download.NewEngine(db, peers, cfg, log)
	wl := wishlist.NewService(db, log)

	items, err := db.Import(context.Background(), []*domain.WishlistItem{
		{Artist: "Radiohead", Album: "Kid A", Type: domain.ItemTypeAlbum},
	})
	if err != nil {
		t.Fatalf("Import failed: %v", err)
	}
	_ = items

	handler := NewDownloadDriver(db, wl, engine, bus, log)
	if err := handler(context.Background()); err != nil {
		t.Fatalf("first tick failed: %v", err)
	}
	if err := handler(context.Background()); err != nil {
		t.Fatalf("second tick failed: %v", err)
	}

	tasks, err := db.ListActiveDownloadTasks()
	if err != nil {
		t.Fatalf("ListActiveDownloadTasks failed: %v", err)
	}
	if len(tasks) != 1 {
		t.Fatalf("expected exactly one active task across two ticks, got %d", len(tasks))
	}
}
