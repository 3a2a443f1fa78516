package httpapi

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/cesargomez89/crateflow/internal/config"
	"github.com/cesargomez89/crateflow/internal/domain"
	"github.com/cesargomez89/crateflow/internal/download"
	"github.com/cesargomez89/crateflow/internal/eventbus"
	"github.com/cesargomez89/crateflow/internal/httpclient"
	"github.com/cesargomez89/crateflow/internal/logger"
	"github.com/cesargomez89/crateflow/internal/peersearch"
	"github.com/cesargomez89/crateflow/internal/queue"
	"github.com/cesargomez89/crateflow/internal/scheduler"
	"github.com/cesargomez89/crateflow/internal/store"
	"github.com/cesargomez89/crateflow/internal/wishlist"
)

func setupTestHandler(t *testing.T) (*Handler, *store.DB) {
	t.Helper()
	path := t.TempDir() + "/test.db"
	db, err := store.NewSQLiteDB(path)
	if err != nil {
		t.Fatalf("NewSQLiteDB failed: %v", err)
	}
	t.Cleanup(func() {
		db.Close()
		os.Remove(path)
	})

	log := logger.New(logger.Config{Level: "error", Format: "text"})

	peerSrv := httptest.NewServer(http.NewServeMux())
	t.Cleanup(peerSrv.Close)
	hc := httpclient.NewClient(nil, time.Millisecond)
	peers := peersearch.New(peerSrv.URL, hc, log)

	cfg := &config.Config{DownloadsDir: t.TempDir(), Slskd: config.SlskdConfig{
		SelectionMode:        "auto",
		MaxFileSizeMB:        1024,
		MinCompletenessRatio: 0.8,
		RetryDelay:           time.Millisecond,
		MaxRetries:           2,
	}}

	engine := download.NewEngine(db, peers, cfg, log)
	q := queue.NewService(db, nil, false, log)
	wl := wishlist.NewService(db, log)
	sched := scheduler.New(db, eventbus.New(), log)

	return NewHandler(q, wl, engine, sched, log), db
}

func doJSON(t *testing.T, router http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("failed to encode request body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestSchedulerStatus_EmptyWhenNoJobsRegistered(t *testing.T) {
	h, _ := setupTestHandler(t)
	rec := doJSON(t, h.Router(), http.MethodGet, "/api/scheduler/status", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestSchedulerTrigger_UnknownJobReturns404(t *testing.T) {
	h, _ := setupTestHandler(t)
	rec := doJSON(t, h.Router(), http.MethodPost, "/api/scheduler/jobs/does-not-exist/trigger", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestQueueStats_ReturnsZeroCounts(t *testing.T) {
	h, _ := setupTestHandler(t)
	rec := doJSON(t, h.Router(), http.MethodGet, "/api/queue/stats", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var stats store.QueueStats
	if err := json.Unmarshal(rec.Body.Bytes(), &stats); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if stats.Pending != 0 {
		t.Errorf("expected 0 pending, got %d", stats.Pending)
	}
}

func TestQueueApprove_UnknownIDsApprovesZero(t *testing.T) {
	h, _ := setupTestHandler(t)
	rec := doJSON(t, h.Router(), http.MethodPost, "/api/queue/approve", idsRequest{IDs: []int64{999}})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestWishlistAddListDelete(t *testing.T) {
	h, _ := setupTestHandler(t)
	router := h.Router()

	addRec := doJSON(t, router, http.MethodPost, "/api/wishlist/", &domain.WishlistItem{
		Artist: "Boards of Canada",
		Album:  "Geogaddi",
	})
	if addRec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", addRec.Code, addRec.Body.String())
	}
	var added domain.WishlistItem
	if err := json.Unmarshal(addRec.Body.Bytes(), &added); err != nil {
		t.Fatalf("failed to decode added item: %v", err)
	}
	if added.ID == "" {
		t.Fatal("expected assigned ID")
	}

	listRec := doJSON(t, router, http.MethodGet, "/api/wishlist/", nil)
	if listRec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", listRec.Code)
	}
	var items []*domain.WishlistItem
	if err := json.Unmarshal(listRec.Body.Bytes(), &items); err != nil {
		t.Fatalf("failed to decode list: %v", err)
	}
	if len(items) != 1 {
		t.Fatalf("expected 1 item, got %d", len(items))
	}

	delRec := doJSON(t, router, http.MethodDelete, "/api/wishlist/"+added.ID, nil)
	if delRec.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d: %s", delRec.Code, delRec.Body.String())
	}
}

func TestWishlistDelete_UnknownIDReturns404(t *testing.T) {
	h, _ := setupTestHandler(t)
	rec := doJSON(t, h.Router(), http.MethodDelete, "/api/wishlist/does-not-exist", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestWishlistExport_ReturnsJSONArray(t *testing.T) {
	h, _ := setupTestHandler(t)
	rec := doJSON(t, h.Router(), http.MethodGet, "/api/wishlist/export", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var items []*domain.WishlistItem
	if err := json.Unmarshal(rec.Body.Bytes(), &items); err != nil {
		t.Fatalf("expected valid JSON array, got error: %v", err)
	}
}

func TestDownloadsStats_ReturnsZeroCounts(t *testing.T) {
	h, _ := setupTestHandler(t)
	rec := doJSON(t, h.Router(), http.MethodGet, "/api/downloads/stats", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var stats download.Stats
	if err := json.Unmarshal(rec.Body.Bytes(), &stats); err != nil {
		t.Fatalf("failed to decode stats: %v", err)
	}
	if stats.Active != 0 || stats.Failed != 0 {
		t.Errorf("expected zero counts on empty store, got %+v", stats)
	}
}

func TestDownloadsActive_EmptyStore(t *testing.T) {
	h, _ := setupTestHandler(t)
	rec := doJSON(t, h.Router(), http.MethodGet, "/api/downloads/active", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if body["total"].(float64) != 0 {
		t.Errorf("expected total 0, got %v", body["total"])
	}
}

func TestDownloadsSelect_UnknownTaskReturns404(t *testing.T) {
	h, _ := setupTestHandler(t)
	rec := doJSON(t, h.Router(), http.MethodPost, "/api/downloads/does-not-exist/select", selectRequest{Username: "peer1"})
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d: %s", rec.Code, rec.Body.String())
	}
}
