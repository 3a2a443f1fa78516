package download

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/cesargomez89/crateflow/internal/domain"
	"github.com/cesargomez89/crateflow/internal/peersearch"
)

func pendingSelectionTask(t *testing.T, db interface {
	CreateDownloadTask(ctx context.Context, wishlistItemID, wishlistKey string) (*domain.DownloadTask, error)
	UpdateDownloadTask(ctx context.Context, task *domain.DownloadTask) error
}, scored []ScoredResponse) *domain.DownloadTask {
	t.Helper()
	task, err := db.CreateDownloadTask(context.Background(), "wish-1", "artist::album")
	if err != nil {
		t.Fatalf("CreateDownloadTask failed: %v", err)
	}
	resultsJSON, _ := json.Marshal(scored)
	task.SearchResults = domain.RawJSON(resultsJSON)
	task.Status = domain.DownloadStatusPendingSelection
	if err := db.UpdateDownloadTask(context.Background(), task); err != nil {
		t.Fatalf("UpdateDownloadTask failed: %v", err)
	}
	return task
}

func twoCandidates() []ScoredResponse {
	return []ScoredResponse{
		{
			Response:   peersearch.Response{Username: "peer1"},
			Score:      500,
			MusicFiles: []peersearch.FileEntry{{Filename: "Artist/Album/01.mp3"}},
		},
		{
			Response:   peersearch.Response{Username: "peer2"},
			Score:      300,
			MusicFiles: []peersearch.FileEntry{{Filename: "Artist/Album2/01.mp3"}},
		},
	}
}

func TestSelect_CommitsMatchingCandidate(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v0/transfers/downloads/peer2", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
	})
	engine, db := testEngine(t, mux)
	task := pendingSelectionTask(t, db, twoCandidates())

	if err := engine.Select(context.Background(), task.ID, "peer2", ""); err != nil {
		t.Fatalf("Select failed: %v", err)
	}

	stored, err := db.GetDownloadTask(task.ID)
	if err != nil {
		t.Fatalf("GetDownloadTask failed: %v", err)
	}
	if stored.Status != domain.DownloadStatusQueued {
		t.Fatalf("expected queued, got %s", stored.Status)
	}
	if stored.PeerUsername == nil || *stored.PeerUsername != "peer2" {
		t.Errorf("expected peer2 selected, got %+v", stored.PeerUsername)
	}
}

func TestSelect_UnknownUsernameNotFound(t *testing.T) {
	engine, db := testEngine(t, http.NewServeMux())
	task := pendingSelectionTask(t, db, twoCandidates())

	if err := engine.Select(context.Background(), task.ID, "ghost", ""); err == nil {
		t.Fatal("expected error for unknown username")
	}
}

func TestSkip_LeavesSingleSurvivorAutoSelected(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v0/transfers/downloads/peer2", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
	})
	engine, db := testEngine(t, mux)
	task := pendingSelectionTask(t, db, twoCandidates())

	if err := engine.Skip(context.Background(), task.ID, "peer1"); err != nil {
		t.Fatalf("Skip failed: %v", err)
	}

	stored, err := db.GetDownloadTask(task.ID)
	if err != nil {
		t.Fatalf("GetDownloadTask failed: %v", err)
	}
	if stored.Status != domain.DownloadStatusQueued {
		t.Fatalf("expected queued after skipping down to one candidate, got %s", stored.Status)
	}
}

func TestSkip_AllSkippedDefers(t *testing.T) {
	engine, db := testEngine(t, http.NewServeMux())
	single := []ScoredResponse{
		{Response: peersearch.Response{Username: "peer1"}, MusicFiles: []peersearch.FileEntry{{Filename: "a.mp3"}}},
	}
	task := pendingSelectionTask(t, db, single)

	if err := engine.Skip(context.Background(), task.ID, "peer1"); err != nil {
		t.Fatalf("Skip failed: %v", err)
	}

	stored, err := db.GetDownloadTask(task.ID)
	if err != nil {
		t.Fatalf("GetDownloadTask failed: %v", err)
	}
	if stored.Status != domain.DownloadStatusDeferred {
		t.Fatalf("expected deferred, got %s", stored.Status)
	}
}

func TestAutoSelect_PicksTopScored(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v0/transfers/downloads/peer1", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
	})
	engine, db := testEngine(t, mux)
	task := pendingSelectionTask(t, db, twoCandidates())

	if err := engine.AutoSelect(context.Background(), task.ID); err != nil {
		t.Fatalf("AutoSelect failed: %v", err)
	}

	stored, err := db.GetDownloadTask(task.ID)
	if err != nil {
		t.Fatalf("GetDownloadTask failed: %v", err)
	}
	if stored.PeerUsername == nil || *stored.PeerUsername != "peer1" {
		t.Errorf("expected peer1 (higher score) selected, got %+v", stored.PeerUsername)
	}
}

func TestRetrySearch_ResetsToPending(t *testing.T) {
	engine, db := testEngine(t, http.NewServeMux())
	task := pendingSelectionTask(t, db, twoCandidates())

	if err := engine.RetrySearch(context.Background(), task.ID, "custom query"); err != nil {
		t.Fatalf("RetrySearch failed: %v", err)
	}

	stored, err := db.GetDownloadTask(task.ID)
	if err != nil {
		t.Fatalf("GetDownloadTask failed: %v", err)
	}
	if stored.Status != domain.DownloadStatusPending {
		t.Fatalf("expected pending, got %s", stored.Status)
	}
	if stored.SearchQuery == nil || *stored.SearchQuery != "custom query" {
		t.Errorf("expected custom query persisted, got %+v", stored.SearchQuery)
	}
}

func TestRetrySearch_RejectsTerminalTask(t *testing.T) {
	engine, db := testEngine(t, http.NewServeMux())
	task := newPendingTask(t, db)
	task.Status = domain.DownloadStatusCompleted
	if err := db.UpdateDownloadTask(context.Background(), task); err != nil {
		t.Fatalf("UpdateDownloadTask failed: %v", err)
	}

	if err := engine.RetrySearch(context.Background(), task.ID, ""); err == nil {
		t.Fatal("expected error retrying a terminal task")
	}
}
