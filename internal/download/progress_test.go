package download

import (
	"testing"

	"github.com/cesargomez89/crateflow/internal/domain"
	"github.com/cesargomez89/crateflow/internal/peersearch"
)

func strPtr(s string) *string { return &s }

func taskWithPeer(username, directory string) *domain.DownloadTask {
	return &domain.DownloadTask{
		ID:            "task-1",
		PeerUsername:  strPtr(username),
		PeerDirectory: strPtr(directory),
	}
}

func TestReconcile_CompletedWhenAllTerminalNoError(t *testing.T) {
	task := taskWithPeer("alice", "Music/Album")
	transfers := []peersearch.TransferState{
		{Username: "alice", Directory: "Music/Album", State: "Completed, Succeeded", BytesTransferred: 100, BytesTotal: 100, FilesCompleted: 1, FilesTotal: 1},
	}
	result := Reconcile(task, transfers)
	if !result.Completed {
		t.Fatal("expected completed")
	}
}

func TestReconcile_FailedWhenAllTerminalWithError(t *testing.T) {
	task := taskWithPeer("alice", "Music/Album")
	transfers := []peersearch.TransferState{
		{Username: "alice", Directory: "Music/Album", State: "Errored"},
	}
	result := Reconcile(task, transfers)
	if !result.Failed {
		t.Fatal("expected failed")
	}
}

func TestReconcile_IgnoresUnmatchedTransfers(t *testing.T) {
	task := taskWithPeer("alice", "Music/Album")
	transfers := []peersearch.TransferState{
		{Username: "bob", Directory: "Other", State: "Completed"},
	}
	result := Reconcile(task, transfers)
	if result.Completed || result.Failed {
		t.Fatal("expected neither terminal transition for unmatched transfer")
	}
}

func TestReconcile_InProgressNeitherCompletedNorFailed(t *testing.T) {
	task := taskWithPeer("alice", "Music/Album")
	transfers := []peersearch.TransferState{
		{Username: "alice", Directory: "Music/Album", State: "InProgress", BytesTransferred: 50, BytesTotal: 100, AverageSpeed: 10},
	}
	result := Reconcile(task, transfers)
	if result.Completed || result.Failed {
		t.Fatal("expected in-progress transfer to leave task non-terminal")
	}
	if result.Progress.EstimatedTimeRemaining == nil {
		t.Error("expected an ETA to be computed from average speed")
	}
}

func TestMatchesTask_NormalizesDirectorySeparators(t *testing.T) {
	task := taskWithPeer("alice", "Music/Album/")
	transfer := peersearch.TransferState{Username: "alice", Directory: `Music\Album`}
	if !matchesTask(task, transfer) {
		t.Fatal("expected normalized directories to match")
	}
}

func TestHasFlag_CaseInsensitiveCommaList(t *testing.T) {
	if !hasFlag("Completed, Succeeded", "succeeded") {
		t.Fatal("expected case-insensitive match within comma list")
	}
	if hasFlag("Queued", "succeeded") {
		t.Fatal("expected no match")
	}
}
