package download

import (
	"fmt"
	"strings"
	"time"

	"github.com/cesargomez89/crateflow/internal/domain"
	"github.com/cesargomez89/crateflow/internal/peersearch"
)

// normalizeDirectory applies spec.md §4.5's matching normalization:
// backslash→forward-slash, trailing separator trimmed.
func normalizeDirectory(dir string) string {
	dir = strings.ReplaceAll(dir, "\\", "/")
	return strings.TrimRight(dir, "/")
}

// matchesTask reports whether a transfer belongs to task, matching by
// the normalized (peer_username, peer_directory) pair.
func matchesTask(task *domain.DownloadTask, t peersearch.TransferState) bool {
	if task.PeerUsername == nil || task.PeerDirectory == nil {
		return false
	}
	return t.Username == *task.PeerUsername &&
		normalizeDirectory(t.Directory) == normalizeDirectory(*task.PeerDirectory)
}

// hasFlag OR-matches a comma-separated peer state string
// case-insensitively against name (spec.md §4.5 "a state like
// 'Completed, Succeeded' counts as completed").
func hasFlag(state, name string) bool {
	for _, tok := range strings.Split(state, ",") {
		if strings.EqualFold(strings.TrimSpace(tok), name) {
			return true
		}
	}
	return false
}

var errorFlags = []string{"errored", "failed", "rejected", "cancelled", "timedout"}

func isErrorState(state string) bool {
	for _, f := range errorFlags {
		if hasFlag(state, f) {
			return true
		}
	}
	return false
}

func isCompletedState(state string) bool {
	return hasFlag(state, "completed") || hasFlag(state, "succeeded")
}

// Reconcile aggregates every transfer matching task into its progress
// snapshot and reports the FSM outcome, if any, per spec.md §4.5
// "Progress tracking".
type Reconciliation struct {
	Progress   domain.TransferProgress
	Completed  bool
	Failed     bool
	ErrorState string
}

func Reconcile(task *domain.DownloadTask, transfers []peersearch.TransferState) Reconciliation {
	var matched []peersearch.TransferState
	for _, t := range transfers {
		if matchesTask(task, t) {
			matched = append(matched, t)
		}
	}

	var prog domain.TransferProgress
	stateCounts := map[string]int{}
	allTerminal := true
	anyError := false
	var speedSum float64

	for _, t := range matched {
		prog.BytesTransferred += t.BytesTransferred
		prog.BytesTotal += t.BytesTotal
		prog.FilesTotal += t.FilesTotal
		prog.FilesCompleted += t.FilesCompleted
		stateCounts[t.State]++

		terminal := isCompletedState(t.State) || isErrorState(t.State)
		if !terminal {
			allTerminal = false
			speedSum += t.AverageSpeed
		}
		if isErrorState(t.State) {
			anyError = true
		}
	}
	prog.AverageSpeed = speedSum

	if speedSum > 0 && prog.BytesTotal > prog.BytesTransferred {
		remaining := prog.BytesTotal - prog.BytesTransferred
		eta := time.Duration(float64(remaining)/speedSum) * time.Second
		prog.EstimatedTimeRemaining = &eta
	}

	result := Reconciliation{Progress: prog}
	if len(matched) == 0 {
		return result
	}

	allBytesTransferred := prog.BytesTotal > 0 && prog.BytesTransferred >= prog.BytesTotal
	if (allTerminal && !anyError) || (allBytesTransferred && !anyError) {
		result.Completed = true
		return result
	}
	if allTerminal && anyError {
		result.Failed = true
		result.ErrorState = summarizeStates(stateCounts)
	}
	return result
}

func summarizeStates(counts map[string]int) string {
	var parts []string
	for state, n := range counts {
		parts = append(parts, fmt.Sprintf("%s=%d", state, n))
	}
	return strings.Join(parts, ", ")
}
