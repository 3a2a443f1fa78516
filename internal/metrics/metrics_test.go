package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestJobStarted_RecordsRunningAndOutcome(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	stop := m.JobStarted("recommender_fetch")
	if got := testutil.ToFloat64(m.JobsRunning.WithLabelValues("recommender_fetch")); got != 1 {
		t.Fatalf("expected jobs_running_total=1 while running, got %v", got)
	}

	stop("completed")
	if got := testutil.ToFloat64(m.JobsRunning.WithLabelValues("recommender_fetch")); got != 0 {
		t.Fatalf("expected jobs_running_total=0 after stop, got %v", got)
	}
	if got := testutil.ToFloat64(m.JobRunsTotal.WithLabelValues("recommender_fetch", "completed")); got != 1 {
		t.Fatalf("expected jobs_runs_total=1 for completed outcome, got %v", got)
	}
}

func TestSetDownloadTaskCounts_UpdatesGaugeVec(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.SetDownloadTaskCounts(map[string]int{"active": 3, "failed": 1})

	if got := testutil.ToFloat64(m.DownloadTasksByState.WithLabelValues("active")); got != 3 {
		t.Errorf("expected download_tasks_by_status{status=active}=3, got %v", got)
	}
	if got := testutil.ToFloat64(m.DownloadTasksByState.WithLabelValues("failed")); got != 1 {
		t.Errorf("expected download_tasks_by_status{status=failed}=1, got %v", got)
	}
}
