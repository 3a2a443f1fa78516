// Package metrics wires github.com/prometheus/client_golang behind a
// small registration helper. Pure ambient texture: the scheduler and
// download engine update these alongside emitting bus events, and
// nothing in the control flow ever reads them back.
package metrics

import "github.com/prometheus/client_golang/prometheus"

type Metrics struct {
	JobsRunning          *prometheus.GaugeVec
	JobRunsTotal         *prometheus.CounterVec
	DownloadTasksByState *prometheus.GaugeVec
	WriteTokenWaitSeconds prometheus.Histogram
}

// New registers every collector against reg and returns the handle
// used to update them. Safe to call once per process; a second call
// against the same registry would panic on duplicate registration,
// same as any other prometheus collector.
func New(reg *prometheus.Registry) *Metrics {
	m := &Metrics{
		JobsRunning: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "jobs_running_total",
			Help: "Number of currently running scheduled jobs, labelled by job name.",
		}, []string{"job"}),
		JobRunsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "jobs_runs_total",
			Help: "Total scheduled job runs, labelled by job name and outcome.",
		}, []string{"job", "outcome"}),
		DownloadTasksByState: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "download_tasks_by_status",
			Help: "Current download task count per FSM status.",
		}, []string{"status"}),
		WriteTokenWaitSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "store_write_token_wait_seconds",
			Help:    "Time spent waiting to acquire the single-writer store token.",
			Buckets: prometheus.DefBuckets,
		}),
	}
	reg.MustRegister(m.JobsRunning, m.JobRunsTotal, m.DownloadTasksByState, m.WriteTokenWaitSeconds)
	return m
}

// JobStarted marks name as running and returns the stop func to call
// on completion, recording the outcome (spec.md §4.6 job run tracking).
func (m *Metrics) JobStarted(name string) func(outcome string) {
	m.JobsRunning.WithLabelValues(name).Inc()
	return func(outcome string) {
		m.JobsRunning.WithLabelValues(name).Dec()
		m.JobRunsTotal.WithLabelValues(name, outcome).Inc()
	}
}

// SetDownloadTaskCounts replaces the download_tasks_by_status gauge
// vec's values for the given status->count snapshot.
func (m *Metrics) SetDownloadTaskCounts(counts map[string]int) {
	for status, count := range counts {
		m.DownloadTasksByState.WithLabelValues(status).Set(float64(count))
	}
}
