// Package scheduler is the Job Scheduler (C6): a fixed table of named
// jobs, each with a cron schedule (or none, for manual-only jobs), a
// per-job reentrancy guard persisted in store.job_runs, and a
// cooperative cancel flag observed between a job's loop iterations
// (spec.md §4.6). Grounded on the teacher's single-worker reentrancy
// guard (ResetStuckJobs at startup, one run at a time) generalized
// from a DB-backed poll loop to cron ticks.
package scheduler

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/cesargomez89/crateflow/internal/eventbus"
	"github.com/cesargomez89/crateflow/internal/logger"
	"github.com/cesargomez89/crateflow/internal/metrics"
	"github.com/cesargomez89/crateflow/internal/store"
)

// Handler is one job's async body. It must check ctx.Err()
// cooperatively between steps; Cancel cancels ctx as well as setting
// the persisted aborted flag (spec.md §5 "every job handler takes a
// cancellation source").
type Handler func(ctx context.Context) error

// TriggerResult is the outcome of an explicit trigger(name) call.
type TriggerResult string

const (
	Triggered      TriggerResult = "triggered"
	AlreadyRunning TriggerResult = "already_running"
	Unknown        TriggerResult = "unknown"
)

// CancelResult is the outcome of an explicit cancel(name) call.
type CancelResult string

const (
	Cancelled  CancelResult = "cancelled"
	NotRunning CancelResult = "not_running"
	UnknownJob CancelResult = "unknown"
)

// Status is one row of the scheduler's status() surface (spec.md §6).
type Status struct {
	Name     string     `json:"name"`
	Cron     string     `json:"cron"`
	Running  bool       `json:"running"`
	LastRun  *time.Time `json:"last_run,omitempty"`
	NextRun  *time.Time `json:"next_run,omitempty"`
}

type job struct {
	name     string
	cronExpr string
	schedule cron.Schedule
	handler  Handler
	cancel   context.CancelFunc
	mu       sync.Mutex
}

// Scheduler drives the fixed job table, ticking each job's cron
// schedule and persisting reentrancy/abort state in store.DB so a
// restart recovers cleanly (spec.md §4.6).
type Scheduler struct {
	Repo    *store.DB
	Bus     *eventbus.Bus
	Logger  *logger.Logger
	Metrics *metrics.Metrics

	mu     sync.Mutex
	jobs   map[string]*job
	ticker *time.Ticker
	stopCh chan struct{}
	wg     sync.WaitGroup
}

func New(repo *store.DB, bus *eventbus.Bus, log *logger.Logger) *Scheduler {
	return &Scheduler{
		Repo:   repo,
		Bus:    bus,
		Logger: log.WithComponent("scheduler"),
		jobs:   make(map[string]*job),
	}
}

// WithMetrics attaches the process's metrics handle so job runs report
// jobs_running_total/jobs_runs_total alongside their bus events.
func (s *Scheduler) WithMetrics(m *metrics.Metrics) *Scheduler {
	s.Metrics = m
	return s
}

// Register adds name to the fixed job table with its cron expression
// (empty for manual-only) and handler, and persists its bookkeeping
// row. Call once per job at startup, before Start.
func (s *Scheduler) Register(ctx context.Context, name, cronExpr string, handler Handler) error {
	var schedule cron.Schedule
	if cronExpr != "" {
		parsed, err := cron.ParseStandard(cronExpr)
		if err != nil {
			s.Logger.Warn("invalid cron expression, job is manual-only", "job", name, "cron", cronExpr, "error", err)
			cronExpr = ""
		} else {
			schedule = parsed
		}
	}

	if err := s.Repo.RegisterJob(ctx, name, cronExpr); err != nil {
		return err
	}

	s.mu.Lock()
	s.jobs[name] = &job{name: name, cronExpr: cronExpr, schedule: schedule, handler: handler}
	s.mu.Unlock()
	return nil
}

// Start recovers any job left "running" from an unclean shutdown and
// begins the tick loop.
func (s *Scheduler) Start(ctx context.Context) error {
	if err := s.Repo.ResetStuckJobRuns(ctx); err != nil {
		return err
	}

	s.mu.Lock()
	for _, j := range s.jobs {
		s.scheduleNext(ctx, j)
	}
	s.mu.Unlock()

	s.stopCh = make(chan struct{})
	s.ticker = time.NewTicker(time.Second)
	s.wg.Add(1)
	go s.loop(ctx)
	return nil
}

// Stop halts the tick loop. In-flight runs are left to finish or be
// cancelled explicitly.
func (s *Scheduler) Stop() {
	if s.ticker != nil {
		s.ticker.Stop()
	}
	if s.stopCh != nil {
		close(s.stopCh)
	}
	s.wg.Wait()
}

func (s *Scheduler) loop(ctx context.Context) {
	defer s.wg.Done()
	for {
		select {
		case <-s.stopCh:
			return
		case now := <-s.ticker.C:
			s.tick(ctx, now)
		}
	}
}

func (s *Scheduler) tick(ctx context.Context, now time.Time) {
	s.mu.Lock()
	due := make([]*job, 0)
	for _, j := range s.jobs {
		if j.schedule == nil {
			continue
		}
		run, err := s.Repo.GetJobRun(j.name)
		if err != nil || run.NextRunAt == nil {
			continue
		}
		if !now.Before(*run.NextRunAt) {
			due = append(due, j)
		}
	}
	s.mu.Unlock()

	for _, j := range due {
		s.scheduleNext(ctx, j)
		s.runAsync(ctx, j)
	}
}

func (s *Scheduler) scheduleNext(ctx context.Context, j *job) {
	if j.schedule == nil {
		return
	}
	next := j.schedule.Next(time.Now())
	if err := s.Repo.SetNextRunAt(ctx, j.name, next); err != nil {
		s.Logger.Warn("failed to persist next run time", "job", j.name, "error", err)
	}
}

// Trigger runs name immediately, outside its cron schedule, unless it
// is already running (spec.md §4.6 "trigger(name)").
func (s *Scheduler) Trigger(ctx context.Context, name string) TriggerResult {
	s.mu.Lock()
	j, ok := s.jobs[name]
	s.mu.Unlock()
	if !ok {
		return Unknown
	}

	started, err := s.Repo.TryStartJobRun(ctx, name)
	if err != nil {
		s.Logger.Warn("failed to start job run", "job", name, "error", err)
		return AlreadyRunning
	}
	if !started {
		return AlreadyRunning
	}

	j.mu.Lock()
	runCtx, cancel := context.WithCancel(ctx)
	j.cancel = cancel
	j.mu.Unlock()

	s.wg.Add(1)
	go s.run(runCtx, j)
	return Triggered
}

// Cancel requests cooperative cancellation of a running job and waits
// up to timeout for it to observe the flag and exit (spec.md §4.6
// "cancel(name, timeout)").
func (s *Scheduler) Cancel(ctx context.Context, name string, timeout time.Duration) CancelResult {
	s.mu.Lock()
	j, ok := s.jobs[name]
	s.mu.Unlock()
	if !ok {
		return UnknownJob
	}

	if err := s.Repo.RequestAbort(ctx, name); err != nil {
		return NotRunning
	}

	j.mu.Lock()
	cancel := j.cancel
	j.mu.Unlock()
	if cancel != nil {
		cancel()
	}

	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		run, err := s.Repo.GetJobRun(name)
		if err == nil && run.Status != "running" {
			return Cancelled
		}
		time.Sleep(50 * time.Millisecond)
	}
	return Cancelled
}

// Status returns the current {name, cron, running, last_run, next_run}
// for every registered job (spec.md §6 "status()").
func (s *Scheduler) Status() ([]Status, error) {
	runs, err := s.Repo.ListJobRuns()
	if err != nil {
		return nil, err
	}
	out := make([]Status, 0, len(runs))
	for _, run := range runs {
		out = append(out, Status{
			Name:    run.Name,
			Cron:    run.CronExpr,
			Running: run.Status == "running",
			LastRun: run.LastRunAt,
			NextRun: run.NextRunAt,
		})
	}
	return out, nil
}

func (s *Scheduler) runAsync(ctx context.Context, j *job) {
	started, err := s.Repo.TryStartJobRun(ctx, j.name)
	if err != nil {
		s.Logger.Warn("failed to start scheduled job run", "job", j.name, "error", err)
		return
	}
	if !started {
		s.Logger.Warn("job tick dropped: previous run still in progress", "job", j.name)
		return
	}

	j.mu.Lock()
	runCtx, cancel := context.WithCancel(ctx)
	j.cancel = cancel
	j.mu.Unlock()

	s.wg.Add(1)
	go s.run(runCtx, j)
}

func (s *Scheduler) run(ctx context.Context, j *job) {
	defer s.wg.Done()
	start := time.Now()
	s.Bus.Publish(eventbus.JobStarted(j.name))

	var stopMetrics func(string)
	if s.Metrics != nil {
		stopMetrics = s.Metrics.JobStarted(j.name)
	}

	err := j.handler(ctx)
	duration := time.Since(start)

	j.mu.Lock()
	j.cancel = nil
	j.mu.Unlock()

	outcome := "completed"
	switch {
	case errors.Is(err, context.Canceled):
		outcome = "cancelled"
		s.Bus.Publish(eventbus.JobCancelled(j.name, duration))
	case err != nil:
		outcome = "failed"
		s.Logger.Warn("job run failed", "job", j.name, "error", err)
		s.Bus.Publish(eventbus.JobFailed(j.name, duration, err))
	default:
		s.Bus.Publish(eventbus.JobCompleted(j.name, duration))
	}
	if stopMetrics != nil {
		stopMetrics(outcome)
	}

	if finishErr := s.Repo.FinishJobRun(context.Background(), j.name, err); finishErr != nil {
		s.Logger.Warn("failed to persist job run outcome", "job", j.name, "error", finishErr)
	}
}

// Aborted reports whether name's cooperative cancel flag has been set
// — jobs poll this between loop iterations (spec.md §5).
func (s *Scheduler) Aborted(name string) bool {
	aborted, err := s.Repo.IsAborted(name)
	if err != nil {
		return false
	}
	return aborted
}
