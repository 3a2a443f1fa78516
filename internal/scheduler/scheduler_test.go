package scheduler

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/cesargomez89/crateflow/internal/eventbus"
	"github.com/cesargomez89/crateflow/internal/logger"
	"github.com/cesargomez89/crateflow/internal/store"
)

func setupTestDB(t *testing.T) *store.DB {
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
	return db
}

func testScheduler(t *testing.T) (*Scheduler, *eventbus.Bus) {
	t.Helper()
	db := setupTestDB(t)
	bus := eventbus.New()
	log := logger.New(logger.Config{Level: "error", Format: "text"})
	return New(db, bus, log), bus
}

func TestRegister_ManualOnlyOnInvalidCron(t *testing.T) {
	s, _ := testScheduler(t)
	ctx := context.Background()
	if err := s.Register(ctx, "BadCron", "not a cron expr", func(ctx context.Context) error { return nil }); err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	run, err := s.Repo.GetJobRun("BadCron")
	if err != nil {
		t.Fatalf("GetJobRun failed: %v", err)
	}
	if run.CronExpr != "" {
		t.Errorf("expected empty cron expr for invalid input, got %q", run.CronExpr)
	}
}

func TestTrigger_RunsRegisteredHandler(t *testing.T) {
	s, bus := testScheduler(t)
	ctx := context.Background()
	ch, unsubscribe := bus.Subscribe(eventbus.ChannelJobs)
	defer unsubscribe()

	done := make(chan struct{})
	if err := s.Register(ctx, "Noop", "", func(ctx context.Context) error {
		close(done)
		return nil
	}); err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	result := s.Trigger(ctx, "Noop")
	if result != Triggered {
		t.Fatalf("expected Triggered, got %s", result)
	}

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("handler did not run")
	}

	sawCompleted := false
	for i := 0; i < 2; i++ {
		select {
		case ev := <-ch:
			if ev.Kind == "completed" {
				sawCompleted = true
			}
		case <-time.After(time.Second):
		}
	}
	if !sawCompleted {
		t.Error("expected a completed event on the jobs channel")
	}
}

func TestTrigger_UnknownJob(t *testing.T) {
	s, _ := testScheduler(t)
	if result := s.Trigger(context.Background(), "Ghost"); result != Unknown {
		t.Errorf("expected Unknown, got %s", result)
	}
}

func TestTrigger_AlreadyRunningRejectsOverlap(t *testing.T) {
	s, _ := testScheduler(t)
	ctx := context.Background()
	release := make(chan struct{})
	if err := s.Register(ctx, "Slow", "", func(ctx context.Context) error {
		<-release
		return nil
	}); err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	if result := s.Trigger(ctx, "Slow"); result != Triggered {
		t.Fatalf("expected Triggered, got %s", result)
	}
	time.Sleep(50 * time.Millisecond)

	if result := s.Trigger(ctx, "Slow"); result != AlreadyRunning {
		t.Errorf("expected AlreadyRunning, got %s", result)
	}
	close(release)
}

func TestTrigger_FailedHandlerEmitsFailedEvent(t *testing.T) {
	s, bus := testScheduler(t)
	ctx := context.Background()
	ch, unsubscribe := bus.Subscribe(eventbus.ChannelJobs)
	defer unsubscribe()

	if err := s.Register(ctx, "Boom", "", func(ctx context.Context) error {
		return errors.New("boom")
	}); err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	s.Trigger(ctx, "Boom")

	sawFailed := false
	for i := 0; i < 2; i++ {
		select {
		case ev := <-ch:
			if ev.Kind == "failed" {
				sawFailed = true
			}
		case <-time.After(time.Second):
		}
	}
	if !sawFailed {
		t.Error("expected a failed event on the jobs channel")
	}
}

func TestStatus_ReflectsRegisteredJobs(t *testing.T) {
	s, _ := testScheduler(t)
	ctx := context.Background()
	if err := s.Register(ctx, "Reported", "0 * * * *", func(ctx context.Context) error { return nil }); err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	statuses, err := s.Status()
	if err != nil {
		t.Fatalf("Status failed: %v", err)
	}
	found := false
	for _, st := range statuses {
		if st.Name == "Reported" {
			found = true
			if st.Cron != "0 * * * *" {
				t.Errorf("expected cron preserved, got %q", st.Cron)
			}
		}
	}
	if !found {
		t.Error("expected Reported job in status list")
	}
}

func TestCancel_UnknownJob(t *testing.T) {
	s, _ := testScheduler(t)
	if result := s.Cancel(context.Background(), "Ghost", time.Second); result != UnknownJob {
		t.Errorf("expected UnknownJob, got %s", result)
	}
}
