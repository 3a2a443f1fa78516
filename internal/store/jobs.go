package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/cesargomez89/crateflow/internal/apperr"
	"github.com/cesargomez89/crateflow/internal/domain"
)

// RegisterJob upserts the scheduler's bookkeeping row for a named job,
// called once at startup per job in the fixed table (spec.md §4.6).
func (db *DB) RegisterJob(ctx context.Context, name, cronExpr string) error {
	return db.RunInTx(ctx, func(tx *DB) error {
		_, err := tx.Exec(`
			INSERT INTO job_runs (name, cron_expr, status, aborted, run_count)
			VALUES (?, ?, 'idle', 0, 0)
			ON CONFLICT(name) DO UPDATE SET cron_expr = excluded.cron_expr
		`, name, cronExpr)
		if err != nil {
			return classifyWriteErr(err)
		}
		return nil
	})
}

func (db *DB) GetJobRun(name string) (*domain.JobRun, error) {
	run := &domain.JobRun{}
	if err := db.Get(run, "SELECT * FROM job_runs WHERE name = ?", name); err != nil {
		if err == sql.ErrNoRows {
			return nil, apperr.NotFoundf("job %s not found", name)
		}
		return nil, apperr.Internalf(err, "get job run")
	}
	return run, nil
}

func (db *DB) ListJobRuns() ([]*domain.JobRun, error) {
	var runs []*domain.JobRun
	if err := db.Select(&runs, "SELECT * FROM job_runs ORDER BY name ASC"); err != nil {
		return nil, apperr.Internalf(err, "list job runs")
	}
	return runs, nil
}

// TryStartJobRun atomically flips a job from idle to running, the
// reentrancy guard described in spec.md §4.6: an overlapping tick is
// rejected rather than queued.
func (db *DB) TryStartJobRun(ctx context.Context, name string) (bool, error) {
	var started bool
	err := db.RunInTx(ctx, func(tx *DB) error {
		res, err := tx.Exec(`
			UPDATE job_runs SET status = 'running', aborted = 0
			WHERE name = ? AND status = 'idle'
		`, name)
		if err != nil {
			return classifyWriteErr(err)
		}
		rows, err := res.RowsAffected()
		if err != nil {
			return classifyWriteErr(err)
		}
		started = rows > 0
		return nil
	})
	return started, err
}

// FinishJobRun records the outcome of a run and returns the job to
// idle so the next tick can proceed.
func (db *DB) FinishJobRun(ctx context.Context, name string, runErr error) error {
	now := time.Now()
	var errMsg *string
	if runErr != nil {
		msg := runErr.Error()
		errMsg = &msg
	}
	return db.RunInTx(ctx, func(tx *DB) error {
		_, err := tx.Exec(`
			UPDATE job_runs SET
				status = 'idle',
				last_run_at = ?,
				last_error = ?,
				run_count = run_count + 1
			WHERE name = ?
		`, now, errMsg, name)
		if err != nil {
			return classifyWriteErr(err)
		}
		return nil
	})
}

// RequestAbort sets the cooperative cancellation flag observed by a
// job's handler between steps (spec.md §4.6 cancel).
func (db *DB) RequestAbort(ctx context.Context, name string) error {
	return db.RunInTx(ctx, func(tx *DB) error {
		res, err := tx.Exec("UPDATE job_runs SET aborted = 1 WHERE name = ? AND status = 'running'", name)
		if err != nil {
			return classifyWriteErr(err)
		}
		rows, err := res.RowsAffected()
		if err != nil {
			return classifyWriteErr(err)
		}
		if rows == 0 {
			return apperr.Conflictf("job %s is not running", name)
		}
		return nil
	})
}

func (db *DB) IsAborted(name string) (bool, error) {
	var aborted bool
	err := db.Get(&aborted, "SELECT aborted FROM job_runs WHERE name = ?", name)
	if err != nil {
		return false, apperr.Internalf(err, "check job abort flag")
	}
	return aborted, nil
}

func (db *DB) SetNextRunAt(ctx context.Context, name string, next time.Time) error {
	return db.RunInTx(ctx, func(tx *DB) error {
		_, err := tx.Exec("UPDATE job_runs SET next_run_at = ? WHERE name = ?", next, name)
		if err != nil {
			return classifyWriteErr(err)
		}
		return nil
	})
}

// ResetStuckJobRuns returns any job left in 'running' back to idle;
// called once at startup to recover from an unclean shutdown.
func (db *DB) ResetStuckJobRuns(ctx context.Context) error {
	return db.RunInTx(ctx, func(tx *DB) error {
		_, err := tx.Exec("UPDATE job_runs SET status = 'idle', aborted = 0 WHERE status = 'running'")
		if err != nil {
			return classifyWriteErr(err)
		}
		return nil
	})
}
