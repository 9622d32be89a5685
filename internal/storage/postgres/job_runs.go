package postgres

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"mention_collector/internal/domain"
)

// JobLedger keeps an audit row per job run plus one row per branch outcome.
type JobLedger struct {
	db *sqlx.DB
	tm *TransactionManager
}

func NewJobLedger(db *sqlx.DB) *JobLedger {
	return &JobLedger{db: db, tm: NewTransactionManager(db)}
}

// JobRun is a stored job summary.
type JobRun struct {
	JobID        string  `db:"job_id"`
	Brand        string  `db:"brand"`
	Succeeded    int     `db:"succeeded"`
	Failed       int     `db:"failed"`
	Notified     bool    `db:"notified"`
	NotifyStatus *int    `db:"notify_status"`
	NotifyError  *string `db:"notify_error"`
}

// RecordJob writes the run and its outcomes atomically. Re-recording a job
// replaces its outcomes.
func (l *JobLedger) RecordJob(ctx context.Context, result domain.Result) error {
	return l.tm.WithTransaction(ctx, func(ctx context.Context) error {
		exec := GetExecutor(ctx, l.db)

		var (
			notified     bool
			notifyStatus *int
			notifyError  *string
		)
		if n := result.Notification; n != nil {
			notified = n.Delivered
			if n.StatusCode != 0 {
				code := n.StatusCode
				notifyStatus = &code
			}
			if n.Error != "" {
				msg := n.Error
				notifyError = &msg
			}
		}

		_, err := exec.ExecContext(ctx, `
			INSERT INTO job_runs (job_id, brand, succeeded, failed, notified, notify_status, notify_error, finished_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			ON CONFLICT (job_id) DO UPDATE SET
				succeeded = EXCLUDED.succeeded,
				failed = EXCLUDED.failed,
				notified = EXCLUDED.notified,
				notify_status = EXCLUDED.notify_status,
				notify_error = EXCLUDED.notify_error,
				finished_at = EXCLUDED.finished_at`,
			result.JobID,
			result.Brand,
			result.Succeeded(),
			result.Failed(),
			notified,
			notifyStatus,
			notifyError,
			result.Timestamp,
		)
		if err != nil {
			return fmt.Errorf("insert job run: %w", err)
		}

		if _, err := exec.ExecContext(ctx, `DELETE FROM job_outcomes WHERE job_id = $1`, result.JobID); err != nil {
			return fmt.Errorf("clear job outcomes: %w", err)
		}

		for _, o := range result.Outcomes {
			var fetched, written, skipped, errs int
			if o.Data != nil {
				fetched, written, skipped, errs = o.Data.Fetched, o.Data.Written, o.Data.Skipped, o.Data.Errors
			}
			_, err := exec.ExecContext(ctx, `
				INSERT INTO job_outcomes (job_id, source, success, fetched, written, skipped, errors, error_kind, error)
				VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
				result.JobID,
				string(o.Source),
				o.Success,
				fetched,
				written,
				skipped,
				errs,
				o.ErrorKind,
				o.Error,
			)
			if err != nil {
				return fmt.Errorf("insert outcome %s: %w", o.Source, err)
			}
		}
		return nil
	})
}

// Get returns the stored summary of a job.
func (l *JobLedger) Get(ctx context.Context, jobID string) (*JobRun, error) {
	var run JobRun
	err := l.db.GetContext(ctx, &run, `
		SELECT job_id, brand, succeeded, failed, notified, notify_status, notify_error
		FROM job_runs
		WHERE job_id = $1`, jobID)
	if err != nil {
		return nil, err
	}
	return &run, nil
}
