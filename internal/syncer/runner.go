package syncer

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"worksync/internal/catalog"
	"worksync/internal/metrics"
	"worksync/internal/models"
	"worksync/internal/repository"
)

var errAborted = errors.New("abort requested")

// RecordSource yields batches of catalog records until exhaustion.
// catalog.Paginator implements it.
type RecordSource interface {
	Next(ctx context.Context) ([]catalog.Record, error)
}

// Phase is one stream of records within a job. Works and authors syncs
// have one phase; a full sync runs both under one job.
type Phase struct {
	Name      string
	Source    RecordSource
	Reconcile Reconciler
}

// Notifier receives terminal job states. May be nil.
type Notifier interface {
	JobFinished(job *models.SyncJob)
}

// Runner executes one sync job end to end, keeping the ledger as the
// single source of truth for progress.
type Runner struct {
	jobs     *repository.SyncJobRepository
	notifier Notifier
	logger   *zap.Logger
}

func NewRunner(jobs *repository.SyncJobRepository, notifier Notifier, logger *zap.Logger) *Runner {
	return &Runner{
		jobs:     jobs,
		notifier: notifier,
		logger:   logger,
	}
}

// Run drives the job state machine: pending -> running -> terminal.
// It is called on a background goroutine; the caller never blocks on it.
func (r *Runner) Run(ctx context.Context, job *models.SyncJob, phases []Phase) {
	var c repository.Counters
	defer r.recoverFromPanic(job.ID, &c)

	if err := r.jobs.MarkRunning(job.ID); err != nil {
		r.logger.Error("Failed to mark job running", zap.Uint("job_id", job.ID), zap.Error(err))
		return
	}
	_ = r.jobs.AppendLog(job.ID, "info", "sync started", map[string]interface{}{
		"job_type":    job.JobType,
		"from_date":   job.FromDate,
		"max_records": job.MaxRecords,
		"batch_size":  job.BatchSize,
	})

	err := r.runPhases(ctx, job, phases, &c)

	switch {
	case err == nil:
		r.finalize(job.ID, models.JobStatusCompleted, c, "")
		_ = r.jobs.AppendLog(job.ID, "info", "sync completed", counterDetails(c))

	case errors.Is(err, errAborted):
		r.finalize(job.ID, models.JobStatusAborted, c, "")
		_ = r.jobs.AppendLog(job.ID, "warn", "sync aborted by operator", counterDetails(c))

	case errors.Is(err, metrics.ErrBudgetExhausted):
		// Skippable: the call ceiling stops pagination early but the
		// records already processed stand.
		r.finalize(job.ID, models.JobStatusCompleted, c, "")
		_ = r.jobs.AppendLog(job.ID, "warn", "call budget exhausted, stopping early", counterDetails(c))

	default:
		r.finalize(job.ID, models.JobStatusFailed, c, err.Error())
		_ = r.jobs.AppendLog(job.ID, "error", "sync failed: "+err.Error(), counterDetails(c))
	}

	if r.notifier != nil {
		if final, err := r.jobs.GetJob(job.ID); err == nil {
			r.notifier.JobFinished(final)
		}
	}
}

func (r *Runner) runPhases(ctx context.Context, job *models.SyncJob, phases []Phase, c *repository.Counters) error {
	for _, phase := range phases {
		for {
			// Cooperative cancellation, checked at batch boundaries only.
			if ctx.Err() != nil {
				return errAborted
			}
			aborted, err := r.jobs.AbortRequested(job.ID)
			if err != nil {
				return fmt.Errorf("abort check failed: %w", err)
			}
			if aborted {
				return errAborted
			}

			records, err := phase.Source.Next(ctx)
			if err != nil {
				return err
			}
			if len(records) == 0 {
				break // phase exhausted
			}

			capReached := false
			for _, rec := range records {
				outcome, rerr := phase.Reconcile.Reconcile(rec)
				c.Processed++
				switch outcome {
				case OutcomeCreated:
					c.Created++
				case OutcomeUpdated:
					c.Updated++
				default:
					c.Failed++
					_ = r.jobs.AppendLog(job.ID, "warn", "record reconcile failed", map[string]interface{}{
						"external_id": rec.ID,
						"phase":       phase.Name,
						"error":       errText(rerr),
					})
				}
				if job.MaxRecords > 0 && c.Processed >= job.MaxRecords {
					capReached = true
					break
				}
			}

			details := counterDetails(*c)
			details["phase"] = phase.Name
			if err := r.jobs.Checkpoint(job.ID, *c, "info", "progress", details); err != nil {
				return fmt.Errorf("progress checkpoint failed: %w", err)
			}

			if capReached {
				_ = r.jobs.AppendLog(job.ID, "info", "max records cap reached", counterDetails(*c))
				return nil
			}
		}
	}
	return nil
}

// finalize attempts the terminal transition. If even that fails, the
// job stays in its last durably written state for operator
// investigation; success is never reported silently.
func (r *Runner) finalize(jobID uint, status string, c repository.Counters, errMsg string) {
	if err := r.jobs.Finalize(jobID, status, c, errMsg); err != nil {
		r.logger.Error("Failed to finalize job",
			zap.Uint("job_id", jobID),
			zap.String("status", status),
			zap.Error(err),
		)
	}
}

// recoverFromPanic finalizes with the counters accumulated up to the
// panic, so records already reconciled stay accounted for.
func (r *Runner) recoverFromPanic(jobID uint, c *repository.Counters) {
	if rec := recover(); rec != nil {
		r.logger.Error("Sync run panicked", zap.Uint("job_id", jobID), zap.Any("error", rec))
		r.finalize(jobID, models.JobStatusFailed, *c, fmt.Sprintf("panic: %v", rec))
	}
}

func counterDetails(c repository.Counters) map[string]interface{} {
	return map[string]interface{}{
		"records_processed": c.Processed,
		"records_created":   c.Created,
		"records_updated":   c.Updated,
		"records_failed":    c.Failed,
	}
}

func errText(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
