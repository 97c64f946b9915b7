package syncer

import (
	"fmt"
	"time"

	"worksync/internal/repository"
)

// CheckpointResolver computes the effective start date for the next
// sync of a job type from the ledger's history.
type CheckpointResolver struct {
	jobs     *repository.SyncJobRepository
	lookback time.Duration
}

func NewCheckpointResolver(jobs *repository.SyncJobRepository, lookbackDays int) *CheckpointResolver {
	if lookbackDays <= 0 {
		lookbackDays = 7
	}
	return &CheckpointResolver{
		jobs:     jobs,
		lookback: time.Duration(lookbackDays) * 24 * time.Hour,
	}
}

// Resolve returns the modified-since bound for the next run. A
// caller-supplied override wins verbatim. Otherwise the checkpoint is
// the completed_at of the most recent completed job of the same type:
// the next run covers everything modified since the last successful
// run finished. With no prior completed job, fall back to a fixed
// lookback window before now.
//
// The resolver is pure over ledger state: identical inputs and ledger
// contents always yield the same date (modulo the no-history fallback,
// which is anchored to the current clock).
func (r *CheckpointResolver) Resolve(jobType string, override *time.Time) (time.Time, error) {
	if override != nil {
		return *override, nil
	}

	last, err := r.jobs.LastCompleted(jobType)
	if err != nil {
		return time.Time{}, fmt.Errorf("checkpoint lookup failed: %w", err)
	}
	if last != nil && last.CompletedAt != nil {
		return *last.CompletedAt, nil
	}

	return time.Now().Add(-r.lookback), nil
}
