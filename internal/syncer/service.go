package syncer

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"worksync/internal/catalog"
	"worksync/internal/config"
	"worksync/internal/lock"
	"worksync/internal/models"
	"worksync/internal/repository"
)

// ErrSyncInFlight is returned by StartSync in single-flight mode when
// a run of the same job type is already in progress.
var ErrSyncInFlight = errors.New("a sync of this type is already running")

// Service creates sync jobs and dispatches their background runs. The
// triggering caller returns as soon as the job row exists.
type Service struct {
	cfg     *config.Config
	jobs    *repository.SyncJobRepository
	works   MirrorStore
	authors MirrorStore
	client  *catalog.Client
	runner  *Runner
	locks   lock.RunLock
	resolve *CheckpointResolver
	logger  *zap.Logger

	wg sync.WaitGroup
}

// NewService wires the sync engine. works/authors may be nil, which
// puts the matching job types into count-only mode.
func NewService(
	cfg *config.Config,
	jobs *repository.SyncJobRepository,
	works, authors MirrorStore,
	client *catalog.Client,
	runner *Runner,
	locks lock.RunLock,
	logger *zap.Logger,
) *Service {
	return &Service{
		cfg:     cfg,
		jobs:    jobs,
		works:   works,
		authors: authors,
		client:  client,
		runner:  runner,
		locks:   locks,
		resolve: NewCheckpointResolver(jobs, cfg.Sync.LookbackDays),
		logger:  logger,
	}
}

// StartSync creates a job and schedules its background run, returning
// immediately with the pending job. fromDate overrides the checkpoint
// when non-nil. maxRecords of 0 falls back to the configured default.
func (s *Service) StartSync(jobType string, fromDate *time.Time, maxRecords int, triggerKey string) (*models.SyncJob, error) {
	if !models.ValidJobType(jobType) {
		return nil, fmt.Errorf("unknown job type %q", jobType)
	}

	var release func()
	if s.cfg.Sync.SingleFlight {
		// The ledger check covers other processes; the lock closes the
		// window between the check and the job row insert.
		active, err := s.jobs.HasActive(jobType)
		if err != nil {
			return nil, fmt.Errorf("active job lookup failed: %w", err)
		}
		if active {
			return nil, ErrSyncInFlight
		}
		ok, rel, err := s.locks.TryAcquire(context.Background(), jobType)
		if err != nil {
			return nil, fmt.Errorf("single-flight lock failed: %w", err)
		}
		if !ok {
			return nil, ErrSyncInFlight
		}
		release = rel
	}

	job, err := s.createAndDispatch(jobType, fromDate, maxRecords, triggerKey, release)
	if err != nil && release != nil {
		release()
	}
	return job, err
}

func (s *Service) createAndDispatch(jobType string, fromDate *time.Time, maxRecords int, triggerKey string, release func()) (*models.SyncJob, error) {
	from, err := s.resolve.Resolve(jobType, fromDate)
	if err != nil {
		return nil, err
	}

	if maxRecords <= 0 {
		maxRecords = s.cfg.Sync.MaxRecords
	}
	batchSize := s.cfg.Sync.BatchSize
	if batchSize <= 0 {
		batchSize = 200
	}

	job, err := s.jobs.CreateJob(jobType, from, maxRecords, batchSize, triggerKey)
	if err != nil {
		return nil, fmt.Errorf("job creation failed: %w", err)
	}
	if job.Status != models.JobStatusPending {
		// Trigger key matched an already active job; nothing to dispatch.
		if release != nil {
			release()
		}
		return job, nil
	}

	phases, err := s.phases(jobType, from, batchSize)
	if err != nil {
		return nil, err
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if release != nil {
			defer release()
		}
		s.runner.Run(context.Background(), job, phases)
	}()

	s.logger.Info("Sync job scheduled",
		zap.Uint("job_id", job.ID),
		zap.String("job_type", jobType),
		zap.Time("from_date", from),
		zap.Int("max_records", maxRecords),
	)
	return job, nil
}

func (s *Service) phases(jobType string, from time.Time, batchSize int) ([]Phase, error) {
	// Pages are sized for the catalog; batches are sized for checkpoint
	// granularity. The batching source converts between the two.
	pageSize := s.cfg.Catalog.PageSize
	if pageSize <= 0 {
		pageSize = 200
	}

	worksPhase := Phase{
		Name:      "works",
		Source:    newBatchingSource(catalog.NewPaginator(s.client.ListWorks, from, pageSize), batchSize),
		Reconcile: NewReconciler(s.works),
	}
	authorsPhase := Phase{
		Name:      "authors",
		Source:    newBatchingSource(catalog.NewPaginator(s.client.ListAuthors, from, pageSize), batchSize),
		Reconcile: NewReconciler(s.authors),
	}

	switch jobType {
	case models.JobTypeWorks:
		return []Phase{worksPhase}, nil
	case models.JobTypeAuthors:
		return []Phase{authorsPhase}, nil
	case models.JobTypeFull:
		return []Phase{worksPhase, authorsPhase}, nil
	}
	return nil, fmt.Errorf("unknown job type %q", jobType)
}

// Wait blocks until all in-flight runs finish or the timeout elapses.
// Used during graceful shutdown.
func (s *Service) Wait(timeout time.Duration) bool {
	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return true
	case <-time.After(timeout):
		return false
	}
}
