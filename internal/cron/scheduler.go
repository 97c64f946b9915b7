package cron

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"worksync/internal/config"
	"worksync/internal/models"
	"worksync/internal/syncer"
)

// Scheduler triggers periodic syncs. Each tick creates a fresh job
// through the same service the control API uses; runs that collide
// with an in-flight sync of the same type are skipped.
type Scheduler struct {
	cron    *cron.Cron
	cfg     *config.Config
	service *syncer.Service
	logger  *zap.Logger
}

// New creates a new sync scheduler.
func New(cfg *config.Config, service *syncer.Service, logger *zap.Logger) *Scheduler {
	return &Scheduler{
		cron:    cron.New(cron.WithSeconds()),
		cfg:     cfg,
		service: service,
		logger:  logger,
	}
}

// Start registers and starts the scheduled syncs.
func (s *Scheduler) Start() error {
	s.logger.Info("Starting sync scheduler...")

	if spec := s.cfg.Sync.WorksSchedule; spec != "" {
		if _, err := s.cron.AddFunc(spec, func() {
			s.trigger(models.JobTypeWorks)
		}); err != nil {
			return fmt.Errorf("invalid works schedule %q: %w", spec, err)
		}
	}

	if spec := s.cfg.Sync.AuthorsSchedule; spec != "" {
		if _, err := s.cron.AddFunc(spec, func() {
			s.trigger(models.JobTypeAuthors)
		}); err != nil {
			return fmt.Errorf("invalid authors schedule %q: %w", spec, err)
		}
	}

	s.cron.Start()
	s.logger.Info("Sync scheduler started")
	return nil
}

// Stop gracefully stops the scheduler.
func (s *Scheduler) Stop() context.Context {
	return s.cron.Stop()
}

func (s *Scheduler) trigger(jobType string) {
	defer s.recoverFromPanic(jobType)

	// One deterministic key per tick window keeps a slow previous run
	// from stacking duplicate jobs across scheduler instances.
	triggerKey := fmt.Sprintf("cron-%s-%s", jobType, time.Now().UTC().Format("2006-01-02T15"))

	job, err := s.service.StartSync(jobType, nil, 0, triggerKey)
	if err != nil {
		if errors.Is(err, syncer.ErrSyncInFlight) {
			s.logger.Info("Scheduled sync skipped, previous run still in flight",
				zap.String("job_type", jobType),
			)
			return
		}
		s.logger.Error("Scheduled sync failed to start",
			zap.String("job_type", jobType),
			zap.Error(err),
		)
		return
	}

	s.logger.Info("Scheduled sync started",
		zap.String("job_type", jobType),
		zap.Uint("job_id", job.ID),
	)
}

func (s *Scheduler) recoverFromPanic(jobType string) {
	if r := recover(); r != nil {
		s.logger.Error("Scheduled sync panicked", zap.String("job_type", jobType), zap.Any("error", r))
	}
}
