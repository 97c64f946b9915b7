package repository

import (
	"encoding/json"
	"errors"
	"time"

	"gorm.io/gorm"

	"worksync/internal/models"
)

// ErrJobNotFound is returned when a job id has no ledger row.
var ErrJobNotFound = errors.New("sync job not found")

// Counters is the aggregate record outcome of a run so far.
type Counters struct {
	Processed int
	Created   int
	Updated   int
	Failed    int
}

// SyncJobRepository is the ledger of sync jobs and their log entries.
type SyncJobRepository struct {
	db *gorm.DB
}

func NewSyncJobRepository(db *gorm.DB) *SyncJobRepository {
	return &SyncJobRepository{db: db}
}

func (r *SyncJobRepository) DB() *gorm.DB {
	return r.db
}

// CreateJob inserts a pending job. If triggerKey is non-empty and an
// active job already exists for that key, the existing job is returned
// instead of creating a duplicate.
func (r *SyncJobRepository) CreateJob(jobType string, fromDate time.Time, maxRecords, batchSize int, triggerKey string) (*models.SyncJob, error) {
	if triggerKey != "" {
		var existing models.SyncJob
		err := r.db.Where("trigger_key = ? AND job_type = ? AND status IN ?", triggerKey, jobType, []string{models.JobStatusPending, models.JobStatusRunning}).
			Order("id DESC").
			First(&existing).Error
		if err == nil {
			return &existing, nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}
	}

	job := &models.SyncJob{
		JobType:    jobType,
		Status:     models.JobStatusPending,
		TriggerKey: triggerKey,
		FromDate:   fromDate,
		MaxRecords: maxRecords,
		BatchSize:  batchSize,
	}
	if err := r.db.Create(job).Error; err != nil {
		return nil, err
	}
	return job, nil
}

// MarkRunning transitions a pending job to running and stamps started_at.
func (r *SyncJobRepository) MarkRunning(jobID uint) error {
	now := time.Now()
	res := r.db.Model(&models.SyncJob{}).
		Where("id = ? AND status = ?", jobID, models.JobStatusPending).
		Updates(map[string]interface{}{
			"status":     models.JobStatusRunning,
			"started_at": now,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrJobNotFound
	}
	return nil
}

// Finalize moves a running job into a terminal status with its final
// counters. It is a no-op (ErrJobNotFound) if the job is not running,
// so terminal states never transition again.
func (r *SyncJobRepository) Finalize(jobID uint, status string, c Counters, errMsg string) error {
	if !models.TerminalStatus(status) {
		return errors.New("finalize requires a terminal status")
	}
	updates := map[string]interface{}{
		"status":            status,
		"completed_at":      time.Now(),
		"records_processed": c.Processed,
		"records_created":   c.Created,
		"records_updated":   c.Updated,
		"records_failed":    c.Failed,
	}
	if errMsg != "" {
		updates["error_message"] = errMsg
	}
	res := r.db.Model(&models.SyncJob{}).
		Where("id = ? AND status = ?", jobID, models.JobStatusRunning).
		Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrJobNotFound
	}
	return nil
}

// Checkpoint writes cumulative counters and the matching progress log
// entry in one transaction, so a reader never observes counters that
// disagree with the logged entries.
func (r *SyncJobRepository) Checkpoint(jobID uint, c Counters, level, message string, details map[string]interface{}) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.SyncJob{}).
			Where("id = ? AND status = ?", jobID, models.JobStatusRunning).
			Updates(map[string]interface{}{
				"records_processed": c.Processed,
				"records_created":   c.Created,
				"records_updated":   c.Updated,
				"records_failed":    c.Failed,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrJobNotFound
		}
		return appendLogTx(tx, jobID, level, message, details)
	})
}

// AppendLog appends one immutable log entry to a job.
func (r *SyncJobRepository) AppendLog(jobID uint, level, message string, details map[string]interface{}) error {
	return appendLogTx(r.db, jobID, level, message, details)
}

func appendLogTx(tx *gorm.DB, jobID uint, level, message string, details map[string]interface{}) error {
	detailsRaw := ""
	if len(details) > 0 {
		raw, err := json.Marshal(details)
		if err == nil {
			detailsRaw = string(raw)
		}
	}
	entry := &models.SyncJobLog{
		JobID:   jobID,
		Level:   level,
		Message: message,
		Details: detailsRaw,
	}
	return tx.Create(entry).Error
}

// GetJob fetches one job by id.
func (r *SyncJobRepository) GetJob(jobID uint) (*models.SyncJob, error) {
	var job models.SyncJob
	err := r.db.First(&job, jobID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrJobNotFound
	}
	if err != nil {
		return nil, err
	}
	return &job, nil
}

// ListJobs returns the most recent jobs, optionally filtered.
func (r *SyncJobRepository) ListJobs(status, jobType string, limit int) ([]models.SyncJob, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	q := r.db.Model(&models.SyncJob{}).Order("id DESC").Limit(limit)
	if status != "" {
		q = q.Where("status = ?", status)
	}
	if jobType != "" {
		q = q.Where("job_type = ?", jobType)
	}
	var jobs []models.SyncJob
	err := q.Find(&jobs).Error
	return jobs, err
}

// GetLogs returns a job's log entries in append order.
func (r *SyncJobRepository) GetLogs(jobID uint) ([]models.SyncJobLog, error) {
	var logs []models.SyncJobLog
	err := r.db.Where("job_id = ?", jobID).Order("id ASC").Find(&logs).Error
	return logs, err
}

// RequestAbort flags a pending or running job for cooperative abort.
// The runner honors the flag at the next batch boundary.
func (r *SyncJobRepository) RequestAbort(jobID uint) error {
	res := r.db.Model(&models.SyncJob{}).
		Where("id = ? AND status IN ?", jobID, []string{models.JobStatusPending, models.JobStatusRunning}).
		Update("abort_requested", true)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrJobNotFound
	}
	return nil
}

// AbortRequested reads the abort flag for a job.
func (r *SyncJobRepository) AbortRequested(jobID uint) (bool, error) {
	var job models.SyncJob
	err := r.db.Select("abort_requested").First(&job, jobID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false, ErrJobNotFound
	}
	if err != nil {
		return false, err
	}
	return job.AbortRequested, nil
}

// LastCompleted returns the most recent completed job of a type, or
// nil when none exists.
func (r *SyncJobRepository) LastCompleted(jobType string) (*models.SyncJob, error) {
	var job models.SyncJob
	err := r.db.Where("job_type = ? AND status = ?", jobType, models.JobStatusCompleted).
		Order("id DESC").
		First(&job).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &job, nil
}

// HasActive reports whether a pending or running job of the type exists.
func (r *SyncJobRepository) HasActive(jobType string) (bool, error) {
	var count int64
	err := r.db.Model(&models.SyncJob{}).
		Where("job_type = ? AND status IN ?", jobType, []string{models.JobStatusPending, models.JobStatusRunning}).
		Count(&count).Error
	return count > 0, err
}
