package models

import "time"

// Job types.
const (
	JobTypeWorks   = "works"
	JobTypeAuthors = "authors"
	JobTypeFull    = "full"
)

// Job statuses. Terminal statuses never transition further; a retry is
// always a new row.
const (
	JobStatusPending   = "pending"
	JobStatusRunning   = "running"
	JobStatusCompleted = "completed"
	JobStatusFailed    = "failed"
	JobStatusAborted   = "aborted"
)

// ValidJobType reports whether t is a known sync job type.
func ValidJobType(t string) bool {
	switch t {
	case JobTypeWorks, JobTypeAuthors, JobTypeFull:
		return true
	}
	return false
}

// TerminalStatus reports whether s is a terminal job status.
func TerminalStatus(s string) bool {
	switch s {
	case JobStatusCompleted, JobStatusFailed, JobStatusAborted:
		return true
	}
	return false
}

// SyncJob records one sync attempt against the upstream catalog.
// records_processed = records_created + records_updated + records_failed
// holds at every progress checkpoint.
type SyncJob struct {
	ID               uint       `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	JobType          string     `gorm:"column:job_type;size:30;index:idx_sync_jobs_type_status,priority:1" json:"job_type"`
	Status           string     `gorm:"column:status;size:20;index:idx_sync_jobs_type_status,priority:2" json:"status"`
	TriggerKey       string     `gorm:"column:trigger_key;size:64;index:idx_sync_jobs_trigger_key" json:"trigger_key"`
	FromDate         time.Time  `gorm:"column:from_date" json:"from_date"`
	MaxRecords       int        `gorm:"column:max_records;default:0" json:"max_records"`
	BatchSize        int        `gorm:"column:batch_size;default:0" json:"batch_size"`
	RecordsProcessed int        `gorm:"column:records_processed;default:0" json:"records_processed"`
	RecordsCreated   int        `gorm:"column:records_created;default:0" json:"records_created"`
	RecordsUpdated   int        `gorm:"column:records_updated;default:0" json:"records_updated"`
	RecordsFailed    int        `gorm:"column:records_failed;default:0" json:"records_failed"`
	ErrorMessage     string     `gorm:"column:error_message;type:text" json:"error_message"`
	AbortRequested   bool       `gorm:"column:abort_requested;default:false" json:"abort_requested"`
	CreatedAt        time.Time  `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	StartedAt        *time.Time `gorm:"column:started_at" json:"started_at,omitempty"`
	CompletedAt      *time.Time `gorm:"column:completed_at" json:"completed_at,omitempty"`
	UpdatedAt        time.Time  `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}

func (SyncJob) TableName() string {
	return "sync_jobs"
}

// SyncJobLog is an append-only progress/diagnostic entry owned by a job.
// Rows are never mutated or deleted after creation.
type SyncJobLog struct {
	ID        uint      `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	JobID     uint      `gorm:"column:job_id;index:idx_sync_job_logs_job" json:"job_id"`
	Level     string    `gorm:"column:level;size:10" json:"level"`
	Message   string    `gorm:"column:message;type:text" json:"message"`
	Details   string    `gorm:"column:details;type:json" json:"details"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime" json:"created_at"`
}

func (SyncJobLog) TableName() string {
	return "sync_job_logs"
}
