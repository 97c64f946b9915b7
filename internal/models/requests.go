package models

import "time"

// APIResponse is the envelope returned by every control endpoint.
type APIResponse struct {
	Status bool        `json:"status"`
	Msg    string      `json:"msg"`
	Obj    interface{} `json:"obj"`
}

// StartSyncRequest is the body of POST /api/syncs.
type StartSyncRequest struct {
	JobType    string `json:"job_type"`
	FromDate   string `json:"from_date,omitempty"` // RFC 3339 or YYYY-MM-DD
	MaxRecords int    `json:"max_records,omitempty"`
}

// JobSummary mirrors SyncJob for API consumers, with a derived duration.
type JobSummary struct {
	ID               uint       `json:"id"`
	JobType          string     `json:"job_type"`
	Status           string     `json:"status"`
	FromDate         time.Time  `json:"from_date"`
	MaxRecords       int        `json:"max_records"`
	BatchSize        int        `json:"batch_size"`
	RecordsProcessed int        `json:"records_processed"`
	RecordsCreated   int        `json:"records_created"`
	RecordsUpdated   int        `json:"records_updated"`
	RecordsFailed    int        `json:"records_failed"`
	ErrorMessage     string     `json:"error_message,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
	StartedAt        *time.Time `json:"started_at,omitempty"`
	CompletedAt      *time.Time `json:"completed_at,omitempty"`
	DurationSeconds  *float64   `json:"duration_seconds,omitempty"`
}

// Summary converts a SyncJob row into its API representation.
func (j *SyncJob) Summary() JobSummary {
	s := JobSummary{
		ID:               j.ID,
		JobType:          j.JobType,
		Status:           j.Status,
		FromDate:         j.FromDate,
		MaxRecords:       j.MaxRecords,
		BatchSize:        j.BatchSize,
		RecordsProcessed: j.RecordsProcessed,
		RecordsCreated:   j.RecordsCreated,
		RecordsUpdated:   j.RecordsUpdated,
		RecordsFailed:    j.RecordsFailed,
		ErrorMessage:     j.ErrorMessage,
		CreatedAt:        j.CreatedAt,
		StartedAt:        j.StartedAt,
		CompletedAt:      j.CompletedAt,
	}
	if j.StartedAt != nil && j.CompletedAt != nil {
		d := j.CompletedAt.Sub(*j.StartedAt).Seconds()
		s.DurationSeconds = &d
	}
	return s
}
