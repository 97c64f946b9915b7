package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"worksync/internal/metrics"
	"worksync/internal/models"
	"worksync/internal/repository"
	"worksync/internal/syncer"
)

// SyncHandler exposes the job control surface.
type SyncHandler struct {
	service *syncer.Service
	jobs    *repository.SyncJobRepository
	sink    metrics.CallSink
	logger  *zap.Logger
}

func NewSyncHandler(service *syncer.Service, jobs *repository.SyncJobRepository, sink metrics.CallSink, logger *zap.Logger) *SyncHandler {
	return &SyncHandler{
		service: service,
		jobs:    jobs,
		sink:    sink,
		logger:  logger,
	}
}

// StartSync handles POST /api/syncs. It returns immediately with the
// created job; progress is observed through GetJob/GetLogs.
func (h *SyncHandler) StartSync(c echo.Context) error {
	var req models.StartSyncRequest
	if err := c.Bind(&req); err != nil {
		return errorResponse(c, http.StatusBadRequest, "invalid request body")
	}
	if !models.ValidJobType(req.JobType) {
		return errorResponse(c, http.StatusBadRequest, "job_type must be one of works, authors, full")
	}

	var fromDate *time.Time
	if req.FromDate != "" {
		ts, err := parseDate(req.FromDate)
		if err != nil {
			return errorResponse(c, http.StatusBadRequest, "from_date must be RFC 3339 or YYYY-MM-DD")
		}
		fromDate = &ts
	}
	if req.MaxRecords < 0 {
		return errorResponse(c, http.StatusBadRequest, "max_records must be non-negative")
	}

	requestID := uuid.NewString()
	job, err := h.service.StartSync(req.JobType, fromDate, req.MaxRecords, "")
	if err != nil {
		if errors.Is(err, syncer.ErrSyncInFlight) {
			return errorResponse(c, http.StatusConflict, err.Error())
		}
		h.logger.Error("StartSync failed",
			zap.String("job_type", req.JobType),
			zap.String("request_id", requestID),
			zap.Error(err),
		)
		return errorResponse(c, http.StatusInternalServerError, err.Error())
	}

	_ = h.jobs.AppendLog(job.ID, "info", "sync requested", map[string]interface{}{
		"request_id": requestID,
	})

	return successResponse(c, "sync scheduled", job.Summary())
}

// GetJob handles GET /api/syncs/:id.
func (h *SyncHandler) GetJob(c echo.Context) error {
	id, err := parseJobID(c)
	if err != nil {
		return errorResponse(c, http.StatusBadRequest, "invalid job id")
	}

	job, err := h.jobs.GetJob(id)
	if errors.Is(err, repository.ErrJobNotFound) {
		return errorResponse(c, http.StatusNotFound, "job not found")
	}
	if err != nil {
		return errorResponse(c, http.StatusInternalServerError, err.Error())
	}
	return successResponse(c, "", job.Summary())
}

// ListJobs handles GET /api/syncs?status=&job_type=&limit=.
func (h *SyncHandler) ListJobs(c echo.Context) error {
	limit := 50
	if raw := c.QueryParam("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil {
			limit = n
		}
	}

	jobs, err := h.jobs.ListJobs(c.QueryParam("status"), c.QueryParam("job_type"), limit)
	if err != nil {
		return errorResponse(c, http.StatusInternalServerError, err.Error())
	}

	summaries := make([]models.JobSummary, 0, len(jobs))
	for i := range jobs {
		summaries = append(summaries, jobs[i].Summary())
	}
	return successResponse(c, "", summaries)
}

// GetJobLogs handles GET /api/syncs/:id/logs.
func (h *SyncHandler) GetJobLogs(c echo.Context) error {
	id, err := parseJobID(c)
	if err != nil {
		return errorResponse(c, http.StatusBadRequest, "invalid job id")
	}

	if _, err := h.jobs.GetJob(id); err != nil {
		if errors.Is(err, repository.ErrJobNotFound) {
			return errorResponse(c, http.StatusNotFound, "job not found")
		}
		return errorResponse(c, http.StatusInternalServerError, err.Error())
	}

	logs, err := h.jobs.GetLogs(id)
	if err != nil {
		return errorResponse(c, http.StatusInternalServerError, err.Error())
	}
	return successResponse(c, "", logs)
}

// AbortJob handles POST /api/syncs/:id/abort. The abort is
// cooperative: the runner honors it at the next batch boundary.
func (h *SyncHandler) AbortJob(c echo.Context) error {
	id, err := parseJobID(c)
	if err != nil {
		return errorResponse(c, http.StatusBadRequest, "invalid job id")
	}

	err = h.jobs.RequestAbort(id)
	if errors.Is(err, repository.ErrJobNotFound) {
		return errorResponse(c, http.StatusConflict, "job not found or already finished")
	}
	if err != nil {
		return errorResponse(c, http.StatusInternalServerError, err.Error())
	}

	h.logger.Info("Abort requested", zap.Uint("job_id", id))
	return successResponse(c, "abort requested", nil)
}

// CatalogStats handles GET /api/stats/catalog.
func (h *SyncHandler) CatalogStats(c echo.Context) error {
	return successResponse(c, "", h.sink.Stats())
}

func parseJobID(c echo.Context) (uint, error) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		return 0, err
	}
	return uint(id), nil
}

func parseDate(v string) (time.Time, error) {
	if ts, err := time.Parse(time.RFC3339, v); err == nil {
		return ts, nil
	}
	return time.Parse("2006-01-02", v)
}
