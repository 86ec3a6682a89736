package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/cuttothechaseo/ai-finance-sub001/internal/api/domain"
	"github.com/cuttothechaseo/ai-finance-sub001/internal/api/dto"
	"github.com/cuttothechaseo/ai-finance-sub001/internal/api/model"
	"github.com/cuttothechaseo/ai-finance-sub001/internal/api/storage"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// AnalysisHandler serves resume analysis jobs.
type AnalysisHandler struct {
	logger           *slog.Logger
	store            Store
	scheduler        Trigger
	dispatchOnCreate bool
	now              func() time.Time
}

func NewAnalysisHandler(deps *Dependencies) *AnalysisHandler {
	return &AnalysisHandler{
		logger:           deps.Logger,
		store:            deps.Store,
		scheduler:        deps.Scheduler,
		dispatchOnCreate: deps.DispatchOnCreate,
		now:              deps.clock(),
	}
}

// CreateAnalysisJob handles POST /api/create-analysis-job
func (h *AnalysisHandler) CreateAnalysisJob(c *gin.Context) {
	p, ok := requirePrincipal(c, h.logger)
	if !ok {
		return
	}

	var req dto.CreateAnalysisJobRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, h.logger, domain.BadRequest("resumeId is required"))
		return
	}

	resumeID := strings.TrimSpace(req.ResumeID)
	if _, err := uuid.Parse(resumeID); err != nil {
		respondError(c, h.logger, domain.BadRequest("resumeId must be a valid UUID"))
		return
	}

	ctx := c.Request.Context()
	resume, err := h.store.GetResumeByID(ctx, resumeID)
	if err != nil {
		if errors.Is(err, domain.ErrResumeNotFound) {
			respondError(c, h.logger, domain.NotFound("Resume not found"))
			return
		}
		respondError(c, h.logger, domain.Internal("Failed to load resume", err))
		return
	}

	if resume.UserID != p.UserID {
		respondError(c, h.logger, domain.Forbidden("You do not have access to this resume"))
		return
	}

	now := h.now().UTC()
	job := model.AnalysisJob{
		ID:              uuid.NewString(),
		ResumeID:        resume.ID,
		UserID:          p.UserID,
		Status:          domain.JobStatusPending,
		JobRole:         strings.TrimSpace(req.JobRole),
		Industry:        strings.TrimSpace(req.Industry),
		ExperienceLevel: strings.TrimSpace(req.ExperienceLevel),
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	if err := h.store.CreateJob(ctx, &job); err != nil {
		respondError(c, h.logger, domain.Internal("Failed to create analysis job", err))
		return
	}

	h.logger.Info("Analysis job created",
		slog.String("job_id", job.ID),
		slog.String("resume_id", job.ResumeID),
		slog.String("user_id", job.UserID),
	)

	if h.dispatchOnCreate && h.scheduler != nil {
		go h.triggerInBackground(context.WithoutCancel(ctx), job.ID)
	}

	c.JSON(http.StatusCreated, dto.CreateAnalysisJobResponse{
		JobID:  job.ID,
		Status: job.Status,
	})
}

// triggerInBackground runs one trigger pass so a new job does not wait for
// the next external trigger. The pass claims the oldest pending jobs, which
// may or may not include jobID.
func (h *AnalysisHandler) triggerInBackground(ctx context.Context, jobID string) {
	results, err := h.scheduler.Trigger(ctx)
	if err != nil {
		h.logger.Error("Dispatch on create failed",
			slog.String("job_id", jobID),
			slog.String("error", err.Error()),
		)
		return
	}
	h.logger.Debug("Dispatch on create finished",
		slog.String("job_id", jobID),
		slog.Int("claimed", len(results)),
	)
}

// GetAnalysisStatus handles GET /api/get-analysis-status?jobId=
// Unknown ids, malformed ids and jobs owned by someone else all produce the
// same NotFound body.
func (h *AnalysisHandler) GetAnalysisStatus(c *gin.Context) {
	p, ok := requirePrincipal(c, h.logger)
	if !ok {
		return
	}

	jobID := strings.TrimSpace(c.Query("jobId"))
	if jobID == "" {
		respondError(c, h.logger, domain.BadRequest("jobId is required"))
		return
	}

	notFound := domain.NotFound("Job not found")
	if _, err := uuid.Parse(jobID); err != nil {
		respondError(c, h.logger, notFound)
		return
	}

	job, err := h.store.GetJobByID(c.Request.Context(), jobID)
	if err != nil {
		if errors.Is(err, domain.ErrJobNotFound) {
			respondError(c, h.logger, notFound)
			return
		}
		respondError(c, h.logger, domain.Internal("Failed to get job", err))
		return
	}

	if job.UserID != p.UserID {
		h.logger.Warn("Job status requested by non-owner",
			slog.String("job_id", job.ID),
			slog.String("user_id", p.UserID),
		)
		respondError(c, h.logger, notFound)
		return
	}

	c.JSON(http.StatusOK, buildStatusResponse(job, h.now()))
}

func buildStatusResponse(job *model.AnalysisJob, now time.Time) dto.AnalysisStatusResponse {
	resp := dto.AnalysisStatusResponse{
		JobID:     job.ID,
		Status:    job.Status,
		CreatedAt: formatTime(job.CreatedAt),
		UpdatedAt: formatTime(job.UpdatedAt),
	}

	switch job.Status {
	case domain.JobStatusPending:
		queued := secondsBetween(job.CreatedAt, now)
		resp.QueuedSeconds = &queued
	case domain.JobStatusProcessing:
		elapsed := secondsBetween(job.UpdatedAt, now)
		resp.StartedAt = formatTime(job.UpdatedAt)
		resp.ElapsedSeconds = &elapsed
		resp.Elapsed = formatElapsed(time.Duration(elapsed) * time.Second)
	case domain.JobStatusCompleted:
		if len(job.Result) > 0 {
			resp.Result = json.RawMessage(job.Result)
		}
		if job.CompletedAt.Valid {
			took := secondsBetween(job.CreatedAt, job.CompletedAt.Time)
			resp.CompletedAt = formatTime(job.CompletedAt.Time)
			resp.ProcessingSeconds = &took
		}
	case domain.JobStatusFailed:
		resp.Error = domain.DefaultFailureMessage
		if job.ErrorMessage.Valid && strings.TrimSpace(job.ErrorMessage.String) != "" {
			resp.Error = job.ErrorMessage.String
		}
	}

	return resp
}

// secondsBetween never goes negative when clocks disagree.
func secondsBetween(from, to time.Time) int64 {
	d := to.Sub(from)
	if d < 0 {
		return 0
	}
	return int64(d / time.Second)
}

// formatElapsed renders a duration as "45s", "2m 5s" or "1h 3m".
func formatElapsed(d time.Duration) string {
	d = d.Truncate(time.Second)
	h := int(d / time.Hour)
	m := int(d % time.Hour / time.Minute)
	s := int(d % time.Minute / time.Second)

	switch {
	case h > 0:
		return fmt.Sprintf("%dh %dm", h, m)
	case m > 0:
		return fmt.Sprintf("%dm %ds", m, s)
	default:
		return fmt.Sprintf("%ds", s)
	}
}

// ListAnalysisJobs handles GET /api/analysis-jobs
func (h *AnalysisHandler) ListAnalysisJobs(c *gin.Context) {
	p, ok := requirePrincipal(c, h.logger)
	if !ok {
		return
	}

	var req dto.ListJobsRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		respondError(c, h.logger, domain.BadRequest("Invalid query parameters"))
		return
	}

	if req.PageSize <= 0 {
		req.PageSize = defaultPageSize
	}
	if req.PageSize > maxPageSize {
		req.PageSize = maxPageSize
	}

	if req.Status != "" && !isJobStatus(req.Status) {
		respondError(c, h.logger, domain.BadRequest("Invalid status filter").WithDetails(req.Status))
		return
	}

	cursor, err := DecodeJobCursor(req.Cursor)
	if err != nil {
		respondError(c, h.logger, domain.BadRequest("Invalid cursor"))
		return
	}

	jobs, err := h.store.ListJobs(c.Request.Context(), storage.JobFilter{
		UserID:   p.UserID,
		Status:   req.Status,
		PageSize: req.PageSize,
		Cursor:   cursor,
	})
	if err != nil {
		respondError(c, h.logger, domain.Internal("Failed to list jobs", err))
		return
	}

	hasMore := len(jobs) > req.PageSize
	if hasMore {
		jobs = jobs[:req.PageSize]
	}

	resp := dto.ListJobsResponse{Jobs: make([]dto.JobDTO, len(jobs))}
	for i := range jobs {
		resp.Jobs[i] = toJobDTO(&jobs[i])
	}

	if hasMore {
		last := jobs[len(jobs)-1]
		resp.NextCursor = EncodeJobCursor(&storage.JobCursor{
			CreatedAt: last.CreatedAt,
			JobID:     last.ID,
		})
	}

	c.JSON(http.StatusOK, resp)
}

func isJobStatus(s string) bool {
	switch s {
	case domain.JobStatusPending, domain.JobStatusProcessing, domain.JobStatusCompleted, domain.JobStatusFailed:
		return true
	}
	return false
}

func toJobDTO(job *model.AnalysisJob) dto.JobDTO {
	out := dto.JobDTO{
		JobID:           job.ID,
		ResumeID:        job.ResumeID,
		Status:          job.Status,
		JobRole:         job.JobRole,
		Industry:        job.Industry,
		ExperienceLevel: job.ExperienceLevel,
		OverallScore:    overallScore(job.Result),
		CreatedAt:       formatTime(job.CreatedAt),
		UpdatedAt:       formatTime(job.UpdatedAt),
	}
	if job.CompletedAt.Valid {
		out.CompletedAt = formatTime(job.CompletedAt.Time)
	}
	return out
}

func overallScore(result []byte) *int {
	if len(result) == 0 {
		return nil
	}
	var r struct {
		OverallScore *int `json:"overallScore"`
	}
	if err := json.Unmarshal(result, &r); err != nil {
		return nil
	}
	return r.OverallScore
}

// TriggerJobProcessing handles POST /api/trigger-job-processing
func (h *AnalysisHandler) TriggerJobProcessing(c *gin.Context) {
	results, err := h.scheduler.Trigger(c.Request.Context())
	if err != nil {
		respondError(c, h.logger, domain.Internal("Failed to claim pending jobs", err))
		return
	}

	resp := dto.TriggerResponse{
		Processed: len(results),
		Results:   make([]dto.TriggerResult, len(results)),
	}
	for i, r := range results {
		resp.Results[i] = dto.TriggerResult{
			JobID:   r.JobID,
			Success: r.Success,
			Error:   r.Error,
		}
	}

	c.JSON(http.StatusOK, resp)
}
