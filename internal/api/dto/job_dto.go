package dto

import "encoding/json"

type CreateAnalysisJobRequest struct {
	ResumeID        string `json:"resumeId" binding:"required"`
	JobRole         string `json:"jobRole"`
	Industry        string `json:"industry"`
	ExperienceLevel string `json:"experienceLevel"`
}

type CreateAnalysisJobResponse struct {
	JobID  string `json:"jobId"`
	Status string `json:"status"`
}

// AnalysisStatusResponse is the poll response; which optional fields are
// set depends on Status.
type AnalysisStatusResponse struct {
	JobID     string `json:"jobId"`
	Status    string `json:"status"`
	CreatedAt string `json:"createdAt"`
	UpdatedAt string `json:"updatedAt"`

	// pending
	QueuedSeconds *int64 `json:"queuedSeconds,omitempty"`

	// processing
	StartedAt      string `json:"startedAt,omitempty"`
	ElapsedSeconds *int64 `json:"elapsedSeconds,omitempty"`
	Elapsed        string `json:"elapsed,omitempty"`

	// completed
	Result            json.RawMessage `json:"result,omitempty"`
	CompletedAt       string          `json:"completedAt,omitempty"`
	ProcessingSeconds *int64          `json:"processingSeconds,omitempty"`

	// failed
	Error string `json:"error,omitempty"`
}

type ListJobsRequest struct {
	Status   string `form:"status"`
	PageSize int    `form:"page_size"`
	Cursor   string `form:"cursor"`
}

type ListJobsResponse struct {
	Jobs       []JobDTO `json:"jobs"`
	NextCursor string   `json:"nextCursor,omitempty"`
}

type JobDTO struct {
	JobID           string `json:"jobId"`
	ResumeID        string `json:"resumeId"`
	Status          string `json:"status"`
	JobRole         string `json:"jobRole,omitempty"`
	Industry        string `json:"industry,omitempty"`
	ExperienceLevel string `json:"experienceLevel,omitempty"`
	OverallScore    *int   `json:"overallScore,omitempty"`
	CreatedAt       string `json:"createdAt"`
	UpdatedAt       string `json:"updatedAt"`
	CompletedAt     string `json:"completedAt,omitempty"`
}

type TriggerResult struct {
	JobID   string `json:"jobId"`
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

type TriggerResponse struct {
	Processed int             `json:"processed"`
	Results   []TriggerResult `json:"results"`
}

type ParseResumeRequest struct {
	ResumeID string `json:"resumeId" binding:"required"`
}

type ParseResumeResponse struct {
	ResumeID   string `json:"resumeId"`
	FileType   string `json:"fileType"`
	Characters int    `json:"characters"`
	Text       string `json:"text"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}
