package domain

// Job statuses as stored in analysis_jobs.status.
const (
	JobStatusPending    = "pending"
	JobStatusProcessing = "processing"
	JobStatusCompleted  = "completed"
	JobStatusFailed     = "failed"
)

// DispatchFailedPrefix marks jobs the trigger claimed but could not hand off.
const DispatchFailedPrefix = "dispatch failed: "
