package domain

import "time"

// Job is the slice of an analysis job the worker needs.
type Job struct {
	ID              string    `db:"id"`
	ResumeID        string    `db:"resume_id"`
	UserID          string    `db:"user_id"`
	Status          string    `db:"status"`
	JobRole         string    `db:"job_role"`
	Industry        string    `db:"industry"`
	ExperienceLevel string    `db:"experience_level"`
	CreatedAt       time.Time `db:"created_at"`
	UpdatedAt       time.Time `db:"updated_at"`
}

// Resume is the file reference the worker downloads.
type Resume struct {
	ID       string `db:"id"`
	UserID   string `db:"user_id"`
	FileName string `db:"file_name"`
	FileURL  string `db:"file_url"`
	FileType string `db:"file_type"`
}

// JobMessage is the queue payload published per claimed job.
type JobMessage struct {
	JobID string `json:"job_id"`
}
