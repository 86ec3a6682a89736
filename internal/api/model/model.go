package model

import (
	"database/sql"
	"time"
)

// AnalysisJob is one resume-analysis request and its lifecycle state.
// JSON columns are plain []byte so NULL scans cleanly.
type AnalysisJob struct {
	ID              string         `db:"id"`
	ResumeID        string         `db:"resume_id"`
	UserID          string         `db:"user_id"`
	Status          string         `db:"status"`
	JobRole         string         `db:"job_role"`
	Industry        string         `db:"industry"`
	ExperienceLevel string         `db:"experience_level"`
	Result          []byte         `db:"result"`
	ErrorMessage    sql.NullString `db:"error_message"`
	WorkerID        sql.NullString `db:"worker_id"`
	CreatedAt       time.Time      `db:"created_at"`
	UpdatedAt       time.Time      `db:"updated_at"`
	CompletedAt     sql.NullTime   `db:"completed_at"`
	LastHeartbeatAt sql.NullTime   `db:"last_heartbeat_at"`
}

// Resume is an uploaded resume file owned by a user.
type Resume struct {
	ID        string    `db:"id"`
	UserID    string    `db:"user_id"`
	FileName  string    `db:"file_name"`
	FileURL   string    `db:"file_url"`
	FileType  string    `db:"file_type"`
	CreatedAt time.Time `db:"created_at"`
}

// User holds the access flag flipped by the payment webhook.
type User struct {
	ID               string         `db:"id"`
	Email            string         `db:"email"`
	HasAccess        bool           `db:"has_access"`
	StripeCustomerID sql.NullString `db:"stripe_customer_id"`
	CreatedAt        time.Time      `db:"created_at"`
	UpdatedAt        time.Time      `db:"updated_at"`
}

// GeneratedInterview is a set of AI-generated mock interview questions.
type GeneratedInterview struct {
	ID              string    `db:"id"`
	UserID          string    `db:"user_id"`
	JobRole         string    `db:"job_role"`
	Industry        string    `db:"industry"`
	ExperienceLevel string    `db:"experience_level"`
	InterviewType   string    `db:"interview_type"`
	Questions       []byte    `db:"questions"`
	CreatedAt       time.Time `db:"created_at"`
}

// InterviewSession records a user's answers to a generated interview.
type InterviewSession struct {
	ID           string         `db:"id"`
	InterviewID  string         `db:"interview_id"`
	UserID       string         `db:"user_id"`
	Status       string         `db:"status"`
	Responses    []byte         `db:"responses"`
	Analysis     []byte         `db:"analysis"`
	ErrorMessage sql.NullString `db:"error_message"`
	StartedAt    time.Time      `db:"started_at"`
	UpdatedAt    time.Time      `db:"updated_at"`
	CompletedAt  sql.NullTime   `db:"completed_at"`
}

// NetworkingMessage is a generated outreach message.
type NetworkingMessage struct {
	ID            string    `db:"id"`
	UserID        string    `db:"user_id"`
	RecipientName string    `db:"recipient_name"`
	RecipientRole string    `db:"recipient_role"`
	Company       string    `db:"company"`
	MessageType   string    `db:"message_type"`
	Context       string    `db:"context"`
	Subject       string    `db:"subject"`
	Message       string    `db:"message"`
	CreatedAt     time.Time `db:"created_at"`
}
