package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"github.com/cuttothechaseo/ai-finance-sub001/internal/worker/domain"
	"github.com/jmoiron/sqlx"
)

const jobColumns = `id, resume_id, user_id, status, job_role, industry, experience_level, created_at, updated_at`

// Storage handles the job lifecycle writes shared by the trigger and the worker.
// Every write after the claim is conditional on the job still being open, so
// a stale or duplicate run can never overwrite a terminal job.
type Storage struct {
	db     *sqlx.DB
	logger *slog.Logger
}

// NewStorage creates a new Storage instance
func NewStorage(db *sqlx.DB, logger *slog.Logger) *Storage {
	return &Storage{
		db:     db,
		logger: logger,
	}
}

// ClaimPendingJobs atomically moves up to limit of the oldest pending jobs
// to processing and returns them oldest first. Rows locked by a concurrent
// claim are skipped, so two callers never receive the same job.
func (s *Storage) ClaimPendingJobs(ctx context.Context, limit int, claimedBy string) ([]domain.Job, error) {
	query := `
		UPDATE analysis_jobs
		SET status = $1,
		    worker_id = $2,
		    updated_at = NOW()
		WHERE id IN (
			SELECT id FROM analysis_jobs
			WHERE status = $3
			ORDER BY created_at ASC, id ASC
			LIMIT $4
			FOR UPDATE SKIP LOCKED
		)
		AND status = $3
		RETURNING ` + jobColumns

	var jobs []domain.Job
	err := s.db.SelectContext(ctx, &jobs, query,
		domain.JobStatusProcessing,
		claimedBy,
		domain.JobStatusPending,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to claim pending jobs: %w", err)
	}

	// RETURNING order is unspecified
	sort.Slice(jobs, func(i, j int) bool {
		if jobs[i].CreatedAt.Equal(jobs[j].CreatedAt) {
			return jobs[i].ID < jobs[j].ID
		}
		return jobs[i].CreatedAt.Before(jobs[j].CreatedAt)
	})

	if len(jobs) > 0 {
		s.logger.Info("Claimed pending jobs",
			slog.Int("count", len(jobs)),
			slog.String("claimed_by", claimedBy),
		)
	}

	return jobs, nil
}

// MarkProcessing takes ownership of an open job for workerID and refreshes
// updated_at. A job already claimed by the trigger stays in processing.
func (s *Storage) MarkProcessing(ctx context.Context, jobID, workerID string) (*domain.Job, error) {
	query := `
		UPDATE analysis_jobs
		SET status = $1,
		    worker_id = $2,
		    updated_at = NOW()
		WHERE id = $3
		  AND status IN ($4, $1)
		RETURNING ` + jobColumns

	var job domain.Job
	err := s.db.GetContext(ctx, &job, query,
		domain.JobStatusProcessing,
		workerID,
		jobID,
		domain.JobStatusPending,
	)
	if err == nil {
		return &job, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("failed to mark job processing: %w", err)
	}

	var status string
	err = s.db.GetContext(ctx, &status, `SELECT status FROM analysis_jobs WHERE id = $1`, jobID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrJobNotFound
		}
		return nil, fmt.Errorf("failed to read job status: %w", err)
	}

	s.logger.Warn("Job is not open, skipping",
		slog.String("job_id", jobID),
		slog.String("status", status),
	)
	return nil, domain.ErrJobAlreadyTerminal
}

func (s *Storage) GetResume(ctx context.Context, resumeID string) (*domain.Resume, error) {
	query := `
		SELECT id, user_id, file_name, file_url, file_type
		FROM resumes
		WHERE id = $1
	`

	var resume domain.Resume
	if err := s.db.GetContext(ctx, &resume, query, resumeID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrResumeNotFound
		}
		return nil, fmt.Errorf("failed to get resume: %w", err)
	}

	return &resume, nil
}

// CompleteJob stores the result of a processing job. It returns
// ErrJobAlreadyTerminal when the job was no longer processing.
func (s *Storage) CompleteJob(ctx context.Context, jobID string, result []byte) error {
	query := `
		UPDATE analysis_jobs
		SET status = $1,
		    result = $2::jsonb,
		    error_message = NULL,
		    completed_at = NOW(),
		    updated_at = NOW()
		WHERE id = $3
		  AND status = $4
	`

	res, err := s.db.ExecContext(ctx, query,
		domain.JobStatusCompleted,
		string(result),
		jobID,
		domain.JobStatusProcessing,
	)
	if err != nil {
		return fmt.Errorf("failed to complete job: %w", err)
	}

	return s.expectOne(res, jobID, domain.JobStatusCompleted)
}

// FailJob records message on a processing job. completed_at stays unset.
func (s *Storage) FailJob(ctx context.Context, jobID, message string) error {
	query := `
		UPDATE analysis_jobs
		SET status = $1,
		    error_message = $2,
		    result = NULL,
		    updated_at = NOW()
		WHERE id = $3
		  AND status = $4
	`

	res, err := s.db.ExecContext(ctx, query,
		domain.JobStatusFailed,
		message,
		jobID,
		domain.JobStatusProcessing,
	)
	if err != nil {
		return fmt.Errorf("failed to mark job failed: %w", err)
	}

	return s.expectOne(res, jobID, domain.JobStatusFailed)
}

func (s *Storage) expectOne(res sql.Result, jobID, status string) error {
	rowsAffected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		s.logger.Warn("Job status update skipped - job no longer open",
			slog.String("job_id", jobID),
			slog.String("status", status),
		)
		return domain.ErrJobAlreadyTerminal
	}

	s.logger.Info("Job status updated",
		slog.String("job_id", jobID),
		slog.String("status", status),
	)
	return nil
}

// UpdateJobHeartbeat touches last_heartbeat_at only; updated_at keeps
// marking when processing started.
func (s *Storage) UpdateJobHeartbeat(ctx context.Context, jobID string) error {
	query := `
		UPDATE analysis_jobs
		SET last_heartbeat_at = NOW()
		WHERE id = $1 AND status = $2
	`

	result, err := s.db.ExecContext(ctx, query, jobID, domain.JobStatusProcessing)
	if err != nil {
		return fmt.Errorf("failed to update job heartbeat: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		s.logger.Warn("Job heartbeat update - no rows affected (job may not be processing)",
			slog.String("job_id", jobID),
		)
	}

	return nil
}
