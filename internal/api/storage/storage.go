package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/cuttothechaseo/ai-finance-sub001/internal/api/domain"
	"github.com/cuttothechaseo/ai-finance-sub001/internal/api/model"
	"github.com/cuttothechaseo/ai-finance-sub001/shared/postgresql"
	"github.com/jmoiron/sqlx"
)

const jobColumns = `
	id, resume_id, user_id, status, job_role, industry, experience_level,
	result, error_message, worker_id, created_at, updated_at, completed_at,
	last_heartbeat_at`

// Storage is the API service's data access layer.
type Storage struct {
	db  *sqlx.DB
	now func() time.Time
}

func NewStorage(pg *postgresql.Client) *Storage {
	return NewFromDB(pg.GetDB())
}

func NewFromDB(db *sqlx.DB) *Storage {
	return &Storage{
		db:  db,
		now: time.Now,
	}
}

// jsonParam passes JSON as text so lib/pq does not encode it as bytea.
func jsonParam(b []byte) any {
	if b == nil {
		return nil
	}
	return string(b)
}

func (s *Storage) CreateJob(ctx context.Context, job *model.AnalysisJob) error {
	query := `
		INSERT INTO analysis_jobs (
			id, resume_id, user_id, status,
			job_role, industry, experience_level,
			created_at, updated_at
		) VALUES (
			$1, $2, $3, $4,
			$5, $6, $7,
			$8, $9
		)
	`

	_, err := s.db.ExecContext(
		ctx,
		query,
		job.ID,
		job.ResumeID,
		job.UserID,
		job.Status,
		job.JobRole,
		job.Industry,
		job.ExperienceLevel,
		job.CreatedAt,
		job.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create job: %w", err)
	}

	return nil
}

func (s *Storage) GetJobByID(ctx context.Context, jobID string) (*model.AnalysisJob, error) {
	var job model.AnalysisJob
	query := `SELECT ` + jobColumns + ` FROM analysis_jobs WHERE id = $1`

	err := s.db.GetContext(ctx, &job, query, jobID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrJobNotFound
		}
		return nil, fmt.Errorf("failed to get job: %w", err)
	}

	return &job, nil
}

type JobFilter struct {
	UserID   string
	Status   string
	PageSize int
	Cursor   *JobCursor
}

type JobCursor struct {
	CreatedAt time.Time
	JobID     string
}

// ListJobs returns up to PageSize+1 jobs, newest first; the extra row
// signals another page.
func (s *Storage) ListJobs(ctx context.Context, filter JobFilter) ([]model.AnalysisJob, error) {
	query := `SELECT ` + jobColumns + ` FROM analysis_jobs WHERE 1=1`
	args := []interface{}{}
	argIdx := 1

	if filter.UserID != "" {
		query += fmt.Sprintf(" AND user_id = $%d", argIdx)
		args = append(args, filter.UserID)
		argIdx++
	}

	if filter.Status != "" {
		query += fmt.Sprintf(" AND status = $%d", argIdx)
		args = append(args, filter.Status)
		argIdx++
	}

	if filter.Cursor != nil {
		query += fmt.Sprintf(" AND (created_at, id) < ($%d, $%d)", argIdx, argIdx+1)
		args = append(args, filter.Cursor.CreatedAt, filter.Cursor.JobID)
		argIdx += 2
	}

	query += " ORDER BY created_at DESC, id DESC"

	if filter.PageSize > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argIdx)
		args = append(args, filter.PageSize+1)
	}

	var jobs []model.AnalysisJob
	if err := s.db.SelectContext(ctx, &jobs, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list jobs: %w", err)
	}

	return jobs, nil
}

func (s *Storage) GetResumeByID(ctx context.Context, resumeID string) (*model.Resume, error) {
	var resume model.Resume
	query := `
		SELECT id, user_id, file_name, file_url, file_type, created_at
		FROM resumes
		WHERE id = $1
	`

	if err := s.db.GetContext(ctx, &resume, query, resumeID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrResumeNotFound
		}
		return nil, fmt.Errorf("failed to get resume: %w", err)
	}

	return &resume, nil
}
