package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/cuttothechaseo/ai-finance-sub001/internal/api/domain"
	"github.com/cuttothechaseo/ai-finance-sub001/internal/api/model"
)

func (s *Storage) CreateInterview(ctx context.Context, iv *model.GeneratedInterview) error {
	query := `
		INSERT INTO generated_interviews (
			id, user_id, job_role, industry, experience_level,
			interview_type, questions, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7::jsonb, $8)
	`

	_, err := s.db.ExecContext(ctx, query,
		iv.ID,
		iv.UserID,
		iv.JobRole,
		iv.Industry,
		iv.ExperienceLevel,
		iv.InterviewType,
		jsonParam(iv.Questions),
		iv.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create interview: %w", err)
	}

	return nil
}

func (s *Storage) GetInterviewByID(ctx context.Context, interviewID string) (*model.GeneratedInterview, error) {
	var iv model.GeneratedInterview
	query := `
		SELECT id, user_id, job_role, industry, experience_level,
		       interview_type, questions, created_at
		FROM generated_interviews
		WHERE id = $1
	`

	if err := s.db.GetContext(ctx, &iv, query, interviewID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrInterviewNotFound
		}
		return nil, fmt.Errorf("failed to get interview: %w", err)
	}

	return &iv, nil
}

func (s *Storage) CreateSession(ctx context.Context, sess *model.InterviewSession) error {
	query := `
		INSERT INTO interview_sessions (
			id, interview_id, user_id, status, started_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6)
	`

	_, err := s.db.ExecContext(ctx, query,
		sess.ID,
		sess.InterviewID,
		sess.UserID,
		sess.Status,
		sess.StartedAt,
		sess.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create interview session: %w", err)
	}

	return nil
}

func (s *Storage) GetSessionByID(ctx context.Context, sessionID string) (*model.InterviewSession, error) {
	var sess model.InterviewSession
	query := `
		SELECT id, interview_id, user_id, status, responses, analysis,
		       error_message, started_at, updated_at, completed_at
		FROM interview_sessions
		WHERE id = $1
	`

	if err := s.db.GetContext(ctx, &sess, query, sessionID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrSessionNotFound
		}
		return nil, fmt.Errorf("failed to get interview session: %w", err)
	}

	return &sess, nil
}

// CompleteSession stores the analysis for a session still in progress.
// It reports false when the session had already left in_progress.
func (s *Storage) CompleteSession(ctx context.Context, sessionID string, responses, analysis []byte) (bool, error) {
	now := s.now().UTC()
	query := `
		UPDATE interview_sessions
		SET status = $1,
		    responses = $2::jsonb,
		    analysis = $3::jsonb,
		    error_message = NULL,
		    completed_at = $4,
		    updated_at = $4
		WHERE id = $5
		  AND status = $6
	`

	res, err := s.db.ExecContext(ctx, query,
		domain.SessionStatusCompleted,
		jsonParam(responses),
		jsonParam(analysis),
		now,
		sessionID,
		domain.SessionStatusInProgress,
	)
	if err != nil {
		return false, fmt.Errorf("failed to complete interview session: %w", err)
	}

	return affectedOne(res)
}

func (s *Storage) FailSession(ctx context.Context, sessionID string, responses []byte, message string) (bool, error) {
	query := `
		UPDATE interview_sessions
		SET status = $1,
		    responses = $2::jsonb,
		    error_message = $3,
		    updated_at = $4
		WHERE id = $5
		  AND status = $6
	`

	res, err := s.db.ExecContext(ctx, query,
		domain.SessionStatusFailed,
		jsonParam(responses),
		message,
		s.now().UTC(),
		sessionID,
		domain.SessionStatusInProgress,
	)
	if err != nil {
		return false, fmt.Errorf("failed to mark interview session failed: %w", err)
	}

	return affectedOne(res)
}

func affectedOne(res sql.Result) (bool, error) {
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read affected rows: %w", err)
	}
	return n == 1, nil
}

func (s *Storage) CreateNetworkingMessage(ctx context.Context, msg *model.NetworkingMessage) error {
	query := `
		INSERT INTO networking_messages (
			id, user_id, recipient_name, recipient_role, company,
			message_type, context, subject, message, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`

	_, err := s.db.ExecContext(ctx, query,
		msg.ID,
		msg.UserID,
		msg.RecipientName,
		msg.RecipientRole,
		msg.Company,
		msg.MessageType,
		msg.Context,
		msg.Subject,
		msg.Message,
		msg.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create networking message: %w", err)
	}

	return nil
}
