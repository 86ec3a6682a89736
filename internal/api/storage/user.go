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

func (s *Storage) GetUserByID(ctx context.Context, userID string) (*model.User, error) {
	var user model.User
	query := `
		SELECT id, email, has_access, stripe_customer_id, created_at, updated_at
		FROM users
		WHERE id = $1
	`

	if err := s.db.GetContext(ctx, &user, query, userID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	return &user, nil
}

// GrantAccess records a payment event and flips the user's access flag in
// one transaction. A previously seen event id returns ErrDuplicateEvent and
// changes nothing.
func (s *Storage) GrantAccess(ctx context.Context, eventID, eventType, userID, customerID string) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := insertPaymentEvent(ctx, tx, eventID, eventType, s.now().UTC()); err != nil {
		return err
	}

	query := `
		UPDATE users
		SET has_access = TRUE,
		    stripe_customer_id = COALESCE(NULLIF($1, ''), stripe_customer_id),
		    updated_at = $2
		WHERE id = $3
	`
	res, err := tx.ExecContext(ctx, query, customerID, s.now().UTC(), userID)
	if err != nil {
		return fmt.Errorf("failed to grant access: %w", err)
	}
	ok, err := affectedOne(res)
	if err != nil {
		return err
	}
	if !ok {
		return domain.ErrUserNotFound
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// RecordPaymentEvent stores an event that needs no further action so
// redelivery is recognised.
func (s *Storage) RecordPaymentEvent(ctx context.Context, eventID, eventType string) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := insertPaymentEvent(ctx, tx, eventID, eventType, s.now().UTC()); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func insertPaymentEvent(ctx context.Context, tx *sqlx.Tx, eventID, eventType string, at time.Time) error {
	query := `
		INSERT INTO payment_events (event_id, type, processed_at)
		VALUES ($1, $2, $3)
	`
	if _, err := tx.ExecContext(ctx, query, eventID, eventType, at); err != nil {
		if postgresql.IsUniqueViolation(err) {
			return domain.ErrDuplicateEvent
		}
		return fmt.Errorf("failed to record payment event: %w", err)
	}
	return nil
}
