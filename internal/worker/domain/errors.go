package domain

import "errors"

var (
	// ErrJobNotFound is returned when a job cannot be found in the database
	ErrJobNotFound = errors.New("job not found")

	// ErrJobAlreadyTerminal is returned when a job already reached completed or failed
	ErrJobAlreadyTerminal = errors.New("job already completed or failed")

	// ErrResumeNotFound is returned when the job's resume row is gone
	ErrResumeNotFound = errors.New("resume not found")

	// ErrInvalidPayload is returned when a queue message is malformed
	ErrInvalidPayload = errors.New("invalid job payload")

	// ErrJobFailed wraps a processing failure that was recorded on the job row
	ErrJobFailed = errors.New("analysis failed")
)

// RetryableError wraps transient errors that should trigger a requeue
type RetryableError struct {
	Err error
}

func (e *RetryableError) Error() string {
	return "retryable error: " + e.Err.Error()
}

func (e *RetryableError) Unwrap() error {
	return e.Err
}

// NewRetryableError creates a new retryable error
func NewRetryableError(err error) error {
	return &RetryableError{Err: err}
}
