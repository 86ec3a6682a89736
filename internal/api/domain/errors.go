package domain

import (
	"errors"
	"fmt"
)

// Kind classifies an error for the HTTP boundary.
type Kind string

const (
	KindBadRequest   Kind = "bad_request"
	KindUnauthorized Kind = "unauthorized"
	KindForbidden    Kind = "forbidden"
	KindNotFound     Kind = "not_found"
	KindUpstream     Kind = "upstream_failure"
	KindInternal     Kind = "internal"
)

var (
	ErrJobNotFound       = errors.New("job not found")
	ErrResumeNotFound    = errors.New("resume not found")
	ErrInterviewNotFound = errors.New("interview not found")
	ErrSessionNotFound   = errors.New("interview session not found")
	ErrUserNotFound      = errors.New("user not found")
	ErrDuplicateEvent    = errors.New("event already processed")
)

// Error is the error type handlers turn into a JSON response.
type Error struct {
	Kind    Kind
	Message string
	Details string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

func newError(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Cause: cause}
}

func BadRequest(message string) *Error { return newError(KindBadRequest, message, nil) }

func Unauthorized(message string) *Error { return newError(KindUnauthorized, message, nil) }

func Forbidden(message string) *Error { return newError(KindForbidden, message, nil) }

func NotFound(message string) *Error { return newError(KindNotFound, message, nil) }

func Upstream(message string, cause error) *Error { return newError(KindUpstream, message, cause) }

func Internal(message string, cause error) *Error { return newError(KindInternal, message, cause) }

// WithDetails attaches a human-readable detail string.
func (e *Error) WithDetails(details string) *Error {
	e.Details = details
	return e
}

// KindOf returns the Kind of err, or KindInternal for foreign errors.
func KindOf(err error) Kind {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return KindInternal
}
