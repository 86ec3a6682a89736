package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/cuttothechaseo/ai-finance-sub001/internal/ai"
	"github.com/cuttothechaseo/ai-finance-sub001/internal/api/domain"
	"github.com/cuttothechaseo/ai-finance-sub001/internal/api/dto"
	"github.com/cuttothechaseo/ai-finance-sub001/internal/api/model"
	"github.com/cuttothechaseo/ai-finance-sub001/internal/api/storage"
	"github.com/cuttothechaseo/ai-finance-sub001/internal/auth"
	"github.com/cuttothechaseo/ai-finance-sub001/internal/payment"
	"github.com/cuttothechaseo/ai-finance-sub001/internal/scheduler"
	"github.com/gin-gonic/gin"
)

// Store is the persistence surface the handlers use.
type Store interface {
	CreateJob(ctx context.Context, job *model.AnalysisJob) error
	GetJobByID(ctx context.Context, jobID string) (*model.AnalysisJob, error)
	ListJobs(ctx context.Context, filter storage.JobFilter) ([]model.AnalysisJob, error)
	GetResumeByID(ctx context.Context, resumeID string) (*model.Resume, error)
	GetUserByID(ctx context.Context, userID string) (*model.User, error)

	CreateInterview(ctx context.Context, iv *model.GeneratedInterview) error
	GetInterviewByID(ctx context.Context, interviewID string) (*model.GeneratedInterview, error)
	CreateSession(ctx context.Context, sess *model.InterviewSession) error
	GetSessionByID(ctx context.Context, sessionID string) (*model.InterviewSession, error)
	CompleteSession(ctx context.Context, sessionID string, responses, analysis []byte) (bool, error)
	FailSession(ctx context.Context, sessionID string, responses []byte, message string) (bool, error)
	CreateNetworkingMessage(ctx context.Context, msg *model.NetworkingMessage) error

	GrantAccess(ctx context.Context, eventID, eventType, userID, customerID string) error
	RecordPaymentEvent(ctx context.Context, eventID, eventType string) error
}

type AIService interface {
	GenerateInterview(ctx context.Context, req ai.InterviewRequest) (*ai.InterviewQuestions, []byte, error)
	AnalyzeInterview(ctx context.Context, req ai.InterviewAnalysisRequest) (*ai.InterviewAnalysis, []byte, error)
	GenerateNetworkingMessage(ctx context.Context, req ai.NetworkingRequest) (*ai.NetworkingMessage, error)
}

type FileFetcher interface {
	Fetch(ctx context.Context, ref string) ([]byte, error)
}

type TextExtractor interface {
	Extract(ctx context.Context, fileType, fileName string, data []byte) (string, error)
}

type Trigger interface {
	Trigger(ctx context.Context) ([]scheduler.JobResult, error)
}

type PaymentProvider interface {
	CreateCheckoutSession(ctx context.Context, userID, email string) (*payment.CheckoutSession, error)
	ConstructEvent(payload []byte, sigHeader string) (*payment.Event, error)
}

type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// Dependencies holds all dependencies needed by handlers
type Dependencies struct {
	Logger      *slog.Logger
	Store       Store
	AI          AIService
	Fetcher     FileFetcher
	Extractor   TextExtractor
	Scheduler   Trigger
	Payments    PaymentProvider
	Verifier    *auth.Verifier
	HealthCheck map[string]HealthChecker

	ServiceName      string
	TriggerAPIKey    string
	InternalSecret   string
	DispatchOnCreate bool

	// Now defaults to time.Now.
	Now func() time.Time
}

func (d *Dependencies) clock() func() time.Time {
	if d.Now != nil {
		return d.Now
	}
	return time.Now
}

const (
	principalKey = "principal"
	internalKey  = "internal_caller"
)

// SetPrincipal stores the authenticated caller on the request context.
func SetPrincipal(c *gin.Context, p *auth.Principal) {
	c.Set(principalKey, p)
}

// SetInternalCaller marks the request as coming from a trusted service.
func SetInternalCaller(c *gin.Context) {
	c.Set(internalKey, true)
}

func principalFrom(c *gin.Context) (*auth.Principal, bool) {
	v, ok := c.Get(principalKey)
	if !ok {
		return nil, false
	}
	p, ok := v.(*auth.Principal)
	return p, ok && p != nil
}

func isInternalCaller(c *gin.Context) bool {
	return c.GetBool(internalKey)
}

// requirePrincipal writes 401 and returns false when no caller is set.
func requirePrincipal(c *gin.Context, logger *slog.Logger) (*auth.Principal, bool) {
	p, ok := principalFrom(c)
	if !ok {
		respondError(c, logger, domain.Unauthorized("Authentication required"))
		return nil, false
	}
	return p, true
}

func statusFor(kind domain.Kind) int {
	switch kind {
	case domain.KindBadRequest:
		return http.StatusBadRequest
	case domain.KindUnauthorized:
		return http.StatusUnauthorized
	case domain.KindForbidden:
		return http.StatusForbidden
	case domain.KindNotFound:
		return http.StatusNotFound
	case domain.KindUpstream:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// respondError converts err into the JSON error body. Causes of internal
// errors are logged, never returned.
func respondError(c *gin.Context, logger *slog.Logger, err error) {
	var appErr *domain.Error
	if !errors.As(err, &appErr) {
		appErr = domain.Internal("Internal server error", err)
	}

	status := statusFor(appErr.Kind)
	details := appErr.Details
	if appErr.Kind == domain.KindUpstream && details == "" && appErr.Cause != nil {
		details = appErr.Cause.Error()
	}

	if status >= http.StatusInternalServerError {
		attrs := []any{
			slog.String("method", c.Request.Method),
			slog.String("path", c.Request.URL.Path),
			slog.String("kind", string(appErr.Kind)),
		}
		if appErr.Cause != nil {
			attrs = append(attrs, slog.String("error", appErr.Cause.Error()))
		}
		logger.Error(appErr.Message, attrs...)
	}

	c.AbortWithStatusJSON(status, dto.ErrorResponse{
		Error:   appErr.Message,
		Details: details,
	})
}

// upstreamError classifies an AI failure.
func upstreamError(err error) *domain.Error {
	if errors.Is(err, ai.ErrNotConfigured) {
		return domain.Upstream("AI provider not configured", nil)
	}
	var verr *ai.ValidationError
	if errors.As(err, &verr) {
		return domain.Upstream("AI response was not in the expected format", err)
	}
	return domain.Upstream("AI provider request failed", err)
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}
