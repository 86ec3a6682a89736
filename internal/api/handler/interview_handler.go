package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/cuttothechaseo/ai-finance-sub001/internal/ai"
	"github.com/cuttothechaseo/ai-finance-sub001/internal/api/domain"
	"github.com/cuttothechaseo/ai-finance-sub001/internal/api/dto"
	"github.com/cuttothechaseo/ai-finance-sub001/internal/api/model"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	defaultQuestionCount = 5
	maxQuestionCount     = 15

	// sessionWriteTimeout bounds the failure write once the request
	// context may already be gone.
	sessionWriteTimeout = 10 * time.Second
)

type InterviewHandler struct {
	logger *slog.Logger
	store  Store
	ai     AIService
	now    func() time.Time
}

func NewInterviewHandler(deps *Dependencies) *InterviewHandler {
	return &InterviewHandler{
		logger: deps.Logger,
		store:  deps.Store,
		ai:     deps.AI,
		now:    deps.clock(),
	}
}

// GenerateInterview handles POST /api/interviews/generate
func (h *InterviewHandler) GenerateInterview(c *gin.Context) {
	p, ok := requirePrincipal(c, h.logger)
	if !ok {
		return
	}

	var req dto.GenerateInterviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, h.logger, domain.BadRequest("jobRole is required"))
		return
	}

	if req.QuestionCount == 0 {
		req.QuestionCount = defaultQuestionCount
	}
	if req.QuestionCount < 1 || req.QuestionCount > maxQuestionCount {
		respondError(c, h.logger, domain.BadRequest("questionCount must be between 1 and 15"))
		return
	}

	aiReq := ai.InterviewRequest{
		JobRole:         strings.TrimSpace(req.JobRole),
		Industry:        strings.TrimSpace(req.Industry),
		ExperienceLevel: strings.TrimSpace(req.ExperienceLevel),
		InterviewType:   strings.TrimSpace(req.InterviewType),
		QuestionCount:   req.QuestionCount,
	}

	ctx := c.Request.Context()
	_, questions, err := h.ai.GenerateInterview(ctx, aiReq)
	if err != nil {
		respondError(c, h.logger, upstreamError(err))
		return
	}

	iv := model.GeneratedInterview{
		ID:              uuid.NewString(),
		UserID:          p.UserID,
		JobRole:         aiReq.JobRole,
		Industry:        aiReq.Industry,
		ExperienceLevel: aiReq.ExperienceLevel,
		InterviewType:   aiReq.InterviewType,
		Questions:       questions,
		CreatedAt:       h.now().UTC(),
	}
	if err := h.store.CreateInterview(ctx, &iv); err != nil {
		respondError(c, h.logger, domain.Internal("Failed to save interview", err))
		return
	}

	h.logger.Info("Interview generated",
		slog.String("interview_id", iv.ID),
		slog.String("user_id", p.UserID),
		slog.Int("question_count", req.QuestionCount),
	)

	c.JSON(http.StatusCreated, toInterviewResponse(&iv))
}

func toInterviewResponse(iv *model.GeneratedInterview) dto.InterviewResponse {
	return dto.InterviewResponse{
		InterviewID:     iv.ID,
		JobRole:         iv.JobRole,
		Industry:        iv.Industry,
		ExperienceLevel: iv.ExperienceLevel,
		InterviewType:   iv.InterviewType,
		Questions:       questionsJSON(iv.Questions),
		CreatedAt:       formatTime(iv.CreatedAt),
	}
}

// questionsJSON unwraps the stored {"questions": [...]} document.
func questionsJSON(stored []byte) json.RawMessage {
	var doc struct {
		Questions json.RawMessage `json:"questions"`
	}
	if err := json.Unmarshal(stored, &doc); err != nil || len(doc.Questions) == 0 {
		return json.RawMessage("[]")
	}
	return doc.Questions
}

// StartSession handles POST /api/interviews/sessions
func (h *InterviewHandler) StartSession(c *gin.Context) {
	p, ok := requirePrincipal(c, h.logger)
	if !ok {
		return
	}

	var req dto.StartSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, h.logger, domain.BadRequest("interviewId is required"))
		return
	}

	notFound := domain.NotFound("Interview not found")
	if _, err := uuid.Parse(req.InterviewID); err != nil {
		respondError(c, h.logger, notFound)
		return
	}

	ctx := c.Request.Context()
	iv, err := h.store.GetInterviewByID(ctx, req.InterviewID)
	if err != nil {
		if errors.Is(err, domain.ErrInterviewNotFound) {
			respondError(c, h.logger, notFound)
			return
		}
		respondError(c, h.logger, domain.Internal("Failed to load interview", err))
		return
	}
	if iv.UserID != p.UserID {
		respondError(c, h.logger, notFound)
		return
	}

	now := h.now().UTC()
	sess := model.InterviewSession{
		ID:          uuid.NewString(),
		InterviewID: iv.ID,
		UserID:      p.UserID,
		Status:      domain.SessionStatusInProgress,
		StartedAt:   now,
		UpdatedAt:   now,
	}
	if err := h.store.CreateSession(ctx, &sess); err != nil {
		respondError(c, h.logger, domain.Internal("Failed to start interview session", err))
		return
	}

	c.JSON(http.StatusCreated, dto.SessionResponse{
		SessionID:   sess.ID,
		InterviewID: sess.InterviewID,
		Status:      sess.Status,
		StartedAt:   formatTime(sess.StartedAt),
	})
}

// AnalyzeInterview handles POST /api/interviews/analyze
// An AI failure marks the session failed and is returned as an upstream
// error.
func (h *InterviewHandler) AnalyzeInterview(c *gin.Context) {
	p, ok := requirePrincipal(c, h.logger)
	if !ok {
		return
	}

	var req dto.AnalyzeInterviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, h.logger, domain.BadRequest("sessionId is required"))
		return
	}

	answers := make([]ai.Answer, 0, len(req.Responses))
	for _, r := range req.Responses {
		if strings.TrimSpace(r.Question) == "" {
			continue
		}
		answers = append(answers, ai.Answer{Question: r.Question, Answer: r.Answer})
	}
	if len(answers) == 0 {
		respondError(c, h.logger, domain.BadRequest("At least one response is required"))
		return
	}

	notFound := domain.NotFound("Interview session not found")
	if _, err := uuid.Parse(req.SessionID); err != nil {
		respondError(c, h.logger, notFound)
		return
	}

	ctx := c.Request.Context()
	sess, err := h.store.GetSessionByID(ctx, req.SessionID)
	if err != nil {
		if errors.Is(err, domain.ErrSessionNotFound) {
			respondError(c, h.logger, notFound)
			return
		}
		respondError(c, h.logger, domain.Internal("Failed to load interview session", err))
		return
	}
	if sess.UserID != p.UserID {
		respondError(c, h.logger, notFound)
		return
	}
	if sess.Status != domain.SessionStatusInProgress {
		respondError(c, h.logger, domain.BadRequest("Interview session is already "+sess.Status))
		return
	}

	iv, err := h.store.GetInterviewByID(ctx, sess.InterviewID)
	if err != nil {
		respondError(c, h.logger, domain.Internal("Failed to load interview", err))
		return
	}

	responses, err := json.Marshal(answers)
	if err != nil {
		respondError(c, h.logger, domain.Internal("Failed to encode responses", err))
		return
	}

	_, analysis, aiErr := h.ai.AnalyzeInterview(ctx, ai.InterviewAnalysisRequest{
		JobRole:   iv.JobRole,
		Industry:  iv.Industry,
		Responses: answers,
	})
	if aiErr != nil {
		writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), sessionWriteTimeout)
		defer cancel()
		if _, err := h.store.FailSession(writeCtx, sess.ID, responses, aiErr.Error()); err != nil {
			h.logger.Error("Failed to mark interview session failed",
				slog.String("session_id", sess.ID),
				slog.String("error", err.Error()),
			)
		}
		respondError(c, h.logger, upstreamError(aiErr))
		return
	}

	updated, err := h.store.CompleteSession(ctx, sess.ID, responses, analysis)
	if err != nil {
		respondError(c, h.logger, domain.Internal("Failed to save interview analysis", err))
		return
	}
	if !updated {
		respondError(c, h.logger, domain.BadRequest("Interview session is no longer in progress"))
		return
	}

	h.logger.Info("Interview analyzed",
		slog.String("session_id", sess.ID),
		slog.String("user_id", p.UserID),
		slog.Int("responses", len(answers)),
	)

	c.JSON(http.StatusOK, dto.SessionResponse{
		SessionID:   sess.ID,
		InterviewID: sess.InterviewID,
		Status:      domain.SessionStatusCompleted,
		Analysis:    analysis,
		StartedAt:   formatTime(sess.StartedAt),
		CompletedAt: formatTime(h.now()),
	})
}
