package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"unicode/utf8"

	"github.com/cuttothechaseo/ai-finance-sub001/internal/api/domain"
	"github.com/cuttothechaseo/ai-finance-sub001/internal/api/dto"
	"github.com/cuttothechaseo/ai-finance-sub001/internal/extract"
	"github.com/cuttothechaseo/ai-finance-sub001/internal/filestore"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type ResumeHandler struct {
	logger    *slog.Logger
	store     Store
	fetcher   FileFetcher
	extractor TextExtractor
}

func NewResumeHandler(deps *Dependencies) *ResumeHandler {
	return &ResumeHandler{
		logger:    deps.Logger,
		store:     deps.Store,
		fetcher:   deps.Fetcher,
		extractor: deps.Extractor,
	}
}

// ParseResume handles POST /api/parse-resume-pdf
// The owner may call it with a bearer token; trusted services may call it
// for any resume with the internal secret.
func (h *ResumeHandler) ParseResume(c *gin.Context) {
	var req dto.ParseResumeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, h.logger, domain.BadRequest("resumeId is required"))
		return
	}

	resumeID := strings.TrimSpace(req.ResumeID)
	if _, err := uuid.Parse(resumeID); err != nil {
		respondError(c, h.logger, domain.BadRequest("resumeId must be a valid UUID"))
		return
	}

	ctx := c.Request.Context()
	resume, err := h.store.GetResumeByID(ctx, resumeID)
	if err != nil {
		if errors.Is(err, domain.ErrResumeNotFound) {
			respondError(c, h.logger, domain.NotFound("Resume not found"))
			return
		}
		respondError(c, h.logger, domain.Internal("Failed to load resume", err))
		return
	}

	if !isInternalCaller(c) {
		p, ok := requirePrincipal(c, h.logger)
		if !ok {
			return
		}
		if resume.UserID != p.UserID {
			respondError(c, h.logger, domain.Forbidden("You do not have access to this resume"))
			return
		}
	}

	data, err := h.fetcher.Fetch(ctx, resume.FileURL)
	if err != nil {
		switch {
		case errors.Is(err, filestore.ErrFileNotFound):
			respondError(c, h.logger, domain.NotFound("Resume file not found"))
		case errors.Is(err, filestore.ErrFileTooLarge):
			respondError(c, h.logger, domain.BadRequest("Resume file is too large"))
		case errors.Is(err, filestore.ErrForeignURL):
			respondError(c, h.logger, domain.BadRequest("Resume file location is not allowed"))
		default:
			respondError(c, h.logger, domain.Upstream("Failed to download resume file", err))
		}
		return
	}

	text, err := h.extractor.Extract(ctx, resume.FileType, resume.FileName, data)
	if err != nil {
		switch {
		case errors.Is(err, extract.ErrEmptyText):
			respondError(c, h.logger, domain.BadRequest("No text could be extracted from the resume"))
		case errors.Is(err, extract.ErrUnsupportedType):
			respondError(c, h.logger, domain.BadRequest("Unsupported resume file type").WithDetails(resume.FileType))
		default:
			respondError(c, h.logger, domain.Internal("Failed to extract resume text", err))
		}
		return
	}

	h.logger.Info("Resume parsed",
		slog.String("resume_id", resume.ID),
		slog.Int("characters", utf8.RuneCountInString(text)),
		slog.Bool("internal_caller", isInternalCaller(c)),
	)

	c.JSON(http.StatusOK, dto.ParseResumeResponse{
		ResumeID:   resume.ID,
		FileType:   extract.DetectType(resume.FileType, resume.FileName),
		Characters: utf8.RuneCountInString(text),
		Text:       text,
	})
}
