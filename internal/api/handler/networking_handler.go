package handler

import (
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

type NetworkingHandler struct {
	logger *slog.Logger
	store  Store
	ai     AIService
	now    func() time.Time
}

func NewNetworkingHandler(deps *Dependencies) *NetworkingHandler {
	return &NetworkingHandler{
		logger: deps.Logger,
		store:  deps.Store,
		ai:     deps.AI,
		now:    deps.clock(),
	}
}

// GenerateMessage handles POST /api/networking/generate
func (h *NetworkingHandler) GenerateMessage(c *gin.Context) {
	p, ok := requirePrincipal(c, h.logger)
	if !ok {
		return
	}

	var req dto.GenerateNetworkingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, h.logger, domain.BadRequest("recipientName, company and messageType are required"))
		return
	}

	msgType := strings.ToLower(strings.TrimSpace(req.MessageType))
	if !ai.IsMessageType(msgType) {
		respondError(c, h.logger, domain.BadRequest("Invalid messageType").
			WithDetails("expected one of linkedin, email, coffee_chat, follow_up"))
		return
	}

	aiReq := ai.NetworkingRequest{
		RecipientName: strings.TrimSpace(req.RecipientName),
		RecipientRole: strings.TrimSpace(req.RecipientRole),
		Company:       strings.TrimSpace(req.Company),
		MessageType:   msgType,
		Context:       strings.TrimSpace(req.Context),
	}

	ctx := c.Request.Context()
	generated, err := h.ai.GenerateNetworkingMessage(ctx, aiReq)
	if err != nil {
		respondError(c, h.logger, upstreamError(err))
		return
	}

	msg := model.NetworkingMessage{
		ID:            uuid.NewString(),
		UserID:        p.UserID,
		RecipientName: aiReq.RecipientName,
		RecipientRole: aiReq.RecipientRole,
		Company:       aiReq.Company,
		MessageType:   msgType,
		Context:       aiReq.Context,
		Subject:       generated.Subject,
		Message:       generated.Message,
		CreatedAt:     h.now().UTC(),
	}
	if err := h.store.CreateNetworkingMessage(ctx, &msg); err != nil {
		respondError(c, h.logger, domain.Internal("Failed to save networking message", err))
		return
	}

	h.logger.Info("Networking message generated",
		slog.String("message_id", msg.ID),
		slog.String("user_id", p.UserID),
		slog.String("message_type", msgType),
	)

	c.JSON(http.StatusCreated, dto.NetworkingResponse{
		MessageID:   msg.ID,
		MessageType: msg.MessageType,
		Subject:     msg.Subject,
		Message:     msg.Message,
		Tips:        generated.Tips,
		CreatedAt:   formatTime(msg.CreatedAt),
	})
}
