package handler

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/cuttothechaseo/ai-finance-sub001/internal/api/domain"
	"github.com/cuttothechaseo/ai-finance-sub001/internal/api/dto"
	"github.com/cuttothechaseo/ai-finance-sub001/internal/payment"
	"github.com/gin-gonic/gin"
)

const maxWebhookBytes = 64 << 10

type PaymentHandler struct {
	logger   *slog.Logger
	store    Store
	payments PaymentProvider
}

func NewPaymentHandler(deps *Dependencies) *PaymentHandler {
	return &PaymentHandler{
		logger:   deps.Logger,
		store:    deps.Store,
		payments: deps.Payments,
	}
}

// CreateCheckout handles POST /api/payments/checkout
func (h *PaymentHandler) CreateCheckout(c *gin.Context) {
	p, ok := requirePrincipal(c, h.logger)
	if !ok {
		return
	}

	ctx := c.Request.Context()
	user, err := h.store.GetUserByID(ctx, p.UserID)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			respondError(c, h.logger, domain.NotFound("User not found"))
			return
		}
		respondError(c, h.logger, domain.Internal("Failed to load user", err))
		return
	}

	if user.HasAccess {
		respondError(c, h.logger, domain.BadRequest("Account already has full access"))
		return
	}

	email := user.Email
	if email == "" {
		email = p.Email
	}

	session, err := h.payments.CreateCheckoutSession(ctx, user.ID, email)
	if err != nil {
		if errors.Is(err, payment.ErrNotConfigured) {
			respondError(c, h.logger, domain.Upstream("Payment provider not configured", nil))
			return
		}
		respondError(c, h.logger, domain.Upstream("Failed to create checkout session", err))
		return
	}

	c.JSON(http.StatusOK, dto.CheckoutResponse{
		URL:       session.URL,
		SessionID: session.ID,
	})
}

// Webhook handles POST /api/payments/webhook
// It is the only place that grants access. Redelivered events are
// acknowledged without side effects.
func (h *PaymentHandler) Webhook(c *gin.Context) {
	payload, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBytes))
	if err != nil {
		respondError(c, h.logger, domain.BadRequest("Failed to read request body"))
		return
	}

	event, err := h.payments.ConstructEvent(payload, c.GetHeader("Stripe-Signature"))
	if err != nil {
		switch {
		case errors.Is(err, payment.ErrNotConfigured):
			respondError(c, h.logger, domain.Upstream("Payment provider not configured", nil))
		case errors.Is(err, payment.ErrInvalidSignature):
			h.logger.Warn("Webhook signature rejected", slog.String("error", err.Error()))
			respondError(c, h.logger, domain.BadRequest("Invalid webhook signature"))
		default:
			respondError(c, h.logger, domain.BadRequest("Invalid webhook payload"))
		}
		return
	}

	ctx := c.Request.Context()

	if event.Type != payment.EventCheckoutCompleted {
		h.acknowledge(c, event, h.store.RecordPaymentEvent(ctx, event.ID, event.Type), "ignored")
		return
	}

	var obj payment.CheckoutSessionObject
	if err := json.Unmarshal(event.Data.Object, &obj); err != nil {
		respondError(c, h.logger, domain.BadRequest("Invalid checkout session object"))
		return
	}

	userID := obj.UserID()
	if userID == "" || (obj.PaymentStatus != "" && obj.PaymentStatus != "paid" && obj.PaymentStatus != "no_payment_required") {
		h.logger.Warn("Checkout completed without a payable user",
			slog.String("event_id", event.ID),
			slog.String("session_id", obj.ID),
			slog.String("payment_status", obj.PaymentStatus),
		)
		h.acknowledge(c, event, h.store.RecordPaymentEvent(ctx, event.ID, event.Type), "ignored")
		return
	}

	err = h.store.GrantAccess(ctx, event.ID, event.Type, userID, obj.Customer)
	if errors.Is(err, domain.ErrUserNotFound) {
		respondError(c, h.logger, domain.NotFound("User not found").WithDetails(userID))
		return
	}
	if err == nil {
		h.logger.Info("Access granted",
			slog.String("event_id", event.ID),
			slog.String("user_id", userID),
		)
	}
	h.acknowledge(c, event, err, "processed")
}

func (h *PaymentHandler) acknowledge(c *gin.Context, event *payment.Event, err error, status string) {
	switch {
	case errors.Is(err, domain.ErrDuplicateEvent):
		h.logger.Info("Duplicate webhook event", slog.String("event_id", event.ID))
		c.JSON(http.StatusOK, dto.WebhookResponse{Received: true, Status: "duplicate"})
	case err != nil:
		respondError(c, h.logger, domain.Internal("Failed to record webhook event", err))
	default:
		c.JSON(http.StatusOK, dto.WebhookResponse{Received: true, Status: status})
	}
}
