// Package payment creates Stripe Checkout sessions and verifies Stripe
// webhook deliveries.
package payment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/cuttothechaseo/ai-finance-sub001/internal/config"
	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/checkout/session"
	"github.com/stripe/stripe-go/v76/webhook"
)

const EventCheckoutCompleted = "checkout.session.completed"

var (
	ErrNotConfigured    = errors.New("payment provider not configured")
	ErrInvalidSignature = errors.New("invalid webhook signature")
)

type CheckoutSession struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}

// Event is the envelope of a webhook delivery.
type Event struct {
	ID   string `json:"id"`
	Type string `json:"type"`
	Data struct {
		Object json.RawMessage `json:"object"`
	} `json:"data"`
}

// CheckoutSessionObject is data.object of a checkout.session.* event.
type CheckoutSessionObject struct {
	ID                string            `json:"id"`
	ClientReferenceID string            `json:"client_reference_id"`
	Customer          string            `json:"customer"`
	PaymentStatus     string            `json:"payment_status"`
	Metadata          map[string]string `json:"metadata"`
}

// UserID returns the user the session was opened for.
func (o CheckoutSessionObject) UserID() string {
	if o.ClientReferenceID != "" {
		return o.ClientReferenceID
	}
	return o.Metadata["user_id"]
}

type Client struct {
	webhookSecret string
	priceID       string
	successURL    string
	cancelURL     string
	sessions      session.Client
	logger        *slog.Logger
}

func NewClient(cfg config.PaymentConfig, logger *slog.Logger) *Client {
	baseURL := strings.TrimRight(cfg.APIBaseURL, "/")
	if baseURL == "" {
		baseURL = stripe.APIURL
	}

	backend := stripe.GetBackendWithConfig(stripe.APIBackend, &stripe.BackendConfig{
		HTTPClient:        &http.Client{Timeout: 30 * time.Second},
		LeveledLogger:     &stripe.LeveledLogger{Level: stripe.LevelNull},
		MaxNetworkRetries: stripe.Int64(2),
		URL:               stripe.String(baseURL),
	})

	return &Client{
		webhookSecret: cfg.WebhookSecret,
		priceID:       cfg.PriceID,
		successURL:    cfg.SuccessURL,
		cancelURL:     cfg.CancelURL,
		sessions:      session.Client{B: backend, Key: cfg.SecretKey},
		logger:        logger,
	}
}

// CreateCheckoutSession opens a one-time payment session for userID.
func (c *Client) CreateCheckoutSession(ctx context.Context, userID, email string) (*CheckoutSession, error) {
	if c.sessions.Key == "" || c.priceID == "" {
		return nil, ErrNotConfigured
	}

	params := &stripe.CheckoutSessionParams{
		Mode: stripe.String(string(stripe.CheckoutSessionModePayment)),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{Price: stripe.String(c.priceID), Quantity: stripe.Int64(1)},
		},
		SuccessURL:        stripe.String(c.successURL),
		CancelURL:         stripe.String(c.cancelURL),
		ClientReferenceID: stripe.String(userID),
	}
	params.Context = ctx
	params.AddMetadata("user_id", userID)
	if email != "" {
		params.CustomerEmail = stripe.String(email)
	}

	s, err := c.sessions.New(params)
	if err != nil {
		var stripeErr *stripe.Error
		if errors.As(err, &stripeErr) && stripeErr.Msg != "" {
			return nil, fmt.Errorf("checkout session rejected (%d): %s", stripeErr.HTTPStatusCode, stripeErr.Msg)
		}
		return nil, fmt.Errorf("checkout request failed: %w", err)
	}

	c.logger.Info("Checkout session created",
		slog.String("user_id", userID),
		slog.String("session_id", s.ID),
	)

	return &CheckoutSession{ID: s.ID, URL: s.URL}, nil
}

// ConstructEvent verifies the Stripe-Signature header against payload and
// decodes the event. Events from any API version are accepted since only
// data.object fields stable across versions are read.
func (c *Client) ConstructEvent(payload []byte, sigHeader string) (*Event, error) {
	if c.webhookSecret == "" {
		return nil, ErrNotConfigured
	}

	e, err := webhook.ConstructEventWithOptions(payload, sigHeader, c.webhookSecret, webhook.ConstructEventOptions{
		Tolerance:                webhook.DefaultTolerance,
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		if isSignatureError(err) {
			return nil, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
		}
		return nil, fmt.Errorf("failed to decode webhook event: %w", err)
	}

	if e.ID == "" || e.Type == "" {
		return nil, fmt.Errorf("webhook event missing id or type")
	}

	event := &Event{ID: e.ID, Type: string(e.Type)}
	if e.Data != nil {
		event.Data.Object = e.Data.Raw
	}
	return event, nil
}

func isSignatureError(err error) bool {
	return errors.Is(err, webhook.ErrNotSigned) ||
		errors.Is(err, webhook.ErrInvalidHeader) ||
		errors.Is(err, webhook.ErrNoValidSignature) ||
		errors.Is(err, webhook.ErrTooOld)
}
