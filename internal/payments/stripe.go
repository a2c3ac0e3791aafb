package payments

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"visado/internal/config"
	"visado/internal/models"

	"github.com/rs/zerolog"
	"github.com/stripe/stripe-go/v79"
	"github.com/stripe/stripe-go/v79/checkout/session"
	"github.com/stripe/stripe-go/v79/webhook"
)

// ErrInvalidSignature is returned when a webhook payload fails
// signature verification.
var ErrInvalidSignature = errors.New("invalid webhook signature")

// Client wraps the Stripe API for hosted checkout and webhook
// verification.
type Client struct {
	sessions      *session.Client
	webhookSecret string
	baseURL       string
	currency      string
	logger        *zerolog.Logger
}

func NewClient(cfg config.PaymentsConfig, logger *zerolog.Logger) *Client {
	backend := stripe.GetBackend(stripe.APIBackend)
	return &Client{
		sessions:      &session.Client{B: backend, Key: cfg.SecretKey},
		webhookSecret: cfg.WebhookSecret,
		baseURL:       strings.TrimRight(cfg.BaseURL, "/"),
		currency:      cfg.Currency,
		logger:        logger,
	}
}

// CreateCheckoutSession opens a hosted payment page for one
// consultation. Every field of the request is attached as session
// metadata so the webhook can reconcile the booking even if the local
// record is lost.
func (c *Client) CreateCheckoutSession(ctx context.Context, req models.CheckoutRequest) (*models.CheckoutSession, error) {
	params := &stripe.CheckoutSessionParams{
		Mode: stripe.String(string(stripe.CheckoutSessionModePayment)),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
					Currency: stripe.String(c.currency),
					ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
						Name:        stripe.String(fmt.Sprintf("Consulta de Visa - %s", strings.ToUpper(req.VisaType))),
						Description: stripe.String(fmt.Sprintf("Cita: %s a las %s", req.SelectedDate, req.SelectedTime)),
					},
					UnitAmount: stripe.Int64(req.PriceCents),
				},
				Quantity: stripe.Int64(1),
			},
		},
		CustomerEmail: stripe.String(req.Email),
		SuccessURL:    stripe.String(c.baseURL + "/success?session_id={CHECKOUT_SESSION_ID}"),
		CancelURL:     stripe.String(c.baseURL + "/chat?canceled=1"),
	}
	params.Context = ctx
	for k, v := range req.Metadata() {
		params.AddMetadata(k, v)
	}

	s, err := c.sessions.New(params)
	if err != nil {
		return nil, fmt.Errorf("failed to create checkout session: %w", err)
	}

	c.logger.Info().
		Str("session_id", s.ID).
		Str("booking_id", req.BookingID).
		Int64("amount_cents", req.PriceCents).
		Msg("Checkout session created")

	return &models.CheckoutSession{ID: s.ID, URL: s.URL}, nil
}

// VerifyWebhook authenticates a raw webhook payload against the
// endpoint secret and reduces it to a PaymentEvent. Events other than
// checkout.session.completed are returned with only the type set so
// the caller can acknowledge and skip them.
func (c *Client) VerifyWebhook(payload []byte, sigHeader string) (*models.PaymentEvent, error) {
	event, err := webhook.ConstructEvent(payload, sigHeader, c.webhookSecret)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}

	if string(event.Type) != "checkout.session.completed" {
		return &models.PaymentEvent{Type: string(event.Type)}, nil
	}

	var cs stripe.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &cs); err != nil {
		return nil, fmt.Errorf("failed to decode checkout session: %w", err)
	}

	return &models.PaymentEvent{
		Type:        string(event.Type),
		PaymentID:   cs.ID,
		AmountTotal: cs.AmountTotal,
		Metadata:    cs.Metadata,
	}, nil
}
