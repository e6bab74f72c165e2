package payment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/stripe/stripe-go/v81"
	"github.com/stripe/stripe-go/v81/client"
	"github.com/stripe/stripe-go/v81/webhook"
)

// Metadata keys attached to checkout sessions and payment intents.
const (
	MetaOrderID    = "orderId"
	MetaAnalysisID = "analysisId"
	MetaPromptID   = "promptId"
	MetaOrderType  = "orderType"
)

var (
	// ErrMissingSignature is returned when the webhook signature header is absent.
	ErrMissingSignature = errors.New("payment: missing webhook signature")
	// ErrInvalidSignature wraps signature verification failures.
	ErrInvalidSignature = errors.New("payment: invalid webhook signature")
	// ErrNotConfigured is returned when Stripe keys are absent.
	ErrNotConfigured = errors.New("payment: stripe is not configured")
)

// EventKind classifies verified webhook events.
type EventKind string

const (
	EventCheckoutCompleted EventKind = "checkout_completed"
	EventPaymentSucceeded  EventKind = "payment_succeeded"
	EventPaymentFailed     EventKind = "payment_failed"
	EventOther             EventKind = "other"
)

// Event is a verified, typed webhook event.
type Event struct {
	ID               string
	Kind             EventKind
	RawType          string
	OrderID          string
	AnalysisID       string
	PromptID         string
	OrderType        string
	PaymentReference string
	Amount           int64
	Currency         string
	FailureMessage   string
}

// CheckoutRequest describes the checkout session to create.
type CheckoutRequest struct {
	OrderID     string
	Email       string
	Amount      int64
	Currency    string
	ProductName string
	SuccessURL  string
	CancelURL   string
	Metadata    map[string]string
}

// Checkout is the created session.
type Checkout struct {
	SessionID string
	URL       string
}

// Gateway is the payment capability the workflow and handlers consume.
type Gateway interface {
	CreateCheckout(ctx context.Context, req CheckoutRequest) (Checkout, error)
	VerifyWebhook(payload []byte, signature string) (Event, error)
}

// SessionCreator creates checkout sessions; *session.Client satisfies it.
type SessionCreator interface {
	New(params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error)
}

// StripeGateway implements Gateway on top of stripe-go.
type StripeGateway struct {
	sessions      SessionCreator
	webhookSecret string
}

// NewStripeGateway builds a gateway from API keys.
func NewStripeGateway(secretKey, webhookSecret string) (*StripeGateway, error) {
	if strings.TrimSpace(secretKey) == "" {
		return nil, ErrNotConfigured
	}
	sc := client.New(secretKey, nil)
	return NewStripeGatewayWithSessions(sc.CheckoutSessions, webhookSecret), nil
}

// NewStripeGatewayWithSessions wires an explicit session creator.
func NewStripeGatewayWithSessions(sessions SessionCreator, webhookSecret string) *StripeGateway {
	return &StripeGateway{sessions: sessions, webhookSecret: webhookSecret}
}

// CreateCheckout creates a one-item payment-mode Checkout Session.
func (g *StripeGateway) CreateCheckout(ctx context.Context, req CheckoutRequest) (Checkout, error) {
	if g == nil || g.sessions == nil {
		return Checkout{}, ErrNotConfigured
	}
	if req.Amount <= 0 {
		return Checkout{}, fmt.Errorf("payment: amount must be positive")
	}
	name := req.ProductName
	if name == "" {
		name = "Caught on camera video"
	}
	currency := strings.ToLower(req.Currency)
	if currency == "" {
		currency = string(stripe.CurrencyUSD)
	}

	params := &stripe.CheckoutSessionParams{
		Mode:              stripe.String(string(stripe.CheckoutSessionModePayment)),
		CustomerEmail:     stripe.String(req.Email),
		ClientReferenceID: stripe.String(req.OrderID),
		SuccessURL:        stripe.String(req.SuccessURL),
		CancelURL:         stripe.String(req.CancelURL),
		LineItems: []*stripe.CheckoutSessionLineItemParams{{
			Quantity: stripe.Int64(1),
			PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
				Currency:   stripe.String(currency),
				UnitAmount: stripe.Int64(req.Amount),
				ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
					Name: stripe.String(name),
				},
			},
		}},
		PaymentIntentData: &stripe.CheckoutSessionPaymentIntentDataParams{
			Metadata: map[string]string{},
		},
	}
	params.Context = ctx
	meta := map[string]string{MetaOrderID: req.OrderID}
	for k, v := range req.Metadata {
		if v != "" {
			meta[k] = v
		}
	}
	for k, v := range meta {
		params.AddMetadata(k, v)
		params.PaymentIntentData.Metadata[k] = v
	}

	sess, err := g.sessions.New(params)
	if err != nil {
		return Checkout{}, fmt.Errorf("payment: create checkout session: %w", err)
	}
	return Checkout{SessionID: sess.ID, URL: sess.URL}, nil
}

// VerifyWebhook checks the Stripe-Signature header and decodes the event.
func (g *StripeGateway) VerifyWebhook(payload []byte, signature string) (Event, error) {
	if strings.TrimSpace(signature) == "" {
		return Event{}, ErrMissingSignature
	}
	if g == nil || g.webhookSecret == "" {
		return Event{}, ErrNotConfigured
	}
	evt, err := webhook.ConstructEventWithOptions(payload, signature, g.webhookSecret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		return Event{}, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}
	return decodeEvent(evt)
}

func decodeEvent(evt stripe.Event) (Event, error) {
	out := Event{ID: evt.ID, RawType: string(evt.Type), Kind: EventOther}
	if evt.Data == nil {
		return out, nil
	}

	switch evt.Type {
	case stripe.EventTypeCheckoutSessionCompleted:
		var sess stripe.CheckoutSession
		if err := json.Unmarshal(evt.Data.Raw, &sess); err != nil {
			return Event{}, fmt.Errorf("payment: decode checkout session: %w", err)
		}
		out.Kind = EventCheckoutCompleted
		applyMetadata(&out, sess.Metadata)
		if out.OrderID == "" {
			out.OrderID = sess.ClientReferenceID
		}
		out.Amount = sess.AmountTotal
		out.Currency = strings.ToUpper(string(sess.Currency))
		out.PaymentReference = sess.ID
		if sess.PaymentIntent != nil && sess.PaymentIntent.ID != "" {
			out.PaymentReference = sess.PaymentIntent.ID
		}
	case stripe.EventTypePaymentIntentSucceeded, stripe.EventTypePaymentIntentPaymentFailed:
		var pi stripe.PaymentIntent
		if err := json.Unmarshal(evt.Data.Raw, &pi); err != nil {
			return Event{}, fmt.Errorf("payment: decode payment intent: %w", err)
		}
		out.Kind = EventPaymentSucceeded
		if evt.Type == stripe.EventTypePaymentIntentPaymentFailed {
			out.Kind = EventPaymentFailed
		}
		applyMetadata(&out, pi.Metadata)
		out.Amount = pi.Amount
		out.Currency = strings.ToUpper(string(pi.Currency))
		out.PaymentReference = pi.ID
		if pi.LastPaymentError != nil {
			out.FailureMessage = pi.LastPaymentError.Msg
		}
	}
	return out, nil
}

func applyMetadata(out *Event, meta map[string]string) {
	out.OrderID = meta[MetaOrderID]
	out.AnalysisID = meta[MetaAnalysisID]
	out.PromptID = meta[MetaPromptID]
	out.OrderType = meta[MetaOrderType]
}

var _ Gateway = (*StripeGateway)(nil)
