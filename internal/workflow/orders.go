package workflow

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"net/url"
	"strings"

	"camclip/internal/domain"
	"camclip/internal/payment"
	"camclip/internal/providers/video"
)

// CreateOrderInput is the customer's checkout request.
type CreateOrderInput struct {
	Email         string
	AnalysisID    string
	PromptID      string
	VideoFileURL  string
	VideoDuration string
	TestMode      bool
	Country       string
}

// CreatedOrder is returned by CreateOrder. CheckoutURL is empty for
// test-mode orders, which are created already paid.
type CreatedOrder struct {
	OrderID     string
	CheckoutURL string
	Amount      int64
	Currency    string
	TestMode    bool
}

// CreateOrder validates the request, persists the order and opens a checkout
// session. When the checkout cannot be created the order is deleted again so
// no unpaid orphan remains.
func (o *Orchestrator) CreateOrder(ctx context.Context, in CreateOrderInput) (*CreatedOrder, error) {
	email, orderType, err := validateOrderInput(in)
	if err != nil {
		return nil, err
	}
	if in.TestMode && !o.allowTestMode {
		return nil, domain.NewValidationError(ErrTestModeDisabled.Error(), "Remove testMode from the request")
	}

	order := &domain.Order{
		ID:            o.newID(),
		Email:         email,
		Type:          orderType,
		VideoDuration: video.NormalizeDuration(in.VideoDuration),
		TestMode:      in.TestMode,
		PaymentStatus: domain.PaymentPending,
	}
	if orderType == domain.OrderTypeAIGenerated {
		if err := o.checkReferences(ctx, in.AnalysisID, in.PromptID); err != nil {
			return nil, err
		}
		order.AnalysisID = domain.StringPtr(in.AnalysisID)
		order.PromptID = domain.StringPtr(in.PromptID)
	} else {
		order.VideoFileURL = strings.TrimSpace(in.VideoFileURL)
	}

	price := o.prices.ForCountry(in.Country)
	order.Currency = price.Currency
	if in.TestMode {
		order.PaymentStatus = domain.PaymentCompleted
		order.PaymentReference = "test_mode"
	}

	if err := o.orders.Create(ctx, order); err != nil {
		return nil, fmt.Errorf("create order: %w", err)
	}
	log := o.logger.With().Str("order_id", order.ID).Str("order_type", string(orderType)).Logger()

	created := &CreatedOrder{OrderID: order.ID, Amount: price.Amount, Currency: price.Currency, TestMode: in.TestMode}
	if in.TestMode {
		log.Info().Msg("test mode order created")
		return created, nil
	}

	if o.payments == nil {
		o.discardOrder(ctx, order.ID)
		return nil, fmt.Errorf("create checkout: %w", payment.ErrNotConfigured)
	}
	base := strings.TrimRight(o.publicBaseURL, "/")
	checkout, err := o.payments.CreateCheckout(ctx, payment.CheckoutRequest{
		OrderID:    order.ID,
		Email:      email,
		Amount:     price.Amount,
		Currency:   price.Currency,
		SuccessURL: base + "/order/success?orderId=" + url.QueryEscape(order.ID),
		CancelURL:  base + "/order/cancelled?orderId=" + url.QueryEscape(order.ID),
		Metadata: map[string]string{
			payment.MetaOrderID:    order.ID,
			payment.MetaAnalysisID: in.AnalysisID,
			payment.MetaPromptID:   in.PromptID,
			payment.MetaOrderType:  string(orderType),
		},
	})
	if err != nil {
		o.discardOrder(ctx, order.ID)
		return nil, fmt.Errorf("create checkout: %w", err)
	}
	log.Info().Str("session_id", checkout.SessionID).Int64("amount", price.Amount).Str("currency", price.Currency).Msg("checkout created")
	created.CheckoutURL = checkout.URL
	return created, nil
}

func validateOrderInput(in CreateOrderInput) (string, domain.OrderType, error) {
	email := strings.TrimSpace(in.Email)
	if email == "" {
		return "", "", domain.NewValidationError("email is required", "Enter the email address the video should be sent to")
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return "", "", domain.NewValidationError("email is invalid", "Check the email address for typos")
	}

	hasAI := strings.TrimSpace(in.AnalysisID) != "" || strings.TrimSpace(in.PromptID) != ""
	hasUpload := strings.TrimSpace(in.VideoFileURL) != ""
	switch {
	case hasAI && hasUpload:
		return "", "", domain.NewValidationError("provide either a selected prompt or a video file, not both")
	case hasUpload:
		u, err := url.Parse(strings.TrimSpace(in.VideoFileURL))
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return "", "", domain.NewValidationError("videoFileUrl must be an http(s) URL")
		}
		return email, domain.OrderTypeDirectUpload, nil
	case strings.TrimSpace(in.AnalysisID) == "" || strings.TrimSpace(in.PromptID) == "":
		return "", "", domain.NewValidationError(
			"analysisId and selectedPromptId are required",
			"Analyze a photo and pick one of the suggested prompts first",
			"Or provide videoFileUrl to order from your own clip",
		)
	}
	return email, domain.OrderTypeAIGenerated, nil
}

// checkReferences verifies the prompt belongs to the analysis and marks it
// as the selected one.
func (o *Orchestrator) checkReferences(ctx context.Context, analysisID, promptID string) error {
	prompt, err := o.analyses.GetPrompt(ctx, promptID)
	if errors.Is(err, domain.ErrPromptNotFound) || errors.Is(err, domain.ErrNotFound) || (err == nil && prompt.AnalysisID != analysisID) {
		return domain.NewValidationError("selected prompt does not belong to this analysis", "Pick one of the prompts generated for your photo")
	}
	if err != nil {
		return fmt.Errorf("load prompt %s: %w", promptID, err)
	}
	if err := o.analyses.SelectPrompt(ctx, analysisID, promptID); err != nil {
		return fmt.Errorf("select prompt %s: %w", promptID, err)
	}
	return nil
}

func (o *Orchestrator) discardOrder(ctx context.Context, orderID string) {
	if err := o.orders.Delete(context.WithoutCancel(ctx), orderID); err != nil {
		o.logger.Error().Err(err).Str("order_id", orderID).Msg("discard unpaid order failed")
	}
}
