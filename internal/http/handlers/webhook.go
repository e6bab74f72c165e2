package handlers

import (
	"context"
	"errors"
	"io"
	"net/http"

	"camclip/internal/payment"
)

const maxWebhookBytes = 1 << 16

// StripeWebhook handles POST /stripe-webhook. Signature problems are 400s;
// every verified event is acknowledged with 200 even when processing the
// order fails, since the failure is already recorded on the order.
func (a *App) StripeWebhook(w http.ResponseWriter, r *http.Request) {
	if a.Payments == nil {
		a.error(w, http.StatusServiceUnavailable, "unavailable", "payments are not configured")
		return
	}
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBytes))
	if err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "could not read body")
		return
	}
	evt, err := a.Payments.VerifyWebhook(body, r.Header.Get("Stripe-Signature"))
	if err != nil {
		if errors.Is(err, payment.ErrMissingSignature) {
			a.error(w, http.StatusBadRequest, "missing_signature", "Stripe-Signature header is required")
			return
		}
		a.Logger.Warn().Err(err).Msg("webhook verification failed")
		a.error(w, http.StatusBadRequest, "invalid_signature", "webhook signature verification failed")
		return
	}

	log := a.Logger.With().Str("event_id", evt.ID).Str("event_type", evt.RawType).Str("order_id", evt.OrderID).Logger()
	ctx := context.WithoutCancel(r.Context())
	switch evt.Kind {
	case payment.EventCheckoutCompleted:
		if _, err := a.Workflow.HandleCheckoutCompleted(ctx, evt); err != nil {
			log.Error().Err(err).Msg("checkout processing failed")
		}
	case payment.EventPaymentFailed:
		if err := a.Workflow.HandlePaymentFailed(ctx, evt); err != nil {
			log.Error().Err(err).Msg("record payment failure failed")
		}
	case payment.EventPaymentSucceeded:
		log.Info().Int64("amount", evt.Amount).Msg("payment succeeded")
	default:
		log.Info().Msg("ignoring webhook event")
	}
	a.json(w, http.StatusOK, map[string]bool{"received": true})
}
