package workflow

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"camclip/internal/domain"
	"camclip/internal/payment"
)

func TestCreateOrderValidation(t *testing.T) {
	cases := []struct {
		name string
		in   CreateOrderInput
	}{
		{"missing email", CreateOrderInput{AnalysisID: "a", PromptID: "p"}},
		{"bad email", CreateOrderInput{Email: "not-an-email", AnalysisID: "a", PromptID: "p"}},
		{"no source", CreateOrderInput{Email: "a@b.com"}},
		{"prompt without analysis", CreateOrderInput{Email: "a@b.com", PromptID: "p"}},
		{"both sources", CreateOrderInput{Email: "a@b.com", AnalysisID: "a", PromptID: "p", VideoFileURL: "https://x.test/v.mp4"}},
		{"bad video url", CreateOrderInput{Email: "a@b.com", VideoFileURL: "ftp://x.test/v.mp4"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h := newHarness(t, nil)
			_, err := h.orch.CreateOrder(context.Background(), tc.in)
			require.Error(t, err)
			var verr *domain.ValidationError
			assert.True(t, errors.As(err, &verr), "got %v", err)
			assert.Empty(t, h.gateway.requests)

			for i := 1; i <= 3; i++ {
				_, err := h.orders.GetByID(context.Background(), fmt.Sprintf("id-%d", i))
				assert.ErrorIs(t, err, domain.ErrNotFound)
			}
		})
	}
}

func TestCreateOrderRejectsForeignPrompt(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()
	first, err := h.orch.AnalyzeUpload(ctx, testJPEG(t), "image/jpeg")
	require.NoError(t, err)
	second, err := h.orch.AnalyzeUpload(ctx, testJPEG(t), "image/jpeg")
	require.NoError(t, err)

	_, err = h.orch.CreateOrder(ctx, CreateOrderInput{
		Email:      "a@b.com",
		AnalysisID: first.Analysis.ID,
		PromptID:   second.Prompts[0].ID,
	})
	var verr *domain.ValidationError
	require.True(t, errors.As(err, &verr))

	_, err = h.orch.CreateOrder(ctx, CreateOrderInput{Email: "a@b.com", AnalysisID: first.Analysis.ID, PromptID: "nope"})
	require.True(t, errors.As(err, &verr))
	assert.Empty(t, h.gateway.requests)
}

func TestCreateOrderCheckoutFailureDiscardsOrder(t *testing.T) {
	h := newHarness(t, nil)
	h.gateway.err = errors.New("stripe unavailable")
	ctx := context.Background()
	analysis, err := h.orch.AnalyzeUpload(ctx, testJPEG(t), "image/jpeg")
	require.NoError(t, err)

	_, err = h.orch.CreateOrder(ctx, CreateOrderInput{Email: "a@b.com", AnalysisID: analysis.Analysis.ID, PromptID: analysis.Prompts[0].ID})
	require.Error(t, err)
	require.Len(t, h.gateway.requests, 1)

	_, err = h.orders.GetByID(ctx, h.gateway.requests[0].OrderID)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestCreateOrderWithoutGateway(t *testing.T) {
	h := newHarness(t, func(o *Options) { o.Payments = nil })
	ctx := context.Background()
	_, err := h.orch.CreateOrder(ctx, CreateOrderInput{Email: "a@b.com", VideoFileURL: "https://x.test/v.mp4"})
	assert.ErrorIs(t, err, payment.ErrNotConfigured)
}

func TestCreateOrderPricesByCountry(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()

	created, err := h.orch.CreateOrder(ctx, CreateOrderInput{Email: "a@b.com", VideoFileURL: "https://x.test/v.mp4", Country: "de"})
	require.NoError(t, err)
	assert.Equal(t, int64(1899), created.Amount)
	assert.Equal(t, "EUR", created.Currency)

	req := h.gateway.requests[0]
	assert.Equal(t, "https://app.test/order/success?orderId="+created.OrderID, req.SuccessURL)
	assert.Equal(t, "https://app.test/order/cancelled?orderId="+created.OrderID, req.CancelURL)
	assert.Equal(t, string(domain.OrderTypeDirectUpload), req.Metadata[payment.MetaOrderType])

	order, err := h.orders.GetByID(ctx, created.OrderID)
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentPending, order.PaymentStatus)
	assert.Equal(t, domain.ProcessingPending, order.ProcessingStatus)
	assert.Equal(t, "EUR", order.Currency)
}

func TestCreateOrderTestMode(t *testing.T) {
	t.Run("disabled", func(t *testing.T) {
		h := newHarness(t, nil)
		_, err := h.orch.CreateOrder(context.Background(), CreateOrderInput{Email: "a@b.com", VideoFileURL: "https://x.test/v.mp4", TestMode: true})
		var verr *domain.ValidationError
		require.True(t, errors.As(err, &verr))
	})
	t.Run("enabled", func(t *testing.T) {
		h := newHarness(t, func(o *Options) { o.AllowTestMode = true })
		ctx := context.Background()
		analysis, err := h.orch.AnalyzeUpload(ctx, testJPEG(t), "image/jpeg")
		require.NoError(t, err)

		created, err := h.orch.CreateOrder(ctx, CreateOrderInput{
			Email:      "a@b.com",
			AnalysisID: analysis.Analysis.ID,
			PromptID:   analysis.Prompts[1].ID,
			TestMode:   true,
		})
		require.NoError(t, err)
		assert.True(t, created.TestMode)
		assert.Empty(t, created.CheckoutURL)
		assert.Empty(t, h.gateway.requests)

		order, err := h.orders.GetByID(ctx, created.OrderID)
		require.NoError(t, err)
		assert.Equal(t, domain.PaymentCompleted, order.PaymentStatus)
		assert.Equal(t, "test_mode", order.PaymentReference)
		assert.Equal(t, analysis.Prompts[1].ID, domain.StringValue(order.PromptID))

		_, err = h.orch.ProcessAIOrder(ctx, ProcessRequest{OrderID: created.OrderID})
		require.NoError(t, err)
	})
}
