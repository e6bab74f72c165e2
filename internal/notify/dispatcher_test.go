package notify

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"camclip/internal/adapter/memstore"
	"camclip/internal/domain"
)

type recordingMailer struct {
	sent []Message
	err  error
}

func (m *recordingMailer) Send(_ context.Context, msg Message) error {
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, msg)
	return nil
}

func seedOrder(t *testing.T, store *memstore.Store, email string) *domain.Order {
	t.Helper()
	order := &domain.Order{
		ID:               "order-1",
		Email:            email,
		Type:             domain.OrderTypeAIGenerated,
		PaymentStatus:    domain.PaymentCompleted,
		ProcessingStatus: domain.ProcessingPending,
	}
	require.NoError(t, store.Orders().Create(context.Background(), order))
	return order
}

func TestSendSuccessRendersArtifactLinks(t *testing.T) {
	store := memstore.New()
	seedOrder(t, store, "a@b.com")
	ctx := context.Background()
	orders := store.Orders()
	require.NoError(t, orders.MarkProcessing(ctx, "order-1"))
	require.NoError(t, orders.Complete(ctx, "order-1", domain.VideoResult{VideoURL: "https://cdn.test/v.mp4?a=1&b=2", ThumbnailURL: "https://cdn.test/t.jpg"}))

	mailer := &recordingMailer{}
	d := NewDispatcher(Options{Orders: orders, Mailer: mailer, From: "shop@test", PublicBaseURL: "https://app.test/"})

	res := d.SendSuccess(ctx, "order-1")
	require.True(t, res.Success, res.Error)
	require.Len(t, mailer.sent, 1)
	msg := mailer.sent[0]
	assert.Equal(t, "a@b.com", msg.To)
	assert.Equal(t, "shop@test", msg.From)
	assert.Contains(t, msg.Subject, "ready")
	assert.Contains(t, msg.HTML, "https://cdn.test/v.mp4?a=1&amp;b=2")
	assert.Contains(t, msg.HTML, "https://app.test/order/status?orderId=order-1")
}

func TestSendFailureEscapesMessage(t *testing.T) {
	store := memstore.New()
	seedOrder(t, store, "a@b.com")
	mailer := &recordingMailer{}
	d := NewDispatcher(Options{Orders: store.Orders(), Mailer: mailer})

	res := d.SendFailure(context.Background(), "order-1", "<b>quota exceeded</b>")
	require.True(t, res.Success)
	require.Len(t, mailer.sent, 1)
	assert.Contains(t, mailer.sent[0].HTML, "&lt;b&gt;quota exceeded&lt;/b&gt;")
	assert.NotContains(t, mailer.sent[0].HTML, "order/status")
}

func TestDispatcherReportsErrorsInsteadOfFailing(t *testing.T) {
	store := memstore.New()
	d := NewDispatcher(Options{Orders: store.Orders(), Mailer: &recordingMailer{}})
	res := d.SendSuccess(context.Background(), "missing")
	assert.False(t, res.Success)
	assert.NotEmpty(t, res.Error)

	seedOrder(t, store, "a@b.com")
	d = NewDispatcher(Options{Orders: store.Orders(), Mailer: &recordingMailer{err: errors.New("smtp down")}})
	res = d.SendFailure(context.Background(), "order-1", "boom")
	assert.False(t, res.Success)
	assert.Contains(t, res.Error, "smtp down")
}

func TestDispatcherRequiresEmail(t *testing.T) {
	store := memstore.New()
	seedOrder(t, store, "")
	res := NewDispatcher(Options{Orders: store.Orders()}).SendSuccess(context.Background(), "order-1")
	assert.False(t, res.Success)
	assert.Contains(t, res.Error, "email")
}

func TestLogMailerNeverFails(t *testing.T) {
	store := memstore.New()
	seedOrder(t, store, "a@b.com")
	res := NewDispatcher(Options{Orders: store.Orders()}).SendFailure(context.Background(), "order-1", "")
	assert.True(t, res.Success)
}
