package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image/color"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v81"
	"github.com/stripe/stripe-go/v81/webhook"

	"camclip/internal/adapter/memstore"
	"camclip/internal/domain"
	"camclip/internal/http/handlers"
	"camclip/internal/http/httpapi"
	"camclip/internal/infra"
	"camclip/internal/middleware"
	"camclip/internal/notify"
	"camclip/internal/payment"
	"camclip/internal/pricing"
	"camclip/internal/promptgen"
	"camclip/internal/providers/video"
	"camclip/internal/storage"
	"camclip/internal/workflow"
)

const webhookSecret = "whsec_handlers"

type fakeSessions struct{ params []*stripe.CheckoutSessionParams }

func (f *fakeSessions) New(p *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error) {
	f.params = append(f.params, p)
	id := fmt.Sprintf("cs_%d", len(f.params))
	return &stripe.CheckoutSession{ID: id, URL: "https://checkout.stripe.test/" + id}, nil
}

type stubGenerator struct {
	result video.Result
	calls  int
}

func (g *stubGenerator) GenerateVideo(_ context.Context, req video.Request) video.Result {
	g.calls++
	if req.OnStatus != nil && g.result.JobID != "" {
		req.OnStatus(g.result.JobID, video.StatusProcessing)
	}
	return g.result
}

func (g *stubGenerator) Download(context.Context, string) ([]byte, string, error) {
	return []byte("mp4"), "video/mp4", nil
}

type countingMailer struct{ sent []notify.Message }

func (m *countingMailer) Send(_ context.Context, msg notify.Message) error {
	m.sent = append(m.sent, msg)
	return nil
}

type server struct {
	t        *testing.T
	store    *memstore.Store
	files    *storage.FileStore
	gen      *stubGenerator
	mailer   *countingMailer
	sessions *fakeSessions
	handler  http.Handler
}

func newServer(t *testing.T, operatorSecret string) *server {
	t.Helper()
	files, err := storage.NewFileStore(storage.FileStoreOptions{
		BasePath: t.TempDir(),
		BaseURL:  "http://api.test/files",
		Secret:   "file-secret",
		TTL:      time.Hour,
	})
	require.NoError(t, err)
	engine, err := promptgen.NewEngine(promptgen.Options{Picker: func(int) int { return 0 }})
	require.NoError(t, err)

	s := &server{
		t:        t,
		store:    memstore.New(),
		files:    files,
		gen:      &stubGenerator{result: video.Result{Success: true, JobID: "task-1", VideoURL: "https://provider.test/v.mp4"}},
		mailer:   &countingMailer{},
		sessions: &fakeSessions{},
	}
	gateway := payment.NewStripeGatewayWithSessions(s.sessions, webhookSecret)
	notifier := notify.NewDispatcher(notify.Options{
		Orders:        s.store.Orders(),
		Mailer:        s.mailer,
		From:          "orders@camclip.test",
		PublicBaseURL: "https://app.test",
	})
	seq := 0
	orch := workflow.New(workflow.Options{
		Orders:        s.store.Orders(),
		Analyses:      s.store.Analyses(),
		Generator:     s.gen,
		Store:         files,
		Notifier:      notifier,
		Engine:        engine,
		Payments:      gateway,
		Pricing:       pricing.Table{USD: 1999, EUR: 1899, GBP: 1599},
		PublicBaseURL: "https://app.test",
		NewID: func() string {
			seq++
			return fmt.Sprintf("id-%d", seq)
		},
	})
	app := handlers.NewApp(handlers.Options{Workflow: orch, Payments: gateway, Files: files})
	s.handler = httpapi.NewRouter(app, httpapi.Options{
		Logger:          infra.NopLogger(),
		RateLimitPerMin: 1000,
		OperatorSecret:  operatorSecret,
	})
	return s
}

func (s *server) do(method, target string, body any, header map[string]string) *httptest.ResponseRecorder {
	s.t.Helper()
	var rdr *bytes.Reader
	switch b := body.(type) {
	case nil:
		rdr = bytes.NewReader(nil)
	case []byte:
		rdr = bytes.NewReader(b)
	default:
		raw, err := json.Marshal(b)
		require.NoError(s.t, err)
		rdr = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, target, rdr)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range header {
		req.Header.Set(k, v)
	}
	rr := httptest.NewRecorder()
	s.handler.ServeHTTP(rr, req)
	return rr
}

func (s *server) upload() map[string]any {
	s.t.Helper()
	var img bytes.Buffer
	require.NoError(s.t, imaging.Encode(&img, imaging.New(640, 480, color.NRGBA{R: 90, G: 60, B: 40, A: 255}), imaging.JPEG))

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("image", "door.jpg")
	require.NoError(s.t, err)
	_, err = part.Write(img.Bytes())
	require.NoError(s.t, err)
	require.NoError(s.t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/analysis", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rr := httptest.NewRecorder()
	s.handler.ServeHTTP(rr, req)
	require.Equal(s.t, http.StatusCreated, rr.Code, rr.Body.String())
	return decode(s.t, rr)
}

func decode(t *testing.T, rr *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &out), rr.Body.String())
	return out
}

func firstPromptID(t *testing.T, analysis map[string]any) string {
	t.Helper()
	prompts, ok := analysis["prompts"].([]any)
	require.True(t, ok)
	require.NotEmpty(t, prompts)
	return prompts[0].(map[string]any)["id"].(string)
}

func signedEvent(t *testing.T, payload string) ([]byte, string) {
	t.Helper()
	sp := webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{
		Payload:   []byte(payload),
		Secret:    webhookSecret,
		Timestamp: time.Now(),
	})
	return sp.Payload, sp.Header
}

func TestCreateOrderWithoutEmailIsRejected(t *testing.T) {
	s := newServer(t, "")
	analysis := s.upload()

	rr := s.do(http.MethodPost, "/order/create", map[string]any{
		"analysisId":       analysis["analysisId"],
		"selectedPromptId": firstPromptID(t, analysis),
	}, nil)
	require.Equal(t, http.StatusBadRequest, rr.Code)
	body := decode(t, rr)
	assert.Equal(t, "validation_failed", body["error"])
	assert.NotEmpty(t, body["suggestions"])

	_, err := s.store.Orders().GetByID(context.Background(), "id-2")
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.Empty(t, s.sessions.params)
}

func TestCheckoutWebhookCompletesOrder(t *testing.T) {
	s := newServer(t, "")
	analysis := s.upload()
	promptID := firstPromptID(t, analysis)

	rr := s.do(http.MethodPost, "/order/create", map[string]any{
		"email":            "a@b.com",
		"analysisId":       analysis["analysisId"],
		"selectedPromptId": promptID,
	}, map[string]string{"CF-IPCountry": "GB"})
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	created := decode(t, rr)
	orderID := created["orderId"].(string)
	assert.Equal(t, "https://checkout.stripe.test/cs_1", created["checkoutUrl"])
	assert.Equal(t, "GBP", created["currency"])
	require.Len(t, s.sessions.params, 1)
	assert.Equal(t, orderID, *s.sessions.params[0].ClientReferenceID)

	status := s.do(http.MethodGet, "/order/status?orderId="+orderID, nil, nil)
	require.Equal(t, http.StatusOK, status.Code)
	assert.Equal(t, "pending", decode(t, status)["status"])

	body, sig := signedEvent(t, fmt.Sprintf(`{
		"id":"evt_1","object":"event","type":"checkout.session.completed",
		"data":{"object":{"id":"cs_1","object":"checkout.session","amount_total":1599,"currency":"gbp",
			"payment_intent":"pi_1","client_reference_id":%q,
			"metadata":{"orderId":%q,"analysisId":%q,"promptId":%q,"orderType":"ai_generated"}}}
	}`, orderID, orderID, analysis["analysisId"], promptID))
	rr = s.do(http.MethodPost, "/stripe-webhook", body, map[string]string{"Stripe-Signature": sig})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.Equal(t, true, decode(t, rr)["received"])

	status = s.do(http.MethodGet, "/process-video-queue?orderId="+orderID, nil, nil)
	require.Equal(t, http.StatusOK, status.Code)
	view := decode(t, status)
	assert.Equal(t, "completed", view["status"])
	assert.Equal(t, "completed", view["paymentStatus"])
	assert.EqualValues(t, 100, view["progress"])
	videoURL, _ := view["videoUrl"].(string)
	assert.True(t, strings.HasPrefix(videoURL, "http://api.test/files/orders/"+orderID+"/video.mp4?"), videoURL)
	require.Len(t, s.mailer.sent, 1)
	assert.Equal(t, "a@b.com", s.mailer.sent[0].To)

	// A redelivered event is acknowledged without a second run.
	rr = s.do(http.MethodPost, "/stripe-webhook", body, map[string]string{"Stripe-Signature": sig})
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, 1, s.gen.calls)

	// The stored artifact is served through its signed link.
	u, err := url.Parse(videoURL)
	require.NoError(t, err)
	file := s.do(http.MethodGet, u.RequestURI(), nil, nil)
	require.Equal(t, http.StatusOK, file.Code)
	assert.Equal(t, "mp4", file.Body.String())

	tampered := s.do(http.MethodGet, strings.Replace(u.RequestURI(), "sig=", "sig=x", 1), nil, nil)
	assert.Equal(t, http.StatusForbidden, tampered.Code)
}

func TestWebhookSignatureErrors(t *testing.T) {
	s := newServer(t, "")

	rr := s.do(http.MethodPost, "/stripe-webhook", []byte(`{"id":"evt"}`), nil)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, "missing_signature", decode(t, rr)["error"])

	rr = s.do(http.MethodPost, "/stripe-webhook", []byte(`{"id":"evt"}`), map[string]string{"Stripe-Signature": "t=1,v1=deadbeef"})
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, "invalid_signature", decode(t, rr)["error"])

	body, sig := signedEvent(t, `{"id":"evt_x","object":"event","type":"customer.created","data":{"object":{"id":"cus_1"}}}`)
	rr = s.do(http.MethodPost, "/stripe-webhook", body, map[string]string{"Stripe-Signature": sig})
	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestProcessQueueAndRetry(t *testing.T) {
	const secret = "operator-secret"
	s := newServer(t, secret)
	s.gen.result = video.Result{JobID: "task-9", Error: "quota exceeded", Failure: video.FailureProvider}
	analysis := s.upload()
	promptID := firstPromptID(t, analysis)
	analysisID := analysis["analysisId"].(string)

	rr := s.do(http.MethodPost, "/order/create", map[string]any{
		"email": "a@b.com", "analysisId": analysisID, "selectedPromptId": promptID,
	}, nil)
	require.Equal(t, http.StatusCreated, rr.Code)
	orderID := decode(t, rr)["orderId"].(string)
	require.NoError(t, s.store.Orders().SetPaymentStatus(context.Background(), orderID, domain.PaymentUpdate{Status: domain.PaymentCompleted}))

	token, err := middleware.SignOperatorToken(secret, "ops", time.Hour, time.Now())
	require.NoError(t, err)
	auth := map[string]string{"Authorization": "Bearer " + token}
	process := map[string]any{"orderId": orderID, "analysisId": analysisID, "promptId": promptID}

	rr = s.do(http.MethodPost, "/process-video-queue", process, nil)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)

	rr = s.do(http.MethodPost, "/process-video-queue", map[string]any{"orderId": orderID}, auth)
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = s.do(http.MethodPost, "/process-video-queue", process, auth)
	require.Equal(t, http.StatusInternalServerError, rr.Code)
	failed := decode(t, rr)
	assert.Equal(t, "processing_failed", failed["error"])
	assert.Equal(t, "quota exceeded", failed["details"])

	status := decode(t, s.do(http.MethodGet, "/order/status?orderId="+orderID, nil, nil))
	assert.Equal(t, "failed", status["status"])
	assert.Equal(t, "quota exceeded", status["error"])
	assert.Equal(t, true, status["canRetry"])

	rr = s.do(http.MethodPost, "/process-video-queue", process, auth)
	assert.Equal(t, http.StatusConflict, rr.Code)

	rr = s.do(http.MethodPatch, "/process-video-queue", map[string]any{"orderId": orderID, "action": "cancel"}, auth)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	rr = s.do(http.MethodPatch, "/process-video-queue", map[string]any{"orderId": "missing", "action": "retry"}, auth)
	assert.Equal(t, http.StatusNotFound, rr.Code)

	s.gen.result = video.Result{Success: true, JobID: "task-10", VideoURL: "https://provider.test/v.mp4"}
	rr = s.do(http.MethodPatch, "/process-video-queue", map[string]any{"orderId": orderID, "action": "retry"}, auth)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	retried := decode(t, rr)
	assert.EqualValues(t, 1, retried["retryCount"])
	assert.Equal(t, "completed", retried["status"])

	rr = s.do(http.MethodPatch, "/process-video-queue", map[string]any{"orderId": orderID, "action": "retry"}, auth)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, "retry_not_allowed", decode(t, rr)["error"])
}

func TestAnalysisEndpoints(t *testing.T) {
	s := newServer(t, "")
	analysis := s.upload()
	analysisID := analysis["analysisId"].(string)
	promptID := firstPromptID(t, analysis)
	assert.NotNil(t, analysis["complexity"])

	rr := s.do(http.MethodGet, "/analysis/"+analysisID, nil, nil)
	assert.Equal(t, http.StatusOK, rr.Code)
	rr = s.do(http.MethodGet, "/analysis/nope", nil, nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)

	rr = s.do(http.MethodPost, "/analysis/"+analysisID+"/prompts", nil, nil)
	assert.Equal(t, http.StatusCreated, rr.Code)

	rr = s.do(http.MethodPost, "/analysis/"+analysisID+"/prompts/"+promptID+"/select", nil, nil)
	assert.Equal(t, http.StatusOK, rr.Code)

	rr = s.do(http.MethodPatch, "/prompts/"+promptID, map[string]string{"text": "short"}, nil)
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	text := "Santa tiptoes past the doorway carrying a small sack"
	for range 2 {
		rr = s.do(http.MethodPatch, "/prompts/"+promptID, map[string]string{"text": text}, nil)
		require.Equal(t, http.StatusOK, rr.Code)
	}
	prompt := decode(t, rr)["prompt"].(map[string]any)
	assert.Equal(t, text, prompt["description"])
	assert.Equal(t, true, prompt["is_user_edited"])

	req := httptest.NewRequest(http.MethodPost, "/analysis", strings.NewReader("not an image"))
	req.Header.Set("Content-Type", "text/plain")
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestOrderStatusErrors(t *testing.T) {
	s := newServer(t, "")
	assert.Equal(t, http.StatusBadRequest, s.do(http.MethodGet, "/order/status", nil, nil).Code)
	assert.Equal(t, http.StatusNotFound, s.do(http.MethodGet, "/order/status?orderId=nope", nil, nil).Code)
	assert.Equal(t, http.StatusOK, s.do(http.MethodGet, "/v1/healthz", nil, nil).Code)
}

func TestOpenAPIDocument(t *testing.T) {
	s := newServer(t, "")
	rr := s.do(http.MethodGet, "/v1/openapi.json", nil, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	doc := decode(t, rr)
	paths, ok := doc["paths"].(map[string]any)
	require.True(t, ok)
	for _, p := range []string{"/analysis", "/order/create", "/order/status", "/process-video-queue", "/stripe-webhook"} {
		assert.Contains(t, paths, p)
	}

	rr = s.do(http.MethodGet, "/v1/docs", nil, nil)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "/v1/openapi.json")
}
