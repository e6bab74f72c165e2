package workflow

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image/color"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/require"

	"camclip/internal/adapter/memstore"
	"camclip/internal/domain"
	"camclip/internal/notify"
	"camclip/internal/payment"
	"camclip/internal/pricing"
	"camclip/internal/promptgen"
	"camclip/internal/providers/video"
	"camclip/internal/storage"
)

type memObjects struct {
	mu         sync.Mutex
	objects    map[string][]byte
	failPrefix string
	removed    []string
}

func newMemObjects() *memObjects {
	return &memObjects{objects: map[string][]byte{}}
}

func (m *memObjects) Put(_ context.Context, key string, data []byte, _ string) (storage.Object, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failPrefix != "" && strings.HasPrefix(key, m.failPrefix) {
		return storage.Object{}, errors.New("bucket unavailable")
	}
	m.objects[key] = append([]byte(nil), data...)
	return storage.Object{Key: key, URL: "https://files.test/" + key}, nil
}

func (m *memObjects) SignedURL(_ context.Context, key string, _ time.Duration) (string, error) {
	return "https://files.test/" + key + "?sig=1", nil
}

func (m *memObjects) Remove(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objects, key)
	m.removed = append(m.removed, key)
	return nil
}

func (m *memObjects) has(key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.objects[key]
	return ok
}

func (m *memObjects) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.objects)
}

type fakeGenerator struct {
	mu          sync.Mutex
	results     []video.Result
	statuses    []video.Status
	requests    []video.Request
	onGenerate  func(req video.Request)
	downloadErr error
	downloads   []string
}

func (g *fakeGenerator) GenerateVideo(_ context.Context, req video.Request) video.Result {
	g.mu.Lock()
	g.requests = append(g.requests, req)
	res := g.results[0]
	if len(g.results) > 1 {
		g.results = g.results[1:]
	}
	statuses := g.statuses
	hook := g.onGenerate
	g.mu.Unlock()

	if hook != nil {
		hook(req)
	}
	for _, s := range statuses {
		if req.OnStatus != nil {
			req.OnStatus(res.JobID, s)
		}
	}
	return res
}

func (g *fakeGenerator) Download(_ context.Context, url string) ([]byte, string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.downloads = append(g.downloads, url)
	if g.downloadErr != nil {
		return nil, "", g.downloadErr
	}
	return []byte("mp4:" + url), "video/mp4", nil
}

func (g *fakeGenerator) calls() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.requests)
}

type recordingNotifier struct {
	mu       sync.Mutex
	success  []string
	failure  []string
	messages []string
	fail     bool
}

func (n *recordingNotifier) SendSuccess(_ context.Context, orderID string) notify.Result {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.success = append(n.success, orderID)
	if n.fail {
		return notify.Result{Error: "smtp down"}
	}
	return notify.Result{Success: true}
}

func (n *recordingNotifier) SendFailure(_ context.Context, orderID, msg string) notify.Result {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.failure = append(n.failure, orderID)
	n.messages = append(n.messages, msg)
	if n.fail {
		return notify.Result{Error: "smtp down"}
	}
	return notify.Result{Success: true}
}

type fakeGateway struct {
	requests []payment.CheckoutRequest
	err      error
}

func (g *fakeGateway) CreateCheckout(_ context.Context, req payment.CheckoutRequest) (payment.Checkout, error) {
	g.requests = append(g.requests, req)
	if g.err != nil {
		return payment.Checkout{}, g.err
	}
	return payment.Checkout{SessionID: "cs_" + req.OrderID, URL: "https://checkout.test/" + req.OrderID}, nil
}

func (g *fakeGateway) VerifyWebhook([]byte, string) (payment.Event, error) {
	return payment.Event{}, errors.New("not used")
}

type analyzerFunc func() domain.SceneAnalysis

func (f analyzerFunc) Analyze(context.Context, string, string) domain.SceneAnalysis { return f() }

type failingEngine struct{}

func (failingEngine) Generate(domain.SceneAnalysis) ([]domain.VideoPrompt, error) {
	return nil, domain.ErrNoPrompts
}

func (failingEngine) GenerateMore(domain.SceneAnalysis, []domain.VideoPrompt) ([]domain.VideoPrompt, error) {
	return nil, domain.ErrNoPrompts
}

// tracingOrders records the processing status right after each transition.
type tracingOrders struct {
	domain.OrderRepository
	mu     sync.Mutex
	events []string
}

func (t *tracingOrders) add(ctx context.Context, label, orderID string) {
	o, err := t.OrderRepository.GetByID(ctx, orderID)
	if err != nil {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.events = append(t.events, fmt.Sprintf("%s:%s", label, o.ProcessingStatus))
}

func (t *tracingOrders) ResetForRetry(ctx context.Context, orderID string, maxRetries int) (int, error) {
	n, err := t.OrderRepository.ResetForRetry(ctx, orderID, maxRetries)
	if err == nil {
		t.add(ctx, "reset", orderID)
	}
	return n, err
}

func (t *tracingOrders) MarkProcessing(ctx context.Context, orderID string) error {
	err := t.OrderRepository.MarkProcessing(ctx, orderID)
	if err == nil {
		t.add(ctx, "start", orderID)
	}
	return err
}

func (t *tracingOrders) trace() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]string(nil), t.events...)
}

func frontDoorScene() domain.SceneAnalysis {
	return domain.SceneAnalysis{
		Doors: []domain.Door{{Type: "front", Position: "center", Material: "wood", Color: "red"}},
		Layout: domain.Layout{
			EntryType:  "hallway",
			Lighting:   domain.LightingBright,
			Visibility: domain.VisibilityGood,
		},
		SuitabilityScore: 85,
	}
}

func testJPEG(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, imaging.Encode(&buf, imaging.New(640, 480, color.NRGBA{R: 40, G: 40, B: 60, A: 255}), imaging.JPEG))
	return buf.Bytes()
}

type harness struct {
	store    *memstore.Store
	orders   *tracingOrders
	objects  *memObjects
	gen      *fakeGenerator
	notifier *recordingNotifier
	gateway  *fakeGateway
	orch     *Orchestrator
}

func newHarness(t *testing.T, mutate func(*Options)) *harness {
	t.Helper()
	engine, err := promptgen.NewEngine(promptgen.Options{Picker: func(int) int { return 0 }})
	require.NoError(t, err)

	store := memstore.New()
	h := &harness{
		store:    store,
		orders:   &tracingOrders{OrderRepository: store.Orders()},
		objects:  newMemObjects(),
		gen:      &fakeGenerator{results: []video.Result{{Success: true, JobID: "task-1", VideoURL: "https://provider.test/v.mp4"}}},
		notifier: &recordingNotifier{},
		gateway:  &fakeGateway{},
	}
	seq := 0
	opts := Options{
		Orders:        h.orders,
		Analyses:      store.Analyses(),
		Generator:     h.gen,
		Store:         h.objects,
		Notifier:      h.notifier,
		Analyzer:      analyzerFunc(frontDoorScene),
		Engine:        engine,
		Payments:      h.gateway,
		Pricing:       pricing.Table{USD: 1999, EUR: 1899, GBP: 1599},
		PublicBaseURL: "https://app.test",
		NewID: func() string {
			seq++
			return fmt.Sprintf("id-%d", seq)
		},
	}
	if mutate != nil {
		mutate(&opts)
	}
	h.orch = New(opts)
	return h
}

// paidAIOrder runs the pre-payment flow and returns a paid order for the top
// prompt.
func (h *harness) paidAIOrder(t *testing.T) (*AnalysisResult, string) {
	t.Helper()
	ctx := context.Background()
	analysis, err := h.orch.AnalyzeUpload(ctx, testJPEG(t), "image/jpeg")
	require.NoError(t, err)
	created, err := h.orch.CreateOrder(ctx, CreateOrderInput{
		Email:      "a@b.com",
		AnalysisID: analysis.Analysis.ID,
		PromptID:   analysis.Prompts[0].ID,
	})
	require.NoError(t, err)
	require.NoError(t, h.orders.SetPaymentStatus(ctx, created.OrderID, domain.PaymentUpdate{Status: domain.PaymentCompleted}))
	return analysis, created.OrderID
}
