// Package workflow connects scene analysis, prompt generation, payment, video
// generation, storage and notifications into the order lifecycle.
package workflow

import (
	"errors"
	"time"

	"github.com/google/uuid"

	"camclip/internal/domain"
	"camclip/internal/infra"
	"camclip/internal/notify"
	"camclip/internal/payment"
	"camclip/internal/pricing"
	"camclip/internal/providers/video"
	"camclip/internal/scene"
	"camclip/internal/storage"
)

// DefaultSourceURLTTL bounds the signed link handed to the video provider.
const DefaultSourceURLTTL = time.Hour

// ErrTestModeDisabled is returned for test-mode orders when the deployment
// does not allow them.
var ErrTestModeDisabled = errors.New("test mode is disabled")

// PromptEngine produces ranked prompt candidates for a scene.
type PromptEngine interface {
	Generate(scene domain.SceneAnalysis) ([]domain.VideoPrompt, error)
	GenerateMore(scene domain.SceneAnalysis, previous []domain.VideoPrompt) ([]domain.VideoPrompt, error)
}

// ProcessingError is returned when an order reached processing and then
// failed. Message is the text stored on the order.
type ProcessingError struct {
	OrderID string
	Message string
	Err     error
}

func (e *ProcessingError) Error() string {
	return "order " + e.OrderID + " failed: " + e.Message
}

func (e *ProcessingError) Unwrap() error { return e.Err }

// Options wires the orchestrator's collaborators.
type Options struct {
	Orders    domain.OrderRepository
	Analyses  domain.AnalysisRepository
	Generator video.Generator
	Store     storage.ObjectStore
	Notifier  notify.Notifier
	Analyzer  scene.Analyzer
	Engine    PromptEngine
	Payments  payment.Gateway
	Pricing   pricing.Table

	PublicBaseURL string
	AllowTestMode bool
	SourceURLTTL  time.Duration

	Logger *infra.Logger
	Now    func() time.Time
	NewID  func() string
}

// Orchestrator drives orders from creation to a notified terminal state.
// Every call runs synchronously in the caller's goroutine.
type Orchestrator struct {
	orders    domain.OrderRepository
	analyses  domain.AnalysisRepository
	generator video.Generator
	store     storage.ObjectStore
	notifier  notify.Notifier
	analyzer  scene.Analyzer
	engine    PromptEngine
	payments  payment.Gateway
	prices    pricing.Table

	publicBaseURL string
	allowTestMode bool
	sourceURLTTL  time.Duration

	logger infra.Logger
	now    func() time.Time
	newID  func() string
}

// New builds an Orchestrator. A nil Analyzer falls back to the static
// analyzer.
func New(opts Options) *Orchestrator {
	logger := infra.NopLogger()
	if opts.Logger != nil {
		logger = *opts.Logger
	}
	analyzer := opts.Analyzer
	if analyzer == nil {
		analyzer = scene.StaticAnalyzer{}
	}
	ttl := opts.SourceURLTTL
	if ttl <= 0 {
		ttl = DefaultSourceURLTTL
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	newID := opts.NewID
	if newID == nil {
		newID = uuid.NewString
	}
	return &Orchestrator{
		orders:        opts.Orders,
		analyses:      opts.Analyses,
		generator:     opts.Generator,
		store:         opts.Store,
		notifier:      opts.Notifier,
		analyzer:      analyzer,
		engine:        opts.Engine,
		payments:      opts.Payments,
		prices:        opts.Pricing,
		publicBaseURL: opts.PublicBaseURL,
		allowTestMode: opts.AllowTestMode,
		sourceURLTTL:  ttl,
		logger:        logger.With().Str("component", "workflow").Logger(),
		now:           now,
		newID:         newID,
	}
}

// Orders exposes the order repository for read paths.
func (o *Orchestrator) Orders() domain.OrderRepository { return o.orders }
