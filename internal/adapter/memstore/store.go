// Package memstore is an in-process implementation of the order and analysis
// repositories. It applies the same conditional status updates as the
// PostgreSQL repositories and backs STORE_DRIVER=memory and the tests.
package memstore

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"camclip/internal/domain"
)

// Store holds orders, analyses and prompts behind a single mutex.
type Store struct {
	mu        sync.Mutex
	now       func() time.Time
	orders    map[string]domain.Order
	analyses  map[string]domain.SceneAnalysis
	prompts   map[string]domain.VideoPrompt
	sequence  int64
	promptSeq map[string]int64
}

// New returns an empty store.
func New() *Store {
	return &Store{
		now:       time.Now,
		orders:    map[string]domain.Order{},
		analyses:  map[string]domain.SceneAnalysis{},
		prompts:   map[string]domain.VideoPrompt{},
		promptSeq: map[string]int64{},
	}
}

// Orders exposes the store as a domain.OrderRepository.
func (s *Store) Orders() domain.OrderRepository { return orderRepo{s} }

// Analyses exposes the store as a domain.AnalysisRepository.
func (s *Store) Analyses() domain.AnalysisRepository { return analysisRepo{s} }

type orderRepo struct{ s *Store }

func (r orderRepo) Create(ctx context.Context, order *domain.Order) error {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()

	if order.ID == "" {
		return fmt.Errorf("order id required: %w", domain.ErrInvalidInput)
	}
	if _, exists := s.orders[order.ID]; exists {
		return fmt.Errorf("order %s already exists", order.ID)
	}
	if order.AnalysisID != nil {
		if _, ok := s.analyses[*order.AnalysisID]; !ok {
			return fmt.Errorf("analysis %s: %w", *order.AnalysisID, domain.ErrMissingReference)
		}
	}
	if order.PaymentStatus == "" {
		order.PaymentStatus = domain.PaymentPending
	}
	if order.ProcessingStatus == "" {
		order.ProcessingStatus = domain.ProcessingPending
	}
	if order.Type == "" {
		order.Type = domain.OrderTypeAIGenerated
	}
	order.CreatedAt = s.now()
	s.orders[order.ID] = cloneOrder(*order)
	return nil
}

func (r orderRepo) GetByID(ctx context.Context, orderID string) (*domain.Order, error) {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[orderID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	out := cloneOrder(o)
	return &out, nil
}

func (r orderRepo) Delete(ctx context.Context, orderID string) error {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.orders[orderID]; !ok {
		return domain.ErrNotFound
	}
	delete(s.orders, orderID)
	return nil
}

func (r orderRepo) SetPaymentStatus(ctx context.Context, orderID string, update domain.PaymentUpdate) error {
	return r.s.mutate(orderID, func(o *domain.Order) error {
		if !o.PaymentStatus.Accepts(update.Status) {
			return fmt.Errorf("order %s payment is %s: %w", o.ID, o.PaymentStatus, domain.ErrIllegalTransition)
		}
		o.PaymentStatus = update.Status
		if update.Reference != "" {
			o.PaymentReference = update.Reference
		}
		if update.Amount > 0 {
			o.AmountPaid = update.Amount
		}
		if update.Currency != "" {
			o.Currency = strings.ToUpper(update.Currency)
		}
		return nil
	})
}

func (r orderRepo) MarkProcessing(ctx context.Context, orderID string) error {
	now := r.s.now()
	return r.s.mutate(orderID, func(o *domain.Order) error {
		if err := advance(o, domain.ProcessingProcessing); err != nil {
			return err
		}
		o.ProcessingStartedAt = &now
		o.ProcessingCompletedAt = nil
		o.ErrorMessage = nil
		return nil
	})
}

func (r orderRepo) RecordJobSubmitted(ctx context.Context, orderID, jobID, jobStatus string) error {
	return r.s.mutate(orderID, func(o *domain.Order) error {
		if err := expect(o, domain.ProcessingProcessing); err != nil {
			return err
		}
		o.VideoJobID = jobID
		o.VideoJobStatus = jobStatus
		return nil
	})
}

func (r orderRepo) SetVideoJobStatus(ctx context.Context, orderID, jobStatus string) error {
	return r.s.mutate(orderID, func(o *domain.Order) error {
		o.VideoJobStatus = jobStatus
		return nil
	})
}

func (r orderRepo) Complete(ctx context.Context, orderID string, result domain.VideoResult) error {
	if result.VideoURL == "" {
		return fmt.Errorf("complete order %s: %w", orderID, domain.ErrIllegalTransition)
	}
	now := r.s.now()
	return r.s.mutate(orderID, func(o *domain.Order) error {
		if err := advance(o, domain.ProcessingCompleted); err != nil {
			return err
		}
		o.ProcessedVideoURL = domain.StringPtr(result.VideoURL)
		o.ThumbnailURL = domain.StringPtr(result.ThumbnailURL)
		o.ProcessingDurationMs = result.DurationMs
		o.ProcessingCompletedAt = &now
		o.ErrorMessage = nil
		return nil
	})
}

func (r orderRepo) Fail(ctx context.Context, orderID, message string) error {
	now := r.s.now()
	return r.s.mutate(orderID, func(o *domain.Order) error {
		if err := advance(o, domain.ProcessingFailed); err != nil {
			return err
		}
		o.ErrorMessage = &message
		o.ProcessingCompletedAt = &now
		return nil
	})
}

func (r orderRepo) ResetForRetry(ctx context.Context, orderID string, maxRetries int) (int, error) {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()

	o, ok := s.orders[orderID]
	if !ok {
		return 0, domain.ErrNotFound
	}
	if !o.ProcessingStatus.CanTransitionTo(domain.ProcessingPending) {
		return o.RetryCount, domain.ErrRetryNotAllowed
	}
	if o.RetryCount >= maxRetries {
		return o.RetryCount, domain.ErrMaxRetriesExceeded
	}
	now := s.now()
	o.ProcessingStatus = domain.ProcessingPending
	o.RetryCount++
	o.LastRetryAt = &now
	o.ErrorMessage = nil
	o.VideoJobID = ""
	o.VideoJobStatus = ""
	o.ProcessingCompletedAt = nil
	s.orders[orderID] = o
	return o.RetryCount, nil
}

func (s *Store) mutate(orderID string, fn func(o *domain.Order) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[orderID]
	if !ok {
		return domain.ErrNotFound
	}
	if err := fn(&o); err != nil {
		return err
	}
	s.orders[orderID] = o
	return nil
}

func expect(o *domain.Order, status domain.ProcessingStatus) error {
	if o.ProcessingStatus != status {
		return fmt.Errorf("order %s is %s: %w", o.ID, o.ProcessingStatus, domain.ErrIllegalTransition)
	}
	return nil
}

// advance moves o to next when the processing machine allows it.
func advance(o *domain.Order, next domain.ProcessingStatus) error {
	if !o.ProcessingStatus.CanTransitionTo(next) {
		return fmt.Errorf("order %s is %s: %w", o.ID, o.ProcessingStatus, domain.ErrIllegalTransition)
	}
	o.ProcessingStatus = next
	return nil
}

type analysisRepo struct{ s *Store }

func (r analysisRepo) CreateAnalysis(ctx context.Context, a *domain.SceneAnalysis) error {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()
	if a.ID == "" {
		return fmt.Errorf("analysis id required: %w", domain.ErrInvalidInput)
	}
	a.SuitabilityScore = domain.ClampScore(a.SuitabilityScore)
	a.CreatedAt = s.now()
	s.analyses[a.ID] = *a
	return nil
}

func (r analysisRepo) GetAnalysis(ctx context.Context, analysisID string) (*domain.SceneAnalysis, error) {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.analyses[analysisID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &a, nil
}

// DeleteAnalysis cascades to prompts and clears order references, mirroring
// the foreign keys of the SQL schema.
func (r analysisRepo) DeleteAnalysis(ctx context.Context, analysisID string) error {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.analyses[analysisID]; !ok {
		return domain.ErrNotFound
	}
	delete(s.analyses, analysisID)
	removed := map[string]struct{}{}
	for id, p := range s.prompts {
		if p.AnalysisID == analysisID {
			removed[id] = struct{}{}
			delete(s.prompts, id)
			delete(s.promptSeq, id)
		}
	}
	for id, o := range s.orders {
		if o.AnalysisID != nil && *o.AnalysisID == analysisID {
			o.AnalysisID = nil
		}
		if o.PromptID != nil {
			if _, gone := removed[*o.PromptID]; gone {
				o.PromptID = nil
			}
		}
		s.orders[id] = o
	}
	return nil
}

func (r analysisRepo) SavePrompts(ctx context.Context, analysisID string, prompts []domain.VideoPrompt) error {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.analyses[analysisID]; !ok {
		return fmt.Errorf("analysis %s: %w", analysisID, domain.ErrMissingReference)
	}
	now := s.now()
	for _, p := range prompts {
		p.AnalysisID = analysisID
		p.Confidence = domain.ClampScore(p.Confidence)
		p.CreatedAt = now
		p.IsSelected = false
		p.IsUserEdited = false
		s.sequence++
		s.promptSeq[p.ID] = s.sequence
		s.prompts[p.ID] = clonePrompt(p)
	}
	return nil
}

func (r analysisRepo) ListPrompts(ctx context.Context, analysisID string) ([]domain.VideoPrompt, error) {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.VideoPrompt
	for _, p := range s.prompts {
		if p.AnalysisID == analysisID {
			out = append(out, clonePrompt(p))
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Confidence != out[j].Confidence {
			return out[i].Confidence > out[j].Confidence
		}
		return s.promptSeq[out[i].ID] < s.promptSeq[out[j].ID]
	})
	return out, nil
}

func (r analysisRepo) GetPrompt(ctx context.Context, promptID string) (*domain.VideoPrompt, error) {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.prompts[promptID]
	if !ok {
		return nil, domain.ErrPromptNotFound
	}
	out := clonePrompt(p)
	return &out, nil
}

func (r analysisRepo) SelectPrompt(ctx context.Context, analysisID, promptID string) error {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()
	target, ok := s.prompts[promptID]
	if !ok || target.AnalysisID != analysisID {
		return domain.ErrPromptNotFound
	}
	for id, p := range s.prompts {
		if p.AnalysisID == analysisID {
			p.IsSelected = id == promptID
			s.prompts[id] = p
		}
	}
	return nil
}

func (r analysisRepo) UpdatePromptText(ctx context.Context, promptID, text string) (*domain.VideoPrompt, error) {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.prompts[promptID]
	if !ok {
		return nil, domain.ErrPromptNotFound
	}
	p.Description = text
	p.IsUserEdited = true
	s.prompts[promptID] = p
	out := clonePrompt(p)
	return &out, nil
}

func cloneOrder(o domain.Order) domain.Order {
	o.AnalysisID = cloneString(o.AnalysisID)
	o.PromptID = cloneString(o.PromptID)
	o.ProcessedVideoURL = cloneString(o.ProcessedVideoURL)
	o.ThumbnailURL = cloneString(o.ThumbnailURL)
	o.ErrorMessage = cloneString(o.ErrorMessage)
	o.ProcessingStartedAt = cloneTime(o.ProcessingStartedAt)
	o.ProcessingCompletedAt = cloneTime(o.ProcessingCompletedAt)
	o.LastRetryAt = cloneTime(o.LastRetryAt)
	return o
}

func clonePrompt(p domain.VideoPrompt) domain.VideoPrompt {
	p.Tags = append([]string(nil), p.Tags...)
	p.Elements = append([]string(nil), p.Elements...)
	return p
}

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}
