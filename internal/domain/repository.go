package domain

import "context"

// OrderRepository exposes the narrow mutation surface of the order store.
// Status-changing operations are conditional on the expected prior status and
// return ErrIllegalTransition when the order is not in that state.
type OrderRepository interface {
	Create(ctx context.Context, order *Order) error
	GetByID(ctx context.Context, orderID string) (*Order, error)
	Delete(ctx context.Context, orderID string) error
	SetPaymentStatus(ctx context.Context, orderID string, update PaymentUpdate) error
	MarkProcessing(ctx context.Context, orderID string) error
	RecordJobSubmitted(ctx context.Context, orderID, jobID, jobStatus string) error
	SetVideoJobStatus(ctx context.Context, orderID, jobStatus string) error
	Complete(ctx context.Context, orderID string, result VideoResult) error
	Fail(ctx context.Context, orderID, message string) error
	// ResetForRetry moves a failed order back to pending, increments the retry
	// counter and returns the new count. Orders that are not failed yield
	// ErrRetryNotAllowed; orders at maxRetries yield ErrMaxRetriesExceeded.
	ResetForRetry(ctx context.Context, orderID string, maxRetries int) (int, error)
}

// AnalysisRepository persists scene analyses and their prompts.
type AnalysisRepository interface {
	CreateAnalysis(ctx context.Context, analysis *SceneAnalysis) error
	GetAnalysis(ctx context.Context, analysisID string) (*SceneAnalysis, error)
	DeleteAnalysis(ctx context.Context, analysisID string) error
	SavePrompts(ctx context.Context, analysisID string, prompts []VideoPrompt) error
	ListPrompts(ctx context.Context, analysisID string) ([]VideoPrompt, error)
	GetPrompt(ctx context.Context, promptID string) (*VideoPrompt, error)
	SelectPrompt(ctx context.Context, analysisID, promptID string) error
	UpdatePromptText(ctx context.Context, promptID, text string) (*VideoPrompt, error)
}
