package domain

import "time"

// PaymentStatus enumerates payment lifecycle states.
type PaymentStatus string

const (
	PaymentPending   PaymentStatus = "pending"
	PaymentCompleted PaymentStatus = "completed"
	PaymentFailed    PaymentStatus = "failed"
	PaymentRefunded  PaymentStatus = "refunded"
)

// ProcessingStatus enumerates order processing states.
type ProcessingStatus string

const (
	ProcessingPending    ProcessingStatus = "pending"
	ProcessingProcessing ProcessingStatus = "processing"
	ProcessingCompleted  ProcessingStatus = "completed"
	ProcessingFailed     ProcessingStatus = "failed"
)

// CanTransitionTo reports whether next is a legal successor of s:
// pending->processing, processing->{completed,failed}, failed->pending.
func (s ProcessingStatus) CanTransitionTo(next ProcessingStatus) bool {
	switch s {
	case ProcessingPending:
		return next == ProcessingProcessing
	case ProcessingProcessing:
		return next == ProcessingCompleted || next == ProcessingFailed
	case ProcessingFailed:
		return next == ProcessingPending
	}
	return false
}

// Accepts reports whether a payment update to next may replace s. A payment
// that completed is never downgraded to failed.
func (s PaymentStatus) Accepts(next PaymentStatus) bool {
	return !(s == PaymentCompleted && next == PaymentFailed)
}

// OrderType distinguishes AI-generated orders from direct uploads.
type OrderType string

const (
	OrderTypeAIGenerated  OrderType = "ai_generated"
	OrderTypeDirectUpload OrderType = "direct_upload"
)

// MaxRetries bounds manual retries per order.
const MaxRetries = 3

// Order is the unit of commerce and workflow execution.
type Order struct {
	ID                    string
	Email                 string
	Type                  OrderType
	AnalysisID            *string
	PromptID              *string
	VideoFileURL          string
	VideoDuration         string
	PaymentStatus         PaymentStatus
	ProcessingStatus      ProcessingStatus
	AmountPaid            int64
	Currency              string
	PaymentReference      string
	VideoJobID            string
	VideoJobStatus        string
	ProcessedVideoURL     *string
	ThumbnailURL          *string
	ErrorMessage          *string
	RetryCount            int
	ProcessingDurationMs  int64
	TestMode              bool
	CreatedAt             time.Time
	ProcessingStartedAt   *time.Time
	ProcessingCompletedAt *time.Time
	LastRetryAt           *time.Time
}

// VideoResult is recorded when an order completes.
type VideoResult struct {
	VideoURL     string
	ThumbnailURL string
	DurationMs   int64
}

// PaymentUpdate carries the fields written when payment status changes.
type PaymentUpdate struct {
	Status    PaymentStatus
	Reference string
	Amount    int64
	Currency  string
}

// RetryCheck explains why a retry would be rejected, or returns nil when the
// order may be retried.
func (o Order) RetryCheck() error {
	if o.ProcessingStatus != ProcessingFailed {
		return ErrRetryNotAllowed
	}
	if o.RetryCount >= MaxRetries {
		return ErrMaxRetriesExceeded
	}
	return nil
}

// StringValue dereferences an optional string.
func StringValue(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// StringPtr returns nil for empty strings.
func StringPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
