package workflow

import (
	"time"

	"camclip/internal/domain"
	"camclip/internal/providers/video"
)

// StatusView is the read-only answer to "where is my order".
type StatusView struct {
	OrderID                   string                  `json:"orderId"`
	Status                    domain.ProcessingStatus `json:"status"`
	PaymentStatus             domain.PaymentStatus    `json:"paymentStatus"`
	Progress                  int                     `json:"progress"`
	EstimatedSecondsRemaining *int                    `json:"estimatedTimeRemaining"`
	VideoJobStatus            string                  `json:"videoJobStatus,omitempty"`
	VideoURL                  string                  `json:"videoUrl,omitempty"`
	ThumbnailURL              string                  `json:"thumbnailUrl,omitempty"`
	Error                     string                  `json:"error,omitempty"`
	RetryCount                int                     `json:"retryCount"`
	CanRetry                  bool                    `json:"canRetry"`
	CreatedAt                 time.Time               `json:"createdAt"`
	ProcessingStartedAt       *time.Time              `json:"processingStartedAt,omitempty"`
	ProcessingCompletedAt     *time.Time              `json:"processingCompletedAt,omitempty"`
}

// Project derives the status view from an order without touching the store.
func Project(order *domain.Order) StatusView {
	view := StatusView{
		OrderID:               order.ID,
		Status:                order.ProcessingStatus,
		PaymentStatus:         order.PaymentStatus,
		VideoJobStatus:        order.VideoJobStatus,
		RetryCount:            order.RetryCount,
		CanRetry:              order.RetryCheck() == nil,
		CreatedAt:             order.CreatedAt,
		ProcessingStartedAt:   order.ProcessingStartedAt,
		ProcessingCompletedAt: order.ProcessingCompletedAt,
	}

	switch order.ProcessingStatus {
	case domain.ProcessingCompleted:
		view.Progress = 100
		view.VideoURL = domain.StringValue(order.ProcessedVideoURL)
		view.ThumbnailURL = domain.StringValue(order.ThumbnailURL)
	case domain.ProcessingFailed:
		view.Error = domain.StringValue(order.ErrorMessage)
	case domain.ProcessingProcessing:
		var eta int
		switch video.ParseProviderStatus(order.VideoJobStatus) {
		case video.StatusQueued:
			view.Progress, eta = 10, 240
		case video.StatusProcessing:
			view.Progress, eta = 50, 120
		default:
			view.Progress, eta = 25, 180
		}
		view.EstimatedSecondsRemaining = &eta
	}
	return view
}
