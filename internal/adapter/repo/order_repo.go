package repo

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"camclip/internal/domain"
	"camclip/internal/infra"
	"camclip/internal/sqlinline"
)

// OrderRepositoryPG implements domain.OrderRepository on top of the marker
// tagged queries in sqlinline. Every status change is a conditional update on
// the expected prior status.
type OrderRepositoryPG struct {
	sql infra.SQLExecutor
}

// NewOrderRepository creates a new order repository backed by PostgreSQL.
func NewOrderRepository(sql infra.SQLExecutor) *OrderRepositoryPG {
	return &OrderRepositoryPG{sql: sql}
}

// Create inserts a new order record.
func (r *OrderRepositoryPG) Create(ctx context.Context, order *domain.Order) error {
	if order.PaymentStatus == "" {
		order.PaymentStatus = domain.PaymentPending
	}
	if order.ProcessingStatus == "" {
		order.ProcessingStatus = domain.ProcessingPending
	}
	if order.Type == "" {
		order.Type = domain.OrderTypeAIGenerated
	}
	row := r.sql.QueryRow(ctx, sqlinline.QInsertOrder,
		order.ID,
		order.Email,
		string(order.Type),
		order.AnalysisID,
		order.PromptID,
		order.VideoFileURL,
		order.VideoDuration,
		string(order.PaymentStatus),
		string(order.ProcessingStatus),
		order.AmountPaid,
		order.Currency,
		order.TestMode,
	)
	if err := row.Scan(&order.CreatedAt); err != nil {
		return fmt.Errorf("insert order: %w", err)
	}
	return nil
}

// GetByID fetches an order by its identifier.
func (r *OrderRepositoryPG) GetByID(ctx context.Context, orderID string) (*domain.Order, error) {
	orderID, err := canonicalID(orderID, domain.ErrNotFound)
	if err != nil {
		return nil, err
	}
	order, err := scanOrder(r.sql.QueryRow(ctx, sqlinline.QSelectOrderByID, orderID))
	if err != nil {
		if infra.IsNoRows(err) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("select order: %w", err)
	}
	return order, nil
}

// Delete removes an order. Only used to clean up orders whose checkout could
// not be created.
func (r *OrderRepositoryPG) Delete(ctx context.Context, orderID string) error {
	orderID, err := canonicalID(orderID, domain.ErrNotFound)
	if err != nil {
		return err
	}
	tag, err := r.sql.Exec(ctx, sqlinline.QDeleteOrder, orderID)
	if err != nil {
		return fmt.Errorf("delete order: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// SetPaymentStatus records a payment update. A failure never replaces a
// completed payment; that case reports ErrIllegalTransition.
func (r *OrderRepositoryPG) SetPaymentStatus(ctx context.Context, orderID string, update domain.PaymentUpdate) error {
	orderID, err := canonicalID(orderID, domain.ErrNotFound)
	if err != nil {
		return err
	}
	tag, err := r.sql.Exec(ctx, sqlinline.QUpdateOrderPayment, orderID, string(update.Status), update.Reference, update.Amount, update.Currency)
	if err != nil {
		return fmt.Errorf("update order payment: %w", err)
	}
	if tag.RowsAffected() > 0 {
		return nil
	}
	if _, _, err := r.processingState(ctx, orderID); err != nil {
		return err
	}
	return fmt.Errorf("order %s payment is completed: %w", orderID, domain.ErrIllegalTransition)
}

// MarkProcessing moves a pending order to processing.
func (r *OrderRepositoryPG) MarkProcessing(ctx context.Context, orderID string) error {
	return r.transition(ctx, orderID, sqlinline.QMarkOrderProcessing, orderID)
}

func (r *OrderRepositoryPG) RecordJobSubmitted(ctx context.Context, orderID, jobID, jobStatus string) error {
	return r.transition(ctx, orderID, sqlinline.QRecordOrderJob, orderID, jobID, jobStatus)
}

func (r *OrderRepositoryPG) SetVideoJobStatus(ctx context.Context, orderID, jobStatus string) error {
	orderID, err := canonicalID(orderID, domain.ErrNotFound)
	if err != nil {
		return err
	}
	tag, err := r.sql.Exec(ctx, sqlinline.QUpdateOrderJobStatus, orderID, jobStatus)
	if err != nil {
		return fmt.Errorf("update video job status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// Complete records the artifact and moves a processing order to completed.
// An empty video URL is rejected so completed orders always carry one.
func (r *OrderRepositoryPG) Complete(ctx context.Context, orderID string, result domain.VideoResult) error {
	if result.VideoURL == "" {
		return fmt.Errorf("complete order %s: %w", orderID, domain.ErrIllegalTransition)
	}
	return r.transition(ctx, orderID, sqlinline.QCompleteOrder, orderID, result.VideoURL, result.ThumbnailURL, result.DurationMs)
}

func (r *OrderRepositoryPG) Fail(ctx context.Context, orderID, message string) error {
	return r.transition(ctx, orderID, sqlinline.QFailOrder, orderID, message)
}

func (r *OrderRepositoryPG) ResetForRetry(ctx context.Context, orderID string, maxRetries int) (int, error) {
	orderID, err := canonicalID(orderID, domain.ErrNotFound)
	if err != nil {
		return 0, err
	}
	var count int
	err = r.sql.QueryRow(ctx, sqlinline.QResetOrderForRetry, orderID, maxRetries).Scan(&count)
	if err == nil {
		return count, nil
	}
	if !infra.IsNoRows(err) {
		return 0, fmt.Errorf("reset order for retry: %w", err)
	}

	status, retries, err := r.processingState(ctx, orderID)
	if err != nil {
		return 0, err
	}
	if status != domain.ProcessingFailed {
		return retries, domain.ErrRetryNotAllowed
	}
	return retries, domain.ErrMaxRetriesExceeded
}

// transition runs a conditional update and turns zero affected rows into
// ErrNotFound or ErrIllegalTransition.
func (r *OrderRepositoryPG) transition(ctx context.Context, orderID, query string, args ...any) error {
	orderID, err := canonicalID(orderID, domain.ErrNotFound)
	if err != nil {
		return err
	}
	args[0] = orderID
	tag, err := r.sql.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update order %s: %w", orderID, err)
	}
	if tag.RowsAffected() > 0 {
		return nil
	}
	status, _, err := r.processingState(ctx, orderID)
	if err != nil {
		return err
	}
	return fmt.Errorf("order %s is %s: %w", orderID, status, domain.ErrIllegalTransition)
}

func (r *OrderRepositoryPG) processingState(ctx context.Context, orderID string) (domain.ProcessingStatus, int, error) {
	var (
		status  string
		retries int
	)
	if err := r.sql.QueryRow(ctx, sqlinline.QSelectOrderProcessingState, orderID).Scan(&status, &retries); err != nil {
		if infra.IsNoRows(err) {
			return "", 0, domain.ErrNotFound
		}
		return "", 0, fmt.Errorf("select order state: %w", err)
	}
	return domain.ProcessingStatus(status), retries, nil
}

func scanOrder(row pgx.Row) (*domain.Order, error) {
	var o domain.Order
	var orderType, payment, processing string
	if err := row.Scan(
		&o.ID,
		&o.Email,
		&orderType,
		&o.AnalysisID,
		&o.PromptID,
		&o.VideoFileURL,
		&o.VideoDuration,
		&payment,
		&processing,
		&o.AmountPaid,
		&o.Currency,
		&o.PaymentReference,
		&o.VideoJobID,
		&o.VideoJobStatus,
		&o.ProcessedVideoURL,
		&o.ThumbnailURL,
		&o.ErrorMessage,
		&o.RetryCount,
		&o.ProcessingDurationMs,
		&o.TestMode,
		&o.CreatedAt,
		&o.ProcessingStartedAt,
		&o.ProcessingCompletedAt,
		&o.LastRetryAt,
	); err != nil {
		return nil, err
	}
	o.Type = domain.OrderType(orderType)
	o.PaymentStatus = domain.PaymentStatus(payment)
	o.ProcessingStatus = domain.ProcessingStatus(processing)
	return &o, nil
}

var _ domain.OrderRepository = (*OrderRepositoryPG)(nil)
