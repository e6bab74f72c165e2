package workflow

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/sync/errgroup"

	"camclip/internal/domain"
	"camclip/internal/infra"
	"camclip/internal/payment"
	"camclip/internal/providers/video"
	"camclip/internal/storage"
)

// ProcessRequest triggers video generation for an AI order. Empty analysis or
// prompt ids fall back to the references stored on the order.
type ProcessRequest struct {
	OrderID       string
	AnalysisID    string
	PromptID      string
	VideoDuration string
}

// Outcome summarizes a processing run.
type Outcome struct {
	OrderID        string
	Status         domain.ProcessingStatus
	JobID          string
	VideoURL       string
	ThumbnailURL   string
	StoredArtifact bool
	DurationMs     int64
	Error          string
}

// RetryOutcome reports an accepted retry and the processing run it started.
type RetryOutcome struct {
	RetryCount int
	Outcome    *Outcome
}

// ProcessAIOrder generates the video for a paid AI order. Orders that are not
// pending are rejected with domain.ErrIllegalTransition before any side
// effect. Once the order is processing, every failure marks it failed, sends
// the failure email and is returned as a *ProcessingError.
func (o *Orchestrator) ProcessAIOrder(ctx context.Context, req ProcessRequest) (*Outcome, error) {
	order, err := o.orders.GetByID(ctx, req.OrderID)
	if err != nil {
		return nil, fmt.Errorf("load order %s: %w", req.OrderID, err)
	}
	if order.PaymentStatus != domain.PaymentCompleted {
		return nil, fmt.Errorf("order %s: %w", order.ID, domain.ErrPaymentRequired)
	}
	analysisID := firstNonEmpty(req.AnalysisID, domain.StringValue(order.AnalysisID))
	promptID := firstNonEmpty(req.PromptID, domain.StringValue(order.PromptID))
	duration := firstNonEmpty(req.VideoDuration, order.VideoDuration)

	if err := o.orders.MarkProcessing(ctx, order.ID); err != nil {
		return nil, fmt.Errorf("start order %s: %w", order.ID, err)
	}
	log := o.logger.With().Str("order_id", order.ID).Str("analysis_id", analysisID).Logger()
	log.Info().Str("prompt_id", promptID).Msg("processing ai order")

	if analysisID == "" || promptID == "" {
		return o.failOrder(ctx, log, order.ID, "order is missing its analysis or prompt reference", domain.ErrMissingReference)
	}

	analysis, prompt, err := o.loadScene(ctx, analysisID, promptID)
	if err != nil {
		return o.failOrder(ctx, log, order.ID, err.Error(), err)
	}
	if analysis.ImagePath == "" {
		return o.failOrder(ctx, log, order.ID, "analysis has no stored source image", domain.ErrMissingReference)
	}

	sourceURL, err := o.store.SignedURL(ctx, analysis.ImagePath, o.sourceURLTTL)
	if err != nil {
		return o.failOrder(ctx, log, order.ID, "could not access the source image", err)
	}

	recorder := &jobRecorder{orders: o.orders, orderID: order.ID, log: log}
	res := o.generator.GenerateVideo(ctx, video.Request{
		OrderID:  order.ID,
		Image:    video.ImageSource{URL: sourceURL},
		Prompt:   prompt.Description,
		Duration: duration,
		Enhance:  true,
		Scene:    analysis,
		OnStatus: recorder.record,
	})
	if !res.Success {
		log.Warn().Str("failure", string(res.Failure)).Str("task_id", res.JobID).Msg("video generation failed")
		return o.failOrder(ctx, log, order.ID, res.Error, domain.ErrProviderFailure)
	}
	return o.completeOrder(ctx, log, order.ID, res.JobID, res.VideoURL, res.ThumbnailURL, res.ElapsedMs)
}

// ProcessDirectUpload stores a customer-supplied video and completes the
// order without the analysis and generation stages.
func (o *Orchestrator) ProcessDirectUpload(ctx context.Context, orderID string) (*Outcome, error) {
	order, err := o.orders.GetByID(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("load order %s: %w", orderID, err)
	}
	if order.PaymentStatus != domain.PaymentCompleted {
		return nil, fmt.Errorf("order %s: %w", order.ID, domain.ErrPaymentRequired)
	}
	if err := o.orders.MarkProcessing(ctx, order.ID); err != nil {
		return nil, fmt.Errorf("start order %s: %w", order.ID, err)
	}
	log := o.logger.With().Str("order_id", order.ID).Str("order_type", string(order.Type)).Logger()

	if strings.TrimSpace(order.VideoFileURL) == "" {
		return o.failOrder(ctx, log, order.ID, "order has no source video", domain.ErrMissingReference)
	}
	start := o.now()
	data, contentType, err := o.generator.Download(ctx, order.VideoFileURL)
	if err != nil {
		return o.failOrder(ctx, log, order.ID, "could not download the uploaded video", err)
	}
	url, stored := o.storeArtifact(ctx, log, order.ID, data, contentType, order.VideoFileURL)
	return o.finish(ctx, log, order.ID, "", url, "", stored, o.now().Sub(start).Milliseconds())
}

// Retry resets a failed order and runs it again. Rejections are
// domain.ErrNotFound, domain.ErrRetryNotAllowed or
// domain.ErrMaxRetriesExceeded and leave the order untouched.
func (o *Orchestrator) Retry(ctx context.Context, orderID string) (*RetryOutcome, error) {
	count, err := o.orders.ResetForRetry(ctx, orderID, domain.MaxRetries)
	if err != nil {
		return nil, fmt.Errorf("retry order %s: %w", orderID, err)
	}
	o.logger.Info().Str("order_id", orderID).Int("retry_count", count).Msg("order retry accepted")

	order, err := o.orders.GetByID(ctx, orderID)
	if err != nil {
		return &RetryOutcome{RetryCount: count}, fmt.Errorf("reload order %s: %w", orderID, err)
	}
	var outcome *Outcome
	if order.Type == domain.OrderTypeDirectUpload {
		outcome, err = o.ProcessDirectUpload(ctx, orderID)
	} else {
		outcome, err = o.ProcessAIOrder(ctx, ProcessRequest{OrderID: orderID})
	}
	return &RetryOutcome{RetryCount: count, Outcome: outcome}, err
}

// HandleCheckoutCompleted records the payment and processes the order. A
// duplicate delivery for an order that already left pending is acknowledged
// without reprocessing.
func (o *Orchestrator) HandleCheckoutCompleted(ctx context.Context, evt payment.Event) (*Outcome, error) {
	if evt.OrderID == "" {
		return nil, fmt.Errorf("checkout event %s has no order id: %w", evt.ID, domain.ErrInvalidInput)
	}
	err := o.orders.SetPaymentStatus(ctx, evt.OrderID, domain.PaymentUpdate{
		Status:    domain.PaymentCompleted,
		Reference: evt.PaymentReference,
		Amount:    evt.Amount,
		Currency:  evt.Currency,
	})
	if err != nil {
		return nil, fmt.Errorf("record payment for order %s: %w", evt.OrderID, err)
	}

	var outcome *Outcome
	if domain.OrderType(evt.OrderType) == domain.OrderTypeDirectUpload {
		outcome, err = o.ProcessDirectUpload(ctx, evt.OrderID)
	} else {
		outcome, err = o.ProcessAIOrder(ctx, ProcessRequest{
			OrderID:    evt.OrderID,
			AnalysisID: evt.AnalysisID,
			PromptID:   evt.PromptID,
		})
	}
	if errors.Is(err, domain.ErrIllegalTransition) {
		o.logger.Info().Str("order_id", evt.OrderID).Msg("checkout already handled")
		return nil, nil
	}
	return outcome, err
}

// HandlePaymentFailed marks the order's payment as failed.
func (o *Orchestrator) HandlePaymentFailed(ctx context.Context, evt payment.Event) error {
	if evt.OrderID == "" {
		o.logger.Warn().Str("event_id", evt.ID).Msg("payment failure without order id")
		return nil
	}
	err := o.orders.SetPaymentStatus(ctx, evt.OrderID, domain.PaymentUpdate{
		Status:    domain.PaymentFailed,
		Reference: evt.PaymentReference,
	})
	if errors.Is(err, domain.ErrNotFound) {
		o.logger.Warn().Str("order_id", evt.OrderID).Msg("payment failure for unknown order")
		return nil
	}
	if errors.Is(err, domain.ErrIllegalTransition) {
		o.logger.Warn().Str("order_id", evt.OrderID).Msg("ignoring payment failure for completed payment")
		return nil
	}
	if err != nil {
		return fmt.Errorf("record payment failure for order %s: %w", evt.OrderID, err)
	}
	o.logger.Info().Str("order_id", evt.OrderID).Str("reason", evt.FailureMessage).Msg("payment failed")
	return nil
}

// loadScene fetches the analysis and its prompts concurrently and resolves
// the requested prompt among them.
func (o *Orchestrator) loadScene(ctx context.Context, analysisID, promptID string) (*domain.SceneAnalysis, *domain.VideoPrompt, error) {
	var (
		analysis *domain.SceneAnalysis
		prompts  []domain.VideoPrompt
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		a, err := o.analyses.GetAnalysis(gctx, analysisID)
		if err != nil {
			return fmt.Errorf("load analysis %s: %w", analysisID, err)
		}
		analysis = a
		return nil
	})
	g.Go(func() error {
		p, err := o.analyses.ListPrompts(gctx, analysisID)
		if err != nil {
			return fmt.Errorf("load prompts for analysis %s: %w", analysisID, err)
		}
		prompts = p
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	for i := range prompts {
		if prompts[i].ID == promptID {
			return analysis, &prompts[i], nil
		}
	}
	return nil, nil, fmt.Errorf("prompt %s: %w", promptID, domain.ErrPromptNotFound)
}

// jobRecorder mirrors provider status changes onto the order as they happen.
type jobRecorder struct {
	orders    domain.OrderRepository
	orderID   string
	log       infra.Logger
	submitted bool
}

func (r *jobRecorder) record(jobID string, status video.Status) {
	ctx := context.Background()
	var err error
	if !r.submitted {
		r.submitted = true
		err = r.orders.RecordJobSubmitted(ctx, r.orderID, jobID, string(status))
	} else {
		err = r.orders.SetVideoJobStatus(ctx, r.orderID, string(status))
	}
	if err != nil {
		r.log.Warn().Err(err).Str("task_id", jobID).Str("status", string(status)).Msg("mirror job status failed")
	}
}

func (o *Orchestrator) completeOrder(ctx context.Context, log infra.Logger, orderID, jobID, providerURL, thumbnailURL string, elapsedMs int64) (*Outcome, error) {
	url, stored := providerURL, false
	data, contentType, err := o.generator.Download(ctx, providerURL)
	if err != nil {
		log.Warn().Err(err).Msg("artifact download failed, keeping provider url")
	} else {
		url, stored = o.storeArtifact(ctx, log, orderID, data, contentType, providerURL)
	}
	return o.finish(ctx, log, orderID, jobID, url, thumbnailURL, stored, elapsedMs)
}

// storeArtifact uploads the video under the order's key. Failure is not
// fatal: fallbackURL is returned instead.
func (o *Orchestrator) storeArtifact(ctx context.Context, log infra.Logger, orderID string, data []byte, contentType, fallbackURL string) (string, bool) {
	if contentType == "" || contentType == "application/octet-stream" {
		contentType = "video/mp4"
	}
	obj, err := o.store.Put(ctx, storage.VideoKey(orderID), data, contentType)
	if err != nil {
		log.Warn().Err(err).Msg("artifact upload failed, keeping source url")
		return fallbackURL, false
	}
	return obj.URL, true
}

func (o *Orchestrator) finish(ctx context.Context, log infra.Logger, orderID, jobID, url, thumbnailURL string, stored bool, elapsedMs int64) (*Outcome, error) {
	err := o.orders.Complete(ctx, orderID, domain.VideoResult{
		VideoURL:     url,
		ThumbnailURL: thumbnailURL,
		DurationMs:   elapsedMs,
	})
	if err != nil {
		return o.failOrder(ctx, log, orderID, "could not record the finished video", err)
	}
	log.Info().Bool("stored", stored).Int64("duration_ms", elapsedMs).Msg("order completed")

	if res := o.notifier.SendSuccess(ctx, orderID); !res.Success {
		log.Warn().Str("error", res.Error).Msg("success notification failed")
	}
	return &Outcome{
		OrderID:        orderID,
		Status:         domain.ProcessingCompleted,
		JobID:          jobID,
		VideoURL:       url,
		ThumbnailURL:   thumbnailURL,
		StoredArtifact: stored,
		DurationMs:     elapsedMs,
	}, nil
}

// failOrder marks the order failed with message, sends the failure email and
// returns the error for the caller.
func (o *Orchestrator) failOrder(ctx context.Context, log infra.Logger, orderID, message string, cause error) (*Outcome, error) {
	if message == "" {
		message = "video generation failed"
	}
	log.Error().Err(cause).Str("message", message).Msg("order failed")

	writeCtx := context.WithoutCancel(ctx)
	if err := o.orders.Fail(writeCtx, orderID, message); err != nil {
		log.Error().Err(err).Msg("record order failure failed")
	}
	if res := o.notifier.SendFailure(writeCtx, orderID, message); !res.Success {
		log.Warn().Str("error", res.Error).Msg("failure notification failed")
	}
	return &Outcome{OrderID: orderID, Status: domain.ProcessingFailed, Error: message},
		&ProcessingError{OrderID: orderID, Message: message, Err: cause}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
