package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"camclip/internal/domain"
	"camclip/internal/workflow"
)

type processRequest struct {
	OrderID       string `json:"orderId"`
	AnalysisID    string `json:"analysisId"`
	PromptID      string `json:"promptId"`
	VideoDuration string `json:"videoDuration"`
}

type retryRequest struct {
	OrderID string `json:"orderId"`
	Action  string `json:"action"`
}

type processResponse struct {
	Success        bool                    `json:"success"`
	OrderID        string                  `json:"orderId"`
	Status         domain.ProcessingStatus `json:"status"`
	VideoURL       string                  `json:"videoUrl,omitempty"`
	ThumbnailURL   string                  `json:"thumbnailUrl,omitempty"`
	StoredArtifact bool                    `json:"storedArtifact"`
	RetryCount     *int                    `json:"retryCount,omitempty"`
}

type processFailure struct {
	Error      string `json:"error"`
	Details    string `json:"details"`
	RetryCount *int   `json:"retryCount,omitempty"`
}

// ProcessQueue handles POST /process-video-queue. Processing runs to the end
// even if the caller disconnects.
func (a *App) ProcessQueue(w http.ResponseWriter, r *http.Request) {
	var req processRequest
	if err := decodeJSON(w, r, &req); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid payload")
		return
	}
	req.OrderID = strings.TrimSpace(req.OrderID)
	req.AnalysisID = strings.TrimSpace(req.AnalysisID)
	req.PromptID = strings.TrimSpace(req.PromptID)
	if req.OrderID == "" || req.AnalysisID == "" || req.PromptID == "" {
		a.error(w, http.StatusBadRequest, "bad_request", "orderId, analysisId and promptId are required")
		return
	}

	outcome, err := a.Workflow.ProcessAIOrder(context.WithoutCancel(r.Context()), workflow.ProcessRequest{
		OrderID:       req.OrderID,
		AnalysisID:    req.AnalysisID,
		PromptID:      req.PromptID,
		VideoDuration: req.VideoDuration,
	})
	if err != nil {
		a.processFailed(w, r, err, nil)
		return
	}
	a.json(w, http.StatusOK, processResponse{
		Success:        true,
		OrderID:        outcome.OrderID,
		Status:         outcome.Status,
		VideoURL:       outcome.VideoURL,
		ThumbnailURL:   outcome.ThumbnailURL,
		StoredArtifact: outcome.StoredArtifact,
	})
}

// RetryQueue handles PATCH /process-video-queue.
func (a *App) RetryQueue(w http.ResponseWriter, r *http.Request) {
	var req retryRequest
	if err := decodeJSON(w, r, &req); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid payload")
		return
	}
	req.OrderID = strings.TrimSpace(req.OrderID)
	if req.OrderID == "" {
		a.error(w, http.StatusBadRequest, "bad_request", "orderId is required")
		return
	}
	if req.Action != "retry" {
		a.error(w, http.StatusBadRequest, "bad_request", "unsupported action", `Use {"action":"retry"}`)
		return
	}

	retry, err := a.Workflow.Retry(context.WithoutCancel(r.Context()), req.OrderID)
	if err != nil {
		if retry == nil {
			a.fail(w, r, err)
			return
		}
		a.processFailed(w, r, err, &retry.RetryCount)
		return
	}
	resp := processResponse{Success: true, OrderID: req.OrderID, RetryCount: &retry.RetryCount}
	if retry.Outcome != nil {
		resp.Status = retry.Outcome.Status
		resp.VideoURL = retry.Outcome.VideoURL
		resp.ThumbnailURL = retry.Outcome.ThumbnailURL
		resp.StoredArtifact = retry.Outcome.StoredArtifact
	}
	a.json(w, http.StatusOK, resp)
}

// processFailed reports an order that failed during processing. Rejections
// that happened before processing started keep their own status codes.
func (a *App) processFailed(w http.ResponseWriter, r *http.Request, err error, retryCount *int) {
	var perr *workflow.ProcessingError
	if !errors.As(err, &perr) {
		if retryCount == nil {
			a.fail(w, r, err)
			return
		}
		a.Logger.Error().Err(err).Msg("retry processing failed")
		a.json(w, http.StatusInternalServerError, processFailure{Error: "processing_failed", Details: "video processing failed", RetryCount: retryCount})
		return
	}
	a.Logger.Warn().Err(err).Str("order_id", perr.OrderID).Msg("processing failed")
	a.json(w, http.StatusInternalServerError, processFailure{
		Error:      "processing_failed",
		Details:    perr.Message,
		RetryCount: retryCount,
	})
}
