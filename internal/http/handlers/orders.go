package handlers

import (
	"net/http"
	"strings"

	"camclip/internal/middleware"
	"camclip/internal/workflow"
)

type createOrderRequest struct {
	Email            string `json:"email"`
	AnalysisID       string `json:"analysisId"`
	SelectedPromptID string `json:"selectedPromptId"`
	VideoFileURL     string `json:"videoFileUrl"`
	VideoDuration    string `json:"videoDuration"`
	TestMode         bool   `json:"testMode"`
}

type createOrderResponse struct {
	Success     bool   `json:"success"`
	OrderID     string `json:"orderId"`
	CheckoutURL string `json:"checkoutUrl,omitempty"`
	Amount      int64  `json:"amount"`
	Currency    string `json:"currency"`
	TestMode    bool   `json:"testMode,omitempty"`
}

// OrderCreate handles POST /order/create.
func (a *App) OrderCreate(w http.ResponseWriter, r *http.Request) {
	var req createOrderRequest
	if err := decodeJSON(w, r, &req); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid payload")
		return
	}
	created, err := a.Workflow.CreateOrder(r.Context(), workflow.CreateOrderInput{
		Email:         req.Email,
		AnalysisID:    req.AnalysisID,
		PromptID:      req.SelectedPromptID,
		VideoFileURL:  req.VideoFileURL,
		VideoDuration: req.VideoDuration,
		TestMode:      req.TestMode,
		Country:       middleware.CountryFromContext(r.Context()),
	})
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.json(w, http.StatusCreated, createOrderResponse{
		Success:     true,
		OrderID:     created.OrderID,
		CheckoutURL: created.CheckoutURL,
		Amount:      created.Amount,
		Currency:    created.Currency,
		TestMode:    created.TestMode,
	})
}

// OrderStatus handles GET /order/status?orderId= and the GET form of
// /process-video-queue.
func (a *App) OrderStatus(w http.ResponseWriter, r *http.Request) {
	orderID := strings.TrimSpace(r.URL.Query().Get("orderId"))
	if orderID == "" {
		a.error(w, http.StatusBadRequest, "bad_request", "orderId is required")
		return
	}
	order, err := a.Workflow.Orders().GetByID(r.Context(), orderID)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.json(w, http.StatusOK, workflow.Project(order))
}
