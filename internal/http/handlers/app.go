package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"camclip/internal/domain"
	"camclip/internal/infra"
	"camclip/internal/payment"
	"camclip/internal/storage"
	"camclip/internal/workflow"
)

// App carries the dependencies shared by every handler.
type App struct {
	Workflow *workflow.Orchestrator
	Payments payment.Gateway
	Files    *storage.FileStore
	Ping     func(ctx context.Context) error
	Logger   infra.Logger
}

// Options configures NewApp. Files is nil when objects live in S3 and Ping
// is nil for the in-memory store.
type Options struct {
	Workflow *workflow.Orchestrator
	Payments payment.Gateway
	Files    *storage.FileStore
	Ping     func(ctx context.Context) error
	Logger   *infra.Logger
}

func NewApp(opts Options) *App {
	logger := infra.NopLogger()
	if opts.Logger != nil {
		logger = *opts.Logger
	}
	return &App{
		Workflow: opts.Workflow,
		Payments: opts.Payments,
		Files:    opts.Files,
		Ping:     opts.Ping,
		Logger:   logger,
	}
}

type errorResponse struct {
	Error       string   `json:"error"`
	Message     string   `json:"message"`
	Suggestions []string `json:"suggestions,omitempty"`
}

func (a *App) json(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func (a *App) error(w http.ResponseWriter, code int, errCode, msg string, suggestions ...string) {
	a.json(w, code, errorResponse{Error: errCode, Message: msg, Suggestions: suggestions})
}

// fail maps workflow errors onto HTTP responses. Anything unrecognized is
// logged and reported as a generic 500.
func (a *App) fail(w http.ResponseWriter, r *http.Request, err error) {
	var verr *domain.ValidationError
	switch {
	case errors.As(err, &verr):
		a.error(w, http.StatusBadRequest, "validation_failed", verr.Message, verr.Suggestions...)
	case errors.Is(err, domain.ErrInvalidInput):
		a.error(w, http.StatusBadRequest, "bad_request", "invalid request")
	case errors.Is(err, domain.ErrNotFound), errors.Is(err, domain.ErrPromptNotFound):
		a.error(w, http.StatusNotFound, "not_found", "resource not found")
	case errors.Is(err, domain.ErrMaxRetriesExceeded):
		a.error(w, http.StatusBadRequest, "max_retries_exceeded",
			"this order has reached the retry limit", "Contact support to have the order reviewed")
	case errors.Is(err, domain.ErrRetryNotAllowed):
		a.error(w, http.StatusBadRequest, "retry_not_allowed", "only failed orders can be retried")
	case errors.Is(err, domain.ErrNoPrompts):
		a.error(w, http.StatusUnprocessableEntity, "no_prompts", domain.ErrNoPrompts.Error(),
			"Try a photo where a door or entrance is clearly visible")
	case errors.Is(err, domain.ErrPaymentRequired):
		a.error(w, http.StatusPaymentRequired, "payment_required", "the order has not been paid")
	case errors.Is(err, domain.ErrIllegalTransition):
		a.error(w, http.StatusConflict, "conflict", "the order is already being processed or finished")
	default:
		a.Logger.Error().Err(err).Str("path", r.URL.Path).Msg("request failed")
		a.error(w, http.StatusInternalServerError, "internal", "something went wrong, please try again")
	}
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20))
	return dec.Decode(v)
}
