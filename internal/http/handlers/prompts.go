package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

type promptEditRequest struct {
	Text string `json:"text"`
}

// PromptEdit handles PATCH /prompts/{promptID}.
func (a *App) PromptEdit(w http.ResponseWriter, r *http.Request) {
	var req promptEditRequest
	if err := decodeJSON(w, r, &req); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid payload")
		return
	}
	prompt, err := a.Workflow.EditPrompt(r.Context(), chi.URLParam(r, "promptID"), req.Text)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.json(w, http.StatusOK, map[string]any{"success": true, "prompt": prompt})
}
