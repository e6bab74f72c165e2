package handlers

import (
	"errors"
	"io"
	"mime"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"camclip/internal/domain"
	"camclip/internal/promptgen"
	"camclip/internal/scene"
	"camclip/internal/workflow"
)

const maxUploadBytes = scene.MaxImageBytes + 1<<20

type analysisResponse struct {
	Success    bool                  `json:"success"`
	AnalysisID string                `json:"analysisId"`
	Analysis   *domain.SceneAnalysis `json:"analysis"`
	Prompts    []domain.VideoPrompt  `json:"prompts"`
	Complexity promptgen.Complexity  `json:"complexity"`
}

func newAnalysisResponse(res *workflow.AnalysisResult) analysisResponse {
	return analysisResponse{
		Success:    true,
		AnalysisID: res.Analysis.ID,
		Analysis:   res.Analysis,
		Prompts:    res.Prompts,
		Complexity: res.Complexity,
	}
}

// AnalysisCreate handles POST /analysis. The photo is sent either as the
// multipart field "image" or as the raw request body.
func (a *App) AnalysisCreate(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	data, contentType, err := readUpload(r)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			a.error(w, http.StatusRequestEntityTooLarge, "too_large", "image is too large", "Upload a photo smaller than 10 MB")
			return
		}
		a.error(w, http.StatusBadRequest, "bad_request", "could not read image upload", "Send the photo in the \"image\" form field")
		return
	}
	res, err := a.Workflow.AnalyzeUpload(r.Context(), data, contentType)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.json(w, http.StatusCreated, newAnalysisResponse(res))
}

func readUpload(r *http.Request) ([]byte, string, error) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType != "multipart/form-data" {
		data, err := io.ReadAll(r.Body)
		return data, mediaType, err
	}
	file, header, err := r.FormFile("image")
	if err != nil {
		return nil, "", err
	}
	defer file.Close()
	data, err := io.ReadAll(file)
	return data, header.Header.Get("Content-Type"), err
}

// AnalysisGet handles GET /analysis/{id}.
func (a *App) AnalysisGet(w http.ResponseWriter, r *http.Request) {
	res, err := a.Workflow.GetAnalysis(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.json(w, http.StatusOK, newAnalysisResponse(res))
}

// AnalysisMorePrompts handles POST /analysis/{id}/prompts.
func (a *App) AnalysisMorePrompts(w http.ResponseWriter, r *http.Request) {
	prompts, err := a.Workflow.GenerateMorePrompts(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.json(w, http.StatusCreated, map[string]any{"success": true, "prompts": prompts})
}

// AnalysisSelectPrompt handles POST /analysis/{id}/prompts/{promptID}/select.
func (a *App) AnalysisSelectPrompt(w http.ResponseWriter, r *http.Request) {
	analysisID := chi.URLParam(r, "id")
	promptID := strings.TrimSpace(chi.URLParam(r, "promptID"))
	if err := a.Workflow.SelectPrompt(r.Context(), analysisID, promptID); err != nil {
		a.fail(w, r, err)
		return
	}
	a.json(w, http.StatusOK, map[string]any{"success": true, "analysisId": analysisID, "selectedPromptId": promptID})
}
