package workflow

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"camclip/internal/domain"
	"camclip/internal/infra"
	"camclip/internal/promptgen"
	"camclip/internal/scene"
	"camclip/internal/storage"
)

// AnalysisResult is an analysis with its ranked prompts.
type AnalysisResult struct {
	Analysis   *domain.SceneAnalysis
	Prompts    []domain.VideoPrompt
	Complexity promptgen.Complexity
}

// AnalyzeUpload validates and stores the photo, analyzes the scene and
// persists the generated prompts. If a later step fails, the stored image
// and the analysis record are removed before the original error is returned.
func (o *Orchestrator) AnalyzeUpload(ctx context.Context, data []byte, contentType string) (*AnalysisResult, error) {
	img, err := scene.PrepareImage(data, contentType)
	if err != nil {
		return nil, err
	}

	analysisID := o.newID()
	log := o.logger.With().Str("analysis_id", analysisID).Logger()
	obj, err := o.store.Put(ctx, storage.SourceImageKey(analysisID, img.Extension), img.Data, img.ContentType)
	if err != nil {
		return nil, fmt.Errorf("store source image: %w", err)
	}
	cleanup := &rollback{log: log}
	cleanup.add("remove source image", func(ctx context.Context) error { return o.store.Remove(ctx, obj.Key) })

	analysis := o.analyzer.Analyze(ctx, img.Base64(), img.ContentType)
	analysis.ID = analysisID
	analysis.ImagePath = obj.Key
	analysis.CreatedAt = o.now()

	if err := o.analyses.CreateAnalysis(ctx, &analysis); err != nil {
		cleanup.run(ctx)
		return nil, fmt.Errorf("save analysis: %w", err)
	}
	cleanup.add("delete analysis", func(ctx context.Context) error { return o.analyses.DeleteAnalysis(ctx, analysisID) })

	prompts, err := o.engine.Generate(analysis)
	if err != nil {
		cleanup.run(ctx)
		return nil, fmt.Errorf("generate prompts: %w", err)
	}
	if err := o.analyses.SavePrompts(ctx, analysisID, prompts); err != nil {
		cleanup.run(ctx)
		return nil, fmt.Errorf("save prompts: %w", err)
	}
	stored, err := o.analyses.ListPrompts(ctx, analysisID)
	if err != nil {
		cleanup.run(ctx)
		return nil, fmt.Errorf("list prompts: %w", err)
	}

	log.Info().Int("prompts", len(stored)).Int("suitability", analysis.SuitabilityScore).Msg("scene analyzed")
	return &AnalysisResult{Analysis: &analysis, Prompts: stored, Complexity: promptgen.Classify(analysis)}, nil
}

// GetAnalysis returns an analysis with its prompts.
func (o *Orchestrator) GetAnalysis(ctx context.Context, analysisID string) (*AnalysisResult, error) {
	analysis, err := o.analyses.GetAnalysis(ctx, analysisID)
	if err != nil {
		return nil, fmt.Errorf("load analysis %s: %w", analysisID, err)
	}
	prompts, err := o.analyses.ListPrompts(ctx, analysisID)
	if err != nil {
		return nil, fmt.Errorf("list prompts: %w", err)
	}
	return &AnalysisResult{Analysis: analysis, Prompts: prompts, Complexity: promptgen.Classify(*analysis)}, nil
}

// GenerateMorePrompts adds a supplementary batch that avoids the variations
// already shown for each template.
func (o *Orchestrator) GenerateMorePrompts(ctx context.Context, analysisID string) ([]domain.VideoPrompt, error) {
	analysis, err := o.analyses.GetAnalysis(ctx, analysisID)
	if err != nil {
		return nil, fmt.Errorf("load analysis %s: %w", analysisID, err)
	}
	previous, err := o.analyses.ListPrompts(ctx, analysisID)
	if err != nil {
		return nil, fmt.Errorf("list prompts: %w", err)
	}
	prompts, err := o.engine.GenerateMore(*analysis, previous)
	if err != nil {
		return nil, fmt.Errorf("generate prompts: %w", err)
	}
	if err := o.analyses.SavePrompts(ctx, analysisID, prompts); err != nil {
		return nil, fmt.Errorf("save prompts: %w", err)
	}
	return prompts, nil
}

// SelectPrompt marks promptID as the analysis's only selected prompt.
func (o *Orchestrator) SelectPrompt(ctx context.Context, analysisID, promptID string) error {
	if err := o.analyses.SelectPrompt(ctx, analysisID, promptID); err != nil {
		return fmt.Errorf("select prompt %s: %w", promptID, err)
	}
	return nil
}

// EditPrompt replaces a prompt's text after validating its length.
func (o *Orchestrator) EditPrompt(ctx context.Context, promptID, text string) (*domain.VideoPrompt, error) {
	text = strings.TrimSpace(text)
	n := utf8.RuneCountInString(text)
	if n < domain.MinPromptTextLength || n > domain.MaxPromptTextLength {
		return nil, domain.NewValidationError(
			fmt.Sprintf("prompt must be between %d and %d characters", domain.MinPromptTextLength, domain.MaxPromptTextLength),
			"Describe what Santa does and where he appears in the scene",
		)
	}
	prompt, err := o.analyses.UpdatePromptText(ctx, promptID, text)
	if err != nil {
		return nil, fmt.Errorf("update prompt %s: %w", promptID, err)
	}
	return prompt, nil
}

// rollback runs compensating steps in reverse order. Their errors are logged
// and never replace the error that triggered them.
type rollback struct {
	log   infra.Logger
	steps []rollbackStep
}

type rollbackStep struct {
	name string
	fn   func(ctx context.Context) error
}

func (r *rollback) add(name string, fn func(ctx context.Context) error) {
	r.steps = append(r.steps, rollbackStep{name: name, fn: fn})
}

func (r *rollback) run(ctx context.Context) {
	ctx = context.WithoutCancel(ctx)
	for i := len(r.steps) - 1; i >= 0; i-- {
		if err := r.steps[i].fn(ctx); err != nil {
			r.log.Warn().Err(err).Str("step", r.steps[i].name).Msg("cleanup failed")
		}
	}
}
