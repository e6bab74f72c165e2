package repo

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"

	"camclip/internal/domain"
	"camclip/internal/infra"
	"camclip/internal/sqlinline"
)

// AnalysisRepositoryPG implements domain.AnalysisRepository. Nested scene
// fields are stored as jsonb columns.
type AnalysisRepositoryPG struct {
	sql infra.SQLExecutor
}

func NewAnalysisRepository(sql infra.SQLExecutor) *AnalysisRepositoryPG {
	return &AnalysisRepositoryPG{sql: sql}
}

func (r *AnalysisRepositoryPG) CreateAnalysis(ctx context.Context, a *domain.SceneAnalysis) error {
	doors, err := marshalJSON(a.Doors, "[]")
	if err != nil {
		return err
	}
	windows, err := marshalJSON(a.Windows, "[]")
	if err != nil {
		return err
	}
	decorations, err := marshalJSON(a.Decorations, "{}")
	if err != nil {
		return err
	}
	furniture, err := marshalJSON(a.Furniture, "[]")
	if err != nil {
		return err
	}
	plants, err := marshalJSON(a.Plants, "[]")
	if err != nil {
		return err
	}
	layout, err := marshalJSON(a.Layout, "{}")
	if err != nil {
		return err
	}
	recommendations, err := marshalJSON(a.Recommendations, "[]")
	if err != nil {
		return err
	}

	row := r.sql.QueryRow(ctx, sqlinline.QInsertAnalysis,
		a.ID,
		a.ImagePath,
		doors,
		windows,
		decorations,
		furniture,
		plants,
		layout,
		domain.ClampScore(a.SuitabilityScore),
		recommendations,
	)
	if err := row.Scan(&a.CreatedAt); err != nil {
		return fmt.Errorf("insert analysis: %w", err)
	}
	return nil
}

func (r *AnalysisRepositoryPG) GetAnalysis(ctx context.Context, analysisID string) (*domain.SceneAnalysis, error) {
	analysisID, err := canonicalID(analysisID, domain.ErrNotFound)
	if err != nil {
		return nil, err
	}
	var a domain.SceneAnalysis
	var doors, windows, decorations, furniture, plants, layout, recs []byte
	err = r.sql.QueryRow(ctx, sqlinline.QSelectAnalysis, analysisID).Scan(
		&a.ID,
		&a.ImagePath,
		&doors,
		&windows,
		&decorations,
		&furniture,
		&plants,
		&layout,
		&a.SuitabilityScore,
		&recs,
		&a.CreatedAt,
	)
	if err != nil {
		if infra.IsNoRows(err) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("select analysis: %w", err)
	}
	for _, field := range []struct {
		raw  []byte
		dest any
	}{
		{doors, &a.Doors},
		{windows, &a.Windows},
		{decorations, &a.Decorations},
		{furniture, &a.Furniture},
		{plants, &a.Plants},
		{layout, &a.Layout},
		{recs, &a.Recommendations},
	} {
		if len(field.raw) == 0 {
			continue
		}
		if err := json.Unmarshal(field.raw, field.dest); err != nil {
			return nil, fmt.Errorf("decode analysis %s: %w", analysisID, err)
		}
	}
	return &a, nil
}

// DeleteAnalysis removes the analysis; its prompts cascade.
func (r *AnalysisRepositoryPG) DeleteAnalysis(ctx context.Context, analysisID string) error {
	analysisID, err := canonicalID(analysisID, domain.ErrNotFound)
	if err != nil {
		return err
	}
	tag, err := r.sql.Exec(ctx, sqlinline.QDeleteAnalysis, analysisID)
	if err != nil {
		return fmt.Errorf("delete analysis: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

type promptRecord struct {
	ID          string   `json:"id"`
	TemplateID  string   `json:"template_id"`
	Variation   int      `json:"variation"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Tags        []string `json:"tags"`
	Confidence  int      `json:"confidence"`
	Elements    []string `json:"elements"`
	Category    string   `json:"category"`
	Duration    string   `json:"duration"`
}

// SavePrompts inserts the batch in a single statement.
func (r *AnalysisRepositoryPG) SavePrompts(ctx context.Context, analysisID string, prompts []domain.VideoPrompt) error {
	if len(prompts) == 0 {
		return nil
	}
	analysisID, err := canonicalID(analysisID, domain.ErrNotFound)
	if err != nil {
		return err
	}
	records := make([]promptRecord, 0, len(prompts))
	for _, p := range prompts {
		records = append(records, promptRecord{
			ID:          p.ID,
			TemplateID:  p.TemplateID,
			Variation:   p.Variation,
			Title:       p.Title,
			Description: p.Description,
			Tags:        nonNil(p.Tags),
			Confidence:  domain.ClampScore(p.Confidence),
			Elements:    nonNil(p.Elements),
			Category:    string(p.Category),
			Duration:    string(p.Duration),
		})
	}
	raw, err := json.Marshal(records)
	if err != nil {
		return fmt.Errorf("encode prompts: %w", err)
	}
	if _, err := r.sql.Exec(ctx, sqlinline.QInsertPrompts, analysisID, raw); err != nil {
		return fmt.Errorf("insert prompts: %w", err)
	}
	return nil
}

func (r *AnalysisRepositoryPG) ListPrompts(ctx context.Context, analysisID string) ([]domain.VideoPrompt, error) {
	analysisID, err := canonicalID(analysisID, domain.ErrNotFound)
	if err != nil {
		return nil, nil
	}
	rows, err := r.sql.Query(ctx, sqlinline.QSelectPromptsByAnalysis, analysisID)
	if err != nil {
		return nil, fmt.Errorf("select prompts: %w", err)
	}
	defer rows.Close()

	var prompts []domain.VideoPrompt
	for rows.Next() {
		p, err := scanPrompt(rows)
		if err != nil {
			return nil, fmt.Errorf("scan prompt: %w", err)
		}
		prompts = append(prompts, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return prompts, nil
}

func (r *AnalysisRepositoryPG) GetPrompt(ctx context.Context, promptID string) (*domain.VideoPrompt, error) {
	promptID, err := canonicalID(promptID, domain.ErrPromptNotFound)
	if err != nil {
		return nil, err
	}
	p, err := scanPrompt(r.sql.QueryRow(ctx, sqlinline.QSelectPrompt, promptID))
	if err != nil {
		if infra.IsNoRows(err) {
			return nil, domain.ErrPromptNotFound
		}
		return nil, fmt.Errorf("select prompt: %w", err)
	}
	return p, nil
}

// SelectPrompt marks promptID selected and every other prompt of the analysis
// unselected.
func (r *AnalysisRepositoryPG) SelectPrompt(ctx context.Context, analysisID, promptID string) error {
	analysisID, err := canonicalID(analysisID, domain.ErrPromptNotFound)
	if err != nil {
		return err
	}
	promptID, err = canonicalID(promptID, domain.ErrPromptNotFound)
	if err != nil {
		return err
	}
	tag, err := r.sql.Exec(ctx, sqlinline.QSelectPromptExclusive, analysisID, promptID)
	if err != nil {
		return fmt.Errorf("select prompt: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrPromptNotFound
	}
	return nil
}

// UpdatePromptText overwrites the description and flags the prompt as user
// edited. Applying the same text twice leaves the same row.
func (r *AnalysisRepositoryPG) UpdatePromptText(ctx context.Context, promptID, text string) (*domain.VideoPrompt, error) {
	promptID, err := canonicalID(promptID, domain.ErrPromptNotFound)
	if err != nil {
		return nil, err
	}
	p, err := scanPrompt(r.sql.QueryRow(ctx, sqlinline.QUpdatePromptText, promptID, text))
	if err != nil {
		if infra.IsNoRows(err) {
			return nil, domain.ErrPromptNotFound
		}
		return nil, fmt.Errorf("update prompt: %w", err)
	}
	return p, nil
}

func scanPrompt(row pgx.Row) (*domain.VideoPrompt, error) {
	var (
		p                  domain.VideoPrompt
		tags, elements     []byte
		category, duration string
	)
	if err := row.Scan(
		&p.ID,
		&p.AnalysisID,
		&p.TemplateID,
		&p.Variation,
		&p.Title,
		&p.Description,
		&tags,
		&p.Confidence,
		&elements,
		&category,
		&duration,
		&p.IsSelected,
		&p.IsUserEdited,
		&p.CreatedAt,
	); err != nil {
		return nil, err
	}
	if len(tags) > 0 {
		if err := json.Unmarshal(tags, &p.Tags); err != nil {
			return nil, err
		}
	}
	if len(elements) > 0 {
		if err := json.Unmarshal(elements, &p.Elements); err != nil {
			return nil, err
		}
	}
	p.Category = domain.PromptCategory(category)
	p.Duration = domain.DurationClass(duration)
	return &p, nil
}

func marshalJSON(v any, empty string) ([]byte, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode analysis field: %w", err)
	}
	if string(raw) == "null" {
		return []byte(empty), nil
	}
	return raw, nil
}

func nonNil(in []string) []string {
	if in == nil {
		return []string{}
	}
	return in
}

var _ domain.AnalysisRepository = (*AnalysisRepositoryPG)(nil)
