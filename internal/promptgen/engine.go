package promptgen

import (
	"math/rand/v2"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"camclip/internal/domain"
)

// Score thresholds for first and supplementary batches.
const (
	InitialThreshold       = 30
	SupplementaryThreshold = 40
)

const (
	missingRequiredPenalty = 30
	optionalBonus          = 10
)

// Picker returns an index in [0,n).
type Picker func(n int) int

// Options configures an Engine. Zero values fall back to defaults.
type Options struct {
	Library    *Library
	Picker     Picker
	NewID      func() string
	Now        func() time.Time
	MinPrompts int
	MaxPrompts int
}

// Engine scores templates against a scene and materializes ranked prompts.
type Engine struct {
	lib        *Library
	pick       Picker
	newID      func() string
	now        func() time.Time
	minPrompts int
	maxPrompts int
}

func NewEngine(opts Options) (*Engine, error) {
	lib := opts.Library
	if lib == nil {
		var err error
		lib, err = DefaultLibrary()
		if err != nil {
			return nil, err
		}
	}
	pick := opts.Picker
	if pick == nil {
		pick = rand.IntN
	}
	newID := opts.NewID
	if newID == nil {
		newID = uuid.NewString
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	minPrompts := opts.MinPrompts
	if minPrompts <= 0 {
		minPrompts = 3
	}
	maxPrompts := opts.MaxPrompts
	if maxPrompts <= 0 {
		maxPrompts = 6
	}
	return &Engine{
		lib:        lib,
		pick:       pick,
		newID:      newID,
		now:        now,
		minPrompts: minPrompts,
		maxPrompts: maxPrompts,
	}, nil
}

// Score computes the confidence of t for scene, clamped to [0,100].
func Score(t Template, scene domain.SceneAnalysis) int {
	score := t.BaseConfidence
	for _, req := range t.Required {
		if !scene.HasElement(req) {
			score -= missingRequiredPenalty
		}
	}
	for _, opt := range t.Optional {
		if scene.HasElement(opt) {
			score += optionalBonus
		}
	}
	score += situationalBonus(t.Category, scene)
	return domain.ClampScore(score)
}

func situationalBonus(category domain.PromptCategory, scene domain.SceneAnalysis) int {
	switch category {
	case domain.CategoryLightingMatch:
		switch domain.CanonicalElement(scene.Layout.Lighting) {
		case domain.LightingNight, domain.LightingDark, domain.LightingDusk:
			return 15
		case domain.LightingIndoorWarm, domain.LightingIndoorCool:
			return 10
		}
	case domain.CategoryCameraAdaptive:
		camera := domain.CanonicalElement(scene.Layout.CameraType)
		grading := domain.CanonicalElement(scene.Layout.ColorGrading)
		switch {
		case camera == domain.CameraNightVision || grading == domain.GradingGreenTint:
			return 20
		case grading == domain.GradingBlackWhite || grading == domain.GradingGrayscale:
			return 15
		case grading != "" && grading != domain.GradingNeutral:
			return 10
		}
	case domain.CategoryPositionBased:
		if scene.IsOutdoor() {
			return 10
		}
		return 5
	}
	return 0
}

type scored struct {
	template Template
	score    int
}

// Generate produces the first batch of prompts for a scene. Lighting and
// camera templates only take part when the scene gives them something to
// adapt to. An empty result is reported as domain.ErrNoPrompts.
func (e *Engine) Generate(scene domain.SceneAnalysis) ([]domain.VideoPrompt, error) {
	candidates := make([]Template, 0, len(e.lib.Templates))
	for _, t := range e.lib.Templates {
		if initialCandidate(t, scene) {
			candidates = append(candidates, t)
		}
	}
	return e.materialize(scene, candidates, InitialThreshold, nil)
}

// GenerateMore re-scores the whole library with the supplementary threshold
// and avoids the variation each template used in previous.
func (e *Engine) GenerateMore(scene domain.SceneAnalysis, previous []domain.VideoPrompt) ([]domain.VideoPrompt, error) {
	used := make(map[string]int, len(previous))
	for _, p := range previous {
		if p.TemplateID != "" {
			used[p.TemplateID] = p.Variation
		}
	}
	return e.materialize(scene, e.lib.Templates, SupplementaryThreshold, used)
}

func initialCandidate(t Template, scene domain.SceneAnalysis) bool {
	switch t.Category {
	case domain.CategoryLightingMatch:
		switch domain.CanonicalElement(scene.Layout.Lighting) {
		case domain.LightingBright, domain.LightingDaylight:
			return false
		}
	case domain.CategoryCameraAdaptive:
		camera := domain.CanonicalElement(scene.Layout.CameraType)
		grading := domain.CanonicalElement(scene.Layout.ColorGrading)
		standardCamera := camera == "" || camera == domain.CameraStandard
		neutral := grading == "" || grading == domain.GradingNeutral
		return !(standardCamera && neutral)
	}
	return true
}

func (e *Engine) materialize(scene domain.SceneAnalysis, templates []Template, threshold int, usedVariation map[string]int) ([]domain.VideoPrompt, error) {
	ranked := make([]scored, 0, len(templates))
	for _, t := range templates {
		if s := Score(t, scene); s > threshold {
			ranked = append(ranked, scored{template: t, score: s})
		}
	}
	if len(ranked) == 0 {
		return nil, domain.ErrNoPrompts
	}
	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].score > ranked[j].score })

	limit := max(e.minPrompts, e.maxPrompts)
	if len(ranked) > limit {
		ranked = ranked[:limit]
	}

	now := e.now()
	prompts := make([]domain.VideoPrompt, 0, len(ranked))
	for _, c := range ranked {
		variation := e.pickVariation(c.template, usedVariation)
		elements := presentElements(c.template, scene)
		prompts = append(prompts, domain.VideoPrompt{
			ID:          e.newID(),
			AnalysisID:  scene.ID,
			TemplateID:  c.template.ID,
			Variation:   variation,
			Title:       e.Title(c.template.Description),
			Description: e.Compose(c.template.Variations[variation], scene),
			Tags:        append([]string(nil), elements...),
			Confidence:  c.score,
			Elements:    elements,
			Category:    c.template.Category,
			Duration:    c.template.Duration,
			CreatedAt:   now,
		})
	}
	return prompts, nil
}

func (e *Engine) pickVariation(t Template, used map[string]int) int {
	n := len(t.Variations)
	if n == 1 {
		return 0
	}
	prev, seen := used[t.ID]
	if !seen || prev < 0 || prev >= n {
		return clampIndex(e.pick(n), n)
	}
	idx := clampIndex(e.pick(n-1), n-1)
	if idx >= prev {
		idx++
	}
	return idx
}

func clampIndex(i, n int) int {
	if i < 0 {
		return 0
	}
	if i >= n {
		return n - 1
	}
	return i
}

// Compose builds the full prompt text: character frame, interpolated
// variation, lighting and camera phrases, an optional position phrase and the
// fixed suffix clauses.
func (e *Engine) Compose(variation string, scene domain.SceneAnalysis) string {
	action := strings.NewReplacer(
		"{door}", doorLabel(scene),
		"{furniture}", furnitureLabel(scene),
	).Replace(variation)

	parts := []string{e.lib.Character + " " + strings.TrimSpace(action)}
	if p := LightingPhrase(scene.Layout.Lighting); p != "" {
		parts = append(parts, p)
	}
	parts = append(parts, CameraPhrase(scene.Layout))
	if !encodesPosition(variation) {
		if p := PositionPhrase(scene); p != "" {
			parts = append(parts, p)
		}
	}
	parts = append(parts, joinClauses(e.lib.Suffix))
	return strings.Join(parts, ". ") + "."
}

func joinClauses(clauses []string) string {
	trimmed := make([]string, 0, len(clauses))
	for _, c := range clauses {
		if c = strings.TrimSpace(c); c != "" {
			trimmed = append(trimmed, c)
		}
	}
	switch len(trimmed) {
	case 0:
		return ""
	case 1:
		return trimmed[0]
	}
	return strings.Join(trimmed[:len(trimmed)-1], ", ") + " and " + trimmed[len(trimmed)-1]
}

// Title returns the leading clause of a template description in title case.
// Casers are stateful, so one is built per call.
func (e *Engine) Title(description string) string {
	lead := description
	if i := strings.IndexAny(lead, ",;.:"); i >= 0 {
		lead = lead[:i]
	}
	return cases.Title(language.English).String(strings.TrimSpace(lead))
}

func presentElements(t Template, scene domain.SceneAnalysis) []string {
	seen := map[string]struct{}{}
	out := []string{}
	for _, group := range [][]string{t.Required, t.Optional} {
		for _, el := range group {
			if _, dup := seen[el]; dup || !scene.HasElement(el) {
				continue
			}
			seen[el] = struct{}{}
			out = append(out, el)
		}
	}
	return out
}
