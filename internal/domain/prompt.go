package domain

import "time"

// PromptCategory enumerates the fixed prompt categories.
type PromptCategory string

const (
	CategoryLightingMatch  PromptCategory = "lighting_match"
	CategoryPositionBased  PromptCategory = "position_based"
	CategoryCameraAdaptive PromptCategory = "camera_adaptive"
	CategoryEntrance       PromptCategory = "entrance"
	CategoryDelivery       PromptCategory = "delivery"
	CategoryMagical        PromptCategory = "magical"
	CategoryInteractive    PromptCategory = "interactive"
	CategoryDeparture      PromptCategory = "departure"
)

var promptCategories = map[PromptCategory]struct{}{
	CategoryLightingMatch:  {},
	CategoryPositionBased:  {},
	CategoryCameraAdaptive: {},
	CategoryEntrance:       {},
	CategoryDelivery:       {},
	CategoryMagical:        {},
	CategoryInteractive:    {},
	CategoryDeparture:      {},
}

// Valid reports whether c belongs to the fixed enumeration.
func (c PromptCategory) Valid() bool {
	_, ok := promptCategories[c]
	return ok
}

// DurationClass is the pacing hint attached to a prompt.
type DurationClass string

const (
	DurationQuick     DurationClass = "quick"
	DurationMedium    DurationClass = "medium"
	DurationLingering DurationClass = "lingering"
)

// Valid reports whether d is empty or a known duration class.
func (d DurationClass) Valid() bool {
	switch d {
	case "", DurationQuick, DurationMedium, DurationLingering:
		return true
	}
	return false
}

// Prompt text bounds for user edits.
const (
	MinPromptTextLength = 20
	MaxPromptTextLength = 2000
)

// VideoPrompt is one candidate instruction for the video generator.
type VideoPrompt struct {
	ID           string         `json:"id"`
	AnalysisID   string         `json:"analysis_id"`
	TemplateID   string         `json:"template_id"`
	Variation    int            `json:"variation"`
	Title        string         `json:"title"`
	Description  string         `json:"description"`
	Tags         []string       `json:"tags"`
	Confidence   int            `json:"confidence"`
	Elements     []string       `json:"elements"`
	Category     PromptCategory `json:"category"`
	Duration     DurationClass  `json:"duration,omitempty"`
	IsSelected   bool           `json:"is_selected"`
	IsUserEdited bool           `json:"is_user_edited"`
	CreatedAt    time.Time      `json:"created_at"`
}
