package promptgen

import "camclip/internal/domain"

// ComplexityLevel classifies how much usable detail a scene has.
type ComplexityLevel string

const (
	ComplexityMinimal  ComplexityLevel = "minimal"
	ComplexityModerate ComplexityLevel = "moderate"
	ComplexityRich     ComplexityLevel = "rich"
)

// Complexity is reported back to the customer with improvement hints. It
// never gates generation.
type Complexity struct {
	Level        ComplexityLevel `json:"level"`
	ElementCount int             `json:"element_count"`
	Suggestions  []string        `json:"suggestions"`
}

// Classify maps a scene's element count to a complexity level.
func Classify(scene domain.SceneAnalysis) Complexity {
	count := scene.ElementCount()
	level := ComplexityRich
	switch {
	case count <= 2:
		level = ComplexityMinimal
	case count <= 5:
		level = ComplexityModerate
	}
	return Complexity{Level: level, ElementCount: count, Suggestions: Suggestions(scene, level)}
}

// Suggestions lists photo improvements for the given scene.
func Suggestions(scene domain.SceneAnalysis, level ComplexityLevel) []string {
	out := []string{}
	if level == ComplexityMinimal {
		out = append(out, "Capture a wider view of the room so more of the scene is visible")
	}
	if len(scene.Doors) == 0 {
		out = append(out, "Include a door in the frame so Santa has a natural entrance")
	}
	if !scene.Decorations.Any() {
		out = append(out, "Holiday decorations such as a tree or lights make the clip more festive")
	}
	switch domain.CanonicalElement(scene.Layout.Visibility) {
	case domain.VisibilityPoor:
		out = append(out, "Use a brighter or sharper photo for better results")
	case domain.VisibilityFair:
		out = append(out, "A slightly sharper photo will improve detail")
	}
	return out
}
