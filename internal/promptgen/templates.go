package promptgen

import (
	_ "embed"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"

	"camclip/internal/domain"
)

//go:embed templates.yaml
var defaultLibrary []byte

// Template is one entry of the prompt library.
type Template struct {
	ID             string                `yaml:"id"`
	Category       domain.PromptCategory `yaml:"category"`
	Description    string                `yaml:"description"`
	Required       []string              `yaml:"required"`
	Optional       []string              `yaml:"optional"`
	BaseConfidence int                   `yaml:"base_confidence"`
	Duration       domain.DurationClass  `yaml:"duration"`
	Variations     []string              `yaml:"variations"`
}

// Library is the template set plus the fixed character frame and suffix
// clauses applied to every prompt.
type Library struct {
	Character string     `yaml:"character"`
	Suffix    []string   `yaml:"suffix"`
	Templates []Template `yaml:"templates"`
}

// DefaultLibrary parses the embedded templates.yaml.
func DefaultLibrary() (*Library, error) {
	return ParseLibrary(defaultLibrary)
}

// ParseLibrary decodes and validates a YAML template library.
func ParseLibrary(raw []byte) (*Library, error) {
	var lib Library
	if err := yaml.Unmarshal(raw, &lib); err != nil {
		return nil, fmt.Errorf("decode template library: %w", err)
	}
	lib.Character = strings.TrimSpace(lib.Character)
	if lib.Character == "" {
		return nil, fmt.Errorf("template library: character frame is required")
	}
	if len(lib.Suffix) == 0 {
		return nil, fmt.Errorf("template library: suffix clauses are required")
	}
	if len(lib.Templates) == 0 {
		return nil, fmt.Errorf("template library: no templates")
	}

	seen := map[string]struct{}{}
	for i := range lib.Templates {
		t := &lib.Templates[i]
		if t.ID == "" {
			return nil, fmt.Errorf("template %d: id is required", i)
		}
		if _, dup := seen[t.ID]; dup {
			return nil, fmt.Errorf("template %s: duplicate id", t.ID)
		}
		seen[t.ID] = struct{}{}
		if !t.Category.Valid() {
			return nil, fmt.Errorf("template %s: unknown category %q", t.ID, t.Category)
		}
		if !t.Duration.Valid() {
			return nil, fmt.Errorf("template %s: unknown duration %q", t.ID, t.Duration)
		}
		if t.BaseConfidence < 0 || t.BaseConfidence > 100 {
			return nil, fmt.Errorf("template %s: base confidence %d out of range", t.ID, t.BaseConfidence)
		}
		if len(t.Variations) == 0 {
			return nil, fmt.Errorf("template %s: at least one variation is required", t.ID)
		}
		t.Required = canonicalList(t.Required)
		t.Optional = canonicalList(t.Optional)
	}
	return &lib, nil
}

func canonicalList(in []string) []string {
	out := make([]string, 0, len(in))
	for _, v := range in {
		if c := domain.CanonicalElement(v); c != "" {
			out = append(out, c)
		}
	}
	return out
}
