package domain

import (
	"strings"
	"time"
)

// Lighting categories reported by the scene analyzer.
const (
	LightingBright     = "bright"
	LightingDaylight   = "daylight"
	LightingDim        = "dim"
	LightingDusk       = "dusk"
	LightingNight      = "night"
	LightingDark       = "dark"
	LightingIndoorWarm = "indoor_warm"
	LightingIndoorCool = "indoor_cool"
)

// Visibility categories.
const (
	VisibilityGood = "good"
	VisibilityFair = "fair"
	VisibilityPoor = "poor"
)

// Scene and camera hints.
const (
	SceneIndoor  = "indoor"
	SceneOutdoor = "outdoor"

	CameraStandard    = "standard"
	CameraNightVision = "night_vision"
	CameraDoorbell    = "doorbell"
	CameraFisheye     = "fisheye"

	GradingNeutral    = "neutral"
	GradingGreenTint  = "green_tint"
	GradingBlackWhite = "black_white"
	GradingGrayscale  = "grayscale"
	GradingWarm       = "warm"
	GradingCool       = "cool"
	GradingSepia      = "sepia"
)

// Door describes a detected doorway.
type Door struct {
	Type     string `json:"type"`
	Position string `json:"position"`
	Material string `json:"material"`
	Color    string `json:"color"`
}

// Window describes a detected window.
type Window struct {
	Position string `json:"position"`
	Size     string `json:"size"`
}

// Decorations summarizes seasonal decorations in the scene.
type Decorations struct {
	HasChristmasTree bool     `json:"has_christmas_tree"`
	HasLights        bool     `json:"has_lights"`
	HasWreath        bool     `json:"has_wreath"`
	HasStockings     bool     `json:"has_stockings"`
	Items            []string `json:"items"`
}

// Any reports whether any decoration was detected.
func (d Decorations) Any() bool {
	return d.HasChristmasTree || d.HasLights || d.HasWreath || d.HasStockings || len(d.Items) > 0
}

// Layout captures the overall composition of the scene.
type Layout struct {
	EntryType    string `json:"entry_type"`
	Description  string `json:"description"`
	Lighting     string `json:"lighting"`
	Visibility   string `json:"visibility"`
	SceneType    string `json:"scene_type,omitempty"`
	CameraType   string `json:"camera_type,omitempty"`
	ColorGrading string `json:"color_grading,omitempty"`
}

// SceneAnalysis is the structured description of an uploaded image. It is
// created once per upload and never mutated afterwards.
type SceneAnalysis struct {
	ID               string      `json:"id"`
	ImagePath        string      `json:"image_path,omitempty"`
	Doors            []Door      `json:"doors"`
	Windows          []Window    `json:"windows"`
	Decorations      Decorations `json:"decorations"`
	Furniture        []string    `json:"furniture"`
	Plants           []string    `json:"plants"`
	Layout           Layout      `json:"layout"`
	SuitabilityScore int         `json:"suitability_score"`
	Recommendations  []string    `json:"recommendations"`
	CreatedAt        time.Time   `json:"created_at"`
}

// ClampScore bounds v to [0,100].
func ClampScore(v int) int {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}

// Elements returns the canonical names of every scene element detected in the
// analysis. Prompt templates reference these names.
func (s SceneAnalysis) Elements() []string {
	seen := make(map[string]struct{})
	var out []string
	add := func(name string) {
		name = CanonicalElement(name)
		if name == "" {
			return
		}
		if _, ok := seen[name]; ok {
			return
		}
		seen[name] = struct{}{}
		out = append(out, name)
	}
	for _, d := range s.Doors {
		add("door")
		if t := CanonicalElement(d.Type); t != "" && t != "door" {
			add(strings.TrimSuffix(t, "_door") + "_door")
		}
	}
	if len(s.Windows) > 0 {
		add("window")
	}
	for _, f := range s.Furniture {
		add(f)
	}
	if len(s.Plants) > 0 {
		add("plant")
	}
	if s.Decorations.Any() {
		add("decorations")
	}
	if s.Decorations.HasChristmasTree {
		add("christmas_tree")
	}
	if s.Decorations.HasLights {
		add("lights")
	}
	if s.Decorations.HasWreath {
		add("wreath")
	}
	if s.Decorations.HasStockings {
		add("stockings")
	}
	for _, item := range s.Decorations.Items {
		add(item)
	}
	if entry := CanonicalElement(s.Layout.EntryType); entry != "" {
		add(entry)
	}
	return out
}

// HasElement reports whether the named element was detected.
func (s SceneAnalysis) HasElement(name string) bool {
	name = CanonicalElement(name)
	for _, e := range s.Elements() {
		if e == name {
			return true
		}
	}
	return false
}

// ElementCount is the number of detected objects used for complexity
// classification: doors, windows, furniture, plants and decoration items.
func (s SceneAnalysis) ElementCount() int {
	count := len(s.Doors) + len(s.Windows) + len(s.Furniture) + len(s.Plants) + len(s.Decorations.Items)
	for _, flag := range []bool{s.Decorations.HasChristmasTree, s.Decorations.HasLights, s.Decorations.HasWreath, s.Decorations.HasStockings} {
		if flag {
			count++
		}
	}
	return count
}

// IsOutdoor reports whether the scene is outdoors.
func (s SceneAnalysis) IsOutdoor() bool {
	if strings.EqualFold(s.Layout.SceneType, SceneOutdoor) {
		return true
	}
	switch CanonicalElement(s.Layout.EntryType) {
	case "porch", "driveway", "garden", "yard", "patio":
		return s.Layout.SceneType == ""
	}
	return false
}

// CanonicalElement lower-cases and snake-cases an element name.
func CanonicalElement(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	name = strings.NewReplacer(" ", "_", "-", "_").Replace(name)
	return strings.Trim(name, "_")
}
