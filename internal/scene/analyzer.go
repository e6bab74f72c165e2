// Package scene turns an uploaded photo into a structured domain.SceneAnalysis.
package scene

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"

	"camclip/internal/domain"
)

// Analyzer describes a photo. Implementations never fail: any internal error
// yields Fallback().
type Analyzer interface {
	Analyze(ctx context.Context, imageBase64, mimeType string) domain.SceneAnalysis
}

const (
	fallbackSuitability = 50
	defaultVisionModel  = "gpt-4o"
	analyzeTimeout      = 45 * time.Second
)

// Fallback is the fixed analysis returned when the vision model cannot be used.
func Fallback() domain.SceneAnalysis {
	return domain.SceneAnalysis{
		Doors: []domain.Door{{Type: "generic", Position: "center", Material: "unknown", Color: "unknown"}},
		Layout: domain.Layout{
			EntryType:   "doorway",
			Description: "Scene could not be analyzed automatically",
			Lighting:    domain.LightingDim,
			Visibility:  domain.VisibilityPoor,
		},
		Windows:          []domain.Window{},
		Furniture:        []string{},
		Plants:           []string{},
		SuitabilityScore: fallbackSuitability,
		Recommendations:  []string{"Automatic analysis was unavailable, flagged for manual review"},
	}
}

// StaticAnalyzer always returns the fallback analysis. It is used when no
// vision credentials are configured.
type StaticAnalyzer struct{}

func (StaticAnalyzer) Analyze(ctx context.Context, imageBase64, mimeType string) domain.SceneAnalysis {
	return Fallback()
}

type OpenAIOptions struct {
	APIKey     string
	Model      string
	BaseURL    string
	Timeout    time.Duration
	OnFallback func(reason string, err error)
}

// OpenAIAnalyzer asks a vision chat model for a JSON scene description.
type OpenAIAnalyzer struct {
	client     *openai.Client
	model      string
	timeout    time.Duration
	onFallback func(reason string, err error)
}

func NewOpenAIAnalyzer(opts OpenAIOptions) (*OpenAIAnalyzer, error) {
	apiKey := strings.TrimSpace(opts.APIKey)
	if apiKey == "" {
		return nil, errors.New("openai api key is required")
	}
	cfg := openai.DefaultConfig(apiKey)
	if base := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/"); base != "" {
		cfg.BaseURL = base
	}
	model := strings.TrimSpace(opts.Model)
	if model == "" {
		model = defaultVisionModel
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = analyzeTimeout
	}
	return &OpenAIAnalyzer{
		client:     openai.NewClientWithConfig(cfg),
		model:      model,
		timeout:    timeout,
		onFallback: opts.OnFallback,
	}, nil
}

const systemPrompt = `You analyze photos taken by home security cameras. Describe the scene as JSON with keys:
doors (array of {type, position, material, color}), windows (array of {position, size}),
decorations ({has_christmas_tree, has_lights, has_wreath, has_stockings, items[]}),
furniture (array of strings), plants (array of strings),
layout ({entry_type, description, lighting, visibility, scene_type, camera_type, color_grading}),
suitability_score (0-100, how well a character could walk into this scene), recommendations (array of strings).
lighting is one of bright, daylight, dim, dusk, night, dark, indoor_warm, indoor_cool.
visibility is one of good, fair, poor. scene_type is indoor or outdoor.
camera_type is one of standard, night_vision, doorbell, fisheye.
color_grading is one of neutral, green_tint, black_white, grayscale, warm, cool, sepia.
Respond with JSON only.`

func (a *OpenAIAnalyzer) Analyze(ctx context.Context, imageBase64, mimeType string) domain.SceneAnalysis {
	if strings.TrimSpace(imageBase64) == "" {
		return a.useFallback("empty_image", nil)
	}
	if mimeType == "" {
		mimeType = "image/jpeg"
	}

	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	resp, err := a.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       a.model,
		Temperature: 0.2,
		MaxTokens:   1200,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{
				Role: openai.ChatMessageRoleUser,
				MultiContent: []openai.ChatMessagePart{
					{Type: openai.ChatMessagePartTypeText, Text: "Analyze this security camera frame."},
					{
						Type: openai.ChatMessagePartTypeImageURL,
						ImageURL: &openai.ChatMessageImageURL{
							URL:    "data:" + mimeType + ";base64," + imageBase64,
							Detail: openai.ImageURLDetailHigh,
						},
					},
				},
			},
		},
	})
	if err != nil {
		return a.useFallback("request_failed", err)
	}
	if len(resp.Choices) == 0 {
		return a.useFallback("empty_response", nil)
	}

	analysis, err := Parse(resp.Choices[0].Message.Content)
	if err != nil {
		return a.useFallback("invalid_json", err)
	}
	return analysis
}

func (a *OpenAIAnalyzer) useFallback(reason string, err error) domain.SceneAnalysis {
	if a.onFallback != nil {
		a.onFallback(reason, err)
	}
	return Fallback()
}

type modelScene struct {
	Doors       []domain.Door      `json:"doors"`
	Windows     []domain.Window    `json:"windows"`
	Decorations domain.Decorations `json:"decorations"`
	Furniture   []string           `json:"furniture"`
	Plants      []string           `json:"plants"`
	Layout      domain.Layout      `json:"layout"`
	Suitability float64            `json:"suitability_score"`
	Recs        []string           `json:"recommendations"`
}

// Parse decodes model output, tolerating markdown code fences, and repairs
// it with Normalize.
func Parse(content string) (domain.SceneAnalysis, error) {
	content = strings.TrimSpace(content)
	content = strings.TrimPrefix(content, "```json")
	content = strings.TrimPrefix(content, "```")
	content = strings.TrimSuffix(content, "```")
	content = strings.TrimSpace(content)
	if content == "" {
		return domain.SceneAnalysis{}, errors.New("empty scene description")
	}

	var raw modelScene
	if err := json.Unmarshal([]byte(content), &raw); err != nil {
		return domain.SceneAnalysis{}, fmt.Errorf("decode scene description: %w", err)
	}
	return Normalize(domain.SceneAnalysis{
		Doors:            raw.Doors,
		Windows:          raw.Windows,
		Decorations:      raw.Decorations,
		Furniture:        raw.Furniture,
		Plants:           raw.Plants,
		Layout:           raw.Layout,
		SuitabilityScore: int(math.Round(raw.Suitability)),
		Recommendations:  raw.Recs,
	}), nil
}

var lightingAliases = map[string]string{
	"bright":       domain.LightingBright,
	"well_lit":     domain.LightingBright,
	"daylight":     domain.LightingDaylight,
	"day":          domain.LightingDaylight,
	"natural":      domain.LightingDaylight,
	"dim":          domain.LightingDim,
	"low":          domain.LightingDim,
	"low_light":    domain.LightingDim,
	"dusk":         domain.LightingDusk,
	"evening":      domain.LightingDusk,
	"twilight":     domain.LightingDusk,
	"night":        domain.LightingNight,
	"nighttime":    domain.LightingNight,
	"dark":         domain.LightingDark,
	"indoor_warm":  domain.LightingIndoorWarm,
	"warm":         domain.LightingIndoorWarm,
	"indoor_cool":  domain.LightingIndoorCool,
	"cool":         domain.LightingIndoorCool,
	"fluorescent":  domain.LightingIndoorCool,
	"artificial":   domain.LightingIndoorWarm,
	"indoor":       domain.LightingIndoorWarm,
	"overcast":     domain.LightingDim,
	"bright_light": domain.LightingBright,
}

var gradingAliases = map[string]string{
	"neutral":         domain.GradingNeutral,
	"none":            domain.GradingNeutral,
	"normal":          domain.GradingNeutral,
	"green":           domain.GradingGreenTint,
	"green_tint":      domain.GradingGreenTint,
	"black_and_white": domain.GradingBlackWhite,
	"black_white":     domain.GradingBlackWhite,
	"bw":              domain.GradingBlackWhite,
	"monochrome":      domain.GradingGrayscale,
	"grayscale":       domain.GradingGrayscale,
	"greyscale":       domain.GradingGrayscale,
	"warm":            domain.GradingWarm,
	"cool":            domain.GradingCool,
	"sepia":           domain.GradingSepia,
}

var cameraAliases = map[string]string{
	"standard":     domain.CameraStandard,
	"normal":       domain.CameraStandard,
	"security":     domain.CameraStandard,
	"night_vision": domain.CameraNightVision,
	"infrared":     domain.CameraNightVision,
	"ir":           domain.CameraNightVision,
	"doorbell":     domain.CameraDoorbell,
	"fisheye":      domain.CameraFisheye,
	"wide_angle":   domain.CameraFisheye,
}

// Normalize canonicalizes enums, trims and deduplicates lists and clamps the
// suitability score.
func Normalize(a domain.SceneAnalysis) domain.SceneAnalysis {
	doors := make([]domain.Door, 0, len(a.Doors))
	for _, d := range a.Doors {
		d.Type = domain.CanonicalElement(d.Type)
		if d.Type == "" {
			d.Type = "generic"
		}
		d.Position = strings.ToLower(strings.TrimSpace(d.Position))
		d.Material = strings.TrimSpace(d.Material)
		d.Color = strings.TrimSpace(d.Color)
		doors = append(doors, d)
	}
	a.Doors = doors

	windows := make([]domain.Window, 0, len(a.Windows))
	for _, w := range a.Windows {
		w.Position = strings.ToLower(strings.TrimSpace(w.Position))
		w.Size = strings.ToLower(strings.TrimSpace(w.Size))
		windows = append(windows, w)
	}
	a.Windows = windows

	a.Furniture = dedupe(a.Furniture)
	a.Plants = dedupe(a.Plants)
	a.Decorations.Items = dedupe(a.Decorations.Items)
	a.Recommendations = trimAll(a.Recommendations)

	a.Layout.EntryType = domain.CanonicalElement(a.Layout.EntryType)
	a.Layout.Description = strings.TrimSpace(a.Layout.Description)
	a.Layout.Lighting = lookup(lightingAliases, a.Layout.Lighting, domain.LightingDim)
	a.Layout.Visibility = normalizeVisibility(a.Layout.Visibility)
	a.Layout.CameraType = lookup(cameraAliases, a.Layout.CameraType, "")
	a.Layout.ColorGrading = lookup(gradingAliases, a.Layout.ColorGrading, "")
	switch domain.CanonicalElement(a.Layout.SceneType) {
	case domain.SceneIndoor, "inside", "interior":
		a.Layout.SceneType = domain.SceneIndoor
	case domain.SceneOutdoor, "outside", "exterior":
		a.Layout.SceneType = domain.SceneOutdoor
	default:
		a.Layout.SceneType = ""
	}

	a.SuitabilityScore = domain.ClampScore(a.SuitabilityScore)
	return a
}

func lookup(table map[string]string, value, fallback string) string {
	key := domain.CanonicalElement(value)
	if v, ok := table[key]; ok {
		return v
	}
	return fallback
}

func normalizeVisibility(v string) string {
	switch domain.CanonicalElement(v) {
	case domain.VisibilityGood, "excellent", "clear", "high":
		return domain.VisibilityGood
	case domain.VisibilityPoor, "bad", "low", "obstructed":
		return domain.VisibilityPoor
	}
	return domain.VisibilityFair
}

func dedupe(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, v := range in {
		v = strings.ToLower(strings.TrimSpace(v))
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}

func trimAll(in []string) []string {
	out := make([]string, 0, len(in))
	for _, v := range in {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}
