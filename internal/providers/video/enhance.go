package video

import (
	"strings"

	"camclip/internal/domain"
	"camclip/internal/promptgen"
)

const securityFraming = "Authentic home security camera footage from a fixed wall-mounted camera, realistic motion, no cuts"

// EnhancePrompt prepends security-camera framing and the same camera and
// lighting phrases the prompt engine uses, so the provider request matches
// the scene-aware prompt text.
func EnhancePrompt(prompt string, scene *domain.SceneAnalysis) string {
	prompt = strings.TrimSpace(prompt)
	if strings.HasPrefix(prompt, securityFraming) {
		return prompt
	}
	parts := []string{securityFraming}
	if scene != nil {
		camera := promptgen.CameraPhrase(scene.Layout)
		if !strings.Contains(prompt, camera) {
			parts = append(parts, camera)
		}
		if lighting := promptgen.LightingPhrase(scene.Layout.Lighting); lighting != "" && !strings.Contains(prompt, lighting) {
			parts = append(parts, lighting)
		}
	}
	if prompt != "" {
		parts = append(parts, prompt)
	}
	return strings.Join(parts, ". ")
}

// NormalizeDuration maps a requested clip length to the provider's "5" or
// "10" second values.
func NormalizeDuration(raw string) string {
	switch strings.TrimSuffix(strings.ToLower(strings.TrimSpace(raw)), "s") {
	case "10":
		return "10"
	}
	return "5"
}
