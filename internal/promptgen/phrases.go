package promptgen

import (
	"strings"

	"camclip/internal/domain"
)

// LightingPhrase describes the scene lighting for the video model. The video
// client reuses it when enhancing prompts so both stay consistent.
func LightingPhrase(lighting string) string {
	switch domain.CanonicalElement(lighting) {
	case domain.LightingBright, domain.LightingDaylight:
		return "The scene is evenly lit by bright natural light"
	case domain.LightingDim:
		return "Soft dim ambient light leaves gentle shadows across the scene"
	case domain.LightingDusk:
		return "Fading dusk light casts long blue shadows"
	case domain.LightingNight, domain.LightingDark:
		return "The scene is dark, lit only by a faint ambient glow"
	case domain.LightingIndoorWarm:
		return "Warm indoor lamplight gives the room an amber glow"
	case domain.LightingIndoorCool:
		return "Cool indoor lighting gives the room a crisp white tone"
	}
	return ""
}

// CameraPhrase describes camera and color-grading characteristics.
func CameraPhrase(layout domain.Layout) string {
	grading := domain.CanonicalElement(layout.ColorGrading)
	camera := domain.CanonicalElement(layout.CameraType)

	switch {
	case camera == domain.CameraNightVision || grading == domain.GradingGreenTint:
		return "Rendered as grainy green-tinted night-vision footage"
	case grading == domain.GradingBlackWhite || grading == domain.GradingGrayscale:
		return "Rendered as grainy black-and-white surveillance footage"
	}

	var phrase string
	switch camera {
	case domain.CameraFisheye:
		phrase = "Seen through a wide fisheye security lens with curved edges"
	case domain.CameraDoorbell:
		phrase = "Seen from a doorbell camera mounted at chest height"
	default:
		phrase = "Captured by a fixed high-angle home security camera"
	}
	if grading != "" && grading != domain.GradingNeutral {
		phrase += " with a " + strings.ReplaceAll(grading, "_", " ") + " color cast"
	}
	return phrase
}

var positionKeywords = []string{
	"left", "right", "center", "centre", "middle", "foreground", "background",
	"corner", "beside", "next to", "in front of", "behind",
}

func encodesPosition(variation string) bool {
	lower := strings.ToLower(variation)
	for _, kw := range positionKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

// PositionPhrase anchors the subject to the first detected door, falling back
// to the first piece of furniture.
func PositionPhrase(scene domain.SceneAnalysis) string {
	if len(scene.Doors) > 0 {
		d := scene.Doors[0]
		switch pos := strings.ToLower(strings.TrimSpace(d.Position)); pos {
		case "":
		case "center", "centre", "middle":
			return "He stays near the " + doorLabel(scene) + " in the center of the frame"
		default:
			return "He stays near the " + doorLabel(scene) + " on the " + pos + " side of the frame"
		}
		return "He stays near the " + doorLabel(scene)
	}
	if len(scene.Furniture) > 0 {
		return "He stays close to the " + strings.TrimSpace(scene.Furniture[0])
	}
	return ""
}

func doorLabel(scene domain.SceneAnalysis) string {
	if len(scene.Doors) == 0 {
		return "door"
	}
	t := strings.TrimSpace(strings.ReplaceAll(scene.Doors[0].Type, "_", " "))
	t = strings.TrimSuffix(strings.ToLower(t), " door")
	if t == "" || t == "door" || t == "generic" {
		return "door"
	}
	return t + " door"
}

func furnitureLabel(scene domain.SceneAnalysis) string {
	if len(scene.Furniture) > 0 {
		return "the " + strings.TrimSpace(scene.Furniture[0])
	}
	return "the room"
}
