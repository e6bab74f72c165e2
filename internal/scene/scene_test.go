package scene

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"image"
	"image/color"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"camclip/internal/domain"
)

func TestStaticAnalyzerReturnsFallback(t *testing.T) {
	a := StaticAnalyzer{}.Analyze(context.Background(), "", "")
	assert.Equal(t, 50, a.SuitabilityScore)
	assert.Equal(t, domain.VisibilityPoor, a.Layout.Visibility)
	assert.Equal(t, domain.LightingDim, a.Layout.Lighting)
	require.Len(t, a.Doors, 1)
	assert.Contains(t, a.Recommendations[0], "manual review")
}

func TestOpenAIAnalyzerFallsBackOnFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":{"message":"upstream exploded","type":"server_error"}}`))
	}))
	defer srv.Close()

	var reasons []string
	analyzer, err := NewOpenAIAnalyzer(OpenAIOptions{
		APIKey:     "sk-test",
		BaseURL:    srv.URL,
		OnFallback: func(reason string, err error) { reasons = append(reasons, reason) },
	})
	require.NoError(t, err)

	a := analyzer.Analyze(context.Background(), "aGVsbG8=", "image/jpeg")
	assert.Equal(t, 50, a.SuitabilityScore)
	assert.Equal(t, domain.VisibilityPoor, a.Layout.Visibility)
	assert.Equal(t, []string{"request_failed"}, reasons)

	a = analyzer.Analyze(context.Background(), "", "image/jpeg")
	assert.Equal(t, 50, a.SuitabilityScore)
	assert.Equal(t, "empty_image", reasons[len(reasons)-1])
}

func TestOpenAIAnalyzerParsesAndNormalizes(t *testing.T) {
	content := `{"doors":[{"type":"Front Door","position":" Center ","material":"wood","color":"red"}],
"windows":[],"decorations":{"has_wreath":true,"items":["Garland","garland"]},
"furniture":["Bench","bench"],"plants":[],
"layout":{"entry_type":"Front Porch","description":"porch","lighting":"evening","visibility":"clear","scene_type":"outside","camera_type":"infrared","color_grading":"none"},
"suitability_score":132.4,"recommendations":[" keep porch light on ",""]}`

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req map[string]any
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "gpt-4o", req["model"])
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":      "chatcmpl-1",
			"object":  "chat.completion",
			"choices": []any{map[string]any{"index": 0, "message": map[string]any{"role": "assistant", "content": content}, "finish_reason": "stop"}},
		})
	}))
	defer srv.Close()

	analyzer, err := NewOpenAIAnalyzer(OpenAIOptions{APIKey: "sk-test", BaseURL: srv.URL})
	require.NoError(t, err)

	a := analyzer.Analyze(context.Background(), "aGVsbG8=", "image/png")
	assert.Equal(t, 100, a.SuitabilityScore)
	require.Len(t, a.Doors, 1)
	assert.Equal(t, "front_door", a.Doors[0].Type)
	assert.Equal(t, "center", a.Doors[0].Position)
	assert.Equal(t, domain.LightingDusk, a.Layout.Lighting)
	assert.Equal(t, domain.VisibilityGood, a.Layout.Visibility)
	assert.Equal(t, domain.SceneOutdoor, a.Layout.SceneType)
	assert.Equal(t, domain.CameraNightVision, a.Layout.CameraType)
	assert.Equal(t, domain.GradingNeutral, a.Layout.ColorGrading)
	assert.Equal(t, "front_porch", a.Layout.EntryType)
	assert.Equal(t, []string{"bench"}, a.Furniture)
	assert.Equal(t, []string{"garland"}, a.Decorations.Items)
	assert.Equal(t, []string{"keep porch light on"}, a.Recommendations)
	assert.True(t, a.HasElement("front_door"))
}

func TestParseRejectsGarbage(t *testing.T) {
	_, err := Parse("not json at all")
	require.Error(t, err)

	a, err := Parse("```json\n{\"suitability_score\": -5, \"layout\": {\"lighting\": \"???\"}}\n```")
	require.NoError(t, err)
	assert.Equal(t, 0, a.SuitabilityScore)
	assert.Equal(t, domain.LightingDim, a.Layout.Lighting)
	assert.Equal(t, domain.VisibilityFair, a.Layout.Visibility)
}

func encodeTestImage(t *testing.T, w, h int, format imaging.Format) []byte {
	t.Helper()
	img := imaging.New(w, h, color.NRGBA{R: 200, G: 30, B: 30, A: 255})
	var buf bytes.Buffer
	require.NoError(t, imaging.Encode(&buf, img, format))
	return buf.Bytes()
}

func TestPrepareImageNormalizes(t *testing.T) {
	raw := encodeTestImage(t, 3000, 1500, imaging.PNG)
	img, err := PrepareImage(raw, "image/png")
	require.NoError(t, err)

	assert.Equal(t, "image/jpeg", img.ContentType)
	assert.Equal(t, 2048, img.Width)
	assert.Equal(t, 1024, img.Height)

	decoded, _, err := image.DecodeConfig(bytes.NewReader(img.Data))
	require.NoError(t, err)
	assert.Equal(t, 2048, decoded.Width)
	assert.NotEmpty(t, img.Base64())
}

func TestPrepareImageKeepsSmallerImages(t *testing.T) {
	img, err := PrepareImage(encodeTestImage(t, 640, 480, imaging.JPEG), "")
	require.NoError(t, err)
	assert.Equal(t, 640, img.Width)
	assert.Equal(t, 480, img.Height)
}

func TestPrepareImageValidation(t *testing.T) {
	cases := []struct {
		name     string
		data     []byte
		declared string
	}{
		{"empty", nil, "image/png"},
		{"too small", encodeTestImage(t, 200, 800, imaging.PNG), "image/png"},
		{"gif", encodeTestImage(t, 300, 300, imaging.GIF), "image/gif"},
		{"declared heic", encodeTestImage(t, 300, 300, imaging.JPEG), "image/heic"},
		{"text", []byte("definitely not an image"), "text/plain"},
		{"oversized", make([]byte, MaxImageBytes+1), "image/jpeg"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := PrepareImage(tc.data, tc.declared)
			require.Error(t, err)
			require.ErrorIs(t, err, domain.ErrInvalidInput)
			var verr *domain.ValidationError
			require.True(t, errors.As(err, &verr))
			assert.NotEmpty(t, verr.Suggestions)
		})
	}
}
