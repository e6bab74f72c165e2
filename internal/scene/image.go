package scene

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"net/http"
	"strings"

	"github.com/disintegration/imaging"

	"camclip/internal/domain"
)

// Upload limits for source photos.
const (
	MaxImageBytes  = 10 << 20
	MinImageSide   = 256
	MaxImageSide   = 2048
	jpegQuality    = 90
	normalizedMIME = "image/jpeg"
	normalizedExt  = ".jpg"
)

var acceptedTypes = map[string]struct{}{
	"image/jpeg": {},
	"image/png":  {},
}

// PreparedImage is a validated, orientation-corrected JPEG ready for storage
// and analysis.
type PreparedImage struct {
	Data        []byte
	ContentType string
	Extension   string
	Width       int
	Height      int
}

// Base64 returns the standard base64 encoding of the image bytes.
func (p *PreparedImage) Base64() string {
	return base64.StdEncoding.EncodeToString(p.Data)
}

// PrepareImage validates an upload and normalizes it: EXIF orientation is
// applied, the image is fitted into MaxImageSide and re-encoded as JPEG.
func PrepareImage(data []byte, declaredType string) (*PreparedImage, error) {
	if len(data) == 0 {
		return nil, domain.NewValidationError("image is empty", "Upload a JPEG or PNG photo of your doorway or room")
	}
	if len(data) > MaxImageBytes {
		return nil, domain.NewValidationError(
			fmt.Sprintf("image is larger than %d MB", MaxImageBytes>>20),
			"Compress the photo or export it at a lower resolution",
			"Screenshots of the camera app are usually small enough",
		)
	}

	detected := http.DetectContentType(data)
	if _, ok := acceptedTypes[detected]; !ok {
		return nil, domain.NewValidationError(
			fmt.Sprintf("unsupported image format %q", detected),
			"Upload a JPEG or PNG photo",
		)
	}
	declared := strings.ToLower(strings.TrimSpace(declaredType))
	if i := strings.Index(declared, ";"); i >= 0 {
		declared = strings.TrimSpace(declared[:i])
	}
	if declared != "" && declared != "application/octet-stream" {
		if _, ok := acceptedTypes[declared]; !ok {
			return nil, domain.NewValidationError(
				fmt.Sprintf("unsupported image format %q", declared),
				"Upload a JPEG or PNG photo",
			)
		}
	}

	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, domain.NewValidationError("image could not be decoded", "Make sure the file is a valid, uncorrupted photo")
	}
	bounds := img.Bounds()
	if min(bounds.Dx(), bounds.Dy()) < MinImageSide {
		return nil, domain.NewValidationError(
			fmt.Sprintf("image is too small (%dx%d)", bounds.Dx(), bounds.Dy()),
			fmt.Sprintf("Use a photo at least %d pixels on its shortest side", MinImageSide),
		)
	}

	if bounds.Dx() > MaxImageSide || bounds.Dy() > MaxImageSide {
		img = imaging.Fit(img, MaxImageSide, MaxImageSide, imaging.Lanczos)
	}

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(jpegQuality)); err != nil {
		return nil, fmt.Errorf("encode image: %w", err)
	}
	out := img.Bounds()
	return &PreparedImage{
		Data:        buf.Bytes(),
		ContentType: normalizedMIME,
		Extension:   normalizedExt,
		Width:       out.Dx(),
		Height:      out.Dy(),
	}, nil
}
