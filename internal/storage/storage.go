package storage

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"
	"time"
)

// ErrNotFound is returned when an object does not exist.
var ErrNotFound = errors.New("storage: object not found")

// Object describes a stored blob.
type Object struct {
	Key string
	// URL is a time-limited link suitable for handing to customers or to
	// the video provider.
	URL string
}

// ObjectStore persists blobs and hands out signed links to them.
type ObjectStore interface {
	Put(ctx context.Context, key string, data []byte, contentType string) (Object, error)
	SignedURL(ctx context.Context, key string, ttl time.Duration) (string, error)
	Remove(ctx context.Context, key string) error
}

// SourceImageKey is the key of the normalized photo behind an analysis.
func SourceImageKey(analysisID, ext string) string {
	if ext == "" {
		ext = ".jpg"
	}
	if !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	return path.Join("analyses", analysisID, "source"+ext)
}

// VideoKey is the deterministic key of an order's generated video. Retries
// overwrite the previous artifact instead of orphaning it.
func VideoKey(orderID string) string {
	return fmt.Sprintf("orders/%s/video.mp4", orderID)
}
