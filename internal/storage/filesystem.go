package storage

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// ErrInvalidSignature is returned for expired or tampered file links.
var ErrInvalidSignature = errors.New("storage: invalid or expired signature")

// FileStore persists objects onto the local filesystem and serves them back
// through HMAC-signed links. It is intended for development and single-node
// deployments where an object storage service is not available.
type FileStore struct {
	basePath string
	baseURL  string
	secret   []byte
	ttl      time.Duration
	now      func() time.Time
}

// FileStoreOptions configures a FileStore.
type FileStoreOptions struct {
	BasePath string
	// BaseURL is the public prefix the files handler is mounted on.
	BaseURL string
	Secret  string
	TTL     time.Duration
	Now     func() time.Time
}

// NewFileStore initializes a FileStore rooted at opts.BasePath.
func NewFileStore(opts FileStoreOptions) (*FileStore, error) {
	basePath := strings.TrimSpace(opts.BasePath)
	if basePath == "" {
		return nil, errors.New("storage: base path is required")
	}
	if strings.TrimSpace(opts.Secret) == "" {
		return nil, errors.New("storage: signing secret is required")
	}
	if err := os.MkdirAll(basePath, 0o755); err != nil {
		return nil, fmt.Errorf("storage: ensure base path: %w", err)
	}
	ttl := opts.TTL
	if ttl <= 0 {
		ttl = time.Hour
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &FileStore{
		basePath: basePath,
		baseURL:  strings.TrimRight(opts.BaseURL, "/"),
		secret:   []byte(opts.Secret),
		ttl:      ttl,
		now:      now,
	}, nil
}

// BasePath returns the configured root directory.
func (s *FileStore) BasePath() string {
	if s == nil {
		return ""
	}
	return s.basePath
}

// Put writes data under key and returns the object with a signed link.
func (s *FileStore) Put(ctx context.Context, key string, data []byte, _ string) (Object, error) {
	cleanKey, err := s.Write(ctx, key, data)
	if err != nil {
		return Object{}, err
	}
	link, err := s.SignedURL(ctx, cleanKey, s.ttl)
	if err != nil {
		return Object{}, err
	}
	return Object{Key: cleanKey, URL: link}, nil
}

// Write persists the provided bytes at the given relative key and returns the
// canonicalized storage key. Keys are cleaned to prevent directory traversal.
func (s *FileStore) Write(ctx context.Context, key string, data []byte) (string, error) {
	if s == nil {
		return "", errors.New("storage: no store configured")
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	cleanKey, err := sanitizeKey(key)
	if err != nil {
		return "", err
	}
	fullPath := s.fullPath(cleanKey)
	if err := os.MkdirAll(filepath.Dir(fullPath), 0o755); err != nil {
		return "", fmt.Errorf("storage: ensure directory: %w", err)
	}
	tmp := fullPath + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return "", fmt.Errorf("storage: write file: %w", err)
	}
	if err := os.Rename(tmp, fullPath); err != nil {
		_ = os.Remove(tmp)
		return "", fmt.Errorf("storage: commit file: %w", err)
	}
	return cleanKey, nil
}

// SignedURL returns {baseURL}/{key}?expires=..&sig=.. valid for ttl.
func (s *FileStore) SignedURL(_ context.Context, key string, ttl time.Duration) (string, error) {
	cleanKey, err := sanitizeKey(key)
	if err != nil {
		return "", err
	}
	if ttl <= 0 {
		ttl = s.ttl
	}
	expires := s.now().Add(ttl).Unix()
	q := url.Values{}
	q.Set("expires", strconv.FormatInt(expires, 10))
	q.Set("sig", s.sign(cleanKey, expires))
	return s.baseURL + "/" + escapeKey(cleanKey) + "?" + q.Encode(), nil
}

// Verify checks a signed link's query parameters for key.
func (s *FileStore) Verify(key, expires, sig string) error {
	cleanKey, err := sanitizeKey(key)
	if err != nil {
		return ErrInvalidSignature
	}
	exp, err := strconv.ParseInt(expires, 10, 64)
	if err != nil || s.now().Unix() > exp {
		return ErrInvalidSignature
	}
	want := s.sign(cleanKey, exp)
	if !hmac.Equal([]byte(want), []byte(sig)) {
		return ErrInvalidSignature
	}
	return nil
}

// Open returns the stored file for key. Callers close it.
func (s *FileStore) Open(key string) (*os.File, error) {
	cleanKey, err := sanitizeKey(key)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(s.fullPath(cleanKey))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrNotFound
	}
	return f, err
}

// Remove deletes the object; a missing object is not an error.
func (s *FileStore) Remove(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	cleanKey, err := sanitizeKey(key)
	if err != nil {
		return err
	}
	if err := os.Remove(s.fullPath(cleanKey)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("storage: remove file: %w", err)
	}
	return nil
}

func (s *FileStore) fullPath(cleanKey string) string {
	return filepath.Join(s.basePath, filepath.FromSlash(cleanKey))
}

func (s *FileStore) sign(key string, expires int64) string {
	mac := hmac.New(sha256.New, s.secret)
	mac.Write([]byte(key))
	mac.Write([]byte{'\n'})
	mac.Write([]byte(strconv.FormatInt(expires, 10)))
	return hex.EncodeToString(mac.Sum(nil))
}

func escapeKey(key string) string {
	parts := strings.Split(key, "/")
	for i, p := range parts {
		parts[i] = url.PathEscape(p)
	}
	return strings.Join(parts, "/")
}

// sanitizeKey normalizes a key and prevents escaping the storage root.
func sanitizeKey(key string) (string, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return "", errors.New("storage: key is required")
	}
	key = strings.ReplaceAll(key, "\\", "/")
	key = strings.TrimPrefix(key, "./")
	key = strings.TrimLeft(key, "/")
	cleaned := filepath.ToSlash(filepath.Clean(key))
	if cleaned == "." || cleaned == ".." || strings.HasPrefix(cleaned, "../") {
		return "", errors.New("storage: invalid key")
	}
	return cleaned, nil
}

var _ ObjectStore = (*FileStore)(nil)
