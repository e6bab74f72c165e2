// Package credentials keeps provider API keys in the integration_tokens
// table so they can be rotated without redeploying.
package credentials

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"camclip/internal/infra"
	"camclip/internal/sqlinline"
)

const (
	ProviderFreepik = "freepik"
	ProviderOpenAI  = "openai"
	ProviderStripe  = "stripe"
)

// Providers lists the providers whose keys may be stored.
var Providers = []string{ProviderFreepik, ProviderOpenAI, ProviderStripe}

// IsKnownProvider reports whether provider is one of Providers.
func IsKnownProvider(provider string) bool {
	for _, p := range Providers {
		if p == provider {
			return true
		}
	}
	return false
}

type Store struct {
	sql infra.SQLExecutor
	now func() time.Time
}

func NewStore(sql infra.SQLExecutor) *Store {
	return &Store{sql: sql, now: time.Now}
}

// Token returns the stored key for provider, or "" when none is stored or
// the stored key was revoked.
func (s *Store) Token(ctx context.Context, provider string) (string, error) {
	row := s.sql.QueryRow(ctx, sqlinline.QSelectIntegrationToken, provider)
	var token string
	if err := row.Scan(&token); err != nil {
		if infra.IsNoRows(err) {
			return "", nil
		}
		return "", err
	}
	return strings.TrimSpace(token), nil
}

// Resolve prefers the configured value and falls back to the stored token.
func (s *Store) Resolve(ctx context.Context, provider, configured string) (string, error) {
	if v := strings.TrimSpace(configured); v != "" {
		return v, nil
	}
	if s == nil {
		return "", nil
	}
	return s.Token(ctx, provider)
}

// SetToken stores key for provider, replacing any previous value.
func (s *Store) SetToken(ctx context.Context, provider, key string) error {
	provider = strings.ToLower(strings.TrimSpace(provider))
	if !IsKnownProvider(provider) {
		return fmt.Errorf("unsupported provider %q", provider)
	}
	key = strings.TrimSpace(key)
	if key == "" {
		return fmt.Errorf("%s api key is required", provider)
	}
	return s.upsert(ctx, provider, key, map[string]any{
		"rotated_at": s.now().UTC().Format(time.RFC3339),
		"key_suffix": suffix(key),
	})
}

// Revoke disables the stored key for provider without deleting its row.
// Resolve then falls back to the configured value only.
func (s *Store) Revoke(ctx context.Context, provider string) error {
	provider = strings.ToLower(strings.TrimSpace(provider))
	if !IsKnownProvider(provider) {
		return fmt.Errorf("unsupported provider %q", provider)
	}
	tag, err := s.sql.Exec(ctx, sqlinline.QRevokeIntegrationToken, provider, s.now().UTC().Format(time.RFC3339))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("no %s api key stored", provider)
	}
	return nil
}

func (s *Store) upsert(ctx context.Context, provider, token string, props map[string]any) error {
	payload := props
	if payload == nil {
		payload = map[string]any{}
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	_, err = s.sql.Exec(ctx, sqlinline.QUpsertIntegrationToken, provider, token, raw)
	return err
}

func suffix(key string) string {
	if len(key) <= 4 {
		return ""
	}
	return key[len(key)-4:]
}
