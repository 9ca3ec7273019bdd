package credentials

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"calmiverse/internal/infra"
	"calmiverse/internal/sqlinline"
)

const (
	ProviderElevenLabs = "elevenlabs"
	ProviderN8N        = "n8n"
)

// Store reads and writes third-party integration tokens. Tokens live in
// the database so they can be rotated without a redeploy; environment
// variables act as a bootstrap fallback at the call sites.
type Store struct {
	sql infra.SQLExecutor
}

func NewStore(sql infra.SQLExecutor) *Store {
	return &Store{sql: sql}
}

func (s *Store) ElevenLabsAPIKey(ctx context.Context) (string, error) {
	return s.Token(ctx, ProviderElevenLabs)
}

func (s *Store) N8NSigningSecret(ctx context.Context) (string, error) {
	return s.Token(ctx, ProviderN8N)
}

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

func (s *Store) SetElevenLabsAPIKey(ctx context.Context, key string) error {
	key = strings.TrimSpace(key)
	if key == "" {
		return errors.New("elevenlabs api key is required")
	}
	return s.upsert(ctx, ProviderElevenLabs, key, nil)
}

func (s *Store) SetN8NSigningSecret(ctx context.Context, secret string) error {
	secret = strings.TrimSpace(secret)
	if secret == "" {
		return errors.New("n8n signing secret is required")
	}
	return s.upsert(ctx, ProviderN8N, secret, nil)
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
