// Package supaauth validates Supabase session tokens against the
// Supabase Auth API and maps them to platform identities.
package supaauth

import (
	"context"
	"fmt"

	"github.com/supabase-community/supabase-go"

	"calmiverse/internal/domain"
)

// Identity is the subset of the Supabase user we care about.
type Identity struct {
	SupabaseID string
	Email      string
	Name       string
}

// Verifier exchanges a Supabase access token for an identity.
type Verifier interface {
	Verify(ctx context.Context, accessToken string) (Identity, error)
}

type Client struct {
	sb *supabase.Client
}

func New(url, anonKey string) (*Client, error) {
	sb, err := supabase.NewClient(url, anonKey, &supabase.ClientOptions{})
	if err != nil {
		return nil, fmt.Errorf("supabase client: %w", err)
	}
	return &Client{sb: sb}, nil
}

// Verify calls the Auth API with the user's access token. Any failure is
// reported as an authorization error: an expired or revoked token and a
// malformed one are indistinguishable to callers.
func (c *Client) Verify(ctx context.Context, accessToken string) (Identity, error) {
	if err := ctx.Err(); err != nil {
		return Identity{}, err
	}
	if accessToken == "" {
		return Identity{}, domain.ErrUnauthorized
	}

	user, err := c.sb.Auth.WithToken(accessToken).GetUser()
	if err != nil {
		return Identity{}, fmt.Errorf("%w: %v", domain.ErrUnauthorized, err)
	}

	name, _ := user.UserMetadata["full_name"].(string)
	if name == "" {
		name, _ = user.UserMetadata["name"].(string)
	}
	return Identity{
		SupabaseID: user.ID.String(),
		Email:      user.Email,
		Name:       name,
	}, nil
}

var _ Verifier = (*Client)(nil)
