// Package drive uploads certificate attachments to Google Drive and manages
// the OAuth credentials of the Drive account.
package drive

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

// Scope grants full Drive access; uploads go to shared folders the account
// does not own.
const Scope = "https://www.googleapis.com/auth/drive"

// ErrNoRefreshToken is returned when no long-lived credential is configured.
var ErrNoRefreshToken = errors.New("no refresh token configured")

// NewOAuthConfig returns the OAuth client configuration for the Drive account.
func NewOAuthConfig(clientID, clientSecret string) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		Endpoint:     google.Endpoint,
		Scopes:       []string{Scope},
	}
}

// CredentialStore exchanges a long-lived refresh token for short-lived
// access tokens and caches the current one. It is an oauth2.TokenSource, so
// HTTP clients built from it always send the cached token.
type CredentialStore struct {
	conf *oauth2.Config
	ctx  context.Context

	mu           sync.Mutex
	refreshToken string
	token        *oauth2.Token
}

// NewCredentialStore returns a store for the given client and refresh token.
// ctx is used for exchanges triggered through Token.
func NewCredentialStore(ctx context.Context, conf *oauth2.Config, refreshToken string) *CredentialStore {
	return &CredentialStore{conf: conf, ctx: ctx, refreshToken: refreshToken}
}

// Token returns the cached access token, exchanging the refresh token when
// the cache is empty or expired.
func (c *CredentialStore) Token() (*oauth2.Token, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.token.Valid() {
		return c.token, nil
	}
	return c.exchangeLocked(c.ctx)
}

// Refresh discards the cached access token and exchanges the refresh token
// for a new one, even if the cached token has not expired.
func (c *CredentialStore) Refresh(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.token = nil
	_, err := c.exchangeLocked(ctx)
	return err
}

func (c *CredentialStore) exchangeLocked(ctx context.Context) (*oauth2.Token, error) {
	if c.refreshToken == "" {
		return nil, ErrNoRefreshToken
	}

	tok, err := c.conf.TokenSource(ctx, &oauth2.Token{RefreshToken: c.refreshToken}).Token()
	if err != nil {
		return nil, fmt.Errorf("refresh access token: %w", err)
	}
	// Providers may rotate the refresh token.
	if tok.RefreshToken != "" {
		c.refreshToken = tok.RefreshToken
	}
	c.token = tok
	return tok, nil
}
