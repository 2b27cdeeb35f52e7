package auth

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/oauth2"
)

// Linear OAuth endpoints. The integration is a PKCE public client, so
// there is no client secret.
const (
	AuthorizeURL = "https://linear.app/oauth/authorize"
	TokenURL     = "https://api.linear.app/oauth/token"
)

// refreshWindow is how close to expiry a token may get before it is
// refreshed proactively.
const refreshWindow = 60 * time.Second

// APIKey is a static token source wrapping a Linear personal API key.
// Linear expects the key bare in the Authorization header.
type APIKey string

// Token returns the API key unchanged.
func (k APIKey) Token(_ context.Context) (string, error) {
	if k == "" {
		return "", fmt.Errorf("no API key configured")
	}
	return string(k), nil
}

// TokenStore persists OAuth tokens between runs.
type TokenStore interface {
	Load() (*oauth2.Token, error)
	Save(tok *oauth2.Token) error
}

// OAuthSource supplies OAuth access tokens, refreshing them when they
// are expired or within refreshWindow of expiry. Refreshed tokens are
// written back to the store.
type OAuthSource struct {
	conf  *oauth2.Config
	store TokenStore

	mu    sync.Mutex
	token *oauth2.Token
}

// NewOAuthSource loads the persisted token from the store and returns a
// source for it. Fails when no token has been stored yet.
func NewOAuthSource(clientID string, store TokenStore) (*OAuthSource, error) {
	tok, err := store.Load()
	if err != nil {
		return nil, fmt.Errorf("loading OAuth token: %w", err)
	}
	if tok.RefreshToken == "" && !tok.Valid() {
		return nil, fmt.Errorf("stored OAuth token is expired and has no refresh token")
	}

	return &OAuthSource{
		conf: &oauth2.Config{
			ClientID: clientID,
			Endpoint: oauth2.Endpoint{
				AuthURL:  AuthorizeURL,
				TokenURL: TokenURL,
			},
		},
		store: store,
		token: tok,
	}, nil
}

// Token returns a valid Authorization header value, refreshing the
// underlying token first when it is within refreshWindow of expiry.
func (s *OAuthSource) Token(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.needsRefresh() {
		if err := s.refreshLocked(ctx); err != nil {
			return "", err
		}
	}

	return "Bearer " + s.token.AccessToken, nil
}

// Refresh forces a token refresh regardless of expiry and returns the
// new Authorization header value.
func (s *OAuthSource) Refresh(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.refreshLocked(ctx); err != nil {
		return "", err
	}
	return "Bearer " + s.token.AccessToken, nil
}

// needsRefresh reports whether the current token is expired or about to
// expire. Tokens without an expiry never refresh proactively.
func (s *OAuthSource) needsRefresh() bool {
	if s.token.Expiry.IsZero() {
		return false
	}
	return time.Until(s.token.Expiry) <= refreshWindow
}

// refreshLocked exchanges the refresh token for a new access token and
// persists it. Callers must hold s.mu.
func (s *OAuthSource) refreshLocked(ctx context.Context) error {
	if s.token.RefreshToken == "" {
		return fmt.Errorf("token refresh failed: no refresh token")
	}

	// Hand oauth2 an already-expired copy so it performs the refresh
	// exchange instead of returning the cached token.
	stale := &oauth2.Token{
		RefreshToken: s.token.RefreshToken,
		Expiry:       time.Now().Add(-time.Minute),
	}

	fresh, err := s.conf.TokenSource(ctx, stale).Token()
	if err != nil {
		return fmt.Errorf("token refresh failed: %w", err)
	}

	if fresh.RefreshToken == "" {
		fresh.RefreshToken = s.token.RefreshToken
	}
	s.token = fresh

	if err := s.store.Save(fresh); err != nil {
		return fmt.Errorf("persisting refreshed token: %w", err)
	}

	return nil
}
