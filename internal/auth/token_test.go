package auth

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

// memStore keeps the token in memory for tests.
type memStore struct {
	token *oauth2.Token
	saves int
}

func (m *memStore) Load() (*oauth2.Token, error) {
	if m.token == nil {
		return nil, fmt.Errorf("no token stored")
	}
	return m.token, nil
}

func (m *memStore) Save(tok *oauth2.Token) error {
	m.token = tok
	m.saves++
	return nil
}

// newTokenEndpoint serves the OAuth refresh exchange.
func newTokenEndpoint(t *testing.T, accessToken, refreshToken string) (*httptest.Server, *int) {
	t.Helper()

	var calls int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "refresh_token", r.Form.Get("grant_type"))

		w.Header().Set("Content-Type", "application/json")
		body := fmt.Sprintf(`{"access_token": %q, "token_type": "Bearer", "expires_in": 3600`, accessToken)
		if refreshToken != "" {
			body += fmt.Sprintf(`, "refresh_token": %q`, refreshToken)
		}
		body += "}"
		fmt.Fprint(w, body)
	}))
	t.Cleanup(server.Close)
	return server, &calls
}

// testSource builds an OAuthSource against a local token endpoint.
func testSource(tokenURL string, store TokenStore, tok *oauth2.Token) *OAuthSource {
	return &OAuthSource{
		conf: &oauth2.Config{
			ClientID: "client-1",
			Endpoint: oauth2.Endpoint{
				AuthURL:  AuthorizeURL,
				TokenURL: tokenURL,
			},
		},
		store: store,
		token: tok,
	}
}

func TestAPIKey_Token(t *testing.T) {
	t.Parallel()

	tok, err := APIKey("lin_api_abc").Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "lin_api_abc", tok)

	_, err = APIKey("").Token(context.Background())
	require.Error(t, err)
}

func TestNewOAuthSource_RequiresUsableToken(t *testing.T) {
	t.Parallel()

	// Expired without a refresh token is unusable.
	store := &memStore{token: &oauth2.Token{
		AccessToken: "old",
		Expiry:      time.Now().Add(-time.Hour),
	}}
	_, err := NewOAuthSource("client-1", store)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no refresh token")

	// Expired with a refresh token is fine; it refreshes on use.
	store.token.RefreshToken = "rt"
	_, err = NewOAuthSource("client-1", store)
	require.NoError(t, err)

	// Nothing stored at all.
	_, err = NewOAuthSource("client-1", &memStore{})
	require.Error(t, err)
}

func TestOAuthSource_TokenStillValid(t *testing.T) {
	t.Parallel()

	server, calls := newTokenEndpoint(t, "unused", "")
	store := &memStore{}

	src := testSource(server.URL, store, &oauth2.Token{
		AccessToken:  "current",
		RefreshToken: "rt",
		Expiry:       time.Now().Add(time.Hour),
	})

	tok, err := src.Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Bearer current", tok)
	assert.Zero(t, *calls)
	assert.Zero(t, store.saves)
}

func TestOAuthSource_RefreshesNearExpiry(t *testing.T) {
	t.Parallel()

	server, calls := newTokenEndpoint(t, "fresh", "rt-2")
	store := &memStore{}

	src := testSource(server.URL, store, &oauth2.Token{
		AccessToken:  "stale",
		RefreshToken: "rt-1",
		Expiry:       time.Now().Add(30 * time.Second),
	})

	tok, err := src.Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Bearer fresh", tok)
	assert.Equal(t, 1, *calls)

	// The refreshed token was persisted.
	require.Equal(t, 1, store.saves)
	assert.Equal(t, "fresh", store.token.AccessToken)
	assert.Equal(t, "rt-2", store.token.RefreshToken)
}

func TestOAuthSource_CarriesRefreshTokenForward(t *testing.T) {
	t.Parallel()

	// The token endpoint omits the refresh token from its response.
	server, _ := newTokenEndpoint(t, "fresh", "")
	store := &memStore{}

	src := testSource(server.URL, store, &oauth2.Token{
		AccessToken:  "stale",
		RefreshToken: "rt-1",
		Expiry:       time.Now().Add(-time.Minute),
	})

	_, err := src.Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "rt-1", store.token.RefreshToken)
}

func TestOAuthSource_ZeroExpiryNeverRefreshesProactively(t *testing.T) {
	t.Parallel()

	server, calls := newTokenEndpoint(t, "unused", "")
	src := testSource(server.URL, &memStore{}, &oauth2.Token{
		AccessToken:  "static",
		RefreshToken: "rt",
	})

	tok, err := src.Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Bearer static", tok)
	assert.Zero(t, *calls)
}

func TestOAuthSource_ForcedRefresh(t *testing.T) {
	t.Parallel()

	server, calls := newTokenEndpoint(t, "fresh", "rt-2")
	store := &memStore{}

	src := testSource(server.URL, store, &oauth2.Token{
		AccessToken:  "current",
		RefreshToken: "rt-1",
		Expiry:       time.Now().Add(time.Hour),
	})

	// Refresh ignores the remaining validity.
	tok, err := src.Refresh(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Bearer fresh", tok)
	assert.Equal(t, 1, *calls)
}

func TestOAuthSource_RefreshWithoutRefreshToken(t *testing.T) {
	t.Parallel()

	src := testSource("http://invalid.localhost", &memStore{}, &oauth2.Token{
		AccessToken: "current",
		Expiry:      time.Now().Add(-time.Minute),
	})

	_, err := src.Token(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no refresh token")
}
