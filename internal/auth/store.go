package auth

import (
	"encoding/json"
	"fmt"

	"golang.org/x/oauth2"

	"github.com/dkhoa/linear-todo/internal/credential"
)

// KeyringTokenStore persists the OAuth token as JSON under a key in the
// system keyring.
type KeyringTokenStore struct {
	Key string
}

// Load reads and decodes the stored token.
func (s KeyringTokenStore) Load() (*oauth2.Token, error) {
	raw, err := credential.Get(s.Key)
	if err != nil {
		return nil, err
	}

	var tok oauth2.Token
	if err := json.Unmarshal([]byte(raw), &tok); err != nil {
		return nil, fmt.Errorf("decoding stored token: %w", err)
	}
	return &tok, nil
}

// Save encodes and stores the token.
func (s KeyringTokenStore) Save(tok *oauth2.Token) error {
	raw, err := json.Marshal(tok)
	if err != nil {
		return fmt.Errorf("encoding token: %w", err)
	}
	return credential.Set(s.Key, string(raw))
}
