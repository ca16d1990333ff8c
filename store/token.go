package store

import (
	"github.com/pkg/errors"
	"golang.org/x/oauth2"
)

// SaveToken persists the token pair. The refresh token is additionally kept
// under its own key so a wipe of the access token alone cannot strand it.
func SaveToken(s Store, tok *oauth2.Token) error {
	if tok == nil {
		return errors.New("[SaveToken] token is required")
	}
	if err := SetJSON(s, KeyAuthToken, tok); err != nil {
		return errors.Wrap(err, "[SaveToken] access token")
	}
	if tok.RefreshToken != "" {
		if err := s.Set(KeyRefreshToken, []byte(tok.RefreshToken)); err != nil {
			return errors.Wrap(err, "[SaveToken] refresh token")
		}
	}
	return nil
}

// LoadToken reads the persisted token pair. Absent keys surface as
// apperrors.ErrNotFound.
func LoadToken(s Store) (*oauth2.Token, error) {
	var tok oauth2.Token
	if err := GetJSON(s, KeyAuthToken, &tok); err != nil {
		return nil, err
	}
	return &tok, nil
}

// BearerSource adapts a Store to api.TokenSource. Read failures degrade to
// an anonymous request rather than an error.
type BearerSource struct {
	store Store
}

func NewBearerSource(s Store) *BearerSource {
	return &BearerSource{store: s}
}

func (b *BearerSource) AccessToken() string {
	tok, err := LoadToken(b.store)
	if err != nil {
		return ""
	}
	return tok.AccessToken
}
