// Package store provides the persistent key-value store shared by the
// session manager and the biometric adapter. Values are opaque bytes; callers
// that need structure round-trip JSON through GetJSON/SetJSON.
package store

import (
	"encoding/json"

	"github.com/noarlabs/go-capsule-client/internal/apperrors"
	"github.com/pkg/errors"
)

// Keys persisted on the device.
const (
	KeyAuthToken            = "auth.token"
	KeyRefreshToken         = "auth.refresh_token"
	KeyUserProfile          = "auth.user"
	KeyBiometricCredentials = "auth.biometric_credentials"
	KeyThemePreference      = "theme.preference"
	KeyUseBiometric         = "auth.use_biometric"
	KeyPendingBiometric     = "auth.pending_biometric_setup"
)

// Store is a key-value store over independent keys. Get returns
// apperrors.ErrNotFound for absent keys. Delete of an absent key succeeds.
// No cross-key atomicity is guaranteed.
type Store interface {
	Get(key string) ([]byte, error)
	Set(key string, value []byte) error
	Delete(key string) error
}

// GetJSON reads key and unmarshals it into out.
func GetJSON(s Store, key string, out any) error {
	raw, err := s.Get(key)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return errors.Wrap(err, "[GetJSON] unmarshal "+key)
	}
	return nil
}

// SetJSON marshals v and writes it under key.
func SetJSON(s Store, key string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return errors.Wrap(err, "[SetJSON] marshal "+key)
	}
	return s.Set(key, raw)
}

// Has reports whether key holds a non-empty value. Storage errors are treated
// as absent.
func Has(s Store, key string) bool {
	raw, err := s.Get(key)
	if err != nil {
		return false
	}
	return len(raw) > 0
}

// IsNotFound reports whether err means "key absent" as opposed to a storage
// failure.
func IsNotFound(err error) bool {
	return errors.Is(err, apperrors.ErrNotFound)
}
