package store

import (
	"crypto/rand"
	"os"

	"github.com/pkg/errors"
	"golang.org/x/crypto/chacha20poly1305"
)

// Sealer encrypts values at rest with a per-install random key. The key file
// lives next to the data files with owner-only permissions.
type Sealer struct {
	aeadKey []byte
}

// NewSealer loads the key file, creating it with a fresh random key on first
// use.
func NewSealer(keyPath string) (*Sealer, error) {
	key, err := os.ReadFile(keyPath)
	if os.IsNotExist(err) {
		key = make([]byte, chacha20poly1305.KeySize)
		if _, err := rand.Read(key); err != nil {
			return nil, errors.Wrap(err, "[NewSealer] rand.Read")
		}
		if err := os.WriteFile(keyPath, key, 0o600); err != nil {
			return nil, errors.Wrap(err, "[NewSealer] write key file")
		}
	} else if err != nil {
		return nil, errors.Wrap(err, "[NewSealer] read key file")
	}
	if len(key) != chacha20poly1305.KeySize {
		return nil, errors.New("[NewSealer] key file corrupt")
	}
	return &Sealer{aeadKey: key}, nil
}

// Seal returns nonce||ciphertext for the given plaintext.
func (s *Sealer) Seal(plain []byte) ([]byte, error) {
	aead, err := chacha20poly1305.NewX(s.aeadKey)
	if err != nil {
		return nil, errors.Wrap(err, "[Seal] aead")
	}
	nonce := make([]byte, aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, errors.Wrap(err, "[Seal] nonce")
	}
	return aead.Seal(nonce, nonce, plain, nil), nil
}

// Open reverses Seal.
func (s *Sealer) Open(sealed []byte) ([]byte, error) {
	aead, err := chacha20poly1305.NewX(s.aeadKey)
	if err != nil {
		return nil, errors.Wrap(err, "[Open] aead")
	}
	if len(sealed) < aead.NonceSize() {
		return nil, errors.New("[Open] sealed value too short")
	}
	nonce, ciphertext := sealed[:aead.NonceSize()], sealed[aead.NonceSize():]
	plain, err := aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, errors.Wrap(err, "[Open] decrypt")
	}
	return plain, nil
}
