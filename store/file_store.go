package store

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/noarlabs/go-capsule-client/internal/apperrors"
	"github.com/pkg/errors"
)

// sealedKeys holds the keys whose values are sealed at rest. The biometric
// bundle contains a replayable secret, so it never touches disk in plaintext.
var sealedKeys = map[string]bool{
	KeyBiometricCredentials: true,
}

// FileStore persists one file per key under a data folder. Writes are
// atomic (write to temp file, rename).
type FileStore struct {
	dir    string
	sealer *Sealer
}

var _ Store = (*FileStore)(nil)

// NewFileStore creates the data folder if needed and initialises the sealer
// key alongside it.
func NewFileStore(dir string) (*FileStore, error) {
	if dir == "" {
		return nil, errors.New("[NewFileStore] dir is required")
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, errors.Wrap(err, "[NewFileStore] mkdir")
	}
	sealer, err := NewSealer(filepath.Join(dir, ".sealkey"))
	if err != nil {
		return nil, errors.Wrap(err, "[NewFileStore] sealer")
	}
	return &FileStore{dir: dir, sealer: sealer}, nil
}

func (fs *FileStore) Get(key string) ([]byte, error) {
	raw, err := os.ReadFile(fs.path(key))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, apperrors.Wrapf(apperrors.ErrNotFound, "key %q", key)
		}
		return nil, apperrors.Wrapf(apperrors.ErrStorage, "read %q: %v", key, err)
	}
	if sealedKeys[key] {
		plain, err := fs.sealer.Open(raw)
		if err != nil {
			return nil, apperrors.Wrapf(apperrors.ErrStorage, "unseal %q: %v", key, err)
		}
		return plain, nil
	}
	return raw, nil
}

func (fs *FileStore) Set(key string, value []byte) error {
	if sealedKeys[key] {
		sealed, err := fs.sealer.Seal(value)
		if err != nil {
			return apperrors.Wrapf(apperrors.ErrStorage, "seal %q: %v", key, err)
		}
		value = sealed
	}
	tmp := fs.path(key) + ".tmp"
	if err := os.WriteFile(tmp, value, 0o600); err != nil {
		return apperrors.Wrapf(apperrors.ErrStorage, "write %q: %v", key, err)
	}
	if err := os.Rename(tmp, fs.path(key)); err != nil {
		return apperrors.Wrapf(apperrors.ErrStorage, "rename %q: %v", key, err)
	}
	return nil
}

func (fs *FileStore) Delete(key string) error {
	if err := os.Remove(fs.path(key)); err != nil && !os.IsNotExist(err) {
		return apperrors.Wrapf(apperrors.ErrStorage, "delete %q: %v", key, err)
	}
	return nil
}

func (fs *FileStore) path(key string) string {
	name := strings.ReplaceAll(key, string(filepath.Separator), "_")
	return filepath.Join(fs.dir, name+".json")
}
