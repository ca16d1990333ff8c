package store_test

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/noarlabs/go-capsule-client/store"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

func setupFileStore(t *testing.T) (*store.FileStore, string) {
	t.Helper()
	dir := t.TempDir()
	fs, err := store.NewFileStore(dir)
	require.NoError(t, err)
	return fs, dir
}

func TestFileStoreRoundTrip(t *testing.T) {
	fs, _ := setupFileStore(t)

	require.NoError(t, fs.Set(store.KeyThemePreference, []byte("dark")))
	value, err := fs.Get(store.KeyThemePreference)
	require.NoError(t, err)
	require.Equal(t, []byte("dark"), value)
}

func TestFileStoreAbsentKeyIsNotFound(t *testing.T) {
	fs, _ := setupFileStore(t)

	_, err := fs.Get(store.KeyAuthToken)
	require.Error(t, err)
	require.True(t, store.IsNotFound(err))
}

func TestFileStoreOverwriteReplacesValue(t *testing.T) {
	fs, _ := setupFileStore(t)

	require.NoError(t, fs.Set(store.KeyThemePreference, []byte("dark")))
	require.NoError(t, fs.Set(store.KeyThemePreference, []byte("light")))

	value, err := fs.Get(store.KeyThemePreference)
	require.NoError(t, err)
	require.Equal(t, []byte("light"), value)
}

func TestFileStoreDeleteIsIdempotent(t *testing.T) {
	fs, _ := setupFileStore(t)

	require.NoError(t, fs.Set(store.KeyAuthToken, []byte("tok")))
	require.NoError(t, fs.Delete(store.KeyAuthToken))
	require.NoError(t, fs.Delete(store.KeyAuthToken))

	_, err := fs.Get(store.KeyAuthToken)
	require.True(t, store.IsNotFound(err))
}

func TestFileStoreSurvivesReopen(t *testing.T) {
	fs, dir := setupFileStore(t)
	require.NoError(t, fs.Set(store.KeyUserProfile, []byte(`{"nome":"Carlos"}`)))

	reopened, err := store.NewFileStore(dir)
	require.NoError(t, err)
	value, err := reopened.Get(store.KeyUserProfile)
	require.NoError(t, err)
	require.JSONEq(t, `{"nome":"Carlos"}`, string(value))
}

func TestFileStoreBiometricBundleSealedOnDisk(t *testing.T) {
	fs, dir := setupFileStore(t)
	secret := []byte(`{"login":"carlos.duarte@example.com","senha":"Abcd@123"}`)

	require.NoError(t, fs.Set(store.KeyBiometricCredentials, secret))

	// The stored file must not contain the plaintext secret.
	raw, err := os.ReadFile(filepath.Join(dir, store.KeyBiometricCredentials+".json"))
	require.NoError(t, err)
	require.False(t, bytes.Contains(raw, []byte("Abcd@123")))
	require.False(t, bytes.Contains(raw, []byte("carlos.duarte")))

	// But reads still round-trip through the sealer.
	value, err := fs.Get(store.KeyBiometricCredentials)
	require.NoError(t, err)
	require.Equal(t, secret, value)
}

func TestFileStoreSealedValueUnreadableWithoutKey(t *testing.T) {
	fs, dir := setupFileStore(t)
	require.NoError(t, fs.Set(store.KeyBiometricCredentials, []byte(`{"login":"x"}`)))

	// A reinstall loses the seal key; the old bundle must not open.
	require.NoError(t, os.Remove(filepath.Join(dir, ".sealkey")))
	reopened, err := store.NewFileStore(dir)
	require.NoError(t, err)

	_, err = reopened.Get(store.KeyBiometricCredentials)
	require.Error(t, err)
	require.False(t, store.IsNotFound(err))
}

func TestSetJSONGetJSONRoundTrip(t *testing.T) {
	fs, _ := setupFileStore(t)

	type prefs struct {
		Theme string `json:"theme"`
	}
	require.NoError(t, store.SetJSON(fs, store.KeyThemePreference, prefs{Theme: "dark"}))

	var out prefs
	require.NoError(t, store.GetJSON(fs, store.KeyThemePreference, &out))
	require.Equal(t, "dark", out.Theme)
}

func TestHasReportsPresence(t *testing.T) {
	fs, _ := setupFileStore(t)

	require.False(t, store.Has(fs, store.KeyUseBiometric))
	require.NoError(t, fs.Set(store.KeyUseBiometric, []byte("true")))
	require.True(t, store.Has(fs, store.KeyUseBiometric))
}

func TestSaveAndLoadTokenPair(t *testing.T) {
	fs, _ := setupFileStore(t)

	tok := &oauth2.Token{AccessToken: "access-1", RefreshToken: "refresh-1"}
	require.NoError(t, store.SaveToken(fs, tok))

	loaded, err := store.LoadToken(fs)
	require.NoError(t, err)
	require.Equal(t, "access-1", loaded.AccessToken)
	require.Equal(t, "refresh-1", loaded.RefreshToken)

	refresh, err := fs.Get(store.KeyRefreshToken)
	require.NoError(t, err)
	require.Equal(t, []byte("refresh-1"), refresh)
}

func TestBearerSourceDegradesToAnonymous(t *testing.T) {
	fs, _ := setupFileStore(t)
	source := store.NewBearerSource(fs)

	require.Empty(t, source.AccessToken())

	require.NoError(t, store.SaveToken(fs, &oauth2.Token{AccessToken: "access-2"}))
	require.Equal(t, "access-2", source.AccessToken())
}
