package session_test

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/noarlabs/go-capsule-client/api"
	"github.com/noarlabs/go-capsule-client/internal/apperrors"
	"github.com/noarlabs/go-capsule-client/session"
	"github.com/noarlabs/go-capsule-client/store"
	"github.com/noarlabs/go-capsule-client/store/storefakes"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

const (
	testLogin    = "carlos.duarte@example.com"
	testPassword = "Abcd@123"
	testToken    = "opaque-access-token"
)

// fakeAuthAPI is a configurable test double for session.APIClient that
// counts remote calls.
type fakeAuthAPI struct {
	loginResp *api.LoginResponse
	loginErr  error
	meRaw     json.RawMessage
	meErr     error

	loginCalls int
	meCalls    int
}

func (f *fakeAuthAPI) Login(_ context.Context, _, _ string) (*api.LoginResponse, error) {
	f.loginCalls++
	if f.loginErr != nil {
		return nil, f.loginErr
	}
	return f.loginResp, nil
}

func (f *fakeAuthAPI) Me(_ context.Context) (json.RawMessage, error) {
	f.meCalls++
	if f.meErr != nil {
		return nil, f.meErr
	}
	return f.meRaw, nil
}

type sessionFixture struct {
	store   *storefakes.InMemoryStore
	client  *fakeAuthAPI
	manager *session.Manager
}

func setupSession(t *testing.T) *sessionFixture {
	t.Helper()
	f := &sessionFixture{
		store: storefakes.NewInMemoryStore(),
		client: &fakeAuthAPI{
			loginResp: &api.LoginResponse{
				Token:        testToken,
				RefreshToken: "refresh-1",
				Login:        testLogin,
			},
			meRaw: json.RawMessage(`{"id":9,"nome":"Carlos Duarte","email":"carlos.duarte@example.com","ativo":true,"profile":"ADMIN"}`),
		},
	}
	manager, err := session.NewManager(f.store, f.client)
	require.NoError(t, err)
	f.manager = manager
	return f
}

func (f *sessionFixture) seedStoredSession(t *testing.T) {
	t.Helper()
	require.NoError(t, store.SaveToken(f.store, &oauth2.Token{AccessToken: testToken}))
	require.NoError(t, store.SetJSON(f.store, store.KeyUserProfile, session.Profile{
		ID: 9, Name: "Carlos Duarte", Email: testLogin, Role: session.RoleAdmin,
	}))
}

func TestRestoreWithTokenAndProfileAuthenticatesWithoutNetwork(t *testing.T) {
	f := setupSession(t)
	f.seedStoredSession(t)

	f.manager.Restore()

	snapshot := f.manager.Snapshot()
	require.Equal(t, session.StatusAuthenticated, snapshot.Status)
	require.NotNil(t, snapshot.User)
	require.Equal(t, session.SourceCached, snapshot.User.Source)
	require.Zero(t, f.client.loginCalls)
	require.Zero(t, f.client.meCalls)
}

func TestRestoreWithNothingStoredStaysAnonymous(t *testing.T) {
	f := setupSession(t)
	f.manager.Restore()
	require.Equal(t, session.StatusAnonymous, f.manager.Snapshot().Status)
}

func TestRestoreWithStorageFailureDegradesToAnonymous(t *testing.T) {
	f := setupSession(t)
	f.seedStoredSession(t)
	f.store.FailKeys[store.KeyAuthToken] = true

	f.manager.Restore()
	require.Equal(t, session.StatusAnonymous, f.manager.Snapshot().Status)
}

func TestRestoreWithPartialWriteDegradesToAnonymous(t *testing.T) {
	f := setupSession(t)
	require.NoError(t, store.SaveToken(f.store, &oauth2.Token{AccessToken: testToken}))

	f.manager.Restore()
	require.Equal(t, session.StatusAnonymous, f.manager.Snapshot().Status)
}

func TestLoginSuccessPersistsAndAuthenticates(t *testing.T) {
	f := setupSession(t)

	profile, err := f.manager.Login(context.Background(), testLogin, testPassword)
	require.NoError(t, err)
	require.Equal(t, session.RoleAdmin, profile.Role)
	require.Equal(t, session.SourceLive, profile.Source)
	require.True(t, profile.IsAdmin())

	snapshot := f.manager.Snapshot()
	require.Equal(t, session.StatusAuthenticated, snapshot.Status)

	tok, err := store.LoadToken(f.store)
	require.NoError(t, err)
	require.Equal(t, testToken, tok.AccessToken)
	require.Equal(t, "refresh-1", tok.RefreshToken)
	require.True(t, store.Has(f.store, store.KeyUserProfile))
}

func TestLoginProfileEndpointAbsentKeepsLoginFields(t *testing.T) {
	f := setupSession(t)
	f.client.meErr = apperrors.Wrapf(apperrors.ErrNotFound, "GET /api/me")

	profile, err := f.manager.Login(context.Background(), testLogin, testPassword)
	require.NoError(t, err)
	require.Equal(t, testLogin, profile.Email)
	require.Equal(t, session.StatusAuthenticated, f.manager.Snapshot().Status)
}

func TestLoginProfileUnauthorizedAbortsLogin(t *testing.T) {
	f := setupSession(t)
	f.client.meErr = apperrors.Wrapf(apperrors.ErrUnauthorized, "GET /api/me")

	_, err := f.manager.Login(context.Background(), testLogin, testPassword)
	require.ErrorIs(t, err, apperrors.ErrUnauthorized)

	snapshot := f.manager.Snapshot()
	require.Equal(t, session.StatusError, snapshot.Status)
	require.False(t, store.Has(f.store, store.KeyAuthToken))
}

func TestLoginFailureSetsErrorWithMessage(t *testing.T) {
	f := setupSession(t)
	f.client.loginErr = apperrors.Wrapf(apperrors.ErrInvalidCredentials, "login")

	_, err := f.manager.Login(context.Background(), testLogin, "wrong")
	require.Error(t, err)

	snapshot := f.manager.Snapshot()
	require.Equal(t, session.StatusError, snapshot.Status)
	require.Equal(t, "invalid login or password", snapshot.LastError)
	require.Nil(t, snapshot.User)
}

func TestRefreshProfileLiveSuccess(t *testing.T) {
	f := setupSession(t)
	f.seedStoredSession(t)
	f.manager.Restore()

	profile, err := f.manager.RefreshProfile(context.Background())
	require.NoError(t, err)
	require.Equal(t, session.SourceLive, profile.Source)
	require.Equal(t, 1, f.client.meCalls)
}

func TestRefreshProfileNotFoundFallsBackToCache(t *testing.T) {
	f := setupSession(t)
	f.seedStoredSession(t)
	f.manager.Restore()
	f.client.meErr = apperrors.Wrapf(apperrors.ErrNotFound, "GET /api/me")

	profile, err := f.manager.RefreshProfile(context.Background())
	require.NoError(t, err)
	require.Equal(t, session.SourceCached, profile.Source)
	require.Equal(t, "Carlos Duarte", profile.Name)
	require.Equal(t, session.StatusAuthenticated, f.manager.Snapshot().Status)
}

func TestRefreshProfileUnauthorizedForcesLogout(t *testing.T) {
	f := setupSession(t)
	f.seedStoredSession(t)
	f.manager.Restore()
	f.client.meErr = apperrors.Wrapf(apperrors.ErrUnauthorized, "GET /api/me")

	_, err := f.manager.RefreshProfile(context.Background())
	require.ErrorIs(t, err, apperrors.ErrUnauthorized)

	require.Equal(t, session.StatusAnonymous, f.manager.Snapshot().Status)
	require.False(t, store.Has(f.store, store.KeyAuthToken))
	require.False(t, store.Has(f.store, store.KeyUserProfile))
}

func TestRefreshProfileTransportErrorLeavesSession(t *testing.T) {
	f := setupSession(t)
	f.seedStoredSession(t)
	f.manager.Restore()
	f.client.meErr = apperrors.Wrapf(apperrors.ErrTransport, "timeout")

	_, err := f.manager.RefreshProfile(context.Background())
	require.ErrorIs(t, err, apperrors.ErrTransport)
	require.Equal(t, session.StatusAuthenticated, f.manager.Snapshot().Status)
}

func TestLogoutWipesCredentials(t *testing.T) {
	f := setupSession(t)
	f.seedStoredSession(t)
	require.NoError(t, store.SetJSON(f.store, store.KeyBiometricCredentials, map[string]string{"login": testLogin}))
	f.manager.Restore()

	f.manager.Logout(false)
	require.Equal(t, session.StatusAnonymous, f.manager.Snapshot().Status)
	require.False(t, store.Has(f.store, store.KeyAuthToken))
	require.False(t, store.Has(f.store, store.KeyUserProfile))
	require.True(t, store.Has(f.store, store.KeyBiometricCredentials), "bundle kept unless wiped explicitly")
}

func TestLogoutWithWipeRemovesBiometricBundle(t *testing.T) {
	f := setupSession(t)
	f.seedStoredSession(t)
	require.NoError(t, store.SetJSON(f.store, store.KeyBiometricCredentials, map[string]string{"login": testLogin}))
	f.manager.Restore()

	f.manager.Logout(true)
	require.False(t, store.Has(f.store, store.KeyBiometricCredentials))
}

func TestLogoutStorageFailureStillGoesAnonymous(t *testing.T) {
	f := setupSession(t)
	f.seedStoredSession(t)
	f.manager.Restore()
	f.store.FailKeys[store.KeyAuthToken] = true

	f.manager.Logout(false)
	require.Equal(t, session.StatusAnonymous, f.manager.Snapshot().Status)
}
