// Package session owns the authentication state machine: who is logged in,
// as whom, and with which freshness guarantee. It is the only writer of the
// auth-related keys in the credential store.
package session

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/noarlabs/go-capsule-client/api"
	"github.com/noarlabs/go-capsule-client/internal/apperrors"
	"github.com/noarlabs/go-capsule-client/store"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"golang.org/x/oauth2"
)

// Status is the authentication state.
type Status string

const (
	StatusAnonymous      Status = "anonymous"
	StatusAuthenticating Status = "authenticating"
	StatusAuthenticated  Status = "authenticated"
	StatusError          Status = "error"
)

// Snapshot is a point-in-time view of the session. User is non-nil iff
// Status is StatusAuthenticated.
type Snapshot struct {
	Status    Status
	User      *Profile
	LastError string
}

// Session is the interface screens and commands depend on.
type Session interface {
	Restore()
	Snapshot() Snapshot
	Login(ctx context.Context, identifier, secret string) (*Profile, error)
	Logout(wipeBiometric bool)
	RefreshProfile(ctx context.Context) (*Profile, error)
}

// APIClient is the slice of the remote API the manager needs.
type APIClient interface {
	Login(ctx context.Context, identifier, secret string) (*api.LoginResponse, error)
	Me(ctx context.Context) (json.RawMessage, error)
}

// Manager is the single source of truth for authentication state. Remote
// calls happen outside the lock so Snapshot stays responsive while a login
// is in flight.
type Manager struct {
	mu      sync.Mutex
	store   store.Store
	client  APIClient
	nowTime func() time.Time

	status    Status
	user      *Profile
	lastError string
}

var _ Session = (*Manager)(nil)

// ManagerOption defines a function type to modify the Manager instance.
type ManagerOption func(*Manager)

// WithNowTime sets the now time function (primarily for testing)
func WithNowTime(nowFunc func() time.Time) ManagerOption {
	return func(m *Manager) {
		m.nowTime = nowFunc
	}
}

// NewManager initializes a Manager in the anonymous state.
func NewManager(s store.Store, client APIClient, options ...ManagerOption) (*Manager, error) {
	if s == nil {
		return nil, errors.New("[NewManager] store is required")
	}
	if client == nil {
		return nil, errors.New("[NewManager] client is required")
	}
	manager := &Manager{
		store:   s,
		client:  client,
		nowTime: time.Now,
		status:  StatusAnonymous,
	}
	for _, opt := range options {
		opt(manager)
	}
	return manager, nil
}

// Snapshot returns the current session state.
func (m *Manager) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return Snapshot{Status: m.status, User: m.user, LastError: m.lastError}
}

// Restore rebuilds the session from the credential store at process start.
// A valid token plus a cached profile authenticates optimistically with no
// network round trip. Any storage failure degrades to anonymous; Restore
// never fails.
func (m *Manager) Restore() {
	tok, err := store.LoadToken(m.store)
	if err != nil {
		if !store.IsNotFound(err) {
			log.Err(err).Msg("Restore: failed to read stored token")
		}
		m.setAnonymous()
		return
	}
	if m.tokenExpired(tok) {
		log.Info().Msg("Restore: stored token expired")
		m.setAnonymous()
		return
	}

	var profile Profile
	if err := store.GetJSON(m.store, store.KeyUserProfile, &profile); err != nil {
		if !store.IsNotFound(err) {
			log.Err(err).Msg("Restore: failed to read cached profile")
		}
		m.setAnonymous()
		return
	}
	profile.Source = SourceCached

	m.mu.Lock()
	defer m.mu.Unlock()
	m.status = StatusAuthenticated
	m.user = &profile
	m.lastError = ""
}

// Login authenticates against the remote API, persists the token pair and
// profile, and moves the session to authenticated. A 404 from the profile
// endpoint keeps the login response's embedded fields as the profile; a 401
// aborts the whole login as an invalid session.
func (m *Manager) Login(ctx context.Context, identifier, secret string) (*Profile, error) {
	m.mu.Lock()
	m.status = StatusAuthenticating
	m.lastError = ""
	m.user = nil
	m.mu.Unlock()

	resp, err := m.client.Login(ctx, identifier, secret)
	if err != nil {
		m.setError(loginErrorMessage(err))
		return nil, errors.Wrap(err, "[Manager.Login] remote login")
	}

	tok := &oauth2.Token{AccessToken: resp.Token, RefreshToken: resp.RefreshToken}
	if err := store.SaveToken(m.store, tok); err != nil {
		log.Err(err).Msg("Login: failed to persist token")
	}

	profile := ProfileFromLogin(resp)
	profile.Source = SourceLive

	raw, err := m.client.Me(ctx)
	switch {
	case err == nil:
		if normalized, normErr := NormalizeProfile(raw); normErr == nil {
			normalized.Source = SourceLive
			profile = normalized
		} else {
			log.Err(normErr).Msg("Login: failed to normalize profile, keeping login fields")
		}
	case apperrors.Is(err, apperrors.ErrNotFound):
		log.Info().Msg("Login: profile endpoint absent, using login response fields")
	case apperrors.Is(err, apperrors.ErrUnauthorized):
		m.wipeAuthKeys(false)
		m.setError("session rejected by server")
		return nil, errors.Wrap(err, "[Manager.Login] profile fetch unauthorized")
	default:
		log.Err(err).Msg("Login: profile fetch failed, keeping login fields")
	}

	if err := store.SetJSON(m.store, store.KeyUserProfile, profile); err != nil {
		log.Err(err).Msg("Login: failed to persist profile")
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.status = StatusAuthenticated
	m.user = profile
	m.lastError = ""
	return profile, nil
}

// Logout wipes the stored credentials and resets the session to anonymous.
// Storage failures are logged, not surfaced: a spurious logout beats a
// phantom session.
func (m *Manager) Logout(wipeBiometric bool) {
	m.wipeAuthKeys(wipeBiometric)
	m.setAnonymous()
}

// RefreshProfile re-fetches the profile with the stored token. A 404 falls
// back to the cached profile; a 401 forces a full logout; other failures
// leave the session untouched.
func (m *Manager) RefreshProfile(ctx context.Context) (*Profile, error) {
	raw, err := m.client.Me(ctx)
	if err != nil {
		switch {
		case apperrors.Is(err, apperrors.ErrNotFound):
			var cached Profile
			if cacheErr := store.GetJSON(m.store, store.KeyUserProfile, &cached); cacheErr == nil {
				cached.Source = SourceCached
				m.setUser(&cached)
				return &cached, nil
			}
			return nil, errors.Wrap(err, "[Manager.RefreshProfile] endpoint absent and no cached profile")
		case apperrors.Is(err, apperrors.ErrUnauthorized):
			m.Logout(false)
			return nil, errors.Wrap(err, "[Manager.RefreshProfile] token rejected")
		default:
			return nil, errors.Wrap(err, "[Manager.RefreshProfile] profile fetch")
		}
	}

	profile, err := NormalizeProfile(raw)
	if err != nil {
		return nil, errors.Wrap(err, "[Manager.RefreshProfile] normalize")
	}
	profile.Source = SourceLive

	if err := store.SetJSON(m.store, store.KeyUserProfile, profile); err != nil {
		log.Err(err).Msg("RefreshProfile: failed to persist profile")
	}
	m.setUser(profile)
	return profile, nil
}

// tokenExpired inspects the access token's exp claim without verifying the
// signature; verification is the server's job. A token that is not a JWT or
// carries no exp claim is assumed live.
func (m *Manager) tokenExpired(tok *oauth2.Token) bool {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(tok.AccessToken, claims); err != nil {
		return false
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return false
	}
	return exp.Before(m.nowTime())
}

func (m *Manager) wipeAuthKeys(wipeBiometric bool) {
	keys := []string{store.KeyAuthToken, store.KeyRefreshToken, store.KeyUserProfile}
	if wipeBiometric {
		keys = append(keys, store.KeyBiometricCredentials, store.KeyUseBiometric)
	}
	for _, key := range keys {
		if err := m.store.Delete(key); err != nil {
			log.Err(err).Str("key", key).Msg("Failed to remove stored credential")
		}
	}
}

func (m *Manager) setAnonymous() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.status = StatusAnonymous
	m.user = nil
	m.lastError = ""
}

func (m *Manager) setError(message string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.status = StatusError
	m.user = nil
	m.lastError = message
}

func (m *Manager) setUser(profile *Profile) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.status = StatusAuthenticated
	m.user = profile
	m.lastError = ""
}

func loginErrorMessage(err error) string {
	switch {
	case apperrors.Is(err, apperrors.ErrInvalidCredentials):
		return "invalid login or password"
	case apperrors.Is(err, apperrors.ErrTransport):
		return "could not reach the server, try again"
	default:
		return "login failed, try again"
	}
}
