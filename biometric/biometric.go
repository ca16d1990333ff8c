// Package biometric bridges the platform biometric capability to the saved
// credential bundle. Every failure mode of a challenge (no hardware, nothing
// enrolled, no saved bundle, prompt error, user cancel) collapses to an
// unapproved result so callers fall back to manual login the same way.
package biometric

import (
	"context"

	"github.com/noarlabs/go-capsule-client/store"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// Kind is the primary biometric method the device offers.
type Kind string

const (
	KindFace        Kind = "face"
	KindFingerprint Kind = "fingerprint"
	KindGeneric     Kind = "generic"
	KindNone        Kind = "none"
)

// Capability describes what the platform reports right now. It is probed
// fresh on every call because the user can change device settings outside
// the app.
type Capability struct {
	Available bool
	Enrolled  bool
	Kind      Kind
}

// Prompter abstracts the platform biometric surface.
type Prompter interface {
	Capability() (Capability, error)
	Authenticate(ctx context.Context, message string) (bool, error)
}

// Bundle is the credential pair replayed on a successful challenge.
type Bundle struct {
	Login string `json:"login"`
	Senha string `json:"senha"`
}

// Result is the outcome of a challenge. Bundle is non-nil iff Approved.
type Result struct {
	Approved bool
	Bundle   *Bundle
}

// Adapter wires a Prompter to the credential store.
type Adapter struct {
	store    store.Store
	prompter Prompter
}

func NewAdapter(s store.Store, prompter Prompter) (*Adapter, error) {
	if s == nil {
		return nil, errors.New("[NewAdapter] store is required")
	}
	if prompter == nil {
		return nil, errors.New("[NewAdapter] prompter is required")
	}
	return &Adapter{store: s, prompter: prompter}, nil
}

// DetectCapability probes the platform. Probe failures degrade to "no
// capability" rather than an error.
func (a *Adapter) DetectCapability() Capability {
	capability, err := a.prompter.Capability()
	if err != nil {
		log.Err(err).Msg("Biometric capability probe failed")
		return Capability{Kind: KindNone}
	}
	if capability.Kind == "" {
		capability.Kind = KindNone
	}
	return capability
}

// HasStoredBundle reports whether a usable credential bundle is saved.
func (a *Adapter) HasStoredBundle() bool {
	var bundle Bundle
	if err := store.GetJSON(a.store, store.KeyBiometricCredentials, &bundle); err != nil {
		return false
	}
	return bundle.Login != ""
}

// SaveBundle persists the bundle and flips the use-biometric flag. Failures
// are non-fatal; the caller can retry or skip.
func (a *Adapter) SaveBundle(bundle Bundle) bool {
	if err := store.SetJSON(a.store, store.KeyBiometricCredentials, bundle); err != nil {
		log.Err(err).Msg("Failed to save biometric credentials")
		return false
	}
	if err := a.store.Set(store.KeyUseBiometric, []byte("true")); err != nil {
		log.Err(err).Msg("Failed to set use-biometric flag")
	}
	return true
}

// RemoveBundle deletes the bundle and the use-biometric flag. Idempotent.
func (a *Adapter) RemoveBundle() bool {
	if err := a.store.Delete(store.KeyBiometricCredentials); err != nil {
		log.Err(err).Msg("Failed to remove biometric credentials")
		return false
	}
	if err := a.store.Delete(store.KeyUseBiometric); err != nil {
		log.Err(err).Msg("Failed to clear use-biometric flag")
	}
	return true
}

// Challenge runs the platform prompt and, on approval, returns the saved
// bundle.
func (a *Adapter) Challenge(ctx context.Context) Result {
	capability := a.DetectCapability()
	if !capability.Available || !capability.Enrolled {
		return Result{}
	}

	var bundle Bundle
	if err := store.GetJSON(a.store, store.KeyBiometricCredentials, &bundle); err != nil || bundle.Login == "" {
		return Result{}
	}

	approved, err := a.prompter.Authenticate(ctx, PromptMessage(capability.Kind))
	if err != nil {
		log.Err(err).Msg("Biometric prompt failed")
		return Result{}
	}
	if !approved {
		return Result{}
	}
	return Result{Approved: true, Bundle: &bundle}
}

// PendingSetup reports whether biometric configuration was deferred to the
// next successful login.
func (a *Adapter) PendingSetup() bool {
	raw, err := a.store.Get(store.KeyPendingBiometric)
	if err != nil {
		return false
	}
	return string(raw) == "true"
}

// SetPendingSetup records or clears the deferred-setup flag.
func (a *Adapter) SetPendingSetup(pending bool) bool {
	var err error
	if pending {
		err = a.store.Set(store.KeyPendingBiometric, []byte("true"))
	} else {
		err = a.store.Delete(store.KeyPendingBiometric)
	}
	if err != nil {
		log.Err(err).Msg("Failed to update pending-biometric flag")
		return false
	}
	return true
}

// PromptMessage returns the user-facing prompt text for a biometric kind.
func PromptMessage(kind Kind) string {
	switch kind {
	case KindFace:
		return "Authenticate with face recognition"
	case KindFingerprint:
		return "Authenticate with fingerprint"
	default:
		return "Biometric authentication"
	}
}
