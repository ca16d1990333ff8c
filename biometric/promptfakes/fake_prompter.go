package promptfakes

import (
	"context"

	"github.com/noarlabs/go-capsule-client/biometric"
)

// FakePrompter is a configurable test double for biometric.Prompter.
type FakePrompter struct {
	CapabilityResult biometric.Capability
	CapabilityErr    error
	Approve          bool
	AuthenticateErr  error

	AuthenticateCalls int
	LastMessage       string
}

// NewFakePrompter returns a prompter reporting an enrolled fingerprint
// reader that approves every challenge.
func NewFakePrompter() *FakePrompter {
	return &FakePrompter{
		CapabilityResult: biometric.Capability{
			Available: true,
			Enrolled:  true,
			Kind:      biometric.KindFingerprint,
		},
		Approve: true,
	}
}

func (f *FakePrompter) Capability() (biometric.Capability, error) {
	if f.CapabilityErr != nil {
		return biometric.Capability{}, f.CapabilityErr
	}
	return f.CapabilityResult, nil
}

func (f *FakePrompter) Authenticate(_ context.Context, message string) (bool, error) {
	f.AuthenticateCalls++
	f.LastMessage = message
	if f.AuthenticateErr != nil {
		return false, f.AuthenticateErr
	}
	return f.Approve, nil
}
