package session

import (
	"encoding/json"

	"github.com/noarlabs/go-capsule-client/api"
	"github.com/pkg/errors"
)

// Role is the user's access level.
type Role string

const (
	RoleUser  Role = "USER"
	RoleAdmin Role = "ADMIN"
)

// Source records whether a profile came from a live fetch or the local
// cache. Callers needing guaranteed-fresh data must call RefreshProfile and
// handle the unauthorized path.
type Source string

const (
	SourceLive   Source = "live"
	SourceCached Source = "cached"
)

// Profile is the normalized user profile. The remote's duck-typed shape
// (profile sometimes a string, sometimes an object) never leaves this
// package.
type Profile struct {
	ID       int64  `json:"id,omitempty"`
	Name     string `json:"nome,omitempty"`
	Email    string `json:"email,omitempty"`
	Role     Role   `json:"role,omitempty"`
	Active   bool   `json:"ativo,omitempty"`
	UserType string `json:"userType,omitempty"`
	Source   Source `json:"-"`
}

func (p *Profile) IsAdmin() bool {
	return p != nil && p.Role == RoleAdmin
}

// profileEnvelope is the wire shape of a profile payload. The profile field
// is kept raw because the remote sends either "ADMIN" or {"nome": "ADMIN"}.
type profileEnvelope struct {
	ID       int64           `json:"id"`
	Nome     string          `json:"nome"`
	Email    string          `json:"email"`
	Ativo    bool            `json:"ativo"`
	UserType string          `json:"userType"`
	Profile  json.RawMessage `json:"profile"`
}

// NormalizeProfile decodes a raw profile payload into the typed shape.
func NormalizeProfile(raw json.RawMessage) (*Profile, error) {
	var envelope profileEnvelope
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return nil, errors.Wrap(err, "[NormalizeProfile] unmarshal")
	}
	return &Profile{
		ID:       envelope.ID,
		Name:     envelope.Nome,
		Email:    envelope.Email,
		Role:     roleFromRaw(envelope.Profile),
		Active:   envelope.Ativo,
		UserType: envelope.UserType,
	}, nil
}

// ProfileFromLogin builds a profile from the fields embedded in the login
// response, used when the profile endpoint is absent.
func ProfileFromLogin(resp *api.LoginResponse) *Profile {
	name := resp.Nome
	if name == "" {
		name = resp.Login
	}
	email := resp.Email
	if email == "" {
		email = resp.Login
	}
	return &Profile{
		ID:     resp.ID,
		Name:   name,
		Email:  email,
		Role:   roleFromRaw(resp.Profile),
		Active: true,
	}
}

func roleFromRaw(raw json.RawMessage) Role {
	if len(raw) == 0 {
		return RoleUser
	}
	var asString string
	if err := json.Unmarshal(raw, &asString); err == nil {
		if Role(asString) == RoleAdmin {
			return RoleAdmin
		}
		return RoleUser
	}
	var asObject struct {
		Nome string `json:"nome"`
	}
	if err := json.Unmarshal(raw, &asObject); err == nil && Role(asObject.Nome) == RoleAdmin {
		return RoleAdmin
	}
	return RoleUser
}
