package api

import "encoding/json"

// LoginRequest carries the credentials for POST /api/login. Field names
// follow the remote API's wire format.
type LoginRequest struct {
	Login string `json:"login"`
	Senha string `json:"senha"`
}

// LoginResponse is the token exchange result. The remaining fields are the
// profile data embedded in the login response, kept raw because the remote
// shape is not stable (see session.NormalizeProfile).
type LoginResponse struct {
	Token        string          `json:"token"`
	RefreshToken string          `json:"refreshToken"`
	Login        string          `json:"login"`
	ID           int64           `json:"id,omitempty"`
	Nome         string          `json:"nome,omitempty"`
	Email        string          `json:"email,omitempty"`
	Profile      json.RawMessage `json:"profile,omitempty"`
}

// Device is a dispensing unit resolved by MAC address. The remote reports
// the associated campaign either as a bare campaignId or as an embedded
// campaign object, depending on the endpoint version.
type Device struct {
	DeviceID       int64            `json:"deviceId"`
	MacAddress     string           `json:"macAddress"`
	RemainingTests int              `json:"remainingTests"`
	CampaignID     *int64           `json:"campaignId,omitempty"`
	Campaign       *CampaignSummary `json:"campaign,omitempty"`
}

// CampaignSummary is the search-result shape of a campaign.
type CampaignSummary struct {
	CampaignID     int64  `json:"campaignId"`
	Name           string `json:"name"`
	IsDefault      bool   `json:"isDefault,omitempty"`
	Downloads      int    `json:"downloads,omitempty"`
	FragranceShots int    `json:"fragranceShots,omitempty"`
	DeviceTests    *int   `json:"deviceTests,omitempty"`
}

// Campaign is the full detail shape including the ordered slot collection.
type Campaign struct {
	CampaignID     int64          `json:"campaignId"`
	Name           string         `json:"name"`
	FragranceShots int            `json:"fragranceShots"`
	DeviceTests    *int           `json:"deviceTests,omitempty"`
	Collection     []CampaignSlot `json:"collection"`
}

// CampaignSlot binds a fragrance to a slot position within a campaign.
type CampaignSlot struct {
	FragranceID int64     `json:"fragranceId"`
	Slot        int       `json:"slot"`
	Fragrance   Fragrance `json:"fragrance"`
}

type Fragrance struct {
	Name string `json:"name"`
}

// CapsuleRecord is the create payload for POST /api/capsules. One record per
// remote call; records are never batched into a single request.
type CapsuleRecord struct {
	CustomerCode   string `json:"customerCode"`
	DeviceID       int64  `json:"deviceId"`
	FragranceID    int64  `json:"fragranceId"`
	DueDate        string `json:"dueDate"`
	SerialNumber   string `json:"serialNumber"`
	RemainingShots int    `json:"remainingShots"`
	PerformedShots int    `json:"performedShots"`
}

// Settings holds remote defaults applied to new capsule registrations.
type Settings struct {
	CustomerCode string `json:"customerCode"`
}

// UserRegistration is the payload for registering an active user.
type UserRegistration struct {
	Nome               string  `json:"nome"`
	Email              string  `json:"email"`
	Senha              string  `json:"senha"`
	Ativo              bool    `json:"ativo"`
	Profile            string  `json:"profile"`
	Genre              string  `json:"genre"`
	NextPaymentDate    *string `json:"nextPaymentDate"`
	SettingsPassword   string  `json:"settingsPassword"`
	Grouper            bool    `json:"grouper"`
	GrouperID          int64   `json:"grouperId"`
	UsersLicense       int     `json:"usersLicense"`
	DevicesLicense     int     `json:"devicesLicense"`
	ConsumptionControl string  `json:"consumptionControl"`
	UserType           string  `json:"userType"`
}
