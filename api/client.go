// Package api is the typed client for the remote device/campaign/capsule
// REST API. It owns the mapping from HTTP status codes to the client's error
// taxonomy: 401 maps to apperrors.ErrUnauthorized, 404 to
// apperrors.ErrNotFound, and every other failure to apperrors.ErrTransport.
// Callers never see raw status codes.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/noarlabs/go-capsule-client/internal/apperrors"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

const maxErrorBodyBytes = 512

// TokenSource supplies the current bearer token. An empty string means the
// request goes out unauthenticated.
type TokenSource interface {
	AccessToken() string
}

// Client talks to the remote API. All calls attach a request ID and, when
// the token source holds one, a bearer token.
type Client struct {
	baseURL    string
	httpClient *http.Client
	tokens     TokenSource
}

// ClientOption defines a function type to modify the Client instance.
type ClientOption func(*Client)

// WithHTTPClient overrides the underlying HTTP client (primarily for testing
// against httptest servers).
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithTimeout sets the request timeout on the default HTTP client.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		c.httpClient.Timeout = d
	}
}

// NewClient creates an API client rooted at baseURL. tokens may be nil for a
// purely anonymous client.
func NewClient(baseURL string, tokens TokenSource, options ...ClientOption) (*Client, error) {
	if strings.TrimSpace(baseURL) == "" {
		return nil, errors.New("[NewClient] baseURL is required")
	}
	client := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 30 * time.Second},
		tokens:     tokens,
	}
	for _, opt := range options {
		opt(client)
	}
	return client, nil
}

// Login exchanges credentials for tokens.
func (c *Client) Login(ctx context.Context, identifier, secret string) (*LoginResponse, error) {
	var out LoginResponse
	err := c.do(ctx, http.MethodPost, "/api/login", LoginRequest{Login: identifier, Senha: secret}, &out)
	if err != nil {
		if apperrors.Is(err, apperrors.ErrUnauthorized) {
			return nil, apperrors.Wrapf(apperrors.ErrInvalidCredentials, "login")
		}
		return nil, err
	}
	return &out, nil
}

// Me fetches the authenticated user's profile. The body is returned raw
// because the profile field is duck-typed; session.NormalizeProfile is the
// only consumer.
func (c *Client) Me(ctx context.Context) (json.RawMessage, error) {
	var out json.RawMessage
	if err := c.do(ctx, http.MethodGet, "/api/me", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// DeviceByMAC resolves a device by its canonical MAC address.
func (c *Client) DeviceByMAC(ctx context.Context, mac string) (*Device, error) {
	var out Device
	if err := c.do(ctx, http.MethodGet, "/api/devices/mac/"+url.PathEscape(mac), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// UpdateDeviceCampaign reassigns a device to a campaign. The caller must
// have confirmed the reassignment with the user before this fires.
func (c *Client) UpdateDeviceCampaign(ctx context.Context, deviceID, campaignID int64) error {
	path := fmt.Sprintf("/api/devices/update-campaign/%d/%d", deviceID, campaignID)
	return c.do(ctx, http.MethodPut, path, nil, nil)
}

// UpdateDeviceRemainingTests sets the device's remaining test pool.
func (c *Client) UpdateDeviceRemainingTests(ctx context.Context, deviceID int64, remaining int) error {
	body := map[string]int{"remainingTests": remaining}
	return c.do(ctx, http.MethodPut, fmt.Sprintf("/api/devices/%d", deviceID), body, nil)
}

// SearchCampaigns performs a substring search. The minimum-length gate lives
// in lookup.CampaignService, not here.
func (c *Client) SearchCampaigns(ctx context.Context, query string) ([]CampaignSummary, error) {
	var out []CampaignSummary
	path := "/api/campaigns/without-quiz?str=" + url.QueryEscape(query)
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// CampaignDetail fetches a full campaign including its slot collection.
func (c *Client) CampaignDetail(ctx context.Context, id int64) (*Campaign, error) {
	var out Campaign
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/api/campaigns/%d", id), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// CapsuleExists probes the capsule inventory for a serial/fragrance pair.
// The remote signals existence through its status code; capsule
// .SerialAlreadyUsed interprets the returned error, nothing else should.
func (c *Client) CapsuleExists(ctx context.Context, serial string, fragranceID int64) error {
	path := fmt.Sprintf("/api/capsules/serial/%s/%d", url.PathEscape(serial), fragranceID)
	return c.do(ctx, http.MethodGet, path, nil, nil)
}

// CreateCapsule persists one capsule record.
func (c *Client) CreateCapsule(ctx context.Context, record CapsuleRecord) error {
	return c.do(ctx, http.MethodPost, "/api/capsules", record, nil)
}

// Settings fetches remote defaults (customer code).
func (c *Client) Settings(ctx context.Context) (*Settings, error) {
	var out Settings
	if err := c.do(ctx, http.MethodGet, "/api/settings", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// RegisterUser registers a new active user.
func (c *Client) RegisterUser(ctx context.Context, user UserRegistration) error {
	return c.do(ctx, http.MethodPost, "/api/usuario/useractive", user, nil)
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return errors.Wrap(err, "[Client.do] marshal request body")
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return errors.Wrap(err, "[Client.do] build request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Request-ID", uuid.New().String())
	if c.tokens != nil {
		if token := c.tokens.AccessToken(); token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return apperrors.Wrapf(apperrors.ErrTransport, "%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return apperrors.Wrapf(apperrors.ErrUnauthorized, "%s %s", method, path)
	case resp.StatusCode == http.StatusNotFound:
		return apperrors.Wrapf(apperrors.ErrNotFound, "%s %s", method, path)
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes))
		return apperrors.Wrapf(apperrors.ErrTransport, "%s %s: status %d %s",
			method, path, resp.StatusCode, strings.TrimSpace(string(snippet)))
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		log.Err(err).Str("path", path).Msg("Failed to decode response body")
		return apperrors.Wrapf(apperrors.ErrTransport, "%s %s: decode response: %v", method, path, err)
	}
	return nil
}
