// Package lookup provides the read-only remote queries for devices and
// campaigns. Both services map 404 to apperrors.ErrNotFound ("absent") and
// everything else to apperrors.ErrLookupFailed ("retryable").
package lookup

import (
	"context"

	"github.com/noarlabs/go-capsule-client/api"
	"github.com/noarlabs/go-capsule-client/internal/apperrors"
	"github.com/pkg/errors"
)

// DeviceAPI is the slice of the remote API the device service needs.
type DeviceAPI interface {
	DeviceByMAC(ctx context.Context, mac string) (*api.Device, error)
}

// DeviceService resolves devices by MAC address.
type DeviceService struct {
	client DeviceAPI
}

func NewDeviceService(client DeviceAPI) (*DeviceService, error) {
	if client == nil {
		return nil, errors.New("[NewDeviceService] client is required")
	}
	return &DeviceService{client: client}, nil
}

// FindByMAC normalizes the raw input and resolves the device. An input that
// does not normalize to a full MAC is a validation error and never reaches
// the network.
func (s *DeviceService) FindByMAC(ctx context.Context, raw string) (*api.Device, error) {
	mac := NormalizeMAC(raw)
	if mac == "" {
		return nil, apperrors.Wrapf(apperrors.ErrValidation, "not a MAC address: %q", raw)
	}

	device, err := s.client.DeviceByMAC(ctx, mac)
	if err != nil {
		switch {
		case apperrors.Is(err, apperrors.ErrNotFound):
			return nil, apperrors.Wrapf(apperrors.ErrNotFound, "device %s", mac)
		case apperrors.Is(err, apperrors.ErrUnauthorized):
			// 401 always propagates so the session manager can tear down.
			return nil, err
		default:
			return nil, apperrors.Wrapf(apperrors.ErrLookupFailed, "device %s: %v", mac, err)
		}
	}
	return device, nil
}
