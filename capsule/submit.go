package capsule

import (
	"context"

	"github.com/noarlabs/go-capsule-client/api"
	"github.com/noarlabs/go-capsule-client/internal/apperrors"
	"github.com/pkg/errors"
)

// Submit creates one capsule record per selected, non-rejected candidate in
// slot order, one remote call each. The batch is not transactional: the
// first failing call halts the remaining items and already-created records
// stay persisted remotely; LastProgress tells how far the batch got. After
// full success, when the consume-tests flag is armed, the device's
// remaining-test pool is decremented by the campaign's configured test
// count.
func (w *Workflow) Submit(ctx context.Context) error {
	if w.deviceID == 0 {
		return apperrors.Wrapf(apperrors.ErrValidation, "no device resolved")
	}
	if w.serialNumber == "" {
		return apperrors.Wrapf(apperrors.ErrValidation, "serial number is required")
	}
	if w.state != StateValidated {
		return apperrors.Wrapf(apperrors.ErrValidation, "validate before submitting")
	}

	records := w.buildRecords()
	if len(records) == 0 {
		return apperrors.Wrapf(apperrors.ErrNoCandidates, "select at least one fragrance")
	}

	w.state = StateSubmitting
	w.lastProgress = 0

	total := len(records)
	for i, record := range records {
		if err := w.client.CreateCapsule(ctx, record); err != nil {
			w.state = StateValidated
			return errors.Wrapf(err, "[Submit] create capsule %d of %d", i+1, total)
		}
		w.reportProgress(i+1, total)
	}

	if w.consumeDeviceTests && w.campaignTests > 0 {
		remaining := w.deviceRemainingTests - w.campaignTests
		if remaining < 0 {
			remaining = 0
		}
		if err := w.client.UpdateDeviceRemainingTests(ctx, w.deviceID, remaining); err != nil {
			w.state = StateValidated
			return errors.Wrap(err, "[Submit] update remaining tests")
		}
		w.deviceRemainingTests = remaining
	}

	w.state = StateDone
	return nil
}

// buildRecords constructs the submission payloads for the selected,
// non-rejected candidates in slot order.
func (w *Workflow) buildRecords() []api.CapsuleRecord {
	shots := 0
	if w.campaign != nil {
		shots = w.campaign.FragranceShots
	}
	records := make([]api.CapsuleRecord, 0, len(w.candidates))
	for _, candidate := range w.candidates {
		if !candidate.Selected || candidate.Rejected {
			continue
		}
		records = append(records, api.CapsuleRecord{
			CustomerCode:   w.customerCode,
			DeviceID:       w.deviceID,
			FragranceID:    candidate.FragranceID,
			DueDate:        w.dueDate,
			SerialNumber:   w.serialNumber,
			RemainingShots: shots,
			PerformedShots: 0,
		})
	}
	return records
}

// QRPayload is the data encoded into one printable QR code per selected
// candidate.
type QRPayload struct {
	FragranceID  int64  `json:"fragranceId"`
	Slot         int    `json:"slot"`
	Name         string `json:"name"`
	CustomerCode string `json:"customerCode"`
	DueDate      string `json:"dueDate"`
	SerialNumber string `json:"serialNumber"`
}

// QRPayloads returns one payload per selected, non-rejected candidate.
func (w *Workflow) QRPayloads() []QRPayload {
	payloads := make([]QRPayload, 0, len(w.candidates))
	for _, candidate := range w.candidates {
		if !candidate.Selected || candidate.Rejected {
			continue
		}
		payloads = append(payloads, QRPayload{
			FragranceID:  candidate.FragranceID,
			Slot:         candidate.Slot,
			Name:         candidate.Name,
			CustomerCode: w.customerCode,
			DueDate:      w.dueDate,
			SerialNumber: w.serialNumber,
		})
	}
	return payloads
}
