package capsule

import (
	"context"

	"github.com/noarlabs/go-capsule-client/internal/apperrors"
)

// ValidationReport summarizes a validation pass. AllRejected means every
// selected candidate collided and submission is blocked until the user
// re-selects at least one.
type ValidationReport struct {
	Checked     int
	Rejected    int
	AllRejected bool
}

// SerialAlreadyUsed asks the inventory whether a serial/fragrance pair is
// already registered. The remote signals "exists" with a success response
// and "available" with a 404; that inversion is isolated here. Any other
// failure is a lookup failure, not an availability verdict.
func (w *Workflow) SerialAlreadyUsed(ctx context.Context, serial string, fragranceID int64) (bool, error) {
	err := w.client.CapsuleExists(ctx, serial, fragranceID)
	if err == nil {
		return true, nil
	}
	if apperrors.Is(err, apperrors.ErrNotFound) {
		return false, nil
	}
	if apperrors.Is(err, apperrors.ErrUnauthorized) {
		return false, err
	}
	return false, apperrors.Wrapf(apperrors.ErrLookupFailed, "capsule check %s/%d: %v", serial, fragranceID, err)
}

// Validate checks every selected candidate against the remote inventory in
// slot order. Candidates whose serial/fragrance pair already exists are
// deselected and flagged rejected. Progress is reported after each item as
// ceil(processed/total*100). A failed check aborts the pass and returns the
// workflow to the campaign-resolved state with partial flags intact.
func (w *Workflow) Validate(ctx context.Context) (*ValidationReport, error) {
	if w.serialNumber == "" {
		return nil, apperrors.Wrapf(apperrors.ErrValidation, "serial number is required")
	}
	total := countSelected(w.candidates)
	if total == 0 {
		return nil, apperrors.Wrapf(apperrors.ErrNoCandidates, "select at least one fragrance")
	}

	w.state = StateValidating
	w.lastProgress = 0

	processed := 0
	rejected := 0
	for i := range w.candidates {
		if !w.candidates[i].Selected {
			continue
		}
		used, err := w.SerialAlreadyUsed(ctx, w.serialNumber, w.candidates[i].FragranceID)
		if err != nil {
			w.state = StateCampaignResolved
			return nil, err
		}
		if used {
			w.candidates[i].Selected = false
			w.candidates[i].Rejected = true
			rejected++
		}
		processed++
		w.reportProgress(processed, total)
	}

	w.state = StateValidated
	return &ValidationReport{
		Checked:     total,
		Rejected:    rejected,
		AllRejected: rejected == total,
	}, nil
}
