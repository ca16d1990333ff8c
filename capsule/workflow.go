// Package capsule implements the batch capsule-registration workflow: device
// and campaign resolution, per-item remote validation of serial uniqueness,
// and fail-fast batched submission with progress reporting.
package capsule

import (
	"context"
	"crypto/rand"
	"io"
	"time"

	"github.com/noarlabs/go-capsule-client/api"
	"github.com/noarlabs/go-capsule-client/internal/apperrors"
	"github.com/noarlabs/go-capsule-client/internal/utils"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// State is the workflow's position. Errors during validation or submission
// fall back to the prior stable state, never to StateEmpty, so the user
// keeps the resolved device and campaign.
type State string

const (
	StateEmpty            State = "empty"
	StateDeviceResolved   State = "deviceResolved"
	StateCampaignResolved State = "campaignResolved"
	StateValidating       State = "validating"
	StateValidated        State = "validated"
	StateSubmitting       State = "submitting"
	StateDone             State = "done"
)

// CampaignConflict reports that an operation would overwrite the campaign
// already associated with the resolved device. The caller must confirm with
// the user and then call ConfirmCampaignChange; the workflow never
// reassigns a device's campaign silently.
type CampaignConflict struct {
	DeviceID            int64
	CurrentCampaignID   int64
	CurrentCampaignName string
	RequestedCampaignID int64
}

// ProgressFunc receives the cumulative percentage after each processed item
// during validation and submission.
type ProgressFunc func(percent int)

// API is the slice of the remote API the workflow needs.
type API interface {
	CapsuleExists(ctx context.Context, serial string, fragranceID int64) error
	CreateCapsule(ctx context.Context, record api.CapsuleRecord) error
	UpdateDeviceCampaign(ctx context.Context, deviceID, campaignID int64) error
	UpdateDeviceRemainingTests(ctx context.Context, deviceID int64, remaining int) error
	Settings(ctx context.Context) (*api.Settings, error)
}

// DeviceResolver resolves devices by MAC.
type DeviceResolver interface {
	FindByMAC(ctx context.Context, raw string) (*api.Device, error)
}

// CampaignResolver fetches full campaign detail.
type CampaignResolver interface {
	Detail(ctx context.Context, id int64) (*api.Campaign, error)
}

// Workflow drives one capsule-registration session. A screen owns exactly
// one instance; it is not safe for concurrent use. All remote calls are
// issued sequentially so progress and rejection reporting stay
// deterministic.
type Workflow struct {
	client    API
	devices   DeviceResolver
	campaigns CampaignResolver
	progress  ProgressFunc
	randPool  io.Reader
	nowTime   func() time.Time

	state        State
	customerCode string

	deviceID             int64
	deviceMAC            string
	deviceRemainingTests int
	deviceCampaignID     *int64
	deviceCampaignName   string

	campaign      *api.Campaign
	candidates    []Candidate
	campaignTests int

	serialNumber       string
	dueDate            string
	consumeDeviceTests bool
	lastProgress       int
}

// WorkflowOption defines a function type to modify the Workflow instance.
type WorkflowOption func(*Workflow)

// WithProgressFunc sets the progress callback.
func WithProgressFunc(fn ProgressFunc) WorkflowOption {
	return func(w *Workflow) {
		w.progress = fn
	}
}

// WithSerialRand sets the randomness source for serial generation
// (primarily for testing)
func WithSerialRand(r io.Reader) WorkflowOption {
	return func(w *Workflow) {
		w.randPool = r
	}
}

// WithNowTime sets the now time function (primarily for testing)
func WithNowTime(nowFunc func() time.Time) WorkflowOption {
	return func(w *Workflow) {
		w.nowTime = nowFunc
	}
}

// NewWorkflow initializes an empty workflow.
func NewWorkflow(client API, devices DeviceResolver, campaigns CampaignResolver, options ...WorkflowOption) (*Workflow, error) {
	if client == nil {
		return nil, errors.New("[NewWorkflow] client is required")
	}
	if devices == nil {
		return nil, errors.New("[NewWorkflow] device resolver is required")
	}
	if campaigns == nil {
		return nil, errors.New("[NewWorkflow] campaign resolver is required")
	}
	workflow := &Workflow{
		client:    client,
		devices:   devices,
		campaigns: campaigns,
		randPool:  rand.Reader,
		nowTime:   time.Now,
		state:     StateEmpty,
	}
	for _, opt := range options {
		opt(workflow)
	}
	if workflow.dueDate == "" {
		workflow.dueDate = workflow.nowTime().AddDate(1, 0, 0).Format("2006-01-02")
	}
	return workflow, nil
}

// State returns the workflow's current state.
func (w *Workflow) State() State { return w.state }

// LastProgress returns the last reported progress percentage. After a
// partial submission failure this is the only record of how far the batch
// got.
func (w *Workflow) LastProgress() int { return w.lastProgress }

// Candidates returns a copy of the candidate list, ascending by slot.
func (w *Workflow) Candidates() []Candidate {
	out := make([]Candidate, len(w.candidates))
	copy(out, w.candidates)
	return out
}

// LoadDefaults fetches remote settings and seeds the customer code. Failure
// is logged and non-fatal; the code can be entered manually.
func (w *Workflow) LoadDefaults(ctx context.Context) {
	settings, err := w.client.Settings(ctx)
	if err != nil {
		log.Err(err).Msg("Failed to load settings defaults")
		return
	}
	if settings.CustomerCode != "" {
		w.customerCode = settings.CustomerCode
	}
}

// SetCustomerCode overrides the customer code applied to every record.
func (w *Workflow) SetCustomerCode(code string) { w.customerCode = code }

// CustomerCode returns the code applied to every record.
func (w *Workflow) CustomerCode() string { return w.customerCode }

// SetSerialNumber sets the serial shared by the batch.
func (w *Workflow) SetSerialNumber(serial string) { w.serialNumber = serial }

// SerialNumber returns the serial shared by the batch.
func (w *Workflow) SerialNumber() string { return w.serialNumber }

// SetDueDate overrides the expiry date (YYYY-MM-DD) stamped on each record.
func (w *Workflow) SetDueDate(date string) { w.dueDate = date }

// SetConsumeDeviceTests arms the post-submission decrement of the device's
// remaining-test pool.
func (w *Workflow) SetConsumeDeviceTests(consume bool) { w.consumeDeviceTests = consume }

// ResolveDevice looks up a device by raw MAC input (typed or decoded from a
// QR capture). When the device carries a campaign association the campaign
// resolves automatically; if a different campaign was already resolved
// manually, a CampaignConflict is returned instead and nothing changes
// remotely.
func (w *Workflow) ResolveDevice(ctx context.Context, rawMAC string) (*CampaignConflict, error) {
	device, err := w.devices.FindByMAC(ctx, rawMAC)
	if err != nil {
		return nil, err
	}
	return w.AdoptDevice(ctx, device)
}

// AdoptDevice records an already-fetched device (QR capture path shares
// this with ResolveDevice).
func (w *Workflow) AdoptDevice(ctx context.Context, device *api.Device) (*CampaignConflict, error) {
	w.deviceID = device.DeviceID
	w.deviceMAC = device.MacAddress
	w.deviceRemainingTests = device.RemainingTests
	if w.state == StateEmpty {
		w.state = StateDeviceResolved
	}

	assocID, assocName := deviceCampaignAssociation(device)
	if assocID == 0 {
		w.deviceCampaignID = nil
		w.deviceCampaignName = ""
		log.Info().Str("mac", device.MacAddress).Msg("Device has no associated campaign")
		return nil, nil
	}
	w.deviceCampaignID = utils.Ptr(assocID)
	w.deviceCampaignName = assocName

	if w.campaign != nil && w.campaign.CampaignID != assocID {
		return &CampaignConflict{
			DeviceID:            w.deviceID,
			CurrentCampaignID:   w.campaign.CampaignID,
			CurrentCampaignName: w.campaign.Name,
			RequestedCampaignID: assocID,
		}, nil
	}

	if err := w.resolveCampaign(ctx, assocID); err != nil {
		return nil, err
	}
	return nil, nil
}

// SelectCampaign resolves a campaign chosen from search. If the resolved
// device is already associated with a different campaign, the selection
// returns a CampaignConflict for the caller to confirm.
func (w *Workflow) SelectCampaign(ctx context.Context, campaignID int64) (*CampaignConflict, error) {
	if w.deviceID != 0 && w.deviceCampaignID != nil && utils.Value(w.deviceCampaignID) != campaignID {
		return &CampaignConflict{
			DeviceID:            w.deviceID,
			CurrentCampaignID:   utils.Value(w.deviceCampaignID),
			CurrentCampaignName: w.deviceCampaignName,
			RequestedCampaignID: campaignID,
		}, nil
	}
	if err := w.resolveCampaign(ctx, campaignID); err != nil {
		return nil, err
	}
	return nil, nil
}

// ConfirmCampaignChange applies a user-confirmed campaign reassignment: one
// explicit remote update, then the campaign resolves locally. A remote
// failure aborts with the prior campaign intact.
func (w *Workflow) ConfirmCampaignChange(ctx context.Context, campaignID int64) error {
	if w.deviceID == 0 {
		return apperrors.Wrapf(apperrors.ErrValidation, "no device resolved")
	}
	if err := w.client.UpdateDeviceCampaign(ctx, w.deviceID, campaignID); err != nil {
		return errors.Wrap(err, "[ConfirmCampaignChange] update device campaign")
	}
	if err := w.resolveCampaign(ctx, campaignID); err != nil {
		return err
	}
	w.deviceCampaignID = utils.Ptr(campaignID)
	w.deviceCampaignName = w.campaign.Name
	return nil
}

// resolveCampaign fetches the campaign detail and rebuilds the candidate
// list. This is a total replace of any prior candidates.
func (w *Workflow) resolveCampaign(ctx context.Context, campaignID int64) error {
	campaign, err := w.campaigns.Detail(ctx, campaignID)
	if err != nil {
		return err
	}
	w.campaign = campaign
	w.candidates = candidatesFromCampaign(campaign)
	w.campaignTests = utils.Value(campaign.DeviceTests)
	w.state = StateCampaignResolved
	return nil
}

// Campaign returns the currently resolved campaign, nil before resolution.
func (w *Workflow) Campaign() *api.Campaign { return w.campaign }

// ToggleCandidate flips one candidate's selection. Re-selecting a rejected
// candidate clears its rejection so the user can override a validation
// verdict deliberately.
func (w *Workflow) ToggleCandidate(fragranceID int64) {
	for i := range w.candidates {
		if w.candidates[i].FragranceID != fragranceID {
			continue
		}
		w.candidates[i].Selected = !w.candidates[i].Selected
		if w.candidates[i].Selected {
			w.candidates[i].Rejected = false
		}
		return
	}
}

// SelectAll sets every candidate's selection to the target value. Selecting
// all clears rejection flags.
func (w *Workflow) SelectAll(selected bool) {
	for i := range w.candidates {
		w.candidates[i].Selected = selected
		if selected {
			w.candidates[i].Rejected = false
		}
	}
}

// AllSelected reports whether every candidate is selected and the list is
// non-empty. This backs the aggregate select-all checkbox.
func (w *Workflow) AllSelected() bool {
	return len(w.candidates) > 0 && countSelected(w.candidates) == len(w.candidates)
}

// Reset clears all workflow state back to empty. The customer code default
// survives so the next registration does not refetch settings.
func (w *Workflow) Reset() {
	code := w.customerCode
	due := w.nowTime().AddDate(1, 0, 0).Format("2006-01-02")
	*w = Workflow{
		client:       w.client,
		devices:      w.devices,
		campaigns:    w.campaigns,
		progress:     w.progress,
		randPool:     w.randPool,
		nowTime:      w.nowTime,
		state:        StateEmpty,
		customerCode: code,
		dueDate:      due,
	}
}

func (w *Workflow) reportProgress(processed, total int) {
	percent := (processed*100 + total - 1) / total
	w.lastProgress = percent
	if w.progress != nil {
		w.progress(percent)
	}
}

func deviceCampaignAssociation(device *api.Device) (int64, string) {
	if device.CampaignID != nil && *device.CampaignID != 0 {
		return *device.CampaignID, ""
	}
	if device.Campaign != nil && device.Campaign.CampaignID != 0 {
		return device.Campaign.CampaignID, device.Campaign.Name
	}
	return 0, ""
}
