package lookup

import (
	"context"
	"strings"

	"github.com/noarlabs/go-capsule-client/api"
	"github.com/noarlabs/go-capsule-client/internal/apperrors"
	"github.com/pkg/errors"
)

// minSearchLength gates text search so short queries never trigger broad
// server-side scans.
const minSearchLength = 3

// CampaignAPI is the slice of the remote API the campaign service needs.
type CampaignAPI interface {
	SearchCampaigns(ctx context.Context, query string) ([]api.CampaignSummary, error)
	CampaignDetail(ctx context.Context, id int64) (*api.Campaign, error)
}

// CampaignService searches campaigns and fetches their full detail. Results
// keep server order; nothing is cached client-side.
type CampaignService struct {
	client CampaignAPI
}

func NewCampaignService(client CampaignAPI) (*CampaignService, error) {
	if client == nil {
		return nil, errors.New("[NewCampaignService] client is required")
	}
	return &CampaignService{client: client}, nil
}

// Search returns campaigns whose name contains the query. Queries shorter
// than three characters return an empty result without a remote call.
func (s *CampaignService) Search(ctx context.Context, query string) ([]api.CampaignSummary, error) {
	query = strings.TrimSpace(query)
	if len(query) < minSearchLength {
		return nil, nil
	}

	results, err := s.client.SearchCampaigns(ctx, query)
	if err != nil {
		if apperrors.Is(err, apperrors.ErrUnauthorized) {
			return nil, err
		}
		return nil, apperrors.Wrapf(apperrors.ErrLookupFailed, "campaign search %q: %v", query, err)
	}
	return results, nil
}

// Detail fetches a full campaign including its ordered slot collection,
// fresh on every call.
func (s *CampaignService) Detail(ctx context.Context, id int64) (*api.Campaign, error) {
	campaign, err := s.client.CampaignDetail(ctx, id)
	if err != nil {
		switch {
		case apperrors.Is(err, apperrors.ErrNotFound):
			return nil, apperrors.Wrapf(apperrors.ErrNotFound, "campaign %d", id)
		case apperrors.Is(err, apperrors.ErrUnauthorized):
			return nil, err
		default:
			return nil, apperrors.Wrapf(apperrors.ErrLookupFailed, "campaign %d: %v", id, err)
		}
	}
	return campaign, nil
}
