package capsule

import (
	"sort"

	"github.com/noarlabs/go-capsule-client/api"
)

// Candidate is an in-memory, not-yet-submitted capsule registration derived
// from a campaign slot. Rejected implies not Selected.
type Candidate struct {
	FragranceID int64
	Slot        int
	Name        string
	Selected    bool
	Rejected    bool
}

// candidatesFromCampaign builds one unselected candidate per slot in the
// campaign's collection, ascending by slot number.
func candidatesFromCampaign(campaign *api.Campaign) []Candidate {
	candidates := make([]Candidate, 0, len(campaign.Collection))
	for _, slot := range campaign.Collection {
		candidates = append(candidates, Candidate{
			FragranceID: slot.FragranceID,
			Slot:        slot.Slot,
			Name:        slot.Fragrance.Name,
		})
	}
	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].Slot < candidates[j].Slot
	})
	return candidates
}

func countSelected(candidates []Candidate) int {
	selected := 0
	for _, c := range candidates {
		if c.Selected {
			selected++
		}
	}
	return selected
}
