// Package campaign decides which campaigns may be shown to a user and
// manages campaign lifecycle for merchants.
package campaign

import (
	"math/rand/v2"
	"strings"
	"time"

	"github.com/dukerupert/spotx/internal/model"
)

// HasBudget reports whether the campaign can still pay for a view.
func HasBudget(c model.Campaign) bool {
	return c.SpentBudget.LessThan(c.TotalBudget)
}

// IsEligible reports whether c is active, inside its date range and funded.
// A nil start or end date leaves that side unbounded.
func IsEligible(c model.Campaign, now time.Time) bool {
	if c.Status != model.CampaignActive {
		return false
	}
	if c.StartDate != nil && now.Before(*c.StartDate) {
		return false
	}
	if c.EndDate != nil && now.After(*c.EndDate) {
		return false
	}
	return HasBudget(c)
}

// FilterEligible narrows campaigns for a user. Unfunded campaigns are always
// dropped. Interest targeting only applies when the user has interests and
// at least one campaign targets something; campaigns without targeting
// always match. If targeting leaves nothing, the funded set is returned.
func FilterEligible(campaigns []model.Campaign, interests []string) []model.Campaign {
	funded := make([]model.Campaign, 0, len(campaigns))
	anyTargeted := false
	for _, c := range campaigns {
		if !HasBudget(c) {
			continue
		}
		funded = append(funded, c)
		if len(c.TargetInterests) > 0 {
			anyTargeted = true
		}
	}
	if len(interests) == 0 || !anyTargeted {
		return funded
	}

	want := make(map[string]struct{}, len(interests))
	for _, i := range interests {
		want[strings.ToLower(strings.TrimSpace(i))] = struct{}{}
	}

	matched := make([]model.Campaign, 0, len(funded))
	for _, c := range funded {
		if len(c.TargetInterests) == 0 || overlaps(c.TargetInterests, want) {
			matched = append(matched, c)
		}
	}
	if len(matched) == 0 {
		return funded
	}
	return matched
}

func overlaps(tags []string, want map[string]struct{}) bool {
	for _, t := range tags {
		if _, ok := want[strings.ToLower(t)]; ok {
			return true
		}
	}
	return false
}

// Pick draws one campaign uniformly at random.
func Pick(rng *rand.Rand, eligible []model.Campaign) (model.Campaign, bool) {
	if len(eligible) == 0 {
		return model.Campaign{}, false
	}
	return eligible[rng.IntN(len(eligible))], true
}

// ToAd converts a campaign to the shape served to viewers.
func ToAd(c model.Campaign) model.Ad {
	return model.Ad{
		ID:              c.ID,
		Title:           c.Title,
		Description:     c.Description,
		ContentType:     c.ContentType,
		ContentURL:      c.ContentURL,
		DurationSeconds: c.DurationSeconds,
		Reward:          c.RewardPerView,
	}
}

// CanTransition reports whether a campaign may move from one status to
// another. Completed is terminal.
func CanTransition(from, to model.CampaignStatus) bool {
	switch from {
	case model.CampaignDraft:
		return to == model.CampaignActive || to == model.CampaignCompleted
	case model.CampaignActive:
		return to == model.CampaignPaused || to == model.CampaignCompleted
	case model.CampaignPaused:
		return to == model.CampaignActive || to == model.CampaignCompleted
	}
	return false
}
