// Package view records finished ad views and credits their rewards.
package view

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dukerupert/spotx/internal/campaign"
	"github.com/dukerupert/spotx/internal/metrics"
	"github.com/dukerupert/spotx/internal/model"
	"github.com/dukerupert/spotx/internal/money"
	"github.com/dukerupert/spotx/internal/slot"
	"github.com/dukerupert/spotx/internal/store"
	"github.com/dukerupert/spotx/internal/websocket"
)

var (
	ErrCampaignNotFound   = errors.New("campaign not found")
	ErrCampaignIneligible = errors.New("campaign is not eligible")
	ErrInvalidDuration    = errors.New("duration must not be negative")
)

// Status summarizes what a view achieved.
type Status string

const (
	StatusRewarded   Status = "rewarded"
	StatusUnverified Status = "unverified"
)

type Result struct {
	View   model.AdView         `json:"view"`
	Reward *model.Reward        `json:"reward,omitempty"`
	Status Status               `json:"status"`
	Daily  *model.DailyAdStatus `json:"daily,omitempty"`
}

type CampaignGetter interface {
	GetByID(id string) (*model.Campaign, error)
}

type Store interface {
	Record(in store.ViewInput) (*store.ViewResult, error)
	ListByUser(userID string, limit int) ([]model.AdView, error)
	CountByUserDate(userID, date string) (int, error)
}

// SummaryInvalidator drops cached reward summaries. *reward.Service satisfies it.
type SummaryInvalidator interface {
	Invalidate(ctx context.Context, userID string)
}

// Publisher delivers realtime events to a user.
type Publisher interface {
	SendToUser(userID string, msg websocket.Message)
}

type Recorder struct {
	slots     *slot.Service
	campaigns CampaignGetter
	views     Store
	summaries SummaryInvalidator
	publisher Publisher
	metrics   *metrics.Metrics
	currency  string
	logger    *slog.Logger
}

func NewRecorder(slots *slot.Service, campaigns CampaignGetter, views Store, summaries SummaryInvalidator, publisher Publisher, m *metrics.Metrics, currency string, logger *slog.Logger) *Recorder {
	return &Recorder{
		slots:     slots,
		campaigns: campaigns,
		views:     views,
		summaries: summaries,
		publisher: publisher,
		metrics:   m,
		currency:  currency,
		logger:    logger,
	}
}

// Complete records a view of campaignID in slotID. A view at least as long
// as the campaign's duration is verified: it completes the slot, credits the
// reward and charges the campaign in one transaction. Shorter views are kept
// for stats only and leave the slot open.
func (r *Recorder) Complete(ctx context.Context, userID, campaignID, slotID string, durationSeconds int, now time.Time) (*Result, error) {
	if durationSeconds < 0 {
		return nil, ErrInvalidDuration
	}
	if _, ok := slot.Lookup(slotID); !ok {
		return nil, slot.ErrUnknownSlot
	}

	c, err := r.campaigns.GetByID(campaignID)
	if err != nil {
		return nil, fmt.Errorf("get campaign: %w", err)
	}
	if c == nil {
		return nil, ErrCampaignNotFound
	}

	date := r.slots.Today(now)
	if _, err := r.slots.GetDailyStatus(userID, date); err != nil {
		return nil, err
	}

	if !campaign.IsEligible(*c, now) {
		return nil, ErrCampaignIneligible
	}
	verified := durationSeconds >= c.DurationSeconds
	if verified {
		if err := r.slots.CheckAvailable(userID, slotID, now); err != nil {
			return nil, err
		}
	}

	res, err := r.views.Record(store.ViewInput{
		UserID:          userID,
		CampaignID:      c.ID,
		SlotID:          slotID,
		Date:            date,
		WatchedAt:       now,
		DurationSeconds: durationSeconds,
		Verified:        verified,
		Reward:          c.RewardPerView,
		Description:     "Watched: " + c.Title,
	})
	if errors.Is(err, store.ErrSlotAlreadyCompleted) {
		return nil, slot.ErrSlotUnavailable
	}
	if errors.Is(err, store.ErrBudgetExhausted) {
		return nil, ErrCampaignIneligible
	}
	if err != nil {
		return nil, err
	}

	r.metrics.AdView(verified, money.ToMicros(res.View.RewardEarned))

	out := &Result{View: res.View, Reward: res.Reward, Status: StatusUnverified}
	if !verified {
		r.logger.Info("ad view unverified", "user_id", userID, "campaign_id", c.ID,
			"duration", durationSeconds, "required", c.DurationSeconds)
		return out, nil
	}

	out.Status = StatusRewarded
	if r.summaries != nil && res.Reward != nil {
		r.summaries.Invalidate(ctx, userID)
	}
	if daily, err := r.slots.GetDailyStatus(userID, date); err == nil {
		out.Daily = daily
	}
	r.logger.Info("ad view rewarded", "user_id", userID, "campaign_id", c.ID, "slot_id", slotID,
		"reward", money.Format(res.View.RewardEarned, r.currency))

	if r.publisher != nil {
		r.publisher.SendToUser(userID, websocket.NewMessage("slot", "completed", slotID, map[string]any{
			"date":  date,
			"ad_id": c.ID,
		}))
		if res.Reward != nil {
			r.publisher.SendToUser(userID, websocket.NewMessage("reward", "earned", res.Reward.ID, map[string]any{
				"amount":    res.Reward.Amount.String(),
				"formatted": money.Format(res.Reward.Amount, r.currency),
			}))
		}
	}
	return out, nil
}

// List returns the user's recent views.
func (r *Recorder) List(userID string, limit int) ([]model.AdView, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	return r.views.ListByUser(userID, limit)
}

// CountToday counts the user's views on the day of now.
func (r *Recorder) CountToday(userID string, now time.Time) (int, error) {
	return r.views.CountByUserDate(userID, r.slots.Today(now))
}
