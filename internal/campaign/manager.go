package campaign

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dukerupert/spotx/internal/cache"
	"github.com/dukerupert/spotx/internal/model"
	"github.com/dukerupert/spotx/internal/store"
	"github.com/shopspring/decimal"
)

var (
	ErrNotFound            = errors.New("campaign not found")
	ErrInvalidTransition   = errors.New("invalid campaign status transition")
	ErrMerchantNotApproved = errors.New("merchant is not approved")
	ErrInvalidBudget       = errors.New("budget and reward must be positive")
	ErrRewardExceedsBudget = errors.New("reward per view exceeds total budget")
	ErrBudgetUnderflow     = errors.New("total budget is below the amount already spent")
	ErrInvalidDates        = errors.New("end date is before start date")
)

type Store interface {
	Create(merchantID string, in store.CampaignInput) (*model.Campaign, error)
	GetByID(id string) (*model.Campaign, error)
	ListByMerchant(merchantID string) ([]model.Campaign, error)
	Update(id string, in store.CampaignInput) (*model.Campaign, error)
	SetStatus(id string, status model.CampaignStatus) (*model.Campaign, error)
	SetContentURL(id, url string) (*model.Campaign, error)
	GetStats(campaignID, from, to string) ([]model.CampaignStats, error)
}

type MerchantGetter interface {
	GetByID(id string) (*model.Merchant, error)
}

// Manager applies merchant edits to campaigns.
type Manager struct {
	store     Store
	merchants MerchantGetter
	cache     *cache.Cache
	logger    *slog.Logger
}

func NewManager(store Store, merchants MerchantGetter, c *cache.Cache, logger *slog.Logger) *Manager {
	return &Manager{store: store, merchants: merchants, cache: c, logger: logger}
}

// Validate checks an input against the money and date rules. spent is the
// amount already paid out, zero for a new campaign.
func Validate(in store.CampaignInput, spent decimal.Decimal) error {
	if !in.RewardPerView.IsPositive() || !in.TotalBudget.IsPositive() {
		return ErrInvalidBudget
	}
	if in.RewardPerView.GreaterThan(in.TotalBudget) {
		return ErrRewardExceedsBudget
	}
	if in.TotalBudget.LessThan(spent) {
		return ErrBudgetUnderflow
	}
	if in.StartDate != nil && in.EndDate != nil && in.EndDate.Before(*in.StartDate) {
		return ErrInvalidDates
	}
	return nil
}

func (m *Manager) Create(merchantID string, in store.CampaignInput) (*model.Campaign, error) {
	if err := Validate(in, decimal.Zero); err != nil {
		return nil, err
	}
	c, err := m.store.Create(merchantID, in)
	if err != nil {
		return nil, err
	}
	m.logger.Info("campaign created", "campaign_id", c.ID, "merchant_id", merchantID)
	return c, nil
}

// Get returns a campaign owned by merchantID.
func (m *Manager) Get(merchantID, id string) (*model.Campaign, error) {
	c, err := m.store.GetByID(id)
	if err != nil {
		return nil, err
	}
	if c == nil || c.MerchantID != merchantID {
		return nil, ErrNotFound
	}
	return c, nil
}

func (m *Manager) List(merchantID string) ([]model.Campaign, error) {
	return m.store.ListByMerchant(merchantID)
}

func (m *Manager) Update(merchantID, id string, in store.CampaignInput) (*model.Campaign, error) {
	c, err := m.Get(merchantID, id)
	if err != nil {
		return nil, err
	}
	if c.Status == model.CampaignCompleted {
		return nil, ErrInvalidTransition
	}
	if err := Validate(in, c.SpentBudget); err != nil {
		return nil, err
	}
	updated, err := m.store.Update(id, in)
	if err != nil {
		return nil, err
	}
	m.invalidate()
	return updated, nil
}

// Transition moves a campaign to a new status. Activation requires an
// approved merchant.
func (m *Manager) Transition(merchantID, id string, to model.CampaignStatus) (*model.Campaign, error) {
	c, err := m.Get(merchantID, id)
	if err != nil {
		return nil, err
	}
	if !CanTransition(c.Status, to) {
		return nil, fmt.Errorf("%w: %s to %s", ErrInvalidTransition, c.Status, to)
	}
	if to == model.CampaignActive {
		merchant, err := m.merchants.GetByID(merchantID)
		if err != nil {
			return nil, err
		}
		if merchant == nil || merchant.Status != model.MerchantApproved {
			return nil, ErrMerchantNotApproved
		}
	}
	updated, err := m.store.SetStatus(id, to)
	if err != nil {
		return nil, err
	}
	m.logger.Info("campaign status changed", "campaign_id", id, "from", c.Status, "to", to)
	m.invalidate()
	return updated, nil
}

// invalidate drops the mirrored active list so a store outage cannot serve
// a campaign from before the edit.
func (m *Manager) invalidate() {
	if err := m.cache.Delete(context.Background(), cache.ActiveCampaignsKey); err != nil {
		m.logger.Warn("campaign cache invalidation failed", "error", err)
	}
}

func (m *Manager) SetContentURL(merchantID, id, url string) (*model.Campaign, error) {
	if _, err := m.Get(merchantID, id); err != nil {
		return nil, err
	}
	return m.store.SetContentURL(id, url)
}

// Stats returns daily stats for the last days days ending at now.
func (m *Manager) Stats(merchantID, id string, days int, now time.Time, loc *time.Location) ([]model.CampaignStats, error) {
	if _, err := m.Get(merchantID, id); err != nil {
		return nil, err
	}
	if days <= 0 || days > 365 {
		days = 30
	}
	to := now.In(loc)
	from := to.AddDate(0, 0, -(days - 1))
	return m.store.GetStats(id, from.Format("2006-01-02"), to.Format("2006-01-02"))
}
