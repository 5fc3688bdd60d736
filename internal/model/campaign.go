package model

import (
	"time"

	"github.com/shopspring/decimal"
)

type CampaignStatus string

const (
	CampaignDraft     CampaignStatus = "draft"
	CampaignActive    CampaignStatus = "active"
	CampaignPaused    CampaignStatus = "paused"
	CampaignCompleted CampaignStatus = "completed"
)

type ContentType string

const (
	ContentVideo ContentType = "video"
	ContentImage ContentType = "image"
)

// Campaign is a merchant-owned advertising unit. Budgets and rewards are
// currency amounts; SpentBudget only grows through verified views.
type Campaign struct {
	ID              string          `json:"id"`
	MerchantID      string          `json:"merchant_id"`
	Title           string          `json:"title"`
	Description     string          `json:"description"`
	ContentType     ContentType     `json:"content_type"`
	ContentURL      string          `json:"content_url"`
	TargetInterests []string        `json:"target_interests"`
	DurationSeconds int             `json:"duration_seconds"`
	RewardPerView   decimal.Decimal `json:"reward_per_view"`
	TotalBudget     decimal.Decimal `json:"total_budget"`
	SpentBudget     decimal.Decimal `json:"spent_budget"`
	Status          CampaignStatus  `json:"status"`
	StartDate       *time.Time      `json:"start_date,omitempty"`
	EndDate         *time.Time      `json:"end_date,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

// CampaignStats is one day of aggregated view activity for a campaign.
type CampaignStats struct {
	CampaignID       string          `json:"campaign_id"`
	Date             string          `json:"date"`
	Views            int             `json:"views"`
	CompletedViews   int             `json:"completed_views"`
	WatchTimeSeconds int64           `json:"watch_time_seconds"`
	RewardTotal      decimal.Decimal `json:"reward_total"`
}

// Ad is the client-facing view of a campaign.
type Ad struct {
	ID              string          `json:"id"`
	Title           string          `json:"title"`
	Description     string          `json:"description"`
	ContentType     ContentType     `json:"content_type"`
	ContentURL      string          `json:"content_url"`
	DurationSeconds int             `json:"duration_seconds"`
	Reward          decimal.Decimal `json:"reward"`
}
