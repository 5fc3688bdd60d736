package model

import (
	"time"

	"github.com/shopspring/decimal"
)

type RewardSource string

const (
	RewardSourceAdView   RewardSource = "ad_view"
	RewardSourceReferral RewardSource = "referral"
	RewardSourceBonus    RewardSource = "bonus"
	RewardSourceOther    RewardSource = "other"
)

type RewardStatus string

const (
	RewardEarned RewardStatus = "earned"
	RewardPaid   RewardStatus = "paid"
)

type Reward struct {
	ID          string          `json:"id"`
	UserID      string          `json:"user_id"`
	Amount      decimal.Decimal `json:"amount"`
	Source      RewardSource    `json:"source"`
	SourceID    *string         `json:"source_id,omitempty"`
	Status      RewardStatus    `json:"status"`
	Description string          `json:"description,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
	PaidAt      *time.Time      `json:"paid_at,omitempty"`
}

// RewardSummary is derived from the reward ledger on every request.
type RewardSummary struct {
	TotalEarned  decimal.Decimal `json:"total_earned"`
	TotalPaid    decimal.Decimal `json:"total_paid"`
	TotalPending decimal.Decimal `json:"total_pending"`
	ThisMonth    decimal.Decimal `json:"this_month"`
	ThisWeek     decimal.Decimal `json:"this_week"`
	Today        decimal.Decimal `json:"today"`
}
