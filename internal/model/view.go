package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// AdView records one viewing of a campaign. It is never mutated after insert.
type AdView struct {
	ID              string          `json:"id"`
	UserID          string          `json:"user_id"`
	AdID            string          `json:"ad_id"`
	SlotID          string          `json:"slot_id"`
	WatchedAt       time.Time       `json:"watched_at"`
	DurationSeconds int             `json:"duration"`
	RewardEarned    decimal.Decimal `json:"reward_earned"`
	Verified        bool            `json:"verified"`
	Date            string          `json:"date"`
}
