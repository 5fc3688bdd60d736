package reward

import (
	"time"

	"github.com/dukerupert/spotx/internal/model"
	"github.com/shopspring/decimal"
)

// Summarize aggregates a reward ledger relative to now. Today is the calendar
// day of now in loc, the week is the trailing seven days including today and
// the month the trailing thirty days including today.
func Summarize(rewards []model.Reward, now time.Time, loc *time.Location) model.RewardSummary {
	if loc == nil {
		loc = time.UTC
	}
	now = now.In(loc)
	dayStart := startOfDay(now)
	dayEnd := dayStart.AddDate(0, 0, 1)
	weekStart := dayStart.AddDate(0, 0, -6)
	monthStart := dayStart.AddDate(0, 0, -29)

	sum := model.RewardSummary{
		TotalEarned: decimal.Zero,
		TotalPaid:   decimal.Zero,
		ThisMonth:   decimal.Zero,
		ThisWeek:    decimal.Zero,
		Today:       decimal.Zero,
	}
	for _, r := range rewards {
		sum.TotalEarned = sum.TotalEarned.Add(r.Amount)
		if r.Status == model.RewardPaid {
			sum.TotalPaid = sum.TotalPaid.Add(r.Amount)
		}

		at := r.CreatedAt.In(loc)
		if !at.Before(dayEnd) {
			continue
		}
		if !at.Before(monthStart) {
			sum.ThisMonth = sum.ThisMonth.Add(r.Amount)
		}
		if !at.Before(weekStart) {
			sum.ThisWeek = sum.ThisWeek.Add(r.Amount)
		}
		if !at.Before(dayStart) {
			sum.Today = sum.Today.Add(r.Amount)
		}
	}
	sum.TotalPending = sum.TotalEarned.Sub(sum.TotalPaid)
	return sum
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
