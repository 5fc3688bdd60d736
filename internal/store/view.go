package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/dukerupert/spotx/internal/model"
	"github.com/dukerupert/spotx/internal/money"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type ViewStore struct {
	db *sql.DB
}

func NewViewStore(db *sql.DB) *ViewStore {
	return &ViewStore{db: db}
}

// ViewInput describes a finished viewing. Reward is credited only when
// Verified is set.
type ViewInput struct {
	UserID          string
	CampaignID      string
	SlotID          string
	Date            string
	WatchedAt       time.Time
	DurationSeconds int
	Verified        bool
	Reward          decimal.Decimal
	Description     string
}

type ViewResult struct {
	View   model.AdView
	Reward *model.Reward
}

const viewCols = `id, user_id, campaign_id, slot_id, watched_at, duration_seconds, reward_micros, verified, date`

func scanView(s scanner) (*model.AdView, error) {
	var v model.AdView
	var reward int64
	var verified int
	if err := s.Scan(&v.ID, &v.UserID, &v.AdID, &v.SlotID, &v.WatchedAt, &v.DurationSeconds, &reward, &verified, &v.Date); err != nil {
		return nil, err
	}
	v.RewardEarned = money.FromMicros(reward)
	v.Verified = verified == 1
	return &v, nil
}

// Record stores a view and its side effects in one transaction. For a
// verified view the slot is completed first, then the view, the reward and
// the campaign spend are written; any failure rolls back all of them.
// A user has at most one verified view per slot and date, even after the
// daily record was reset. Unverified views only record the view and the
// campaign stats.
func (s *ViewStore) Record(in ViewInput) (*ViewResult, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	reward := decimal.Zero
	if in.Verified {
		reward = in.Reward
	}
	rewardMicros := money.ToMicros(reward)

	view := model.AdView{
		ID:              uuid.NewString(),
		UserID:          in.UserID,
		AdID:            in.CampaignID,
		SlotID:          in.SlotID,
		WatchedAt:       in.WatchedAt.UTC(),
		DurationSeconds: in.DurationSeconds,
		RewardEarned:    money.FromMicros(rewardMicros),
		Verified:        in.Verified,
		Date:            in.Date,
	}

	if in.Verified {
		if err := completeSlotTx(tx, in.UserID, in.Date, in.SlotID, in.CampaignID, view.WatchedAt); err != nil {
			return nil, err
		}
	}

	if _, err := tx.Exec(
		`INSERT INTO ad_views (`+viewCols+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		view.ID, view.UserID, view.AdID, view.SlotID, view.WatchedAt, view.DurationSeconds,
		rewardMicros, boolInt(view.Verified), view.Date,
	); isUniqueViolation(err) {
		return nil, ErrSlotAlreadyCompleted
	} else if err != nil {
		return nil, fmt.Errorf("insert ad view: %w", err)
	}

	result := &ViewResult{View: view}
	if in.Verified && rewardMicros > 0 {
		r, err := insertReward(tx, in.UserID, reward, model.RewardSourceAdView, &view.ID, in.Description, view.WatchedAt)
		if err != nil {
			return nil, err
		}
		result.Reward = r

		res, err := tx.Exec(
			`UPDATE campaigns SET spent_budget_micros = spent_budget_micros + ?, updated_at = ?
			 WHERE id = ? AND spent_budget_micros < total_budget_micros`,
			rewardMicros, time.Now().UTC(), in.CampaignID,
		)
		if err != nil {
			return nil, fmt.Errorf("increment campaign spend: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return nil, ErrBudgetExhausted
		}
	}

	if _, err := tx.Exec(
		`INSERT INTO campaign_stats (campaign_id, date, views, completed_views, watch_time_seconds, reward_micros)
		 VALUES (?, ?, 1, ?, ?, ?)
		 ON CONFLICT (campaign_id, date) DO UPDATE SET
			views = views + 1,
			completed_views = completed_views + excluded.completed_views,
			watch_time_seconds = watch_time_seconds + excluded.watch_time_seconds,
			reward_micros = reward_micros + excluded.reward_micros`,
		in.CampaignID, in.Date, boolInt(in.Verified), in.DurationSeconds, rewardMicros,
	); err != nil {
		return nil, fmt.Errorf("update campaign stats: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}
	return result, nil
}

// ListByUser returns the user's most recent views, newest first.
func (s *ViewStore) ListByUser(userID string, limit int) ([]model.AdView, error) {
	rows, err := s.db.Query(`SELECT `+viewCols+` FROM ad_views WHERE user_id = ? ORDER BY watched_at DESC LIMIT ?`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("list ad views: %w", err)
	}
	defer rows.Close()

	views := []model.AdView{}
	for rows.Next() {
		v, err := scanView(rows)
		if err != nil {
			return nil, fmt.Errorf("scan ad view: %w", err)
		}
		views = append(views, *v)
	}
	return views, rows.Err()
}

// CountByUserDate counts the user's views on date, verified or not.
func (s *ViewStore) CountByUserDate(userID, date string) (int, error) {
	var n int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM ad_views WHERE user_id = ? AND date = ?`, userID, date).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count ad views: %w", err)
	}
	return n, nil
}

// Counts returns the total and verified number of views.
func (s *ViewStore) Counts() (total, verified int, err error) {
	err = s.db.QueryRow(`SELECT COUNT(*), COALESCE(SUM(verified), 0) FROM ad_views`).Scan(&total, &verified)
	if err != nil {
		return 0, 0, fmt.Errorf("count ad views: %w", err)
	}
	return total, verified, nil
}
