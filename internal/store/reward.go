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

// RewardStore is the append-only reward ledger.
type RewardStore struct {
	db *sql.DB
}

func NewRewardStore(db *sql.DB) *RewardStore {
	return &RewardStore{db: db}
}

type execer interface {
	Exec(query string, args ...any) (sql.Result, error)
}

const rewardCols = `id, user_id, amount_micros, source, source_id, status, description, created_at, paid_at`

func scanReward(s scanner) (*model.Reward, error) {
	var r model.Reward
	var amount int64
	var source, status string
	var sourceID sql.NullString
	var paidAt sql.NullTime
	if err := s.Scan(&r.ID, &r.UserID, &amount, &source, &sourceID, &status, &r.Description, &r.CreatedAt, &paidAt); err != nil {
		return nil, err
	}
	r.Amount = money.FromMicros(amount)
	r.Source = model.RewardSource(source)
	r.SourceID = stringPtr(sourceID)
	r.Status = model.RewardStatus(status)
	r.PaidAt = timePtr(paidAt)
	return &r, nil
}

// insertReward appends an earned reward through ex, which may be a
// transaction. A second ad_view reward for the same view yields
// ErrDuplicateReward.
func insertReward(ex execer, userID string, amount decimal.Decimal, source model.RewardSource, sourceID *string, description string, at time.Time) (*model.Reward, error) {
	r := &model.Reward{
		ID:          uuid.NewString(),
		UserID:      userID,
		Amount:      money.FromMicros(money.ToMicros(amount)),
		Source:      source,
		SourceID:    sourceID,
		Status:      model.RewardEarned,
		Description: description,
		CreatedAt:   at.UTC(),
	}
	_, err := ex.Exec(
		`INSERT INTO rewards (id, user_id, amount_micros, source, source_id, status, description, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.UserID, money.ToMicros(amount), string(source), nullString(sourceID), string(r.Status), description, r.CreatedAt,
	)
	if isUniqueViolation(err) {
		return nil, ErrDuplicateReward
	}
	if err != nil {
		return nil, fmt.Errorf("insert reward: %w", err)
	}
	return r, nil
}

// Create appends an earned reward.
func (s *RewardStore) Create(userID string, amount decimal.Decimal, source model.RewardSource, sourceID *string, description string) (*model.Reward, error) {
	return insertReward(s.db, userID, amount, source, sourceID, description, time.Now())
}

func (s *RewardStore) GetByID(id string) (*model.Reward, error) {
	r, err := scanReward(s.db.QueryRow(`SELECT `+rewardCols+` FROM rewards WHERE id = ?`, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get reward: %w", err)
	}
	return r, nil
}

// ListByUser returns the user's whole ledger, newest first.
func (s *RewardStore) ListByUser(userID string) ([]model.Reward, error) {
	return s.list(`SELECT `+rewardCols+` FROM rewards WHERE user_id = ? ORDER BY created_at DESC`, userID)
}

// ListRecentByUser returns at most limit rewards, newest first.
func (s *RewardStore) ListRecentByUser(userID string, limit int) ([]model.Reward, error) {
	return s.list(`SELECT `+rewardCols+` FROM rewards WHERE user_id = ? ORDER BY created_at DESC LIMIT ?`, userID, limit)
}

func (s *RewardStore) list(query string, args ...any) ([]model.Reward, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("list rewards: %w", err)
	}
	defer rows.Close()

	rewards := []model.Reward{}
	for rows.Next() {
		r, err := scanReward(rows)
		if err != nil {
			return nil, fmt.Errorf("scan reward: %w", err)
		}
		rewards = append(rewards, *r)
	}
	return rewards, rows.Err()
}

// TotalIssued returns the sum of all rewards ever granted.
func (s *RewardStore) TotalIssued() (decimal.Decimal, error) {
	var micros int64
	if err := s.db.QueryRow(`SELECT COALESCE(SUM(amount_micros), 0) FROM rewards`).Scan(&micros); err != nil {
		return decimal.Zero, fmt.Errorf("sum rewards: %w", err)
	}
	return money.FromMicros(micros), nil
}
