// Package reward keeps the user's reward ledger and derives summaries from it.
package reward

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dukerupert/spotx/internal/cache"
	"github.com/dukerupert/spotx/internal/metrics"
	"github.com/dukerupert/spotx/internal/model"
	"github.com/dukerupert/spotx/internal/money"
	"github.com/shopspring/decimal"
)

var (
	// ErrPayoutUnavailable is returned by RequestPayout until payouts exist.
	ErrPayoutUnavailable = errors.New("payouts are not available yet")
	ErrInvalidAmount     = errors.New("amount must be positive")
	ErrInvalidSource     = errors.New("invalid reward source")
)

type Store interface {
	Create(userID string, amount decimal.Decimal, source model.RewardSource, sourceID *string, description string) (*model.Reward, error)
	ListByUser(userID string) ([]model.Reward, error)
	ListRecentByUser(userID string, limit int) ([]model.Reward, error)
}

type Service struct {
	store    Store
	cache    *cache.Cache
	metrics  *metrics.Metrics
	loc      *time.Location
	currency string
	logger   *slog.Logger
}

func NewService(store Store, c *cache.Cache, m *metrics.Metrics, loc *time.Location, currency string, logger *slog.Logger) *Service {
	if loc == nil {
		loc = time.UTC
	}
	return &Service{store: store, cache: c, metrics: m, loc: loc, currency: currency, logger: logger}
}

// Record appends an earned reward for a watched ad view.
func (s *Service) Record(userID string, amount decimal.Decimal, adViewID string) (*model.Reward, error) {
	if !amount.IsPositive() {
		return nil, ErrInvalidAmount
	}
	r, err := s.store.Create(userID, amount, model.RewardSourceAdView, &adViewID, "")
	if err != nil {
		return nil, err
	}
	s.Invalidate(context.Background(), userID)
	return r, nil
}

// Grant credits a non-view reward such as a bonus or a referral.
func (s *Service) Grant(userID string, amount decimal.Decimal, source model.RewardSource, description string) (*model.Reward, error) {
	if !amount.IsPositive() {
		return nil, ErrInvalidAmount
	}
	switch source {
	case model.RewardSourceBonus, model.RewardSourceReferral, model.RewardSourceOther:
	default:
		return nil, ErrInvalidSource
	}
	r, err := s.store.Create(userID, amount, source, nil, description)
	if err != nil {
		return nil, fmt.Errorf("grant reward: %w", err)
	}
	s.logger.Info("reward granted", "user_id", userID, "amount", amount.String(), "source", source)
	s.Invalidate(context.Background(), userID)
	return r, nil
}

// Invalidate drops the user's mirrored summary after the ledger changed.
func (s *Service) Invalidate(ctx context.Context, userID string) {
	if err := s.cache.Delete(ctx, cache.RewardSummaryKey(userID)); err != nil {
		s.logger.Warn("reward summary cache invalidation failed", "user_id", userID, "error", err)
	}
}

func (s *Service) List(userID string, limit int) ([]model.Reward, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	return s.store.ListRecentByUser(userID, limit)
}

// Summary computes the user's summary from the full ledger. The last
// computed summary is mirrored to the cache and served when the store fails.
func (s *Service) Summary(ctx context.Context, userID string, now time.Time) (model.RewardSummary, error) {
	key := cache.RewardSummaryKey(userID)

	rewards, err := s.store.ListByUser(userID)
	if err != nil {
		var cached model.RewardSummary
		hit, cerr := s.cache.GetJSON(ctx, key, &cached)
		s.metrics.CacheLookup("reward_summary", hit)
		if cerr != nil {
			s.logger.Warn("reward summary cache read failed", "user_id", userID, "error", cerr)
		}
		if hit {
			s.logger.Warn("serving cached reward summary", "user_id", userID, "error", err)
			return cached, nil
		}
		return model.RewardSummary{}, fmt.Errorf("list rewards: %w", err)
	}

	sum := Summarize(rewards, now, s.loc)
	if err := s.cache.SetJSON(ctx, key, sum, cache.SummaryTTL); err != nil {
		s.logger.Warn("reward summary cache write failed", "user_id", userID, "error", err)
	}
	return sum, nil
}

// RequestPayout is not implemented; payouts are processed outside the service.
func (s *Service) RequestPayout(userID string) error {
	s.logger.Info("payout requested", "user_id", userID)
	return ErrPayoutUnavailable
}

// Format renders an amount in the service currency.
func (s *Service) Format(amount decimal.Decimal) string {
	return money.Format(amount, s.currency)
}
