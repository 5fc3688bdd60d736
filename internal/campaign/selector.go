package campaign

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/dukerupert/spotx/internal/cache"
	"github.com/dukerupert/spotx/internal/metrics"
	"github.com/dukerupert/spotx/internal/model"
)

// ErrNoCampaign is returned when no campaign is eligible for the user.
var ErrNoCampaign = errors.New("no eligible campaign")

type ActiveLister interface {
	ListActive() ([]model.Campaign, error)
}

// Selector picks the campaign a user watches next.
type Selector struct {
	store   ActiveLister
	cache   *cache.Cache
	metrics *metrics.Metrics
	logger  *slog.Logger

	mu  sync.Mutex
	rng *rand.Rand
}

func NewSelector(store ActiveLister, c *cache.Cache, m *metrics.Metrics, logger *slog.Logger) *Selector {
	return &Selector{
		store:   store,
		cache:   c,
		metrics: m,
		logger:  logger,
		rng:     rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())),
	}
}

// WithRand replaces the random source, for deterministic tests.
func (s *Selector) WithRand(rng *rand.Rand) *Selector {
	s.rng = rng
	return s
}

// Active returns the campaigns eligible at now. The store result is mirrored
// to the cache; if the store fails the last mirrored list is used.
func (s *Selector) Active(ctx context.Context, now time.Time) ([]model.Campaign, error) {
	campaigns, err := s.store.ListActive()
	if err != nil {
		var cached []model.Campaign
		hit, cerr := s.cache.GetJSON(ctx, cache.ActiveCampaignsKey, &cached)
		s.metrics.CacheLookup("active_campaigns", hit)
		if cerr != nil {
			s.logger.Warn("campaign cache read failed", "error", cerr)
		}
		if !hit {
			return nil, fmt.Errorf("list active campaigns: %w", err)
		}
		s.logger.Warn("serving cached campaigns", "error", err, "count", len(cached))
		campaigns = cached
	} else if err := s.cache.SetJSON(ctx, cache.ActiveCampaignsKey, campaigns, cache.CampaignsTTL); err != nil {
		s.logger.Warn("campaign cache write failed", "error", err)
	}

	eligible := make([]model.Campaign, 0, len(campaigns))
	for _, c := range campaigns {
		if IsEligible(c, now) {
			eligible = append(eligible, c)
		}
	}
	return eligible, nil
}

// Next picks one campaign for a user with the given interests.
func (s *Selector) Next(ctx context.Context, interests []string, now time.Time) (model.Campaign, error) {
	active, err := s.Active(ctx, now)
	if err != nil {
		return model.Campaign{}, err
	}

	s.mu.Lock()
	c, ok := Pick(s.rng, FilterEligible(active, interests))
	s.mu.Unlock()

	if !ok {
		return model.Campaign{}, ErrNoCampaign
	}
	return c, nil
}
