package campaign

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"math/rand/v2"
	"testing"
	"time"

	"github.com/dukerupert/spotx/internal/cache"
	"github.com/dukerupert/spotx/internal/model"
	"github.com/shopspring/decimal"
)

type fakeLister struct {
	campaigns []model.Campaign
	err       error
}

func (f *fakeLister) ListActive() ([]model.Campaign, error) { return f.campaigns, f.err }

func newTestSelector(l ActiveLister) *Selector {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewSelector(l, cache.New("", logger), nil, logger).WithRand(rand.New(rand.NewPCG(7, 7)))
}

func TestSelectorNextFiltersByDateAndInterest(t *testing.T) {
	now := time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)
	ended := now.Add(-time.Hour)
	expired := testCampaign("expired", "0", "1", "food")
	expired.EndDate = &ended

	sel := newTestSelector(&fakeLister{campaigns: []model.Campaign{
		expired,
		testCampaign("cars", "0", "1", "cars"),
		testCampaign("food", "0", "1", "food"),
	}})

	for i := 0; i < 20; i++ {
		c, err := sel.Next(context.Background(), []string{"food"}, now)
		if err != nil {
			t.Fatalf("next: %v", err)
		}
		if c.ID != "food" {
			t.Fatalf("picked %s, want food", c.ID)
		}
	}
}

func TestSelectorNoCampaign(t *testing.T) {
	sel := newTestSelector(&fakeLister{campaigns: []model.Campaign{testCampaign("spent", "1", "1")}})
	if _, err := sel.Next(context.Background(), nil, time.Now()); !errors.Is(err, ErrNoCampaign) {
		t.Errorf("err = %v, want ErrNoCampaign", err)
	}
}

func TestSelectorStoreFailureWithoutCache(t *testing.T) {
	sel := newTestSelector(&fakeLister{err: errors.New("db down")})
	if _, err := sel.Next(context.Background(), nil, time.Now()); err == nil || errors.Is(err, ErrNoCampaign) {
		t.Errorf("err = %v, want store error", err)
	}
}

func TestSelectorServesMirrorWhenStoreFails(t *testing.T) {
	now := time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)
	c, mr := newTestCache(t)
	lister := &fakeLister{campaigns: []model.Campaign{testCampaign("food", "0", "1", "food")}}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	sel := NewSelector(lister, c, nil, logger).WithRand(rand.New(rand.NewPCG(7, 7)))

	if _, err := sel.Next(context.Background(), nil, now); err != nil {
		t.Fatalf("next: %v", err)
	}
	if !mr.Exists(cache.ActiveCampaignsKey) {
		t.Fatal("active list not mirrored after a successful read")
	}

	lister.err = errors.New("db down")
	got, err := sel.Next(context.Background(), []string{"food"}, now)
	if err != nil {
		t.Fatalf("next with store down: %v", err)
	}
	if got.ID != "food" || !got.RewardPerView.Equal(decimal.RequireFromString("0.01")) {
		t.Errorf("picked %+v, want cached food campaign", got)
	}

	mr.Del(cache.ActiveCampaignsKey)
	if _, err := sel.Next(context.Background(), nil, now); err == nil || errors.Is(err, ErrNoCampaign) {
		t.Errorf("err = %v, want store error once the mirror is gone", err)
	}
}
