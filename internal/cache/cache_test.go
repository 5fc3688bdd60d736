package cache

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestDisabledCacheIsNoop(t *testing.T) {
	for _, c := range []*Cache{New("", discardLogger()), New("not a url", discardLogger()), nil} {
		ctx := context.Background()
		if c.Enabled() {
			t.Fatal("expected disabled cache")
		}
		if err := c.SetJSON(ctx, "k", map[string]int{"a": 1}, CampaignsTTL); err != nil {
			t.Errorf("SetJSON: %v", err)
		}
		var dst map[string]int
		hit, err := c.GetJSON(ctx, "k", &dst)
		if err != nil || hit {
			t.Errorf("GetJSON = %v, %v; want miss", hit, err)
		}
		if err := c.Delete(ctx, "k"); err != nil {
			t.Errorf("Delete: %v", err)
		}
		if err := c.Ping(ctx); err != nil {
			t.Errorf("Ping: %v", err)
		}
		if err := c.Close(); err != nil {
			t.Errorf("Close: %v", err)
		}
	}
}

func TestRewardSummaryKey(t *testing.T) {
	if got := RewardSummaryKey("u1"); got != "rewards:summary:u1" {
		t.Errorf("key = %q", got)
	}
}

func TestCacheRoundTrip(t *testing.T) {
	mr := miniredis.RunT(t)
	c := NewWithClient(redis.NewClient(&redis.Options{Addr: mr.Addr()}), discardLogger())
	t.Cleanup(func() { c.Close() })
	ctx := context.Background()

	if !c.Enabled() {
		t.Fatal("expected enabled cache")
	}
	if err := c.SetJSON(ctx, ActiveCampaignsKey, []string{"a", "b"}, CampaignsTTL); err != nil {
		t.Fatalf("SetJSON: %v", err)
	}
	if ttl := mr.TTL(ActiveCampaignsKey); ttl != CampaignsTTL {
		t.Errorf("ttl = %v, want %v", ttl, CampaignsTTL)
	}

	var got []string
	hit, err := c.GetJSON(ctx, ActiveCampaignsKey, &got)
	if err != nil || !hit || len(got) != 2 || got[1] != "b" {
		t.Fatalf("GetJSON = %v, %v, %v", got, hit, err)
	}

	if err := c.Delete(ctx, ActiveCampaignsKey); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if mr.Exists(ActiveCampaignsKey) {
		t.Error("key still present after Delete")
	}
	if hit, err := c.GetJSON(ctx, ActiveCampaignsKey, &got); hit || err != nil {
		t.Errorf("GetJSON after delete = %v, %v; want miss", hit, err)
	}

	mr.Set("broken", "not json")
	if _, err := c.GetJSON(ctx, "broken", &got); err == nil {
		t.Error("expected decode error")
	}
	if err := c.Ping(ctx); err != nil {
		t.Errorf("Ping: %v", err)
	}
}

func TestNewConnectsToRedis(t *testing.T) {
	mr := miniredis.RunT(t)
	c := New("redis://"+mr.Addr()+"/0", discardLogger())
	t.Cleanup(func() { c.Close() })
	if !c.Enabled() {
		t.Fatal("expected enabled cache")
	}
}
