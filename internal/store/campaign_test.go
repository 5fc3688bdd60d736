package store

import (
	"database/sql"
	"testing"
	"time"

	"github.com/dukerupert/spotx/internal/model"
	"github.com/shopspring/decimal"
)

func createTestCampaign(t *testing.T, db *sql.DB, reward, budget string) *model.Campaign {
	t.Helper()
	owner := createTestUser(t, db, "owner-"+reward+"-"+budget+"@example.com")
	m, err := NewMerchantStore(db).Create(owner.ID, "Shop", "")
	if err != nil {
		t.Fatalf("create merchant: %v", err)
	}
	if _, err := NewMerchantStore(db).SetStatus(m.ID, model.MerchantApproved); err != nil {
		t.Fatalf("approve merchant: %v", err)
	}
	cs := NewCampaignStore(db)
	c, err := cs.Create(m.ID, CampaignInput{
		Title:           "Coffee",
		DurationSeconds: 15,
		RewardPerView:   decimal.RequireFromString(reward),
		TotalBudget:     decimal.RequireFromString(budget),
		TargetInterests: []string{"Food"},
	})
	if err != nil {
		t.Fatalf("create campaign: %v", err)
	}
	c, err = cs.SetStatus(c.ID, model.CampaignActive)
	if err != nil {
		t.Fatalf("activate campaign: %v", err)
	}
	return c
}

func TestCampaignCreateDefaults(t *testing.T) {
	db := openTestDB(t)
	owner := createTestUser(t, db, "owner@example.com")
	m, _ := NewMerchantStore(db).Create(owner.ID, "Shop", "")
	cs := NewCampaignStore(db)

	start := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	c, err := cs.Create(m.ID, CampaignInput{
		Title:           "Coffee",
		DurationSeconds: 30,
		RewardPerView:   decimal.RequireFromString("0.0125"),
		TotalBudget:     decimal.RequireFromString("100"),
		StartDate:       &start,
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if c.Status != model.CampaignDraft {
		t.Errorf("status = %q, want draft", c.Status)
	}
	if c.ContentType != model.ContentVideo {
		t.Errorf("content type = %q, want video", c.ContentType)
	}
	if !c.RewardPerView.Equal(decimal.RequireFromString("0.0125")) {
		t.Errorf("reward = %s, want 0.0125", c.RewardPerView)
	}
	if !c.SpentBudget.IsZero() {
		t.Errorf("spent = %s, want 0", c.SpentBudget)
	}
	if c.StartDate == nil || !c.StartDate.Equal(start) {
		t.Errorf("start = %v, want %v", c.StartDate, start)
	}
	if c.EndDate != nil {
		t.Errorf("end = %v, want nil", c.EndDate)
	}
}

func TestCampaignListActiveAndUpdate(t *testing.T) {
	db := openTestDB(t)
	cs := NewCampaignStore(db)
	active := createTestCampaign(t, db, "0.01", "1")

	draftOwner := createTestUser(t, db, "draft@example.com")
	m, _ := NewMerchantStore(db).Create(draftOwner.ID, "Draft Shop", "")
	if _, err := cs.Create(m.ID, CampaignInput{Title: "Draft", DurationSeconds: 5,
		RewardPerView: decimal.RequireFromString("0.01"), TotalBudget: decimal.RequireFromString("1")}); err != nil {
		t.Fatalf("create draft: %v", err)
	}
	unapproved, _ := cs.Create(m.ID, CampaignInput{Title: "Unapproved", DurationSeconds: 5,
		RewardPerView: decimal.RequireFromString("0.01"), TotalBudget: decimal.RequireFromString("1")})
	if _, err := cs.SetStatus(unapproved.ID, model.CampaignActive); err != nil {
		t.Fatalf("activate: %v", err)
	}

	list, err := cs.ListActive()
	if err != nil {
		t.Fatalf("list active: %v", err)
	}
	if len(list) != 1 || list[0].ID != active.ID {
		t.Fatalf("ListActive = %+v", list)
	}
	if len(list[0].TargetInterests) != 1 || list[0].TargetInterests[0] != "food" {
		t.Errorf("targeting = %v, want [food]", list[0].TargetInterests)
	}

	updated, err := cs.Update(active.ID, CampaignInput{
		Title:           "Tea",
		DurationSeconds: 20,
		RewardPerView:   decimal.RequireFromString("0.02"),
		TotalBudget:     decimal.RequireFromString("5"),
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.Title != "Tea" || updated.Status != model.CampaignActive {
		t.Errorf("updated = %+v", updated)
	}

	withURL, err := cs.SetContentURL(active.ID, "https://cdn.example.com/a.mp4")
	if err != nil || withURL.ContentURL != "https://cdn.example.com/a.mp4" {
		t.Errorf("SetContentURL = %+v, %v", withURL, err)
	}

	counts, err := cs.CountByStatus()
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if counts[model.CampaignActive] != 2 || counts[model.CampaignDraft] != 1 {
		t.Errorf("counts = %v", counts)
	}

	missing, err := cs.Update("missing", CampaignInput{Title: "x"})
	if err != nil || missing != nil {
		t.Errorf("Update missing = %v, %v; want nil, nil", missing, err)
	}
}
