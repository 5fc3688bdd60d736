package store

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func setupViewTest(t *testing.T, reward, budget string) (*ViewStore, *SlotStore, *CampaignStore, string, string) {
	t.Helper()
	db := openTestDB(t)
	c := createTestCampaign(t, db, reward, budget)
	u := createTestUser(t, db, "viewer@example.com")
	ss := NewSlotStore(db)
	if _, err := ss.CreateDailyStatus(u.ID, "2026-03-01", testSlots); err != nil {
		t.Fatalf("create daily status: %v", err)
	}
	return NewViewStore(db), ss, NewCampaignStore(db), u.ID, c.ID
}

func viewInput(userID, campaignID, slotID string, verified bool) ViewInput {
	return ViewInput{
		UserID:          userID,
		CampaignID:      campaignID,
		SlotID:          slotID,
		Date:            "2026-03-01",
		WatchedAt:       time.Date(2026, 3, 1, 9, 10, 0, 0, time.UTC),
		DurationSeconds: 15,
		Verified:        verified,
		Reward:          decimal.RequireFromString("0.01"),
		Description:     "Watched Coffee",
	}
}

func TestViewRecordVerified(t *testing.T) {
	vs, ss, cs, userID, campaignID := setupViewTest(t, "0.01", "1")

	res, err := vs.Record(viewInput(userID, campaignID, "morning", true))
	if err != nil {
		t.Fatalf("record: %v", err)
	}
	if res.Reward == nil || !res.Reward.Amount.Equal(decimal.RequireFromString("0.01")) {
		t.Fatalf("reward = %+v", res.Reward)
	}
	if res.Reward.SourceID == nil || *res.Reward.SourceID != res.View.ID {
		t.Errorf("reward source = %v, want view %s", res.Reward.SourceID, res.View.ID)
	}

	c, _ := cs.GetByID(campaignID)
	if !c.SpentBudget.Equal(decimal.RequireFromString("0.01")) {
		t.Errorf("spent = %s, want 0.01", c.SpentBudget)
	}

	st, _ := ss.GetDailyStatus(userID, "2026-03-01")
	slot, _ := st.Slot("morning")
	if !slot.Completed || slot.AdID == nil || *slot.AdID != campaignID {
		t.Errorf("morning = %+v", slot)
	}

	stats, err := cs.GetStats(campaignID, "", "")
	if err != nil || len(stats) != 1 {
		t.Fatalf("stats = %+v, %v", stats, err)
	}
	if stats[0].Views != 1 || stats[0].CompletedViews != 1 || stats[0].WatchTimeSeconds != 15 {
		t.Errorf("stats = %+v", stats[0])
	}
}

func TestViewRecordSecondViewForSlotWritesNothing(t *testing.T) {
	vs, _, cs, userID, campaignID := setupViewTest(t, "0.01", "1")

	if _, err := vs.Record(viewInput(userID, campaignID, "morning", true)); err != nil {
		t.Fatalf("record: %v", err)
	}
	_, err := vs.Record(viewInput(userID, campaignID, "morning", true))
	if !errors.Is(err, ErrSlotAlreadyCompleted) {
		t.Fatalf("err = %v, want ErrSlotAlreadyCompleted", err)
	}

	n, _ := vs.CountByUserDate(userID, "2026-03-01")
	if n != 1 {
		t.Errorf("views = %d, want 1", n)
	}
	c, _ := cs.GetByID(campaignID)
	if !c.SpentBudget.Equal(decimal.RequireFromString("0.01")) {
		t.Errorf("spent = %s, want one increment", c.SpentBudget)
	}
}

func TestViewRecordUnverified(t *testing.T) {
	vs, ss, cs, userID, campaignID := setupViewTest(t, "0.01", "1")

	in := viewInput(userID, campaignID, "morning", false)
	in.DurationSeconds = 3
	res, err := vs.Record(in)
	if err != nil {
		t.Fatalf("record: %v", err)
	}
	if res.Reward != nil || !res.View.RewardEarned.IsZero() || res.View.Verified {
		t.Errorf("unverified result = %+v", res)
	}

	st, _ := ss.GetDailyStatus(userID, "2026-03-01")
	if st.CompletedCount() != 0 {
		t.Error("unverified view completed the slot")
	}
	c, _ := cs.GetByID(campaignID)
	if !c.SpentBudget.IsZero() {
		t.Errorf("spent = %s, want 0", c.SpentBudget)
	}
	stats, _ := cs.GetStats(campaignID, "2026-03-01", "2026-03-01")
	if len(stats) != 1 || stats[0].Views != 1 || stats[0].CompletedViews != 0 {
		t.Errorf("stats = %+v", stats)
	}
}

func TestViewRecordBudgetExhaustedRollsBack(t *testing.T) {
	vs, ss, _, userID, campaignID := setupViewTest(t, "0.01", "0.01")

	if _, err := vs.Record(viewInput(userID, campaignID, "morning", true)); err != nil {
		t.Fatalf("record: %v", err)
	}
	_, err := vs.Record(viewInput(userID, campaignID, "midday", true))
	if !errors.Is(err, ErrBudgetExhausted) {
		t.Fatalf("err = %v, want ErrBudgetExhausted", err)
	}

	st, _ := ss.GetDailyStatus(userID, "2026-03-01")
	if slot, _ := st.Slot("midday"); slot.Completed {
		t.Error("midday slot completed despite rollback")
	}
	views, err := vs.ListByUser(userID, 10)
	if err != nil || len(views) != 1 {
		t.Errorf("views = %d, %v; want 1", len(views), err)
	}
	total, verified, err := vs.Counts()
	if err != nil || total != 1 || verified != 1 {
		t.Errorf("Counts = %d, %d, %v", total, verified, err)
	}
}

func TestViewRecordUnknownSlot(t *testing.T) {
	vs, _, _, userID, campaignID := setupViewTest(t, "0.01", "1")

	_, err := vs.Record(viewInput(userID, campaignID, "bogus", true))
	if !errors.Is(err, ErrSlotNotFound) {
		t.Fatalf("err = %v, want ErrSlotNotFound", err)
	}
}

func TestViewRecordOnePaidViewPerSlotAfterReset(t *testing.T) {
	vs, ss, cs, userID, campaignID := setupViewTest(t, "0.01", "1")

	if _, err := vs.Record(viewInput(userID, campaignID, "morning", true)); err != nil {
		t.Fatalf("record: %v", err)
	}
	if _, err := ss.DeleteAllForUser(userID); err != nil {
		t.Fatalf("delete daily status: %v", err)
	}

	st, err := ss.CreateDailyStatus(userID, "2026-03-01", testSlots)
	if err != nil {
		t.Fatalf("recreate daily status: %v", err)
	}
	morning, _ := st.Slot("morning")
	if !morning.Completed || morning.AdID == nil || *morning.AdID != campaignID {
		t.Errorf("recreated morning = %+v, want completed from ledger", morning)
	}
	if midday, _ := st.Slot("midday"); midday.Completed {
		t.Error("midday completed without a view")
	}

	// Even with the daily record reopened, the ledger refuses a second paid view.
	if _, err := ss.db.Exec(`UPDATE daily_ad_slots SET completed = 0 WHERE user_id = ?`, userID); err != nil {
		t.Fatalf("reopen slot: %v", err)
	}
	_, err = vs.Record(viewInput(userID, campaignID, "morning", true))
	if !errors.Is(err, ErrSlotAlreadyCompleted) {
		t.Fatalf("err = %v, want ErrSlotAlreadyCompleted", err)
	}

	c, _ := cs.GetByID(campaignID)
	if !c.SpentBudget.Equal(decimal.RequireFromString("0.01")) {
		t.Errorf("spent = %s, want one increment", c.SpentBudget)
	}
	total, verified, _ := vs.Counts()
	if total != 1 || verified != 1 {
		t.Errorf("Counts = %d, %d; want 1, 1", total, verified)
	}
}
