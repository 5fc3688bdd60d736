package store

import (
	"testing"
	"time"

	"github.com/dukerupert/spotx/internal/model"
)

func TestPushUpsertToken(t *testing.T) {
	db := openTestDB(t)
	ps := NewPushStore(db)
	alice := createTestUser(t, db, "alice@example.com")
	bob := createTestUser(t, db, "bob@example.com")

	first, err := ps.UpsertToken(alice.ID, "ExponentPushToken[abc]", model.PlatformIOS, "phone-1")
	if err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if first.UserID != alice.ID || first.Platform != model.PlatformIOS {
		t.Errorf("token = %+v", first)
	}

	second, err := ps.UpsertToken(bob.ID, "ExponentPushToken[abc]", model.PlatformAndroid, "phone-2")
	if err != nil {
		t.Fatalf("upsert again: %v", err)
	}
	if second.ID != first.ID {
		t.Errorf("upsert created a new row: %s != %s", second.ID, first.ID)
	}
	if second.UserID != bob.ID || second.DeviceID != "phone-2" {
		t.Errorf("token not reassigned: %+v", second)
	}

	all, err := ps.ListAllTokens()
	if err != nil || len(all) != 1 {
		t.Fatalf("ListAllTokens = %d, %v; want 1", len(all), err)
	}
	if mine, _ := ps.ListTokensByUser(alice.ID); len(mine) != 0 {
		t.Errorf("alice still owns %d tokens", len(mine))
	}

	ok, err := ps.DeleteUserToken(alice.ID, "ExponentPushToken[abc]")
	if err != nil || ok {
		t.Errorf("DeleteUserToken by non-owner = %v, %v; want false", ok, err)
	}
	if err := ps.DeleteToken("ExponentPushToken[abc]"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if all, _ := ps.ListAllTokens(); len(all) != 0 {
		t.Errorf("tokens after delete = %d", len(all))
	}
}

func TestPushSubscriptions(t *testing.T) {
	db := openTestDB(t)
	ps := NewPushStore(db)
	u := createTestUser(t, db, "alice@example.com")

	sub, err := ps.CreateSubscription(u.ID, "https://push.example.com/1", "p256", "auth", "Laptop")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if sub.Endpoint != "https://push.example.com/1" || sub.DeviceName != "Laptop" {
		t.Errorf("sub = %+v", sub)
	}
	updated, err := ps.CreateSubscription(u.ID, "https://push.example.com/1", "p256-new", "auth-new", "Desktop")
	if err != nil {
		t.Fatalf("create again: %v", err)
	}
	if updated.ID != sub.ID || updated.P256dhKey != "p256-new" {
		t.Errorf("upsert = %+v", updated)
	}

	subs, _ := ps.ListSubscriptionsByUser(u.ID)
	if len(subs) != 1 {
		t.Fatalf("subs = %d, want 1", len(subs))
	}
	if err := ps.DeleteSubscriptionByEndpoint("https://push.example.com/1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if subs, _ := ps.ListAllSubscriptions(); len(subs) != 0 {
		t.Errorf("subs after delete = %d", len(subs))
	}
}

func TestPushReplaceScheduledDoesNotStack(t *testing.T) {
	db := openTestDB(t)
	ps := NewPushStore(db)
	u := createTestUser(t, db, "alice@example.com")

	notifs := []model.ScheduledNotification{
		{Identifier: "spotx-slot-morning", SlotID: "morning", Hour: 9},
		{Identifier: "spotx-slot-evening", SlotID: "evening", Hour: 18},
	}
	for i := 0; i < 3; i++ {
		if err := ps.ReplaceScheduled(u.ID, notifs); err != nil {
			t.Fatalf("replace %d: %v", i, err)
		}
	}

	got, err := ps.ListScheduled(u.ID)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("scheduled = %d, want 2", len(got))
	}
	if got[0].SlotID != "morning" || got[1].SlotID != "evening" {
		t.Errorf("order = %+v", got)
	}

	n, err := ps.CancelScheduled(u.ID)
	if err != nil || n != 2 {
		t.Errorf("CancelScheduled = %d, %v; want 2", n, err)
	}
	if all, _ := ps.ListAllScheduled(); len(all) != 0 {
		t.Errorf("scheduled after cancel = %d", len(all))
	}
}

func TestPushSentDedup(t *testing.T) {
	ps := NewPushStore(openTestDB(t))

	sent, err := ps.WasSent("u1", model.NotifTypeSlotReminder, "spotx-slot-morning:2026-03-01")
	if err != nil || sent {
		t.Fatalf("WasSent before = %v, %v", sent, err)
	}
	for i := 0; i < 2; i++ {
		if err := ps.RecordSent("u1", model.NotifTypeSlotReminder, "spotx-slot-morning:2026-03-01"); err != nil {
			t.Fatalf("record sent: %v", err)
		}
	}
	sent, _ = ps.WasSent("u1", model.NotifTypeSlotReminder, "spotx-slot-morning:2026-03-01")
	if !sent {
		t.Error("expected sent after RecordSent")
	}

	if err := ps.CleanupSent(time.Now().Add(time.Hour)); err != nil {
		t.Fatalf("cleanup: %v", err)
	}
	sent, _ = ps.WasSent("u1", model.NotifTypeSlotReminder, "spotx-slot-morning:2026-03-01")
	if sent {
		t.Error("expected cleanup to remove the record")
	}
}

func TestPushRecordEventOnce(t *testing.T) {
	ps := NewPushStore(openTestDB(t))

	first, err := ps.RecordEvent("u1", "notif-1", "received")
	if err != nil || !first {
		t.Fatalf("first RecordEvent = %v, %v; want true", first, err)
	}
	again, err := ps.RecordEvent("u1", "notif-1", "received")
	if err != nil || again {
		t.Errorf("second RecordEvent = %v, %v; want false", again, err)
	}
	other, _ := ps.RecordEvent("u1", "notif-1", "opened")
	if !other {
		t.Error("different action should be recorded")
	}
}
