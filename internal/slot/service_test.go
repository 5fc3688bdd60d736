package slot

import (
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/dukerupert/spotx/internal/database"
	"github.com/dukerupert/spotx/internal/model"
	"github.com/dukerupert/spotx/internal/store"
)

func setupService(t *testing.T, window Window) (*Service, string) {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	u, err := store.NewUserStore(db).Create("viewer@example.com", "", model.RoleUser, "")
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewService(store.NewSlotStore(db), time.UTC, window, logger), u.ID
}

func TestServiceGetDailyStatusCreatesOnce(t *testing.T) {
	svc, userID := setupService(t, Window{})

	st, err := svc.GetDailyStatus(userID, "2026-03-01")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if len(st.Slots) != len(AdSlots) || st.CompletedCount() != 0 {
		t.Fatalf("status = %+v", st)
	}

	if _, err := svc.MarkSlotCompleted(userID, "2026-03-01", "morning", "ad-1", time.Now()); err != nil {
		t.Fatalf("mark: %v", err)
	}
	st, err = svc.GetDailyStatus(userID, "2026-03-01")
	if err != nil {
		t.Fatalf("get again: %v", err)
	}
	if st.CompletedCount() != 1 {
		t.Errorf("completed = %d, want 1", st.CompletedCount())
	}
}

func TestServiceMarkCreatesRecordFirst(t *testing.T) {
	svc, userID := setupService(t, Window{})

	st, err := svc.MarkSlotCompleted(userID, "2026-03-05", "night", "ad-1", time.Now())
	if err != nil {
		t.Fatalf("mark: %v", err)
	}
	if s, _ := st.Slot("night"); !s.Completed {
		t.Error("night slot not completed")
	}
}

func TestServiceIsSlotAvailable(t *testing.T) {
	svc, userID := setupService(t, Window{})
	now := time.Date(2026, 3, 1, 12, 45, 0, 0, time.UTC)

	tests := []struct {
		slot string
		want bool
	}{
		{"morning", true},
		{"midday", true},
		{"afternoon", false},
		{"unknown", false},
	}
	for _, tt := range tests {
		got, err := svc.IsSlotAvailable(userID, "2026-03-01", tt.slot, now)
		if err != nil {
			t.Fatalf("%s: %v", tt.slot, err)
		}
		if got != tt.want {
			t.Errorf("IsSlotAvailable(%s) = %v, want %v", tt.slot, got, tt.want)
		}
	}

	if _, err := svc.MarkSlotCompleted(userID, "2026-03-01", "morning", "ad-1", now); err != nil {
		t.Fatalf("mark: %v", err)
	}
	if ok, _ := svc.IsSlotAvailable(userID, "2026-03-01", "morning", now); ok {
		t.Error("completed slot still available")
	}
	for _, date := range []string{"2026-02-28", "2026-03-02"} {
		if ok, _ := svc.IsSlotAvailable(userID, date, "midday", now); ok {
			t.Errorf("midday of %s available on 2026-03-01", date)
		}
	}

	if err := svc.CheckAvailable(userID, "brunch", now); !errors.Is(err, ErrUnknownSlot) {
		t.Errorf("CheckAvailable(brunch) = %v, want ErrUnknownSlot", err)
	}
	if err := svc.CheckAvailable(userID, "morning", now); !errors.Is(err, ErrSlotUnavailable) {
		t.Errorf("CheckAvailable(morning) = %v, want ErrSlotUnavailable", err)
	}
}

func TestServiceResetAndHistory(t *testing.T) {
	svc, userID := setupService(t, Window{})

	for _, d := range []string{"2026-03-01", "2026-03-02"} {
		if _, err := svc.GetDailyStatus(userID, d); err != nil {
			t.Fatalf("get %s: %v", d, err)
		}
	}
	history, err := svc.History(userID, 0)
	if err != nil || len(history) != 2 {
		t.Fatalf("History = %d, %v; want 2", len(history), err)
	}

	if err := svc.Reset(userID); err != nil {
		t.Fatalf("reset: %v", err)
	}
	history, _ = svc.History(userID, 10)
	if len(history) != 0 {
		t.Errorf("history after reset = %d", len(history))
	}
}
