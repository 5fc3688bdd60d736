package slot

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dukerupert/spotx/internal/model"
)

var (
	ErrUnknownSlot     = errors.New("unknown slot")
	ErrSlotUnavailable = errors.New("slot is not available")
)

// Store persists daily records. *store.SlotStore satisfies it.
type Store interface {
	GetDailyStatus(userID, date string) (*model.DailyAdStatus, error)
	CreateDailyStatus(userID, date string, slots []model.AdSlot) (*model.DailyAdStatus, error)
	MarkSlotCompleted(userID, date, slotID, adID string, viewedAt time.Time) (*model.DailyAdStatus, error)
	DeleteAllForUser(userID string) (int64, error)
	ListDailyStatuses(userID string, limit int) ([]model.DailyAdStatus, error)
}

type Service struct {
	store  Store
	loc    *time.Location
	window Window
	logger *slog.Logger
}

func NewService(store Store, loc *time.Location, window Window, logger *slog.Logger) *Service {
	if loc == nil {
		loc = time.UTC
	}
	return &Service{store: store, loc: loc, window: window, logger: logger}
}

func (s *Service) Location() *time.Location { return s.loc }

// Today returns the date key for now in the service's timezone.
func (s *Service) Today(now time.Time) string {
	return DateKey(now, s.loc)
}

// GetDailyStatus returns the user's record for date, creating and storing
// an all-open record the first time the date is seen.
func (s *Service) GetDailyStatus(userID, date string) (*model.DailyAdStatus, error) {
	st, err := s.store.GetDailyStatus(userID, date)
	if err != nil {
		return nil, err
	}
	if st != nil {
		return st, nil
	}
	st, err = s.store.CreateDailyStatus(userID, date, AdSlots)
	if err != nil {
		return nil, fmt.Errorf("create daily status: %w", err)
	}
	s.logger.Debug("daily status created", "user_id", userID, "date", date)
	return st, nil
}

// MarkSlotCompleted records a finished view on a slot. Unknown slot IDs
// leave the record unchanged.
func (s *Service) MarkSlotCompleted(userID, date, slotID, adID string, viewedAt time.Time) (*model.DailyAdStatus, error) {
	if _, err := s.GetDailyStatus(userID, date); err != nil {
		return nil, err
	}
	return s.store.MarkSlotCompleted(userID, date, slotID, adID, viewedAt)
}

// IsSlotAvailable reports whether the slot of date is still open for the
// user at now. Slots of any other day than now's are never available.
func (s *Service) IsSlotAvailable(userID, date, slotID string, now time.Time) (bool, error) {
	def, ok := Lookup(slotID)
	if !ok {
		return false, nil
	}
	now = now.In(s.loc)
	if date != DateKey(now, s.loc) {
		return false, nil
	}
	st, err := s.GetDailyStatus(userID, date)
	if err != nil {
		return false, err
	}
	entry, ok := st.Slot(slotID)
	if !ok || entry.Completed {
		return false, nil
	}
	return s.window.Contains(def, now), nil
}

// CheckAvailable is IsSlotAvailable with typed errors for callers that
// need to tell an unknown slot from a closed one.
func (s *Service) CheckAvailable(userID, slotID string, now time.Time) error {
	if _, ok := Lookup(slotID); !ok {
		return ErrUnknownSlot
	}
	ok, err := s.IsSlotAvailable(userID, s.Today(now), slotID, now)
	if err != nil {
		return err
	}
	if !ok {
		return ErrSlotUnavailable
	}
	return nil
}

// Reset deletes every stored daily record of the user.
func (s *Service) Reset(userID string) error {
	n, err := s.store.DeleteAllForUser(userID)
	if err != nil {
		return fmt.Errorf("reset slots: %w", err)
	}
	s.logger.Info("slot history reset", "user_id", userID, "records", n)
	return nil
}

func (s *Service) History(userID string, limit int) ([]model.DailyAdStatus, error) {
	if limit <= 0 || limit > 90 {
		limit = 30
	}
	return s.store.ListDailyStatuses(userID, limit)
}

// SlotWindow returns the bounds of a slot on the day of now.
func (s *Service) SlotWindow(sl model.AdSlot, now time.Time) (time.Time, time.Time) {
	return s.window.Bounds(sl, now.In(s.loc))
}
