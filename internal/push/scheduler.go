package push

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/dukerupert/spotx/internal/metrics"
	"github.com/dukerupert/spotx/internal/model"
	"github.com/dukerupert/spotx/internal/slot"
)

const identifierPrefix = "spotx-slot-"

// Identifier is the stable key of a slot's daily reminder.
func Identifier(slotID string) string {
	return identifierPrefix + slotID
}

type ScheduleStore interface {
	ReplaceScheduled(userID string, notifs []model.ScheduledNotification) error
	CancelScheduled(userID string) (int64, error)
	ListScheduled(userID string) ([]model.ScheduledNotification, error)
	ListAllScheduled() ([]model.ScheduledNotification, error)
	WasSent(userID, notifType, refID string) (bool, error)
	RecordSent(userID, notifType, refID string) error
}

// DailyStatusReader returns a stored daily record, or nil when none exists.
type DailyStatusReader interface {
	GetDailyStatus(userID, date string) (*model.DailyAdStatus, error)
}

type Sender interface {
	SendToUser(ctx context.Context, userID string, note Notification) Result
}

// Scheduler keeps one daily reminder per slot for each opted-in user and
// fires the due ones every interval.
type Scheduler struct {
	mu       sync.RWMutex
	store    ScheduleStore
	daily    DailyStatusReader
	sender   Sender
	loc      *time.Location
	metrics  *metrics.Metrics
	logger   *slog.Logger
	interval time.Duration
	lastTick time.Time
	cancel   context.CancelFunc
	done     chan struct{}
}

func NewScheduler(store ScheduleStore, daily DailyStatusReader, sender Sender, loc *time.Location, m *metrics.Metrics, logger *slog.Logger) *Scheduler {
	if loc == nil {
		loc = time.UTC
	}
	return &Scheduler{
		store:    store,
		daily:    daily,
		sender:   sender,
		loc:      loc,
		metrics:  m,
		logger:   logger,
		interval: 60 * time.Second,
	}
}

// ScheduleDailyNotifications (re)creates the user's reminders, one per
// slot. Running it again replaces rather than adds.
func (s *Scheduler) ScheduleDailyNotifications(userID string) ([]model.ScheduledNotification, error) {
	notifs := make([]model.ScheduledNotification, 0, len(slot.AdSlots))
	for _, sl := range slot.AdSlots {
		notifs = append(notifs, model.ScheduledNotification{
			UserID:     userID,
			Identifier: Identifier(sl.ID),
			SlotID:     sl.ID,
			Hour:       sl.Hour,
			Minute:     sl.Minute,
		})
	}
	if err := s.store.ReplaceScheduled(userID, notifs); err != nil {
		return nil, fmt.Errorf("schedule daily notifications: %w", err)
	}
	s.logger.Info("daily notifications scheduled", "user_id", userID, "count", len(notifs))
	return s.store.ListScheduled(userID)
}

// CancelDailyNotifications removes all of the user's reminders.
func (s *Scheduler) CancelDailyNotifications(userID string) error {
	n, err := s.store.CancelScheduled(userID)
	if err != nil {
		return fmt.Errorf("cancel daily notifications: %w", err)
	}
	s.logger.Info("daily notifications cancelled", "user_id", userID, "count", n)
	return nil
}

func (s *Scheduler) List(userID string) ([]model.ScheduledNotification, error) {
	return s.store.ListScheduled(userID)
}

// Start begins the scheduler loop.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	ctx, s.cancel = context.WithCancel(ctx)
	s.done = make(chan struct{})
	s.lastTick = time.Now().Add(-s.interval)
	s.mu.Unlock()

	go func() {
		defer close(s.done)
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case now := <-ticker.C:
				s.tick(ctx, now)
			}
		}
	}()
}

// Stop gracefully stops the scheduler.
func (s *Scheduler) Stop() {
	s.mu.RLock()
	cancel := s.cancel
	done := s.done
	s.mu.RUnlock()

	if cancel != nil {
		cancel()
	}
	if done != nil {
		<-done
	}
}

// tick fires reminders whose time of day falls in (lastTick, now].
func (s *Scheduler) tick(ctx context.Context, now time.Time) int {
	start := time.Now()
	defer func() { s.metrics.SchedulerRun(time.Since(start)) }()

	s.mu.Lock()
	since := s.lastTick
	s.lastTick = now
	s.mu.Unlock()
	if since.IsZero() {
		since = now.Add(-s.interval)
	}

	notifs, err := s.store.ListAllScheduled()
	if err != nil {
		s.logger.Error("list scheduled notifications", "error", err)
		return 0
	}

	local := now.In(s.loc)
	date := slot.DateKey(local, s.loc)
	fired := 0
	for _, n := range notifs {
		y, m, d := local.Date()
		at := time.Date(y, m, d, n.Hour, n.Minute, 0, 0, s.loc)
		if !at.After(since) || at.After(now) {
			continue
		}
		if s.fire(ctx, n, date) {
			fired++
		}
	}
	return fired
}

func (s *Scheduler) fire(ctx context.Context, n model.ScheduledNotification, date string) bool {
	refID := n.Identifier + ":" + date
	sent, err := s.store.WasSent(n.UserID, model.NotifTypeSlotReminder, refID)
	if err != nil {
		s.logger.Error("check sent notification", "error", err)
		return false
	}
	if sent {
		return false
	}

	st, err := s.daily.GetDailyStatus(n.UserID, date)
	if err != nil {
		s.logger.Error("get daily status", "user_id", n.UserID, "error", err)
		return false
	}
	if st != nil {
		if entry, ok := st.Slot(n.SlotID); ok && entry.Completed {
			return false
		}
	}

	sl, _ := slot.Lookup(n.SlotID)
	res := s.sender.SendToUser(ctx, n.UserID, Notification{
		Title: "Your " + sl.Time + " ad is ready",
		Body:  "Watch a short ad now to earn your reward.",
		URL:   "/slots",
		Tag:   n.Identifier,
		Data: map[string]any{
			"type":       model.NotifTypeSlotReminder,
			"slot_id":    n.SlotID,
			"identifier": n.Identifier,
		},
	})
	if err := s.store.RecordSent(n.UserID, model.NotifTypeSlotReminder, refID); err != nil {
		s.logger.Error("record sent notification", "error", err)
	}
	s.logger.Debug("slot reminder fired", "user_id", n.UserID, "slot_id", n.SlotID, "sent", res.Sent, "failed", res.Failed)
	return true
}
