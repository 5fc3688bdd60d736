// Package slot owns the fixed daily ad slots and each user's per-day
// completion record.
package slot

import (
	"fmt"
	"time"

	"github.com/dukerupert/spotx/internal/model"
)

// AdSlots is the fixed daily schedule, ordered by time of day.
var AdSlots = []model.AdSlot{
	{ID: "morning", Time: "09:00", Hour: 9, Minute: 0},
	{ID: "midday", Time: "12:30", Hour: 12, Minute: 30},
	{ID: "afternoon", Time: "15:00", Hour: 15, Minute: 0},
	{ID: "evening", Time: "18:00", Hour: 18, Minute: 0},
	{ID: "night", Time: "21:00", Hour: 21, Minute: 0},
}

// Lookup returns the configured slot with the given ID.
func Lookup(id string) (model.AdSlot, bool) {
	for _, s := range AdSlots {
		if s.ID == id {
			return s, true
		}
	}
	return model.AdSlot{}, false
}

const dateLayout = "2006-01-02"

// DateKey returns the calendar date of t in loc as YYYY-MM-DD.
func DateKey(t time.Time, loc *time.Location) string {
	return t.In(loc).Format(dateLayout)
}

// ParseDate parses a YYYY-MM-DD key as midnight in loc.
func ParseDate(date string, loc *time.Location) (time.Time, error) {
	t, err := time.ParseInLocation(dateLayout, date, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse date %q: %w", date, err)
	}
	return t, nil
}

// NewDailyStatus returns a record for date with every slot open.
func NewDailyStatus(date string) model.DailyAdStatus {
	st := model.DailyAdStatus{Date: date, Slots: make([]model.SlotStatus, 0, len(AdSlots))}
	for _, s := range AdSlots {
		st.Slots = append(st.Slots, model.SlotStatus{SlotID: s.ID, Time: s.Time})
	}
	return st
}

// At returns the moment the slot occurs on the calendar day of day.
func At(s model.AdSlot, day time.Time) time.Time {
	y, m, d := day.Date()
	return time.Date(y, m, d, s.Hour, s.Minute, 0, 0, day.Location())
}

// Window is the availability policy around a slot's time. A slot opens
// Early before its time and closes Late after it; a zero Late keeps the
// slot open until the end of its day.
type Window struct {
	Early time.Duration
	Late  time.Duration
}

// Bounds returns the half-open interval [start, end) in which the slot can
// be watched on the day of day.
func (w Window) Bounds(s model.AdSlot, day time.Time) (time.Time, time.Time) {
	at := At(s, day)
	start := at.Add(-w.Early)
	if dayStart := startOfDay(day); start.Before(dayStart) {
		start = dayStart
	}
	end := startOfDay(day).AddDate(0, 0, 1)
	if w.Late > 0 && at.Add(w.Late).Before(end) {
		end = at.Add(w.Late)
	}
	return start, end
}

// Contains reports whether now falls inside the slot's window on now's day.
func (w Window) Contains(s model.AdSlot, now time.Time) bool {
	start, end := w.Bounds(s, now)
	return !now.Before(start) && now.Before(end)
}

// Next returns the first slot whose time is at or after now on now's day.
func Next(now time.Time) (model.AdSlot, bool) {
	for _, s := range AdSlots {
		if !At(s, now).Before(now) {
			return s, true
		}
	}
	return model.AdSlot{}, false
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
