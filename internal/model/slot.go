package model

import "time"

// AdSlot is a fixed time of day at which a user may watch one campaign.
type AdSlot struct {
	ID     string `json:"id"`
	Time   string `json:"time"`
	Hour   int    `json:"hour"`
	Minute int    `json:"minute"`
}

type SlotStatus struct {
	SlotID    string     `json:"slot_id"`
	Time      string     `json:"time"`
	Completed bool       `json:"completed"`
	AdID      *string    `json:"ad_id,omitempty"`
	ViewedAt  *time.Time `json:"viewed_at,omitempty"`
}

// DailyAdStatus tracks slot completion for one user on one calendar date.
type DailyAdStatus struct {
	Date  string       `json:"date"`
	Slots []SlotStatus `json:"slots"`
}

// Slot returns the entry for slotID.
func (d DailyAdStatus) Slot(slotID string) (SlotStatus, bool) {
	for _, s := range d.Slots {
		if s.SlotID == slotID {
			return s, true
		}
	}
	return SlotStatus{}, false
}

// CompletedCount returns how many slots have been completed.
func (d DailyAdStatus) CompletedCount() int {
	n := 0
	for _, s := range d.Slots {
		if s.Completed {
			n++
		}
	}
	return n
}
