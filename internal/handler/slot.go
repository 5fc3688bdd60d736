package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/dukerupert/spotx/internal/auth"
	"github.com/dukerupert/spotx/internal/model"
	"github.com/dukerupert/spotx/internal/slot"
)

type SlotHandler struct {
	slots  *slot.Service
	now    Clock
	logger *slog.Logger
}

func NewSlotHandler(slots *slot.Service, logger *slog.Logger) *SlotHandler {
	return &SlotHandler{slots: slots, now: time.Now, logger: logger}
}

type slotView struct {
	model.AdSlot
	OpensAt   time.Time `json:"opens_at"`
	ClosesAt  time.Time `json:"closes_at"`
	Completed bool      `json:"completed"`
	Available bool      `json:"available"`
}

type todayResponse struct {
	Date      string     `json:"date"`
	Slots     []slotView `json:"slots"`
	Completed int        `json:"completed"`
	Total     int        `json:"total"`
	NextSlot  *string    `json:"next_slot,omitempty"`
}

// List handles GET /api/slots
func (h *SlotHandler) List(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, slot.AdSlots)
}

// Today handles GET /api/slots/today
func (h *SlotHandler) Today(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserID(r.Context())
	now := h.now()

	st, err := h.slots.GetDailyStatus(userID, h.slots.Today(now))
	if err != nil {
		h.logger.Error("get daily status", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to get slots")
		return
	}

	resp := todayResponse{Date: st.Date, Completed: st.CompletedCount(), Total: len(slot.AdSlots)}
	for _, def := range slot.AdSlots {
		entry, _ := st.Slot(def.ID)
		opens, closes := h.slots.SlotWindow(def, now)
		resp.Slots = append(resp.Slots, slotView{
			AdSlot:    def,
			OpensAt:   opens,
			ClosesAt:  closes,
			Completed: entry.Completed,
			Available: !entry.Completed && !now.Before(opens) && now.Before(closes),
		})
	}
	if next, ok := slot.Next(now.In(h.slots.Location())); ok {
		resp.NextSlot = &next.ID
	}
	writeJSON(w, http.StatusOK, resp)
}

// History handles GET /api/slots/history
func (h *SlotHandler) History(w http.ResponseWriter, r *http.Request) {
	history, err := h.slots.History(auth.UserID(r.Context()), queryInt(r, "limit", 30))
	if err != nil {
		h.logger.Error("slot history", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to get history")
		return
	}
	if history == nil {
		history = []model.DailyAdStatus{}
	}
	writeJSON(w, http.StatusOK, history)
}

// Reset handles DELETE /api/slots
func (h *SlotHandler) Reset(w http.ResponseWriter, r *http.Request) {
	if err := h.slots.Reset(auth.UserID(r.Context())); err != nil {
		h.logger.Error("reset slots", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to reset slots")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
