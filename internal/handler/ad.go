package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/dukerupert/spotx/internal/auth"
	"github.com/dukerupert/spotx/internal/campaign"
	"github.com/dukerupert/spotx/internal/model"
	"github.com/dukerupert/spotx/internal/slot"
	"github.com/dukerupert/spotx/internal/store"
	"github.com/dukerupert/spotx/internal/view"
)

type AdHandler struct {
	userStore *store.UserStore
	slots     *slot.Service
	selector  *campaign.Selector
	recorder  *view.Recorder
	now       Clock
	logger    *slog.Logger
}

func NewAdHandler(us *store.UserStore, slots *slot.Service, selector *campaign.Selector, recorder *view.Recorder, logger *slog.Logger) *AdHandler {
	return &AdHandler{userStore: us, slots: slots, selector: selector, recorder: recorder, now: time.Now, logger: logger}
}

type nextAdResponse struct {
	SlotID string   `json:"slot_id"`
	Ad     model.Ad `json:"ad"`
}

// Next handles GET /api/ads/next?slot_id=
func (h *AdHandler) Next(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserID(r.Context())
	slotID := r.URL.Query().Get("slot_id")
	now := h.now()

	if err := h.slots.CheckAvailable(userID, slotID, now); err != nil {
		h.writeViewError(w, err)
		return
	}

	var interests []string
	if u, err := h.userStore.GetByID(userID); err == nil && u != nil {
		interests = u.Interests
	}

	c, err := h.selector.Next(r.Context(), interests, now)
	if errors.Is(err, campaign.ErrNoCampaign) {
		writeError(w, http.StatusNotFound, "no ads available")
		return
	}
	if err != nil {
		h.logger.Error("select campaign", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to select ad")
		return
	}
	writeJSON(w, http.StatusOK, nextAdResponse{SlotID: slotID, Ad: campaign.ToAd(c)})
}

type viewRequest struct {
	CampaignID      string `json:"campaign_id" validate:"required"`
	SlotID          string `json:"slot_id" validate:"required"`
	DurationSeconds int    `json:"duration_seconds" validate:"gte=0,lte=3600"`
}

// RecordView handles POST /api/ads/views
func (h *AdHandler) RecordView(w http.ResponseWriter, r *http.Request) {
	var req viewRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	res, err := h.recorder.Complete(r.Context(), auth.UserID(r.Context()), req.CampaignID, req.SlotID, req.DurationSeconds, h.now())
	if err != nil {
		h.writeViewError(w, err)
		return
	}

	status := http.StatusCreated
	if res.Status == view.StatusUnverified {
		status = http.StatusAccepted
	}
	writeJSON(w, status, res)
}

type viewsResponse struct {
	Today int            `json:"today"`
	Views []model.AdView `json:"views"`
}

// ListViews handles GET /api/ads/views
func (h *AdHandler) ListViews(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserID(r.Context())

	views, err := h.recorder.List(userID, queryInt(r, "limit", 50))
	if err != nil {
		h.logger.Error("list views", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list views")
		return
	}
	today, err := h.recorder.CountToday(userID, h.now())
	if err != nil {
		h.logger.Error("count views", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list views")
		return
	}
	if views == nil {
		views = []model.AdView{}
	}
	writeJSON(w, http.StatusOK, viewsResponse{Today: today, Views: views})
}

func (h *AdHandler) writeViewError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, slot.ErrUnknownSlot):
		writeError(w, http.StatusBadRequest, "unknown slot")
	case errors.Is(err, view.ErrInvalidDuration):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, slot.ErrSlotUnavailable):
		writeError(w, http.StatusConflict, "slot is not available")
	case errors.Is(err, view.ErrCampaignNotFound):
		writeError(w, http.StatusNotFound, "campaign not found")
	case errors.Is(err, view.ErrCampaignIneligible):
		writeError(w, http.StatusConflict, "campaign is no longer available")
	default:
		h.logger.Error("record view", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to record view")
	}
}
