package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/dukerupert/spotx/internal/auth"
	"github.com/dukerupert/spotx/internal/model"
	"github.com/dukerupert/spotx/internal/reward"
)

type RewardHandler struct {
	rewards *reward.Service
	now     Clock
	logger  *slog.Logger
}

func NewRewardHandler(rewards *reward.Service, logger *slog.Logger) *RewardHandler {
	return &RewardHandler{rewards: rewards, now: time.Now, logger: logger}
}

// List handles GET /api/rewards
func (h *RewardHandler) List(w http.ResponseWriter, r *http.Request) {
	rewards, err := h.rewards.List(auth.UserID(r.Context()), queryInt(r, "limit", 50))
	if err != nil {
		h.logger.Error("list rewards", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list rewards")
		return
	}
	if rewards == nil {
		rewards = []model.Reward{}
	}
	writeJSON(w, http.StatusOK, rewards)
}

type summaryResponse struct {
	model.RewardSummary
	Formatted map[string]string `json:"formatted"`
}

// Summary handles GET /api/rewards/summary
func (h *RewardHandler) Summary(w http.ResponseWriter, r *http.Request) {
	sum, err := h.rewards.Summary(r.Context(), auth.UserID(r.Context()), h.now())
	if err != nil {
		h.logger.Error("reward summary", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to get summary")
		return
	}
	writeJSON(w, http.StatusOK, summaryResponse{
		RewardSummary: sum,
		Formatted: map[string]string{
			"total_earned":  h.rewards.Format(sum.TotalEarned),
			"total_paid":    h.rewards.Format(sum.TotalPaid),
			"total_pending": h.rewards.Format(sum.TotalPending),
			"this_month":    h.rewards.Format(sum.ThisMonth),
			"this_week":     h.rewards.Format(sum.ThisWeek),
			"today":         h.rewards.Format(sum.Today),
		},
	})
}

// Payout handles POST /api/rewards/payout
func (h *RewardHandler) Payout(w http.ResponseWriter, r *http.Request) {
	err := h.rewards.RequestPayout(auth.UserID(r.Context()))
	if errors.Is(err, reward.ErrPayoutUnavailable) {
		writeError(w, http.StatusNotImplemented, err.Error())
		return
	}
	if err != nil {
		h.logger.Error("request payout", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to request payout")
		return
	}
	w.WriteHeader(http.StatusAccepted)
}
