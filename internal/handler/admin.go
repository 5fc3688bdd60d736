package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/dukerupert/spotx/internal/cache"
	"github.com/dukerupert/spotx/internal/email"
	"github.com/dukerupert/spotx/internal/model"
	"github.com/dukerupert/spotx/internal/money"
	"github.com/dukerupert/spotx/internal/push"
	"github.com/dukerupert/spotx/internal/reward"
	"github.com/dukerupert/spotx/internal/store"
	"github.com/dukerupert/spotx/internal/websocket"
)

type AdminHandler struct {
	userStore     *store.UserStore
	merchantStore *store.MerchantStore
	campaignStore *store.CampaignStore
	viewStore     *store.ViewStore
	rewardStore   *store.RewardStore
	rewards       *reward.Service
	notifier      *push.Notifier
	emailClient   *email.Client
	hub           *websocket.Hub
	cache         *cache.Cache
	logger        *slog.Logger
}

// AdminDeps groups the admin handler's collaborators.
type AdminDeps struct {
	Users     *store.UserStore
	Merchants *store.MerchantStore
	Campaigns *store.CampaignStore
	Views     *store.ViewStore
	Rewards   *store.RewardStore
	RewardSvc *reward.Service
	Notifier  *push.Notifier
	Email     *email.Client
	Hub       *websocket.Hub
	Cache     *cache.Cache
}

func NewAdminHandler(d AdminDeps, logger *slog.Logger) *AdminHandler {
	return &AdminHandler{
		userStore:     d.Users,
		merchantStore: d.Merchants,
		campaignStore: d.Campaigns,
		viewStore:     d.Views,
		rewardStore:   d.Rewards,
		rewards:       d.RewardSvc,
		notifier:      d.Notifier,
		emailClient:   d.Email,
		hub:           d.Hub,
		cache:         d.Cache,
		logger:        logger,
	}
}

// ListMerchants handles GET /api/admin/merchants?status=
func (h *AdminHandler) ListMerchants(w http.ResponseWriter, r *http.Request) {
	status := model.MerchantStatus(r.URL.Query().Get("status"))
	switch status {
	case "", model.MerchantPending, model.MerchantApproved, model.MerchantSuspended:
	default:
		writeError(w, http.StatusBadRequest, "invalid status")
		return
	}

	merchants, err := h.merchantStore.List(status)
	if err != nil {
		h.logger.Error("list merchants", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list merchants")
		return
	}
	if merchants == nil {
		merchants = []model.Merchant{}
	}
	writeJSON(w, http.StatusOK, merchants)
}

type merchantStatusRequest struct {
	Status string `json:"status" validate:"required,oneof=pending approved suspended"`
}

// SetMerchantStatus handles POST /api/admin/merchants/{id}/status. The
// merchant is emailed about approvals and suspensions.
func (h *AdminHandler) SetMerchantStatus(w http.ResponseWriter, r *http.Request) {
	var req merchantStatusRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	m, err := h.merchantStore.SetStatus(r.PathValue("id"), model.MerchantStatus(req.Status))
	if err != nil {
		h.logger.Error("set merchant status", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to update merchant")
		return
	}
	if m == nil {
		writeError(w, http.StatusNotFound, "merchant not found")
		return
	}
	h.logger.Info("merchant status changed", "merchant_id", m.ID, "status", m.Status)
	if m.Status == model.MerchantSuspended {
		if err := h.cache.Delete(r.Context(), cache.ActiveCampaignsKey); err != nil {
			h.logger.Warn("campaign cache invalidation failed", "error", err)
		}
	}

	if h.emailClient.Configured() {
		go h.notifyMerchant(*m)
	}
	if h.hub != nil {
		h.hub.SendToUser(m.UserID, websocket.NewMessage("merchant", "updated", m.ID, map[string]any{
			"status": m.Status,
		}))
	}
	writeJSON(w, http.StatusOK, m)
}

func (h *AdminHandler) notifyMerchant(m model.Merchant) {
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := h.emailClient.SendMerchantStatus(ctx, m.ContactEmail, m.BusinessName, string(m.Status)); err != nil {
		h.logger.Error("send merchant status email", "merchant_id", m.ID, "error", err)
	}
}

type broadcastRequest struct {
	Title string         `json:"title" validate:"required,max=100"`
	Body  string         `json:"body" validate:"required,max=500"`
	URL   string         `json:"url" validate:"omitempty,max=500"`
	Data  map[string]any `json:"data"`
}

// Broadcast handles POST /api/admin/push
func (h *AdminHandler) Broadcast(w http.ResponseWriter, r *http.Request) {
	var req broadcastRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	data := req.Data
	if data == nil {
		data = map[string]any{}
	}
	data["type"] = model.NotifTypeBroadcast

	res := h.notifier.SendToAll(r.Context(), push.Notification{
		Title: req.Title,
		Body:  req.Body,
		URL:   req.URL,
		Tag:   model.NotifTypeBroadcast,
		Data:  data,
	})
	h.logger.Info("broadcast sent", "sent", res.Sent, "failed", res.Failed)
	writeJSON(w, http.StatusOK, res)
}

type grantRequest struct {
	UserID      string `json:"user_id" validate:"required"`
	Amount      string `json:"amount" validate:"required,numeric"`
	Source      string `json:"source" validate:"required,oneof=bonus referral other"`
	Description string `json:"description" validate:"max=200"`
}

// GrantReward handles POST /api/admin/rewards
func (h *AdminHandler) GrantReward(w http.ResponseWriter, r *http.Request) {
	var req grantRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	amount, err := money.Parse(req.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, "amount must be a decimal amount")
		return
	}

	user, err := h.userStore.GetByID(req.UserID)
	if err != nil {
		h.logger.Error("grant lookup", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if user == nil {
		writeError(w, http.StatusNotFound, "user not found")
		return
	}

	rw, err := h.rewards.Grant(user.ID, amount, model.RewardSource(req.Source), req.Description)
	if errors.Is(err, reward.ErrInvalidAmount) || errors.Is(err, reward.ErrInvalidSource) {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err != nil {
		h.logger.Error("grant reward", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to grant reward")
		return
	}

	if h.hub != nil {
		h.hub.SendToUser(user.ID, websocket.NewMessage("reward", "earned", rw.ID, map[string]any{
			"amount":    rw.Amount.String(),
			"formatted": h.rewards.Format(rw.Amount),
			"source":    rw.Source,
		}))
	}
	writeJSON(w, http.StatusCreated, rw)
}

type overviewResponse struct {
	Users          int                          `json:"users"`
	Merchants      int                          `json:"merchants"`
	Campaigns      map[model.CampaignStatus]int `json:"campaigns"`
	Views          int                          `json:"views"`
	VerifiedViews  int                          `json:"verified_views"`
	RewardsIssued  string                       `json:"rewards_issued"`
	RewardsDisplay string                       `json:"rewards_display"`
}

// Overview handles GET /api/admin/overview
func (h *AdminHandler) Overview(w http.ResponseWriter, r *http.Request) {
	var resp overviewResponse
	var err error

	fail := func(what string, err error) {
		h.logger.Error("admin overview", "part", what, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to build overview")
	}

	if resp.Users, err = h.userStore.Count(); err != nil {
		fail("users", err)
		return
	}
	if resp.Merchants, err = h.merchantStore.Count(); err != nil {
		fail("merchants", err)
		return
	}
	if resp.Campaigns, err = h.campaignStore.CountByStatus(); err != nil {
		fail("campaigns", err)
		return
	}
	if resp.Views, resp.VerifiedViews, err = h.viewStore.Counts(); err != nil {
		fail("views", err)
		return
	}
	total, err := h.rewardStore.TotalIssued()
	if err != nil {
		fail("rewards", err)
		return
	}
	resp.RewardsIssued = total.String()
	resp.RewardsDisplay = h.rewards.Format(total)

	writeJSON(w, http.StatusOK, resp)
}
