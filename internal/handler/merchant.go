package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/dukerupert/spotx/internal/auth"
	"github.com/dukerupert/spotx/internal/campaign"
	"github.com/dukerupert/spotx/internal/media"
	"github.com/dukerupert/spotx/internal/model"
	"github.com/dukerupert/spotx/internal/money"
	"github.com/dukerupert/spotx/internal/store"
	"github.com/dukerupert/spotx/internal/websocket"
)

type MerchantHandler struct {
	merchantStore *store.MerchantStore
	userStore     *store.UserStore
	manager       *campaign.Manager
	uploader      *media.Uploader
	hub           *websocket.Hub
	loc           *time.Location
	now           Clock
	logger        *slog.Logger
}

func NewMerchantHandler(
	ms *store.MerchantStore,
	us *store.UserStore,
	manager *campaign.Manager,
	uploader *media.Uploader,
	hub *websocket.Hub,
	loc *time.Location,
	logger *slog.Logger,
) *MerchantHandler {
	return &MerchantHandler{
		merchantStore: ms,
		userStore:     us,
		manager:       manager,
		uploader:      uploader,
		hub:           hub,
		loc:           loc,
		now:           time.Now,
		logger:        logger,
	}
}

type merchantRequest struct {
	BusinessName string `json:"business_name" validate:"required,max=120"`
	ContactEmail string `json:"contact_email" validate:"omitempty,email"`
}

// Register handles POST /api/merchant. The caller becomes a merchant in
// pending status until an admin approves it.
func (h *MerchantHandler) Register(w http.ResponseWriter, r *http.Request) {
	ac, _ := auth.FromContext(r.Context())

	var req merchantRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	existing, err := h.merchantStore.GetByUserID(ac.UserID)
	if err != nil {
		h.logger.Error("merchant lookup", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if existing != nil {
		writeError(w, http.StatusConflict, "merchant profile already exists")
		return
	}

	contact := req.ContactEmail
	if contact == "" {
		contact = ac.Email
	}
	m, err := h.merchantStore.Create(ac.UserID, req.BusinessName, contact)
	if err != nil {
		h.logger.Error("create merchant", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to create merchant")
		return
	}
	if ac.Role == model.RoleUser {
		if err := h.userStore.SetRole(ac.UserID, model.RoleMerchant); err != nil {
			h.logger.Error("promote merchant", "error", err)
		}
	}

	h.logger.Info("merchant registered", "merchant_id", m.ID, "user_id", ac.UserID)
	writeJSON(w, http.StatusCreated, m)
}

// Get handles GET /api/merchant
func (h *MerchantHandler) Get(w http.ResponseWriter, r *http.Request) {
	m, ok := h.merchant(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, m)
}

type campaignRequest struct {
	Title           string     `json:"title" validate:"required,max=120"`
	Description     string     `json:"description" validate:"max=2000"`
	ContentType     string     `json:"content_type" validate:"omitempty,oneof=video image"`
	ContentURL      string     `json:"content_url" validate:"omitempty,url"`
	TargetInterests []string   `json:"target_interests" validate:"max=20,dive,min=1,max=40"`
	DurationSeconds int        `json:"duration_seconds" validate:"required,min=1,max=300"`
	RewardPerView   string     `json:"reward_per_view" validate:"required,numeric"`
	TotalBudget     string     `json:"total_budget" validate:"required,numeric"`
	StartDate       *time.Time `json:"start_date"`
	EndDate         *time.Time `json:"end_date"`
}

func (req campaignRequest) input() (store.CampaignInput, error) {
	reward, err := money.Parse(req.RewardPerView)
	if err != nil {
		return store.CampaignInput{}, errors.New("reward_per_view must be a decimal amount")
	}
	budget, err := money.Parse(req.TotalBudget)
	if err != nil {
		return store.CampaignInput{}, errors.New("total_budget must be a decimal amount")
	}
	return store.CampaignInput{
		Title:           req.Title,
		Description:     req.Description,
		ContentType:     model.ContentType(req.ContentType),
		ContentURL:      req.ContentURL,
		TargetInterests: req.TargetInterests,
		DurationSeconds: req.DurationSeconds,
		RewardPerView:   reward,
		TotalBudget:     budget,
		StartDate:       req.StartDate,
		EndDate:         req.EndDate,
	}, nil
}

// ListCampaigns handles GET /api/merchant/campaigns
func (h *MerchantHandler) ListCampaigns(w http.ResponseWriter, r *http.Request) {
	m, ok := h.merchant(w, r)
	if !ok {
		return
	}
	campaigns, err := h.manager.List(m.ID)
	if err != nil {
		h.logger.Error("list campaigns", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list campaigns")
		return
	}
	if campaigns == nil {
		campaigns = []model.Campaign{}
	}
	writeJSON(w, http.StatusOK, campaigns)
}

// CreateCampaign handles POST /api/merchant/campaigns
func (h *MerchantHandler) CreateCampaign(w http.ResponseWriter, r *http.Request) {
	m, ok := h.merchant(w, r)
	if !ok {
		return
	}
	in, ok := h.decodeCampaign(w, r)
	if !ok {
		return
	}
	c, err := h.manager.Create(m.ID, in)
	if err != nil {
		h.writeCampaignError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, c)
}

// GetCampaign handles GET /api/merchant/campaigns/{id}
func (h *MerchantHandler) GetCampaign(w http.ResponseWriter, r *http.Request) {
	m, ok := h.merchant(w, r)
	if !ok {
		return
	}
	c, err := h.manager.Get(m.ID, r.PathValue("id"))
	if err != nil {
		h.writeCampaignError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

// UpdateCampaign handles PUT /api/merchant/campaigns/{id}
func (h *MerchantHandler) UpdateCampaign(w http.ResponseWriter, r *http.Request) {
	m, ok := h.merchant(w, r)
	if !ok {
		return
	}
	in, ok := h.decodeCampaign(w, r)
	if !ok {
		return
	}
	c, err := h.manager.Update(m.ID, r.PathValue("id"), in)
	if err != nil {
		h.writeCampaignError(w, err)
		return
	}
	h.publish(m, c)
	writeJSON(w, http.StatusOK, c)
}

type statusRequest struct {
	Status string `json:"status" validate:"required,oneof=active paused completed"`
}

// SetStatus handles POST /api/merchant/campaigns/{id}/status
func (h *MerchantHandler) SetStatus(w http.ResponseWriter, r *http.Request) {
	m, ok := h.merchant(w, r)
	if !ok {
		return
	}
	var req statusRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	c, err := h.manager.Transition(m.ID, r.PathValue("id"), model.CampaignStatus(req.Status))
	if err != nil {
		h.writeCampaignError(w, err)
		return
	}
	h.publish(m, c)
	writeJSON(w, http.StatusOK, c)
}

// UploadMedia handles POST /api/merchant/campaigns/{id}/media as a
// multipart form with a "file" field.
func (h *MerchantHandler) UploadMedia(w http.ResponseWriter, r *http.Request) {
	m, ok := h.merchant(w, r)
	if !ok {
		return
	}
	if !h.uploader.Enabled() {
		writeError(w, http.StatusServiceUnavailable, "media storage is not configured")
		return
	}

	id := r.PathValue("id")
	existing, err := h.manager.Get(m.ID, id)
	if err != nil {
		h.writeCampaignError(w, err)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, media.MaxUploadSize+1<<20)
	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "file is required")
		return
	}
	defer file.Close()

	url, err := h.uploader.Upload(r.Context(), id, header.Filename, header.Header.Get("Content-Type"), file, header.Size)
	switch {
	case errors.Is(err, media.ErrUnsupportedType):
		writeError(w, http.StatusUnsupportedMediaType, "only image and video files are accepted")
		return
	case errors.Is(err, media.ErrTooLarge):
		writeError(w, http.StatusRequestEntityTooLarge, err.Error())
		return
	case err != nil:
		h.logger.Error("upload media", "campaign_id", id, "error", err)
		writeError(w, http.StatusBadGateway, "failed to store media")
		return
	}

	c, err := h.manager.SetContentURL(m.ID, id, url)
	if err != nil {
		h.writeCampaignError(w, err)
		return
	}
	if existing.ContentURL != "" && existing.ContentURL != url {
		if err := h.uploader.Delete(r.Context(), existing.ContentURL); err != nil {
			h.logger.Warn("delete replaced media", "campaign_id", id, "error", err)
		}
	}
	h.publish(m, c)
	writeJSON(w, http.StatusOK, c)
}

// Stats handles GET /api/merchant/campaigns/{id}/stats?days=
func (h *MerchantHandler) Stats(w http.ResponseWriter, r *http.Request) {
	m, ok := h.merchant(w, r)
	if !ok {
		return
	}
	stats, err := h.manager.Stats(m.ID, r.PathValue("id"), queryInt(r, "days", 30), h.now(), h.loc)
	if err != nil {
		h.writeCampaignError(w, err)
		return
	}
	if stats == nil {
		stats = []model.CampaignStats{}
	}
	writeJSON(w, http.StatusOK, stats)
}

func (h *MerchantHandler) merchant(w http.ResponseWriter, r *http.Request) (*model.Merchant, bool) {
	m, err := h.merchantStore.GetByUserID(auth.UserID(r.Context()))
	if err != nil {
		h.logger.Error("merchant lookup", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return nil, false
	}
	if m == nil {
		writeError(w, http.StatusNotFound, "merchant profile not found")
		return nil, false
	}
	return m, true
}

func (h *MerchantHandler) decodeCampaign(w http.ResponseWriter, r *http.Request) (store.CampaignInput, bool) {
	var req campaignRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return store.CampaignInput{}, false
	}
	in, err := req.input()
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return store.CampaignInput{}, false
	}
	return in, true
}

func (h *MerchantHandler) publish(m *model.Merchant, c *model.Campaign) {
	if h.hub == nil || c == nil {
		return
	}
	h.hub.SendToUser(m.UserID, websocket.NewMessage("campaign", "updated", c.ID, map[string]any{
		"status":       c.Status,
		"spent_budget": c.SpentBudget.String(),
	}))
}

func (h *MerchantHandler) writeCampaignError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, campaign.ErrNotFound):
		writeError(w, http.StatusNotFound, "campaign not found")
	case errors.Is(err, campaign.ErrMerchantNotApproved):
		writeError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, campaign.ErrInvalidTransition):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, campaign.ErrInvalidBudget),
		errors.Is(err, campaign.ErrRewardExceedsBudget),
		errors.Is(err, campaign.ErrBudgetUnderflow),
		errors.Is(err, campaign.ErrInvalidDates):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		h.logger.Error("campaign operation", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

