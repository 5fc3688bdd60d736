package handler

import (
	"log/slog"
	"net/http"

	"github.com/dukerupert/spotx/internal/auth"
	"github.com/dukerupert/spotx/internal/model"
	"github.com/dukerupert/spotx/internal/push"
	"github.com/dukerupert/spotx/internal/store"
)

type PushHandler struct {
	pushStore *store.PushStore
	scheduler *push.Scheduler
	web       *push.WebPush
	deduper   *push.Deduper
	logger    *slog.Logger
}

func NewPushHandler(ps *store.PushStore, scheduler *push.Scheduler, web *push.WebPush, deduper *push.Deduper, logger *slog.Logger) *PushHandler {
	return &PushHandler{pushStore: ps, scheduler: scheduler, web: web, deduper: deduper, logger: logger}
}

type tokenRequest struct {
	Token    string `json:"token" validate:"required,max=512"`
	Platform string `json:"platform" validate:"required,oneof=ios android web"`
	DeviceID string `json:"device_id" validate:"max=200"`
}

// RegisterToken handles POST /api/push/tokens
func (h *PushHandler) RegisterToken(w http.ResponseWriter, r *http.Request) {
	var req tokenRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	tok, err := h.pushStore.UpsertToken(auth.UserID(r.Context()), req.Token, model.Platform(req.Platform), req.DeviceID)
	if err != nil {
		h.logger.Error("register push token", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to save token")
		return
	}
	writeJSON(w, http.StatusCreated, tok)
}

// DeleteToken handles DELETE /api/push/tokens/{token}
func (h *PushHandler) DeleteToken(w http.ResponseWriter, r *http.Request) {
	ok, err := h.pushStore.DeleteUserToken(auth.UserID(r.Context()), r.PathValue("token"))
	if err != nil {
		h.logger.Error("delete push token", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to delete token")
		return
	}
	if !ok {
		writeError(w, http.StatusNotFound, "token not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ListSchedule handles GET /api/push/schedule
func (h *PushHandler) ListSchedule(w http.ResponseWriter, r *http.Request) {
	notifs, err := h.scheduler.List(auth.UserID(r.Context()))
	if err != nil {
		h.logger.Error("list scheduled notifications", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list schedule")
		return
	}
	if notifs == nil {
		notifs = []model.ScheduledNotification{}
	}
	writeJSON(w, http.StatusOK, notifs)
}

// Schedule handles POST /api/push/schedule
func (h *PushHandler) Schedule(w http.ResponseWriter, r *http.Request) {
	notifs, err := h.scheduler.ScheduleDailyNotifications(auth.UserID(r.Context()))
	if err != nil {
		h.logger.Error("schedule notifications", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to schedule notifications")
		return
	}
	writeJSON(w, http.StatusOK, notifs)
}

// CancelSchedule handles DELETE /api/push/schedule
func (h *PushHandler) CancelSchedule(w http.ResponseWriter, r *http.Request) {
	if err := h.scheduler.CancelDailyNotifications(auth.UserID(r.Context())); err != nil {
		h.logger.Error("cancel notifications", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to cancel notifications")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type subscribeRequest struct {
	Endpoint   string `json:"endpoint" validate:"required,url"`
	P256dh     string `json:"p256dh" validate:"required"`
	Auth       string `json:"auth" validate:"required"`
	DeviceName string `json:"device_name" validate:"max=100"`
}

// SubscribeWeb handles POST /api/push/web
func (h *PushHandler) SubscribeWeb(w http.ResponseWriter, r *http.Request) {
	if !h.web.Configured() {
		writeError(w, http.StatusServiceUnavailable, "web push is not configured")
		return
	}

	var req subscribeRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	sub, err := h.pushStore.CreateSubscription(auth.UserID(r.Context()), req.Endpoint, req.P256dh, req.Auth, req.DeviceName)
	if err != nil {
		h.logger.Error("create push subscription", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to save subscription")
		return
	}
	writeJSON(w, http.StatusCreated, sub)
}

// VAPIDKey handles GET /api/push/vapid-key
func (h *PushHandler) VAPIDKey(w http.ResponseWriter, r *http.Request) {
	if !h.web.Configured() {
		writeError(w, http.StatusServiceUnavailable, "web push is not configured")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"public_key": h.web.VAPIDPublicKey()})
}

type eventRequest struct {
	Identifier string `json:"identifier" validate:"required,max=200"`
	Action     string `json:"action" validate:"required,oneof=received opened dismissed"`
}

// NotificationEvent handles POST /api/notifications/events. The client
// reports the same notification from more than one OS callback; only the
// first report of an identifier and action is processed.
func (h *PushHandler) NotificationEvent(w http.ResponseWriter, r *http.Request) {
	var req eventRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	userID := auth.UserID(r.Context())
	first, err := h.deduper.Process(userID, req.Identifier, req.Action)
	if err != nil {
		h.logger.Error("record notification event", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to record event")
		return
	}
	if first {
		h.logger.Info("notification event", "user_id", userID, "identifier", req.Identifier, "action", req.Action)
	}
	writeJSON(w, http.StatusOK, map[string]bool{"processed": first})
}
