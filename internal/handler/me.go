package handler

import (
	"log/slog"
	"net/http"

	"github.com/dukerupert/spotx/internal/auth"
	"github.com/dukerupert/spotx/internal/store"
)

type MeHandler struct {
	userStore *store.UserStore
	logger    *slog.Logger
}

func NewMeHandler(us *store.UserStore, logger *slog.Logger) *MeHandler {
	return &MeHandler{userStore: us, logger: logger}
}

// Get handles GET /api/me
func (h *MeHandler) Get(w http.ResponseWriter, r *http.Request) {
	user, err := h.userStore.GetByID(auth.UserID(r.Context()))
	if err != nil {
		h.logger.Error("get user", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to get profile")
		return
	}
	if user == nil {
		writeError(w, http.StatusNotFound, "user not found")
		return
	}
	writeJSON(w, http.StatusOK, user)
}

type profileRequest struct {
	DisplayName *string  `json:"display_name" validate:"omitempty,max=80"`
	Interests   []string `json:"interests" validate:"max=20,dive,min=1,max=40"`
}

// UpdateInterests handles PUT /api/me/interests
func (h *MeHandler) UpdateInterests(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserID(r.Context())

	var req profileRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	existing, err := h.userStore.GetByID(userID)
	if err != nil || existing == nil {
		writeError(w, http.StatusNotFound, "user not found")
		return
	}
	name := existing.DisplayName
	if req.DisplayName != nil {
		name = *req.DisplayName
	}
	interests := existing.Interests
	if req.Interests != nil {
		interests = req.Interests
	}

	user, err := h.userStore.UpdateProfile(userID, name, interests)
	if err != nil {
		h.logger.Error("update profile", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to update profile")
		return
	}
	writeJSON(w, http.StatusOK, user)
}
