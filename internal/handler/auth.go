package handler

import (
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/dukerupert/spotx/internal/auth"
	"github.com/dukerupert/spotx/internal/model"
	"github.com/dukerupert/spotx/internal/store"
)

type AuthHandler struct {
	userStore *store.UserStore
	tokens    *auth.Tokens
	isAdmin   func(email string) bool
	now       Clock
	logger    *slog.Logger
}

// NewAuthHandler serves password registration and login. Emails matched by
// isAdmin are given the admin role on registration.
func NewAuthHandler(us *store.UserStore, tokens *auth.Tokens, isAdmin func(string) bool, logger *slog.Logger) *AuthHandler {
	if isAdmin == nil {
		isAdmin = func(string) bool { return false }
	}
	return &AuthHandler{userStore: us, tokens: tokens, isAdmin: isAdmin, now: time.Now, logger: logger}
}

type registerRequest struct {
	Email       string `json:"email" validate:"required,email"`
	Password    string `json:"password" validate:"required,min=8,max=72"`
	DisplayName string `json:"display_name" validate:"max=80"`
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type tokenResponse struct {
	Token     string      `json:"token"`
	ExpiresAt time.Time   `json:"expires_at"`
	User      *model.User `json:"user"`
}

// Register handles POST /api/auth/register
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	existing, err := h.userStore.GetByEmail(req.Email)
	if err != nil {
		h.logger.Error("register lookup", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if existing != nil {
		writeError(w, http.StatusConflict, "email already registered")
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		h.logger.Error("hash password", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	role := model.RoleUser
	if h.isAdmin(req.Email) {
		role = model.RoleAdmin
	}
	user, err := h.userStore.Create(req.Email, req.DisplayName, role, string(hash))
	if err != nil {
		h.logger.Error("create user", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to create user")
		return
	}

	h.logger.Info("user registered", "user_id", user.ID, "role", user.Role)
	h.respondWithToken(w, http.StatusCreated, user)
}

// Login handles POST /api/auth/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	user, err := h.userStore.GetByEmail(req.Email)
	if err != nil {
		h.logger.Error("login lookup", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	// Same response for unknown users and bad passwords to prevent enumeration.
	if user == nil || user.PasswordHash == "" ||
		bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)) != nil {
		writeError(w, http.StatusUnauthorized, "invalid email or password")
		return
	}

	h.respondWithToken(w, http.StatusOK, user)
}

func (h *AuthHandler) respondWithToken(w http.ResponseWriter, status int, user *model.User) {
	token, exp, err := h.tokens.Issue(user.ID, user.Email, h.now())
	if err != nil {
		h.logger.Error("issue token", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, status, tokenResponse{Token: token, ExpiresAt: exp, User: user})
}
