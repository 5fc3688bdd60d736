// Package server wires stores, services and handlers into the HTTP API.
package server

import (
	"context"
	"database/sql"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/dukerupert/spotx/internal/auth"
	"github.com/dukerupert/spotx/internal/cache"
	"github.com/dukerupert/spotx/internal/campaign"
	"github.com/dukerupert/spotx/internal/config"
	"github.com/dukerupert/spotx/internal/email"
	"github.com/dukerupert/spotx/internal/handler"
	"github.com/dukerupert/spotx/internal/media"
	"github.com/dukerupert/spotx/internal/metrics"
	"github.com/dukerupert/spotx/internal/middleware"
	"github.com/dukerupert/spotx/internal/model"
	"github.com/dukerupert/spotx/internal/push"
	"github.com/dukerupert/spotx/internal/reward"
	"github.com/dukerupert/spotx/internal/slot"
	"github.com/dukerupert/spotx/internal/store"
	"github.com/dukerupert/spotx/internal/view"
	ws "github.com/dukerupert/spotx/internal/websocket"
)

// State is the server's lifecycle stage, reported by /health.
type State int32

const (
	StateStarting State = iota
	StateReady
	StateDraining
)

func (s State) String() string {
	switch s {
	case StateReady:
		return "ready"
	case StateDraining:
		return "draining"
	default:
		return "starting"
	}
}

// Deps are the external clients the server is built from. Nil clients
// disable their feature.
type Deps struct {
	DB      *sql.DB
	Config  config.Config
	Cache   *cache.Cache
	Metrics *metrics.Metrics
	Email   *email.Client
	Media   *media.Uploader
	Expo    *push.Expo
	WebPush *push.WebPush
}

type Server struct {
	db      *sql.DB
	cfg     config.Config
	cache   *cache.Cache
	metrics *metrics.Metrics
	hub     *ws.Hub
	tokens  *auth.Tokens
	state   atomic.Int32

	userStore   *store.UserStore
	pushStore   *store.PushStore
	rateLimiter *middleware.RateLimiter
	scheduler   *push.Scheduler

	authH     *handler.AuthHandler
	meH       *handler.MeHandler
	slotH     *handler.SlotHandler
	adH       *handler.AdHandler
	rewardH   *handler.RewardHandler
	pushH     *handler.PushHandler
	merchantH *handler.MerchantHandler
	adminH    *handler.AdminHandler

	logger *slog.Logger
}

func New(d Deps, logger *slog.Logger) *Server {
	cfg := d.Config
	loc := cfg.Location
	if loc == nil {
		loc = time.UTC
	}
	hub := ws.NewHub(d.Metrics, logger.With("component", "websocket"))

	userStore := store.NewUserStore(d.DB)
	merchantStore := store.NewMerchantStore(d.DB)
	campaignStore := store.NewCampaignStore(d.DB)
	slotStore := store.NewSlotStore(d.DB)
	rewardStore := store.NewRewardStore(d.DB)
	viewStore := store.NewViewStore(d.DB)
	pushStore := store.NewPushStore(d.DB)

	slots := slot.NewService(slotStore, loc, slot.Window{Early: cfg.SlotEarly, Late: cfg.SlotLate}, logger.With("component", "slot"))
	rewards := reward.NewService(rewardStore, d.Cache, d.Metrics, loc, cfg.Currency, logger.With("component", "reward"))
	selector := campaign.NewSelector(campaignStore, d.Cache, d.Metrics, logger.With("component", "selector"))
	manager := campaign.NewManager(campaignStore, merchantStore, d.Cache, logger.With("component", "campaign"))
	recorder := view.NewRecorder(slots, campaignStore, viewStore, rewards, hub, d.Metrics, cfg.Currency, logger.With("component", "view"))

	expo := d.Expo
	if expo == nil {
		expo = push.NewExpo(cfg.ExpoAccessToken)
	}
	notifier := push.NewNotifier(pushStore, expo, d.WebPush, d.Metrics, logger.With("component", "push"))
	scheduler := push.NewScheduler(pushStore, slotStore, notifier, loc, d.Metrics, logger.With("component", "push_scheduler"))

	uploader := d.Media
	if uploader == nil {
		uploader = media.New(cfg.Media, logger)
	}

	s := &Server{
		db:          d.DB,
		cfg:         cfg,
		cache:       d.Cache,
		metrics:     d.Metrics,
		hub:         hub,
		tokens:      auth.NewTokens(cfg.JWTSecret, cfg.TokenTTL),
		userStore:   userStore,
		pushStore:   pushStore,
		rateLimiter: middleware.NewRateLimiter(),
		scheduler:   scheduler,
		logger:      logger,
	}

	s.authH = handler.NewAuthHandler(userStore, s.tokens, cfg.IsAdminEmail, logger.With("component", "auth"))
	s.meH = handler.NewMeHandler(userStore, logger.With("component", "me"))
	s.slotH = handler.NewSlotHandler(slots, logger.With("component", "slot_handler"))
	s.adH = handler.NewAdHandler(userStore, slots, selector, recorder, logger.With("component", "ad_handler"))
	s.rewardH = handler.NewRewardHandler(rewards, logger.With("component", "reward_handler"))
	s.pushH = handler.NewPushHandler(pushStore, scheduler, d.WebPush, push.NewDeduper(pushStore), logger.With("component", "push_handler"))
	s.merchantH = handler.NewMerchantHandler(merchantStore, userStore, manager, uploader, hub, loc, logger.With("component", "merchant"))
	s.adminH = handler.NewAdminHandler(handler.AdminDeps{
		Users:     userStore,
		Merchants: merchantStore,
		Campaigns: campaignStore,
		Views:     viewStore,
		Rewards:   rewardStore,
		RewardSvc: rewards,
		Notifier:  notifier,
		Email:     d.Email,
		Hub:       hub,
		Cache:     d.Cache,
	}, logger.With("component", "admin"))

	return s
}

func (s *Server) State() State {
	return State(s.state.Load())
}

// SetState moves the lifecycle forward. Going back is ignored.
func (s *Server) SetState(st State) {
	for {
		cur := s.state.Load()
		if int32(st) <= cur {
			return
		}
		if s.state.CompareAndSwap(cur, int32(st)) {
			s.logger.Info("lifecycle", "state", st.String())
			return
		}
	}
}

// Tokens returns the token issuer used by the auth middleware.
func (s *Server) Tokens() *auth.Tokens {
	return s.tokens
}

// Scheduler returns the slot reminder scheduler.
func (s *Server) Scheduler() *push.Scheduler {
	return s.scheduler
}

// PushStore returns the push store for cleanup tasks.
func (s *Server) PushStore() *store.PushStore {
	return s.pushStore
}

// RateLimiter returns the rate limiter for cleanup tasks.
func (s *Server) RateLimiter() *middleware.RateLimiter {
	return s.rateLimiter
}

func (s *Server) Router() http.Handler {
	mux := http.NewServeMux()

	// Public routes (no auth required)
	mux.HandleFunc("GET /health", s.healthHandler)
	mux.Handle("GET /metrics", s.metrics.Handler())
	mux.Handle("POST /api/auth/register", s.limited(middleware.ByIP, 10, time.Minute, s.authH.Register))
	mux.Handle("POST /api/auth/login", s.limited(middleware.ByIP, 10, time.Minute, s.authH.Login))

	requireAuth := middleware.RequireAuth(s.tokens, s.userStore, s.logger.With("component", "auth_middleware"))
	user := func(h http.HandlerFunc) http.Handler {
		return requireAuth(h)
	}
	merchant := func(h http.HandlerFunc) http.Handler {
		return requireAuth(middleware.RequireRole(model.RoleMerchant)(h))
	}
	admin := func(h http.HandlerFunc) http.Handler {
		return requireAuth(middleware.RequireAdmin(h))
	}

	// Profile
	mux.Handle("GET /api/me", user(s.meH.Get))
	mux.Handle("PUT /api/me/interests", user(s.meH.UpdateInterests))

	// Slots
	mux.Handle("GET /api/slots", user(s.slotH.List))
	mux.Handle("GET /api/slots/today", user(s.slotH.Today))
	mux.Handle("GET /api/slots/history", user(s.slotH.History))
	mux.Handle("DELETE /api/slots", user(s.slotH.Reset))

	// Ads
	mux.Handle("GET /api/ads/next", user(s.adH.Next))
	mux.Handle("POST /api/ads/views", requireAuth(s.limited(middleware.ByUser, 30, time.Minute, s.adH.RecordView)))
	mux.Handle("GET /api/ads/views", user(s.adH.ListViews))

	// Rewards
	mux.Handle("GET /api/rewards", user(s.rewardH.List))
	mux.Handle("GET /api/rewards/summary", user(s.rewardH.Summary))
	mux.Handle("POST /api/rewards/payout", user(s.rewardH.Payout))

	// Push
	mux.Handle("POST /api/push/tokens", user(s.pushH.RegisterToken))
	mux.Handle("DELETE /api/push/tokens/{token}", user(s.pushH.DeleteToken))
	mux.Handle("GET /api/push/schedule", user(s.pushH.ListSchedule))
	mux.Handle("POST /api/push/schedule", user(s.pushH.Schedule))
	mux.Handle("DELETE /api/push/schedule", user(s.pushH.CancelSchedule))
	mux.Handle("POST /api/push/web", user(s.pushH.SubscribeWeb))
	mux.Handle("GET /api/push/vapid-key", user(s.pushH.VAPIDKey))
	mux.Handle("POST /api/notifications/events", user(s.pushH.NotificationEvent))

	// Merchant portal
	mux.Handle("POST /api/merchant", user(s.merchantH.Register))
	mux.Handle("GET /api/merchant", merchant(s.merchantH.Get))
	mux.Handle("GET /api/merchant/campaigns", merchant(s.merchantH.ListCampaigns))
	mux.Handle("POST /api/merchant/campaigns", merchant(s.merchantH.CreateCampaign))
	mux.Handle("GET /api/merchant/campaigns/{id}", merchant(s.merchantH.GetCampaign))
	mux.Handle("PUT /api/merchant/campaigns/{id}", merchant(s.merchantH.UpdateCampaign))
	mux.Handle("POST /api/merchant/campaigns/{id}/status", merchant(s.merchantH.SetStatus))
	mux.Handle("POST /api/merchant/campaigns/{id}/media", merchant(s.merchantH.UploadMedia))
	mux.Handle("GET /api/merchant/campaigns/{id}/stats", merchant(s.merchantH.Stats))

	// Admin
	mux.Handle("GET /api/admin/merchants", admin(s.adminH.ListMerchants))
	mux.Handle("POST /api/admin/merchants/{id}/status", admin(s.adminH.SetMerchantStatus))
	mux.Handle("POST /api/admin/push", admin(s.adminH.Broadcast))
	mux.Handle("POST /api/admin/rewards", admin(s.adminH.GrantReward))
	mux.Handle("GET /api/admin/overview", admin(s.adminH.Overview))

	// WebSocket
	mux.Handle("GET /ws", user(ws.HandleWebSocket(s.hub, s.cfg.AllowedOrigins, s.logger.With("component", "websocket"))))

	return middleware.RequestLogger(s.logger.With("component", "http"), s.metrics)(s.gate(mux))
}

// gate rejects new API work while the server is not ready. Health and
// metrics stay reachable.
func (s *Server) gate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if st := s.State(); st != StateReady && r.URL.Path != "/health" && r.URL.Path != "/metrics" {
			w.Header().Set("Retry-After", "5")
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusServiceUnavailable)
			json.NewEncoder(w).Encode(map[string]string{"error": "server is " + st.String()})
			return
		}
		next.ServeHTTP(w, r)
	})
}

type healthResponse struct {
	Status   string `json:"status"`
	Database string `json:"database"`
	Cache    string `json:"cache"`
	Clients  int    `json:"ws_clients"`
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	resp := healthResponse{Status: s.State().String(), Database: "ok", Cache: "disabled", Clients: s.hub.ClientCount()}
	code := http.StatusOK
	if s.State() != StateReady {
		code = http.StatusServiceUnavailable
	}
	if err := s.db.PingContext(ctx); err != nil {
		resp.Database = "unavailable"
		code = http.StatusServiceUnavailable
	}
	if s.cache.Enabled() {
		resp.Cache = "ok"
		// Cache outages degrade to the database and do not fail health.
		if err := s.cache.Ping(ctx); err != nil {
			resp.Cache = "unavailable"
		}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(resp)
}

func (s *Server) limited(key func(*http.Request) string, limit int, window time.Duration, h http.HandlerFunc) http.Handler {
	return middleware.RateLimit(s.rateLimiter, key, limit, window)(h)
}
