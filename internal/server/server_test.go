package server

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/dukerupert/spotx/internal/config"
	"github.com/dukerupert/spotx/internal/database"
	"github.com/dukerupert/spotx/internal/metrics"
)

func setupServer(t *testing.T) (*Server, http.Handler) {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	cfg := config.Config{
		JWTSecret:   "test-secret",
		TokenTTL:    time.Hour,
		AdminEmails: []string{"admin@spotx.test"},
		Location:    time.UTC,
		Currency:    "USD",
		// Every slot is open for the whole day so tests do not depend on
		// the wall clock.
		SlotEarly: 24 * time.Hour,
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	srv := New(Deps{DB: db, Config: cfg, Metrics: metrics.New(db)}, logger)
	return srv, srv.Router()
}

func do(t *testing.T, h http.Handler, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		r = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, r)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(rec.Body).Decode(&v); err != nil {
		t.Fatalf("decode response %q: %v", rec.Body.String(), err)
	}
	return v
}

func register(t *testing.T, h http.Handler, email string) string {
	t.Helper()
	rec := do(t, h, "POST", "/api/auth/register", "", map[string]string{
		"email":    email,
		"password": "correct horse battery",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("register %s: status = %d, body = %s", email, rec.Code, rec.Body.String())
	}
	return decode[map[string]any](t, rec)["token"].(string)
}

func expect(t *testing.T, rec *httptest.ResponseRecorder, want int, what string) {
	t.Helper()
	if rec.Code != want {
		t.Fatalf("%s: status = %d, want %d (body %s)", what, rec.Code, want, rec.Body.String())
	}
}

func TestLifecycleAndHealth(t *testing.T) {
	srv, h := setupServer(t)

	expect(t, do(t, h, "GET", "/health", "", nil), http.StatusServiceUnavailable, "health while starting")
	expect(t, do(t, h, "POST", "/api/auth/login", "", map[string]string{}), http.StatusServiceUnavailable, "api while starting")

	srv.SetState(StateReady)
	rec := do(t, h, "GET", "/health", "", nil)
	expect(t, rec, http.StatusOK, "health when ready")
	if got := decode[map[string]any](t, rec); got["status"] != "ready" || got["cache"] != "disabled" {
		t.Errorf("health = %v", got)
	}

	srv.SetState(StateDraining)
	srv.SetState(StateReady)
	if srv.State() != StateDraining {
		t.Errorf("state = %v, want draining", srv.State())
	}
	expect(t, do(t, h, "GET", "/api/me", "", nil), http.StatusServiceUnavailable, "api while draining")
}

func TestAuthRequired(t *testing.T) {
	srv, h := setupServer(t)
	srv.SetState(StateReady)

	expect(t, do(t, h, "GET", "/api/me", "", nil), http.StatusUnauthorized, "no token")
	expect(t, do(t, h, "GET", "/api/me", "not-a-jwt", nil), http.StatusUnauthorized, "bad token")

	token := register(t, h, "user@spotx.test")
	expect(t, do(t, h, "GET", "/api/me", token, nil), http.StatusOK, "me")
	expect(t, do(t, h, "GET", "/api/admin/overview", token, nil), http.StatusForbidden, "admin as user")
	expect(t, do(t, h, "GET", "/api/merchant/campaigns", token, nil), http.StatusForbidden, "merchant as user")

	expect(t, do(t, h, "POST", "/api/auth/register", "", map[string]string{
		"email": "user@spotx.test", "password": "another password",
	}), http.StatusConflict, "duplicate register")
	expect(t, do(t, h, "POST", "/api/auth/login", "", map[string]string{
		"email": "user@spotx.test", "password": "wrong password",
	}), http.StatusUnauthorized, "bad login")
	expect(t, do(t, h, "POST", "/api/auth/login", "", map[string]string{
		"email": "user@spotx.test", "password": "correct horse battery",
	}), http.StatusOK, "login")
}

func TestRewardedViewFlow(t *testing.T) {
	srv, h := setupServer(t)
	srv.SetState(StateReady)

	admin := register(t, h, "admin@spotx.test")
	merchant := register(t, h, "owner@cafe.test")
	user := register(t, h, "viewer@spotx.test")

	// Merchant onboarding and campaign setup.
	rec := do(t, h, "POST", "/api/merchant", merchant, map[string]string{"business_name": "Corner Cafe"})
	expect(t, rec, http.StatusCreated, "register merchant")
	merchantID := decode[map[string]any](t, rec)["id"].(string)

	expect(t, do(t, h, "POST", "/api/merchant/campaigns", merchant, map[string]any{
		"title": "Too generous", "duration_seconds": 15, "reward_per_view": "5", "total_budget": "1",
	}), http.StatusBadRequest, "reward above budget")

	rec = do(t, h, "POST", "/api/merchant/campaigns", merchant, map[string]any{
		"title":            "Morning coffee",
		"duration_seconds": 15,
		"reward_per_view":  "0.25",
		"total_budget":     "1.00",
		"target_interests": []string{"coffee"},
	})
	expect(t, rec, http.StatusCreated, "create campaign")
	campaignID := decode[map[string]any](t, rec)["id"].(string)

	statusPath := "/api/merchant/campaigns/" + campaignID + "/status"
	expect(t, do(t, h, "POST", statusPath, merchant, map[string]string{"status": "active"}), http.StatusForbidden, "activate while pending")
	expect(t, do(t, h, "POST", "/api/admin/merchants/"+merchantID+"/status", admin, map[string]string{"status": "approved"}), http.StatusOK, "approve merchant")
	expect(t, do(t, h, "POST", statusPath, merchant, map[string]string{"status": "active"}), http.StatusOK, "activate")

	// The user watches the ad.
	expect(t, do(t, h, "GET", "/api/ads/next?slot_id=teatime", user, nil), http.StatusBadRequest, "unknown slot")
	rec = do(t, h, "GET", "/api/ads/next?slot_id=morning", user, nil)
	expect(t, rec, http.StatusOK, "next ad")
	next := decode[map[string]any](t, rec)
	if ad := next["ad"].(map[string]any); ad["id"] != campaignID {
		t.Fatalf("ad = %v, want campaign %s", ad, campaignID)
	}

	view := map[string]any{"campaign_id": campaignID, "slot_id": "morning", "duration_seconds": 5}
	rec = do(t, h, "POST", "/api/ads/views", user, view)
	expect(t, rec, http.StatusAccepted, "short view")
	if got := decode[map[string]any](t, rec); got["status"] != "unverified" {
		t.Errorf("short view = %v", got)
	}

	view["duration_seconds"] = 15
	rec = do(t, h, "POST", "/api/ads/views", user, view)
	expect(t, rec, http.StatusCreated, "full view")
	if got := decode[map[string]any](t, rec); got["status"] != "rewarded" || got["reward"] == nil {
		t.Errorf("full view = %v", got)
	}
	expect(t, do(t, h, "POST", "/api/ads/views", user, view), http.StatusConflict, "repeat view")

	rec = do(t, h, "GET", "/api/rewards/summary", user, nil)
	expect(t, rec, http.StatusOK, "summary")
	sum := decode[map[string]any](t, rec)
	if sum["total_earned"] != "0.25" || sum["today"] != "0.25" || sum["total_paid"] != "0" {
		t.Errorf("summary = %v", sum)
	}
	if f := sum["formatted"].(map[string]any); f["total_earned"] != "$0.25" {
		t.Errorf("formatted = %v", f)
	}

	rec = do(t, h, "GET", "/api/slots/today", user, nil)
	expect(t, rec, http.StatusOK, "today")
	if got := decode[map[string]any](t, rec); got["completed"] != float64(1) {
		t.Errorf("today = %v", got)
	}

	rec = do(t, h, "GET", "/api/merchant/campaigns/"+campaignID, merchant, nil)
	expect(t, rec, http.StatusOK, "get campaign")
	if got := decode[map[string]any](t, rec); got["spent_budget"] != "0.25" {
		t.Errorf("spent = %v", got["spent_budget"])
	}

	rec = do(t, h, "GET", "/api/merchant/campaigns/"+campaignID+"/stats", merchant, nil)
	expect(t, rec, http.StatusOK, "stats")
	stats := decode[[]map[string]any](t, rec)
	if len(stats) != 1 || stats[0]["views"] != float64(2) || stats[0]["completed_views"] != float64(1) {
		t.Errorf("stats = %v", stats)
	}

	// Another merchant's campaign is invisible.
	expect(t, do(t, h, "GET", "/api/merchant/campaigns/"+campaignID, admin, nil), http.StatusNotFound, "admin without merchant profile")

	rec = do(t, h, "GET", "/api/admin/overview", admin, nil)
	expect(t, rec, http.StatusOK, "overview")
	ov := decode[map[string]any](t, rec)
	if ov["users"] != float64(3) || ov["views"] != float64(2) || ov["verified_views"] != float64(1) || ov["rewards_issued"] != "0.25" {
		t.Errorf("overview = %v", ov)
	}

	expect(t, do(t, h, "POST", "/api/rewards/payout", user, nil), http.StatusNotImplemented, "payout")

	// Resetting the slot record does not make a paid slot payable again.
	expect(t, do(t, h, "DELETE", "/api/slots", user, nil), http.StatusNoContent, "reset slots")
	expect(t, do(t, h, "POST", "/api/ads/views", user, view), http.StatusConflict, "view after reset")
	rec = do(t, h, "GET", "/api/rewards/summary", user, nil)
	if got := decode[map[string]any](t, rec); got["total_earned"] != "0.25" {
		t.Errorf("total after reset = %v, want 0.25", got["total_earned"])
	}

	// Suspension takes the merchant's campaigns out of rotation.
	expect(t, do(t, h, "POST", "/api/admin/merchants/"+merchantID+"/status", admin, map[string]string{"status": "suspended"}), http.StatusOK, "suspend merchant")
	expect(t, do(t, h, "GET", "/api/ads/next?slot_id=midday", user, nil), http.StatusNotFound, "next ad after suspension")
	rec = do(t, h, "GET", "/api/merchant/campaigns/"+campaignID, merchant, nil)
	if got := decode[map[string]any](t, rec); got["status"] != "paused" {
		t.Errorf("campaign status after suspension = %v, want paused", got["status"])
	}
}

func TestGrantReward(t *testing.T) {
	srv, h := setupServer(t)
	srv.SetState(StateReady)

	admin := register(t, h, "admin@spotx.test")
	user := register(t, h, "viewer@spotx.test")
	rec := do(t, h, "GET", "/api/me", user, nil)
	userID := decode[map[string]any](t, rec)["id"].(string)

	expect(t, do(t, h, "POST", "/api/admin/rewards", admin, map[string]string{
		"user_id": userID, "amount": "-1", "source": "bonus",
	}), http.StatusBadRequest, "negative grant")
	expect(t, do(t, h, "POST", "/api/admin/rewards", admin, map[string]string{
		"user_id": userID, "amount": "2.50", "source": "ad_view",
	}), http.StatusBadRequest, "grant as ad view")
	expect(t, do(t, h, "POST", "/api/admin/rewards", admin, map[string]string{
		"user_id": userID, "amount": "2.50", "source": "referral", "description": "Invited a friend",
	}), http.StatusCreated, "grant")

	rec = do(t, h, "GET", "/api/rewards", user, nil)
	expect(t, rec, http.StatusOK, "list rewards")
	rewards := decode[[]map[string]any](t, rec)
	if len(rewards) != 1 || rewards[0]["source"] != "referral" || rewards[0]["amount"] != "2.5" {
		t.Errorf("rewards = %v", rewards)
	}
}

func TestPushEndpoints(t *testing.T) {
	srv, h := setupServer(t)
	srv.SetState(StateReady)
	user := register(t, h, "viewer@spotx.test")

	expect(t, do(t, h, "POST", "/api/push/tokens", user, map[string]string{
		"token": "device-token-abc", "platform": "blackberry",
	}), http.StatusBadRequest, "bad platform")
	expect(t, do(t, h, "POST", "/api/push/tokens", user, map[string]string{
		"token": "device-token-abc", "platform": "ios",
	}), http.StatusCreated, "register token")

	for i := 0; i < 2; i++ {
		rec := do(t, h, "POST", "/api/push/schedule", user, nil)
		expect(t, rec, http.StatusOK, "schedule")
		if got := decode[[]map[string]any](t, rec); len(got) != 5 {
			t.Fatalf("scheduled = %d, want 5", len(got))
		}
	}
	expect(t, do(t, h, "DELETE", "/api/push/schedule", user, nil), http.StatusNoContent, "cancel")
	rec := do(t, h, "GET", "/api/push/schedule", user, nil)
	if got := decode[[]map[string]any](t, rec); len(got) != 0 {
		t.Errorf("after cancel = %v", got)
	}

	event := map[string]string{"identifier": "spotx-slot-morning:2026-03-01", "action": "received"}
	rec = do(t, h, "POST", "/api/notifications/events", user, event)
	if got := decode[map[string]bool](t, rec); !got["processed"] {
		t.Error("first event not processed")
	}
	rec = do(t, h, "POST", "/api/notifications/events", user, event)
	if got := decode[map[string]bool](t, rec); got["processed"] {
		t.Error("duplicate event processed")
	}

	expect(t, do(t, h, "GET", "/api/push/vapid-key", user, nil), http.StatusServiceUnavailable, "vapid without keys")
	expect(t, do(t, h, "DELETE", "/api/push/tokens/device-token-abc", user, nil), http.StatusNoContent, "delete token")
	expect(t, do(t, h, "DELETE", "/api/push/tokens/device-token-abc", user, nil), http.StatusNotFound, "delete again")
}

func TestMetricsEndpoint(t *testing.T) {
	srv, h := setupServer(t)
	srv.SetState(StateReady)
	do(t, h, "GET", "/api/me", "", nil)

	rec := do(t, h, "GET", "/metrics", "", nil)
	expect(t, rec, http.StatusOK, "metrics")
	if !bytes.Contains(rec.Body.Bytes(), []byte(`spotx_http_requests_total{method="GET",route="GET /api/me",status="401"} 1`)) {
		t.Errorf("metrics missing request counter:\n%s", rec.Body.String())
	}
}
