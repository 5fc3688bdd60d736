package push

import (
	"crypto/ecdh"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/dukerupert/spotx/internal/model"
)

func TestGenerateVAPIDKeys(t *testing.T) {
	pub, priv, err := GenerateVAPIDKeys()
	if err != nil {
		t.Fatalf("generate VAPID keys: %v", err)
	}

	// Public key should be base64url-encoded, 65 bytes uncompressed P-256 point
	pubBytes, err := base64.RawURLEncoding.DecodeString(pub)
	if err != nil {
		t.Fatalf("decode public key: %v", err)
	}
	if len(pubBytes) != 65 {
		t.Errorf("public key length = %d, want 65", len(pubBytes))
	}

	// Private key should be base64url-encoded, 32 bytes P-256 scalar
	privBytes, err := base64.RawURLEncoding.DecodeString(priv)
	if err != nil {
		t.Fatalf("decode private key: %v", err)
	}
	if len(privBytes) != 32 {
		t.Errorf("private key length = %d, want 32", len(privBytes))
	}

	pub2, _, _ := GenerateVAPIDKeys()
	if pub == pub2 {
		t.Error("expected different keys on second generation")
	}
}

func browserSubscription(t *testing.T, endpoint string) *model.WebPushSubscription {
	t.Helper()
	key, err := ecdh.P256().GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("generate client key: %v", err)
	}
	secret := make([]byte, 16)
	rand.Read(secret)
	return &model.WebPushSubscription{
		Endpoint:  endpoint,
		P256dhKey: base64.RawURLEncoding.EncodeToString(key.PublicKey().Bytes()),
		AuthKey:   base64.RawURLEncoding.EncodeToString(secret),
	}
}

func TestWebPushSend(t *testing.T) {
	var status atomic.Int32
	status.Store(http.StatusCreated)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") == "" {
			t.Error("missing VAPID authorization header")
		}
		w.WriteHeader(int(status.Load()))
	}))
	defer srv.Close()

	pub, priv, err := GenerateVAPIDKeys()
	if err != nil {
		t.Fatalf("generate keys: %v", err)
	}
	wp := NewWebPush(pub, priv, "")
	if !wp.Configured() || wp.VAPIDPublicKey() != pub {
		t.Fatal("web push not configured")
	}
	sub := browserSubscription(t, srv.URL+"/push/1")

	if err := wp.Send(sub, Payload{Title: "Hi", Body: "There"}); err != nil {
		t.Fatalf("send: %v", err)
	}

	status.Store(http.StatusGone)
	if err := wp.Send(sub, Payload{Title: "Hi"}); !errors.Is(err, ErrExpired) {
		t.Errorf("send to gone endpoint = %v, want ErrExpired", err)
	}

	status.Store(http.StatusBadRequest)
	if err := wp.Send(sub, Payload{Title: "Hi"}); err == nil || errors.Is(err, ErrExpired) {
		t.Errorf("send bad request = %v, want generic error", err)
	}
}

func TestWebPushNotConfigured(t *testing.T) {
	var nilWeb *WebPush
	if nilWeb.Configured() {
		t.Error("nil web push reported configured")
	}
	if NewWebPush("", "", "").Configured() {
		t.Error("keyless web push reported configured")
	}
}
