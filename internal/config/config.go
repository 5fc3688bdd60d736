// Package config reads SPOTX_ environment variables, optionally from a .env
// file.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/dukerupert/spotx/internal/media"
)

type Config struct {
	Port      string
	DBPath    string
	LogLevel  string
	LogFormat string

	JWTSecret string
	TokenTTL  time.Duration
	// AdminEmails are promoted to admin when they register.
	AdminEmails []string

	Location *time.Location
	Currency string
	// SlotEarly and SlotLate widen a slot's availability window.
	SlotEarly time.Duration
	SlotLate  time.Duration

	RedisURL string

	ExpoAccessToken string
	VAPIDPublicKey  string
	VAPIDPrivateKey string
	VAPIDSubscriber string
	// SentRetention is how long notification dedup records are kept.
	SentRetention time.Duration

	PostmarkToken string
	EmailFrom     string
	PortalURL     string

	Media          media.Config
	AllowedOrigins []string
}

// Load reads .env (if present) and the environment. Variables already set
// in the environment win over the file.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}
	return FromEnv(os.Getenv)
}

// FromEnv builds a Config from a lookup function.
func FromEnv(getenv func(string) string) (Config, error) {
	get := func(key, def string) string {
		if v := strings.TrimSpace(getenv("SPOTX_" + key)); v != "" {
			return v
		}
		return def
	}

	cfg := Config{
		Port:            get("PORT", "8080"),
		DBPath:          get("DB_PATH", "spotx.db"),
		LogLevel:        get("LOG_LEVEL", "info"),
		LogFormat:       get("LOG_FORMAT", "text"),
		JWTSecret:       get("JWT_SECRET", ""),
		AdminEmails:     list(get("ADMIN_EMAILS", "")),
		Currency:        strings.ToUpper(get("CURRENCY", "USD")),
		RedisURL:        get("REDIS_URL", ""),
		ExpoAccessToken: get("EXPO_ACCESS_TOKEN", ""),
		VAPIDPublicKey:  get("VAPID_PUBLIC_KEY", ""),
		VAPIDPrivateKey: get("VAPID_PRIVATE_KEY", ""),
		VAPIDSubscriber: get("VAPID_SUBSCRIBER", "mailto:support@spotx.app"),
		PostmarkToken:   get("POSTMARK_TOKEN", ""),
		EmailFrom:       get("EMAIL_FROM", "noreply@spotx.app"),
		PortalURL:       strings.TrimRight(get("PORTAL_URL", "http://localhost:8080"), "/"),
		Media: media.Config{
			Endpoint:  get("S3_ENDPOINT", ""),
			Bucket:    get("S3_BUCKET", ""),
			Region:    get("S3_REGION", "auto"),
			AccessKey: get("S3_ACCESS_KEY", ""),
			SecretKey: get("S3_SECRET_KEY", ""),
			PublicURL: get("S3_PUBLIC_URL", ""),
		},
		AllowedOrigins: list(get("ALLOWED_ORIGINS", "")),
	}

	if cfg.JWTSecret == "" {
		return Config{}, errors.New("SPOTX_JWT_SECRET is required")
	}

	loc, err := time.LoadLocation(get("TIMEZONE", "Local"))
	if err != nil {
		return Config{}, fmt.Errorf("SPOTX_TIMEZONE: %w", err)
	}
	cfg.Location = loc

	durations := []struct {
		key string
		def string
		dst *time.Duration
	}{
		{"TOKEN_TTL", "168h", &cfg.TokenTTL},
		{"SLOT_EARLY", "0s", &cfg.SlotEarly},
		{"SLOT_LATE", "0s", &cfg.SlotLate},
		{"SENT_RETENTION", "72h", &cfg.SentRetention},
	}
	for _, d := range durations {
		v, err := time.ParseDuration(get(d.key, d.def))
		if err != nil || v < 0 {
			return Config{}, fmt.Errorf("SPOTX_%s: invalid duration %q", d.key, get(d.key, d.def))
		}
		*d.dst = v
	}

	return cfg, nil
}

// IsAdminEmail reports whether email is listed in SPOTX_ADMIN_EMAILS.
func (c Config) IsAdminEmail(email string) bool {
	email = strings.ToLower(strings.TrimSpace(email))
	for _, a := range c.AdminEmails {
		if a == email {
			return true
		}
	}
	return false
}

func list(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.ToLower(strings.TrimSpace(part)); p != "" {
			out = append(out, p)
		}
	}
	return out
}
