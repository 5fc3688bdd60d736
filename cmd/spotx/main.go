package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dukerupert/spotx/internal/cache"
	"github.com/dukerupert/spotx/internal/config"
	"github.com/dukerupert/spotx/internal/database"
	"github.com/dukerupert/spotx/internal/email"
	"github.com/dukerupert/spotx/internal/logging"
	"github.com/dukerupert/spotx/internal/media"
	"github.com/dukerupert/spotx/internal/metrics"
	"github.com/dukerupert/spotx/internal/push"
	"github.com/dukerupert/spotx/internal/server"
)

func main() {
	genVAPID := flag.Bool("generate-vapid-keys", false, "print a new VAPID key pair and exit")
	flag.Parse()

	if *genVAPID {
		pub, priv, err := push.GenerateVAPIDKeys()
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		fmt.Printf("SPOTX_VAPID_PUBLIC_KEY=%s\nSPOTX_VAPID_PRIVATE_KEY=%s\n", pub, priv)
		return
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	logger := logging.Setup(cfg.LogLevel, cfg.LogFormat)

	db, err := database.Open(cfg.DBPath)
	if err != nil {
		slog.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	rdb := cache.New(cfg.RedisURL, logger)
	defer rdb.Close()

	emailClient := email.NewClient(cfg.PostmarkToken, cfg.EmailFrom, cfg.PortalURL)
	if !emailClient.Configured() {
		slog.Info("email disabled, SPOTX_POSTMARK_TOKEN not set")
	}
	uploader := media.New(cfg.Media, logger)
	if !uploader.Enabled() {
		slog.Info("media uploads disabled, S3 credentials not set")
	}
	webPush := push.NewWebPush(cfg.VAPIDPublicKey, cfg.VAPIDPrivateKey, cfg.VAPIDSubscriber)

	srv := server.New(server.Deps{
		DB:      db,
		Config:  cfg,
		Cache:   rdb,
		Metrics: metrics.New(db),
		Email:   emailClient,
		Media:   uploader,
		Expo:    push.NewExpo(cfg.ExpoAccessToken),
		WebPush: webPush,
	}, logger)

	httpServer := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           srv.Router(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	bgCtx, bgCancel := context.WithCancel(context.Background())
	defer bgCancel()

	srv.Scheduler().Start(bgCtx)

	// Background cleanup goroutine
	go func() {
		ticker := time.NewTicker(1 * time.Hour)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if err := srv.PushStore().CleanupSent(time.Now().Add(-cfg.SentRetention)); err != nil {
					slog.Error("cleanup sent notifications", "error", err)
				}
				srv.RateLimiter().Cleanup()
			case <-bgCtx.Done():
				return
			}
		}
	}()

	go func() {
		slog.Info("spotx starting", "addr", httpServer.Addr, "timezone", cfg.Location.String())
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()
	srv.SetState(server.StateReady)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down")
	srv.SetState(server.StateDraining)
	srv.Scheduler().Stop()
	bgCancel()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		slog.Error("shutdown error", "error", err)
		os.Exit(1)
	}
}
