package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/go-redis/redis/v8"
	"github.com/pathakanu/waterit/internal/config"
	"github.com/pathakanu/waterit/internal/database"
	"github.com/pathakanu/waterit/internal/logging"
	"github.com/pathakanu/waterit/internal/push"
	"github.com/pathakanu/waterit/internal/reminder"
	"github.com/pathakanu/waterit/internal/server"
	"github.com/pathakanu/waterit/internal/store"
	"github.com/pathakanu/waterit/internal/twilio"
	"github.com/pathakanu/waterit/internal/weather"
	"go.uber.org/zap"
)

func main() {
	cfg := config.Load()

	logger, err := logging.New(cfg.Env, cfg.LogLevel)
	if err != nil {
		log.Fatalf("logger init failed: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	db, err := database.New(cfg.DatabaseURL, cfg.SQLitePath, logger)
	if err != nil {
		logger.Fatal("database init failed", zap.Error(err))
	}
	st := store.New(db)

	clk := clock.New()
	filled, err := st.BackfillNextRun(context.Background(), clk.Now().In(cfg.LocalTimezone))
	if err != nil {
		logger.Fatal("next run backfill failed", zap.Error(err))
	}
	if filled > 0 {
		logger.Info("backfilled reminder schedules", zap.Int("reminders", filled))
	}

	var sender push.Sender
	wp, err := push.NewWebPush(cfg.VAPIDPublicKey, cfg.VAPIDPrivateKey, cfg.VAPIDSubject, cfg.PushTTLSeconds, cfg.PushTimeout)
	switch {
	case errors.Is(err, push.ErrNotConfigured):
		logger.Warn("VAPID keys not set; reminders will be rescheduled without push delivery")
	case err != nil:
		logger.Fatal("web push init failed", zap.Error(err))
	default:
		sender = wp
	}
	dispatcher := push.NewDispatcher(st, sender, cfg.PushTimeout, logger)

	orchestrator := reminder.NewOrchestrator(st, dispatcher, cfg.LocalTimezone, logger)
	if cfg.WhatsAppConfigured() {
		logger.Info("mirroring reminders to WhatsApp", zap.String("from", cfg.TwilioWhatsAppNumber))
		orchestrator.SetMirror(twilio.New(cfg.TwilioAccountSID, cfg.TwilioAuthToken, cfg.TwilioWhatsAppNumber, cfg.NotifyWhatsAppTo, logger))
	}

	scheduler := reminder.NewScheduler(orchestrator, clk, cfg.TickInterval, logger)
	if err := scheduler.Start(); err != nil {
		logger.Fatal("scheduler start failed", zap.Error(err))
	}

	forecasts := weather.New(cfg.OpenWeatherAPIKey, newWeatherCache(cfg, clk, logger), cfg.WeatherCacheTTL, cfg.LocalTimezone, logger)

	api := server.New(server.Options{
		Store:          st,
		Push:           dispatcher,
		Weather:        forecasts,
		Clock:          clk,
		Location:       cfg.LocalTimezone,
		VAPIDPublicKey: cfg.VAPIDPublicKey,
		DefaultCity:    cfg.DefaultCity,
		UploadDir:      cfg.UploadDir,
		MaxUploadBytes: cfg.MaxUploadBytes,
		Log:            logger,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           api.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server error", zap.Error(err))
		}
	}()

	waitForShutdown(srv, scheduler, logger)
}

// newWeatherCache uses Redis when REDIS_ADDR is set and reachable, else memory.
func newWeatherCache(cfg *config.Config, clk clock.Clock, logger *zap.Logger) weather.Cache {
	if cfg.RedisAddr == "" {
		return weather.NewMemoryCache(clk)
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		logger.Warn("redis unavailable, using in-memory weather cache", zap.String("addr", cfg.RedisAddr), zap.Error(err))
		_ = client.Close()
		return weather.NewMemoryCache(clk)
	}
	logger.Info("weather cache: redis", zap.String("addr", cfg.RedisAddr))
	return weather.NewRedisCache(client)
}

func waitForShutdown(srv *http.Server, scheduler *reminder.Scheduler, logger *zap.Logger) {
	stopCtx := make(chan os.Signal, 1)
	signal.Notify(stopCtx, syscall.SIGINT, syscall.SIGTERM)
	<-stopCtx
	logger.Info("shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("server shutdown error", zap.Error(err))
	}
	scheduler.Stop()
}
