package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jonboulle/clockwork"
	goredis "github.com/redis/go-redis/v9"

	"github.com/martlabs/orderpulse/internal/config"
	"github.com/martlabs/orderpulse/internal/database"
	"github.com/martlabs/orderpulse/internal/logging"
	"github.com/martlabs/orderpulse/internal/orders"
	"github.com/martlabs/orderpulse/internal/realtime"
	"github.com/martlabs/orderpulse/internal/redis"
	"github.com/martlabs/orderpulse/internal/server"
)

func setupConfig() *config.Config {
	cfg, err := config.Load()
	if err != nil {
		// Use log before slog is initialized
		log.Fatalf("Failed to load config: %v", err)
	}
	return cfg
}

func setupDB(cfg *config.Config) *pgxpool.Pool {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	db, err := database.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		slog.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}

	if err := database.RunMigrations(ctx, db); err != nil {
		slog.Error("Failed to run migrations", "error", err)
		os.Exit(1)
	}

	return db
}

func setupRedis(cfg *config.Config) *goredis.Client {
	if cfg.RedisURL == "" {
		slog.Warn("REDIS_URL not set, payment event dedupe fast path disabled")
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, err := redis.NewClient(ctx, cfg.RedisURL)
	if err != nil {
		slog.Error("Failed to connect to Redis", "error", err)
		os.Exit(1)
	}
	return client
}

func runGracefulShutdown(srv *server.Server, heartbeat *realtime.HeartbeatMonitor, registry *realtime.Registry) <-chan struct{} {
	done := make(chan struct{})
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigChan
		slog.Info("Shutdown signal received, cleaning up...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("Server shutdown error", "error", err)
		}

		heartbeat.Stop()
		registry.CloseAll("server shutting down")

		close(done)
	}()

	return done
}

func main() {
	clock := clockwork.NewRealClock()

	cfg := setupConfig()

	logging.InitLogger(cfg.LogLevel, cfg.LogFormat)
	slog.Info("Application starting", "env", cfg.AppEnv, "port", cfg.Port)

	pool := setupDB(cfg)
	defer pool.Close()

	redisClient := setupRedis(cfg)
	if redisClient != nil {
		defer func() { _ = redisClient.Close() }()
	}

	orderRepo := database.NewOrderRepo(pool)
	notificationRepo := database.NewNotificationRepo(pool)
	analyticsRepo := database.NewAnalyticsRepo(pool)
	userRepo := database.NewUserRepo(pool)
	cartRepo := database.NewCartRepo(pool)

	registry := realtime.NewRegistry(userRepo, clock)
	dispatcher := realtime.NewDispatcher(registry, orderRepo, notificationRepo, clock)
	broadcaster := realtime.NewBroadcaster(registry)

	heartbeat := realtime.NewHeartbeatMonitor(registry, cfg.HeartbeatInterval, clock)
	heartbeat.Start()

	var dedupe orders.Deduper
	if redisClient != nil {
		dedupe = redis.NewEventDeduper(redisClient)
	}
	processor := orders.NewProcessor(cfg.CommissionRate, orderRepo, notificationRepo, cartRepo, dedupe, broadcaster, clock)

	srv := server.NewServer(cfg, registry, dispatcher, processor, orderRepo, analyticsRepo, pool, redisClient)

	done := runGracefulShutdown(srv, heartbeat, registry)

	slog.Info("Server starting", "port", cfg.Port)
	if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("Server error", "error", err)
		os.Exit(1)
	}

	<-done
}
