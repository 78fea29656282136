// Convoy coordination server — exposes the group journey HTTP API, the
// realtime websocket hub, and push notification fan-out.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/convoyhq/convoy/pkg/api"
	"github.com/convoyhq/convoy/pkg/cache"
	"github.com/convoyhq/convoy/pkg/cleanup"
	"github.com/convoyhq/convoy/pkg/config"
	"github.com/convoyhq/convoy/pkg/database"
	"github.com/convoyhq/convoy/pkg/events"
	"github.com/convoyhq/convoy/pkg/notify"
	"github.com/convoyhq/convoy/pkg/services"
	"github.com/convoyhq/convoy/pkg/store"
	"github.com/convoyhq/convoy/pkg/version"
)

func main() {
	envPath := flag.String("env-file", ".env", "Path to .env file (optional)")
	flag.Parse()

	ctx := context.Background()

	// 1. Configuration
	cfg, err := config.Load(*envPath)
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	slog.Info("Starting convoy",
		"version", version.Full(),
		"http_port", cfg.HTTPPort,
		"environment", cfg.Environment)

	// 2. Database
	dbClient, err := database.NewClient(ctx, database.Config{
		Host:            cfg.DBHost,
		Port:            cfg.DBPort,
		User:            cfg.DBUser,
		Password:        cfg.DBPassword,
		Database:        cfg.DBName,
		SSLMode:         cfg.DBSSLMode,
		MaxOpenConns:    10,
		MaxIdleConns:    5,
		ConnMaxLifetime: 30 * time.Minute,
		ConnMaxIdleTime: 5 * time.Minute,
	})
	if err != nil {
		slog.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			slog.Error("Error closing database client", "error", err)
		}
	}()
	slog.Info("Connected to PostgreSQL database")

	// 3. Cache
	var c cache.Cache = cache.Noop{}
	if !cfg.CacheDisabled {
		redisCache, err := cache.NewRedis(ctx, cfg.RedisURL)
		if err != nil {
			slog.Error("Failed to connect to Redis", "error", err)
			os.Exit(1)
		}
		defer func() {
			if err := redisCache.Close(); err != nil {
				slog.Error("Error closing Redis client", "error", err)
			}
		}()
		c = redisCache
		slog.Info("Connected to Redis cache")
	} else {
		slog.Warn("Cache disabled, reads go straight to the database")
	}

	// 4. Push notifications
	var notifier notify.Notifier = notify.NoopNotifier{}
	if cfg.NotifyEnabled {
		kafkaNotifier := notify.NewKafkaNotifier(cfg.KafkaBrokers, cfg.PushTopic)
		defer kafkaNotifier.Close()
		notifier = kafkaNotifier
		slog.Info("Push notifications enabled", "brokers", cfg.KafkaBrokers, "topic", cfg.PushTopic)
	}

	// 5. Realtime hub and services. The hub needs the journey service for
	// membership checks and the service broadcasts through the hub, so the
	// gatekeeper is installed after both exist.
	hub := events.NewHub(nil, 10*time.Second)
	publisher := events.NewPublisher(hub)
	st := store.New(dbClient.DB())

	clock := clockwork.NewRealClock()
	journeys := services.NewJourneyService(st, c, publisher, notifier,
		services.NoopAchievements{}, clock, cfg.ArchiveGroupOnComplete)
	locations := services.NewLocationService(st, c, publisher, clock, cfg.LocationMinInterval)
	hub.SetGatekeeper(journeys)
	slog.Info("Services initialized")

	// 6. Retention sweeper
	sweeper := cleanup.NewService(cleanup.Config{
		RideEventRetention:  cfg.RideEventRetention,
		RoutePointRetention: cfg.RoutePointRetention,
		Interval:            cfg.CleanupInterval,
	}, st)
	sweeper.Start(ctx)
	defer sweeper.Stop()

	// 7. HTTP server
	verifier := api.NewJWTVerifier(cfg.JWTSecret, cfg.TokenMaxAge)
	httpServer := api.NewServer(api.Config{
		Port:           cfg.HTTPPort,
		RateLimitRPS:   cfg.RateLimitRPS,
		RateLimitBurst: cfg.RateLimitBurst,
		ShutdownWait:   cfg.ShutdownWait,
	}, journeys, locations, hub, dbClient, verifier)

	errCh := make(chan error, 1)
	go func() {
		if err := httpServer.Start(); err != nil {
			errCh <- err
		}
	}()

	slog.Info("Convoy started successfully")

	// 8. Wait for shutdown signal or server error
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)

	select {
	case sig := <-sigCh:
		slog.Info("Shutdown signal received", "signal", sig)
	case err := <-errCh:
		slog.Error("Server error triggered shutdown", "error", err)
	}

	// 9. Graceful shutdown
	if err := httpServer.Shutdown(ctx); err != nil {
		slog.Error("HTTP server shutdown error", "error", err)
	}

	slog.Info("Shutdown complete")
}
