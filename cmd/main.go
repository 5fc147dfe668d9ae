/**
 * @description
 * This is the main entry point for the claim-service. It loads configuration,
 * connects to PostgreSQL and the optional Redis and RabbitMQ backends, builds the
 * place and payment clients, wires the application services and starts the HTTP
 * server and the cron scheduler.
 *
 * @dependencies
 * - github.com/jackc/pgx/v5: PostgreSQL driver.
 * - github.com/redis/go-redis/v9: Rate limiting, place search cache and claim token redemption.
 * - github.com/joho/godotenv: For loading .env files during local development.
 * - internal/api, internal/app, internal/config, internal/store: Internal packages for the service.
 * - pkg/placesclient, pkg/paymentclient, pkg/rabbitmq: Upstream clients.
 */

package main

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"github.com/swipesavvy/claim-service/internal/api"
	"github.com/swipesavvy/claim-service/internal/app"
	"github.com/swipesavvy/claim-service/internal/config"
	"github.com/swipesavvy/claim-service/internal/store"
	"github.com/swipesavvy/claim-service/pkg/paymentclient"
	"github.com/swipesavvy/claim-service/pkg/placesclient"
	"github.com/swipesavvy/claim-service/pkg/rabbitmq"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	// Load .env file for local development.
	if err := godotenv.Load(); err != nil {
		logger.Info("no .env file found, using environment variables")
	}

	cfg, err := config.LoadConfig(".")
	if err != nil {
		logger.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}
	if cfg.DatabaseURL == "" {
		logger.Error("database url must be configured", "env", "DATABASE_URL")
		os.Exit(1)
	}
	logger.Info("starting claim-service", "port", cfg.ServerPort, "api_base_url", cfg.APIBaseURL)

	ctx := context.Background()

	poolConfig, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		logger.Error("unable to parse database URL", "error", err)
		os.Exit(1)
	}
	poolConfig.MaxConns = cfg.DBMaxConns
	poolConfig.MinConns = cfg.DBMinConns
	poolConfig.MaxConnLifetime = 30 * time.Minute
	poolConfig.MaxConnIdleTime = 5 * time.Minute

	// Disable prepared statement caching to prevent conflicts
	poolConfig.ConnConfig.DefaultQueryExecMode = pgx.QueryExecModeSimpleProtocol

	dbpool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		logger.Error("unable to connect to database", "error", err)
		os.Exit(1)
	}
	defer dbpool.Close()

	if err := store.EnsureSchema(ctx, dbpool); err != nil {
		logger.Error("failed to ensure schema", "error", err)
		os.Exit(1)
	}
	logger.Info("database connection established")

	redisClient := connectRedis(ctx, cfg.RedisURL, logger)
	if redisClient != nil {
		defer redisClient.Close()
	}

	var events rabbitmq.Publisher = &rabbitmq.LogPublisher{Exchange: cfg.EventsExchange}
	if cfg.RabbitMQURL == "" {
		logger.Warn("rabbitmq url missing; events will be logged only", "env", "RABBITMQ_URL")
	} else if producer, err := rabbitmq.NewEventProducer(cfg.RabbitMQURL, cfg.EventsExchange); err != nil {
		logger.Warn("rabbitmq producer unavailable; using fallback", "url", rabbitmq.MaskURL(cfg.RabbitMQURL), "error", err)
	} else {
		events = producer
		logger.Info("rabbitmq producer connected", "exchange", cfg.EventsExchange)
	}
	defer events.Close()

	placesClient := placesclient.NewClient(cfg.GooglePlacesBaseURL, cfg.GooglePlacesAPIKey)
	if !placesClient.Configured() {
		logger.Warn("google places api key missing; place search will fail", "env", "GOOGLE_PLACES_API_KEY")
	}
	paymentClient := paymentclient.NewClient(cfg.StripeSecretKey, cfg.StripeWebhookSecret)
	if !cfg.PaymentsConfigured() {
		logger.Warn("payment provider not configured; checkout runs in mock mode", "env", "STRIPE_SECRET_KEY")
	}

	claimSecret := []byte(cfg.ClaimTokenSecret)
	if len(claimSecret) == 0 {
		claimSecret = make([]byte, 32)
		if _, err := rand.Read(claimSecret); err != nil {
			logger.Error("failed to generate claim token secret", "error", err)
			os.Exit(1)
		}
		logger.Warn("claim token secret not set; claims will not survive a restart", "env", "CLAIM_TOKEN_SECRET")
	}
	claimTokens, err := app.NewClaimTokenCodec(claimSecret, time.Duration(cfg.ClaimTokenTTLMinutes)*time.Minute)
	if err != nil {
		logger.Error("failed to create claim token codec", "error", err)
		os.Exit(1)
	}

	userRepo := store.NewUserRepository(dbpool)
	businessRepo := store.NewBusinessRepository(dbpool)
	subscriptionRepo := store.NewSubscriptionRepository(dbpool)

	var placeCache app.PlaceCache
	var limiter api.RateLimiter
	var redemptions app.ClaimRedemptions = app.NewMemoryClaimRedemptions()
	if redisClient != nil {
		placeCache = app.NewRedisPlaceCache(redisClient, cfg.RedisKeyPrefix, time.Duration(cfg.PlaceCacheTTLSeconds)*time.Second, logger)
		limiter = app.NewRedisRateLimiter(redisClient, cfg.RedisKeyPrefix)
		redemptions = app.NewRedisClaimRedemptions(redisClient, cfg.RedisKeyPrefix)
	}

	userService := app.NewUserService(userRepo, businessRepo, events, logger, cfg.BcryptCost)
	businessService := app.NewBusinessService(businessRepo, placesClient, placeCache, logger)
	subscriptionService := app.NewSubscriptionService(subscriptionRepo, userRepo, paymentClient, events, logger, app.SubscriptionOptions{
		PaymentsConfigured:     cfg.PaymentsConfigured(),
		AllowSimulatedPayments: cfg.AllowSimulatedPayments,
	})
	claimService := app.NewClaimService(userService, businessService, claimTokens, redemptions, logger)

	scheduler := app.NewScheduler(app.NewJobs(subscriptionService, logger), logger, cfg.SubscriptionSweepSpec)
	if err := scheduler.Start(); err != nil {
		logger.Error("failed to start scheduler", "schedule", cfg.SubscriptionSweepSpec, "error", err)
		os.Exit(1)
	}

	handlers := api.NewHandlers(userService, businessService, subscriptionService, claimService)
	router := api.Routes(handlers, api.RouterOptions{
		ClientURL:       cfg.ClientURL,
		APIBaseURL:      cfg.APIBaseURL,
		Limiter:         limiter,
		SearchPerMinute: cfg.SearchRateLimitPerMinute,
	})

	server := &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.ServerPort),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("server listening", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server stopped unexpectedly", "error", err)
			os.Exit(1)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	logger.Info("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown failed", "error", err)
	}
	select {
	case <-scheduler.Stop().Done():
	case <-shutdownCtx.Done():
		logger.Warn("scheduler did not stop before the shutdown deadline")
	}
	logger.Info("shutdown complete")
}

// connectRedis returns a connected client, or nil when Redis is not configured or
// unreachable. Rate limiting and the place cache are disabled without it.
func connectRedis(ctx context.Context, redisURL string, logger *slog.Logger) *redis.Client {
	if redisURL == "" {
		logger.Warn("redis url missing; rate limiting and place cache disabled, claim redemption is per process", "env", "REDIS_URL")
		return nil
	}
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		logger.Warn("redis url parse failed; rate limiting and place cache disabled", "error", err)
		return nil
	}
	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		logger.Warn("redis ping failed; rate limiting and place cache disabled", "error", err)
		client.Close()
		return nil
	}
	logger.Info("redis connected")
	return client
}
