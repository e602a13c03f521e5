package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/insider-one/notification-orchestrator/internal/broker"
	"github.com/insider-one/notification-orchestrator/internal/config"
	"github.com/insider-one/notification-orchestrator/internal/handler"
	"github.com/insider-one/notification-orchestrator/internal/middleware"
	"github.com/insider-one/notification-orchestrator/internal/orchestrator"
	"github.com/insider-one/notification-orchestrator/internal/remote"
	"github.com/insider-one/notification-orchestrator/internal/repository/postgres"
	"github.com/insider-one/notification-orchestrator/internal/repository/redis"
)

func main() {
	cfg := config.Load()

	logLevel := slog.LevelInfo
	if cfg.App.LogLevel == "debug" {
		logLevel = slog.LevelDebug
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)

	logger.Info("starting notification orchestrator",
		"env", cfg.App.Env,
		"port", cfg.Server.Port,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	db, err := postgres.New(ctx, cfg.Database)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()
	logger.Info("connected to PostgreSQL")

	redisClient, err := redis.New(ctx, cfg.Redis)
	if err != nil {
		logger.Error("failed to connect to Redis", "error", err)
		os.Exit(1)
	}
	defer redisClient.Close()
	logger.Info("connected to Redis")

	mqBroker, err := broker.Connect(ctx, cfg.RabbitMQ, logger)
	if err != nil {
		logger.Error("failed to connect to RabbitMQ", "error", err)
		os.Exit(1)
	}
	defer mqBroker.Close()

	notificationRepo := postgres.NewNotificationRepository(db)
	eventRepo := postgres.NewEventRepository(db)

	idempotencyStore := redis.NewIdempotencyStore(redisClient, cfg.Orchestrator.IdempotencyTTL)
	statusCache := redis.NewStatusCache(redisClient, cfg.Orchestrator.StatusTTL)
	rateLimiter := redis.NewRateLimiter(redisClient)

	userClient := remote.NewUserClient(cfg.ExternalServices)
	templateClient := remote.NewTemplateClient(cfg.ExternalServices)

	metrics := handler.NewMetrics()

	orch := orchestrator.New(
		notificationRepo,
		eventRepo,
		userClient,
		templateClient,
		rateLimiter,
		mqBroker,
		statusCache,
		metrics,
		logger,
		cfg.Orchestrator,
	)

	recoveryLoop := orchestrator.NewRecoveryLoop(notificationRepo, orch, cfg.Orchestrator)
	retryLoop := orchestrator.NewRetryLoop(notificationRepo, eventRepo, orch, cfg.Orchestrator)

	notificationHandler := handler.NewNotificationHandler(notificationRepo, eventRepo, idempotencyStore, statusCache, orch)
	callbackHandler := handler.NewCallbackHandler(notificationRepo, eventRepo, statusCache)

	healthHandler := handler.NewHealthHandler()
	healthHandler.AddChecker("database", db)
	healthHandler.AddChecker("redis", redisClient)
	healthHandler.AddChecker("rabbitmq", mqBroker)

	metricsHandler := handler.NewMetricsHandler(metrics)

	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(middleware.Correlation)
	r.Use(middleware.Recovery(logger))
	r.Use(middleware.Logging(logger))
	r.Use(chimiddleware.Compress(5))

	r.Get("/health", healthHandler.Health)
	r.Get("/health/live", healthHandler.Liveness)
	r.Get("/health/ready", healthHandler.Readiness)

	r.Handle("/metrics", metricsHandler.Handler())

	r.Route("/notification", func(r chi.Router) {
		notificationHandler.RegisterRoutes(r)
		callbackHandler.RegisterRoutes(r)
	})

	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	recoveryLoop.Start(ctx)
	retryLoop.Start(ctx)

	go func() {
		logger.Info("server listening", "port", cfg.Server.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", "error", err)
	}

	retryLoop.Stop()
	recoveryLoop.Stop()

	cancel()

	logger.Info("server stopped")
}
