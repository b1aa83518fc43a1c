package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"github.com/SAP-F-2025/exam-attempt-service/internal/config"
	"github.com/SAP-F-2025/exam-attempt-service/internal/events"
	"github.com/SAP-F-2025/exam-attempt-service/internal/handlers"
	"github.com/SAP-F-2025/exam-attempt-service/internal/metrics"
	"github.com/SAP-F-2025/exam-attempt-service/internal/random"
	"github.com/SAP-F-2025/exam-attempt-service/internal/repositories/casdoor"
	"github.com/SAP-F-2025/exam-attempt-service/internal/repositories/postgres"
	"github.com/SAP-F-2025/exam-attempt-service/internal/services"
	"github.com/SAP-F-2025/exam-attempt-service/internal/storage"
	"github.com/SAP-F-2025/exam-attempt-service/internal/utils"
	"github.com/SAP-F-2025/exam-attempt-service/internal/validator"
	"github.com/SAP-F-2025/exam-attempt-service/pkg"
)

func main() {
	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Initialize logger
	slogLogger := slog.New(slog.NewJSONHandler(utils.LogOutput(cfg.LogFile), &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}))
	slog.SetDefault(slogLogger)
	logger := utils.NewSlogLogger(slogLogger)

	// Initialize database
	db, err := pkg.InitDatabase(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}

	// Initialize Redis (if configured)
	var redisClient *redis.Client
	if cfg.RedisURL != "" {
		redisClient, err = pkg.NewRedisClient(cfg)
		if err != nil {
			logger.Warn("Redis unavailable, running without cache", "error", err)
			redisClient = nil
		}
	}

	// Initialize repositories
	userRepo := casdoor.NewUserCasdoor(cfg.Casdoor, redisClient)
	repo := postgres.NewPostgreSQLRepository(postgres.RepositoryConfig{
		DB:             db,
		RedisClient:    redisClient,
		UserRepository: userRepo,
	})

	synonyms, err := config.LoadSynonyms(cfg.SynonymsFile)
	if err != nil {
		log.Fatalf("Failed to load synonyms: %v", err)
	}

	media, err := newMediaResolver(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize media storage: %v", err)
	}

	publisher, err := newEventPublisher(cfg, slogLogger)
	if err != nil {
		log.Fatalf("Failed to initialize event publisher: %v", err)
	}

	m := metrics.New()

	// Initialize services
	smConfig := services.DefaultServiceManagerConfig()
	smConfig.SweepInterval = cfg.Sweep.Interval
	smConfig.SweepBatchSize = cfg.Sweep.BatchSize

	serviceManager := services.NewServiceManager(services.Dependencies{
		Repo:      repo,
		Logger:    slogLogger,
		Validator: validator.New(),
		Publisher: publisher,
		Metrics:   m,
		Media:     media,
		Synonyms:  synonyms,
		Seeds:     random.NewSeedDeriver(cfg.SeedSecret),
	}, smConfig)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := serviceManager.Initialize(ctx); err != nil {
		log.Fatalf("Failed to initialize services: %v", err)
	}

	// Setup Gin router
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	handlers.SetupMiddleware(router, logger, m)

	handlerManager := handlers.NewHandlerManager(serviceManager, logger, cfg.Casdoor, userRepo, cfg.RateLimit, m)
	handlerManager.SetupRoutes(router)

	server := &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("Starting server", "port", cfg.Port, "environment", cfg.Environment)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	<-ctx.Done()
	logger.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", "error", err)
	}

	// stops the expiry sweep before the database goes away
	if err := serviceManager.Shutdown(shutdownCtx); err != nil {
		logger.Error("Failed to shutdown services", "error", err)
	}

	if err := repo.Close(); err != nil {
		logger.Error("Failed to close repositories", "error", err)
	}

	logger.Info("Server exited")
}

func newMediaResolver(cfg *config.Config) (storage.MediaResolver, error) {
	if cfg.Minio.Endpoint == "" {
		return storage.StaticMediaResolver{BaseURL: cfg.Minio.BaseURL}, nil
	}
	return storage.NewMinioMediaResolver(cfg.Minio)
}

func newEventPublisher(cfg *config.Config, logger *slog.Logger) (events.EventPublisher, error) {
	if len(cfg.Kafka.Brokers) == 0 {
		logger.Warn("KAFKA_BROKERS not set, publishing events in process only")
		return events.NewInProcessEventPublisher(cfg.Kafka.TopicPrefix, logger), nil
	}
	return events.NewKafkaEventPublisher(cfg.Kafka.Brokers, cfg.Kafka.TopicPrefix, logger)
}
