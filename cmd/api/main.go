package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"go.uber.org/zap"

	"github.com/coachly/backend/internal/analytics"
	"github.com/coachly/backend/internal/api"
	"github.com/coachly/backend/internal/api/handlers"
	"github.com/coachly/backend/internal/audit"
	"github.com/coachly/backend/internal/auth"
	"github.com/coachly/backend/internal/cache"
	"github.com/coachly/backend/internal/cache/redis"
	"github.com/coachly/backend/internal/chat"
	"github.com/coachly/backend/internal/company"
	"github.com/coachly/backend/internal/documents"
	"github.com/coachly/backend/internal/learning"
	"github.com/coachly/backend/internal/llm"
	"github.com/coachly/backend/internal/metrics"
	"github.com/coachly/backend/internal/middleware/ratelimit"
	"github.com/coachly/backend/internal/middleware/security"
	"github.com/coachly/backend/internal/personalization"
	"github.com/coachly/backend/internal/profile"
	"github.com/coachly/backend/internal/recommendation"
	"github.com/coachly/backend/internal/routines"
	"github.com/coachly/backend/internal/storage/sqlite"
	"github.com/coachly/backend/internal/translation"
	"github.com/coachly/backend/pkg/config"
	appLogger "github.com/coachly/backend/pkg/logger"
)

const maxMessageLength = 8000

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	err = appLogger.Init(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.OutputPath)
	if err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer appLogger.Sync()

	appLogger.Info("Starting coaching API server")
	metrics.Init()

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	sqliteClient, err := sqlite.NewClient(cfg.SQLite.Path)
	if err != nil {
		appLogger.Fatal("Failed to create SQLite client", zap.Error(err))
	}
	defer sqliteClient.Close()

	err = sqliteClient.InitSchema()
	if err != nil {
		appLogger.Fatal("Failed to initialize schema", zap.Error(err))
	}

	ready := sqliteClient.Ping
	var backend cache.Backend = sqliteClient
	if cfg.Cache.Backend == "redis" {
		redisClient, err := redis.NewClient(cfg.Redis.Host, cfg.Redis.Port, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			appLogger.Fatal("Failed to create Redis client", zap.Error(err))
		}
		defer redisClient.Close()
		backend = redisClient
		ready = func(ctx context.Context) error {
			if err := sqliteClient.Ping(ctx); err != nil {
				return err
			}
			return redisClient.Ping(ctx)
		}
	}
	cacheStore := cache.New(backend)
	defer cacheStore.Wait()
	cacheStore.StartSweeper(ctx, time.Duration(cfg.Cache.SweepIntervalMinutes)*time.Minute)

	llmClient := llm.NewClient(llm.ClientConfig{
		APIKey:      cfg.LLM.APIKey,
		BaseURL:     cfg.LLM.BaseURL,
		Model:       cfg.LLM.Model,
		Temperature: cfg.LLM.Temperature,
		MaxTokens:   cfg.LLM.MaxTokens,
		Timeout:     time.Duration(cfg.LLM.TimeoutSec) * time.Second,
	})
	gateway := llm.NewGateway(llmClient)

	summaries := analytics.NewService(sqliteClient, gateway, cacheStore)
	recommendations := recommendation.NewService(sqliteClient, gateway, cacheStore)
	invalidator := api.UserInvalidator{Summaries: summaries, Recommendations: recommendations}

	auditLog := audit.New(sqliteClient)
	profiles := profile.NewService(sqliteClient, gateway, invalidator)
	learningService := learning.NewService(sqliteClient, invalidator)
	routineService := routines.NewService(sqliteClient, invalidator)
	companies := company.NewService(sqliteClient, auditLog, summaries)
	documentService := documents.NewService(sqliteClient, auditLog)
	translator := translation.NewTranslator(gateway, cacheStore, "German")
	aggregator := personalization.NewAggregator(sqliteClient)

	chatService := chat.NewService(
		chat.Config{BasePrompt: cfg.Prompts.BaseSystemPrompt},
		sqliteClient,
		aggregator,
		gateway,
		profiles,
		learningService,
	)
	defer chatService.Wait()

	tokens := auth.NewTokenManager(cfg.Auth.JWTSecret, time.Duration(cfg.Auth.TokenTTLHours)*time.Hour)
	limiter := ratelimit.New(ratelimit.Config{
		MaxRequestsPerMinute: cfg.RateLimit.RequestsPerMinute,
		Logger:               appLogger.Named("ratelimit"),
	})
	defer limiter.Stop()

	app := fiber.New(fiber.Config{
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		BodyLimit:    cfg.Server.BodyLimit,
	})

	allowOrigins := "*"
	if len(cfg.Security.AllowedOrigins) > 0 {
		allowOrigins = strings.Join(cfg.Security.AllowedOrigins, ", ")
	}

	app.Use(recover.New())
	app.Use(metrics.Middleware())
	app.Use(security.HeadersMiddleware(security.HeadersConfig{
		AllowedOrigins: cfg.Security.AllowedOrigins,
		IsDevelopment:  cfg.Security.Development,
	}))
	app.Use(cors.New(cors.Config{
		AllowOrigins: allowOrigins,
		AllowHeaders: "Origin, Content-Type, Accept, Authorization, If-None-Match",
		AllowMethods: "GET, POST, PUT, PATCH, DELETE, OPTIONS",
	}))

	api.Register(app, api.Handlers{
		Chat:         handlers.NewChatHandler(chatService),
		WebSocket:    handlers.NewWebSocketHandler(chatService, maxMessageLength),
		Documents:    handlers.NewDocumentHandler(documentService),
		Profile:      handlers.NewProfileHandler(sqliteClient, profiles, summaries, "de"),
		Learning:     handlers.NewLearningHandler(learningService),
		Routines:     handlers.NewRoutineHandler(routineService),
		Dashboard:    handlers.NewDashboardHandler(summaries, recommendations, learningService),
		Translations: handlers.NewTranslationHandler(translator, translation.UIStrings),
		Admin:        handlers.NewAdminHandler(companies, summaries),
	}, api.Config{
		Tokens:           tokens,
		RateLimiter:      limiter,
		MaxMessageLength: maxMessageLength,
		Ready:            ready,
		Logger:           appLogger.Named("api"),
	})

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	appLogger.Info("Server starting", zap.String("address", addr))

	go func() {
		if err := app.Listen(addr); err != nil {
			appLogger.Fatal("Server failed to start", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	appLogger.Info("Server shutting down gracefully...")
	stop()
	if err := app.ShutdownWithTimeout(30 * time.Second); err != nil {
		appLogger.Warn("Shutdown did not complete cleanly", zap.Error(err))
	}
	appLogger.Info("Server stopped")
}
