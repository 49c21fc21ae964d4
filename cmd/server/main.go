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

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/zfogg/reelrank/internal/cache"
	"github.com/zfogg/reelrank/internal/config"
	"github.com/zfogg/reelrank/internal/database"
	"github.com/zfogg/reelrank/internal/handlers"
	"github.com/zfogg/reelrank/internal/kernel"
	"github.com/zfogg/reelrank/internal/logger"
	"github.com/zfogg/reelrank/internal/metrics"
	"github.com/zfogg/reelrank/internal/middleware"
	"github.com/zfogg/reelrank/internal/telemetry"
	"go.uber.org/zap"
)

func main() {
	// Load environment variables
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: .env file not found, using system environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	if err := logger.Initialize(cfg.LogLevel, cfg.LogFile); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Close()

	logger.Log.Info("=== reelrank server starting ===",
		zap.String("environment", cfg.Environment),
		zap.String("port", cfg.Port),
	)

	tp, err := telemetry.InitTracer(telemetry.ConfigFrom(cfg))
	if err != nil {
		logger.WarnWithFields("Tracing disabled", err)
	}

	metrics.Initialize()

	if err := database.Initialize(); err != nil {
		logger.FatalWithFields("Failed to initialize database", err)
	}
	if err := database.Migrate(); err != nil {
		logger.FatalWithFields("Failed to run migrations", err)
	}

	k := kernel.New().
		WithConfig(cfg).
		WithDB(database.DB).
		WithLogger(logger.Log)

	// Redis is optional: without it caches and rate limits stay per-process.
	if cfg.RedisHost != "" {
		redisClient, err := cache.NewRedisClient(cfg.RedisHost, cfg.RedisPort, cfg.RedisPassword)
		if err != nil {
			logger.WarnWithFields("Redis unavailable, continuing with in-process cache", err)
		} else {
			k.WithRedis(redisClient)
			k.OnCleanup(func(context.Context) error { return redisClient.Close() })
		}
	} else {
		logger.Log.Info("REDIS_HOST not set, using in-process cache")
	}
	k.OnCleanup(func(context.Context) error { return database.Close() })
	k.OnCleanup(func(ctx context.Context) error { return telemetry.Shutdown(ctx, tp) })

	if err := k.Bootstrap(); err != nil {
		logger.FatalWithFields("Failed to bootstrap kernel", err)
	}
	if err := k.Validate(); err != nil {
		logger.FatalWithFields("Kernel validation failed", err)
	}

	h := handlers.NewHandlers(k)

	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestIDMiddleware())
	r.Use(middleware.CorrelationMiddleware())
	r.Use(middleware.TracingMiddleware(telemetry.ServiceName))
	r.Use(middleware.SpanEnrichmentMiddleware())
	r.Use(middleware.GinLoggerMiddleware())
	r.Use(middleware.MetricsMiddleware())

	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = []string{"*"}
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Length", "Content-Type", "X-Request-ID", "X-Correlation-ID"}
	corsConfig.ExposeHeaders = []string{"X-Request-ID", "X-Correlation-ID", "Retry-After"}
	r.Use(cors.New(corsConfig))
	r.Use(gzip.Gzip(gzip.DefaultCompression))

	r.GET("/health", h.Health)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	apiLimit := middleware.DefaultRateLimitConfig()
	apiLimit.Limit = cfg.RateLimitPerMinute

	api := r.Group("/api/v1")
	api.Use(middleware.SharedRateLimitMiddleware(k.Cache(), apiLimit))
	h.RegisterRoutes(api, middleware.SharedRateLimitMiddleware(k.Cache(), middleware.InteractionRateLimitConfig()))

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Log.Info("reelrank listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.FatalWithFields("Failed to start server", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Log.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.ErrorWithFields("Server forced to shutdown", err)
	}
	if err := k.Cleanup(ctx); err != nil {
		logger.ErrorWithFields("Cleanup failed", err)
	}

	logger.Log.Info("Server exited")
}
