package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/websocket/v2"
	"go.uber.org/zap"

	"github.com/yt-audit/backend/internal/align"
	"github.com/yt-audit/backend/internal/api/handlers"
	"github.com/yt-audit/backend/internal/cache/redis"
	"github.com/yt-audit/backend/internal/insights"
	"github.com/yt-audit/backend/internal/llm"
	"github.com/yt-audit/backend/internal/metrics"
	"github.com/yt-audit/backend/internal/middleware/ratelimit"
	"github.com/yt-audit/backend/internal/middleware/security"
	"github.com/yt-audit/backend/internal/middleware/validation"
	"github.com/yt-audit/backend/internal/pipeline"
	"github.com/yt-audit/backend/internal/reconcile"
	"github.com/yt-audit/backend/internal/report"
	"github.com/yt-audit/backend/internal/storage/sqlite"
	"github.com/yt-audit/backend/internal/thumbs"
	"github.com/yt-audit/backend/pkg/config"
	appLogger "github.com/yt-audit/backend/pkg/logger"
)

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

	appLogger.Info("Starting creator analytics API server")
	metrics.Init()

	db, err := sqlite.NewClient(cfg.SQLite.Path)
	if err != nil {
		appLogger.Fatal("Failed to create SQLite client", zap.Error(err))
	}
	defer db.Close()

	if err := db.InitSchema(); err != nil {
		appLogger.Fatal("Failed to initialize schema", zap.Error(err))
	}

	var cache *redis.Client
	if cfg.Redis.Enabled {
		cache, err = redis.NewClient(cfg.Redis.Host, cfg.Redis.Port, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			appLogger.Warn("Redis unavailable, continuing without cache", zap.Error(err))
			cache = nil
		} else {
			defer cache.Close()
		}
	}

	var embCache llm.EmbeddingCache
	if cache != nil {
		embCache = cache
	}
	llmClient := llm.NewClient(&cfg.LLM, embCache)
	scorer := align.NewScorer(llmClient)
	extractor := thumbs.NewExtractor(cfg.Storage.RawDir, nil)
	engine := insights.NewEngine(llmClient)
	writer := report.NewWriter(cfg.Storage.ReportsDir)
	reconciler := reconcile.New(db, cfg.Storage.ProcessedDir)

	pipe := pipeline.New(db, reconciler, scorer, extractor, engine, writer, cache, cfg.Storage.ProcessedDir)

	app := fiber.New(fiber.Config{
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		BodyLimit:    cfg.Server.BodyLimit,
	})

	limiter := ratelimit.New(ratelimit.Config{Logger: appLogger.GetLogger()})
	defer limiter.Stop()

	app.Use(recover.New())
	app.Use(fiberlogger.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowHeaders: "Origin, Content-Type, Accept",
		AllowMethods: "GET, POST, OPTIONS",
	}))
	app.Use(security.HeadersMiddleware(security.HeadersConfig{}))
	app.Use(limiter.Middleware())
	app.Use(validation.Middleware(validation.Config{Logger: appLogger.GetLogger()}))

	dashboardHandler := handlers.NewDashboardHandler(db, cfg.Storage.ProcessedDir)
	insightsHandler := handlers.NewInsightsHandler(db, pipe, cache)
	wsHandler := handlers.NewWebSocketHandler(pipe)

	api := app.Group("/api/v1")
	api.Get("/videos", dashboardHandler.GetVideos)
	api.Get("/master", dashboardHandler.GetMaster)
	api.Get("/provenance", dashboardHandler.GetProvenance)
	api.Get("/insights", insightsHandler.GetLatest)
	api.Post("/reports", insightsHandler.TriggerRun)
	api.Get("/runs", insightsHandler.GetRuns)

	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws/runs", websocket.New(wsHandler.HandleRuns))

	app.Get("/metrics", metrics.MetricsHandler())

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status": "healthy",
			"time":   time.Now().Unix(),
		})
	})
	app.Get("/ready", func(c *fiber.Ctx) error {
		if _, err := db.ListVideos(); err != nil {
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
				"status": "not ready",
			})
		}
		return c.JSON(fiber.Map{
			"status": "ready",
		})
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
	app.Shutdown()
	appLogger.Info("Server stopped")
}
