package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/yt-audit/backend/internal/cache/redis"
	"github.com/yt-audit/backend/internal/metrics"
	"github.com/yt-audit/backend/internal/pipeline"
	"github.com/yt-audit/backend/internal/storage/models"
	"github.com/yt-audit/backend/internal/storage/sqlite"
	"github.com/yt-audit/backend/pkg/logger"
)

// InsightsHandler exposes the latest report and lets the dashboard trigger a
// pipeline run.
type InsightsHandler struct {
	db    *sqlite.Client
	pipe  *pipeline.Pipeline
	cache *redis.Client
}

func NewInsightsHandler(db *sqlite.Client, pipe *pipeline.Pipeline, cache *redis.Client) *InsightsHandler {
	return &InsightsHandler{
		db:    db,
		pipe:  pipe,
		cache: cache,
	}
}

// GetLatest returns the most recent report payload, from the report cache
// when available, otherwise from the store.
func (h *InsightsHandler) GetLatest(c *fiber.Ctx) error {
	if h.cache != nil {
		var payload models.ReportPayload
		found, err := h.cache.GetReport(c.Context(), &payload)
		if err != nil {
			logger.Warn("Report cache read failed", zap.Error(err))
		}
		if found {
			metrics.CacheHits.WithLabelValues("report").Inc()
			return c.JSON(payload)
		}
		metrics.CacheMisses.WithLabelValues("report").Inc()
	}

	data, err := h.db.LatestReport()
	if err != nil {
		logger.Error("Failed to load latest report", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to load report",
		})
	}
	if data == nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "No report yet, trigger a pipeline run first",
		})
	}

	var payload models.ReportPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		logger.Error("Stored report payload is corrupt", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Stored report is unreadable",
		})
	}
	return c.JSON(payload)
}

// TriggerRun starts a pipeline run in the background. A second trigger while
// one is running is rejected.
func (h *InsightsHandler) TriggerRun(c *fiber.Ctx) error {
	var req struct {
		UseCache bool `json:"use_cache"`
	}
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "Invalid request body",
			})
		}
	}

	if err := h.pipe.StartRun(context.Background(), pipeline.Options{UseCache: req.UseCache}); err != nil {
		if errors.Is(err, pipeline.ErrRunInProgress) {
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{
				"error": "A pipeline run is already in progress",
			})
		}
		logger.Error("Failed to start pipeline run", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to start pipeline run",
		})
	}

	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{
		"status": "started",
	})
}

func (h *InsightsHandler) GetRuns(c *fiber.Ctx) error {
	limit := 20
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > 200 {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "limit must be an integer between 1 and 200",
			})
		}
		limit = n
	}

	runs, err := h.db.ListRuns(limit)
	if err != nil {
		logger.Error("Failed to list runs", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to load run history",
		})
	}

	return c.JSON(fiber.Map{
		"runs":  runs,
		"count": len(runs),
	})
}
