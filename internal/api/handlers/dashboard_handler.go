package handlers

import (
	"math"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/yt-audit/backend/internal/reconcile"
	"github.com/yt-audit/backend/internal/storage/models"
	"github.com/yt-audit/backend/internal/storage/sqlite"
	"github.com/yt-audit/backend/pkg/logger"
)

// DashboardHandler serves the read-only data the dashboard renders: the video
// list, the canonical table and the provenance record behind it.
type DashboardHandler struct {
	db           *sqlite.Client
	processedDir string
}

func NewDashboardHandler(db *sqlite.Client, processedDir string) *DashboardHandler {
	return &DashboardHandler{
		db:           db,
		processedDir: processedDir,
	}
}

func (h *DashboardHandler) GetVideos(c *fiber.Ctx) error {
	videos, err := h.db.ListVideos()
	if err != nil {
		logger.Error("Failed to list videos", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to load videos",
		})
	}

	return c.JSON(fiber.Map{
		"videos": videos,
		"count":  len(videos),
	})
}

// GetMaster returns the reconciled canonical table plus the honest-mode flag.
// NaN metric values are nulled out, a NaN survives as "measurement attempted,
// no score" only inside the pipeline.
func (h *DashboardHandler) GetMaster(c *fiber.Ctx) error {
	table, err := h.db.LoadMasterJoin()
	if err != nil {
		logger.Error("Failed to load canonical table", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to load canonical table",
		})
	}
	if table == nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "No reconciled table yet, trigger a pipeline run first",
		})
	}

	prov, err := reconcile.ReadProvenance(h.processedDir)
	if err != nil {
		logger.Warn("Provenance record unreadable", zap.Error(err))
	}

	rows := make([]models.CanonicalRow, len(table.Rows))
	copy(rows, table.Rows)
	for i := range rows {
		scrubNaN(&rows[i])
	}

	return c.JSON(fiber.Map{
		"rows":       rows,
		"columns":    table.Columns.Names(),
		"count":      len(rows),
		"provenance": prov,
		"honestMode": prov.Degraded(),
	})
}

func (h *DashboardHandler) GetProvenance(c *fiber.Ctx) error {
	prov, err := reconcile.ReadProvenance(h.processedDir)
	if err != nil {
		logger.Error("Failed to read provenance", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to read provenance",
		})
	}

	return c.JSON(fiber.Map{
		"provenance": prov,
		"honestMode": prov.Degraded(),
	})
}

// scrubNaN drops NaN-valued optional metrics so the row is JSON-encodable.
func scrubNaN(row *models.CanonicalRow) {
	for _, p := range []**float64{&row.TitleCaptionSim, &row.TextDensity, &row.Sharpness, &row.Brightness, &row.Contrast} {
		if *p != nil && math.IsNaN(**p) {
			*p = nil
		}
	}
}
