package validation

import (
	"encoding/json"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

type Config struct {
	MaxBodySize int
	Logger      *zap.Logger
}

// Middleware rejects malformed requests before they reach a handler: wrong
// content type or oversized body on writes, unknown fields in the report
// trigger body, out-of-range limit on the run history listing.
func Middleware(cfg Config) fiber.Handler {
	if cfg.MaxBodySize == 0 {
		cfg.MaxBodySize = 64 * 1024
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	return func(c *fiber.Ctx) error {
		if c.Method() == fiber.MethodPost {
			if err := validatePost(c, cfg); err != nil {
				return err
			}
		}

		if strings.HasSuffix(c.Path(), "/runs") && c.Query("limit") != "" {
			if _, err := strconv.Atoi(c.Query("limit")); err != nil {
				return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
					"error": "limit must be an integer",
				})
			}
		}

		return c.Next()
	}
}

func validatePost(c *fiber.Ctx, cfg Config) error {
	if ct := c.Get("Content-Type"); ct != "" && !strings.Contains(ct, "application/json") {
		return c.Status(fiber.StatusUnsupportedMediaType).JSON(fiber.Map{
			"error": "Unsupported content type",
		})
	}

	body := c.Body()
	if len(body) > cfg.MaxBodySize {
		cfg.Logger.Warn("Oversized request body rejected",
			zap.String("ip", c.IP()),
			zap.String("path", c.Path()),
			zap.Int("bytes", len(body)),
		)
		return c.Status(fiber.StatusRequestEntityTooLarge).JSON(fiber.Map{
			"error": "Request body too large",
		})
	}

	if strings.Contains(c.Path(), "/api/v1/reports") && len(body) > 0 {
		dec := json.NewDecoder(strings.NewReader(string(body)))
		dec.DisallowUnknownFields()
		var req struct {
			UseCache bool `json:"use_cache"`
		}
		if err := dec.Decode(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "Body must be JSON with at most a use_cache boolean",
			})
		}
	}

	return nil
}
