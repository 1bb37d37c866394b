package security

import (
	"strings"

	"github.com/gofiber/fiber/v2"
)

type HeadersConfig struct {
	AllowedOrigins []string
	IsDevelopment  bool
}

// HeadersMiddleware sets the standard hardening headers. The CSP allows
// thumbnail images from YouTube's CDN, which the dashboard hotlinks, and
// websocket connections back to the API for run progress.
func HeadersMiddleware(cfg HeadersConfig) fiber.Handler {
	csp := buildCSP(cfg.AllowedOrigins)

	return func(c *fiber.Ctx) error {
		c.Set("X-Frame-Options", "DENY")
		c.Set("X-Content-Type-Options", "nosniff")
		c.Set("Referrer-Policy", "strict-origin-when-cross-origin")

		if !cfg.IsDevelopment {
			c.Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
		}

		c.Set("Content-Security-Policy", csp)

		return c.Next()
	}
}

func buildCSP(origins []string) string {
	connectSrc := "'self' ws: wss:"
	if len(origins) > 0 {
		connectSrc += " " + strings.Join(origins, " ")
	}

	return "default-src 'self'; " +
		"script-src 'self' 'unsafe-inline'; " +
		"style-src 'self' 'unsafe-inline'; " +
		"img-src 'self' data: https://i.ytimg.com; " +
		"font-src 'self' data:; " +
		"connect-src " + connectSrc + "; " +
		"frame-ancestors 'none'; " +
		"base-uri 'self'"
}
