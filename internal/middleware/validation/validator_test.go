package validation

import (
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
)

func newTestApp(cfg Config) *fiber.App {
	app := fiber.New()
	app.Use(Middleware(cfg))
	app.Post("/api/v1/reports", func(c *fiber.Ctx) error { return c.SendStatus(fiber.StatusAccepted) })
	app.Get("/api/v1/runs", func(c *fiber.Ctx) error { return c.SendString("ok") })
	return app
}

func TestTriggerBodyValidation(t *testing.T) {
	app := newTestApp(Config{})

	tests := []struct {
		name        string
		body        string
		contentType string
		wantStatus  int
	}{
		{"empty body", "", "", fiber.StatusAccepted},
		{"valid body", `{"use_cache":true}`, "application/json", fiber.StatusAccepted},
		{"unknown field", `{"use_cache":true,"mode":"x"}`, "application/json", fiber.StatusBadRequest},
		{"not json", `use_cache=true`, "application/json", fiber.StatusBadRequest},
		{"wrong content type", `{"use_cache":true}`, "text/plain", fiber.StatusUnsupportedMediaType},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("POST", "/api/v1/reports", strings.NewReader(tt.body))
			if tt.contentType != "" {
				req.Header.Set("Content-Type", tt.contentType)
			}
			resp, err := app.Test(req)
			if err != nil {
				t.Fatalf("request failed: %v", err)
			}
			if resp.StatusCode != tt.wantStatus {
				t.Errorf("status = %d, want %d", resp.StatusCode, tt.wantStatus)
			}
		})
	}
}

func TestOversizedBodyRejected(t *testing.T) {
	app := newTestApp(Config{MaxBodySize: 16})

	body := `{"use_cache":true,"padding":"xxxxxxxxxxxxxxxxxxxxxxxx"}`
	req := httptest.NewRequest("POST", "/api/v1/reports", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if resp.StatusCode != fiber.StatusRequestEntityTooLarge {
		t.Errorf("status = %d, want 413", resp.StatusCode)
	}
}

func TestRunsLimitValidation(t *testing.T) {
	app := newTestApp(Config{})

	resp, err := app.Test(httptest.NewRequest("GET", "/api/v1/runs?limit=5", nil))
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if resp.StatusCode != fiber.StatusOK {
		t.Errorf("integer limit status = %d", resp.StatusCode)
	}

	resp, err = app.Test(httptest.NewRequest("GET", "/api/v1/runs?limit=abc", nil))
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if resp.StatusCode != fiber.StatusBadRequest {
		t.Errorf("bad limit status = %d, want 400", resp.StatusCode)
	}

	resp, err = app.Test(httptest.NewRequest("GET", "/api/v1/runs", nil))
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if resp.StatusCode != fiber.StatusOK {
		t.Errorf("no limit status = %d", resp.StatusCode)
	}
}
