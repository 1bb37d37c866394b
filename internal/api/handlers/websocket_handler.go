package handlers

import (
	"github.com/gofiber/websocket/v2"
	"go.uber.org/zap"

	"github.com/yt-audit/backend/internal/pipeline"
	"github.com/yt-audit/backend/pkg/logger"
)

// WebSocketHandler streams pipeline progress events to connected dashboards.
type WebSocketHandler struct {
	pipe *pipeline.Pipeline
}

func NewWebSocketHandler(pipe *pipeline.Pipeline) *WebSocketHandler {
	return &WebSocketHandler{pipe: pipe}
}

// HandleRuns subscribes the connection to pipeline events and forwards each
// one as a JSON message until the client disconnects.
func (h *WebSocketHandler) HandleRuns(c *websocket.Conn) {
	logger.Info("WebSocket connection established")

	events := make(chan pipeline.Event, 64)
	unsubscribe := h.pipe.Subscribe(func(ev pipeline.Event) {
		select {
		case events <- ev:
		default:
			// Slow consumer, drop rather than block the pipeline.
		}
	})

	defer func() {
		unsubscribe()
		c.Close()
		logger.Info("WebSocket connection closed")
	}()

	// Reader goroutine detects client disconnect; we never expect payloads.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := c.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-done:
			return
		case ev := <-events:
			if err := c.WriteJSON(ev); err != nil {
				logger.Warn("Failed to write WebSocket event", zap.Error(err))
				return
			}
		}
	}
}
