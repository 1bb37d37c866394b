package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/yt-audit/backend/pkg/logger"
)

// Client caches the latest report payload and alignment embeddings. The
// pipeline works without it; callers treat a nil *Client as cache-off.
type Client struct {
	client *redis.Client
}

func NewClient(host string, port int, password string, db int) (*Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", host, port),
		Password: password,
		DB:       db,
	})

	ctx := context.Background()
	_, err := client.Ping(ctx).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	logger.Info("Redis client initialized", zap.String("addr", fmt.Sprintf("%s:%d", host, port)))

	return &Client{client: client}, nil
}

func (c *Client) Close() error {
	return c.client.Close()
}

func (c *Client) SetReport(ctx context.Context, payload interface{}, ttl time.Duration) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal report: %w", err)
	}

	if err := c.client.Set(ctx, "report:latest", data, ttl).Err(); err != nil {
		return fmt.Errorf("failed to cache report: %w", err)
	}

	logger.Debug("Report cached", zap.Duration("ttl", ttl))
	return nil
}

func (c *Client) GetReport(ctx context.Context, payload interface{}) (bool, error) {
	data, err := c.client.Get(ctx, "report:latest").Bytes()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to read cached report: %w", err)
	}

	if err := json.Unmarshal(data, payload); err != nil {
		return false, fmt.Errorf("failed to unmarshal cached report: %w", err)
	}

	logger.Debug("Report cache hit")
	return true, nil
}

func (c *Client) InvalidateReport(ctx context.Context) error {
	if err := c.client.Del(ctx, "report:latest").Err(); err != nil {
		return fmt.Errorf("failed to invalidate report cache: %w", err)
	}
	return nil
}

func (c *Client) SetEmbedding(ctx context.Context, textHash string, embedding []float32, ttl time.Duration) error {
	data, err := json.Marshal(embedding)
	if err != nil {
		return fmt.Errorf("failed to marshal embedding: %w", err)
	}

	if err := c.client.Set(ctx, fmt.Sprintf("embedding:%s", textHash), data, ttl).Err(); err != nil {
		return fmt.Errorf("failed to set embedding cache: %w", err)
	}

	return nil
}

func (c *Client) GetEmbedding(ctx context.Context, textHash string) ([]float32, bool, error) {
	data, err := c.client.Get(ctx, fmt.Sprintf("embedding:%s", textHash)).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to get embedding cache: %w", err)
	}

	var embedding []float32
	if err := json.Unmarshal(data, &embedding); err != nil {
		return nil, false, fmt.Errorf("failed to unmarshal embedding: %w", err)
	}

	return embedding, true, nil
}
