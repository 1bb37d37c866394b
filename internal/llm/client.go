package llm

import (
	"context"
	"fmt"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/yt-audit/backend/pkg/circuitbreaker"
	"github.com/yt-audit/backend/pkg/config"
	"github.com/yt-audit/backend/pkg/logger"
	"github.com/yt-audit/backend/pkg/retry"
	"github.com/yt-audit/backend/pkg/utils"
)

// EmbeddingCache stores embeddings keyed by text hash. Optional; nil
// disables caching.
type EmbeddingCache interface {
	GetEmbedding(ctx context.Context, textHash string) ([]float32, bool, error)
	SetEmbedding(ctx context.Context, textHash string, embedding []float32, ttl time.Duration) error
}

// Client talks to an OpenAI-compatible endpoint. The provider selector picks
// the hosted API or a local Ollama server (its /v1 surface speaks the same
// protocol).
type Client struct {
	client         *openai.Client
	model          string
	embeddingModel string
	temperature    float32
	maxTokens      int
	timeout        time.Duration
	cache          EmbeddingCache
	cb             *circuitbreaker.CircuitBreaker
	retryConfig    retry.Config
}

func NewClient(cfg *config.LLMConfig, cache EmbeddingCache) *Client {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.Provider == "ollama" {
		clientCfg = openai.DefaultConfig("ollama")
		clientCfg.BaseURL = cfg.BaseURL
	} else if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}

	timeout := time.Duration(cfg.TimeoutSec) * time.Second
	if timeout == 0 {
		timeout = 30 * time.Second
	}

	cb := circuitbreaker.NewCircuitBreaker("llm", circuitbreaker.Config{
		MaxRequests:      5,
		Interval:         time.Minute,
		Timeout:          30 * time.Second,
		FailureThreshold: 5,
		SuccessThreshold: 2,
		Logger:           logger.GetLogger(),
	})

	retryConfig := retry.Config{
		MaxAttempts:    3,
		InitialDelay:   500 * time.Millisecond,
		MaxDelay:       5 * time.Second,
		Multiplier:     2.0,
		JitterFraction: 0.1,
		Logger:         logger.GetLogger(),
	}

	logger.Info("LLM client initialized",
		zap.String("provider", cfg.Provider),
		zap.String("model", cfg.Model),
		zap.String("embedding_model", cfg.EmbeddingModel),
	)

	return &Client{
		client:         openai.NewClientWithConfig(clientCfg),
		model:          cfg.Model,
		embeddingModel: cfg.EmbeddingModel,
		temperature:    cfg.Temperature,
		maxTokens:      cfg.MaxTokens,
		timeout:        timeout,
		cache:          cache,
		cb:             cb,
		retryConfig:    retryConfig,
	}
}

// Narrative requests a single best-effort completion. One attempt only, one
// bounded timeout: the narrative layer is enrichment, not a required result,
// so callers degrade to an empty string on error.
func (c *Client) Narrative(ctx context.Context, system, prompt string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: system},
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		Temperature: c.temperature,
		MaxTokens:   c.maxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("failed to create completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("completion returned no choices")
	}

	logger.Debug("Narrative generated",
		zap.Int("prompt_tokens", resp.Usage.PromptTokens),
		zap.Int("completion_tokens", resp.Usage.CompletionTokens),
	)

	return resp.Choices[0].Message.Content, nil
}

// GenerateBatchEmbeddings embeds texts, consulting the cache first.
// Alignment scoring retries transient failures; a hard failure degrades only
// the affected videos.
func (c *Client) GenerateBatchEmbeddings(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	out := make([][]float32, len(texts))
	var missing []string
	var missingIdx []int

	for i, text := range texts {
		if emb, ok := c.cachedEmbedding(ctx, text); ok {
			out[i] = emb
			continue
		}
		missing = append(missing, text)
		missingIdx = append(missingIdx, i)
	}
	if len(missing) == 0 {
		return out, nil
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	err := c.cb.Execute(ctx, func() error {
		return retry.Do(ctx, c.retryConfig, func() error {
			resp, err := c.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
				Input: missing,
				Model: openai.EmbeddingModel(c.embeddingModel),
			})
			if err != nil {
				return fmt.Errorf("failed to generate embeddings: %w", err)
			}
			if len(resp.Data) != len(missing) {
				return fmt.Errorf("embedding count mismatch: got %d, expected %d", len(resp.Data), len(missing))
			}

			for i, data := range resp.Data {
				emb := make([]float32, len(data.Embedding))
				copy(emb, data.Embedding)
				out[missingIdx[i]] = emb
				c.storeEmbedding(ctx, missing[i], emb)
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	return out, nil
}

func (c *Client) cachedEmbedding(ctx context.Context, text string) ([]float32, bool) {
	if c.cache == nil {
		return nil, false
	}
	emb, ok, err := c.cache.GetEmbedding(ctx, utils.HashString(text))
	if err != nil {
		logger.Debug("Embedding cache read failed", zap.Error(err))
		return nil, false
	}
	return emb, ok
}

func (c *Client) storeEmbedding(ctx context.Context, text string, emb []float32) {
	if c.cache == nil {
		return
	}
	if err := c.cache.SetEmbedding(ctx, utils.HashString(text), emb, 24*time.Hour); err != nil {
		logger.Debug("Embedding cache write failed", zap.Error(err))
	}
}
