// Package embedding provides the vector client used by the retrieval index.
// It speaks the OpenAI embeddings API, which local servers such as Ollama
// and LM Studio also expose, so the base URL decides where vectors come
// from.
package embedding

import (
	"context"
	"fmt"
	"log/slog"

	openai "github.com/sashabaranov/go-openai"

	"coursechat/internal/domain"
)

const defaultBatchSize = 64

// Config configures the embedding client.
type Config struct {
	APIKey    string
	BaseURL   string
	Model     string
	Dimension int
	BatchSize int
	Logger    *slog.Logger
}

// Client implements domain.Embedder over the OpenAI embeddings endpoint.
type Client struct {
	client    *openai.Client
	model     string
	dimension int
	batchSize int
	logger    *slog.Logger
}

var _ domain.Embedder = (*Client)(nil)

func NewClient(cfg Config) *Client {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = defaultBatchSize
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Client{
		client:    openai.NewClientWithConfig(clientCfg),
		model:     cfg.Model,
		dimension: cfg.Dimension,
		batchSize: cfg.BatchSize,
		logger:    cfg.Logger.With("component", "embedding"),
	}
}

// Dimension returns the configured vector width. The index needs it before
// the first API call to size its collections, so it is configuration rather
// than discovery.
func (c *Client) Dimension() int { return c.dimension }

// Embed vectorizes texts in API-sized batches and returns one vector per
// input, in input order.
func (c *Client) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	vectors := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += c.batchSize {
		end := min(start+c.batchSize, len(texts))
		batch, err := c.embedBatch(ctx, texts[start:end])
		if err != nil {
			return nil, err
		}
		vectors = append(vectors, batch...)
	}

	c.logger.Debug("embedded texts", "count", len(texts), "model", c.model)
	return vectors, nil
}

func (c *Client) embedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	resp, err := c.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Model: openai.EmbeddingModel(c.model),
		Input: texts,
	})
	if err != nil {
		return nil, fmt.Errorf("create embeddings: %w", err)
	}
	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("embedding API returned %d vectors for %d inputs", len(resp.Data), len(texts))
	}

	// The API may reorder results; Index restores input order.
	vectors := make([][]float32, len(texts))
	for _, datum := range resp.Data {
		if datum.Index < 0 || datum.Index >= len(vectors) {
			return nil, fmt.Errorf("embedding API returned out-of-range index %d", datum.Index)
		}
		if c.dimension > 0 && len(datum.Embedding) != c.dimension {
			return nil, fmt.Errorf("embedding dimension mismatch: expected %d, got %d", c.dimension, len(datum.Embedding))
		}
		vectors[datum.Index] = datum.Embedding
	}
	return vectors, nil
}

// Healthy issues a one-word probe so startup checks can verify the endpoint
// and credentials before ingestion starts.
func (c *Client) Healthy(ctx context.Context) error {
	_, err := c.embedBatch(ctx, []string{"ping"})
	return err
}
