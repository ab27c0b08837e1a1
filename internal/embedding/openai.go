package embedding

import (
	"context"
	"errors"
	"fmt"
	"net"

	openai "github.com/sashabaranov/go-openai"

	"github.com/corpuskit/knowledge-engine/internal/models"
	"github.com/corpuskit/knowledge-engine/pkg/logger"
)

// OpenAIClient embeds text through an OpenAI-compatible endpoint. Pointing
// BaseURL at an Ollama server's /v1 endpoint works without code changes.
type OpenAIClient struct {
	client    *openai.Client
	model     string
	dimension int
	batchSize int
	logger    logger.Logger
}

type OpenAIConfig struct {
	BaseURL   string
	APIKey    string
	Model     string
	Dimension int
	BatchSize int
}

func NewOpenAIClient(cfg *OpenAIConfig, log logger.Logger) (*OpenAIClient, error) {
	if cfg.Dimension <= 0 {
		return nil, fmt.Errorf("%w: configured dimension %d", models.ErrDimensionMismatch, cfg.Dimension)
	}
	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		batchSize = 16
	}

	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}

	return &OpenAIClient{
		client:    openai.NewClientWithConfig(clientCfg),
		model:     cfg.Model,
		dimension: cfg.Dimension,
		batchSize: batchSize,
		logger:    log,
	}, nil
}

func (c *OpenAIClient) Dimension() int { return c.dimension }

func (c *OpenAIClient) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	vectors := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += c.batchSize {
		end := start + c.batchSize
		if end > len(texts) {
			end = len(texts)
		}
		batch, err := c.embed(ctx, texts[start:end])
		if err != nil {
			return nil, err
		}
		vectors = append(vectors, batch...)
	}
	return vectors, nil
}

func (c *OpenAIClient) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	vectors, err := c.embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

func (c *OpenAIClient) embed(ctx context.Context, texts []string) ([][]float32, error) {
	resp, err := c.client.CreateEmbeddings(ctx, openai.EmbeddingRequestStrings{
		Input: texts,
		Model: openai.EmbeddingModel(c.model),
	})
	if err != nil {
		return nil, c.classify(err)
	}

	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("%w: got %d embeddings for %d texts",
			models.ErrEmbeddingUnavailable, len(resp.Data), len(texts))
	}

	vectors := make([][]float32, len(resp.Data))
	for i, item := range resp.Data {
		if len(item.Embedding) != c.dimension {
			return nil, fmt.Errorf("%w: model %s returned %d dimensions, corpus expects %d",
				models.ErrDimensionMismatch, c.model, len(item.Embedding), c.dimension)
		}
		vectors[i] = item.Embedding
	}
	return vectors, nil
}

// classify splits embedding failures into retryable service outages and
// permanent rejections. Timeouts, rate limits and 5xx are retryable; 4xx
// means the request itself is bad and retrying cannot help.
func (c *OpenAIClient) classify(err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", models.ErrEmbeddingUnavailable, err)
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return fmt.Errorf("%w: %v", models.ErrEmbeddingUnavailable, err)
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		if apiErr.HTTPStatusCode == 429 || apiErr.HTTPStatusCode >= 500 {
			return fmt.Errorf("%w: %v", models.ErrEmbeddingUnavailable, err)
		}
		return fmt.Errorf("embedding rejected: %w", err)
	}

	// Connection-level failures come back as plain errors.
	return fmt.Errorf("%w: %v", models.ErrEmbeddingUnavailable, err)
}
