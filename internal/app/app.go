package app

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/corpuskit/knowledge-engine/config"
	"github.com/corpuskit/knowledge-engine/internal/chunker"
	"github.com/corpuskit/knowledge-engine/internal/embedding"
	"github.com/corpuskit/knowledge-engine/internal/extractor"
	"github.com/corpuskit/knowledge-engine/internal/llm"
	"github.com/corpuskit/knowledge-engine/internal/store"
	"github.com/corpuskit/knowledge-engine/internal/store/redisstore"
	"github.com/corpuskit/knowledge-engine/internal/vectorindex"
	"github.com/corpuskit/knowledge-engine/internal/vectorindex/qdrant"
	"github.com/corpuskit/knowledge-engine/pkg/logger"
	"github.com/corpuskit/knowledge-engine/pkg/queue"
	"github.com/corpuskit/knowledge-engine/pkg/storage"
)

// Components is the shared dependency graph of the server and the worker.
type Components struct {
	Config    *config.CorpusConfig
	Redis     *redis.Client
	DocStore  store.DocumentStore
	FormStore store.FormStore
	Storage   storage.Storage
	Extractor extractor.Extractor
	Chunker   *chunker.Chunker
	Embedder  embedding.Client
	Index     vectorindex.Index
	Queue     queue.Queue
	Generator llm.Generator
	Rewriter  llm.Rewriter
}

// Build wires the shared infrastructure from configuration and verifies the
// vector collection exists.
func Build(ctx context.Context, log logger.Logger) (*Components, error) {
	corpusCfg := config.GetCorpusConfig()
	redisCfg := config.GetRedisConfig()
	qdrantCfg := config.GetQdrantConfig()
	llmCfg := config.GetLLMConfig()

	redisClient := redis.NewClient(&redis.Options{
		Addr:     redisCfg.Addr,
		Password: redisCfg.Password,
		DB:       redisCfg.DB,
	})
	if err := redisClient.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	objStorage, err := storage.NewStorage(storage.StorageType(config.GetStorageConfig().Type), log)
	if err != nil {
		return nil, err
	}

	ch, err := chunker.New(corpusCfg.ChunkMaxSize, corpusCfg.ChunkOverlap)
	if err != nil {
		return nil, err
	}

	embedder, err := embedding.NewOpenAIClient(&embedding.OpenAIConfig{
		BaseURL:   llmCfg.BaseURL,
		APIKey:    llmCfg.APIKey,
		Model:     llmCfg.EmbedModel,
		Dimension: corpusCfg.Dimension,
		BatchSize: corpusCfg.EmbedBatchSize,
	}, log)
	if err != nil {
		return nil, err
	}

	index := qdrant.New(&qdrant.Config{
		URL:        qdrantCfg.URL,
		APIKey:     qdrantCfg.APIKey,
		Collection: qdrantCfg.Collection,
		Dimension:  corpusCfg.Dimension,
		Timeout:    qdrantCfg.Timeout,
	}, log)
	if err := index.EnsureReady(ctx); err != nil {
		return nil, err
	}

	chatClient := llm.NewOpenAIClient(&llm.Config{
		BaseURL: llmCfg.BaseURL,
		APIKey:  llmCfg.APIKey,
		Model:   llmCfg.ChatModel,
	}, log)

	var rewriter llm.Rewriter = llm.IdentityRewriter{}
	if llmCfg.RewriteEnabled {
		rewriter = chatClient
	}

	return &Components{
		Config:    corpusCfg,
		Redis:     redisClient,
		DocStore:  redisstore.NewDocumentStore(redisClient),
		FormStore: redisstore.NewFormStore(redisClient),
		Storage:   objStorage,
		Extractor: extractor.New(log),
		Chunker:   ch,
		Embedder:  embedder,
		Index:     index,
		Queue: queue.NewAsynqQueue(&queue.Config{
			RedisAddr:     redisCfg.Addr,
			RedisPassword: redisCfg.Password,
			RedisDB:       redisCfg.DB,
		}),
		Generator: chatClient,
		Rewriter:  rewriter,
	}, nil
}

// Close releases the long-lived connections.
func (c *Components) Close() error {
	if err := c.Queue.Close(); err != nil {
		return err
	}
	return c.Redis.Close()
}
