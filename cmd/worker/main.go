package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/corpuskit/knowledge-engine/config"
	"github.com/corpuskit/knowledge-engine/internal/app"
	"github.com/corpuskit/knowledge-engine/internal/service/ingest"
	"github.com/corpuskit/knowledge-engine/pkg/logger"
	"github.com/corpuskit/knowledge-engine/pkg/worker"
)

func main() {
	log, err := logger.NewLogger(
		logger.WithLevel("info"),
		logger.WithEncoding("json"),
		logger.WithOutputPaths([]string{"stdout", "logs/worker.log"}),
		logger.WithConfigFile("config/logger.yaml"),
	)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	components, err := app.Build(context.Background(), log)
	if err != nil {
		log.Error("Failed to build components", logger.Error(err))
		os.Exit(1)
	}
	defer components.Close()

	ingestService := ingest.NewService(
		components.DocStore, components.Storage, components.Extractor,
		components.Chunker, components.Embedder, components.Index,
		components.Config, log,
	)

	redisCfg := config.GetRedisConfig()
	workerCfg := &worker.Config{
		RedisAddr:     redisCfg.Addr,
		RedisPassword: redisCfg.Password,
		RedisDB:       redisCfg.DB,
		Concurrency:   components.Config.EmbedConcurrent,
		Queues: map[string]int{
			"default": 1,
		},
	}

	ingestWorker := worker.NewIngestWorker(workerCfg, ingestService, log)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := ingestWorker.Start(ctx); err != nil {
		log.Error("Failed to start worker", logger.Error(err))
		os.Exit(1)
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	log.Info("Shutting down worker...")
	ingestWorker.Stop()
	log.Info("Worker stopped")
}
