package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"

	"github.com/corpuskit/knowledge-engine/internal/service/ingest"
	"github.com/corpuskit/knowledge-engine/pkg/logger"
	"github.com/corpuskit/knowledge-engine/pkg/queue"
)

// IngestWorker consumes ingestion tasks and drives them through the ingest
// service. Retry of transient failures happens inside the service, so a task
// that returns an error here is terminal.
type IngestWorker struct {
	BaseWorker
	processor ingest.Processor
}

func NewIngestWorker(cfg *Config, processor ingest.Processor, log logger.Logger) *IngestWorker {
	queues := cfg.Queues
	if len(queues) == 0 {
		queues = map[string]int{"default": 1}
	}
	server := asynq.NewServer(
		asynq.RedisClientOpt{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB},
		asynq.Config{
			Concurrency: cfg.Concurrency,
			Queues:      queues,
			RetryDelayFunc: func(n int, err error, task *asynq.Task) time.Duration {
				return time.Duration(n) * time.Minute
			},
		},
	)

	w := &IngestWorker{
		BaseWorker: BaseWorker{
			server:   server,
			mux:      asynq.NewServeMux(),
			logger:   log,
			stopChan: make(chan struct{}),
		},
		processor: processor,
	}
	w.mux.HandleFunc(queue.TaskTypeDocumentIngest, w.handleIngest)
	return w
}

func (w *IngestWorker) handleIngest(ctx context.Context, t *asynq.Task) error {
	var payload queue.IngestPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		w.logger.Error("Failed to unmarshal ingest payload",
			logger.Error(err),
			logger.String("payload", string(t.Payload())),
		)
		return fmt.Errorf("failed to unmarshal ingest payload: %w", err)
	}
	if payload.DocumentID == "" {
		return fmt.Errorf("ingest payload missing document id")
	}

	w.logger.Info("Processing ingestion task",
		logger.String("documentId", payload.DocumentID),
	)

	if err := w.processor.Process(ctx, payload.DocumentID); err != nil {
		// The service has already recorded the failure on the document;
		// the task error is for asynq's bookkeeping only.
		w.logger.Error("Ingestion failed",
			logger.String("documentId", payload.DocumentID),
			logger.Error(err),
		)
		return err
	}

	w.logger.Info("Ingestion completed",
		logger.String("documentId", payload.DocumentID),
	)
	return nil
}

func (w *IngestWorker) Start(ctx context.Context) error {
	go func() {
		if err := w.server.Run(w.mux); err != nil {
			w.logger.Error("Worker server stopped", logger.Error(err))
		}
	}()

	go func() {
		<-ctx.Done()
		w.Stop()
	}()

	return nil
}
