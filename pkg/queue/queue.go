// pkg/queue/queue.go
package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
)

const (
	// TaskTypeDocumentIngest covers both first ingestion and reprocessing.
	TaskTypeDocumentIngest = "document:ingest"

	queueDefault = "default"
)

// IngestPayload is the body of an ingestion task.
type IngestPayload struct {
	DocumentID string `json:"documentId"`
}

// Queue schedules ingestion work. At most one task per document can be
// pending at a time; submitting while one is pending coalesces into it.
type Queue interface {
	// Submit enqueues ingestion for a document. The returned flag is true
	// when an equivalent task was already pending and no new task was added.
	Submit(ctx context.Context, documentID string) (coalesced bool, err error)

	// Cancel removes a pending task or signals cancellation to a running
	// one. Cancelling a document with no task is a no-op.
	Cancel(ctx context.Context, documentID string) error

	Close() error
}

type Config struct {
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	Timeout       time.Duration
}

// AsynqQueue implements Queue on asynq. The task id is the document id, which
// is what gives submission its per-document dedup semantics.
type AsynqQueue struct {
	client    *asynq.Client
	inspector *asynq.Inspector
	timeout   time.Duration
}

func NewAsynqQueue(cfg *Config) *AsynqQueue {
	redisOpt := asynq.RedisClientOpt{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Minute
	}
	return &AsynqQueue{
		client:    asynq.NewClient(redisOpt),
		inspector: asynq.NewInspector(redisOpt),
		timeout:   timeout,
	}
}

func (q *AsynqQueue) Submit(ctx context.Context, documentID string) (bool, error) {
	payload, err := json.Marshal(IngestPayload{DocumentID: documentID})
	if err != nil {
		return false, fmt.Errorf("failed to marshal ingest payload: %w", err)
	}

	task := asynq.NewTask(TaskTypeDocumentIngest, payload)
	_, err = q.client.EnqueueContext(ctx, task,
		asynq.TaskID(documentID),
		asynq.Queue(queueDefault),
		asynq.MaxRetry(0),
		asynq.Timeout(q.timeout),
	)
	if errors.Is(err, asynq.ErrTaskIDConflict) {
		// A task for this document is already pending or running.
		return true, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to enqueue ingestion for document %s: %w", documentID, err)
	}
	return false, nil
}

func (q *AsynqQueue) Cancel(ctx context.Context, documentID string) error {
	// Pending task: remove it before a worker picks it up.
	err := q.inspector.DeleteTask(queueDefault, documentID)
	if err == nil {
		return nil
	}
	if errors.Is(err, asynq.ErrTaskNotFound) || errors.Is(err, asynq.ErrQueueNotFound) {
		// Maybe already running; ask the worker to stop cooperatively.
		if err := q.inspector.CancelProcessing(documentID); err != nil {
			return nil
		}
		return nil
	}
	// Active tasks cannot be deleted, only cancelled.
	if cancelErr := q.inspector.CancelProcessing(documentID); cancelErr == nil {
		return nil
	}
	return fmt.Errorf("failed to cancel ingestion for document %s: %w", documentID, err)
}

func (q *AsynqQueue) Close() error {
	return q.client.Close()
}
