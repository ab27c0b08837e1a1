package ingest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/corpuskit/knowledge-engine/config"
	"github.com/corpuskit/knowledge-engine/internal/chunker"
	"github.com/corpuskit/knowledge-engine/internal/embedding"
	"github.com/corpuskit/knowledge-engine/internal/extractor"
	"github.com/corpuskit/knowledge-engine/internal/models"
	"github.com/corpuskit/knowledge-engine/internal/store"
	"github.com/corpuskit/knowledge-engine/internal/vectorindex"
	"github.com/corpuskit/knowledge-engine/pkg/logger"
	"github.com/corpuskit/knowledge-engine/pkg/storage"
)

// Processor runs the ingestion pipeline for one document.
type Processor interface {
	Process(ctx context.Context, documentID string) error
}

// Service drives a document from raw bytes to indexed chunks: extract, chunk,
// embed, upsert, then flip the status. A document becomes ready only after
// every chunk is embedded and verified in the index; any failure leaves the
// document failed with zero index entries, never half-indexed.
type Service struct {
	store     store.DocumentStore
	storage   storage.Storage
	extractor extractor.Extractor
	chunker   *chunker.Chunker
	embedder  embedding.Client
	index     vectorindex.Index
	cfg       *config.CorpusConfig
	logger    logger.Logger
}

func NewService(
	docStore store.DocumentStore,
	objStorage storage.Storage,
	ext extractor.Extractor,
	ch *chunker.Chunker,
	embedder embedding.Client,
	index vectorindex.Index,
	cfg *config.CorpusConfig,
	log logger.Logger,
) *Service {
	return &Service{
		store:     docStore,
		storage:   objStorage,
		extractor: ext,
		chunker:   ch,
		embedder:  embedder,
		index:     index,
		cfg:       cfg,
		logger:    log,
	}
}

func (s *Service) Process(ctx context.Context, documentID string) error {
	doc, err := s.store.Get(ctx, documentID)
	if err != nil {
		return err
	}

	// Claim the document. Losing the claim means another worker owns it.
	if _, err := s.store.SetStatus(ctx, documentID, models.StatusProcessing, ""); err != nil {
		if errors.Is(err, models.ErrInvalidTransition) {
			s.logger.Warn("Document already being processed, skipping",
				logger.String("documentId", documentID),
			)
			return nil
		}
		return err
	}

	if err := s.ingest(ctx, doc); err != nil {
		s.fail(documentID, err)
		return err
	}
	return nil
}

func (s *Service) ingest(ctx context.Context, doc *models.Document) error {
	data, err := s.loadBytes(ctx, doc.ID)
	if err != nil {
		return err
	}

	text, err := s.extractor.Extract(ctx, data, doc.ContentType)
	if err != nil {
		return err
	}

	chunks, err := s.chunker.Split(doc.ID, text)
	if err != nil {
		return err
	}

	// Reprocessing starts from a clean slate so stale entries from a prior
	// run can never outlive this one.
	if err := s.index.DeleteByDocument(ctx, doc.ID); err != nil {
		return err
	}

	vectors, err := s.embedChunks(ctx, chunks)
	if err != nil {
		return err
	}

	entries := make([]models.IndexEntry, len(chunks))
	for i, chunk := range chunks {
		entries[i] = models.IndexEntry{
			ID:         vectorindex.EntryID(chunk.DocumentID, chunk.Ordinal),
			Vector:     vectors[i],
			DocumentID: chunk.DocumentID,
			Ordinal:    chunk.Ordinal,
			Text:       chunk.Text,
		}
	}
	if err := s.index.Upsert(ctx, entries); err != nil {
		return err
	}

	count, err := s.index.CountByDocument(ctx, doc.ID)
	if err != nil {
		return err
	}
	if count != len(chunks) {
		return fmt.Errorf("%w: indexed %d of %d chunks for document %s",
			models.ErrIndexUnavailable, count, len(chunks), doc.ID)
	}

	if err := s.store.SetChunkCount(ctx, doc.ID, len(chunks)); err != nil {
		return err
	}
	if _, err := s.store.SetStatus(ctx, doc.ID, models.StatusReady, ""); err != nil {
		return err
	}

	s.logger.Info("Document ingested",
		logger.String("documentId", doc.ID),
		logger.Int("chunks", len(chunks)),
	)
	return nil
}

func (s *Service) loadBytes(ctx context.Context, documentID string) ([]byte, error) {
	obj, err := s.storage.Get(ctx, documentID)
	if err != nil {
		return nil, err
	}
	defer obj.Close()

	data, err := io.ReadAll(obj)
	if err != nil {
		return nil, fmt.Errorf("failed to read document %s from storage: %w", documentID, err)
	}
	return data, nil
}

// embedChunks embeds chunk texts in concurrent batches. Position i of the
// result is the vector for chunks[i]. Any batch failing after its retry
// budget fails the whole call.
func (s *Service) embedChunks(ctx context.Context, chunks []models.Chunk) ([][]float32, error) {
	batchSize := s.cfg.EmbedBatchSize
	if batchSize <= 0 {
		batchSize = 16
	}

	vectors := make([][]float32, len(chunks))
	g, gctx := errgroup.WithContext(ctx)
	if s.cfg.EmbedConcurrent > 0 {
		g.SetLimit(s.cfg.EmbedConcurrent)
	}

	for start := 0; start < len(chunks); start += batchSize {
		end := start + batchSize
		if end > len(chunks) {
			end = len(chunks)
		}
		start, end := start, end
		g.Go(func() error {
			texts := make([]string, end-start)
			for i, chunk := range chunks[start:end] {
				texts[i] = chunk.Text
			}
			batch, err := s.embedWithRetry(gctx, texts)
			if err != nil {
				return err
			}
			copy(vectors[start:], batch)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return vectors, nil
}

// embedWithRetry retries transient embedding failures with exponential
// backoff. Permanent failures (dimension mismatch, rejected requests) return
// immediately.
func (s *Service) embedWithRetry(ctx context.Context, texts []string) ([][]float32, error) {
	attempts := s.cfg.EmbedRetries
	if attempts <= 0 {
		attempts = 1
	}
	backoff := s.cfg.EmbedBackoff
	if backoff <= 0 {
		backoff = time.Second
	}

	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(backoff << (attempt - 1)):
			}
		}

		vectors, err := s.embedder.EmbedBatch(ctx, texts)
		if err == nil {
			return vectors, nil
		}
		if !models.IsRetryable(err) {
			return nil, err
		}
		lastErr = err
		s.logger.Warn("Embedding batch failed, retrying",
			logger.Int("attempt", attempt+1),
			logger.Error(err),
		)
	}
	return nil, lastErr
}

// fail records a terminal ingestion failure. Index entries from the partial
// run are removed so search never sees a half-indexed document. Cleanup runs
// on a fresh context because the task context may already be cancelled.
func (s *Service) fail(documentID string, cause error) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := s.index.DeleteByDocument(ctx, documentID); err != nil {
		s.logger.Error("Failed to clean up index entries after ingestion failure",
			logger.String("documentId", documentID),
			logger.Error(err),
		)
	}

	detail := cause.Error()
	if errors.Is(cause, context.Canceled) {
		detail = "ingestion cancelled"
	}
	if _, err := s.store.SetStatus(ctx, documentID, models.StatusFailed, detail); err != nil {
		s.logger.Error("Failed to mark document failed",
			logger.String("documentId", documentID),
			logger.Error(err),
		)
	}

	s.logger.Error("Document ingestion failed",
		logger.String("documentId", documentID),
		logger.String("detail", detail),
	)
}
