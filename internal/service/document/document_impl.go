package document

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"

	"github.com/corpuskit/knowledge-engine/internal/extractor"
	"github.com/corpuskit/knowledge-engine/internal/models"
	"github.com/corpuskit/knowledge-engine/internal/store"
	"github.com/corpuskit/knowledge-engine/internal/utils/validator"
	"github.com/corpuskit/knowledge-engine/internal/vectorindex"
	"github.com/corpuskit/knowledge-engine/pkg/logger"
	"github.com/corpuskit/knowledge-engine/pkg/queue"
	"github.com/corpuskit/knowledge-engine/pkg/storage"
)

const maxDocumentSize = 50 * 1024 * 1024

type DocumentService struct {
	store     store.DocumentStore
	storage   storage.Storage
	extractor extractor.Extractor
	validator *validator.DocumentValidator
	queue     queue.Queue
	index     vectorindex.Index
	logger    logger.Logger
}

func NewService(
	docStore store.DocumentStore,
	objStorage storage.Storage,
	ext extractor.Extractor,
	q queue.Queue,
	index vectorindex.Index,
	log logger.Logger,
) Manager {
	return &DocumentService{
		store:     docStore,
		storage:   objStorage,
		extractor: ext,
		validator: validator.New(nil),
		queue:     q,
		index:     index,
		logger:    log,
	}
}

func (s *DocumentService) Upload(ctx context.Context, reader io.Reader, filename, contentType string) (*models.Document, error) {
	if !s.extractor.Supports(contentType) {
		return nil, fmt.Errorf("%w: unsupported content type %q", models.ErrExtraction, contentType)
	}

	data, err := io.ReadAll(io.LimitReader(reader, maxDocumentSize+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read upload: %w", err)
	}
	if err := s.validator.Validate(filename, contentType, data); err != nil {
		return nil, err
	}

	sum := sha256.Sum256(data)
	now := time.Now().UTC()
	doc := &models.Document{
		ID:          uuid.NewString(),
		Filename:    filename,
		ContentType: contentType,
		SizeBytes:   int64(len(data)),
		Checksum:    hex.EncodeToString(sum[:]),
		Status:      models.StatusNew,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if _, err := s.storage.Store(ctx, bytes.NewReader(data), doc.ID); err != nil {
		return nil, err
	}
	if err := s.store.Create(ctx, doc); err != nil {
		// Roll back the blob so storage and metadata stay in step.
		if delErr := s.storage.Delete(ctx, doc.ID); delErr != nil {
			s.logger.Error("Failed to roll back stored blob",
				logger.String("documentId", doc.ID),
				logger.Error(delErr),
			)
		}
		return nil, err
	}

	if _, err := s.queue.Submit(ctx, doc.ID); err != nil {
		return nil, err
	}

	s.logger.Info("Document uploaded",
		logger.String("documentId", doc.ID),
		logger.String("filename", filename),
		logger.Int64("sizeBytes", doc.SizeBytes),
	)
	return doc, nil
}

func (s *DocumentService) Get(ctx context.Context, id string) (*models.Document, error) {
	return s.store.Get(ctx, id)
}

func (s *DocumentService) List(ctx context.Context) ([]*models.Document, error) {
	return s.store.List(ctx)
}

func (s *DocumentService) Reprocess(ctx context.Context, id string) (*models.Document, bool, error) {
	doc, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, false, err
	}
	if doc.Status != models.StatusReady && doc.Status != models.StatusFailed {
		return nil, false, fmt.Errorf("%w: cannot reprocess document in status %s",
			models.ErrInvalidTransition, doc.Status)
	}

	coalesced, err := s.queue.Submit(ctx, id)
	if err != nil {
		return nil, false, err
	}

	s.logger.Info("Document reprocess scheduled",
		logger.String("documentId", id),
		logger.Bool("coalesced", coalesced),
	)
	return doc, coalesced, nil
}

func (s *DocumentService) Delete(ctx context.Context, id string) error {
	if _, err := s.store.Get(ctx, id); err != nil {
		return err
	}

	if err := s.queue.Cancel(ctx, id); err != nil {
		s.logger.Warn("Failed to cancel pending ingestion",
			logger.String("documentId", id),
			logger.Error(err),
		)
	}
	if err := s.index.DeleteByDocument(ctx, id); err != nil {
		return err
	}
	if err := s.storage.Delete(ctx, id); err != nil {
		s.logger.Warn("Failed to delete stored blob",
			logger.String("documentId", id),
			logger.Error(err),
		)
	}
	if err := s.store.Delete(ctx, id); err != nil {
		return err
	}

	s.logger.Info("Document deleted", logger.String("documentId", id))
	return nil
}
