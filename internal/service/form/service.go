package form

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"

	"github.com/corpuskit/knowledge-engine/internal/formio"
	"github.com/corpuskit/knowledge-engine/internal/models"
	"github.com/corpuskit/knowledge-engine/internal/service/autofill"
	"github.com/corpuskit/knowledge-engine/internal/store"
	"github.com/corpuskit/knowledge-engine/pkg/logger"
	"github.com/corpuskit/knowledge-engine/pkg/storage"
)

const maxFormSize = 10 * 1024 * 1024

// Service manages form documents. Forms live next to the corpus but are
// never chunked or embedded into it.
type Service struct {
	forms   store.FormStore
	storage storage.Storage
	logger  logger.Logger
}

func NewService(forms store.FormStore, objStorage storage.Storage, log logger.Logger) *Service {
	return &Service{forms: forms, storage: objStorage, logger: log}
}

func (s *Service) Upload(ctx context.Context, reader io.Reader, filename, contentType string) (*models.FormDocument, []models.FormField, error) {
	data, err := io.ReadAll(io.LimitReader(reader, maxFormSize+1))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read upload: %w", err)
	}
	if len(data) > maxFormSize {
		return nil, nil, fmt.Errorf("form exceeds the %d byte limit", maxFormSize)
	}

	fields, err := formio.ParseFields(data, contentType)
	if err != nil {
		return nil, nil, err
	}
	if len(fields) == 0 {
		return nil, nil, fmt.Errorf("%w: no fillable fields found", models.ErrFormWrite)
	}

	now := time.Now().UTC()
	form := &models.FormDocument{
		ID:          uuid.NewString(),
		Filename:    filename,
		ContentType: contentType,
		SizeBytes:   int64(len(data)),
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if _, err := s.storage.Store(ctx, bytes.NewReader(data), autofill.FormKey(form.ID)); err != nil {
		return nil, nil, err
	}
	if err := s.forms.Create(ctx, form, fields); err != nil {
		if delErr := s.storage.Delete(ctx, autofill.FormKey(form.ID)); delErr != nil {
			s.logger.Error("Failed to roll back stored form",
				logger.String("formId", form.ID),
				logger.Error(delErr),
			)
		}
		return nil, nil, err
	}

	s.logger.Info("Form uploaded",
		logger.String("formId", form.ID),
		logger.String("filename", filename),
		logger.Int("fields", len(fields)),
	)
	return form, fields, nil
}

func (s *Service) Get(ctx context.Context, id string) (*models.FormDocument, error) {
	return s.forms.Get(ctx, id)
}

func (s *Service) Fields(ctx context.Context, id string) ([]models.FormField, error) {
	return s.forms.GetFields(ctx, id)
}

func (s *Service) List(ctx context.Context) ([]*models.FormDocument, error) {
	return s.forms.List(ctx)
}

func (s *Service) Delete(ctx context.Context, id string) error {
	if _, err := s.forms.Get(ctx, id); err != nil {
		return err
	}
	if err := s.storage.Delete(ctx, autofill.FormKey(id)); err != nil {
		s.logger.Warn("Failed to delete stored form",
			logger.String("formId", id),
			logger.Error(err),
		)
	}
	return s.forms.Delete(ctx, id)
}
