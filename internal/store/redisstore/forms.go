package redisstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/corpuskit/knowledge-engine/internal/models"
)

const (
	formKeyPrefix   = "corpus:form:"
	formFieldPrefix = "corpus:form-fields:"
	formIndexKey    = "corpus:forms"
)

// FormStore keeps form documents and their parsed fields in Redis. Fields are
// stored as one JSON array per form so reads stay a single round trip.
type FormStore struct {
	client *redis.Client
}

func NewFormStore(client *redis.Client) *FormStore {
	return &FormStore{client: client}
}

func (s *FormStore) Create(ctx context.Context, form *models.FormDocument, fields []models.FormField) error {
	formData, err := json.Marshal(form)
	if err != nil {
		return fmt.Errorf("failed to marshal form: %w", err)
	}
	fieldData, err := json.Marshal(fields)
	if err != nil {
		return fmt.Errorf("failed to marshal form fields: %w", err)
	}

	pipe := s.client.TxPipeline()
	pipe.Set(ctx, formKeyPrefix+form.ID, formData, 0)
	pipe.Set(ctx, formFieldPrefix+form.ID, fieldData, 0)
	pipe.SAdd(ctx, formIndexKey, form.ID)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to store form: %w", err)
	}
	return nil
}

func (s *FormStore) Get(ctx context.Context, id string) (*models.FormDocument, error) {
	data, err := s.client.Get(ctx, formKeyPrefix+id).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("%w: form %s", models.ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load form %s: %w", id, err)
	}

	var form models.FormDocument
	if err := json.Unmarshal(data, &form); err != nil {
		return nil, fmt.Errorf("failed to unmarshal form %s: %w", id, err)
	}
	return &form, nil
}

func (s *FormStore) GetFields(ctx context.Context, id string) ([]models.FormField, error) {
	data, err := s.client.Get(ctx, formFieldPrefix+id).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("%w: form %s", models.ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load fields for form %s: %w", id, err)
	}

	var fields []models.FormField
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil, fmt.Errorf("failed to unmarshal fields for form %s: %w", id, err)
	}
	return fields, nil
}

func (s *FormStore) SetFields(ctx context.Context, id string, fields []models.FormField) error {
	if _, err := s.Get(ctx, id); err != nil {
		return err
	}
	data, err := json.Marshal(fields)
	if err != nil {
		return fmt.Errorf("failed to marshal form fields: %w", err)
	}
	if err := s.client.Set(ctx, formFieldPrefix+id, data, 0).Err(); err != nil {
		return fmt.Errorf("failed to store fields for form %s: %w", id, err)
	}
	return nil
}

func (s *FormStore) List(ctx context.Context) ([]*models.FormDocument, error) {
	ids, err := s.client.SMembers(ctx, formIndexKey).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list forms: %w", err)
	}

	forms := make([]*models.FormDocument, 0, len(ids))
	for _, id := range ids {
		form, err := s.Get(ctx, id)
		if errors.Is(err, models.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		forms = append(forms, form)
	}
	return forms, nil
}

func (s *FormStore) Delete(ctx context.Context, id string) error {
	pipe := s.client.TxPipeline()
	pipe.Del(ctx, formKeyPrefix+id)
	pipe.Del(ctx, formFieldPrefix+id)
	pipe.SRem(ctx, formIndexKey, id)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to delete form %s: %w", id, err)
	}
	return nil
}
