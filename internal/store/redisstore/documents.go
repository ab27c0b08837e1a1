package redisstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/corpuskit/knowledge-engine/internal/models"
)

const (
	documentKeyPrefix = "corpus:document:"
	documentIndexKey  = "corpus:documents"
)

// DocumentStore keeps document metadata as JSON blobs in Redis, one key per
// document plus a set of ids for listing. Status transitions run inside a
// WATCH transaction so two workers cannot claim the same document.
type DocumentStore struct {
	client *redis.Client
}

func NewDocumentStore(client *redis.Client) *DocumentStore {
	return &DocumentStore{client: client}
}

func documentKey(id string) string {
	return documentKeyPrefix + id
}

func (s *DocumentStore) Create(ctx context.Context, doc *models.Document) error {
	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to marshal document: %w", err)
	}

	pipe := s.client.TxPipeline()
	pipe.Set(ctx, documentKey(doc.ID), data, 0)
	pipe.SAdd(ctx, documentIndexKey, doc.ID)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to store document: %w", err)
	}
	return nil
}

func (s *DocumentStore) Get(ctx context.Context, id string) (*models.Document, error) {
	data, err := s.client.Get(ctx, documentKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("%w: document %s", models.ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load document %s: %w", id, err)
	}

	var doc models.Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to unmarshal document %s: %w", id, err)
	}
	return &doc, nil
}

func (s *DocumentStore) List(ctx context.Context) ([]*models.Document, error) {
	ids, err := s.client.SMembers(ctx, documentIndexKey).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list documents: %w", err)
	}

	docs := make([]*models.Document, 0, len(ids))
	for _, id := range ids {
		doc, err := s.Get(ctx, id)
		if errors.Is(err, models.ErrNotFound) {
			// Stale index entry from a concurrent delete.
			continue
		}
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

func (s *DocumentStore) SetStatus(ctx context.Context, id string, to models.DocumentStatus, errorDetail string) (*models.Document, error) {
	var updated *models.Document

	txn := func(tx *redis.Tx) error {
		data, err := tx.Get(ctx, documentKey(id)).Bytes()
		if errors.Is(err, redis.Nil) {
			return fmt.Errorf("%w: document %s", models.ErrNotFound, id)
		}
		if err != nil {
			return err
		}

		var doc models.Document
		if err := json.Unmarshal(data, &doc); err != nil {
			return fmt.Errorf("failed to unmarshal document %s: %w", id, err)
		}

		if !doc.Status.CanTransition(to) {
			return fmt.Errorf("%w: %s -> %s for document %s", models.ErrInvalidTransition, doc.Status, to, id)
		}

		doc.Status = to
		doc.UpdatedAt = time.Now().UTC()
		if to == models.StatusFailed {
			doc.ErrorDetail = errorDetail
		} else {
			doc.ErrorDetail = ""
		}

		next, err := json.Marshal(&doc)
		if err != nil {
			return fmt.Errorf("failed to marshal document %s: %w", id, err)
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, documentKey(id), next, 0)
			return nil
		})
		if err != nil {
			return err
		}
		updated = &doc
		return nil
	}

	for i := 0; i < 3; i++ {
		err := s.client.Watch(ctx, txn, documentKey(id))
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if err != nil {
			return nil, err
		}
		return updated, nil
	}
	return nil, fmt.Errorf("status update for document %s kept conflicting", id)
}

func (s *DocumentStore) SetChunkCount(ctx context.Context, id string, count int) error {
	doc, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	doc.ChunkCount = count
	doc.UpdatedAt = time.Now().UTC()

	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to marshal document %s: %w", id, err)
	}
	if err := s.client.Set(ctx, documentKey(id), data, 0).Err(); err != nil {
		return fmt.Errorf("failed to store document %s: %w", id, err)
	}
	return nil
}

func (s *DocumentStore) Delete(ctx context.Context, id string) error {
	pipe := s.client.TxPipeline()
	pipe.Del(ctx, documentKey(id))
	pipe.SRem(ctx, documentIndexKey, id)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to delete document %s: %w", id, err)
	}
	return nil
}
