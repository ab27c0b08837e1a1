package memstore

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/corpuskit/knowledge-engine/internal/models"
)

// DocumentStore is a map-backed DocumentStore for tests and local runs.
type DocumentStore struct {
	mu   sync.RWMutex
	docs map[string]models.Document
}

func NewDocumentStore() *DocumentStore {
	return &DocumentStore{docs: make(map[string]models.Document)}
}

func (s *DocumentStore) Create(ctx context.Context, doc *models.Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.docs[doc.ID] = *doc
	return nil
}

func (s *DocumentStore) Get(ctx context.Context, id string) (*models.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	doc, ok := s.docs[id]
	if !ok {
		return nil, fmt.Errorf("%w: document %s", models.ErrNotFound, id)
	}
	return &doc, nil
}

func (s *DocumentStore) List(ctx context.Context) ([]*models.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	docs := make([]*models.Document, 0, len(s.docs))
	for _, doc := range s.docs {
		d := doc
		docs = append(docs, &d)
	}
	sort.Slice(docs, func(i, j int) bool { return docs[i].ID < docs[j].ID })
	return docs, nil
}

func (s *DocumentStore) SetStatus(ctx context.Context, id string, to models.DocumentStatus, errorDetail string) (*models.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, ok := s.docs[id]
	if !ok {
		return nil, fmt.Errorf("%w: document %s", models.ErrNotFound, id)
	}
	if !doc.Status.CanTransition(to) {
		return nil, fmt.Errorf("%w: %s -> %s for document %s", models.ErrInvalidTransition, doc.Status, to, id)
	}
	doc.Status = to
	doc.UpdatedAt = time.Now().UTC()
	if to == models.StatusFailed {
		doc.ErrorDetail = errorDetail
	} else {
		doc.ErrorDetail = ""
	}
	s.docs[id] = doc
	return &doc, nil
}

func (s *DocumentStore) SetChunkCount(ctx context.Context, id string, count int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, ok := s.docs[id]
	if !ok {
		return fmt.Errorf("%w: document %s", models.ErrNotFound, id)
	}
	doc.ChunkCount = count
	doc.UpdatedAt = time.Now().UTC()
	s.docs[id] = doc
	return nil
}

func (s *DocumentStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.docs, id)
	return nil
}

// FormStore is a map-backed FormStore for tests and local runs.
type FormStore struct {
	mu     sync.RWMutex
	forms  map[string]models.FormDocument
	fields map[string][]models.FormField
}

func NewFormStore() *FormStore {
	return &FormStore{
		forms:  make(map[string]models.FormDocument),
		fields: make(map[string][]models.FormField),
	}
}

func (s *FormStore) Create(ctx context.Context, form *models.FormDocument, fields []models.FormField) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.forms[form.ID] = *form
	s.fields[form.ID] = append([]models.FormField(nil), fields...)
	return nil
}

func (s *FormStore) Get(ctx context.Context, id string) (*models.FormDocument, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	form, ok := s.forms[id]
	if !ok {
		return nil, fmt.Errorf("%w: form %s", models.ErrNotFound, id)
	}
	return &form, nil
}

func (s *FormStore) GetFields(ctx context.Context, id string) ([]models.FormField, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	fields, ok := s.fields[id]
	if !ok {
		return nil, fmt.Errorf("%w: form %s", models.ErrNotFound, id)
	}
	return append([]models.FormField(nil), fields...), nil
}

func (s *FormStore) SetFields(ctx context.Context, id string, fields []models.FormField) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.forms[id]; !ok {
		return fmt.Errorf("%w: form %s", models.ErrNotFound, id)
	}
	s.fields[id] = append([]models.FormField(nil), fields...)
	return nil
}

func (s *FormStore) List(ctx context.Context) ([]*models.FormDocument, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	forms := make([]*models.FormDocument, 0, len(s.forms))
	for _, form := range s.forms {
		f := form
		forms = append(forms, &f)
	}
	sort.Slice(forms, func(i, j int) bool { return forms[i].ID < forms[j].ID })
	return forms, nil
}

func (s *FormStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.forms, id)
	delete(s.fields, id)
	return nil
}
