package store

import (
	"context"

	"github.com/corpuskit/knowledge-engine/internal/models"
)

// DocumentStore persists corpus document metadata. SetStatus enforces the
// lifecycle state machine: implementations must reject transitions that
// models.DocumentStatus.CanTransition disallows with ErrInvalidTransition.
type DocumentStore interface {
	Create(ctx context.Context, doc *models.Document) error
	Get(ctx context.Context, id string) (*models.Document, error)
	List(ctx context.Context) ([]*models.Document, error)

	// SetStatus transitions a document's lifecycle state. errorDetail is
	// recorded on failed and cleared on every other transition.
	SetStatus(ctx context.Context, id string, to models.DocumentStatus, errorDetail string) (*models.Document, error)

	// SetChunkCount records how many chunks the last successful ingestion
	// produced.
	SetChunkCount(ctx context.Context, id string, count int) error

	Delete(ctx context.Context, id string) error
}

// FormStore persists form documents and their parsed fields, separate from
// the knowledge corpus.
type FormStore interface {
	Create(ctx context.Context, form *models.FormDocument, fields []models.FormField) error
	Get(ctx context.Context, id string) (*models.FormDocument, error)
	GetFields(ctx context.Context, id string) ([]models.FormField, error)

	// SetFields replaces the stored fields, used to persist auto-fill
	// outcomes.
	SetFields(ctx context.Context, id string, fields []models.FormField) error
	List(ctx context.Context) ([]*models.FormDocument, error)
	Delete(ctx context.Context, id string) error
}
