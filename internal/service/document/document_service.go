package document

import (
	"context"
	"io"

	"github.com/corpuskit/knowledge-engine/internal/models"
)

// Manager owns the document lifecycle outside the ingestion worker: upload,
// lookup, reprocess scheduling and deletion.
type Manager interface {
	Upload(ctx context.Context, reader io.Reader, filename, contentType string) (*models.Document, error)
	Get(ctx context.Context, id string) (*models.Document, error)
	List(ctx context.Context) ([]*models.Document, error)

	// Reprocess schedules re-ingestion of a ready or failed document. The
	// returned flag is true when an equivalent task was already pending.
	Reprocess(ctx context.Context, id string) (*models.Document, bool, error)

	// Delete removes the document everywhere: queue, index, storage, store.
	Delete(ctx context.Context, id string) error
}
