package vectorindex

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/corpuskit/knowledge-engine/internal/models"
)

// Filter narrows a search by entry metadata.
type Filter struct {
	DocumentID         string
	ExcludeDocumentIDs []string
}

// Index stores chunk vectors with metadata and answers nearest-neighbor
// queries. Upsert is idempotent: entry ids are derived from (document id,
// chunk ordinal), so re-ingesting a document overwrites rather than
// duplicates. The index is an injected dependency everywhere, never a
// singleton, so tests can substitute the in-memory implementation.
type Index interface {
	// EnsureReady creates the backing collection if it does not exist.
	EnsureReady(ctx context.Context) error

	// Upsert writes entries, rejecting any vector whose dimension differs
	// from the corpus dimension.
	Upsert(ctx context.Context, entries []models.IndexEntry) error

	// DeleteByDocument removes every entry belonging to a document.
	DeleteByDocument(ctx context.Context, documentID string) error

	// CountByDocument reports how many entries a document currently has,
	// used to verify an upsert landed completely.
	CountByDocument(ctx context.Context, documentID string) (int, error)

	// Search returns the topK most similar entries, highest score first.
	Search(ctx context.Context, vector []float32, topK int, filter *Filter) ([]models.RetrievalResult, error)
}

var entryNamespace = uuid.MustParse("6ba7b810-9dad-11d1-80b4-00c04fd430c8")

// EntryID derives the deterministic point id for a chunk. Identical
// (document, ordinal) pairs always map to the same id, which is what makes
// reprocessing replace entries instead of accumulating them.
func EntryID(documentID string, ordinal int) string {
	return uuid.NewSHA1(entryNamespace, []byte(fmt.Sprintf("%s:%d", documentID, ordinal))).String()
}
