package memory

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/corpuskit/knowledge-engine/internal/models"
	"github.com/corpuskit/knowledge-engine/internal/vectorindex"
)

// Index is a brute-force cosine-similarity vector index held in memory.
// It backs tests and single-node deployments where running Qdrant is not
// worth the operational cost.
type Index struct {
	mu        sync.RWMutex
	dimension int
	entries   map[string]models.IndexEntry
}

func New(dimension int) *Index {
	return &Index{
		dimension: dimension,
		entries:   make(map[string]models.IndexEntry),
	}
}

func (idx *Index) EnsureReady(ctx context.Context) error { return nil }

func (idx *Index) Upsert(ctx context.Context, entries []models.IndexEntry) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	for _, e := range entries {
		if len(e.Vector) != idx.dimension {
			return fmt.Errorf("%w: entry %s has %d dimensions, index expects %d",
				models.ErrDimensionMismatch, e.ID, len(e.Vector), idx.dimension)
		}
	}
	for _, e := range entries {
		idx.entries[e.ID] = e
	}
	return nil
}

func (idx *Index) DeleteByDocument(ctx context.Context, documentID string) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	for id, e := range idx.entries {
		if e.DocumentID == documentID {
			delete(idx.entries, id)
		}
	}
	return nil
}

func (idx *Index) CountByDocument(ctx context.Context, documentID string) (int, error) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	count := 0
	for _, e := range idx.entries {
		if e.DocumentID == documentID {
			count++
		}
	}
	return count, nil
}

func (idx *Index) Search(ctx context.Context, vector []float32, topK int, filter *vectorindex.Filter) ([]models.RetrievalResult, error) {
	if topK <= 0 {
		topK = 5
	}
	if len(vector) != idx.dimension {
		return nil, fmt.Errorf("%w: query has %d dimensions, index expects %d",
			models.ErrDimensionMismatch, len(vector), idx.dimension)
	}

	idx.mu.RLock()
	defer idx.mu.RUnlock()

	excluded := make(map[string]bool)
	if filter != nil {
		for _, id := range filter.ExcludeDocumentIDs {
			excluded[id] = true
		}
	}

	results := make([]models.RetrievalResult, 0, len(idx.entries))
	for _, e := range idx.entries {
		if filter != nil && filter.DocumentID != "" && e.DocumentID != filter.DocumentID {
			continue
		}
		if excluded[e.DocumentID] {
			continue
		}
		results = append(results, models.RetrievalResult{
			DocumentID: e.DocumentID,
			Ordinal:    e.Ordinal,
			Text:       e.Text,
			Score:      cosine(vector, e.Vector),
		})
	}

	// Score descending; ties broken by ordinal then document id so results
	// are deterministic across runs.
	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		if results[i].Ordinal != results[j].Ordinal {
			return results[i].Ordinal < results[j].Ordinal
		}
		return results[i].DocumentID < results[j].DocumentID
	})

	if len(results) > topK {
		results = results[:topK]
	}
	for i := range results {
		results[i].Rank = i
	}
	return results, nil
}

func cosine(a, b []float32) float64 {
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
