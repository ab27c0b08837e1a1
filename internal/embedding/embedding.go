package embedding

import (
	"context"
)

// Client converts text into fixed-dimension vectors. Every vector returned
// by either method has the corpus's configured dimension; any discrepancy is
// a fatal dimension-mismatch error, not a warning. Batching is the client's
// concern, so callers may pass any number of texts.
type Client interface {
	// EmbedBatch returns one vector per input text, same order, same length.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// EmbedQuery embeds a single query string.
	EmbedQuery(ctx context.Context, text string) ([]float32, error)

	// Dimension is the corpus-wide vector dimensionality contract.
	Dimension() int
}
