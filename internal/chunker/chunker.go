package chunker

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/corpuskit/knowledge-engine/internal/models"
)

// Chunker splits extracted document text into overlapping, ordered segments
// with rune offsets back into the source. Splitting prefers paragraph and
// sentence boundaries and falls back to hard cuts. Identical input and
// parameters always yield identical boundaries, which is what makes
// reprocessing idempotent.
type Chunker struct {
	maxSize int
	overlap int
}

func New(maxSize, overlap int) (*Chunker, error) {
	if maxSize <= 0 {
		return nil, fmt.Errorf("%w: max size must be positive, got %d", models.ErrChunking, maxSize)
	}
	if overlap < 0 {
		return nil, fmt.Errorf("%w: overlap must be non-negative, got %d", models.ErrChunking, overlap)
	}
	if maxSize <= overlap {
		return nil, fmt.Errorf("%w: max size %d must exceed overlap %d", models.ErrChunking, maxSize, overlap)
	}
	return &Chunker{maxSize: maxSize, overlap: overlap}, nil
}

// Split chunks text for the given document. Each chunk after the first begins
// overlap runes before the previous chunk's end. Ordinals are 0-based and
// contiguous. Empty input is an error so the caller skips embedding.
func (c *Chunker) Split(documentID, text string) ([]models.Chunk, error) {
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("%w: empty input text", models.ErrChunking)
	}

	runes := []rune(text)
	n := len(runes)

	var chunks []models.Chunk
	start := 0
	for ordinal := 0; ; ordinal++ {
		end := start + c.maxSize
		if end >= n {
			end = n
		} else {
			end = c.cutPoint(runes, start, end)
		}

		chunks = append(chunks, models.Chunk{
			DocumentID: documentID,
			Ordinal:    ordinal,
			Text:       string(runes[start:end]),
			Start:      start,
			End:        end,
		})

		if end >= n {
			return chunks, nil
		}
		start = end - c.overlap
	}
}

// cutPoint picks the end of a chunk whose window is [start, limit). A
// paragraph break wins over a sentence end; neither may shrink the chunk
// below half the window or below the overlap, which keeps every step moving
// forward and keeps the overlap trim-at-midpoint reconstruction exact.
func (c *Chunker) cutPoint(runes []rune, start, limit int) int {
	floor := start + c.maxSize/2
	if min := start + c.overlap + 1; min > floor {
		floor = min
	}
	if floor >= limit {
		return limit
	}

	for i := limit - 1; i >= floor; i-- {
		if runes[i] == '\n' && i > 0 && runes[i-1] == '\n' {
			return i + 1
		}
	}
	for i := limit - 1; i >= floor; i-- {
		if isSentenceEnd(runes[i]) && i+1 < len(runes) && unicode.IsSpace(runes[i+1]) {
			return i + 1
		}
	}
	return limit
}

func isSentenceEnd(r rune) bool {
	return r == '.' || r == '!' || r == '?'
}
