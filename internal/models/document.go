package models

import (
	"time"
)

// DocumentStatus is the lifecycle state of a corpus document.
type DocumentStatus string

const (
	StatusNew        DocumentStatus = "new"
	StatusProcessing DocumentStatus = "processing"
	StatusReady      DocumentStatus = "ready"
	StatusFailed     DocumentStatus = "failed"
)

// CanTransition reports whether a status change is allowed. Transitions are
// monotonic (new -> processing -> ready|failed) except for reprocessing,
// which drives ready|failed back to processing.
func (s DocumentStatus) CanTransition(to DocumentStatus) bool {
	switch s {
	case StatusNew:
		return to == StatusProcessing
	case StatusProcessing:
		return to == StatusReady || to == StatusFailed
	case StatusReady, StatusFailed:
		return to == StatusProcessing
	}
	return false
}

// Document is the metadata record for one corpus document. Raw bytes live in
// object storage; chunk vectors live in the vector index. The record never
// holds live chunk objects, only counts derived from ingestion.
type Document struct {
	ID          string         `json:"id"`
	Filename    string         `json:"filename"`
	ContentType string         `json:"contentType"`
	SizeBytes   int64          `json:"sizeBytes"`
	Checksum    string         `json:"checksum"`
	Status      DocumentStatus `json:"status"`
	ErrorDetail string         `json:"errorDetail,omitempty"`
	ChunkCount  int            `json:"chunkCount"`
	CreatedAt   time.Time      `json:"createdAt"`
	UpdatedAt   time.Time      `json:"updatedAt"`
}

// Chunk is a bounded, ordered slice of a document's extracted text. Offsets
// are rune offsets into the source text; Ordinal is 0-based and contiguous
// within a document. The document id is a back-reference for lookup only.
type Chunk struct {
	DocumentID string `json:"documentId"`
	Ordinal    int    `json:"ordinal"`
	Text       string `json:"text"`
	Start      int    `json:"start"`
	End        int    `json:"end"`
}

// IndexEntry is the materialized form of a chunk inside the vector index.
type IndexEntry struct {
	ID         string            `json:"id"`
	Vector     []float32         `json:"vector"`
	DocumentID string            `json:"documentId"`
	Ordinal    int               `json:"ordinal"`
	Text       string            `json:"text"`
	Metadata   map[string]string `json:"metadata,omitempty"`
}

// RetrievalResult is one ranked chunk returned by a search. Ephemeral.
type RetrievalResult struct {
	DocumentID string  `json:"documentId"`
	Ordinal    int     `json:"ordinal"`
	Text       string  `json:"text"`
	Score      float64 `json:"score"`
	Rank       int     `json:"rank"`
}

// ChunkRef identifies a chunk without carrying its text.
type ChunkRef struct {
	DocumentID string `json:"documentId"`
	Ordinal    int    `json:"ordinal"`
}

// Ref returns the identity of the chunk behind a retrieval result.
func (r RetrievalResult) Ref() ChunkRef {
	return ChunkRef{DocumentID: r.DocumentID, Ordinal: r.Ordinal}
}
