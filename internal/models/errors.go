package models

import (
	"errors"
)

// Error taxonomy. Configuration errors are fatal and never retried; transient
// service errors are retried with bounded backoff before becoming a document
// failure; extraction and form-write errors surface immediately.
var (
	// ErrChunking signals bad chunk parameters or empty input text.
	ErrChunking = errors.New("chunking failed")

	// ErrDimensionMismatch signals a vector whose dimension differs from the
	// corpus-wide configured dimension. Always fatal, never retried.
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")

	// ErrEmbeddingUnavailable signals a transient embedding-service failure
	// (timeout, 429, 5xx). Retryable within the ingestion retry budget.
	ErrEmbeddingUnavailable = errors.New("embedding service unavailable")

	// ErrIndexUnavailable signals a transient vector-index failure.
	ErrIndexUnavailable = errors.New("vector index unavailable")

	// ErrExtraction signals an unparseable or unsupported file. Retrying
	// cannot change the outcome, so the document fails immediately.
	ErrExtraction = errors.New("text extraction failed")

	// ErrFormWrite signals that a field's position could not be located in
	// the form document structure during value write-back.
	ErrFormWrite = errors.New("form write failed")

	// ErrNotFound signals a missing document or form.
	ErrNotFound = errors.New("not found")

	// ErrInvalidTransition signals a document status change that violates
	// the lifecycle state machine.
	ErrInvalidTransition = errors.New("invalid status transition")
)

// IsRetryable reports whether an ingestion failure is worth another attempt
// within the backoff budget.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrEmbeddingUnavailable) || errors.Is(err, ErrIndexUnavailable)
}
