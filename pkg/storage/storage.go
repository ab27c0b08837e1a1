package storage

import (
	"context"
	"fmt"
	"io"

	"github.com/corpuskit/knowledge-engine/pkg/logger"
	"github.com/corpuskit/knowledge-engine/pkg/storage/minio"
	"github.com/corpuskit/knowledge-engine/pkg/storage/s3"
)

// StorageType selects the object-storage backend.
type StorageType string

const (
	StorageTypeS3    StorageType = "s3"
	StorageTypeMinio StorageType = "minio"
)

// Storage holds raw document and form bytes keyed by id. Metadata lives in
// the document store; this layer only moves bytes.
type Storage interface {
	// Store writes the object under key and returns the key.
	Store(ctx context.Context, reader io.Reader, key string) (string, error)
	// Get opens the object for reading. The caller closes the reader.
	Get(ctx context.Context, key string) (io.ReadCloser, error)
	// Delete removes the object. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error
}

// NewStorage builds the configured backend.
func NewStorage(storageType StorageType, logger logger.Logger) (Storage, error) {
	switch storageType {
	case StorageTypeS3:
		return s3.GetClient(logger)
	case StorageTypeMinio:
		return minio.GetClient(logger)
	default:
		return nil, fmt.Errorf("unsupported storage type: %s", storageType)
	}
}
