package ingest

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/corpuskit/knowledge-engine/config"
	"github.com/corpuskit/knowledge-engine/internal/chunker"
	"github.com/corpuskit/knowledge-engine/internal/extractor"
	"github.com/corpuskit/knowledge-engine/internal/models"
	"github.com/corpuskit/knowledge-engine/internal/store/memstore"
	"github.com/corpuskit/knowledge-engine/internal/vectorindex/memory"
	"github.com/corpuskit/knowledge-engine/pkg/logger"
)

const testDimension = 4

type memStorage struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func newMemStorage() *memStorage {
	return &memStorage{objects: make(map[string][]byte)}
}

func (s *memStorage) Store(ctx context.Context, reader io.Reader, key string) (string, error) {
	data, err := io.ReadAll(reader)
	if err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[key] = data
	return key, nil
}

func (s *memStorage) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, ok := s.objects[key]
	if !ok {
		return nil, fmt.Errorf("object %s not found", key)
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (s *memStorage) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.objects, key)
	return nil
}

// fakeEmbedder returns constant vectors and can be told to fail its first N
// calls with a transient error.
type fakeEmbedder struct {
	mu        sync.Mutex
	calls     int
	failFirst int
	failWith  error
}

func (e *fakeEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	e.mu.Lock()
	e.calls++
	shouldFail := e.calls <= e.failFirst
	e.mu.Unlock()

	if shouldFail {
		if e.failWith != nil {
			return nil, e.failWith
		}
		return nil, fmt.Errorf("%w: transient outage", models.ErrEmbeddingUnavailable)
	}

	vectors := make([][]float32, len(texts))
	for i := range texts {
		vectors[i] = []float32{1, 0, 0, float32(len(texts[i]) % 7)}
	}
	return vectors, nil
}

func (e *fakeEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	vectors, err := e.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

func (e *fakeEmbedder) Dimension() int { return testDimension }

func testConfig() *config.CorpusConfig {
	return &config.CorpusConfig{
		Dimension:       testDimension,
		ChunkMaxSize:    200,
		ChunkOverlap:    20,
		EmbedBatchSize:  2,
		EmbedRetries:    3,
		EmbedBackoff:    time.Millisecond,
		EmbedConcurrent: 2,
	}
}

func newTestService(t *testing.T, embedder *fakeEmbedder) (*Service, *memstore.DocumentStore, *memStorage, *memory.Index) {
	t.Helper()
	docs := memstore.NewDocumentStore()
	objects := newMemStorage()
	index := memory.New(testDimension)
	ch, err := chunker.New(200, 20)
	require.NoError(t, err)

	svc := NewService(
		docs, objects, extractor.New(logger.NewTestLogger()), ch,
		embedder, index, testConfig(), logger.NewTestLogger(),
	)
	return svc, docs, objects, index
}

func seedDocument(t *testing.T, docs *memstore.DocumentStore, objects *memStorage, id, text string) {
	t.Helper()
	err := docs.Create(context.Background(), &models.Document{
		ID:          id,
		Filename:    id + ".txt",
		ContentType: "text/plain",
		Status:      models.StatusNew,
		CreatedAt:   time.Now().UTC(),
		UpdatedAt:   time.Now().UTC(),
	})
	require.NoError(t, err)
	_, err = objects.Store(context.Background(), strings.NewReader(text), id)
	require.NoError(t, err)
}

func TestProcessMarksDocumentReady(t *testing.T) {
	embedder := &fakeEmbedder{}
	svc, docs, objects, index := newTestService(t, embedder)
	seedDocument(t, docs, objects, "doc-1", strings.Repeat("Knowledge is structured text. ", 40))

	err := svc.Process(context.Background(), "doc-1")
	require.NoError(t, err)

	doc, err := docs.Get(context.Background(), "doc-1")
	require.NoError(t, err)
	assert.Equal(t, models.StatusReady, doc.Status)
	assert.Empty(t, doc.ErrorDetail)
	assert.Greater(t, doc.ChunkCount, 1)

	count, err := index.CountByDocument(context.Background(), "doc-1")
	require.NoError(t, err)
	assert.Equal(t, doc.ChunkCount, count)
}

func TestProcessRetriesTransientEmbeddingFailure(t *testing.T) {
	embedder := &fakeEmbedder{failFirst: 2}
	svc, docs, objects, index := newTestService(t, embedder)
	seedDocument(t, docs, objects, "doc-1", strings.Repeat("Retry me. ", 30))

	err := svc.Process(context.Background(), "doc-1")
	require.NoError(t, err)

	doc, err := docs.Get(context.Background(), "doc-1")
	require.NoError(t, err)
	assert.Equal(t, models.StatusReady, doc.Status)

	count, err := index.CountByDocument(context.Background(), "doc-1")
	require.NoError(t, err)
	assert.Equal(t, doc.ChunkCount, count)
}

func TestProcessFailsAfterRetryBudget(t *testing.T) {
	embedder := &fakeEmbedder{failFirst: 1000}
	svc, docs, objects, index := newTestService(t, embedder)
	seedDocument(t, docs, objects, "doc-1", strings.Repeat("Never embeds. ", 30))

	err := svc.Process(context.Background(), "doc-1")
	require.Error(t, err)
	assert.ErrorIs(t, err, models.ErrEmbeddingUnavailable)

	doc, err := docs.Get(context.Background(), "doc-1")
	require.NoError(t, err)
	assert.Equal(t, models.StatusFailed, doc.Status)
	assert.NotEmpty(t, doc.ErrorDetail)

	count, err := index.CountByDocument(context.Background(), "doc-1")
	require.NoError(t, err)
	assert.Zero(t, count, "failed ingestion must leave no index entries")
}

func TestProcessDimensionMismatchIsPermanent(t *testing.T) {
	embedder := &fakeEmbedder{
		failFirst: 1000,
		failWith:  fmt.Errorf("%w: model returned 3 dimensions", models.ErrDimensionMismatch),
	}
	svc, docs, objects, _ := newTestService(t, embedder)
	seedDocument(t, docs, objects, "doc-1", "Short document.")

	err := svc.Process(context.Background(), "doc-1")
	require.Error(t, err)
	assert.ErrorIs(t, err, models.ErrDimensionMismatch)
	assert.Equal(t, 1, embedder.calls, "permanent failures must not be retried")

	doc, err := docs.Get(context.Background(), "doc-1")
	require.NoError(t, err)
	assert.Equal(t, models.StatusFailed, doc.Status)
}

func TestProcessExtractionFailureFailsDocument(t *testing.T) {
	embedder := &fakeEmbedder{}
	svc, docs, objects, _ := newTestService(t, embedder)

	err := docs.Create(context.Background(), &models.Document{
		ID:          "doc-1",
		Filename:    "doc-1.bin",
		ContentType: "application/octet-stream",
		Status:      models.StatusNew,
	})
	require.NoError(t, err)
	_, err = objects.Store(context.Background(), bytes.NewReader([]byte{0xff, 0xfe}), "doc-1")
	require.NoError(t, err)

	err = svc.Process(context.Background(), "doc-1")
	require.Error(t, err)
	assert.ErrorIs(t, err, models.ErrExtraction)

	doc, err := docs.Get(context.Background(), "doc-1")
	require.NoError(t, err)
	assert.Equal(t, models.StatusFailed, doc.Status)
	assert.Zero(t, embedder.calls)
}

func TestProcessCancelledLeavesNoEntries(t *testing.T) {
	embedder := &fakeEmbedder{}
	svc, docs, objects, index := newTestService(t, embedder)
	seedDocument(t, docs, objects, "doc-1", strings.Repeat("Cancel me. ", 50))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := svc.Process(ctx, "doc-1")
	require.Error(t, err)

	doc, err := docs.Get(context.Background(), "doc-1")
	require.NoError(t, err)
	assert.Equal(t, models.StatusFailed, doc.Status)
	assert.Equal(t, "ingestion cancelled", doc.ErrorDetail)

	count, err := index.CountByDocument(context.Background(), "doc-1")
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestReprocessReplacesEntries(t *testing.T) {
	embedder := &fakeEmbedder{}
	svc, docs, objects, index := newTestService(t, embedder)
	seedDocument(t, docs, objects, "doc-1", strings.Repeat("Version one of the text. ", 40))

	require.NoError(t, svc.Process(context.Background(), "doc-1"))
	first, err := index.CountByDocument(context.Background(), "doc-1")
	require.NoError(t, err)

	// Same bytes, second run: deterministic chunking must land on the same
	// entry ids and leave the count unchanged.
	require.NoError(t, svc.Process(context.Background(), "doc-1"))
	second, err := index.CountByDocument(context.Background(), "doc-1")
	require.NoError(t, err)
	assert.Equal(t, first, second)

	doc, err := docs.Get(context.Background(), "doc-1")
	require.NoError(t, err)
	assert.Equal(t, models.StatusReady, doc.Status)
}

func TestProcessSkipsDocumentAlreadyProcessing(t *testing.T) {
	embedder := &fakeEmbedder{}
	svc, docs, objects, _ := newTestService(t, embedder)
	seedDocument(t, docs, objects, "doc-1", "Already claimed.")

	_, err := docs.SetStatus(context.Background(), "doc-1", models.StatusProcessing, "")
	require.NoError(t, err)

	err = svc.Process(context.Background(), "doc-1")
	require.NoError(t, err)
	assert.Zero(t, embedder.calls)
}

func TestProcessUnknownDocument(t *testing.T) {
	embedder := &fakeEmbedder{}
	svc, _, _, _ := newTestService(t, embedder)

	err := svc.Process(context.Background(), "missing")
	assert.ErrorIs(t, err, models.ErrNotFound)
}
