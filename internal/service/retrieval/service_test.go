package retrieval

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/corpuskit/knowledge-engine/config"
	"github.com/corpuskit/knowledge-engine/internal/llm"
	"github.com/corpuskit/knowledge-engine/internal/models"
	"github.com/corpuskit/knowledge-engine/internal/vectorindex"
	"github.com/corpuskit/knowledge-engine/internal/vectorindex/memory"
	"github.com/corpuskit/knowledge-engine/pkg/logger"
)

const testDimension = 3

type fixedEmbedder struct {
	vector []float32
}

func (e *fixedEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	vectors := make([][]float32, len(texts))
	for i := range texts {
		vectors[i] = e.vector
	}
	return vectors, nil
}

func (e *fixedEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	return e.vector, nil
}

func (e *fixedEmbedder) Dimension() int { return testDimension }

type recordingGenerator struct {
	calls       int
	lastContext string
}

func (g *recordingGenerator) Generate(ctx context.Context, query, contextText string) (string, error) {
	g.calls++
	g.lastContext = contextText
	return "generated answer", nil
}

func entry(documentID string, ordinal int, vector []float32, text string) models.IndexEntry {
	return models.IndexEntry{
		ID:         vectorindex.EntryID(documentID, ordinal),
		Vector:     vector,
		DocumentID: documentID,
		Ordinal:    ordinal,
		Text:       text,
	}
}

func newTestService(t *testing.T, budget int) (*Service, *memory.Index, *recordingGenerator) {
	t.Helper()
	index := memory.New(testDimension)
	gen := &recordingGenerator{}
	cfg := &config.CorpusConfig{TopK: 5, ContextBudget: budget}
	svc := NewService(
		&fixedEmbedder{vector: []float32{1, 0, 0}},
		index, llm.IdentityRewriter{}, gen, cfg, logger.NewTestLogger(),
	)
	return svc, index, gen
}

func TestRetrieveOrdersByScoreWithDeterministicTies(t *testing.T) {
	svc, index, _ := newTestService(t, 0)

	require.NoError(t, index.Upsert(context.Background(), []models.IndexEntry{
		entry("doc-b", 0, []float32{1, 0, 0}, "exact b"),
		entry("doc-a", 0, []float32{1, 0, 0}, "exact a"),
		entry("doc-a", 1, []float32{0, 1, 0}, "orthogonal"),
	}))

	results, err := svc.Retrieve(context.Background(), "anything", 3, nil)
	require.NoError(t, err)
	require.Len(t, results, 3)

	// Two perfect matches tie; ordinal then document id breaks the tie.
	assert.Equal(t, "doc-a", results[0].DocumentID)
	assert.Equal(t, "doc-b", results[1].DocumentID)
	assert.Equal(t, 1, results[2].Ordinal)
	for i, r := range results {
		assert.Equal(t, i, r.Rank)
	}
}

func TestRetrieveRejectsEmptyQuery(t *testing.T) {
	svc, _, _ := newTestService(t, 0)
	_, err := svc.Retrieve(context.Background(), "   ", 3, nil)
	assert.Error(t, err)
}

func TestAnswerWithoutContextSkipsGenerator(t *testing.T) {
	svc, _, gen := newTestService(t, 0)

	answer, err := svc.AnswerQuestion(context.Background(), "anything at all", 5)
	require.NoError(t, err)
	assert.Equal(t, NoContextAnswer, answer.Text)
	assert.Empty(t, answer.Sources)
	assert.Zero(t, gen.calls, "empty retrieval must not reach the language model")
}

func TestAnswerDropsLowestRankedWhenOverBudget(t *testing.T) {
	svc, index, gen := newTestService(t, 25)

	require.NoError(t, index.Upsert(context.Background(), []models.IndexEntry{
		entry("doc-a", 0, []float32{1, 0, 0}, strings.Repeat("a", 20)),
		entry("doc-a", 1, []float32{0.9, 0.1, 0}, strings.Repeat("b", 20)),
	}))

	answer, err := svc.AnswerQuestion(context.Background(), "question", 5)
	require.NoError(t, err)
	require.Len(t, answer.Sources, 1)
	assert.Equal(t, 0, answer.Sources[0].Ordinal)
	assert.Contains(t, gen.lastContext, strings.Repeat("a", 20))
	assert.NotContains(t, gen.lastContext, "b")
}

func TestAnswerTruncatesOversizedTopChunk(t *testing.T) {
	svc, index, _ := newTestService(t, 10)

	require.NoError(t, index.Upsert(context.Background(), []models.IndexEntry{
		entry("doc-a", 0, []float32{1, 0, 0}, strings.Repeat("x", 50)),
	}))

	answer, err := svc.AnswerQuestion(context.Background(), "question", 5)
	require.NoError(t, err)
	require.Len(t, answer.Sources, 1)
	assert.Len(t, answer.Sources[0].Text, 10)
}

func TestRetrieveHonorsDocumentFilter(t *testing.T) {
	svc, index, _ := newTestService(t, 0)

	require.NoError(t, index.Upsert(context.Background(), []models.IndexEntry{
		entry("doc-a", 0, []float32{1, 0, 0}, "from a"),
		entry("doc-b", 0, []float32{1, 0, 0}, "from b"),
	}))

	results, err := svc.Retrieve(context.Background(), "anything", 5, &vectorindex.Filter{DocumentID: "doc-b"})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "doc-b", results[0].DocumentID)
}
