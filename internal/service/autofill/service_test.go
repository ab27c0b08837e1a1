package autofill

import (
	"bytes"
	"context"
	"io"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/corpuskit/knowledge-engine/config"
	"github.com/corpuskit/knowledge-engine/internal/models"
	"github.com/corpuskit/knowledge-engine/internal/store/memstore"
	"github.com/corpuskit/knowledge-engine/internal/vectorindex"
	"github.com/corpuskit/knowledge-engine/pkg/logger"
)

// stubRetriever maps query substrings to canned results.
type stubRetriever struct {
	responses map[string][]models.RetrievalResult
}

func (r *stubRetriever) Retrieve(ctx context.Context, query string, topK int, filter *vectorindex.Filter) ([]models.RetrievalResult, error) {
	for key, results := range r.responses {
		if strings.Contains(strings.ToLower(query), key) {
			return results, nil
		}
	}
	return nil, nil
}

type stubStorage struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func newStubStorage() *stubStorage {
	return &stubStorage{objects: make(map[string][]byte)}
}

func (s *stubStorage) Store(ctx context.Context, reader io.Reader, key string) (string, error) {
	data, _ := io.ReadAll(reader)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[key] = data
	return key, nil
}

func (s *stubStorage) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return io.NopCloser(bytes.NewReader(s.objects[key])), nil
}

func (s *stubStorage) Delete(ctx context.Context, key string) error { return nil }

func testConfig() *config.CorpusConfig {
	return &config.CorpusConfig{
		SimilarityWeight:  0.6,
		ConformanceWeight: 0.25,
		AgreementWeight:   0.15,
		ConfidenceFloor:   0.3,
		FieldTopK:         3,
	}
}

func result(documentID string, ordinal int, score float64, text string) models.RetrievalResult {
	return models.RetrievalResult{DocumentID: documentID, Ordinal: ordinal, Score: score, Text: text}
}

func seedForm(t *testing.T, forms *memstore.FormStore, id string, fields []models.FormField) {
	t.Helper()
	err := forms.Create(context.Background(), &models.FormDocument{
		ID:          id,
		Filename:    id + ".txt",
		ContentType: "text/plain",
	}, fields)
	require.NoError(t, err)
}

func TestGenerateQueriesDeterministic(t *testing.T) {
	field := models.FormField{Name: "Email Address", Type: models.FieldEmail, Context: "primary contact"}

	first := GenerateQueries(field)
	second := GenerateQueries(field)
	assert.Equal(t, first, second)

	require.NotEmpty(t, first)
	assert.Equal(t, "Email Address", first[0])
	assert.Contains(t, first, "contact email")
	assert.Contains(t, first, "Email Address primary contact")
}

func TestGenerateQueriesEmptyName(t *testing.T) {
	assert.Empty(t, GenerateQueries(models.FormField{Name: "   "}))
}

func TestFillExtractsTypedValues(t *testing.T) {
	forms := memstore.NewFormStore()
	seedForm(t, forms, "form-1", []models.FormField{
		{Name: "Date of Birth", Type: models.FieldDate},
		{Name: "Contact Email", Type: models.FieldEmail},
	})

	retriever := &stubRetriever{responses: map[string][]models.RetrievalResult{
		"birth": {result("doc-1", 0, 0.9, "The patient was born on 1984-03-12 in Utrecht.")},
		"email": {result("doc-1", 3, 0.85, "Reach the office at desk@example.org for appointments.")},
	}}

	svc := NewService(forms, newStubStorage(), retriever, testConfig(), logger.NewTestLogger())
	out, err := svc.Fill(context.Background(), "form-1", FillOptions{})
	require.NoError(t, err)

	require.Len(t, out.Fields, 2)
	assert.Equal(t, 2, out.TotalFilled)

	assert.True(t, out.Fields[0].Filled)
	assert.Equal(t, "1984-03-12", out.Fields[0].Value)
	// similarity 0.9*0.6 + conformance 1*0.25 + agreement (2/3)*0.15
	assert.InDelta(t, 0.89, out.Fields[0].Confidence, 0.01)
	require.Len(t, out.Fields[0].Support, 1)
	assert.Equal(t, models.ChunkRef{DocumentID: "doc-1", Ordinal: 0}, out.Fields[0].Support[0])

	assert.True(t, out.Fields[1].Filled)
	assert.Equal(t, "desk@example.org", out.Fields[1].Value)

	// Outcome is persisted on the stored fields.
	fields, err := forms.GetFields(context.Background(), "form-1")
	require.NoError(t, err)
	assert.Equal(t, "1984-03-12", fields[0].Value)
}

func TestFillBelowFloorLeavesFieldEmpty(t *testing.T) {
	forms := memstore.NewFormStore()
	seedForm(t, forms, "form-1", []models.FormField{
		{Name: "Date of Birth", Type: models.FieldDate},
	})

	// No date-shaped value in the retrieved text, so nothing can be filled.
	retriever := &stubRetriever{responses: map[string][]models.RetrievalResult{
		"birth": {result("doc-1", 0, 0.01, "Unrelated text without anything usable.")},
	}}

	svc := NewService(forms, newStubStorage(), retriever, testConfig(), logger.NewTestLogger())
	out, err := svc.Fill(context.Background(), "form-1", FillOptions{})
	require.NoError(t, err)

	require.Len(t, out.Fields, 1)
	assert.False(t, out.Fields[0].Filled)
	assert.Empty(t, out.Fields[0].Value)
	assert.Zero(t, out.Fields[0].Confidence)
	assert.Zero(t, out.TotalFilled)
}

func TestFillConfidenceFloorRejectsWeakCandidates(t *testing.T) {
	forms := memstore.NewFormStore()
	seedForm(t, forms, "form-1", []models.FormField{
		{Name: "Remarks", Type: models.FieldText},
	})

	// An unrelated sentence at zero similarity blends to 0.275 with the
	// default weights, just under the 0.3 floor.
	retriever := &stubRetriever{responses: map[string][]models.RetrievalResult{
		"remarks": {result("doc-1", 0, 0.0, "Completely different subject matter here.")},
	}}

	svc := NewService(forms, newStubStorage(), retriever, testConfig(), logger.NewTestLogger())
	out, err := svc.Fill(context.Background(), "form-1", FillOptions{})
	require.NoError(t, err)

	require.Len(t, out.Fields, 1)
	assert.False(t, out.Fields[0].Filled)
	assert.Empty(t, out.Fields[0].Value)
	assert.Zero(t, out.Fields[0].Confidence)
}

func TestFillNeverOverwritesExistingValue(t *testing.T) {
	forms := memstore.NewFormStore()
	seedForm(t, forms, "form-1", []models.FormField{
		{Name: "Full Name", Type: models.FieldText, Value: "Ada Lovelace", Confidence: 1},
	})

	retriever := &stubRetriever{responses: map[string][]models.RetrievalResult{
		"name": {result("doc-1", 0, 0.99, "The name on file is Grace Hopper.")},
	}}

	svc := NewService(forms, newStubStorage(), retriever, testConfig(), logger.NewTestLogger())
	out, err := svc.Fill(context.Background(), "form-1", FillOptions{})
	require.NoError(t, err)

	require.Len(t, out.Fields, 1)
	assert.False(t, out.Fields[0].Filled)
	assert.Equal(t, "Ada Lovelace", out.Fields[0].Value)

	fields, err := forms.GetFields(context.Background(), "form-1")
	require.NoError(t, err)
	assert.Equal(t, "Ada Lovelace", fields[0].Value)
}

func TestFillMergesAgreementAcrossQueries(t *testing.T) {
	forms := memstore.NewFormStore()
	seedForm(t, forms, "form-1", []models.FormField{
		{Name: "Contact Email", Type: models.FieldEmail},
	})

	// Every query for this field returns the same chunk, so agreement is
	// full and the confidence beats a single-query blend.
	shared := result("doc-1", 2, 0.8, "Contact: someone@example.com")
	retriever := &stubRetriever{responses: map[string][]models.RetrievalResult{
		"email": {shared},
	}}

	svc := NewService(forms, newStubStorage(), retriever, testConfig(), logger.NewTestLogger())
	out, err := svc.Fill(context.Background(), "form-1", FillOptions{})
	require.NoError(t, err)

	require.Len(t, out.Fields, 1)
	require.True(t, out.Fields[0].Filled)
	// similarity 0.8*0.6 + conformance 1*0.25 + agreement 1*0.15 = 0.88
	assert.InDelta(t, 0.88, out.Fields[0].Confidence, 0.001)
}

func TestFillHonorsFieldNameSelection(t *testing.T) {
	forms := memstore.NewFormStore()
	seedForm(t, forms, "form-1", []models.FormField{
		{Name: "Date of Birth", Type: models.FieldDate},
		{Name: "Contact Email", Type: models.FieldEmail},
	})

	retriever := &stubRetriever{responses: map[string][]models.RetrievalResult{
		"birth": {result("doc-1", 0, 0.9, "Born on 1984-03-12.")},
		"email": {result("doc-1", 3, 0.9, "Write to desk@example.org.")},
	}}

	svc := NewService(forms, newStubStorage(), retriever, testConfig(), logger.NewTestLogger())
	out, err := svc.Fill(context.Background(), "form-1", FillOptions{FieldNames: []string{"Contact Email"}})
	require.NoError(t, err)

	require.Len(t, out.Fields, 1)
	assert.Equal(t, "Contact Email", out.Fields[0].Field)
	assert.Equal(t, 1, out.TotalFilled)

	// The skipped field stays empty in the store.
	fields, err := forms.GetFields(context.Background(), "form-1")
	require.NoError(t, err)
	assert.Empty(t, fields[0].Value)
	assert.Equal(t, "desk@example.org", fields[1].Value)
}

func TestRenderProducesFilledCopy(t *testing.T) {
	forms := memstore.NewFormStore()
	objects := newStubStorage()

	original := "Full Name: ____\nNotes stay.\n"
	_, err := objects.Store(context.Background(), strings.NewReader(original), FormKey("form-1"))
	require.NoError(t, err)

	seedForm(t, forms, "form-1", []models.FormField{
		{Name: "Full Name", Type: models.FieldText, Value: "Ada Lovelace"},
	})

	svc := NewService(forms, objects, &stubRetriever{}, testConfig(), logger.NewTestLogger())
	out, contentType, err := svc.Render(context.Background(), "form-1")
	require.NoError(t, err)
	assert.Equal(t, "text/plain", contentType)
	assert.Equal(t, "Full Name: Ada Lovelace\nNotes stay.\n", string(out))

	// The stored original is untouched.
	obj, err := objects.Get(context.Background(), FormKey("form-1"))
	require.NoError(t, err)
	stored, _ := io.ReadAll(obj)
	assert.Equal(t, original, string(stored))
}
