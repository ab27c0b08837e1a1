package autofill

import (
	"context"
	"io"
	"sort"

	"github.com/corpuskit/knowledge-engine/config"
	"github.com/corpuskit/knowledge-engine/internal/formio"
	"github.com/corpuskit/knowledge-engine/internal/models"
	"github.com/corpuskit/knowledge-engine/internal/store"
	"github.com/corpuskit/knowledge-engine/internal/vectorindex"
	"github.com/corpuskit/knowledge-engine/pkg/logger"
	"github.com/corpuskit/knowledge-engine/pkg/storage"
)

// Retriever is the slice of the retrieval pipeline auto-fill depends on.
type Retriever interface {
	Retrieve(ctx context.Context, query string, topK int, filter *vectorindex.Filter) ([]models.RetrievalResult, error)
}

// Service fills form fields from the knowledge corpus. For each empty field
// it generates queries, retrieves candidate chunks, extracts a typed value
// and scores its confidence. Fields whose confidence stays under the floor
// are left empty rather than guessed, and the source form is never modified;
// filled output is produced as a separate rendering.
type Service struct {
	forms     store.FormStore
	storage   storage.Storage
	retriever Retriever
	cfg       *config.CorpusConfig
	logger    logger.Logger
}

func NewService(
	forms store.FormStore,
	objStorage storage.Storage,
	retriever Retriever,
	cfg *config.CorpusConfig,
	log logger.Logger,
) *Service {
	return &Service{
		forms:     forms,
		storage:   objStorage,
		retriever: retriever,
		cfg:       cfg,
		logger:    log,
	}
}

// candidate is a retrieved chunk annotated with how many of the field's
// queries agreed on it.
type candidate struct {
	result    models.RetrievalResult
	agreement int
}

// FillOptions narrows and steers a fill run. An empty FieldNames list means
// every field; Guidance is extra context folded into query generation.
type FillOptions struct {
	FieldNames []string
	Guidance   string
}

// Fill runs auto-fill for every empty field of the form and persists the
// outcome on the stored fields. Fields that already carry a value are
// reported as-is and never overwritten.
func (s *Service) Fill(ctx context.Context, formID string, opts FillOptions) (*models.AutoFillResult, error) {
	fields, err := s.forms.GetFields(ctx, formID)
	if err != nil {
		return nil, err
	}

	wanted := make(map[string]bool, len(opts.FieldNames))
	for _, name := range opts.FieldNames {
		wanted[name] = true
	}

	result := &models.AutoFillResult{FormID: formID, Fields: make([]models.FieldFill, 0, len(fields))}
	var confidenceSum float64
	scored := 0

	for i, field := range fields {
		if len(wanted) > 0 && !wanted[field.Name] {
			continue
		}
		if field.Value != "" {
			result.Fields = append(result.Fields, models.FieldFill{
				Field:      field.Name,
				Type:       field.Type,
				Value:      field.Value,
				Filled:     false,
				Confidence: field.Confidence,
			})
			continue
		}

		if opts.Guidance != "" {
			if field.Context != "" {
				field.Context += " "
			}
			field.Context += opts.Guidance
		}
		fill, err := s.fillField(ctx, field)
		if err != nil {
			return nil, err
		}
		result.Fields = append(result.Fields, *fill)
		confidenceSum += fill.Confidence
		scored++

		if fill.Filled {
			result.TotalFilled++
			fields[i].Value = fill.Value
			fields[i].Confidence = fill.Confidence
		}
	}

	if scored > 0 {
		result.AverageConfidence = confidenceSum / float64(scored)
	}

	if err := s.forms.SetFields(ctx, formID, fields); err != nil {
		return nil, err
	}

	s.logger.Info("Auto-fill completed",
		logger.String("formId", formID),
		logger.Int("filled", result.TotalFilled),
		logger.Float64("averageConfidence", result.AverageConfidence),
	)
	return result, nil
}

func (s *Service) fillField(ctx context.Context, field models.FormField) (*models.FieldFill, error) {
	queries := GenerateQueries(field)
	fill := &models.FieldFill{
		Field:   field.Name,
		Type:    field.Type,
		Queries: queries,
	}
	if len(queries) == 0 {
		return fill, nil
	}

	candidates, err := s.gather(ctx, queries)
	if err != nil {
		return nil, err
	}

	for _, c := range candidates {
		value, conformance := extractValue(field.Type, field.Name, c.result.Text)
		if value == "" {
			continue
		}

		similarity := clamp01(c.result.Score)
		agreement := float64(c.agreement) / float64(len(queries))
		confidence := clamp01(s.cfg.SimilarityWeight*similarity +
			s.cfg.ConformanceWeight*conformance +
			s.cfg.AgreementWeight*agreement)

		if confidence < s.cfg.ConfidenceFloor {
			continue
		}

		fill.Value = value
		fill.Filled = true
		fill.Confidence = confidence
		fill.Support = []models.ChunkRef{c.result.Ref()}
		return fill, nil
	}

	// Nothing cleared the floor: leave the field empty with zero confidence.
	return fill, nil
}

// gather runs every query and merges the hits, deduplicating by chunk
// identity. A chunk returned by several queries keeps its best similarity and
// counts each query as agreement.
func (s *Service) gather(ctx context.Context, queries []string) ([]candidate, error) {
	merged := make(map[models.ChunkRef]*candidate)
	for _, query := range queries {
		results, err := s.retriever.Retrieve(ctx, query, s.cfg.FieldTopK, nil)
		if err != nil {
			return nil, err
		}
		for _, r := range results {
			ref := r.Ref()
			if existing, ok := merged[ref]; ok {
				existing.agreement++
				if r.Score > existing.result.Score {
					existing.result = r
				}
				continue
			}
			merged[ref] = &candidate{result: r, agreement: 1}
		}
	}

	candidates := make([]candidate, 0, len(merged))
	for _, c := range merged {
		candidates = append(candidates, *c)
	}
	sort.Slice(candidates, func(i, j int) bool {
		a, b := candidates[i].result, candidates[j].result
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if a.Ordinal != b.Ordinal {
			return a.Ordinal < b.Ordinal
		}
		return a.DocumentID < b.DocumentID
	})
	return candidates, nil
}

// Render produces the filled copy of the form document from its stored bytes
// and persisted field values. The stored original stays untouched.
func (s *Service) Render(ctx context.Context, formID string) ([]byte, string, error) {
	form, err := s.forms.Get(ctx, formID)
	if err != nil {
		return nil, "", err
	}
	fields, err := s.forms.GetFields(ctx, formID)
	if err != nil {
		return nil, "", err
	}

	obj, err := s.storage.Get(ctx, FormKey(formID))
	if err != nil {
		return nil, "", err
	}
	defer obj.Close()
	data, err := io.ReadAll(obj)
	if err != nil {
		return nil, "", err
	}

	fills := make([]models.FieldFill, 0, len(fields))
	for _, f := range fields {
		if f.Value == "" {
			continue
		}
		fills = append(fills, models.FieldFill{
			Field:  f.Name,
			Type:   f.Type,
			Value:  f.Value,
			Filled: true,
		})
	}

	out, err := formio.WriteValues(data, form.ContentType, fills)
	if err != nil {
		return nil, "", err
	}
	return out, form.ContentType, nil
}

// FormKey is the object-storage key for a form's raw bytes, namespaced away
// from corpus documents.
func FormKey(formID string) string {
	return "form/" + formID
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
