package retrieval

import (
	"context"
	"fmt"
	"strings"

	"github.com/corpuskit/knowledge-engine/config"
	"github.com/corpuskit/knowledge-engine/internal/embedding"
	"github.com/corpuskit/knowledge-engine/internal/llm"
	"github.com/corpuskit/knowledge-engine/internal/models"
	"github.com/corpuskit/knowledge-engine/internal/vectorindex"
	"github.com/corpuskit/knowledge-engine/pkg/logger"
)

// NoContextAnswer is returned by Answer when retrieval finds nothing; the
// language model is never called in that case.
const NoContextAnswer = "No supporting context was found in the knowledge corpus for this question."

// Answer bundles a generated answer with the chunks that grounded it.
type Answer struct {
	Query   string                   `json:"query"`
	Text    string                   `json:"text"`
	Sources []models.RetrievalResult `json:"sources"`
}

// Service answers semantic queries over the corpus. Retrieval is
// deterministic for a fixed index state; only the generated answer text may
// vary between calls.
type Service struct {
	embedder embedding.Client
	index    vectorindex.Index
	rewriter llm.Rewriter
	genAI    llm.Generator
	cfg      *config.CorpusConfig
	logger   logger.Logger
}

func NewService(
	embedder embedding.Client,
	index vectorindex.Index,
	rewriter llm.Rewriter,
	generator llm.Generator,
	cfg *config.CorpusConfig,
	log logger.Logger,
) *Service {
	return &Service{
		embedder: embedder,
		index:    index,
		rewriter: rewriter,
		genAI:    generator,
		cfg:      cfg,
		logger:   log,
	}
}

// Retrieve embeds the query and returns the topK nearest chunks. topK <= 0
// falls back to the configured default.
func (s *Service) Retrieve(ctx context.Context, query string, topK int, filter *vectorindex.Filter) ([]models.RetrievalResult, error) {
	if strings.TrimSpace(query) == "" {
		return nil, fmt.Errorf("query must not be empty")
	}
	if topK <= 0 {
		topK = s.cfg.TopK
	}

	rewritten, err := s.rewriter.Rewrite(ctx, query)
	if err != nil {
		rewritten = query
	}

	vector, err := s.embedder.EmbedQuery(ctx, rewritten)
	if err != nil {
		return nil, err
	}

	results, err := s.index.Search(ctx, vector, topK, filter)
	if err != nil {
		return nil, err
	}

	s.logger.Debug("Retrieved chunks",
		logger.String("query", rewritten),
		logger.Int("results", len(results)),
	)
	return results, nil
}

// AnswerQuestion retrieves context for the query and generates a grounded
// answer from it. Chunks are packed into the context budget in rank order;
// when the budget is exceeded the lowest-ranked chunks are dropped first.
func (s *Service) AnswerQuestion(ctx context.Context, query string, topK int) (*Answer, error) {
	results, err := s.Retrieve(ctx, query, topK, nil)
	if err != nil {
		return nil, err
	}

	if len(results) == 0 {
		return &Answer{Query: query, Text: NoContextAnswer}, nil
	}

	packed := packContext(results, s.cfg.ContextBudget)
	contextText := buildContextText(packed)

	text, err := s.genAI.Generate(ctx, query, contextText)
	if err != nil {
		return nil, fmt.Errorf("answer generation failed: %w", err)
	}

	return &Answer{Query: query, Text: text, Sources: packed}, nil
}

// packContext keeps the highest-ranked chunks whose combined text fits the
// rune budget. The first chunk is always kept, truncated if necessary, so an
// oversized top hit cannot produce an empty context.
func packContext(results []models.RetrievalResult, budget int) []models.RetrievalResult {
	if budget <= 0 {
		return results
	}

	packed := make([]models.RetrievalResult, 0, len(results))
	used := 0
	for i, r := range results {
		size := len([]rune(r.Text))
		if used+size > budget {
			if i == 0 {
				r.Text = string([]rune(r.Text)[:budget])
				packed = append(packed, r)
			}
			break
		}
		used += size
		packed = append(packed, r)
	}
	return packed
}

func buildContextText(results []models.RetrievalResult) string {
	var sb strings.Builder
	for i, r := range results {
		if i > 0 {
			sb.WriteString("\n\n")
		}
		sb.WriteString(fmt.Sprintf("[%d] %s", i+1, r.Text))
	}
	return sb.String()
}
