package qdrant

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"time"

	"github.com/corpuskit/knowledge-engine/internal/models"
	"github.com/corpuskit/knowledge-engine/internal/vectorindex"
	"github.com/corpuskit/knowledge-engine/pkg/logger"
)

// Index is a minimal REST client to Qdrant using cosine distance. Transport
// failures map to the retryable index-unavailable error so the ingestion
// retry policy can take over.
type Index struct {
	url        string
	apiKey     string
	collection string
	dimension  int
	client     *http.Client
	logger     logger.Logger
}

type Config struct {
	URL        string
	APIKey     string
	Collection string
	Dimension  int
	Timeout    time.Duration
}

func New(cfg *Config, log logger.Logger) *Index {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 15 * time.Second
	}
	return &Index{
		url:        cfg.URL,
		apiKey:     cfg.APIKey,
		collection: cfg.Collection,
		dimension:  cfg.Dimension,
		client:     &http.Client{Timeout: timeout},
		logger:     log,
	}
}

func (q *Index) EnsureReady(ctx context.Context) error {
	body := map[string]any{
		"vectors": map[string]any{
			"size":     q.dimension,
			"distance": "Cosine",
		},
	}
	// Qdrant answers 200 when the collection already exists with the same
	// schema, so this is safe to call on every startup.
	return q.do(ctx, http.MethodPut, fmt.Sprintf("/collections/%s", q.collection), body, nil)
}

func (q *Index) Upsert(ctx context.Context, entries []models.IndexEntry) error {
	if len(entries) == 0 {
		return nil
	}
	points := make([]map[string]any, len(entries))
	for i, e := range entries {
		if len(e.Vector) != q.dimension {
			return fmt.Errorf("%w: entry %s has %d dimensions, index expects %d",
				models.ErrDimensionMismatch, e.ID, len(e.Vector), q.dimension)
		}
		payload := map[string]any{
			"document_id": e.DocumentID,
			"ordinal":     e.Ordinal,
			"text":        e.Text,
		}
		for k, v := range e.Metadata {
			payload[k] = v
		}
		points[i] = map[string]any{
			"id":      e.ID,
			"vector":  e.Vector,
			"payload": payload,
		}
	}
	path := fmt.Sprintf("/collections/%s/points?wait=true", q.collection)
	return q.do(ctx, http.MethodPut, path, map[string]any{"points": points}, nil)
}

func (q *Index) DeleteByDocument(ctx context.Context, documentID string) error {
	path := fmt.Sprintf("/collections/%s/points/delete?wait=true", q.collection)
	body := map[string]any{"filter": documentFilter(documentID)}
	return q.do(ctx, http.MethodPost, path, body, nil)
}

func (q *Index) CountByDocument(ctx context.Context, documentID string) (int, error) {
	path := fmt.Sprintf("/collections/%s/points/count", q.collection)
	body := map[string]any{"filter": documentFilter(documentID), "exact": true}
	var resp struct {
		Result struct {
			Count int `json:"count"`
		} `json:"result"`
	}
	if err := q.do(ctx, http.MethodPost, path, body, &resp); err != nil {
		return 0, err
	}
	return resp.Result.Count, nil
}

func (q *Index) Search(ctx context.Context, vector []float32, topK int, filter *vectorindex.Filter) ([]models.RetrievalResult, error) {
	if topK <= 0 {
		topK = 5
	}
	req := map[string]any{
		"vector":       vector,
		"limit":        topK,
		"with_payload": true,
	}
	if f := searchFilter(filter); f != nil {
		req["filter"] = f
	}

	var resp struct {
		Result []struct {
			Score   float64        `json:"score"`
			Payload map[string]any `json:"payload"`
		} `json:"result"`
	}
	path := fmt.Sprintf("/collections/%s/points/search", q.collection)
	if err := q.do(ctx, http.MethodPost, path, req, &resp); err != nil {
		return nil, err
	}

	results := make([]models.RetrievalResult, 0, len(resp.Result))
	for _, r := range resp.Result {
		item := models.RetrievalResult{Score: r.Score}
		if v, ok := r.Payload["document_id"].(string); ok {
			item.DocumentID = v
		}
		if v, ok := r.Payload["ordinal"].(float64); ok {
			item.Ordinal = int(v)
		}
		if v, ok := r.Payload["text"].(string); ok {
			item.Text = v
		}
		results = append(results, item)
	}

	// Qdrant orders by score only; re-sort with the deterministic
	// tie-break so equal scores always come back in the same order.
	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		if results[i].Ordinal != results[j].Ordinal {
			return results[i].Ordinal < results[j].Ordinal
		}
		return results[i].DocumentID < results[j].DocumentID
	})
	for i := range results {
		results[i].Rank = i
	}
	return results, nil
}

func documentFilter(documentID string) map[string]any {
	return map[string]any{
		"must": []map[string]any{
			{"key": "document_id", "match": map[string]any{"value": documentID}},
		},
	}
}

func searchFilter(filter *vectorindex.Filter) map[string]any {
	if filter == nil {
		return nil
	}
	f := map[string]any{}
	if filter.DocumentID != "" {
		f["must"] = []map[string]any{
			{"key": "document_id", "match": map[string]any{"value": filter.DocumentID}},
		}
	}
	if len(filter.ExcludeDocumentIDs) > 0 {
		mustNot := make([]map[string]any, len(filter.ExcludeDocumentIDs))
		for i, id := range filter.ExcludeDocumentIDs {
			mustNot[i] = map[string]any{"key": "document_id", "match": map[string]any{"value": id}}
		}
		f["must_not"] = mustNot
	}
	if len(f) == 0 {
		return nil
	}
	return f
}

func (q *Index) do(ctx context.Context, method, path string, body, out any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal qdrant request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, method, q.url+path, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("failed to create qdrant request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if q.apiKey != "" {
		req.Header.Set("api-key", q.apiKey)
	}

	resp, err := q.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", models.ErrIndexUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		return fmt.Errorf("%w: qdrant %s %s returned %s", models.ErrIndexUnavailable, method, path, resp.Status)
	}
	if resp.StatusCode >= 300 {
		return fmt.Errorf("qdrant %s %s failed: %s", method, path, resp.Status)
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("failed to decode qdrant response: %w", err)
		}
	}
	return nil
}
