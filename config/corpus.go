package config

import (
	"sync"
	"time"
)

var (
	corpusOnce   sync.Once
	corpusConfig *CorpusConfig
)

// CorpusConfig carries the corpus-wide ingestion and retrieval tunables.
// Dimension is the single embedding dimensionality contract for the whole
// corpus; a vector of any other length is a hard ingestion failure.
type CorpusConfig struct {
	Dimension       int
	ChunkMaxSize    int
	ChunkOverlap    int
	EmbedBatchSize  int
	EmbedRetries    int
	EmbedBackoff    time.Duration
	EmbedConcurrent int
	TopK            int
	ContextBudget   int

	// Auto-fill confidence policy. The blend of similarity, type conformance
	// and query agreement is tunable, not a load-bearing invariant.
	SimilarityWeight  float64
	ConformanceWeight float64
	AgreementWeight   float64
	ConfidenceFloor   float64
	FieldTopK         int
}

func GetCorpusConfig() *CorpusConfig {
	corpusOnce.Do(func() {
		loadEnv()
		corpusConfig = &CorpusConfig{
			Dimension:       getEnvInt("CORPUS_EMBED_DIMENSION", 768),
			ChunkMaxSize:    getEnvInt("CORPUS_CHUNK_MAX_SIZE", 1000),
			ChunkOverlap:    getEnvInt("CORPUS_CHUNK_OVERLAP", 100),
			EmbedBatchSize:  getEnvInt("CORPUS_EMBED_BATCH_SIZE", 16),
			EmbedRetries:    getEnvInt("CORPUS_EMBED_RETRIES", 3),
			EmbedBackoff:    getEnvDuration("CORPUS_EMBED_BACKOFF", 2*time.Second),
			EmbedConcurrent: getEnvInt("CORPUS_EMBED_CONCURRENCY", 4),
			TopK:            getEnvInt("CORPUS_SEARCH_TOP_K", 5),
			ContextBudget:   getEnvInt("CORPUS_CONTEXT_BUDGET", 6000),

			SimilarityWeight:  getEnvFloat("AUTOFILL_SIMILARITY_WEIGHT", 0.6),
			ConformanceWeight: getEnvFloat("AUTOFILL_CONFORMANCE_WEIGHT", 0.25),
			AgreementWeight:   getEnvFloat("AUTOFILL_AGREEMENT_WEIGHT", 0.15),
			ConfidenceFloor:   getEnvFloat("AUTOFILL_CONFIDENCE_FLOOR", 0.3),
			FieldTopK:         getEnvInt("AUTOFILL_FIELD_TOP_K", 3),
		}
	})
	return corpusConfig
}
