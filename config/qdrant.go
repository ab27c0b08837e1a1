package config

import (
	"sync"
	"time"
)

var (
	qdrantOnce   sync.Once
	qdrantConfig *QdrantConfig
)

type QdrantConfig struct {
	URL        string
	APIKey     string
	Collection string
	Timeout    time.Duration
}

func GetQdrantConfig() *QdrantConfig {
	qdrantOnce.Do(func() {
		loadEnv()
		qdrantConfig = &QdrantConfig{
			URL:        getEnv("QDRANT_URL", "http://localhost:6333"),
			APIKey:     getEnv("QDRANT_API_KEY", ""),
			Collection: getEnv("QDRANT_COLLECTION", "knowledge_corpus"),
			Timeout:    getEnvDuration("QDRANT_TIMEOUT", 15*time.Second),
		}
	})
	return qdrantConfig
}
