package config

import (
	"sync"
	"time"
)

var (
	llmOnce   sync.Once
	llmConfig *LLMConfig
)

// LLMConfig points at an OpenAI-compatible endpoint. An Ollama server works
// unchanged by setting BaseURL to its /v1 endpoint.
type LLMConfig struct {
	BaseURL        string
	APIKey         string
	EmbedModel     string
	ChatModel      string
	Timeout        time.Duration
	RewriteEnabled bool
}

func GetLLMConfig() *LLMConfig {
	llmOnce.Do(func() {
		loadEnv()
		llmConfig = &LLMConfig{
			BaseURL:        getEnv("LLM_BASE_URL", "https://api.openai.com/v1"),
			APIKey:         getEnv("OPENAI_API_KEY", ""),
			EmbedModel:     getEnv("LLM_EMBED_MODEL", "nomic-embed-text"),
			ChatModel:      getEnv("LLM_CHAT_MODEL", "gpt-4o-mini"),
			Timeout:        getEnvDuration("LLM_TIMEOUT", 60*time.Second),
			RewriteEnabled: getEnvBool("LLM_QUERY_REWRITE", false),
		}
	})
	return llmConfig
}
