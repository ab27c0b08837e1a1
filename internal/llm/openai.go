package llm

import (
	"context"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"github.com/corpuskit/knowledge-engine/pkg/logger"
)

const answerSystemPrompt = `You are a precise assistant answering questions from a private knowledge corpus.
Answer using only the provided context passages. If the context does not contain
the answer, say so plainly instead of guessing. Keep answers short and factual.`

const rewriteSystemPrompt = `You rewrite search queries for a semantic retrieval system.
Rewrite the user's query into a single, self-contained search query that keeps
every constraint from the original. Reply with the rewritten query only.`

// OpenAIClient talks to an OpenAI-compatible chat endpoint. It serves both as
// the answer generator and the optional query rewriter.
type OpenAIClient struct {
	client *openai.Client
	model  string
	logger logger.Logger
}

type Config struct {
	BaseURL string
	APIKey  string
	Model   string
}

func NewOpenAIClient(cfg *Config, log logger.Logger) *OpenAIClient {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	return &OpenAIClient{
		client: openai.NewClientWithConfig(clientCfg),
		model:  cfg.Model,
		logger: log,
	}
}

func (c *OpenAIClient) Generate(ctx context.Context, query, contextText string) (string, error) {
	user := fmt.Sprintf("Context passages:\n\n%s\n\nQuestion: %s", contextText, query)
	return c.chat(ctx, answerSystemPrompt, user)
}

func (c *OpenAIClient) Rewrite(ctx context.Context, query string) (string, error) {
	rewritten, err := c.chat(ctx, rewriteSystemPrompt, query)
	if err != nil {
		// Rewriting is an enhancement; fall back to the raw query rather
		// than failing the search.
		c.logger.Warn("query rewrite failed, using raw query", logger.Error(err))
		return query, nil
	}
	rewritten = strings.TrimSpace(rewritten)
	if rewritten == "" {
		return query, nil
	}
	return rewritten, nil
}

func (c *OpenAIClient) chat(ctx context.Context, system, user string) (string, error) {
	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: system},
			{Role: openai.ChatMessageRoleUser, Content: user},
		},
		Temperature: 0,
	})
	if err != nil {
		return "", fmt.Errorf("chat completion failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("chat completion returned no choices")
	}
	return resp.Choices[0].Message.Content, nil
}
