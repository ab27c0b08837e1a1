package llm

import (
	"context"
)

// Generator produces a grounded natural-language answer from retrieved
// context. Implementations must answer only from the supplied context.
type Generator interface {
	Generate(ctx context.Context, query, contextText string) (string, error)
}

// Rewriter reformulates a raw user query before retrieval. The identity
// rewriter is used when no language model is configured or rewriting is
// disabled.
type Rewriter interface {
	Rewrite(ctx context.Context, query string) (string, error)
}

// IdentityRewriter returns queries unchanged.
type IdentityRewriter struct{}

func (IdentityRewriter) Rewrite(ctx context.Context, query string) (string, error) {
	return query, nil
}
