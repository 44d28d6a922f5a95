package rewrite

import (
	"context"
	"strings"

	"campus-rag-be/internal/constant"
	"campus-rag-be/internal/pkg/logger"
	"campus-rag-be/pkg/llm"
	"campus-rag-be/pkg/store"
)

// Rewriter turns the latest question plus the recency window into one
// standalone search query. It never fails the request: an empty window is
// a no-op and model errors degrade to the raw question.
type Rewriter struct {
	provider llm.Provider
	model    string
	log      logger.ILogger
}

func NewRewriter(provider llm.Provider, model string, log logger.ILogger) *Rewriter {
	return &Rewriter{
		provider: provider,
		model:    model,
		log:      log,
	}
}

func (r *Rewriter) Rewrite(ctx context.Context, history []store.ChatTurn, current string) store.RewrittenQuery {
	result := store.RewrittenQuery{
		OriginalText:  current,
		RewrittenText: current,
	}
	if len(history) == 0 {
		return result
	}

	messages := make([]llm.Message, 0, len(history)+2)
	messages = append(messages, llm.Message{Role: "system", Content: constant.RewriteSystemPrompt})
	for _, turn := range history {
		messages = append(messages, llm.Message{Role: turn.Role, Content: turn.Content})
	}
	messages = append(messages, llm.Message{Role: "user", Content: current})

	rewritten, err := r.provider.Chat(ctx, messages, llm.WithModel(r.model), llm.WithTemperature(0.1))
	if err != nil {
		r.log.Warn("rewrite", "query rewrite failed, using raw query", map[string]interface{}{
			"error": err.Error(),
		})
		return result
	}

	rewritten = strings.TrimSpace(rewritten)
	if rewritten != "" {
		result.RewrittenText = rewritten
	}
	return result
}
