package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"campus-rag-be/internal/constant"
	"campus-rag-be/internal/pkg/logger"
	"campus-rag-be/pkg/events"
	"campus-rag-be/pkg/history"
	"campus-rag-be/pkg/llm"
	"campus-rag-be/pkg/rag/retrieval"
	"campus-rag-be/pkg/rag/route"
	"campus-rag-be/pkg/store"
)

// ErrPipelineNotFound is returned for a tier with no registered strategy.
var ErrPipelineNotFound = errors.New("pipeline not found")

// QueryRewriter folds the recency window into a standalone query.
type QueryRewriter interface {
	Rewrite(ctx context.Context, turns []store.ChatTurn, current string) store.RewrittenQuery
}

type Config struct {
	WindowTurns   int
	FAQCollection string
	FAQThreshold  float64
	GenerateModel string
}

// Orchestrator drives one chat request through rewrite, retrieval, fusion,
// the FAQ short circuit, streamed synthesis, and persistence.
type Orchestrator struct {
	historyStore history.Store
	rewriter     QueryRewriter
	engine       *retrieval.Engine
	strategies   map[string]*route.Strategy
	provider     llm.Provider
	publisher    *events.Publisher
	log          logger.ILogger
	cfg          Config
}

func NewOrchestrator(
	historyStore history.Store,
	rewriter QueryRewriter,
	engine *retrieval.Engine,
	strategies map[string]*route.Strategy,
	provider llm.Provider,
	publisher *events.Publisher,
	log logger.ILogger,
	cfg Config,
) *Orchestrator {
	if cfg.WindowTurns <= 0 {
		cfg.WindowTurns = 6
	}
	if cfg.FAQThreshold <= 0 {
		cfg.FAQThreshold = 0.8
	}
	return &Orchestrator{
		historyStore: historyStore,
		rewriter:     rewriter,
		engine:       engine,
		strategies:   strategies,
		provider:     provider,
		publisher:    publisher,
		log:          log,
		cfg:          cfg,
	}
}

// Run executes the pipeline up to the point where chunks start flowing,
// then hands back the stream. Policy violations reject the request before
// any retrieval work; everything after retrieval degrades in-band.
func (o *Orchestrator) Run(
	ctx context.Context,
	tier string,
	sessionID string,
	rawQuery string,
	user store.UserContext,
) (*AnswerStream, error) {

	strategy, ok := o.strategies[tier]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrPipelineNotFound, tier)
	}

	// REWRITE. An empty window skips the external call entirely.
	window, err := o.historyStore.GetRecentTurns(ctx, sessionID, o.cfg.WindowTurns)
	if err != nil {
		o.log.Error("pipeline", "failed to load recency window", map[string]interface{}{
			"session_id": sessionID,
			"error":      err.Error(),
		})
		window = nil
	}
	rewritten := o.rewriter.Rewrite(ctx, window, rawQuery)
	o.log.Info("pipeline", "query rewritten", map[string]interface{}{
		"session_id": sessionID,
		"tier":       tier,
		"original":   rewritten.OriginalText,
		"rewritten":  rewritten.RewrittenText,
	})

	// The user's raw turn is recorded before retrieval so a downstream
	// crash still leaves an accurate user-visible history.
	if err := o.historyStore.AppendTurn(ctx, sessionID, constant.ChatRoleUser, rawQuery); err != nil {
		o.log.Error("pipeline", "failed to persist user turn", map[string]interface{}{
			"session_id": sessionID,
			"error":      err.Error(),
		})
	}

	// FAQ_CHECK. Curated answers beat generated ones when confidence is
	// high enough, and they cost nothing to serve.
	if strategy.FAQProbe {
		if canned, hit := o.faqShortCircuit(ctx, rewritten.RewrittenText); hit {
			stream := newAnswerStream()
			go o.serveCanned(ctx, stream, tier, sessionID, rawQuery, user, canned)
			return stream, nil
		}
	}

	// RETRIEVE + FUSE.
	docs, err := strategy.Retrieve(ctx, o.engine, rewritten.RewrittenText, user)
	if err != nil {
		return nil, err
	}
	o.log.Info("pipeline", "retrieval complete", map[string]interface{}{
		"session_id": sessionID,
		"tier":       tier,
		"documents":  len(docs),
	})

	// SYNTHESIZE → PERSIST, chunk by chunk.
	prompt := buildPrompt(strategy.PromptTemplate, rewritten.RewrittenText, docs)
	stream := newAnswerStream()
	go o.synthesize(ctx, stream, tier, sessionID, rawQuery, user, prompt)
	return stream, nil
}

// faqShortCircuit asks the FAQ collection for its single best match and
// returns the canonical answer when it clears the similarity bar.
func (o *Orchestrator) faqShortCircuit(ctx context.Context, query string) (string, bool) {
	hits := o.engine.SearchMany(ctx, query, []string{o.cfg.FAQCollection}, 1, nil)
	if len(hits) == 0 {
		return "", false
	}
	best := hits[0]
	if best.Score < o.cfg.FAQThreshold {
		return "", false
	}
	answer := best.Answer()
	if answer == "" {
		return "", false
	}
	o.log.Info("pipeline", "faq short circuit", map[string]interface{}{
		"question": best.Content,
		"score":    best.Score,
	})
	return constant.FAQAnswerPrefix + answer, true
}

func (o *Orchestrator) serveCanned(
	ctx context.Context,
	stream *AnswerStream,
	tier, sessionID, rawQuery string,
	user store.UserContext,
	answer string,
) {
	defer stream.finish()

	forwarded := ""
	if stream.emit(answer) {
		forwarded = answer
	}
	o.persistAnswer(ctx, sessionID, forwarded)
	o.publish(tier, sessionID, rawQuery, user, forwarded, true)
}

func (o *Orchestrator) synthesize(
	ctx context.Context,
	stream *AnswerStream,
	tier, sessionID, rawQuery string,
	user store.UserContext,
	prompt string,
) {
	defer stream.finish()

	var answer strings.Builder

	llmStream, err := o.provider.Stream(ctx, []llm.Message{{Role: "user", Content: prompt}}, llm.WithModel(o.cfg.GenerateModel))
	if err != nil {
		o.log.Error("pipeline", "synthesis failed to start", map[string]interface{}{
			"session_id": sessionID,
			"error":      err.Error(),
		})
		errChunk := synthesisErrorChunk(err)
		if stream.emit(errChunk) {
			answer.WriteString(errChunk)
		}
		o.persistAnswer(ctx, sessionID, answer.String())
		o.publish(tier, sessionID, rawQuery, user, answer.String(), false)
		return
	}
	defer llmStream.Close()

	for {
		chunk, err := llmStream.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			// Mid-stream failure becomes a visible chunk so history never
			// silently diverges from what the user saw. No retries: a
			// repeated generation call is costly and non-idempotent.
			o.log.Error("pipeline", "synthesis stream failed", map[string]interface{}{
				"session_id": sessionID,
				"error":      err.Error(),
			})
			errChunk := synthesisErrorChunk(err)
			if stream.emit(errChunk) {
				answer.WriteString(errChunk)
			}
			break
		}
		if !stream.emit(chunk) {
			// Consumer is gone; persist exactly what it saw.
			break
		}
		answer.WriteString(chunk)
	}

	o.persistAnswer(ctx, sessionID, answer.String())
	o.publish(tier, sessionID, rawQuery, user, answer.String(), false)
}

// persistAnswer appends the assistant turn even when the request context
// is already canceled (client disconnect).
func (o *Orchestrator) persistAnswer(ctx context.Context, sessionID, answer string) {
	persistCtx := context.WithoutCancel(ctx)
	if err := o.historyStore.AppendTurn(persistCtx, sessionID, constant.ChatRoleAssistant, answer); err != nil {
		o.log.Error("pipeline", "failed to persist assistant turn", map[string]interface{}{
			"session_id": sessionID,
			"error":      err.Error(),
		})
	}
}

func (o *Orchestrator) publish(tier, sessionID, rawQuery string, user store.UserContext, answer string, shortCircuit bool) {
	if o.publisher == nil {
		return
	}
	o.publisher.ChatCompleted(events.ChatCompleted{
		UserID:       user.UserID,
		SessionID:    sessionID,
		Tier:         tier,
		QueryChars:   len([]rune(rawQuery)),
		AnswerChars:  len([]rune(answer)),
		ShortCircuit: shortCircuit,
		CompletedAt:  time.Now().UTC(),
	})
}

func synthesisErrorChunk(err error) string {
	return fmt.Sprintf("Answer generation failed: %s", err)
}

// buildPrompt concatenates the ranked documents into one context block and
// interpolates the tier's template.
func buildPrompt(template, question string, docs []store.Document) string {
	parts := make([]string, len(docs))
	for i, d := range docs {
		parts[i] = fmt.Sprintf("[Source: %s] %s", d.Source, d.Content)
	}
	contextStr := strings.Join(parts, "\n\n")

	replacer := strings.NewReplacer(
		"{context}", contextStr,
		"{question}", question,
	)
	return replacer.Replace(template)
}
