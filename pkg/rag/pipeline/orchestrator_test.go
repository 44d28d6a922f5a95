package pipeline

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"

	"campus-rag-be/internal/config"
	"campus-rag-be/internal/constant"
	"campus-rag-be/internal/pkg/logger"
	"campus-rag-be/internal/repository/contract"
	"campus-rag-be/pkg/llm"
	"campus-rag-be/pkg/rag/retrieval"
	"campus-rag-be/pkg/rag/route"
	"campus-rag-be/pkg/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recorder tracks the order of side effects across the fakes.
type recorder struct {
	mu     sync.Mutex
	events []string
}

func (r *recorder) add(event string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
}

func (r *recorder) list() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.events))
	copy(out, r.events)
	return out
}

type fakeHistory struct {
	mu     sync.Mutex
	rec    *recorder
	window []store.ChatTurn
	turns  []store.ChatTurn
}

func (f *fakeHistory) GetRecentTurns(_ context.Context, _ string, _ int) ([]store.ChatTurn, error) {
	return f.window, nil
}

func (f *fakeHistory) AppendTurn(_ context.Context, _ string, role, content string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.rec != nil {
		f.rec.add("append:" + role)
	}
	f.turns = append(f.turns, store.ChatTurn{Role: role, Content: content})
	return nil
}

func (f *fakeHistory) persisted() []store.ChatTurn {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]store.ChatTurn, len(f.turns))
	copy(out, f.turns)
	return out
}

func (f *fakeHistory) CreateSession(context.Context, string, string, string) (string, error) {
	return "", nil
}
func (f *fakeHistory) BindSession(context.Context, string, string, string, string) error { return nil }
func (f *fakeHistory) GetSessionType(context.Context, string, string) (string, bool, error) {
	return "", false, nil
}
func (f *fakeHistory) DeleteSession(context.Context, string, string) (bool, error) {
	return false, nil
}
func (f *fakeHistory) ListSessions(context.Context, string, string) ([]store.SessionMeta, error) {
	return nil, nil
}
func (f *fakeHistory) SetTitle(context.Context, string, string, string) error { return nil }

type passthroughRewriter struct {
	sawWindow []store.ChatTurn
}

func (p *passthroughRewriter) Rewrite(_ context.Context, turns []store.ChatTurn, current string) store.RewrittenQuery {
	p.sawWindow = turns
	return store.RewrittenQuery{OriginalText: current, RewrittenText: current}
}

type pipelineIndex struct {
	rec  *recorder
	hits map[string][]*contract.RawHit
}

func (p *pipelineIndex) HasCollection(_ context.Context, name string) (bool, error) {
	_, ok := p.hits[name]
	return ok, nil
}

func (p *pipelineIndex) SimilaritySearch(_ context.Context, collection string, _ []float32, _ int, _ map[string]string) ([]*contract.RawHit, error) {
	if p.rec != nil {
		p.rec.add("search:" + collection)
	}
	return p.hits[collection], nil
}

type pipelineEmbedder struct{}

func (pipelineEmbedder) Embed(context.Context, string) ([]float32, error) {
	return []float32{1, 0}, nil
}

type pipelineKeywords struct{}

func (pipelineKeywords) Extract(string) []string { return nil }

// scriptedStream replays chunks, then its terminal error (io.EOF on clean
// completion).
type scriptedStream struct {
	chunks []string
	err    error
	pos    int
}

func (s *scriptedStream) Recv() (string, error) {
	if s.pos >= len(s.chunks) {
		if s.err != nil {
			return "", s.err
		}
		return "", io.EOF
	}
	chunk := s.chunks[s.pos]
	s.pos++
	return chunk, nil
}

func (s *scriptedStream) Close() error { return nil }

type scriptedProvider struct {
	mu          sync.Mutex
	stream      *scriptedStream
	streamErr   error
	streamCalls int
	lastPrompt  string
}

func (s *scriptedProvider) Chat(context.Context, []llm.Message, ...llm.Option) (string, error) {
	return "", errors.New("not used")
}

func (s *scriptedProvider) Stream(_ context.Context, history []llm.Message, _ ...llm.Option) (llm.Stream, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.streamCalls++
	if len(history) > 0 {
		s.lastPrompt = history[len(history)-1].Content
	}
	if s.streamErr != nil {
		return nil, s.streamErr
	}
	return s.stream, nil
}

func (s *scriptedProvider) calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.streamCalls
}

func ragTestConfig() config.RagConfig {
	return config.RagConfig{
		CollectionFAQ:      "rag_faq",
		CollectionStandard: "rag_standard",
		CollectionResearch: "rag_knowledge",
		CollectionInternal: "rag_internal",
		CollectionPersonal: "rag_person_info",
	}
}

func newTestOrchestrator(hist *fakeHistory, rew QueryRewriter, index contract.VectorIndexRepository, provider llm.Provider) *Orchestrator {
	engine := retrieval.NewEngine(index, pipelineEmbedder{}, pipelineKeywords{}, 0.6, logger.NewNop())
	return NewOrchestrator(
		hist,
		rew,
		engine,
		route.NewRegistry(ragTestConfig()),
		provider,
		nil,
		logger.NewNop(),
		Config{WindowTurns: 6, FAQCollection: "rag_faq", FAQThreshold: 0.8, GenerateModel: "test-model"},
	)
}

func drain(t *testing.T, stream *AnswerStream) string {
	t.Helper()
	var sb strings.Builder
	for {
		chunk, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			return sb.String()
		}
		require.NoError(t, err)
		sb.WriteString(chunk)
	}
}

func TestRunUnknownTier(t *testing.T) {
	orch := newTestOrchestrator(&fakeHistory{}, &passthroughRewriter{}, &pipelineIndex{}, &scriptedProvider{})

	_, err := orch.Run(context.Background(), "no_such_tier", "s1", "hello", store.UserContext{UserRole: "guest"})

	require.ErrorIs(t, err, ErrPipelineNotFound)
}

func TestRunStreamsAndPersistsAnswer(t *testing.T) {
	rec := &recorder{}
	hist := &fakeHistory{rec: rec}
	index := &pipelineIndex{rec: rec, hits: map[string][]*contract.RawHit{
		"rag_standard": {
			{ID: "s1", Score: 0.9, Fields: map[string]interface{}{"content": "The library opens at 8:00.", "source": "handbook"}},
		},
	}}
	provider := &scriptedProvider{stream: &scriptedStream{chunks: []string{"The library ", "opens at 8:00."}}}
	orch := newTestOrchestrator(hist, &passthroughRewriter{}, index, provider)

	stream, err := orch.Run(context.Background(), constant.TierPublic, "s1", "when does the library open", store.UserContext{UserID: "guest", UserRole: "guest"})
	require.NoError(t, err)

	answer := drain(t, stream)

	assert.Equal(t, "The library opens at 8:00.", answer)
	assert.Equal(t, 1, provider.calls())
	assert.Contains(t, provider.lastPrompt, "[Source: handbook] The library opens at 8:00.")
	assert.Contains(t, provider.lastPrompt, "when does the library open")

	turns := hist.persisted()
	require.Len(t, turns, 2)
	assert.Equal(t, constant.ChatRoleUser, turns[0].Role)
	assert.Equal(t, "when does the library open", turns[0].Content)
	assert.Equal(t, constant.ChatRoleAssistant, turns[1].Role)
	assert.Equal(t, answer, turns[1].Content, "persisted answer must equal the streamed chunks")
}

func TestRunAppendsUserTurnBeforeRetrieval(t *testing.T) {
	rec := &recorder{}
	hist := &fakeHistory{rec: rec}
	index := &pipelineIndex{rec: rec, hits: map[string][]*contract.RawHit{"rag_standard": {}}}
	provider := &scriptedProvider{stream: &scriptedStream{chunks: []string{"ok"}}}
	orch := newTestOrchestrator(hist, &passthroughRewriter{}, index, provider)

	stream, err := orch.Run(context.Background(), constant.TierPublic, "s1", "q", store.UserContext{UserID: "guest", UserRole: "guest"})
	require.NoError(t, err)
	drain(t, stream)

	events := rec.list()
	userIdx, searchIdx := -1, -1
	for i, ev := range events {
		if ev == "append:user" && userIdx == -1 {
			userIdx = i
		}
		if ev == "search:rag_standard" && searchIdx == -1 {
			searchIdx = i
		}
	}
	require.GreaterOrEqual(t, userIdx, 0)
	require.GreaterOrEqual(t, searchIdx, 0)
	assert.Less(t, userIdx, searchIdx, "user turn must be recorded before retrieval")
}

func TestRunFAQShortCircuit(t *testing.T) {
	hist := &fakeHistory{}
	index := &pipelineIndex{hits: map[string][]*contract.RawHit{
		"rag_faq": {
			{ID: "f1", Score: 0.93, Fields: map[string]interface{}{
				"content": "What are the library opening hours?",
				"answer":  "8:00-22:00 on weekdays.",
			}},
		},
		"rag_standard": {},
	}}
	provider := &scriptedProvider{stream: &scriptedStream{chunks: []string{"never"}}}
	orch := newTestOrchestrator(hist, &passthroughRewriter{}, index, provider)

	stream, err := orch.Run(context.Background(), constant.TierPublic, "s1", "library hours?", store.UserContext{UserID: "guest", UserRole: "guest"})
	require.NoError(t, err)

	answer := drain(t, stream)

	assert.Equal(t, constant.FAQAnswerPrefix+"8:00-22:00 on weekdays.", answer)
	assert.Equal(t, 0, provider.calls(), "short circuit must skip synthesis entirely")

	turns := hist.persisted()
	require.Len(t, turns, 2)
	assert.Equal(t, answer, turns[1].Content)
}

func TestRunFAQBelowThresholdFallsThrough(t *testing.T) {
	hist := &fakeHistory{}
	index := &pipelineIndex{hits: map[string][]*contract.RawHit{
		"rag_faq": {
			{ID: "f1", Score: 0.5, Fields: map[string]interface{}{
				"content": "What are the library opening hours?",
				"answer":  "8:00-22:00 on weekdays.",
			}},
		},
		"rag_standard": {},
	}}
	provider := &scriptedProvider{stream: &scriptedStream{chunks: []string{"generated answer"}}}
	orch := newTestOrchestrator(hist, &passthroughRewriter{}, index, provider)

	stream, err := orch.Run(context.Background(), constant.TierPublic, "s1", "library hours?", store.UserContext{UserID: "guest", UserRole: "guest"})
	require.NoError(t, err)

	answer := drain(t, stream)

	assert.Equal(t, "generated answer", answer)
	assert.Equal(t, 1, provider.calls())
}

func TestRunNonPublicTierSkipsFAQProbe(t *testing.T) {
	hist := &fakeHistory{}
	index := &pipelineIndex{hits: map[string][]*contract.RawHit{
		"rag_faq": {
			{ID: "f1", Score: 0.99, Fields: map[string]interface{}{"content": "q", "answer": "canned"}},
		},
		"rag_standard":  {},
		"rag_knowledge": {},
	}}
	provider := &scriptedProvider{stream: &scriptedStream{chunks: []string{"from the literature"}}}
	orch := newTestOrchestrator(hist, &passthroughRewriter{}, index, provider)

	stream, err := orch.Run(context.Background(), constant.TierAcademic, "s1", "transformers", store.UserContext{UserID: "u1", UserRole: "scholar"})
	require.NoError(t, err)

	answer := drain(t, stream)

	assert.Equal(t, "from the literature", answer)
	assert.Equal(t, 1, provider.calls())
}

func TestRunPolicyViolationRejectsBeforeStreaming(t *testing.T) {
	hist := &fakeHistory{}
	index := &pipelineIndex{hits: map[string][]*contract.RawHit{"rag_person_info": {}}}
	provider := &scriptedProvider{}
	orch := newTestOrchestrator(hist, &passthroughRewriter{}, index, provider)

	// No user id: personal retrieval must be refused, not degraded.
	_, err := orch.Run(context.Background(), constant.TierPersonal, "s1", "my gpa", store.UserContext{UserRole: "student"})

	require.ErrorIs(t, err, route.ErrPolicyViolation)
	assert.Equal(t, 0, provider.calls())
}

func TestRunMidStreamErrorBecomesVisibleChunk(t *testing.T) {
	hist := &fakeHistory{}
	index := &pipelineIndex{hits: map[string][]*contract.RawHit{"rag_standard": {}}}
	provider := &scriptedProvider{stream: &scriptedStream{
		chunks: []string{"partial answer "},
		err:    errors.New("upstream closed"),
	}}
	orch := newTestOrchestrator(hist, &passthroughRewriter{}, index, provider)

	stream, err := orch.Run(context.Background(), constant.TierPublic, "s1", "q", store.UserContext{UserID: "guest", UserRole: "guest"})
	require.NoError(t, err)

	answer := drain(t, stream)

	assert.Equal(t, "partial answer Answer generation failed: upstream closed", answer)

	turns := hist.persisted()
	require.Len(t, turns, 2)
	assert.Equal(t, answer, turns[1].Content, "history must match exactly what the consumer saw")
}

func TestRunStartupErrorBecomesVisibleChunk(t *testing.T) {
	hist := &fakeHistory{}
	index := &pipelineIndex{hits: map[string][]*contract.RawHit{"rag_standard": {}}}
	provider := &scriptedProvider{streamErr: errors.New("model unavailable")}
	orch := newTestOrchestrator(hist, &passthroughRewriter{}, index, provider)

	stream, err := orch.Run(context.Background(), constant.TierPublic, "s1", "q", store.UserContext{UserID: "guest", UserRole: "guest"})
	require.NoError(t, err)

	answer := drain(t, stream)

	assert.Equal(t, "Answer generation failed: model unavailable", answer)
}

func TestRunPassesWindowToRewriter(t *testing.T) {
	window := []store.ChatTurn{
		{Role: "user", Content: "who teaches distributed systems"},
		{Role: "assistant", Content: "Professor Li."},
	}
	hist := &fakeHistory{window: window}
	index := &pipelineIndex{hits: map[string][]*contract.RawHit{"rag_standard": {}}}
	provider := &scriptedProvider{stream: &scriptedStream{chunks: []string{"ok"}}}
	rew := &passthroughRewriter{}
	orch := newTestOrchestrator(hist, rew, index, provider)

	stream, err := orch.Run(context.Background(), constant.TierPublic, "s1", "what about their office hours", store.UserContext{UserID: "guest", UserRole: "guest"})
	require.NoError(t, err)
	drain(t, stream)

	assert.Equal(t, window, rew.sawWindow)
}
