package retrieval

import (
	"context"
	"errors"
	"math"
	"testing"

	"campus-rag-be/internal/pkg/logger"
	"campus-rag-be/internal/repository/contract"
	"campus-rag-be/pkg/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeEmbedder struct {
	err   error
	calls int
}

func (f *fakeEmbedder) Embed(_ context.Context, _ string) ([]float32, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return []float32{0.1, 0.2, 0.3}, nil
}

type fakeIndex struct {
	collections map[string][]*contract.RawHit
	searchErr   map[string]error
	calls       []string
	lastFilter  map[string]string
}

func (f *fakeIndex) HasCollection(_ context.Context, name string) (bool, error) {
	_, ok := f.collections[name]
	return ok, nil
}

func (f *fakeIndex) SimilaritySearch(_ context.Context, collection string, _ []float32, topK int, filter map[string]string) ([]*contract.RawHit, error) {
	f.calls = append(f.calls, collection)
	f.lastFilter = filter
	if err := f.searchErr[collection]; err != nil {
		return nil, err
	}
	hits := f.collections[collection]
	if len(hits) > topK {
		hits = hits[:topK]
	}
	return hits, nil
}

type fakeKeywords struct {
	tokens []string
}

func (f *fakeKeywords) Extract(string) []string { return f.tokens }

func newTestEngine(index contract.VectorIndexRepository, embedder *fakeEmbedder, keywords KeywordSource) *Engine {
	return NewEngine(index, embedder, keywords, 0.6, logger.NewNop())
}

func TestSearchManyFlattensAndSorts(t *testing.T) {
	index := &fakeIndex{
		collections: map[string][]*contract.RawHit{
			"rag_standard": {
				{ID: "a", Score: 0.4, Fields: map[string]interface{}{"content": "library hours"}},
			},
			"rag_knowledge": {
				{ID: "b", Score: 0.9, Fields: map[string]interface{}{"content": "transformer paper"}},
				{ID: "c", Score: 0.2, Fields: map[string]interface{}{"content": "dense retrieval"}},
			},
		},
	}
	embedder := &fakeEmbedder{}
	engine := newTestEngine(index, embedder, &fakeKeywords{})

	docs := engine.SearchMany(context.Background(), "q", []string{"rag_standard", "rag_knowledge"}, 10, nil)

	require.Len(t, docs, 3)
	assert.Equal(t, []string{"b", "a", "c"}, []string{docs[0].ID, docs[1].ID, docs[2].ID})
	assert.Equal(t, 1, embedder.calls, "query must be embedded exactly once")
}

func TestSearchManySkipsMissingAndFailingCollections(t *testing.T) {
	index := &fakeIndex{
		collections: map[string][]*contract.RawHit{
			"rag_standard": {
				{ID: "a", Score: 0.5, Fields: map[string]interface{}{"content": "ok"}},
			},
			"rag_internal": {
				{ID: "x", Score: 0.9, Fields: map[string]interface{}{"content": "never returned"}},
			},
		},
		searchErr: map[string]error{"rag_internal": errors.New("index offline")},
	}
	engine := newTestEngine(index, &fakeEmbedder{}, &fakeKeywords{})

	docs := engine.SearchMany(context.Background(), "q", []string{"rag_standard", "no_such_collection", "rag_internal"}, 10, nil)

	require.Len(t, docs, 1)
	assert.Equal(t, "a", docs[0].ID)
	// The unregistered collection is never searched.
	assert.NotContains(t, index.calls, "no_such_collection")
}

func TestSearchManyEmbeddingFailureReturnsNothing(t *testing.T) {
	index := &fakeIndex{
		collections: map[string][]*contract.RawHit{
			"rag_standard": {{ID: "a", Score: 0.5, Fields: map[string]interface{}{"content": "ok"}}},
		},
	}
	engine := newTestEngine(index, &fakeEmbedder{err: errors.New("quota exceeded")}, &fakeKeywords{})

	docs := engine.SearchMany(context.Background(), "q", []string{"rag_standard"}, 10, nil)

	assert.Empty(t, docs)
	assert.Empty(t, index.calls, "no index call without a query vector")
}

func TestSearchManyTypesFAQHits(t *testing.T) {
	index := &fakeIndex{
		collections: map[string][]*contract.RawHit{
			"rag_faq": {
				{ID: "f1", Score: 0.9, Fields: map[string]interface{}{
					"content": "What are the library opening hours?",
					"answer":  "8:00-22:00 on weekdays.",
					"source":  "library_faq",
				}},
			},
		},
	}
	engine := newTestEngine(index, &fakeEmbedder{}, &fakeKeywords{})

	docs := engine.SearchMany(context.Background(), "q", []string{"rag_faq"}, 1, nil)

	require.Len(t, docs, 1)
	assert.True(t, docs[0].IsFAQ())
	assert.Equal(t, "8:00-22:00 on weekdays.", docs[0].Answer())
	assert.Equal(t, "library_faq", docs[0].Source)
	assert.Equal(t, true, docs[0].Metadata["is_faq"])
}

func TestFuseBlendsSimilarityAndCoverage(t *testing.T) {
	// Similarities 0.9 / 0.5 / 0.1 normalize to 1.0 / 0.5 / 0.0. With two
	// keywords the contents below cover 0, 1 and 0.5 of them, so the fused
	// scores land at 0.6, 0.7 and 0.2: the best lexical match overtakes the
	// best vector match.
	candidates := []store.Document{
		{ID: "1", Content: "nothing relevant here", Score: 0.9},
		{ID: "2", Content: "library hours posted", Score: 0.5},
		{ID: "3", Content: "library closed today", Score: 0.1},
	}
	engine := newTestEngine(&fakeIndex{}, &fakeEmbedder{}, &fakeKeywords{tokens: []string{"library", "hours"}})

	fused := engine.Fuse("library hours", candidates, 3)

	require.Len(t, fused, 3)
	assert.Equal(t, []string{"2", "1", "3"}, []string{fused[0].ID, fused[1].ID, fused[2].ID})
	assert.InDelta(t, 0.7, fused[0].Score, 1e-9)
	assert.InDelta(t, 0.6, fused[1].Score, 1e-9)
	assert.InDelta(t, 0.2, fused[2].Score, 1e-9)
}

func TestFuseWithoutKeywordsPassesThroughUnchanged(t *testing.T) {
	candidates := []store.Document{
		{ID: "1", Content: "a", Score: 0.9},
		{ID: "2", Content: "b", Score: 0.5},
		{ID: "3", Content: "c", Score: 0.1},
	}
	engine := newTestEngine(&fakeIndex{}, &fakeEmbedder{}, &fakeKeywords{})

	fused := engine.Fuse("?!", candidates, 2)

	require.Len(t, fused, 2)
	assert.Equal(t, "1", fused[0].ID)
	assert.Equal(t, "2", fused[1].ID)
	// Raw scores survive untouched.
	assert.Equal(t, 0.9, fused[0].Score)
	assert.Equal(t, 0.5, fused[1].Score)
}

func TestFuseEqualScoresNormalizeToOne(t *testing.T) {
	candidates := []store.Document{
		{ID: "1", Content: "library", Score: 0.42},
		{ID: "2", Content: "unrelated", Score: 0.42},
	}
	engine := newTestEngine(&fakeIndex{}, &fakeEmbedder{}, &fakeKeywords{tokens: []string{"library"}})

	fused := engine.Fuse("library", candidates, 2)

	require.Len(t, fused, 2)
	// Both normalize to 1.0, so coverage alone separates them.
	assert.Equal(t, "1", fused[0].ID)
	assert.InDelta(t, 1.0, fused[0].Score, 1e-9)
	assert.InDelta(t, 0.6, fused[1].Score, 1e-9)
}

func TestFuseDoesNotMutateInput(t *testing.T) {
	candidates := []store.Document{
		{ID: "1", Content: "library", Score: 0.9},
		{ID: "2", Content: "other", Score: 0.1},
	}
	engine := newTestEngine(&fakeIndex{}, &fakeEmbedder{}, &fakeKeywords{tokens: []string{"library"}})

	_ = engine.Fuse("library", candidates, 1)

	assert.Equal(t, 0.9, candidates[0].Score)
	assert.Equal(t, 0.1, candidates[1].Score)
}

func TestKeywordCoverage(t *testing.T) {
	tests := []struct {
		name     string
		content  string
		keywords []string
		want     float64
	}{
		{name: "all matched", content: "library opening hours", keywords: []string{"library", "hours"}, want: 1.0},
		{name: "half matched", content: "library closed", keywords: []string{"library", "hours"}, want: 0.5},
		{name: "none matched", content: "campus shuttle", keywords: []string{"library", "hours"}, want: 0.0},
		{name: "exact substring only", content: "libraries", keywords: []string{"library"}, want: 0.0},
		{name: "no keywords", content: "anything", keywords: nil, want: 0.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := keywordCoverage(tt.content, tt.keywords)
			if math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("keywordCoverage() = %v, want %v", got, tt.want)
			}
		})
	}
}
