package retrieval

import (
	"context"
	"sort"
	"strings"

	"campus-rag-be/internal/pkg/logger"
	"campus-rag-be/internal/repository/contract"
	"campus-rag-be/pkg/embedding"
	"campus-rag-be/pkg/store"
)

// KeywordSource yields the distinct content-bearing tokens of a query.
type KeywordSource interface {
	Extract(query string) []string
}

// Engine runs the recall phase (multi-collection vector search) and the
// precision phase (hybrid re-ranking) of retrieval.
type Engine struct {
	index        contract.VectorIndexRepository
	embedder     embedding.Provider
	keywords     KeywordSource
	vectorWeight float64
	log          logger.ILogger
}

func NewEngine(
	index contract.VectorIndexRepository,
	embedder embedding.Provider,
	keywords KeywordSource,
	vectorWeight float64,
	log logger.ILogger,
) *Engine {
	if vectorWeight <= 0 || vectorWeight > 1 {
		vectorWeight = 0.6
	}
	return &Engine{
		index:        index,
		embedder:     embedder,
		keywords:     keywords,
		vectorWeight: vectorWeight,
		log:          log,
	}
}

// SearchMany embeds the query once, runs one similarity query per named
// collection, and returns the flattened candidates sorted by raw
// similarity. A missing collection or a failed per-collection query
// contributes zero candidates; neither aborts the batch.
func (e *Engine) SearchMany(
	ctx context.Context,
	queryText string,
	collections []string,
	topK int,
	filter map[string]string,
) []store.Document {

	vector, err := e.embedder.Embed(ctx, queryText)
	if err != nil {
		e.log.Error("retrieval", "embedding failed", map[string]interface{}{"error": err.Error()})
		return nil
	}

	var candidates []store.Document
	for _, collection := range collections {
		exists, err := e.index.HasCollection(ctx, collection)
		if err != nil {
			e.log.Error("retrieval", "collection check failed", map[string]interface{}{
				"collection": collection,
				"error":      err.Error(),
			})
			continue
		}
		if !exists {
			e.log.Warn("retrieval", "collection not found", map[string]interface{}{"collection": collection})
			continue
		}

		hits, err := e.index.SimilaritySearch(ctx, collection, vector, topK, filter)
		if err != nil {
			e.log.Error("retrieval", "search failed", map[string]interface{}{
				"collection": collection,
				"error":      err.Error(),
			})
			continue
		}

		for _, hit := range hits {
			candidates = append(candidates, documentFromHit(hit, collection))
		}
	}

	// Flatten-then-sort keeps the ranking independent of collection order.
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Score > candidates[j].Score
	})
	return candidates
}

// documentFromHit types a raw hit. A payload with a non-empty answer field
// is FAQ-style: Content holds the stored question, not a passage.
func documentFromHit(hit *contract.RawHit, collection string) store.Document {
	doc := store.Document{
		ID:       hit.ID,
		Score:    hit.Score,
		Source:   collection,
		Metadata: hit.Fields,
	}
	if content, ok := hit.Fields["content"].(string); ok {
		doc.Content = content
	}
	if source, ok := hit.Fields["source"].(string); ok && source != "" {
		doc.Source = source
	}
	if doc.Metadata == nil {
		doc.Metadata = map[string]interface{}{}
	}
	doc.Metadata["is_faq"] = doc.IsFAQ()
	return doc
}

// Fuse re-ranks candidates by blending min-max-normalized vector similarity
// with lexical keyword coverage, then truncates to finalK. With no
// extractable keywords the first finalK candidates pass through untouched.
func (e *Engine) Fuse(queryText string, candidates []store.Document, finalK int) []store.Document {
	if finalK <= 0 || len(candidates) == 0 {
		return nil
	}

	keywords := e.keywords.Extract(queryText)
	if len(keywords) == 0 {
		if len(candidates) > finalK {
			candidates = candidates[:finalK]
		}
		out := make([]store.Document, len(candidates))
		copy(out, candidates)
		return out
	}

	minScore, maxScore := candidates[0].Score, candidates[0].Score
	for _, c := range candidates[1:] {
		if c.Score < minScore {
			minScore = c.Score
		}
		if c.Score > maxScore {
			maxScore = c.Score
		}
	}
	scoreRange := maxScore - minScore

	fused := make([]store.Document, len(candidates))
	copy(fused, candidates)
	for i := range fused {
		normalized := 1.0
		if scoreRange > 0 {
			normalized = (fused[i].Score - minScore) / scoreRange
		}
		coverage := keywordCoverage(fused[i].Content, keywords)
		fused[i].Score = e.vectorWeight*normalized + (1-e.vectorWeight)*coverage
	}

	sort.SliceStable(fused, func(i, j int) bool {
		return fused[i].Score > fused[j].Score
	})
	if len(fused) > finalK {
		fused = fused[:finalK]
	}
	return fused
}

// keywordCoverage is the fraction of distinct keywords literally occurring
// as substrings of the content.
func keywordCoverage(content string, keywords []string) float64 {
	if len(keywords) == 0 {
		return 0
	}
	matched := 0
	for _, kw := range keywords {
		if strings.Contains(content, kw) {
			matched++
		}
	}
	return float64(matched) / float64(len(keywords))
}
