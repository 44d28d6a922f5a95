package contract

import "context"

// RawHit is one nearest-neighbor result before pipeline typing. Fields
// carries the stored payload columns (content, source, answer, dept_id,
// user_id).
type RawHit struct {
	ID     string
	Score  float64 // cosine similarity, higher is closer
	Fields map[string]interface{}
}

// Filterable payload fields. Filters are structural maps keyed by these
// names; values must come from the authenticated user context, never from
// user-supplied text.
const (
	FilterDeptId = "dept_id"
	FilterUserId = "user_id"
)

// VectorIndexRepository is the narrow nearest-neighbor interface the
// pipeline consumes. Index storage and sharding stay behind it.
type VectorIndexRepository interface {
	// HasCollection reports whether a logical collection is registered.
	HasCollection(ctx context.Context, name string) (bool, error)
	// SimilaritySearch returns up to topK hits from one collection ordered
	// by descending similarity, optionally constrained by an attribute
	// filter.
	SimilaritySearch(ctx context.Context, collection string, vector []float32, topK int, filter map[string]string) ([]*RawHit, error)
}
