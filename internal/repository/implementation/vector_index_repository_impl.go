package implementation

import (
	"context"
	"fmt"

	"campus-rag-be/internal/model"
	"campus-rag-be/internal/repository/contract"

	"github.com/pgvector/pgvector-go"
	"gorm.io/gorm"
)

// VectorIndexRepositoryImpl serves nearest-neighbor queries from the
// document_embeddings table. Logical collections are rows sharing a
// collection name; cosine similarity is 1 - (embedding <=> query).
type VectorIndexRepositoryImpl struct {
	db *gorm.DB
}

func NewVectorIndexRepository(db *gorm.DB) contract.VectorIndexRepository {
	return &VectorIndexRepositoryImpl{db: db}
}

func (r *VectorIndexRepositoryImpl) HasCollection(ctx context.Context, name string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&model.VectorCollection{}).
		Where("name = ?", name).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *VectorIndexRepositoryImpl) SimilaritySearch(
	ctx context.Context,
	collection string,
	vector []float32,
	topK int,
	filter map[string]string,
) ([]*contract.RawHit, error) {

	if topK <= 0 {
		topK = 5
	}

	type result struct {
		model.DocumentEmbedding
		Similarity float64
	}
	var results []result

	queryVector := pgvector.NewVector(vector)

	query := r.db.WithContext(ctx).
		Table("document_embeddings").
		Select("document_embeddings.*, 1 - (embedding <=> ?) as similarity", queryVector).
		Where("collection = ?", collection)

	// Filters are structural: only known payload columns are bindable, so a
	// crafted query string can never widen the scope.
	for field, value := range filter {
		switch field {
		case contract.FilterDeptId:
			query = query.Where("dept_id = ?", value)
		case contract.FilterUserId:
			query = query.Where("user_id = ?", value)
		default:
			return nil, fmt.Errorf("unsupported filter field: %s", field)
		}
	}

	err := query.
		Order("similarity DESC").
		Limit(topK).
		Scan(&results).Error
	if err != nil {
		return nil, err
	}

	hits := make([]*contract.RawHit, len(results))
	for i, res := range results {
		hits[i] = &contract.RawHit{
			ID:    res.Id.String(),
			Score: res.Similarity,
			Fields: map[string]interface{}{
				"content": res.Content,
				"answer":  res.Answer,
				"source":  res.Source,
				"dept_id": res.DeptId,
				"user_id": res.UserId,
			},
		}
	}
	return hits, nil
}
