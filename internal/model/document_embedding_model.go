package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"
)

// DocumentEmbedding is one indexed chunk of a logical collection. FAQ-style
// rows keep the question in Content and the curated answer in Answer;
// passage rows leave Answer empty.
type DocumentEmbedding struct {
	Id         uuid.UUID       `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	Collection string          `gorm:"type:varchar(100);not null;index"`
	Content    string          `gorm:"type:text;not null"`
	Answer     string          `gorm:"type:text"`
	Source     string          `gorm:"type:varchar(255)"`
	DeptId     string          `gorm:"type:varchar(100);index"`
	UserId     string          `gorm:"type:varchar(100);index"`
	Embedding  pgvector.Vector `gorm:"type:vector(1024)"`
	CreatedAt  time.Time       `gorm:"autoCreateTime"`
	UpdatedAt  time.Time       `gorm:"autoUpdateTime"`
}

func (DocumentEmbedding) TableName() string {
	return "document_embeddings"
}

// VectorCollection registers a logical collection. Searching a name that is
// not registered is a soft miss, not an error.
type VectorCollection struct {
	Name      string    `gorm:"type:varchar(100);primaryKey"`
	CreatedAt time.Time `gorm:"autoCreateTime"`
}

func (VectorCollection) TableName() string {
	return "vector_collections"
}
