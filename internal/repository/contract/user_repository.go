package contract

import (
	"context"

	"campus-rag-be/internal/model"

	"github.com/google/uuid"
)

type UserRepository interface {
	FindByUsername(ctx context.Context, username string) (*model.User, error)
	FindById(ctx context.Context, id uuid.UUID) (*model.User, error)
	IncrementAiUsage(ctx context.Context, id uuid.UUID, delta int) error
}
