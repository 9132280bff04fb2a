package port

import (
	"context"

	"github.com/google/uuid"
	"github.com/spriteforge/spriteforge-synthesis-service/internal/domain/entity"
)

type JobRepository interface {
	Create(ctx context.Context, job *entity.AnimationJob) error
	Update(ctx context.Context, job *entity.AnimationJob) error
	FindByID(ctx context.Context, id uuid.UUID) (*entity.AnimationJob, error)
}
