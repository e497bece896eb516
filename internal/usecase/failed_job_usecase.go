package usecase

import (
	"context"

	"clubinex/internal/domain/entity"

	"github.com/google/uuid"
)

// FailedJobListOutput is one page of dead letters.
type FailedJobListOutput struct {
	Jobs  []*entity.FailedJob
	Total int64
}

// FailedJobUsecase lets operators inspect and replay dead-lettered jobs.
type FailedJobUsecase interface {
	List(ctx context.Context, limit, offset int) (*FailedJobListOutput, error)

	// Retry republishes the job under a fresh job ID and stamps retried_at.
	Retry(ctx context.Context, id uuid.UUID) (*entity.CommissionJob, error)

	// Record parks a job that exhausted its deliveries.
	Record(ctx context.Context, job *entity.FailedJob) error

	CountPending(ctx context.Context) (int64, error)
}
