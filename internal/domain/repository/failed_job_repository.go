package repository

import (
	"context"
	"errors"
	"time"

	"clubinex/internal/domain/entity"

	"github.com/google/uuid"
)

// ErrFailedJobNotFound is returned when a dead-lettered job is not found.
var ErrFailedJobNotFound = errors.New("failed job not found")

// FailedJobRepository is the dead-letter store for exhausted queue jobs.
type FailedJobRepository interface {
	Create(ctx context.Context, job *entity.FailedJob) error
	FindByID(ctx context.Context, id uuid.UUID) (*entity.FailedJob, error)

	// List pages through jobs that were not retried yet, oldest first.
	List(ctx context.Context, limit, offset int) ([]*entity.FailedJob, error)

	// CountPending counts jobs that were not retried yet.
	CountPending(ctx context.Context) (int64, error)

	MarkRetried(ctx context.Context, id uuid.UUID, at time.Time) error
}
