package impl

import (
	"context"
	"encoding/json"
	"log/slog"

	deliverycontext "clubinex/internal/delivery/context"
	"clubinex/internal/domain/entity"
	domainerrors "clubinex/internal/domain/errors"
	"clubinex/internal/domain/repository"
	"clubinex/internal/domain/service"
	"clubinex/internal/usecase"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.uber.org/fx"
)

// failedJobService implements the FailedJobUsecase interface.
type failedJobService struct {
	failedJobRepo repository.FailedJobRepository
	publisher     service.EventPublisher
	clock         service.Clock
	logger        *slog.Logger
}

// FailedJobServiceParams holds dependencies for FailedJobService, injected by Fx.
type FailedJobServiceParams struct {
	fx.In

	FailedJobRepo repository.FailedJobRepository
	Publisher     service.EventPublisher
	Clock         service.Clock
	Logger        *slog.Logger
}

// NewFailedJobService is the constructor for failedJobService.
func NewFailedJobService(params FailedJobServiceParams) usecase.FailedJobUsecase {
	return &failedJobService{
		failedJobRepo: params.FailedJobRepo,
		publisher:     params.Publisher,
		clock:         params.Clock,
		logger:        params.Logger,
	}
}

func (srv *failedJobService) log(ctx context.Context) *slog.Logger {
	return deliverycontext.GetLoggerOrDefault(ctx, srv.logger)
}

func (srv *failedJobService) List(ctx context.Context, limit, offset int) (*usecase.FailedJobListOutput, error) {
	jobs, err := srv.failedJobRepo.List(ctx, clampLimit(limit), max(offset, 0))
	if err != nil {
		return nil, errors.Wrap(err, "failed to list failed jobs")
	}

	total, err := srv.failedJobRepo.CountPending(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "failed to count failed jobs")
	}

	return &usecase.FailedJobListOutput{Jobs: jobs, Total: total}, nil
}

func (srv *failedJobService) Retry(ctx context.Context, id uuid.UUID) (*entity.CommissionJob, error) {
	failed, err := srv.failedJobRepo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrFailedJobNotFound) {
			return nil, domainerrors.ErrFailedJobNotFound
		}

		return nil, errors.Wrap(err, "failed to find failed job")
	}

	var job entity.CommissionJob
	if err := json.Unmarshal(failed.Payload, &job); err != nil {
		return nil, domainerrors.ErrValidationFailed.WithDetails("stored payload is not a commission job")
	}

	// A fresh job ID keeps the replay apart from any state left by the old one.
	job.JobID = uuid.NewString()
	job.EnqueuedAt = srv.clock.Now()
	job.RequestID = deliverycontext.GetRequestIDFromContext(ctx)

	if err := srv.publisher.PublishCommissionJob(ctx, &job); err != nil {
		return nil, errors.Wrap(err, "failed to republish job")
	}

	if err := srv.failedJobRepo.MarkRetried(ctx, failed.ID, srv.clock.Now()); err != nil {
		return nil, errors.Wrap(err, "failed to mark job as retried")
	}

	srv.log(ctx).Info("Dead-lettered job republished",
		slog.String("failed_job_id", failed.ID.String()),
		slog.String("job_id", job.JobID),
		slog.String("transaction_id", job.TransactionID),
	)

	return &job, nil
}

func (srv *failedJobService) Record(ctx context.Context, job *entity.FailedJob) error {
	if job.ID == uuid.Nil {
		job.ID = uuid.New()
	}
	if job.FailedAt.IsZero() {
		job.FailedAt = srv.clock.Now()
	}

	if err := srv.failedJobRepo.Create(ctx, job); err != nil {
		return errors.Wrap(err, "failed to record failed job")
	}

	return nil
}

func (srv *failedJobService) CountPending(ctx context.Context) (int64, error) {
	count, err := srv.failedJobRepo.CountPending(ctx)
	if err != nil {
		return 0, errors.Wrap(err, "failed to count failed jobs")
	}

	return count, nil
}
