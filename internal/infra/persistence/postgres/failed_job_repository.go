package postgres

import (
	"context"
	"time"

	"clubinex/internal/domain/entity"
	domainerrors "clubinex/internal/domain/errors"
	"clubinex/internal/domain/repository"
	"clubinex/internal/infra/persistence/model"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"gorm.io/gorm"
)

type failedJobRepository struct {
	db *gorm.DB
}

// NewFailedJobRepository creates the dead-letter store on db.
func NewFailedJobRepository(db *gorm.DB) repository.FailedJobRepository {
	return &failedJobRepository{db: db}
}

func (repo *failedJobRepository) Create(ctx context.Context, job *entity.FailedJob) error {
	if err := repo.db.WithContext(ctx).Create(fromFailedJobDomain(job)).Error; err != nil {
		return domainerrors.NewDatabaseExecuteError(err, "failed to store failed job")
	}

	return nil
}

func (repo *failedJobRepository) FindByID(ctx context.Context, id uuid.UUID) (*entity.FailedJob, error) {
	var jobM model.FailedJobModel
	if err := repo.db.WithContext(ctx).Where("id = ?", id).First(&jobM).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, repository.ErrFailedJobNotFound
		}

		return nil, domainerrors.NewDatabaseExecuteError(err, "failed to find failed job")
	}

	return toFailedJobDomain(&jobM), nil
}

func (repo *failedJobRepository) List(ctx context.Context, limit, offset int) ([]*entity.FailedJob, error) {
	var jobsM []*model.FailedJobModel
	err := repo.db.WithContext(ctx).
		Where("retried_at IS NULL").
		Order("failed_at ASC").
		Limit(limit).
		Offset(offset).
		Find(&jobsM).Error
	if err != nil {
		return nil, domainerrors.NewDatabaseExecuteError(err, "failed to list failed jobs")
	}

	jobs := make([]*entity.FailedJob, 0, len(jobsM))
	for _, jobM := range jobsM {
		jobs = append(jobs, toFailedJobDomain(jobM))
	}

	return jobs, nil
}

func (repo *failedJobRepository) CountPending(ctx context.Context) (int64, error) {
	var count int64
	err := repo.db.WithContext(ctx).
		Model(&model.FailedJobModel{}).
		Where("retried_at IS NULL").
		Count(&count).Error
	if err != nil {
		return 0, domainerrors.NewDatabaseExecuteError(err, "failed to count failed jobs")
	}

	return count, nil
}

func (repo *failedJobRepository) MarkRetried(ctx context.Context, id uuid.UUID, at time.Time) error {
	result := repo.db.WithContext(ctx).
		Model(&model.FailedJobModel{}).
		Where("id = ?", id).
		Update("retried_at", at)
	if result.Error != nil {
		return domainerrors.NewDatabaseExecuteError(result.Error, "failed to mark failed job as retried")
	}
	if result.RowsAffected == 0 {
		return repository.ErrFailedJobNotFound
	}

	return nil
}

func toFailedJobDomain(data *model.FailedJobModel) *entity.FailedJob {
	return &entity.FailedJob{
		ID:             data.ID,
		Queue:          data.Queue,
		JobID:          data.JobID,
		IdempotencyKey: data.IdempotencyKey,
		Payload:        []byte(data.Payload),
		Attempts:       data.Attempts,
		LastError:      data.LastError,
		FailedAt:       data.FailedAt,
		RetriedAt:      data.RetriedAt,
	}
}

func fromFailedJobDomain(data *entity.FailedJob) *model.FailedJobModel {
	return &model.FailedJobModel{
		ID:             data.ID,
		Queue:          data.Queue,
		JobID:          data.JobID,
		IdempotencyKey: data.IdempotencyKey,
		Payload:        string(data.Payload),
		Attempts:       data.Attempts,
		LastError:      data.LastError,
		FailedAt:       data.FailedAt,
		RetriedAt:      data.RetriedAt,
	}
}
