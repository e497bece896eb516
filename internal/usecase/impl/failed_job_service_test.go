package impl

import (
	"context"
	"encoding/json"
	"testing"

	"clubinex/internal/domain/entity"
	domainerrors "clubinex/internal/domain/errors"
	"clubinex/internal/usecase"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func createTestFailedJobService(repo *memFailedJobRepo, publisher *mockPublisher) usecase.FailedJobUsecase {
	return NewFailedJobService(FailedJobServiceParams{
		FailedJobRepo: repo,
		Publisher:     publisher,
		Clock:         newFixedClock(),
		Logger:        newDiscardLogger(),
	})
}

func recordFailedJob(t *testing.T, srv usecase.FailedJobUsecase, job entity.CommissionJob) *entity.FailedJob {
	t.Helper()

	payload, err := json.Marshal(job)
	require.NoError(t, err)

	failed := &entity.FailedJob{
		Queue:          "commission",
		JobID:          job.JobID,
		IdempotencyKey: job.IdempotencyKey(),
		Payload:        payload,
		Attempts:       4,
		LastError:      "database unavailable",
	}
	require.NoError(t, srv.Record(context.Background(), failed))

	return failed
}

func TestFailedJobRetry(t *testing.T) {
	repo := &memFailedJobRepo{}
	publisher := new(mockPublisher)
	srv := createTestFailedJobService(repo, publisher)
	original := entity.CommissionJob{JobID: "job-1", UserID: uuid.New(), TransactionID: "txn-1", Amount: 1000}
	failed := recordFailedJob(t, srv, original)
	assert.NotEqual(t, uuid.Nil, failed.ID)
	assert.Equal(t, newFixedClock().now, failed.FailedAt)

	publisher.On("PublishCommissionJob", mock.Anything, mock.MatchedBy(func(job *entity.CommissionJob) bool {
		return job.TransactionID == "txn-1" && job.JobID != "job-1"
	})).Return(nil).Once()

	job, err := srv.Retry(context.Background(), failed.ID)
	require.NoError(t, err)
	assert.Equal(t, original.UserID, job.UserID)
	assert.Equal(t, original.Amount, job.Amount)
	require.NotNil(t, failed.RetriedAt)

	count, err := srv.CountPending(context.Background())
	require.NoError(t, err)
	assert.Zero(t, count)

	publisher.AssertExpectations(t)
}

func TestFailedJobRetry_Errors(t *testing.T) {
	repo := &memFailedJobRepo{}
	publisher := new(mockPublisher)
	srv := createTestFailedJobService(repo, publisher)

	_, err := srv.Retry(context.Background(), uuid.New())
	require.ErrorIs(t, err, domainerrors.ErrFailedJobNotFound)

	garbage := &entity.FailedJob{Queue: "commission", JobID: "bad", Payload: []byte("{not json")}
	require.NoError(t, srv.Record(context.Background(), garbage))
	_, err = srv.Retry(context.Background(), garbage.ID)
	require.ErrorIs(t, err, domainerrors.ErrValidationFailed)

	failed := recordFailedJob(t, srv, entity.CommissionJob{JobID: "job-2", UserID: uuid.New(), TransactionID: "txn-2", Amount: 5})
	publisher.On("PublishCommissionJob", mock.Anything, mock.Anything).Return(errors.New("broker down")).Once()
	_, err = srv.Retry(context.Background(), failed.ID)
	require.Error(t, err)
	assert.Nil(t, failed.RetriedAt)
}

func TestFailedJobList(t *testing.T) {
	repo := &memFailedJobRepo{}
	srv := createTestFailedJobService(repo, new(mockPublisher))
	for _, id := range []string{"job-1", "job-2", "job-3"} {
		recordFailedJob(t, srv, entity.CommissionJob{JobID: id, UserID: uuid.New(), TransactionID: id, Amount: 1})
	}

	out, err := srv.List(context.Background(), 2, 0)
	require.NoError(t, err)
	assert.Len(t, out.Jobs, 2)
	assert.Equal(t, int64(3), out.Total)
}
