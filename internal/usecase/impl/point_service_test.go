package impl

import (
	"context"
	"strconv"
	"testing"

	"clubinex/internal/domain/entity"
	domainerrors "clubinex/internal/domain/errors"
	"clubinex/internal/usecase"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func createTestPointService(store *memStore, publisher *mockPublisher) usecase.PointUsecase {
	return NewPointService(PointServiceParams{
		TxManager: &memTxManager{s: store},
		UserRepo:  &memUserRepo{s: store},
		PointRepo: &memPointRepo{s: store},
		Publisher: publisher,
		Clock:     newFixedClock(),
		Logger:    newDiscardLogger(),
	})
}

func TestEarnPoints_CreditsAndPublishes(t *testing.T) {
	store := newMemStore()
	user := store.seedUser(t, entity.UserStatusActive)
	publisher := new(mockPublisher)
	publisher.On("PublishCommissionJob", mock.Anything, mock.MatchedBy(func(job *entity.CommissionJob) bool {
		return job.UserID == user.ID && job.TransactionID == "order-1" && job.Amount == 300 && job.JobID != ""
	})).Return(nil).Twice()
	srv := createTestPointService(store, publisher)

	txn, err := srv.EarnPoints(context.Background(), usecase.EarnPointsInput{UserID: user.ID, TransactionID: "order-1", Amount: 300})
	require.NoError(t, err)
	assert.Equal(t, int64(300), txn.BalanceAfter)
	assert.Equal(t, entity.PointReasonEarn, txn.Reason)

	// A replay leaves the balance alone but publishes again.
	replay, err := srv.EarnPoints(context.Background(), usecase.EarnPointsInput{UserID: user.ID, TransactionID: "order-1", Amount: 300})
	require.NoError(t, err)
	assert.Equal(t, txn.ID, replay.ID)
	assert.Equal(t, int64(300), store.balance(user.ID))

	publisher.AssertExpectations(t)
}

func TestEarnPoints_PublishFailureKeepsCredit(t *testing.T) {
	store := newMemStore()
	user := store.seedUser(t, entity.UserStatusActive)
	publisher := new(mockPublisher)
	publisher.On("PublishCommissionJob", mock.Anything, mock.Anything).Return(errors.New("broker down")).Once()
	srv := createTestPointService(store, publisher)

	txn, err := srv.EarnPoints(context.Background(), usecase.EarnPointsInput{UserID: user.ID, TransactionID: "order-1", Amount: 300})

	require.Error(t, err)
	require.NotNil(t, txn)
	assert.Equal(t, int64(300), store.balance(user.ID))
	publisher.AssertExpectations(t)
}

func TestEarnPoints_Rejections(t *testing.T) {
	store := newMemStore()
	active := store.seedUser(t, entity.UserStatusActive)
	disabled := store.seedUser(t, entity.UserStatusDisabled)
	publisher := new(mockPublisher)
	srv := createTestPointService(store, publisher)

	tests := []struct {
		name    string
		input   usecase.EarnPointsInput
		wantErr error
	}{
		{name: "zero amount", input: usecase.EarnPointsInput{UserID: active.ID, TransactionID: "t", Amount: 0}, wantErr: domainerrors.ErrInvalidAmount},
		{name: "negative amount", input: usecase.EarnPointsInput{UserID: active.ID, TransactionID: "t", Amount: -5}, wantErr: domainerrors.ErrInvalidAmount},
		{name: "missing transaction", input: usecase.EarnPointsInput{UserID: active.ID, TransactionID: " ", Amount: 5}, wantErr: domainerrors.ErrValidationFailed},
		{name: "disabled user", input: usecase.EarnPointsInput{UserID: disabled.ID, TransactionID: "t", Amount: 5}, wantErr: domainerrors.ErrUserDisabled},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := srv.EarnPoints(context.Background(), tt.input)
			require.ErrorIs(t, err, tt.wantErr)
		})
	}

	publisher.AssertNotCalled(t, "PublishCommissionJob", mock.Anything, mock.Anything)
}

func TestRedeemPoints(t *testing.T) {
	store := newMemStore()
	user := store.seedUser(t, entity.UserStatusActive)
	publisher := new(mockPublisher)
	publisher.On("PublishCommissionJob", mock.Anything, mock.Anything).Return(nil)
	srv := createTestPointService(store, publisher)

	_, err := srv.EarnPoints(context.Background(), usecase.EarnPointsInput{UserID: user.ID, TransactionID: "order-1", Amount: 100})
	require.NoError(t, err)

	txn, err := srv.RedeemPoints(context.Background(), usecase.RedeemPointsInput{UserID: user.ID, Amount: 60, Reference: "voucher-1"})
	require.NoError(t, err)
	assert.Equal(t, int64(-60), txn.Delta)
	assert.Equal(t, int64(40), txn.BalanceAfter)

	_, err = srv.RedeemPoints(context.Background(), usecase.RedeemPointsInput{UserID: user.ID, Amount: 60, Reference: "voucher-1"})
	require.NoError(t, err)
	assert.Equal(t, int64(40), store.balance(user.ID))

	_, err = srv.RedeemPoints(context.Background(), usecase.RedeemPointsInput{UserID: user.ID, Amount: 41, Reference: "voucher-2"})
	require.ErrorIs(t, err, domainerrors.ErrInsufficientPoints)
	assert.Equal(t, int64(40), store.balance(user.ID))
}

func TestHistory(t *testing.T) {
	store := newMemStore()
	user := store.seedUser(t, entity.UserStatusActive)
	publisher := new(mockPublisher)
	publisher.On("PublishCommissionJob", mock.Anything, mock.Anything).Return(nil)
	srv := createTestPointService(store, publisher)

	for i := range 3 {
		_, err := srv.EarnPoints(context.Background(), usecase.EarnPointsInput{
			UserID:        user.ID,
			TransactionID: "order-" + strconv.Itoa(i),
			Amount:        10,
		})
		require.NoError(t, err)
	}

	out, err := srv.History(context.Background(), user.ID, 2, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(30), out.Balance)
	require.Len(t, out.Transactions, 2)
	assert.Equal(t, "order-2", out.Transactions[0].Reference)

	out, err = srv.History(context.Background(), user.ID, 0, 2)
	require.NoError(t, err)
	require.Len(t, out.Transactions, 1)
	assert.Equal(t, "order-0", out.Transactions[0].Reference)
}

func TestClampLimit(t *testing.T) {
	assert.Equal(t, defaultPageSize, clampLimit(0))
	assert.Equal(t, defaultPageSize, clampLimit(-1))
	assert.Equal(t, 7, clampLimit(7))
	assert.Equal(t, maxPageSize, clampLimit(maxPageSize+1))
}
