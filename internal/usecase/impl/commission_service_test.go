package impl

import (
	"context"
	"math"
	"strconv"
	"sync"
	"testing"

	"clubinex/internal/domain/entity"
	domainerrors "clubinex/internal/domain/errors"
	"clubinex/internal/usecase"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func createTestCommissionService(store *memStore) usecase.CommissionUsecase {
	return NewCommissionService(CommissionServiceParams{
		TxManager: &memTxManager{s: store},
		Clock:     newFixedClock(),
		Config:    newTestConfig(3, 0.05, 0.02),
		Logger:    newDiscardLogger(),
	})
}

// seedNetwork builds A -> B -> C -> D and returns the users in that order.
func seedNetwork(t *testing.T, store *memStore) []*entity.User {
	t.Helper()

	users := seedUsers(t, store, 4)
	buildChain(t, createTestReferralService(store, 3), users)

	return users
}

func TestAccrueCommission_PropagatesByLevel(t *testing.T) {
	store := newMemStore()
	users := seedNetwork(t, store)
	srv := createTestCommissionService(store)

	written, err := srv.AccrueCommission(context.Background(), usecase.AccrueCommissionInput{
		UserID:              users[3].ID,
		SourceTransactionID: "txn-1",
		BaseAmount:          1000,
	})
	require.NoError(t, err)

	require.Len(t, written, 2)
	assert.Equal(t, users[2].ID, written[0].ReferrerID)
	assert.Equal(t, int64(50), written[0].EarnedPoints)
	assert.Equal(t, int64(500), written[0].RateBps)
	assert.Equal(t, users[1].ID, written[1].ReferrerID)
	assert.Equal(t, int64(20), written[1].EarnedPoints)

	assert.Equal(t, int64(50), store.balance(users[2].ID))
	assert.Equal(t, int64(20), store.balance(users[1].ID))
	assert.Zero(t, store.balance(users[0].ID))
	assert.Zero(t, store.balance(users[3].ID))
}

func TestAccrueCommission_Idempotent(t *testing.T) {
	store := newMemStore()
	users := seedNetwork(t, store)
	srv := createTestCommissionService(store)
	input := usecase.AccrueCommissionInput{
		UserID:              users[3].ID,
		SourceTransactionID: "txn-1",
		BaseAmount:          1000,
	}

	_, err := srv.AccrueCommission(context.Background(), input)
	require.NoError(t, err)

	written, err := srv.AccrueCommission(context.Background(), input)
	require.NoError(t, err)

	assert.Empty(t, written)
	assert.Equal(t, int64(50), store.balance(users[2].ID))
	assert.Equal(t, int64(20), store.balance(users[1].ID))
	assert.Len(t, store.commissions, 2)
}

func TestAccrueCommission_Truncates(t *testing.T) {
	store := newMemStore()
	users := seedNetwork(t, store)
	srv := createTestCommissionService(store)

	written, err := srv.AccrueCommission(context.Background(), usecase.AccrueCommissionInput{
		UserID:              users[3].ID,
		SourceTransactionID: "txn-1",
		BaseAmount:          999,
	})
	require.NoError(t, err)

	require.Len(t, written, 2)
	assert.Equal(t, int64(49), written[0].EarnedPoints)
	assert.Equal(t, int64(19), written[1].EarnedPoints)
}

func TestAccrueCommission_SkipsZeroPoints(t *testing.T) {
	store := newMemStore()
	users := seedNetwork(t, store)
	srv := createTestCommissionService(store)

	written, err := srv.AccrueCommission(context.Background(), usecase.AccrueCommissionInput{
		UserID:              users[3].ID,
		SourceTransactionID: "txn-1",
		BaseAmount:          10,
	})
	require.NoError(t, err)

	assert.Empty(t, written)
	assert.Empty(t, store.points)
}

func TestAccrueCommission_NoReferrer(t *testing.T) {
	store := newMemStore()
	user := store.seedUser(t, entity.UserStatusActive)
	srv := createTestCommissionService(store)

	written, err := srv.AccrueCommission(context.Background(), usecase.AccrueCommissionInput{
		UserID:              user.ID,
		SourceTransactionID: "txn-1",
		BaseAmount:          1000,
	})
	require.NoError(t, err)
	assert.Empty(t, written)
}

func TestAccrueCommission_Overflow(t *testing.T) {
	store := newMemStore()
	users := seedNetwork(t, store)
	srv := createTestCommissionService(store)

	_, err := srv.AccrueCommission(context.Background(), usecase.AccrueCommissionInput{
		UserID:              users[3].ID,
		SourceTransactionID: "txn-1",
		BaseAmount:          math.MaxInt64,
	})

	require.ErrorIs(t, err, domainerrors.ErrCommissionOverflow)
	assert.Empty(t, store.commissions)
	assert.Zero(t, store.balance(users[2].ID))
}

func TestAccrueCommission_InvalidInput(t *testing.T) {
	store := newMemStore()
	users := seedNetwork(t, store)
	srv := createTestCommissionService(store)

	tests := []struct {
		name    string
		input   usecase.AccrueCommissionInput
		wantErr error
	}{
		{
			name:    "negative amount",
			input:   usecase.AccrueCommissionInput{UserID: users[3].ID, SourceTransactionID: "txn-1", BaseAmount: -1},
			wantErr: domainerrors.ErrInvalidAmount,
		},
		{
			name:    "missing source transaction",
			input:   usecase.AccrueCommissionInput{UserID: users[3].ID, BaseAmount: 100},
			wantErr: domainerrors.ErrValidationFailed,
		},
		{
			name:    "unknown user",
			input:   usecase.AccrueCommissionInput{UserID: uuid.New(), SourceTransactionID: "txn-1", BaseAmount: 100},
			wantErr: domainerrors.ErrUserNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := srv.AccrueCommission(context.Background(), tt.input)
			require.ErrorIs(t, err, tt.wantErr)
			assert.True(t, domainerrors.IsPermanent(err))
		})
	}
}

// memTxManager serializes the transactions, so this covers duplicate
// deliveries racing each other, not the row lock of the postgres repository.
func TestAccrueCommission_ConcurrentCredits(t *testing.T) {
	store := newMemStore()
	users := seedNetwork(t, store)
	srv := createTestCommissionService(store)

	const workers = 20
	var wg sync.WaitGroup
	for i := range workers {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := srv.AccrueCommission(context.Background(), usecase.AccrueCommissionInput{
				UserID:              users[3].ID,
				SourceTransactionID: "txn-" + strconv.Itoa(i%10),
				BaseAmount:          1000,
			})
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	// Ten distinct transactions, each delivered twice.
	assert.Equal(t, int64(10*50), store.balance(users[2].ID))
	assert.Equal(t, int64(10*20), store.balance(users[1].ID))
}

func TestAccrueCommission_RollsBackOnPartialCredit(t *testing.T) {
	store := newMemStore()
	users := seedNetwork(t, store)
	srv := createTestCommissionService(store)
	ctx := context.Background()
	input := usecase.AccrueCommissionInput{
		UserID:              users[3].ID,
		SourceTransactionID: "txn-rollback",
		BaseAmount:          1000,
	}

	// Level 1 is credited, then the level 2 ledger append fails.
	store.failPointCreate = func(txn *entity.PointTransaction) error {
		if txn.UserID == users[1].ID {
			return errors.New("ledger unavailable")
		}

		return nil
	}

	written, err := srv.AccrueCommission(ctx, input)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to credit level 2 commission")
	assert.Nil(t, written)

	assert.Empty(t, store.commissions)
	assert.Empty(t, store.points)
	for _, user := range users {
		assert.Zero(t, store.balance(user.ID), "user %s", user.ID)
	}

	// The redelivered job succeeds once the ledger recovers.
	store.failPointCreate = nil
	written, err = srv.AccrueCommission(ctx, input)
	require.NoError(t, err)
	require.Len(t, written, 2)
	assert.Equal(t, int64(50), store.balance(users[2].ID))
	assert.Equal(t, int64(20), store.balance(users[1].ID))
}

func TestProcessJob(t *testing.T) {
	store := newMemStore()
	users := seedNetwork(t, store)
	srv := createTestCommissionService(store)

	err := srv.ProcessJob(context.Background(), &entity.CommissionJob{
		JobID:         "job-1",
		UserID:        users[3].ID,
		TransactionID: "txn-1",
		Amount:        1000,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(50), store.balance(users[2].ID))

	err = srv.ProcessJob(context.Background(), nil)
	assert.True(t, domainerrors.IsPermanent(err))

	err = srv.ProcessJob(context.Background(), &entity.CommissionJob{JobID: "job-2", UserID: uuid.New(), TransactionID: "txn-2", Amount: 10})
	assert.True(t, domainerrors.IsPermanent(err))
}
