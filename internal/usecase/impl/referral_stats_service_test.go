package impl

import (
	"context"
	"testing"

	"clubinex/internal/domain/entity"
	"clubinex/internal/usecase"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReferralSummary(t *testing.T) {
	store := newMemStore()
	users := seedNetwork(t, store)
	pending := store.seedUser(t, entity.UserStatusPending)
	_, err := createTestReferralService(store, 3).CreateReferral(context.Background(), users[0].ID, pending.ID)
	require.NoError(t, err)

	_, err = createTestCommissionService(store).AccrueCommission(context.Background(), usecase.AccrueCommissionInput{
		UserID:              users[2].ID,
		SourceTransactionID: "txn-1",
		BaseAmount:          1000,
	})
	require.NoError(t, err)

	srv := NewReferralStatsService(ReferralStatsServiceParams{
		ReferralRepo:   &memReferralRepo{s: store},
		CommissionRepo: &memCommissionRepo{s: store},
	})

	summary, err := srv.Summary(context.Background(), users[0].ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), summary.DirectCount)
	assert.Equal(t, int64(4), summary.TotalCount)
	assert.Equal(t, int64(3), summary.ActiveCount)
	assert.Equal(t, int64(20), summary.TotalCommission)
	assert.Equal(t, []entity.LevelCount{{Level: 1, Count: 2}, {Level: 2, Count: 1}, {Level: 3, Count: 1}}, summary.Levels)

	direct, err := srv.DirectReferrals(context.Background(), users[0].ID)
	require.NoError(t, err)
	assert.Len(t, direct, 2)
}
