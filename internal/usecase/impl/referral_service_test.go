package impl

import (
	"context"
	"testing"

	"clubinex/internal/domain/entity"
	domainerrors "clubinex/internal/domain/errors"
	"clubinex/internal/usecase"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func createTestReferralService(store *memStore, maxDepth int) usecase.ReferralUsecase {
	return NewReferralService(ReferralServiceParams{
		TxManager: &memTxManager{s: store},
		UserRepo:  &memUserRepo{s: store},
		Clock:     newFixedClock(),
		Config:    newTestConfig(maxDepth, 0.05, 0.02),
		Logger:    newDiscardLogger(),
	})
}

// buildChain links users[i] as the referrer of users[i+1].
func buildChain(t *testing.T, srv usecase.ReferralUsecase, users []*entity.User) {
	t.Helper()

	for i := 1; i < len(users); i++ {
		_, err := srv.CreateReferral(context.Background(), users[i-1].ID, users[i].ID)
		require.NoError(t, err)
	}
}

func seedUsers(t *testing.T, store *memStore, n int) []*entity.User {
	t.Helper()

	users := make([]*entity.User, n)
	for i := range users {
		users[i] = store.seedUser(t, entity.UserStatusActive)
	}

	return users
}

func TestCreateReferral_ChainIntegrity(t *testing.T) {
	store := newMemStore()
	srv := createTestReferralService(store, 3)
	users := seedUsers(t, store, 3)

	buildChain(t, srv, users)

	edges := store.edgesOf(users[2].ID)
	require.Len(t, edges, 2)
	assert.Equal(t, users[1].ID, edges[0].ReferrerID)
	assert.Equal(t, 1, edges[0].Level)
	assert.Equal(t, users[0].ID, edges[1].ReferrerID)
	assert.Equal(t, 2, edges[1].Level)

	for _, user := range users {
		direct := 0
		for _, edge := range store.edgesOf(user.ID) {
			if edge.IsDirect() {
				direct++
			}
		}
		assert.LessOrEqual(t, direct, 1)
	}

	referred, err := (&memUserRepo{s: store}).FindByID(context.Background(), users[2].ID)
	require.NoError(t, err)
	require.NotNil(t, referred.ReferredBy)
	assert.Equal(t, users[1].ID, *referred.ReferredBy)
}

func TestCreateReferral_RollsBackOnWriteFailure(t *testing.T) {
	tests := []struct {
		name    string
		inject  func(store *memStore)
		wantErr string
	}{
		{
			name:    "edge insert fails",
			inject:  func(store *memStore) { store.failCreateEdges = errors.New("disk full") },
			wantErr: "failed to create referral edges",
		},
		{
			name:    "referred_by update fails after edges are written",
			inject:  func(store *memStore) { store.failSetReferredBy = errors.New("connection reset") },
			wantErr: "failed to set referred_by",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newMemStore()
			srv := createTestReferralService(store, 3)
			users := seedUsers(t, store, 3)
			buildChain(t, srv, users[:2])
			before := len(store.edges)

			tt.inject(store)
			_, err := srv.CreateReferral(context.Background(), users[1].ID, users[2].ID)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)

			assert.Len(t, store.edges, before)
			assert.Empty(t, store.edgesOf(users[2].ID), "no direct or transitive edge")
			referred, err := (&memUserRepo{s: store}).FindByID(context.Background(), users[2].ID)
			require.NoError(t, err)
			assert.Nil(t, referred.ReferredBy)

			// The same referral goes through once writes recover.
			store.failCreateEdges, store.failSetReferredBy = nil, nil
			_, err = srv.CreateReferral(context.Background(), users[1].ID, users[2].ID)
			require.NoError(t, err)
			assert.Len(t, store.edgesOf(users[2].ID), 2)
		})
	}
}

func TestCreateReferral_SelfReferral(t *testing.T) {
	store := newMemStore()
	srv := createTestReferralService(store, 3)
	user := store.seedUser(t, entity.UserStatusActive)

	_, err := srv.CreateReferral(context.Background(), user.ID, user.ID)

	require.ErrorIs(t, err, domainerrors.ErrSelfReferral)
	assert.Empty(t, store.edgesOf(user.ID))
}

func TestCreateReferral_AlreadyReferred(t *testing.T) {
	store := newMemStore()
	srv := createTestReferralService(store, 3)
	users := seedUsers(t, store, 3)

	_, err := srv.CreateReferral(context.Background(), users[0].ID, users[2].ID)
	require.NoError(t, err)
	before := store.edgesOf(users[2].ID)

	_, err = srv.CreateReferral(context.Background(), users[0].ID, users[2].ID)
	require.ErrorIs(t, err, domainerrors.ErrAlreadyReferred)

	_, err = srv.CreateReferral(context.Background(), users[1].ID, users[2].ID)
	require.ErrorIs(t, err, domainerrors.ErrAlreadyReferred)

	assert.Equal(t, before, store.edgesOf(users[2].ID))
}

func TestCreateReferral_DepthCap(t *testing.T) {
	store := newMemStore()
	srv := createTestReferralService(store, 3)
	users := seedUsers(t, store, 10)

	buildChain(t, srv, users)

	edges := store.edgesOf(users[9].ID)
	require.Len(t, edges, 3)
	for i, edge := range edges {
		assert.Equal(t, i+1, edge.Level)
		assert.Equal(t, users[8-i].ID, edge.ReferrerID)
	}
}

func TestCreateReferral_Cycle(t *testing.T) {
	tests := []struct {
		name     string
		maxDepth int
		length   int
	}{
		{name: "within stored depth", maxDepth: 3, length: 3},
		{name: "beyond stored depth", maxDepth: 2, length: 7},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newMemStore()
			srv := createTestReferralService(store, tt.maxDepth)
			users := seedUsers(t, store, tt.length)
			buildChain(t, srv, users)

			root, leaf := users[0], users[len(users)-1]
			_, err := srv.CreateReferral(context.Background(), leaf.ID, root.ID)

			require.ErrorIs(t, err, domainerrors.ErrReferralCycle)
			assert.Empty(t, store.edgesOf(root.ID))
		})
	}
}

func TestCreateReferral_UnknownUsers(t *testing.T) {
	store := newMemStore()
	srv := createTestReferralService(store, 3)
	user := store.seedUser(t, entity.UserStatusActive)

	_, err := srv.CreateReferral(context.Background(), uuid.New(), user.ID)
	require.ErrorIs(t, err, domainerrors.ErrReferrerNotFound)

	_, err = srv.CreateReferral(context.Background(), user.ID, uuid.New())
	require.ErrorIs(t, err, domainerrors.ErrUserNotFound)
}

func TestResolveReferrer(t *testing.T) {
	store := newMemStore()
	srv := createTestReferralService(store, 3)
	active := store.seedUser(t, entity.UserStatusActive)
	disabled := store.seedUser(t, entity.UserStatusDisabled)

	tests := []struct {
		name    string
		value   string
		want    uuid.UUID
		wantErr error
	}{
		{name: "by referral code", value: active.ReferralCode, want: active.ID},
		{name: "code is case insensitive", value: " cx" + active.ReferralCode[2:] + " ", want: active.ID},
		{name: "by mobile", value: active.Mobile, want: active.ID},
		{name: "unknown", value: "CX999999", wantErr: domainerrors.ErrReferrerNotFound},
		{name: "empty", value: "  ", wantErr: domainerrors.ErrReferrerNotFound},
		{name: "disabled referrer", value: disabled.ReferralCode, wantErr: domainerrors.ErrReferrerNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			user, err := srv.ResolveReferrer(context.Background(), tt.value)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)

				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, user.ID)
		})
	}
}
