package usecase

import (
	"context"

	"clubinex/internal/domain/entity"

	"github.com/google/uuid"
)

// EarnPointsInput records a point-earning purchase.
type EarnPointsInput struct {
	UserID        uuid.UUID
	TransactionID string
	Amount        int64
}

// RedeemPointsInput spends points. Reference makes the redemption idempotent.
type RedeemPointsInput struct {
	UserID    uuid.UUID
	Amount    int64
	Reference string
}

// PointHistoryOutput is one page of a user's ledger.
type PointHistoryOutput struct {
	Balance      int64
	Transactions []*entity.PointTransaction
}

// PointUsecase is the entry point for point balance changes.
type PointUsecase interface {
	// EarnPoints credits the user and publishes a commission job after commit.
	EarnPoints(ctx context.Context, input EarnPointsInput) (*entity.PointTransaction, error)
	RedeemPoints(ctx context.Context, input RedeemPointsInput) (*entity.PointTransaction, error)
	Balance(ctx context.Context, userID uuid.UUID) (int64, error)
	History(ctx context.Context, userID uuid.UUID, limit, offset int) (*PointHistoryOutput, error)
}
