package usecase

import (
	"context"

	"clubinex/internal/domain/entity"

	"github.com/google/uuid"
)

// AccrueCommissionInput identifies the point-earning transaction to pay commission on.
type AccrueCommissionInput struct {
	UserID              uuid.UUID
	SourceTransactionID string
	BaseAmount          int64
}

// CommissionUsecase pays referral commissions.
type CommissionUsecase interface {
	// AccrueCommission credits every ancestor of the user once per
	// (source transaction, level) and returns the commissions written by
	// this call. A replay returns an empty list.
	AccrueCommission(ctx context.Context, input AccrueCommissionInput) ([]*entity.ReferralCommission, error)

	// ProcessJob runs AccrueCommission for a queued job.
	ProcessJob(ctx context.Context, job *entity.CommissionJob) error
}
