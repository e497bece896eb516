package repository

import (
	"context"
	"errors"

	"clubinex/internal/domain/entity"

	"github.com/google/uuid"
)

// ErrCommissionExists is returned when a commission for (source transaction, level) was already recorded.
var ErrCommissionExists = errors.New("commission already recorded")

// CommissionRepository persists referral commissions.
type CommissionRepository interface {
	// Create inserts a commission. It returns ErrCommissionExists without
	// aborting the surrounding transaction when the key is taken.
	Create(ctx context.Context, commission *entity.ReferralCommission) error

	// FindBySourceTransaction lists commissions created for one source transaction.
	FindBySourceTransaction(ctx context.Context, sourceTransactionID string) ([]*entity.ReferralCommission, error)

	// SumByReferrer sums earned points over every commission paid to referrerID.
	SumByReferrer(ctx context.Context, referrerID uuid.UUID) (int64, error)
}
