package postgres

import (
	"context"

	"clubinex/internal/domain/entity"
	domainerrors "clubinex/internal/domain/errors"
	"clubinex/internal/domain/repository"
	"clubinex/internal/infra/persistence/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/plugin/dbresolver"
)

type commissionRepository struct {
	db *gorm.DB
}

// NewCommissionRepository creates a referral commission repository on db.
func NewCommissionRepository(db *gorm.DB) repository.CommissionRepository {
	return &commissionRepository{db: db}
}

// Create uses ON CONFLICT DO NOTHING so a replayed commission does not abort
// the surrounding transaction.
func (repo *commissionRepository) Create(ctx context.Context, commission *entity.ReferralCommission) error {
	commissionM := fromCommissionDomain(commission)

	result := repo.db.WithContext(ctx).
		Omit("Network").
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "source_transaction_id"}, {Name: "level"}},
			DoNothing: true,
		}).
		Create(commissionM)
	if result.Error != nil {
		return domainerrors.NewDatabaseExecuteError(result.Error, "failed to create referral commission")
	}
	if result.RowsAffected == 0 {
		return repository.ErrCommissionExists
	}

	commission.CreatedAt = commissionM.CreatedAt

	return nil
}

func (repo *commissionRepository) FindBySourceTransaction(ctx context.Context, sourceTransactionID string) ([]*entity.ReferralCommission, error) {
	var commissionsM []*model.ReferralCommissionModel
	err := repo.db.WithContext(ctx).
		Where("source_transaction_id = ?", sourceTransactionID).
		Order("level ASC").
		Find(&commissionsM).Error
	if err != nil {
		return nil, domainerrors.NewDatabaseExecuteError(err, "failed to find commissions by source transaction")
	}

	commissions := make([]*entity.ReferralCommission, 0, len(commissionsM))
	for _, commissionM := range commissionsM {
		commissions = append(commissions, toCommissionDomain(commissionM))
	}

	return commissions, nil
}

func (repo *commissionRepository) SumByReferrer(ctx context.Context, referrerID uuid.UUID) (int64, error) {
	var total int64
	err := repo.db.WithContext(ctx).
		Clauses(dbresolver.Read).
		Model(&model.ReferralCommissionModel{}).
		Select("COALESCE(SUM(earned_points), 0)").
		Where("referrer_id = ?", referrerID).
		Scan(&total).Error
	if err != nil {
		return 0, domainerrors.NewDatabaseExecuteError(err, "failed to sum commissions")
	}

	return total, nil
}

func toCommissionDomain(data *model.ReferralCommissionModel) *entity.ReferralCommission {
	return &entity.ReferralCommission{
		ID:                  data.ID,
		NetworkID:           data.NetworkID,
		ReferrerID:          data.ReferrerID,
		ReferredID:          data.ReferredID,
		Level:               data.Level,
		SourceTransactionID: data.SourceTransactionID,
		BaseAmount:          data.BaseAmount,
		RateBps:             data.RateBps,
		EarnedPoints:        data.EarnedPoints,
		CreatedAt:           data.CreatedAt,
	}
}

func fromCommissionDomain(data *entity.ReferralCommission) *model.ReferralCommissionModel {
	return &model.ReferralCommissionModel{
		ID:                  data.ID,
		NetworkID:           data.NetworkID,
		ReferrerID:          data.ReferrerID,
		ReferredID:          data.ReferredID,
		Level:               data.Level,
		SourceTransactionID: data.SourceTransactionID,
		BaseAmount:          data.BaseAmount,
		RateBps:             data.RateBps,
		EarnedPoints:        data.EarnedPoints,
		CreatedAt:           data.CreatedAt,
	}
}
