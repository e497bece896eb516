package postgres

import (
	"context"

	"clubinex/internal/domain/entity"
	domainerrors "clubinex/internal/domain/errors"
	"clubinex/internal/domain/repository"
	"clubinex/internal/infra/persistence/model"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type pointRepository struct {
	db *gorm.DB
}

// NewPointRepository creates a point ledger repository on db.
func NewPointRepository(db *gorm.DB) repository.PointRepository {
	return &pointRepository{db: db}
}

func (repo *pointRepository) Create(ctx context.Context, txn *entity.PointTransaction) error {
	txnM := fromPointTransactionDomain(txn)

	result := repo.db.WithContext(ctx).
		Omit("User").
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}, {Name: "reason"}, {Name: "reference"}},
			DoNothing: true,
		}).
		Create(txnM)
	if result.Error != nil {
		return domainerrors.NewDatabaseExecuteError(result.Error, "failed to create point transaction")
	}
	if result.RowsAffected == 0 {
		return repository.ErrPointTransactionExists
	}

	txn.CreatedAt = txnM.CreatedAt

	return nil
}

func (repo *pointRepository) FindByReference(ctx context.Context, userID uuid.UUID, reason entity.PointReason, reference string) (*entity.PointTransaction, error) {
	var txnM model.PointTransactionModel
	err := repo.db.WithContext(ctx).
		Where("user_id = ? AND reason = ? AND reference = ?", userID, string(reason), reference).
		First(&txnM).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, repository.ErrPointTransactionNotFound
		}

		return nil, domainerrors.NewDatabaseExecuteError(err, "failed to find point transaction")
	}

	return toPointTransactionDomain(&txnM), nil
}

func (repo *pointRepository) ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*entity.PointTransaction, error) {
	var txnsM []*model.PointTransactionModel
	err := repo.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&txnsM).Error
	if err != nil {
		return nil, domainerrors.NewDatabaseExecuteError(err, "failed to list point transactions")
	}

	txns := make([]*entity.PointTransaction, 0, len(txnsM))
	for _, txnM := range txnsM {
		txns = append(txns, toPointTransactionDomain(txnM))
	}

	return txns, nil
}

func toPointTransactionDomain(data *model.PointTransactionModel) *entity.PointTransaction {
	return &entity.PointTransaction{
		ID:           data.ID,
		UserID:       data.UserID,
		Delta:        data.Delta,
		BalanceAfter: data.BalanceAfter,
		Reason:       entity.PointReason(data.Reason),
		Reference:    data.Reference,
		CreatedAt:    data.CreatedAt,
	}
}

func fromPointTransactionDomain(data *entity.PointTransaction) *model.PointTransactionModel {
	return &model.PointTransactionModel{
		ID:           data.ID,
		UserID:       data.UserID,
		Delta:        data.Delta,
		BalanceAfter: data.BalanceAfter,
		Reason:       string(data.Reason),
		Reference:    data.Reference,
		CreatedAt:    data.CreatedAt,
	}
}
