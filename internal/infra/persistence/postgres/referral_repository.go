package postgres

import (
	"context"
	"time"

	"clubinex/internal/domain/entity"
	domainerrors "clubinex/internal/domain/errors"
	"clubinex/internal/domain/repository"
	"clubinex/internal/infra/persistence/model"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"gorm.io/gorm"
	"gorm.io/plugin/dbresolver"
)

type referralRepository struct {
	db *gorm.DB
}

// NewReferralRepository creates a closure-table repository on db.
func NewReferralRepository(db *gorm.DB) repository.ReferralRepository {
	return &referralRepository{db: db}
}

func (repo *referralRepository) CreateEdges(ctx context.Context, edges []*entity.ReferralEdge) error {
	if len(edges) == 0 {
		return nil
	}

	models := make([]*model.ReferralNetworkModel, 0, len(edges))
	for _, edge := range edges {
		models = append(models, fromReferralEdgeDomain(edge))
	}

	if err := repo.db.WithContext(ctx).Omit("Referrer", "Referred").Create(&models).Error; err != nil {
		if isUniqueConstraintViolation(err) {
			return repository.ErrReferralEdgeExists
		}
		if isForeignKeyConstraintViolation(err) {
			return errors.Wrap(repository.ErrUserNotFound, "referral edge references a missing user")
		}

		return domainerrors.NewDatabaseExecuteError(err, "failed to create referral edges")
	}

	return nil
}

func (repo *referralRepository) FindDirectEdge(ctx context.Context, referredID uuid.UUID) (*entity.ReferralEdge, error) {
	var edgeM model.ReferralNetworkModel
	err := repo.db.WithContext(ctx).
		Where("referred_id = ? AND level = ?", referredID, entity.DirectReferralLevel).
		First(&edgeM).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, repository.ErrReferralEdgeNotFound
		}

		return nil, domainerrors.NewDatabaseExecuteError(err, "failed to find direct referral edge")
	}

	return toReferralEdgeDomain(&edgeM), nil
}

func (repo *referralRepository) FindAncestors(ctx context.Context, referredID uuid.UUID) ([]*entity.ReferralEdge, error) {
	var edgesM []*model.ReferralNetworkModel
	err := repo.db.WithContext(ctx).
		Where("referred_id = ?", referredID).
		Order("level ASC").
		Find(&edgesM).Error
	if err != nil {
		return nil, domainerrors.NewDatabaseExecuteError(err, "failed to find ancestor edges")
	}

	edges := make([]*entity.ReferralEdge, 0, len(edgesM))
	for _, edgeM := range edgesM {
		edges = append(edges, toReferralEdgeDomain(edgeM))
	}

	return edges, nil
}

type referredUserRow struct {
	UserID     uuid.UUID
	FirstName  string
	LastName   string
	Mobile     string
	Status     string
	ReferredAt time.Time
}

func (repo *referralRepository) FindDirectReferrals(ctx context.Context, referrerID uuid.UUID) ([]entity.ReferredUser, error) {
	var rows []referredUserRow
	err := repo.db.WithContext(ctx).
		Clauses(dbresolver.Read).
		Table("referral_networks AS rn").
		Select("u.id AS user_id, u.first_name, u.last_name, u.mobile, u.status, rn.created_at AS referred_at").
		Joins("JOIN users AS u ON u.id = rn.referred_id AND u.deleted_at IS NULL").
		Where("rn.referrer_id = ? AND rn.level = ? AND rn.deleted_at IS NULL", referrerID, entity.DirectReferralLevel).
		Order("rn.created_at DESC").
		Scan(&rows).Error
	if err != nil {
		return nil, domainerrors.NewDatabaseExecuteError(err, "failed to list direct referrals")
	}

	referred := make([]entity.ReferredUser, 0, len(rows))
	for _, row := range rows {
		u := entity.User{FirstName: row.FirstName, LastName: row.LastName}
		referred = append(referred, entity.ReferredUser{
			UserID:     row.UserID,
			FullName:   u.FullName(),
			Mobile:     row.Mobile,
			Status:     entity.UserStatus(row.Status),
			ReferredAt: row.ReferredAt,
		})
	}

	return referred, nil
}

func (repo *referralRepository) CountByReferrer(ctx context.Context, referrerID uuid.UUID) (int64, error) {
	var count int64
	err := repo.db.WithContext(ctx).
		Clauses(dbresolver.Read).
		Model(&model.ReferralNetworkModel{}).
		Where("referrer_id = ?", referrerID).
		Count(&count).Error
	if err != nil {
		return 0, domainerrors.NewDatabaseExecuteError(err, "failed to count referrals")
	}

	return count, nil
}

func (repo *referralRepository) CountActiveByReferrer(ctx context.Context, referrerID uuid.UUID) (int64, error) {
	var count int64
	err := repo.db.WithContext(ctx).
		Clauses(dbresolver.Read).
		Table("referral_networks AS rn").
		Joins("JOIN users AS u ON u.id = rn.referred_id AND u.deleted_at IS NULL").
		Where("rn.referrer_id = ? AND rn.deleted_at IS NULL AND u.status = ?", referrerID, string(entity.UserStatusActive)).
		Count(&count).Error
	if err != nil {
		return 0, domainerrors.NewDatabaseExecuteError(err, "failed to count active referrals")
	}

	return count, nil
}

func (repo *referralRepository) CountByLevel(ctx context.Context, referrerID uuid.UUID) ([]entity.LevelCount, error) {
	var rows []entity.LevelCount
	err := repo.db.WithContext(ctx).
		Clauses(dbresolver.Read).
		Model(&model.ReferralNetworkModel{}).
		Select("level, COUNT(*) AS count").
		Where("referrer_id = ?", referrerID).
		Group("level").
		Order("level ASC").
		Scan(&rows).Error
	if err != nil {
		return nil, domainerrors.NewDatabaseExecuteError(err, "failed to count referrals by level")
	}

	return rows, nil
}

func toReferralEdgeDomain(data *model.ReferralNetworkModel) *entity.ReferralEdge {
	return &entity.ReferralEdge{
		ID:         data.ID,
		ReferrerID: data.ReferrerID,
		ReferredID: data.ReferredID,
		Level:      data.Level,
		CreatedAt:  data.CreatedAt,
	}
}

func fromReferralEdgeDomain(data *entity.ReferralEdge) *model.ReferralNetworkModel {
	return &model.ReferralNetworkModel{
		ID:         data.ID,
		ReferrerID: data.ReferrerID,
		ReferredID: data.ReferredID,
		Level:      data.Level,
		CreatedAt:  data.CreatedAt,
	}
}
