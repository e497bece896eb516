package impl

import (
	"context"

	"clubinex/internal/domain/entity"
	"clubinex/internal/domain/repository"
	"clubinex/internal/usecase"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.uber.org/fx"
)

// referralStatsService implements the ReferralStatsUsecase interface.
// Every query is a single aggregate; the repositories route them to replicas.
type referralStatsService struct {
	referralRepo   repository.ReferralRepository
	commissionRepo repository.CommissionRepository
}

// ReferralStatsServiceParams holds dependencies for ReferralStatsService, injected by Fx.
type ReferralStatsServiceParams struct {
	fx.In

	ReferralRepo   repository.ReferralRepository
	CommissionRepo repository.CommissionRepository
}

// NewReferralStatsService is the constructor for referralStatsService.
func NewReferralStatsService(params ReferralStatsServiceParams) usecase.ReferralStatsUsecase {
	return &referralStatsService{
		referralRepo:   params.ReferralRepo,
		commissionRepo: params.CommissionRepo,
	}
}

func (srv *referralStatsService) DirectReferrals(ctx context.Context, userID uuid.UUID) ([]entity.ReferredUser, error) {
	referrals, err := srv.referralRepo.FindDirectReferrals(ctx, userID)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list direct referrals")
	}

	return referrals, nil
}

func (srv *referralStatsService) TotalReferralCount(ctx context.Context, userID uuid.UUID) (int64, error) {
	count, err := srv.referralRepo.CountByReferrer(ctx, userID)
	if err != nil {
		return 0, errors.Wrap(err, "failed to count referrals")
	}

	return count, nil
}

func (srv *referralStatsService) TotalCommission(ctx context.Context, userID uuid.UUID) (int64, error) {
	total, err := srv.commissionRepo.SumByReferrer(ctx, userID)
	if err != nil {
		return 0, errors.Wrap(err, "failed to sum commissions")
	}

	return total, nil
}

func (srv *referralStatsService) ActiveReferralCount(ctx context.Context, userID uuid.UUID) (int64, error) {
	count, err := srv.referralRepo.CountActiveByReferrer(ctx, userID)
	if err != nil {
		return 0, errors.Wrap(err, "failed to count active referrals")
	}

	return count, nil
}

func (srv *referralStatsService) Summary(ctx context.Context, userID uuid.UUID) (*entity.ReferralSummary, error) {
	levels, err := srv.referralRepo.CountByLevel(ctx, userID)
	if err != nil {
		return nil, errors.Wrap(err, "failed to count referrals by level")
	}

	summary := &entity.ReferralSummary{Levels: levels}
	for _, lc := range levels {
		if lc.Level == entity.DirectReferralLevel {
			summary.DirectCount = lc.Count
		}
		summary.TotalCount += lc.Count
	}

	if summary.ActiveCount, err = srv.ActiveReferralCount(ctx, userID); err != nil {
		return nil, err
	}
	if summary.TotalCommission, err = srv.TotalCommission(ctx, userID); err != nil {
		return nil, err
	}

	return summary, nil
}
