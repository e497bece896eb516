package impl

import (
	"context"
	"log/slog"
	"strings"

	"clubinex/config"
	deliverycontext "clubinex/internal/delivery/context"
	"clubinex/internal/domain/entity"
	domainerrors "clubinex/internal/domain/errors"
	"clubinex/internal/domain/repository"
	"clubinex/internal/domain/service"
	"clubinex/internal/usecase"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.uber.org/fx"
)

// commissionService implements the CommissionUsecase interface.
type commissionService struct {
	txManager repository.TransactionManager
	rates     entity.RateTable
	maxDepth  int
	clock     service.Clock
	logger    *slog.Logger
}

// CommissionServiceParams holds dependencies for CommissionService, injected by Fx.
type CommissionServiceParams struct {
	fx.In

	TxManager repository.TransactionManager
	Clock     service.Clock
	Config    *config.Config
	Logger    *slog.Logger
}

// NewCommissionService is the constructor for commissionService. The rate
// table is converted to basis points once, here.
func NewCommissionService(params CommissionServiceParams) usecase.CommissionUsecase {
	return &commissionService{
		txManager: params.TxManager,
		rates:     params.Config.Referral.RateTable(),
		maxDepth:  params.Config.Referral.MaxDepth,
		clock:     params.Clock,
		logger:    params.Logger,
	}
}

func (srv *commissionService) log(ctx context.Context) *slog.Logger {
	return deliverycontext.GetLoggerOrDefault(ctx, srv.logger)
}

func (srv *commissionService) AccrueCommission(ctx context.Context, input usecase.AccrueCommissionInput) ([]*entity.ReferralCommission, error) {
	if input.BaseAmount < 0 {
		return nil, domainerrors.ErrInvalidAmount
	}
	if strings.TrimSpace(input.SourceTransactionID) == "" {
		return nil, domainerrors.ErrValidationFailed.WithDetails("source transaction id is required")
	}
	if input.UserID == uuid.Nil {
		return nil, domainerrors.ErrValidationFailed.WithDetails("user id is required")
	}

	var written []*entity.ReferralCommission
	err := srv.txManager.Execute(ctx, func(repoFactory repository.RepositoryFactory) error {
		var txErr error
		written, txErr = srv.accrueTx(ctx, repoFactory, input)

		return txErr
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to accrue commission")
	}

	srv.log(ctx).Info("Commission accrued",
		slog.String("user_id", input.UserID.String()),
		slog.String("source_transaction_id", input.SourceTransactionID),
		slog.Int64("base_amount", input.BaseAmount),
		slog.Int("written", len(written)),
	)

	return written, nil
}

func (srv *commissionService) accrueTx(
	ctx context.Context,
	repoFactory repository.RepositoryFactory,
	input usecase.AccrueCommissionInput,
) ([]*entity.ReferralCommission, error) {
	if _, err := repoFactory.NewUserRepository().FindByID(ctx, input.UserID); err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, domainerrors.ErrUserNotFound
		}

		return nil, errors.Wrap(err, "failed to find user")
	}

	ancestors, err := repoFactory.NewReferralRepository().FindAncestors(ctx, input.UserID)
	if err != nil {
		return nil, errors.Wrap(err, "failed to find ancestors")
	}

	// Compute every level before writing so an overflow leaves nothing behind.
	now := srv.clock.Now()
	planned := make([]*entity.ReferralCommission, 0, len(ancestors))
	for _, edge := range ancestors {
		if edge.Level > srv.maxDepth {
			break
		}

		points, rateBps, ok := srv.rates.Commission(input.BaseAmount, edge.Level)
		if !ok {
			return nil, domainerrors.ErrCommissionOverflow.WithDetails(
				"base amount times level rate exceeds the integer range",
			)
		}
		if points == 0 {
			continue
		}

		planned = append(planned, entity.NewReferralCommission(edge, input.SourceTransactionID, input.BaseAmount, rateBps, points, now))
	}

	commissionRepo := repoFactory.NewCommissionRepository()
	written := make([]*entity.ReferralCommission, 0, len(planned))
	for _, commission := range planned {
		if err := commissionRepo.Create(ctx, commission); err != nil {
			if errors.Is(err, repository.ErrCommissionExists) {
				srv.log(ctx).Debug("Commission already recorded",
					slog.String("source_transaction_id", commission.SourceTransactionID),
					slog.Int("level", commission.Level),
				)

				continue
			}

			return nil, errors.Wrap(err, "failed to record commission")
		}

		_, _, err := applyPoints(ctx, repoFactory, entity.PointMutation{
			UserID:    commission.ReferrerID,
			Delta:     commission.EarnedPoints,
			Reason:    entity.PointReasonCommission,
			Reference: commission.ID.String(),
		}, now)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to credit level %d commission", commission.Level)
		}

		written = append(written, commission)
	}

	return written, nil
}

func (srv *commissionService) ProcessJob(ctx context.Context, job *entity.CommissionJob) error {
	if job == nil {
		return domainerrors.ErrValidationFailed.WithDetails("empty commission job")
	}

	_, err := srv.AccrueCommission(ctx, usecase.AccrueCommissionInput{
		UserID:              job.UserID,
		SourceTransactionID: job.TransactionID,
		BaseAmount:          job.Amount,
	})
	if err != nil {
		srv.log(ctx).Error("Commission job failed",
			slog.String("job_id", job.JobID),
			slog.String("transaction_id", job.TransactionID),
			slog.Bool("permanent", domainerrors.IsPermanent(err)),
			slog.Any("error", err),
		)

		return err
	}

	return nil
}
