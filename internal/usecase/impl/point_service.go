package impl

import (
	"context"
	"log/slog"
	"strings"

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

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// pointService implements the PointUsecase interface.
type pointService struct {
	txManager repository.TransactionManager
	userRepo  repository.UserRepository
	pointRepo repository.PointRepository
	publisher service.EventPublisher
	clock     service.Clock
	logger    *slog.Logger
}

// PointServiceParams holds dependencies for PointService, injected by Fx.
type PointServiceParams struct {
	fx.In

	TxManager repository.TransactionManager
	UserRepo  repository.UserRepository
	PointRepo repository.PointRepository
	Publisher service.EventPublisher
	Clock     service.Clock
	Logger    *slog.Logger
}

// NewPointService is the constructor for pointService.
func NewPointService(params PointServiceParams) usecase.PointUsecase {
	return &pointService{
		txManager: params.TxManager,
		userRepo:  params.UserRepo,
		pointRepo: params.PointRepo,
		publisher: params.Publisher,
		clock:     params.Clock,
		logger:    params.Logger,
	}
}

func (srv *pointService) log(ctx context.Context) *slog.Logger {
	return deliverycontext.GetLoggerOrDefault(ctx, srv.logger)
}

func (srv *pointService) EarnPoints(ctx context.Context, input usecase.EarnPointsInput) (*entity.PointTransaction, error) {
	transactionID := strings.TrimSpace(input.TransactionID)
	if input.Amount <= 0 {
		return nil, domainerrors.ErrInvalidAmount.WithDetails("earned amount must be positive")
	}
	if transactionID == "" {
		return nil, domainerrors.ErrValidationFailed.WithDetails("transaction id is required")
	}

	var txn *entity.PointTransaction
	var applied bool
	err := srv.txManager.Execute(ctx, func(repoFactory repository.RepositoryFactory) error {
		user, err := repoFactory.NewUserRepository().FindByID(ctx, input.UserID)
		if err != nil {
			if errors.Is(err, repository.ErrUserNotFound) {
				return domainerrors.ErrUserNotFound
			}

			return errors.Wrap(err, "failed to find user")
		}
		if user.Status == entity.UserStatusDisabled {
			return domainerrors.ErrUserDisabled
		}

		txn, applied, err = applyPoints(ctx, repoFactory, entity.PointMutation{
			UserID:    input.UserID,
			Delta:     input.Amount,
			Reason:    entity.PointReasonEarn,
			Reference: transactionID,
		}, srv.clock.Now())

		return err
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to earn points")
	}

	// Published after commit. A replayed transaction publishes again; the
	// commission keys make the second job a no-op.
	job := &entity.CommissionJob{
		JobID:         uuid.NewString(),
		UserID:        input.UserID,
		TransactionID: transactionID,
		Amount:        input.Amount,
		EnqueuedAt:    srv.clock.Now(),
		RequestID:     deliverycontext.GetRequestIDFromContext(ctx),
	}
	if err := srv.publisher.PublishCommissionJob(ctx, job); err != nil {
		srv.log(ctx).Error("Failed to publish commission job",
			slog.String("transaction_id", transactionID),
			slog.String("job_id", job.JobID),
			slog.Any("error", err),
		)

		return txn, errors.Wrap(err, "points were credited but the commission job was not published")
	}

	srv.log(ctx).Info("Points earned",
		slog.String("user_id", input.UserID.String()),
		slog.String("transaction_id", transactionID),
		slog.Int64("amount", input.Amount),
		slog.Bool("replay", !applied),
	)

	return txn, nil
}

func (srv *pointService) RedeemPoints(ctx context.Context, input usecase.RedeemPointsInput) (*entity.PointTransaction, error) {
	reference := strings.TrimSpace(input.Reference)
	if input.Amount <= 0 {
		return nil, domainerrors.ErrInvalidAmount.WithDetails("redeemed amount must be positive")
	}
	if reference == "" {
		return nil, domainerrors.ErrValidationFailed.WithDetails("redemption reference is required")
	}

	var txn *entity.PointTransaction
	err := srv.txManager.Execute(ctx, func(repoFactory repository.RepositoryFactory) error {
		var txErr error
		txn, _, txErr = applyPoints(ctx, repoFactory, entity.PointMutation{
			UserID:    input.UserID,
			Delta:     -input.Amount,
			Reason:    entity.PointReasonRedeem,
			Reference: reference,
		}, srv.clock.Now())

		return txErr
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to redeem points")
	}

	return txn, nil
}

func (srv *pointService) Balance(ctx context.Context, userID uuid.UUID) (int64, error) {
	user, err := srv.userRepo.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return 0, domainerrors.ErrUserNotFound
		}

		return 0, errors.Wrap(err, "failed to find user")
	}

	return user.PointBalance, nil
}

func (srv *pointService) History(ctx context.Context, userID uuid.UUID, limit, offset int) (*usecase.PointHistoryOutput, error) {
	balance, err := srv.Balance(ctx, userID)
	if err != nil {
		return nil, err
	}

	txns, err := srv.pointRepo.ListByUser(ctx, userID, clampLimit(limit), max(offset, 0))
	if err != nil {
		return nil, errors.Wrap(err, "failed to list point transactions")
	}

	return &usecase.PointHistoryOutput{
		Balance:      balance,
		Transactions: txns,
	}, nil
}

func clampLimit(limit int) int {
	switch {
	case limit <= 0:
		return defaultPageSize
	case limit > maxPageSize:
		return maxPageSize
	default:
		return limit
	}
}
