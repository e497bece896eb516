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

// networkBuilder inserts a user into the closure table. It only ever runs
// inside a caller transaction.
type networkBuilder struct {
	maxDepth int
	clock    service.Clock
}

func newNetworkBuilder(cfg *config.Config, clock service.Clock) *networkBuilder {
	return &networkBuilder{
		maxDepth: cfg.Referral.MaxDepth,
		clock:    clock,
	}
}

func (b *networkBuilder) createReferralTx(
	ctx context.Context,
	repoFactory repository.RepositoryFactory,
	referrerID, referredID uuid.UUID,
) ([]*entity.ReferralEdge, error) {
	if referrerID == referredID {
		return nil, domainerrors.ErrSelfReferral
	}

	userRepo := repoFactory.NewUserRepository()
	referralRepo := repoFactory.NewReferralRepository()

	if _, err := userRepo.FindByID(ctx, referrerID); err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, domainerrors.ErrReferrerNotFound
		}

		return nil, errors.Wrap(err, "failed to find referrer")
	}
	if _, err := userRepo.FindByID(ctx, referredID); err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, domainerrors.ErrUserNotFound
		}

		return nil, errors.Wrap(err, "failed to find referred user")
	}

	_, err := referralRepo.FindDirectEdge(ctx, referredID)
	if err == nil {
		return nil, domainerrors.ErrAlreadyReferred
	}
	if !errors.Is(err, repository.ErrReferralEdgeNotFound) {
		return nil, errors.Wrap(err, "failed to find direct referral edge")
	}

	ancestors, err := referralRepo.FindAncestors(ctx, referrerID)
	if err != nil {
		return nil, errors.Wrap(err, "failed to find referrer ancestors")
	}

	cycle, err := b.reaches(ctx, referralRepo, ancestors, referredID)
	if err != nil {
		return nil, err
	}
	if cycle {
		return nil, domainerrors.ErrReferralCycle
	}

	now := b.clock.Now()
	edges := []*entity.ReferralEdge{
		entity.NewReferralEdge(referrerID, referredID, entity.DirectReferralLevel, now),
	}
	for _, ancestor := range ancestors {
		if ancestor.Level >= b.maxDepth {
			break
		}
		edges = append(edges, entity.NewReferralEdge(ancestor.ReferrerID, referredID, ancestor.Level+1, now))
	}

	if err := referralRepo.CreateEdges(ctx, edges); err != nil {
		// A concurrent registration won the (referred, level 1) key.
		if errors.Is(err, repository.ErrReferralEdgeExists) {
			return nil, domainerrors.ErrAlreadyReferred
		}

		return nil, errors.Wrap(err, "failed to create referral edges")
	}

	changed, err := userRepo.SetReferredByIfEmpty(ctx, referredID, referrerID)
	if err != nil {
		return nil, errors.Wrap(err, "failed to set referred_by")
	}
	if !changed {
		return nil, domainerrors.ErrAlreadyReferred
	}

	return edges, nil
}

// reaches reports whether target is an ancestor along the chain starting
// at ancestors. The closure table stores at most maxDepth levels per user,
// so the walk hops from the highest stored ancestor until the root.
func (b *networkBuilder) reaches(
	ctx context.Context,
	referralRepo repository.ReferralRepository,
	ancestors []*entity.ReferralEdge,
	target uuid.UUID,
) (bool, error) {
	visited := make(map[uuid.UUID]bool)
	for len(ancestors) > 0 {
		for _, edge := range ancestors {
			if edge.ReferrerID == target {
				return true, nil
			}
		}

		top := ancestors[len(ancestors)-1].ReferrerID
		if visited[top] {
			return false, nil
		}
		visited[top] = true

		var err error
		ancestors, err = referralRepo.FindAncestors(ctx, top)
		if err != nil {
			return false, errors.Wrap(err, "failed to walk referral chain")
		}
	}

	return false, nil
}

// resolveReferrer looks up by referral code first, then by mobile.
func resolveReferrer(ctx context.Context, userRepo repository.UserRepository, referralCodeOrMobile string) (*entity.User, error) {
	value := strings.TrimSpace(referralCodeOrMobile)
	if value == "" {
		return nil, domainerrors.ErrReferrerNotFound
	}

	user, err := userRepo.FindByReferralCode(ctx, strings.ToUpper(value))
	if errors.Is(err, repository.ErrUserNotFound) {
		user, err = userRepo.FindByMobile(ctx, value)
	}
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, domainerrors.ErrReferrerNotFound
		}

		return nil, errors.Wrap(err, "failed to resolve referrer")
	}
	if user.Status == entity.UserStatusDisabled {
		return nil, domainerrors.ErrReferrerNotFound.WithDetails("the referrer account is disabled")
	}

	return user, nil
}

// referralService implements the ReferralUsecase interface.
type referralService struct {
	txManager repository.TransactionManager
	userRepo  repository.UserRepository
	builder   *networkBuilder
	logger    *slog.Logger
}

// ReferralServiceParams holds dependencies for ReferralService, injected by Fx.
type ReferralServiceParams struct {
	fx.In

	TxManager repository.TransactionManager
	UserRepo  repository.UserRepository
	Clock     service.Clock
	Config    *config.Config
	Logger    *slog.Logger
}

// NewReferralService is the constructor for referralService.
func NewReferralService(params ReferralServiceParams) usecase.ReferralUsecase {
	return &referralService{
		txManager: params.TxManager,
		userRepo:  params.UserRepo,
		builder:   newNetworkBuilder(params.Config, params.Clock),
		logger:    params.Logger,
	}
}

func (srv *referralService) log(ctx context.Context) *slog.Logger {
	return deliverycontext.GetLoggerOrDefault(ctx, srv.logger)
}

func (srv *referralService) CreateReferral(ctx context.Context, referrerID, referredID uuid.UUID) ([]*entity.ReferralEdge, error) {
	if referrerID == referredID {
		return nil, domainerrors.ErrSelfReferral
	}

	var edges []*entity.ReferralEdge
	err := srv.txManager.Execute(ctx, func(repoFactory repository.RepositoryFactory) error {
		var txErr error
		edges, txErr = srv.builder.createReferralTx(ctx, repoFactory, referrerID, referredID)

		return txErr
	})
	if err != nil {
		srv.log(ctx).Warn("Failed to create referral",
			slog.String("referrer_id", referrerID.String()),
			slog.String("referred_id", referredID.String()),
			slog.Any("error", err),
		)

		return nil, errors.Wrap(err, "failed to create referral")
	}

	srv.log(ctx).Info("Referral created",
		slog.String("referrer_id", referrerID.String()),
		slog.String("referred_id", referredID.String()),
		slog.Int("edges", len(edges)),
	)

	return edges, nil
}

func (srv *referralService) ResolveReferrer(ctx context.Context, referralCodeOrMobile string) (*entity.User, error) {
	return resolveReferrer(ctx, srv.userRepo, referralCodeOrMobile)
}
