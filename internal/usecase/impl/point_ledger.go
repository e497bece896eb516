// Package impl contains the implementation of the application's business logic.
package impl

import (
	"context"
	"math"
	"time"

	"clubinex/internal/domain/entity"
	domainerrors "clubinex/internal/domain/errors"
	"clubinex/internal/domain/repository"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// applyPoints is the only path that changes a point balance. It must run
// inside a transaction: the user row stays locked until commit. A mutation
// whose (user, reason, reference) is already in the ledger returns the
// existing row with applied=false.
func applyPoints(
	ctx context.Context,
	repoFactory repository.RepositoryFactory,
	mutation entity.PointMutation,
	now time.Time,
) (txn *entity.PointTransaction, applied bool, err error) {
	if mutation.Delta == 0 {
		return nil, false, domainerrors.ErrInvalidAmount.WithDetails("point delta must not be zero")
	}
	if mutation.Reference == "" {
		return nil, false, domainerrors.ErrValidationFailed.WithDetails("point reference is required")
	}

	userRepo := repoFactory.NewUserRepository()
	pointRepo := repoFactory.NewPointRepository()

	user, err := userRepo.LockByID(ctx, mutation.UserID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, false, domainerrors.ErrUserNotFound
		}

		return nil, false, errors.Wrap(err, "failed to lock user")
	}

	// Checked under the lock, so concurrent replays of one mutation cannot both pass.
	existing, err := pointRepo.FindByReference(ctx, mutation.UserID, mutation.Reason, mutation.Reference)
	if err == nil {
		return existing, false, nil
	}
	if !errors.Is(err, repository.ErrPointTransactionNotFound) {
		return nil, false, errors.Wrap(err, "failed to look up ledger entry")
	}

	if mutation.Delta > 0 && user.PointBalance > math.MaxInt64-mutation.Delta {
		return nil, false, domainerrors.ErrBalanceOverflow
	}
	balance := user.PointBalance + mutation.Delta
	if balance < 0 {
		return nil, false, domainerrors.ErrInsufficientPoints
	}

	txn = &entity.PointTransaction{
		ID:           uuid.New(),
		UserID:       mutation.UserID,
		Delta:        mutation.Delta,
		BalanceAfter: balance,
		Reason:       mutation.Reason,
		Reference:    mutation.Reference,
		CreatedAt:    now,
	}
	if err := pointRepo.Create(ctx, txn); err != nil {
		if errors.Is(err, repository.ErrPointTransactionExists) {
			existing, findErr := pointRepo.FindByReference(ctx, mutation.UserID, mutation.Reason, mutation.Reference)
			if findErr != nil {
				return nil, false, errors.Wrap(findErr, "failed to load existing ledger entry")
			}

			return existing, false, nil
		}

		return nil, false, errors.Wrap(err, "failed to append ledger entry")
	}

	if err := userRepo.UpdateBalance(ctx, mutation.UserID, balance); err != nil {
		return nil, false, errors.Wrap(err, "failed to update point balance")
	}

	return txn, true, nil
}
