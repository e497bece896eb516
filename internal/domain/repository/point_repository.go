package repository

import (
	"context"
	"errors"

	"clubinex/internal/domain/entity"

	"github.com/google/uuid"
)

var (
	// ErrPointTransactionExists is returned when (user, reason, reference) is already in the ledger.
	ErrPointTransactionExists = errors.New("point transaction already recorded")

	// ErrPointTransactionNotFound is returned when a ledger row is not found.
	ErrPointTransactionNotFound = errors.New("point transaction not found")
)

// PointRepository persists the point ledger.
type PointRepository interface {
	// Create appends a ledger row. It returns ErrPointTransactionExists
	// without aborting the surrounding transaction when the key is taken.
	Create(ctx context.Context, txn *entity.PointTransaction) error

	// FindByReference returns the ledger row for (user, reason, reference).
	FindByReference(ctx context.Context, userID uuid.UUID, reason entity.PointReason, reference string) (*entity.PointTransaction, error)

	// ListByUser pages through a user's ledger, newest first.
	ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*entity.PointTransaction, error)
}
