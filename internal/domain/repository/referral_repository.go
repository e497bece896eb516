package repository

import (
	"context"
	"errors"

	"clubinex/internal/domain/entity"

	"github.com/google/uuid"
)

var (
	// ErrReferralEdgeNotFound is returned when a user has no direct referrer.
	ErrReferralEdgeNotFound = errors.New("referral edge not found")

	// ErrReferralEdgeExists is returned when an edge for (referred, level) already exists.
	ErrReferralEdgeExists = errors.New("referral edge already exists")
)

// ReferralRepository persists the closure table of the referral tree.
type ReferralRepository interface {
	// CreateEdges inserts all edges of one referred user.
	CreateEdges(ctx context.Context, edges []*entity.ReferralEdge) error

	// FindDirectEdge returns the level-1 edge of referredID.
	FindDirectEdge(ctx context.Context, referredID uuid.UUID) (*entity.ReferralEdge, error)

	// FindAncestors returns every edge whose referred side is referredID, ordered by level ascending.
	FindAncestors(ctx context.Context, referredID uuid.UUID) ([]*entity.ReferralEdge, error)

	// FindDirectReferrals returns level-1 referred users of referrerID with their status.
	FindDirectReferrals(ctx context.Context, referrerID uuid.UUID) ([]entity.ReferredUser, error)

	// CountByReferrer counts edges of referrerID across all levels.
	CountByReferrer(ctx context.Context, referrerID uuid.UUID) (int64, error)

	// CountActiveByReferrer counts edges of referrerID whose referred user is active.
	CountActiveByReferrer(ctx context.Context, referrerID uuid.UUID) (int64, error)

	// CountByLevel groups the edges of referrerID by level.
	CountByLevel(ctx context.Context, referrerID uuid.UUID) ([]entity.LevelCount, error)
}
