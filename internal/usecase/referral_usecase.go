// Package usecase contains the application-specific business rules.
// It orchestrates the domain layer to perform tasks.
package usecase

import (
	"context"

	"clubinex/internal/domain/entity"

	"github.com/google/uuid"
)

// ReferralUsecase builds the referral network.
type ReferralUsecase interface {
	// CreateReferral links referredID under referrerID and back-fills the
	// referrer's ancestors up to the configured depth, all in one transaction.
	CreateReferral(ctx context.Context, referrerID, referredID uuid.UUID) ([]*entity.ReferralEdge, error)

	// ResolveReferrer finds a referrer by referral code, falling back to mobile.
	ResolveReferrer(ctx context.Context, referralCodeOrMobile string) (*entity.User, error)
}

// ReferralStatsUsecase answers dashboard queries about a referrer's network.
type ReferralStatsUsecase interface {
	DirectReferrals(ctx context.Context, userID uuid.UUID) ([]entity.ReferredUser, error)
	TotalReferralCount(ctx context.Context, userID uuid.UUID) (int64, error)
	TotalCommission(ctx context.Context, userID uuid.UUID) (int64, error)
	ActiveReferralCount(ctx context.Context, userID uuid.UUID) (int64, error)
	Summary(ctx context.Context, userID uuid.UUID) (*entity.ReferralSummary, error)
}
