package usecase

import (
	"context"

	"clubinex/internal/domain/entity"

	"github.com/google/uuid"
)

// --- Input DTOs ---

// RegisterInput defines the data required to register a new member.
type RegisterInput struct {
	Mobile    string
	Email     string
	Password  string
	FirstName string
	LastName  string
	// ReferralCode is a referral code or the referrer's mobile, optional.
	ReferralCode string
}

// LoginInput defines the data required for a member to log in.
type LoginInput struct {
	Mobile   string
	Password string
}

// --- Output DTOs ---

// RegisterOutput returns the newly created member and their referral edges.
type RegisterOutput struct {
	User     *entity.User
	Referrer *entity.User
	Edges    []*entity.ReferralEdge
}

// LoginOutput returns the generated tokens after a successful login.
type LoginOutput struct {
	AccessToken  string
	RefreshToken string
	User         *entity.User
}

// UserUsecase defines the member directory operations.
type UserUsecase interface {
	Register(ctx context.Context, input RegisterInput) (*RegisterOutput, error)
	VerifyMobile(ctx context.Context, userID uuid.UUID, code string) (*entity.User, error)
	Login(ctx context.Context, input LoginInput) (*LoginOutput, error)
	Refresh(ctx context.Context, refreshToken string) (*LoginOutput, error)
	Profile(ctx context.Context, userID uuid.UUID) (*entity.User, error)
	Disable(ctx context.Context, userID uuid.UUID) error
}
