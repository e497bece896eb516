// Package repository defines the interfaces for the persistence layer.
// These interfaces act as a contract between the domain/application layers and the infrastructure layer.
package repository

import (
	"context"
	"errors"

	"clubinex/internal/domain/entity"

	"github.com/google/uuid"
)

var (
	// ErrUserNotFound is returned when a user is not found.
	ErrUserNotFound = errors.New("user not found")

	// ErrUserConflict is returned when the mobile, email or referral code is taken.
	ErrUserConflict = errors.New("user already exists")
)

// UserRepository defines the standard operations for user persistence.
type UserRepository interface {
	// FindByID retrieves a single non-deleted user by their unique ID.
	FindByID(ctx context.Context, id uuid.UUID) (*entity.User, error)

	// FindByMobile retrieves a user by mobile number.
	FindByMobile(ctx context.Context, mobile string) (*entity.User, error)

	// FindByEmail retrieves a user by email address.
	FindByEmail(ctx context.Context, email string) (*entity.User, error)

	// FindByReferralCode retrieves a user by their referral code.
	FindByReferralCode(ctx context.Context, code string) (*entity.User, error)

	// ExistsByReferralCode reports whether a referral code is taken.
	ExistsByReferralCode(ctx context.Context, code string) (bool, error)

	// Create persists a new user.
	Create(ctx context.Context, user *entity.User) error

	// UpdateStatus changes the account status.
	UpdateStatus(ctx context.Context, id uuid.UUID, status entity.UserStatus) error

	// SetReferredByIfEmpty sets referred_by only when it is still null and
	// reports whether a row changed.
	SetReferredByIfEmpty(ctx context.Context, id, referrerID uuid.UUID) (bool, error)

	// LockByID loads the user holding a row lock until the transaction ends.
	LockByID(ctx context.Context, id uuid.UUID) (*entity.User, error)

	// UpdateBalance writes the point balance of a locked user.
	UpdateBalance(ctx context.Context, id uuid.UUID, balance int64) error
}
