// Package entity contains the core business objects of the project,
// each representing a unique, identifiable concept within the domain.
package entity

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// UserStatus is the lifecycle state of a user account.
type UserStatus string

const (
	// UserStatusPending is a freshly registered account awaiting mobile verification.
	UserStatusPending UserStatus = "pending"
	// UserStatusActive is a verified account.
	UserStatusActive UserStatus = "active"
	// UserStatusDisabled is an account blocked by an operator.
	UserStatusDisabled UserStatus = "disabled"
)

// IsValid checks if the status is a known value.
func (s UserStatus) IsValid() bool {
	switch s {
	case UserStatusPending, UserStatusActive, UserStatusDisabled:
		return true
	default:
		return false
	}
}

// User is a loyalty member identified by their mobile number.
type User struct {
	ID           uuid.UUID  // The Global Unique Identifier (GUID) for the user.
	Mobile       string     // Unique mobile number, the primary login key.
	Email        string     // Optional contact email.
	PasswordHash string     // bcrypt hash of the password.
	FirstName    string     // Given name.
	LastName     string     // Family name.
	AvatarURL    string     // Optional profile picture.
	BirthDate    *time.Time // Optional birth date.
	Status       UserStatus // pending, active or disabled.
	ReferralCode string     // Unique code other users enter when registering.
	ReferredBy   *uuid.UUID // Direct referrer, set at most once.
	OTPSecret    string     // TOTP secret used for mobile verification.
	PointBalance int64      // Current points, mutated only through the point ledger.
	Roles        Roles      // Granted roles.
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// NewUserParams holds the fields accepted when creating a user.
type NewUserParams struct {
	Mobile       string
	Email        string
	PasswordHash string
	FirstName    string
	LastName     string
	ReferralCode string
	OTPSecret    string
}

// NewUser builds a pending user with a fresh ID.
func NewUser(params NewUserParams, now time.Time) *User {
	return &User{
		ID:           uuid.New(),
		Mobile:       strings.TrimSpace(params.Mobile),
		Email:        strings.ToLower(strings.TrimSpace(params.Email)),
		PasswordHash: params.PasswordHash,
		FirstName:    strings.TrimSpace(params.FirstName),
		LastName:     strings.TrimSpace(params.LastName),
		Status:       UserStatusPending,
		ReferralCode: params.ReferralCode,
		OTPSecret:    params.OTPSecret,
		Roles:        Roles{RoleUser},
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

// FullName joins first and last name, skipping empty parts.
func (u *User) FullName() string {
	return strings.TrimSpace(strings.Join([]string{u.FirstName, u.LastName}, " "))
}

// ProfileCompletionPercentage reports how many optional profile fields are filled in.
func (u *User) ProfileCompletionPercentage() int {
	fields := []bool{
		u.Mobile != "",
		u.Email != "",
		u.FirstName != "",
		u.LastName != "",
		u.AvatarURL != "",
		u.BirthDate != nil,
	}

	filled := 0
	for _, ok := range fields {
		if ok {
			filled++
		}
	}

	return filled * 100 / len(fields)
}

// IsActive reports whether the user has verified their mobile and is not disabled.
func (u *User) IsActive() bool {
	return u.Status == UserStatusActive
}

// HasReferrer reports whether the direct referrer is already set.
func (u *User) HasReferrer() bool {
	return u.ReferredBy != nil
}
