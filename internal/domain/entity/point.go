package entity

import (
	"time"

	"github.com/google/uuid"
)

// PointReason classifies a point ledger entry.
type PointReason string

const (
	PointReasonEarn        PointReason = "earn"
	PointReasonCommission  PointReason = "commission"
	PointReasonRedeem      PointReason = "redeem"
	PointReasonSignupBonus PointReason = "signup_bonus"
	PointReasonAdjustment  PointReason = "adjustment"
)

// PointTransaction is one immutable ledger row. (UserID, Reason, Reference) is unique.
type PointTransaction struct {
	ID           uuid.UUID
	UserID       uuid.UUID
	Delta        int64
	BalanceAfter int64
	Reason       PointReason
	Reference    string
	CreatedAt    time.Time
}

// PointMutation describes a single change to a user's balance.
type PointMutation struct {
	UserID    uuid.UUID
	Delta     int64
	Reason    PointReason
	Reference string
}
