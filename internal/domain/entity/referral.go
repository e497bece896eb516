package entity

import (
	"time"

	"github.com/google/uuid"
)

// DirectReferralLevel is the level of the edge between a user and their direct referrer.
const DirectReferralLevel = 1

// ReferralEdge states that ReferrerID is an ancestor of ReferredID at distance Level.
type ReferralEdge struct {
	ID         uuid.UUID
	ReferrerID uuid.UUID
	ReferredID uuid.UUID
	Level      int
	CreatedAt  time.Time
}

// NewReferralEdge builds a closure edge. The caller guarantees level >= 1.
func NewReferralEdge(referrerID, referredID uuid.UUID, level int, now time.Time) *ReferralEdge {
	return &ReferralEdge{
		ID:         uuid.New(),
		ReferrerID: referrerID,
		ReferredID: referredID,
		Level:      level,
		CreatedAt:  now,
	}
}

// IsDirect reports whether the edge links a user to their direct referrer.
func (e *ReferralEdge) IsDirect() bool {
	return e.Level == DirectReferralLevel
}

// ReferredUser is a level-1 referral as shown on the referrer's dashboard.
type ReferredUser struct {
	UserID     uuid.UUID
	FullName   string
	Mobile     string
	Status     UserStatus
	ReferredAt time.Time
}

// IsActive reports whether the referred user is active.
func (r ReferredUser) IsActive() bool {
	return r.Status == UserStatusActive
}

// LevelCount is the number of referred users at one level.
type LevelCount struct {
	Level int
	Count int64
}

// ReferralSummary aggregates a referrer's network.
type ReferralSummary struct {
	DirectCount     int64
	TotalCount      int64
	ActiveCount     int64
	TotalCommission int64
	Levels          []LevelCount
}
