package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ReferralNetworkModel mirrors the 'referral_networks' closure table.
// (referred_id, level) is unique so each referred user has one direct referrer.
type ReferralNetworkModel struct {
	ID         uuid.UUID `gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	ReferrerID uuid.UUID `gorm:"type:uuid;not null;index:idx_referral_networks_referrer_level,priority:1"`
	ReferredID uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:uq_referral_networks_referred_level,priority:1;index"`
	Level      int       `gorm:"not null;check:level >= 1;uniqueIndex:uq_referral_networks_referred_level,priority:2;index:idx_referral_networks_referrer_level,priority:2"`
	CreatedAt  time.Time
	DeletedAt  gorm.DeletedAt `gorm:"index"`

	Referrer UserModel `gorm:"foreignKey:ReferrerID;constraint:OnDelete:CASCADE"`
	Referred UserModel `gorm:"foreignKey:ReferredID;constraint:OnDelete:CASCADE"`
}

// TableName explicitly sets the table name for GORM.
func (ReferralNetworkModel) TableName() string {
	return "referral_networks"
}

// ReferralCommissionModel mirrors the 'referral_commissions' table.
type ReferralCommissionModel struct {
	ID                  uuid.UUID `gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	NetworkID           uuid.UUID `gorm:"type:uuid;not null;index"`
	ReferrerID          uuid.UUID `gorm:"type:uuid;not null;index"`
	ReferredID          uuid.UUID `gorm:"type:uuid;not null"`
	Level               int       `gorm:"not null;uniqueIndex:uq_referral_commissions_source_level,priority:2"`
	SourceTransactionID string    `gorm:"type:varchar(128);not null;uniqueIndex:uq_referral_commissions_source_level,priority:1"`
	BaseAmount          int64     `gorm:"not null"`
	RateBps             int64     `gorm:"not null"`
	EarnedPoints        int64     `gorm:"not null"`
	CreatedAt           time.Time

	Network ReferralNetworkModel `gorm:"foreignKey:NetworkID"`
}

// TableName explicitly sets the table name for GORM.
func (ReferralCommissionModel) TableName() string {
	return "referral_commissions"
}
