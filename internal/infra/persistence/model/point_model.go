package model

import (
	"time"

	"github.com/google/uuid"
)

// PointTransactionModel mirrors the 'point_transactions' ledger.
type PointTransactionModel struct {
	ID           uuid.UUID `gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	UserID       uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:uq_point_transactions_ref,priority:1;index:idx_point_transactions_user_created,priority:1"`
	Delta        int64     `gorm:"not null"`
	BalanceAfter int64     `gorm:"not null"`
	Reason       string    `gorm:"type:varchar(32);not null;uniqueIndex:uq_point_transactions_ref,priority:2"`
	Reference    string    `gorm:"type:varchar(128);not null;uniqueIndex:uq_point_transactions_ref,priority:3"`
	CreatedAt    time.Time `gorm:"index:idx_point_transactions_user_created,priority:2"`

	User UserModel `gorm:"foreignKey:UserID"`
}

// TableName explicitly sets the table name for GORM.
func (PointTransactionModel) TableName() string {
	return "point_transactions"
}
