package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// UserModel mirrors the 'users' table. PostgreSQL generates UUIDs via gen_random_uuid()
// when the domain does not supply one.
type UserModel struct {
	ID           uuid.UUID  `gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	Mobile       string     `gorm:"type:varchar(32);uniqueIndex;not null"`
	Email        *string    `gorm:"type:varchar(255);uniqueIndex"`
	PasswordHash string     `gorm:"type:varchar(255);not null"`
	FirstName    string     `gorm:"type:varchar(100)"`
	LastName     string     `gorm:"type:varchar(100)"`
	AvatarURL    string     `gorm:"type:varchar(512)"`
	BirthDate    *time.Time `gorm:"type:date"`
	Status       string     `gorm:"type:varchar(16);not null;default:pending;index"`
	ReferralCode string     `gorm:"type:varchar(32);uniqueIndex;not null"`
	ReferredBy   *uuid.UUID `gorm:"type:uuid;index"`
	OTPSecret    string     `gorm:"type:varchar(128)"`
	PointBalance int64      `gorm:"not null;default:0;check:point_balance >= 0"`
	Roles        string     `gorm:"type:varchar(255);not null;default:user"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
	DeletedAt    gorm.DeletedAt `gorm:"index"`
}

// TableName explicitly sets the table name for GORM.
func (UserModel) TableName() string {
	return "users"
}
