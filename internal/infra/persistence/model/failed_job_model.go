package model

import (
	"time"

	"github.com/google/uuid"
)

// FailedJobModel mirrors the 'failed_jobs' dead-letter table.
type FailedJobModel struct {
	ID             uuid.UUID `gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	Queue          string    `gorm:"type:varchar(64);not null;index"`
	JobID          string    `gorm:"type:varchar(64);not null"`
	IdempotencyKey string    `gorm:"type:varchar(128);not null;index"`
	Payload        string    `gorm:"type:jsonb;not null"`
	Attempts       int       `gorm:"not null"`
	LastError      string    `gorm:"type:text"`
	FailedAt       time.Time `gorm:"not null;index"`
	RetriedAt      *time.Time
}

// TableName explicitly sets the table name for GORM.
func (FailedJobModel) TableName() string {
	return "failed_jobs"
}
