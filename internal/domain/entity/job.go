package entity

import (
	"time"

	"github.com/google/uuid"
)

// CommissionJob asks the worker to accrue commission for a point-earning transaction.
// TransactionID doubles as the idempotency key.
type CommissionJob struct {
	JobID         string    `json:"jobId"`
	UserID        uuid.UUID `json:"userId"`
	TransactionID string    `json:"transactionId"`
	Amount        int64     `json:"amount"`
	EnqueuedAt    time.Time `json:"enqueuedAt"`
	RequestID     string    `json:"requestId,omitempty"`
}

// IdempotencyKey returns the key under which replays converge.
func (j CommissionJob) IdempotencyKey() string {
	return j.TransactionID
}

// FailedJob is a job parked after exhausting its retries.
type FailedJob struct {
	ID             uuid.UUID
	Queue          string
	JobID          string
	IdempotencyKey string
	Payload        []byte
	Attempts       int
	LastError      string
	FailedAt       time.Time
	RetriedAt      *time.Time
}
