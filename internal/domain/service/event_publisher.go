package service

import (
	"context"

	"clubinex/internal/domain/entity"
)

// EventPublisher hands commission jobs to the asynchronous pipeline.
// Delivery is at least once; consumers rely on the job's idempotency key.
type EventPublisher interface {
	// PublishCommissionJob enqueues a job for the commission worker.
	PublishCommissionJob(ctx context.Context, job *entity.CommissionJob) error

	// Close releases any resources held by the publisher
	Close() error
}
