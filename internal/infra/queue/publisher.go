package queue

import (
	"context"
	"log/slog"

	"clubinex/internal/domain/entity"
	"clubinex/internal/domain/service"
)

type redisPublisher struct {
	queue  *Queue
	logger *slog.Logger
}

// NewPublisher publishes commission jobs onto q.
func NewPublisher(q *Queue, logger *slog.Logger) service.EventPublisher {
	return &redisPublisher{queue: q, logger: logger}
}

func (p *redisPublisher) PublishCommissionJob(ctx context.Context, job *entity.CommissionJob) error {
	if err := p.queue.Enqueue(ctx, job.JobID, job.IdempotencyKey(), job); err != nil {
		return err
	}

	p.logger.Debug("[RedisQueue] Commission job enqueued",
		slog.String("queue", p.queue.Name()),
		slog.String("job_id", job.JobID),
		slog.String("transaction_id", job.TransactionID),
	)

	return nil
}

// Close is a no-op, the redis client is closed by its own lifecycle hook.
func (p *redisPublisher) Close() error {
	return nil
}
