package queue

import (
	"context"
	"encoding/json"
	"log/slog"
	"math/rand/v2"
	"time"

	"clubinex/config"
	deliverycontext "clubinex/internal/delivery/context"
	"clubinex/internal/domain/entity"
	"clubinex/internal/domain/repository"
	"clubinex/internal/domain/service"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.uber.org/fx"
)

// Queue applies the retry policy on top of a Broker. A message is retried
// queue.maxRetries times with exponential backoff, then dead-lettered.
type Queue struct {
	broker      Broker
	failedJobs  repository.FailedJobRepository
	clock       service.Clock
	logger      *slog.Logger
	name        string
	maxRetries  int
	baseBackoff time.Duration
	maxBackoff  time.Duration
	pollTimeout time.Duration
	visibility  time.Duration
	jitter      func(time.Duration) time.Duration
}

// Params holds dependencies for the Queue, injected by Fx
type Params struct {
	fx.In

	Config     *config.Config
	Broker     Broker
	FailedJobs repository.FailedJobRepository
	Clock      service.Clock
	Logger     *slog.Logger
}

// New creates the commission queue
func New(params Params) *Queue {
	cfg := params.Config.Queue

	return &Queue{
		broker:      params.Broker,
		failedJobs:  params.FailedJobs,
		clock:       params.Clock,
		logger:      params.Logger,
		name:        cfg.Name,
		maxRetries:  cfg.Retries(),
		baseBackoff: cfg.BaseBackoff,
		maxBackoff:  cfg.MaxBackoff,
		pollTimeout: cfg.PollTimeout,
		visibility:  cfg.VisibilityTimeout,
		jitter:      equalJitter,
	}
}

// Name returns the queue name.
func (q *Queue) Name() string {
	return q.name
}

// Enqueue stores payload under id. key is the idempotency key kept with a dead letter.
func (q *Queue) Enqueue(ctx context.Context, id, key string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return errors.WithStack(err)
	}

	return q.broker.Push(ctx, &Message{
		ID:         id,
		Queue:      q.name,
		Key:        key,
		Payload:    data,
		EnqueuedAt: q.clock.Now(),
	})
}

// Receive waits for the next message. It returns nil when nothing arrived
// within the poll timeout. The message must be settled with Complete or Fail
// within the visibility timeout, or ReclaimExpired hands it out again.
func (q *Queue) Receive(ctx context.Context) (*Message, error) {
	msg, err := q.broker.Pop(ctx, q.name, q.pollTimeout, q.clock.Now().Add(q.visibility))
	switch {
	case err == nil:
		return msg, nil
	case errors.Is(err, ErrEmpty):
		return nil, nil
	case errors.Is(err, ErrJobExpired):
		q.logger.Warn("Dropping job whose state expired", slog.Any("error", err))

		return nil, nil
	default:
		return nil, err
	}
}

// Complete drops a handled message.
func (q *Queue) Complete(ctx context.Context, msg *Message) error {
	return q.broker.Delete(ctx, msg)
}

// Fail records a failed attempt. Permanent failures and messages out of
// retries go to the dead-letter store, the rest are deferred.
func (q *Queue) Fail(ctx context.Context, msg *Message, cause error, permanent bool) error {
	msg.Attempts++
	msg.LastError = cause.Error()

	logger := deliverycontext.GetLoggerOrDefault(ctx, q.logger).With(
		slog.String("job_id", msg.ID),
		slog.Int("attempts", msg.Attempts),
	)

	if permanent || msg.Attempts > q.maxRetries {
		if err := q.deadLetter(ctx, msg); err != nil {
			// Keep the message around so the dead letter is not lost.
			if deferErr := q.broker.Defer(ctx, msg, q.clock.Now().Add(q.maxBackoff)); deferErr != nil {
				logger.Error("Failed to park job after dead-letter failure", slog.Any("error", deferErr))
			}

			return err
		}

		logger.Warn("Job dead-lettered",
			slog.Bool("permanent", permanent),
			slog.String("last_error", msg.LastError),
		)

		return q.broker.Delete(ctx, msg)
	}

	delay := q.Backoff(msg.Attempts)
	logger.Info("Job scheduled for retry",
		slog.Duration("delay", delay),
		slog.String("last_error", msg.LastError),
	)

	return q.broker.Defer(ctx, msg, q.clock.Now().Add(delay))
}

// Backoff returns the delay before retry number attempt (1-based).
func (q *Queue) Backoff(attempt int) time.Duration {
	delay := q.baseBackoff
	for i := 1; i < attempt; i++ {
		delay *= 2
		if delay >= q.maxBackoff {
			delay = q.maxBackoff

			break
		}
	}
	delay = min(delay, q.maxBackoff)

	return q.jitter(delay)
}

// PromoteDue moves due retries back to the ready list.
func (q *Queue) PromoteDue(ctx context.Context) (int, error) {
	return q.broker.PromoteDue(ctx, q.name, q.clock.Now())
}

// ReclaimExpired settles every message whose consumer let its lease run out
// as a failed attempt, so it is retried or dead-lettered like any other
// failure.
func (q *Queue) ReclaimExpired(ctx context.Context) (int, error) {
	now := q.clock.Now()
	msgs, reclaimErr := q.broker.Reclaim(ctx, q.name, now, now.Add(q.visibility))

	reclaimed := 0
	for _, msg := range msgs {
		if err := q.Fail(ctx, msg, ErrLeaseExpired, false); err != nil {
			// The ID stays in flight without a lease and is picked up again.
			return reclaimed, err
		}
		reclaimed++
	}

	return reclaimed, reclaimErr
}

// Depth reports the ready and delayed backlog.
func (q *Queue) Depth(ctx context.Context) (ready, delayed int64, err error) {
	return q.broker.Depth(ctx, q.name)
}

// Decode unmarshals the payload of msg as a commission job.
func Decode(msg *Message) (*entity.CommissionJob, error) {
	var job entity.CommissionJob
	if err := json.Unmarshal(msg.Payload, &job); err != nil {
		return nil, errors.Wrapf(err, "failed to decode job %s", msg.ID)
	}

	return &job, nil
}

func (q *Queue) deadLetter(ctx context.Context, msg *Message) error {
	return q.failedJobs.Create(ctx, &entity.FailedJob{
		ID:             uuid.New(),
		Queue:          msg.Queue,
		JobID:          msg.ID,
		IdempotencyKey: msg.Key,
		Payload:        msg.Payload,
		Attempts:       msg.Attempts,
		LastError:      msg.LastError,
		FailedAt:       q.clock.Now(),
	})
}

// equalJitter keeps half of d and randomizes the other half.
func equalJitter(d time.Duration) time.Duration {
	half := d / 2
	if half <= 0 {
		return d
	}

	return half + rand.N(half)
}
