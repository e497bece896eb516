package worker

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"clubinex/config"
	"clubinex/internal/delivery"
	deliverycontext "clubinex/internal/delivery/context"
	"clubinex/internal/domain/constants"
	domainerrors "clubinex/internal/domain/errors"
	"clubinex/internal/domain/lifecycle"
	"clubinex/internal/errors"
	"clubinex/internal/infra/queue"
	"clubinex/internal/usecase"

	"github.com/google/uuid"
	"go.uber.org/fx"
	"golang.org/x/time/rate"
)

// receiveErrorPause is how long a consumer backs off after the broker errors.
const receiveErrorPause = time.Second

// jobQueue is the part of queue.Queue the consumers use.
type jobQueue interface {
	Receive(ctx context.Context) (*queue.Message, error)
	Complete(ctx context.Context, msg *queue.Message) error
	Fail(ctx context.Context, msg *queue.Message, cause error, permanent bool) error
}

// consumer runs a pool of goroutines pulling commission jobs from redis.
type consumer struct {
	logger      *slog.Logger
	queue       jobQueue
	commissions usecase.CommissionUsecase
	limiter     *rate.Limiter
	workers     int
	enabled     bool
	quit        chan struct{}
	stopOnce    sync.Once
	wg          sync.WaitGroup
}

// ConsumerParams holds dependencies for the redis consumer
type ConsumerParams struct {
	fx.In

	Lc          fx.Lifecycle
	Cfg         *config.Config
	Logger      *slog.Logger
	Queue       *queue.Queue
	Commissions usecase.CommissionUsecase
}

// NewConsumer builds the redis consumer pool. It idles unless queue.provider is redis.
func NewConsumer(params ConsumerParams) delivery.Delivery {
	c := newConsumer(params.Cfg, params.Logger, params.Queue, params.Commissions)

	params.Lc.Append(fx.Hook{
		OnStop: c.stop,
	})

	return c
}

func newConsumer(cfg *config.Config, logger *slog.Logger, q jobQueue, commissions usecase.CommissionUsecase) *consumer {
	c := &consumer{
		logger:      logger,
		queue:       q,
		commissions: commissions,
		workers:     max(1, cfg.Queue.Workers),
		enabled:     cfg.Queue.Provider == constants.QueueProviderRedis,
		quit:        make(chan struct{}),
	}
	if jps := cfg.Queue.JobsPerSecond; jps > 0 {
		c.limiter = rate.NewLimiter(rate.Limit(jps), max(1, int(jps)))
	}

	return c
}

// Serve blocks until every consumer goroutine has exited.
func (c *consumer) Serve(ctx context.Context) error {
	if !c.enabled {
		c.logger.Info("Redis consumer disabled for this queue provider")

		return nil
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		select {
		case <-c.quit:
			cancel()
		case <-ctx.Done():
		}
	}()

	c.logger.Info("Starting commission consumers", slog.Int("workers", c.workers))
	for i := range c.workers {
		c.wg.Add(1)
		go c.run(ctx, i)
	}
	c.wg.Wait()

	return nil
}

func (c *consumer) run(ctx context.Context, workerID int) {
	defer c.wg.Done()

	logger := c.logger.With(slog.Int("worker", workerID))
	for {
		if c.limiter != nil {
			if err := c.limiter.Wait(ctx); err != nil {
				return
			}
		}
		if ctx.Err() != nil {
			return
		}

		msg, err := c.queue.Receive(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, context.Canceled) {
				return
			}
			logger.Error("Failed to receive job", slog.Any("error", err))
			select {
			case <-ctx.Done():
				return
			case <-time.After(receiveErrorPause):
			}

			continue
		}
		if msg == nil {
			continue
		}

		c.handle(ctx, msg)
	}
}

// handle runs one job and settles it. Settlement outlives shutdown so a
// finished job is never redelivered for lack of a Complete.
func (c *consumer) handle(ctx context.Context, msg *queue.Message) {
	settleCtx := context.WithoutCancel(ctx)

	job, err := queue.Decode(msg)
	if err != nil {
		c.settle(settleCtx, msg, err, true)

		return
	}

	requestID := job.RequestID
	if requestID == "" {
		requestID = uuid.New().String()
	}
	logger := c.logger.With(
		slog.String("request_id", requestID),
		slog.String("job_id", msg.ID),
	)
	ctx = deliverycontext.WithRequestID(ctx, requestID)
	ctx = deliverycontext.WithJobID(ctx, msg.ID)
	ctx = deliverycontext.WithLogger(ctx, logger)
	settleCtx = deliverycontext.WithLogger(settleCtx, logger)

	if err := c.commissions.ProcessJob(ctx, job); err != nil {
		c.settle(settleCtx, msg, err, domainerrors.IsPermanent(err))

		return
	}

	if err := c.queue.Complete(settleCtx, msg); err != nil {
		logger.Error("Failed to complete job", slog.Any("error", err))
	}
}

func (c *consumer) settle(ctx context.Context, msg *queue.Message, cause error, permanent bool) {
	if err := c.queue.Fail(ctx, msg, cause, permanent); err != nil {
		deliverycontext.GetLoggerOrDefault(ctx, c.logger).Error("Failed to record job failure",
			slog.String("job_id", msg.ID),
			slog.Any("error", err),
		)
	}
}

func (c *consumer) stop(ctx context.Context) error {
	c.stopOnce.Do(func() { close(c.quit) })

	done := make(chan struct{})
	go func() {
		c.wg.Wait()
		close(done)
	}()

	waitCtx, cancel := context.WithTimeout(ctx, lifecycle.DefaultTimeout)
	defer cancel()

	select {
	case <-done:
		return nil
	case <-waitCtx.Done():
		c.logger.Warn("Commission consumers did not stop in time")

		return nil
	}
}
