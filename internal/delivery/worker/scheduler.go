package worker

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"clubinex/config"
	"clubinex/internal/delivery"
	"clubinex/internal/domain/constants"
	"clubinex/internal/infra/queue"
	"clubinex/internal/usecase"

	"github.com/go-co-op/gocron"
	"github.com/pkg/errors"
	"go.uber.org/fx"
)

const backlogReportInterval = time.Minute

// backlog is the part of queue.Queue the scheduler uses.
type backlog interface {
	Name() string
	PromoteDue(ctx context.Context) (int, error)
	ReclaimExpired(ctx context.Context) (int, error)
	Depth(ctx context.Context) (ready, delayed int64, err error)
}

// scheduler promotes due retries, reclaims jobs of dead consumers and reports queue and dead-letter backlog.
type scheduler struct {
	logger          *slog.Logger
	queue           backlog
	failedJobs      usecase.FailedJobUsecase
	redisQueue      bool
	promoteInterval time.Duration
	cron            *gocron.Scheduler
	quit            chan struct{}
	stopOnce        sync.Once
}

// SchedulerParams holds dependencies for the worker scheduler
type SchedulerParams struct {
	fx.In

	Lc         fx.Lifecycle
	Cfg        *config.Config
	Logger     *slog.Logger
	Queue      *queue.Queue
	FailedJobs usecase.FailedJobUsecase
}

// NewScheduler builds the gocron scheduler of the worker process.
func NewScheduler(params SchedulerParams) delivery.Delivery {
	s := newScheduler(params.Cfg, params.Logger, params.Queue, params.FailedJobs)

	params.Lc.Append(fx.Hook{
		OnStop: s.stop,
	})

	return s
}

func newScheduler(cfg *config.Config, logger *slog.Logger, q backlog, failedJobs usecase.FailedJobUsecase) *scheduler {
	cron := gocron.NewScheduler(time.UTC)
	cron.SingletonModeAll()

	return &scheduler{
		logger:          logger,
		queue:           q,
		failedJobs:      failedJobs,
		redisQueue:      cfg.Queue.Provider == constants.QueueProviderRedis,
		promoteInterval: cfg.Queue.PromoteInterval,
		cron:            cron,
		quit:            make(chan struct{}),
	}
}

// Serve registers the recurring jobs and blocks until stop.
func (s *scheduler) Serve(ctx context.Context) error {
	if s.redisQueue {
		if _, err := s.cron.Every(s.promoteInterval).Do(s.promote, ctx); err != nil {
			return errors.Wrap(err, "failed to schedule retry promotion")
		}
	}
	if _, err := s.cron.Every(backlogReportInterval).Do(s.reportBacklog, ctx); err != nil {
		return errors.Wrap(err, "failed to schedule backlog report")
	}

	s.logger.Info("Starting worker scheduler", slog.Duration("promote_interval", s.promoteInterval))
	s.cron.StartAsync()

	select {
	case <-s.quit:
	case <-ctx.Done():
	}

	return nil
}

func (s *scheduler) promote(ctx context.Context) {
	reclaimed, err := s.queue.ReclaimExpired(ctx)
	if err != nil {
		s.logger.Error("Failed to reclaim expired jobs", slog.Any("error", err))
	}
	if reclaimed > 0 {
		s.logger.Warn("Reclaimed expired jobs", slog.Int("count", reclaimed))
	}

	moved, err := s.queue.PromoteDue(ctx)
	if err != nil {
		s.logger.Error("Failed to promote due jobs", slog.Any("error", err))

		return
	}
	if moved > 0 {
		s.logger.Info("Promoted due jobs", slog.Int("count", moved))
	}
}

func (s *scheduler) reportBacklog(ctx context.Context) {
	attrs := []any{slog.String("queue", s.queue.Name())}

	if s.redisQueue {
		ready, delayed, err := s.queue.Depth(ctx)
		if err != nil {
			s.logger.Error("Failed to read queue depth", slog.Any("error", err))

			return
		}
		attrs = append(attrs, slog.Int64("ready", ready), slog.Int64("delayed", delayed))
	}

	pending, err := s.failedJobs.CountPending(ctx)
	if err != nil {
		s.logger.Error("Failed to count dead letters", slog.Any("error", err))

		return
	}
	attrs = append(attrs, slog.Int64("dead_letters", pending))

	level := slog.LevelInfo
	if pending > 0 {
		level = slog.LevelWarn
	}
	s.logger.Log(ctx, level, "Commission backlog", attrs...)
}

func (s *scheduler) stop(context.Context) error {
	s.stopOnce.Do(func() {
		s.cron.Stop()
		close(s.quit)
	})

	return nil
}
