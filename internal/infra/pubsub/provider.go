package pubsub

import (
	"context"
	"log/slog"

	"clubinex/config"
	"clubinex/internal/domain/constants"
	"clubinex/internal/domain/entity"
	"clubinex/internal/domain/service"
	"clubinex/internal/infra/queue"

	"github.com/pkg/errors"
	"go.uber.org/fx"
)

// noopPublisher drops jobs, for environments without a worker
type noopPublisher struct {
	logger *slog.Logger
}

func (p *noopPublisher) PublishCommissionJob(_ context.Context, job *entity.CommissionJob) error {
	p.logger.Debug("[NoopPubSub] Job publishing disabled, skipping",
		slog.String("job_id", job.JobID),
		slog.String("transaction_id", job.TransactionID),
	)

	return nil
}

func (p *noopPublisher) Close() error {
	return nil
}

// PublisherParams holds dependencies for EventPublisher, injected by Fx
type PublisherParams struct {
	fx.In

	Lc     fx.Lifecycle
	Ctx    context.Context
	Config *config.Config
	Logger *slog.Logger
	Queue  *queue.Queue
}

// NewEventPublisher creates an EventPublisher for queue.provider
func NewEventPublisher(params PublisherParams) (service.EventPublisher, error) {
	provider := params.Config.Queue.Provider
	cfg := params.Config.PubSub
	logger := params.Logger

	var publisher service.EventPublisher
	var err error

	switch provider {
	case constants.QueueProviderNoop:
		logger.Info("Commission queue disabled, using no-op publisher")

		return &noopPublisher{logger: logger}, nil

	case constants.QueueProviderRedis:
		logger.Info("Using redis queue publisher", slog.String("queue", params.Queue.Name()))

		publisher = queue.NewPublisher(params.Queue, logger)

	case constants.QueueProviderLocal:
		if cfg.LocalEndpoint == "" {
			return nil, errors.New("local endpoint is required for local provider")
		}
		logger.Info("Using local HTTP publisher for Pub/Sub",
			slog.String("endpoint", cfg.LocalEndpoint),
		)

		publisher = NewLocalHTTPPublisher(cfg.LocalEndpoint, logger)

	case constants.QueueProviderGoogle:
		if cfg.ProjectID == "" {
			return nil, errors.New("project ID is required for google provider")
		}
		if cfg.TopicID == "" {
			return nil, errors.New("topic ID is required for google provider")
		}
		logger.Info("Using Google Pub/Sub publisher",
			slog.String("project_id", cfg.ProjectID),
			slog.String("topic_id", cfg.TopicID),
		)

		publisher, err = NewGooglePubSubPublisher(params.Ctx, cfg.ProjectID, cfg.TopicID, logger)
		if err != nil {
			return nil, err
		}

	default:
		return nil, errors.Errorf("unknown queue provider: %s", provider)
	}

	params.Lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			logger.Info("Closing EventPublisher")

			return publisher.Close()
		},
	})

	return publisher, nil
}

// Module provides the commission job publisher FX module
//
//nolint:gochecknoglobals
var Module = fx.Options(
	fx.Provide(NewEventPublisher),
)
