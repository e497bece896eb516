package queue

import (
	"context"
	"log/slog"

	"clubinex/config"
	"clubinex/internal/domain/constants"
	"clubinex/internal/domain/lifecycle"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
	"go.uber.org/fx"
)

// ClientParams holds dependencies for the redis client
type ClientParams struct {
	fx.In

	Lc     fx.Lifecycle
	Config *config.Config
	Logger *slog.Logger
}

// NewRedisClient creates the redis client. The connection is only checked
// when redis is the configured queue provider.
func NewRedisClient(params ClientParams) *redis.Client {
	opts := &redis.Options{Addr: "localhost:6379"}
	if cfg := params.Config.Redis; cfg != nil {
		if cfg.Addr != "" {
			opts.Addr = cfg.Addr
		}
		opts.Password = cfg.Password
		opts.DB = cfg.DB
	}

	client := redis.NewClient(opts)

	params.Lc.Append(fx.Hook{
		OnStart: func(startCtx context.Context) error {
			if params.Config.Queue.Provider != constants.QueueProviderRedis {
				return nil
			}

			ctx, cancel := context.WithTimeout(startCtx, lifecycle.DefaultTimeout)
			defer cancel()

			if err := client.Ping(ctx).Err(); err != nil {
				return errors.Wrap(err, "failed to ping redis")
			}
			params.Logger.Info("Redis connection established", slog.String("addr", opts.Addr))

			return nil
		},
		OnStop: func(_ context.Context) error {
			return errors.WithStack(client.Close())
		},
	})

	return client
}
