package main

import (
	"context"
	"log/slog"
	"os"

	"clubinex/config"
	"clubinex/internal/delivery"
	"clubinex/internal/delivery/api"
	"clubinex/internal/delivery/api/middleware"
	"clubinex/internal/delivery/api/router/handler"
	"clubinex/internal/infra/auth"
	"clubinex/internal/infra/clock"
	"clubinex/internal/infra/codegen"
	logs "clubinex/internal/infra/log"
	"clubinex/internal/infra/persistence/postgres"
	"clubinex/internal/infra/pubsub"
	"clubinex/internal/infra/qrcode"
	"clubinex/internal/infra/queue"
	"clubinex/internal/presentation"
	"clubinex/internal/usecase/impl"

	"go.uber.org/fx"
)

type startServerParams struct {
	fx.In
	fx.Lifecycle
	fx.Shutdowner

	Deliveries []delivery.Delivery `group:"deliveries"`
}

func main() {
	fx.New(
		injectInfra(),
		injectRepo(),
		injectService(),
		injectUsecase(),
		injectDelivery(),
		injectMiddleware(),
		injectHandler(),
		fx.Invoke(
			startServer,
		),
	).Run()
}

func injectInfra() fx.Option {
	return fx.Options(
		fx.Provide(
			config.New,
			logs.New,
			context.Background,
			postgres.New,
			clock.New,
		),
		// The redis queue backs the default publisher
		queue.Module,
		pubsub.Module,
	)
}

func injectRepo() fx.Option {
	return fx.Options(
		fx.Provide(
			postgres.NewTransactionManager,
			postgres.NewUserRepository,
			postgres.NewReferralRepository,
			postgres.NewCommissionRepository,
			postgres.NewPointRepository,
			postgres.NewAgentRepository,
			postgres.NewFailedJobRepository,
		),
	)
}

func injectService() fx.Option {
	return fx.Options(
		fx.Provide(
			auth.NewBcryptHasher,
			auth.NewJWTService,
			auth.NewOTPService,
			qrcode.NewQRCodeService,
			codegen.New,
			presentation.NewFormatter,
		),
	)
}

func injectUsecase() fx.Option {
	return fx.Options(
		fx.Provide(
			impl.NewUserService,
			impl.NewReferralService,
			impl.NewReferralStatsService,
			impl.NewPointService,
			impl.NewAgentService,
			impl.NewFailedJobService,
		),
	)
}

func injectMiddleware() fx.Option {
	return fx.Options(
		fx.Provide(
			middleware.NewAuthMiddleware,
			middleware.NewRateLimiter,
		),
	)
}

func injectHandler() fx.Option {
	return fx.Options(
		fx.Provide(
			handler.NewAuthHandler,
			handler.NewMeHandler,
			handler.NewAgentHandler,
			handler.NewAdminHandler,
		),
	)
}

func injectDelivery() fx.Option {
	return fx.Options(
		fx.Provide(
			fx.Annotate(
				api.NewServer,
				fx.ResultTags(`group:"deliveries"`),
			),
		),
	)
}

func startServer(ctx context.Context, params startServerParams) {
	for _, delivery := range params.Deliveries {
		go func() {
			if err := delivery.Serve(ctx); err != nil {
				slog.Error("Failed to start server", slog.Any("error", err))

				// Trigger graceful shutdown to execute all OnStop hooks
				if shutdownErr := params.Shutdown(); shutdownErr != nil {
					slog.Error("Failed to shutdown gracefully", slog.Any("error", shutdownErr))
					os.Exit(1)
				}
			}
		}()
	}
}
