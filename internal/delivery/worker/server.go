package worker

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"strconv"

	"clubinex/config"
	"clubinex/internal/delivery"
	"clubinex/internal/delivery/middleware"
	"clubinex/internal/delivery/worker/handler"
	"clubinex/internal/domain/constants"
	"clubinex/internal/domain/lifecycle"
	"clubinex/internal/infra/queue"

	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"
	"go.uber.org/fx"
)

type workerServer struct {
	port   int
	logger *slog.Logger
	server *echo.Echo
}

// ServerParams holds dependencies for the worker server
type ServerParams struct {
	fx.In

	Lc          fx.Lifecycle
	Cfg         *config.Config
	Logger      *slog.Logger
	Queue       *queue.Queue
	PushHandler *handler.PushHandler
}

// HealthResponse is the body of GET /health on the worker.
type HealthResponse struct {
	Status   string `json:"status"`
	Provider string `json:"provider"`
	Ready    *int64 `json:"ready,omitempty"`
	Delayed  *int64 `json:"delayed,omitempty"`
}

// NewServer creates the worker HTTP server serving health checks and Pub/Sub pushes
func NewServer(params ServerParams) (delivery.Delivery, error) {
	srv := &workerServer{
		port:   params.Cfg.Worker.Port,
		logger: params.Logger,
		server: routes(params.Cfg, params.Logger, params.Queue, params.PushHandler.HandlePush),
	}

	params.Lc.Append(fx.Hook{
		OnStop: srv.stop,
	})

	return srv, nil
}

func routes(cfg *config.Config, logger *slog.Logger, q backlog, push echo.HandlerFunc) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(echomiddleware.Recover())
	e.Use(middleware.NewRequestIDMiddleware(logger).Process)
	e.Use(middleware.NewLoggerMiddleware(logger, cfg).Handle)

	e.GET("/health", health(cfg.Queue.Provider, q))

	// Pub/Sub push endpoint, also the target of the local publisher
	e.POST("/push", push)

	return e
}

// health reports the commission backlog when jobs flow through Redis, and
// turns unhealthy when Redis cannot be read.
func health(provider string, q backlog) echo.HandlerFunc {
	return func(c echo.Context) error {
		resp := HealthResponse{Status: "ok", Provider: provider}
		if provider != constants.QueueProviderRedis {
			return c.JSON(http.StatusOK, resp)
		}

		ready, delayed, err := q.Depth(c.Request().Context())
		if err != nil {
			resp.Status = "degraded"

			return c.JSON(http.StatusServiceUnavailable, resp)
		}
		resp.Ready, resp.Delayed = &ready, &delayed

		return c.JSON(http.StatusOK, resp)
	}
}

// Serve starts the worker HTTP server
func (s *workerServer) Serve(ctx context.Context) error {
	hostPort := net.JoinHostPort("0.0.0.0", strconv.Itoa(s.port))
	s.logger.Info("Starting Worker HTTP server", slog.String("hostPort", hostPort))
	if err := s.server.Start(hostPort); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return errors.WithStack(err)
	}

	return nil
}

func (s *workerServer) stop(ctx context.Context) error {
	shutdownCtx, cancel := context.WithTimeout(ctx, lifecycle.DefaultTimeout)
	defer cancel()

	s.logger.Info("Shutting down Worker HTTP server")

	return errors.WithStack(s.server.Shutdown(shutdownCtx))
}
