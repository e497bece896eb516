package handler

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"clubinex/config"
	deliverycontext "clubinex/internal/delivery/context"
	"clubinex/internal/domain/constants"
	"clubinex/internal/domain/entity"
	domainerrors "clubinex/internal/domain/errors"
	"clubinex/internal/infra/pubsub"
	"clubinex/internal/usecase"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
	"go.uber.org/fx"
	"google.golang.org/api/idtoken"
)

// pushQueueName labels dead letters that arrived through Pub/Sub push.
const pushQueueName = "pubsub-push"

// PubSubMessage represents the structure of a Pub/Sub push message
type PubSubMessage struct {
	Message struct {
		Data        string            `json:"data"`
		Attributes  map[string]string `json:"attributes,omitempty"`
		MessageID   string            `json:"messageId"`
		PublishTime string            `json:"publishTime"`
	} `json:"message"`
	Subscription string `json:"subscription"`
	// DeliveryAttempt is only set when the subscription has a dead-letter policy.
	DeliveryAttempt int `json:"deliveryAttempt,omitempty"`
}

// TokenVerifier validates the OIDC token Pub/Sub attaches to push requests.
type TokenVerifier func(ctx context.Context, token, audience string) (*idtoken.Payload, error)

// PushHandler runs commission jobs delivered by Pub/Sub push or the local publisher.
type PushHandler struct {
	verifyPushAuth      bool
	pushAudience        string
	maxDeliveryAttempts int
	verify              TokenVerifier
	logger              *slog.Logger
	commissions         usecase.CommissionUsecase
	failedJobs          usecase.FailedJobUsecase
}

// PushHandlerParams holds dependencies for the PushHandler
type PushHandlerParams struct {
	fx.In

	Config      *config.Config
	Logger      *slog.Logger
	Commissions usecase.CommissionUsecase
	FailedJobs  usecase.FailedJobUsecase
}

// NewPushHandler creates a new Pub/Sub push handler
func NewPushHandler(params PushHandlerParams) *PushHandler {
	// Only real Pub/Sub pushes carry a token; the local publisher never does.
	verifyPushAuth := params.Config.Queue != nil &&
		params.Config.Queue.Provider == constants.QueueProviderGoogle &&
		params.Config.Env.Env != constants.EnvDevelop

	handler := &PushHandler{
		verifyPushAuth: verifyPushAuth,
		verify:         idtoken.Validate,
		logger:         params.Logger,
		commissions:    params.Commissions,
		failedJobs:     params.FailedJobs,
	}
	if params.Config.PubSub != nil {
		handler.pushAudience = params.Config.PubSub.PushAudience
		handler.maxDeliveryAttempts = params.Config.PubSub.MaxDeliveryAttempts
	}

	return handler
}

// HandlePush answers 200 when the job is done or can never succeed and 503
// when Pub/Sub should redeliver it.
func (h *PushHandler) HandlePush(c echo.Context) error {
	ctx := c.Request().Context()

	if h.verifyPushAuth {
		if err := h.verifyPubSubToken(c.Request()); err != nil {
			h.logger.Warn("[Worker] Invalid Pub/Sub token", slog.Any("error", err))

			return c.NoContent(http.StatusUnauthorized)
		}
	}

	var pushMsg PubSubMessage
	if err := c.Bind(&pushMsg); err != nil {
		h.logger.Error("[Worker] Failed to parse push message", slog.Any("error", err))

		return c.NoContent(http.StatusBadRequest)
	}

	data, err := base64.StdEncoding.DecodeString(pushMsg.Message.Data)
	if err != nil {
		h.logger.Error("[Worker] Failed to decode message data", slog.Any("error", err))

		return c.NoContent(http.StatusBadRequest)
	}

	var job entity.CommissionJob
	if err := json.Unmarshal(data, &job); err != nil {
		// Redelivering an unreadable payload can never succeed.
		h.logger.Error("[Worker] Failed to parse commission job",
			slog.String("message_id", pushMsg.Message.MessageID),
			slog.Any("error", err),
		)
		h.deadLetter(ctx, &pushMsg, &job, data, err)

		return c.NoContent(http.StatusOK)
	}

	requestID := h.extractRequestID(ctx, &pushMsg, &job)
	reqLogger := h.logger.With(
		slog.String("request_id", requestID),
		slog.String("job_id", job.JobID),
	)
	ctx = deliverycontext.WithRequestID(ctx, requestID)
	ctx = deliverycontext.WithJobID(ctx, job.JobID)
	ctx = deliverycontext.WithLogger(ctx, reqLogger)

	reqLogger.Info("[Worker] Processing commission job",
		slog.String("transaction_id", job.TransactionID),
		slog.Int("delivery_attempt", pushMsg.DeliveryAttempt),
	)

	if err := h.commissions.ProcessJob(ctx, &job); err != nil {
		permanent := domainerrors.IsPermanent(err)
		reqLogger.Error("[Worker] Failed to process commission job",
			slog.String("transaction_id", job.TransactionID),
			slog.Bool("permanent", permanent),
			slog.Any("error", err),
		)

		if permanent || h.outOfDeliveries(&pushMsg) {
			h.deadLetter(ctx, &pushMsg, &job, data, err)

			return c.NoContent(http.StatusOK)
		}

		return c.NoContent(http.StatusServiceUnavailable)
	}

	reqLogger.Info("[Worker] Commission job processed",
		slog.String("transaction_id", job.TransactionID),
	)

	return c.NoContent(http.StatusOK)
}

func (h *PushHandler) outOfDeliveries(pushMsg *PubSubMessage) bool {
	return h.maxDeliveryAttempts > 0 && pushMsg.DeliveryAttempt >= h.maxDeliveryAttempts
}

// deadLetter parks the job. A failure to park is logged and the message is
// acknowledged anyway, the job stays traceable through the log line.
func (h *PushHandler) deadLetter(ctx context.Context, pushMsg *PubSubMessage, job *entity.CommissionJob, data []byte, cause error) {
	jobID := job.JobID
	if jobID == "" {
		jobID = pushMsg.Message.Attributes[pubsub.AttrJobID]
	}
	if jobID == "" {
		jobID = pushMsg.Message.MessageID
	}
	key := job.IdempotencyKey()
	if key == "" {
		key = pushMsg.Message.Attributes[pubsub.AttrTransactionID]
	}

	failed := &entity.FailedJob{
		Queue:          pushQueueName,
		JobID:          jobID,
		IdempotencyKey: key,
		Payload:        data,
		Attempts:       max(1, pushMsg.DeliveryAttempt),
		LastError:      cause.Error(),
	}
	if err := h.failedJobs.Record(ctx, failed); err != nil {
		deliverycontext.GetLoggerOrDefault(ctx, h.logger).Error("[Worker] Failed to record dead letter",
			slog.String("job_id", jobID),
			slog.String("payload", string(data)),
			slog.Any("error", err),
		)
	}
}

// extractRequestID extracts request_id from message attributes, the job, or generates a new one
func (h *PushHandler) extractRequestID(ctx context.Context, pushMsg *PubSubMessage, job *entity.CommissionJob) string {
	if requestID, ok := pushMsg.Message.Attributes[pubsub.AttrRequestID]; ok && requestID != "" {
		return requestID
	}

	if job.RequestID != "" {
		return job.RequestID
	}

	// Set by RequestIDMiddleware from the X-Request-Id header
	if requestID := deliverycontext.GetRequestIDFromContext(ctx); requestID != "" {
		return requestID
	}

	return uuid.New().String()
}

// verifyPubSubToken verifies the JWT token from Google Pub/Sub push requests
// Reference: https://cloud.google.com/pubsub/docs/push#authenticating_standard_push_requests
func (h *PushHandler) verifyPubSubToken(req *http.Request) error {
	authHeader := req.Header.Get(echo.HeaderAuthorization)
	if authHeader == "" {
		return errors.New("missing authorization header")
	}

	token, ok := strings.CutPrefix(authHeader, "Bearer ")
	if !ok {
		return errors.New("invalid authorization header format")
	}

	// Without a configured audience the push endpoint URL is expected.
	audience := h.pushAudience
	if audience == "" {
		scheme := "https"
		if req.TLS == nil {
			scheme = "http"
		}
		audience = fmt.Sprintf("%s://%s%s", scheme, req.Host, req.URL.Path)
	}

	payload, err := h.verify(req.Context(), token, audience)
	if err != nil {
		return errors.Wrap(err, "failed to validate token")
	}

	if payload.Issuer != "accounts.google.com" && payload.Issuer != "https://accounts.google.com" {
		return errors.Errorf("invalid issuer: %s", payload.Issuer)
	}

	if emailVerified, ok := payload.Claims["email_verified"].(bool); ok && !emailVerified {
		return errors.New("email not verified")
	}

	return nil
}
