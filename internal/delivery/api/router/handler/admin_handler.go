package handler

import (
	"net/http"

	"clubinex/internal/delivery/api/response"
	domainerrors "clubinex/internal/domain/errors"
	"clubinex/internal/presentation"
	"clubinex/internal/usecase"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
)

// AdminHandler serves operator endpoints. Every route requires the admin role.
type AdminHandler struct {
	users      usecase.UserUsecase
	points     usecase.PointUsecase
	agents     usecase.AgentUsecase
	failedJobs usecase.FailedJobUsecase
	formatter  *presentation.Formatter
}

// NewAdminHandler is the constructor for AdminHandler, injected by Fx.
func NewAdminHandler(
	users usecase.UserUsecase,
	points usecase.PointUsecase,
	agents usecase.AgentUsecase,
	failedJobs usecase.FailedJobUsecase,
	formatter *presentation.Formatter,
) *AdminHandler {
	return &AdminHandler{
		users:      users,
		points:     points,
		agents:     agents,
		failedJobs: failedJobs,
		formatter:  formatter,
	}
}

type earnPointsRequest struct {
	UserID        string `json:"userId" validate:"required,uuid"`
	TransactionID string `json:"transactionId" validate:"required,max=128"`
	Amount        int64  `json:"amount" validate:"required,gt=0"`
}

type setActiveRequest struct {
	Active *bool `json:"active" validate:"required"`
}

type userStatusResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

type retryResponse struct {
	JobID         string `json:"jobId"`
	TransactionID string `json:"transactionId"`
}

// EarnPoints records a purchase; commissions are paid asynchronously.
func (h *AdminHandler) EarnPoints(c echo.Context) error {
	var req earnPointsRequest
	if err := bind(c, &req); err != nil {
		return err
	}

	userID, err := uuid.Parse(req.UserID)
	if err != nil {
		return domainerrors.ErrValidationFailed.WithDetails("userId must be a UUID")
	}

	txn, err := h.points.EarnPoints(c.Request().Context(), usecase.EarnPointsInput{
		UserID:        userID,
		TransactionID: req.TransactionID,
		Amount:        req.Amount,
	})
	if err != nil {
		return errors.WithStack(err)
	}

	return response.Success(c, http.StatusCreated, h.formatter.PointTransaction(txn))
}

// DisableUser blocks a member from logging in.
func (h *AdminHandler) DisableUser(c echo.Context) error {
	userID, err := pathID(c)
	if err != nil {
		return err
	}

	if err := h.users.Disable(c.Request().Context(), userID); err != nil {
		return errors.WithStack(err)
	}

	return response.Success(c, http.StatusOK, userStatusResponse{ID: userID.String(), Status: "disabled"})
}

// VerifyAgent approves a pending agent.
func (h *AdminHandler) VerifyAgent(c echo.Context) error {
	agentID, err := pathID(c)
	if err != nil {
		return err
	}

	agent, err := h.agents.VerifyAgent(c.Request().Context(), agentID)
	if err != nil {
		return errors.WithStack(err)
	}

	return response.Success(c, http.StatusOK, h.formatter.Agent(agent))
}

// SetAgentActive switches an agent on or off.
func (h *AdminHandler) SetAgentActive(c echo.Context) error {
	agentID, err := pathID(c)
	if err != nil {
		return err
	}

	var req setActiveRequest
	if err := bind(c, &req); err != nil {
		return err
	}

	agent, err := h.agents.SetActive(c.Request().Context(), agentID, *req.Active)
	if err != nil {
		return errors.WithStack(err)
	}

	return response.Success(c, http.StatusOK, h.formatter.Agent(agent))
}

// ListFailedJobs pages through dead-lettered commission jobs.
func (h *AdminHandler) ListFailedJobs(c echo.Context) error {
	limit, offset, err := pageParams(c)
	if err != nil {
		return err
	}

	output, err := h.failedJobs.List(c.Request().Context(), limit, offset)
	if err != nil {
		return errors.WithStack(err)
	}

	return response.Page(c, h.formatter.FailedJobs(output.Jobs), response.Pagination{
		Limit:  limit,
		Offset: offset,
		Total:  output.Total,
	})
}

// RetryFailedJob republishes a dead letter.
func (h *AdminHandler) RetryFailedJob(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}

	job, err := h.failedJobs.Retry(c.Request().Context(), id)
	if err != nil {
		return errors.WithStack(err)
	}

	return response.Success(c, http.StatusAccepted, retryResponse{
		JobID:         job.JobID,
		TransactionID: job.TransactionID,
	})
}
