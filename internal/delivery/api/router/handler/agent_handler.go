package handler

import (
	"net/http"

	"clubinex/internal/delivery/api/response"
	"clubinex/internal/presentation"
	"clubinex/internal/usecase"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
)

// AgentHandler serves agent sign-up and client enrollment.
type AgentHandler struct {
	agents    usecase.AgentUsecase
	formatter *presentation.Formatter
}

// NewAgentHandler is the constructor for AgentHandler, injected by Fx.
func NewAgentHandler(agents usecase.AgentUsecase, formatter *presentation.Formatter) *AgentHandler {
	return &AgentHandler{
		agents:    agents,
		formatter: formatter,
	}
}

type registerAgentRequest struct {
	MaxClients *int `json:"maxClients" validate:"omitempty,gt=0"`
}

type addClientRequest struct {
	AgentCode string `json:"agentCode" validate:"required,max=32"`
}

type agentClientResponse struct {
	ID        string `json:"id"`
	AgentID   string `json:"agentId"`
	ClientID  string `json:"clientId"`
	CreatedAt string `json:"createdAt"`
}

// RegisterAgent makes the caller a pending agent.
func (h *AgentHandler) RegisterAgent(c echo.Context) error {
	userID, err := currentUserID(c)
	if err != nil {
		return err
	}

	var req registerAgentRequest
	if err := bind(c, &req); err != nil {
		return err
	}

	agent, err := h.agents.RegisterAgent(c.Request().Context(), userID, req.MaxClients)
	if err != nil {
		return errors.WithStack(err)
	}

	return response.Success(c, http.StatusCreated, h.formatter.Agent(agent))
}

// AddClient enrolls the caller as a client of the agent owning the code.
func (h *AgentHandler) AddClient(c echo.Context) error {
	userID, err := currentUserID(c)
	if err != nil {
		return err
	}

	var req addClientRequest
	if err := bind(c, &req); err != nil {
		return err
	}

	client, err := h.agents.AddClient(c.Request().Context(), req.AgentCode, userID)
	if err != nil {
		return errors.WithStack(err)
	}

	return response.Success(c, http.StatusCreated, agentClientResponse{
		ID:        client.ID.String(),
		AgentID:   client.AgentID.String(),
		ClientID:  client.ClientID.String(),
		CreatedAt: h.formatter.Date(client.CreatedAt),
	})
}
