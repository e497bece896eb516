package usecase

import (
	"context"

	"clubinex/internal/domain/entity"

	"github.com/google/uuid"
)

// AgentUsecase manages agents and the clients they sign up.
type AgentUsecase interface {
	// RegisterAgent turns an active member into a pending agent. A nil
	// maxClients means unlimited.
	RegisterAgent(ctx context.Context, userID uuid.UUID, maxClients *int) (*entity.Agent, error)
	VerifyAgent(ctx context.Context, agentID uuid.UUID) (*entity.Agent, error)
	SetActive(ctx context.Context, agentID uuid.UUID, active bool) (*entity.Agent, error)
	AddClient(ctx context.Context, agentCode string, clientID uuid.UUID) (*entity.AgentClient, error)
}
