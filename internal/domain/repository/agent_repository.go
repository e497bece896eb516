package repository

import (
	"context"
	"errors"

	"clubinex/internal/domain/entity"

	"github.com/google/uuid"
)

var (
	// ErrAgentNotFound is returned when an agent is not found.
	ErrAgentNotFound = errors.New("agent not found")

	// ErrAgentConflict is returned when the user is already an agent or the code is taken.
	ErrAgentConflict = errors.New("agent already exists")

	// ErrClientAlreadyAssigned is returned when the client belongs to an agent.
	ErrClientAlreadyAssigned = errors.New("client already assigned")
)

// AgentRepository persists agents and their clients.
type AgentRepository interface {
	Create(ctx context.Context, agent *entity.Agent) error
	FindByID(ctx context.Context, id uuid.UUID) (*entity.Agent, error)
	FindByUserID(ctx context.Context, userID uuid.UUID) (*entity.Agent, error)
	FindByCode(ctx context.Context, code string) (*entity.Agent, error)

	// LockByID loads the agent holding a row lock until the transaction ends.
	LockByID(ctx context.Context, id uuid.UUID) (*entity.Agent, error)

	// Update writes verification, activity and limit fields.
	Update(ctx context.Context, agent *entity.Agent) error

	CountClients(ctx context.Context, agentID uuid.UUID) (int64, error)
	AddClient(ctx context.Context, client *entity.AgentClient) error
}
