package impl

import (
	"context"
	"log/slog"
	"strings"

	deliverycontext "clubinex/internal/delivery/context"
	"clubinex/internal/domain/constants"
	"clubinex/internal/domain/entity"
	domainerrors "clubinex/internal/domain/errors"
	"clubinex/internal/domain/repository"
	"clubinex/internal/domain/service"
	"clubinex/internal/usecase"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.uber.org/fx"
)

// agentService implements the AgentUsecase interface.
type agentService struct {
	txManager repository.TransactionManager
	codeGen   service.CodeGenerator
	clock     service.Clock
	logger    *slog.Logger
}

// AgentServiceParams holds dependencies for AgentService, injected by Fx.
type AgentServiceParams struct {
	fx.In

	TxManager repository.TransactionManager
	CodeGen   service.CodeGenerator
	Clock     service.Clock
	Logger    *slog.Logger
}

// NewAgentService is the constructor for agentService.
func NewAgentService(params AgentServiceParams) usecase.AgentUsecase {
	return &agentService{
		txManager: params.TxManager,
		codeGen:   params.CodeGen,
		clock:     params.Clock,
		logger:    params.Logger,
	}
}

func (srv *agentService) log(ctx context.Context) *slog.Logger {
	return deliverycontext.GetLoggerOrDefault(ctx, srv.logger)
}

func (srv *agentService) RegisterAgent(ctx context.Context, userID uuid.UUID, maxClients *int) (*entity.Agent, error) {
	if maxClients != nil && *maxClients < 0 {
		return nil, domainerrors.ErrValidationFailed.WithDetails("maxClients must not be negative")
	}

	var agent *entity.Agent
	err := srv.txManager.Execute(ctx, func(repoFactory repository.RepositoryFactory) error {
		user, err := repoFactory.NewUserRepository().FindByID(ctx, userID)
		if err != nil {
			if errors.Is(err, repository.ErrUserNotFound) {
				return domainerrors.ErrUserNotFound
			}

			return errors.Wrap(err, "failed to find user")
		}
		switch user.Status {
		case entity.UserStatusDisabled:
			return domainerrors.ErrUserDisabled
		case entity.UserStatusPending:
			return domainerrors.ErrUserNotActive
		}

		agentRepo := repoFactory.NewAgentRepository()
		_, err = agentRepo.FindByUserID(ctx, userID)
		if err == nil {
			return domainerrors.ErrAgentAlreadyExists
		}
		if !errors.Is(err, repository.ErrAgentNotFound) {
			return errors.Wrap(err, "failed to find agent")
		}

		code, err := srv.uniqueAgentCode(ctx, agentRepo)
		if err != nil {
			return err
		}

		agent = entity.NewAgent(userID, code, maxClients, srv.clock.Now())
		if err := agentRepo.Create(ctx, agent); err != nil {
			if errors.Is(err, repository.ErrAgentConflict) {
				return domainerrors.ErrAgentAlreadyExists
			}

			return errors.Wrap(err, "failed to create agent")
		}

		return nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to register agent")
	}

	srv.log(ctx).Info("Agent registered",
		slog.String("agent_id", agent.ID.String()),
		slog.String("agent_code", agent.AgentCode),
	)

	return agent, nil
}

func (srv *agentService) uniqueAgentCode(ctx context.Context, agentRepo repository.AgentRepository) (string, error) {
	for range maxCodeAttempts {
		code, err := srv.codeGen.Generate(constants.AgentCodePrefix)
		if err != nil {
			return "", errors.Wrap(err, "failed to generate agent code")
		}

		_, err = agentRepo.FindByCode(ctx, code)
		if errors.Is(err, repository.ErrAgentNotFound) {
			return code, nil
		}
		if err != nil {
			return "", errors.Wrap(err, "failed to check agent code")
		}
	}

	return "", errors.Errorf("no free agent code after %d attempts", maxCodeAttempts)
}

func (srv *agentService) VerifyAgent(ctx context.Context, agentID uuid.UUID) (*entity.Agent, error) {
	return srv.updateAgent(ctx, agentID, func(agent *entity.Agent) {
		if agent.VerifiedAt == nil {
			now := srv.clock.Now()
			agent.VerifiedAt = &now
		}
	})
}

func (srv *agentService) SetActive(ctx context.Context, agentID uuid.UUID, active bool) (*entity.Agent, error) {
	return srv.updateAgent(ctx, agentID, func(agent *entity.Agent) {
		agent.IsActive = active
	})
}

func (srv *agentService) updateAgent(ctx context.Context, agentID uuid.UUID, mutate func(*entity.Agent)) (*entity.Agent, error) {
	var agent *entity.Agent
	err := srv.txManager.Execute(ctx, func(repoFactory repository.RepositoryFactory) error {
		agentRepo := repoFactory.NewAgentRepository()

		var err error
		agent, err = agentRepo.LockByID(ctx, agentID)
		if err != nil {
			if errors.Is(err, repository.ErrAgentNotFound) {
				return domainerrors.ErrAgentNotFound
			}

			return errors.Wrap(err, "failed to lock agent")
		}

		mutate(agent)
		agent.UpdatedAt = srv.clock.Now()

		return agentRepo.Update(ctx, agent)
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to update agent")
	}

	return agent, nil
}

// AddClient assigns clientID to the agent behind agentCode. The agent row
// is locked so concurrent sign-ups cannot exceed max_clients.
func (srv *agentService) AddClient(ctx context.Context, agentCode string, clientID uuid.UUID) (*entity.AgentClient, error) {
	code := strings.ToUpper(strings.TrimSpace(agentCode))
	if code == "" {
		return nil, domainerrors.ErrValidationFailed.WithDetails("agent code is required")
	}

	var client *entity.AgentClient
	err := srv.txManager.Execute(ctx, func(repoFactory repository.RepositoryFactory) error {
		agentRepo := repoFactory.NewAgentRepository()

		found, err := agentRepo.FindByCode(ctx, code)
		if err != nil {
			if errors.Is(err, repository.ErrAgentNotFound) {
				return domainerrors.ErrAgentNotFound
			}

			return errors.Wrap(err, "failed to find agent")
		}

		agent, err := agentRepo.LockByID(ctx, found.ID)
		if err != nil {
			return errors.Wrap(err, "failed to lock agent")
		}
		if !agent.CanAcceptClients() {
			return domainerrors.ErrAgentNotVerified
		}
		if agent.UserID == clientID {
			return domainerrors.ErrValidationFailed.WithDetails("an agent cannot be their own client")
		}

		if _, err := repoFactory.NewUserRepository().FindByID(ctx, clientID); err != nil {
			if errors.Is(err, repository.ErrUserNotFound) {
				return domainerrors.ErrUserNotFound
			}

			return errors.Wrap(err, "failed to find client")
		}

		count, err := agentRepo.CountClients(ctx, agent.ID)
		if err != nil {
			return errors.Wrap(err, "failed to count clients")
		}
		if !agent.HasCapacity(count) {
			return domainerrors.ErrAgentClientLimitReached
		}

		client = &entity.AgentClient{
			ID:        uuid.New(),
			AgentID:   agent.ID,
			ClientID:  clientID,
			CreatedAt: srv.clock.Now(),
		}
		if err := agentRepo.AddClient(ctx, client); err != nil {
			if errors.Is(err, repository.ErrClientAlreadyAssigned) {
				return domainerrors.ErrClientAlreadyAssigned
			}

			return errors.Wrap(err, "failed to add client")
		}

		return nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to add agent client")
	}

	return client, nil
}
