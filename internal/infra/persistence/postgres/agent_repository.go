package postgres

import (
	"context"

	"clubinex/internal/domain/entity"
	domainerrors "clubinex/internal/domain/errors"
	"clubinex/internal/domain/repository"
	"clubinex/internal/infra/persistence/model"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type agentRepository struct {
	db *gorm.DB
}

// NewAgentRepository creates an agent repository on db.
func NewAgentRepository(db *gorm.DB) repository.AgentRepository {
	return &agentRepository{db: db}
}

func (repo *agentRepository) Create(ctx context.Context, agent *entity.Agent) error {
	agentM := fromAgentDomain(agent)
	if err := repo.db.WithContext(ctx).Omit("User").Create(agentM).Error; err != nil {
		if isUniqueConstraintViolation(err) {
			return repository.ErrAgentConflict
		}
		if isForeignKeyConstraintViolation(err) {
			return repository.ErrUserNotFound
		}

		return domainerrors.NewDatabaseExecuteError(err, "failed to create agent")
	}

	return nil
}

func (repo *agentRepository) FindByID(ctx context.Context, id uuid.UUID) (*entity.Agent, error) {
	return repo.findOne(repo.db.WithContext(ctx).Where("id = ?", id), "failed to find agent by id")
}

func (repo *agentRepository) FindByUserID(ctx context.Context, userID uuid.UUID) (*entity.Agent, error) {
	return repo.findOne(repo.db.WithContext(ctx).Where("user_id = ?", userID), "failed to find agent by user")
}

func (repo *agentRepository) FindByCode(ctx context.Context, code string) (*entity.Agent, error) {
	return repo.findOne(repo.db.WithContext(ctx).Where("agent_code = ?", code), "failed to find agent by code")
}

func (repo *agentRepository) LockByID(ctx context.Context, id uuid.UUID) (*entity.Agent, error) {
	query := repo.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: clause.LockingStrengthUpdate}).
		Where("id = ?", id)

	return repo.findOne(query, "failed to lock agent")
}

func (repo *agentRepository) Update(ctx context.Context, agent *entity.Agent) error {
	result := repo.db.WithContext(ctx).
		Model(&model.AgentModel{}).
		Where("id = ?", agent.ID).
		Updates(map[string]any{
			"verified_at": agent.VerifiedAt,
			"is_active":   agent.IsActive,
			"max_clients": agent.MaxClients,
			"updated_at":  agent.UpdatedAt,
		})
	if result.Error != nil {
		return domainerrors.NewDatabaseExecuteError(result.Error, "failed to update agent")
	}
	if result.RowsAffected == 0 {
		return repository.ErrAgentNotFound
	}

	return nil
}

func (repo *agentRepository) CountClients(ctx context.Context, agentID uuid.UUID) (int64, error) {
	var count int64
	err := repo.db.WithContext(ctx).
		Model(&model.AgentClientModel{}).
		Where("agent_id = ?", agentID).
		Count(&count).Error
	if err != nil {
		return 0, domainerrors.NewDatabaseExecuteError(err, "failed to count agent clients")
	}

	return count, nil
}

func (repo *agentRepository) AddClient(ctx context.Context, client *entity.AgentClient) error {
	clientM := &model.AgentClientModel{
		ID:        client.ID,
		AgentID:   client.AgentID,
		ClientID:  client.ClientID,
		CreatedAt: client.CreatedAt,
	}

	if err := repo.db.WithContext(ctx).Omit("Agent", "Client").Create(clientM).Error; err != nil {
		if isUniqueConstraintViolation(err) {
			return repository.ErrClientAlreadyAssigned
		}
		if isForeignKeyConstraintViolation(err) {
			return repository.ErrUserNotFound
		}

		return domainerrors.NewDatabaseExecuteError(err, "failed to add agent client")
	}

	return nil
}

func (repo *agentRepository) findOne(query *gorm.DB, msg string) (*entity.Agent, error) {
	var agentM model.AgentModel
	if err := query.First(&agentM).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, repository.ErrAgentNotFound
		}

		return nil, domainerrors.NewDatabaseExecuteError(err, msg)
	}

	return toAgentDomain(&agentM), nil
}

func toAgentDomain(data *model.AgentModel) *entity.Agent {
	return &entity.Agent{
		ID:         data.ID,
		UserID:     data.UserID,
		AgentCode:  data.AgentCode,
		VerifiedAt: data.VerifiedAt,
		IsActive:   data.IsActive,
		MaxClients: data.MaxClients,
		CreatedAt:  data.CreatedAt,
		UpdatedAt:  data.UpdatedAt,
	}
}

func fromAgentDomain(data *entity.Agent) *model.AgentModel {
	return &model.AgentModel{
		ID:         data.ID,
		UserID:     data.UserID,
		AgentCode:  data.AgentCode,
		VerifiedAt: data.VerifiedAt,
		IsActive:   data.IsActive,
		MaxClients: data.MaxClients,
		CreatedAt:  data.CreatedAt,
		UpdatedAt:  data.UpdatedAt,
	}
}
