package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// AgentModel mirrors the 'agents' table.
type AgentModel struct {
	ID         uuid.UUID  `gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	UserID     uuid.UUID  `gorm:"type:uuid;not null;uniqueIndex"`
	AgentCode  string     `gorm:"type:varchar(32);not null;uniqueIndex"`
	VerifiedAt *time.Time
	IsActive   bool `gorm:"not null;default:true"`
	MaxClients *int
	CreatedAt  time.Time
	UpdatedAt  time.Time
	DeletedAt  gorm.DeletedAt `gorm:"index"`

	User UserModel `gorm:"foreignKey:UserID"`
}

// TableName explicitly sets the table name for GORM.
func (AgentModel) TableName() string {
	return "agents"
}

// AgentClientModel mirrors the 'agent_clients' table. A client belongs to at most one agent.
type AgentClientModel struct {
	ID        uuid.UUID `gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	AgentID   uuid.UUID `gorm:"type:uuid;not null;index"`
	ClientID  uuid.UUID `gorm:"type:uuid;not null;uniqueIndex"`
	CreatedAt time.Time

	Agent  AgentModel `gorm:"foreignKey:AgentID"`
	Client UserModel  `gorm:"foreignKey:ClientID"`
}

// TableName explicitly sets the table name for GORM.
func (AgentClientModel) TableName() string {
	return "agent_clients"
}
