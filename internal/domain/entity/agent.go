package entity

import (
	"time"

	"github.com/google/uuid"
)

// Agent is a user who signs up clients.
type Agent struct {
	ID         uuid.UUID
	UserID     uuid.UUID
	AgentCode  string
	VerifiedAt *time.Time // nil while pending approval.
	IsActive   bool
	MaxClients *int // nil means unlimited.
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// NewAgent builds an unverified, active agent.
func NewAgent(userID uuid.UUID, agentCode string, maxClients *int, now time.Time) *Agent {
	return &Agent{
		ID:         uuid.New(),
		UserID:     userID,
		AgentCode:  agentCode,
		IsActive:   true,
		MaxClients: maxClients,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

// IsVerified reports whether an operator approved the agent.
func (a *Agent) IsVerified() bool {
	return a.VerifiedAt != nil
}

// CanAcceptClients reports whether the agent may take on clients at all.
func (a *Agent) CanAcceptClients() bool {
	return a.IsVerified() && a.IsActive
}

// HasCapacity reports whether one more client fits within MaxClients.
func (a *Agent) HasCapacity(currentClients int64) bool {
	if a.MaxClients == nil {
		return true
	}

	return currentClients < int64(*a.MaxClients)
}

// AgentClient links a client user to the agent who signed them up.
type AgentClient struct {
	ID        uuid.UUID
	AgentID   uuid.UUID
	ClientID  uuid.UUID
	CreatedAt time.Time
}
