// Package constants holds identifiers shared by configuration and infrastructure.
package constants

const (
	// EnvDevelop is the local development environment name.
	EnvDevelop = "develop"
	// EnvProduction is the production environment name.
	EnvProduction = "production"
)

// Queue providers selectable through queue.provider.
const (
	QueueProviderRedis  = "redis"
	QueueProviderGoogle = "google"
	QueueProviderLocal  = "local"
	QueueProviderNoop   = "noop"
)

// CommissionQueueName is the default queue carrying commission jobs.
const CommissionQueueName = "commission"

// Referral and agent code prefixes.
const (
	ReferralCodePrefix = "CX"
	AgentCodePrefix    = "AG"
)
