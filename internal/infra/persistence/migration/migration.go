// Package migration evolves the PostgreSQL schema with gormigrate.
package migration

import (
	"context"
	"log/slog"

	"clubinex/internal/errors"
	"clubinex/internal/infra/persistence/model"

	"github.com/go-gormigrate/gormigrate/v2"
	"gorm.io/gorm"
)

// Migrations returns every schema migration in application order.
func Migrations() []*gormigrate.Migration {
	return []*gormigrate.Migration{
		{
			ID: "202610010001_create_users",
			Migrate: func(tx *gorm.DB) error {
				return tx.Migrator().CreateTable(&model.UserModel{})
			},
			Rollback: func(tx *gorm.DB) error {
				return tx.Migrator().DropTable("users")
			},
		},
		{
			ID: "202610010002_create_referral_networks",
			Migrate: func(tx *gorm.DB) error {
				return tx.Migrator().CreateTable(&model.ReferralNetworkModel{})
			},
			Rollback: func(tx *gorm.DB) error {
				return tx.Migrator().DropTable("referral_networks")
			},
		},
		{
			ID: "202610010003_create_referral_commissions",
			Migrate: func(tx *gorm.DB) error {
				return tx.Migrator().CreateTable(&model.ReferralCommissionModel{})
			},
			Rollback: func(tx *gorm.DB) error {
				return tx.Migrator().DropTable("referral_commissions")
			},
		},
		{
			ID: "202610010004_create_point_transactions",
			Migrate: func(tx *gorm.DB) error {
				return tx.Migrator().CreateTable(&model.PointTransactionModel{})
			},
			Rollback: func(tx *gorm.DB) error {
				return tx.Migrator().DropTable("point_transactions")
			},
		},
		{
			ID: "202610010005_create_agents",
			Migrate: func(tx *gorm.DB) error {
				return tx.Migrator().CreateTable(&model.AgentModel{}, &model.AgentClientModel{})
			},
			Rollback: func(tx *gorm.DB) error {
				return tx.Migrator().DropTable("agent_clients", "agents")
			},
		},
		{
			ID: "202610010006_create_failed_jobs",
			Migrate: func(tx *gorm.DB) error {
				return tx.Migrator().CreateTable(&model.FailedJobModel{})
			},
			Rollback: func(tx *gorm.DB) error {
				return tx.Migrator().DropTable("failed_jobs")
			},
		},
	}
}

// Run applies pending migrations.
func Run(ctx context.Context, db *gorm.DB, logger *slog.Logger) error {
	m := gormigrate.New(db.WithContext(ctx), gormigrate.DefaultOptions, Migrations())

	if err := m.Migrate(); err != nil {
		return errors.Wrap(err, "failed to run migrations")
	}

	logger.InfoContext(ctx, "Migrations applied", slog.Int("count", len(Migrations())))

	return nil
}

// RollbackLast reverts the most recent migration.
func RollbackLast(ctx context.Context, db *gorm.DB, logger *slog.Logger) error {
	m := gormigrate.New(db.WithContext(ctx), gormigrate.DefaultOptions, Migrations())

	if err := m.RollbackLast(); err != nil {
		return errors.Wrap(err, "failed to roll back migration")
	}

	logger.InfoContext(ctx, "Last migration rolled back")

	return nil
}
