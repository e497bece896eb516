// Command migrate applies or rolls back the database schema.
//
//	migrate up      apply pending migrations
//	migrate down    roll back the most recent migration
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"clubinex/config"
	logs "clubinex/internal/infra/log"
	"clubinex/internal/infra/persistence/migration"
	"clubinex/internal/infra/persistence/postgres"

	"github.com/pkg/errors"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	if err := run(os.Args[1]); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(direction string) error {
	var step func(context.Context, *gorm.DB, *slog.Logger) error
	switch direction {
	case "up":
		step = migration.Run
	case "down":
		step = migration.RollbackLast
	default:
		printUsage()

		return errors.Errorf("unknown direction %q", direction)
	}

	var (
		db     *gorm.DB
		logger *slog.Logger
	)
	app := fx.New(
		fx.NopLogger,
		fx.Provide(
			config.New,
			logs.New,
			postgres.New,
		),
		fx.Populate(&db, &logger),
	)

	ctx := context.Background()
	if err := app.Start(ctx); err != nil {
		return errors.Wrap(err, "failed to connect")
	}
	defer func() {
		if err := app.Stop(ctx); err != nil {
			logger.Error("Failed to close database", slog.Any("error", err))
		}
	}()

	return step(ctx, db, logger)
}

func printUsage() {
	fmt.Println("Usage: migrate <up|down>")
}
