package main

import (
	"context"
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"github.com/retailpos/retailpos-backend/pkg/config"
	"github.com/retailpos/retailpos-backend/pkg/db"
	"github.com/retailpos/retailpos-backend/pkg/logger"
	"github.com/retailpos/retailpos-backend/pkg/migrate"
)

func usage() {
	fmt.Fprintln(os.Stderr, `usage: migrate <command> [args]

commands:
  up                  apply all pending migrations
  down                roll back the latest migration
  status              print migration status
  version             print the current DB version
  up-to <version>     migrate to the given version
  create <name>       create a new SQL migration file
  validate            check migration filenames and headers`)
	os.Exit(2)
}

func main() {
	logg := logger.New(logger.Options{ServiceName: "pos-migrate"})

	if len(os.Args) < 2 {
		usage()
	}
	command := os.Args[1]

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	if command == "validate" {
		if err := migrate.ValidateDir(migrate.DefaultDir); err != nil {
			logg.Error(context.Background(), "migration validation failed", err)
			os.Exit(1)
		}
		logg.Info(context.Background(), "migrations valid")
		return
	}

	if command == "create" {
		if len(os.Args) < 3 {
			usage()
		}
		path, err := migrate.CreateSQLMigration(migrate.DefaultDir, os.Args[2])
		if err != nil {
			logg.Error(context.Background(), "failed to create migration", err)
			os.Exit(1)
		}
		logg.Info(logg.WithField(context.Background(), "path", path), "migration created")
		return
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	client, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer client.Close()

	sqlDB, err := client.DB().DB()
	if err != nil {
		logg.Error(context.Background(), "failed to unwrap sql.DB", err)
		os.Exit(1)
	}

	ctx := context.Background()
	switch command {
	case "up", "down", "status", "version", "redo", "reset":
		err = migrate.Run(ctx, sqlDB, migrate.DefaultDir, command)
	case "up-to":
		if len(os.Args) < 3 {
			usage()
		}
		err = migrate.MigrateToVersion(ctx, sqlDB, migrate.DefaultDir, os.Args[2])
	default:
		usage()
	}
	if err != nil {
		logg.Error(ctx, "migration command failed", err)
		os.Exit(1)
	}
}
