package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/liamcoop/workflowrules/internal/logger"
	cli "github.com/urfave/cli/v3"
)

func main() {
	cmd := &cli.Command{
		Name:      "workflowrules-migrate",
		Usage:     "Apply or roll back the workflow store schema",
		ArgsUsage: "[version]",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "database",
				Usage:    "Database URL",
				Required: true,
				Sources:  cli.EnvVars("DATABASE_URL"),
			},
			&cli.StringFlag{
				Name:  "path",
				Usage: "Path to migrations directory",
				Value: "migrations",
			},
			&cli.StringFlag{
				Name:  "command",
				Usage: "Migration command: up, down, version, force <version>",
				Value: "up",
			},
			&cli.StringFlag{
				Name:    "log-level",
				Value:   "info",
				Sources: cli.EnvVars("LOG_LEVEL"),
			},
		},
		Action: func(ctx context.Context, command *cli.Command) error {
			logger.Setup(command.String("log-level"))
			log := logger.WithModule("migrate")

			log.InfoContext(ctx, "connecting to database", slog.String("path", command.String("path")))
			m, err := migrate.New("file://"+command.String("path"), command.String("database"))
			if err != nil {
				return fmt.Errorf("create migration instance: %w", err)
			}
			defer m.Close()

			return runMigration(log, m, command.String("command"), command.Args().First())
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "workflowrules-migrate: %v\n", err)
		os.Exit(1)
	}
}

// migrator is the subset of *migrate.Migrate the commands use
type migrator interface {
	Up() error
	Down() error
	Version() (uint, bool, error)
	Force(version int) error
}

func runMigration(log *slog.Logger, m migrator, command, arg string) error {
	switch command {
	case "up":
		err := m.Up()
		if errors.Is(err, migrate.ErrNoChange) {
			log.Info("database is up to date")
			return nil
		}
		if err != nil {
			return fmt.Errorf("run migrations: %w", err)
		}
		log.Info("migrations applied")

	case "down":
		err := m.Down()
		if err != nil && !errors.Is(err, migrate.ErrNoChange) {
			return fmt.Errorf("roll back migrations: %w", err)
		}
		log.Info("migrations rolled back")

	case "version":
		version, dirty, err := m.Version()
		if errors.Is(err, migrate.ErrNilVersion) {
			log.Info("no migrations applied")
			return nil
		}
		if err != nil {
			return fmt.Errorf("get version: %w", err)
		}
		log.Info("current version", slog.Uint64("version", uint64(version)), slog.Bool("dirty", dirty))

	case "force":
		if arg == "" {
			return errors.New("force requires a version argument")
		}
		version, err := strconv.Atoi(arg)
		if err != nil {
			return fmt.Errorf("invalid version %q: %w", arg, err)
		}
		if err := m.Force(version); err != nil {
			return fmt.Errorf("force version: %w", err)
		}
		log.Info("forced version", slog.Int("version", version))

	default:
		return fmt.Errorf("unknown command %q (use: up, down, version, force)", command)
	}
	return nil
}
