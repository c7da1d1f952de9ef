package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/liamcoop/workflowrules/internal/logger"
	"github.com/liamcoop/workflowrules/internal/metrics"
	"github.com/liamcoop/workflowrules/orchestrator"
	"github.com/liamcoop/workflowrules/rules"
	"github.com/liamcoop/workflowrules/services"
	_ "github.com/lib/pq"
	cli "github.com/urfave/cli/v3"
)

const defaultPort = 8080

func main() {
	cmd := &cli.Command{
		Name:  "workflowrules-server",
		Usage: "Serve and run business-rules workflows over HTTP",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:    "port",
				Aliases: []string{"p"},
				Usage:   "Port to run the API server on",
				Value:   defaultPort,
				Sources: cli.EnvVars("PORT"),
			},
			&cli.StringFlag{
				Name:    "database-url",
				Usage:   "PostgreSQL URL for workflow persistence; empty keeps workflows in memory",
				Sources: cli.EnvVars("DATABASE_URL"),
			},
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "Log level (trace, debug, info, warn, error)",
				Value:   "info",
				Sources: cli.EnvVars("LOG_LEVEL"),
			},
			&cli.DurationFlag{
				Name:    "webhook-timeout",
				Usage:   "Timeout for outgoing webhook actions",
				Value:   10 * time.Second,
				Sources: cli.EnvVars("WEBHOOK_TIMEOUT"),
			},
			&cli.BoolFlag{
				Name:    "load-defaults",
				Usage:   "Register the built-in default workflow at startup",
				Value:   true,
				Sources: cli.EnvVars("LOAD_DEFAULT_WORKFLOWS"),
			},
		},
		Action: run,
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "workflowrules-server: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, command *cli.Command) error {
	logger.Setup(command.String("log-level"))
	log := logger.WithModule("server")
	defer func() {
		if err := logger.Shutdown(context.Background()); err != nil {
			fmt.Fprintf(os.Stderr, "logger shutdown: %v\n", err)
		}
	}()

	store, db, err := openStore(ctx, command.String("database-url"))
	if err != nil {
		return err
	}
	defer closeDatabase(ctx, db, log)

	m := metrics.New()
	registry := services.NewDefaultRegistry(
		services.WithLogger(logger.WithModule("services")),
		services.WithTimeout(command.Duration("webhook-timeout")),
	)
	orch := orchestrator.New(registry,
		orchestrator.WithLogger(logger.WithModule("orchestrator")),
		orchestrator.WithObserver(m),
	)

	if command.Bool("load-defaults") {
		if err := orch.RegisterDefaults(); err != nil {
			return err
		}
	}
	loaded, err := orch.LoadAll(ctx, store)
	if err != nil {
		return fmt.Errorf("load workflows: %w", err)
	}
	m.SetWorkflows(len(orch.Workflows()))
	log.InfoContext(ctx, "workflows ready",
		"stored", loaded,
		"registered", orch.Workflows())

	server := NewServer(store, orch, m, db, logger.WithModule("http"))

	port := strconv.Itoa(command.Int("port"))
	httpServer := &http.Server{
		Addr:         ":" + port,
		Handler:      server,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 75 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.InfoContext(ctx, "server starting", "port", port)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	sigCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
	case <-sigCtx.Done():
	}

	log.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}
	log.Info("server stopped")
	return nil
}

// openStore returns a PostgreSQL store when databaseURL is set and an
// in-memory store otherwise
func openStore(ctx context.Context, databaseURL string) (rules.WorkflowStore, *sql.DB, error) {
	if databaseURL == "" {
		logger.WithModule("server").WarnContext(ctx, "DATABASE_URL not set, workflows are kept in memory")
		return rules.NewInMemoryWorkflowStore(), nil, nil
	}

	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return rules.NewPostgresWorkflowStore(db), db, nil
}

// closeDatabase closes db when the server runs against PostgreSQL
func closeDatabase(ctx context.Context, db *sql.DB, log *slog.Logger) {
	if db == nil {
		return
	}
	if err := db.Close(); err != nil {
		log.ErrorContext(ctx, "failed to close database", slog.Any("error", err))
	}
}
