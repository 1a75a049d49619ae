package main

import (
	"context"
	"os"

	cli "github.com/urfave/cli/v3"

	"github.com/latticehq/lattice/pkg/audit"
	"github.com/latticehq/lattice/pkg/cache"
	"github.com/latticehq/lattice/pkg/cmd"
	"github.com/latticehq/lattice/pkg/log"
	"github.com/latticehq/lattice/pkg/registry"
)

const defaultPort = 9091

func main() {
	logger := log.WithModule("api")

	command := &cli.Command{
		Name:                  "lattice-api",
		Usage:                 "Create and manage function models",
		EnableShellCompletion: true,
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:    "port",
				Aliases: []string{"p"},
				Usage:   "Port to run the API server on",
				Value:   defaultPort,
				Sources: cli.EnvVars("PORT"),
			},
			&cli.StringFlag{
				Name:     "database-url",
				Usage:    "Database connection URL for persistence",
				Required: true,
				Sources:  cli.EnvVars("DATABASE_URL"),
			},
			&cli.StringFlag{
				Name:    "event-bus",
				Usage:   "Event bus provider (gochannel, kafka)",
				Value:   "gochannel",
				Sources: cli.EnvVars("EVENT_BUS_TYPE"),
			},
			&cli.StringFlag{
				Name:    "redis-url",
				Usage:   "Redis URL for the model read cache (disabled when empty)",
				Sources: cli.EnvVars("REDIS_URL"),
			},
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "Log level (debug, info, warn, error)",
				Value:   "info",
				Sources: cli.EnvVars("LOG_LEVEL"),
			},
		},
		Action: func(ctx context.Context, command *cli.Command) error {
			log.Setup(command.String("log-level"))

			logger.InfoContext(ctx, "Initializing Lattice API")

			schemaRegistry, err := registry.NewRegistry(logger)
			if err != nil {
				return err
			}

			persistence, err := cmd.NewPersistence(ctx, logger, command.String("database-url"))
			if err != nil {
				return err
			}

			defer func() {
				if err := persistence.Close(ctx); err != nil {
					logger.ErrorContext(ctx, "Failed to close persistence", "error", err)
				}
			}()

			if redisURL := command.String("redis-url"); redisURL != "" {
				modelCache, err := cache.New(redisURL, logger)
				if err != nil {
					return err
				}

				defer func() {
					if err := modelCache.Close(); err != nil {
						logger.ErrorContext(ctx, "Failed to close model cache", "error", err)
					}
				}()

				persistence = cache.WrapPersistence(persistence, modelCache, logger)
			}

			eventBus, err := cmd.NewEventBus(command.String("event-bus"), "lattice-api", logger)
			if err != nil {
				return err
			}

			defer func() {
				if err := eventBus.Close(); err != nil {
					logger.ErrorContext(ctx, "Failed to close event bus", "error", err)
				}
			}()

			recorder := audit.NewRecorder(persistence.AuditRepository(), logger)
			if err := recorder.Register(eventBus); err != nil {
				return err
			}

			go func() {
				if err := eventBus.Subscribe(ctx); err != nil {
					logger.ErrorContext(ctx, "Event bus subscription stopped", "error", err)
				}
			}()

			api := NewAPI(
				logger,
				persistence,
				schemaRegistry,
				eventBus,
			)

			if err := api.Start(int(command.Int("port"))); err != nil {
				logger.ErrorContext(ctx, "Failed to start API server", "error", err)

				return err
			}

			return nil
		},
	}

	if err := command.Run(context.Background(), os.Args); err != nil {
		panic(err)
	}
}
