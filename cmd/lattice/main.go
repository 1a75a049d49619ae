package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	cli "github.com/urfave/cli/v3"

	"github.com/latticehq/lattice/pkg/cmd"
	"github.com/latticehq/lattice/pkg/log"
)

func main() {
	command := &cli.Command{
		Name:                  "lattice",
		Usage:                 "Inspect and validate function models",
		EnableShellCompletion: true,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "database-url",
				Usage:    "Database connection URL for persistence",
				Required: true,
				Sources:  cli.EnvVars("DATABASE_URL"),
			},
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "Log level (debug, info, warn, error)",
				Value:   "warn",
				Sources: cli.EnvVars("LOG_LEVEL"),
			},
		},
		Commands: []*cli.Command{
			{
				Name:      "validate",
				Usage:     "Validate a model's structure and publishing readiness",
				ArgsUsage: "<model-id>",
				Action: func(ctx context.Context, command *cli.Command) error {
					return validateModel(ctx, command)
				},
			},
			{
				Name:      "versions",
				Usage:     "List the saved versions of a model",
				ArgsUsage: "<model-id>",
				Action: func(ctx context.Context, command *cli.Command) error {
					return listVersions(ctx, command)
				},
			},
		},
	}

	if err := command.Run(context.Background(), os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func validateModel(ctx context.Context, command *cli.Command) error {
	modelID := command.Args().First()
	if modelID == "" {
		return errors.New("model id argument is required")
	}

	logger := log.Setup(command.String("log-level"))

	persistence, err := cmd.NewPersistence(ctx, logger, command.String("database-url"))
	if err != nil {
		return err
	}
	defer func() { _ = persistence.Close(ctx) }()

	model, err := persistence.ModelRepository().GetByID(ctx, modelID)
	if err != nil {
		return err
	}

	if model == nil {
		return fmt.Errorf("model %s not found", modelID)
	}

	fmt.Printf("Model:  %s (%s)\n", model.Name, model.ID)
	fmt.Printf("Status: %s, version %s, %d nodes, %d relationships\n",
		model.Status, model.Version, len(model.Nodes), len(model.Relationships))

	if err := model.Validate(); err != nil {
		fmt.Println("Validation: FAILED")

		return err
	}

	fmt.Println("Validation: OK")

	return nil
}

func listVersions(ctx context.Context, command *cli.Command) error {
	modelID := command.Args().First()
	if modelID == "" {
		return errors.New("model id argument is required")
	}

	logger := log.Setup(command.String("log-level"))

	persistence, err := cmd.NewPersistence(ctx, logger, command.String("database-url"))
	if err != nil {
		return err
	}
	defer func() { _ = persistence.Close(ctx) }()

	records, err := persistence.VersionRepository().ListVersions(ctx, modelID)
	if err != nil {
		return err
	}

	if len(records) == 0 {
		fmt.Println("No versions saved")

		return nil
	}

	for _, record := range records {
		fmt.Printf("#%d  %s  %s  by %s  %s\n",
			record.VersionNumber, record.Version, record.ID,
			record.AuthorID, record.CreatedAt.Format("2006-01-02 15:04:05"))
	}

	return nil
}
