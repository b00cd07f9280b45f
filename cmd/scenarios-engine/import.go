package main

import (
	"context"

	"github.com/dukex/scenarios/pkg/cmd"
	"github.com/dukex/scenarios/pkg/config"
	"github.com/dukex/scenarios/pkg/log"
	cli "github.com/urfave/cli/v3"
)

func NewImportCommand() *cli.Command {
	return &cli.Command{
		Name:  "import",
		Usage: "Upsert scenarios, elements and edges from a YAML file",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "file",
				Aliases:  []string{"f"},
				Usage:    "Path to the scenarios YAML file",
				Required: true,
			},
		},
		Action: func(ctx context.Context, command *cli.Command) error {
			log.Setup(command.String("log-level"))

			logger := log.WithModule("scenarios-engine")

			scenarioFile, err := config.LoadScenarioFile(command.String("file"))
			if err != nil {
				return err
			}

			persistence, err := cmd.NewPersistence(ctx, logger, command.String("database-url"))
			if err != nil {
				return err
			}

			defer func() {
				if err := persistence.Close(context.WithoutCancel(ctx)); err != nil {
					logger.ErrorContext(ctx, "Failed to close persistence", "error", err)
				}
			}()

			if err := scenarioFile.Apply(ctx, persistence); err != nil {
				return err
			}

			logger.InfoContext(ctx, "Scenarios imported", "count", len(scenarioFile.Scenarios))

			return nil
		},
	}
}
