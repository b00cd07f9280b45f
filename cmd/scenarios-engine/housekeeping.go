package main

import (
	"context"

	"github.com/dukex/scenarios/pkg/cmd"
	"github.com/dukex/scenarios/pkg/engine"
	"github.com/dukex/scenarios/pkg/graph"
	"github.com/dukex/scenarios/pkg/log"
	cli "github.com/urfave/cli/v3"
)

func NewHousekeepingCommand() *cli.Command {
	return &cli.Command{
		Name:  "housekeeping",
		Usage: "Delete continued finished jobs older than the retention and exit",
		Flags: engineFlags(),
		Action: func(ctx context.Context, command *cli.Command) error {
			log.Setup(command.String("log-level"))

			logger := log.WithModule("scenarios-engine")

			persistence, err := cmd.NewPersistence(ctx, logger, command.String("database-url"))
			if err != nil {
				return err
			}

			defer func() {
				if err := persistence.Close(context.WithoutCancel(ctx)); err != nil {
					logger.ErrorContext(ctx, "Failed to close persistence", "error", err)
				}
			}()

			// Housekeeping never emits tasks.
			eng, err := engine.New(
				persistence,
				graph.NewConfiguration(persistence.GraphRepository(), logger),
				nil,
				engineConfig(command),
				logger,
			)
			if err != nil {
				return err
			}

			_, err = eng.Housekeep(ctx)

			return err
		},
	}
}
