package main

import (
	"github.com/dukex/scenarios/pkg/engine"
	cli "github.com/urfave/cli/v3"
)

const defaultHousekeepingSchedule = "0 3 * * *"

func engineFlags() []cli.Flag {
	defaults := engine.DefaultConfig()

	return []cli.Flag{
		&cli.DurationFlag{
			Name:    "sleep-time",
			Usage:   "Pause between polls",
			Value:   defaults.SleepTime,
			Sources: cli.EnvVars("ENGINE_SLEEP_TIME"),
		},
		&cli.IntFlag{
			Name:    "batch-size",
			Usage:   "Jobs fetched per queue query",
			Value:   defaults.BatchSize,
			Sources: cli.EnvVars("ENGINE_BATCH_SIZE"),
		},
		&cli.StringFlag{
			Name:    "error-policy",
			Usage:   "What to do when a poll fails (halt, retry)",
			Value:   string(defaults.ErrorPolicy),
			Sources: cli.EnvVars("ENGINE_ERROR_POLICY"),
		},
		&cli.DurationFlag{
			Name:    "housekeeping-retention",
			Usage:   "How long continued finished jobs are kept",
			Value:   defaults.Retention,
			Sources: cli.EnvVars("HOUSEKEEPING_RETENTION"),
		},
		&cli.IntFlag{
			Name:    "housekeeping-batch-size",
			Usage:   "Jobs deleted per housekeeping statement",
			Value:   defaults.HousekeepingBatchSize,
			Sources: cli.EnvVars("HOUSEKEEPING_BATCH_SIZE"),
		},
	}
}

func engineConfig(command *cli.Command) engine.Config {
	return engine.Config{
		SleepTime:             command.Duration("sleep-time"),
		BatchSize:             command.Int("batch-size"),
		ErrorPolicy:           engine.ErrorPolicy(command.String("error-policy")),
		Retention:             command.Duration("housekeeping-retention"),
		HousekeepingBatchSize: command.Int("housekeeping-batch-size"),
	}
}
