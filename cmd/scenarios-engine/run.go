package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/dukex/scenarios/pkg/cmd"
	"github.com/dukex/scenarios/pkg/engine"
	"github.com/dukex/scenarios/pkg/graph"
	"github.com/dukex/scenarios/pkg/log"
	"github.com/robfig/cron/v3"
	cli "github.com/urfave/cli/v3"
)

func NewRunCommand() *cli.Command {
	flags := append(engineFlags(),
		&cli.BoolFlag{
			Name:  "once",
			Usage: "Poll a single time and exit",
		},
		&cli.StringFlag{
			Name:     "event-bus",
			Usage:    "Task bus type (kafka, gochannel)",
			Required: true,
			Sources:  cli.EnvVars("EVENT_BUS_TYPE"),
		},
		&cli.StringSliceFlag{
			Name:    "kafka-brokers",
			Usage:   "Kafka broker addresses",
			Sources: cli.EnvVars("KAFKA_BROKERS"),
		},
		&cli.StringFlag{
			Name:    "housekeeping-schedule",
			Usage:   "Cron expression for housekeeping; empty disables it",
			Value:   defaultHousekeepingSchedule,
			Sources: cli.EnvVars("HOUSEKEEPING_SCHEDULE"),
		},
	)

	return &cli.Command{
		Name:    "run",
		Aliases: []string{"r"},
		Usage:   "Start the engine polling loop",
		Flags:   flags,
		Action: func(ctx context.Context, command *cli.Command) error {
			log.Setup(command.String("log-level"))

			logger := log.WithModule("scenarios-engine")

			logger.InfoContext(ctx, "Initializing scenarios engine")

			tracer, shutdownTracer, err := cmd.NewTracer(ctx, command.Bool("tracing"), "scenarios-engine")
			if err != nil {
				return err
			}

			defer func() {
				if err := shutdownTracer(context.WithoutCancel(ctx)); err != nil {
					logger.ErrorContext(ctx, "Failed to shutdown tracer", "error", err)
				}
			}()

			persistence, err := cmd.NewPersistence(ctx, logger, command.String("database-url"))
			if err != nil {
				return err
			}

			defer func() {
				if err := persistence.Close(context.WithoutCancel(ctx)); err != nil {
					logger.ErrorContext(ctx, "Failed to close persistence", "error", err)
				}
			}()

			bus, err := cmd.NewTaskBus(command.String("event-bus"), command.StringSlice("kafka-brokers"), "scenarios-engine", logger)
			if err != nil {
				return err
			}

			defer func() {
				if err := bus.Close(); err != nil {
					logger.ErrorContext(ctx, "Failed to close task bus", "error", err)
				}
			}()

			eng, err := engine.New(
				persistence,
				graph.NewConfiguration(persistence.GraphRepository(), logger),
				bus,
				engineConfig(command),
				logger,
				engine.WithTracer(tracer),
			)
			if err != nil {
				return err
			}

			once := command.Bool("once")
			schedule := command.String("housekeeping-schedule")

			if !once && schedule != "" {
				scheduler, err := startHousekeeping(ctx, eng, schedule, logger)
				if err != nil {
					return err
				}

				defer func() { <-scheduler.Stop().Done() }()
			}

			return eng.Run(ctx, once)
		},
	}
}

// startHousekeeping runs Housekeep on schedule. Overlapping runs are skipped.
func startHousekeeping(ctx context.Context, eng *engine.Engine, schedule string, logger *slog.Logger) (*cron.Cron, error) {
	cronLogger := cron.PrintfLogger(slog.NewLogLogger(logger.Handler(), slog.LevelWarn))

	scheduler := cron.New(cron.WithChain(
		cron.SkipIfStillRunning(cronLogger),
		cron.Recover(cronLogger),
	))

	_, err := scheduler.AddFunc(schedule, func() {
		if _, err := eng.Housekeep(ctx); err != nil {
			logger.ErrorContext(ctx, "Housekeeping failed", "error", err)
		}
	})
	if err != nil {
		return nil, fmt.Errorf("invalid housekeeping schedule %q: %w", schedule, err)
	}

	scheduler.Start()

	logger.InfoContext(ctx, "Housekeeping scheduled", "schedule", schedule)

	return scheduler, nil
}
