package main

import (
	"context"

	"github.com/dukex/scenarios/pkg/cmd"
	"github.com/dukex/scenarios/pkg/engine"
	"github.com/dukex/scenarios/pkg/log"
	"github.com/dukex/scenarios/pkg/receivers"
	cli "github.com/urfave/cli/v3"
)

func NewReceiveCommand() *cli.Command {
	return &cli.Command{
		Name:  "receive",
		Usage: "Dispatch events published on the message bus",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "event-bus",
				Usage:    "Event bus type (kafka, gochannel)",
				Required: true,
				Sources:  cli.EnvVars("EVENT_BUS_TYPE"),
			},
			&cli.StringSliceFlag{
				Name:    "kafka-brokers",
				Usage:   "Kafka broker addresses",
				Sources: cli.EnvVars("KAFKA_BROKERS"),
			},
		},
		Action: func(ctx context.Context, command *cli.Command) error {
			log.Setup(command.String("log-level"))

			logger := log.WithModule("scenarios-receiver")

			tracer, shutdownTracer, err := cmd.NewTracer(ctx, command.Bool("tracing"), "scenarios-receiver")
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

			pub, sub, err := cmd.NewChannel(command.String("event-bus"), command.StringSlice("kafka-brokers"), "scenarios-receiver", logger)
			if err != nil {
				return err
			}

			defer func() {
				if err := pub.Close(); err != nil {
					logger.ErrorContext(ctx, "Failed to close publisher", "error", err)
				}

				if err := sub.Close(); err != nil {
					logger.ErrorContext(ctx, "Failed to close subscriber", "error", err)
				}
			}()

			dispatcher := engine.NewDispatcher(persistence, logger).WithTracer(tracer)

			return receivers.NewReceiver(sub, dispatcher, logger).Run(ctx)
		},
	}
}
