package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/dukex/scenarios/pkg/cmd"
	"github.com/dukex/scenarios/pkg/log"
	"github.com/dukex/scenarios/pkg/services"
	"github.com/dukex/scenarios/pkg/workers/wait"
	"github.com/jonboulle/clockwork"
	cli "github.com/urfave/cli/v3"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	command := &cli.Command{
		Name:                  "scenarios-wait-worker",
		Usage:                 "Finish wait jobs once their delay has elapsed",
		EnableShellCompletion: true,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "database-url",
				Usage:    "Database connection URL for persistence",
				Required: true,
				Sources:  cli.EnvVars("DATABASE_URL"),
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
				Name:     "redis-url",
				Usage:    "Redis URL holding the delay queue",
				Required: true,
				Sources:  cli.EnvVars("REDIS_URL"),
			},
			&cli.StringFlag{
				Name:    "redis-key",
				Usage:   "Sorted set key of the delay queue",
				Value:   wait.DefaultQueueKey,
				Sources: cli.EnvVars("WAIT_QUEUE_KEY"),
			},
			&cli.DurationFlag{
				Name:    "poll-interval",
				Usage:   "How often due jobs are looked up",
				Value:   wait.DefaultInterval,
				Sources: cli.EnvVars("WAIT_POLL_INTERVAL"),
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

			logger := log.WithModule("scenarios-wait-worker")

			logger.InfoContext(ctx, "Initializing wait worker")

			persistence, err := cmd.NewPersistence(ctx, logger, command.String("database-url"))
			if err != nil {
				return err
			}

			defer func() {
				if err := persistence.Close(context.WithoutCancel(ctx)); err != nil {
					logger.ErrorContext(ctx, "Failed to close persistence", "error", err)
				}
			}()

			redisClient, err := cmd.NewRedisClient(ctx, command.String("redis-url"))
			if err != nil {
				return err
			}

			defer func() {
				if err := redisClient.Close(); err != nil {
					logger.ErrorContext(ctx, "Failed to close redis client", "error", err)
				}
			}()

			bus, err := cmd.NewTaskBus(command.String("event-bus"), command.StringSlice("kafka-brokers"), "scenarios-wait-worker", logger)
			if err != nil {
				return err
			}

			defer func() {
				if err := bus.Close(); err != nil {
					logger.ErrorContext(ctx, "Failed to close task bus", "error", err)
				}
			}()

			clock := clockwork.NewRealClock()
			worker := wait.NewWorker(
				wait.NewRedisQueue(redisClient, command.String("redis-key")),
				services.NewJobs(persistence, clock, logger),
				clock,
				command.Duration("poll-interval"),
				logger,
			)

			if err := worker.Register(bus); err != nil {
				return err
			}

			if err := bus.Subscribe(ctx); err != nil {
				return err
			}

			return worker.Run(ctx)
		},
	}

	if err := command.Run(ctx, os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		stop()
		os.Exit(1)
	}
}
