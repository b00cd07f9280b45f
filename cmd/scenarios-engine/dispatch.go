package main

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/dukex/scenarios/pkg/cmd"
	"github.com/dukex/scenarios/pkg/engine"
	"github.com/dukex/scenarios/pkg/log"
	cli "github.com/urfave/cli/v3"
)

func NewDispatchCommand() *cli.Command {
	return &cli.Command{
		Name:  "dispatch",
		Usage: "Create trigger jobs for an event",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "trigger-code",
				Aliases:  []string{"t"},
				Usage:    "Event code matched against scenario triggers",
				Required: true,
			},
			&cli.StringFlag{
				Name:     "user-id",
				Aliases:  []string{"u"},
				Usage:    "User the event belongs to",
				Required: true,
			},
			&cli.StringSliceFlag{
				Name:  "param",
				Usage: "Event parameter as key=value; JSON values are decoded",
			},
		},
		Action: func(ctx context.Context, command *cli.Command) error {
			log.Setup(command.String("log-level"))

			logger := log.WithModule("scenarios-engine")

			params, err := parseParams(command.StringSlice("param"))
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

			userID := parseValue(command.String("user-id"))

			return engine.NewDispatcher(persistence, logger).
				Dispatch(ctx, command.String("trigger-code"), userID, params)
		},
	}
}

func parseParams(pairs []string) (map[string]any, error) {
	params := make(map[string]any, len(pairs))

	for _, pair := range pairs {
		key, value, found := strings.Cut(pair, "=")
		if !found || key == "" {
			return nil, fmt.Errorf("invalid param %q: expected key=value", pair)
		}

		params[key] = parseValue(value)
	}

	return params, nil
}

// parseValue decodes numbers, booleans, objects and quoted strings. Anything else
// is kept as a plain string.
func parseValue(raw string) any {
	var value any
	if err := json.Unmarshal([]byte(raw), &value); err != nil || value == nil {
		return raw
	}

	return value
}
