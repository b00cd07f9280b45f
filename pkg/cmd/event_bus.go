// Package cmd holds the constructors shared by the scenarios commands.
package cmd

import (
	"fmt"
	"log/slog"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/dukex/scenarios/pkg/channels/gochannel"
	"github.com/dukex/scenarios/pkg/channels/kafka"
	"github.com/dukex/scenarios/pkg/tasks"
)

// NewChannel connects a watermill publisher and subscriber to the given provider:
// "kafka" or "gochannel".
func NewChannel(provider string, brokers []string, serviceName string, logger *slog.Logger) (message.Publisher, message.Subscriber, error) {
	watermillLogger := watermill.NewSlogLogger(logger)

	switch provider {
	case "kafka":
		pub, sub, err := kafka.CreateChannel(watermillLogger, brokers, serviceName)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create Kafka pub/sub: %w", err)
		}

		return pub, sub, nil
	case "gochannel":
		pub, sub, err := gochannel.CreateChannel(watermillLogger)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create in-memory pub/sub: %w", err)
		}

		return pub, sub, nil
	default:
		return nil, nil, fmt.Errorf("unsupported event bus provider: %s", provider)
	}
}

// NewTaskBus connects the task bus to the given provider.
func NewTaskBus(provider string, brokers []string, serviceName string, logger *slog.Logger) (tasks.Bus, error) {
	pub, sub, err := NewChannel(provider, brokers, serviceName, logger)
	if err != nil {
		return nil, err
	}

	return tasks.NewWatermillBus(pub, sub, logger), nil
}
