package tasks

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
)

// WatermillBus carries tasks over any watermill publisher/subscriber pair.
type WatermillBus struct {
	publisher  message.Publisher
	subscriber message.Subscriber
	logger     *slog.Logger

	mu       sync.RWMutex
	handlers map[Name]Handler
}

func NewWatermillBus(pub message.Publisher, sub message.Subscriber, logger *slog.Logger) *WatermillBus {
	return &WatermillBus{
		publisher:  pub,
		subscriber: sub,
		logger:     logger.With("module", "task_bus"),
		handlers:   make(map[Name]Handler),
	}
}

func (b *WatermillBus) Emit(ctx context.Context, task Task) error {
	payload, err := json.Marshal(task)
	if err != nil {
		return fmt.Errorf("failed to marshal %s task: %w", task.GetName(), err)
	}

	msg := message.NewMessage("task-"+watermill.NewULID(), payload)
	msg.SetContext(ctx)
	msg.Metadata.Set(KeyMetadataKey, task.GetJobID())
	msg.Metadata.Set(NameMetadataKey, string(task.GetName()))

	b.logger.DebugContext(ctx, "emitting task", "task_name", task.GetName(), "job_id", task.GetJobID())

	err = b.publisher.Publish(Topic, msg)
	if err != nil {
		return fmt.Errorf("failed to publish %s task for job %s: %w", task.GetName(), task.GetJobID(), err)
	}

	return nil
}

func (b *WatermillBus) Handle(name Name, handler Handler) error {
	if _, known := decoders[name]; !known {
		return fmt.Errorf("unknown task name %q", name)
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	b.handlers[name] = handler

	return nil
}

// Subscribe starts consuming in the background until ctx is done.
// Tasks without a registered handler are acknowledged and dropped.
func (b *WatermillBus) Subscribe(ctx context.Context) error {
	messages, err := b.subscriber.Subscribe(ctx, Topic)
	if err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", Topic, err)
	}

	go func() {
		for msg := range messages {
			b.dispatch(ctx, msg)
		}
	}()

	return nil
}

func (b *WatermillBus) dispatch(ctx context.Context, msg *message.Message) {
	name := Name(msg.Metadata.Get(NameMetadataKey))

	b.mu.RLock()
	handler, exists := b.handlers[name]
	b.mu.RUnlock()

	if !exists {
		msg.Ack()

		return
	}

	task, err := decoders[name](msg.Payload)
	if err != nil {
		// Redelivery cannot fix a malformed payload.
		b.logger.ErrorContext(ctx, "dropping malformed task", "task_name", name, "message_id", msg.UUID, "error", err)
		msg.Ack()

		return
	}

	err = handler(ctx, task)
	if err != nil {
		b.logger.ErrorContext(ctx, "task handler failed", "task_name", name, "job_id", task.GetJobID(), "error", err)
		msg.Nack()

		return
	}

	msg.Ack()
}

func (b *WatermillBus) Close() error {
	err := b.publisher.Close()
	if err != nil {
		return err
	}

	return b.subscriber.Close()
}
