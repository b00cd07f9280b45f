// Package receivers turns events published on the message bus into trigger jobs.
package receivers

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/go-playground/validator/v10"
)

// Topic is where producers publish events for the dispatcher.
const Topic = "scenarios.events"

// Event is the payload of a message on Topic.
type Event struct {
	TriggerCode string         `json:"trigger_code"     validate:"required"`
	UserID      any            `json:"user_id"          validate:"required"`
	Params      map[string]any `json:"params,omitempty"`
}

// Dispatcher creates trigger jobs for an event.
type Dispatcher interface {
	Dispatch(ctx context.Context, triggerCode string, userID any, params map[string]any) error
}

// Receiver consumes Topic and dispatches every event. Dispatch failures are
// redelivered, so a store error after a partial dispatch can duplicate trigger jobs.
type Receiver struct {
	subscriber message.Subscriber
	dispatcher Dispatcher
	validate   *validator.Validate
	logger     *slog.Logger
}

func NewReceiver(subscriber message.Subscriber, dispatcher Dispatcher, logger *slog.Logger) *Receiver {
	return &Receiver{
		subscriber: subscriber,
		dispatcher: dispatcher,
		validate:   validator.New(validator.WithRequiredStructEnabled()),
		logger:     logger.With("module", "event_receiver"),
	}
}

// Run blocks until ctx is cancelled or the subscriber is closed.
func (r *Receiver) Run(ctx context.Context) error {
	messages, err := r.subscriber.Subscribe(ctx, Topic)
	if err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", Topic, err)
	}

	r.logger.InfoContext(ctx, "Receiving events", "topic", Topic)

	for msg := range messages {
		r.handle(ctx, msg)
	}

	r.logger.InfoContext(ctx, "Event receiver stopped")

	return nil
}

func (r *Receiver) handle(ctx context.Context, msg *message.Message) {
	logger := r.logger.With("message_id", msg.UUID)

	var event Event

	err := json.Unmarshal(msg.Payload, &event)
	if err == nil {
		err = r.validate.Struct(event)
	}

	if err != nil {
		logger.ErrorContext(ctx, "Dropping invalid event", "error", err)
		msg.Ack()

		return
	}

	err = r.dispatcher.Dispatch(ctx, event.TriggerCode, event.UserID, event.Params)
	if err != nil {
		logger.ErrorContext(ctx, "Failed to dispatch event", "trigger_code", event.TriggerCode, "error", err)
		msg.Nack()

		return
	}

	logger.DebugContext(ctx, "Event dispatched", "trigger_code", event.TriggerCode)
	msg.Ack()
}

// Publish sends an event to the receivers listening on Topic.
func Publish(ctx context.Context, publisher message.Publisher, event Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	msg := message.NewMessage("event-"+watermill.NewULID(), payload)
	msg.SetContext(ctx)

	return publisher.Publish(Topic, msg)
}
