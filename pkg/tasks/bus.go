package tasks

import "context"

// Emitter publishes tasks. Delivery is at-least-once and the caller does not wait for workers.
type Emitter interface {
	Emit(ctx context.Context, task Task) error
}

// Handler processes one decoded task. Returning an error redelivers it.
type Handler func(ctx context.Context, task Task) error

// Subscriber routes tasks to handlers registered by name.
type Subscriber interface {
	Handle(name Name, handler Handler) error
	Subscribe(ctx context.Context) error
}

// Bus is both ends of the task channel.
type Bus interface {
	Emitter
	Subscriber
	Close() error
}
