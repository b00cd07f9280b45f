package mocks

import (
	"context"

	"github.com/dukex/scenarios/pkg/tasks"
	"github.com/stretchr/testify/mock"
)

// MockEmitter is a mock implementation of tasks.Emitter interface.
type MockEmitter struct {
	mock.Mock
}

func (m *MockEmitter) Emit(ctx context.Context, task tasks.Task) error {
	args := m.Called(ctx, task)

	return args.Error(0)
}

// MockBus is a mock implementation of tasks.Bus interface.
type MockBus struct {
	MockEmitter
}

func (m *MockBus) Handle(name tasks.Name, handler tasks.Handler) error {
	args := m.Called(name, handler)

	return args.Error(0)
}

func (m *MockBus) Subscribe(ctx context.Context) error {
	args := m.Called(ctx)

	return args.Error(0)
}

func (m *MockBus) Close() error {
	args := m.Called()

	return args.Error(0)
}
