package mocks

import (
	"context"
	"time"

	"github.com/dukex/scenarios/pkg/models"
	"github.com/dukex/scenarios/pkg/persistence"
	"github.com/stretchr/testify/mock"
)

// MockPersistence is a mock implementation of persistence.Persistence interface.
type MockPersistence struct {
	mock.Mock
}

func (m *MockPersistence) JobRepository() persistence.JobRepository {
	args := m.Called()

	return args.Get(0).(persistence.JobRepository)
}

func (m *MockPersistence) ElementRepository() persistence.ElementRepository {
	args := m.Called()

	return args.Get(0).(persistence.ElementRepository)
}

func (m *MockPersistence) ScenarioRepository() persistence.ScenarioRepository {
	args := m.Called()

	return args.Get(0).(persistence.ScenarioRepository)
}

func (m *MockPersistence) GraphRepository() persistence.GraphRepository {
	args := m.Called()

	return args.Get(0).(persistence.GraphRepository)
}

func (m *MockPersistence) HealthCheck(ctx context.Context) error {
	args := m.Called(ctx)

	return args.Error(0)
}

func (m *MockPersistence) Close(ctx context.Context) error {
	args := m.Called(ctx)

	return args.Error(0)
}

// MockJobRepository is a mock implementation of persistence.JobRepository interface.
type MockJobRepository struct {
	mock.Mock
}

func (m *MockJobRepository) jobs(args mock.Arguments) ([]*models.Job, error) {
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).([]*models.Job), args.Error(1)
}

func (m *MockJobRepository) job(args mock.Arguments) (*models.Job, error) {
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*models.Job), args.Error(1)
}

func (m *MockJobRepository) UnprocessedJobs(ctx context.Context, limit int) ([]*models.Job, error) {
	return m.jobs(m.Called(ctx, limit))
}

func (m *MockJobRepository) FinishedJobs(ctx context.Context, limit int) ([]*models.Job, error) {
	return m.jobs(m.Called(ctx, limit))
}

func (m *MockJobRepository) FailedJobs(ctx context.Context, limit int) ([]*models.Job, error) {
	return m.jobs(m.Called(ctx, limit))
}

func (m *MockJobRepository) JobByID(ctx context.Context, id string) (*models.Job, error) {
	return m.job(m.Called(ctx, id))
}

func (m *MockJobRepository) AddTrigger(ctx context.Context, triggerID string, params models.Parameters) (*models.Job, error) {
	return m.job(m.Called(ctx, triggerID, params))
}

func (m *MockJobRepository) AddElement(ctx context.Context, elementID string, params models.Parameters) (*models.Job, error) {
	return m.job(m.Called(ctx, elementID, params))
}

func (m *MockJobRepository) ScheduleJob(ctx context.Context, job *models.Job) error {
	args := m.Called(ctx, job)

	return args.Error(0)
}

func (m *MockJobRepository) StartJob(ctx context.Context, job *models.Job) error {
	args := m.Called(ctx, job)

	return args.Error(0)
}

func (m *MockJobRepository) Update(ctx context.Context, job *models.Job, update persistence.JobUpdate) error {
	args := m.Called(ctx, job, update)

	return args.Error(0)
}

func (m *MockJobRepository) Delete(ctx context.Context, job *models.Job) error {
	args := m.Called(ctx, job)

	return args.Error(0)
}

func (m *MockJobRepository) DeleteFinishedBefore(ctx context.Context, before time.Time, limit int) (int64, error) {
	args := m.Called(ctx, before, limit)

	return args.Get(0).(int64), args.Error(1)
}

// MockElementRepository is a mock implementation of persistence.ElementRepository interface.
type MockElementRepository struct {
	mock.Mock
}

func (m *MockElementRepository) ElementByID(ctx context.Context, id string) (*models.Element, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*models.Element), args.Error(1)
}

func (m *MockElementRepository) ElementsByScenario(ctx context.Context, scenarioID string) ([]*models.Element, error) {
	args := m.Called(ctx, scenarioID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).([]*models.Element), args.Error(1)
}

func (m *MockElementRepository) SaveElement(ctx context.Context, element *models.Element) error {
	args := m.Called(ctx, element)

	return args.Error(0)
}

func (m *MockElementRepository) SoftDelete(ctx context.Context, id string) error {
	args := m.Called(ctx, id)

	return args.Error(0)
}

// MockScenarioRepository is a mock implementation of persistence.ScenarioRepository interface.
type MockScenarioRepository struct {
	mock.Mock
}

func (m *MockScenarioRepository) EnabledScenarios(ctx context.Context) ([]*models.Scenario, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).([]*models.Scenario), args.Error(1)
}

func (m *MockScenarioRepository) ScenarioByID(ctx context.Context, id string) (*models.Scenario, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*models.Scenario), args.Error(1)
}

func (m *MockScenarioRepository) SaveScenario(ctx context.Context, scenario *models.Scenario) error {
	args := m.Called(ctx, scenario)

	return args.Error(0)
}

func (m *MockScenarioRepository) SaveEdge(ctx context.Context, edge *models.Edge) error {
	args := m.Called(ctx, edge)

	return args.Error(0)
}

// MockGraphRepository is a mock implementation of persistence.GraphRepository interface.
type MockGraphRepository struct {
	mock.Mock
}

func (m *MockGraphRepository) GraphVersion(ctx context.Context) (string, error) {
	args := m.Called(ctx)

	return args.String(0), args.Error(1)
}

func (m *MockGraphRepository) Graph(ctx context.Context) (*models.Graph, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*models.Graph), args.Error(1)
}
