// Package persistence provides the storage abstraction for scenarios, elements and jobs.
package persistence

import (
	"context"
	"time"

	"github.com/dukex/scenarios/pkg/models"
)

// Persistence groups the repositories of one storage backend.
type Persistence interface {
	JobRepository() JobRepository
	ElementRepository() ElementRepository
	ScenarioRepository() ScenarioRepository
	GraphRepository() GraphRepository

	HealthCheck(ctx context.Context) error
	Close(ctx context.Context) error
}

// JobUpdate lists the job fields to change. Nil fields are left untouched.
type JobUpdate struct {
	State       *models.JobState
	Result      map[string]any
	StartedAt   *time.Time
	FinishedAt  *time.Time
	ContinuedAt *time.Time
}

// Apply copies the set fields onto job and stamps updated_at.
func (u JobUpdate) Apply(job *models.Job, now time.Time) {
	if u.State != nil {
		job.State = *u.State
	}

	if u.Result != nil {
		job.Result = u.Result
	}

	if u.StartedAt != nil {
		job.StartedAt = u.StartedAt
	}

	if u.FinishedAt != nil {
		job.FinishedAt = u.FinishedAt
	}

	if u.ContinuedAt != nil {
		job.ContinuedAt = u.ContinuedAt
	}

	job.UpdatedAt = now
}

// JobRepository is the durable job table. Queries are partitioned by state and
// every mutation touches exactly one job.
type JobRepository interface {
	// UnprocessedJobs returns up to limit jobs in the created state, oldest first.
	UnprocessedJobs(ctx context.Context, limit int) ([]*models.Job, error)
	// FinishedJobs returns up to limit finished jobs whose successors were not spawned yet.
	FinishedJobs(ctx context.Context, limit int) ([]*models.Job, error)
	// FailedJobs returns up to limit jobs in the failed state.
	FailedJobs(ctx context.Context, limit int) ([]*models.Job, error)
	JobByID(ctx context.Context, id string) (*models.Job, error)

	// AddTrigger creates a created job for the trigger.
	AddTrigger(ctx context.Context, triggerID string, params models.Parameters) (*models.Job, error)
	// AddElement creates a created job for the element.
	AddElement(ctx context.Context, elementID string, params models.Parameters) (*models.Job, error)
	// ScheduleJob moves the job to the scheduled state.
	ScheduleJob(ctx context.Context, job *models.Job) error
	// StartJob moves the job to the started state and sets started_at.
	StartJob(ctx context.Context, job *models.Job) error
	Update(ctx context.Context, job *models.Job, update JobUpdate) error
	Delete(ctx context.Context, job *models.Job) error

	// DeleteFinishedBefore removes up to limit continued jobs finished before the given time.
	DeleteFinishedBefore(ctx context.Context, before time.Time, limit int) (int64, error)
}

// ElementRepository is the catalogue of graph nodes. Soft-deleted elements are
// invisible to every read.
type ElementRepository interface {
	ElementByID(ctx context.Context, id string) (*models.Element, error)
	ElementsByScenario(ctx context.Context, scenarioID string) ([]*models.Element, error)
	SaveElement(ctx context.Context, element *models.Element) error
	SoftDelete(ctx context.Context, id string) error
}

// ScenarioRepository reads scenarios with their triggers.
type ScenarioRepository interface {
	EnabledScenarios(ctx context.Context) ([]*models.Scenario, error)
	ScenarioByID(ctx context.Context, id string) (*models.Scenario, error)
	SaveScenario(ctx context.Context, scenario *models.Scenario) error
	// SaveEdge adds the edge unless an identical one exists.
	SaveEdge(ctx context.Context, edge *models.Edge) error
}

// GraphRepository exposes the scenario graph for caching.
type GraphRepository interface {
	// GraphVersion changes whenever any scenario, element or edge changes.
	GraphVersion(ctx context.Context) (string, error)
	Graph(ctx context.Context) (*models.Graph, error)
}
