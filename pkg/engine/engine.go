// Package engine advances scenario jobs through their state machine and walks the scenario graph.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/dukex/scenarios/pkg/models"
	"github.com/dukex/scenarios/pkg/otelhelper"
	"github.com/dukex/scenarios/pkg/persistence"
	"github.com/dukex/scenarios/pkg/tasks"
	"github.com/jonboulle/clockwork"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

var (
	// ErrInvalidJob marks jobs that can never be processed. They are logged and deleted.
	ErrInvalidJob = errors.New("invalid job")
	// ErrPollPanicked wraps a panic recovered from a poll.
	ErrPollPanicked = errors.New("poll panicked")
	// ErrStuckJob indicates a job was read twice from the same queue within one drain.
	ErrStuckJob = errors.New("job did not leave its queue")
)

// Graph resolves the successors of triggers and elements.
type Graph interface {
	ReloadIfOutdated(ctx context.Context) error
	ElementsFollowingTrigger(triggerID string) []string
	ElementsFollowingElement(elementID string, outcome *bool) []string
}

// Engine is the polling scheduler. It is not safe for concurrent use: one engine
// drains the queues of one store.
type Engine struct {
	jobs     persistence.JobRepository
	elements persistence.ElementRepository
	graph    Graph
	emitter  tasks.Emitter
	config   Config
	clock    clockwork.Clock
	tracer   trace.Tracer
	logger   *slog.Logger
	handlers map[models.ElementType]elementHandler
}

// Option customizes an Engine.
type Option func(*Engine)

// WithClock replaces the real clock, mostly for tests.
func WithClock(clock clockwork.Clock) Option {
	return func(e *Engine) { e.clock = clock }
}

// WithTracer sets the tracer for poll and job spans. The default is a noop tracer.
func WithTracer(tracer trace.Tracer) Option {
	return func(e *Engine) { e.tracer = tracer }
}

// New validates config and builds an Engine over the job and element stores of p.
func New(
	p persistence.Persistence,
	graph Graph,
	emitter tasks.Emitter,
	config Config,
	logger *slog.Logger,
	options ...Option,
) (*Engine, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	e := &Engine{
		jobs:     p.JobRepository(),
		elements: p.ElementRepository(),
		graph:    graph,
		emitter:  emitter,
		config:   config,
		clock:    clockwork.NewRealClock(),
		tracer:   noop.NewTracerProvider().Tracer("engine"),
		logger:   logger.With("module", "engine"),
	}

	for _, option := range options {
		option(e)
	}

	e.handlers = e.elementHandlers()

	return e, nil
}

// Run polls until ctx is cancelled. With once it returns after a single poll.
// A failed poll stops Run under ErrorPolicyHalt and is retried after the sleep under
// ErrorPolicyRetry. Cancellation is not an error.
func (e *Engine) Run(ctx context.Context, once bool) error {
	e.logger.InfoContext(ctx, "engine started",
		"once", once, "sleep_time", e.config.SleepTime, "batch_size", e.config.BatchSize,
		"error_policy", e.config.ErrorPolicy)

	for {
		err := e.guardedPoll(ctx)
		if ctx.Err() != nil {
			e.logger.InfoContext(ctx, "engine stopped")

			return nil
		}

		if err != nil {
			e.logger.ErrorContext(ctx, "poll failed", "error", err)

			if once || e.config.ErrorPolicy == ErrorPolicyHalt {
				return err
			}
		}

		if once {
			return nil
		}

		select {
		case <-ctx.Done():
			e.logger.InfoContext(ctx, "engine stopped")

			return nil
		case <-e.clock.After(e.config.SleepTime):
		}
	}
}

func (e *Engine) guardedPoll(ctx context.Context) (err error) {
	defer func() {
		if recovered := recover(); recovered != nil {
			err = fmt.Errorf("%w: %v", ErrPollPanicked, recovered)
		}
	}()

	return e.Poll(ctx)
}

// Poll refreshes the graph and drains the created, finished and failed queues, in that order.
// Element jobs spawned by trigger jobs are processed in the same poll. Jobs spawned
// by the finished queue wait for the next poll.
func (e *Engine) Poll(ctx context.Context) error {
	ctx, span := otelhelper.StartSpan(ctx, e.tracer, "engine.poll")
	defer span.End()

	err := e.graph.ReloadIfOutdated(ctx)
	if err != nil {
		otelhelper.SetError(span, err)

		return fmt.Errorf("failed to reload graph: %w", err)
	}

	queues := []struct {
		state   models.JobState
		fetch   func(context.Context, int) ([]*models.Job, error)
		process func(context.Context, *models.Job) error
	}{
		{models.JobStateCreated, e.jobs.UnprocessedJobs, e.processCreated},
		{models.JobStateFinished, e.jobs.FinishedJobs, e.processFinished},
		{models.JobStateFailed, e.jobs.FailedJobs, e.processFailed},
	}

	for _, queue := range queues {
		err := e.drain(ctx, queue.state, queue.fetch, queue.process)
		if err != nil {
			otelhelper.SetError(span, err)

			return err
		}
	}

	return nil
}

func (e *Engine) drain(
	ctx context.Context,
	state models.JobState,
	fetch func(context.Context, int) ([]*models.Job, error),
	process func(context.Context, *models.Job) error,
) error {
	seen := make(map[string]bool)

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		batch, err := fetch(ctx, e.config.BatchSize)
		if err != nil {
			return fmt.Errorf("failed to fetch %s jobs: %w", state, err)
		}

		if len(batch) == 0 {
			return nil
		}

		for _, job := range batch {
			if seen[job.ID] {
				return fmt.Errorf("%w: %s job %s", ErrStuckJob, state, job.ID)
			}

			seen[job.ID] = true

			err := e.processJob(ctx, job, process)
			if err != nil {
				return err
			}
		}
	}
}

func (e *Engine) processJob(ctx context.Context, job *models.Job, process func(context.Context, *models.Job) error) error {
	ctx, span := otelhelper.StartSpan(ctx, e.tracer, "engine.process_job",
		attribute.String(otelhelper.JobIDKey, job.ID),
		attribute.String(otelhelper.JobStateKey, string(job.State)),
		attribute.String(otelhelper.JobOriginKey, job.Origin.String()),
		attribute.String(otelhelper.ScenarioIDKey, job.ScenarioID),
	)
	defer span.End()

	err := process(ctx, job)
	if err != nil {
		otelhelper.SetError(span, err)

		return fmt.Errorf("failed to process job %s: %w", job.ID, err)
	}

	return nil
}

func (e *Engine) processCreated(ctx context.Context, job *models.Job) error {
	switch job.Origin.Kind() {
	case models.OriginTrigger:
		now := e.clock.Now().UTC()
		finished := models.JobStateFinished

		err := e.jobs.Update(ctx, job, persistence.JobUpdate{State: &finished, StartedAt: &now, FinishedAt: &now})
		if err != nil {
			return err
		}

		return e.continueGraph(ctx, job)
	case models.OriginElement:
		err := e.processElement(ctx, job)
		if errors.Is(err, ErrInvalidJob) {
			return e.discard(ctx, job, err)
		}

		return err
	case models.OriginNone:
	}

	return e.discard(ctx, job, fmt.Errorf("%w: neither trigger nor element set", ErrInvalidJob))
}

func (e *Engine) processFinished(ctx context.Context, job *models.Job) error {
	return e.continueGraph(ctx, job)
}

// processFailed drops jobs a worker reported as failed. They are not retried.
func (e *Engine) processFailed(ctx context.Context, job *models.Job) error {
	e.logger.WarnContext(ctx, "deleting failed job", job.LogAttrs()...)

	return e.jobs.Delete(ctx, job)
}

// continueGraph spawns one created job per successor with the same parameters, then marks
// the job continued so it leaves the finished queue.
func (e *Engine) continueGraph(ctx context.Context, job *models.Job) error {
	var successors []string

	switch job.Origin.Kind() {
	case models.OriginTrigger:
		triggerID, _ := job.Origin.TriggerID()
		successors = e.graph.ElementsFollowingTrigger(triggerID)
	case models.OriginElement:
		elementID, _ := job.Origin.ElementID()
		successors = e.graph.ElementsFollowingElement(elementID, job.Outcome())
	case models.OriginNone:
		return e.discard(ctx, job, fmt.Errorf("%w: neither trigger nor element set", ErrInvalidJob))
	}

	for _, elementID := range successors {
		spawned, err := e.jobs.AddElement(ctx, elementID, job.Parameters)
		if persistence.IsElementNotFound(err) {
			// The cached graph may still list an element deleted since the last reload.
			e.logger.WarnContext(ctx, "skipping deleted successor", append(job.LogAttrs(), "element_id", elementID)...)

			continue
		}

		if err != nil {
			return fmt.Errorf("failed to spawn job for element %s: %w", elementID, err)
		}

		e.logger.DebugContext(ctx, "element job created", "job_id", spawned.ID, "element_id", elementID, "parent_job_id", job.ID)
	}

	now := e.clock.Now().UTC()

	return e.jobs.Update(ctx, job, persistence.JobUpdate{ContinuedAt: &now})
}

// discard logs an unprocessable job with its full context and deletes it.
func (e *Engine) discard(ctx context.Context, job *models.Job, reason error) error {
	e.logger.ErrorContext(ctx, "deleting invalid job", append(job.LogAttrs(), "error", reason)...)

	return e.jobs.Delete(ctx, job)
}

// Housekeep deletes continued finished jobs older than the retention, batch by batch.
func (e *Engine) Housekeep(ctx context.Context) (int64, error) {
	before := e.clock.Now().UTC().Add(-e.config.Retention)

	var total int64

	for {
		deleted, err := e.jobs.DeleteFinishedBefore(ctx, before, e.config.HousekeepingBatchSize)
		if err != nil {
			return total, fmt.Errorf("failed to delete finished jobs: %w", err)
		}

		total += deleted

		if deleted < int64(e.config.HousekeepingBatchSize) {
			break
		}
	}

	e.logger.InfoContext(ctx, "housekeeping done", "deleted", total, "finished_before", before)

	return total, nil
}
