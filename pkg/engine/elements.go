package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/dukex/scenarios/pkg/models"
	"github.com/dukex/scenarios/pkg/otelhelper"
	"github.com/dukex/scenarios/pkg/persistence"
	"github.com/dukex/scenarios/pkg/tasks"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// elementHandler moves a created element job to the queue its worker reports from
// and emits the task that worker expects.
type elementHandler func(ctx context.Context, job *models.Job, element *models.Element) error

// elementHandlers has one entry per element type. A nil entry marks a type the engine
// cannot run yet; its jobs are deleted as invalid.
func (e *Engine) elementHandlers() map[models.ElementType]elementHandler {
	return map[models.ElementType]elementHandler{
		models.ElementTypeEmail: e.schedule(func(job *models.Job) tasks.Task {
			return tasks.SendEmail{JobID: job.ID}
		}),
		models.ElementTypeSegment: e.schedule(func(job *models.Job) tasks.Task {
			return tasks.CheckSegment{JobID: job.ID}
		}),
		models.ElementTypeWait:      e.startWait,
		models.ElementTypeGoal:      nil,
		models.ElementTypeCondition: nil,
		models.ElementTypeBanner:    nil,
	}
}

func (e *Engine) processElement(ctx context.Context, job *models.Job) error {
	elementID, _ := job.Origin.ElementID()

	element, err := e.elements.ElementByID(ctx, elementID)
	if persistence.IsElementNotFound(err) {
		return fmt.Errorf("%w: %w", ErrInvalidJob, err)
	}

	if err != nil {
		return fmt.Errorf("failed to load element %s: %w", elementID, err)
	}

	trace.SpanFromContext(ctx).SetAttributes(attribute.String(otelhelper.ElementTypeKey, string(element.Type)))

	handler := e.handlers[element.Type]
	if handler == nil {
		return fmt.Errorf("%w: unsupported element type %q", ErrInvalidJob, element.Type)
	}

	return handler(ctx, job, element)
}

// schedule handles elements whose worker runs right away: the job waits in scheduled.
func (e *Engine) schedule(task func(*models.Job) tasks.Task) elementHandler {
	return func(ctx context.Context, job *models.Job, _ *models.Element) error {
		err := e.jobs.ScheduleJob(ctx, job)
		if err != nil {
			return err
		}

		return e.emit(ctx, job, task(job))
	}
}

// startWait handles wait elements: the job is started and the wait worker finishes it later.
func (e *Engine) startWait(ctx context.Context, job *models.Job, element *models.Element) error {
	options, err := element.WaitOptions()
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidJob, err)
	}

	err = e.jobs.StartJob(ctx, job)
	if err != nil {
		return err
	}

	return e.emit(ctx, job, tasks.FinishWait{JobID: job.ID, DelayMinutes: options.Minutes})
}

// emit publishes the task. If the bus rejects it the job goes back to created so the
// next poll tries again.
func (e *Engine) emit(ctx context.Context, job *models.Job, task tasks.Task) error {
	err := e.emitter.Emit(ctx, task)
	if err == nil {
		return nil
	}

	created := models.JobStateCreated

	revertErr := e.jobs.Update(ctx, job, persistence.JobUpdate{State: &created})
	if revertErr != nil {
		return errors.Join(
			fmt.Errorf("failed to emit %s: %w", task.GetName(), err),
			fmt.Errorf("failed to revert job to created: %w", revertErr),
		)
	}

	return fmt.Errorf("failed to emit %s: %w", task.GetName(), err)
}
