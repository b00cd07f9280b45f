package wait

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dukex/scenarios/pkg/models"
	"github.com/dukex/scenarios/pkg/persistence"
	"github.com/dukex/scenarios/pkg/services"
	"github.com/dukex/scenarios/pkg/tasks"
	"github.com/jonboulle/clockwork"
)

// DefaultInterval is how often the worker looks for due jobs.
const DefaultInterval = 15 * time.Second

// Worker receives finish_wait tasks, parks the job in a DelayQueue and finishes
// it through the jobs service once the delay has elapsed.
type Worker struct {
	queue    DelayQueue
	jobs     *services.Jobs
	clock    clockwork.Clock
	interval time.Duration
	logger   *slog.Logger
}

func NewWorker(
	queue DelayQueue,
	jobs *services.Jobs,
	clock clockwork.Clock,
	interval time.Duration,
	logger *slog.Logger,
) *Worker {
	if interval <= 0 {
		interval = DefaultInterval
	}

	return &Worker{
		queue:    queue,
		jobs:     jobs,
		clock:    clock,
		interval: interval,
		logger:   logger.With("module", "wait_worker"),
	}
}

// Register routes finish_wait tasks to the worker.
func (w *Worker) Register(subscriber tasks.Subscriber) error {
	return subscriber.Handle(tasks.FinishWaitTask, w.HandleFinishWait)
}

// HandleFinishWait queues the job for started_at + delay. Tasks for jobs that are
// gone or no longer started are acknowledged and dropped.
func (w *Worker) HandleFinishWait(ctx context.Context, task tasks.Task) error {
	finish, ok := task.(tasks.FinishWait)
	if !ok {
		return fmt.Errorf("unexpected task %s", task.GetName())
	}

	logger := w.logger.With("job_id", finish.JobID)

	job, err := w.jobs.Get(ctx, finish.JobID)
	if err != nil {
		if persistence.IsJobNotFound(err) || services.IsValidationError(err) {
			logger.WarnContext(ctx, "dropping wait for unknown job")

			return nil
		}

		return err
	}

	if job.State != models.JobStateStarted {
		logger.WarnContext(ctx, "dropping wait for job that is not started", "state", job.State)

		return nil
	}

	startedAt := w.clock.Now()
	if job.StartedAt != nil {
		startedAt = *job.StartedAt
	}

	dueAt := startedAt.Add(time.Duration(finish.DelayMinutes) * time.Minute)

	if err := w.queue.Push(ctx, job.ID, dueAt); err != nil {
		return err
	}

	logger.DebugContext(ctx, "wait queued", "due_at", dueAt)

	return nil
}

// Poll finishes every due job. Jobs that could not be finished for a transient
// reason are pushed back and retried on the next poll.
func (w *Worker) Poll(ctx context.Context) error {
	now := w.clock.Now()

	due, err := w.queue.PopDue(ctx, now)
	if err != nil {
		return err
	}

	var errs []error

	for _, jobID := range due {
		_, err := w.jobs.Finish(ctx, jobID, nil)

		switch {
		case err == nil:
			w.logger.InfoContext(ctx, "wait finished", "job_id", jobID)
		case persistence.IsJobNotFound(err), services.IsConflictError(err):
			w.logger.WarnContext(ctx, "wait job no longer waiting", "job_id", jobID, "error", err)
		default:
			errs = append(errs, err)

			if pushErr := w.queue.Push(ctx, jobID, now); pushErr != nil {
				errs = append(errs, pushErr)
			}
		}
	}

	return errors.Join(errs...)
}

// Run polls every interval until ctx is cancelled. Poll errors are logged.
func (w *Worker) Run(ctx context.Context) error {
	ticker := w.clock.NewTicker(w.interval)
	defer ticker.Stop()

	w.logger.InfoContext(ctx, "wait worker started", "interval", w.interval)

	for {
		if err := w.Poll(ctx); err != nil {
			w.logger.ErrorContext(ctx, "wait poll failed", "error", err)
		}

		select {
		case <-ctx.Done():
			w.logger.InfoContext(ctx, "wait worker stopped")

			return nil
		case <-ticker.Chan():
		}
	}
}
