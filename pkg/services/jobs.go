package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/dukex/scenarios/pkg/models"
	"github.com/dukex/scenarios/pkg/persistence"
	"github.com/jonboulle/clockwork"
)

// Jobs lets workers report the outcome of the work they were handed.
// Only scheduled and started jobs accept a report.
type Jobs struct {
	jobs   persistence.JobRepository
	clock  clockwork.Clock
	logger *slog.Logger
}

func NewJobs(p persistence.Persistence, clock clockwork.Clock, logger *slog.Logger) *Jobs {
	return &Jobs{
		jobs:   p.JobRepository(),
		clock:  clock,
		logger: logger.With("module", "jobs_service"),
	}
}

func (s *Jobs) Get(ctx context.Context, id string) (*models.Job, error) {
	if id == "" {
		return nil, newServiceError("Get", id, ErrInvalidRequest)
	}

	return s.jobs.JobByID(ctx, id)
}

// Finish marks the job finished. result may carry "positive" to pick a branch.
func (s *Jobs) Finish(ctx context.Context, id string, result map[string]any) (*models.Job, error) {
	return s.report(ctx, "Finish", id, models.JobStateFinished, result)
}

// Fail marks the job failed; the engine deletes it on its next poll.
func (s *Jobs) Fail(ctx context.Context, id string, reason string) (*models.Job, error) {
	var result map[string]any
	if reason != "" {
		result = map[string]any{"error": reason}
	}

	return s.report(ctx, "Fail", id, models.JobStateFailed, result)
}

func (s *Jobs) report(ctx context.Context, op, id string, state models.JobState, result map[string]any) (*models.Job, error) {
	job, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if job.State != models.JobStateScheduled && job.State != models.JobStateStarted {
		return nil, newServiceError(op, id, fmt.Errorf("%w: state is %s", ErrJobNotReportable, job.State))
	}

	update := persistence.JobUpdate{State: &state, Result: result}

	if state == models.JobStateFinished {
		now := s.clock.Now().UTC()
		update.FinishedAt = &now
	}

	err = s.jobs.Update(ctx, job, update)
	if err != nil {
		return nil, fmt.Errorf("failed to update job %s: %w", id, err)
	}

	s.logger.InfoContext(ctx, "job reported", "job_id", id, "state", state, "elapsed", s.elapsed(job))

	return job, nil
}

func (s *Jobs) elapsed(job *models.Job) time.Duration {
	if job.StartedAt == nil {
		return s.clock.Since(job.UpdatedAt)
	}

	return s.clock.Since(*job.StartedAt)
}
