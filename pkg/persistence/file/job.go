package file

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"math"
	"sort"
	"time"

	"github.com/dukex/scenarios/pkg/models"
	"github.com/dukex/scenarios/pkg/persistence"
	"github.com/google/uuid"
)

// JobRepository stores one JSON file per job.
type JobRepository struct {
	store *store
}

func (jr *JobRepository) UnprocessedJobs(_ context.Context, limit int) ([]*models.Job, error) {
	return jr.filter(limit, func(job *models.Job) bool {
		return job.State == models.JobStateCreated
	})
}

func (jr *JobRepository) FinishedJobs(_ context.Context, limit int) ([]*models.Job, error) {
	return jr.filter(limit, func(job *models.Job) bool {
		return job.State == models.JobStateFinished && job.ContinuedAt == nil
	})
}

func (jr *JobRepository) FailedJobs(_ context.Context, limit int) ([]*models.Job, error) {
	return jr.filter(limit, func(job *models.Job) bool {
		return job.State == models.JobStateFailed
	})
}

func (jr *JobRepository) JobByID(_ context.Context, id string) (*models.Job, error) {
	jr.store.mu.Lock()
	defer jr.store.mu.Unlock()

	return jr.load("JobByID", id)
}

func (jr *JobRepository) load(op, id string) (*models.Job, error) {
	var job models.Job

	err := jr.store.read(jobsDir, id, &job)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, persistence.NewJobError(op, id, persistence.ErrJobNotFound)
		}

		return nil, persistence.NewJobError(op, id, err)
	}

	return &job, nil
}

func (jr *JobRepository) filter(limit int, keep func(*models.Job) bool) ([]*models.Job, error) {
	jr.store.mu.Lock()
	defer jr.store.mu.Unlock()

	return jr.filterLocked(limit, keep)
}

// filterLocked expects store.mu to be held.
func (jr *JobRepository) filterLocked(limit int, keep func(*models.Job) bool) ([]*models.Job, error) {
	ids, err := jr.store.ids(jobsDir)
	if err != nil {
		return nil, err
	}

	jobs := make([]*models.Job, 0)

	for _, id := range ids {
		job, err := jr.load("filter", id)
		if err != nil {
			return nil, err
		}

		if keep(job) {
			jobs = append(jobs, job)
		}
	}

	sort.Slice(jobs, func(i, j int) bool {
		if jobs[i].CreatedAt.Equal(jobs[j].CreatedAt) {
			return jobs[i].ID < jobs[j].ID
		}

		return jobs[i].CreatedAt.Before(jobs[j].CreatedAt)
	})

	if len(jobs) > limit {
		jobs = jobs[:limit]
	}

	return jobs, nil
}

// AddTrigger creates a job for a trigger of any stored scenario.
func (jr *JobRepository) AddTrigger(_ context.Context, triggerID string, params models.Parameters) (*models.Job, error) {
	jr.store.mu.Lock()
	defer jr.store.mu.Unlock()

	documents, err := jr.store.documents()
	if err != nil {
		return nil, err
	}

	for _, document := range documents {
		for _, trigger := range document.Scenario.Triggers {
			if trigger.ID == triggerID {
				return jr.insert(document.Scenario.ID, models.TriggerOrigin(triggerID), params)
			}
		}
	}

	return nil, fmt.Errorf("%w: %s", persistence.ErrTriggerNotFound, triggerID)
}

// AddElement creates a job for a live element.
func (jr *JobRepository) AddElement(_ context.Context, elementID string, params models.Parameters) (*models.Job, error) {
	jr.store.mu.Lock()
	defer jr.store.mu.Unlock()

	document, _, err := jr.store.findElement(elementID)
	if err != nil {
		return nil, err
	}

	return jr.insert(document.Scenario.ID, models.ElementOrigin(elementID), params)
}

func (jr *JobRepository) insert(scenarioID string, origin models.Origin, params models.Parameters) (*models.Job, error) {
	now := time.Now().UTC()

	job := &models.Job{
		ID:         uuid.New().String(),
		ScenarioID: scenarioID,
		Origin:     origin,
		Parameters: params.Clone(),
		State:      models.JobStateCreated,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	err := jr.store.write(jobsDir, job.ID, job)
	if err != nil {
		return nil, fmt.Errorf("failed to insert job: %w", err)
	}

	return job, nil
}

func (jr *JobRepository) ScheduleJob(_ context.Context, job *models.Job) error {
	state := models.JobStateScheduled

	return jr.update("ScheduleJob", job, persistence.JobUpdate{State: &state})
}

func (jr *JobRepository) StartJob(_ context.Context, job *models.Job) error {
	state := models.JobStateStarted
	now := time.Now().UTC()

	return jr.update("StartJob", job, persistence.JobUpdate{State: &state, StartedAt: &now})
}

func (jr *JobRepository) Update(_ context.Context, job *models.Job, update persistence.JobUpdate) error {
	return jr.update("Update", job, update)
}

func (jr *JobRepository) update(op string, job *models.Job, update persistence.JobUpdate) error {
	jr.store.mu.Lock()
	defer jr.store.mu.Unlock()

	stored, err := jr.load(op, job.ID)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	update.Apply(stored, now)

	err = jr.store.write(jobsDir, stored.ID, stored)
	if err != nil {
		return persistence.NewJobError(op, job.ID, err)
	}

	update.Apply(job, now)

	return nil
}

func (jr *JobRepository) Delete(_ context.Context, job *models.Job) error {
	jr.store.mu.Lock()
	defer jr.store.mu.Unlock()

	err := jr.store.remove(jobsDir, job.ID)
	if errors.Is(err, fs.ErrNotExist) {
		return persistence.NewJobError("Delete", job.ID, persistence.ErrJobNotFound)
	}

	if err != nil {
		return persistence.NewJobError("Delete", job.ID, err)
	}

	return nil
}

// DeleteFinishedBefore removes continued jobs finished before the given time, oldest first.
func (jr *JobRepository) DeleteFinishedBefore(_ context.Context, before time.Time, limit int) (int64, error) {
	jr.store.mu.Lock()
	defer jr.store.mu.Unlock()

	expired, err := jr.filterLocked(math.MaxInt, func(job *models.Job) bool {
		return job.State == models.JobStateFinished &&
			job.ContinuedAt != nil &&
			job.FinishedAt != nil &&
			job.FinishedAt.Before(before)
	})
	if err != nil {
		return 0, err
	}

	sort.SliceStable(expired, func(i, j int) bool {
		return expired[i].FinishedAt.Before(*expired[j].FinishedAt)
	})

	if len(expired) > limit {
		expired = expired[:limit]
	}

	var deleted int64

	for _, job := range expired {
		err := jr.store.remove(jobsDir, job.ID)
		if err != nil {
			return deleted, fmt.Errorf("failed to delete job %s: %w", job.ID, err)
		}

		deleted++
	}

	return deleted, nil
}
