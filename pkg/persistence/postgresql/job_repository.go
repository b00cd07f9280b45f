package postgresql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/dukex/scenarios/pkg/models"
	"github.com/dukex/scenarios/pkg/persistence"
	"github.com/google/uuid"
)

const jobColumns = `id, scenario_id, trigger_id, element_id, parameters, result, state,
	started_at, finished_at, continued_at, created_at, updated_at`

// JobRepository handles job-related database operations.
type JobRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewJobRepository creates a new job repository.
func NewJobRepository(db *sql.DB, logger *slog.Logger) *JobRepository {
	return &JobRepository{db: db, logger: logger}
}

// UnprocessedJobs returns the oldest jobs in the created state.
func (jr *JobRepository) UnprocessedJobs(ctx context.Context, limit int) ([]*models.Job, error) {
	return jr.queryJobs(ctx, `SELECT `+jobColumns+` FROM scenario_jobs
		WHERE state = $1 ORDER BY created_at, id LIMIT $2`, models.JobStateCreated, limit)
}

// FinishedJobs returns the oldest finished jobs that were not continued yet.
func (jr *JobRepository) FinishedJobs(ctx context.Context, limit int) ([]*models.Job, error) {
	return jr.queryJobs(ctx, `SELECT `+jobColumns+` FROM scenario_jobs
		WHERE state = $1 AND continued_at IS NULL ORDER BY created_at, id LIMIT $2`, models.JobStateFinished, limit)
}

// FailedJobs returns the oldest jobs in the failed state.
func (jr *JobRepository) FailedJobs(ctx context.Context, limit int) ([]*models.Job, error) {
	return jr.queryJobs(ctx, `SELECT `+jobColumns+` FROM scenario_jobs
		WHERE state = $1 ORDER BY created_at, id LIMIT $2`, models.JobStateFailed, limit)
}

// JobByID retrieves a job by its ID.
func (jr *JobRepository) JobByID(ctx context.Context, id string) (*models.Job, error) {
	row := jr.db.QueryRowContext(ctx, `SELECT `+jobColumns+` FROM scenario_jobs WHERE id = $1`, id)

	job, err := jr.scanJob(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.NewJobError("JobByID", id, persistence.ErrJobNotFound)
		}

		return nil, fmt.Errorf("failed to scan job: %w", err)
	}

	return job, nil
}

// AddTrigger creates a job for a trigger, inheriting the trigger's scenario.
func (jr *JobRepository) AddTrigger(ctx context.Context, triggerID string, params models.Parameters) (*models.Job, error) {
	query := `
		INSERT INTO scenario_jobs (id, scenario_id, trigger_id, parameters, state, created_at, updated_at)
		SELECT $1, t.scenario_id, t.id, $3, $4, $5, $5
		FROM scenario_triggers t
		WHERE t.id = $2
		RETURNING scenario_id
	`

	job := jr.newJob(models.TriggerOrigin(triggerID), params)

	err := jr.insert(ctx, query, job, triggerID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", persistence.ErrTriggerNotFound, triggerID)
	}

	if err != nil {
		return nil, err
	}

	return job, nil
}

// AddElement creates a job for a live element, inheriting the element's scenario.
func (jr *JobRepository) AddElement(ctx context.Context, elementID string, params models.Parameters) (*models.Job, error) {
	query := `
		INSERT INTO scenario_jobs (id, scenario_id, element_id, parameters, state, created_at, updated_at)
		SELECT $1, e.scenario_id, e.id, $3, $4, $5, $5
		FROM scenario_elements e
		WHERE e.id = $2 AND e.deleted_at IS NULL
		RETURNING scenario_id
	`

	job := jr.newJob(models.ElementOrigin(elementID), params)

	err := jr.insert(ctx, query, job, elementID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", persistence.ErrElementNotFound, elementID)
	}

	if err != nil {
		return nil, err
	}

	return job, nil
}

func (jr *JobRepository) newJob(origin models.Origin, params models.Parameters) *models.Job {
	now := time.Now().UTC()

	return &models.Job{
		ID:         uuid.New().String(),
		Origin:     origin,
		Parameters: params.Clone(),
		State:      models.JobStateCreated,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

func (jr *JobRepository) insert(ctx context.Context, query string, job *models.Job, originID string) error {
	parametersJSON, err := json.Marshal(job.Parameters)
	if err != nil {
		return fmt.Errorf("failed to marshal parameters: %w", err)
	}

	err = jr.db.QueryRowContext(ctx, query,
		job.ID,
		originID,
		parametersJSON,
		job.State,
		job.CreatedAt,
	).Scan(&job.ScenarioID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return err
		}

		return fmt.Errorf("failed to insert job: %w", err)
	}

	return nil
}

// ScheduleJob moves the job to the scheduled state.
func (jr *JobRepository) ScheduleJob(ctx context.Context, job *models.Job) error {
	state := models.JobStateScheduled

	return jr.update(ctx, "ScheduleJob", job, persistence.JobUpdate{State: &state})
}

// StartJob moves the job to the started state.
func (jr *JobRepository) StartJob(ctx context.Context, job *models.Job) error {
	state := models.JobStateStarted
	now := time.Now().UTC()

	return jr.update(ctx, "StartJob", job, persistence.JobUpdate{State: &state, StartedAt: &now})
}

// Update applies a partial update to the job.
func (jr *JobRepository) Update(ctx context.Context, job *models.Job, update persistence.JobUpdate) error {
	return jr.update(ctx, "Update", job, update)
}

func (jr *JobRepository) update(ctx context.Context, op string, job *models.Job, update persistence.JobUpdate) error {
	now := time.Now().UTC()
	assignments := []string{"updated_at = $1"}
	args := []any{now}

	set := func(column string, value any) {
		args = append(args, value)
		assignments = append(assignments, column+" = $"+strconv.Itoa(len(args)))
	}

	if update.State != nil {
		set("state", *update.State)
	}

	if update.Result != nil {
		resultJSON, err := json.Marshal(update.Result)
		if err != nil {
			return fmt.Errorf("failed to marshal result: %w", err)
		}

		set("result", resultJSON)
	}

	if update.StartedAt != nil {
		set("started_at", *update.StartedAt)
	}

	if update.FinishedAt != nil {
		set("finished_at", *update.FinishedAt)
	}

	if update.ContinuedAt != nil {
		set("continued_at", *update.ContinuedAt)
	}

	args = append(args, job.ID)
	query := "UPDATE scenario_jobs SET " + strings.Join(assignments, ", ") + " WHERE id = $" + strconv.Itoa(len(args))

	result, err := jr.db.ExecContext(ctx, query, args...)
	if err != nil {
		return persistence.NewJobError(op, job.ID, err)
	}

	if err := requireAffected(result); err != nil {
		return persistence.NewJobError(op, job.ID, err)
	}

	update.Apply(job, now)

	return nil
}

// Delete removes the job.
func (jr *JobRepository) Delete(ctx context.Context, job *models.Job) error {
	result, err := jr.db.ExecContext(ctx, "DELETE FROM scenario_jobs WHERE id = $1", job.ID)
	if err != nil {
		return persistence.NewJobError("Delete", job.ID, err)
	}

	if err := requireAffected(result); err != nil {
		return persistence.NewJobError("Delete", job.ID, err)
	}

	return nil
}

// DeleteFinishedBefore removes continued jobs finished before the given time, oldest first.
func (jr *JobRepository) DeleteFinishedBefore(ctx context.Context, before time.Time, limit int) (int64, error) {
	query := `
		DELETE FROM scenario_jobs WHERE id IN (
			SELECT id FROM scenario_jobs
			WHERE state = $1 AND continued_at IS NOT NULL AND finished_at < $2
			ORDER BY finished_at
			LIMIT $3
		)
	`

	result, err := jr.db.ExecContext(ctx, query, models.JobStateFinished, before, limit)
	if err != nil {
		return 0, fmt.Errorf("failed to delete finished jobs: %w", err)
	}

	deleted, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to count deleted jobs: %w", err)
	}

	return deleted, nil
}

func (jr *JobRepository) queryJobs(ctx context.Context, query string, args ...any) ([]*models.Job, error) {
	rows, err := jr.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query jobs: %w", err)
	}

	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			jr.logger.ErrorContext(ctx, "failed to close rows", "error", closeErr)
		}
	}()

	jobs := make([]*models.Job, 0)

	for rows.Next() {
		job, err := jr.scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan job: %w", err)
		}

		jobs = append(jobs, job)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating jobs: %w", err)
	}

	return jobs, nil
}

// scanJob scans a job from a database row.
func (jr *JobRepository) scanJob(scanner interface {
	Scan(dest ...any) error
}) (*models.Job, error) {
	var (
		job                              models.Job
		scenarioID, triggerID, elementID sql.NullString
		parametersJSON, resultJSON       []byte
		startedAt, finishedAt, continued sql.NullTime
	)

	err := scanner.Scan(
		&job.ID,
		&scenarioID,
		&triggerID,
		&elementID,
		&parametersJSON,
		&resultJSON,
		&job.State,
		&startedAt,
		&finishedAt,
		&continued,
		&job.CreatedAt,
		&job.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	job.ScenarioID = scenarioID.String
	job.Origin = models.OriginFrom(nullableString(triggerID), nullableString(elementID))
	job.StartedAt = nullableTime(startedAt)
	job.FinishedAt = nullableTime(finishedAt)
	job.ContinuedAt = nullableTime(continued)

	if len(parametersJSON) > 0 {
		if err := json.Unmarshal(parametersJSON, &job.Parameters); err != nil {
			return nil, fmt.Errorf("failed to unmarshal parameters: %w", err)
		}
	}

	if len(resultJSON) > 0 {
		if err := json.Unmarshal(resultJSON, &job.Result); err != nil {
			return nil, fmt.Errorf("failed to unmarshal result: %w", err)
		}
	}

	return &job, nil
}

func requireAffected(result sql.Result) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}

	if affected == 0 {
		return persistence.ErrJobNotFound
	}

	return nil
}

func nullableString(value sql.NullString) *string {
	if !value.Valid {
		return nil
	}

	return &value.String
}

func nullableTime(value sql.NullTime) *time.Time {
	if !value.Valid {
		return nil
	}

	t := value.Time

	return &t
}
