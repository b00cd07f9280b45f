package wait_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/dukex/scenarios/pkg/models"
	"github.com/dukex/scenarios/pkg/persistence"
	"github.com/dukex/scenarios/pkg/persistence/file"
	"github.com/dukex/scenarios/pkg/services"
	"github.com/dukex/scenarios/pkg/tasks"
	"github.com/dukex/scenarios/pkg/testutil"
	"github.com/dukex/scenarios/pkg/workers/wait"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memoryQueue struct {
	mu      sync.Mutex
	due     map[string]time.Time
	pushErr error
}

func newMemoryQueue() *memoryQueue {
	return &memoryQueue{due: map[string]time.Time{}}
}

func (q *memoryQueue) Push(_ context.Context, jobID string, dueAt time.Time) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.pushErr != nil {
		return q.pushErr
	}

	if _, ok := q.due[jobID]; !ok {
		q.due[jobID] = dueAt
	}

	return nil
}

func (q *memoryQueue) PopDue(_ context.Context, now time.Time) ([]string, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	popped := make([]string, 0)

	for id, dueAt := range q.due {
		if !dueAt.After(now) {
			popped = append(popped, id)
			delete(q.due, id)
		}
	}

	return popped, nil
}

func (q *memoryQueue) dueAt(jobID string) (time.Time, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	dueAt, ok := q.due[jobID]

	return dueAt, ok
}

type fixture struct {
	store  persistence.Persistence
	queue  *memoryQueue
	clock  *clockwork.FakeClock
	worker *wait.Worker
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	store := file.NewPersistence(t.TempDir())
	clock := clockwork.NewFakeClockAt(time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC))
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	queue := newMemoryQueue()

	testutil.SeedWelcome(t, store)
	require.NoError(t, store.ElementRepository().SaveElement(t.Context(),
		testutil.CreateTestElement(testutil.WelcomeScenarioID, "pause", models.ElementTypeWait, testutil.WithOptions(`{"minutes": 10}`))))

	return &fixture{
		store:  store,
		queue:  queue,
		clock:  clock,
		worker: wait.NewWorker(queue, services.NewJobs(store, clock, logger), clock, time.Minute, logger),
	}
}

func (f *fixture) startedJob(t *testing.T) *models.Job {
	t.Helper()

	job, err := f.store.JobRepository().AddElement(t.Context(), "pause", models.NewParameters("u-1", nil))
	require.NoError(t, err)

	started := models.JobStateStarted
	now := f.clock.Now()
	require.NoError(t, f.store.JobRepository().Update(t.Context(), job, persistence.JobUpdate{
		State: &started, StartedAt: &now,
	}))

	return job
}

func (f *fixture) state(t *testing.T, id string) models.JobState {
	t.Helper()

	job, err := f.store.JobRepository().JobByID(t.Context(), id)
	require.NoError(t, err)

	return job.State
}

func TestWorker_FinishesJobAfterDelay(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	job := f.startedJob(t)

	require.NoError(t, f.worker.HandleFinishWait(t.Context(), tasks.FinishWait{JobID: job.ID, DelayMinutes: 10}))

	dueAt, ok := f.queue.dueAt(job.ID)
	require.True(t, ok)
	assert.True(t, f.clock.Now().Add(10*time.Minute).Equal(dueAt))

	f.clock.Advance(9 * time.Minute)
	require.NoError(t, f.worker.Poll(t.Context()))
	assert.Equal(t, models.JobStateStarted, f.state(t, job.ID))

	f.clock.Advance(time.Minute)
	require.NoError(t, f.worker.Poll(t.Context()))
	assert.Equal(t, models.JobStateFinished, f.state(t, job.ID))

	finished, err := f.store.JobRepository().FinishedJobs(t.Context(), 10)
	require.NoError(t, err)
	require.Len(t, finished, 1)
	assert.True(t, f.clock.Now().Equal(*finished[0].FinishedAt))
}

func TestWorker_RedeliveryKeepsFirstDueTime(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	job := f.startedJob(t)

	require.NoError(t, f.worker.HandleFinishWait(t.Context(), tasks.FinishWait{JobID: job.ID, DelayMinutes: 5}))

	f.clock.Advance(3 * time.Minute)
	require.NoError(t, f.worker.HandleFinishWait(t.Context(), tasks.FinishWait{JobID: job.ID, DelayMinutes: 5}))

	f.clock.Advance(2 * time.Minute)
	require.NoError(t, f.worker.Poll(t.Context()))
	assert.Equal(t, models.JobStateFinished, f.state(t, job.ID))
}

func TestWorker_DropsTasksForJobsNotWaiting(t *testing.T) {
	t.Parallel()

	f := newFixture(t)

	require.NoError(t, f.worker.HandleFinishWait(t.Context(), tasks.FinishWait{JobID: "missing", DelayMinutes: 1}))

	created, err := f.store.JobRepository().AddElement(t.Context(), "pause", models.NewParameters("u-1", nil))
	require.NoError(t, err)
	require.NoError(t, f.worker.HandleFinishWait(t.Context(), tasks.FinishWait{JobID: created.ID, DelayMinutes: 1}))

	_, ok := f.queue.dueAt("missing")
	assert.False(t, ok)

	_, ok = f.queue.dueAt(created.ID)
	assert.False(t, ok)
}

func TestWorker_DueJobFailedMeanwhileIsDropped(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	job := f.startedJob(t)

	require.NoError(t, f.worker.HandleFinishWait(t.Context(), tasks.FinishWait{JobID: job.ID, DelayMinutes: 1}))

	failed := models.JobStateFailed
	require.NoError(t, f.store.JobRepository().Update(t.Context(), job, persistence.JobUpdate{State: &failed}))

	f.clock.Advance(time.Minute)
	require.NoError(t, f.worker.Poll(t.Context()))
	assert.Equal(t, models.JobStateFailed, f.state(t, job.ID))

	_, ok := f.queue.dueAt(job.ID)
	assert.False(t, ok)
}

func TestWorker_QueueFailureIsRedelivered(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	job := f.startedJob(t)
	f.queue.pushErr = errors.New("redis down")

	err := f.worker.HandleFinishWait(t.Context(), tasks.FinishWait{JobID: job.ID, DelayMinutes: 1})
	require.Error(t, err)
}

func TestWorker_RunStopsOnCancel(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	job := f.startedJob(t)

	require.NoError(t, f.worker.HandleFinishWait(t.Context(), tasks.FinishWait{JobID: job.ID, DelayMinutes: 1}))

	ctx, cancel := context.WithCancel(t.Context())
	done := make(chan error, 1)

	go func() { done <- f.worker.Run(ctx) }()

	require.NoError(t, f.clock.BlockUntilContext(t.Context(), 1))
	f.clock.Advance(time.Minute)

	assert.Eventually(t, func() bool {
		return f.state(t, job.ID) == models.JobStateFinished
	}, 5*time.Second, 10*time.Millisecond)

	cancel()
	require.NoError(t, <-done)
}
