package file

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dukex/scenarios/pkg/models"
	"github.com/dukex/scenarios/pkg/persistence"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewPersistence(t *testing.T) {
	p := NewPersistence("/tmp/test")
	fp := p.(*Persistence)
	assert.Equal(t, "/tmp/test", fp.store.root)

	p = NewPersistence("file:///tmp/test")
	fp = p.(*Persistence)
	assert.Equal(t, "/tmp/test", fp.store.root)
}

func TestPersistence_Close(t *testing.T) {
	p := NewPersistence("./test-data")
	err := p.Close(t.Context())
	assert.NoError(t, err)
}

func TestPersistence_HealthCheck(t *testing.T) {
	p := NewPersistence(t.TempDir())
	require.NoError(t, p.HealthCheck(t.Context()))

	p = NewPersistence(filepath.Join(t.TempDir(), "missing"))
	assert.ErrorIs(t, p.HealthCheck(t.Context()), os.ErrNotExist)
}

func seed(t *testing.T, p persistence.Persistence) {
	t.Helper()

	ctx := t.Context()

	require.NoError(t, p.ScenarioRepository().SaveScenario(ctx, &models.Scenario{
		ID:       "signup-flow",
		Name:     "Signup flow",
		Enabled:  true,
		Triggers: []*models.Trigger{{ID: "on-signup", EventCode: "user_registered"}},
	}))

	require.NoError(t, p.ElementRepository().SaveElement(ctx, &models.Element{
		ID: "in-segment", ScenarioID: "signup-flow", Type: models.ElementTypeSegment,
	}))
	require.NoError(t, p.ElementRepository().SaveElement(ctx, &models.Element{
		ID: "welcome", ScenarioID: "signup-flow", Type: models.ElementTypeEmail,
	}))

	positive := true

	require.NoError(t, p.ScenarioRepository().SaveEdge(ctx, &models.Edge{
		ScenarioID: "signup-flow", SourceTriggerID: "on-signup", TargetElementID: "in-segment",
	}))
	require.NoError(t, p.ScenarioRepository().SaveEdge(ctx, &models.Edge{
		ScenarioID: "signup-flow", SourceElementID: "in-segment", TargetElementID: "welcome", Positive: &positive,
	}))
}

func TestScenarioRepository_SaveAndRead(t *testing.T) {
	testDir := t.TempDir()
	p := NewPersistence(testDir)
	seed(t, p)

	assert.FileExists(t, filepath.Join(testDir, "scenarios", "signup-flow.json"))

	scenario, err := p.ScenarioRepository().ScenarioByID(t.Context(), "signup-flow")
	require.NoError(t, err)
	require.Len(t, scenario.Triggers, 1)
	assert.Equal(t, "signup-flow", scenario.Triggers[0].ScenarioID)
	assert.Len(t, scenario.TriggersFor("user_registered"), 1)

	_, err = p.ScenarioRepository().ScenarioByID(t.Context(), "missing")
	assert.True(t, persistence.IsScenarioNotFound(err))

	_, err = p.ScenarioRepository().ScenarioByID(t.Context(), "../etc/passwd")
	assert.Error(t, err)
}

func TestScenarioRepository_SaveEdgeNeedsOneSource(t *testing.T) {
	p := NewPersistence(t.TempDir())
	seed(t, p)

	err := p.ScenarioRepository().SaveEdge(t.Context(), &models.Edge{
		ScenarioID: "signup-flow", SourceTriggerID: "on-signup", SourceElementID: "welcome", TargetElementID: "welcome",
	})
	assert.Error(t, err)
}

func TestScenarioRepository_SaveEdgeIsIdempotent(t *testing.T) {
	p := NewPersistence(t.TempDir())
	seed(t, p)
	seed(t, p)

	negative := false
	require.NoError(t, p.ScenarioRepository().SaveEdge(t.Context(), &models.Edge{
		ScenarioID: "signup-flow", SourceElementID: "in-segment", TargetElementID: "welcome", Positive: &negative,
	}))

	graph, err := p.GraphRepository().Graph(t.Context())
	require.NoError(t, err)
	assert.Len(t, graph.Edges, 3)
}

func TestScenarioRepository_Graph(t *testing.T) {
	p := NewPersistence(t.TempDir())
	seed(t, p)

	ctx := t.Context()

	graph, err := p.GraphRepository().Graph(ctx)
	require.NoError(t, err)
	require.Len(t, graph.Edges, 2)
	assert.True(t, *graph.Edges[1].Positive)

	version, err := p.GraphRepository().GraphVersion(ctx)
	require.NoError(t, err)
	assert.Equal(t, graph.Version, version)

	require.NoError(t, p.ElementRepository().SoftDelete(ctx, "welcome"))

	graph, err = p.GraphRepository().Graph(ctx)
	require.NoError(t, err)
	assert.Len(t, graph.Edges, 1)
	assert.NotEqual(t, version, graph.Version)

	scenario, err := p.ScenarioRepository().ScenarioByID(ctx, "signup-flow")
	require.NoError(t, err)

	scenario.Enabled = false
	require.NoError(t, p.ScenarioRepository().SaveScenario(ctx, scenario))

	graph, err = p.GraphRepository().Graph(ctx)
	require.NoError(t, err)
	assert.Empty(t, graph.Edges)

	enabled, err := p.ScenarioRepository().EnabledScenarios(ctx)
	require.NoError(t, err)
	assert.Empty(t, enabled)
}

func TestElementRepository_SoftDelete(t *testing.T) {
	p := NewPersistence(t.TempDir())
	seed(t, p)

	ctx := t.Context()
	elements := p.ElementRepository()

	element, err := elements.ElementByID(ctx, "welcome")
	require.NoError(t, err)
	assert.Equal(t, models.ElementTypeEmail, element.Type)

	require.NoError(t, elements.SoftDelete(ctx, "welcome"))

	_, err = elements.ElementByID(ctx, "welcome")
	assert.True(t, persistence.IsElementNotFound(err))
	assert.True(t, persistence.IsElementNotFound(elements.SoftDelete(ctx, "welcome")))

	all, err := elements.ElementsByScenario(ctx, "signup-flow")
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, "in-segment", all[0].ID)
}

func TestElementRepository_SaveElementReplaces(t *testing.T) {
	p := NewPersistence(t.TempDir())
	seed(t, p)

	ctx := t.Context()

	err := p.ElementRepository().SaveElement(ctx, &models.Element{
		ID: "welcome", ScenarioID: "signup-flow", Type: models.ElementTypeEmail, Options: json.RawMessage(`{"template":"hi"}`),
	})
	require.NoError(t, err)

	all, err := p.ElementRepository().ElementsByScenario(ctx, "signup-flow")
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.JSONEq(t, `{"template":"hi"}`, string(all[1].Options))
}

func TestJobRepository_Queues(t *testing.T) {
	p := NewPersistence(t.TempDir())
	seed(t, p)

	ctx := t.Context()
	jobs := p.JobRepository()

	first, err := jobs.AddTrigger(ctx, "on-signup", models.NewParameters("u-1", nil))
	require.NoError(t, err)
	assert.Equal(t, "signup-flow", first.ScenarioID)

	second, err := jobs.AddElement(ctx, "welcome", models.NewParameters("u-2", nil))
	require.NoError(t, err)

	unprocessed, err := jobs.UnprocessedJobs(ctx, 10)
	require.NoError(t, err)
	require.Len(t, unprocessed, 2)
	assert.Equal(t, first.ID, unprocessed[0].ID)
	assert.Equal(t, models.TriggerOrigin("on-signup"), unprocessed[0].Origin)
	assert.Equal(t, models.ElementOrigin("welcome"), unprocessed[1].Origin)

	limited, err := jobs.UnprocessedJobs(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)

	require.NoError(t, jobs.ScheduleJob(ctx, second))

	failed := models.JobStateFailed
	require.NoError(t, jobs.Update(ctx, second, persistence.JobUpdate{State: &failed}))

	failedJobs, err := jobs.FailedJobs(ctx, 10)
	require.NoError(t, err)
	require.Len(t, failedJobs, 1)
	assert.Equal(t, second.ID, failedJobs[0].ID)

	require.NoError(t, jobs.Delete(ctx, second))
	assert.True(t, persistence.IsJobNotFound(jobs.Delete(ctx, second)))

	_, err = jobs.AddTrigger(ctx, "missing", nil)
	require.ErrorIs(t, err, persistence.ErrTriggerNotFound)
}

func TestJobRepository_FinishedAndHousekeeping(t *testing.T) {
	p := NewPersistence(t.TempDir())
	seed(t, p)

	ctx := t.Context()
	jobs := p.JobRepository()

	job, err := jobs.AddTrigger(ctx, "on-signup", models.NewParameters("u-1", nil))
	require.NoError(t, err)

	finished := models.JobStateFinished
	finishedAt := time.Now().UTC().Add(-48 * time.Hour)
	require.NoError(t, jobs.Update(ctx, job, persistence.JobUpdate{State: &finished, FinishedAt: &finishedAt}))

	finishedJobs, err := jobs.FinishedJobs(ctx, 10)
	require.NoError(t, err)
	require.Len(t, finishedJobs, 1)

	deleted, err := jobs.DeleteFinishedBefore(ctx, time.Now().UTC(), 10)
	require.NoError(t, err)
	assert.Equal(t, int64(0), deleted, "jobs not continued yet are kept")

	continuedAt := time.Now().UTC()
	require.NoError(t, jobs.Update(ctx, job, persistence.JobUpdate{ContinuedAt: &continuedAt}))

	finishedJobs, err = jobs.FinishedJobs(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, finishedJobs)

	deleted, err = jobs.DeleteFinishedBefore(ctx, time.Now().UTC(), 10)
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)

	_, err = jobs.JobByID(ctx, job.ID)
	assert.True(t, persistence.IsJobNotFound(err))
}

func TestJobRepository_HousekeepingCountsOnlyItsOwnDeletes(t *testing.T) {
	p := NewPersistence(t.TempDir())
	seed(t, p)

	ctx := t.Context()
	jobs := p.JobRepository()

	finished := models.JobStateFinished
	finishedAt := time.Now().UTC().Add(-48 * time.Hour)
	continuedAt := time.Now().UTC().Add(-47 * time.Hour)

	expired := make([]*models.Job, 0, 20)

	for range 20 {
		job, err := jobs.AddTrigger(ctx, "on-signup", models.NewParameters("u-1", nil))
		require.NoError(t, err)
		require.NoError(t, jobs.Update(ctx, job, persistence.JobUpdate{
			State:       &finished,
			FinishedAt:  &finishedAt,
			ContinuedAt: &continuedAt,
		}))

		expired = append(expired, job)
	}

	var (
		wg      sync.WaitGroup
		removed atomic.Int64
	)

	for _, job := range expired {
		wg.Add(1)

		go func() {
			defer wg.Done()

			if jobs.Delete(ctx, job) == nil {
				removed.Add(1)
			}
		}()
	}

	deleted, err := jobs.DeleteFinishedBefore(ctx, time.Now().UTC(), 100)
	require.NoError(t, err)

	wg.Wait()

	assert.Equal(t, int64(len(expired)), deleted+removed.Load())

	remaining, err := jobs.DeleteFinishedBefore(ctx, time.Now().UTC(), 100)
	require.NoError(t, err)
	assert.Zero(t, remaining)
}

func TestJobRepository_UpdateMissingJob(t *testing.T) {
	p := NewPersistence(t.TempDir())

	err := p.JobRepository().StartJob(t.Context(), &models.Job{ID: "missing"})
	assert.True(t, persistence.IsJobNotFound(err))
}
